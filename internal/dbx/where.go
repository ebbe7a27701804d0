package dbx

import (
	"strconv"
	"strings"
)

// Where accumulates AND-ed predicates with numbered $n placeholders.
type Where struct {
	clauses []string
	args    []any
}

// Op appends "column op $n" bound to arg.
func (w *Where) Op(column, op string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, column+" "+op+" $"+strconv.Itoa(len(w.args)))
}

// Eq appends "column = $n".
func (w *Where) Eq(column string, arg any) { w.Op(column, "=", arg) }

// Bind appends arg and returns its placeholder without adding a predicate.
func (w *Where) Bind(arg any) string {
	w.args = append(w.args, arg)
	return "$" + strconv.Itoa(len(w.args))
}

// SQL renders " WHERE a AND b", or "" when empty.
func (w *Where) SQL() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func (w *Where) Args() []any { return w.args }

// Set builds the SET list of a partial UPDATE.
type Set struct {
	cols []string
	args []any
}

func (s *Set) Add(column string, arg any) {
	s.args = append(s.args, arg)
	s.cols = append(s.cols, column+" = $"+strconv.Itoa(len(s.args)))
}

func (s *Set) Empty() bool { return len(s.cols) == 0 }

// SQL renders "a = $1, b = $2".
func (s *Set) SQL() string { return strings.Join(s.cols, ", ") }

// Bind appends arg after the SET values and returns its placeholder.
func (s *Set) Bind(arg any) string {
	s.args = append(s.args, arg)
	return "$" + strconv.Itoa(len(s.args))
}

func (s *Set) Args() []any { return s.args }
