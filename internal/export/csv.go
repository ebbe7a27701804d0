package export

import (
	"strconv"
	"strings"

	"rollcall/internal/attendance"
)

var header = []string{"Roll Number", "Student Name", "Subject", "Semester", "Course", "Date", "Status"}

// Render writes records as CSV. Every field is quoted and rows are separated by "\n".
// The subject column always carries subjectName.
func Render(subjectName string, recs []attendance.Record) []byte {
	var b strings.Builder
	writeRow(&b, header)
	for _, r := range recs {
		b.WriteByte('\n')
		writeRow(&b, []string{
			strconv.Itoa(r.Roll),
			r.StudentName,
			subjectName,
			strconv.Itoa(r.Semester),
			r.Course,
			r.Date,
			statusLabel(r.Status),
		})
	}
	return []byte(b.String())
}

func writeRow(b *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
}

func statusLabel(status string) string {
	switch status {
	case attendance.StatusPresent:
		return "Present"
	case attendance.StatusAbsent:
		return "Absent"
	case attendance.StatusLate:
		return "Late"
	}
	return status
}
