package attendance

import "time"

const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
)

// DateLayout is the wire and storage form of attendance dates.
const DateLayout = "2006-01-02"

// Record is one student's status for one subject on one day. The display
// fields are joined from students and subjects when read; they are never stored.
type Record struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	StudentID int64     `json:"student_id"`
	SubjectID int64     `json:"subject_id"`
	Date      string    `json:"date"`
	Status    string    `json:"status"`

	StudentName string `json:"student_name,omitempty"`
	Roll        int    `json:"roll,omitempty"`
	SubjectName string `json:"subject_name,omitempty"`
	SubjectCode string `json:"subject_code,omitempty"`
	Course      string `json:"course,omitempty"`
	Semester    int    `json:"semester,omitempty"`
}

// Filter narrows attendance listings. From and To are inclusive dates.
type Filter struct {
	SubjectID int64  `form:"subject_id"`
	StudentID int64  `form:"student_id"`
	Course    string `form:"course"`
	Semester  int    `form:"semester"`
	Date      string `form:"date"`
	From      string `form:"from"`
	To        string `form:"to"`
}

type Entry struct {
	StudentID int64  `json:"student_id" validate:"gt=0"`
	Status    string `json:"status" validate:"required,oneof=present absent late"`
}

// MarkRequest records explicit statuses. Date defaults to today (UTC).
type MarkRequest struct {
	SubjectID int64   `json:"subject_id" validate:"gt=0"`
	Date      string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Entries   []Entry `json:"entries" validate:"required,min=1,dive"`
}

// ClassRequest marks every listed student present and the rest of the class absent.
type ClassRequest struct {
	SubjectID int64   `json:"subject_id" validate:"gt=0"`
	Date      string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Present   []int64 `json:"present"`
}

type Stats struct {
	Total   int `json:"total"`
	Present int `json:"present"`
	Absent  int `json:"absent"`
	Late    int `json:"late"`
}

// SubjectStats is one result of a stats fan-out. Err is set when that subject failed.
type SubjectStats struct {
	SubjectID int64  `json:"subject_id"`
	Stats     Stats  `json:"stats"`
	Err       error  `json:"-"`
	Error     string `json:"error,omitempty"`
}
