// Package roster stores students and teachers.
package roster

import "time"

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
)

// Student is a person enrolled in a course and semester, identified there by roll number.
type Student struct {
	ID           int64     `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Username     string    `json:"username"`
	Course       string    `json:"course"`
	Semester     int       `json:"semester"`
	Roll         int       `json:"roll"`
	PasswordHash string    `json:"-"`
}

// Teacher is a staff member. Devices lists the device fingerprints
// (for example "model: Pixel 7") the teacher may sign in from; empty means any.
type Teacher struct {
	ID           int64     `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Username     string    `json:"username"`
	Course       string    `json:"course"`
	Semester     int       `json:"semester"`
	Devices      []string  `json:"device_info"`
	PasswordHash string    `json:"-"`
}

// AllowsDevice reports whether a sign-in from model is permitted.
func (t Teacher) AllowsDevice(model string) bool {
	if len(t.Devices) == 0 {
		return true
	}
	for _, d := range t.Devices {
		if d == "model: "+model || d == model {
			return true
		}
	}
	return false
}

// Filter narrows roster listings. Zero fields are ignored.
type Filter struct {
	Course   string `form:"course"`
	Semester int    `form:"semester"`
}

type NewStudent struct {
	Username string `json:"username" validate:"notblank"`
	Password string `json:"password" validate:"required,min=4"`
	Course   string `json:"course" validate:"required,course"`
	Semester int    `json:"semester" validate:"min=1,max=8"`
	Roll     int    `json:"roll" validate:"gt=0"`
}

type StudentUpdate struct {
	Username *string `json:"username" validate:"omitempty,notblank"`
	Password *string `json:"password" validate:"omitempty,min=4"`
	Course   *string `json:"course" validate:"omitempty,course"`
	Semester *int    `json:"semester" validate:"omitempty,min=1,max=8"`
	Roll     *int    `json:"roll" validate:"omitempty,gt=0"`
}

type NewTeacher struct {
	Username string   `json:"username" validate:"notblank"`
	Password string   `json:"password" validate:"required,min=4"`
	Course   string   `json:"course" validate:"required,course"`
	Semester int      `json:"semester" validate:"min=1,max=8"`
	Devices  []string `json:"device_info"`
}

type TeacherUpdate struct {
	Username *string  `json:"username" validate:"omitempty,notblank"`
	Password *string  `json:"password" validate:"omitempty,min=4"`
	Course   *string  `json:"course" validate:"omitempty,course"`
	Semester *int     `json:"semester" validate:"omitempty,min=1,max=8"`
	Devices  []string `json:"device_info"`
}
