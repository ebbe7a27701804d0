// Package session signs users in and keeps their sessions, on the server
// (Service, Store) and on the client (Holder).
package session

import (
	"encoding/json"
	"time"
)

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
)

// Session is a signed-in user. Record is the user's roster row as JSON.
type Session struct {
	ID       string          `json:"id"`
	Role     string          `json:"role"`
	UserID   int64           `json:"user_id"`
	Record   json.RawMessage `json:"record"`
	IssuedAt time.Time       `json:"issued_at"`
}

// Credentials identify a teacher by Username or a student by Roll and Course.
// Course and Semester narrow a teacher sign-in when set. DeviceModel is checked
// against a teacher's registered devices.
type Credentials struct {
	Username    string `json:"username"`
	Password    string `json:"password" validate:"required"`
	Roll        int    `json:"roll"`
	Course      string `json:"course" validate:"omitempty,course"`
	Semester    int    `json:"semester" validate:"omitempty,min=1,max=8"`
	DeviceModel string `json:"device_model"`
}
