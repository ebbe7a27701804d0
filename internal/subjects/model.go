// Package subjects manages the subjects taught per course and semester.
package subjects

import "time"

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Subject is a course unit attendance is taken for.
type Subject struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Status    string    `json:"status"`
	Course    string    `json:"course"`
	Semester  int       `json:"semester"`
}

// Filter narrows subject listings. An empty Course or zero Semester leaves that field unfiltered.
type Filter struct {
	Course   string `form:"course"`
	Semester int    `form:"semester"`
}

type NewSubject struct {
	Name     string `json:"name" validate:"notblank"`
	Code     string `json:"code" validate:"notblank"`
	Status   string `json:"status" validate:"omitempty,oneof=active inactive"`
	Course   string `json:"course" validate:"required,course"`
	Semester int    `json:"semester" validate:"min=1,max=8"`
}

type Update struct {
	Name     *string `json:"name" validate:"omitempty,notblank"`
	Code     *string `json:"code" validate:"omitempty,notblank"`
	Course   *string `json:"course" validate:"omitempty,course"`
	Semester *int    `json:"semester" validate:"omitempty,min=1,max=8"`
}

type statusChange struct {
	Status string `json:"status" validate:"required,oneof=active inactive"`
}
