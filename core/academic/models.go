package academic

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/edufam/edufam/core"
)

// Student statuses
const (
	StatusActive      = "active"
	StatusTransferred = "transferred"
	StatusGraduated   = "graduated"
)

type Class struct {
	ID             string    `json:"id"`
	SchoolID       string    `json:"school_id"`
	Name           string    `json:"name"`
	Stream         string    `json:"stream"`
	Level          int       `json:"level"`
	AcademicYear   string    `json:"academic_year"`
	ClassTeacherID string    `json:"class_teacher_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type NewClass struct {
	Name           string `json:"name" validate:"required,max=50"`
	Stream         string `json:"stream" validate:"omitempty,max=50"`
	Level          int    `json:"level" validate:"min=0,max=20"`
	AcademicYear   string `json:"academic_year" validate:"required,max=20"`
	ClassTeacherID string `json:"class_teacher_id" validate:"omitempty,uuid"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Stream = core.CleanString(nc.Stream)
	nc.AcademicYear = core.CleanString(nc.AcademicYear)
	return validate.Struct(nc)
}

type UpdateClass struct {
	Name           string `json:"name" validate:"omitempty,max=50"`
	Stream         string `json:"stream" validate:"omitempty,max=50"`
	Level          *int   `json:"level" validate:"omitempty,min=0,max=20"`
	AcademicYear   string `json:"academic_year" validate:"omitempty,max=20"`
	ClassTeacherID string `json:"class_teacher_id" validate:"omitempty,uuid"`
}

func (uc *UpdateClass) Validate(validate *validator.Validate) error {
	uc.Name = core.CleanString(uc.Name)
	uc.Stream = core.CleanString(uc.Stream)
	uc.AcademicYear = core.CleanString(uc.AcademicYear)
	return validate.Struct(uc)
}

type ClassFilter struct {
	SchoolID     string
	IDs          []string
	TeacherID    string // class teacher, or teacher of one of the class subjects
	AcademicYear string
	Search       string
}

type Subject struct {
	ID        string    `json:"id"`
	SchoolID  string    `json:"school_id"`
	ClassID   string    `json:"class_id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	TeacherID string    `json:"teacher_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NewSubject struct {
	ClassID   string `json:"class_id" validate:"required,uuid"`
	Name      string `json:"name" validate:"required,max=100"`
	Code      string `json:"code" validate:"required,max=20,alphanum_"`
	TeacherID string `json:"teacher_id" validate:"omitempty,uuid"`
}

func (ns *NewSubject) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Code = core.CleanString(ns.Code, true /* lower */)
	return validate.Struct(ns)
}

type UpdateSubject struct {
	Name      string `json:"name" validate:"omitempty,max=100"`
	Code      string `json:"code" validate:"omitempty,max=20,alphanum_"`
	TeacherID string `json:"teacher_id" validate:"omitempty,uuid"`
}

func (us *UpdateSubject) Validate(validate *validator.Validate) error {
	us.Name = core.CleanString(us.Name)
	us.Code = core.CleanString(us.Code, true /* lower */)
	return validate.Struct(us)
}

type SubjectFilter struct {
	SchoolID  string
	IDs       []string
	ClassID   string
	TeacherID string
}

type Student struct {
	ID              string    `json:"id"`
	SchoolID        string    `json:"school_id"`
	ClassID         string    `json:"class_id"`
	ParentID        string    `json:"parent_id"`
	AdmissionNumber string    `json:"admission_number"`
	Name            string    `json:"name"`
	Gender          string    `json:"gender"`
	DateOfBirth     core.Date `json:"date_of_birth"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type NewStudent struct {
	ClassID         string    `json:"class_id" validate:"required,uuid"`
	ParentID        string    `json:"parent_id" validate:"omitempty,uuid"`
	AdmissionNumber string    `json:"admission_number" validate:"required,max=30"`
	Name            string    `json:"name" validate:"required,max=150"`
	Gender          string    `json:"gender" validate:"omitempty,oneof=male female other"`
	DateOfBirth     core.Date `json:"date_of_birth"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.AdmissionNumber = core.CleanString(ns.AdmissionNumber)
	ns.Name = core.CleanString(ns.Name)
	ns.Gender = core.CleanString(ns.Gender, true /* lower */)
	return validate.Struct(ns)
}

type UpdateStudent struct {
	ClassID         string    `json:"class_id" validate:"omitempty,uuid"`
	ParentID        string    `json:"parent_id" validate:"omitempty,uuid"`
	AdmissionNumber string    `json:"admission_number" validate:"omitempty,max=30"`
	Name            string    `json:"name" validate:"omitempty,max=150"`
	Gender          string    `json:"gender" validate:"omitempty,oneof=male female other"`
	DateOfBirth     core.Date `json:"date_of_birth"`
	Status          string    `json:"status" validate:"omitempty,oneof=active transferred graduated"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	us.AdmissionNumber = core.CleanString(us.AdmissionNumber)
	us.Name = core.CleanString(us.Name)
	us.Gender = core.CleanString(us.Gender, true /* lower */)
	us.Status = core.CleanString(us.Status, true /* lower */)
	return validate.Struct(us)
}

type StudentFilter struct {
	SchoolID string
	IDs      []string
	ClassID  string
	ParentID string
	Status   string
	Search   string // case-insensitive match on Student.Name or Student.AdmissionNumber
}

// Promotion moves the active students of a class to TargetClassID, or marks them graduated.
type Promotion struct {
	TargetClassID string `json:"target_class_id" validate:"omitempty,uuid"`
	Graduate      bool   `json:"graduate"`
}
