package attendance

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/edufam/edufam/core"
)

// Sessions
const (
	SessionMorning   = "morning"
	SessionAfternoon = "afternoon"
)

// Statuses
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
	StatusExcused = "excused"
)

var Statuses = []string{StatusPresent, StatusAbsent, StatusLate, StatusExcused}

type Record struct {
	ID        string    `json:"id"`
	SchoolID  string    `json:"school_id"`
	StudentID string    `json:"student_id"`
	ClassID   string    `json:"class_id"`
	Date      core.Date `json:"date"`
	Session   string    `json:"session"`
	Status    string    `json:"status"`
	Remarks   string    `json:"remarks"`
	MarkedBy  string    `json:"marked_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Mark struct {
	StudentID string `json:"student_id" validate:"required,uuid"`
	Status    string `json:"status" validate:"required,oneof=present absent late excused"`
	Remarks   string `json:"remarks" validate:"omitempty,max=255"`
}

// Register is the attendance of a class for one session.
type Register struct {
	ClassID string    `json:"class_id" validate:"required,uuid"`
	Date    core.Date `json:"date"`
	Session string    `json:"session" validate:"required,oneof=morning afternoon"`
	Marks   []Mark    `json:"marks" validate:"required,min=1,dive"`
}

func (r *Register) Validate(validate *validator.Validate) error {
	r.Session = core.CleanString(r.Session, true /* lower */)
	if r.Session == "" {
		r.Session = SessionMorning
	}
	for i := range r.Marks {
		r.Marks[i].Status = core.CleanString(r.Marks[i].Status, true)
		r.Marks[i].Remarks = core.CleanString(r.Marks[i].Remarks)
	}
	if err := validate.Struct(r); err != nil {
		return err
	}
	if r.Date.IsZero() {
		return core.NewFieldError("date", "this field is required")
	}
	if r.Date.After(core.Today()) {
		return core.NewFieldError("date", "cannot mark attendance in the future")
	}
	seen := make(map[string]bool, len(r.Marks))
	for _, m := range r.Marks {
		if seen[m.StudentID] {
			return core.NewFieldError("marks", "duplicate mark for student "+m.StudentID)
		}
		seen[m.StudentID] = true
	}
	return nil
}

type Filter struct {
	SchoolID   string
	ClassID    string
	StudentID  string
	StudentIDs []string
	Session    string
	Status     string
	From       core.Date
	To         core.Date
}

// StudentSummary counts the records of a student; late counts as attended.
type StudentSummary struct {
	StudentID string  `json:"student_id"`
	Present   int     `json:"present"`
	Absent    int     `json:"absent"`
	Late      int     `json:"late"`
	Excused   int     `json:"excused"`
	Total     int     `json:"total"`
	Rate      float64 `json:"rate"` // percentage
}

func (s *StudentSummary) add(status string) {
	switch status {
	case StatusPresent:
		s.Present++
	case StatusAbsent:
		s.Absent++
	case StatusLate:
		s.Late++
	case StatusExcused:
		s.Excused++
	}
	s.Total++
	s.Rate = Rate(s.Present+s.Late, s.Total)
}

// Rate is the attended percentage rounded to 2 decimals; 0 when there is nothing to count.
func Rate(attended, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(attended)*10000/float64(total)) / 100
}

// Summarize groups records per student, keeping the order students first appear in.
func Summarize(records []Record) []StudentSummary {
	index := make(map[string]int)
	sums := make([]StudentSummary, 0)
	for _, r := range records {
		i, ok := index[r.StudentID]
		if !ok {
			i = len(sums)
			index[r.StudentID] = i
			sums = append(sums, StudentSummary{StudentID: r.StudentID})
		}
		sums[i].add(r.Status)
	}
	return sums
}
