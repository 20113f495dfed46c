package grade

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/edufam/edufam/core"
)

// Statuses
const (
	StatusDraft           = "draft"
	StatusPendingApproval = "pending_approval"
	StatusApproved        = "approved"
	StatusRejected        = "rejected"
	StatusReleased        = "released"
)

// Terms & exam types
const (
	TermOne   = "term1"
	TermTwo   = "term2"
	TermThree = "term3"

	ExamOpener     = "opener"
	ExamMidterm    = "midterm"
	ExamEndterm    = "endterm"
	ExamAssignment = "assignment"
)

const DefaultMaxScore = 100

var (
	Statuses  = []string{StatusDraft, StatusPendingApproval, StatusApproved, StatusRejected, StatusReleased}
	Terms     = []string{TermOne, TermTwo, TermThree}
	ExamTypes = []string{ExamOpener, ExamMidterm, ExamEndterm, ExamAssignment}

	// editable statuses; a grade in any other status is locked
	editable = []string{StatusDraft, StatusRejected}

	TransitionSubmit  = Transition{Name: "submit", From: []string{StatusDraft, StatusRejected}, To: StatusPendingApproval}
	TransitionApprove = Transition{Name: "approve", From: []string{StatusPendingApproval}, To: StatusApproved}
	TransitionReject  = Transition{Name: "reject", From: []string{StatusPendingApproval}, To: StatusRejected}
	TransitionRelease = Transition{Name: "release", From: []string{StatusApproved}, To: StatusReleased}
)

type Grade struct {
	ID             string    `json:"id"`
	SchoolID       string    `json:"school_id"`
	StudentID      string    `json:"student_id"`
	ClassID        string    `json:"class_id"`
	SubjectID      string    `json:"subject_id"`
	Term           string    `json:"term"`
	ExamType       string    `json:"exam_type"`
	Score          float64   `json:"score"`
	MaxScore       float64   `json:"max_score"`
	Percentage     float64   `json:"percentage"`
	Letter         string    `json:"letter"`
	Comments       string    `json:"comments"`
	Status         string    `json:"status"`
	SubmittedBy    string    `json:"submitted_by"`
	SubmittedAt    time.Time `json:"submitted_at"`
	ApprovedBy     string    `json:"approved_by"`
	ApprovedAt     time.Time `json:"approved_at"`
	RejectedReason string    `json:"rejected_reason"`
	ReleasedBy     string    `json:"released_by"`
	ReleasedAt     time.Time `json:"released_at"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SetScore sets the scores and derives the percentage & letter grade.
func (g *Grade) SetScore(score, maxScore float64) {
	if maxScore <= 0 {
		maxScore = DefaultMaxScore
	}
	g.Score = score
	g.MaxScore = maxScore
	g.Percentage = Percentage(score, maxScore)
	g.Letter = Letter(g.Percentage)
}

func (g Grade) IsEditable() bool {
	return core.ContainsString(editable, g.Status)
}

// Percentage is score out of maxScore, rounded to 2 decimals.
func Percentage(score, maxScore float64) float64 {
	if maxScore <= 0 {
		return 0
	}
	return math.Round(score/maxScore*10000) / 100
}

// Letter maps a percentage to the school grading scale.
func Letter(percentage float64) string {
	switch {
	case percentage >= 80:
		return "A"
	case percentage >= 65:
		return "B"
	case percentage >= 50:
		return "C"
	case percentage >= 40:
		return "D"
	default:
		return "E"
	}
}

// Transition is a move of grades from any of the From statuses to To.
type Transition struct {
	Name string
	From []string
	To   string
}

// StatusChange holds the bookkeeping written along a Transition.
type StatusChange struct {
	ActorID string
	At      time.Time
	Reason  string
}

// Mark is one score of a SaveBatch.
type Mark struct {
	StudentID string  `json:"student_id" validate:"required,uuid"`
	SubjectID string  `json:"subject_id" validate:"required,uuid"`
	Score     float64 `json:"score" validate:"min=0"`
	MaxScore  float64 `json:"max_score" validate:"omitempty,gt=0"`
	Comments  string  `json:"comments" validate:"omitempty,max=500"`
}

// SaveBatch is a set of marks for one class, term & exam type.
type SaveBatch struct {
	ClassID  string `json:"class_id" validate:"required,uuid"`
	Term     string `json:"term" validate:"required,oneof=term1 term2 term3"`
	ExamType string `json:"exam_type" validate:"required,oneof=opener midterm endterm assignment"`
	Marks    []Mark `json:"marks" validate:"required,min=1,dive"`
}

func (b *SaveBatch) Validate(validate *validator.Validate) error {
	b.Term = core.CleanString(b.Term, true /* lower */)
	b.ExamType = core.CleanString(b.ExamType, true /* lower */)
	for i := range b.Marks {
		b.Marks[i].Comments = core.CleanString(b.Marks[i].Comments)
	}
	return validate.Struct(b)
}

type LockedMark struct {
	StudentID string `json:"student_id"`
	SubjectID string `json:"subject_id"`
	Status    string `json:"status"`
}

type SaveResult struct {
	Saved  []Grade      `json:"saved"`
	Locked []LockedMark `json:"locked"`
}

// Selector picks grades either by IDs or by class, term & exam type (optionally narrowed to a subject).
type Selector struct {
	IDs       []string `json:"ids" validate:"omitempty,dive,uuid"`
	ClassID   string   `json:"class_id" validate:"omitempty,uuid"`
	Term      string   `json:"term" validate:"omitempty,oneof=term1 term2 term3"`
	ExamType  string   `json:"exam_type" validate:"omitempty,oneof=opener midterm endterm assignment"`
	SubjectID string   `json:"subject_id" validate:"omitempty,uuid"`

	// SubjectIDs narrows any selector to these subjects; set by the service, never bound.
	SubjectIDs []string `json:"-"`
}

func (sel *Selector) Validate(validate *validator.Validate) error {
	sel.Term = core.CleanString(sel.Term, true /* lower */)
	sel.ExamType = core.CleanString(sel.ExamType, true /* lower */)
	if err := validate.Struct(sel); err != nil {
		return err
	}
	if len(sel.IDs) == 0 && (sel.ClassID == "" || sel.Term == "" || sel.ExamType == "") {
		return core.NewFieldError("ids", "provide ids, or class_id, term and exam_type")
	}
	return nil
}

type RejectRequest struct {
	Selector
	Reason string `json:"reason" validate:"required,max=500"`
}

func (rr *RejectRequest) Validate(validate *validator.Validate) error {
	rr.Reason = core.CleanString(rr.Reason)
	if err := validate.Struct(rr); err != nil {
		return err
	}
	return rr.Selector.Validate(validate)
}

type TransitionResult struct {
	Transition string `json:"transition"`
	Status     string `json:"status"`
	Count      int    `json:"count"`
}

type Filter struct {
	SchoolID   string
	IDs        []string
	StudentID  string
	StudentIDs []string
	ClassID    string
	SubjectID  string
	SubjectIDs []string
	Term       string
	ExamType   string
	Statuses   []string
}

type Summary struct {
	Total  int            `json:"total"`
	Counts map[string]int `json:"counts"`
}
