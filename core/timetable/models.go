package timetable

import (
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/edufam/edufam/core"
)

var (
	Days = []string{"monday", "tuesday", "wednesday", "thursday", "friday"}

	// TimeSlots of a school day; the gaps are the morning break & lunch.
	TimeSlots = []string{
		"08:00-08:40", "08:40-09:20", "09:20-10:00",
		"10:30-11:10", "11:10-11:50", "11:50-12:30",
		"14:00-14:40", "14:40-15:20",
	}
)

type Entry struct {
	ID        string    `json:"id"`
	SchoolID  string    `json:"school_id"`
	ClassID   string    `json:"class_id"`
	SubjectID string    `json:"subject_id"`
	TeacherID string    `json:"teacher_id"`
	Term      string    `json:"term"`
	Day       string    `json:"day"`
	TimeSlot  string    `json:"time_slot"`
	Room      string    `json:"room"`
	CreatedAt time.Time `json:"created_at"`
}

// SubjectLoad is a subject to place and how many periods a week it gets (0 means no cap).
type SubjectLoad struct {
	SubjectID      string `json:"subject_id" validate:"required,uuid"`
	TeacherID      string `json:"teacher_id" validate:"omitempty,uuid"` // defaults to the subject's teacher
	PeriodsPerWeek int    `json:"periods_per_week" validate:"min=0,max=40"`
	Room           string `json:"room" validate:"omitempty,max=50"`
}

type Request struct {
	ClassID  string        `json:"class_id" validate:"required,uuid"`
	Term     string        `json:"term" validate:"required,oneof=term1 term2 term3"`
	Subjects []SubjectLoad `json:"subjects" validate:"required,min=1,dive"`
	Preview  bool          `json:"preview"`
}

func (r *Request) Validate(validate *validator.Validate) error {
	r.Term = core.CleanString(r.Term, true /* lower */)
	if err := validate.Struct(r); err != nil {
		return err
	}
	seen := make(map[string]bool, len(r.Subjects))
	for _, s := range r.Subjects {
		if seen[s.SubjectID] {
			return core.NewFieldError("subjects", "duplicate subject "+s.SubjectID)
		}
		seen[s.SubjectID] = true
	}
	return nil
}

type Slot struct {
	Day      string `json:"day"`
	TimeSlot string `json:"time_slot"`
}

type Result struct {
	Entries  []Entry `json:"entries"`
	Unfilled []Slot  `json:"unfilled"`
	Preview  bool    `json:"preview"`
}

type Filter struct {
	SchoolID       string
	ClassID        string
	TeacherID      string
	Term           string
	ExcludeClassID string
}

func busyKey(teacherID, day, slot string) string {
	return teacherID + "|" + day + "|" + slot
}

// Generate fills the week of a class greedily: every slot, in day then time order, takes the first subject
// (round-robin from the cursor) whose teacher is free and whose weekly quota is not used up.
// busy holds the teacher|day|slot keys already taken by other classes; it is updated in place.
// There is no backtracking: a slot no subject fits stays empty and is returned as unfilled.
func Generate(schoolID, classID, term string, subjects []SubjectLoad, busy map[string]bool) ([]Entry, []Slot) {
	n := len(subjects)
	used := make([]int, n)
	entries := make([]Entry, 0, len(Days)*len(TimeSlots))
	unfilled := make([]Slot, 0)

	var cursor int
	for _, day := range Days {
		for _, slot := range TimeSlots {
			placed := false
			for k := 0; k < n; k++ {
				i := (cursor + k) % n
				sub := subjects[i]
				if sub.PeriodsPerWeek > 0 && used[i] >= sub.PeriodsPerWeek {
					continue
				}
				key := busyKey(sub.TeacherID, day, slot)
				if sub.TeacherID != "" && busy[key] {
					continue
				}

				entries = append(entries, Entry{
					SchoolID:  schoolID,
					ClassID:   classID,
					SubjectID: sub.SubjectID,
					TeacherID: sub.TeacherID,
					Term:      term,
					Day:       day,
					TimeSlot:  slot,
					Room:      sub.Room,
				})
				used[i]++
				if sub.TeacherID != "" {
					busy[key] = true
				}
				cursor = (i + 1) % n
				placed = true
				break
			}
			if !placed {
				unfilled = append(unfilled, Slot{Day: day, TimeSlot: slot})
			}
		}
	}
	return entries, unfilled
}

func indexOf(list []string, s string) int {
	for i, item := range list {
		if item == s {
			return i
		}
	}
	return len(list)
}

// SortEntries orders entries by class, day & time slot.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.ClassID != b.ClassID {
			return a.ClassID < b.ClassID
		}
		if da, db := indexOf(Days, a.Day), indexOf(Days, b.Day); da != db {
			return da < db
		}
		return indexOf(TimeSlots, a.TimeSlot) < indexOf(TimeSlots, b.TimeSlot)
	})
}
