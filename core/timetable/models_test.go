package timetable

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edufam/edufam/core"
)

func TestGenerate(t *testing.T) {
	totalSlots := len(Days) * len(TimeSlots)

	t.Run("round robin without caps fills the week", func(t *testing.T) {
		subjects := []SubjectLoad{
			{SubjectID: "math", TeacherID: "t1"},
			{SubjectID: "eng", TeacherID: "t2"},
			{SubjectID: "sci", TeacherID: "t3"},
		}
		entries, unfilled := Generate("s1", "c1", "term1", subjects, map[string]bool{})

		require.Len(t, entries, totalSlots)
		assert.Empty(t, unfilled)
		assert.Equal(t, "math", entries[0].SubjectID)
		assert.Equal(t, "eng", entries[1].SubjectID)
		assert.Equal(t, "sci", entries[2].SubjectID)
		assert.Equal(t, "math", entries[3].SubjectID)
		assert.Equal(t, Entry{
			SchoolID: "s1", ClassID: "c1", SubjectID: "math", TeacherID: "t1", Term: "term1",
			Day: "monday", TimeSlot: "08:00-08:40",
		}, entries[0])
	})

	t.Run("quotas are honoured and leftover slots are unfilled", func(t *testing.T) {
		subjects := []SubjectLoad{
			{SubjectID: "math", TeacherID: "t1", PeriodsPerWeek: 5},
			{SubjectID: "eng", TeacherID: "t2", PeriodsPerWeek: 3},
		}
		entries, unfilled := Generate("s1", "c1", "term1", subjects, map[string]bool{})

		counts := map[string]int{}
		for _, e := range entries {
			counts[e.SubjectID]++
		}
		assert.Equal(t, map[string]int{"math": 5, "eng": 3}, counts)
		assert.Len(t, unfilled, totalSlots-8)
		// the 8 periods fill monday
		assert.Equal(t, Slot{Day: "tuesday", TimeSlot: "08:00-08:40"}, unfilled[0])
	})

	t.Run("teachers booked by other classes are skipped", func(t *testing.T) {
		busy := map[string]bool{busyKey("t1", "monday", "08:00-08:40"): true}
		subjects := []SubjectLoad{
			{SubjectID: "math", TeacherID: "t1"},
			{SubjectID: "eng", TeacherID: "t2"},
		}
		entries, _ := Generate("s1", "c1", "term1", subjects, busy)

		assert.Equal(t, "eng", entries[0].SubjectID)  // t1 busy, falls through to eng
		assert.Equal(t, "math", entries[1].SubjectID) // cursor moved past eng
		for _, e := range entries {
			assert.True(t, busy[busyKey(e.TeacherID, e.Day, e.TimeSlot)], "busy set updated")
		}
	})

	t.Run("slot stays empty when every teacher is busy", func(t *testing.T) {
		busy := map[string]bool{busyKey("t1", "tuesday", "10:30-11:10"): true}
		subjects := []SubjectLoad{{SubjectID: "math", TeacherID: "t1"}}
		entries, unfilled := Generate("s1", "c1", "term1", subjects, busy)

		assert.Len(t, entries, totalSlots-1)
		assert.Equal(t, []Slot{{Day: "tuesday", TimeSlot: "10:30-11:10"}}, unfilled)
	})

	t.Run("subjects without teacher never collide", func(t *testing.T) {
		busy := map[string]bool{busyKey("", "monday", "08:00-08:40"): true}
		entries, unfilled := Generate("s1", "c1", "term1", []SubjectLoad{{SubjectID: "games"}}, busy)
		assert.Len(t, entries, totalSlots)
		assert.Empty(t, unfilled)
	})

	t.Run("a teacher is never double-booked within the week", func(t *testing.T) {
		subjects := []SubjectLoad{
			{SubjectID: "math", TeacherID: "t1", PeriodsPerWeek: 10},
			{SubjectID: "phy", TeacherID: "t1", PeriodsPerWeek: 10},
		}
		entries, _ := Generate("s1", "c1", "term1", subjects, map[string]bool{})
		seen := map[string]bool{}
		for _, e := range entries {
			key := busyKey(e.TeacherID, e.Day, e.TimeSlot)
			assert.False(t, seen[key], key)
			seen[key] = true
		}
		assert.Len(t, entries, 20)
	})
}

func TestRequest_Validate(t *testing.T) {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	classID, sub1, sub2 := core.NewID(), core.NewID(), core.NewID()
	tests := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{name: "no subjects", req: Request{ClassID: classID, Term: "term1"}, wantErr: true},
		{name: "duplicate subjects", req: Request{ClassID: classID, Term: "term1", Subjects: []SubjectLoad{{SubjectID: sub1}, {SubjectID: sub1}}}, wantErr: true},
		{name: "negative quota", req: Request{ClassID: classID, Term: "term1", Subjects: []SubjectLoad{{SubjectID: sub1, PeriodsPerWeek: -1}}}, wantErr: true},
		{name: "unknown term", req: Request{ClassID: classID, Term: "summer", Subjects: []SubjectLoad{{SubjectID: sub1}}}, wantErr: true},
		{name: "valid", req: Request{ClassID: classID, Term: "Term2", Subjects: []SubjectLoad{{SubjectID: sub1}, {SubjectID: sub2, PeriodsPerWeek: 4}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate(validate)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSortEntries(t *testing.T) {
	entries := []Entry{
		{ClassID: "c1", Day: "tuesday", TimeSlot: "08:00-08:40"},
		{ClassID: "c1", Day: "monday", TimeSlot: "14:00-14:40"},
		{ClassID: "c1", Day: "monday", TimeSlot: "08:40-09:20"},
	}
	SortEntries(entries)
	assert.Equal(t, "08:40-09:20", entries[0].TimeSlot)
	assert.Equal(t, "14:00-14:40", entries[1].TimeSlot)
	assert.Equal(t, "tuesday", entries[2].Day)
}
