package grade

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/edufam/edufam/core"
)

func TestLetter(t *testing.T) {
	tests := []struct {
		percentage float64
		want       string
	}{
		{100, "A"},
		{80, "A"},
		{79.99, "B"},
		{65, "B"},
		{64.5, "C"},
		{50, "C"},
		{49.99, "D"},
		{40, "D"},
		{39.99, "E"},
		{0, "E"},
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.want, Letter(tt.percentage), "Letter(%v)", tt.percentage)
	}
}

func TestGrade_SetScore(t *testing.T) {
	var g Grade
	g.SetScore(33, 40)
	assert.Equal(t, 82.5, g.Percentage)
	assert.Equal(t, "A", g.Letter)
	assert.Equal(t, float64(40), g.MaxScore)

	g.SetScore(45, 0) // defaults to 100
	assert.Equal(t, float64(DefaultMaxScore), g.MaxScore)
	assert.Equal(t, float64(45), g.Percentage)
	assert.Equal(t, "D", g.Letter)

	g.SetScore(2, 3)
	assert.Equal(t, 66.67, g.Percentage)
}

func TestGrade_IsEditable(t *testing.T) {
	for _, st := range Statuses {
		g := Grade{Status: st}
		want := st == StatusDraft || st == StatusRejected
		assert.Equalf(t, want, g.IsEditable(), "status %s", st)
	}
}

func TestSelector_Validate(t *testing.T) {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	id := core.NewID()
	tests := []struct {
		name    string
		sel     Selector
		wantErr bool
	}{
		{name: "empty", sel: Selector{}, wantErr: true},
		{name: "ids", sel: Selector{IDs: []string{id}}},
		{name: "invalid id", sel: Selector{IDs: []string{"lol"}}, wantErr: true},
		{name: "class only", sel: Selector{ClassID: id}, wantErr: true},
		{name: "class, term & exam", sel: Selector{ClassID: id, Term: " TERM1 ", ExamType: "endterm"}},
		{name: "unknown term", sel: Selector{ClassID: id, Term: "term4", ExamType: "endterm"}, wantErr: true},
		{name: "with subject", sel: Selector{ClassID: id, Term: "term2", ExamType: "opener", SubjectID: id}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sel.Validate(validate)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTransitions(t *testing.T) {
	// every transition starts from statuses that precede its target
	assert.ElementsMatch(t, []string{StatusDraft, StatusRejected}, TransitionSubmit.From)
	assert.Equal(t, StatusPendingApproval, TransitionSubmit.To)
	assert.Equal(t, []string{StatusPendingApproval}, TransitionApprove.From)
	assert.Equal(t, []string{StatusPendingApproval}, TransitionReject.From)
	assert.Equal(t, []string{StatusApproved}, TransitionRelease.From)
	assert.Equal(t, StatusReleased, TransitionRelease.To)
}
