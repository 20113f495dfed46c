package report

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edufam/edufam/core/grade"
)

func TestMean(t *testing.T) {
	assert.Equal(t, float64(0), Mean(nil))
	assert.Equal(t, float64(70), Mean([]float64{60, 80}))
	assert.Equal(t, 66.67, Mean([]float64{50, 75, 75}))
}

func Test_statuses(t *testing.T) {
	assert.Equal(t, []string{grade.StatusReleased}, statuses(false))
	assert.Equal(t, []string{grade.StatusApproved, grade.StatusReleased}, statuses(true))
}
