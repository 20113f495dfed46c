package spreadsheet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/edufam/edufam/core/report"
)

func TestWriteXLSX(t *testing.T) {
	table := report.Table{
		Title:  "Form 1 East - term1 endterm",
		Header: []string{"Admission No", "Name", "MAT", "ENG", "Mean"},
		Rows: [][]interface{}{
			{"A001", "Amina Njeri", 82.5, 70.0, 76.25},
			{"A002", "Brian Otieno", 40.0, "", 40.0},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, table))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{table.Title}, rows[0])
	assert.Empty(t, rows[1])
	assert.Equal(t, table.Header, rows[2])
	assert.Equal(t, []string{"A001", "Amina Njeri", "82.5", "70", "76.25"}, rows[3])
	assert.Equal(t, "Brian Otieno", rows[4][1])
}

func TestWriteXLSX_empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, report.Table{Title: "empty"}))
	assert.NotZero(t, buf.Len())
}
