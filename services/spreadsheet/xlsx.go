// Package spreadsheet exports report tables as XLSX workbooks.
package spreadsheet

import (
	"io"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/edufam/edufam/core/report"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	sheet       = "Sheet1"
)

// WriteXLSX writes t to w: the title on the first row, the header on the third and the data rows after it.
func WriteXLSX(w io.Writer, t report.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "creating header style")
	}

	if err := f.SetCellValue(sheet, "A1", t.Title); err != nil {
		return errors.Wrap(err, "writing title")
	}
	if err := f.SetCellStyle(sheet, "A1", "A1", bold); err != nil {
		return errors.Wrap(err, "styling title")
	}

	if len(t.Header) > 0 {
		header := make([]interface{}, len(t.Header))
		for i, h := range t.Header {
			header[i] = h
		}
		if err := f.SetSheetRow(sheet, "A3", &header); err != nil {
			return errors.Wrap(err, "writing header")
		}
		last, err := excelize.CoordinatesToCellName(len(t.Header), 3)
		if err != nil {
			return errors.Wrap(err, "header range")
		}
		if err := f.SetCellStyle(sheet, "A3", last, bold); err != nil {
			return errors.Wrap(err, "styling header")
		}
	}

	for i, row := range t.Rows {
		row := row
		cell, err := excelize.CoordinatesToCellName(1, i+4)
		if err != nil {
			return errors.Wrap(err, "row coordinates")
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrapf(err, "writing row %d", i+1)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return errors.Wrap(err, "writing workbook")
	}
	return nil
}
