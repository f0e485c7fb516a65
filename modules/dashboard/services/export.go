package services

import (
	"io"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/xuri/excelize/v2"
)

var searchExportHeaders = []string{"Type", "ID", "Name", "Email", "Phone", "Assembly", "City", "State", "Description", "Created", "Score"}

// ExportSearchXLSX writes hits as a single-sheet workbook.
func ExportSearchXLSX(w io.Writer, hits []RankedHit) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := "Search"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return errors.Wrap(err, "rename sheet")
	}

	for i, h := range searchExportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	for r, hit := range hits {
		score := ""
		if hit.Distance >= 0 {
			score = strconv.Itoa(hit.Distance)
		}
		row := []string{
			hit.Kind.Title(), hit.ID.String(), hit.Name, hit.Email, hit.Phone,
			hit.Assembly, hit.City, hit.State, hit.Description, hit.CreatedAt, score,
		}
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return errors.Wrap(err, "write workbook")
	}
	return nil
}
