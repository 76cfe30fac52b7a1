package planning

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/jwalitptl/clinic-api/internal/model"
)

const sheetName = "Planning"

// ExportXLSX writes planning as a spreadsheet: one row per hour, one column
// per day, booked cells holding the patient's name.
func ExportXLSX(planning *model.WeeklyPlanning, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := setCell(f, 1, 1, "Hour"); err != nil {
		return err
	}
	for d, day := range planning.Days {
		if err := setCell(f, d+2, 1, day.Date); err != nil {
			return err
		}
	}
	last, err := excelize.CoordinatesToCellName(len(planning.Days)+1, 1)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}

	for i, hour := range planning.Hours {
		row := i + 2
		if err := setCell(f, 1, row, fmt.Sprintf("%02d:00", hour)); err != nil {
			return err
		}
		for d, day := range planning.Days {
			if i >= len(day.Cells) || day.Cells[i].Reservation == nil {
				continue
			}
			r := day.Cells[i].Reservation
			label := r.PatientLastName + " " + r.PatientFirstName
			if r.Paid {
				label += " (paid)"
			}
			if err := setCell(f, d+2, row, label); err != nil {
				return err
			}
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(planning.Days) + 1)
	if err != nil {
		return fmt.Errorf("failed to convert column number: %w", err)
	}
	if err := f.SetColWidth(sheetName, "B", lastCol, 24); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write spreadsheet: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetCellValue(sheetName, cell, value); err != nil {
		return fmt.Errorf("failed to set cell %s: %w", cell, err)
	}
	return nil
}
