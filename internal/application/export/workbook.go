package export

import (
	"github.com/xuri/excelize/v2"

	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

// workbook is a thin helper over excelize that appends whole sheets of string
// rows and drops the default sheet on write.
type workbook struct {
	file   *excelize.File
	sheets int
}

func newWorkbook() *workbook {
	return &workbook{file: excelize.NewFile()}
}

// addSheet creates a sheet and writes the header rows followed by the data
// rows, one SetSheetRow call per row.
func (w *workbook) addSheet(name string, header [][]string, rows [][]string) error {
	if _, err := w.file.NewSheet(name); err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "failed to create sheet "+name)
	}
	w.sheets++

	line := 1
	for _, row := range append(header, rows...) {
		cells := make([]interface{}, len(row))
		for i, v := range row {
			cells[i] = v
		}
		axis, err := excelize.JoinCellName("A", line)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeExportFailed, "failed to compute cell name")
		}
		if err := w.file.SetSheetRow(name, axis, &cells); err != nil {
			return errors.Wrap(err, errors.ErrCodeExportFailed, "failed to write sheet "+name)
		}
		line++
	}
	return nil
}

// bytes drops the default sheet and serializes the workbook.
func (w *workbook) bytes() ([]byte, error) {
	if w.sheets > 0 {
		// Excelize seeds every new file with "Sheet1"; remove it so only the
		// sheets we wrote remain.
		if err := w.file.DeleteSheet("Sheet1"); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeExportFailed, "failed to drop default sheet")
		}
	}
	buf, err := w.file.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExportFailed, "failed to serialize workbook")
	}
	return buf.Bytes(), nil
}
