package table

import (
	"fmt"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// ReadExcelFile reads one worksheet of an xlsx workbook. An empty sheet
// selects the active one. Cells are read as displayed, so the typing matches
// a CSV export of the same sheet. The table is named after the sheet when
// opts.Name is empty.
func ReadExcelFile(path, sheet string, opts CSVOptions) (*Table, error) {
	f, err := excelize.OpenFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(f.GetActiveSheetIndex())
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("workbook %s has no sheet %q", path, sheet)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q of %s: %w", sheet, path, err)
	}
	if opts.Name == "" {
		opts.Name = sheet
	}
	return FromRows(rows, opts)
}
