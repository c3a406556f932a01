package table

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, sheets map[string][][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	first := true
	for name, rows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName("Sheet1", name))
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			row := row
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}
	path := filepath.Join(t.TempDir(), "cohort.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestReadExcelFileTypesCellsLikeCSV(t *testing.T) {
	path := writeWorkbook(t, map[string][][]interface{}{
		"patients": {
			{"subject_id", "age", "alive"},
			{"P001", 5, "TRUE"},
			{},
			{"P002", 12, "FALSE"},
		},
	})

	tbl, err := ReadExcelFile(path, "patients", CSVOptions{HasHeaders: true, PatientsAreRows: true})
	require.NoError(t, err)
	assert.Equal(t, "patients", tbl.Name)
	assert.Equal(t, []string{"subject_id", "age", "alive"}, tbl.Headers())
	assert.Equal(t, 2, tbl.Height(), "blank rows are dropped")

	age, _ := tbl.Column("age")
	assert.Equal(t, Int, age.Type)
	alive, _ := tbl.Column("alive")
	assert.Equal(t, Bool, alive.Type)
	assert.Equal(t, "TRUE", alive.Cells[0].Source())
}

func TestReadExcelFilePatientsAsColumns(t *testing.T) {
	path := writeWorkbook(t, map[string][][]interface{}{
		"wide": {
			{"subject_id", "P001", "P002"},
			{"hpo", "HP:0001250", "HP:0000118"},
		},
	})

	tbl, err := ReadExcelFile(path, "", CSVOptions{Name: "features", HasHeaders: true})
	require.NoError(t, err)
	assert.Equal(t, "features", tbl.Name)
	assert.Equal(t, []string{"subject_id", "hpo"}, tbl.Headers())
	assert.Equal(t, 2, tbl.Height())
}

func TestReadExcelFileUnknownSheet(t *testing.T) {
	path := writeWorkbook(t, map[string][][]interface{}{"patients": {{"subject_id"}, {"P001"}}})
	_, err := ReadExcelFile(path, "missing", CSVOptions{HasHeaders: true, PatientsAreRows: true})
	assert.Error(t, err)
}
