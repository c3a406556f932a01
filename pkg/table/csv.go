package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// CSVOptions describes how a delimited file is laid out.
type CSVOptions struct {
	Name            string
	Separator       rune
	HasHeaders      bool
	PatientsAreRows bool
}

// ReadCSV reads a delimited source into a typed table. Sources with patients
// in columns are transposed before headers are taken, so the result always
// has one row per patient.
func ReadCSV(r io.Reader, opts CSVOptions) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	if opts.Separator != 0 {
		reader.Comma = opts.Separator
	}

	matrix, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv %q: %w", opts.Name, err)
	}
	if len(matrix) > 0 && len(matrix[0]) > 0 {
		matrix[0][0] = strings.TrimPrefix(matrix[0][0], "\ufeff")
	}
	return FromRows(matrix, opts)
}

// FromRows builds a typed table from rows of raw text laid out as opts
// describes. Blank rows are dropped.
func FromRows(matrix [][]string, opts CSVOptions) (*Table, error) {
	matrix = dropBlankRows(matrix)
	if !opts.PatientsAreRows {
		matrix = transpose(matrix)
	}

	tbl := fromMatrix(opts.Name, matrix, opts.HasHeaders)
	if err := tbl.Validate(); err != nil {
		return nil, err
	}
	return tbl, nil
}

// ReadCSVFile opens path and reads it with ReadCSV. The table is named after
// the file when opts.Name is empty.
func ReadCSVFile(path string, opts CSVOptions) (*Table, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if opts.Name == "" {
		opts.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return ReadCSV(f, opts)
}

func dropBlankRows(matrix [][]string) [][]string {
	out := matrix[:0]
	for _, row := range matrix {
		blank := true
		for _, v := range row {
			if strings.TrimSpace(v) != "" {
				blank = false
				break
			}
		}
		if !blank {
			out = append(out, row)
		}
	}
	return out
}
