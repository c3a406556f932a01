package table

import (
	"fmt"
	"strconv"
	"strings"
)

// Column is one typed series of a table. Canonical carries the ontology id of
// the header once a header concept has been normalised.
type Column struct {
	Header         string
	Type           Kind
	Cells          []Cell
	Canonical      string
	CanonicalLabel string
}

// HeaderTerm returns the normalised header id when present, else the raw header.
func (c *Column) HeaderTerm() string {
	if c.Canonical != "" {
		return c.Canonical
	}
	return strings.TrimSpace(c.Header)
}

// Retype recomputes the column type from its cells.
func (c *Column) Retype() {
	c.Type = commonKind(c.Cells)
}

// Table is a named collection of equally long columns. Rows are patients.
type Table struct {
	Name    string
	Columns []*Column
}

func New(name string, columns ...*Column) *Table {
	return &Table{Name: name, Columns: columns}
}

// NewColumn builds a column from raw strings, inferring its type.
func NewColumn(header string, raw []string) *Column {
	cells, kind := inferCells(raw)
	return &Column{Header: header, Type: kind, Cells: cells}
}

func (t *Table) Height() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Cells)
}

func (t *Table) Width() int {
	return len(t.Columns)
}

func (t *Table) Headers() []string {
	headers := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		headers[i] = col.Header
	}
	return headers
}

// Column returns the first column whose header equals name.
func (t *Table) Column(name string) (*Column, bool) {
	for _, col := range t.Columns {
		if col.Header == name {
			return col, true
		}
	}
	return nil, false
}

// Cell returns the cell at row of column idx, or a null cell when out of range.
func (t *Table) Cell(idx, row int) Cell {
	if idx < 0 || idx >= len(t.Columns) {
		return NullCell()
	}
	cells := t.Columns[idx].Cells
	if row < 0 || row >= len(cells) {
		return NullCell()
	}
	return cells[row]
}

// Validate checks that every column has the same height and a header.
func (t *Table) Validate() error {
	height := t.Height()
	for i, col := range t.Columns {
		if col.Header == "" {
			return fmt.Errorf("table %q: column %d has no header", t.Name, i)
		}
		if len(col.Cells) != height {
			return fmt.Errorf("table %q: column %q has %d cells, expected %d", t.Name, col.Header, len(col.Cells), height)
		}
	}
	return nil
}

// Transpose swaps rows and columns, header row included, and re-infers the
// column types. Applying it twice restores the original layout up to typing.
func (t *Table) Transpose() *Table {
	matrix := make([][]string, 0, t.Height()+1)
	matrix = append(matrix, t.Headers())
	for row := 0; row < t.Height(); row++ {
		line := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			line[i] = col.Cells[row].Source()
		}
		matrix = append(matrix, line)
	}
	return fromMatrix(t.Name, transpose(matrix), true)
}

func fromMatrix(name string, matrix [][]string, hasHeaders bool) *Table {
	width := 0
	for _, row := range matrix {
		if len(row) > width {
			width = len(row)
		}
	}

	var headers []string
	body := matrix
	if hasHeaders && len(matrix) > 0 {
		headers = matrix[0]
		body = matrix[1:]
	}

	tbl := &Table{Name: name, Columns: make([]*Column, 0, width)}
	for c := 0; c < width; c++ {
		header := strconv.Itoa(c)
		if hasHeaders && c < len(headers) && strings.TrimSpace(headers[c]) != "" {
			header = strings.TrimSpace(headers[c])
		}
		raw := make([]string, len(body))
		for r, row := range body {
			if c < len(row) {
				raw[r] = row[c]
			}
		}
		tbl.Columns = append(tbl.Columns, NewColumn(header, raw))
	}
	return tbl
}

func transpose(matrix [][]string) [][]string {
	width := 0
	for _, row := range matrix {
		if len(row) > width {
			width = len(row)
		}
	}
	out := make([][]string, width)
	for c := range out {
		out[c] = make([]string, len(matrix))
		for r, row := range matrix {
			if c < len(row) {
				out[c][r] = row[c]
			}
		}
	}
	return out
}
