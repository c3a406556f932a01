package table

import (
	"strconv"
	"strings"
	"time"
)

// Kind is the scalar type of a cell or of a whole column.
type Kind uint8

const (
	Null Kind = iota
	String
	Bool
	Int
	Float
	Date
	Datetime
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case String:
		return "string"
	case Bool:
		return "boolean"
	case Int:
		return "integer"
	case Float:
		return "float"
	case Date:
		return "date"
	case Datetime:
		return "datetime"
	default:
		return "unknown"
	}
}

// Cell is one typed value. A cell produced by multi-value expansion keeps its
// terms in Items and has Kind String. Cells read from a source keep the text
// they were parsed from.
type Cell struct {
	Kind  Kind
	Label string
	Items []Cell

	src string
	s   string
	i int64
	f float64
	b bool
	t time.Time
}

func NullCell() Cell                { return Cell{} }
func Str(s string) Cell             { return Cell{Kind: String, s: s} }
func IntCell(i int64) Cell          { return Cell{Kind: Int, i: i} }
func FloatCell(f float64) Cell      { return Cell{Kind: Float, f: f} }
func BoolCell(b bool) Cell          { return Cell{Kind: Bool, b: b} }
func DateCell(t time.Time) Cell     { return Cell{Kind: Date, t: t} }
func DatetimeCell(t time.Time) Cell { return Cell{Kind: Datetime, t: t} }

// Multi builds a multi-valued cell from the given terms.
func Multi(terms []string) Cell {
	items := make([]Cell, 0, len(terms))
	for _, term := range terms {
		items = append(items, Str(term))
	}
	return Cell{Kind: String, Items: items}
}

// WithLabel returns a copy of c carrying a canonical label.
func (c Cell) WithLabel(label string) Cell {
	c.Label = label
	return c
}

// WithSource returns a copy of c remembering the text it was parsed from.
func (c Cell) WithSource(raw string) Cell {
	c.src = strings.TrimSpace(raw)
	return c
}

// Source returns the text the cell was read from, or its canonical text when
// the cell was built in memory.
func (c Cell) Source() string {
	if c.src != "" && c.Items == nil {
		return c.src
	}
	return c.String()
}

// IsNull reports whether the cell carries no value. Blank strings count as null.
func (c Cell) IsNull() bool {
	switch c.Kind {
	case Null:
		return true
	case String:
		if c.Items != nil {
			return len(c.Items) == 0
		}
		return strings.TrimSpace(c.s) == ""
	default:
		return false
	}
}

// IsMulti reports whether the cell holds an expanded term list.
func (c Cell) IsMulti() bool {
	return c.Items != nil
}

// Values returns the terms of a multi-valued cell, or the cell itself.
func (c Cell) Values() []Cell {
	if c.Items != nil {
		return c.Items
	}
	return []Cell{c}
}

// String renders the cell in its canonical text form. Null renders as "".
func (c Cell) String() string {
	switch c.Kind {
	case String:
		if c.Items != nil {
			parts := make([]string, len(c.Items))
			for i, item := range c.Items {
				parts[i] = item.String()
			}
			return strings.Join(parts, ";")
		}
		return strings.TrimSpace(c.s)
	case Bool:
		return strconv.FormatBool(c.b)
	case Int:
		return strconv.FormatInt(c.i, 10)
	case Float:
		return strconv.FormatFloat(c.f, 'f', -1, 64)
	case Date:
		return c.t.Format(DateLayout)
	case Datetime:
		return c.t.Format(time.RFC3339)
	default:
		return ""
	}
}

func (c Cell) AsFloat() (float64, bool) {
	switch c.Kind {
	case Float:
		return c.f, true
	case Int:
		return float64(c.i), true
	case String:
		f, err := strconv.ParseFloat(c.String(), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func (c Cell) AsInt() (int64, bool) {
	switch c.Kind {
	case Int:
		return c.i, true
	case Float:
		if c.f == float64(int64(c.f)) {
			return int64(c.f), true
		}
		return 0, false
	case String:
		i, err := strconv.ParseInt(c.String(), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func (c Cell) AsBool() (bool, bool) {
	switch c.Kind {
	case Bool:
		return c.b, true
	case String:
		b, err := strconv.ParseBool(strings.ToLower(c.String()))
		return b, err == nil
	default:
		return false, false
	}
}

// AsTime returns the instant of a date or datetime cell, parsing string cells
// with the accepted date and datetime layouts.
func (c Cell) AsTime() (time.Time, bool) {
	switch c.Kind {
	case Date, Datetime:
		return c.t, true
	case String:
		if t, ok := ParseDate(c.String()); ok {
			return t, true
		}
		return ParseDatetime(c.String())
	default:
		return time.Time{}, false
	}
}

// Equal compares two cells by kind and canonical text.
func (c Cell) Equal(other Cell) bool {
	if c.IsNull() && other.IsNull() {
		return true
	}
	return c.Kind == other.Kind && c.String() == other.String()
}
