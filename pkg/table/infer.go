package table

import (
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical rendering of date cells.
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	"2006-01-02",
	"2006.01.02",
	"2006/01/02",
	"01/02/2006",
	"02-01-2006",
	"02.01.2006",
}

var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006.01.02 15:04:05",
	"01/02/2006 15:04:05",
	"02.01.2006 15:04:05",
}

// ParseDate parses s with the accepted date layouts.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseDatetime parses s with the accepted datetime layouts.
func ParseDatetime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

type parser func(string) (Cell, bool)

// Candidate kinds in inference order. A column takes the first kind that
// parses every non-empty value.
var parsers = []struct {
	kind  Kind
	parse parser
}{
	{Bool, parseBool},
	{Int, parseInt},
	{Float, parseFloat},
	{Date, func(s string) (Cell, bool) {
		t, ok := ParseDate(s)
		return DateCell(t), ok
	}},
	{Datetime, func(s string) (Cell, bool) {
		t, ok := ParseDatetime(s)
		return DatetimeCell(t), ok
	}},
}

func parseBool(s string) (Cell, bool) {
	switch strings.ToLower(s) {
	case "true":
		return BoolCell(true), true
	case "false":
		return BoolCell(false), true
	}
	return Cell{}, false
}

// parseInt rejects values that would not round-trip, e.g. "007", so that
// zero-padded identifiers stay strings.
func parseInt(s string) (Cell, bool) {
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil || strconv.FormatInt(i, 10) != strings.TrimPrefix(s, "+") {
		return Cell{}, false
	}
	return IntCell(i), true
}

func parseFloat(s string) (Cell, bool) {
	if !strings.ContainsAny(s, "0123456789") || leadingZero(s) {
		return Cell{}, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Cell{}, false
	}
	return FloatCell(f), true
}

func leadingZero(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) > 1 && s[0] == '0' && s[1] >= '0' && s[1] <= '9'
}

// ParseCell infers the kind of a single value.
func ParseCell(raw string) Cell {
	s := strings.TrimSpace(raw)
	if s == "" {
		return NullCell()
	}
	for _, p := range parsers {
		if cell, ok := p.parse(s); ok {
			return cell.WithSource(s)
		}
	}
	return Str(s)
}

func inferCells(raw []string) ([]Cell, Kind) {
	cells := make([]Cell, len(raw))
	for _, p := range parsers {
		ok := true
		seen := false
		for i, v := range raw {
			s := strings.TrimSpace(v)
			if s == "" {
				cells[i] = NullCell()
				continue
			}
			seen = true
			cell, parsed := p.parse(s)
			if !parsed {
				ok = false
				break
			}
			cells[i] = cell.WithSource(s)
		}
		if !seen {
			return cells, Null
		}
		if ok {
			return cells, p.kind
		}
	}
	for i, v := range raw {
		if s := strings.TrimSpace(v); s != "" {
			cells[i] = Str(s)
		} else {
			cells[i] = NullCell()
		}
	}
	return cells, String
}

func commonKind(cells []Cell) Kind {
	kind := Null
	for _, c := range cells {
		if c.IsNull() {
			continue
		}
		if kind == Null {
			kind = c.Kind
			continue
		}
		if c.Kind != kind {
			if (kind == Int && c.Kind == Float) || (kind == Float && c.Kind == Int) {
				kind = Float
				continue
			}
			return String
		}
	}
	return kind
}
