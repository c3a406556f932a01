package strategy

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/synaptica-ai/phenoxtract/pkg/concept"
	"github.com/synaptica-ai/phenoxtract/pkg/extract"
	"github.com/synaptica-ai/phenoxtract/pkg/manifest"
	"github.com/synaptica-ai/phenoxtract/pkg/record"
	"github.com/synaptica-ai/phenoxtract/pkg/resolver"
	"github.com/synaptica-ai/phenoxtract/pkg/table"
)

const maxAgeYears = 150

var ageWithUnit = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(y|yr|yrs|year|years|m|mo|mos|month|months|w|wk|wks|week|weeks|d|day|days)$`)

// AgeToISO8601 rewrites plain ages in age columns as ISO-8601 durations.
// Durations already in ISO form are kept.
type AgeToISO8601 struct{}

func (AgeToISO8601) Name() string { return manifest.StrategyAgeToISO8601 }

func (AgeToISO8601) Transform(_ context.Context, tc *resolver.TableContext, env *Env) error {
	for _, rc := range tc.Contexts {
		if !rc.Data.IsTimeElement() || rc.Data.Time != concept.Age {
			continue
		}
		for _, col := range rc.Columns(tc.Table) {
			for row, cell := range col.Cells {
				if cell.IsNull() {
					continue
				}
				iso, err := AgeToDuration(cell)
				if err != nil {
					env.report(extract.NewFormatError(tc.Locate(col, row, cell.String()), err))
					continue
				}
				col.Cells[row] = table.Str(iso)
			}
			col.Retype()
		}
	}
	return nil
}

// AgeToDuration converts one age cell. Integer years must lie within 0..150.
func AgeToDuration(cell table.Cell) (string, error) {
	raw := cell.String()
	if record.IsISO8601Duration(strings.ToUpper(raw)) {
		return strings.ToUpper(raw), nil
	}
	if years, ok := cell.AsFloat(); ok {
		return yearsToDuration(years, raw)
	}

	m := ageWithUnit.FindStringSubmatch(strings.ToLower(raw))
	if m == nil {
		return "", fmt.Errorf("unrecognised age %q: %w", raw, extract.ErrUnparseable)
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return "", fmt.Errorf("unrecognised age %q: %w", raw, extract.ErrUnparseable)
	}
	switch m[2][0] {
	case 'y':
		return yearsToDuration(n, raw)
	case 'm':
		return wholeUnit(n, "M", raw)
	case 'w':
		return wholeUnit(n, "W", raw)
	default:
		return wholeUnit(n, "D", raw)
	}
}

func yearsToDuration(years float64, raw string) (string, error) {
	if years < 0 || years > maxAgeYears || math.IsNaN(years) {
		return "", fmt.Errorf("age %q outside 0..%d years: %w", raw, maxAgeYears, extract.ErrUnparseable)
	}
	whole := math.Floor(years)
	months := int(math.Round((years - whole) * 12))
	if months == 12 {
		whole++
		months = 0
	}
	if months == 0 {
		return fmt.Sprintf("P%dY", int(whole)), nil
	}
	return fmt.Sprintf("P%dY%dM", int(whole), months), nil
}

func wholeUnit(n float64, unit, raw string) (string, error) {
	if n != math.Trunc(n) {
		return "", fmt.Errorf("fractional age %q: %w", raw, extract.ErrUnparseable)
	}
	return fmt.Sprintf("P%d%s", int64(n), unit), nil
}
