package strategy

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/synaptica-ai/phenoxtract/pkg/concept"
	"github.com/synaptica-ai/phenoxtract/pkg/extract"
	"github.com/synaptica-ai/phenoxtract/pkg/manifest"
	"github.com/synaptica-ai/phenoxtract/pkg/resolver"
	"github.com/synaptica-ai/phenoxtract/pkg/table"
)

var dateLike = regexp.MustCompile(`^\d{1,4}[-./]\d{1,2}[-./]\d{1,4}`)

// DateToAge rewrites dates found in age columns as the patient's age at that
// date, using the date of birth from any table of the run.
type DateToAge struct{}

func (DateToAge) Name() string { return manifest.StrategyDateToAge }

func (DateToAge) Transform(_ context.Context, tc *resolver.TableContext, env *Env) error {
	var targets []*resolver.Resolved
	for _, rc := range tc.Contexts {
		if rc.Data.IsTimeElement() && rc.Data.Time == concept.Age {
			targets = append(targets, rc)
		}
	}
	if len(targets) == 0 {
		return nil
	}

	births := datesOfBirth(tc, env)
	for _, rc := range targets {
		for _, col := range rc.Columns(tc.Table) {
			changed := false
			for row, cell := range col.Cells {
				if cell.IsNull() {
					continue
				}
				date, isDate, err := cellDate(cell)
				if !isDate {
					continue
				}
				raw := cell.String()
				if err != nil {
					env.report(extract.NewFormatError(tc.Locate(col, row, raw), err))
					continue
				}

				changed = true
				dob, ok := births[tc.SubjectAt(row)]
				if !ok {
					col.Cells[row] = table.NullCell()
					continue
				}
				if date.Before(dob) {
					env.report(extract.NewValidationError(tc.Locate(col, row, raw),
						fmt.Errorf("date precedes date of birth %s", dob.Format(table.DateLayout))))
					col.Cells[row] = table.NullCell()
					continue
				}
				col.Cells[row] = table.Str(ElapsedISO8601(dob, date))
			}
			if changed {
				col.Retype()
			}
		}
	}
	return nil
}

// cellDate reports whether cell holds a date and parses it. A date-shaped
// string that no layout accepts is returned with an error.
func cellDate(cell table.Cell) (time.Time, bool, error) {
	switch cell.Kind {
	case table.Date, table.Datetime:
		t, _ := cell.AsTime()
		return t, true, nil
	case table.String:
		raw := cell.String()
		if !dateLike.MatchString(raw) {
			return time.Time{}, false, nil
		}
		if t, ok := cell.AsTime(); ok {
			return t, true, nil
		}
		return time.Time{}, true, fmt.Errorf("unrecognised date %q: %w", raw, extract.ErrUnparseable)
	}
	return time.Time{}, false, nil
}

func datesOfBirth(current *resolver.TableContext, env *Env) map[string]time.Time {
	tables := env.Tables
	if len(tables) == 0 {
		tables = []*resolver.TableContext{current}
	}
	out := make(map[string]time.Time)
	for _, tc := range tables {
		for _, rc := range tc.WithData(concept.DateOfBirth) {
			for _, col := range rc.Columns(tc.Table) {
				for row, cell := range col.Cells {
					subject := tc.SubjectAt(row)
					if subject == "" {
						continue
					}
					if _, seen := out[subject]; seen {
						continue
					}
					if t, ok := cell.AsTime(); ok {
						out[subject] = t
					}
				}
			}
		}
	}
	return out
}

// ElapsedISO8601 formats the calendar distance between from and to as an
// ISO-8601 duration, omitting zero components.
func ElapsedISO8601(from, to time.Time) string {
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	to = time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)

	years := to.Year() - from.Year()
	months := int(to.Month()) - int(from.Month())
	days := to.Day() - from.Day()
	if days < 0 {
		months--
		// days in the month preceding to
		days += time.Date(to.Year(), to.Month(), 0, 0, 0, 0, 0, time.UTC).Day()
	}
	if months < 0 {
		years--
		months += 12
	}

	var b strings.Builder
	b.WriteString("P")
	if years > 0 {
		fmt.Fprintf(&b, "%dY", years)
	}
	if months > 0 {
		fmt.Fprintf(&b, "%dM", months)
	}
	if days > 0 {
		fmt.Fprintf(&b, "%dD", days)
	}
	if b.Len() == 1 {
		return "P0D"
	}
	return b.String()
}
