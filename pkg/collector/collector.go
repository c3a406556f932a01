// Package collector walks the rows of bound, transformed tables and folds
// them into per-patient records.
package collector

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/synaptica-ai/phenoxtract/pkg/common/logger"
	"github.com/synaptica-ai/phenoxtract/pkg/concept"
	"github.com/synaptica-ai/phenoxtract/pkg/extract"
	"github.com/synaptica-ai/phenoxtract/pkg/grouper"
	"github.com/synaptica-ai/phenoxtract/pkg/ontology"
	"github.com/synaptica-ai/phenoxtract/pkg/record"
	"github.com/synaptica-ai/phenoxtract/pkg/resolver"
	"github.com/synaptica-ai/phenoxtract/pkg/table"
)

// Collector appends the contents of tables to a record store. It is not
// safe for concurrent use; tables are collected one after another.
type Collector struct {
	store    *record.Store
	report   *extract.Report
	registry *ontology.Registry
}

// New returns a collector writing into store. registry may be nil, in which
// case terms are taken as given.
func New(store *record.Store, report *extract.Report, registry *ontology.Registry) *Collector {
	if report == nil {
		report = extract.NewReport()
	}
	return &Collector{store: store, report: report, registry: registry}
}

func (c *Collector) Store() *record.Store {
	return c.store
}

// Collect folds every row of tc into the store. Data problems are added to
// the report; only cancellation is returned.
func (c *Collector) Collect(ctx context.Context, tc *resolver.TableContext, part grouper.Partition) error {
	_, hasSubject := tc.SubjectContext()

	var singular []*resolver.Resolved
	var terms []unit
	for _, rc := range part.Standalone {
		switch {
		case rc.IsSubject():
		case isIndividualField(rc):
			singular = append(singular, rc)
		default:
			terms = append(terms, unit{members: []*resolver.Resolved{rc}, n: rc.Cardinality()})
		}
	}
	for _, b := range part.Blocks {
		terms = append(terms, unit{block: b.ID, members: b.Members, n: b.Cardinality})
	}
	declared := make(map[*resolver.Resolved]int, len(tc.Contexts))
	for i, rc := range tc.Contexts {
		declared[rc] = i
	}
	sort.SliceStable(terms, func(i, j int) bool {
		return declared[terms[i].members[0]] < declared[terms[j].members[0]]
	})

	collected := 0
	for row := 0; row < tc.Table.Height(); row++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		subject := tc.SubjectAt(row)
		if subject == "" {
			reason := extract.ErrMissingSubject
			if !hasSubject {
				reason = fmt.Errorf("table has no subject_id column: %w", extract.ErrMissingSubject)
			}
			c.report.Add(extract.NewCollectionError(extract.Location{Table: tc.Name(), Row: row + 1}, reason))
			continue
		}

		rec := c.store.GetOrCreate(subject)
		r := rowCtx{Collector: c, ctx: ctx, tc: tc, row: row, rec: rec}
		for _, rc := range singular {
			r.individual(rc)
		}
		for _, u := range terms {
			for i := 0; i < u.n; i++ {
				r.entry(u, i)
			}
		}
		collected++
	}

	logger.Log.WithFields(map[string]interface{}{
		"table":     tc.Name(),
		"rows":      tc.Table.Height(),
		"collected": collected,
		"blocks":    len(part.Blocks),
	}).Debug("table collected")
	return nil
}

// unit is a building block, or a standalone term context acting as a block
// of one.
type unit struct {
	block   string
	members []*resolver.Resolved
	n       int
}

// rowCtx is the state for collecting one row of one table.
type rowCtx struct {
	*Collector
	ctx context.Context
	tc  *resolver.TableContext
	row int
	rec *record.PatientRecord
}

func (r *rowCtx) locate(col *table.Column, block, value string) extract.Location {
	loc := r.tc.Locate(col, r.row, value)
	loc.Block = block
	return loc
}

func isIndividualField(rc *resolver.Resolved) bool {
	if !rc.Config.HeaderContext.IsNone() {
		return false
	}
	switch rc.Data.Kind {
	case concept.SubjectSex, concept.DateOfBirth, concept.VitalStatus, concept.LastEncounter,
		concept.TimeOfDeath, concept.CauseOfDeath, concept.SurvivalTimeDays:
		return true
	}
	return false
}

var (
	sexValues    = []string{record.SexMale, record.SexFemale, record.SexOther, record.SexUnknown}
	statusValues = []string{record.StatusAlive, record.StatusDeceased, record.StatusUnknown}
)

// individual writes a singular subject field. The first non-empty value
// wins; a different later value is reported as a conflict.
func (r *rowCtx) individual(rc *resolver.Resolved) {
	ind := &r.rec.Individual
	for _, col := range rc.Columns(r.tc.Table) {
		cell := col.Cells[r.row]
		if cell.IsNull() {
			continue
		}
		raw := cell.String()
		loc := r.locate(col, "", raw)

		switch rc.Data.Kind {
		case concept.SubjectSex:
			if v, ok := canonical(raw, sexValues); ok {
				r.setString(loc, "sex", &ind.Sex, v)
			} else {
				r.report.Add(extract.NewValidationError(loc, fmt.Errorf("sex %q: %w", raw, extract.ErrUnmapped)))
			}

		case concept.DateOfBirth:
			t, ok := cell.AsTime()
			if !ok {
				r.report.Add(extract.NewFormatError(loc, fmt.Errorf("date of birth %q: %w", raw, extract.ErrUnparseable)))
				continue
			}
			r.setString(loc, "date of birth", &ind.DateOfBirth, t.UTC().Format(time.RFC3339))

		case concept.VitalStatus:
			v, ok := canonical(raw, statusValues)
			if !ok {
				r.report.Add(extract.NewValidationError(loc, fmt.Errorf("vital status %q: %w", raw, extract.ErrUnmapped)))
				continue
			}
			r.setString(loc, "vital status", &r.vitalStatus().Status, v)

		case concept.LastEncounter:
			te, err := timeElement(rc.Data, cell)
			if err != nil {
				r.report.Add(extract.NewFormatError(loc, err))
				continue
			}
			r.setTime(loc, "time at last encounter", &ind.TimeAtLastEncounter, te)

		case concept.TimeOfDeath:
			te, err := timeElement(rc.Data, cell)
			if err != nil {
				r.report.Add(extract.NewFormatError(loc, err))
				continue
			}
			r.setTime(loc, "time of death", &r.vitalStatus().TimeOfDeath, te)

		case concept.CauseOfDeath:
			term, ok := r.term(loc, concept.CauseOfDeath, cell)
			if !ok {
				continue
			}
			vs := r.vitalStatus()
			if vs.CauseOfDeath == nil {
				vs.CauseOfDeath = term
			} else if vs.CauseOfDeath.ID != term.ID {
				r.conflict(loc, "cause of death", vs.CauseOfDeath.ID, term.ID)
			}

		case concept.SurvivalTimeDays:
			days, ok := cell.AsInt()
			if !ok || days < 0 {
				r.report.Add(extract.NewFormatError(loc, fmt.Errorf("survival time %q: %w", raw, extract.ErrUnparseable)))
				continue
			}
			vs := r.vitalStatus()
			switch {
			case vs.SurvivalTimeInDays == nil:
				vs.SurvivalTimeInDays = &days
			case *vs.SurvivalTimeInDays != days:
				r.conflict(loc, "survival time", fmt.Sprint(*vs.SurvivalTimeInDays), raw)
			}
		}
	}
}

func (r *rowCtx) vitalStatus() *record.VitalStatus {
	if r.rec.Individual.VitalStatus == nil {
		r.rec.Individual.VitalStatus = &record.VitalStatus{}
	}
	return r.rec.Individual.VitalStatus
}

func (r *rowCtx) setString(loc extract.Location, field string, dst *string, value string) {
	switch *dst {
	case "":
		*dst = value
	case value:
	default:
		r.conflict(loc, field, *dst, value)
	}
}

func (r *rowCtx) setTime(loc extract.Location, field string, dst **record.TimeElement, value *record.TimeElement) {
	switch {
	case *dst == nil:
		*dst = value
	case (*dst).String() != value.String():
		r.conflict(loc, field, (*dst).String(), value.String())
	}
}

func (r *rowCtx) conflict(loc extract.Location, field, have, got string) {
	r.report.Add(extract.NewValidationError(loc,
		fmt.Errorf("%s already %q, got %q: %w", field, have, got, extract.ErrConflictingValue)))
}

func canonical(raw string, allowed []string) (string, bool) {
	for _, v := range allowed {
		if strings.EqualFold(strings.TrimSpace(raw), v) {
			return v, true
		}
	}
	return "", false
}
