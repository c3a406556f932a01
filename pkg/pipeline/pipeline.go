// Package pipeline runs one extraction: read and bind the tables of a
// manifest, transform them, collect patient records, build phenopackets and
// hand them to the configured loaders.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/synaptica-ai/phenoxtract/pkg/collector"
	"github.com/synaptica-ai/phenoxtract/pkg/common/logger"
	"github.com/synaptica-ai/phenoxtract/pkg/common/models"
	"github.com/synaptica-ai/phenoxtract/pkg/extract"
	"github.com/synaptica-ai/phenoxtract/pkg/grouper"
	"github.com/synaptica-ai/phenoxtract/pkg/lint"
	"github.com/synaptica-ai/phenoxtract/pkg/loader"
	"github.com/synaptica-ai/phenoxtract/pkg/manifest"
	"github.com/synaptica-ai/phenoxtract/pkg/observability/metrics"
	"github.com/synaptica-ai/phenoxtract/pkg/ontology"
	"github.com/synaptica-ai/phenoxtract/pkg/record"
	"github.com/synaptica-ai/phenoxtract/pkg/resolver"
	"github.com/synaptica-ai/phenoxtract/pkg/strategy"
	"github.com/synaptica-ai/phenoxtract/pkg/table"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	Ontology ontology.Options

	// Loader replaces the loaders declared in the manifest.
	Loader loader.Loader

	// DryRun stops after building packets.
	DryRun bool

	// RunID is generated when empty.
	RunID string
	Now   func() time.Time
}

type Result struct {
	RunID   string
	Store   *record.Store
	Packets []record.Phenopacket
	Report  *extract.Report
	Summary models.RunSummary
}

// RunFile loads the manifest at path and runs it.
func RunFile(ctx context.Context, path string, opts Options) (*Result, error) {
	m, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}
	return Run(ctx, m, opts)
}

// Run executes m. Configuration problems and loader failures are returned;
// data problems are accumulated in Result.Report and do not stop the run.
func Run(ctx context.Context, m *manifest.Manifest, opts Options) (res *Result, err error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	started := now().UTC()
	report := extract.NewReport()
	res = &Result{RunID: runID, Store: record.NewStore(), Report: report}

	log := logger.ForRun(runID).WithField("cohort", m.Pipeline.MetaData.CohortName)
	log.Info("extraction run started")
	metrics.ObserveRunStarted()

	var tables []*resolver.TableContext
	defer func() {
		res.Summary = summarise(res, m, len(tables), started, now().UTC())
		observe(res, tables, err == nil, err == nil && !opts.DryRun)
		if err != nil {
			log.WithError(err).Error("extraction run failed")
			return
		}
		log.WithFields(map[string]interface{}{
			"patients": res.Store.Len(),
			"packets":  len(res.Packets),
			"issues":   report.Len(),
		}).Info("extraction run finished")
	}()

	engine, err := strategy.NewEngine(m.Pipeline.TransformStrategies)
	if err != nil {
		return res, err
	}
	registry, err := ontology.OpenAll(ctx, m, opts.Ontology)
	if err != nil {
		return res, err
	}

	tables, err = Prepare(ctx, m)
	if err != nil {
		return res, err
	}
	log.WithField("tables", len(tables)).Info("tables bound")

	env := &strategy.Env{Ontologies: registry, Report: report, Tables: tables}
	if err = engine.Apply(ctx, tables, env); err != nil {
		return res, err
	}

	if err = collect(ctx, tables, res.Store, report, registry); err != nil {
		return res, err
	}

	if !m.Pipeline.Lint.Disabled {
		fixes := lint.FromRegistry(registry, m.Pipeline.Lint.Fix).Lint(res.Store, report)
		log.WithField("fixes", fixes).Info("records linted")
	}

	builder := record.NewBuilder(m.Pipeline.MetaData, m.Pipeline.Resources)
	builder.Now = now
	res.Packets = builder.Build(res.Store)

	if opts.DryRun {
		return res, nil
	}
	err = load(ctx, m, opts.Loader, res.Packets)
	return res, err
}

// Prepare reads and binds every data source concurrently. The result keeps
// the declared order.
func Prepare(ctx context.Context, m *manifest.Manifest) ([]*resolver.TableContext, error) {
	out := make([]*resolver.TableContext, len(m.DataSources))
	g, gctx := errgroup.WithContext(ctx)
	for i, ds := range m.DataSources {
		i, ds := i, ds
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tc, err := prepareSource(m, ds)
			if err != nil {
				return extract.NewConfigError(fmt.Sprintf("data_sources[%d]", i), err)
			}
			out[i] = tc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func prepareSource(m *manifest.Manifest, ds manifest.DataSource) (*resolver.TableContext, error) {
	var tbl *table.Table
	var err error
	switch ds.Type {
	case manifest.SourceExcel:
		tbl, err = table.ReadExcelFile(m.Path(ds.Source), ds.Sheet, ds.CSVOptions())
	default:
		tbl, err = table.ReadCSVFile(m.Path(ds.Source), ds.CSVOptions())
	}
	if err != nil {
		return nil, err
	}
	tc, err := resolver.Bind(tbl, ds.Contexts)
	if err != nil {
		return nil, err
	}
	logger.Log.WithFields(map[string]interface{}{
		"table":    tbl.Name,
		"rows":     tbl.Height(),
		"columns":  tbl.Width(),
		"contexts": len(tc.Contexts),
	}).Debug("table bound")
	return tc, nil
}

// collect folds the tables into store one after another in declared order.
func collect(ctx context.Context, tables []*resolver.TableContext, store *record.Store, report *extract.Report, registry *ontology.Registry) error {
	c := collector.New(store, report, registry)
	ledger := grouper.NewLedger()
	for _, tc := range tables {
		part, err := grouper.Group(tc.Name(), tc.Contexts)
		report.Add(err)
		part, err = ledger.Check(tc.Name(), part)
		report.Add(err)
		if err := c.Collect(ctx, tc, part); err != nil {
			return err
		}
	}
	return nil
}

func load(ctx context.Context, m *manifest.Manifest, override loader.Loader, packets []record.Phenopacket) error {
	l := override
	if l == nil {
		loaders, err := loader.FromConfig(m.Pipeline.Loader, m.Path)
		if err != nil {
			return err
		}
		defer loaders.Close()
		l = loaders
	}
	if err := l.Load(ctx, packets); err != nil {
		return fmt.Errorf("load: %w", err)
	}
	return nil
}

func summarise(res *Result, m *manifest.Manifest, tables int, started, finished time.Time) models.RunSummary {
	issues := make(map[string]int)
	for kind, n := range res.Report.Counts() {
		issues[string(kind)] = n
	}
	return models.RunSummary{
		RunID:      res.RunID,
		Cohort:     m.Pipeline.MetaData.CohortName,
		Tables:     tables,
		Patients:   res.Store.Len(),
		Packets:    len(res.Packets),
		Issues:     issues,
		StartedAt:  started,
		FinishedAt: finished,
	}
}

func observe(res *Result, tables []*resolver.TableContext, ok, loaded bool) {
	rows := 0
	for _, tc := range tables {
		if tc != nil {
			rows += tc.Table.Height()
		}
	}
	skipped := 0
	for _, issue := range res.Report.Issues() {
		if errors.Is(issue.Err, extract.ErrMissingSubject) {
			skipped++
		}
	}
	packets := 0
	if loaded {
		packets = len(res.Packets)
	}
	metrics.ObserveRun(ok, len(tables), rows-skipped, skipped, packets, res.Summary.Duration().Milliseconds())
	metrics.ObserveIssues(res.Summary.Issues)
}
