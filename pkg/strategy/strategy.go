// Package strategy holds the cell transformations applied to bound tables
// before collection. Each strategy decides for itself which columns it
// touches; data problems go to the run report and never abort the run.
package strategy

import (
	"context"
	"fmt"

	"github.com/synaptica-ai/phenoxtract/pkg/common/logger"
	"github.com/synaptica-ai/phenoxtract/pkg/extract"
	"github.com/synaptica-ai/phenoxtract/pkg/manifest"
	"github.com/synaptica-ai/phenoxtract/pkg/ontology"
	"github.com/synaptica-ai/phenoxtract/pkg/resolver"
)

// Env is the run-scoped state shared by strategies. Tables lists every
// bound table of the run so cross-table lookups such as dates of birth work.
type Env struct {
	Ontologies *ontology.Registry
	Report     *extract.Report
	Tables     []*resolver.TableContext
}

func (e *Env) report(err error) {
	if e.Report != nil {
		e.Report.Add(err)
	}
}

// Strategy transforms one table in place. A returned error aborts the run;
// per-cell problems are added to env.Report instead.
type Strategy interface {
	Name() string
	Transform(ctx context.Context, tc *resolver.TableContext, env *Env) error
}

// Build instantiates the strategy described by cfg.
func Build(cfg manifest.StrategyConfig) (Strategy, error) {
	switch cfg.Name {
	case manifest.StrategyAliasMap:
		return AliasMap{}, nil
	case manifest.StrategyDateToAge:
		return DateToAge{}, nil
	case manifest.StrategyAgeToISO8601:
		return AgeToISO8601{}, nil
	case manifest.StrategyMultiHpoColExpansion:
		return MultiHpoColExpansion{}, nil
	case manifest.StrategyMapping:
		if cfg.Mapping == nil {
			return nil, extract.ConfigErrorf("transform_strategies", "mapping strategy needs a mapping")
		}
		return NewMapping(*cfg.Mapping)
	case manifest.StrategyOntologyNormaliser:
		if cfg.Normaliser == nil {
			return nil, extract.ConfigErrorf("transform_strategies", "ontology_normaliser needs resource and concept")
		}
		return NewOntologyNormaliser(*cfg.Normaliser), nil
	}
	return nil, extract.ConfigErrorf("transform_strategies", "unknown strategy %q", cfg.Name)
}

// Engine applies strategies in declared order. There are no implicit strategies.
type Engine struct {
	strategies []Strategy
}

func NewEngine(cfgs []manifest.StrategyConfig) (*Engine, error) {
	e := &Engine{}
	for i, cfg := range cfgs {
		s, err := Build(cfg)
		if err != nil {
			return nil, fmt.Errorf("transform_strategies[%d]: %w", i, err)
		}
		e.strategies = append(e.strategies, s)
	}
	return e, nil
}

func (e *Engine) Strategies() []Strategy {
	return e.strategies
}

// Apply runs every strategy over every table. Each strategy sees the output
// of the previous one on all tables.
func (e *Engine) Apply(ctx context.Context, tables []*resolver.TableContext, env *Env) error {
	for _, s := range e.strategies {
		for _, tc := range tables {
			if err := ctx.Err(); err != nil {
				return err
			}
			before := 0
			if env.Report != nil {
				before = env.Report.Len()
			}
			if err := s.Transform(ctx, tc, env); err != nil {
				return fmt.Errorf("%s on table %s: %w", s.Name(), tc.Name(), err)
			}
			if env.Report != nil {
				if added := env.Report.Len() - before; added > 0 {
					logger.Log.WithFields(map[string]interface{}{
						"strategy": s.Name(),
						"table":    tc.Name(),
						"issues":   added,
					}).Debug("strategy reported data issues")
				}
			}
		}
	}
	return nil
}
