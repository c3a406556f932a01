// Package loader writes built phenopackets to their destinations.
package loader

import (
	"context"
	"errors"
	"fmt"

	"github.com/synaptica-ai/phenoxtract/pkg/common/config"
	"github.com/synaptica-ai/phenoxtract/pkg/common/database"
	"github.com/synaptica-ai/phenoxtract/pkg/common/kafka"
	"github.com/synaptica-ai/phenoxtract/pkg/common/logger"
	"github.com/synaptica-ai/phenoxtract/pkg/extract"
	"github.com/synaptica-ai/phenoxtract/pkg/manifest"
	"github.com/synaptica-ai/phenoxtract/pkg/record"
	"gorm.io/gorm"
)

type Loader interface {
	Name() string
	Load(ctx context.Context, packets []record.Phenopacket) error
}

// Multi fans out to several loaders. Every loader runs even when an earlier
// one fails; the errors are joined.
type Multi []Loader

func (m Multi) Name() string {
	return "multi"
}

func (m Multi) Load(ctx context.Context, packets []record.Phenopacket) error {
	var errs []error
	for _, l := range m {
		if err := l.Load(ctx, packets); err != nil {
			errs = append(errs, fmt.Errorf("%s loader: %w", l.Name(), err))
			continue
		}
		logger.Log.WithFields(map[string]interface{}{
			"loader":  l.Name(),
			"packets": len(packets),
		}).Info("phenopackets loaded")
	}
	return errors.Join(errs...)
}

// Close releases resources held by loaders that own them.
func (m Multi) Close() error {
	var errs []error
	for _, l := range m {
		if c, ok := l.(interface{ Close() error }); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// FromConfig builds the loaders declared under pipeline.loader. resolve maps
// manifest relative paths.
func FromConfig(cfg manifest.LoaderConfig, resolve func(string) string) (Multi, error) {
	if cfg.Empty() {
		return nil, extract.ConfigErrorf("pipeline.loader", "no loader configured")
	}
	if resolve == nil {
		resolve = func(p string) string { return p }
	}

	var out Multi
	if fs := cfg.FileSystem; fs != nil {
		if fs.OutputDir == "" {
			return nil, extract.ConfigErrorf("pipeline.loader.file_system.output_dir", "required")
		}
		out = append(out, NewFileSystem(resolve(fs.OutputDir), fs.CreateDir))
	}
	if pg := cfg.Postgres; pg != nil {
		open := database.GetPostgres
		if pg.DSN != "" {
			open = func() (*gorm.DB, error) { return database.OpenPostgres(pg.DSN) }
		}
		db, err := open()
		if err != nil {
			return nil, extract.NewConfigError("pipeline.loader.postgres", err)
		}
		l := NewPostgres(db)
		if err := l.AutoMigrate(); err != nil {
			return nil, extract.NewConfigError("pipeline.loader.postgres", err)
		}
		out = append(out, l)
	}
	if k := cfg.Kafka; k != nil {
		topic := k.Topic
		if topic == "" {
			topic = config.Load().PhenopacketTopic
		}
		out = append(out, NewKafka(kafka.NewProducer(topic)))
	}
	return out, nil
}
