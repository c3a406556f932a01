package ontology

import (
	"context"
	"fmt"
	"time"

	"github.com/synaptica-ai/phenoxtract/pkg/common/config"
	"github.com/synaptica-ai/phenoxtract/pkg/common/logger"
	"github.com/synaptica-ai/phenoxtract/pkg/extract"
	"github.com/synaptica-ai/phenoxtract/pkg/manifest"
)

// Options carry the process level settings for opening resources.
type Options struct {
	Timeout  time.Duration
	Retries  int
	Cache    KV
	CacheTTL time.Duration

	// Credentials are used for remote resources that declare no secrets.
	Credentials Credentials
}

// Open builds the lookup for one resource. Remote resources are wrapped in
// the Redis cache when one is configured.
func Open(ctx context.Context, cfg manifest.ResourceConfig, path string, opts Options) (Lookup, error) {
	switch cfg.Type {
	case manifest.ResourceCatalog:
		cat, err := LoadCatalog(path)
		if err != nil {
			return nil, err
		}
		if err := cat.checkVersion(cfg.Version); err != nil {
			return nil, err
		}
		return cat, nil

	case manifest.ResourceOBOGraph:
		g, err := LoadGraph(path, cfg.Prefix)
		if err != nil {
			return nil, err
		}
		if err := g.checkVersion(cfg.Version); err != nil {
			return nil, err
		}
		return g, nil

	case manifest.ResourceRemote:
		secrets := cfg.Secrets.Resolve()
		creds := Credentials{
			Token:    secrets.Token,
			User:     secrets.User,
			Password: secrets.Password,
			ClientID: secrets.ClientID,
			TokenURL: secrets.TokenURL,
		}
		if creds == (Credentials{}) {
			creds = opts.Credentials
		}
		client, err := NewClient(ctx, ClientOptions{
			BaseURL:     cfg.URL,
			Timeout:     opts.Timeout,
			Retries:     opts.Retries,
			Credentials: creds,
		})
		if err != nil {
			return nil, err
		}
		if opts.Cache != nil {
			return NewCache(client, opts.Cache, opts.CacheTTL), nil
		}
		return client, nil
	}
	return nil, fmt.Errorf("unknown resource type %q", cfg.Type)
}

// OpenAll opens every resource declared by the manifest. Failures are
// ConfigErrors.
func OpenAll(ctx context.Context, m *manifest.Manifest, opts Options) (*Registry, error) {
	reg := NewRegistry()
	for i, cfg := range m.Pipeline.Resources {
		lookup, err := Open(ctx, cfg, m.Path(cfg.Path), opts)
		if err != nil {
			return nil, extract.NewConfigError(fmt.Sprintf("pipeline.resources[%d]", i), err)
		}
		reg.Register(cfg, lookup)
		logger.Log.WithFields(map[string]interface{}{
			"resource": cfg.ID,
			"type":     cfg.Type,
			"version":  cfg.Version,
		}).Debug("ontology resource opened")
	}
	return reg, nil
}

// OptionsFromConfig reads lookup settings from the process configuration.
// The Redis cache is attached by the caller.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Timeout:  cfg.VocabularyTimeout,
		Retries:  cfg.VocabularyRetries,
		CacheTTL: cfg.OntologyCacheTTL,
		Credentials: Credentials{
			Token:    cfg.VocabularyToken,
			User:     cfg.VocabularyUser,
			Password: cfg.VocabularyPassword,
			TokenURL: cfg.VocabularyTokenURL,
		},
	}
}
