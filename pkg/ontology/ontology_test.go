package ontology

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/phenoxtract/pkg/concept"
	"github.com/synaptica-ai/phenoxtract/pkg/extract"
	"github.com/synaptica-ai/phenoxtract/pkg/manifest"
)

const catalogYAML = `
version: "2025-09-01"
terms:
  - id: HP:0001250
    label: Seizure
    synonyms: [Seizures, Epileptic seizure]
  - id: HP:0000118
    label: Phenotypic abnormality
  - id: HP:0000001
    label: Seizure
    obsolete: true
`

func TestCatalogResolvesIdsLabelsAndSynonyms(t *testing.T) {
	cat, err := ParseCatalog([]byte(catalogYAML))
	require.NoError(t, err)
	ctx := context.Background()

	for _, raw := range []string{"HP:0001250", "hp:0001250", "seizure", "  Epileptic   Seizure "} {
		term, err := cat.Resolve(ctx, "hp", "", raw)
		require.NoError(t, err, raw)
		assert.Equal(t, "HP:0001250", term.ID, raw)
		assert.Equal(t, "Seizure", term.Label)
	}

	_, err = cat.Resolve(ctx, "hp", "", "Headache")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := cat.Contains(ctx, "hp", "HP:0000118")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2025-09-01", cat.Version())
}

func TestCatalogRejectsEmpty(t *testing.T) {
	_, err := ParseCatalog([]byte("terms: []"))
	assert.Error(t, err)
}

const oboJSON = `{
  "graphs": [{
    "id": "http://purl.obolibrary.org/obo/hp.json",
    "meta": {"version": "http://purl.obolibrary.org/obo/hp/releases/2025-09-01/hp.json"},
    "nodes": [
      {"id": "http://purl.obolibrary.org/obo/HP_0001250", "lbl": "Seizure", "type": "CLASS",
       "meta": {"synonyms": [{"pred": "hasExactSynonym", "val": "Epileptic seizure"}]}},
      {"id": "http://purl.obolibrary.org/obo/UBERON_0000955", "lbl": "brain", "type": "CLASS"},
      {"id": "http://purl.obolibrary.org/obo/hp#has_onset", "lbl": "has onset", "type": "PROPERTY"}
    ]
  }]
}`

func TestReadGraphKeepsPrefixedClasses(t *testing.T) {
	g, err := ReadGraph(strings.NewReader(oboJSON), "HP")
	require.NoError(t, err)
	assert.Equal(t, 1, g.Len())
	assert.NoError(t, g.checkVersion("2025-09-01"))
	assert.Error(t, g.checkVersion("2024-01-01"))

	term, err := g.Resolve(context.Background(), "hp", "", "epileptic seizure")
	require.NoError(t, err)
	assert.Equal(t, "HP:0001250", term.ID)
}

const hierarchyJSON = `{
  "graphs": [{
    "nodes": [
      {"id": "http://purl.obolibrary.org/obo/HP_0000118", "lbl": "Phenotypic abnormality", "type": "CLASS"},
      {"id": "http://purl.obolibrary.org/obo/HP_0000707", "lbl": "Abnormality of the nervous system", "type": "CLASS"},
      {"id": "http://purl.obolibrary.org/obo/HP_0001250", "lbl": "Seizure", "type": "CLASS"},
      {"id": "http://purl.obolibrary.org/obo/HP_0012823", "lbl": "Clinical modifier", "type": "CLASS"}
    ],
    "edges": [
      {"sub": "http://purl.obolibrary.org/obo/HP_0001250", "pred": "is_a", "obj": "http://purl.obolibrary.org/obo/HP_0000707"},
      {"sub": "http://purl.obolibrary.org/obo/HP_0000707", "pred": "is_a", "obj": "http://purl.obolibrary.org/obo/HP_0000118"},
      {"sub": "http://purl.obolibrary.org/obo/HP_0001250", "pred": "http://purl.obolibrary.org/obo/RO_0002200", "obj": "http://purl.obolibrary.org/obo/HP_0012823"}
    ]
  }]
}`

func TestGraphHierarchy(t *testing.T) {
	g, err := ReadGraph(strings.NewReader(hierarchyJSON), "HP")
	require.NoError(t, err)

	assert.True(t, g.IsAncestor("HP:0000118", "HP:0001250"))
	assert.True(t, g.IsAncestor("hp:0000707", "HP:0001250"))
	assert.False(t, g.IsAncestor("HP:0001250", "HP:0000118"))
	assert.False(t, g.IsAncestor("HP:0001250", "HP:0001250"))
	assert.False(t, g.IsAncestor("HP:0012823", "HP:0001250"), "only is_a edges count")

	reg := NewRegistry()
	reg.Register(manifest.ResourceConfig{ID: "hp", Prefix: "HP"}, g)
	reg.Register(manifest.ResourceConfig{ID: "omim", Prefix: "OMIM"}, NewCatalog("1", []Term{{ID: "OMIM:1", Label: "x"}}))
	h, ok := reg.Hierarchy("HP")
	require.True(t, ok)
	assert.True(t, h.IsAncestor("HP:0000118", "HP:0000707"))
	_, ok = reg.Hierarchy("OMIM")
	assert.False(t, ok)
}

func TestCURIE(t *testing.T) {
	assert.Equal(t, "HP:0001250", CURIE("http://purl.obolibrary.org/obo/HP_0001250"))
	assert.Equal(t, "HP:0001250", CURIE("HP:0001250"))
	assert.Equal(t, "HP", Prefix("HP:0001250"))
	assert.Equal(t, "", Prefix("Seizure"))
}

func TestClientResolveAndContains(t *testing.T) {
	var auth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		switch {
		case r.URL.Path == "/hp/terms" && r.URL.Query().Get("q") == "Seizure":
			assert.Equal(t, "2025-09-01", r.URL.Query().Get("version"))
			_ = json.NewEncoder(w).Encode(Term{ID: "HP:0001250", Label: "Seizure"})
		case r.URL.Path == "/hp/terms/HP:0001250":
			_ = json.NewEncoder(w).Encode(Term{ID: "HP:0001250", Label: "Seizure"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	client, err := NewClient(ctx, ClientOptions{
		BaseURL:     srv.URL,
		Timeout:     time.Second,
		Credentials: Credentials{Token: "abc"},
	})
	require.NoError(t, err)

	term, err := client.Resolve(ctx, "hp", "2025-09-01", "Seizure")
	require.NoError(t, err)
	assert.Equal(t, "HP:0001250", term.ID)
	assert.Equal(t, "Bearer abc", auth.Load())

	_, err = client.Resolve(ctx, "hp", "", "Nope")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := client.Contains(ctx, "hp", "HP:0001250")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.Contains(ctx, "hp", "HP:9999999")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ := r.BasicAuth()
		assert.Equal(t, "loinc", user)
		assert.Equal(t, "pw", pass)
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(Term{ID: "LOINC:2345-7", Label: "Glucose"})
	}))
	defer srv.Close()

	client, err := NewClient(context.Background(), ClientOptions{
		BaseURL:     srv.URL,
		Timeout:     time.Second,
		Retries:     3,
		Credentials: Credentials{User: "loinc", Password: "pw"},
	})
	require.NoError(t, err)

	term, err := client.Resolve(context.Background(), "loinc", "", "glucose")
	require.NoError(t, err)
	assert.Equal(t, "LOINC:2345-7", term.ID)
	assert.EqualValues(t, 2, calls.Load())
}

type fakeKV struct {
	data map[string]string
	sets int
}

func (f *fakeKV) Get(_ context.Context, key string) *redis.StringCmd {
	if v, ok := f.data[key]; ok {
		return redis.NewStringResult(v, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (f *fakeKV) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.sets++
	f.data[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

type countingLookup struct {
	Lookup
	resolves int
}

func (c *countingLookup) Resolve(ctx context.Context, resource, version, raw string) (Term, error) {
	c.resolves++
	return c.Lookup.Resolve(ctx, resource, version, raw)
}

func TestCacheReadsThroughAndRemembersMisses(t *testing.T) {
	cat, err := ParseCatalog([]byte(catalogYAML))
	require.NoError(t, err)
	inner := &countingLookup{Lookup: cat}
	kv := &fakeKV{data: map[string]string{}}
	cache := NewCache(inner, kv, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		term, err := cache.Resolve(ctx, "hp", "v1", "Seizure")
		require.NoError(t, err)
		assert.Equal(t, "HP:0001250", term.ID)

		_, err = cache.Resolve(ctx, "hp", "v1", "unknown thing")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, 2, inner.resolves)
	assert.Equal(t, missMarker, kv.data[resolveKey("hp", "v1", "unknown thing")])

	ok, err := cache.Contains(ctx, "hp", "HP:0000118")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", kv.data[containsKey("hp", "hp:0000118")])
}

func TestRegistryForConceptAndMemo(t *testing.T) {
	cat, err := ParseCatalog([]byte(catalogYAML))
	require.NoError(t, err)
	inner := &countingLookup{Lookup: cat}

	reg := NewRegistry()
	reg.Register(manifest.ResourceConfig{ID: "hp", Prefix: "HP"}, inner)
	reg.Register(manifest.ResourceConfig{ID: "genes", Prefix: "HGNC", Concepts: []string{"hgnc"}}, cat)

	res, ok := reg.ForConcept(concept.Hpo)
	require.True(t, ok)
	assert.Equal(t, "hp", res.Config.ID)

	res, ok = reg.ForConcept(concept.HgncSymbolOrID)
	require.True(t, ok)
	assert.Equal(t, "genes", res.Config.ID)

	_, ok = reg.ForConcept(concept.Procedure)
	assert.False(t, ok)

	for i := 0; i < 3; i++ {
		_, err := reg.Resolve(context.Background(), "HP", "seizure")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, inner.resolves)

	_, err = reg.Resolve(context.Background(), "missing", "x")
	assert.Error(t, err)
	assert.Len(t, reg.Resources(), 2)
}

func TestOpenAllFromManifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hp.yaml"), []byte(catalogYAML), 0o600))

	m := &manifest.Manifest{Dir: dir, Pipeline: manifest.Pipeline{Resources: []manifest.ResourceConfig{
		{ID: "hp", Prefix: "HP", Type: manifest.ResourceCatalog, Path: "hp.yaml", Version: "2025-09-01"},
	}}}
	reg, err := OpenAll(context.Background(), m, Options{})
	require.NoError(t, err)
	_, ok := reg.Get("hp")
	assert.True(t, ok)

	m.Pipeline.Resources[0].Version = "1999-01-01"
	_, err = OpenAll(context.Background(), m, Options{})
	require.Error(t, err)
	assert.True(t, extract.IsConfigError(err))
}

func TestOpenRemoteFallsBackToProcessCredentials(t *testing.T) {
	var auth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(Term{ID: "HP:0001250", Label: "Seizure"})
	}))
	defer srv.Close()

	cfg := manifest.ResourceConfig{ID: "hp", Prefix: "HP", Type: manifest.ResourceRemote, URL: srv.URL}
	lookup, err := Open(context.Background(), cfg, "", Options{
		Timeout:     time.Second,
		Credentials: Credentials{Token: "process-token"},
	})
	require.NoError(t, err)

	term, err := lookup.Resolve(context.Background(), "hp", "", "seizure")
	require.NoError(t, err)
	assert.Equal(t, "HP:0001250", term.ID)
	assert.Equal(t, "Bearer process-token", auth.Load())
}
