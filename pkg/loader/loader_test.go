package loader

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/phenoxtract/pkg/common/kafka"
	"github.com/synaptica-ai/phenoxtract/pkg/extract"
	"github.com/synaptica-ai/phenoxtract/pkg/manifest"
	"github.com/synaptica-ai/phenoxtract/pkg/record"
)

func samplePackets() []record.Phenopacket {
	return []record.Phenopacket{
		{
			ID:      "my_cohort-P001",
			Subject: record.Individual{ID: "P001", Sex: record.SexFemale},
			PhenotypicFeatures: []record.PhenotypicFeature{
				{Type: record.OntologyClass{ID: "HP:0001250", Label: "Seizure"}, Onset: record.AgeElement("P5Y")},
			},
			MetaData: record.MetaData{CreatedBy: "test", PhenopacketSchemaVersion: record.SchemaVersion},
		},
		{ID: "my_cohort-P002", Subject: record.Individual{ID: "P002"}},
	}
}

func TestFileSystemWritesOneDocumentPerPacket(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	fs := NewFileSystem(dir, true)

	require.NoError(t, fs.Load(context.Background(), samplePackets()))

	data, err := os.ReadFile(filepath.Join(dir, "my_cohort-P001.json"))
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "my_cohort-P001", doc["id"])
	assert.Contains(t, string(data), "\n  \"subject\"")
	assert.Contains(t, string(data), `"iso8601duration": "P5Y"`)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestFileSystemMissingDirWithoutCreate(t *testing.T) {
	fs := NewFileSystem(filepath.Join(t.TempDir(), "missing"), false)
	err := fs.Load(context.Background(), samplePackets())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create_dir")
}

func TestFileSystemPathSanitisesSeparators(t *testing.T) {
	fs := NewFileSystem("/out", false)
	assert.Equal(t, filepath.Join("/out", "c-a_b.json"), fs.Path("c-a/b"))
}

type fakeWriter struct {
	msgs []kafkago.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaPublishesOneMessagePerPacket(t *testing.T) {
	w := &fakeWriter{}
	l := NewKafka(kafka.NewProducerWithWriter(w, "packets"))

	require.NoError(t, l.Load(context.Background(), samplePackets()))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "my_cohort-P001", string(w.msgs[0].Key))
	assert.Equal(t, "event-type", w.msgs[0].Headers[0].Key)
	assert.Equal(t, "phenopacket", string(w.msgs[0].Headers[0].Value))
	var p record.Phenopacket
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &p))
	assert.Equal(t, "P002", p.Subject.ID)
}

type fakeLoader struct {
	name  string
	err   error
	calls int
}

func (f *fakeLoader) Name() string { return f.name }

func (f *fakeLoader) Load(context.Context, []record.Phenopacket) error {
	f.calls++
	return f.err
}

func TestMultiRunsEveryLoader(t *testing.T) {
	failing := &fakeLoader{name: "bad", err: errors.New("disk full")}
	ok := &fakeLoader{name: "good"}

	err := Multi{failing, ok}.Load(context.Background(), samplePackets())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad loader: disk full")
	assert.Equal(t, 1, ok.calls)
}

func TestFromConfig(t *testing.T) {
	_, err := FromConfig(manifest.LoaderConfig{}, nil)
	assert.True(t, extract.IsConfigError(err))

	_, err = FromConfig(manifest.LoaderConfig{FileSystem: &manifest.FileSystemLoader{}}, nil)
	assert.True(t, extract.IsConfigError(err))

	base := t.TempDir()
	loaders, err := FromConfig(manifest.LoaderConfig{
		FileSystem: &manifest.FileSystemLoader{OutputDir: "out", CreateDir: true},
	}, func(p string) string { return filepath.Join(base, p) })
	require.NoError(t, err)
	require.Len(t, loaders, 1)
	fs, ok := loaders[0].(*FileSystem)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(base, "out"), fs.dir)
}

func TestPacketRowsDeriveCohort(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows, err := packetRows(samplePackets(), now)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "my_cohort", rows[0].Cohort)
	assert.Equal(t, "P001", rows[0].SubjectID)
	assert.Equal(t, now, rows[0].CreatedAt)
	assert.Contains(t, string(rows[0].Document), `"HP:0001250"`)
	assert.Equal(t, "phenopackets", PacketRow{}.TableName())
}
