package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/synaptica-ai/phenoxtract/pkg/record"
)

// FileSystem writes one indented JSON document per packet as <id>.json.
type FileSystem struct {
	dir       string
	createDir bool
}

func NewFileSystem(dir string, createDir bool) *FileSystem {
	return &FileSystem{dir: dir, createDir: createDir}
}

func (f *FileSystem) Name() string {
	return "file_system"
}

func (f *FileSystem) Load(ctx context.Context, packets []record.Phenopacket) error {
	if err := f.ensureDir(); err != nil {
		return err
	}
	for _, p := range packets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f.write(p); err != nil {
			return err
		}
	}
	return nil
}

func (f *FileSystem) ensureDir() error {
	info, err := os.Stat(f.dir)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("output path %s is not a directory", f.dir)
	case err == nil:
		return nil
	case os.IsNotExist(err) && f.createDir:
		return os.MkdirAll(f.dir, 0o755)
	case os.IsNotExist(err):
		return fmt.Errorf("output directory %s does not exist and create_dir is false", f.dir)
	}
	return err
}

// Path is where the packet with id is written.
func (f *FileSystem) Path(id string) string {
	name := strings.NewReplacer("/", "_", string(os.PathSeparator), "_").Replace(id)
	return filepath.Join(f.dir, name+".json")
}

// write goes through a temp file so readers never see a partial document.
func (f *FileSystem) write(p record.Phenopacket) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", p.ID, err)
	}
	target := f.Path(p.ID)
	tmp, err := os.CreateTemp(f.dir, ".phenopacket-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), target)
}
