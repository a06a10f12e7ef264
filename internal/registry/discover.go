package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"inferd/internal/common/fsutil"
)

// ModelFile is a model found on disk that a local runner can load.
type ModelFile struct {
	// ID is the file name without the .gguf extension.
	ID     string
	Path   string
	SizeMB int
}

// GGUFScanner finds *.gguf files in a directory.
type GGUFScanner struct{}

func NewGGUFScanner() GGUFScanner { return GGUFScanner{} }

// Scan lists *.gguf files directly under dir (not recursive), sorted by name.
// A leading '~' is expanded.
func (GGUFScanner) Scan(dir string) ([]ModelFile, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []ModelFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if !strings.EqualFold(ext, ".gguf") {
			continue
		}
		mf := ModelFile{ID: strings.TrimSuffix(name, ext), Path: filepath.Join(abs, name), SizeMB: 1}
		if fi, err := e.Info(); err == nil {
			mf.SizeMB = fsutil.SizeMB(fi.Size())
		}
		models = append(models, mf)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// DiscoverModels is a convenience wrapper around GGUFScanner.Scan.
func DiscoverModels(dir string) ([]ModelFile, error) {
	return NewGGUFScanner().Scan(dir)
}
