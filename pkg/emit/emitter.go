// Package emit stages generated documents in memory and writes them out in
// one pass, so a failed generation leaves no partial output behind
package emit

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/wojtekgalaj/projen/pkg/logger"
)

// ManifestFileName records what a generation run produced
const ManifestFileName = ".release/manifest.json"

// StagedFile is one pending output document
type StagedFile struct {
	Path string
	Data []byte
}

// ManifestEntry describes one written file
type ManifestEntry struct {
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
}

// Manifest describes a completed generation run, for downstream
// snapshotting and diffing
type Manifest struct {
	RunID string          `json:"runId"`
	Files []ManifestEntry `json:"files"`
}

// Emitter collects staged files and writes them below a project root
type Emitter struct {
	root   string
	log    logger.Logger
	staged []StagedFile
}

// New creates an emitter rooted at the given project directory
func New(root string, log logger.Logger) *Emitter {
	return &Emitter{root: root, log: log}
}

// Stage queues a document for emission. Paths are relative to the project
// root; staging the same path twice is an error.
func (e *Emitter) Stage(path string, data []byte) error {
	if path == "" {
		return fmt.Errorf("cannot stage a file with an empty path")
	}
	if filepath.IsAbs(path) {
		return fmt.Errorf("staged path must be relative to the project root: %s", path)
	}
	for _, f := range e.staged {
		if f.Path == path {
			return fmt.Errorf("file %q staged twice", path)
		}
	}
	e.staged = append(e.staged, StagedFile{Path: path, Data: data})
	return nil
}

// Staged returns the staged files in staging order
func (e *Emitter) Staged() []StagedFile {
	out := make([]StagedFile, len(e.staged))
	copy(out, e.staged)
	return out
}

// Write flushes all staged files to disk and records a manifest of the run.
// Nothing is written until every file is staged, so configuration failures
// upstream never leave a corrupted subset behind.
func (e *Emitter) Write() (*Manifest, error) {
	manifest := &Manifest{RunID: uuid.NewString()}

	for _, f := range e.staged {
		full := filepath.Join(e.root, f.Path)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", f.Path, err)
		}
		if err := os.WriteFile(full, f.Data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", f.Path, err)
		}

		sum := md5.Sum(f.Data)
		manifest.Files = append(manifest.Files, ManifestEntry{
			Path:     f.Path,
			Checksum: hex.EncodeToString(sum[:]),
		})

		if e.log != nil {
			e.log.Debug("wrote file", logger.WithField("path", f.Path))
		}
	}

	sort.Slice(manifest.Files, func(i, j int) bool {
		return manifest.Files[i].Path < manifest.Files[j].Path
	})

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	manifestPath := filepath.Join(e.root, ManifestFileName)
	if err := os.MkdirAll(filepath.Dir(manifestPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create manifest directory: %w", err)
	}
	if err := os.WriteFile(manifestPath, append(data, '\n'), 0644); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	return manifest, nil
}
