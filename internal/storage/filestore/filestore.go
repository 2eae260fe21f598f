// Package filestore keeps generated scripts as files in a download directory.
//
// Each script is written as <name> with a JSON sidecar <name>.meta.json that
// carries the artifact metadata. Writes go through a temp file and a rename
// so a concurrent download never sees a half-written script.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/JonMunkholm/sqlscript/internal/core"
)

const metaSuffix = ".meta.json"

// Store is a core.ScriptStore backed by a directory.
type Store struct {
	dir string
}

// New returns a store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("filestore: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the root directory.
func (s *Store) Dir() string { return s.dir }

// Save writes body under a sanitized a.Name and records its metadata.
func (s *Store) Save(_ context.Context, a core.Artifact, body string) (core.Artifact, error) {
	name, err := SafeName(a.Name)
	if err != nil {
		return core.Artifact{}, err
	}
	a.Name = name
	a.Size = int64(len(body))
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	if err := s.writeAtomic(name, []byte(body)); err != nil {
		return core.Artifact{}, err
	}

	meta, err := json.Marshal(a)
	if err != nil {
		return core.Artifact{}, fmt.Errorf("filestore: encode metadata: %w", err)
	}
	if err := s.writeAtomic(name+metaSuffix, meta); err != nil {
		return core.Artifact{}, err
	}
	return a, nil
}

// Open returns the script body for name.
func (s *Store) Open(_ context.Context, name string) (io.ReadCloser, core.Artifact, error) {
	clean, err := SafeName(name)
	if err != nil || clean != name {
		return nil, core.Artifact{}, core.ErrArtifactNotFound
	}

	f, err := os.Open(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, core.Artifact{}, core.ErrArtifactNotFound
	}
	if err != nil {
		return nil, core.Artifact{}, fmt.Errorf("filestore: open %s: %w", name, err)
	}

	a, err := s.readMeta(name)
	if err != nil {
		f.Close()
		return nil, core.Artifact{}, err
	}
	return f, a, nil
}

// List returns up to limit artifacts, newest first. limit <= 0 returns all.
func (s *Store) List(_ context.Context, limit int) ([]core.Artifact, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("filestore: list %s: %w", s.dir, err)
	}

	var out []core.Artifact
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), metaSuffix) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		a, err := s.readMeta(e.Name())
		if err != nil {
			continue
		}
		out = append(out, a)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// readMeta loads the sidecar for name. Files written without one (copied in
// by hand) get metadata derived from the file itself.
func (s *Store) readMeta(name string) (core.Artifact, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name+metaSuffix))
	if err == nil {
		var a core.Artifact
		if err := json.Unmarshal(data, &a); err != nil {
			return core.Artifact{}, fmt.Errorf("filestore: decode metadata for %s: %w", name, err)
		}
		return a, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return core.Artifact{}, fmt.Errorf("filestore: read metadata for %s: %w", name, err)
	}

	info, err := os.Stat(filepath.Join(s.dir, name))
	if err != nil {
		return core.Artifact{}, fmt.Errorf("filestore: stat %s: %w", name, err)
	}
	return core.Artifact{
		Name:      name,
		Size:      info.Size(),
		CreatedAt: info.ModTime().UTC(),
	}, nil
}

func (s *Store) writeAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("filestore: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore: write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filestore: close %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("filestore: chmod %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("filestore: rename %s: %w", name, err)
	}
	return nil
}

// SafeName reduces a user-supplied name to a plain file name: directory parts
// are dropped, whitespace becomes '_', and anything outside [A-Za-z0-9._-]
// is removed. Leading dots are stripped so names never hide or escape.
func SafeName(name string) (string, error) {
	name = filepath.Base(filepath.ToSlash(strings.TrimSpace(name)))
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '\t':
			b.WriteRune('_')
		}
	}

	clean := strings.TrimLeft(b.String(), "._")
	if clean == "" || strings.HasSuffix(clean, metaSuffix) {
		return "", fmt.Errorf("filestore: invalid script name %q", name)
	}
	return clean, nil
}
