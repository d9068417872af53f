package images

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

// ManifestName is the name of the manifest file in assets directory.
const ManifestName = "assets-manifest.json"

// Entry describes single stored asset. Different references with identical
// content share one entry.
type Entry struct {
	ContentHash   string   `json:"contentHash"`
	Filename      string   `json:"filename"`
	InternalPaths []string `json:"internalPaths"`
}

// Manifest is an index of assets stored in a directory.
type Manifest struct {
	path    string
	Entries []Entry
}

// LoadManifest reads manifest from assets directory. Missing, unreadable or
// corrupted manifest results in empty manifest.
func LoadManifest(dir string, log *zap.Logger) *Manifest {
	m := &Manifest{path: filepath.Join(dir, ManifestName)}

	data, err := os.ReadFile(m.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn("Unable to read assets manifest, starting with empty one", zap.String("path", m.path), zap.Error(err))
		}
		return m
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Warn("Assets manifest is corrupted, starting with empty one", zap.String("path", m.path), zap.Error(err))
		return m
	}
	m.Entries = entries
	return m
}

// Lookup finds entry having ref among its internal paths.
func (m *Manifest) Lookup(ref string) (Entry, bool) {
	for _, e := range m.Entries {
		if slices.Contains(e.InternalPaths, ref) {
			return e, true
		}
	}
	return Entry{}, false
}

// Add records ref for content hash. Existing entry gets ref appended to its
// aliases unless it is already there.
func (m *Manifest) Add(hash, filename, ref string) {
	for i := range m.Entries {
		if m.Entries[i].ContentHash != hash {
			continue
		}
		if !slices.Contains(m.Entries[i].InternalPaths, ref) {
			m.Entries[i].InternalPaths = append(m.Entries[i].InternalPaths, ref)
		}
		return
	}
	m.Entries = append(m.Entries, Entry{ContentHash: hash, Filename: filename, InternalPaths: []string{ref}})
}

// Save rewrites manifest file through temporary file in the same directory.
func (m *Manifest) Save() error {
	entries := m.Entries
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return fmt.Errorf("unable to encode assets manifest: %w", err)
	}
	return writeFileAtomic(m.path, data)
}

// withManifestLock holds exclusive lock on the manifest of dir while fn
// loads, mutates and saves it.
func withManifestLock(dir string, log *zap.Logger, fn func(m *Manifest) error) error {
	lock := flock.New(filepath.Join(dir, ManifestName+".lock"))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("unable to lock assets manifest: %w", err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn("Unable to unlock assets manifest", zap.Error(err))
		}
	}()
	return fn(LoadManifest(dir, log))
}

func writeFileAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(name), "."+filepath.Base(name)+"-*")
	if err != nil {
		return fmt.Errorf("unable to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("unable to write temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("unable to close temporary file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("unable to set permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), name); err != nil {
		return fmt.Errorf("unable to rename temporary file: %w", err)
	}
	return nil
}
