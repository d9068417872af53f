// Package images extracts pictures from document containers into a content
// addressed assets directory.
package images

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/h2non/filetype"
	"go.uber.org/zap"
)

// Source gives access to container entries and relationships of the main
// document part.
type Source interface {
	// ReadEntry returns (nil, nil) when entry does not exist.
	ReadEntry(container, internal string) ([]byte, error)
	Relationships(container string) (map[string]string, error)
}

const zipScheme = "zip://"

// Extractor copies images referenced from a single document container into
// assets directory. It is safe for concurrent use, manifest updates are
// serialized with a file lock so several extractors may share assets
// directory.
type Extractor struct {
	src        Source
	container  string
	assetsDir  string
	outputFile string
	maxWidth   int
	log        *zap.Logger

	mu   sync.Mutex
	rels map[string]map[string]string
}

// Option configures Extractor.
type Option func(*Extractor)

// WithOutputFile makes Extract return paths relative to the directory of the
// output file.
func WithOutputFile(name string) Option {
	return func(e *Extractor) {
		e.outputFile = name
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(e *Extractor) {
		e.log = log
	}
}

// WithMaxWidth downscales stored raster images wider than width pixels.
func WithMaxWidth(width int) Option {
	return func(e *Extractor) {
		e.maxWidth = width
	}
}

// NewExtractor returns extractor for container. Empty assetsDir disables
// extraction.
func NewExtractor(src Source, container, assetsDir string, opts ...Option) *Extractor {
	e := &Extractor{
		src:       src,
		container: container,
		assetsDir: assetsDir,
		log:       zap.NewNop(),
		rels:      make(map[string]map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract stores image referenced by ref and returns path to it suitable for
// output document. Reference may be container internal path, relationship id
// or "zip://<container>#<internal path>" URL. Empty string is returned when
// extraction is disabled or fails.
func (e *Extractor) Extract(ref string) string {
	if len(e.assetsDir) == 0 || len(ref) == 0 {
		return ""
	}

	container, internal := e.resolve(ref)
	if len(internal) == 0 {
		return ""
	}

	if err := os.MkdirAll(e.assetsDir, 0775); err != nil {
		e.log.Warn("Unable to create assets directory", zap.String("dir", e.assetsDir), zap.Error(err))
		return ""
	}

	alias := e.alias(container, internal)

	var filename string
	err := withManifestLock(e.assetsDir, e.log, func(m *Manifest) error {
		if entry, ok := m.Lookup(alias); ok {
			if _, err := os.Stat(filepath.Join(e.assetsDir, entry.Filename)); err == nil {
				filename = entry.Filename
				return nil
			}
			e.log.Debug("Asset listed in manifest is missing, extracting again", zap.String("file", entry.Filename))
		}

		name, data, err := e.read(container, internal)
		if err != nil {
			return err
		}
		if data == nil {
			e.log.Warn("Image not found in container", zap.String("container", container), zap.String("ref", ref))
			return nil
		}

		sum := sha1.Sum(data)
		hash := hex.EncodeToString(sum[:])
		name = hash + "." + extension(name, data)

		if err := e.store(name, data); err != nil {
			return err
		}
		m.Add(hash, name, alias)
		if err := m.Save(); err != nil {
			return err
		}
		filename = name
		return nil
	})
	if err != nil {
		e.log.Warn("Unable to extract image", zap.String("ref", ref), zap.Error(err))
		return ""
	}
	if len(filename) == 0 {
		return ""
	}
	return e.outputPath(filename)
}

// resolve decodes zip URL and relationship id references.
func (e *Extractor) resolve(ref string) (container, internal string) {
	container, internal = e.container, ref
	if rest, ok := strings.CutPrefix(ref, zipScheme); ok {
		idx := strings.LastIndexByte(rest, '#')
		if idx < 0 {
			e.log.Warn("Malformed zip reference", zap.String("ref", ref))
			return "", ""
		}
		container, internal = rest[:idx], rest[idx+1:]
	}
	if target, ok := e.relationships(container)[internal]; ok {
		internal = target
	}
	return container, strings.TrimPrefix(internal, "/")
}

func (e *Extractor) relationships(container string) map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if rels, ok := e.rels[container]; ok {
		return rels
	}
	rels, err := e.src.Relationships(container)
	if err != nil {
		e.log.Debug("Unable to read container relationships", zap.String("container", container), zap.Error(err))
	}
	e.rels[container] = rels
	return rels
}

// alias is the manifest key: internal path qualified with the container, so
// equal internal paths of different documents never collide.
func (e *Extractor) alias(container, internal string) string {
	if abs, err := filepath.Abs(container); err == nil {
		container = abs
	}
	return zipScheme + filepath.ToSlash(container) + "#" + internal
}

// read looks for internal path as is and under word/media.
func (e *Extractor) read(container, internal string) (string, []byte, error) {
	candidates := []string{internal}
	if !strings.HasPrefix(internal, "word/") {
		candidates = append(candidates, "word/media/"+strings.TrimLeft(internal, "/"))
	}
	for _, name := range candidates {
		data, err := e.src.ReadEntry(container, name)
		if err != nil {
			return "", nil, fmt.Errorf("unable to read %q: %w", name, err)
		}
		if data != nil {
			return name, data, nil
		}
	}
	return "", nil, nil
}

// extension keeps extension of the internal path, falls back to content
// sniffing and finally to "bin".
func extension(name string, data []byte) string {
	if ext := strings.TrimPrefix(path.Ext(name), "."); len(ext) > 0 {
		return ext
	}
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		return kind.Extension
	}
	return "bin"
}

// store writes asset unless file with this name already exists.
func (e *Extractor) store(name string, data []byte) error {
	dst := filepath.Join(e.assetsDir, name)
	if _, err := os.Stat(dst); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("unable to check asset %q: %w", dst, err)
	}
	if e.maxWidth > 0 {
		data = downscale(data, name, e.maxWidth, e.log)
	}
	return writeFileAtomic(dst, data)
}

func (e *Extractor) outputPath(filename string) string {
	dst := filepath.Join(e.assetsDir, filename)
	if len(e.outputFile) == 0 {
		return filepath.ToSlash(dst)
	}

	base, err := filepath.Abs(filepath.Dir(e.outputFile))
	if err != nil {
		return filepath.ToSlash(dst)
	}
	target, err := filepath.Abs(dst)
	if err != nil {
		return filepath.ToSlash(dst)
	}
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return filepath.ToSlash(dst)
	}
	return filepath.ToSlash(rel)
}
