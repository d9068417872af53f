package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/beevik/etree"
	"go.uber.org/multierr"
	"golang.org/x/net/html/charset"
)

// Relationship types used by document packages.
const (
	RelTypeOfficeDocument = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	RelTypeCoreProperties = "http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties"
	RelTypeStyles         = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles"
	RelTypeFootnotes      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/footnotes"
	RelTypeEndnotes       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/endnotes"
	RelTypeHeader         = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/header"
	RelTypeFooter         = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/footer"
	RelTypeImage          = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	RelTypeHyperlink      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink"
)

// DefaultMainPart is used when package relationships do not name main part.
const DefaultMainPart = "word/document.xml"

// Relationship is a single entry of part relationships. For internal
// relationships Target is resolved to the full part name inside container.
type Relationship struct {
	ID       string
	Type     string
	Target   string
	External bool
}

// Container gives cached access to parts of zip based document packages.
// It is safe for concurrent use. Opened archives stay open until Close.
type Container struct {
	mu      sync.Mutex
	readers map[string]*zip.ReadCloser
}

// NewContainer returns empty Container.
func NewContainer() *Container {
	return &Container{readers: make(map[string]*zip.ReadCloser)}
}

func (c *Container) reader(container string) (*zip.ReadCloser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r, ok := c.readers[container]; ok {
		return r, nil
	}
	r, err := zip.OpenReader(container)
	if err != nil {
		return nil, fmt.Errorf("unable to open container %q: %w", container, err)
	}
	c.readers[container] = r
	return r, nil
}

// ReadEntry returns content of the internal entry of the container. When
// entry does not exist (nil, nil) is returned. Part names are matched case
// insensitively as a fallback.
func (c *Container) ReadEntry(container, internal string) ([]byte, error) {
	internal = strings.TrimPrefix(internal, "/")
	if !isSafePath(internal) {
		return nil, fmt.Errorf("entry %q: unsafe path", internal)
	}

	r, err := c.reader(container)
	if err != nil {
		return nil, err
	}

	var file *zip.File
	for _, f := range r.File {
		if f.Name == internal {
			file = f
			break
		}
		if file == nil && strings.EqualFold(f.Name, internal) {
			file = f
		}
	}
	if file == nil || file.FileInfo().IsDir() {
		return nil, nil
	}

	rc, err := file.Open()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to open entry %q: %w", internal, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("unable to read entry %q: %w", internal, err)
	}
	return data, nil
}

// RelsName returns name of the relationships part for the part. Empty part
// name means package level relationships.
func RelsName(part string) string {
	if len(part) == 0 {
		return "_rels/.rels"
	}
	dir, name := path.Split(part)
	return dir + "_rels/" + name + ".rels"
}

// PartRelationships reads and resolves relationships of the part keyed by
// relationship id. Missing relationships part results in empty map.
func (c *Container) PartRelationships(container, part string) (map[string]Relationship, error) {
	data, err := c.ReadEntry(container, RelsName(part))
	if err != nil {
		return nil, err
	}
	rels := make(map[string]Relationship)
	if data == nil {
		return rels, nil
	}

	doc := etree.NewDocument()
	doc.ReadSettings = etree.ReadSettings{
		CharsetReader: charset.NewReaderLabel,
		Permissive:    true,
	}
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("unable to parse relationships of %q: %w", part, err)
	}
	root := doc.Root()
	if root == nil {
		return rels, nil
	}

	for _, el := range root.SelectElements("Relationship") {
		rel := Relationship{
			ID:       el.SelectAttrValue("Id", ""),
			Type:     el.SelectAttrValue("Type", ""),
			Target:   el.SelectAttrValue("Target", ""),
			External: strings.EqualFold(el.SelectAttrValue("TargetMode", ""), "External"),
		}
		if len(rel.ID) == 0 {
			continue
		}
		if !rel.External {
			rel.Target = resolveTarget(part, rel.Target)
		}
		rels[rel.ID] = rel
	}
	return rels, nil
}

// resolveTarget turns relative relationship target into full part name.
func resolveTarget(source, target string) string {
	if strings.HasPrefix(target, "/") {
		return path.Clean(strings.TrimPrefix(target, "/"))
	}
	return strings.TrimPrefix(path.Join(path.Dir(source), target), "./")
}

// MainPart returns name of the main document part of the package.
func (c *Container) MainPart(container string) (string, error) {
	rels, err := c.PartRelationships(container, "")
	if err != nil {
		return "", err
	}
	for _, rel := range rels {
		if rel.Type == RelTypeOfficeDocument && !rel.External {
			return rel.Target, nil
		}
	}
	return DefaultMainPart, nil
}

// Relationships returns internal relationships of the main document part
// mapping relationship id to the full part name. External targets are skipped.
func (c *Container) Relationships(container string) (map[string]string, error) {
	main, err := c.MainPart(container)
	if err != nil {
		return nil, err
	}
	rels, err := c.PartRelationships(container, main)
	if err != nil {
		return nil, err
	}
	res := make(map[string]string, len(rels))
	for id, rel := range rels {
		if rel.External {
			continue
		}
		res[id] = rel.Target
	}
	return res, nil
}

// Close closes all opened archives.
func (c *Container) Close() (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, r := range c.readers {
		err = multierr.Append(err, r.Close())
		delete(c.readers, name)
	}
	return err
}
