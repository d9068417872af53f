// Package docxtest synthesizes small .docx containers for tests.
package docxtest

import (
	"archive/zip"
	"fmt"
	"os"
	"sort"
	"strings"
	"testing"
)

// Namespace declarations used by generated parts.
const namespaces = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
	`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" ` +
	`xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing" ` +
	`xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
	`xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture" ` +
	`xmlns:v="urn:schemas-microsoft-com:vml" ` +
	`xmlns:mc="http://schemas.openxmlformats.org/markup-compatibility/2006"`

const relsPrefix = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/"

// Rel is a main document part relationship.
type Rel struct {
	ID       string
	Type     string // short type: image, hyperlink, header, footer
	Target   string
	External bool
}

// Package describes container content. Body is inner markup of w:body.
type Package struct {
	Body      string
	Styles    string // inner markup of w:styles
	Footnotes string // inner markup of w:footnotes
	Endnotes  string // inner markup of w:endnotes
	Core      string // inner markup of cp:coreProperties
	Rels      []Rel
	// Parts are additional raw entries (media, headers).
	Parts map[string][]byte
}

// P returns paragraph markup with optional style and runs.
func P(style string, runs ...string) string {
	var sb strings.Builder
	sb.WriteString("<w:p>")
	if len(style) > 0 {
		fmt.Fprintf(&sb, `<w:pPr><w:pStyle w:val="%s"/></w:pPr>`, style)
	}
	for _, r := range runs {
		sb.WriteString(r)
	}
	sb.WriteString("</w:p>")
	return sb.String()
}

// R returns run markup with raw run properties (may be empty).
func R(props, text string) string {
	if len(props) > 0 {
		props = "<w:rPr>" + props + "</w:rPr>"
	}
	return fmt.Sprintf(`<w:r>%s<w:t xml:space="preserve">%s</w:t></w:r>`, props, text)
}

// Hdr wraps header content into a complete part.
func Hdr(content string) []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?><w:hdr ` + namespaces + `>` + content + `</w:hdr>`)
}

// Ftr wraps footer content into a complete part.
func Ftr(content string) []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?><w:ftr ` + namespaces + `>` + content + `</w:ftr>`)
}

// Write creates container at path.
func Write(t testing.TB, path string, p Package) {
	t.Helper()

	entries := map[string][]byte{
		"[Content_Types].xml": []byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
			`<Default Extension="xml" ContentType="application/xml"/>` +
			`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
			`</Types>`),
		"word/document.xml": []byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<w:document ` + namespaces + `><w:body>` + p.Body + `</w:body></w:document>`),
	}

	pkgRels := []string{
		rel("rId1", relsPrefix+"officeDocument", "word/document.xml", false),
	}
	if len(p.Core) > 0 {
		pkgRels = append(pkgRels, rel("rId2", "http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties", "docProps/core.xml", false))
		entries["docProps/core.xml"] = []byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" ` +
			`xmlns:dc="http://purl.org/dc/elements/1.1/">` + p.Core + `</cp:coreProperties>`)
	}
	entries["_rels/.rels"] = relationships(pkgRels)

	var docRels []string
	if len(p.Styles) > 0 {
		docRels = append(docRels, rel("rIdStyles", relsPrefix+"styles", "styles.xml", false))
		entries["word/styles.xml"] = []byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?><w:styles ` + namespaces + `>` + p.Styles + `</w:styles>`)
	}
	if len(p.Footnotes) > 0 {
		docRels = append(docRels, rel("rIdFootnotes", relsPrefix+"footnotes", "footnotes.xml", false))
		entries["word/footnotes.xml"] = []byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?><w:footnotes ` + namespaces + `>` + p.Footnotes + `</w:footnotes>`)
	}
	if len(p.Endnotes) > 0 {
		docRels = append(docRels, rel("rIdEndnotes", relsPrefix+"endnotes", "endnotes.xml", false))
		entries["word/endnotes.xml"] = []byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?><w:endnotes ` + namespaces + `>` + p.Endnotes + `</w:endnotes>`)
	}
	for _, r := range p.Rels {
		docRels = append(docRels, rel(r.ID, relsPrefix+r.Type, r.Target, r.External))
	}
	entries["word/_rels/document.xml.rels"] = relationships(docRels)

	for name, data := range p.Parts {
		entries[name] = data
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create container: %v", err)
	}
	defer f.Close()

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	w := zip.NewWriter(f)
	for _, name := range names {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("create entry %s: %v", name, err)
		}
		if _, err := fw.Write(entries[name]); err != nil {
			t.Fatalf("write entry %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close container: %v", err)
	}
}

func rel(id, typ, target string, external bool) string {
	mode := ""
	if external {
		mode = ` TargetMode="External"`
	}
	return fmt.Sprintf(`<Relationship Id="%s" Type="%s" Target="%s"%s/>`, id, typ, target, mode)
}

func relationships(rels []string) []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		strings.Join(rels, "") + `</Relationships>`)
}
