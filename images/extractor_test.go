package images

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"docx2html/archive"
	"docx2html/docx/docxtest"
)

type memSource struct {
	entries map[string][]byte
	rels    map[string]string
	reads   int
}

func (s *memSource) ReadEntry(_, internal string) ([]byte, error) {
	s.reads++
	return s.entries[internal], nil
}

func (s *memSource) Relationships(string) (map[string]string, error) {
	return s.rels, nil
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0x80, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func hashOf(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// assetFiles lists stored assets ignoring manifest and its lock.
func assetFiles(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read assets dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ManifestName) {
			continue
		}
		names = append(names, e.Name())
	}
	return names
}

func readManifest(t *testing.T, dir string) []Entry {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	return entries
}

func TestExtract_Disabled(t *testing.T) {
	src := &memSource{entries: map[string][]byte{"word/media/image1.png": []byte("x")}}
	e := NewExtractor(src, "doc.docx", "", WithLogger(zaptest.NewLogger(t)))

	if got := e.Extract("word/media/image1.png"); got != "" {
		t.Errorf("Extract() = %q, want empty when assets dir is not configured", got)
	}
	if src.reads != 0 {
		t.Errorf("container was read %d times, want 0", src.reads)
	}
}

func TestExtract_Idempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "assets")
	data := testPNG(t, 4, 4)
	src := &memSource{entries: map[string][]byte{"word/media/image1.png": data}}
	e := NewExtractor(src, "doc.docx", dir, WithLogger(zaptest.NewLogger(t)))

	first := e.Extract("word/media/image1.png")
	want := filepath.ToSlash(filepath.Join(dir, hashOf(data)+".png"))
	if first != want {
		t.Fatalf("Extract() = %q, want %q", first, want)
	}
	reads := src.reads

	second := e.Extract("word/media/image1.png")
	if second != first {
		t.Errorf("second Extract() = %q, want %q", second, first)
	}
	if src.reads != reads {
		t.Errorf("second Extract() read container again")
	}
	if files := assetFiles(t, dir); len(files) != 1 {
		t.Errorf("assets = %v, want exactly one file", files)
	}
}

func TestExtract_Dedup(t *testing.T) {
	dir := t.TempDir()
	data := testPNG(t, 3, 3)
	src := &memSource{
		entries: map[string][]byte{
			"word/media/image1.png": data,
			"word/media/image7.png": data,
		},
		rels: map[string]string{"rId7": "word/media/image7.png"},
	}
	e := NewExtractor(src, "doc.docx", dir, WithLogger(zaptest.NewLogger(t)))

	a := e.Extract("word/media/image1.png")
	b := e.Extract("rId7")
	if a == "" || a != b {
		t.Fatalf("Extract() = %q and %q, want identical non empty paths", a, b)
	}
	if files := assetFiles(t, dir); len(files) != 1 {
		t.Errorf("assets = %v, want exactly one file", files)
	}

	entries := readManifest(t, dir)
	if len(entries) != 1 {
		t.Fatalf("manifest has %d entries, want 1", len(entries))
	}
	if entries[0].ContentHash != hashOf(data) || entries[0].Filename != hashOf(data)+".png" {
		t.Errorf("manifest entry = %+v", entries[0])
	}
	if len(entries[0].InternalPaths) != 2 {
		t.Errorf("internal paths = %v, want 2 aliases", entries[0].InternalPaths)
	}
	for _, p := range entries[0].InternalPaths {
		if !strings.HasPrefix(p, "zip://") {
			t.Errorf("alias %q is not container qualified", p)
		}
	}
}

func TestExtract_Candidates(t *testing.T) {
	dir := t.TempDir()
	src := &memSource{entries: map[string][]byte{
		"word/media/image2.gif": []byte("GIF89a-not-really"),
		"word/media/blob":       testPNG(t, 2, 2),
	}}
	e := NewExtractor(src, "doc.docx", dir, WithLogger(zaptest.NewLogger(t)))

	got := e.Extract("image2.gif")
	if !strings.HasSuffix(got, ".gif") {
		t.Errorf("Extract(bare name) = %q, want .gif asset", got)
	}
	got = e.Extract("word/media/blob")
	if !strings.HasSuffix(got, ".png") {
		t.Errorf("Extract(no extension) = %q, want sniffed .png asset", got)
	}
	if got := e.Extract("word/media/missing.png"); got != "" {
		t.Errorf("Extract(missing) = %q, want empty", got)
	}
}

func TestExtract_UnknownContent(t *testing.T) {
	dir := t.TempDir()
	src := &memSource{entries: map[string][]byte{"word/media/data": []byte("plain bytes")}}
	e := NewExtractor(src, "doc.docx", dir, WithLogger(zaptest.NewLogger(t)))

	if got := e.Extract("word/media/data"); !strings.HasSuffix(got, ".bin") {
		t.Errorf("Extract() = %q, want .bin asset", got)
	}
}

func TestExtract_CorruptManifest(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ManifestName), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	data := testPNG(t, 2, 2)
	src := &memSource{entries: map[string][]byte{"word/media/image1.png": data}}
	e := NewExtractor(src, "doc.docx", dir, WithLogger(zaptest.NewLogger(t)))

	if got := e.Extract("word/media/image1.png"); got == "" {
		t.Fatal("Extract() failed with corrupted manifest")
	}
	entries := readManifest(t, dir)
	if len(entries) != 1 {
		t.Errorf("manifest has %d entries, want 1", len(entries))
	}
}

func TestExtract_RelativePath(t *testing.T) {
	root := t.TempDir()
	assets := filepath.Join(root, "assets")
	output := filepath.Join(root, "out", "doc.html")

	data := testPNG(t, 2, 2)
	src := &memSource{entries: map[string][]byte{"word/media/image1.png": data}}
	e := NewExtractor(src, "doc.docx", assets, WithOutputFile(output), WithLogger(zaptest.NewLogger(t)))

	want := "../assets/" + hashOf(data) + ".png"
	if got := e.Extract("word/media/image1.png"); got != want {
		t.Errorf("Extract() = %q, want %q", got, want)
	}
}

func TestExtract_MaxWidth(t *testing.T) {
	dir := t.TempDir()
	data := testPNG(t, 40, 20)
	src := &memSource{entries: map[string][]byte{"word/media/wide.png": data}}
	e := NewExtractor(src, "doc.docx", dir, WithMaxWidth(10), WithLogger(zaptest.NewLogger(t)))

	got := e.Extract("word/media/wide.png")
	if want := filepath.ToSlash(filepath.Join(dir, hashOf(data)+".png")); got != want {
		t.Fatalf("Extract() = %q, want %q (name derives from original bytes)", got, want)
	}

	f, err := os.Open(filepath.Join(dir, hashOf(data)+".png"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode stored image: %v", err)
	}
	if cfg.Width != 10 || cfg.Height != 5 {
		t.Errorf("stored image is %dx%d, want 10x5", cfg.Width, cfg.Height)
	}
}

func TestExtract_ZipURL(t *testing.T) {
	root := t.TempDir()
	container := filepath.Join(root, "pictures.docx")
	data := testPNG(t, 2, 2)
	docxtest.Write(t, container, docxtest.Package{
		Body:  docxtest.P("", docxtest.R("", "x")),
		Rels:  []docxtest.Rel{{ID: "rId5", Type: "image", Target: "media/section_image1.png"}},
		Parts: map[string][]byte{"word/media/section_image1.png": data},
	})

	src := archive.NewContainer()
	defer src.Close()

	assets := filepath.Join(root, "assets")
	e := NewExtractor(src, container, assets, WithLogger(zaptest.NewLogger(t)))

	want := filepath.ToSlash(filepath.Join(assets, hashOf(data)+".png"))
	if got := e.Extract("zip://" + container + "#word/media/section_image1.png"); got != want {
		t.Errorf("Extract(zip url) = %q, want %q", got, want)
	}
	if got := e.Extract("rId5"); got != want {
		t.Errorf("Extract(relationship id) = %q, want %q", got, want)
	}
	if got := e.Extract("zip://" + container); got != "" {
		t.Errorf("Extract(malformed zip url) = %q, want empty", got)
	}
}

func TestManifest_Add(t *testing.T) {
	m := &Manifest{}
	m.Add("h1", "h1.png", "a")
	m.Add("h1", "h1.png", "b")
	m.Add("h1", "h1.png", "a")
	m.Add("h2", "h2.gif", "c")

	if len(m.Entries) != 2 {
		t.Fatalf("entries = %+v, want 2", m.Entries)
	}
	if got := m.Entries[0].InternalPaths; len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("aliases = %v, want [a b]", got)
	}
	if e, ok := m.Lookup("c"); !ok || e.Filename != "h2.gif" {
		t.Errorf("Lookup(c) = %+v, %v", e, ok)
	}
	if _, ok := m.Lookup("zzz"); ok {
		t.Error("Lookup(zzz) found unexpected entry")
	}
}
