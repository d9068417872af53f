package convert

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"docx2html/config"
	"docx2html/docx/docxtest"
	"docx2html/state"
)

// setupTestEnv creates a test environment with proper context and logger
func setupTestEnv(t *testing.T) (context.Context, *state.LocalEnv) {
	t.Helper()
	logger := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	cfg, err := config.LoadConfiguration("")
	require.NoError(t, err)

	ctx := state.ContextWithEnv(context.Background())
	env := state.EnvFromContext(ctx)
	env.Log = logger
	env.Cfg = cfg
	require.NoError(t, env.LoadDocumentSettings(""))
	return ctx, env
}

// writeDocument creates container with a single plain paragraph.
func writeDocument(t *testing.T, path, text string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	docxtest.Write(t, path, docxtest.Package{
		Body: docxtest.P("", docxtest.R("", text)),
		Core: `<dc:title>Sample Title</dc:title><dc:creator>Jane Roe</dc:creator>`,
	})
}

// writeArchive packs files from disk into zip archive under given names.
func writeArchive(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, src := range files {
		data, err := os.ReadFile(src)
		require.NoError(t, err)
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func readOutput(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestProcess_SingleDocument(t *testing.T) {
	ctx, env := setupTestEnv(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "in", "report.docx")
	writeDocument(t, src, "Hello & welcome")
	dst := filepath.Join(dir, "out")

	require.NoError(t, process(ctx, src, dst, config.OutputFmtHtml, env.Log))

	out := readOutput(t, filepath.Join(dst, "report.html"))
	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>\n<html lang=\"en\">"))
	assert.Contains(t, out, "<title>Document</title>")
	assert.Contains(t, out, "<p>Hello &amp; welcome</p>")
}

func TestProcess_OutputFile(t *testing.T) {
	ctx, env := setupTestEnv(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "report.docx")
	writeDocument(t, src, "Body")

	dst := filepath.Join(dir, "nested", "result.htm")
	require.NoError(t, process(ctx, src, dst, config.OutputFmtHtml, env.Log))
	assert.Contains(t, readOutput(t, dst), "<p>Body</p>")
}

func TestProcess_Fragment(t *testing.T) {
	ctx, env := setupTestEnv(t)
	env.Cfg.Document.Fragment = true
	dir := t.TempDir()
	src := filepath.Join(dir, "report.docx")
	writeDocument(t, src, "Body")

	require.NoError(t, process(ctx, src, dir, config.OutputFmtHtml, env.Log))
	assert.Equal(t, "<p>Body</p>\n", readOutput(t, filepath.Join(dir, "report.html")))
}

func TestProcess_MetadataTitle(t *testing.T) {
	ctx, env := setupTestEnv(t)
	env.Cfg.Document.UseMetadataTitle = true
	dir := t.TempDir()
	src := filepath.Join(dir, "report.docx")
	writeDocument(t, src, "Body")

	require.NoError(t, process(ctx, src, dir, config.OutputFmtHtml, env.Log))
	assert.Contains(t, readOutput(t, filepath.Join(dir, "report.html")), "<title>Sample Title</title>")
}

func TestProcess_JSON(t *testing.T) {
	ctx, env := setupTestEnv(t)
	env.Cfg.Document.JSON.Indent = "  "
	dir := t.TempDir()
	src := filepath.Join(dir, "report.docx")
	writeDocument(t, src, "<tag>")

	require.NoError(t, process(ctx, src, dir, config.OutputFmtJson, env.Log))
	want := "[\n  [\n    {\n      \"type\": \"paragraph\",\n      \"text\": \"<tag>\"\n    }\n  ]\n]\n"
	assert.Equal(t, want, readOutput(t, filepath.Join(dir, "report.json")))
}

func TestProcess_Overwrite(t *testing.T) {
	ctx, env := setupTestEnv(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "report.docx")
	writeDocument(t, src, "First")
	dst := filepath.Join(dir, "out")

	require.NoError(t, process(ctx, src, dst, config.OutputFmtHtml, env.Log))

	writeDocument(t, src, "Second")
	err := process(ctx, src, dst, config.OutputFmtHtml, env.Log)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output file already exists")
	assert.Contains(t, readOutput(t, filepath.Join(dst, "report.html")), "First")

	env.Overwrite = true
	require.NoError(t, process(ctx, src, dst, config.OutputFmtHtml, env.Log))
	assert.Contains(t, readOutput(t, filepath.Join(dst, "report.html")), "Second")
}

func TestProcess_OutputNameTemplate(t *testing.T) {
	ctx, env := setupTestEnv(t)
	env.Cfg.Document.OutputNameTemplate = `{{ .Creator }}/{{ .Title | lower }}`
	dir := t.TempDir()
	src := filepath.Join(dir, "report.docx")
	writeDocument(t, src, "Body")
	dst := filepath.Join(dir, "out")

	require.NoError(t, process(ctx, src, dst, config.OutputFmtHtml, env.Log))
	_, err := os.Stat(filepath.Join(dst, "Jane Roe", "sample title.html"))
	assert.NoError(t, err)
}

func TestProcess_Directory(t *testing.T) {
	ctx, env := setupTestEnv(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	writeDocument(t, filepath.Join(in, "a.docx"), "A")
	writeDocument(t, filepath.Join(in, "sub", "b.docx"), "B")
	require.NoError(t, os.WriteFile(filepath.Join(in, "notes.txt"), []byte("skip me"), 0644))
	dst := filepath.Join(dir, "out")

	require.NoError(t, process(ctx, in, dst, config.OutputFmtHtml, env.Log))
	assert.Contains(t, readOutput(t, filepath.Join(dst, "a.html")), "<p>A</p>")
	assert.Contains(t, readOutput(t, filepath.Join(dst, "sub", "b.html")), "<p>B</p>")
	_, err := os.Stat(filepath.Join(dst, "notes.html"))
	assert.True(t, os.IsNotExist(err))
}

func TestProcess_DirectoryNoDirs(t *testing.T) {
	ctx, env := setupTestEnv(t)
	env.NoDirs = true
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	writeDocument(t, filepath.Join(in, "sub", "deep", "b.docx"), "B")
	dst := filepath.Join(dir, "out")

	require.NoError(t, process(ctx, in, dst, config.OutputFmtHtml, env.Log))
	assert.Contains(t, readOutput(t, filepath.Join(dst, "b.html")), "<p>B</p>")
}

func TestProcess_DirectoryBrokenDocument(t *testing.T) {
	ctx, env := setupTestEnv(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	writeDocument(t, filepath.Join(in, "good.docx"), "Good")

	// zip container without main document part
	src := filepath.Join(dir, "broken-src.txt")
	require.NoError(t, os.WriteFile(src, []byte("nothing"), 0644))
	writeArchive(t, filepath.Join(in, "broken.docx"), map[string]string{"readme.txt": src})
	dst := filepath.Join(dir, "out")

	// a broken document does not stop batch processing
	require.NoError(t, process(ctx, in, dst, config.OutputFmtHtml, env.Log))
	assert.Contains(t, readOutput(t, filepath.Join(dst, "good.html")), "<p>Good</p>")
}

func TestProcess_Archive(t *testing.T) {
	ctx, env := setupTestEnv(t)
	dir := t.TempDir()
	a := filepath.Join(dir, "src", "a.docx")
	b := filepath.Join(dir, "src", "b.docx")
	writeDocument(t, a, "A")
	writeDocument(t, b, "B")

	arc := filepath.Join(dir, "docs.zip")
	writeArchive(t, arc, map[string]string{
		"first/a.docx":  a,
		"second/b.docx": b,
	})

	t.Run("whole archive", func(t *testing.T) {
		dst := filepath.Join(dir, "all")
		require.NoError(t, process(ctx, arc, dst, config.OutputFmtHtml, env.Log))
		assert.Contains(t, readOutput(t, filepath.Join(dst, "first", "a.html")), "<p>A</p>")
		assert.Contains(t, readOutput(t, filepath.Join(dst, "second", "b.html")), "<p>B</p>")
	})

	t.Run("path inside archive", func(t *testing.T) {
		dst := filepath.Join(dir, "part")
		require.NoError(t, process(ctx, filepath.Join(arc, "second"), dst, config.OutputFmtHtml, env.Log))
		assert.Contains(t, readOutput(t, filepath.Join(dst, "second", "b.html")), "<p>B</p>")
		_, err := os.Stat(filepath.Join(dst, "first", "a.html"))
		assert.True(t, os.IsNotExist(err))
	})
}

func TestProcess_ArchiveInDirectory(t *testing.T) {
	ctx, env := setupTestEnv(t)
	dir := t.TempDir()
	a := filepath.Join(dir, "a.docx")
	writeDocument(t, a, "A")

	in := filepath.Join(dir, "in")
	require.NoError(t, os.MkdirAll(filepath.Join(in, "box"), 0755))
	writeArchive(t, filepath.Join(in, "box", "docs.zip"), map[string]string{"inner/a.docx": a})
	dst := filepath.Join(dir, "out")

	require.NoError(t, process(ctx, in, dst, config.OutputFmtHtml, env.Log))
	assert.Contains(t, readOutput(t, filepath.Join(dst, "box", "inner", "a.html")), "<p>A</p>")
}

func TestProcess_Errors(t *testing.T) {
	ctx, env := setupTestEnv(t)
	dir := t.TempDir()

	t.Run("missing source", func(t *testing.T) {
		err := process(ctx, filepath.Join(dir, "missing", "file.docx"), dir, config.OutputFmtHtml, env.Log)
		require.Error(t, err)
	})

	t.Run("not a document", func(t *testing.T) {
		src := filepath.Join(dir, "plain.txt")
		require.NoError(t, os.WriteFile(src, []byte("text"), 0644))
		err := process(ctx, src, dir, config.OutputFmtHtml, env.Log)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not recognized")
	})

	t.Run("document with tail", func(t *testing.T) {
		src := filepath.Join(dir, "doc.docx")
		writeDocument(t, src, "x")
		err := process(ctx, filepath.Join(src, "inner"), dir, config.OutputFmtHtml, env.Log)
		require.Error(t, err)
	})

	t.Run("broken document", func(t *testing.T) {
		src := filepath.Join(dir, "broken-src.txt")
		require.NoError(t, os.WriteFile(src, []byte("nothing"), 0644))
		doc := filepath.Join(dir, "broken.docx")
		writeArchive(t, doc, map[string]string{"readme.txt": src})
		err := process(ctx, doc, filepath.Join(dir, "out"), config.OutputFmtHtml, env.Log)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unable to read document")
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		src := filepath.Join(dir, "doc.docx")
		writeDocument(t, src, "x")
		err := process(cctx, src, dir, config.OutputFmtHtml, env.Log)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestProcess_ExtractsImages(t *testing.T) {
	ctx, env := setupTestEnv(t)
	dir := t.TempDir()
	env.Cfg.Document.Images.AssetsDir = filepath.Join(dir, "assets")

	src := filepath.Join(dir, "pic.docx")
	docxtest.Write(t, src, docxtest.Package{
		Body: `<w:p><w:r><w:drawing><wp:inline><wp:extent cx="95250" cy="95250"/><wp:docPr id="1" name="Logo"/>` +
			`<a:graphic><a:graphicData><pic:pic><pic:blipFill><a:blip r:embed="rIdImg"/></pic:blipFill></pic:pic></a:graphicData></a:graphic>` +
			`</wp:inline></w:drawing></w:r></w:p>`,
		Rels:  []docxtest.Rel{{ID: "rIdImg", Type: "image", Target: "media/image1.gif"}},
		Parts: map[string][]byte{"word/media/image1.gif": tinyGIF},
	})
	dst := filepath.Join(dir, "out")

	require.NoError(t, process(ctx, src, dst, config.OutputFmtHtml, env.Log))
	out := readOutput(t, filepath.Join(dst, "pic.html"))
	assert.Contains(t, out, `alt="Logo"`)
	assert.Contains(t, out, `width="10" height="10"`)
	assert.NotContains(t, out, "media/image1.gif")

	entries, err := os.ReadDir(env.Cfg.Document.Images.AssetsDir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

// tinyGIF is 1x1 transparent GIF.
var tinyGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00, 0xff, 0xff, 0xff,
	0x00, 0x00, 0x00, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}
