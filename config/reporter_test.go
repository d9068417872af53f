package config

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

func newTestReport(t *testing.T) (*Report, string) {
	t.Helper()
	dst := filepath.Join(t.TempDir(), "report.zip")
	conf := ReporterConfig{Destination: dst}
	r, err := conf.Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	return r, dst
}

func readReport(t *testing.T, name string) map[string]string {
	t.Helper()
	zr, err := zip.OpenReader(name)
	if err != nil {
		t.Fatalf("unable to open report: %v", err)
	}
	defer zr.Close()

	res := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("unable to open report entry %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("unable to read report entry %s: %v", f.Name, err)
		}
		res[f.Name] = string(data)
	}
	return res
}

func TestReport_Content(t *testing.T) {
	r, dst := newTestReport(t)

	src := t.TempDir()
	result := filepath.Join(src, "result.html")
	if err := os.WriteFile(result, []byte("<p>result</p>"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	assets := filepath.Join(src, "assets")
	if err := os.MkdirAll(filepath.Join(assets, "sub"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(assets, "sub", "a.png"), []byte("png"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	r.StoreData("docx2html-tree.txt", []byte("tree"))
	r.Store("result.html", result)
	r.Store("assets", assets)
	r.Store("missing.txt", filepath.Join(src, "missing.txt"))

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	entries := readReport(t, dst)
	names := make([]string, 0, len(entries))
	for n := range entries {
		names = append(names, n)
	}
	sort.Strings(names)
	expected := []string{"MANIFEST", "assets/sub/a.png", "docx2html-tree.txt", "result.html"}
	if strings.Join(names, ",") != strings.Join(expected, ",") {
		t.Fatalf("report entries = %v, want %v", names, expected)
	}
	if entries["docx2html-tree.txt"] != "tree" {
		t.Errorf("data entry = %q, want %q", entries["docx2html-tree.txt"], "tree")
	}
	if entries["result.html"] != "<p>result</p>" {
		t.Errorf("file entry = %q", entries["result.html"])
	}
	// absent files are listed in manifest only
	if !strings.Contains(entries["MANIFEST"], "missing.txt") {
		t.Errorf("manifest does not mention missing file:\n%s", entries["MANIFEST"])
	}

	// stored originals are never removed
	if _, err := os.Stat(result); err != nil {
		t.Errorf("stored file should not be removed, but got error: %v", err)
	}
}

func TestReport_StoreCopy(t *testing.T) {
	r, dst := newTestReport(t)

	src := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(src, []byte("version: 1"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := r.StoreCopy("config", src); err != nil {
		t.Fatalf("StoreCopy() error = %v", err)
	}
	// copy is taken at the time of a call
	if err := os.WriteFile(src, []byte("version: 2"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	// repeated name gets versioned
	if err := r.StoreCopy("config", src); err != nil {
		t.Fatalf("StoreCopy() error = %v", err)
	}

	var copies []string
	r.mu.Lock()
	for _, e := range r.entries {
		if e.temporary {
			copies = append(copies, e.actual)
		}
	}
	r.mu.Unlock()
	if len(copies) != 2 {
		t.Fatalf("temporary copies = %d, want 2", len(copies))
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	entries := readReport(t, dst)
	if entries["config/config.yaml"] != "version: 1" {
		t.Errorf("first copy = %q, want %q", entries["config/config.yaml"], "version: 1")
	}
	if len(entries) != 3 {
		t.Errorf("report has %d entries, want 3 (manifest and two copies)", len(entries))
	}

	// temporary copies are removed on close
	for _, dir := range copies {
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			os.RemoveAll(dir)
			t.Errorf("expected %s to be removed, but it still exists", dir)
		}
	}
}

func TestReport_StoreCopyMissing(t *testing.T) {
	r, _ := newTestReport(t)
	defer r.Close()

	if err := r.StoreCopy("missing", filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("StoreCopy() expected error for missing file")
	}
}

func TestReport_Duplicates(t *testing.T) {
	r, _ := newTestReport(t)
	defer r.Close()

	r.Store("result", "/tmp/a")
	// same path under the same name is fine
	r.Store("result", "/tmp/a")

	assertPanics := func(name string, fn func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Errorf("%s: expected panic", name)
			}
		}()
		fn()
	}
	assertPanics("Store", func() { r.Store("result", "/tmp/b") })

	r.StoreData("data", []byte("1"))
	assertPanics("StoreData", func() { r.StoreData("data", []byte("2")) })
}

func TestReportClose_NilReport(t *testing.T) {
	var r *Report
	r.Store("name", "path")
	r.StoreData("name", nil)
	if err := r.StoreCopy("name", "path"); err != nil {
		t.Errorf("StoreCopy on nil report should not error, got: %v", err)
	}
	if r.Name() != "" {
		t.Errorf("Name on nil report = %q, want empty", r.Name())
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close on nil report should not error, got: %v", err)
	}
}

func TestReportClose_NilFile(t *testing.T) {
	r := &Report{entries: make(map[string]entry)}
	if err := r.Close(); err != nil {
		t.Errorf("Close with nil file should not error, got: %v", err)
	}
}
