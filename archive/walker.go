// Package archive builds Walk abstraction on top of "archive/zip" and gives
// access to parts of OPC (zip based) document containers.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// WalkFunc is the type of the function called for each file in archive
// visited by Walk. The archive argument contains path to archive passed to Walk
// The file argument is the zip.File structure for file in archive which satisfies
// match condition. If an error is returned, processing stops.
type WalkFunc func(archive string, file *zip.File) error

// Walk walks the all files in the archive which have pattern prefix and
// extension ext (case insensitive, empty ext matches everything), calling
// walkFn for each item. Entries with path traversal components ("..") or
// absolute paths are rejected to prevent Zip Slip attacks.
func Walk(archive, pattern, ext string, walkFn WalkFunc) error {

	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		name := f.FileHeader.Name
		if !isSafePath(name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
		}
		if f.FileInfo().IsDir() || !strings.HasPrefix(name, pattern) {
			continue
		}
		if len(ext) > 0 && !strings.EqualFold(path.Ext(name), ext) {
			continue
		}
		if err := walkFn(archive, f); err != nil {
			return err
		}
	}
	return nil
}

// Extract copies archive entry into directory dir keeping only base name of
// the entry and returns resulting file path.
func Extract(file *zip.File, dir string) (string, error) {
	if !isSafePath(file.Name) {
		return "", fmt.Errorf("zip entry %q: unsafe path", file.Name)
	}
	r, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("unable to open archive entry %q: %w", file.Name, err)
	}
	defer r.Close()

	dst := filepath.Join(dir, path.Base(file.Name))
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("unable to create file for archive entry %q: %w", file.Name, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, r); err != nil {
		return "", fmt.Errorf("unable to extract archive entry %q: %w", file.Name, err)
	}
	return dst, nil
}

// isSafePath returns false for paths that could escape the extraction
// directory: absolute paths and those containing ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return false
	}
	for part := range strings.SplitSeq(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
