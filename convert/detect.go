package convert

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
)

const documentExt = ".docx"

// headerSize is enough for filetype to recognize OOXML containers.
const headerSize = 8192

func readHeader(r io.Reader) ([]byte, error) {
	buf := make([]byte, headerSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

func fileHeader(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header, err := readHeader(f)
	if err != nil {
		return nil, fmt.Errorf("unable to read file header: %w", err)
	}
	return header, nil
}

// isZipHeader accepts plain zip archives and OOXML containers, filetype
// reports the latter with their own document types.
func isZipHeader(header []byte) bool {
	kind, err := filetype.Match(header)
	if err != nil || kind == filetype.Unknown {
		return false
	}
	switch kind {
	case matchers.TypeZip, matchers.TypeDocx, matchers.TypeXlsx, matchers.TypePptx:
		return true
	}
	return false
}

func hasDocumentExt(name string) bool {
	return strings.EqualFold(filepath.Ext(name), documentExt)
}

// isDocumentFile checks if path is word processing document container.
func isDocumentFile(path string) (bool, error) {
	if !hasDocumentExt(path) {
		return false, nil
	}
	header, err := fileHeader(path)
	if err != nil {
		return false, err
	}
	return isZipHeader(header), nil
}

// isArchiveFile checks if path is zip archive which may hold documents. Document
// containers are zip files too and are never treated as archives.
func isArchiveFile(path string) (bool, error) {
	if hasDocumentExt(path) {
		return false, nil
	}
	header, err := fileHeader(path)
	if err != nil {
		return false, err
	}
	kind, _ := filetype.Match(header)
	return kind == matchers.TypeZip, nil
}

// isDocumentInArchive checks archive entry the same way isDocumentFile does.
func isDocumentInArchive(f *zip.File) (bool, error) {
	if !hasDocumentExt(f.Name) {
		return false, nil
	}
	r, err := f.Open()
	if err != nil {
		return false, err
	}
	defer r.Close()

	header, err := readHeader(r)
	if err != nil {
		return false, fmt.Errorf("unable to read archive entry header: %w", err)
	}
	return isZipHeader(header), nil
}
