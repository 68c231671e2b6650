package validator

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

// sniffLimit bounds how much of a text file is inspected.
const sniffLimit = 64 * 1024

// maxImagePixels caps the declared dimensions of an uploaded image.
const maxImagePixels = 50_000_000

// imageFormats maps image extensions to the format name image.DecodeConfig reports.
var imageFormats = map[string]string{
	"jpg":  "jpeg",
	"jpeg": "jpeg",
	"png":  "png",
	"gif":  "gif",
}

// sniff checks that the staged content agrees with ext and returns the
// detected MIME type.
func sniff(f io.ReaderAt, size int64, ext string) (string, error) {
	head := make([]byte, min(size, sniffLimit))
	if _, err := f.ReadAt(head, 0); err != nil && err != io.EOF {
		return "", err
	}
	detected := mimetype.Detect(head)

	switch ext {
	case "pdf":
		if !bytes.HasPrefix(head, []byte("%PDF-")) {
			return "", reject(ErrContentMismatch, "missing PDF header")
		}
		pages, err := countPDFPages(f, size)
		if err != nil {
			return "", reject(ErrContentMismatch, "unreadable PDF: %v", err)
		}
		if pages < 1 {
			return "", reject(ErrContentMismatch, "PDF has no pages")
		}
	case "jpg", "jpeg", "png", "gif":
		cfg, format, err := image.DecodeConfig(io.NewSectionReader(f, 0, size))
		if err != nil {
			return "", reject(ErrContentMismatch, "image does not decode: %v", err)
		}
		if format != imageFormats[ext] {
			return "", reject(ErrContentMismatch, "detected %s image", format)
		}
		if int64(cfg.Width)*int64(cfg.Height) > maxImagePixels {
			return "", reject(ErrTooLarge, "image is %dx%d pixels", cfg.Width, cfg.Height)
		}
	case "docx", "xlsx", "pptx":
		if !inHierarchy(detected, "application/zip") {
			return "", reject(ErrContentMismatch, "detected %s", detected)
		}
		if !zipHasPrefix(f, size, ooxmlParts[ext]) {
			return "", reject(ErrContentMismatch, "archive has no %s part", ooxmlParts[ext])
		}
	case "zip":
		if !inHierarchy(detected, "application/zip") {
			return "", reject(ErrContentMismatch, "detected %s", detected)
		}
	case "doc", "xls", "ppt":
		if !inHierarchy(detected, "application/x-ole-storage") {
			return "", reject(ErrContentMismatch, "detected %s", detected)
		}
	case "rtf":
		if !bytes.HasPrefix(head, []byte(`{\rtf`)) {
			return "", reject(ErrContentMismatch, "missing RTF header")
		}
	case "svg":
		if looksBinary(head) || !strings.Contains(strings.ToLower(string(head)), "<svg") {
			return "", reject(ErrContentMismatch, "no svg element")
		}
	case "txt", "md", "csv":
		if looksBinary(head) {
			return "", reject(ErrContentMismatch, "binary content in text file")
		}
	}
	return detected.String(), nil
}

// countPDFPages parses the document structure. The parser panics on some
// malformed inputs, so panics are reported as errors.
func countPDFPages(f io.ReaderAt, size int64) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parser: %v", r)
		}
	}()
	reader, err := pdf.NewReader(f, size)
	if err != nil {
		return 0, err
	}
	return reader.NumPage(), nil
}

func inHierarchy(m *mimetype.MIME, want string) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is(want) {
			return true
		}
	}
	return false
}

func zipHasPrefix(f io.ReaderAt, size int64, prefix string) bool {
	zr, err := zip.NewReader(f, size)
	if err != nil {
		return false
	}
	for _, file := range zr.File {
		if strings.HasPrefix(file.Name, prefix) {
			return true
		}
	}
	return false
}

// looksBinary reports control bytes that never appear in text files.
func looksBinary(b []byte) bool {
	for _, c := range b {
		if c == 0 || (c < 0x20 && c != '\t' && c != '\n' && c != '\r' && c != '\f' && c != 0x1b) {
			return true
		}
	}
	return false
}
