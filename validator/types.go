package validator

import "strings"

// MIME types for every allowed extension.
var mimeTypes = map[string]string{
	// Documents
	"pdf":  "application/pdf",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"doc":  "application/msword",
	"txt":  "text/plain",
	"md":   "text/markdown",
	"rtf":  "application/rtf",

	// Spreadsheets
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"xls":  "application/vnd.ms-excel",
	"csv":  "text/csv",

	// Presentations
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"ppt":  "application/vnd.ms-powerpoint",

	// Images
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"svg":  "image/svg+xml",

	// Archives
	"zip": "application/zip",
}

// ooxmlParts maps OOXML extensions to the part directory their archive must contain.
var ooxmlParts = map[string]string{
	"docx": "word/",
	"xlsx": "xl/",
	"pptx": "ppt/",
}

// MimeType returns the MIME type for an allowed extension.
func MimeType(ext string) (string, bool) {
	m, ok := mimeTypes[strings.ToLower(ext)]
	return m, ok
}

// AllowedExtensions returns the allow-list.
func AllowedExtensions() []string {
	exts := make([]string, 0, len(mimeTypes))
	for ext := range mimeTypes {
		exts = append(exts, ext)
	}
	return exts
}

// Accepted describes content that passed validation and was persisted.
type Accepted struct {
	Filename        string
	Extension       string
	MimeType        string
	DetectedMime    string
	Size            int64
	ContentHash     string
	StorageLocation string
}
