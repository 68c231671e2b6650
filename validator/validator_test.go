package validator

import (
	"bytes"
	"context"
	"encoding/hex"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/go-crypt/x/blake2b"
	"github.com/poiesic/docvault/core"
	"github.com/poiesic/docvault/internal/testdoc"
	"github.com/poiesic/docvault/storage/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupValidator(t *testing.T, opts ...Option) (*Validator, *blob.LocalStore, string) {
	t.Helper()
	store, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	staging := t.TempDir()
	v, err := New(store, append([]Option{WithTempDir(staging)}, opts...)...)
	require.NoError(t, err)
	return v, store, staging
}

func assertNoStagingFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func assertStoreEmpty(t *testing.T, store *blob.LocalStore) {
	t.Helper()
	entries, err := os.ReadDir(store.Root())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestValidate_AcceptsPDF(t *testing.T) {
	v, store, staging := setupValidator(t)
	ctx := context.Background()
	data := testdoc.PDF("page one", "page two", "page three")

	accepted, err := v.Validate(ctx, bytes.NewReader(data), "report.PDF")
	require.NoError(t, err)

	assert.Equal(t, "report.PDF", accepted.Filename)
	assert.Equal(t, "pdf", accepted.Extension)
	assert.Equal(t, "application/pdf", accepted.MimeType)
	assert.Equal(t, "application/pdf", accepted.DetectedMime)
	assert.Equal(t, int64(len(data)), accepted.Size)
	assert.True(t, strings.HasSuffix(accepted.StorageLocation, ".pdf"))

	h, err := blake2b.New256(nil)
	require.NoError(t, err)
	h.Write(data)
	assert.Equal(t, hex.EncodeToString(h.Sum(nil)), accepted.ContentHash)

	rc, err := store.Open(ctx, accepted.StorageLocation)
	require.NoError(t, err)
	stored, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, data, stored)

	assertNoStagingFiles(t, staging)
}

func TestValidate_ZeroBytePDF(t *testing.T) {
	v, store, staging := setupValidator(t)

	_, err := v.Validate(context.Background(), bytes.NewReader(nil), "empty.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.ErrorIs(t, err, ErrEmpty)

	assertNoStagingFiles(t, staging)
	assertStoreEmpty(t, store)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		data   []byte
		reason error
	}{
		{"disallowed extension", "tool.exe", []byte("MZ"), ErrTypeNotAllowed},
		{"no extension", "README", []byte("hello"), ErrTypeNotAllowed},
		{"pdf without header", "fake.pdf", []byte("not a pdf at all"), ErrContentMismatch},
		{"pdf header but garbage", "broken.pdf", []byte("%PDF-1.4\ngarbage"), ErrContentMismatch},
		{"pdf with no pages", "blank.pdf", testdoc.PDF(), ErrContentMismatch},
		{"png that is text", "image.png", []byte("hello world"), ErrContentMismatch},
		{"jpg that is png", "image.jpg", testdoc.PNG(), ErrContentMismatch},
		{"png declaring huge dimensions", "huge.png", testdoc.PNGDeclaring(16000, 16000), ErrTooLarge},
		{"docx that is text", "doc.docx", []byte("plain text"), ErrContentMismatch},
		{"docx missing word part", "doc.docx", testdoc.Zip(map[string]string{"xl/workbook.xml": "<x/>"}), ErrContentMismatch},
		{"zip that is text", "archive.zip", []byte("plain text"), ErrContentMismatch},
		{"doc without ole header", "old.doc", []byte("plain text"), ErrContentMismatch},
		{"rtf without header", "notes.rtf", []byte("plain text"), ErrContentMismatch},
		{"svg without element", "logo.svg", []byte("<html></html>"), ErrContentMismatch},
		{"binary txt", "notes.txt", []byte{0x00, 0x01, 0x02, 'a'}, ErrContentMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, store, staging := setupValidator(t)
			_, err := v.Validate(context.Background(), bytes.NewReader(tt.data), tt.file)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrValidation)
			assert.ErrorIs(t, err, tt.reason)
			assertNoStagingFiles(t, staging)
			assertStoreEmpty(t, store)
		})
	}
}

func TestValidate_Accepts(t *testing.T) {
	tests := []struct {
		name string
		file string
		data []byte
		mime string
	}{
		{"text", "notes.txt", []byte("hello\nworld\n"), "text/plain"},
		{"latin1 text", "notes.txt", []byte("caf\xe9 au lait"), "text/plain"},
		{"markdown", "README.md", []byte("# Title\n\nBody"), "text/markdown"},
		{"csv", "data.csv", []byte("a,b\n1,2\n"), "text/csv"},
		{"png", "dot.png", testdoc.PNG(), "image/png"},
		{"png at the pixel cap", "wide.png", testdoc.PNGDeclaring(10000, 5000), "image/png"},
		{"docx", "letter.docx", testdoc.DOCX("Dear reader"), "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{"zip", "bundle.zip", testdoc.Zip(map[string]string{"a.txt": "a"}), "application/zip"},
		{"doc", "old.doc", testdoc.OLE2Header(), "application/msword"},
		{"rtf", "notes.rtf", []byte(`{\rtf1\ansi hello}`), "application/rtf"},
		{"svg", "logo.svg", []byte(`<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg"></svg>`), "image/svg+xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _, staging := setupValidator(t)
			accepted, err := v.Validate(context.Background(), bytes.NewReader(tt.data), tt.file)
			require.NoError(t, err)
			assert.Equal(t, tt.mime, accepted.MimeType)
			assertNoStagingFiles(t, staging)
		})
	}
}

func TestValidate_SizeCeiling(t *testing.T) {
	v, store, staging := setupValidator(t, WithMaxBytes(10))

	_, err := v.Validate(context.Background(), strings.NewReader("0123456789A"), "big.txt")
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.ErrorIs(t, err, ErrTooLarge)
	assertNoStagingFiles(t, staging)
	assertStoreEmpty(t, store)

	// Exactly at the ceiling is fine
	_, err = v.Validate(context.Background(), strings.NewReader("0123456789"), "ok.txt")
	assert.NoError(t, err)
}

func TestValidate_StripsDirectories(t *testing.T) {
	v, _, _ := setupValidator(t)
	accepted, err := v.Validate(context.Background(), strings.NewReader("x"), `..\..\etc/notes.txt`)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", accepted.Filename)
}

func TestNew_Options(t *testing.T) {
	store, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = New(nil)
	assert.Error(t, err)

	_, err = New(store, WithMaxBytes(0))
	assert.Error(t, err)

	v, err := New(store)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxBytes, v.MaxBytes())
}

func TestMimeType(t *testing.T) {
	m, ok := MimeType("PDF")
	assert.True(t, ok)
	assert.Equal(t, "application/pdf", m)

	_, ok = MimeType("exe")
	assert.False(t, ok)

	assert.Len(t, AllowedExtensions(), 17)
}
