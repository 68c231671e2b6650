package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/poiesic/docvault/core"
	"github.com/poiesic/docvault/storage"
)

// Extraction is the output of an extractor.
type Extraction struct {
	Text     string
	Metadata map[string]string
}

// Extractor produces text and metadata from raw bytes of one format.
// Implementations must be safe for concurrent use.
type Extractor interface {
	// Stage is the human-readable progress message shown while this extractor runs.
	Stage() string

	// Extract converts data. Malformed input is reported as an error.
	Extract(ctx context.Context, data []byte) (*Extraction, error)
}

// Registry maps MIME types to extractors and reads artifact bytes from a blob store.
type Registry struct {
	store      storage.BlobStore
	mu         sync.RWMutex
	extractors map[string]Extractor
	logger     *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithoutDefaults starts with an empty registry.
func WithoutDefaults() RegistryOption {
	return func(r *Registry) {
		clear(r.extractors)
	}
}

// NewRegistry creates a Registry with the default extractors registered.
func NewRegistry(store storage.BlobStore, opts ...RegistryOption) *Registry {
	r := &Registry{
		store:      store,
		extractors: make(map[string]Extractor),
		logger:     slog.Default(),
	}
	r.registerDefaults()
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "extract-registry")
	return r
}

func (r *Registry) registerDefaults() {
	r.extractors["application/pdf"] = NewPDFExtractor()
	r.extractors["text/csv"] = NewDelimitedExtractor(',', "Processing CSV file")
	r.extractors["text/tab-separated-values"] = NewDelimitedExtractor('\t', "Processing TSV file")
	r.extractors["text/plain"] = NewTextExtractor("Processing text file")
	r.extractors["text/markdown"] = NewTextExtractor("Processing markdown file")
	r.extractors["application/vnd.openxmlformats-officedocument.wordprocessingml.document"] =
		NewOfficeExtractor("application/vnd.openxmlformats-officedocument.wordprocessingml.document", "Processing Word document")
	r.extractors["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"] =
		NewSpreadsheetExtractor("Processing Excel file")
	r.extractors["application/vnd.openxmlformats-officedocument.presentationml.presentation"] =
		NewOfficeExtractor("application/vnd.openxmlformats-officedocument.presentationml.presentation", "Processing PowerPoint file")
}

// Register adds or replaces the extractor for mimeType.
func (r *Registry) Register(mimeType string, e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[mimeType] = e
}

// Lookup returns the extractor for mimeType.
func (r *Registry) Lookup(mimeType string) (Extractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.extractors[mimeType]
	return e, ok
}

// MimeTypes returns the registered MIME types in sorted order.
func (r *Registry) MimeTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.extractors))
}

// Extract reads the blob at location and runs the extractor for mimeType.
// Returns ErrNoExtractor if none is registered.
func (r *Registry) Extract(ctx context.Context, location, mimeType string) (*Extraction, error) {
	e, ok := r.Lookup(mimeType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoExtractor, mimeType)
	}

	rc, err := r.store.Open(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", core.ErrStorage, location, err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", core.ErrStorage, location, err)
	}

	result, err := safeExtract(ctx, e, data)
	if err != nil {
		r.logger.Debug("extraction failed", "location", location, "mime", mimeType, "err", err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", core.ErrExtraction, err)
	}
	if result.Metadata == nil {
		result.Metadata = map[string]string{}
	}
	return result, nil
}

func safeExtract(ctx context.Context, e Extractor, data []byte) (result *Extraction, err error) {
	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = fmt.Errorf("%w: %v", ErrPanic, p)
		}
	}()
	return e.Extract(ctx, data)
}
