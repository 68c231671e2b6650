// Package mock provides test double implementations of AI service interfaces.
//
// The mocks let tests run without an embedding server and give controlled,
// deterministic vectors.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	provider := mock.NewMockProvider()
//	vec, err := provider.Embedder().EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	embedder := mock.NewMockEmbedder().
//	    WithEmbedTextsFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
//	        return nil, errors.New("service down")
//	    })
//
//	// Check call counts
//	count := embedder.CallCount()
//
// # Default Behavior
//
// MockEmbedder returns unit-length vectors of DefaultDimension derived from
// an FNV hash of the text, so equal texts always embed identically.
package mock
