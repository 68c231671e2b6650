// Package extract turns stored artifact bytes into normalized text plus
// structural metadata.
//
// A Registry dispatches purely by MIME type to pluggable Extractor
// implementations:
//
//   - PDF: per-page text via langchaingo's PDF loader, concatenated in page order
//   - CSV/TSV: a textual summary with dimensions, columns, sample rows and
//     numeric statistics
//   - plain text and markdown: UTF-8 with an ISO-8859-1 fallback
//   - DOCX and PPTX: docconv
//
// Extractor failures, including parser panics, are returned as errors
// wrapping core.ErrExtraction. Failures to read the blob wrap core.ErrStorage.
package extract
