// Package blob implements storage.BlobStore on the local filesystem and on S3.
//
// Storage locations are flat object names such as
// "3f0c9b0e-6f5e-4f4e-9a0a-1c2d3e4f5a6b.pdf". Locations containing path
// separators or parent references are rejected with storage.ErrInvalidLocation.
package blob
