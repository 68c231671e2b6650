// Package validator admits uploaded content into docvault.
//
// Validate stages the stream to a temporary file while hashing it, rejects
// content whose extension is not allowed, whose size is zero or above the
// ceiling, or whose bytes disagree with the extension, and finally writes the
// accepted bytes to the blob store under a fresh "<uuid>.<ext>" location.
// Every rejection wraps core.ErrValidation and one of this package's reason
// errors. The staging file is always removed.
package validator
