package blob

import (
	"fmt"
	"strings"

	"github.com/poiesic/docvault/storage"
)

// checkLocation rejects locations that could escape the store's root.
func checkLocation(location string) error {
	if location == "" || location == "." || location == ".." ||
		strings.ContainsAny(location, `/\`) || strings.ContainsRune(location, 0) {
		return fmt.Errorf("%w: %q", storage.ErrInvalidLocation, location)
	}
	return nil
}
