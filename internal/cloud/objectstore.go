package cloud

import (
	"strings"

	"github.com/fedesuarez16/opting-sub000/internal/constants"
	"github.com/fedesuarez16/opting-sub000/internal/matcher"
	"github.com/fedesuarez16/opting-sub000/internal/models"
)

// Object stores have no folders: a folder is a key prefix ending in the
// delimiter, and its id is that prefix.

// NormalizePrefix strips leading delimiters and ensures a single trailing one.
// The empty prefix stays empty.
func NormalizePrefix(p string) string {
	p = strings.Trim(strings.TrimSpace(p), constants.ObjectStoreDelimiter)
	if p == "" {
		return ""
	}
	return p + constants.ObjectStoreDelimiter
}

// LastSegment returns the final path segment of a key or prefix.
func LastSegment(key string) string {
	key = strings.TrimSuffix(key, constants.ObjectStoreDelimiter)
	if i := strings.LastIndex(key, constants.ObjectStoreDelimiter); i >= 0 {
		return key[i+1:]
	}
	return key
}

// WithinRoot reports whether prefix lies under root. Every prefix lies under the empty root.
func WithinRoot(prefix, root string) bool {
	return strings.HasPrefix(prefix, root)
}

// PrefixFolder builds the folder entry for a common prefix.
func PrefixFolder(prefix string) models.RemoteFolderEntry {
	return models.NewFolder(prefix, LastSegment(prefix), -1)
}

// FilterFoldersByName keeps the folders whose name contains query, case-insensitively.
func FilterFoldersByName(entries []models.RemoteFolderEntry, query string) []models.RemoteFolderEntry {
	var out []models.RemoteFolderEntry
	for _, e := range entries {
		if e.IsFolder() && matcher.Contains(e.Name, query) {
			out = append(out, e)
		}
	}
	return out
}
