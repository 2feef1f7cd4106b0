// Package cloud defines the read-only folder source contract shared by every
// drive backend (the dashboard drive API, S3 buckets and Azure Blob containers),
// together with the error taxonomy and entry validation those backends share.
package cloud

import (
	"context"

	"github.com/fedesuarez16/opting-sub000/internal/models"
)

// FetchOptions modifies a single listing call.
type FetchOptions struct {
	// Force requests a fresh network round trip: no cached response may be served,
	// and HTTP backends send cache-busting parameters and headers.
	Force bool
}

// FolderSource lists a remote drive tree. All three operations are idempotent reads.
// Failures are ErrUnauthenticated (session missing or expired) or a *FetchError.
// Entries violating the folder/file invariant are dropped, never returned.
type FolderSource interface {
	ListRootFolders(ctx context.Context, opts FetchOptions) ([]models.RemoteFolderEntry, error)
	ListFolderContents(ctx context.Context, folderID string, opts FetchOptions) ([]models.RemoteFolderEntry, error)
	SearchFoldersByName(ctx context.Context, query string, opts FetchOptions) ([]models.RemoteFolderEntry, error)
}

// Named is implemented by sources that report a backend name for logs and metrics.
type Named interface {
	Backend() string
}

// Invalidator is implemented by sources that cache listings.
type Invalidator interface {
	InvalidateCache()
}

// InvalidateCache drops src's cached listings, if it keeps any.
func InvalidateCache(src FolderSource) {
	if inv, ok := src.(Invalidator); ok {
		inv.InvalidateCache()
	}
}

// BackendName returns the backend name of src, or "unknown".
func BackendName(src FolderSource) string {
	if n, ok := src.(Named); ok {
		return n.Backend()
	}
	return "unknown"
}

// Actions, used as metric labels and in FetchError
const (
	ActionListRootFolders    = "list-root-folders"
	ActionListFolderContents = "list-folder-contents"
	ActionSearchFolder       = "search-folder"
)
