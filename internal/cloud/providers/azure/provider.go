package azure

import (
	"context"
	"errors"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"github.com/fedesuarez16/opting-sub000/internal/cloud"
	"github.com/fedesuarez16/opting-sub000/internal/constants"
	"github.com/fedesuarez16/opting-sub000/internal/logging"
	"github.com/fedesuarez16/opting-sub000/internal/metrics"
	"github.com/fedesuarez16/opting-sub000/internal/models"
)

const backendName = "azure"

// Provider implements cloud.FolderSource over one container. Listings are
// always live, so FetchOptions.Force changes nothing.
type Provider struct {
	lister HierarchyLister
	root   string
	logger *logging.Logger
}

// New creates a provider rooted at rootPrefix.
func New(lister HierarchyLister, rootPrefix string, logger *logging.Logger) *Provider {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Provider{
		lister: lister,
		root:   cloud.NormalizePrefix(rootPrefix),
		logger: logger,
	}
}

// Backend implements cloud.Named.
func (p *Provider) Backend() string {
	return backendName
}

// ListRootFolders returns the prefixes directly under the root prefix.
func (p *Provider) ListRootFolders(ctx context.Context, opts cloud.FetchOptions) ([]models.RemoteFolderEntry, error) {
	return p.list(ctx, cloud.ActionListRootFolders, p.root, false)
}

// ListFolderContents returns the prefixes and blobs directly under folderID.
func (p *Provider) ListFolderContents(ctx context.Context, folderID string, opts cloud.FetchOptions) ([]models.RemoteFolderEntry, error) {
	prefix := cloud.NormalizePrefix(folderID)
	if prefix == "" {
		return nil, &cloud.FetchError{Action: cloud.ActionListFolderContents, Message: "folder id is required"}
	}
	if !cloud.WithinRoot(prefix, p.root) {
		return nil, &cloud.FetchError{Action: cloud.ActionListFolderContents, Message: "folder " + folderID + " is outside the drive root"}
	}
	return p.list(ctx, cloud.ActionListFolderContents, prefix, true)
}

// SearchFoldersByName returns root folders whose name contains query.
func (p *Provider) SearchFoldersByName(ctx context.Context, query string, opts cloud.FetchOptions) ([]models.RemoteFolderEntry, error) {
	roots, err := p.list(ctx, cloud.ActionSearchFolder, p.root, false)
	if err != nil {
		return nil, err
	}
	return cloud.FilterFoldersByName(roots, query), nil
}

func (p *Provider) list(ctx context.Context, action, prefix string, withFiles bool) ([]models.RemoteFolderEntry, error) {
	start := time.Now()
	var entries []models.RemoteFolderEntry

	marker := ""
	for pages := 0; ; pages++ {
		if pages >= constants.MaxListPages {
			p.logger.Warn().Str("action", action).Str("prefix", prefix).Msg("azure listing truncated at page limit")
			break
		}
		page, err := p.lister.ListHierarchy(ctx, prefix, marker)
		if err != nil {
			err = classify(action, err)
			metrics.RecordDriveRequest(backendName, action, outcomeOf(err), time.Since(start))
			p.logger.Warn().Err(err).Str("action", action).Str("prefix", prefix).Msg("azure listing failed")
			return nil, err
		}

		for _, name := range page.Prefixes {
			entries = append(entries, cloud.PrefixFolder(name))
		}
		if withFiles {
			for _, b := range page.Blobs {
				// directory marker blobs
				if b.Name == prefix || strings.HasSuffix(b.Name, constants.ObjectStoreDelimiter) {
					continue
				}
				entries = append(entries, models.NewFile(b.Name, cloud.LastSegment(b.Name), b.Size, "", p.lister.BlobURL(b.Name)))
			}
		}

		if page.NextMarker == "" {
			break
		}
		marker = page.NextMarker
	}

	valid, dropped := cloud.FilterValid(entries, p.logger.Zerolog())
	metrics.RecordDroppedEntries(backendName, action, dropped)
	metrics.RecordDriveRequest(backendName, action, metrics.OutcomeOK, time.Since(start))
	p.logger.Debug().
		Str("action", action).
		Str("prefix", prefix).
		Int("entries", len(valid)).
		Dur("took", time.Since(start)).
		Msg("azure listing fetched")
	return valid, nil
}

// unauthenticatedCodes are storage error codes for a missing, invalid or expired SAS
var unauthenticatedCodes = map[string]bool{
	"AuthenticationFailed":            true,
	"AuthorizationFailure":            true,
	"AuthorizationPermissionMismatch": true,
	"NoAuthenticationInformation":     true,
}

// classify maps an azcore error onto the drive error taxonomy
func classify(action string, err error) error {
	var respErr *azcore.ResponseError
	if !errors.As(err, &respErr) {
		return cloud.NewFetchError(action, 0, err)
	}
	if unauthenticatedCodes[respErr.ErrorCode] ||
		respErr.StatusCode == nethttp.StatusUnauthorized ||
		respErr.StatusCode == nethttp.StatusForbidden {
		return &unauthenticatedError{action: action, code: respErr.ErrorCode, err: err}
	}
	msg := respErr.ErrorCode
	if msg == "" {
		msg = nethttp.StatusText(respErr.StatusCode)
	}
	return &cloud.FetchError{
		Action:     action,
		StatusCode: respErr.StatusCode,
		Message:    msg,
		Err:        err,
	}
}

// unauthenticatedError keeps the SDK error for logs while matching cloud.ErrUnauthenticated
type unauthenticatedError struct {
	action string
	code   string
	err    error
}

func (e *unauthenticatedError) Error() string {
	if e.code != "" {
		return e.action + ": " + cloud.ErrUnauthenticated.Error() + ": " + e.code
	}
	return e.action + ": " + cloud.ErrUnauthenticated.Error()
}

func (e *unauthenticatedError) Is(target error) bool {
	return target == cloud.ErrUnauthenticated
}

func (e *unauthenticatedError) Unwrap() error {
	return e.err
}

func outcomeOf(err error) string {
	if cloud.IsUnauthenticated(err) {
		return metrics.OutcomeUnauthenticated
	}
	return metrics.OutcomeError
}

var _ cloud.FolderSource = (*Provider)(nil)
