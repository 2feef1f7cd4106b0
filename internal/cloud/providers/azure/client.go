// Package azure provides a drive folder source over an Azure Blob container.
// Blob name prefixes are folders and blobs are files; file links carry the SAS token.
package azure

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/fedesuarez16/opting-sub000/internal/config"
	"github.com/fedesuarez16/opting-sub000/internal/constants"
	"github.com/fedesuarez16/opting-sub000/internal/http"
	"github.com/fedesuarez16/opting-sub000/internal/logging"
)

// Blob is one blob of a hierarchy listing page
type Blob struct {
	Name string
	Size int64
}

// HierarchyPage is one page of a delimiter listing
type HierarchyPage struct {
	Prefixes   []string
	Blobs      []Blob
	NextMarker string
}

// HierarchyLister lists one container level at a time. Satisfied by the
// azblob-backed lister; tests substitute a fake.
type HierarchyLister interface {
	ListHierarchy(ctx context.Context, prefix, marker string) (*HierarchyPage, error)
	BlobURL(name string) string
}

// containerLister lists a container through azblob
type containerLister struct {
	client    *container.Client
	container string
	baseURL   string
	sas       string
}

// ListHierarchy fetches the page starting at marker.
func (l *containerLister) ListHierarchy(ctx context.Context, prefix, marker string) (*HierarchyPage, error) {
	opts := &container.ListBlobsHierarchyOptions{}
	if prefix != "" {
		opts.Prefix = to.Ptr(prefix)
	}
	if marker != "" {
		opts.Marker = to.Ptr(marker)
	}

	pager := l.client.NewListBlobsHierarchyPager(constants.ObjectStoreDelimiter, opts)
	resp, err := pager.NextPage(ctx)
	if err != nil {
		return nil, err
	}

	page := &HierarchyPage{}
	if resp.NextMarker != nil {
		page.NextMarker = *resp.NextMarker
	}
	if resp.Segment == nil {
		return page, nil
	}
	for _, p := range resp.Segment.BlobPrefixes {
		if p != nil && p.Name != nil {
			page.Prefixes = append(page.Prefixes, *p.Name)
		}
	}
	for _, b := range resp.Segment.BlobItems {
		if b == nil || b.Name == nil {
			continue
		}
		size := int64(-1)
		if b.Properties != nil && b.Properties.ContentLength != nil {
			size = *b.Properties.ContentLength
		}
		page.Blobs = append(page.Blobs, Blob{Name: *b.Name, Size: size})
	}
	return page, nil
}

// BlobURL returns the SAS-signed URL of a blob.
func (l *containerLister) BlobURL(name string) string {
	u := l.baseURL + "/" + url.PathEscape(l.container) + "/" + escapeBlobName(name)
	if l.sas != "" {
		u += "?" + l.sas
	}
	return u
}

// escapeBlobName escapes each path segment, keeping the delimiters
func escapeBlobName(name string) string {
	parts := strings.Split(name, constants.ObjectStoreDelimiter)
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, constants.ObjectStoreDelimiter)
}

// buildSASURL joins the account URL and SAS token into the service URL
func buildSASURL(accountURL, sas string) (string, error) {
	accountURL = strings.TrimSuffix(strings.TrimSpace(accountURL), "/")
	if accountURL == "" {
		return "", fmt.Errorf("azure drive: %w", config.ErrMissingAccountURL)
	}
	if _, err := url.Parse(accountURL); err != nil {
		return "", fmt.Errorf("invalid azure account URL: %w", err)
	}
	sas = strings.TrimPrefix(strings.TrimSpace(sas), "?")
	if sas == "" {
		return accountURL + "/", nil
	}
	return accountURL + "/?" + sas, nil
}

// NewFromConfig builds a Provider from the [drive.azure] settings.
func NewFromConfig(cfg *config.Config, logger *logging.Logger) (*Provider, error) {
	az := cfg.Drive.Azure
	if az.Container == "" {
		return nil, fmt.Errorf("azure drive: %w", config.ErrMissingContainer)
	}
	serviceURL, err := buildSASURL(az.AccountURL, az.SASToken)
	if err != nil {
		return nil, err
	}

	// Shared HTTP client with proxy support
	httpClient, err := http.ConfigureHTTPClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	// azcore treats 0 as "use the default", negative as no retries
	maxRetries := int32(cfg.Drive.MaxRetries)
	if maxRetries == 0 {
		maxRetries = -1
	}

	client, err := azblob.NewClientWithNoCredential(serviceURL, &azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Transport: httpClient,
			Retry: policy.RetryOptions{
				MaxRetries:    maxRetries,
				TryTimeout:    cfg.Drive.RequestTimeout(),
				RetryDelay:    constants.DriveRetryWaitMin,
				MaxRetryDelay: constants.DriveRetryWaitMax,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	lister := &containerLister{
		client:    client.ServiceClient().NewContainerClient(az.Container),
		container: az.Container,
		baseURL:   strings.TrimSuffix(strings.TrimSpace(az.AccountURL), "/"),
		sas:       strings.TrimPrefix(strings.TrimSpace(az.SASToken), "?"),
	}
	return New(lister, az.RootPrefix, logger), nil
}
