package azure

import (
	"context"
	"errors"
	nethttp "net/http"
	"sync"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedesuarez16/opting-sub000/internal/cloud"
	"github.com/fedesuarez16/opting-sub000/internal/config"
)

func TestBuildSASURL(t *testing.T) {
	tests := []struct {
		name       string
		accountURL string
		sas        string
		want       string
	}{
		{"plain", "https://acct.blob.core.windows.net", "sv=2021-06-08&sig=abc", "https://acct.blob.core.windows.net/?sv=2021-06-08&sig=abc"},
		{"leading question mark", "https://acct.blob.core.windows.net/", "?sv=1&sig=x", "https://acct.blob.core.windows.net/?sv=1&sig=x"},
		{"no sas", "https://acct.blob.core.windows.net", "", "https://acct.blob.core.windows.net/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildSASURL(tt.accountURL, tt.sas)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := buildSASURL("  ", "sig=x")
	assert.ErrorIs(t, err, config.ErrMissingAccountURL)
}

func TestBlobURL(t *testing.T) {
	l := &containerLister{container: "docs", baseURL: "https://acct.blob.core.windows.net", sas: "sig=abc"}

	got := l.BlobURL("Acme Corp/Sucursal Norte/informe #1.pdf")

	assert.Equal(t, "https://acct.blob.core.windows.net/docs/Acme%20Corp/Sucursal%20Norte/informe%20%231.pdf?sig=abc", got)
}

func TestNewFromConfigRequiresContainer(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Drive.Backend = config.BackendAzure
	cfg.Drive.Azure.AccountURL = "https://acct.blob.core.windows.net"

	_, err := NewFromConfig(cfg, nil)

	assert.ErrorIs(t, err, config.ErrMissingContainer)
}

// fakeLister serves fixed pages per prefix; the marker is the page index
type fakeLister struct {
	mu      sync.Mutex
	pages   map[string][]*HierarchyPage
	err     error
	markers []string
}

func (f *fakeLister) ListHierarchy(ctx context.Context, prefix, marker string) (*HierarchyPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markers = append(f.markers, marker)
	if f.err != nil {
		return nil, f.err
	}
	pages := f.pages[prefix]
	idx := 0
	if marker != "" {
		idx = int(marker[0] - '0')
	}
	if idx >= len(pages) {
		return &HierarchyPage{}, nil
	}
	page := *pages[idx]
	if idx+1 < len(pages) {
		page.NextMarker = string(rune('0' + idx + 1))
	}
	return &page, nil
}

func (f *fakeLister) BlobURL(name string) string {
	return "https://blob.example/" + name + "?sig=x"
}

func newLister() *fakeLister {
	return &fakeLister{pages: map[string][]*HierarchyPage{
		"": {
			{Prefixes: []string{"Acme Corp/"}},
			{Prefixes: []string{"Otra Empresa/"}, Blobs: []Blob{{Name: "readme.txt", Size: 1}}},
		},
		"Acme Corp/": {
			{
				Prefixes: []string{"Acme Corp/Sucursal Sur/"},
				Blobs: []Blob{
					{Name: "Acme Corp/", Size: 0},
					{Name: "Acme Corp/plan.xlsx", Size: 512},
				},
			},
		},
	}}
}

func TestProviderListing(t *testing.T) {
	ctx := context.Background()

	t.Run("should follow markers across pages", func(t *testing.T) {
		lister := newLister()
		p := New(lister, "", nil)

		got, err := p.ListRootFolders(ctx, cloud.FetchOptions{})

		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "Acme Corp", got[0].Name)
		assert.Equal(t, "Otra Empresa/", got[1].ID)
		assert.Equal(t, []string{"", "1"}, lister.markers)
		assert.Equal(t, "azure", p.Backend())
	})

	t.Run("should list folder contents with signed links", func(t *testing.T) {
		p := New(newLister(), "", nil)

		got, err := p.ListFolderContents(ctx, "Acme Corp/", cloud.FetchOptions{Force: true})

		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.True(t, got[0].IsFolder())
		assert.Equal(t, "Sucursal Sur", got[0].Name)
		assert.Equal(t, "plan.xlsx", got[1].Name)
		assert.Equal(t, int64(512), got[1].SizeOrZero())
		assert.Equal(t, "https://blob.example/Acme Corp/plan.xlsx?sig=x", got[1].DownloadURL)
	})

	t.Run("should reject folders outside the root", func(t *testing.T) {
		p := New(newLister(), "tenants", nil)

		_, err := p.ListFolderContents(ctx, "Acme Corp/", cloud.FetchOptions{})

		_, ok := cloud.AsFetchError(err)
		assert.True(t, ok)
	})

	t.Run("should search root folder names", func(t *testing.T) {
		p := New(newLister(), "", nil)

		got, err := p.SearchFoldersByName(ctx, "EMPRESA", cloud.FetchOptions{})

		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Otra Empresa", got[0].Name)
	})
}

func TestProviderErrors(t *testing.T) {
	respErr := func(status int, code string) error {
		return &azcore.ResponseError{
			StatusCode:  status,
			ErrorCode:   code,
			RawResponse: &nethttp.Response{StatusCode: status, Request: &nethttp.Request{Method: nethttp.MethodGet}},
		}
	}

	tests := []struct {
		name  string
		err   error
		unath bool
	}{
		{"forbidden sas", respErr(403, "AuthenticationFailed"), true},
		{"unauthorized", respErr(401, ""), true},
		{"permission code", respErr(409, "AuthorizationPermissionMismatch"), true},
		{"missing container", respErr(404, "ContainerNotFound"), false},
		{"transport", errors.New("connection reset"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(&fakeLister{err: tt.err}, "", nil)

			_, err := p.ListRootFolders(context.Background(), cloud.FetchOptions{})

			require.Error(t, err)
			assert.Equal(t, tt.unath, cloud.IsUnauthenticated(err))
			if !tt.unath {
				fe, ok := cloud.AsFetchError(err)
				require.True(t, ok)
				assert.NotEmpty(t, fe.Message)
			}
		})
	}
}
