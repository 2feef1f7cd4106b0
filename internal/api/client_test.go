package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedesuarez16/opting-sub000/internal/cloud"
	"github.com/fedesuarez16/opting-sub000/internal/config"
	"github.com/fedesuarez16/opting-sub000/internal/models"
	"github.com/fedesuarez16/opting-sub000/internal/ratelimit"
)

// driveServer is a scripted /folders endpoint that records the requests it receives
type driveServer struct {
	*httptest.Server
	hits     atomic.Int32
	mu       sync.Mutex
	requests []*http.Request
	handler  func(w http.ResponseWriter, r *http.Request, hit int)
}

func newDriveServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, hit int)) *driveServer {
	t.Helper()
	ds := &driveServer{handler: handler}
	ds.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit := int(ds.hits.Add(1))
		ds.mu.Lock()
		ds.requests = append(ds.requests, r.Clone(context.Background()))
		ds.mu.Unlock()
		ds.handler(w, r, hit)
	}))
	t.Cleanup(ds.Close)
	return ds
}

func (ds *driveServer) request(i int) *http.Request {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.requests[i]
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

func newTestClient(t *testing.T, baseURL string, mutate func(*config.Config), opts ...Option) *Client {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Drive.BaseURL = baseURL
	cfg.Drive.Token = "drive-token"
	cfg.Drive.MaxRetries = 0
	if mutate != nil {
		mutate(cfg)
	}
	opts = append([]Option{WithRetryWait(time.Millisecond, 2*time.Millisecond)}, opts...)
	c, err := NewClient(cfg, opts...)
	require.NoError(t, err)
	return c
}

func TestNewClient(t *testing.T) {
	t.Run("should reject an empty base url", func(t *testing.T) {
		cfg := config.NewConfig()
		cfg.Drive.BaseURL = "  "

		_, err := NewClient(cfg)

		require.Error(t, err)
		assert.ErrorIs(t, err, config.ErrMissingBaseURL)
	})

	t.Run("should report the http backend", func(t *testing.T) {
		c := newTestClient(t, "https://dash.example.com/api/", nil)
		assert.Equal(t, "http", c.Backend())
		assert.Equal(t, "https://dash.example.com/api", c.baseURL)
	})
}

func TestListRootFolders(t *testing.T) {
	t.Run("should send the action and bearer token and decode folders", func(t *testing.T) {
		// given
		srv := newDriveServer(t, func(w http.ResponseWriter, r *http.Request, _ int) {
			writeJSON(w, 200, `{"success":true,"folders":[
				{"id":"f1","name":"Acme Corp","kind":"folder","childCount":4},
				{"id":"f2","name":"Other Co","folder":{"childCount":1}}
			]}`)
		})
		c := newTestClient(t, srv.URL, nil)

		// when
		folders, err := c.ListRootFolders(context.Background(), cloud.FetchOptions{})

		// then
		require.NoError(t, err)
		require.Len(t, folders, 2)
		assert.Equal(t, "Acme Corp", folders[0].Name)
		assert.Equal(t, models.KindFolder, folders[1].Kind)
		require.NotNil(t, folders[1].ChildCount)
		assert.Equal(t, 1, *folders[1].ChildCount)

		req := srv.request(0)
		assert.Equal(t, "/folders", req.URL.Path)
		assert.Equal(t, "list-root-folders", req.URL.Query().Get("action"))
		assert.Equal(t, "Bearer drive-token", req.Header.Get("Authorization"))
		assert.Empty(t, req.URL.Query().Get("_ts"))
	})
}

func TestListFolderContents(t *testing.T) {
	t.Run("should decode items and drop malformed entries", func(t *testing.T) {
		// given
		srv := newDriveServer(t, func(w http.ResponseWriter, r *http.Request, _ int) {
			assert.Equal(t, "f1", r.URL.Query().Get("folderId"))
			writeJSON(w, 200, `{"success":true,"items":[
				{"id":"s1","name":"Sucursal Centro","type":"folder","childCount":2},
				{"id":"d1","name":"informe.pdf","file":{"mimeType":"application/pdf"},"size":2048,
				 "@microsoft.graph.downloadUrl":"https://dl/informe.pdf","webUrl":"https://web/informe.pdf"},
				{"id":"bad","name":"Broken","kind":"folder","size":10},
				{"id":"odd","name":"???"}
			]}`)
		})
		c := newTestClient(t, srv.URL, nil)

		// when
		items, err := c.ListFolderContents(context.Background(), "f1", cloud.FetchOptions{})

		// then
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "s1", items[0].ID)
		assert.True(t, items[1].IsFile())
		assert.Equal(t, int64(2048), items[1].SizeOrZero())
		assert.Equal(t, "https://dl/informe.pdf", items[1].DownloadURL)
	})

	t.Run("should reject an empty folder id without a request", func(t *testing.T) {
		srv := newDriveServer(t, func(w http.ResponseWriter, r *http.Request, _ int) {
			writeJSON(w, 200, `{"success":true,"items":[]}`)
		})
		c := newTestClient(t, srv.URL, nil)

		_, err := c.ListFolderContents(context.Background(), " ", cloud.FetchOptions{})

		_, ok := cloud.AsFetchError(err)
		assert.True(t, ok)
		assert.Equal(t, int32(0), srv.hits.Load())
	})
}

func TestSearchFoldersByName(t *testing.T) {
	srv := newDriveServer(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		writeJSON(w, 200, `{"success":true,"folders":[{"id":"f9","name":"ACME","kind":"folder"}]}`)
	})
	c := newTestClient(t, srv.URL, nil)

	folders, err := c.SearchFoldersByName(context.Background(), "Acme Corp", cloud.FetchOptions{})

	require.NoError(t, err)
	assert.Len(t, folders, 1)
	q := srv.request(0).URL.Query()
	assert.Equal(t, "search-folder", q.Get("action"))
	assert.Equal(t, "Acme Corp", q.Get("folderName"))
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantUnauth bool
		wantStatus int
	}{
		{"401 is unauthenticated", 401, `{"error":"No tokens found"}`, true, 0},
		{"401 with empty body", 401, ``, true, 0},
		{"500 carrying missing tokens", 500, `{"error":"No tokens found"}`, true, 0},
		{"200 success false not authenticated", 200, `{"success":false,"error":"Not authenticated"}`, true, 0},
		{"200 success false other", 200, `{"success":false,"error":"quota exceeded"}`, false, 200},
		{"404 fetch error", 404, `{"success":false,"error":"Folder not found"}`, false, 404},
		{"502 plain text", 502, `bad gateway`, false, 502},
		{"malformed json", 200, `{"success":tru`, false, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// given
			srv := newDriveServer(t, func(w http.ResponseWriter, r *http.Request, _ int) {
				writeJSON(w, tt.status, tt.body)
			})
			c := newTestClient(t, srv.URL, nil)

			// when
			_, err := c.ListRootFolders(context.Background(), cloud.FetchOptions{})

			// then
			require.Error(t, err)
			assert.Equal(t, tt.wantUnauth, cloud.IsUnauthenticated(err))
			if !tt.wantUnauth {
				fe, ok := cloud.AsFetchError(err)
				require.True(t, ok, "expected FetchError, got %v", err)
				assert.Equal(t, tt.wantStatus, fe.StatusCode)
				assert.Equal(t, "list-root-folders", fe.Action)
			}
		})
	}
}

func TestTransportFailureIsFetchError(t *testing.T) {
	srv := newDriveServer(t, func(w http.ResponseWriter, r *http.Request, _ int) {})
	url := srv.URL
	srv.Close()
	c := newTestClient(t, url, nil)

	_, err := c.ListRootFolders(context.Background(), cloud.FetchOptions{})

	fe, ok := cloud.AsFetchError(err)
	require.True(t, ok)
	assert.Equal(t, 0, fe.StatusCode)
}

func TestCachePolicy(t *testing.T) {
	t.Run("should serve non-forced calls from cache until expiry", func(t *testing.T) {
		// given
		now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		srv := newDriveServer(t, func(w http.ResponseWriter, r *http.Request, hit int) {
			writeJSON(w, 200, fmt.Sprintf(`{"success":true,"folders":[{"id":"f%d","name":"n","kind":"folder"}]}`, hit))
		})
		c := newTestClient(t, srv.URL, nil, WithClock(func() time.Time { return now }))

		// when
		first, err := c.ListRootFolders(context.Background(), cloud.FetchOptions{})
		require.NoError(t, err)
		second, err := c.ListRootFolders(context.Background(), cloud.FetchOptions{})
		require.NoError(t, err)
		now = now.Add(31 * time.Second)
		third, err := c.ListRootFolders(context.Background(), cloud.FetchOptions{})
		require.NoError(t, err)

		// then
		assert.Equal(t, "f1", first[0].ID)
		assert.Equal(t, "f1", second[0].ID)
		assert.Equal(t, "f2", third[0].ID)
		assert.Equal(t, int32(2), srv.hits.Load())
	})

	t.Run("should bypass and refill the cache when forced", func(t *testing.T) {
		// given
		now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		srv := newDriveServer(t, func(w http.ResponseWriter, r *http.Request, hit int) {
			writeJSON(w, 200, fmt.Sprintf(`{"success":true,"items":[{"id":"x%d","name":"a.pdf","kind":"file"}]}`, hit))
		})
		c := newTestClient(t, srv.URL, nil, WithClock(func() time.Time { return now }))

		// when
		_, err := c.ListFolderContents(context.Background(), "f1", cloud.FetchOptions{})
		require.NoError(t, err)
		forced, err := c.ListFolderContents(context.Background(), "f1", cloud.FetchOptions{Force: true})
		require.NoError(t, err)
		cached, err := c.ListFolderContents(context.Background(), "f1", cloud.FetchOptions{})
		require.NoError(t, err)

		// then
		assert.Equal(t, "x2", forced[0].ID)
		assert.Equal(t, "x2", cached[0].ID)
		assert.Equal(t, int32(2), srv.hits.Load())

		req := srv.request(1)
		assert.Equal(t, fmt.Sprint(now.UnixNano()), req.URL.Query().Get("_ts"))
		assert.Contains(t, req.Header.Get("Cache-Control"), "no-cache")
		assert.Equal(t, "no-cache", req.Header.Get("Pragma"))
	})

	t.Run("should not cache failures or when disabled", func(t *testing.T) {
		srv := newDriveServer(t, func(w http.ResponseWriter, r *http.Request, hit int) {
			writeJSON(w, 200, `{"success":true,"folders":[]}`)
		})
		c := newTestClient(t, srv.URL, func(cfg *config.Config) { cfg.Drive.CacheTTLSeconds = 0 })

		for i := 0; i < 3; i++ {
			_, err := c.ListRootFolders(context.Background(), cloud.FetchOptions{})
			require.NoError(t, err)
		}

		assert.Equal(t, int32(3), srv.hits.Load())
	})
}

func TestPagination(t *testing.T) {
	t.Run("should follow next page tokens", func(t *testing.T) {
		srv := newDriveServer(t, func(w http.ResponseWriter, r *http.Request, hit int) {
			switch r.URL.Query().Get("pageToken") {
			case "":
				writeJSON(w, 200, `{"success":true,"items":[{"id":"a","name":"a","kind":"folder"}],"nextPageToken":"p2"}`)
			case "p2":
				writeJSON(w, 200, `{"success":true,"items":[{"id":"b","name":"b","kind":"file"}]}`)
			default:
				t.Errorf("unexpected page token %q", r.URL.Query().Get("pageToken"))
			}
		})
		c := newTestClient(t, srv.URL, nil)

		items, err := c.ListFolderContents(context.Background(), "f1", cloud.FetchOptions{})

		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "b", items[1].ID)
	})

	t.Run("should stop at the page limit", func(t *testing.T) {
		srv := newDriveServer(t, func(w http.ResponseWriter, r *http.Request, hit int) {
			writeJSON(w, 200, fmt.Sprintf(`{"success":true,"items":[{"id":"i%d","name":"n","kind":"file"}],"nextPageToken":"more"}`, hit))
		})
		c := newTestClient(t, srv.URL, nil, WithMaxPages(3))

		items, err := c.ListFolderContents(context.Background(), "f1", cloud.FetchOptions{})

		require.NoError(t, err)
		assert.Len(t, items, 3)
		assert.Equal(t, int32(3), srv.hits.Load())
	})
}

func TestRetries(t *testing.T) {
	t.Run("should retry transient server errors", func(t *testing.T) {
		srv := newDriveServer(t, func(w http.ResponseWriter, r *http.Request, hit int) {
			if hit == 1 {
				writeJSON(w, 503, `{"error":"busy"}`)
				return
			}
			writeJSON(w, 200, `{"success":true,"folders":[]}`)
		})
		c := newTestClient(t, srv.URL, func(cfg *config.Config) { cfg.Drive.MaxRetries = 2 })

		_, err := c.ListRootFolders(context.Background(), cloud.FetchOptions{})

		require.NoError(t, err)
		assert.Equal(t, int32(2), srv.hits.Load())
	})

	t.Run("should never retry 401", func(t *testing.T) {
		srv := newDriveServer(t, func(w http.ResponseWriter, r *http.Request, hit int) {
			writeJSON(w, 401, `{"error":"Not authenticated"}`)
		})
		c := newTestClient(t, srv.URL, func(cfg *config.Config) { cfg.Drive.MaxRetries = 3 })

		_, err := c.ListRootFolders(context.Background(), cloud.FetchOptions{})

		assert.True(t, errors.Is(err, cloud.ErrUnauthenticated))
		assert.Equal(t, int32(1), srv.hits.Load())
	})

	t.Run("should classify the final response after exhausting retries", func(t *testing.T) {
		srv := newDriveServer(t, func(w http.ResponseWriter, r *http.Request, hit int) {
			writeJSON(w, 500, `{"error":"internal"}`)
		})
		c := newTestClient(t, srv.URL, func(cfg *config.Config) { cfg.Drive.MaxRetries = 1 })

		_, err := c.ListRootFolders(context.Background(), cloud.FetchOptions{})

		fe, ok := cloud.AsFetchError(err)
		require.True(t, ok, "expected FetchError, got %v", err)
		assert.Equal(t, 500, fe.StatusCode)
		assert.Equal(t, "internal", fe.Message)
		assert.Equal(t, int32(2), srv.hits.Load())
	})
}

func TestInvalidateCache(t *testing.T) {
	srv := newDriveServer(t, func(w http.ResponseWriter, r *http.Request, hit int) {
		writeJSON(w, 200, `{"success":true,"folders":[]}`)
	})
	c := newTestClient(t, srv.URL, nil)

	_, _ = c.ListRootFolders(context.Background(), cloud.FetchOptions{})
	c.InvalidateCache()
	_, _ = c.ListRootFolders(context.Background(), cloud.FetchOptions{})

	assert.Equal(t, int32(2), srv.hits.Load())
}

func TestRateLimiting(t *testing.T) {
	t.Run("should not send requests while throttled", func(t *testing.T) {
		srv := newDriveServer(t, func(w http.ResponseWriter, r *http.Request, hit int) {
			writeJSON(w, 200, `{"success":true,"folders":[]}`)
		})
		// one token, refilled roughly every 15 minutes
		rl := ratelimit.NewRateLimiter(0.001, 1)
		c := newTestClient(t, srv.URL, nil, WithRateLimiter(rl))

		_, err := c.ListRootFolders(context.Background(), cloud.FetchOptions{Force: true})
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = c.ListRootFolders(ctx, cloud.FetchOptions{Force: true})

		fe, ok := cloud.AsFetchError(err)
		require.True(t, ok, "expected FetchError, got %v", err)
		assert.ErrorIs(t, fe, context.DeadlineExceeded)
		assert.Equal(t, int32(1), srv.hits.Load())
	})

	t.Run("should allow disabling the limiter", func(t *testing.T) {
		c := newTestClient(t, "http://drive.invalid", nil, WithRateLimiter(nil))
		assert.Nil(t, c.limiter)
	})
}
