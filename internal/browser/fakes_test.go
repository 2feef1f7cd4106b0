package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/fedesuarez16/opting-sub000/internal/cloud"
	"github.com/fedesuarez16/opting-sub000/internal/models"
)

// fakeSource is a scripted cloud.FolderSource. ListFolderContents blocks on a
// gate when one is registered for the folder id.
type fakeSource struct {
	mu          sync.Mutex
	roots       []models.RemoteFolderEntry
	rootsErr    error
	contents    map[string][]models.RemoteFolderEntry
	contentsErr map[string]error
	search      map[string][]models.RemoteFolderEntry
	searchErr   error
	gates       map[string]chan struct{}
	started     chan string
	calls       []string
	forced      []bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		contents:    make(map[string][]models.RemoteFolderEntry),
		contentsErr: make(map[string]error),
		search:      make(map[string][]models.RemoteFolderEntry),
		gates:       make(map[string]chan struct{}),
		started:     make(chan string, 16),
	}
}

func (f *fakeSource) record(call string, opts cloud.FetchOptions) {
	f.calls = append(f.calls, call)
	f.forced = append(f.forced, opts.Force)
}

func (f *fakeSource) ListRootFolders(ctx context.Context, opts cloud.FetchOptions) ([]models.RemoteFolderEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("roots", opts)
	if f.rootsErr != nil {
		return nil, f.rootsErr
	}
	return append([]models.RemoteFolderEntry(nil), f.roots...), nil
}

func (f *fakeSource) ListFolderContents(ctx context.Context, folderID string, opts cloud.FetchOptions) ([]models.RemoteFolderEntry, error) {
	f.mu.Lock()
	f.record("list:"+folderID, opts)
	gate := f.gates[folderID]
	f.mu.Unlock()

	if gate != nil {
		f.started <- folderID
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.contentsErr[folderID]; err != nil {
		return nil, err
	}
	return append([]models.RemoteFolderEntry(nil), f.contents[folderID]...), nil
}

func (f *fakeSource) SearchFoldersByName(ctx context.Context, query string, opts cloud.FetchOptions) ([]models.RemoteFolderEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("search:"+query, opts)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return append([]models.RemoteFolderEntry(nil), f.search[query]...), nil
}

func (f *fakeSource) setContents(folderID string, entries ...models.RemoteFolderEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contents[folderID] = entries
}

func (f *fakeSource) fail(folderID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contentsErr[folderID] = err
}

func (f *fakeSource) gate(folderID string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[folderID] = ch
	return ch
}

func (f *fakeSource) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeSource) forcedLog() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.forced...)
}

func (f *fakeSource) resetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
	f.forced = nil
}

func folder(id, name string) models.RemoteFolderEntry {
	return models.NewFolder(id, name, -1)
}

func file(id, name string) models.RemoteFolderEntry {
	return models.NewFile(id, name, 1024, "", fmt.Sprintf("https://drive.example/dl/%s", id))
}

func pct(v float64) *float64 { return &v }

func names(view []ViewEntry) []string {
	out := make([]string, len(view))
	for i, v := range view {
		out[i] = v.Entry.Name
	}
	return out
}

func entryNames(entries []models.RemoteFolderEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}
