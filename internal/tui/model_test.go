package tui

import (
	"context"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedesuarez16/opting-sub000/internal/browser"
	"github.com/fedesuarez16/opting-sub000/internal/cloud"
	"github.com/fedesuarez16/opting-sub000/internal/directory"
	"github.com/fedesuarez16/opting-sub000/internal/matcher"
	"github.com/fedesuarez16/opting-sub000/internal/models"
)

// treeSource serves a fixed folder tree; the empty id is the drive root
type treeSource struct {
	mu       sync.Mutex
	children map[string][]models.RemoteFolderEntry
	err      error
}

func (s *treeSource) ListRootFolders(ctx context.Context, opts cloud.FetchOptions) ([]models.RemoteFolderEntry, error) {
	return s.ListFolderContents(ctx, "", opts)
}

func (s *treeSource) ListFolderContents(ctx context.Context, folderID string, opts cloud.FetchOptions) ([]models.RemoteFolderEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]models.RemoteFolderEntry(nil), s.children[folderID]...), nil
}

func (s *treeSource) SearchFoldersByName(ctx context.Context, query string, opts cloud.FetchOptions) ([]models.RemoteFolderEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []models.RemoteFolderEntry
	for _, entries := range s.children {
		for _, e := range entries {
			if e.IsFolder() && matcher.Contains(e.Name, query) {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func newTree() *treeSource {
	return &treeSource{children: map[string][]models.RemoteFolderEntry{
		"": {models.NewFolder("acme", "Acme Corp", 3)},
		"acme": {
			models.NewFile("acme-plan", "plan.pdf", 2048, "", "https://files.example/plan.pdf"),
			models.NewFolder("norte", "Norte", 1),
			models.NewFolder("legal", "Legales", 0),
		},
		"norte": {models.NewFile("norte-audit", "auditoria.pdf", 10, "", "")},
	}}
}

var companyScope = models.Scope{CompanyID: "c1", CompanyName: "Acme Corp"}

func newTestModel(t *testing.T, src cloud.FolderSource) Model {
	t.Helper()
	m, _ := newRecordingModel(t, src)
	return m
}

// newRecordingModel also returns the scopes controllers were created for
func newRecordingModel(t *testing.T, src cloud.FolderSource) (Model, *[]models.Scope) {
	t.Helper()
	var scopes []models.Scope
	store := directory.NewMemoryStore()
	store.Put(directory.Company{ID: "c1", Name: "Acme Corp"}, []models.BranchRecord{{ID: "b1", DisplayName: "Norte"}})
	require.NoError(t, store.SetCompliance("c1", "b1", 92))

	m, err := NewModel(context.Background(), Options{
		Scope:    companyScope,
		LoginURL: "https://dashboard.example.com/login",
		NewController: func(scope models.Scope, onBranch func(browser.BranchSelection)) *browser.Controller {
			scopes = append(scopes, scope)
			return browser.NewController(src, store, browser.WithBranchSelectedHandler(onBranch))
		},
	})
	require.NoError(t, err)
	return m, &scopes
}

// drain runs cmd and feeds controller results back into the model. Timer
// driven messages (spinner, cursor blink) are dropped.
func drain(m tea.Model, cmd tea.Cmd) tea.Model {
	for cmd != nil {
		switch msg := cmd().(type) {
		case tea.BatchMsg:
			for _, c := range msg {
				m = drain(m, c)
			}
			return m
		case opDoneMsg:
			m, cmd = m.Update(msg)
		default:
			return m
		}
	}
	return m
}

func press(m tea.Model, keys ...string) tea.Model {
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "backspace":
			msg = tea.KeyMsg{Type: tea.KeyBackspace}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		var cmd tea.Cmd
		m, cmd = m.Update(msg)
		if k != "/" {
			m = drain(m, cmd)
		}
	}
	return m
}

func started(t *testing.T) tea.Model {
	t.Helper()
	m := newTestModel(t, newTree())
	return drain(m, m.Init())
}

func TestModelInitialize(t *testing.T) {
	m := started(t).(Model)

	assert.Equal(t, browser.StatusLoaded, m.state.Status)
	out := m.View()
	assert.Contains(t, out, "[0] Acme Corp")
	assert.Contains(t, out, "Legales")
	assert.Contains(t, out, "branch Norte")
	assert.Contains(t, out, "92%")
	assert.Contains(t, out, "plan.pdf")
}

func TestModelNavigation(t *testing.T) {
	t.Run("should open a plain folder and go back", func(t *testing.T) {
		m := press(started(t), "enter").(Model)

		require.Equal(t, []string{"Acme Corp", "Legales"}, m.state.Breadcrumb())
		assert.Contains(t, m.View(), "Empty folder")

		m = press(m, "backspace").(Model)
		assert.True(t, m.state.AtStart())
		assert.Len(t, m.state.View, 3)
	})

	t.Run("should jump to the start folder by breadcrumb", func(t *testing.T) {
		m := press(started(t), "enter", "0").(Model)

		assert.True(t, m.state.AtStart())
	})

	t.Run("should show a link for files", func(t *testing.T) {
		m := press(started(t), "down", "down", "enter").(Model)

		assert.Equal(t, "plan.pdf: https://files.example/plan.pdf", m.info)
		assert.True(t, m.state.AtStart())
	})
}

func TestModelBranchSelection(t *testing.T) {
	m := press(started(t), "down", "enter").(Model)

	require.Len(t, m.sessions, 2)
	assert.Equal(t, companyScope.ForBranch("b1"), m.current().scope)
	assert.Equal(t, browser.StatusLoaded, m.state.Status)
	assert.Equal(t, "norte", m.state.DisplayedFolderID())
	assert.Contains(t, m.View(), "auditoria.pdf")

	m = press(m, "backspace").(Model)

	require.Len(t, m.sessions, 1)
	assert.Equal(t, "acme", m.state.DisplayedFolderID())
}

func TestModelSessionScopes(t *testing.T) {
	m, scopes := newRecordingModel(t, newTree())
	m = drain(m, m.Init()).(Model)

	press(m, "down", "enter")

	assert.Equal(t, []models.Scope{companyScope, companyScope.ForBranch("b1")}, *scopes)
}

func TestModelIgnoredOperations(t *testing.T) {
	t.Run("should not report busy when going back at the start folder", func(t *testing.T) {
		m := press(started(t), "backspace").(Model)

		assert.Equal(t, "already at the start folder", m.info)
		assert.Equal(t, browser.StatusLoaded, m.state.Status)
	})

	t.Run("should not report busy for a missing breadcrumb", func(t *testing.T) {
		m := press(started(t), "5").(Model)

		assert.Equal(t, "no such breadcrumb", m.info)
	})

	t.Run("should report busy while a fetch is in flight", func(t *testing.T) {
		assert.Equal(t, "busy, try again when loading finishes", ignoredInfo(browser.OpOpenFolder, browser.State{FetchInFlight: true}))
		assert.Empty(t, ignoredInfo(browser.OpOpenFolder, browser.State{}))
	})
}

func TestModelSearchAndSort(t *testing.T) {
	m := press(started(t), "/", "l", "e", "g", "esc").(Model)

	require.Len(t, m.state.View, 1)
	assert.Equal(t, "Legales", m.state.View[0].Entry.Name)
	assert.False(t, m.searching)

	m = press(m, "/", "backspace", "backspace", "backspace", "enter").(Model)
	assert.Len(t, m.state.View, 3)

	m = press(m, "c").(Model)
	require.NotNil(t, m.state.Sort)
	assert.Equal(t, browser.SortByCompliance, m.state.Sort.Field)
	assert.Contains(t, m.View(), "sort: compliance asc")

	m = press(m, "x").(Model)
	assert.Nil(t, m.state.Sort)
}

func TestModelUnauthenticated(t *testing.T) {
	src := newTree()
	src.err = cloud.ErrUnauthenticated
	m := newTestModel(t, src)

	out := drain(m, m.Init()).(Model)

	assert.Equal(t, browser.ErrorUnauthenticated, out.state.ErrorKind())
	assert.Contains(t, out.View(), "https://dashboard.example.com/login")
}

func TestModelNotFound(t *testing.T) {
	src := newTree()
	src.children[""] = []models.RemoteFolderEntry{models.NewFolder("x", "Otra Empresa", 0)}
	delete(src.children, "acme")
	m := newTestModel(t, src)

	out := drain(m, m.Init()).(Model)

	view := out.View()
	assert.True(t, strings.Contains(view, `No drive folder matches "Acme Corp"`), view)
	assert.Contains(t, view, "Otra Empresa")
}

func TestWindow(t *testing.T) {
	start, end := window(10, 0, 0)
	assert.Equal(t, 0, start)
	assert.Equal(t, 10, end)

	start, end = window(10, 9, 4)
	assert.Equal(t, 6, start)
	assert.Equal(t, 10, end)

	start, end = window(10, 5, 4)
	assert.Equal(t, 3, start)
	assert.Equal(t, 7, end)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512B", formatSize(512))
	assert.Equal(t, "1.0K", formatSize(1024))
	assert.Equal(t, "2.0M", formatSize(2*1024*1024))
}
