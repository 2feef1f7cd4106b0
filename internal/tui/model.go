// Package tui is the terminal host for the folder browser. It drives one
// browser.Controller per scope and re-scopes to a fresh controller when an
// opened folder turns out to be a branch.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fedesuarez16/opting-sub000/internal/browser"
	"github.com/fedesuarez16/opting-sub000/internal/logging"
	"github.com/fedesuarez16/opting-sub000/internal/models"
)

// ControllerFactory creates the controller of the session browsing scope, whose
// branch handler is onBranch.
type ControllerFactory func(scope models.Scope, onBranch func(browser.BranchSelection)) *browser.Controller

// Options configures the browser model.
type Options struct {
	Scope         models.Scope
	NewController ControllerFactory
	// LoginURL is offered when the drive session is missing or expired.
	LoginURL string
	Logger   *logging.Logger
}

// branchSink receives the selection from the controller callback, which runs
// synchronously inside OpenFolder
type branchSink struct {
	mu  sync.Mutex
	sel *browser.BranchSelection
}

func (s *branchSink) put(sel browser.BranchSelection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel = &sel
}

func (s *branchSink) take() *browser.BranchSelection {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel := s.sel
	s.sel = nil
	return sel
}

// scopeSession is one scope being browsed
type scopeSession struct {
	scope  models.Scope
	ctrl   *browser.Controller
	sink   *branchSink
	cursor int
}

// opDoneMsg reports a finished controller operation
type opDoneMsg struct {
	sess    *scopeSession
	op      string
	outcome browser.Outcome
	branch  *browser.BranchSelection
}

// Model is the bubbletea model of the folder browser.
type Model struct {
	ctx      context.Context
	opts     Options
	logger   *logging.Logger
	sessions []*scopeSession
	state    browser.State

	search    textinput.Model
	searching bool
	spinner   spinner.Model
	help      help.Model
	keys      KeyMap
	info      string
	width     int
	height    int
}

// NewModel creates the model for opts.Scope. ctx bounds every fetch.
func NewModel(ctx context.Context, opts Options) (Model, error) {
	if opts.NewController == nil {
		return Model{}, errors.New("controller factory is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	ti := textinput.New()
	ti.Placeholder = "filter by name"
	ti.Prompt = "/ "
	ti.CharLimit = 120

	s := spinner.New()
	s.Spinner = spinner.Dot

	m := Model{
		ctx:     ctx,
		opts:    opts,
		logger:  logger,
		search:  ti,
		spinner: s,
		help:    help.New(),
		keys:    DefaultKeyMap(),
	}
	m.sessions = []*scopeSession{m.newSession(opts.Scope)}
	return m, nil
}

func (m Model) newSession(scope models.Scope) *scopeSession {
	sink := &branchSink{}
	return &scopeSession{scope: scope, ctrl: m.opts.NewController(scope, sink.put), sink: sink}
}

func (m Model) current() *scopeSession {
	return m.sessions[len(m.sessions)-1]
}

// run executes op on the session's controller in a command
func (m Model) run(sess *scopeSession, op string, fn func(ctx context.Context, c *browser.Controller) browser.Outcome) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		out := fn(ctx, sess.ctrl)
		msg := opDoneMsg{sess: sess, op: op, outcome: out}
		if out == browser.BranchSelected {
			msg.branch = sess.sink.take()
		}
		return msg
	}
}

func (m Model) initialize(sess *scopeSession) tea.Cmd {
	scope := sess.scope
	return m.run(sess, browser.OpInitialize, func(ctx context.Context, c *browser.Controller) browser.Outcome {
		return c.Initialize(ctx, scope)
	})
}

// Init starts the first session.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.initialize(m.current()), m.spinner.Tick)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.sync()
		return m, cmd

	case opDoneMsg:
		return m.handleDone(msg)

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateBrowser(msg)
	}
	return m, nil
}

func (m *Model) sync() {
	sess := m.current()
	m.state = sess.ctrl.State()
	if sess.cursor >= len(m.state.View) {
		sess.cursor = len(m.state.View) - 1
	}
	if sess.cursor < 0 {
		sess.cursor = 0
	}
}

func (m Model) handleDone(msg opDoneMsg) (tea.Model, tea.Cmd) {
	m.logger.Debug().Str("op", msg.op).Str("outcome", msg.outcome.String()).Str("scope", msg.sess.scope.String()).Msg("operation finished")
	if msg.sess != m.current() {
		return m, nil
	}

	switch msg.outcome {
	case browser.BranchSelected:
		if msg.branch == nil {
			break
		}
		next := m.newSession(msg.branch.Scope)
		m.sessions = append(m.sessions, next)
		m.info = "Branch " + msg.branch.Branch.Label()
		m.search.SetValue("")
		m.sync()
		return m, m.initialize(next)
	case browser.Ignored:
		m.sync()
		m.info = ignoredInfo(msg.op, m.state)
		return m, nil
	default:
		m.info = ""
	}
	m.sync()
	return m, nil
}

// ignoredInfo explains a rejected operation. Only an in-flight fetch is a busy state.
func ignoredInfo(op string, st browser.State) string {
	if st.FetchInFlight {
		return "busy, try again when loading finishes"
	}
	switch op {
	case browser.OpGoBack:
		return "already at the start folder"
	case browser.OpNavigateTo:
		return "no such breadcrumb"
	default:
		return ""
	}
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Cancel) || msg.Type == tea.KeyEnter {
		m.searching = false
		m.search.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.current().ctrl.SetSearchTerm(m.search.Value())
	m.current().cursor = 0
	m.sync()
	return m, cmd
}

func (m Model) updateBrowser(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sess := m.current()

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if sess.cursor > 0 {
			sess.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if sess.cursor < len(m.state.View)-1 {
			sess.cursor++
		}

	case key.Matches(msg, m.keys.Open):
		if sess.cursor >= len(m.state.View) {
			return m, nil
		}
		entry := m.state.View[sess.cursor].Entry
		if !entry.IsFolder() {
			m.info = fileInfo(entry)
			return m, nil
		}
		sess.cursor = 0
		return m, m.run(sess, browser.OpOpenFolder, func(ctx context.Context, c *browser.Controller) browser.Outcome {
			return c.OpenFolder(ctx, entry)
		})

	case key.Matches(msg, m.keys.Back):
		if m.state.AtStart() && len(m.sessions) > 1 {
			m.sessions = m.sessions[:len(m.sessions)-1]
			m.info = ""
			m.search.SetValue(m.current().ctrl.State().SearchTerm)
			m.sync()
			return m, nil
		}
		sess.cursor = 0
		return m, m.run(sess, browser.OpGoBack, func(ctx context.Context, c *browser.Controller) browser.Outcome {
			return c.GoBack(ctx)
		})

	case key.Matches(msg, m.keys.Crumb):
		index := int(msg.Runes[0]-'0') - 1
		sess.cursor = 0
		return m, m.run(sess, browser.OpNavigateTo, func(ctx context.Context, c *browser.Controller) browser.Outcome {
			return c.NavigateTo(ctx, index)
		})

	case key.Matches(msg, m.keys.Refresh):
		sess.cursor = 0
		return m, m.run(sess, browser.OpRefresh, func(ctx context.Context, c *browser.Controller) browser.Outcome {
			return c.Refresh(ctx)
		})

	case key.Matches(msg, m.keys.Search):
		m.searching = true
		return m, m.search.Focus()

	case key.Matches(msg, m.keys.SortName):
		sess.ctrl.SetSort(browser.SortByName)

	case key.Matches(msg, m.keys.SortPercent):
		sess.ctrl.SetSort(browser.SortByCompliance)

	case key.Matches(msg, m.keys.ClearSort):
		sess.ctrl.ClearSort()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}

	m.sync()
	return m, nil
}

func fileInfo(e models.RemoteFolderEntry) string {
	if e.DownloadURL != "" {
		return e.Name + ": " + e.DownloadURL
	}
	if e.WebURL != "" {
		return e.Name + ": " + e.WebURL
	}
	return e.Name + ": no link available"
}

// View renders the browser.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("opting · " + m.current().scope.String()))
	b.WriteString("\n")
	b.WriteString(crumbStyle.Render(m.breadcrumb()))
	b.WriteString("\n\n")

	switch {
	case m.state.Status == browser.StatusLoading:
		b.WriteString(m.spinner.View() + " Loading...\n")
	case m.state.Status == browser.StatusError:
		b.WriteString(m.errorView() + "\n")
	}

	if m.state.Status != browser.StatusLoading {
		b.WriteString(m.listView())
	}

	if m.searching || m.search.Value() != "" {
		b.WriteString("\n" + m.search.View() + "\n")
	}
	if s := m.sortLabel(); s != "" {
		b.WriteString(helpStyle.Render(s) + "\n")
	}
	if m.info != "" {
		b.WriteString(infoStyle.Render(m.info) + "\n")
	}
	b.WriteString("\n" + helpStyle.Render(m.help.View(m.keys)))
	return b.String()
}

func (m Model) breadcrumb() string {
	crumbs := m.state.Breadcrumb()
	if len(crumbs) == 0 {
		return ""
	}
	parts := make([]string, len(crumbs))
	for i, c := range crumbs {
		parts[i] = fmt.Sprintf("[%d] %s", i, c)
	}
	return strings.Join(parts, " › ")
}

func (m Model) errorView() string {
	err := m.state.LastError
	switch m.state.ErrorKind() {
	case browser.ErrorUnauthenticated:
		msg := "Drive session is missing or expired. Sign in again"
		if m.opts.LoginURL != "" {
			msg += ": " + m.opts.LoginURL
		}
		return errorStyle.Render(msg)
	case browser.ErrorNotFound:
		var nf *browser.NotFoundError
		msg := "Folder not found"
		if errors.As(err, &nf) {
			msg = fmt.Sprintf("No drive folder matches %q", nf.Name)
			if len(nf.RootFolders) > 0 {
				msg += "\nAvailable folders: " + strings.Join(nf.RootFolders, ", ")
			}
		}
		return errorStyle.Render(msg)
	default:
		return errorStyle.Render("Failed to load: " + err.Error() + " (r to retry)")
	}
}

func (m Model) listView() string {
	view := m.state.View
	if len(view) == 0 {
		if m.state.Status == browser.StatusLoaded {
			if m.state.SearchTerm != "" {
				return helpStyle.Render("No entries match the search") + "\n"
			}
			return helpStyle.Render("Empty folder") + "\n"
		}
		return ""
	}

	cursor := m.current().cursor
	start, end := window(len(view), cursor, m.listHeight())

	var b strings.Builder
	for i := start; i < end; i++ {
		line := renderEntry(view[i])
		if i == cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

// listHeight is the number of entry rows that fit, or 0 for unbounded
func (m Model) listHeight() int {
	if m.height == 0 {
		return 0
	}
	return max(m.height-10, 3)
}

// window returns the visible [start, end) slice keeping cursor in view
func window(n, cursor, height int) (int, int) {
	if height <= 0 || n <= height {
		return 0, n
	}
	start := cursor - height/2
	if start < 0 {
		start = 0
	}
	if start+height > n {
		start = n - height
	}
	return start, start + height
}

func renderEntry(ve browser.ViewEntry) string {
	e := ve.Entry
	if !e.IsFolder() {
		return fileStyle.Render("  📄 " + e.Name + "  " + formatSize(e.SizeOrZero()))
	}
	line := folderStyle.Render("  📁 " + e.Name)
	if ve.Branch != nil {
		line += "  " + branchStyle.Render("branch "+ve.Branch.Label())
	}
	if ve.Percentage != nil {
		line += "  " + percentStyle(*ve.Percentage).Render(fmt.Sprintf("%.0f%%", *ve.Percentage))
	}
	return line
}

func (m Model) sortLabel() string {
	if m.state.Sort == nil {
		return ""
	}
	return fmt.Sprintf("sort: %s %s", m.state.Sort.Field, m.state.Sort.Direction)
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%c", float64(n)/float64(div), "KMGTPE"[exp])
}
