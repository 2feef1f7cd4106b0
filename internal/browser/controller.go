// Package browser implements the drive folder browser: the per-session
// navigation state machine, the derived view, and start folder resolution.
package browser

import (
	"context"
	"sync"

	"github.com/fedesuarez16/opting-sub000/internal/cloud"
	"github.com/fedesuarez16/opting-sub000/internal/directory"
	"github.com/fedesuarez16/opting-sub000/internal/events"
	"github.com/fedesuarez16/opting-sub000/internal/logging"
	"github.com/fedesuarez16/opting-sub000/internal/matcher"
	"github.com/fedesuarez16/opting-sub000/internal/metrics"
	"github.com/fedesuarez16/opting-sub000/internal/models"
)

// Operation names, used in logs, events and metrics
const (
	OpInitialize = "initialize"
	OpOpenFolder = "open_folder"
	OpGoBack     = "go_back"
	OpNavigateTo = "navigate_to"
	OpRefresh    = "refresh"
)

// StartIndex is the NavigateTo index of the start folder
const StartIndex = -1

// BranchSelection is handed to the host when an opened folder is a branch.
type BranchSelection struct {
	// Scope is the branch-scoped scope to browse next.
	Scope  models.Scope
	Branch models.BranchRecord
	Folder models.RemoteFolderEntry
}

// Option customises a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithEventBus publishes state changes on bus, tagged with session.
func WithEventBus(bus *events.EventBus, session string) Option {
	return func(c *Controller) {
		c.bus = bus
		c.sessionID = session
	}
}

// WithBranchSelectedHandler registers the callback run when OpenFolder hits a branch.
func WithBranchSelectedHandler(fn func(BranchSelection)) Option {
	return func(c *Controller) {
		c.onBranch = fn
	}
}

// Controller owns one browsing session. Operations may be called from several
// goroutines of the same UI; at most one fetch is accepted at a time, and only
// the most recently issued fetch may write its result.
type Controller struct {
	source    cloud.FolderSource
	dir       directory.Directory
	resolver  *Resolver
	logger    *logging.Logger
	bus       *events.EventBus
	sessionID string
	onBranch  func(BranchSelection)

	mu sync.Mutex
	s  session
}

// NewController creates an idle controller.
func NewController(source cloud.FolderSource, dir directory.Directory, opts ...Option) *Controller {
	c := &Controller{
		source: source,
		dir:    dir,
		logger: logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.resolver = NewResolver(source, c.logger)
	return c
}

// State returns a copy of the session state, including the derived view.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s.copyState()
}

// View returns the derived view of the current entries.
func (c *Controller) View() []ViewEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return buildView(c.s.entries, c.s.searchTerm, c.s.sort, c.s.index, c.s.snapshot)
}

// SetSearchTerm filters the view by case-insensitive name containment.
func (c *Controller) SetSearchTerm(term string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.searchTerm = term
}

// SetSort orders the view by field. Repeating the current field toggles the
// direction; a new field starts ascending.
func (c *Controller) SetSort(field SortField) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.s.sort != nil && c.s.sort.Field == field {
		if c.s.sort.Direction == Ascending {
			c.s.sort.Direction = Descending
		} else {
			c.s.sort.Direction = Ascending
		}
		return
	}
	c.s.sort = &SortKey{Field: field, Direction: Ascending}
}

// ClearSort restores fetch order.
func (c *Controller) ClearSort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.sort = nil
}

// Initialize discards any previous session state and resolves the start folder
// for scope, then lists it. A repeat call for the same scope while loading is ignored.
func (c *Controller) Initialize(ctx context.Context, scope models.Scope) Outcome {
	c.mu.Lock()
	if c.s.loading() && c.s.scope == scope {
		c.mu.Unlock()
		return c.ignored(OpInitialize, "fetch in flight")
	}
	c.s.reset(scope)
	seq := c.s.beginFetch()
	c.publishStateLocked()
	c.mu.Unlock()

	return c.load(ctx, OpInitialize, seq, scope, cloud.FetchOptions{})
}

// Refresh clears entries and history and re-runs initialisation with forced,
// cache-busting fetches. It is accepted while another fetch is in flight; that
// fetch's result is then discarded.
func (c *Controller) Refresh(ctx context.Context) Outcome {
	c.mu.Lock()
	if !c.s.scoped {
		c.mu.Unlock()
		return c.ignored(OpRefresh, "not initialized")
	}
	scope := c.s.scope
	// subfolders opened after the refresh must not come from a pre-refresh cache
	cloud.InvalidateCache(c.source)
	c.s.entries = nil
	c.s.history = nil
	c.s.currentFolder = ""
	c.s.start = nil
	c.s.lastError = nil
	seq := c.s.beginFetch()
	c.publishStateLocked()
	c.mu.Unlock()

	return c.load(ctx, OpRefresh, seq, scope, cloud.FetchOptions{Force: true})
}

// OpenFolder descends into entry. In company scope a folder that resolves to a
// branch is not opened: the branch is handed to the host instead.
func (c *Controller) OpenFolder(ctx context.Context, entry models.RemoteFolderEntry) Outcome {
	if !entry.IsFolder() {
		return c.ignored(OpOpenFolder, "not a folder")
	}

	c.mu.Lock()
	switch {
	case c.s.start == nil:
		c.mu.Unlock()
		return c.ignored(OpOpenFolder, "no start folder")
	case c.s.loading():
		c.mu.Unlock()
		return c.ignored(OpOpenFolder, "fetch in flight")
	}

	if !c.s.scope.IsBranchScoped() {
		if branch, ok := c.s.index.Match(entry); ok {
			sel := BranchSelection{Scope: c.s.scope.ForBranch(branch.ID), Branch: branch, Folder: entry}
			c.mu.Unlock()
			c.selectBranch(sel)
			return BranchSelected
		}
	}

	prev := c.s.savePosition()
	c.s.history = append(c.s.history, models.NavigationFrame{FolderID: entry.ID, FolderName: entry.Name})
	c.s.currentFolder = entry.ID
	seq := c.s.beginFetch()
	c.publishStateLocked()
	c.mu.Unlock()

	entries, err := c.source.ListFolderContents(ctx, entry.ID, cloud.FetchOptions{})
	return c.finish(OpOpenFolder, seq, result{entries: entries, err: err, prev: &prev})
}

// GoBack pops the displayed folder and lists its parent, or the start folder
// when the history becomes empty. With no history it does nothing.
func (c *Controller) GoBack(ctx context.Context) Outcome {
	c.mu.Lock()
	switch {
	case c.s.start == nil:
		c.mu.Unlock()
		return c.ignored(OpGoBack, "no start folder")
	case c.s.loading():
		c.mu.Unlock()
		return c.ignored(OpGoBack, "fetch in flight")
	case len(c.s.history) == 0:
		c.mu.Unlock()
		return c.ignored(OpGoBack, "at start folder")
	}
	return c.truncateAndFetch(ctx, OpGoBack, len(c.s.history)-2)
}

// NavigateTo jumps to a breadcrumb position: StartIndex for the start folder,
// otherwise an index into History.
func (c *Controller) NavigateTo(ctx context.Context, index int) Outcome {
	c.mu.Lock()
	switch {
	case c.s.start == nil:
		c.mu.Unlock()
		return c.ignored(OpNavigateTo, "no start folder")
	case c.s.loading():
		c.mu.Unlock()
		return c.ignored(OpNavigateTo, "fetch in flight")
	case index < StartIndex || index >= len(c.s.history):
		c.mu.Unlock()
		return c.ignored(OpNavigateTo, "index out of range")
	}
	return c.truncateAndFetch(ctx, OpNavigateTo, index)
}

// truncateAndFetch keeps history[:index+1] and lists its last frame.
// It must be called with c.mu held and releases it.
func (c *Controller) truncateAndFetch(ctx context.Context, op string, index int) Outcome {
	prev := c.s.savePosition()
	c.s.history = c.s.history[:index+1]
	if len(c.s.history) == 0 {
		c.s.history = nil
		c.s.currentFolder = ""
	} else {
		c.s.currentFolder = c.s.history[len(c.s.history)-1].FolderID
	}
	folderID := c.s.currentFolderID()
	seq := c.s.beginFetch()
	c.publishStateLocked()
	c.mu.Unlock()

	entries, err := c.source.ListFolderContents(ctx, folderID, cloud.FetchOptions{})
	return c.finish(op, seq, result{entries: entries, err: err, prev: &prev})
}

// result is what a fetch cycle hands back to finish
type result struct {
	entries  []models.RemoteFolderEntry
	err      error
	start    *models.RemoteFolderEntry
	snapshot *directory.Snapshot
	// resolved marks an initialisation cycle, whose start and snapshot replace the session's
	resolved bool
	// prev is the navigation position before a folder fetch, restored when the
	// fetch fails but the displayed entries are kept
	prev *position
}

// load runs an initialisation cycle: branch snapshot, start folder, start folder listing
func (c *Controller) load(ctx context.Context, op string, seq uint64, scope models.Scope, opts cloud.FetchOptions) Outcome {
	snap := c.snapshot(ctx, scope)

	start, err := c.resolver.Start(ctx, scope, snap, opts)
	if err != nil {
		return c.finish(op, seq, result{err: err, snapshot: snap, resolved: true})
	}
	if c.stale(seq) {
		return c.superseded(op, seq)
	}

	entries, err := c.source.ListFolderContents(ctx, start.ID, opts)
	return c.finish(op, seq, result{entries: entries, err: err, start: &start, snapshot: snap, resolved: true})
}

// snapshot reads the branch directory once per cycle. A failing directory degrades
// to an empty snapshot: browsing works, branch annotations do not.
func (c *Controller) snapshot(ctx context.Context, scope models.Scope) *directory.Snapshot {
	company := directory.Company{ID: scope.CompanyID, Name: scope.CompanyName}
	if c.dir == nil || scope.CompanyID == "" {
		return directory.EmptySnapshot(company)
	}
	snap, err := c.dir.Snapshot(ctx, scope.CompanyID)
	if err != nil {
		c.logger.Warn().Err(err).Str("company", scope.CompanyID).Msg("branch directory unavailable, continuing without branch data")
		return directory.EmptySnapshot(company)
	}
	return snap
}

func (c *Controller) stale(seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return seq != c.s.seq
}

// finish writes a fetch result if seq is still the latest issued fetch
func (c *Controller) finish(op string, seq uint64, r result) Outcome {
	c.mu.Lock()
	if seq != c.s.seq {
		c.mu.Unlock()
		return c.superseded(op, seq)
	}

	if r.resolved {
		c.s.snapshot = r.snapshot
		c.s.index = matcher.NewIndex(r.snapshot.Branches())
		c.s.start = r.start
	}

	if r.err == nil {
		c.s.entries = sortEntries(r.entries)
		c.s.status = StatusLoaded
		c.s.lastError = nil
	} else {
		c.s.status = StatusError
		c.s.lastError = r.err
		switch {
		case !cloud.IsUnauthenticated(r.err):
			c.s.entries = nil
		case r.prev != nil:
			// the kept entries belong to the previous folder; so must the history
			c.s.restore(*r.prev)
		}
	}
	folderID := c.s.currentFolderID()
	depth := len(c.s.history)
	n := len(c.s.entries)
	c.publishStateLocked()
	c.mu.Unlock()

	kind := KindOf(r.err)
	if r.err != nil {
		c.logger.Warn().Err(r.err).
			Str("op", op).
			Uint64("seq", seq).
			Str("folder_id", folderID).
			Stringer("kind", kind).
			Msg("folder fetch failed")
		if c.bus != nil {
			c.bus.PublishFetchFailed(c.sessionID, op, kind.String(), r.err.Error())
		}
	} else {
		c.logger.Debug().
			Str("op", op).
			Uint64("seq", seq).
			Str("folder_id", folderID).
			Int("depth", depth).
			Int("entries", n).
			Msg("folder listed")
	}
	metrics.RecordBrowserFetch(op, outcomeLabel(kind))
	return Applied
}

func outcomeLabel(kind ErrorKind) string {
	switch kind {
	case ErrorNone:
		return metrics.OutcomeOK
	case ErrorUnauthenticated:
		return metrics.OutcomeUnauthenticated
	case ErrorNotFound:
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeError
	}
}

func (c *Controller) ignored(op, reason string) Outcome {
	c.logger.Debug().Str("op", op).Str("reason", reason).Msg("operation ignored")
	metrics.RecordBrowserFetch(op, metrics.OutcomeIgnored)
	return Ignored
}

func (c *Controller) superseded(op string, seq uint64) Outcome {
	c.logger.Debug().Str("op", op).Uint64("seq", seq).Msg("discarding superseded fetch result")
	metrics.RecordBrowserFetch(op, metrics.OutcomeSuperseded)
	return Superseded
}

func (c *Controller) selectBranch(sel BranchSelection) {
	c.logger.Info().
		Str("company", sel.Scope.CompanyID).
		Str("branch", sel.Branch.ID).
		Str("folder_id", sel.Folder.ID).
		Msg("branch folder selected")
	metrics.RecordBrowserFetch(OpOpenFolder, metrics.OutcomeBranch)
	if c.bus != nil {
		c.bus.PublishBranchSelected(c.sessionID, sel.Scope.CompanyID, sel.Branch.ID, sel.Branch.Label(), sel.Folder.ID)
	}
	if c.onBranch != nil {
		c.onBranch(sel)
	}
}

// publishStateLocked must be called with c.mu held
func (c *Controller) publishStateLocked() {
	if c.bus == nil {
		return
	}
	c.bus.PublishBrowserState(c.sessionID, c.s.status.String(), c.s.currentFolderID(), len(c.s.history), len(c.s.entries), c.s.seq)
}
