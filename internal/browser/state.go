package browser

import (
	"github.com/fedesuarez16/opting-sub000/internal/directory"
	"github.com/fedesuarez16/opting-sub000/internal/matcher"
	"github.com/fedesuarez16/opting-sub000/internal/models"
)

// Status is the browser state machine status
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusLoaded
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// SortField selects the view ordering
type SortField int

const (
	SortByName SortField = iota + 1
	SortByCompliance
)

func (f SortField) String() string {
	switch f {
	case SortByName:
		return "name"
	case SortByCompliance:
		return "compliance"
	default:
		return "none"
	}
}

// SortDirection is ascending or descending
type SortDirection int

const (
	Ascending SortDirection = iota
	Descending
)

func (d SortDirection) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// SortKey is an explicit view ordering. A nil *SortKey keeps fetch order.
type SortKey struct {
	Field     SortField
	Direction SortDirection
}

// Outcome tells the caller what an operation did.
type Outcome int

const (
	// Applied means the operation's result, success or failure, was written to the state.
	Applied Outcome = iota
	// Ignored means the operation was rejected without touching the state, usually
	// because another fetch was in flight.
	Ignored
	// Superseded means a newer fetch was issued first and this result was discarded.
	Superseded
	// BranchSelected means the opened folder is a branch; the host should navigate to it.
	BranchSelected
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Ignored:
		return "ignored"
	case Superseded:
		return "superseded"
	default:
		return "branch_selected"
	}
}

// State is a read-only copy of one browsing session.
type State struct {
	Status Status
	Scope  models.Scope
	// StartFolder is the resolved company or branch folder, nil until resolved.
	StartFolder *models.RemoteFolderEntry
	// CurrentFolderID is empty while the start folder is displayed.
	CurrentFolderID string
	// History holds the frames opened below the start folder; the last one is displayed.
	History       []models.NavigationFrame
	Entries       []models.RemoteFolderEntry
	View          []ViewEntry
	SearchTerm    string
	Sort          *SortKey
	FetchInFlight bool
	LastError     error
	Seq           uint64
}

// ErrorKind classifies LastError.
func (s State) ErrorKind() ErrorKind {
	return KindOf(s.LastError)
}

// AtStart reports whether the start folder is displayed.
func (s State) AtStart() bool {
	return s.CurrentFolderID == ""
}

// DisplayedFolderID returns the id of the folder the entries belong to.
func (s State) DisplayedFolderID() string {
	if s.CurrentFolderID != "" {
		return s.CurrentFolderID
	}
	if s.StartFolder != nil {
		return s.StartFolder.ID
	}
	return ""
}

// Breadcrumb returns the folder names from the start folder to the displayed folder.
func (s State) Breadcrumb() []string {
	out := make([]string, 0, len(s.History)+1)
	if s.StartFolder != nil {
		out = append(out, s.StartFolder.Name)
	}
	for _, f := range s.History {
		out = append(out, f.FolderName)
	}
	return out
}

// session is the mutable state owned by a Controller
type session struct {
	status        Status
	scope         models.Scope
	scoped        bool
	start         *models.RemoteFolderEntry
	currentFolder string
	history       []models.NavigationFrame
	entries       []models.RemoteFolderEntry
	searchTerm    string
	sort          *SortKey
	lastError     error
	seq           uint64
	snapshot      *directory.Snapshot
	index         *matcher.Index
}

// beginFetch issues a new fetch sequence number and enters Loading
func (s *session) beginFetch() uint64 {
	s.seq++
	s.status = StatusLoading
	return s.seq
}

func (s *session) loading() bool {
	return s.status == StatusLoading
}

// reset discards everything tied to the previous scope, keeping the sequence counter
func (s *session) reset(scope models.Scope) {
	*s = session{seq: s.seq, scope: scope, scoped: true}
}

// position is the navigation part of a session: what is displayed and how it was reached
type position struct {
	history       []models.NavigationFrame
	currentFolder string
}

func (s *session) savePosition() position {
	return position{
		history:       append([]models.NavigationFrame(nil), s.history...),
		currentFolder: s.currentFolder,
	}
}

func (s *session) restore(p position) {
	s.history = p.history
	s.currentFolder = p.currentFolder
}

func (s *session) currentFolderID() string {
	if s.currentFolder != "" {
		return s.currentFolder
	}
	if s.start != nil {
		return s.start.ID
	}
	return ""
}

func (s *session) copyState() State {
	st := State{
		Status:          s.status,
		Scope:           s.scope,
		CurrentFolderID: s.currentFolder,
		History:         append([]models.NavigationFrame(nil), s.history...),
		Entries:         append([]models.RemoteFolderEntry(nil), s.entries...),
		View:            buildView(s.entries, s.searchTerm, s.sort, s.index, s.snapshot),
		SearchTerm:      s.searchTerm,
		FetchInFlight:   s.status == StatusLoading,
		LastError:       s.lastError,
		Seq:             s.seq,
	}
	if s.start != nil {
		start := *s.start
		st.StartFolder = &start
	}
	if s.sort != nil {
		key := *s.sort
		st.Sort = &key
	}
	return st
}
