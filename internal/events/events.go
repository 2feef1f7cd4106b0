package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/fedesuarez16/opting-sub000/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	// EventBrowserState is published after every browser state transition
	EventBrowserState EventType = "browser_state"
	// EventBranchSelected is published when opening a folder resolves to a branch
	EventBranchSelected EventType = "branch_selected"
	// EventFetchFailed is published when a browser fetch ends in an error
	EventFetchFailed EventType = "fetch_failed"
	// EventDownload is published as documents finish downloading
	EventDownload EventType = "download"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

func newBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, Time: time.Now()}
}

// BrowserStateEvent carries a summary of the browser state after a transition
type BrowserStateEvent struct {
	BaseEvent
	Session  string
	Status   string // idle, loading, loaded, error
	FolderID string
	Depth    int // history length
	Entries  int
	Seq      uint64
}

// BranchSelectedEvent asks the host UI to navigate to a branch detail view
type BranchSelectedEvent struct {
	BaseEvent
	Session    string
	CompanyID  string
	BranchID   string
	BranchName string
	FolderID   string
}

// FetchFailedEvent describes a failed browser fetch
type FetchFailedEvent struct {
	BaseEvent
	Session   string
	Operation string
	Kind      string // unauthenticated, not_found, fetch
	Message   string
}

// DownloadEvent reports one finished (or failed) document download
type DownloadEvent struct {
	BaseEvent
	EntryID string
	Name    string
	Path    string
	Bytes   int64
	Error   error
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // Subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

func (eb *EventBus) newChannel() chan Event {
	return make(chan Event, eb.bufferSize)
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := eb.newChannel()
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := eb.newChannel()
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers without blocking.
// Events for full subscriber buffers are dropped and counted.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}

	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}

	for _, ch := range eb.all {
		close(ch)
	}
}

// PublishBrowserState is a convenience method for publishing browser state events
func (eb *EventBus) PublishBrowserState(session, status, folderID string, depth, entries int, seq uint64) {
	eb.Publish(&BrowserStateEvent{
		BaseEvent: newBase(EventBrowserState),
		Session:   session,
		Status:    status,
		FolderID:  folderID,
		Depth:     depth,
		Entries:   entries,
		Seq:       seq,
	})
}

// PublishBranchSelected is a convenience method for publishing branch selection
func (eb *EventBus) PublishBranchSelected(session, companyID, branchID, branchName, folderID string) {
	eb.Publish(&BranchSelectedEvent{
		BaseEvent:  newBase(EventBranchSelected),
		Session:    session,
		CompanyID:  companyID,
		BranchID:   branchID,
		BranchName: branchName,
		FolderID:   folderID,
	})
}

// PublishFetchFailed is a convenience method for publishing fetch failures
func (eb *EventBus) PublishFetchFailed(session, operation, kind, message string) {
	eb.Publish(&FetchFailedEvent{
		BaseEvent: newBase(EventFetchFailed),
		Session:   session,
		Operation: operation,
		Kind:      kind,
		Message:   message,
	})
}

// PublishDownload is a convenience method for publishing download results
func (eb *EventBus) PublishDownload(entryID, name, path string, bytes int64, err error) {
	eb.Publish(&DownloadEvent{
		BaseEvent: newBase(EventDownload),
		EntryID:   entryID,
		Name:      name,
		Path:      path,
		Bytes:     bytes,
		Error:     err,
	})
}

// Unsubscribe removes a subscription channel from a specific event type
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	subscribers := eb.subscribers[eventType]
	for i, subCh := range subscribers {
		if subCh == ch {
			subscribers[i] = subscribers[len(subscribers)-1]
			eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
			close(subCh)
			break
		}
	}
}

// UnsubscribeAll removes a subscription channel created by SubscribeAll
func (eb *EventBus) UnsubscribeAll(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	for i, subCh := range eb.all {
		if subCh == ch {
			eb.all[i] = eb.all[len(eb.all)-1]
			eb.all = eb.all[:len(eb.all)-1]
			close(subCh)
			break
		}
	}
}

// GetDroppedEventCount returns the total number of events dropped due to full buffers
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}
