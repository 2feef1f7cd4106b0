package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedEntry indicates a drive entry that violates the folder/file invariant.
var ErrMalformedEntry = errors.New("malformed drive entry")

// EntryKind distinguishes folders from files in the remote drive tree
type EntryKind int

const (
	KindUnknown EntryKind = iota
	KindFolder
	KindFile
)

// String returns the wire name of the kind
func (k EntryKind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

// ParseEntryKind maps a wire kind ("folder", "file", any case) to an EntryKind
func ParseEntryKind(s string) EntryKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "folder", "directory", "dir":
		return KindFolder
	case "file":
		return KindFile
	default:
		return KindUnknown
	}
}

// RemoteFolderEntry is one node in the remote drive tree.
// ChildCount is set only on folders; Size and DownloadURL only on files.
type RemoteFolderEntry struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Kind        EntryKind `json:"-"`
	ChildCount  *int      `json:"childCount,omitempty"`
	Size        *int64    `json:"size,omitempty"`
	WebURL      string    `json:"webUrl,omitempty"`
	DownloadURL string    `json:"downloadUrl,omitempty"`
}

// NewFolder builds a folder entry. A negative childCount means unknown.
func NewFolder(id, name string, childCount int) RemoteFolderEntry {
	e := RemoteFolderEntry{ID: id, Name: name, Kind: KindFolder}
	if childCount >= 0 {
		e.ChildCount = &childCount
	}
	return e
}

// NewFile builds a file entry. A negative size means unknown.
func NewFile(id, name string, size int64, webURL, downloadURL string) RemoteFolderEntry {
	e := RemoteFolderEntry{ID: id, Name: name, Kind: KindFile, WebURL: webURL, DownloadURL: downloadURL}
	if size >= 0 {
		e.Size = &size
	}
	return e
}

// IsFolder reports whether the entry is a folder
func (e RemoteFolderEntry) IsFolder() bool {
	return e.Kind == KindFolder
}

// IsFile reports whether the entry is a file
func (e RemoteFolderEntry) IsFile() bool {
	return e.Kind == KindFile
}

// Validate checks the folder/file invariant. Errors wrap ErrMalformedEntry.
func (e RemoteFolderEntry) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrMalformedEntry)
	}
	switch e.Kind {
	case KindFolder:
		if e.Size != nil {
			return fmt.Errorf("%w: folder %s carries size", ErrMalformedEntry, e.ID)
		}
		if e.DownloadURL != "" {
			return fmt.Errorf("%w: folder %s carries downloadUrl", ErrMalformedEntry, e.ID)
		}
	case KindFile:
		if e.ChildCount != nil {
			return fmt.Errorf("%w: file %s carries childCount", ErrMalformedEntry, e.ID)
		}
	default:
		return fmt.Errorf("%w: entry %s has no kind", ErrMalformedEntry, e.ID)
	}
	return nil
}

// SizeOrZero returns the file size, or 0 when unknown
func (e RemoteFolderEntry) SizeOrZero() int64 {
	if e.Size == nil {
		return 0
	}
	return *e.Size
}
