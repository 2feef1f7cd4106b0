package api

import (
	"strings"

	"github.com/fedesuarez16/opting-sub000/internal/models"
)

// listResponse is the envelope of every /folders action. Folder actions
// populate Folders, list-folder-contents populates Items.
type listResponse struct {
	Success       bool        `json:"success"`
	Folders       []wireEntry `json:"folders"`
	Items         []wireEntry `json:"items"`
	Error         string      `json:"error"`
	Message       string      `json:"message"`
	NextPageToken string      `json:"nextPageToken"`
}

func (r *listResponse) entries() []wireEntry {
	if len(r.Items) > 0 {
		return r.Items
	}
	return r.Folders
}

func (r *listResponse) errorText() string {
	if r.Error != "" {
		return r.Error
	}
	return r.Message
}

type folderFacet struct {
	ChildCount *int `json:"childCount"`
}

type fileFacet struct {
	MimeType string `json:"mimeType"`
}

// wireEntry accepts the shapes the drive proxy has used over time: an explicit
// kind/type field, or Graph-style folder/file facets.
type wireEntry struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Kind             string       `json:"kind"`
	Type             string       `json:"type"`
	ChildCount       *int         `json:"childCount"`
	Size             *int64       `json:"size"`
	WebURL           string       `json:"webUrl"`
	DownloadURL      string       `json:"downloadUrl"`
	GraphDownloadURL string       `json:"@microsoft.graph.downloadUrl"`
	Folder           *folderFacet `json:"folder"`
	File             *fileFacet   `json:"file"`
}

func (w wireEntry) kind() models.EntryKind {
	if k := models.ParseEntryKind(w.Kind); k != models.KindUnknown {
		return k
	}
	if k := models.ParseEntryKind(w.Type); k != models.KindUnknown {
		return k
	}
	switch {
	case w.Folder != nil && w.File == nil:
		return models.KindFolder
	case w.File != nil && w.Folder == nil:
		return models.KindFile
	default:
		return models.KindUnknown
	}
}

// toEntry converts without validating; the caller filters invariant violations
func (w wireEntry) toEntry() models.RemoteFolderEntry {
	e := models.RemoteFolderEntry{
		ID:          strings.TrimSpace(w.ID),
		Name:        w.Name,
		Kind:        w.kind(),
		ChildCount:  w.ChildCount,
		Size:        w.Size,
		WebURL:      w.WebURL,
		DownloadURL: w.DownloadURL,
	}
	if e.DownloadURL == "" {
		e.DownloadURL = w.GraphDownloadURL
	}
	if e.ChildCount == nil && w.Folder != nil {
		e.ChildCount = w.Folder.ChildCount
	}
	return e
}

func toEntries(ws []wireEntry) []models.RemoteFolderEntry {
	out := make([]models.RemoteFolderEntry, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.toEntry())
	}
	return out
}
