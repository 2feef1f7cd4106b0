package browser

import (
	"math"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/fedesuarez16/opting-sub000/internal/directory"
	"github.com/fedesuarez16/opting-sub000/internal/matcher"
	"github.com/fedesuarez16/opting-sub000/internal/models"
)

// collationTag is the locale used for name ordering
var collationTag = language.Spanish

// ViewEntry is one renderable row of the derived view.
type ViewEntry struct {
	Entry models.RemoteFolderEntry
	// Branch is the branch the folder resolves to, nil for files and unmatched folders.
	Branch *models.BranchRecord
	// Percentage is the branch's latest compliance percentage, when known.
	Percentage *float64
}

// newCollator returns a collator for one sort; collators are not safe for concurrent use
func newCollator() *collate.Collator {
	return collate.New(collationTag)
}

// sortEntries orders a fetched listing: folders before files, then by name.
func sortEntries(entries []models.RemoteFolderEntry) []models.RemoteFolderEntry {
	out := append([]models.RemoteFolderEntry(nil), entries...)
	col := newCollator()
	sort.SliceStable(out, func(i, j int) bool {
		fi, fj := out[i].IsFolder(), out[j].IsFolder()
		if fi != fj {
			return fi
		}
		return col.CompareString(out[i].Name, out[j].Name) < 0
	})
	return out
}

func annotate(e models.RemoteFolderEntry, ix *matcher.Index, snap *directory.Snapshot) ViewEntry {
	ve := ViewEntry{Entry: e}
	b, ok := ix.Match(e)
	if !ok {
		return ve
	}
	ve.Branch = &b
	if p, ok := snap.CompliancePercentage(b.ID); ok {
		ve.Percentage = &p
	}
	return ve
}

// percentageKey ranks files and unmatched folders lowest
func percentageKey(ve ViewEntry) float64 {
	if ve.Percentage == nil {
		return math.Inf(-1)
	}
	return *ve.Percentage
}

// buildView derives the rows to display. entries is never modified.
func buildView(entries []models.RemoteFolderEntry, term string, key *SortKey, ix *matcher.Index, snap *directory.Snapshot) []ViewEntry {
	view := make([]ViewEntry, 0, len(entries))
	for _, e := range entries {
		if term != "" && !matcher.Contains(e.Name, term) {
			continue
		}
		view = append(view, annotate(e, ix, snap))
	}
	if key == nil {
		return view
	}

	var less func(a, b ViewEntry) bool
	switch key.Field {
	case SortByName:
		col := newCollator()
		less = func(a, b ViewEntry) bool { return col.CompareString(a.Entry.Name, b.Entry.Name) < 0 }
	case SortByCompliance:
		less = func(a, b ViewEntry) bool { return percentageKey(a) < percentageKey(b) }
	default:
		return view
	}
	if key.Direction == Descending {
		asc := less
		less = func(a, b ViewEntry) bool { return asc(b, a) }
	}
	sort.SliceStable(view, func(i, j int) bool { return less(view[i], view[j]) })
	return view
}
