// Package matcher decides whether a remote folder name denotes a known branch
// or company. Comparison is Unicode case-folded, NFC-normalised and trimmed.
//
// Folder names are typed by hand in the drive, so the rules favour recall: after
// exact equality they accept containment and prefix relations against branch ids.
// Ties are resolved by list order.
package matcher

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/fedesuarez16/opting-sub000/internal/models"
)

// Tier identifies which rule produced a match
type Tier int

const (
	TierNone Tier = iota
	TierExact
	TierContains
	TierPrefix
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierContains:
		return "contains"
	case TierPrefix:
		return "prefix"
	default:
		return "none"
	}
}

// Normalize returns the comparison form of s.
func Normalize(s string) string {
	// a Caser is stateful, so one per call
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

// Equal reports whether a and b are equal after normalisation.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// ContainsEither reports whether either normalised string contains the other.
// Empty strings never match.
func ContainsEither(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

// Contains reports whether normalised s contains normalised sub. An empty sub matches.
func Contains(s, sub string) bool {
	return strings.Contains(Normalize(s), Normalize(sub))
}

type branchKey struct {
	name string
	id   string
}

func keysOf(branches []models.BranchRecord) []branchKey {
	keys := make([]branchKey, len(branches))
	for i, b := range branches {
		keys[i] = branchKey{name: Normalize(b.DisplayName), id: Normalize(b.ID)}
	}
	return keys
}

func matchesTier(tier Tier, entry string, k branchKey) bool {
	switch tier {
	case TierExact:
		return (k.name != "" && entry == k.name) || (k.id != "" && entry == k.id)
	case TierContains:
		return k.id != "" && (strings.Contains(entry, k.id) || strings.Contains(k.id, entry))
	case TierPrefix:
		return k.id != "" && (strings.HasPrefix(entry, k.id) || strings.HasPrefix(k.id, entry))
	default:
		return false
	}
}

// MatchBranchTier resolves entry to a branch and reports the rule that matched.
// Only folders can match.
func MatchBranchTier(entry models.RemoteFolderEntry, branches []models.BranchRecord) (models.BranchRecord, Tier, bool) {
	return NewIndex(branches).MatchTier(entry)
}

// MatchBranch resolves entry to a branch. File entries never match.
func MatchBranch(entry models.RemoteFolderEntry, branches []models.BranchRecord) (models.BranchRecord, bool) {
	b, _, ok := MatchBranchTier(entry, branches)
	return b, ok
}

// Index precomputes branch keys for annotating many entries against one branch list.
type Index struct {
	branches []models.BranchRecord
	keys     []branchKey
}

// NewIndex builds an Index over branches, preserving their order.
func NewIndex(branches []models.BranchRecord) *Index {
	return &Index{branches: branches, keys: keysOf(branches)}
}

// Match resolves entry using the same rules as MatchBranch.
func (ix *Index) Match(entry models.RemoteFolderEntry) (models.BranchRecord, bool) {
	b, _, ok := ix.MatchTier(entry)
	return b, ok
}

// MatchTier tries each tier in order over every branch; the first branch in list
// order wins within a tier.
func (ix *Index) MatchTier(entry models.RemoteFolderEntry) (models.BranchRecord, Tier, bool) {
	if ix == nil || len(ix.keys) == 0 || !entry.IsFolder() {
		return models.BranchRecord{}, TierNone, false
	}
	name := Normalize(entry.Name)
	if name == "" {
		return models.BranchRecord{}, TierNone, false
	}
	for _, tier := range []Tier{TierExact, TierContains, TierPrefix} {
		for i, k := range ix.keys {
			if matchesTier(tier, name, k) {
				return ix.branches[i], tier, true
			}
		}
	}
	return models.BranchRecord{}, TierNone, false
}

// FindFolderExact returns the first folder whose name equals name.
func FindFolderExact(name string, entries []models.RemoteFolderEntry) (models.RemoteFolderEntry, bool) {
	target := Normalize(name)
	if target == "" {
		return models.RemoteFolderEntry{}, false
	}
	for _, e := range entries {
		if e.IsFolder() && Normalize(e.Name) == target {
			return e, true
		}
	}
	return models.RemoteFolderEntry{}, false
}

// FindFolderContaining returns the first folder whose name contains name or is contained by it.
func FindFolderContaining(name string, entries []models.RemoteFolderEntry) (models.RemoteFolderEntry, bool) {
	for _, e := range entries {
		if e.IsFolder() && ContainsEither(e.Name, name) {
			return e, true
		}
	}
	return models.RemoteFolderEntry{}, false
}

// FindFolder applies exact matching, then containment.
func FindFolder(name string, entries []models.RemoteFolderEntry) (models.RemoteFolderEntry, Tier, bool) {
	if e, ok := FindFolderExact(name, entries); ok {
		return e, TierExact, true
	}
	if e, ok := FindFolderContaining(name, entries); ok {
		return e, TierContains, true
	}
	return models.RemoteFolderEntry{}, TierNone, false
}
