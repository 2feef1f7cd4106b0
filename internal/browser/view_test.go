package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fedesuarez16/opting-sub000/internal/directory"
	"github.com/fedesuarez16/opting-sub000/internal/matcher"
	"github.com/fedesuarez16/opting-sub000/internal/models"
)

func TestSortEntries(t *testing.T) {
	t.Run("should use spanish collation", func(t *testing.T) {
		in := []models.RemoteFolderEntry{folder("3", "Oeste"), folder("2", "Ñuñoa"), folder("1", "Norte")}

		got := sortEntries(in)

		assert.Equal(t, []string{"Norte", "Ñuñoa", "Oeste"}, entryNames(got))
		assert.Equal(t, "Oeste", in[0].Name, "input is not modified")
	})

	t.Run("should keep fetch order for equal names", func(t *testing.T) {
		in := []models.RemoteFolderEntry{file("b", "acta.pdf"), file("a", "acta.pdf"), folder("c", "Zona")}

		got := sortEntries(in)

		assert.Equal(t, "c", got[0].ID)
		assert.Equal(t, "b", got[1].ID)
		assert.Equal(t, "a", got[2].ID)
	})
}

func TestBuildView(t *testing.T) {
	branches := []models.BranchRecord{{ID: "centro", DisplayName: "Centro", CompliancePercentage: pct(50)}}
	snap := directory.NewSnapshot(directory.Company{ID: "c1"}, branches)
	ix := matcher.NewIndex(branches)
	entries := []models.RemoteFolderEntry{folder("f1", "Centro"), file("d1", "centro.pdf"), folder("f2", "Otros")}

	t.Run("should never annotate files", func(t *testing.T) {
		view := buildView(entries, "centro", nil, ix, snap)

		assert.Equal(t, []string{"Centro", "centro.pdf"}, names(view))
		assert.NotNil(t, view[0].Branch)
		assert.Equal(t, 50.0, *view[0].Percentage)
		assert.Nil(t, view[1].Branch)
		assert.Nil(t, view[1].Percentage)
	})

	t.Run("should work without branch data", func(t *testing.T) {
		view := buildView(entries, "", &SortKey{Field: SortByCompliance}, nil, nil)

		assert.Equal(t, []string{"Centro", "centro.pdf", "Otros"}, names(view))
	})

	t.Run("should sort names in both directions", func(t *testing.T) {
		dup := []models.RemoteFolderEntry{folder("a", "Norte"), folder("b", "norte"), folder("c", "Abc")}

		asc := buildView(dup, "", &SortKey{Field: SortByName, Direction: Ascending}, nil, nil)
		desc := buildView(dup, "", &SortKey{Field: SortByName, Direction: Descending}, nil, nil)

		assert.Equal(t, "c", asc[0].Entry.ID)
		assert.Equal(t, "c", desc[2].Entry.ID)
	})
}

func TestSortStrings(t *testing.T) {
	assert.Equal(t, "name", SortByName.String())
	assert.Equal(t, "desc", Descending.String())
	assert.Equal(t, "superseded", Superseded.String())
	assert.Equal(t, "fetch", ErrorFetch.String())
}
