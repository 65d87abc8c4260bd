package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusWanted, StatusSnatched, true},
		{StatusSnatched, StatusHave, true},
		{StatusSnatched, StatusWanted, true},
		{StatusWanted, StatusHave, false},
		{StatusHave, StatusSnatched, false},
		{StatusOpen, StatusSnatched, false},
		{StatusHave, StatusIgnored, true},
		{StatusWanted, StatusWanted, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestAcceptsFormat(t *testing.T) {
	item := &WantedItem{AcceptedFormats: []string{"epub", "mobi"}}
	assert.True(t, item.AcceptsFormat("epub"))
	assert.True(t, item.AcceptsFormat(".EPUB"))
	assert.False(t, item.AcceptsFormat("pdf"))

	anyFormat := &WantedItem{}
	assert.True(t, anyFormat.AcceptsFormat("pdf"))
}

func TestSQLiteStore_FindWantedItems(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddItem(ctx, &WantedItem{
		ID: "b1", Kind: KindBook, Title: "Dune", Contributor: "Frank Herbert",
		Status: StatusWanted,
	}))
	require.NoError(t, store.AddItem(ctx, &WantedItem{
		ID: "b2", Kind: KindBook, Title: "Foundation", Contributor: "Isaac Asimov",
		Status: StatusHave,
	}))
	require.NoError(t, store.AddItem(ctx, &WantedItem{
		ID: "a1", Kind: KindAudio, Title: "Dune", Contributor: "Frank Herbert",
		Status: StatusWanted,
	}))

	books, err := store.FindWantedItems(ctx, KindBook, StatusWanted)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "b1", books[0].ID)

	all, err := store.FindWantedItems(ctx, "", StatusWanted)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLiteStore_MatchOne(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddItem(ctx, &WantedItem{
		ID: "b1", Kind: KindBook, Title: "Dune", ISBN: "9780441013593",
		AcceptedFormats: []string{"epub", "mobi"},
		RejectWords:     []string{"sample"},
		Status:          StatusWanted,
	}))

	byID, err := store.MatchOne(ctx, MatchCriteria{ID: "b1"})
	require.NoError(t, err)
	assert.Equal(t, "Dune", byID.Title)
	assert.Equal(t, []string{"epub", "mobi"}, byID.AcceptedFormats)
	assert.Equal(t, []string{"sample"}, byID.RejectWords)

	byISBN, err := store.MatchOne(ctx, MatchCriteria{ISBN: "9780441013593"})
	require.NoError(t, err)
	assert.Equal(t, "b1", byISBN.ID)

	_, err = store.MatchOne(ctx, MatchCriteria{ID: "nope"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.MatchOne(ctx, MatchCriteria{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_UpsertStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddItem(ctx, &WantedItem{
		ID: "b1", Kind: KindBook, Title: "Dune", Status: StatusWanted,
	}))

	err := store.UpsertStatus(ctx, "b1", StatusWanted, StatusSnatched, StatusFields{
		DownloadID: "dl-42", ClientName: "sabnzbd",
	})
	require.NoError(t, err)

	item, err := store.MatchOne(ctx, MatchCriteria{ID: "b1"})
	require.NoError(t, err)
	assert.Equal(t, StatusSnatched, item.Status)

	// The guarded update must lose when the stored status moved on.
	err = store.UpsertStatus(ctx, "b1", StatusWanted, StatusSnatched, StatusFields{})
	assert.ErrorIs(t, err, ErrStaleStatus)

	// Unguarded update always applies.
	err = store.UpsertStatus(ctx, "b1", "", StatusHave, StatusFields{
		LibraryPath: "/library/Frank Herbert/Dune",
	})
	require.NoError(t, err)

	err = store.UpsertStatus(ctx, "missing", StatusWanted, StatusSnatched, StatusFields{})
	assert.ErrorIs(t, err, ErrNotFound)
}
