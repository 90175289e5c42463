package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tilespace-backend/pkg/models"
)

const owner = "user-1"

func strPtr(s string) *string { return &s }

func seedTiles(t *testing.T, db Gateway, pageID *string, positions ...int) []*models.Tile {
	t.Helper()
	var out []*models.Tile
	for _, pos := range positions {
		tile, err := db.CreateTile(context.Background(), owner, models.TileInsert{
			PageID:      pageID,
			Title:       "Tile",
			Emoji:       "🔖",
			AccentColor: "#000000",
			ColorIndex:  pos % models.ColorsPerPalette,
			Position:    pos,
		})
		require.NoError(t, err)
		out = append(out, tile)
	}
	return out
}

func positionsByID(t *testing.T, db Gateway, pageID *string) map[string]int {
	t.Helper()
	tiles, err := db.ListTiles(context.Background(), owner, pageID)
	require.NoError(t, err)
	out := map[string]int{}
	for _, tile := range tiles {
		out[tile.ID] = tile.Position
	}
	return out
}

func TestLocalRejectsMissingOwner(t *testing.T) {
	db := NewMemoryDatabase()
	_, err := db.ListTiles(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.ErrorIs(t, db.DeleteTile(context.Background(), "", "x"), ErrNotAuthenticated)
}

func TestLocalCreateTileRejectsOccupiedAndInvalidPositions(t *testing.T) {
	db := NewMemoryDatabase()
	seedTiles(t, db, nil, 3)

	_, err := db.CreateTile(context.Background(), owner, models.TileInsert{Title: "dup", Position: 3})
	assert.ErrorIs(t, err, ErrPositionOccupied)

	_, err = db.CreateTile(context.Background(), owner, models.TileInsert{Title: "bad", Position: 25})
	assert.ErrorIs(t, err, ErrInvalidPosition)

	// 其他用户同一位置不冲突
	_, err = db.CreateTile(context.Background(), "user-2", models.TileInsert{Title: "other", Position: 3})
	assert.NoError(t, err)
}

func TestLocalSwapRoundTrip(t *testing.T) {
	db := NewMemoryDatabase()
	tiles := seedTiles(t, db, nil, 0, 7, 12)
	before := positionsByID(t, db, nil)

	require.NoError(t, db.SwapTilePositions(context.Background(), owner, tiles[0].ID, tiles[1].ID))
	swapped := positionsByID(t, db, nil)
	assert.Equal(t, 7, swapped[tiles[0].ID])
	assert.Equal(t, 0, swapped[tiles[1].ID])
	assert.Equal(t, 12, swapped[tiles[2].ID])

	require.NoError(t, db.SwapTilePositions(context.Background(), owner, tiles[0].ID, tiles[1].ID))
	assert.Equal(t, before, positionsByID(t, db, nil))
}

func TestLocalSwapRejectsCrossPage(t *testing.T) {
	db := NewMemoryDatabase()
	page, err := db.CreatePage(context.Background(), owner, models.PageInsert{Title: "Work", PaletteID: models.DefaultPaletteID})
	require.NoError(t, err)

	a := seedTiles(t, db, nil, 0)[0]
	b := seedTiles(t, db, &page.ID, 1)[0]
	assert.ErrorIs(t, db.SwapTilePositions(context.Background(), owner, a.ID, b.ID), ErrInvalidPosition)
	assert.Equal(t, 0, positionsByID(t, db, nil)[a.ID])
}

func TestLocalMoveTileToPosition(t *testing.T) {
	db := NewMemoryDatabase()
	tiles := seedTiles(t, db, nil, 0, 1)

	err := db.MoveTileToPosition(context.Background(), owner, tiles[0].ID, 1)
	assert.ErrorIs(t, err, ErrPositionOccupied)
	assert.Equal(t, 0, positionsByID(t, db, nil)[tiles[0].ID])

	require.NoError(t, db.MoveTileToPosition(context.Background(), owner, tiles[0].ID, 9))
	assert.Equal(t, 9, positionsByID(t, db, nil)[tiles[0].ID])

	assert.ErrorIs(t, db.MoveTileToPosition(context.Background(), owner, tiles[0].ID, -1), ErrInvalidPosition)
	assert.ErrorIs(t, db.MoveTileToPosition(context.Background(), owner, "missing", 3), ErrNotFound)
}

func TestLocalDeleteTileKeepsOtherPositions(t *testing.T) {
	db := NewMemoryDatabase()
	tiles := seedTiles(t, db, nil, 0, 1, 2)
	_, err := db.CreateLink(context.Background(), owner, models.LinkInsert{
		TileID: tiles[1].ID, Type: models.LinkTypeLink, Title: "Go", URL: strPtr("https://go.dev"),
	})
	require.NoError(t, err)

	require.NoError(t, db.DeleteTile(context.Background(), owner, tiles[1].ID))

	positions := positionsByID(t, db, nil)
	assert.Len(t, positions, 2)
	assert.Equal(t, 0, positions[tiles[0].ID])
	assert.Equal(t, 2, positions[tiles[2].ID])

	db.mu.Lock()
	assert.Empty(t, db.data.Links)
	db.mu.Unlock()

	assert.ErrorIs(t, db.DeleteTile(context.Background(), owner, tiles[1].ID), ErrNotFound)
}

func TestLocalLinksLifecycle(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDatabase()
	tiles := seedTiles(t, db, nil, 0, 1)

	maxPos, err := db.MaxLinkPosition(ctx, owner, tiles[0].ID)
	require.NoError(t, err)
	assert.Equal(t, -1, maxPos)

	l1, err := db.CreateLink(ctx, owner, models.LinkInsert{TileID: tiles[0].ID, Type: models.LinkTypeLink, Title: "A", URL: strPtr("https://a.example"), Position: 0})
	require.NoError(t, err)
	_, err = db.CreateLink(ctx, owner, models.LinkInsert{TileID: tiles[0].ID, Type: models.LinkTypeDocument, Title: "Doc", Position: 1})
	require.NoError(t, err)

	maxPos, err = db.MaxLinkPosition(ctx, owner, tiles[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, maxPos)

	_, err = db.CreateLink(ctx, owner, models.LinkInsert{TileID: tiles[0].ID, Type: models.LinkTypeDocument, Title: "Bad", URL: strPtr("https://x")})
	assert.Error(t, err)
	_, err = db.CreateLink(ctx, owner, models.LinkInsert{TileID: "missing", Type: models.LinkTypeLink, URL: strPtr("https://x")})
	assert.ErrorIs(t, err, ErrNotFound)

	moved, err := db.MoveLink(ctx, owner, l1.ID, tiles[1].ID, 0)
	require.NoError(t, err)
	assert.Equal(t, tiles[1].ID, moved.TileID)

	tile, err := db.GetTile(ctx, owner, tiles[1].ID)
	require.NoError(t, err)
	require.Len(t, tile.Links, 1)
	assert.Equal(t, "A", tile.Links[0].Title)

	summary := "notes"
	require.NoError(t, db.UpdateLink(ctx, owner, l1.ID, models.LinkUpdate{Summary: &summary}))
	tile, err = db.GetTile(ctx, owner, tiles[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "notes", tile.Links[0].Summary)

	require.NoError(t, db.DeleteLink(ctx, owner, l1.ID))
	assert.ErrorIs(t, db.DeleteLink(ctx, owner, l1.ID), ErrNotFound)
}

func TestLocalRecolorUsesColorIndex(t *testing.T) {
	db := NewMemoryDatabase()
	seedTiles(t, db, nil, 0, 5, 13)

	tiles, err := db.RecolorTiles(context.Background(), owner, nil, "sunset-glow")
	require.NoError(t, err)
	require.Len(t, tiles, 3)
	for _, tile := range tiles {
		assert.Equal(t, models.ColorFromPalette("sunset-glow", tile.ColorIndex), tile.AccentColor)
	}
}

func TestLocalPagesCascadeAndReset(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDatabase()

	page, err := db.CreatePage(ctx, owner, models.PageInsert{Title: "Home", PaletteID: models.DefaultPaletteID, Position: 0})
	require.NoError(t, err)
	_, err = db.CreatePage(ctx, owner, models.PageInsert{Title: "Dup", Position: 0})
	assert.ErrorIs(t, err, ErrPositionOccupied)

	other, err := db.CreatePage(ctx, owner, models.PageInsert{Title: "Other", Position: 1})
	require.NoError(t, err)

	seedTiles(t, db, &page.ID, 0, 1)
	kept := seedTiles(t, db, &other.ID, 0)

	require.NoError(t, db.ResetPage(ctx, owner, page.ID))
	tiles, err := db.ListTiles(ctx, owner, &page.ID)
	require.NoError(t, err)
	assert.Empty(t, tiles)

	pages, err := db.ListPages(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, pages, 2)

	title := "Renamed"
	require.NoError(t, db.UpdatePage(ctx, owner, other.ID, models.PageUpdate{Title: &title}))

	seedTiles(t, db, &page.ID, 4)
	require.NoError(t, db.DeletePage(ctx, owner, page.ID))
	pages, err = db.ListPages(ctx, owner)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "Renamed", pages[0].Title)

	tiles, err = db.ListTiles(ctx, owner, &other.ID)
	require.NoError(t, err)
	require.Len(t, tiles, 1)
	assert.Equal(t, kept[0].ID, tiles[0].ID)

	assert.ErrorIs(t, db.DeletePage(ctx, owner, page.ID), ErrNotFound)
}

func TestLocalPreferencesDefaultAndUpsert(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDatabase()

	prefs, err := db.GetPreferences(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPaletteID, prefs.CurrentPalette)

	require.NoError(t, db.SetPalette(ctx, owner, "nordic"))
	prefs, err = db.GetPreferences(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, "nordic", prefs.CurrentPalette)
}

func TestLocalPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := NewLocalDatabase(dir)
	require.NoError(t, err)
	tiles := seedTiles(t, db, nil, 4)

	reopened, err := NewLocalDatabase(dir)
	require.NoError(t, err)
	tile, err := reopened.GetTile(context.Background(), owner, tiles[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 4, tile.Position)
	assert.NoError(t, reopened.HealthCheck())
}

func TestLocalFailedUpdateLeavesDataUntouched(t *testing.T) {
	db := NewMemoryDatabase()
	tiles := seedTiles(t, db, nil, 0)

	boom := errors.New("boom")
	err := db.update(func(d *localData) error {
		d.Tiles[0].Position = 20
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, positionsByID(t, db, nil)[tiles[0].ID])
}
