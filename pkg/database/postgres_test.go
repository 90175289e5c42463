package database

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tilespace-backend/pkg/models"
)

func TestMapPQError(t *testing.T) {
	assert.ErrorIs(t, mapPQError(&pq.Error{Code: "23505"}), ErrPositionOccupied)
	assert.ErrorIs(t, mapPQError(&pq.Error{Code: "P0002"}), ErrNotFound)
	assert.ErrorIs(t, mapPQError(&pq.Error{Code: "22023"}), ErrInvalidPosition)
	assert.Nil(t, mapPQError(nil))
}

func TestSetBuilder(t *testing.T) {
	b := newSetBuilder()
	b.add("title", "x")
	b.raw("updated_at=NOW()")
	query, args := b.build("tiles", "id-1", "user-1")
	assert.Equal(t, "UPDATE tiles SET title=$1, updated_at=NOW() WHERE id=$2 AND user_id=$3", query)
	assert.Equal(t, []interface{}{"x", "id-1", "user-1"}, args)
}

func TestAddConnectionParams(t *testing.T) {
	assert.Equal(t, "postgres://h/db?connect_timeout=10", addConnectionParams("postgres://h/db", "connect_timeout=10"))
	assert.Equal(t, "postgres://h/db?a=1&connect_timeout=10", addConnectionParams("postgres://h/db?a=1", "connect_timeout=10"))
	assert.Equal(t, "host=h dbname=db", addConnectionParams("host=h dbname=db", "connect_timeout=10"))
}

// 需要真实数据库：TILESPACE_TEST_POSTGRES_DSN=postgres://... go test ./pkg/database
func TestPostgresSwapAndMove(t *testing.T) {
	dsn := os.Getenv("TILESPACE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TILESPACE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	db, err := NewPostgresDatabase(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, ApplyMigrations(ctx, db.DB()))

	user := uuid.New().String()
	var ids []string
	for _, pos := range []int{0, 1} {
		tile, err := db.CreateTile(ctx, user, models.TileInsert{Title: "T", Emoji: "📌", AccentColor: "#000", Position: pos})
		require.NoError(t, err)
		ids = append(ids, tile.ID)
	}
	t.Cleanup(func() {
		for _, id := range ids {
			_ = db.DeleteTile(ctx, user, id)
		}
	})

	_, err = db.CreateTile(ctx, user, models.TileInsert{Title: "dup", Position: 0})
	assert.ErrorIs(t, err, ErrPositionOccupied)

	require.NoError(t, db.SwapTilePositions(ctx, user, ids[0], ids[1]))
	a, err := db.GetTile(ctx, user, ids[0])
	require.NoError(t, err)
	assert.Equal(t, 1, a.Position)

	page, err := db.CreatePage(ctx, user, models.PageInsert{Title: "Work", PaletteID: models.DefaultPaletteID})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.DeletePage(ctx, user, page.ID) })
	other, err := db.CreateTile(ctx, user, models.TileInsert{Title: "P", Position: 0, PageID: &page.ID})
	require.NoError(t, err)
	ids = append(ids, other.ID)
	assert.ErrorIs(t, db.SwapTilePositions(ctx, user, ids[0], other.ID), ErrInvalidPosition)

	assert.ErrorIs(t, db.MoveTileToPosition(ctx, user, ids[0], 0), ErrPositionOccupied)
	require.NoError(t, db.MoveTileToPosition(ctx, user, ids[0], 10))

	tiles, err := db.RecolorTiles(ctx, user, nil, "nordic")
	require.NoError(t, err)
	for _, tile := range tiles {
		assert.Equal(t, models.ColorFromPalette("nordic", tile.ColorIndex), tile.AccentColor)
	}
}
