package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tilespace-backend/pkg/models"
)

func TestCapacityForBreakpoints(t *testing.T) {
	cases := map[int]int{0: 16, 1: 16, 16: 16, 17: 20, 20: 20, 21: 25, 25: 25, 40: 25}
	for n, want := range cases {
		assert.Equal(t, want, CapacityFor(n), "count %d", n)
	}
}

func TestCapacityForIsMonotonic(t *testing.T) {
	prev := CapacityFor(0)
	for n := 1; n <= 30; n++ {
		c := CapacityFor(n)
		assert.Contains(t, []int{16, 20, 25}, c)
		assert.GreaterOrEqual(t, c, prev)
		prev = c
	}
}

func TestDimensionsFor(t *testing.T) {
	assert.Equal(t, Dimensions{Cols: 4, Rows: 4}, DimensionsFor(16))
	assert.Equal(t, Dimensions{Cols: 5, Rows: 4}, DimensionsFor(20))
	assert.Equal(t, Dimensions{Cols: 5, Rows: 5}, DimensionsFor(25))
	assert.Panics(t, func() { DimensionsFor(18) })
}

func TestFirstEmptyPosition(t *testing.T) {
	assert.Equal(t, 2, FirstEmptyPosition(map[int]bool{0: true, 1: true, 3: true, 4: true}, 16))

	full := map[int]bool{}
	for i := 0; i < 16; i++ {
		full[i] = true
	}
	assert.Equal(t, NoSlot, FirstEmptyPosition(full, 16))
	assert.Equal(t, 16, FirstEmptyPosition(full, 20))
	assert.Equal(t, 0, FirstEmptyPosition(nil, 16))
}

func TestCanAddTile(t *testing.T) {
	assert.True(t, CanAddTile(0))
	assert.True(t, CanAddTile(24))
	assert.False(t, CanAddTile(25))
}

func TestNextTilePositionFillsGaps(t *testing.T) {
	tiles := []models.Tile{{Position: 0}, {Position: 1}, {Position: 3}}
	assert.Equal(t, 2, NextTilePosition(tiles))
}

func TestNextTilePositionGrowsCapacity(t *testing.T) {
	var tiles []models.Tile
	for i := 0; i < 16; i++ {
		tiles = append(tiles, models.Tile{Position: i})
	}
	assert.Equal(t, 16, NextTilePosition(tiles))

	for i := 16; i < 25; i++ {
		tiles = append(tiles, models.Tile{Position: i})
	}
	assert.Equal(t, NoSlot, NextTilePosition(tiles))
}

func TestBuildTilePositionMap(t *testing.T) {
	tiles := []models.Tile{{ID: "b", Position: 5}, {ID: "a", Position: 0}}
	m := BuildTilePositionMap(tiles)
	assert.Equal(t, "a", m[0].ID)
	assert.Equal(t, "b", m[5].ID)
	assert.Nil(t, m[1])

	SortByPosition(tiles)
	assert.Equal(t, "a", tiles[0].ID)
}
