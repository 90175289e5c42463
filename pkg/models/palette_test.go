package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPaletteFallsBackToDefault(t *testing.T) {
	p := GetPalette("does-not-exist")
	assert.Equal(t, DefaultPaletteID, p.ID)

	p = GetPalette("nordic")
	assert.Equal(t, "Nordic", p.Name)
	assert.Equal(t, PaletteMuted, p.Category)
}

func TestPaletteTableShape(t *testing.T) {
	require.Len(t, Palettes, 12)
	seen := map[string]bool{}
	vibrant := 0
	for _, p := range Palettes {
		assert.False(t, seen[p.ID], "duplicate palette id %s", p.ID)
		seen[p.ID] = true
		for _, c := range p.Colors {
			assert.Len(t, c, 7, "palette %s color %q", p.ID, c)
		}
		if p.Category == PaletteVibrant {
			vibrant++
		}
	}
	assert.Equal(t, 6, vibrant)
	assert.True(t, IsKnownPalette(DefaultPaletteID))
}

func TestColorFromPaletteWrapsIndex(t *testing.T) {
	assert.Equal(t, "#0891B2", ColorFromPalette("ocean-bold", 0))
	assert.Equal(t, "#0891B2", ColorFromPalette("ocean-bold", 12))
	assert.Equal(t, "#F97316", ColorFromPalette("ocean-bold", 15))
	assert.Equal(t, "#FF6B5B", ColorFromPalette("coral-reef", 24))
}

func TestTileUpdateApply(t *testing.T) {
	title := "Reading"
	idx := 4
	tile := Tile{ID: "t1", Title: "New Tile", ColorIndex: 1}
	got := TileUpdate{Title: &title, ColorIndex: &idx}.Apply(tile)
	assert.Equal(t, "Reading", got.Title)
	assert.Equal(t, 4, got.ColorIndex)
	assert.Equal(t, "New Tile", tile.Title)
	assert.True(t, TileUpdate{}.IsEmpty())
}

func TestTileCloneIsDeep(t *testing.T) {
	url := "https://example.com"
	tile := Tile{ID: "t1", Links: []Link{{ID: "l1", URL: &url}}}
	c := tile.Clone()
	*c.Links[0].URL = "https://other.example"
	c.Links[0].Title = "changed"
	assert.Equal(t, "https://example.com", *tile.Links[0].URL)
	assert.Empty(t, tile.Links[0].Title)
}
