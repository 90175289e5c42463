// Package services tile / link 的纯函数辅助：默认值、位置计算与查找
package services

import (
	"tilespace-backend/pkg/grid"
	"tilespace-backend/pkg/models"
)

// DefaultTileTitle 新建 tile 的默认标题
const DefaultTileTitle = "New Tile"

// EmojiCategory 一组默认 emoji
type EmojiCategory struct {
	Key    string
	Label  string
	Emojis []string
}

// EmojiCategories 默认 emoji 分类，顺序决定 DefaultEmojis 的循环顺序
var EmojiCategories = []EmojiCategory{
	{Key: "nature", Label: "Nature", Emojis: []string{"🌿", "🌸", "🍂", "🌊", "🌙", "☀️", "🌈", "🍀", "🌻", "🌺", "🍃", "🌴", "🌵", "🌾", "🪻", "🌷"}},
	{Key: "animals", Label: "Animals", Emojis: []string{"🦊", "🐙", "🦋", "🐝", "🦉", "🐳", "🦩", "🐢", "🐧", "🦄", "🐸", "🦁", "🐼", "🐨", "🦜", "🦚"}},
	{Key: "objects", Label: "Objects", Emojis: []string{"📚", "💼", "🎯", "🗂️", "📌", "🏷️", "📋", "📁", "🔖", "🗃️", "📎", "✏️", "🖊️", "📝", "🗒️", "📐"}},
	{Key: "food", Label: "Food", Emojis: []string{"🍋", "🍒", "🥑", "🍄", "🧁", "🍵", "🍯", "🥐", "🍕", "🍔", "🍎", "🍇", "🥗", "🍰", "☕", "🧀"}},
	{Key: "symbols", Label: "Symbols", Emojis: []string{"✨", "💫", "🌟", "💎", "🔥", "❄️", "💡", "⭐", "❤️", "💜", "💙", "💚", "🎵", "🎨", "🏠", "🚀"}},
}

// DefaultEmojis 所有分类拼接后的列表
var DefaultEmojis = flattenEmojis(EmojiCategories)

func flattenEmojis(categories []EmojiCategory) []string {
	var all []string
	for _, c := range categories {
		all = append(all, c.Emojis...)
	}
	return all
}

// DefaultEmoji 按位置循环取默认 emoji
func DefaultEmoji(position int) string {
	if position < 0 {
		position = -position
	}
	return DefaultEmojis[position%len(DefaultEmojis)]
}

// Inbox tile 的固定外观
const (
	InboxTitle      = "Inbox"
	InboxEmoji      = "📥"
	InboxColor      = "#64748B"
	InboxColorIndex = 0
)

// FindInboxTile returns the tile titled "Inbox", if any.
func FindInboxTile(tiles []models.Tile) *models.Tile {
	for i := range tiles {
		if tiles[i].Title == InboxTitle {
			return &tiles[i]
		}
	}
	return nil
}

// NewTileDefaults 新 tile 的派生字段：颜色序号 = position mod 12，强调色取自调色板
func NewTileDefaults(userID string, pageID *string, position int, paletteID string) models.TileInsert {
	colorIndex := position % models.ColorsPerPalette
	return models.TileInsert{
		UserID:      userID,
		PageID:      pageID,
		Title:       DefaultTileTitle,
		Emoji:       DefaultEmoji(position),
		AccentColor: models.ColorFromPalette(paletteID, colorIndex),
		ColorIndex:  colorIndex,
		Position:    position,
	}
}

// InboxTileInsert 收件箱 tile 的写入字段
func InboxTileInsert(userID string, pageID *string, position int) models.TileInsert {
	return models.TileInsert{
		UserID:      userID,
		PageID:      pageID,
		Title:       InboxTitle,
		Emoji:       InboxEmoji,
		AccentColor: InboxColor,
		ColorIndex:  InboxColorIndex,
		Position:    position,
	}
}

// FindTile 按 id 查找
func FindTile(tiles []models.Tile, id string) *models.Tile {
	for i := range tiles {
		if tiles[i].ID == id {
			return &tiles[i]
		}
	}
	return nil
}

// TileHasLinks reports whether the tile holds at least one link.
func TileHasLinks(t models.Tile) bool {
	return len(t.Links) > 0
}

// TileLinkCount 子条目数量
func TileLinkCount(t models.Tile) int {
	return len(t.Links)
}

// GridSummary is the derived view data for one grid.
type GridSummary struct {
	Capacity   int             `json:"capacity"`
	Dimensions grid.Dimensions `json:"dimensions"`
	TileCount  int             `json:"tile_count"`
	CanAddTile bool            `json:"can_add_tile"`
}

// SummarizeGrid 根据 tile 列表计算容量、尺寸等派生数据
func SummarizeGrid(tiles []models.Tile) GridSummary {
	capacity := grid.CapacityFor(len(tiles))
	return GridSummary{
		Capacity:   capacity,
		Dimensions: grid.DimensionsFor(capacity),
		TileCount:  len(tiles),
		CanAddTile: grid.CanAddTile(len(tiles)),
	}
}
