package models

import "time"

// Tile 网格中的一个格子，持有若干 Link
type Tile struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	PageID      *string   `json:"page_id,omitempty" db:"page_id"`
	Title       string    `json:"title" db:"title"`
	Emoji       string    `json:"emoji" db:"emoji"`
	AccentColor string    `json:"accent_color" db:"accent_color"`
	ColorIndex  int       `json:"color_index" db:"color_index"`
	Position    int       `json:"position" db:"position"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
	Links       []Link    `json:"links,omitempty"`
}

// TileInsert 创建 Tile 时写入的字段
type TileInsert struct {
	UserID      string  `json:"user_id"`
	PageID      *string `json:"page_id,omitempty"`
	Title       string  `json:"title"`
	Emoji       string  `json:"emoji"`
	AccentColor string  `json:"accent_color"`
	ColorIndex  int     `json:"color_index"`
	Position    int     `json:"position"`
}

// TileUpdate partial update; nil fields are left untouched.
type TileUpdate struct {
	Title       *string `json:"title,omitempty"`
	Emoji       *string `json:"emoji,omitempty"`
	AccentColor *string `json:"accent_color,omitempty"`
	ColorIndex  *int    `json:"color_index,omitempty"`
	Position    *int    `json:"position,omitempty"`
}

// IsEmpty 是否没有任何字段需要更新
func (u TileUpdate) IsEmpty() bool {
	return u.Title == nil && u.Emoji == nil && u.AccentColor == nil && u.ColorIndex == nil && u.Position == nil
}

// Apply 将更新应用到 tile 副本上
func (u TileUpdate) Apply(t Tile) Tile {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Emoji != nil {
		t.Emoji = *u.Emoji
	}
	if u.AccentColor != nil {
		t.AccentColor = *u.AccentColor
	}
	if u.ColorIndex != nil {
		t.ColorIndex = *u.ColorIndex
	}
	if u.Position != nil {
		t.Position = *u.Position
	}
	return t
}

// Clone 深拷贝（包括 Links）
func (t Tile) Clone() Tile {
	if t.PageID != nil {
		id := *t.PageID
		t.PageID = &id
	}
	if t.Links != nil {
		links := make([]Link, len(t.Links))
		for i, l := range t.Links {
			links[i] = l.Clone()
		}
		t.Links = links
	}
	return t
}

// SamePage reports whether two page references point at the same grid.
func SamePage(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
