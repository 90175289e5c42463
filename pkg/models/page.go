package models

import "time"

// Page 多页模式下的一个命名网格
type Page struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Position  int       `json:"position" db:"position"`
	Title     string    `json:"title" db:"title"`
	PaletteID string    `json:"palette_id" db:"palette_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PageUpdate partial update for a page.
type PageUpdate struct {
	Title     *string `json:"title,omitempty"`
	PaletteID *string `json:"palette_id,omitempty"`
	Position  *int    `json:"position,omitempty"`
}

// Apply 将更新应用到 page 副本上
func (u PageUpdate) Apply(p Page) Page {
	if u.Title != nil {
		p.Title = *u.Title
	}
	if u.PaletteID != nil {
		p.PaletteID = *u.PaletteID
	}
	if u.Position != nil {
		p.Position = *u.Position
	}
	return p
}

// PageInsert 创建 Page 时写入的字段
type PageInsert struct {
	UserID    string `json:"user_id"`
	Title     string `json:"title"`
	PaletteID string `json:"palette_id"`
	Position  int    `json:"position"`
}
