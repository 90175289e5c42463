package models

import "time"

// LinkType Link 的类型标签
type LinkType string

const (
	LinkTypeLink     LinkType = "link"
	LinkTypeDocument LinkType = "document"
)

// Link Tile 内的条目：外部链接或 markdown 文档
type Link struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	TileID    string    `json:"tile_id" db:"tile_id"`
	Type      LinkType  `json:"type" db:"type"`
	Title     string    `json:"title" db:"title"`
	URL       *string   `json:"url" db:"url"` // nil for documents
	Summary   string    `json:"summary" db:"summary"`
	Content   string    `json:"content" db:"content"`
	Position  int       `json:"position" db:"position"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// LinkInsert 创建 Link 时写入的字段
type LinkInsert struct {
	UserID   string   `json:"user_id"`
	TileID   string   `json:"tile_id"`
	Type     LinkType `json:"type"`
	Title    string   `json:"title"`
	URL      *string  `json:"url"`
	Summary  string   `json:"summary"`
	Content  string   `json:"content"`
	Position int      `json:"position"`
}

// LinkUpdate partial update; nil fields are left untouched.
type LinkUpdate struct {
	Title    *string `json:"title,omitempty"`
	URL      *string `json:"url,omitempty"`
	Summary  *string `json:"summary,omitempty"`
	Content  *string `json:"content,omitempty"`
	Position *int    `json:"position,omitempty"`
	TileID   *string `json:"tile_id,omitempty"`
}

// IsEmpty 是否没有任何字段需要更新
func (u LinkUpdate) IsEmpty() bool {
	return u.Title == nil && u.URL == nil && u.Summary == nil && u.Content == nil && u.Position == nil && u.TileID == nil
}

// Apply 将更新应用到 link 副本上
func (u LinkUpdate) Apply(l Link) Link {
	if u.Title != nil {
		l.Title = *u.Title
	}
	if u.URL != nil {
		url := *u.URL
		l.URL = &url
	}
	if u.Summary != nil {
		l.Summary = *u.Summary
	}
	if u.Content != nil {
		l.Content = *u.Content
	}
	if u.Position != nil {
		l.Position = *u.Position
	}
	if u.TileID != nil {
		l.TileID = *u.TileID
	}
	return l
}

// Clone 拷贝 link（URL 指针独立）
func (l Link) Clone() Link {
	if l.URL != nil {
		url := *l.URL
		l.URL = &url
	}
	return l
}

// URLString returns the url or "" for documents.
func (l Link) URLString() string {
	if l.URL == nil {
		return ""
	}
	return *l.URL
}
