package store

import (
	"context"
	"fmt"

	"tilespace-backend/pkg/models"
	"tilespace-backend/pkg/services"
	"tilespace-backend/pkg/utils"
)

// LinkDraft 新建 link 的输入
type LinkDraft struct {
	Title   string
	URL     string
	Summary string
}

// DocumentDraft 新建文档的输入
type DocumentDraft struct {
	Title   string
	Content string
	Summary string
}

// CreateLink 校验、规范化 URL 并拒绝同一 tile 内的重复项；成功后追加到末尾
func (s *Store) CreateLink(ctx context.Context, tileID string, draft LinkDraft) (*models.Link, error) {
	normalized, err := services.ValidateAndNormalizeURL(draft.URL)
	if err != nil {
		return nil, err
	}

	userID, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	i := tileIndex(s.state.Tiles, tileID)
	if i < 0 {
		s.mu.Unlock()
		return nil, ErrTileNotFound
	}
	tile := s.state.Tiles[i]
	duplicate := services.HasDuplicateURL(tile, normalized)
	position := services.NextLinkPosition(tile)
	s.mu.Unlock()

	if duplicate {
		return nil, ErrDuplicateURL
	}

	title := draft.Title
	if title == "" {
		title = normalized
	}
	link, err := s.gateway.CreateLink(ctx, userID, models.LinkInsert{
		UserID:   userID,
		TileID:   tileID,
		Type:     models.LinkTypeLink,
		Title:    title,
		URL:      &normalized,
		Summary:  draft.Summary,
		Position: position,
	})
	if err != nil {
		return nil, fmt.Errorf("create link: %w", err)
	}

	s.appendLink(*link, false)
	return link, nil
}

// CreateDocument 与 CreateLink 相同的流程，但没有 URL，也不做重复检查；
// 创建后直接打开编辑器
func (s *Store) CreateDocument(ctx context.Context, tileID string, draft DocumentDraft) (*models.Link, error) {
	userID, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	i := tileIndex(s.state.Tiles, tileID)
	if i < 0 {
		s.mu.Unlock()
		return nil, ErrTileNotFound
	}
	position := services.NextLinkPosition(s.state.Tiles[i])
	s.mu.Unlock()

	doc, err := s.gateway.CreateLink(ctx, userID, models.LinkInsert{
		UserID:   userID,
		TileID:   tileID,
		Type:     models.LinkTypeDocument,
		Title:    draft.Title,
		Summary:  draft.Summary,
		Content:  draft.Content,
		Position: position,
	})
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	s.appendLink(*doc, true)
	return doc, nil
}

func (s *Store) appendLink(link models.Link, edit bool) {
	link = link.Clone()
	s.mutate(func(st *State) {
		if i := tileIndex(st.Tiles, link.TileID); i >= 0 {
			st.Tiles[i].Links = append(st.Tiles[i].Links, link)
		}
		if edit {
			st.EditingDocumentID = &link.ID
		}
	})
}

// UpdateLink 乐观更新；涉及 URL 时重新规范化，失败则整个更新被拒绝
func (s *Store) UpdateLink(ctx context.Context, id string, upd models.LinkUpdate) error {
	if upd.URL != nil {
		normalized, err := utils.NormalizeURL(*upd.URL)
		if err != nil {
			return err
		}
		upd.URL = &normalized
	}

	userID, err := s.owner(ctx)
	if err != nil {
		return err
	}
	if upd.IsEmpty() {
		return nil
	}

	found := false
	s.mutate(func(st *State) {
		for ti := range st.Tiles {
			for li := range st.Tiles[ti].Links {
				if st.Tiles[ti].Links[li].ID == id {
					st.Tiles[ti].Links[li] = upd.Apply(st.Tiles[ti].Links[li])
					found = true
				}
			}
		}
	})
	if !found {
		return ErrLinkNotFound
	}

	if err := s.gateway.UpdateLink(ctx, userID, id, upd); err != nil {
		return s.rollback(ctx, "update link", err)
	}
	return nil
}

// SaveDocument 保存编辑器内容
func (s *Store) SaveDocument(ctx context.Context, id string, draft DocumentDraft) error {
	return s.UpdateLink(ctx, id, models.LinkUpdate{
		Title:   &draft.Title,
		Content: &draft.Content,
		Summary: &draft.Summary,
	})
}

// DeleteLink 乐观删除；正在编辑的文档被删时关闭编辑器
func (s *Store) DeleteLink(ctx context.Context, id string) error {
	userID, err := s.owner(ctx)
	if err != nil {
		return err
	}

	found := false
	s.mutate(func(st *State) {
		loc, ok := services.FindLinkByID(st.Tiles, id)
		if !ok {
			return
		}
		found = true
		links := st.Tiles[loc.TileIndex].Links
		st.Tiles[loc.TileIndex].Links = append(links[:loc.LinkIndex], links[loc.LinkIndex+1:]...)
		if sameID(st.EditingDocumentID, id) {
			st.EditingDocumentID = nil
		}
	})
	if !found {
		return ErrLinkNotFound
	}

	if err := s.gateway.DeleteLink(ctx, userID, id); err != nil {
		return s.rollback(ctx, "delete link", err)
	}
	return nil
}

// CloseDocument 关闭编辑器；空文档直接删除而不是保存
func (s *Store) CloseDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	var doc *models.Link
	if loc, ok := services.FindLinkByID(s.state.Tiles, id); ok {
		l := s.state.Tiles[loc.TileIndex].Links[loc.LinkIndex]
		doc = &l
	}
	s.mu.Unlock()

	if doc != nil && services.IsDocument(*doc) && services.IsDocumentEmpty(*doc) {
		return s.DeleteLink(ctx, id)
	}
	s.mutate(func(st *State) {
		if sameID(st.EditingDocumentID, id) {
			st.EditingDocumentID = nil
		}
	})
	return nil
}

// MoveLink 移到另一个 tile 的末尾（位置 = 目标 tile 当前的 link 数量）。
// 源 tile 找不到或与目标相同时什么都不做
func (s *Store) MoveLink(ctx context.Context, linkID, targetTileID string) error {
	userID, err := s.owner(ctx)
	if err != nil {
		return err
	}

	var (
		newPosition int
		skip        bool
		moveErr     error
	)
	s.mutate(func(st *State) {
		loc, ok := services.FindLinkByID(st.Tiles, linkID)
		if !ok || st.Tiles[loc.TileIndex].ID == targetTileID {
			skip = true
			return
		}
		target := tileIndex(st.Tiles, targetTileID)
		if target < 0 {
			moveErr = ErrTileNotFound
			return
		}

		source := &st.Tiles[loc.TileIndex]
		moved := source.Links[loc.LinkIndex]
		source.Links = append(source.Links[:loc.LinkIndex], source.Links[loc.LinkIndex+1:]...)

		newPosition = len(st.Tiles[target].Links)
		moved.TileID = targetTileID
		moved.Position = newPosition
		st.Tiles[target].Links = append(st.Tiles[target].Links, moved)
	})
	if skip || moveErr != nil {
		return moveErr
	}

	if _, err := s.gateway.MoveLink(ctx, userID, linkID, targetTileID, newPosition); err != nil {
		return s.rollback(ctx, "move link", err)
	}
	return nil
}
