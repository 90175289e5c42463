package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"tilespace-backend/pkg/models"
)

var ErrPageNotFound = errors.New("page not found")

// DefaultPageTitle 新页面的默认标题
const DefaultPageTitle = "New Page"

func sortedPages(pages []models.Page) []models.Page {
	out := append([]models.Page(nil), pages...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func pageIndex(pages []models.Page, id string) int {
	for i := range pages {
		if pages[i].ID == id {
			return i
		}
	}
	return -1
}

// SelectPage 切换当前页面：清空选中状态并加载该页的 tile
func (s *Store) SelectPage(ctx context.Context, pageID string) error {
	userID, err := s.owner(ctx)
	if err != nil {
		return err
	}

	found := false
	s.mutate(func(st *State) {
		if pageIndex(st.Pages, pageID) < 0 {
			return
		}
		found = true
		id := pageID
		st.CurrentPageID = &id
		st.SelectedTileID = nil
		st.EditingDocumentID = nil
		st.Loading = true
	})
	if !found {
		return ErrPageNotFound
	}

	tiles, err := s.gateway.ListTiles(ctx, userID, &pageID)
	if err != nil {
		s.logger.Error().Err(err).Str("page_id", pageID).Msg("load page tiles failed")
		s.mutate(func(st *State) {
			st.Error = msgLoadFailed
			st.Loading = false
		})
		return fmt.Errorf("select page: %w", err)
	}

	s.mutate(func(st *State) {
		st.Loading = false
		// 加载期间用户可能已经切到别的页面
		if sameID(st.CurrentPageID, pageID) {
			st.Tiles = tiles
		}
	})
	return nil
}

// NextPage 按位置顺序切到下一页；已是最后一页时不动
func (s *Store) NextPage(ctx context.Context) error {
	return s.stepPage(ctx, 1)
}

// PrevPage 切到上一页；已是第一页时不动
func (s *Store) PrevPage(ctx context.Context) error {
	return s.stepPage(ctx, -1)
}

func (s *Store) stepPage(ctx context.Context, delta int) error {
	s.mu.Lock()
	pages := sortedPages(s.state.Pages)
	current := 0
	if s.state.CurrentPageID != nil {
		for i, p := range pages {
			if p.ID == *s.state.CurrentPageID {
				current = i
			}
		}
	}
	s.mu.Unlock()

	next := current + delta
	if next < 0 || next >= len(pages) {
		return nil
	}
	return s.SelectPage(ctx, pages[next].ID)
}

// CreatePage 追加到最后（max position + 1），沿用当前调色板。非乐观
func (s *Store) CreatePage(ctx context.Context, title string) (*models.Page, error) {
	userID, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	if title == "" {
		title = DefaultPageTitle
	}

	s.mu.Lock()
	position := 0
	for _, p := range s.state.Pages {
		if p.Position >= position {
			position = p.Position + 1
		}
	}
	paletteID := s.state.CurrentPaletteID
	s.mu.Unlock()

	page, err := s.gateway.CreatePage(ctx, userID, models.PageInsert{
		UserID:    userID,
		Title:     title,
		PaletteID: paletteID,
		Position:  position,
	})
	if err != nil {
		s.setError("Failed to create page")
		return nil, fmt.Errorf("create page: %w", err)
	}

	created := *page
	s.mutate(func(st *State) {
		st.Pages = sortedPages(append(st.Pages, created))
	})
	return page, nil
}

// RenamePage 乐观改名
func (s *Store) RenamePage(ctx context.Context, pageID, title string) error {
	userID, err := s.owner(ctx)
	if err != nil {
		return err
	}

	upd := models.PageUpdate{Title: &title}
	found := false
	s.mutate(func(st *State) {
		if i := pageIndex(st.Pages, pageID); i >= 0 {
			st.Pages[i] = upd.Apply(st.Pages[i])
			found = true
		}
	})
	if !found {
		return ErrPageNotFound
	}

	if err := s.gateway.UpdatePage(ctx, userID, pageID, upd); err != nil {
		return s.rollback(ctx, "rename page", err)
	}
	return nil
}

// DeletePage 乐观删除页面（连同其 tile）；当前页被删时切到剩下的第一页
func (s *Store) DeletePage(ctx context.Context, pageID string) error {
	userID, err := s.owner(ctx)
	if err != nil {
		return err
	}

	var switchTo *string
	s.mutate(func(st *State) {
		i := pageIndex(st.Pages, pageID)
		if i < 0 {
			return
		}
		st.Pages = append(st.Pages[:i], st.Pages[i+1:]...)
		if sameID(st.CurrentPageID, pageID) {
			st.Tiles = []models.Tile{}
			st.SelectedTileID = nil
			st.EditingDocumentID = nil
			st.CurrentPageID = resolvePage(st.Pages, nil)
			switchTo = copyID(st.CurrentPageID)
		}
	})

	if err := s.gateway.DeletePage(ctx, userID, pageID); err != nil {
		return s.rollback(ctx, "delete page", err)
	}
	if switchTo != nil {
		return s.SelectPage(ctx, *switchTo)
	}
	return nil
}

// ResetPage 清空页面上的所有 tile，页面本身保留
func (s *Store) ResetPage(ctx context.Context, pageID string) error {
	userID, err := s.owner(ctx)
	if err != nil {
		return err
	}

	s.mutate(func(st *State) {
		if sameID(st.CurrentPageID, pageID) {
			st.Tiles = []models.Tile{}
			st.SelectedTileID = nil
			st.EditingDocumentID = nil
		}
	})

	if err := s.gateway.ResetPage(ctx, userID, pageID); err != nil {
		return s.rollback(ctx, "reset page", err)
	}
	return nil
}
