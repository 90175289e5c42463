package store

import (
	"context"
	"fmt"

	"tilespace-backend/pkg/database"
	"tilespace-backend/pkg/grid"
	"tilespace-backend/pkg/models"
	"tilespace-backend/pkg/services"
)

func tileIndex(tiles []models.Tile, id string) int {
	for i := range tiles {
		if tiles[i].ID == id {
			return i
		}
	}
	return -1
}

// CreateTile 在最小空位上创建 tile。非乐观：网关成功后才写入本地状态
func (s *Store) CreateTile(ctx context.Context) (*models.Tile, error) {
	userID, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	count := len(s.state.Tiles)
	position := grid.NextTilePosition(s.state.Tiles)
	pageID := copyID(s.state.CurrentPageID)
	paletteID := s.state.CurrentPaletteID
	s.mu.Unlock()

	if !grid.CanAddTile(count) {
		s.setError(ErrMaxTiles.Error())
		return nil, ErrMaxTiles
	}
	if position == grid.NoSlot {
		s.setError(ErrNoEmptyPosition.Error())
		return nil, ErrNoEmptyPosition
	}

	in := services.NewTileDefaults(userID, pageID, position, paletteID)
	tile, err := s.gateway.CreateTile(ctx, userID, in)
	if err != nil {
		s.logger.Error().Err(err).Int("position", position).Msg("create tile failed")
		s.setError(msgCreateTileFailed)
		return nil, fmt.Errorf("create tile: %w", err)
	}
	if tile.Links == nil {
		tile.Links = []models.Link{}
	}

	created := tile.Clone()
	s.mutate(func(st *State) {
		st.Tiles = append(st.Tiles, created)
		st.SelectedTileID = &created.ID
	})
	return tile, nil
}

// UpdateTile 乐观更新标题 / emoji 等字段
func (s *Store) UpdateTile(ctx context.Context, id string, upd models.TileUpdate) error {
	userID, err := s.owner(ctx)
	if err != nil {
		return err
	}
	if upd.IsEmpty() {
		return nil
	}

	found := false
	s.mutate(func(st *State) {
		if i := tileIndex(st.Tiles, id); i >= 0 {
			st.Tiles[i] = upd.Apply(st.Tiles[i])
			found = true
		}
	})
	if !found {
		return ErrTileNotFound
	}

	if err := s.gateway.UpdateTile(ctx, userID, id, upd); err != nil {
		return s.rollback(ctx, "update tile", err)
	}
	return nil
}

// RenameTile is UpdateTile for the title only.
func (s *Store) RenameTile(ctx context.Context, id, title string) error {
	return s.UpdateTile(ctx, id, models.TileUpdate{Title: &title})
}

// UpdateTileColor 更换颜色序号；强调色始终由 (colorIndex, 当前调色板) 推导
func (s *Store) UpdateTileColor(ctx context.Context, id string, colorIndex int) error {
	s.mu.Lock()
	color := models.ColorFromPalette(s.state.CurrentPaletteID, colorIndex)
	s.mu.Unlock()

	return s.UpdateTile(ctx, id, models.TileUpdate{ColorIndex: &colorIndex, AccentColor: &color})
}

// DeleteTile 乐观删除；其他 tile 的位置不压缩
func (s *Store) DeleteTile(ctx context.Context, id string) error {
	userID, err := s.owner(ctx)
	if err != nil {
		return err
	}

	found := false
	s.mutate(func(st *State) {
		i := tileIndex(st.Tiles, id)
		if i < 0 {
			return
		}
		found = true
		st.Tiles = append(st.Tiles[:i], st.Tiles[i+1:]...)
		if sameID(st.SelectedTileID, id) {
			st.SelectedTileID = nil
		}
	})
	if !found {
		return ErrTileNotFound
	}

	if err := s.gateway.DeleteTile(ctx, userID, id); err != nil {
		return s.rollback(ctx, "delete tile", err)
	}
	return nil
}

// SwapTiles 交换两个 tile 的位置，网关侧必须是原子操作
func (s *Store) SwapTiles(ctx context.Context, tileAID, tileBID string) error {
	userID, err := s.owner(ctx)
	if err != nil {
		return err
	}
	if tileAID == tileBID {
		return nil
	}

	found := false
	s.mutate(func(st *State) {
		a, b := tileIndex(st.Tiles, tileAID), tileIndex(st.Tiles, tileBID)
		if a < 0 || b < 0 {
			return
		}
		st.Tiles[a].Position, st.Tiles[b].Position = st.Tiles[b].Position, st.Tiles[a].Position
		grid.SortByPosition(st.Tiles)
		found = true
	})
	if !found {
		return ErrTileNotFound
	}

	if err := s.gateway.SwapTilePositions(ctx, userID, tileAID, tileBID); err != nil {
		return s.rollback(ctx, "swap tiles", err)
	}
	return nil
}

// MoveTile 拖到空格子上；目标是否仍为空由网关最终确认
func (s *Store) MoveTile(ctx context.Context, id string, target int) error {
	userID, err := s.owner(ctx)
	if err != nil {
		return err
	}
	if !grid.IsValidPosition(target) {
		return database.ErrInvalidPosition
	}

	var moveErr error
	s.mutate(func(st *State) {
		i := tileIndex(st.Tiles, id)
		if i < 0 {
			moveErr = ErrTileNotFound
			return
		}
		for _, t := range st.Tiles {
			if t.ID != id && t.Position == target {
				moveErr = database.ErrPositionOccupied
				return
			}
		}
		st.Tiles[i].Position = target
		grid.SortByPosition(st.Tiles)
	})
	if moveErr != nil {
		return moveErr
	}

	if err := s.gateway.MoveTileToPosition(ctx, userID, id, target); err != nil {
		return s.rollback(ctx, "move tile", err)
	}
	return nil
}
