package store

import (
	"context"
	"time"

	"tilespace-backend/pkg/models"
)

type pendingPalette struct {
	seq       uint64
	paletteID string
	pageID    *string
}

// ChangePalette 立即更新本地的 currentPaletteID；持久化与重新着色在静默期后
// 合并成一次网关调用，期间的新选择会取消旧的定时器
func (s *Store) ChangePalette(paletteID string) {
	s.mu.Lock()
	s.paletteSeq++
	seq := s.paletteSeq
	s.pending = &pendingPalette{seq: seq, paletteID: paletteID, pageID: copyID(s.state.CurrentPageID)}
	if s.paletteTimer != nil {
		s.paletteTimer.Stop()
	}
	s.paletteTimer = time.AfterFunc(s.debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = s.applyPalette(ctx, seq)
	})
	s.mu.Unlock()

	s.mutate(func(st *State) {
		st.CurrentPaletteID = paletteID
		if st.CurrentPageID != nil {
			if i := pageIndex(st.Pages, *st.CurrentPageID); i >= 0 {
				st.Pages[i].PaletteID = paletteID
			}
		}
	})
}

// FlushPalette runs a pending palette change now instead of waiting for the
// quiet period. It is a no-op when nothing is pending.
func (s *Store) FlushPalette(ctx context.Context) error {
	s.mu.Lock()
	p := s.pending
	if p != nil && s.paletteTimer != nil {
		s.paletteTimer.Stop()
	}
	s.mu.Unlock()

	if p == nil {
		return nil
	}
	return s.applyPalette(ctx, p.seq)
}

// claimPalette hands the pending change to exactly one caller; superseded
// or already claimed changes are dropped.
func (s *Store) claimPalette(seq uint64) (pendingPalette, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil || s.pending.seq != seq {
		return pendingPalette{}, false
	}
	p := *s.pending
	s.pending = nil
	s.paletteTimer = nil
	return p, true
}

func (s *Store) applyPalette(ctx context.Context, seq uint64) error {
	p, ok := s.claimPalette(seq)
	if !ok {
		return nil
	}
	pageID := p.pageID

	userID, err := s.owner(ctx)
	if err != nil {
		return err
	}

	if err := s.gateway.SetPalette(ctx, userID, p.paletteID); err != nil {
		return s.rollback(ctx, "change palette", err)
	}
	if pageID != nil {
		if err := s.gateway.UpdatePage(ctx, userID, *pageID, models.PageUpdate{PaletteID: &p.paletteID}); err != nil {
			return s.rollback(ctx, "change palette", err)
		}
	}
	tiles, err := s.gateway.RecolorTiles(ctx, userID, pageID, p.paletteID)
	if err != nil {
		return s.rollback(ctx, "change palette", err)
	}

	s.logger.Debug().Str("palette", p.paletteID).Int("tiles", len(tiles)).Msg("palette applied")
	s.mutate(func(st *State) {
		if (pageID == nil && st.CurrentPageID == nil) || (pageID != nil && sameID(st.CurrentPageID, *pageID)) {
			st.Tiles = tiles
		}
	})
	return nil
}
