// Package store holds the in-memory tile grid of one owner and keeps it in
// step with the storage gateway: optimistic local mutation first, full reload
// when the gateway rejects.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"tilespace-backend/pkg/database"
	"tilespace-backend/pkg/grid"
	"tilespace-backend/pkg/models"
)

var (
	ErrMaxTiles        = fmt.Errorf("Maximum tile limit (%d) reached", grid.MaxTiles)
	ErrNoEmptyPosition = errors.New("No empty position available")
	ErrDuplicateURL    = errors.New("This URL already exists in this tile")
	ErrTileNotFound    = errors.New("tile not found")
	ErrLinkNotFound    = errors.New("link not found")
)

const (
	msgLoadFailed       = "Failed to load data"
	msgCreateTileFailed = "Failed to create tile"
)

// DefaultPaletteDebounce 调色板切换的静默期
const DefaultPaletteDebounce = 300 * time.Millisecond

// Modal 弹窗名称
type Modal string

const ModalPasteLink Modal = "pasteLink"

// State 是 Store 的完整快照；派生数据通过选择器计算，不在这里缓存
type State struct {
	Tiles             []models.Tile
	Pages             []models.Page
	CurrentPageID     *string
	CurrentPaletteID  string
	SelectedTileID    *string
	EditingDocumentID *string
	Loading           bool
	Error             string
	Modals            map[Modal]bool
}

func (st State) clone() State {
	c := st
	c.Tiles = make([]models.Tile, len(st.Tiles))
	for i, t := range st.Tiles {
		c.Tiles[i] = t.Clone()
	}
	c.Pages = append([]models.Page(nil), st.Pages...)
	c.CurrentPageID = copyID(st.CurrentPageID)
	c.SelectedTileID = copyID(st.SelectedTileID)
	c.EditingDocumentID = copyID(st.EditingDocumentID)
	c.Modals = make(map[Modal]bool, len(st.Modals))
	for k, v := range st.Modals {
		c.Modals[k] = v
	}
	return c
}

func copyID(id *string) *string {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func sameID(a *string, b string) bool {
	return a != nil && *a == b
}

// Options 可选配置
type Options struct {
	PaletteDebounce time.Duration
	Logger          *zerolog.Logger
}

// Store 单个 owner 的应用状态
type Store struct {
	gateway  database.Gateway
	session  Session
	logger   zerolog.Logger
	debounce time.Duration

	mu           sync.Mutex
	state        State
	listeners    map[int]func(State)
	nextListener int

	paletteTimer *time.Timer
	pending      *pendingPalette
	paletteSeq   uint64
}

// New creates a store bound to gateway and session. The store starts in the
// loading state; call Load to fetch the owner's data.
func New(gateway database.Gateway, session Session, opts Options) *Store {
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	debounce := opts.PaletteDebounce
	if debounce <= 0 {
		debounce = DefaultPaletteDebounce
	}
	return &Store{
		gateway:  gateway,
		session:  session,
		logger:   logger.With().Str("component", "store").Logger(),
		debounce: debounce,
		state: State{
			Tiles:            []models.Tile{},
			CurrentPaletteID: models.DefaultPaletteID,
			Loading:          true,
			Modals:           map[Modal]bool{ModalPasteLink: false},
		},
		listeners: make(map[int]func(State)),
	}
}

// Snapshot 返回当前状态的深拷贝
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers fn to be called with a fresh snapshot after every state
// change. The returned func removes the listener.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// mutate applies fn under the lock and notifies listeners outside of it.
func (s *Store) mutate(fn func(st *State)) {
	s.mu.Lock()
	fn(&s.state)
	snap := s.state.clone()
	listeners := make([]func(State), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

func (s *Store) setError(msg string) {
	s.mutate(func(st *State) { st.Error = msg })
}

func (s *Store) owner(ctx context.Context) (string, error) {
	if s.session == nil {
		return "", database.ErrNotAuthenticated
	}
	return s.session.UserID(ctx)
}

// Load 并发获取 tiles（含 links）与偏好设置，成功后整体替换本地状态
func (s *Store) Load(ctx context.Context) error {
	s.mutate(func(st *State) {
		st.Loading = true
		st.Error = ""
	})

	userID, err := s.owner(ctx)
	if err != nil {
		return s.loadFailed(err)
	}

	s.mu.Lock()
	wanted := copyID(s.state.CurrentPageID)
	s.mu.Unlock()

	var (
		pages  []models.Page
		tiles  []models.Tile
		prefs  *models.UserPreferences
		pageID *string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pages, err = s.gateway.ListPages(gctx, userID)
		if err != nil {
			return fmt.Errorf("list pages: %w", err)
		}
		pageID = resolvePage(pages, wanted)
		tiles, err = s.gateway.ListTiles(gctx, userID, pageID)
		if err != nil {
			return fmt.Errorf("list tiles: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		prefs, err = s.gateway.GetPreferences(gctx, userID)
		if err != nil {
			return fmt.Errorf("get preferences: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return s.loadFailed(err)
	}

	grid.SortByPosition(tiles)
	s.mutate(func(st *State) {
		st.Tiles = tiles
		st.Pages = pages
		st.CurrentPageID = pageID
		st.CurrentPaletteID = prefs.CurrentPalette
		st.Loading = false
		st.Error = ""
	})
	return nil
}

func (s *Store) loadFailed(err error) error {
	s.logger.Error().Err(err).Msg("load failed")
	s.mutate(func(st *State) {
		st.Error = msgLoadFailed
		st.Loading = false
	})
	return fmt.Errorf("load: %w", err)
}

// resolvePage keeps the wanted page if it still exists, otherwise falls back
// to the first page. No pages means the page-less grid.
func resolvePage(pages []models.Page, wanted *string) *string {
	if wanted != nil {
		for _, p := range pages {
			if p.ID == *wanted {
				return copyID(wanted)
			}
		}
	}
	if len(pages) == 0 {
		return nil
	}
	first := pages[0]
	for _, p := range pages[1:] {
		if p.Position < first.Position {
			first = p
		}
	}
	id := first.ID
	return &id
}

// rollback 乐观更新被拒绝：整体重新加载，不做局部修正
func (s *Store) rollback(ctx context.Context, action string, cause error) error {
	s.logger.Warn().Err(cause).Str("action", action).Msg("gateway rejected update, reloading")
	if err := s.Load(ctx); err != nil {
		s.logger.Error().Err(err).Str("action", action).Msg("reload after rejected update failed")
	}
	return fmt.Errorf("%s: %w", action, cause)
}

// ClearError 清除错误信息
func (s *Store) ClearError() {
	s.setError("")
}

// Close stops any pending palette write without running it.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paletteTimer != nil {
		s.paletteTimer.Stop()
		s.paletteTimer = nil
	}
	s.pending = nil
}
