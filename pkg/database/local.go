package database

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"tilespace-backend/pkg/grid"
	"tilespace-backend/pkg/models"
)

const localDataFile = "tilespace.json"

// localData 本地存储的全部数据；tile 不内嵌 links
type localData struct {
	Tiles       []models.Tile            `json:"tiles"`
	Links       []models.Link            `json:"links"`
	Pages       []models.Page            `json:"pages"`
	Preferences []models.UserPreferences `json:"preferences"`
}

func (d localData) clone() localData {
	c := localData{
		Tiles:       make([]models.Tile, len(d.Tiles)),
		Links:       make([]models.Link, len(d.Links)),
		Pages:       append([]models.Page(nil), d.Pages...),
		Preferences: append([]models.UserPreferences(nil), d.Preferences...),
	}
	for i, t := range d.Tiles {
		c.Tiles[i] = t.Clone()
	}
	for i, l := range d.Links {
		c.Links[i] = l.Clone()
	}
	return c
}

// LocalDatabase 进程内数据库：互斥锁保护的临界区 + 可选的 JSON 快照文件
type LocalDatabase struct {
	mu      sync.Mutex
	dataDir string // 为空时只保存在内存中
	data    localData
	now     func() time.Time
}

// NewLocalDatabase 创建本地数据库实例，dataDir 为空表示纯内存
func NewLocalDatabase(dataDir string) (*LocalDatabase, error) {
	db := &LocalDatabase{dataDir: dataDir, now: time.Now}
	if dataDir == "" {
		return db, nil
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		// 只读文件系统（如 Vercel）退回临时目录
		log.Warn().Err(err).Str("dir", dataDir).Msg("failed to create data directory, falling back to temp dir")
		dataDir = filepath.Join(os.TempDir(), "tilespace-data")
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		db.dataDir = dataDir
	}

	raw, err := os.ReadFile(db.filePath())
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read local data: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &db.data); err != nil {
			return nil, fmt.Errorf("failed to parse local data: %w", err)
		}
	}
	return db, nil
}

// NewMemoryDatabase 纯内存实例（测试用）
func NewMemoryDatabase() *LocalDatabase {
	return &LocalDatabase{now: time.Now}
}

func (db *LocalDatabase) filePath() string {
	return filepath.Join(db.dataDir, localDataFile)
}

// view runs fn under the lock against the live data. fn must not mutate.
func (db *LocalDatabase) view(fn func(d *localData) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return fn(&db.data)
}

// update runs fn against a copy of the data and only publishes the copy when
// fn succeeds and the snapshot was written.
func (db *LocalDatabase) update(fn func(d *localData) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	next := db.data.clone()
	if err := fn(&next); err != nil {
		return err
	}
	if err := db.persist(next); err != nil {
		return err
	}
	db.data = next
	return nil
}

func (db *LocalDatabase) persist(d localData) error {
	if db.dataDir == "" {
		return nil
	}
	raw, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	tmp := db.filePath() + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write local data: %w", err)
	}
	return os.Rename(tmp, db.filePath())
}

// ================= 查找辅助 =================

func (d *localData) tileIndex(userID, tileID string) int {
	for i, t := range d.Tiles {
		if t.ID == tileID && t.UserID == userID {
			return i
		}
	}
	return -1
}

func (d *localData) linkIndex(userID, linkID string) int {
	for i, l := range d.Links {
		if l.ID == linkID && l.UserID == userID {
			return i
		}
	}
	return -1
}

func (d *localData) pageIndex(userID, pageID string) int {
	for i, p := range d.Pages {
		if p.ID == pageID && p.UserID == userID {
			return i
		}
	}
	return -1
}

// positionTaken 同一 owner、同一页面内是否已有其他 tile 占用该位置
func (d *localData) positionTaken(userID string, pageID *string, pos int, exceptID string) bool {
	for _, t := range d.Tiles {
		if t.UserID == userID && t.ID != exceptID && t.Position == pos && models.SamePage(t.PageID, pageID) {
			return true
		}
	}
	return false
}

func (d *localData) linksOf(tileID string) []models.Link {
	var links []models.Link
	for _, l := range d.Links {
		if l.TileID == tileID {
			links = append(links, l.Clone())
		}
	}
	sort.SliceStable(links, func(i, j int) bool { return links[i].Position < links[j].Position })
	return links
}

func (d *localData) withLinks(t models.Tile) models.Tile {
	c := t.Clone()
	c.Links = d.linksOf(t.ID)
	if c.Links == nil {
		c.Links = []models.Link{}
	}
	return c
}

func (d *localData) tilesInScope(userID string, pageID *string) []models.Tile {
	var tiles []models.Tile
	for _, t := range d.Tiles {
		if t.UserID == userID && models.SamePage(t.PageID, pageID) {
			tiles = append(tiles, d.withLinks(t))
		}
	}
	grid.SortByPosition(tiles)
	return tiles
}

func (d *localData) deleteLinksOf(tileIDs map[string]bool) {
	kept := d.Links[:0]
	for _, l := range d.Links {
		if !tileIDs[l.TileID] {
			kept = append(kept, l)
		}
	}
	d.Links = kept
}

func (d *localData) deleteTiles(match func(models.Tile) bool) {
	doomed := map[string]bool{}
	kept := d.Tiles[:0]
	for _, t := range d.Tiles {
		if match(t) {
			doomed[t.ID] = true
			continue
		}
		kept = append(kept, t)
	}
	d.deleteLinksOf(doomed)
	d.Tiles = kept
}

// ================= Tiles =================

// ListTiles 列出页面内的 tile（含 links），按位置排序
func (db *LocalDatabase) ListTiles(ctx context.Context, userID string, pageID *string) ([]models.Tile, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	var tiles []models.Tile
	err := db.view(func(d *localData) error {
		tiles = d.tilesInScope(userID, pageID)
		return nil
	})
	if tiles == nil {
		tiles = []models.Tile{}
	}
	return tiles, err
}

// GetTile 获取单个 tile（含 links）
func (db *LocalDatabase) GetTile(ctx context.Context, userID, tileID string) (*models.Tile, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	var tile *models.Tile
	err := db.view(func(d *localData) error {
		i := d.tileIndex(userID, tileID)
		if i < 0 {
			return fmt.Errorf("tile %s: %w", tileID, ErrNotFound)
		}
		t := d.withLinks(d.Tiles[i])
		tile = &t
		return nil
	})
	return tile, err
}

// FindTileByTitle 按标题查找，找不到返回 ErrNotFound
func (db *LocalDatabase) FindTileByTitle(ctx context.Context, userID string, pageID *string, title string) (*models.Tile, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	var tile *models.Tile
	err := db.view(func(d *localData) error {
		for _, t := range d.tilesInScope(userID, pageID) {
			if t.Title == title {
				found := t
				tile = &found
				return nil
			}
		}
		return fmt.Errorf("tile %q: %w", title, ErrNotFound)
	})
	return tile, err
}

// CreateTile 创建 tile
func (db *LocalDatabase) CreateTile(ctx context.Context, userID string, in models.TileInsert) (*models.Tile, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	if !grid.IsValidPosition(in.Position) {
		return nil, ErrInvalidPosition
	}
	var created models.Tile
	err := db.update(func(d *localData) error {
		if in.PageID != nil && d.pageIndex(userID, *in.PageID) < 0 {
			return fmt.Errorf("page %s: %w", *in.PageID, ErrNotFound)
		}
		if d.positionTaken(userID, in.PageID, in.Position, "") {
			return ErrPositionOccupied
		}
		now := db.now()
		created = models.Tile{
			ID:          uuid.New().String(),
			UserID:      userID,
			PageID:      in.PageID,
			Title:       in.Title,
			Emoji:       in.Emoji,
			AccentColor: in.AccentColor,
			ColorIndex:  in.ColorIndex,
			Position:    in.Position,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		d.Tiles = append(d.Tiles, created)
		return nil
	})
	if err != nil {
		return nil, err
	}
	created = created.Clone()
	created.Links = []models.Link{}
	return &created, nil
}

// UpdateTile 部分更新
func (db *LocalDatabase) UpdateTile(ctx context.Context, userID, tileID string, upd models.TileUpdate) error {
	if err := requireOwner(userID); err != nil {
		return err
	}
	if upd.Position != nil && !grid.IsValidPosition(*upd.Position) {
		return ErrInvalidPosition
	}
	return db.update(func(d *localData) error {
		i := d.tileIndex(userID, tileID)
		if i < 0 {
			return fmt.Errorf("tile %s: %w", tileID, ErrNotFound)
		}
		t := d.Tiles[i]
		if upd.Position != nil && d.positionTaken(userID, t.PageID, *upd.Position, t.ID) {
			return ErrPositionOccupied
		}
		t = upd.Apply(t)
		t.UpdatedAt = db.now()
		d.Tiles[i] = t
		return nil
	})
}

// DeleteTile 先删 links 再删 tile；其他 tile 的位置不做压缩
func (db *LocalDatabase) DeleteTile(ctx context.Context, userID, tileID string) error {
	if err := requireOwner(userID); err != nil {
		return err
	}
	return db.update(func(d *localData) error {
		if d.tileIndex(userID, tileID) < 0 {
			return fmt.Errorf("tile %s: %w", tileID, ErrNotFound)
		}
		d.deleteTiles(func(t models.Tile) bool { return t.ID == tileID })
		return nil
	})
}

// SwapTilePositions A -> 临时位置, B -> A 原位置, A -> B 原位置，整体在一个临界区内完成
func (db *LocalDatabase) SwapTilePositions(ctx context.Context, userID, tileAID, tileBID string) error {
	if err := requireOwner(userID); err != nil {
		return err
	}
	return db.update(func(d *localData) error {
		a, b := d.tileIndex(userID, tileAID), d.tileIndex(userID, tileBID)
		if a < 0 || b < 0 {
			return fmt.Errorf("swap %s/%s: %w", tileAID, tileBID, ErrNotFound)
		}
		if a == b {
			return nil
		}
		if !models.SamePage(d.Tiles[a].PageID, d.Tiles[b].PageID) {
			return fmt.Errorf("swap %s/%s: tiles are on different pages: %w", tileAID, tileBID, ErrInvalidPosition)
		}
		posA, posB := d.Tiles[a].Position, d.Tiles[b].Position
		now := db.now()
		d.Tiles[a].Position = TempSwapPosition
		d.Tiles[b].Position = posA
		d.Tiles[a].Position = posB
		d.Tiles[a].UpdatedAt = now
		d.Tiles[b].UpdatedAt = now
		return nil
	})
}

// MoveTileToPosition 目标位置必须仍为空
func (db *LocalDatabase) MoveTileToPosition(ctx context.Context, userID, tileID string, target int) error {
	if err := requireOwner(userID); err != nil {
		return err
	}
	if !grid.IsValidPosition(target) {
		return ErrInvalidPosition
	}
	return db.update(func(d *localData) error {
		i := d.tileIndex(userID, tileID)
		if i < 0 {
			return fmt.Errorf("tile %s: %w", tileID, ErrNotFound)
		}
		t := d.Tiles[i]
		if t.Position == target {
			return nil
		}
		if d.positionTaken(userID, t.PageID, target, t.ID) {
			return ErrPositionOccupied
		}
		d.Tiles[i].Position = target
		d.Tiles[i].UpdatedAt = db.now()
		return nil
	})
}

// RecolorTiles 按 color_index 重新取色
func (db *LocalDatabase) RecolorTiles(ctx context.Context, userID string, pageID *string, paletteID string) ([]models.Tile, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	err := db.update(func(d *localData) error {
		now := db.now()
		for i, t := range d.Tiles {
			if t.UserID == userID && models.SamePage(t.PageID, pageID) {
				d.Tiles[i].AccentColor = models.ColorFromPalette(paletteID, t.ColorIndex)
				d.Tiles[i].UpdatedAt = now
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return db.ListTiles(ctx, userID, pageID)
}

// ================= Links =================

// CreateLink 创建 link 或文档
func (db *LocalDatabase) CreateLink(ctx context.Context, userID string, in models.LinkInsert) (*models.Link, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	if err := checkLinkShape(in.Type, in.URL); err != nil {
		return nil, err
	}
	var created models.Link
	err := db.update(func(d *localData) error {
		if d.tileIndex(userID, in.TileID) < 0 {
			return fmt.Errorf("tile %s: %w", in.TileID, ErrNotFound)
		}
		created = models.Link{
			ID:        uuid.New().String(),
			UserID:    userID,
			TileID:    in.TileID,
			Type:      in.Type,
			Title:     in.Title,
			URL:       in.URL,
			Summary:   in.Summary,
			Content:   in.Content,
			Position:  in.Position,
			CreatedAt: db.now(),
		}.Clone()
		d.Links = append(d.Links, created)
		return nil
	})
	if err != nil {
		return nil, err
	}
	created = created.Clone()
	return &created, nil
}

// UpdateLink 部分更新
func (db *LocalDatabase) UpdateLink(ctx context.Context, userID, linkID string, upd models.LinkUpdate) error {
	if err := requireOwner(userID); err != nil {
		return err
	}
	return db.update(func(d *localData) error {
		i := d.linkIndex(userID, linkID)
		if i < 0 {
			return fmt.Errorf("link %s: %w", linkID, ErrNotFound)
		}
		if upd.TileID != nil && d.tileIndex(userID, *upd.TileID) < 0 {
			return fmt.Errorf("tile %s: %w", *upd.TileID, ErrNotFound)
		}
		d.Links[i] = upd.Apply(d.Links[i])
		return nil
	})
}

// DeleteLink 删除 link
func (db *LocalDatabase) DeleteLink(ctx context.Context, userID, linkID string) error {
	if err := requireOwner(userID); err != nil {
		return err
	}
	return db.update(func(d *localData) error {
		i := d.linkIndex(userID, linkID)
		if i < 0 {
			return fmt.Errorf("link %s: %w", linkID, ErrNotFound)
		}
		d.Links = append(d.Links[:i], d.Links[i+1:]...)
		return nil
	})
}

// MoveLink 移动到另一个 tile 的指定位置
func (db *LocalDatabase) MoveLink(ctx context.Context, userID, linkID, targetTileID string, newPosition int) (*models.Link, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	var moved models.Link
	err := db.update(func(d *localData) error {
		i := d.linkIndex(userID, linkID)
		if i < 0 {
			return fmt.Errorf("link %s: %w", linkID, ErrNotFound)
		}
		if d.tileIndex(userID, targetTileID) < 0 {
			return fmt.Errorf("tile %s: %w", targetTileID, ErrNotFound)
		}
		d.Links[i].TileID = targetTileID
		d.Links[i].Position = newPosition
		moved = d.Links[i].Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &moved, nil
}

// MaxLinkPosition tile 内最大的 link 位置，没有 link 时返回 -1
func (db *LocalDatabase) MaxLinkPosition(ctx context.Context, userID, tileID string) (int, error) {
	if err := requireOwner(userID); err != nil {
		return 0, err
	}
	maxPos := -1
	err := db.view(func(d *localData) error {
		if d.tileIndex(userID, tileID) < 0 {
			return fmt.Errorf("tile %s: %w", tileID, ErrNotFound)
		}
		for _, l := range d.Links {
			if l.TileID == tileID && l.Position > maxPos {
				maxPos = l.Position
			}
		}
		return nil
	})
	return maxPos, err
}

// ================= Pages =================

// ListPages 按位置排序
func (db *LocalDatabase) ListPages(ctx context.Context, userID string) ([]models.Page, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	pages := []models.Page{}
	err := db.view(func(d *localData) error {
		for _, p := range d.Pages {
			if p.UserID == userID {
				pages = append(pages, p)
			}
		}
		return nil
	})
	sort.SliceStable(pages, func(i, j int) bool { return pages[i].Position < pages[j].Position })
	return pages, err
}

// CreatePage 创建页面，同一 owner 下位置唯一
func (db *LocalDatabase) CreatePage(ctx context.Context, userID string, in models.PageInsert) (*models.Page, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	var created models.Page
	err := db.update(func(d *localData) error {
		for _, p := range d.Pages {
			if p.UserID == userID && p.Position == in.Position {
				return ErrPositionOccupied
			}
		}
		now := db.now()
		created = models.Page{
			ID:        uuid.New().String(),
			UserID:    userID,
			Position:  in.Position,
			Title:     in.Title,
			PaletteID: in.PaletteID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		d.Pages = append(d.Pages, created)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdatePage 部分更新
func (db *LocalDatabase) UpdatePage(ctx context.Context, userID, pageID string, upd models.PageUpdate) error {
	if err := requireOwner(userID); err != nil {
		return err
	}
	return db.update(func(d *localData) error {
		i := d.pageIndex(userID, pageID)
		if i < 0 {
			return fmt.Errorf("page %s: %w", pageID, ErrNotFound)
		}
		p := upd.Apply(d.Pages[i])
		p.UpdatedAt = db.now()
		d.Pages[i] = p
		return nil
	})
}

// DeletePage 级联删除页面上的 tile 与 links
func (db *LocalDatabase) DeletePage(ctx context.Context, userID, pageID string) error {
	if err := requireOwner(userID); err != nil {
		return err
	}
	return db.update(func(d *localData) error {
		i := d.pageIndex(userID, pageID)
		if i < 0 {
			return fmt.Errorf("page %s: %w", pageID, ErrNotFound)
		}
		d.deleteTiles(func(t models.Tile) bool { return t.PageID != nil && *t.PageID == pageID })
		d.Pages = append(d.Pages[:i], d.Pages[i+1:]...)
		return nil
	})
}

// ResetPage 清空页面
func (db *LocalDatabase) ResetPage(ctx context.Context, userID, pageID string) error {
	if err := requireOwner(userID); err != nil {
		return err
	}
	return db.update(func(d *localData) error {
		if d.pageIndex(userID, pageID) < 0 {
			return fmt.Errorf("page %s: %w", pageID, ErrNotFound)
		}
		d.deleteTiles(func(t models.Tile) bool {
			return t.UserID == userID && t.PageID != nil && *t.PageID == pageID
		})
		return nil
	})
}

// ================= Preferences =================

// GetPreferences 没有记录时创建默认偏好
func (db *LocalDatabase) GetPreferences(ctx context.Context, userID string) (*models.UserPreferences, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	var prefs models.UserPreferences
	err := db.update(func(d *localData) error {
		for _, p := range d.Preferences {
			if p.UserID == userID {
				prefs = p
				return nil
			}
		}
		prefs = models.UserPreferences{
			ID:             uuid.New().String(),
			UserID:         userID,
			CurrentPalette: models.DefaultPaletteID,
			UpdatedAt:      db.now(),
		}
		d.Preferences = append(d.Preferences, prefs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &prefs, nil
}

// SetPalette upsert 当前调色板
func (db *LocalDatabase) SetPalette(ctx context.Context, userID, paletteID string) error {
	if err := requireOwner(userID); err != nil {
		return err
	}
	return db.update(func(d *localData) error {
		now := db.now()
		for i, p := range d.Preferences {
			if p.UserID == userID {
				d.Preferences[i].CurrentPalette = paletteID
				d.Preferences[i].UpdatedAt = now
				return nil
			}
		}
		d.Preferences = append(d.Preferences, models.UserPreferences{
			ID:             uuid.New().String(),
			UserID:         userID,
			CurrentPalette: paletteID,
			UpdatedAt:      now,
		})
		return nil
	})
}

// HealthCheck 健康检查
func (db *LocalDatabase) HealthCheck() error {
	if db.dataDir == "" {
		return nil
	}
	if _, err := os.Stat(db.dataDir); err != nil {
		return fmt.Errorf("data directory unavailable: %w", err)
	}
	return nil
}

// Close 关闭连接（本地数据库无需关闭）
func (db *LocalDatabase) Close() error {
	return nil
}

// checkLinkShape link 必须有 url，文档不能有 url
func checkLinkShape(t models.LinkType, url *string) error {
	switch t {
	case models.LinkTypeLink:
		if url == nil || strings.TrimSpace(*url) == "" {
			return fmt.Errorf("link requires a url")
		}
	case models.LinkTypeDocument:
		if url != nil {
			return fmt.Errorf("document must not carry a url")
		}
	default:
		return fmt.Errorf("unknown link type %q", t)
	}
	return nil
}
