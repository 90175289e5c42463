package database

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"tilespace-backend/pkg/grid"
	"tilespace-backend/pkg/models"
)

// SupabaseDatabase Supabase(PostgREST) 数据库实现
type SupabaseDatabase struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewSupabaseDatabase 创建Supabase数据库实例
func NewSupabaseDatabase(baseURL, key string) *SupabaseDatabase {
	// 确保URL格式正确
	if !strings.HasPrefix(baseURL, "http") {
		baseURL = "https://" + baseURL
	}

	return &SupabaseDatabase{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  key,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// postgrestError PostgREST 返回的错误体
type postgrestError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// apiError 把 HTTP 状态与 SQLSTATE 转成哨兵错误
func apiError(status int, body []byte) error {
	var pe postgrestError
	if err := json.Unmarshal(body, &pe); err == nil && pe.Code != "" {
		switch pe.Code {
		case "P0002", "23503", "22P02", "PGRST116":
			return fmt.Errorf("%w: %s", ErrNotFound, pe.Message)
		case "23505":
			return fmt.Errorf("%w: %s", ErrPositionOccupied, pe.Message)
		case "22023", "23514":
			return fmt.Errorf("%w: %s", ErrInvalidPosition, pe.Message)
		}
		return fmt.Errorf("API request failed with status %d: %s (%s)", status, pe.Message, pe.Code)
	}
	if status == http.StatusNotFound {
		return ErrNotFound
	}
	return fmt.Errorf("API request failed with status %d: %s", status, string(body))
}

// makeRequest 发送HTTP请求到Supabase（支持自定义头）
func (db *SupabaseDatabase) makeRequest(ctx context.Context, method, endpoint string, body interface{}, headers map[string]string) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, db.baseURL+"/rest/v1"+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// 设置默认请求头
	req.Header.Set("apikey", db.apiKey)
	req.Header.Set("Authorization", "Bearer "+db.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := db.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		log.Debug().Str("method", method).Str("endpoint", endpoint).Int("status", resp.StatusCode).Msg("supabase request failed")
		return nil, apiError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

// fetch 请求并把 JSON 数组解码到 out
func (db *SupabaseDatabase) fetch(ctx context.Context, method, endpoint string, body, out interface{}) error {
	data, err := db.makeRequest(ctx, method, endpoint, body, nil)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func eq(v string) string {
	return "eq." + url.QueryEscape(v)
}

// pageFilter page_id=eq.X 或 page_id=is.null
func pageFilter(pageID *string) string {
	if pageID == nil {
		return "page_id=is.null"
	}
	return "page_id=" + eq(*pageID)
}

// ================= Tiles =================

// ListTiles 列出页面内的 tile（含 links）
func (db *SupabaseDatabase) ListTiles(ctx context.Context, userID string, pageID *string) ([]models.Tile, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	var tiles []models.Tile
	endpoint := fmt.Sprintf("/tiles?user_id=%s&%s&order=position.asc", eq(userID), pageFilter(pageID))
	if err := db.fetch(ctx, http.MethodGet, endpoint, nil, &tiles); err != nil {
		return nil, fmt.Errorf("failed to list tiles: %w", err)
	}
	if tiles == nil {
		tiles = []models.Tile{}
	}
	if err := db.attachLinks(ctx, userID, tiles); err != nil {
		return nil, err
	}
	return tiles, nil
}

func (db *SupabaseDatabase) attachLinks(ctx context.Context, userID string, tiles []models.Tile) error {
	if len(tiles) == 0 {
		return nil
	}
	ids := make([]string, len(tiles))
	index := make(map[string]int, len(tiles))
	for i := range tiles {
		tiles[i].Links = []models.Link{}
		ids[i] = tiles[i].ID
		index[tiles[i].ID] = i
	}

	var links []models.Link
	endpoint := fmt.Sprintf("/links?user_id=%s&tile_id=in.(%s)&order=position.asc,created_at.asc",
		eq(userID), url.QueryEscape(strings.Join(ids, ",")))
	if err := db.fetch(ctx, http.MethodGet, endpoint, nil, &links); err != nil {
		return fmt.Errorf("failed to list links: %w", err)
	}
	for _, l := range links {
		if i, ok := index[l.TileID]; ok {
			tiles[i].Links = append(tiles[i].Links, l)
		}
	}
	return nil
}

// GetTile 获取单个 tile（含 links）
func (db *SupabaseDatabase) GetTile(ctx context.Context, userID, tileID string) (*models.Tile, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	return db.firstTile(ctx, userID, fmt.Sprintf("/tiles?id=%s&user_id=%s", eq(tileID), eq(userID)), "tile "+tileID)
}

// FindTileByTitle 按标题查找
func (db *SupabaseDatabase) FindTileByTitle(ctx context.Context, userID string, pageID *string, title string) (*models.Tile, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("/tiles?user_id=%s&%s&title=%s&order=position.asc&limit=1",
		eq(userID), pageFilter(pageID), eq(title))
	return db.firstTile(ctx, userID, endpoint, fmt.Sprintf("tile %q", title))
}

func (db *SupabaseDatabase) firstTile(ctx context.Context, userID, endpoint, what string) (*models.Tile, error) {
	var tiles []models.Tile
	if err := db.fetch(ctx, http.MethodGet, endpoint, nil, &tiles); err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	if len(tiles) == 0 {
		return nil, fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	tiles = tiles[:1]
	if err := db.attachLinks(ctx, userID, tiles); err != nil {
		return nil, err
	}
	return &tiles[0], nil
}

// CreateTile 创建 tile
func (db *SupabaseDatabase) CreateTile(ctx context.Context, userID string, in models.TileInsert) (*models.Tile, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	if !grid.IsValidPosition(in.Position) {
		return nil, ErrInvalidPosition
	}
	in.UserID = userID
	var rows []models.Tile
	if err := db.fetch(ctx, http.MethodPost, "/tiles", in, &rows); err != nil {
		return nil, fmt.Errorf("failed to create tile: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("failed to create tile: empty response")
	}
	rows[0].Links = []models.Link{}
	return &rows[0], nil
}

// patch PATCH 并确认至少命中一行
func (db *SupabaseDatabase) patch(ctx context.Context, endpoint string, body interface{}, what string) error {
	var rows []json.RawMessage
	if err := db.fetch(ctx, http.MethodPatch, endpoint, body, &rows); err != nil {
		return fmt.Errorf("failed to update %s: %w", what, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

// remove DELETE 并确认至少命中一行
func (db *SupabaseDatabase) remove(ctx context.Context, endpoint, what string) error {
	var rows []json.RawMessage
	if err := db.fetch(ctx, http.MethodDelete, endpoint, nil, &rows); err != nil {
		return fmt.Errorf("failed to delete %s: %w", what, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

type tilePatch struct {
	models.TileUpdate
	UpdatedAt time.Time `json:"updated_at"`
}

// UpdateTile 部分更新
func (db *SupabaseDatabase) UpdateTile(ctx context.Context, userID, tileID string, upd models.TileUpdate) error {
	if err := requireOwner(userID); err != nil {
		return err
	}
	if upd.Position != nil && !grid.IsValidPosition(*upd.Position) {
		return ErrInvalidPosition
	}
	endpoint := fmt.Sprintf("/tiles?id=%s&user_id=%s", eq(tileID), eq(userID))
	return db.patch(ctx, endpoint, tilePatch{TileUpdate: upd, UpdatedAt: time.Now().UTC()}, "tile "+tileID)
}

// DeleteTile 先删 links 再删 tile
func (db *SupabaseDatabase) DeleteTile(ctx context.Context, userID, tileID string) error {
	if err := requireOwner(userID); err != nil {
		return err
	}
	linksEndpoint := fmt.Sprintf("/links?tile_id=%s&user_id=%s", eq(tileID), eq(userID))
	if err := db.fetch(ctx, http.MethodDelete, linksEndpoint, nil, nil); err != nil {
		return fmt.Errorf("failed to delete links of tile %s: %w", tileID, err)
	}
	return db.remove(ctx, fmt.Sprintf("/tiles?id=%s&user_id=%s", eq(tileID), eq(userID)), "tile "+tileID)
}

// rpc 调用数据库函数
func (db *SupabaseDatabase) rpc(ctx context.Context, fn string, args map[string]interface{}) error {
	_, err := db.makeRequest(ctx, http.MethodPost, "/rpc/"+fn, args, nil)
	return err
}

// SwapTilePositions 由 swap_tile_positions_safe 在数据库事务内完成
func (db *SupabaseDatabase) SwapTilePositions(ctx context.Context, userID, tileAID, tileBID string) error {
	if err := requireOwner(userID); err != nil {
		return err
	}
	if tileAID == tileBID {
		return nil
	}
	err := db.rpc(ctx, "swap_tile_positions_safe", map[string]interface{}{
		"p_tile_a_id": tileAID,
		"p_tile_b_id": tileBID,
		"p_user_id":   userID,
	})
	if err != nil {
		return fmt.Errorf("swap %s/%s: %w", tileAID, tileBID, err)
	}
	return nil
}

// MoveTileToPosition 由 move_tile_to_position_safe 在数据库事务内完成
func (db *SupabaseDatabase) MoveTileToPosition(ctx context.Context, userID, tileID string, target int) error {
	if err := requireOwner(userID); err != nil {
		return err
	}
	if !grid.IsValidPosition(target) {
		return ErrInvalidPosition
	}
	err := db.rpc(ctx, "move_tile_to_position_safe", map[string]interface{}{
		"p_tile_id":         tileID,
		"p_target_position": target,
		"p_user_id":         userID,
	})
	if err != nil {
		return fmt.Errorf("move tile %s: %w", tileID, err)
	}
	return nil
}

// RecolorTiles PostgREST 不支持表达式更新：按 color_index 分组并发 PATCH
func (db *SupabaseDatabase) RecolorTiles(ctx context.Context, userID string, pageID *string, paletteID string) ([]models.Tile, error) {
	tiles, err := db.ListTiles(ctx, userID, pageID)
	if err != nil {
		return nil, err
	}

	indexes := map[int]bool{}
	for _, t := range tiles {
		indexes[t.ColorIndex] = true
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	now := time.Now().UTC()
	for idx := range indexes {
		idx := idx
		g.Go(func() error {
			endpoint := fmt.Sprintf("/tiles?user_id=%s&%s&color_index=eq.%d", eq(userID), pageFilter(pageID), idx)
			body := map[string]interface{}{
				"accent_color": models.ColorFromPalette(paletteID, idx),
				"updated_at":   now,
			}
			return db.fetch(gctx, http.MethodPatch, endpoint, body, nil)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to recolor tiles: %w", err)
	}
	return db.ListTiles(ctx, userID, pageID)
}

// ================= Links =================

// CreateLink 创建 link 或文档
func (db *SupabaseDatabase) CreateLink(ctx context.Context, userID string, in models.LinkInsert) (*models.Link, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	if err := checkLinkShape(in.Type, in.URL); err != nil {
		return nil, err
	}
	// RLS 之外再确认 tile 属于该用户
	if _, err := db.firstTileRow(ctx, userID, in.TileID); err != nil {
		return nil, err
	}
	in.UserID = userID
	var rows []models.Link
	if err := db.fetch(ctx, http.MethodPost, "/links", in, &rows); err != nil {
		return nil, fmt.Errorf("failed to create link: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("failed to create link: empty response")
	}
	return &rows[0], nil
}

// firstTileRow 只取 tile 本身，不带 links
func (db *SupabaseDatabase) firstTileRow(ctx context.Context, userID, tileID string) (*models.Tile, error) {
	var tiles []models.Tile
	endpoint := fmt.Sprintf("/tiles?id=%s&user_id=%s&select=id,position,page_id", eq(tileID), eq(userID))
	if err := db.fetch(ctx, http.MethodGet, endpoint, nil, &tiles); err != nil {
		return nil, fmt.Errorf("tile %s: %w", tileID, err)
	}
	if len(tiles) == 0 {
		return nil, fmt.Errorf("tile %s: %w", tileID, ErrNotFound)
	}
	return &tiles[0], nil
}

// UpdateLink 部分更新
func (db *SupabaseDatabase) UpdateLink(ctx context.Context, userID, linkID string, upd models.LinkUpdate) error {
	if err := requireOwner(userID); err != nil {
		return err
	}
	if upd.IsEmpty() {
		return nil
	}
	if upd.TileID != nil {
		if _, err := db.firstTileRow(ctx, userID, *upd.TileID); err != nil {
			return err
		}
	}
	return db.patch(ctx, fmt.Sprintf("/links?id=%s&user_id=%s", eq(linkID), eq(userID)), upd, "link "+linkID)
}

// DeleteLink 删除 link
func (db *SupabaseDatabase) DeleteLink(ctx context.Context, userID, linkID string) error {
	if err := requireOwner(userID); err != nil {
		return err
	}
	return db.remove(ctx, fmt.Sprintf("/links?id=%s&user_id=%s", eq(linkID), eq(userID)), "link "+linkID)
}

// MoveLink 移动到目标 tile
func (db *SupabaseDatabase) MoveLink(ctx context.Context, userID, linkID, targetTileID string, newPosition int) (*models.Link, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	if _, err := db.firstTileRow(ctx, userID, targetTileID); err != nil {
		return nil, err
	}
	var rows []models.Link
	endpoint := fmt.Sprintf("/links?id=%s&user_id=%s", eq(linkID), eq(userID))
	body := map[string]interface{}{"tile_id": targetTileID, "position": newPosition}
	if err := db.fetch(ctx, http.MethodPatch, endpoint, body, &rows); err != nil {
		return nil, fmt.Errorf("failed to move link %s: %w", linkID, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("link %s: %w", linkID, ErrNotFound)
	}
	return &rows[0], nil
}

// MaxLinkPosition 没有 link 时返回 -1
func (db *SupabaseDatabase) MaxLinkPosition(ctx context.Context, userID, tileID string) (int, error) {
	if err := requireOwner(userID); err != nil {
		return 0, err
	}
	if _, err := db.firstTileRow(ctx, userID, tileID); err != nil {
		return 0, err
	}
	var rows []struct {
		Position int `json:"position"`
	}
	endpoint := fmt.Sprintf("/links?tile_id=%s&user_id=%s&select=position&order=position.desc&limit=1", eq(tileID), eq(userID))
	if err := db.fetch(ctx, http.MethodGet, endpoint, nil, &rows); err != nil {
		return 0, fmt.Errorf("failed to get max link position: %w", err)
	}
	if len(rows) == 0 {
		return -1, nil
	}
	return rows[0].Position, nil
}

// ================= Pages =================

// ListPages 按位置排序
func (db *SupabaseDatabase) ListPages(ctx context.Context, userID string) ([]models.Page, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	pages := []models.Page{}
	if err := db.fetch(ctx, http.MethodGet, fmt.Sprintf("/pages?user_id=%s&order=position.asc", eq(userID)), nil, &pages); err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	return pages, nil
}

// CreatePage 创建页面
func (db *SupabaseDatabase) CreatePage(ctx context.Context, userID string, in models.PageInsert) (*models.Page, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	in.UserID = userID
	var rows []models.Page
	if err := db.fetch(ctx, http.MethodPost, "/pages", in, &rows); err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("failed to create page: empty response")
	}
	return &rows[0], nil
}

type pagePatch struct {
	models.PageUpdate
	UpdatedAt time.Time `json:"updated_at"`
}

// UpdatePage 部分更新
func (db *SupabaseDatabase) UpdatePage(ctx context.Context, userID, pageID string, upd models.PageUpdate) error {
	if err := requireOwner(userID); err != nil {
		return err
	}
	endpoint := fmt.Sprintf("/pages?id=%s&user_id=%s", eq(pageID), eq(userID))
	return db.patch(ctx, endpoint, pagePatch{PageUpdate: upd, UpdatedAt: time.Now().UTC()}, "page "+pageID)
}

// DeletePage 先清空页面，再删页面本身
func (db *SupabaseDatabase) DeletePage(ctx context.Context, userID, pageID string) error {
	if err := db.ResetPage(ctx, userID, pageID); err != nil {
		return err
	}
	return db.remove(ctx, fmt.Sprintf("/pages?id=%s&user_id=%s", eq(pageID), eq(userID)), "page "+pageID)
}

// ResetPage 删除页面上的 tile 与 links
func (db *SupabaseDatabase) ResetPage(ctx context.Context, userID, pageID string) error {
	if err := requireOwner(userID); err != nil {
		return err
	}
	var pages []json.RawMessage
	if err := db.fetch(ctx, http.MethodGet, fmt.Sprintf("/pages?id=%s&user_id=%s&select=id", eq(pageID), eq(userID)), nil, &pages); err != nil {
		return fmt.Errorf("page %s: %w", pageID, err)
	}
	if len(pages) == 0 {
		return fmt.Errorf("page %s: %w", pageID, ErrNotFound)
	}

	tiles, err := db.ListTiles(ctx, userID, &pageID)
	if err != nil {
		return err
	}
	for _, t := range tiles {
		if err := db.DeleteTile(ctx, userID, t.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return nil
}

// ================= Preferences =================

// GetPreferences 没有记录时写入默认值
func (db *SupabaseDatabase) GetPreferences(ctx context.Context, userID string) (*models.UserPreferences, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	var rows []models.UserPreferences
	if err := db.fetch(ctx, http.MethodGet, fmt.Sprintf("/user_preferences?user_id=%s&limit=1", eq(userID)), nil, &rows); err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	if len(rows) > 0 {
		return &rows[0], nil
	}
	if err := db.SetPalette(ctx, userID, models.DefaultPaletteID); err != nil {
		return nil, err
	}
	return &models.UserPreferences{UserID: userID, CurrentPalette: models.DefaultPaletteID, UpdatedAt: time.Now().UTC()}, nil
}

// SetPalette upsert（on_conflict=user_id）
func (db *SupabaseDatabase) SetPalette(ctx context.Context, userID, paletteID string) error {
	if err := requireOwner(userID); err != nil {
		return err
	}
	payload := map[string]interface{}{
		"user_id":         userID,
		"current_palette": paletteID,
		"updated_at":      time.Now().UTC(),
	}
	_, err := db.makeRequest(ctx, http.MethodPost, "/user_preferences?on_conflict=user_id", payload, map[string]string{
		"Prefer": "resolution=merge-duplicates,return=minimal",
	})
	if err != nil {
		return fmt.Errorf("failed to set palette: %w", err)
	}
	return nil
}

// HealthCheck 健康检查
func (db *SupabaseDatabase) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := db.makeRequest(ctx, http.MethodGet, "/user_preferences?select=id&limit=1", nil, nil)
	return err
}

// Close 关闭连接
func (db *SupabaseDatabase) Close() error {
	db.httpClient.CloseIdleConnections()
	return nil
}
