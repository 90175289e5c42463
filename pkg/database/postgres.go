package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"tilespace-backend/pkg/grid"
	"tilespace-backend/pkg/models"
)

const (
	tileColumns = `id, user_id, page_id, title, emoji, accent_color, color_index, position, created_at, updated_at`
	linkColumns = `id, user_id, tile_id, type, title, url, summary, content, position, created_at`
	pageColumns = `id, user_id, position, title, palette_id, created_at, updated_at`
)

// PostgresDatabase PostgreSQL数据库实现
type PostgresDatabase struct {
	db *sql.DB
}

// NewPostgresDatabase 创建PostgreSQL数据库实例
func NewPostgresDatabase(dsn string) (*PostgresDatabase, error) {
	db, err := OpenPostgres(context.Background(), dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresDatabase{db: db}, nil
}

// NewPostgresFromDB 包装已经打开的连接（测试 / CLI 使用）
func NewPostgresFromDB(db *sql.DB) *PostgresDatabase {
	return &PostgresDatabase{db: db}
}

// OpenPostgres 依次尝试多种连接策略（解决 Vercel Lambda 的 IPv6 问题）
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	// Sanitize DSN to avoid stray CR/LF from env values
	dsn = strings.TrimSpace(dsn)
	strategies := []string{
		addConnectionParams(dsn, "connect_timeout=10"),
		addConnectionParams(dsn, "sslmode=require&connect_timeout=10"),
		dsn, // 最后尝试原始DSN
	}

	var lastErr error
	for i, strategy := range strategies {
		db, err := sql.Open("postgres", strategy)
		if err != nil {
			log.Warn().Err(err).Int("strategy", i+1).Msg("postgres open failed")
			lastErr = err
			continue
		}

		// 无服务器环境下限制连接数
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
		db.SetConnMaxIdleTime(2 * time.Minute)

		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err != nil {
			log.Warn().Err(err).Int("strategy", i+1).Msg("postgres ping failed")
			_ = db.Close()
			lastErr = err
			continue
		}

		log.Info().Int("strategy", i+1).Msg("postgres connection established")
		return db, nil
	}

	return nil, fmt.Errorf("failed to connect to PostgreSQL with all strategies: %w", lastErr)
}

// addConnectionParams 添加连接参数到DSN（只适用于 URL 形式的 DSN）
func addConnectionParams(dsn, params string) string {
	if params == "" || !strings.Contains(dsn, "://") {
		return dsn
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + params
}

// mapPQError 把约束 / 函数抛出的 SQLSTATE 转成哨兵错误
func mapPQError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrPositionOccupied, pqErr.Message)
		case "P0002", "23503", "22P02":
			return fmt.Errorf("%w: %s", ErrNotFound, pqErr.Message)
		case "22023", "23514":
			return fmt.Errorf("%w: %s", ErrInvalidPosition, pqErr.Message)
		}
	}
	return err
}

func nullablePage(pageID *string) interface{} {
	if pageID == nil {
		return nil
	}
	return *pageID
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTile(row rowScanner) (models.Tile, error) {
	var t models.Tile
	var pageID sql.NullString
	err := row.Scan(&t.ID, &t.UserID, &pageID, &t.Title, &t.Emoji, &t.AccentColor,
		&t.ColorIndex, &t.Position, &t.CreatedAt, &t.UpdatedAt)
	if pageID.Valid {
		t.PageID = &pageID.String
	}
	return t, err
}

func scanLink(row rowScanner) (models.Link, error) {
	var l models.Link
	var linkType string
	var url sql.NullString
	err := row.Scan(&l.ID, &l.UserID, &l.TileID, &linkType, &l.Title, &url,
		&l.Summary, &l.Content, &l.Position, &l.CreatedAt)
	l.Type = models.LinkType(linkType)
	if url.Valid {
		l.URL = &url.String
	}
	return l, err
}

func scanPage(row rowScanner) (models.Page, error) {
	var p models.Page
	err := row.Scan(&p.ID, &p.UserID, &p.Position, &p.Title, &p.PaletteID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// ================= Tiles =================

// ListTiles 列出页面内的 tile（含 links）
func (db *PostgresDatabase) ListTiles(ctx context.Context, userID string, pageID *string) ([]models.Tile, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	rows, err := db.db.QueryContext(ctx, `
		SELECT `+tileColumns+`
		FROM tiles
		WHERE user_id = $1 AND page_id IS NOT DISTINCT FROM $2::uuid
		ORDER BY position ASC`, userID, nullablePage(pageID))
	if err != nil {
		return nil, fmt.Errorf("failed to list tiles: %w", mapPQError(err))
	}
	defer rows.Close()

	tiles := []models.Tile{}
	for rows.Next() {
		t, err := scanTile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tile: %w", err)
		}
		t.Links = []models.Link{}
		tiles = append(tiles, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := db.attachLinks(ctx, userID, tiles); err != nil {
		return nil, err
	}
	return tiles, nil
}

// attachLinks 一次查询取回所有 tile 的 links
func (db *PostgresDatabase) attachLinks(ctx context.Context, userID string, tiles []models.Tile) error {
	if len(tiles) == 0 {
		return nil
	}
	ids := make([]string, len(tiles))
	index := make(map[string]int, len(tiles))
	for i, t := range tiles {
		ids[i] = t.ID
		index[t.ID] = i
	}

	rows, err := db.db.QueryContext(ctx, `
		SELECT `+linkColumns+`
		FROM links
		WHERE user_id = $1 AND tile_id = ANY($2::uuid[])
		ORDER BY position ASC, created_at ASC`, userID, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to list links: %w", mapPQError(err))
	}
	defer rows.Close()

	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return fmt.Errorf("failed to scan link: %w", err)
		}
		if i, ok := index[l.TileID]; ok {
			tiles[i].Links = append(tiles[i].Links, l)
		}
	}
	return rows.Err()
}

// GetTile 获取单个 tile（含 links）
func (db *PostgresDatabase) GetTile(ctx context.Context, userID, tileID string) (*models.Tile, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	t, err := scanTile(db.db.QueryRowContext(ctx,
		`SELECT `+tileColumns+` FROM tiles WHERE id = $1 AND user_id = $2`, tileID, userID))
	if err != nil {
		return nil, fmt.Errorf("tile %s: %w", tileID, mapPQError(err))
	}
	tiles := []models.Tile{t}
	tiles[0].Links = []models.Link{}
	if err := db.attachLinks(ctx, userID, tiles); err != nil {
		return nil, err
	}
	return &tiles[0], nil
}

// FindTileByTitle 按标题查找
func (db *PostgresDatabase) FindTileByTitle(ctx context.Context, userID string, pageID *string, title string) (*models.Tile, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	var id string
	err := db.db.QueryRowContext(ctx, `
		SELECT id FROM tiles
		WHERE user_id = $1 AND page_id IS NOT DISTINCT FROM $2::uuid AND title = $3
		ORDER BY position ASC LIMIT 1`, userID, nullablePage(pageID), title).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("tile %q: %w", title, mapPQError(err))
	}
	return db.GetTile(ctx, userID, id)
}

// CreateTile 创建 tile；位置冲突由唯一索引拦截
func (db *PostgresDatabase) CreateTile(ctx context.Context, userID string, in models.TileInsert) (*models.Tile, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	if !grid.IsValidPosition(in.Position) {
		return nil, ErrInvalidPosition
	}
	t, err := scanTile(db.db.QueryRowContext(ctx, `
		INSERT INTO tiles (user_id, page_id, title, emoji, accent_color, color_index, position, created_at, updated_at)
		VALUES ($1, $2::uuid, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING `+tileColumns,
		userID, nullablePage(in.PageID), in.Title, in.Emoji, in.AccentColor, in.ColorIndex, in.Position))
	if err != nil {
		return nil, fmt.Errorf("failed to create tile: %w", mapPQError(err))
	}
	t.Links = []models.Link{}
	return &t, nil
}

// UpdateTile 动态拼接 SET 子句，只更新提供的字段
func (db *PostgresDatabase) UpdateTile(ctx context.Context, userID, tileID string, upd models.TileUpdate) error {
	if err := requireOwner(userID); err != nil {
		return err
	}
	if upd.Position != nil && !grid.IsValidPosition(*upd.Position) {
		return ErrInvalidPosition
	}

	set := newSetBuilder()
	if upd.Title != nil {
		set.add("title", *upd.Title)
	}
	if upd.Emoji != nil {
		set.add("emoji", *upd.Emoji)
	}
	if upd.AccentColor != nil {
		set.add("accent_color", *upd.AccentColor)
	}
	if upd.ColorIndex != nil {
		set.add("color_index", *upd.ColorIndex)
	}
	if upd.Position != nil {
		set.add("position", *upd.Position)
	}
	set.raw("updated_at=NOW()")

	query, args := set.build("tiles", tileID, userID)
	res, err := db.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update tile: %w", mapPQError(err))
	}
	return expectRow(res, "tile", tileID)
}

// DeleteTile 先删 links 再删 tile，同一事务
func (db *PostgresDatabase) DeleteTile(ctx context.Context, userID, tileID string) error {
	if err := requireOwner(userID); err != nil {
		return err
	}
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE tile_id = $1 AND user_id = $2`, tileID, userID); err != nil {
			return fmt.Errorf("failed to delete links: %w", mapPQError(err))
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM tiles WHERE id = $1 AND user_id = $2`, tileID, userID)
		if err != nil {
			return fmt.Errorf("failed to delete tile: %w", mapPQError(err))
		}
		return expectRow(res, "tile", tileID)
	})
}

// SwapTilePositions 事务内：A -> -1, B -> A 原位置, A -> B 原位置
func (db *PostgresDatabase) SwapTilePositions(ctx context.Context, userID, tileAID, tileBID string) error {
	if err := requireOwner(userID); err != nil {
		return err
	}
	if tileAID == tileBID {
		return nil
	}
	return db.withTx(ctx, func(tx *sql.Tx) error {
		// 按 id 顺序加锁，避免并发交换时死锁
		rows, err := tx.QueryContext(ctx, `
			SELECT id, position, page_id FROM tiles
			WHERE user_id = $1 AND id IN ($2, $3)
			ORDER BY id
			FOR UPDATE`, userID, tileAID, tileBID)
		if err != nil {
			return fmt.Errorf("failed to lock tiles: %w", mapPQError(err))
		}
		positions := map[string]int{}
		pages := map[string]sql.NullString{}
		for rows.Next() {
			var id string
			var pos int
			var page sql.NullString
			if err := rows.Scan(&id, &pos, &page); err != nil {
				rows.Close()
				return err
			}
			positions[id] = pos
			pages[id] = page
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if len(positions) != 2 {
			return fmt.Errorf("swap %s/%s: %w", tileAID, tileBID, ErrNotFound)
		}
		if pages[tileAID] != pages[tileBID] {
			return fmt.Errorf("swap %s/%s: tiles are on different pages: %w", tileAID, tileBID, ErrInvalidPosition)
		}

		posA, posB := positions[tileAID], positions[tileBID]
		steps := []struct {
			id  string
			pos int
		}{
			{tileAID, TempSwapPosition},
			{tileBID, posA},
			{tileAID, posB},
		}
		for _, s := range steps {
			if _, err := tx.ExecContext(ctx,
				`UPDATE tiles SET position = $1, updated_at = NOW() WHERE id = $2`, s.pos, s.id); err != nil {
				return fmt.Errorf("failed to swap positions: %w", mapPQError(err))
			}
		}
		return nil
	})
}

// MoveTileToPosition 目标位置必须为空；并发抢占由唯一索引兜底
func (db *PostgresDatabase) MoveTileToPosition(ctx context.Context, userID, tileID string, target int) error {
	if err := requireOwner(userID); err != nil {
		return err
	}
	if !grid.IsValidPosition(target) {
		return ErrInvalidPosition
	}
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var current int
		var page sql.NullString
		err := tx.QueryRowContext(ctx,
			`SELECT position, page_id FROM tiles WHERE id = $1 AND user_id = $2 FOR UPDATE`,
			tileID, userID).Scan(&current, &page)
		if err != nil {
			return fmt.Errorf("tile %s: %w", tileID, mapPQError(err))
		}
		if current == target {
			return nil
		}

		var occupied bool
		err = tx.QueryRowContext(ctx, `
			SELECT EXISTS(
				SELECT 1 FROM tiles
				WHERE user_id = $1 AND page_id IS NOT DISTINCT FROM $2::uuid AND position = $3
			)`, userID, page, target).Scan(&occupied)
		if err != nil {
			return err
		}
		if occupied {
			return ErrPositionOccupied
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE tiles SET position = $1, updated_at = NOW() WHERE id = $2`, target, tileID)
		return mapPQError(err)
	})
}

// RecolorTiles 一条 UPDATE 按 color_index 取色
func (db *PostgresDatabase) RecolorTiles(ctx context.Context, userID string, pageID *string, paletteID string) ([]models.Tile, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	palette := models.GetPalette(paletteID)
	_, err := db.db.ExecContext(ctx, `
		UPDATE tiles
		SET accent_color = ($1::text[])[((color_index % $2) + $2) % $2 + 1], updated_at = NOW()
		WHERE user_id = $3 AND page_id IS NOT DISTINCT FROM $4::uuid`,
		pq.Array(palette.Colors[:]), models.ColorsPerPalette, userID, nullablePage(pageID))
	if err != nil {
		return nil, fmt.Errorf("failed to recolor tiles: %w", mapPQError(err))
	}
	return db.ListTiles(ctx, userID, pageID)
}

// ================= Links =================

// CreateLink 只能写入自己名下的 tile
func (db *PostgresDatabase) CreateLink(ctx context.Context, userID string, in models.LinkInsert) (*models.Link, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	if err := checkLinkShape(in.Type, in.URL); err != nil {
		return nil, err
	}
	l, err := scanLink(db.db.QueryRowContext(ctx, `
		INSERT INTO links (user_id, tile_id, type, title, url, summary, content, position, created_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, NOW()
		WHERE EXISTS (SELECT 1 FROM tiles WHERE id = $2 AND user_id = $1)
		RETURNING `+linkColumns,
		userID, in.TileID, string(in.Type), in.Title, in.URL, in.Summary, in.Content, in.Position))
	if err != nil {
		return nil, fmt.Errorf("failed to create link in tile %s: %w", in.TileID, mapPQError(err))
	}
	return &l, nil
}

// UpdateLink 部分更新
func (db *PostgresDatabase) UpdateLink(ctx context.Context, userID, linkID string, upd models.LinkUpdate) error {
	if err := requireOwner(userID); err != nil {
		return err
	}
	if upd.IsEmpty() {
		return nil
	}

	set := newSetBuilder()
	if upd.Title != nil {
		set.add("title", *upd.Title)
	}
	if upd.URL != nil {
		set.add("url", *upd.URL)
	}
	if upd.Summary != nil {
		set.add("summary", *upd.Summary)
	}
	if upd.Content != nil {
		set.add("content", *upd.Content)
	}
	if upd.Position != nil {
		set.add("position", *upd.Position)
	}
	if upd.TileID != nil {
		set.add("tile_id", *upd.TileID)
		set.where(fmt.Sprintf("EXISTS (SELECT 1 FROM tiles WHERE id = $%d AND user_id = $%d)", set.arg(*upd.TileID), set.arg(userID)))
	}

	query, args := set.build("links", linkID, userID)
	res, err := db.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update link: %w", mapPQError(err))
	}
	return expectRow(res, "link", linkID)
}

// DeleteLink 删除 link
func (db *PostgresDatabase) DeleteLink(ctx context.Context, userID, linkID string) error {
	if err := requireOwner(userID); err != nil {
		return err
	}
	res, err := db.db.ExecContext(ctx, `DELETE FROM links WHERE id = $1 AND user_id = $2`, linkID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", mapPQError(err))
	}
	return expectRow(res, "link", linkID)
}

// MoveLink 移动到目标 tile 的 newPosition
func (db *PostgresDatabase) MoveLink(ctx context.Context, userID, linkID, targetTileID string, newPosition int) (*models.Link, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	l, err := scanLink(db.db.QueryRowContext(ctx, `
		UPDATE links SET tile_id = $1, position = $2
		WHERE id = $3 AND user_id = $4
		  AND EXISTS (SELECT 1 FROM tiles WHERE id = $1 AND user_id = $4)
		RETURNING `+linkColumns, targetTileID, newPosition, linkID, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to move link %s: %w", linkID, mapPQError(err))
	}
	return &l, nil
}

// MaxLinkPosition 没有 link 时返回 -1
func (db *PostgresDatabase) MaxLinkPosition(ctx context.Context, userID, tileID string) (int, error) {
	if err := requireOwner(userID); err != nil {
		return 0, err
	}
	var maxPos int
	err := db.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(l.position), -1)
		FROM tiles t LEFT JOIN links l ON l.tile_id = t.id
		WHERE t.id = $1 AND t.user_id = $2
		GROUP BY t.id`, tileID, userID).Scan(&maxPos)
	if err != nil {
		return 0, fmt.Errorf("tile %s: %w", tileID, mapPQError(err))
	}
	return maxPos, nil
}

// ================= Pages =================

// ListPages 按位置排序
func (db *PostgresDatabase) ListPages(ctx context.Context, userID string) ([]models.Page, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	rows, err := db.db.QueryContext(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE user_id = $1 ORDER BY position ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", mapPQError(err))
	}
	defer rows.Close()

	pages := []models.Page{}
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// CreatePage 创建页面
func (db *PostgresDatabase) CreatePage(ctx context.Context, userID string, in models.PageInsert) (*models.Page, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	p, err := scanPage(db.db.QueryRowContext(ctx, `
		INSERT INTO pages (user_id, position, title, palette_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING `+pageColumns, userID, in.Position, in.Title, in.PaletteID))
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", mapPQError(err))
	}
	return &p, nil
}

// UpdatePage 部分更新
func (db *PostgresDatabase) UpdatePage(ctx context.Context, userID, pageID string, upd models.PageUpdate) error {
	if err := requireOwner(userID); err != nil {
		return err
	}
	set := newSetBuilder()
	if upd.Title != nil {
		set.add("title", *upd.Title)
	}
	if upd.PaletteID != nil {
		set.add("palette_id", *upd.PaletteID)
	}
	if upd.Position != nil {
		set.add("position", *upd.Position)
	}
	set.raw("updated_at=NOW()")

	query, args := set.build("pages", pageID, userID)
	res, err := db.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update page: %w", mapPQError(err))
	}
	return expectRow(res, "page", pageID)
}

// DeletePage 级联删除页面上的 tile 与 links
func (db *PostgresDatabase) DeletePage(ctx context.Context, userID, pageID string) error {
	if err := requireOwner(userID); err != nil {
		return err
	}
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := clearPage(ctx, tx, userID, pageID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE id = $1 AND user_id = $2`, pageID, userID)
		if err != nil {
			return fmt.Errorf("failed to delete page: %w", mapPQError(err))
		}
		return expectRow(res, "page", pageID)
	})
}

// ResetPage 清空页面上的 tile
func (db *PostgresDatabase) ResetPage(ctx context.Context, userID, pageID string) error {
	if err := requireOwner(userID); err != nil {
		return err
	}
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM pages WHERE id = $1 AND user_id = $2)`, pageID, userID).Scan(&exists)
		if err != nil {
			return mapPQError(err)
		}
		if !exists {
			return fmt.Errorf("page %s: %w", pageID, ErrNotFound)
		}
		return clearPage(ctx, tx, userID, pageID)
	})
}

func clearPage(ctx context.Context, tx *sql.Tx, userID, pageID string) error {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM links
		WHERE user_id = $1 AND tile_id IN (SELECT id FROM tiles WHERE page_id = $2 AND user_id = $1)`,
		userID, pageID); err != nil {
		return fmt.Errorf("failed to delete page links: %w", mapPQError(err))
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM tiles WHERE page_id = $1 AND user_id = $2`, pageID, userID); err != nil {
		return fmt.Errorf("failed to delete page tiles: %w", mapPQError(err))
	}
	return nil
}

// ================= Preferences =================

// GetPreferences 没有记录时插入默认值
func (db *PostgresDatabase) GetPreferences(ctx context.Context, userID string) (*models.UserPreferences, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	if _, err := db.db.ExecContext(ctx, `
		INSERT INTO user_preferences (user_id, current_palette, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO NOTHING`, userID, models.DefaultPaletteID); err != nil {
		return nil, fmt.Errorf("failed to create default preferences: %w", mapPQError(err))
	}

	var p models.UserPreferences
	err := db.db.QueryRowContext(ctx, `
		SELECT id, user_id, current_palette, updated_at
		FROM user_preferences WHERE user_id = $1`, userID).
		Scan(&p.ID, &p.UserID, &p.CurrentPalette, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", mapPQError(err))
	}
	return &p, nil
}

// SetPalette upsert 当前调色板
func (db *PostgresDatabase) SetPalette(ctx context.Context, userID, paletteID string) error {
	if err := requireOwner(userID); err != nil {
		return err
	}
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO user_preferences (user_id, current_palette, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET current_palette = EXCLUDED.current_palette, updated_at = NOW()`,
		userID, paletteID)
	if err != nil {
		return fmt.Errorf("failed to set palette: %w", mapPQError(err))
	}
	return nil
}

// HealthCheck 健康检查
func (db *PostgresDatabase) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.db.PingContext(ctx)
}

// Close 关闭连接
func (db *PostgresDatabase) Close() error {
	return db.db.Close()
}

// ================= helpers =================

func (db *PostgresDatabase) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func expectRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

// setBuilder 拼接 UPDATE ... SET ... WHERE id=$n AND user_id=$m
type setBuilder struct {
	clauses []string
	extra   []string
	args    []interface{}
}

func newSetBuilder() *setBuilder {
	return &setBuilder{}
}

func (b *setBuilder) arg(v interface{}) int {
	b.args = append(b.args, v)
	return len(b.args)
}

func (b *setBuilder) add(col string, v interface{}) {
	b.clauses = append(b.clauses, fmt.Sprintf("%s=$%d", col, b.arg(v)))
}

func (b *setBuilder) raw(clause string) {
	b.clauses = append(b.clauses, clause)
}

func (b *setBuilder) where(cond string) {
	b.extra = append(b.extra, cond)
}

func (b *setBuilder) build(table, id, userID string) (string, []interface{}) {
	idArg := b.arg(id)
	userArg := b.arg(userID)
	conds := append([]string{
		fmt.Sprintf("id=$%d", idArg),
		fmt.Sprintf("user_id=$%d", userArg),
	}, b.extra...)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		table, strings.Join(b.clauses, ", "), strings.Join(conds, " AND "))
	return query, b.args
}

// DB 底层连接（迁移命令使用）
func (db *PostgresDatabase) DB() *sql.DB {
	return db.db
}
