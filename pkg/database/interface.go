package database

import (
	"context"
	"errors"
	"os"

	"github.com/rs/zerolog/log"

	"tilespace-backend/pkg/models"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrPositionOccupied = errors.New("target position is occupied")
	ErrInvalidPosition  = errors.New("position out of range")
	ErrNotAuthenticated = errors.New("not authenticated")
)

// TempSwapPosition 交换位置时的临时值，位于合法范围之外
const TempSwapPosition = -1

// Gateway 存储网关：所有操作都显式携带 owner（userID），空 userID 一律拒绝
type Gateway interface {
	// Tiles
	ListTiles(ctx context.Context, userID string, pageID *string) ([]models.Tile, error)
	GetTile(ctx context.Context, userID, tileID string) (*models.Tile, error)
	FindTileByTitle(ctx context.Context, userID string, pageID *string, title string) (*models.Tile, error)
	CreateTile(ctx context.Context, userID string, in models.TileInsert) (*models.Tile, error)
	UpdateTile(ctx context.Context, userID, tileID string, upd models.TileUpdate) error
	// DeleteTile removes the tile's links first, then the tile.
	DeleteTile(ctx context.Context, userID, tileID string) error
	// SwapTilePositions 原子交换两个 tile 的位置
	SwapTilePositions(ctx context.Context, userID, tileAID, tileBID string) error
	// MoveTileToPosition 原子移动到空位；目标被占用时返回 ErrPositionOccupied
	MoveTileToPosition(ctx context.Context, userID, tileID string, target int) error
	// RecolorTiles 按 color_index 重新计算 accent_color，返回权威数据
	RecolorTiles(ctx context.Context, userID string, pageID *string, paletteID string) ([]models.Tile, error)

	// Links
	CreateLink(ctx context.Context, userID string, in models.LinkInsert) (*models.Link, error)
	UpdateLink(ctx context.Context, userID, linkID string, upd models.LinkUpdate) error
	DeleteLink(ctx context.Context, userID, linkID string) error
	MoveLink(ctx context.Context, userID, linkID, targetTileID string, newPosition int) (*models.Link, error)
	// MaxLinkPosition returns -1 for a tile without links.
	MaxLinkPosition(ctx context.Context, userID, tileID string) (int, error)

	// Pages
	ListPages(ctx context.Context, userID string) ([]models.Page, error)
	CreatePage(ctx context.Context, userID string, in models.PageInsert) (*models.Page, error)
	UpdatePage(ctx context.Context, userID, pageID string, upd models.PageUpdate) error
	DeletePage(ctx context.Context, userID, pageID string) error
	// ResetPage 删除页面上的所有 tile（及其 links），保留页面本身
	ResetPage(ctx context.Context, userID, pageID string) error

	// Preferences
	GetPreferences(ctx context.Context, userID string) (*models.UserPreferences, error)
	SetPalette(ctx context.Context, userID, paletteID string) error

	// 健康检查
	HealthCheck() error

	// 关闭连接
	Close() error
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	UseLocalDB   bool
	LocalDataDir string
	PostgresDSN  string
	SupabaseURL  string
	SupabaseKey  string
	Debug        bool
}

// NewDatabase 根据环境与配置选择数据库实现
func NewDatabase(config DatabaseConfig) (Gateway, error) {
	if IsVercelEnvironment() {
		log.Info().Msg("detected Vercel environment")

		// Vercel 优先使用 Supabase（避免 IPv6）
		if config.SupabaseURL != "" && config.SupabaseKey != "" {
			log.Info().Str("backend", "supabase").Msg("using Supabase REST API")
			return NewSupabaseDatabase(config.SupabaseURL, config.SupabaseKey), nil
		}
		if config.PostgresDSN != "" {
			log.Warn().Str("backend", "postgres").Msg("using PostgreSQL in Vercel (may have IPv6 issues)")
			return openPostgres(config.PostgresDSN)
		}
		return nil, errors.New("no valid database configured for Vercel environment: set SUPABASE_URL+SUPABASE_SERVICE_KEY or POSTGRES_DSN")
	}

	if config.UseLocalDB {
		log.Info().Str("backend", "local").Str("dir", config.LocalDataDir).Msg("using local database")
		return openLocal(config.LocalDataDir)
	}

	// 非 Vercel 环境：PostgreSQL > Supabase
	if config.PostgresDSN != "" {
		log.Info().Str("backend", "postgres").Msg("using PostgreSQL database")
		return openPostgres(config.PostgresDSN)
	}
	if config.SupabaseURL != "" && config.SupabaseKey != "" {
		log.Info().Str("backend", "supabase").Msg("using Supabase REST API")
		return NewSupabaseDatabase(config.SupabaseURL, config.SupabaseKey), nil
	}

	return nil, errors.New("no valid database configuration found: configure POSTGRES_DSN or SUPABASE_URL+SUPABASE_SERVICE_KEY")
}

// 避免把 nil 指针包装成非 nil 的接口值
func openPostgres(dsn string) (Gateway, error) {
	db, err := NewPostgresDatabase(dsn)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func openLocal(dir string) (Gateway, error) {
	db, err := NewLocalDatabase(dir)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// IsVercelEnvironment 检查是否在Vercel环境中
func IsVercelEnvironment() bool {
	return os.Getenv("VERCEL_ENV") != "" ||
		os.Getenv("VERCEL_URL") != "" ||
		os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}

func requireOwner(userID string) error {
	if userID == "" {
		return ErrNotAuthenticated
	}
	return nil
}

var (
	_ Gateway = (*PostgresDatabase)(nil)
	_ Gateway = (*SupabaseDatabase)(nil)
	_ Gateway = (*LocalDatabase)(nil)
)
