package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"tilespace-backend/pkg/config"
	"tilespace-backend/pkg/database"
	"tilespace-backend/pkg/grid"
	"tilespace-backend/pkg/models"
	"tilespace-backend/pkg/services"
	"tilespace-backend/pkg/store"
	"tilespace-backend/pkg/utils"
)

// TileHandler tile 的 REST 接口
type TileHandler struct {
	config *config.Config
	db     database.Gateway
}

// NewTileHandler 创建 tile 处理器
func NewTileHandler(cfg *config.Config, db database.Gateway) *TileHandler {
	return &TileHandler{
		config: cfg,
		db:     db,
	}
}

// ListTiles 列出网格中的 tile 以及容量等派生数据
func (h *TileHandler) ListTiles(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	tiles, err := h.db.ListTiles(r.Context(), userID, pageScope(r))
	if err != nil {
		writeError(w, r, err, "list tiles")
		return
	}
	if tiles == nil {
		tiles = []models.Tile{}
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"tiles": tiles,
		"grid":  services.SummarizeGrid(tiles),
	})
}

// CreateTileRequest 可选覆盖默认标题 / emoji
type CreateTileRequest struct {
	PageID *string `json:"page_id"`
	Title  string  `json:"title"`
	Emoji  string  `json:"emoji"`
}

// CreateTile 按网格规则分配位置：最多 25 个，取第一个空位
func (h *TileHandler) CreateTile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req CreateTileRequest
	if r.ContentLength != 0 {
		if err := utils.ParseJSONBody(r, &req); err != nil {
			utils.WriteBadRequestResponse(w, "Invalid request body")
			return
		}
	}
	pageID := optionalID(req.PageID)
	ctx := r.Context()

	tiles, err := h.db.ListTiles(ctx, userID, pageID)
	if err != nil {
		writeError(w, r, err, "create tile")
		return
	}
	if !grid.CanAddTile(len(tiles)) {
		writeError(w, r, store.ErrMaxTiles, "create tile")
		return
	}
	position := grid.NextTilePosition(tiles)
	if position < 0 {
		writeError(w, r, store.ErrNoEmptyPosition, "create tile")
		return
	}

	prefs, err := h.db.GetPreferences(ctx, userID)
	if err != nil {
		writeError(w, r, err, "create tile")
		return
	}

	in := services.NewTileDefaults(userID, pageID, position, prefs.CurrentPalette)
	if title := strings.TrimSpace(req.Title); title != "" {
		in.Title = title
	}
	if emoji := strings.TrimSpace(req.Emoji); emoji != "" {
		in.Emoji = emoji
	}

	tile, err := h.db.CreateTile(ctx, userID, in)
	if err != nil {
		writeError(w, r, err, "create tile")
		return
	}
	utils.WriteCreatedResponse(w, tile)
}

// UpdateTile 部分更新；位置只能通过 swap / move 修改
func (h *TileHandler) UpdateTile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	tileID := chi.URLParam(r, "id")

	var upd models.TileUpdate
	if err := utils.ParseJSONBody(r, &upd); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if upd.Position != nil {
		utils.WriteBadRequestResponse(w, "Use the move or swap endpoints to change position")
		return
	}
	if upd.IsEmpty() {
		utils.WriteBadRequestResponse(w, "No fields to update")
		return
	}

	if err := h.db.UpdateTile(r.Context(), userID, tileID, upd); err != nil {
		writeError(w, r, err, "update tile")
		return
	}
	tile, err := h.db.GetTile(r.Context(), userID, tileID)
	if err != nil {
		writeError(w, r, err, "update tile")
		return
	}
	utils.WriteSuccessResponse(w, tile)
}

// DeleteTile 删除 tile 及其 links；其余 tile 的位置保持不变
func (h *TileHandler) DeleteTile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.db.DeleteTile(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err, "delete tile")
		return
	}
	utils.WriteMessageResponse(w, "Tile deleted")
}

// SwapTilesRequest 交换两个 tile 的位置
type SwapTilesRequest struct {
	TileAID string `json:"tile_a_id"`
	TileBID string `json:"tile_b_id"`
}

// SwapTiles 原子交换
func (h *TileHandler) SwapTiles(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req SwapTilesRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.TileAID == "" || req.TileBID == "" {
		utils.WriteBadRequestResponse(w, "tile_a_id and tile_b_id are required")
		return
	}
	if req.TileAID == req.TileBID {
		utils.WriteBadRequestResponse(w, "Cannot swap a tile with itself")
		return
	}

	if err := h.db.SwapTilePositions(r.Context(), userID, req.TileAID, req.TileBID); err != nil {
		writeError(w, r, err, "swap tiles")
		return
	}
	utils.WriteMessageResponse(w, "Tiles swapped")
}

// MoveTileRequest 目标位置
type MoveTileRequest struct {
	Position *int `json:"position"`
}

// MoveTile 移动到空位，目标被占用时返回 409
func (h *TileHandler) MoveTile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req MoveTileRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.Position == nil {
		utils.WriteBadRequestResponse(w, "position is required")
		return
	}
	if !grid.IsValidPosition(*req.Position) {
		writeError(w, r, database.ErrInvalidPosition, "move tile")
		return
	}

	tileID := chi.URLParam(r, "id")
	if err := h.db.MoveTileToPosition(r.Context(), userID, tileID, *req.Position); err != nil {
		writeError(w, r, err, "move tile")
		return
	}
	tile, err := h.db.GetTile(r.Context(), userID, tileID)
	if err != nil {
		writeError(w, r, err, "move tile")
		return
	}
	utils.WriteSuccessResponse(w, tile)
}
