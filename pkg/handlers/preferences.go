package handlers

import (
	"net/http"

	"tilespace-backend/pkg/config"
	"tilespace-backend/pkg/database"
	"tilespace-backend/pkg/middleware"
	"tilespace-backend/pkg/models"
	"tilespace-backend/pkg/utils"
)

// PreferenceHandler 调色板偏好
type PreferenceHandler struct {
	config *config.Config
	db     database.Gateway
}

// NewPreferenceHandler 创建偏好处理器
func NewPreferenceHandler(cfg *config.Config, db database.Gateway) *PreferenceHandler {
	return &PreferenceHandler{
		config: cfg,
		db:     db,
	}
}

// GetPreferences 首次访问时创建默认偏好
func (h *PreferenceHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	prefs, err := h.db.GetPreferences(r.Context(), userID)
	if err != nil {
		writeError(w, r, err, "load preferences")
		return
	}
	utils.WriteSuccessResponse(w, prefs)
}

// SetPaletteRequest page_id 为空时重新着色无页面的网格
type SetPaletteRequest struct {
	PaletteID string  `json:"palette_id"`
	PageID    *string `json:"page_id"`
}

// SetPalette 保存偏好、更新页面调色板并按 color_index 重新着色
func (h *PreferenceHandler) SetPalette(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req SetPaletteRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if !models.IsKnownPalette(req.PaletteID) {
		utils.WriteBadRequestResponse(w, "Unknown palette")
		return
	}

	ctx := r.Context()
	pageID := optionalID(req.PageID)
	if err := h.db.SetPalette(ctx, userID, req.PaletteID); err != nil {
		writeError(w, r, err, "save palette")
		return
	}
	if pageID != nil {
		paletteID := req.PaletteID
		if err := h.db.UpdatePage(ctx, userID, *pageID, models.PageUpdate{PaletteID: &paletteID}); err != nil {
			writeError(w, r, err, "save palette")
			return
		}
	}
	tiles, err := h.db.RecolorTiles(ctx, userID, pageID, req.PaletteID)
	if err != nil {
		writeError(w, r, err, "recolor tiles")
		return
	}
	if tiles == nil {
		tiles = []models.Tile{}
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"palette_id": req.PaletteID,
		"tiles":      tiles,
	})
}

// ListPalettes 调色板列表；已登录时附带当前调色板
func (h *PreferenceHandler) ListPalettes(w http.ResponseWriter, r *http.Request) {
	current := models.DefaultPaletteID
	if user, ok := middleware.GetUserFromContext(r.Context()); ok {
		prefs, err := h.db.GetPreferences(r.Context(), user.ID)
		if err != nil {
			writeError(w, r, err, "load preferences")
			return
		}
		current = prefs.CurrentPalette
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"palettes": models.Palettes,
		"current":  current,
	})
}
