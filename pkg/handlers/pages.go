package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"tilespace-backend/pkg/config"
	"tilespace-backend/pkg/database"
	"tilespace-backend/pkg/models"
	"tilespace-backend/pkg/store"
	"tilespace-backend/pkg/utils"
)

// PageHandler 多页面网格
type PageHandler struct {
	config *config.Config
	db     database.Gateway
}

// NewPageHandler 创建页面处理器
func NewPageHandler(cfg *config.Config, db database.Gateway) *PageHandler {
	return &PageHandler{
		config: cfg,
		db:     db,
	}
}

// ListPages 按 position 排序
func (h *PageHandler) ListPages(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	pages, err := h.db.ListPages(r.Context(), userID)
	if err != nil {
		writeError(w, r, err, "list pages")
		return
	}
	if pages == nil {
		pages = []models.Page{}
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"pages": pages,
		"count": len(pages),
	})
}

// CreatePage 追加到最后，调色板沿用当前偏好
func (h *PageHandler) CreatePage(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Title string `json:"title"`
	}
	if r.ContentLength != 0 {
		if err := utils.ParseJSONBody(r, &req); err != nil {
			utils.WriteBadRequestResponse(w, "Invalid request body")
			return
		}
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = store.DefaultPageTitle
	}

	ctx := r.Context()
	pages, err := h.db.ListPages(ctx, userID)
	if err != nil {
		writeError(w, r, err, "create page")
		return
	}
	prefs, err := h.db.GetPreferences(ctx, userID)
	if err != nil {
		writeError(w, r, err, "create page")
		return
	}

	position := 0
	for _, p := range pages {
		if p.Position >= position {
			position = p.Position + 1
		}
	}

	page, err := h.db.CreatePage(ctx, userID, models.PageInsert{
		UserID:    userID,
		Title:     title,
		PaletteID: prefs.CurrentPalette,
		Position:  position,
	})
	if err != nil {
		writeError(w, r, err, "create page")
		return
	}
	utils.WriteCreatedResponse(w, page)
}

// UpdatePage 重命名 / 调整顺序 / 修改页面调色板
func (h *PageHandler) UpdatePage(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var upd models.PageUpdate
	if err := utils.ParseJSONBody(r, &upd); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if upd.Title == nil && upd.PaletteID == nil && upd.Position == nil {
		utils.WriteBadRequestResponse(w, "No fields to update")
		return
	}
	if upd.PaletteID != nil && !models.IsKnownPalette(*upd.PaletteID) {
		utils.WriteBadRequestResponse(w, "Unknown palette")
		return
	}

	if err := h.db.UpdatePage(r.Context(), userID, chi.URLParam(r, "id"), upd); err != nil {
		writeError(w, r, err, "update page")
		return
	}
	utils.WriteMessageResponse(w, "Page updated")
}

// DeletePage 连同页面上的 tile 与 links 一起删除
func (h *PageHandler) DeletePage(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.db.DeletePage(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err, "delete page")
		return
	}
	utils.WriteMessageResponse(w, "Page deleted")
}

// ResetPage 清空页面上的 tile，保留页面
func (h *PageHandler) ResetPage(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.db.ResetPage(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err, "reset page")
		return
	}
	utils.WriteMessageResponse(w, "Page reset")
}
