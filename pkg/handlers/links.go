package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"tilespace-backend/pkg/config"
	"tilespace-backend/pkg/database"
	"tilespace-backend/pkg/models"
	"tilespace-backend/pkg/services"
	"tilespace-backend/pkg/store"
	"tilespace-backend/pkg/utils"
)

// LinkHandler link / 文档的 REST 接口
type LinkHandler struct {
	config *config.Config
	db     database.Gateway
}

// NewLinkHandler 创建 link 处理器
func NewLinkHandler(cfg *config.Config, db database.Gateway) *LinkHandler {
	return &LinkHandler{
		config: cfg,
		db:     db,
	}
}

// CreateLinkRequest type 为空时按外部链接处理
type CreateLinkRequest struct {
	TileID  string          `json:"tile_id"`
	Type    models.LinkType `json:"type"`
	Title   string          `json:"title"`
	URL     string          `json:"url"`
	Summary string          `json:"summary"`
	Content string          `json:"content"`
}

// CreateLink 追加到 tile 末尾；外部链接会规范化 URL 并拒绝同 tile 内的重复
func (h *LinkHandler) CreateLink(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req CreateLinkRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.TileID == "" {
		utils.WriteBadRequestResponse(w, "tile_id is required")
		return
	}
	if req.Type == "" {
		req.Type = models.LinkTypeLink
	}
	if req.Type != models.LinkTypeLink && req.Type != models.LinkTypeDocument {
		utils.WriteBadRequestResponse(w, "type must be link or document")
		return
	}

	in := models.LinkInsert{
		UserID:  userID,
		TileID:  req.TileID,
		Type:    req.Type,
		Title:   strings.TrimSpace(req.Title),
		Summary: req.Summary,
	}

	// 校验在访问存储之前完成
	if req.Type == models.LinkTypeLink {
		normalized, err := services.ValidateAndNormalizeURL(req.URL)
		if err != nil {
			writeError(w, r, err, "create link")
			return
		}
		in.URL = &normalized
		if in.Title == "" {
			in.Title = normalized
		}
	} else {
		in.Content = req.Content
	}

	tile, err := h.db.GetTile(r.Context(), userID, req.TileID)
	if err != nil {
		writeError(w, r, err, "create link")
		return
	}
	if in.URL != nil && services.HasDuplicateURL(*tile, *in.URL) {
		writeError(w, r, store.ErrDuplicateURL, "create link")
		return
	}
	in.Position = services.NextLinkPosition(*tile)

	link, err := h.db.CreateLink(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, err, "create link")
		return
	}
	utils.WriteCreatedResponse(w, link)
}

// UpdateLink 部分更新；URL 会重新规范化，跨 tile 移动走 move 接口
func (h *LinkHandler) UpdateLink(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var upd models.LinkUpdate
	if err := utils.ParseJSONBody(r, &upd); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if upd.TileID != nil || upd.Position != nil {
		utils.WriteBadRequestResponse(w, "Use the move endpoint to change tile or position")
		return
	}
	if upd.IsEmpty() {
		utils.WriteBadRequestResponse(w, "No fields to update")
		return
	}
	if upd.URL != nil {
		normalized, err := services.ValidateAndNormalizeURL(*upd.URL)
		if err != nil {
			writeError(w, r, err, "update link")
			return
		}
		upd.URL = &normalized
	}

	if err := h.db.UpdateLink(r.Context(), userID, chi.URLParam(r, "id"), upd); err != nil {
		writeError(w, r, err, "update link")
		return
	}
	utils.WriteMessageResponse(w, "Link updated")
}

// DeleteLink 删除 link
func (h *LinkHandler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.db.DeleteLink(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err, "delete link")
		return
	}
	utils.WriteMessageResponse(w, "Link deleted")
}

// MoveLinkRequest 目标 tile
type MoveLinkRequest struct {
	TileID string `json:"tile_id"`
}

// MoveLink 跨 tile 移动，总是追加到目标末尾
func (h *LinkHandler) MoveLink(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req MoveLinkRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.TileID == "" {
		utils.WriteBadRequestResponse(w, "tile_id is required")
		return
	}

	target, err := h.db.GetTile(r.Context(), userID, req.TileID)
	if err != nil {
		writeError(w, r, err, "move link")
		return
	}

	linkID := chi.URLParam(r, "id")
	for _, existing := range target.Links {
		if existing.ID == linkID {
			utils.WriteSuccessResponse(w, existing)
			return
		}
	}

	link, err := h.db.MoveLink(r.Context(), userID, linkID, target.ID, services.NextLinkPosition(*target))
	if err != nil {
		writeError(w, r, err, "move link")
		return
	}
	utils.WriteSuccessResponse(w, link)
}
