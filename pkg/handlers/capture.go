package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"tilespace-backend/pkg/config"
	"tilespace-backend/pkg/database"
	"tilespace-backend/pkg/grid"
	"tilespace-backend/pkg/models"
	"tilespace-backend/pkg/services"
	"tilespace-backend/pkg/store"
	"tilespace-backend/pkg/utils"
)

// CaptureSuccessMessage 扩展据此判断保存成功
const CaptureSuccessMessage = "Link saved to Inbox"

// CaptureHandler 浏览器扩展的快速收藏
type CaptureHandler struct {
	config *config.Config
	db     database.Gateway
}

// NewCaptureHandler 创建快速收藏处理器
func NewCaptureHandler(cfg *config.Config, db database.Gateway) *CaptureHandler {
	return &CaptureHandler{
		config: cfg,
		db:     db,
	}
}

// CaptureRequest 扩展发送的请求体
type CaptureRequest struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Capture 保存链接到 Inbox tile（不存在时创建）
func (h *CaptureHandler) Capture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.WriteErrorResponseWithCode(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", "")
		return
	}

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req CaptureRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		utils.WriteBadRequestResponse(w, "URL is required")
		return
	}
	normalized, err := services.ValidateAndNormalizeURL(req.URL)
	if err != nil {
		utils.WriteBadRequestResponse(w, utils.ErrInvalidURL.Error())
		return
	}

	logger := hlog.FromRequest(r)
	inbox, err := h.findOrCreateInbox(r, userID)
	if err != nil {
		logger.Error().Err(err).Msg("capture: inbox unavailable")
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	maxPosition, err := h.db.MaxLinkPosition(r.Context(), userID, inbox.ID)
	if err != nil {
		logger.Error().Err(err).Msg("capture: max link position")
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = utils.ExtractDomain(normalized)
	}
	link, err := h.db.CreateLink(r.Context(), userID, models.LinkInsert{
		UserID:   userID,
		TileID:   inbox.ID,
		Type:     models.LinkTypeLink,
		Title:    title,
		URL:      &normalized,
		Position: services.NextCapturePosition(maxPosition),
	})
	if err != nil {
		logger.Error().Err(err).Msg("capture: create link")
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	logger.Info().Str("tile_id", inbox.ID).Str("link_id", link.ID).Msg("link captured")
	utils.WriteMessageResponse(w, CaptureSuccessMessage)
}

// findOrCreateInbox Inbox 放在第一个页面上；没有页面时放在无页面的网格
func (h *CaptureHandler) findOrCreateInbox(r *http.Request, userID string) (*models.Tile, error) {
	ctx := r.Context()

	pages, err := h.db.ListPages(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	var pageID *string
	if len(pages) > 0 {
		first := pages[0].ID
		pageID = &first
	}

	inbox, err := h.db.FindTileByTitle(ctx, userID, pageID, services.InboxTitle)
	if err == nil {
		return inbox, nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("find inbox: %w", err)
	}

	tiles, err := h.db.ListTiles(ctx, userID, pageID)
	if err != nil {
		return nil, fmt.Errorf("list tiles: %w", err)
	}
	if !grid.CanAddTile(len(tiles)) {
		return nil, store.ErrMaxTiles
	}
	position := grid.NextTilePosition(tiles)
	if position < 0 {
		return nil, store.ErrNoEmptyPosition
	}

	inbox, err = h.db.CreateTile(ctx, userID, services.InboxTileInsert(userID, pageID, position))
	if err != nil {
		return nil, fmt.Errorf("create inbox: %w", err)
	}
	hlog.FromRequest(r).Info().Str("tile_id", inbox.ID).Int("position", position).Msg("inbox tile created")
	return inbox, nil
}
