package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"tilespace-backend/pkg/database"
	"tilespace-backend/pkg/middleware"
	"tilespace-backend/pkg/store"
	"tilespace-backend/pkg/utils"
)

// currentUser 取出已认证用户 id，失败时直接写 401
func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return "", false
	}
	return user.ID, true
}

// pageScope ?page_id= 为空时表示无页面的网格
func pageScope(r *http.Request) *string {
	id := strings.TrimSpace(r.URL.Query().Get("page_id"))
	if id == "" {
		return nil
	}
	return &id
}

func optionalID(id *string) *string {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil
	}
	trimmed := strings.TrimSpace(*id)
	return &trimmed
}

// writeError 把网关 / 校验错误映射为统一的响应结构
func writeError(w http.ResponseWriter, r *http.Request, err error, action string) {
	switch {
	case errors.Is(err, database.ErrNotAuthenticated):
		utils.WriteUnauthorizedResponse(w, "Authentication required")
	case errors.Is(err, database.ErrNotFound),
		errors.Is(err, store.ErrTileNotFound),
		errors.Is(err, store.ErrLinkNotFound),
		errors.Is(err, store.ErrPageNotFound):
		utils.WriteNotFoundResponse(w, "Resource not found")
	case errors.Is(err, database.ErrPositionOccupied),
		errors.Is(err, store.ErrDuplicateURL),
		errors.Is(err, store.ErrMaxTiles),
		errors.Is(err, store.ErrNoEmptyPosition):
		utils.WriteConflictResponse(w, err.Error())
	case errors.Is(err, database.ErrInvalidPosition),
		errors.Is(err, utils.ErrInvalidURL):
		utils.WriteBadRequestResponse(w, err.Error())
	default:
		hlog.FromRequest(r).Error().Err(err).Str("action", action).Msg("request failed")
		utils.WriteInternalServerErrorResponse(w, "Failed to "+action+": "+err.Error())
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, database.ErrNotFound)
}
