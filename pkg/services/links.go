package services

import (
	"strings"

	"tilespace-backend/pkg/models"
	"tilespace-backend/pkg/utils"
)

// ValidateAndNormalizeURL 规范化并校验；空字符串同样视为非法
func ValidateAndNormalizeURL(raw string) (string, error) {
	normalized, err := utils.NormalizeURL(raw)
	if err != nil {
		return "", err
	}
	if !utils.IsValidURL(normalized) {
		return "", utils.ErrInvalidURL
	}
	return normalized, nil
}

// HasDuplicateURL 同一 tile 内大小写不敏感的精确匹配
func HasDuplicateURL(tile models.Tile, url string) bool {
	candidate := strings.TrimSpace(url)
	for _, l := range tile.Links {
		if l.URL != nil && utils.SameURL(*l.URL, candidate) {
			return true
		}
	}
	return false
}

// NextLinkPosition 新 link 追加到末尾：position = 当前数量
func NextLinkPosition(tile models.Tile) int {
	return len(tile.Links)
}

// NextCapturePosition is max(existing positions)+1, or 0 for an empty tile.
func NextCapturePosition(maxPosition int) int {
	if maxPosition < 0 {
		return 0
	}
	return maxPosition + 1
}

// IsDocument 是否为文档
func IsDocument(l models.Link) bool {
	return l.Type == models.LinkTypeDocument
}

// IsURLLink 是否为外部链接
func IsURLLink(l models.Link) bool {
	return l.Type == models.LinkTypeLink
}

// LinkDisplayTitle title || url || "Untitled"
func LinkDisplayTitle(l models.Link) string {
	if l.Title != "" {
		return l.Title
	}
	if u := l.URLString(); u != "" {
		return u
	}
	return "Untitled"
}

// IsDocumentEmpty 标题、内容、摘要全为空白的文档在关闭时会被删除
func IsDocumentEmpty(l models.Link) bool {
	return strings.TrimSpace(l.Title) == "" &&
		strings.TrimSpace(l.Content) == "" &&
		strings.TrimSpace(l.Summary) == ""
}

// LinkLocation link 及其所在 tile 在切片中的下标
type LinkLocation struct {
	TileIndex int
	LinkIndex int
}

// FindLinkByID scans every tile for the link. Fine at ≤25 tiles; an
// id→tile index would be needed at much larger scale.
func FindLinkByID(tiles []models.Tile, linkID string) (LinkLocation, bool) {
	for ti := range tiles {
		for li := range tiles[ti].Links {
			if tiles[ti].Links[li].ID == linkID {
				return LinkLocation{TileIndex: ti, LinkIndex: li}, true
			}
		}
	}
	return LinkLocation{}, false
}
