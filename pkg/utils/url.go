package utils

import (
	"errors"
	"net/url"
	"strings"
)

// ErrInvalidURL 规范化之后仍然不是合法的 http(s) 地址
var ErrInvalidURL = errors.New("Invalid URL format")

// IsValidURL 只接受 http / https 协议
func IsValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

// NormalizeURL trims the input and prepends https:// when no http(s)
// scheme is present. The scheme is matched case-insensitively and written
// back in lower case. Empty input stays empty.
func NormalizeURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", nil
	}

	normalized := "https://" + trimmed
	lower := strings.ToLower(trimmed)
	for _, scheme := range []string{"http://", "https://"} {
		if strings.HasPrefix(lower, scheme) {
			normalized = scheme + trimmed[len(scheme):]
			break
		}
	}

	if !IsValidURL(normalized) {
		return "", ErrInvalidURL
	}
	return normalized, nil
}

// ExtractDomain 返回去掉 www. 前缀的主机名，解析失败返回 "Link"
func ExtractDomain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "Link"
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

// SameURL 大小写不敏感的精确比较（用于同一 tile 内的去重）
func SameURL(a, b string) bool {
	return strings.EqualFold(a, b)
}
