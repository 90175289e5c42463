package utils

import (
	"github.com/lucasb-eyer/go-colorful"
)

// ButtonStyle 单个按钮的配色
type ButtonStyle struct {
	BackgroundColor string `json:"background_color"`
	Color           string `json:"color"`
	BorderColor     string `json:"border_color,omitempty"`
}

// ButtonStyles 主按钮与次按钮配色
type ButtonStyles struct {
	Primary   ButtonStyle `json:"primary"`
	Secondary ButtonStyle `json:"secondary"`
}

// Luminance WCAG 相对亮度，hex 无法解析时返回 0
func Luminance(hex string) float64 {
	c, err := colorful.Hex(hex)
	if err != nil {
		return 0
	}
	r, g, b := c.LinearRgb()
	return 0.2126*r + 0.7152*g + 0.0722*b
}

// IsLightColor 亮色需要深色文字才有足够对比度
func IsLightColor(hex string) bool {
	return Luminance(hex) > 0.5
}

// GetButtonStyles picks button colors that stay readable on top of the accent.
// Light accents fall back to a fixed gray scheme.
func GetButtonStyles(accent string) ButtonStyles {
	if IsLightColor(accent) {
		return ButtonStyles{
			Primary: ButtonStyle{BackgroundColor: "#374151", Color: "#ffffff"},
			Secondary: ButtonStyle{
				BorderColor:     "#6B7280",
				Color:           "#374151",
				BackgroundColor: "#F3F4F6",
			},
		}
	}

	return ButtonStyles{
		Primary: ButtonStyle{BackgroundColor: accent, Color: "#ffffff"},
		Secondary: ButtonStyle{
			BorderColor:     accent,
			Color:           accent,
			BackgroundColor: accent + "15", // ~15% alpha
		},
	}
}
