package models

// PaletteCategory 调色板分类
type PaletteCategory string

const (
	PaletteVibrant PaletteCategory = "vibrant"
	PaletteMuted   PaletteCategory = "muted"
)

// ColorsPerPalette every palette carries exactly this many colors
const ColorsPerPalette = 12

// DefaultPaletteID 未知 id 时回退的调色板
const DefaultPaletteID = "ocean-bold"

// Palette 一组命名颜色（只读）
type Palette struct {
	ID         string                   `json:"id"`
	Name       string                   `json:"name"`
	Category   PaletteCategory          `json:"category"`
	Background string                   `json:"background"`
	Border     string                   `json:"border"`
	Colors     [ColorsPerPalette]string `json:"colors"`
}

// Palettes 静态调色板表
var Palettes = []Palette{
	{
		ID: "coral-reef", Name: "Coral Reef", Category: PaletteVibrant,
		Background: "#FF6B5B", Border: "#0D7377",
		Colors: [ColorsPerPalette]string{
			"#FF6B5B", "#FF8A7A", "#0D7377", "#14A3A8",
			"#32C4C0", "#FF9F8A", "#1E8E91", "#4DD4CF",
			"#FFC1B5", "#66E0DC", "#FF7A6A", "#26A5A8",
		},
	},
	{
		ID: "ocean-bold", Name: "Ocean Bold", Category: PaletteVibrant,
		Background: "#0891B2", Border: "#F97316",
		Colors: [ColorsPerPalette]string{
			"#0891B2", "#06B6D4", "#22D3EE", "#F97316",
			"#FB923C", "#FDBA74", "#0E7490", "#67E8F9",
			"#EA580C", "#155E75", "#A5F3FC", "#FFEDD5",
		},
	},
	{
		ID: "sunset-glow", Name: "Sunset", Category: PaletteVibrant,
		Background: "#F97316", Border: "#7F1D1D",
		Colors: [ColorsPerPalette]string{
			"#F97316", "#FB923C", "#FDBA74", "#7F1D1D",
			"#991B1B", "#B91C1C", "#EA580C", "#FED7AA",
			"#DC2626", "#C2410C", "#FECACA", "#FEF3C7",
		},
	},
	{
		ID: "emerald", Name: "Emerald", Category: PaletteVibrant,
		Background: "#047857", Border: "#CA8A04",
		Colors: [ColorsPerPalette]string{
			"#047857", "#059669", "#10B981", "#CA8A04",
			"#EAB308", "#FACC15", "#065F46", "#34D399",
			"#D97706", "#064E3B", "#6EE7B7", "#FEF08A",
		},
	},
	{
		ID: "berry-pop", Name: "Berry", Category: PaletteVibrant,
		Background: "#BE185D", Border: "#D97706",
		Colors: [ColorsPerPalette]string{
			"#BE185D", "#DB2777", "#EC4899", "#D97706",
			"#F59E0B", "#FBBF24", "#9D174D", "#F472B6",
			"#EA580C", "#831843", "#FBCFE8", "#FDE68A",
		},
	},
	{
		ID: "cobalt", Name: "Cobalt", Category: PaletteVibrant,
		Background: "#1D4ED8", Border: "#C2410C",
		Colors: [ColorsPerPalette]string{
			"#1D4ED8", "#2563EB", "#3B82F6", "#C2410C",
			"#EA580C", "#F97316", "#1E40AF", "#60A5FA",
			"#DC2626", "#1E3A8A", "#93C5FD", "#FFEDD5",
		},
	},
	{
		ID: "sage-clay", Name: "Sage & Clay", Category: PaletteMuted,
		Background: "#A3B18A", Border: "#BC6C25",
		Colors: [ColorsPerPalette]string{
			"#A3B18A", "#B5C49C", "#C7D7AE", "#BC6C25",
			"#D4915F", "#DDA15E", "#8B9F6F", "#DAE4C8",
			"#E9C46A", "#6B7F54", "#ECF0E3", "#FEFAE0",
		},
	},
	{
		ID: "dusty-rose", Name: "Dusty Rose", Category: PaletteMuted,
		Background: "#E8B4B8", Border: "#A26769",
		Colors: [ColorsPerPalette]string{
			"#E8B4B8", "#F0C8CB", "#F5D5D7", "#A26769",
			"#B87D7F", "#C99495", "#D9A0A3", "#EFD5D7",
			"#8B5658", "#FAE5E7", "#F8DCDE", "#C4A0A2",
		},
	},
	{
		ID: "ocean-mist", Name: "Ocean Mist", Category: PaletteMuted,
		Background: "#B8C5D6", Border: "#5A6F7E",
		Colors: [ColorsPerPalette]string{
			"#B8C5D6", "#C8D3E1", "#D8E1EC", "#5A6F7E",
			"#6E8394", "#8297AA", "#A4B5C8", "#E4EAF2",
			"#47596A", "#F0F4F8", "#D0DCE8", "#96ABC0",
		},
	},
	{
		ID: "sand-dune", Name: "Sand Dune", Category: PaletteMuted,
		Background: "#D5C4A1", Border: "#5D4E37",
		Colors: [ColorsPerPalette]string{
			"#D5C4A1", "#E2D4B8", "#EFE4CF", "#5D4E37",
			"#7A6B52", "#97886D", "#C1AE8B", "#F5EDE0",
			"#4A3E2C", "#FAF6F0", "#E9DCC8", "#B4A488",
		},
	},
	{
		ID: "lavender", Name: "Lavender", Category: PaletteMuted,
		Background: "#C4B7D2", Border: "#6B5B7A",
		Colors: [ColorsPerPalette]string{
			"#C4B7D2", "#D4C9E2", "#E4DBF2", "#6B5B7A",
			"#7F7090", "#9485A6", "#B3A5C4", "#EFE8F8",
			"#574867", "#F8F5FC", "#DDD2EC", "#A899BC",
		},
	},
	{
		ID: "nordic", Name: "Nordic", Category: PaletteMuted,
		Background: "#F5F1EB", Border: "#3D7A7A",
		Colors: [ColorsPerPalette]string{
			"#F5F1EB", "#EAE4DC", "#DFD7CD", "#3D7A7A",
			"#4D9494", "#5DAEAE", "#E8E2DA", "#D4CCC2",
			"#2D6A6A", "#C9C1B7", "#B8AEA4", "#6DC8C8",
		},
	},
}

// GetPalette 按 id 查找调色板，未知 id 回退到默认调色板
func GetPalette(paletteID string) Palette {
	var fallback Palette
	for _, p := range Palettes {
		if p.ID == paletteID {
			return p
		}
		if p.ID == DefaultPaletteID {
			fallback = p
		}
	}
	return fallback
}

// IsKnownPalette reports whether the id names a palette in the table.
func IsKnownPalette(paletteID string) bool {
	for _, p := range Palettes {
		if p.ID == paletteID {
			return true
		}
	}
	return false
}

// ColorFromPalette 根据 colorIndex 从调色板中取色
func ColorFromPalette(paletteID string, colorIndex int) string {
	p := GetPalette(paletteID)
	idx := colorIndex % ColorsPerPalette
	if idx < 0 {
		idx += ColorsPerPalette
	}
	return p.Colors[idx]
}
