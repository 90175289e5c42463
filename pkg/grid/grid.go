// Package grid 网格几何：容量分级、行列尺寸与空位查找
package grid

import (
	"fmt"
	"sort"

	"tilespace-backend/pkg/models"
)

const (
	// MaxTiles 每个网格允许的 tile 上限
	MaxTiles = 25

	// NoSlot 表示网格已满
	NoSlot = -1
)

// Dimensions 网格的列数与行数
type Dimensions struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// CapacityFor 根据 tile 数量返回展示容量（16 / 20 / 25）
func CapacityFor(tileCount int) int {
	switch {
	case tileCount <= 16:
		return 16
	case tileCount <= 20:
		return 20
	default:
		return 25
	}
}

// DimensionsFor maps a capacity to its grid shape. Any capacity other than
// 16, 20 or 25 is a programming error and panics.
func DimensionsFor(capacity int) Dimensions {
	switch capacity {
	case 16:
		return Dimensions{Cols: 4, Rows: 4}
	case 20:
		return Dimensions{Cols: 5, Rows: 4}
	case 25:
		return Dimensions{Cols: 5, Rows: 5}
	}
	panic(fmt.Sprintf("grid: invalid capacity %d", capacity))
}

// FirstEmptyPosition 从 0 开始扫描，返回第一个未被占用的位置；已满返回 NoSlot
func FirstEmptyPosition(occupied map[int]bool, capacity int) int {
	for pos := 0; pos < capacity; pos++ {
		if !occupied[pos] {
			return pos
		}
	}
	return NoSlot
}

// CanAddTile 是否还能新增 tile（与容量分级无关，只看全局上限）
func CanAddTile(tileCount int) bool {
	return tileCount < MaxTiles
}

// OccupiedPositions collects the positions held by tiles.
func OccupiedPositions(tiles []models.Tile) map[int]bool {
	occupied := make(map[int]bool, len(tiles))
	for _, t := range tiles {
		occupied[t.Position] = true
	}
	return occupied
}

// NextTilePosition 新 tile 的落点：按加入新 tile 之后的容量找最小空位，
// 这样第 17 个 tile 会落在 16 号位而不是被拒绝
func NextTilePosition(tiles []models.Tile) int {
	return FirstEmptyPosition(OccupiedPositions(tiles), CapacityFor(len(tiles)+1))
}

// BuildTilePositionMap position -> tile 映射，渲染按位置取格子而不是按列表顺序
func BuildTilePositionMap(tiles []models.Tile) map[int]*models.Tile {
	m := make(map[int]*models.Tile, len(tiles))
	for i := range tiles {
		m[tiles[i].Position] = &tiles[i]
	}
	return m
}

// SortByPosition sorts tiles in place by position.
func SortByPosition(tiles []models.Tile) {
	sort.SliceStable(tiles, func(i, j int) bool {
		return tiles[i].Position < tiles[j].Position
	})
}

// IsValidPosition reports whether pos is addressable at all.
func IsValidPosition(pos int) bool {
	return pos >= 0 && pos < MaxTiles
}
