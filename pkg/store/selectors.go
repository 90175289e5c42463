package store

import (
	"tilespace-backend/pkg/grid"
	"tilespace-backend/pkg/models"
	"tilespace-backend/pkg/services"
)

// SelectTile sets or clears (nil) the selected tile.
func (s *Store) SelectTile(id *string) {
	s.mutate(func(st *State) { st.SelectedTileID = copyID(id) })
}

// EditDocument opens (or with nil closes) the document editor.
func (s *Store) EditDocument(id *string) {
	s.mutate(func(st *State) { st.EditingDocumentID = copyID(id) })
}

func (s *Store) ShowModal(m Modal) {
	s.mutate(func(st *State) { st.Modals[m] = true })
}

func (s *Store) HideModal(m Modal) {
	s.mutate(func(st *State) { st.Modals[m] = false })
}

// SelectedTile 每次都从当前 tiles 中查找，不缓存旧副本
func (s *Store) SelectedTile() *models.Tile {
	return SelectedTile(s.Snapshot())
}

// EditingDocument 在所有 tile 的 links 中查找正在编辑的文档
func (s *Store) EditingDocument() *models.Link {
	return EditingDocument(s.Snapshot())
}

// GridCapacity 当前 tile 数量对应的显示容量
func (s *Store) GridCapacity() int {
	return GridCapacity(s.Snapshot())
}

func (s *Store) CanAddTile() bool {
	return CanAddTile(s.Snapshot())
}

func SelectedTile(st State) *models.Tile {
	if st.SelectedTileID == nil {
		return nil
	}
	return services.FindTile(st.Tiles, *st.SelectedTileID)
}

func EditingDocument(st State) *models.Link {
	if st.EditingDocumentID == nil {
		return nil
	}
	loc, ok := services.FindLinkByID(st.Tiles, *st.EditingDocumentID)
	if !ok {
		return nil
	}
	return &st.Tiles[loc.TileIndex].Links[loc.LinkIndex]
}

func GridCapacity(st State) int {
	return grid.CapacityFor(len(st.Tiles))
}

func CanAddTile(st State) bool {
	return grid.CanAddTile(len(st.Tiles))
}

// CurrentPage returns the page being shown, or nil for the page-less grid.
func CurrentPage(st State) *models.Page {
	if st.CurrentPageID == nil {
		return nil
	}
	for i := range st.Pages {
		if st.Pages[i].ID == *st.CurrentPageID {
			return &st.Pages[i]
		}
	}
	return nil
}
