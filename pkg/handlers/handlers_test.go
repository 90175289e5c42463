package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tilespace-backend/pkg/config"
	"tilespace-backend/pkg/database"
	"tilespace-backend/pkg/middleware"
	"tilespace-backend/pkg/models"
	"tilespace-backend/pkg/services"
	"tilespace-backend/pkg/utils"
)

const (
	testSecret = "handlers-secret"
	owner      = "user-1"
)

type testServer struct {
	t      *testing.T
	db     *database.LocalDatabase
	router chi.Router
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{Environment: "development", AllowedOrigins: []string{"https://tilespace.app"}}
	db := database.NewMemoryDatabase()
	jwtService := utils.NewJWTService(testSecret)
	token, _, err := jwtService.GenerateAccessToken(owner, "owner@example.com", time.Hour)
	require.NoError(t, err)

	captureHandler := NewCaptureHandler(cfg, db)
	tileHandler := NewTileHandler(cfg, db)
	linkHandler := NewLinkHandler(cfg, db)
	pageHandler := NewPageHandler(cfg, db)
	preferenceHandler := NewPreferenceHandler(cfg, db)
	authHandler := NewAuthHandler(cfg, db, jwtService)

	r := chi.NewRouter()
	r.Get("/", authHandler.HealthCheck)
	r.With(middleware.OptionalAuthMiddleware(jwtService)).Get("/api/palettes", preferenceHandler.ListPalettes)
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(jwtService))
		r.HandleFunc("/api/capture", captureHandler.Capture)
		r.Get("/api/session", authHandler.Session)
		r.Get("/api/tiles", tileHandler.ListTiles)
		r.Post("/api/tiles", tileHandler.CreateTile)
		r.Post("/api/tiles/swap", tileHandler.SwapTiles)
		r.Patch("/api/tiles/{id}", tileHandler.UpdateTile)
		r.Delete("/api/tiles/{id}", tileHandler.DeleteTile)
		r.Post("/api/tiles/{id}/move", tileHandler.MoveTile)
		r.Post("/api/links", linkHandler.CreateLink)
		r.Patch("/api/links/{id}", linkHandler.UpdateLink)
		r.Delete("/api/links/{id}", linkHandler.DeleteLink)
		r.Post("/api/links/{id}/move", linkHandler.MoveLink)
		r.Get("/api/pages", pageHandler.ListPages)
		r.Post("/api/pages", pageHandler.CreatePage)
		r.Delete("/api/pages/{id}", pageHandler.DeletePage)
		r.Post("/api/pages/{id}/reset", pageHandler.ResetPage)
		r.Get("/api/preferences", preferenceHandler.GetPreferences)
		r.Put("/api/preferences/palette", preferenceHandler.SetPalette)
	})

	return &testServer{t: t, db: db, router: r, token: token}
}

func (s *testServer) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// decode 解析响应信封，data 写入 out
func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) utils.APIResponse {
	t.Helper()
	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *utils.APIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw), rec.Body.String())
	if out != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, out))
	}
	return utils.APIResponse{Success: raw.Success, Error: raw.Error}
}

func (s *testServer) createTile() models.Tile {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/tiles", nil)
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var tile models.Tile
	decode(s.t, rec, &tile)
	return tile
}

func (s *testServer) tiles() []models.Tile {
	s.t.Helper()
	tiles, err := s.db.ListTiles(context.Background(), owner, nil)
	require.NoError(s.t, err)
	return tiles
}

func TestCaptureCreatesInboxAndAppends(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/capture", CaptureRequest{URL: "example.com/article"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var msg utils.MessageData
	decode(t, rec, &msg)
	assert.Equal(t, CaptureSuccessMessage, msg.Message)

	rec = s.do(http.MethodPost, "/api/capture", CaptureRequest{URL: "https://go.dev", Title: "Go"})
	require.Equal(t, http.StatusOK, rec.Code)

	tiles := s.tiles()
	require.Len(t, tiles, 1)
	inbox := tiles[0]
	assert.Equal(t, services.InboxTitle, inbox.Title)
	assert.Equal(t, services.InboxEmoji, inbox.Emoji)
	assert.Equal(t, services.InboxColor, inbox.AccentColor)
	require.Len(t, inbox.Links, 2)
	assert.Equal(t, "https://example.com/article", inbox.Links[0].URLString())
	assert.Equal(t, "example.com", inbox.Links[0].Title)
	assert.Equal(t, 0, inbox.Links[0].Position)
	assert.Equal(t, "Go", inbox.Links[1].Title)
	assert.Equal(t, 1, inbox.Links[1].Position)
}

func TestCaptureUsesMaxPositionPlusOne(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	inbox, err := s.db.CreateTile(ctx, owner, services.InboxTileInsert(owner, nil, 3))
	require.NoError(t, err)
	u := "https://a.example"
	_, err = s.db.CreateLink(ctx, owner, models.LinkInsert{UserID: owner, TileID: inbox.ID, Type: models.LinkTypeLink, URL: &u, Position: 7})
	require.NoError(t, err)

	rec := s.do(http.MethodPost, "/api/capture", CaptureRequest{URL: "https://b.example"})
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := s.db.GetTile(ctx, owner, inbox.ID)
	require.NoError(t, err)
	require.Len(t, got.Links, 2)
	assert.Equal(t, 8, got.Links[1].Position)
}

func TestCaptureValidation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/capture", CaptureRequest{URL: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "URL is required", decode(t, rec, nil).Error.Message)

	rec = s.do(http.MethodPost, "/api/capture", CaptureRequest{URL: "not a url"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid URL format", decode(t, rec, nil).Error.Message)

	rec = s.do(http.MethodGet, "/api/capture", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	s.token = ""
	rec = s.do(http.MethodPost, "/api/capture", CaptureRequest{URL: "https://go.dev"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, s.tiles())
}

func TestCaptureInboxGoesToFirstPage(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	first, err := s.db.CreatePage(ctx, owner, models.PageInsert{UserID: owner, Title: "Home", PaletteID: models.DefaultPaletteID, Position: 0})
	require.NoError(t, err)
	_, err = s.db.CreatePage(ctx, owner, models.PageInsert{UserID: owner, Title: "Work", PaletteID: models.DefaultPaletteID, Position: 1})
	require.NoError(t, err)

	rec := s.do(http.MethodPost, "/api/capture", CaptureRequest{URL: "https://go.dev"})
	require.Equal(t, http.StatusOK, rec.Code)

	onPage, err := s.db.ListTiles(ctx, owner, &first.ID)
	require.NoError(t, err)
	require.Len(t, onPage, 1)
	assert.Equal(t, services.InboxTitle, onPage[0].Title)
	assert.Empty(t, s.tiles())
}

func TestCreateTileAllocation(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 17; i++ {
		tile := s.createTile()
		assert.Equal(t, i, tile.Position)
		assert.Equal(t, i%models.ColorsPerPalette, tile.ColorIndex)
		assert.Equal(t, services.DefaultEmoji(i), tile.Emoji)
	}

	rec := s.do(http.MethodGet, "/api/tiles", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Tiles []models.Tile        `json:"tiles"`
		Grid  services.GridSummary `json:"grid"`
	}
	decode(t, rec, &listed)
	assert.Len(t, listed.Tiles, 17)
	assert.Equal(t, 20, listed.Grid.Capacity)

	for i := 17; i < 25; i++ {
		s.createTile()
	}
	rec = s.do(http.MethodPost, "/api/tiles", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Maximum tile limit (25) reached", decode(t, rec, nil).Error.Message)
}

func TestDeleteTileKeepsGap(t *testing.T) {
	s := newTestServer(t)
	var ids []string
	for i := 0; i < 4; i++ {
		ids = append(ids, s.createTile().ID)
	}

	rec := s.do(http.MethodDelete, "/api/tiles/"+ids[2], nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var positions []int
	for _, tile := range s.tiles() {
		positions = append(positions, tile.Position)
	}
	assert.Equal(t, []int{0, 1, 3}, positions)

	assert.Equal(t, 2, s.createTile().Position)

	rec = s.do(http.MethodDelete, "/api/tiles/"+ids[2], nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateTile(t *testing.T) {
	s := newTestServer(t)
	tile := s.createTile()

	rec := s.do(http.MethodPatch, "/api/tiles/"+tile.ID, map[string]string{"title": "Reading"})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated models.Tile
	decode(t, rec, &updated)
	assert.Equal(t, "Reading", updated.Title)

	rec = s.do(http.MethodPatch, "/api/tiles/"+tile.ID, map[string]int{"position": 4})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPatch, "/api/tiles/"+tile.ID, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSwapAndMoveTiles(t *testing.T) {
	s := newTestServer(t)
	a, b := s.createTile(), s.createTile()

	rec := s.do(http.MethodPost, "/api/tiles/swap", SwapTilesRequest{TileAID: a.ID, TileBID: b.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	got, err := s.db.GetTile(context.Background(), owner, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Position)

	rec = s.do(http.MethodPost, "/api/tiles/swap", SwapTilesRequest{TileAID: a.ID, TileBID: a.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	pos := 10
	rec = s.do(http.MethodPost, "/api/tiles/"+a.ID+"/move", MoveTileRequest{Position: &pos})
	require.Equal(t, http.StatusOK, rec.Code)
	var moved models.Tile
	decode(t, rec, &moved)
	assert.Equal(t, 10, moved.Position)

	occupied := 0
	rec = s.do(http.MethodPost, "/api/tiles/"+a.ID+"/move", MoveTileRequest{Position: &occupied})
	assert.Equal(t, http.StatusConflict, rec.Code)

	outside := 25
	rec = s.do(http.MethodPost, "/api/tiles/"+a.ID+"/move", MoveTileRequest{Position: &outside})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLinksLifecycle(t *testing.T) {
	s := newTestServer(t)
	first, second := s.createTile(), s.createTile()

	rec := s.do(http.MethodPost, "/api/links", CreateLinkRequest{TileID: first.ID, URL: "example.com"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var link models.Link
	decode(t, rec, &link)
	assert.Equal(t, "https://example.com", link.URLString())
	assert.Equal(t, "https://example.com", link.Title)
	assert.Equal(t, 0, link.Position)

	// 同 tile 内大小写不敏感的重复
	rec = s.do(http.MethodPost, "/api/links", CreateLinkRequest{TileID: first.ID, URL: "HTTPS://EXAMPLE.COM"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = s.do(http.MethodPost, "/api/links", CreateLinkRequest{TileID: second.ID, URL: "https://example.com"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodPost, "/api/links", CreateLinkRequest{TileID: first.ID, URL: "not a url"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/links", CreateLinkRequest{TileID: first.ID, Type: models.LinkTypeDocument, Title: "Notes", Content: "# hi"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var doc models.Link
	decode(t, rec, &doc)
	assert.Nil(t, doc.URL)
	assert.Equal(t, 1, doc.Position)

	rec = s.do(http.MethodPatch, "/api/links/"+link.ID, map[string]string{"url": "go.dev"})
	require.Equal(t, http.StatusOK, rec.Code)

	// 移动总是追加到目标末尾
	rec = s.do(http.MethodPost, "/api/links/"+doc.ID+"/move", MoveLinkRequest{TileID: second.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	var moved models.Link
	decode(t, rec, &moved)
	assert.Equal(t, second.ID, moved.TileID)
	assert.Equal(t, 1, moved.Position)

	got, err := s.db.GetTile(context.Background(), owner, first.ID)
	require.NoError(t, err)
	require.Len(t, got.Links, 1)
	assert.Equal(t, "https://go.dev", got.Links[0].URLString())

	rec = s.do(http.MethodDelete, "/api/links/"+link.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodDelete, "/api/links/"+link.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPagesAndPalette(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/pages", map[string]string{"title": "Home"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var home models.Page
	decode(t, rec, &home)
	assert.Equal(t, 0, home.Position)
	assert.Equal(t, models.DefaultPaletteID, home.PaletteID)

	rec = s.do(http.MethodPost, "/api/pages", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var second models.Page
	decode(t, rec, &second)
	assert.Equal(t, 1, second.Position)
	assert.Equal(t, "New Page", second.Title)

	rec = s.do(http.MethodPost, "/api/tiles", CreateTileRequest{PageID: &home.ID})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodPut, "/api/preferences/palette", SetPaletteRequest{PaletteID: "sunset-glow", PageID: &home.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	var recolored struct {
		Tiles []models.Tile `json:"tiles"`
	}
	decode(t, rec, &recolored)
	require.Len(t, recolored.Tiles, 1)
	assert.Equal(t, models.ColorFromPalette("sunset-glow", 0), recolored.Tiles[0].AccentColor)

	rec = s.do(http.MethodGet, "/api/preferences", nil)
	var prefs models.UserPreferences
	decode(t, rec, &prefs)
	assert.Equal(t, "sunset-glow", prefs.CurrentPalette)

	rec = s.do(http.MethodPut, "/api/preferences/palette", SetPaletteRequest{PaletteID: "no-such"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/pages/"+home.ID+"/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tiles, err := s.db.ListTiles(context.Background(), owner, &home.ID)
	require.NoError(t, err)
	assert.Empty(t, tiles)

	rec = s.do(http.MethodDelete, "/api/pages/"+second.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodGet, "/api/pages", nil)
	var listed struct {
		Count int `json:"count"`
	}
	decode(t, rec, &listed)
	assert.Equal(t, 1, listed.Count)
}

func TestListPalettes(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.db.SetPalette(context.Background(), owner, "nordic"))

	var body struct {
		Palettes []models.Palette `json:"palettes"`
		Current  string           `json:"current"`
	}
	decode(t, s.do(http.MethodGet, "/api/palettes", nil), &body)
	assert.Len(t, body.Palettes, 12)
	assert.Equal(t, "nordic", body.Current)

	s.token = ""
	decode(t, s.do(http.MethodGet, "/api/palettes", nil), &body)
	assert.Equal(t, models.DefaultPaletteID, body.Current)
}

func TestSessionAndHealth(t *testing.T) {
	s := newTestServer(t)

	var session struct {
		User models.User `json:"user"`
	}
	rec := s.do(http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &session)
	assert.Equal(t, owner, session.User.ID)

	var health map[string]interface{}
	decode(t, s.do(http.MethodGet, "/", nil), &health)
	assert.Equal(t, "local", health["database"])
	assert.Equal(t, "healthy", health["db_status"])

	s.token = ""
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/session", nil).Code)
}
