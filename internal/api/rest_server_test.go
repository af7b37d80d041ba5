package api

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/annel0/dog-gatherer/internal/app"
	"github.com/annel0/dog-gatherer/internal/auth"
	"github.com/annel0/dog-gatherer/internal/records"
	"github.com/annel0/dog-gatherer/internal/storage"
	"github.com/annel0/dog-gatherer/internal/vec"
	"github.com/annel0/dog-gatherer/internal/world"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTownGame: дорога (0,0)-(10,0), офис в (8,0), ключ и кошелёк
func newTownGame(t *testing.T) *world.Game {
	t.Helper()
	g := world.NewGame(world.LootConfig{})
	m := world.NewMap("town", "Town", 1.0, 3)
	m.AddRoad(world.NewHorizontalRoad(vec.Vec2{X: 0, Y: 0}, 10))
	m.AddBuilding(world.Building{Position: vec.Vec2{X: 2, Y: 2}, Width: 3, Height: 2})
	require.NoError(t, m.AddOffice(world.Office{ID: "o0", Position: vec.Vec2{X: 8, Y: 0}, Offset: vec.Vec2{X: 1}}))
	m.AddLootType(world.LootType{Name: "key", File: "assets/key.obj", Type: "obj", Scale: 0.03, Value: 10})
	require.NoError(t, g.AddMap(m))

	park := world.NewMap("park", "Park", 2.0, 3)
	park.AddRoad(world.NewVerticalRoad(vec.Vec2{X: 0, Y: 0}, 20))
	require.NoError(t, g.AddMap(park))
	return g
}

type testServer struct {
	rs      *RestServer
	loop    *app.Loop
	records *records.MemoryRepo
	store   *storage.MemoryStore
}

type serverOption func(*Config, *app.LoopConfig)

func withTickPeriod(d time.Duration) serverOption {
	return func(_ *Config, lc *app.LoopConfig) { lc.TickPeriod = d }
}

func withAdmin(t *testing.T, password string) serverOption {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	jwtm, err := auth.NewJWTManager("test-secret", time.Hour)
	require.NoError(t, err)
	admin := auth.NewAdminAuthenticator("admin", string(hash), jwtm)
	return func(c *Config, _ *app.LoopConfig) { c.Admin = admin }
}

func withWWWRoot(dir string) serverOption {
	return func(c *Config, _ *app.LoopConfig) { c.WWWRoot = dir }
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	application := app.NewApplication(newTownGame(t), app.Options{Rand: rand.New(rand.NewSource(1))})

	reg := prometheus.NewRegistry()
	repo := records.NewMemoryRepo()
	store := storage.NewMemoryStore()
	cfg := Config{Records: repo, Registerer: reg, Gatherer: reg}
	loopCfg := app.LoopConfig{Store: store, Metrics: app.NewLoopMetrics(reg)}
	for _, opt := range opts {
		opt(&cfg, &loopCfg)
	}

	loop := app.NewLoop(application, loopCfg)
	ctx, cancel := context.WithCancel(context.Background())
	loop.Start(ctx)
	t.Cleanup(func() {
		_ = loop.Stop(context.Background())
		cancel()
	})

	cfg.Loop = loop
	return &testServer{rs: NewRestServer(cfg), loop: loop, records: repo, store: store}
}

func (ts *testServer) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	ts.rs.Handler().ServeHTTP(w, req)
	return w
}

func (ts *testServer) join(t *testing.T, name, mapID string) JoinResponse {
	t.Helper()
	w := ts.do(http.MethodPost, "/api/v1/game/join", `{"userName":"`+name+`","mapId":"`+mapID+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp JoinResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func bearer(token string) []string {
	return []string{"Authorization", "Bearer " + token}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestMaps(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/v1/maps", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.JSONEq(t, `[{"id":"town","name":"Town"},{"id":"park","name":"Park"}]`, w.Body.String())

	w = ts.do(http.MethodGet, "/api/v1/maps/town", "")
	require.Equal(t, http.StatusOK, w.Code)
	var details map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &details))
	assert.Equal(t, "town", details["id"])
	assert.Len(t, details["roads"], 1)
	assert.Len(t, details["buildings"], 1)
	assert.Len(t, details["offices"], 1)
	assert.Len(t, details["lootTypes"], 1)
	road := details["roads"].([]any)[0].(map[string]any)
	assert.EqualValues(t, 10, road["x1"])
	assert.NotContains(t, road, "y1")

	w = ts.do(http.MethodHead, "/api/v1/maps/town", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodGet, "/api/v1/maps/moon", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ErrorResponse{Code: "mapNotFound", Message: "Map not found"}, decodeError(t, w))
}

func TestInvalidMethod(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		method, path, allow string
	}{
		{http.MethodPost, "/api/v1/maps", "GET, HEAD"},
		{http.MethodDelete, "/api/v1/maps/town", "GET, HEAD"},
		{http.MethodGet, "/api/v1/game/join", "POST"},
		{http.MethodPost, "/api/v1/game/state", "GET, HEAD"},
		{http.MethodGet, "/api/v1/game/player/action", "POST"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			// без токена: метод проверяется первым
			w := ts.do(tt.method, tt.path, "")
			assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
			assert.Equal(t, tt.allow, w.Header().Get("Allow"))
			assert.Equal(t, "invalidMethod", decodeError(t, w).Code)
		})
	}
}

func TestJoin(t *testing.T) {
	ts := newTestServer(t)

	first := ts.join(t, "Rex", "town")
	assert.True(t, app.IsWellFormedToken(first.AuthToken))
	assert.Equal(t, uint64(1), first.PlayerID)

	second := ts.join(t, "Bim", "town")
	assert.Equal(t, uint64(2), second.PlayerID)
	assert.NotEqual(t, first.AuthToken, second.AuthToken)

	tests := []struct {
		name    string
		body    string
		status  int
		code    string
		message string
	}{
		{"битый JSON", `{"userName":`, http.StatusBadRequest, "invalidArgument", "Join game request parse error"},
		{"нет карты", `{"userName":"Rex"}`, http.StatusBadRequest, "invalidArgument", "Join game request parse error"},
		{"пустое имя", `{"userName":"","mapId":"town"}`, http.StatusBadRequest, "invalidArgument", "Invalid name"},
		{"пустая карта", `{"userName":"Rex","mapId":""}`, http.StatusBadRequest, "invalidArgument", "Invalid map"},
		{"неизвестная карта", `{"userName":"Rex","mapId":"moon"}`, http.StatusNotFound, "mapNotFound", "Map not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(http.MethodPost, "/api/v1/game/join", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, ErrorResponse{Code: tt.code, Message: tt.message}, decodeError(t, w))
		})
	}

	t.Run("без Content-Type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/game/join", strings.NewReader(`{"userName":"Rex","mapId":"town"}`))
		w := httptest.NewRecorder()
		ts.rs.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, ErrorResponse{Code: "invalidArgument", Message: "Invalid content type"}, decodeError(t, w))
	})
}

func TestPlayerTokenChecks(t *testing.T) {
	ts := newTestServer(t)
	rex := ts.join(t, "Rex", "town")

	w := ts.do(http.MethodGet, "/api/v1/game/players", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalidToken", decodeError(t, w).Code)

	w = ts.do(http.MethodGet, "/api/v1/game/players", "", bearer("short")...)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalidToken", decodeError(t, w).Code)

	w = ts.do(http.MethodGet, "/api/v1/game/state", "", bearer(strings.Repeat("0", 32))...)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, ErrorResponse{Code: "unknownToken", Message: "Player token has not been found"}, decodeError(t, w))

	// токены выдаются строчными, верхний регистр - неверный формат
	w = ts.do(http.MethodGet, "/api/v1/game/state", "", bearer(strings.ToUpper(rex.AuthToken))...)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalidToken", decodeError(t, w).Code)
}

func TestPlayersSeeOnlyTheirSession(t *testing.T) {
	ts := newTestServer(t)
	rex := ts.join(t, "Rex", "town")
	ts.join(t, "Bim", "town")
	ts.join(t, "Sharik", "park")

	w := ts.do(http.MethodGet, "/api/v1/game/players", "", bearer(rex.AuthToken)...)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"1":{"name":"Rex"},"2":{"name":"Bim"}}`, w.Body.String())
}

func TestActionTickAndState(t *testing.T) {
	ts := newTestServer(t)
	rex := ts.join(t, "Rex", "town")
	hdr := bearer(rex.AuthToken)

	w := ts.do(http.MethodPost, "/api/v1/game/player/action", `{"move":"R"}`, hdr...)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{}`, w.Body.String())

	w = ts.do(http.MethodPost, "/api/v1/game/tick", `{"timeDelta":2000}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(http.MethodGet, "/api/v1/game/state", "", hdr...)
	require.Equal(t, http.StatusOK, w.Code)
	var state GameState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	dog := state.Players["1"]
	assert.InDelta(t, 2.0, dog.Pos[0], 1e-9)
	assert.InDelta(t, 0.0, dog.Pos[1], 1e-9)
	assert.Equal(t, [2]float64{1, 0}, dog.Speed)
	assert.Equal(t, "R", dog.Dir)
	assert.Empty(t, dog.Bag)
	assert.Empty(t, state.LostObjects)

	// неизвестная команда останавливает собаку
	w = ts.do(http.MethodPost, "/api/v1/game/player/action", `{"move":"X"}`, hdr...)
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(http.MethodGet, "/api/v1/game/state", "", hdr...)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, [2]float64{0, 0}, state.Players["1"].Speed)
	assert.Equal(t, "R", state.Players["1"].Dir)

	w = ts.do(http.MethodPost, "/api/v1/game/player/action", `{"move":5}`, hdr...)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrorResponse{Code: "invalidArgument", Message: "Failed to parse action"}, decodeError(t, w))
}

func TestTickValidation(t *testing.T) {
	ts := newTestServer(t)

	for _, body := range []string{
		`{}`,
		`{"timeDelta":"10"}`,
		`{"timeDelta":-1}`,
		`{"timeDelta":1.5}`,
		`{"timeDelta":9300000000000}`,
	} {
		w := ts.do(http.MethodPost, "/api/v1/game/tick", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, ErrorResponse{Code: "invalidArgument", Message: "Failed to parse tick request JSON"}, decodeError(t, w))
	}

	// наибольший допустимый шаг
	w := ts.do(http.MethodPost, "/api/v1/game/tick", `{"timeDelta":9223372036854}`)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestTickDisabledInPeriodicMode(t *testing.T) {
	ts := newTestServer(t, withTickPeriod(time.Hour))

	w := ts.do(http.MethodPost, "/api/v1/game/tick", `{"timeDelta":100}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrorResponse{Code: "badRequest", Message: "Invalid endpoint"}, decodeError(t, w))
}

func TestRecords(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, ts.records.Upsert(ctx, records.Record{DogID: 1, Name: "Rex", Score: 10}))
	require.NoError(t, ts.records.Upsert(ctx, records.Record{DogID: 2, Name: "Bim", Score: 50}))

	w := ts.do(http.MethodGet, "/api/v1/game/records", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []records.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "Bim", list[0].Name)

	w = ts.do(http.MethodGet, "/api/v1/game/records?start=1&maxItems=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Rex", list[0].Name)

	w = ts.do(http.MethodGet, "/api/v1/game/records?maxItems=101", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalidArgument", decodeError(t, w).Code)

	w = ts.do(http.MethodGet, "/api/v1/game/records?start=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdmin(t *testing.T) {
	ts := newTestServer(t, withAdmin(t, "s3cret"))
	ts.join(t, "Rex", "town")

	w := ts.do(http.MethodPost, "/api/v1/admin/login", `{"username":"admin","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalidCredentials", decodeError(t, w).Code)

	w = ts.do(http.MethodPost, "/api/v1/admin/login", `{"username":"admin"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPost, "/api/v1/admin/login", `{"username":"Admin","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)

	w = ts.do(http.MethodGet, "/api/v1/admin/stats", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = ts.do(http.MethodGet, "/api/v1/admin/stats", "", bearer("garbage")...)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodGet, "/api/v1/admin/stats", "", bearer(login.Token)...)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var stats struct {
		World  WorldStats   `json:"world"`
		Server ProcessStats `json:"server"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, WorldStats{Dogs: 1, Sessions: 1, Maps: 2}, stats.World)
	assert.NotEmpty(t, stats.Server.Uptime)

	_, err := ts.store.Load(context.Background())
	require.ErrorIs(t, err, storage.ErrStateNotFound)

	w = ts.do(http.MethodPost, "/api/v1/admin/save", "", bearer(login.Token)...)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data, err := ts.store.Load(context.Background())
	require.NoError(t, err)
	snap, err := storage.DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Len(t, snap.Players.Dogs, 1)
}

func TestAdminDisabled(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/v1/admin/login", `{"username":"admin","password":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodPost, "/api/v1/admin/save", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFallbackRoutes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("<h1>dogs</h1>"), 0o644))
	ts := newTestServer(t, withWWWRoot(dir))

	w := ts.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = ts.do(http.MethodGet, "/api/v2/nothing", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrorResponse{Code: "badRequest", Message: "Invalid endpoint"}, decodeError(t, w))

	w = ts.do(http.MethodGet, "/app.js", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dogs")

	w = ts.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dogs_http_requests_total")
}

func TestStartStop(t *testing.T) {
	ts := newTestServer(t)
	ts.rs.addr = "127.0.0.1:0"
	require.NoError(t, ts.rs.Start())
	assert.NoError(t, ts.rs.Stop(context.Background()))
}
