package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arlstone/orrery/internal/engine"
	"github.com/arlstone/orrery/internal/persistence"
	"github.com/arlstone/orrery/internal/planet"
	"github.com/arlstone/orrery/internal/resource"
)

const testAdminKey = "test-admin-key"

func testPlanets() []*planet.Planet {
	alba := planet.New("alba", planet.State{
		Gravity:  1.0,
		Distance: 100,
		Period:   365,
		Endowment: resource.Vector{
			resource.Water:      4e12,
			resource.Food:       4e12,
			resource.Energy:     4e12,
			resource.Population: 1000,
		},
	})
	base := planet.DefaultBaseline()
	for _, kind := range resource.Consumables() {
		alba.Available[kind] = base.PerCapita(kind) * 1000 * 2
	}

	brine := planet.New("brine", planet.State{
		Gravity:   1.6,
		Distance:  250,
		Period:    1443,
		Endowment: resource.Vector{resource.Population: 0},
	})
	return []*planet.Planet{alba, brine}
}

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()

	sim := engine.NewSimulation(testPlanets(), planet.DefaultBaseline(), planet.DefaultTuning())

	db, err := persistence.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.EnsureRunID()
	require.NoError(t, err)

	s := &Server{
		Sim:      sim,
		Run:      engine.NewRunner(sim),
		DB:       db,
		Name:     "harrow-test",
		Port:     0,
		AdminKey: testAdminKey,
	}
	return s, s.Handler()
}

func doRequest(handler http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestStatusEndpoint(t *testing.T) {
	_, handler := newTestServer(t)

	rec := doRequest(handler, http.MethodGet, "/api/v1/status", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))

	assert.Equal(t, "harrow-test", status["name"])
	assert.Equal(t, float64(0), status["day"])
	assert.Equal(t, true, status["alive"])
	assert.Equal(t, float64(1000), status["population"])
	assert.Equal(t, "Year 1, Day 1", status["sim_date"])
}

func TestPlanetsEndpoint(t *testing.T) {
	_, handler := newTestServer(t)

	rec := doRequest(handler, http.MethodGet, "/api/v1/planets", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var planets []engine.PlanetReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &planets))

	require.Len(t, planets, 2)
	assert.Equal(t, "alba", planets[0].Name)
	assert.True(t, planets[0].Alive)
	assert.Equal(t, "brine", planets[1].Name)
	assert.False(t, planets[1].Alive)
}

func TestPlanetDetail(t *testing.T) {
	_, handler := newTestServer(t)

	rec := doRequest(handler, http.MethodGet, "/api/v1/planet/alba", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var rep engine.InspectReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, "alba", rep.Planet.Name)
	assert.Nil(t, rep.Other)

	rec = doRequest(handler, http.MethodGet, "/api/v1/planet/alba?other=brine", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	require.NotNil(t, rep.Other)
	assert.Greater(t, rep.Distance, 0.0)

	rec = doRequest(handler, http.MethodGet, "/api/v1/planet/ghost", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCommandRequiresAuth(t *testing.T) {
	_, handler := newTestServer(t)
	body := `{"action":"advance","days":1}`

	rec := doRequest(handler, http.MethodPost, "/api/v1/command", body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(handler, http.MethodPost, "/api/v1/command", body, "wrong-key")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(handler, http.MethodPost, "/api/v1/command", body, testAdminKey)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCommandDisabledWithoutKey(t *testing.T) {
	s, _ := newTestServer(t)
	s.AdminKey = ""
	handler := s.Handler()

	rec := doRequest(handler, http.MethodPost, "/api/v1/command",
		`{"action":"advance","days":1}`, "anything")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCommandAdvance(t *testing.T) {
	s, handler := newTestServer(t)

	rec := doRequest(handler, http.MethodPost, "/api/v1/command",
		`{"action":"advance","days":5}`, testAdminKey)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(5), resp["day"])
	assert.Equal(t, true, resp["alive"])
	assert.Equal(t, uint64(5), s.Sim.Day)

	rec = doRequest(handler, http.MethodPost, "/api/v1/command",
		`{"action":"advance","days":0}`, testAdminKey)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "out of range")
}

func TestCommandTransferAndList(t *testing.T) {
	s, handler := newTestServer(t)

	rec := doRequest(handler, http.MethodPost, "/api/v1/command",
		`{"action":"transfer","resource":"water","amount":365,"from":"alba","to":"brine"}`,
		testAdminKey)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alba")
	assert.Equal(t, 1, s.Sim.Ledger.Count())

	rec = doRequest(handler, http.MethodPost, "/api/v1/command",
		`{"action":"transfer","resource":"gold","amount":10,"from":"alba","to":"brine"}`,
		testAdminKey)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid command")

	rec = doRequest(handler, http.MethodGet, "/api/v1/transfers", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"from": "alba"`)
}

func TestCommandUnknownAction(t *testing.T) {
	_, handler := newTestServer(t)

	rec := doRequest(handler, http.MethodPost, "/api/v1/command",
		`{"action":"terraform"}`, testAdminKey)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown action")
}

func TestSpeedEndpoint(t *testing.T) {
	s, handler := newTestServer(t)

	rec := doRequest(handler, http.MethodGet, "/api/v1/speed", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"speed": 1`)

	rec = doRequest(handler, http.MethodPost, "/api/v1/speed", `{"speed":3}`, testAdminKey)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3.0, s.Run.Speed)

	rec = doRequest(handler, http.MethodPost, "/api/v1/speed", `{"speed":-1}`, testAdminKey)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 3.0, s.Run.Speed)
}

func TestEventsFilters(t *testing.T) {
	s, handler := newTestServer(t)
	s.Sim.EmitEvent(engine.Event{Day: 1, Description: "alba thrives", Category: "milestone"})
	s.Sim.EmitEvent(engine.Event{Day: 2, Description: "flow opened to brine", Category: "transfer"})
	s.Sim.EmitEvent(engine.Event{Day: 3, Description: "alba dims", Category: "milestone"})

	rec := doRequest(handler, http.MethodGet, "/api/v1/events?category=transfer", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var events []engine.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "transfer", events[0].Category)

	rec = doRequest(handler, http.MethodGet, "/api/v1/events?planet=alba", "", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	assert.Len(t, events, 2)
}

func TestStatsHistoryEndpoint(t *testing.T) {
	s, handler := newTestServer(t)
	for day := uint64(1); day <= 4; day++ {
		require.NoError(t, s.DB.SaveStats(engine.SimStats{Day: day, AlivePlanets: 1}))
	}

	rec := doRequest(handler, http.MethodGet, "/api/v1/stats/history?from=2&limit=2", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var hist []engine.SimStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	require.Len(t, hist, 2)
	assert.Equal(t, uint64(2), hist[0].Day)
}

func TestSnapshotEndpoint(t *testing.T) {
	s, handler := newTestServer(t)
	s.Sim.AdvanceDay()

	rec := doRequest(handler, http.MethodPost, "/api/v1/snapshot", "", testAdminKey)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stored")

	n, err := s.DB.VerifyChain()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStreamSendsCatchUp(t *testing.T) {
	s, handler := newTestServer(t)
	s.Sim.EmitEvent(engine.Event{Day: 1, Description: "flow opened", Category: "transfer"})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")
	assert.Contains(t, body, "event: transfer")
	assert.Contains(t, body, "flow opened")
}

func TestCORSPreflight(t *testing.T) {
	_, handler := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/status", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimitKicksIn(t *testing.T) {
	_, handler := newTestServer(t)

	limited := 0
	for i := 0; i < 30; i++ {
		rec := doRequest(handler, http.MethodGet, "/api/v1/status", "", "")
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Greater(t, limited, 0)
}
