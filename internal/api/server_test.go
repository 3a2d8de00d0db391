package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/starcolony/internal/catalog"
	"github.com/talgya/starcolony/internal/colony"
	"github.com/talgya/starcolony/internal/config"
	"github.com/talgya/starcolony/internal/engine"
	"github.com/talgya/starcolony/internal/metrics"
	"github.com/talgya/starcolony/internal/persistence"
)

const testKey = "secret"

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	m := metrics.New()
	sim, err := engine.NewSimulation(config.Defaults(), cat, engine.WithMetrics(m))
	if err != nil {
		t.Fatalf("simulation: %v", err)
	}
	if err := sim.Found(0); err != nil {
		t.Fatalf("found: %v", err)
	}
	for turn := uint64(1); turn <= 3; turn++ {
		sim.ProcessTurn(turn)
	}
	db, err := persistence.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := &Server{
		Sim:      sim,
		Eng:      engine.NewEngine(),
		DB:       db,
		Metrics:  m,
		AdminKey: testKey,
		Limiter:  NewRateLimiter(1000, 1000),
	}
	return s, s.Handler()
}

func do(t *testing.T, h http.Handler, method, path, body, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatus(t *testing.T) {
	_, h := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/api/v1/status", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["turn"].(float64) != 3 || got["colonies"].(float64) != 3 || got["watchers"].(float64) != 0 {
		t.Fatalf("status = %v", got)
	}
}

func TestColoniesAndDetail(t *testing.T) {
	s, h := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/api/v1/colonies?empire=2", "", "")
	var list []colonySummary
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Vault of Ash" {
		t.Fatalf("empire 2 colonies = %+v", list)
	}

	id := s.Sim.States()[0].ID
	rec = do(t, h, http.MethodGet, "/api/v1/colony/"+itoa(uint64(id)), "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"pops"`) {
		t.Fatalf("detail = %d %s", rec.Code, rec.Body.String())
	}

	cases := []struct {
		path string
		code int
	}{
		{"/api/v1/colony/9999", http.StatusNotFound},
		{"/api/v1/colony/abc", http.StatusBadRequest},
		{"/api/v1/colonies?empire=x", http.StatusBadRequest},
	}
	for _, tc := range cases {
		if rec := do(t, h, http.MethodGet, tc.path, "", ""); rec.Code != tc.code {
			t.Errorf("%s = %d, want %d", tc.path, rec.Code, tc.code)
		}
	}
}

func TestAdminAuth(t *testing.T) {
	s, h := newTestServer(t)
	body := `{"speed": 4}`
	if rec := do(t, h, http.MethodPost, "/api/v1/speed", body, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/speed", body, "wrong"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/speed", body, testKey); rec.Code != http.StatusOK {
		t.Fatalf("valid token = %d", rec.Code)
	}
	if s.Eng.Speed() != 4 {
		t.Fatalf("speed = %v", s.Eng.Speed())
	}

	s.AdminKey = ""
	h = s.Handler()
	if rec := do(t, h, http.MethodPost, "/api/v1/speed", body, testKey); rec.Code != http.StatusForbidden {
		t.Fatalf("disabled admin = %d", rec.Code)
	}
}

func TestResolveRebellion(t *testing.T) {
	s, h := newTestServer(t)
	id := s.Sim.States()[0].ID

	// Not in rebellion yet.
	rec := do(t, h, http.MethodPost, "/api/v1/rebellion/resolve", `{"colony": `+itoa(uint64(id))+`, "stability": 40}`, testKey)
	if rec.Code != http.StatusConflict {
		t.Fatalf("resolve calm colony = %d", rec.Code)
	}

	// Raze the colony's stability and let a turn push it into rebellion.
	e := s.Sim.Empires[0]
	if err := e.Manager.With(id, func(c *colony.Colony) error {
		c.Stability = 0
		c.Morale = 0
		return nil
	}); err != nil {
		t.Fatalf("with: %v", err)
	}
	s.Sim.ProcessTurn(4)
	st, _ := s.Sim.Colony(id)
	if st.Status != colony.StatusRebellion {
		t.Fatalf("status = %s, want rebellion", st.Status)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/rebellion/resolve", `{"colony": `+itoa(uint64(id))+`, "stability": 40}`, testKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve = %d %s", rec.Code, rec.Body.String())
	}
	st, _ = s.Sim.Colony(id)
	if st.Status == colony.StatusRebellion || st.Stability < 40 {
		t.Fatalf("after resolve: status=%s stability=%d", st.Status, st.Stability)
	}

	if rec := do(t, h, http.MethodPost, "/api/v1/rebellion/resolve", `{"colony": 9999}`, testKey); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown colony = %d", rec.Code)
	}
}

func TestInterventions(t *testing.T) {
	s, h := newTestServer(t)
	var src, dst colony.ID
	for _, st := range s.Sim.States() {
		switch st.Name {
		case "New Meridian":
			src = st.ID
		case "Cinder Reach":
			dst = st.ID
		}
	}

	migrate := `{"type":"migrate","colony":` + itoa(uint64(src)) + `,"destination":` + itoa(uint64(dst)) + `,"count":5,"forced":true}`
	if rec := do(t, h, http.MethodPost, "/api/v1/intervention", migrate, testKey); rec.Code != http.StatusOK {
		t.Fatalf("migrate = %d %s", rec.Code, rec.Body.String())
	}
	tooMany := `{"type":"migrate","colony":` + itoa(uint64(src)) + `,"destination":` + itoa(uint64(dst)) + `,"count":100000,"forced":true}`
	if rec := do(t, h, http.MethodPost, "/api/v1/intervention", tooMany, testKey); rec.Code != http.StatusConflict {
		t.Fatalf("over-migrate = %d", rec.Code)
	}

	attack := `{"type":"attack","colony":` + itoa(uint64(dst)) + `,"amount":20,"orbital":true}`
	if rec := do(t, h, http.MethodPost, "/api/v1/intervention", attack, testKey); rec.Code != http.StatusOK {
		t.Fatalf("attack = %d %s", rec.Code, rec.Body.String())
	}

	unknown := `{"type":"construct","colony":` + itoa(uint64(src)) + `,"building":"space_elevator"}`
	if rec := do(t, h, http.MethodPost, "/api/v1/intervention", unknown, testKey); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown building = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/intervention", `{"type":"teleport"}`, testKey); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown type = %d", rec.Code)
	}
}

func TestEventsAndMetrics(t *testing.T) {
	s, h := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/api/v1/events?limit=2", "", "")
	var evs []engine.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &evs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(evs) > 2 {
		t.Fatalf("limit ignored: %d events", len(evs))
	}
	rec = do(t, h, http.MethodGet, "/api/v1/events?kind=no_such_kind", "", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("filtered events = %s", rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "starcolony_turns_total 3") {
		t.Fatalf("metrics = %d", rec.Code)
	}

	if rec := do(t, h, http.MethodPost, "/api/v1/snapshot", "", testKey); rec.Code != http.StatusOK {
		t.Fatalf("snapshot = %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/api/v1/snapshots?verify=1", "", "")
	if !strings.Contains(rec.Body.String(), `"verified": true`) {
		t.Fatalf("snapshots = %s", rec.Body.String())
	}
	_ = s
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestServer(t)
	s.Limiter = NewRateLimiter(1, 2)
	h := s.Handler()
	codes := make([]int, 0, 3)
	for range 3 {
		codes = append(codes, do(t, h, http.MethodGet, "/api/v1/stats", "", "").Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}

	// Another client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("second client = %d", rec.Code)
	}
	if s.Limiter.Len() != 2 {
		t.Fatalf("tracked clients = %d", s.Limiter.Len())
	}
}

func itoa(v uint64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestStream(t *testing.T) {
	s, h := newTestServer(t)
	ts := httptest.NewServer(h)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for watchers(t, h) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("stream never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	s.Sim.ProcessTurn(4)

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var u engine.TurnUpdate
	if err := conn.ReadJSON(&u); err != nil {
		t.Fatalf("read: %v", err)
	}
	if u.Turn != 4 || u.Stats.Colonies == 0 {
		t.Fatalf("update = turn %d, %d colonies", u.Turn, u.Stats.Colonies)
	}
}

func watchers(t *testing.T, h http.Handler) float64 {
	t.Helper()
	var got map[string]any
	if err := json.Unmarshal(do(t, h, http.MethodGet, "/api/v1/status", "", "").Body.Bytes(), &got); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return got["watchers"].(float64)
}
