package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	apirest "github.com/kasuganosora/nightwatch/api/rest"
	"github.com/kasuganosora/nightwatch/api/sse"
	apiws "github.com/kasuganosora/nightwatch/api/ws"
	"github.com/kasuganosora/nightwatch/archive"
	"github.com/kasuganosora/nightwatch/cache"
	"github.com/kasuganosora/nightwatch/game/ai"
	"github.com/kasuganosora/nightwatch/game/world"
	mw "github.com/kasuganosora/nightwatch/middleware"
	"github.com/kasuganosora/nightwatch/plugin/hook"
	"github.com/kasuganosora/nightwatch/resource"
	"github.com/kasuganosora/nightwatch/scheduler"
	"github.com/kasuganosora/nightwatch/testutil"
)

// AdminKey is the admin key every TestServer accepts.
const AdminKey = "integration-admin-key"

// TestServer wraps a real HTTP server with all subsystems wired together.
// Rooms are manual: tests advance them through POST /api/rooms/:id/step.
type TestServer struct {
	Cache  cache.Cache
	PubSub cache.PubSub
	Hooks  *hook.HookCenter
	Pub    *world.EventPublisher
	Arch   *archive.Service
	WM     *world.WorldManager
	Sched  *scheduler.Scheduler
	Server *httptest.Server
	URL    string // http://127.0.0.1:<port>
	WSURL  string // ws://127.0.0.1:<port>
}

// NewTestServer creates a fully wired server over levels. It mirrors the
// dependency wiring in main.go.
func NewTestServer(t *testing.T, pursuit ai.Config, levels ...*resource.Level) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	logger := testutil.Logger(t)
	c, ps := testutil.SetupTestCache(t)
	hooks := hook.NewHookCenter()
	arch := archive.New(testutil.SetupTestDB(t), logger)
	arch.Register(hooks)
	pub := world.NewEventPublisher(c, ps, hooks, world.PublisherConfig{CaughtCooldown: time.Minute}, logger)

	cfg := world.RoomConfig{Tick: 100 * time.Millisecond, Pursuit: pursuit, Seed: 42, Manual: true}
	wm := world.NewWorldManager(ctx, testutil.Loader(levels...), cfg, pub, hooks, logger)
	require.NoError(t, wm.StartAll())

	sched := scheduler.New(logger)
	sched.AddTicker("room-report", time.Hour, wm.Report)

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(ctx, rate.Limit(1000), 2000))
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := r.Group("/api")
	apirest.NewRoomHandler(wm, logger).Register(api)
	apirest.NewAdminHandler(wm, hooks, sched, arch, logger).Register(api, AdminKey)
	api.GET("/rooms/:id/stream", sse.NewHandler(ps, wm, 0, logger).ServeSSE)
	r.GET("/ws/rooms/:id", apiws.NewHandler(wm, ps, nil, logger).ServeWS)

	server := httptest.NewServer(r)
	ts := &TestServer{
		Cache:  c,
		PubSub: ps,
		Hooks:  hooks,
		Pub:    pub,
		Arch:   arch,
		WM:     wm,
		Sched:  sched,
		Server: server,
		URL:    server.URL,
		WSURL:  "ws" + server.URL[len("http"):],
	}
	t.Cleanup(func() {
		server.Close()
		wm.StopAll()
		_ = pub.Stop(context.Background())
		_ = arch.Stop(context.Background())
		sched.Stop()
		cancel()
	})
	return ts
}

// Do sends a JSON request and returns the response. body may be nil.
func (ts *TestServer) Do(t *testing.T, method, path string, body any, headers ...string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// Get is Do with GET and no body.
func (ts *TestServer) Get(t *testing.T, path string, headers ...string) *http.Response {
	t.Helper()
	return ts.Do(t, http.MethodGet, path, nil, headers...)
}

// Step advances a manual room by n ticks and returns its snapshot.
func (ts *TestServer) Step(t *testing.T, room string, n int) world.RoomSnapshot {
	t.Helper()
	resp := ts.Do(t, http.MethodPost, "/api/rooms/"+room+"/step", map[string]int{"ticks": n})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap world.RoomSnapshot
	ReadJSON(t, resp, &snap)
	return snap
}

// Patch applies an intruder patch and fails on a non-200 reply.
func (ts *TestServer) Patch(t *testing.T, room string, patch map[string]any) {
	t.Helper()
	resp := ts.Do(t, http.MethodPatch, "/api/rooms/"+room+"/intruder", patch)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

// Events returns up to limit stored events for room, newest first.
func (ts *TestServer) Events(t *testing.T, room string, limit int) []world.Event {
	t.Helper()
	resp := ts.Get(t, "/api/rooms/"+room+"/events?limit="+strconv.Itoa(limit))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Events []world.Event `json:"events"`
	}
	ReadJSON(t, resp, &body)
	return body.Events
}

// ReadJSON decodes the response body into v and closes it.
func ReadJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

