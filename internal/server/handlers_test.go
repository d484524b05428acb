package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/meltforce/run5k/internal/assetcache"
	"github.com/meltforce/run5k/internal/models"
	"github.com/meltforce/run5k/internal/plan"
	"github.com/meltforce/run5k/internal/progress"
	"github.com/meltforce/run5k/internal/timer"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testServer struct {
	*Server
	clock  *timer.ManualClock
	events *EventLog
	store  *progress.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := discardLogger()
	catalog := plan.Default()
	events := NewEventLog(0)
	store := progress.New(progress.NewMemoryKV(), catalog.Len(), log)
	store.Subscribe(events.ProgressCounter)
	store.Load(context.Background())

	clock := timer.NewManualClock()
	ctrl := timer.NewController(timer.Config{
		Clock:    clock,
		Display:  events,
		Cues:     events,
		WakeLock: timer.NewWakeLock(events, log),
		Tracker:  store,
		Log:      log,
	})
	return &testServer{
		Server: New(catalog, store, ctrl, events, log),
		clock:  clock,
		events: events,
		store:  store,
	}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode error: %v", err)
	}
}

// TestHandleMeDefault verifies the /api/v1/me endpoint returns the dev user
// identity when no Tailscale client is configured.
func TestHandleMeDefault(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/v1/me", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var info UserInfo
	decode(t, rec, &info)
	if info.Login != "local" {
		t.Errorf("login = %q, want %q", info.Login, "local")
	}
}

// TestHandleWorkouts verifies the catalog is listed with completion flags.
func TestHandleWorkouts(t *testing.T) {
	ts := newTestServer(t)
	ts.store.MarkCompleted(context.Background(), 2)

	rec := ts.do(t, http.MethodGet, "/api/v1/workouts", "")
	var workouts []models.Workout
	decode(t, rec, &workouts)
	if len(workouts) != 24 {
		t.Fatalf("workouts = %d, want 24", len(workouts))
	}
	if !workouts[2].Completed || workouts[1].Completed {
		t.Errorf("completion flags wrong: %+v %+v", workouts[1], workouts[2])
	}
	if workouts[23].Kind != models.KindDistance {
		t.Errorf("last workout kind = %q, want distance", workouts[23].Kind)
	}
}

// TestHandleToggleProgress verifies toggling flips completion and reports
// the updated summary.
func TestHandleToggleProgress(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/progress/4/toggle", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var change progressChange
	decode(t, rec, &change)
	if !change.Completed || change.Progress.Count != 1 || change.Progress.Total != 24 {
		t.Errorf("change = %+v", change)
	}

	rec = ts.do(t, http.MethodPost, "/api/v1/progress/4/toggle", "")
	decode(t, rec, &change)
	if change.Completed || change.Progress.Count != 0 {
		t.Errorf("second toggle = %+v", change)
	}
}

// TestHandleCompleteProgressIdempotent verifies repeated completion is
// reported as unchanged.
func TestHandleCompleteProgressIdempotent(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/progress/7/complete", "")
	rec := ts.do(t, http.MethodPost, "/api/v1/progress/7/complete", "")

	var change progressChange
	decode(t, rec, &change)
	if change.Changed || change.Progress.Count != 1 {
		t.Errorf("change = %+v", change)
	}
}

// TestHandleProgressBadIndex verifies malformed and out-of-range indices.
func TestHandleProgressBadIndex(t *testing.T) {
	ts := newTestServer(t)
	if rec := ts.do(t, http.MethodPost, "/api/v1/progress/abc/toggle", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("non-numeric index status = %d, want 400", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, "/api/v1/progress/24/complete", ""); rec.Code != http.StatusNotFound {
		t.Errorf("out-of-range index status = %d, want 404", rec.Code)
	}
}

// TestHandleRunnerName verifies the name is stored and blank names are
// ignored.
func TestHandleRunnerName(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPut, "/api/v1/preferences/name", `{"name":"  Ana "}`)
	var prefs models.Preferences
	decode(t, rec, &prefs)
	if prefs.RunnerName != "Ana" {
		t.Errorf("runner_name = %q, want %q", prefs.RunnerName, "Ana")
	}

	ts.do(t, http.MethodPut, "/api/v1/preferences/name", `{"name":"   "}`)
	rec = ts.do(t, http.MethodGet, "/api/v1/preferences", "")
	decode(t, rec, &prefs)
	if prefs.RunnerName != "Ana" {
		t.Errorf("blank name overwrote: %q", prefs.RunnerName)
	}

	if rec := ts.do(t, http.MethodPut, "/api/v1/preferences/name", `{`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad JSON status = %d, want 400", rec.Code)
	}
}

// TestSessionCommandFlow drives select, toggle and ticks through the HTTP
// surface and checks the event log the frontend polls.
func TestSessionCommandFlow(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/session/commands/select", `{"index":0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("select status = %d: %s", rec.Code, rec.Body.String())
	}
	var res timer.Result
	decode(t, rec, &res)
	if res.Session.State != timer.StatePaused || res.Session.TotalReps != 8 || res.Session.Clock != "01:00" {
		t.Errorf("select session = %+v", res.Session)
	}

	body := `{"session_id":"` + res.Session.SessionID + `"}`
	rec = ts.do(t, http.MethodPost, "/api/v1/session/commands/toggle", body)
	decode(t, rec, &res)
	if res.Session.State != timer.StateRunning {
		t.Fatalf("toggle state = %q", res.Session.State)
	}

	ts.clock.Tick(61)

	rec = ts.do(t, http.MethodGet, "/api/v1/session", "")
	var snap timer.Snapshot
	decode(t, rec, &snap)
	if snap.Phase != timer.PhaseWalk || snap.PhaseLabel != timer.LabelWalk {
		t.Errorf("session after run phase = %+v", snap)
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/session/events?since=0", "")
	var ev eventsResponse
	decode(t, rec, &ev)
	kinds := map[string]int{}
	var cues []timer.Cue
	for _, e := range ev.Events {
		kinds[e.Kind]++
		if e.Kind == EventCue {
			cues = append(cues, e.Cue)
		}
	}
	if kinds[EventPrime] != 3 || kinds[EventWakeLock] != 1 {
		t.Errorf("event kinds = %v", kinds)
	}
	if len(cues) != 2 || cues[0] != timer.CueStart || cues[1] != timer.CueWalk {
		t.Errorf("cues = %v, want [start walk]", cues)
	}
	if ev.Next != ev.Events[len(ev.Events)-1].Seq {
		t.Errorf("next = %d, want last seq", ev.Next)
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/session/events?since="+strconv.FormatUint(ev.Next, 10), "")
	decode(t, rec, &ev)
	if len(ev.Events) != 0 {
		t.Errorf("events after next = %d, want 0", len(ev.Events))
	}
}

// TestSessionCommandErrors verifies error mapping for commands.
func TestSessionCommandErrors(t *testing.T) {
	ts := newTestServer(t)

	if rec := ts.do(t, http.MethodPost, "/api/v1/session/commands/explode", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown command status = %d, want 404", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, "/api/v1/session/commands/toggle", ""); rec.Code != http.StatusConflict {
		t.Errorf("toggle without session status = %d, want 409", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, "/api/v1/session/commands/select", `{"index":99}`); rec.Code != http.StatusNotFound {
		t.Errorf("select unknown index status = %d, want 404", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, "/api/v1/session/commands/select", `{"index":0,"text":"alongamento"}`); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("select free text without pattern status = %d, want 422", rec.Code)
	}

	ts.do(t, http.MethodPost, "/api/v1/session/commands/select", `{"index":0}`)
	if rec := ts.do(t, http.MethodPost, "/api/v1/session/commands/select", `{"index":1}`); rec.Code != http.StatusConflict {
		t.Errorf("second select status = %d, want 409", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, "/api/v1/session/commands/reset", `{"session_id":"stale"}`); rec.Code != http.StatusConflict {
		t.Errorf("stale reset status = %d, want 409", rec.Code)
	}
}

// TestSelectDistanceWorkout verifies the final distance workout completes
// without a timer.
func TestSelectDistanceWorkout(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/v1/session/commands/select", `{"index":23}`)
	var res timer.Result
	decode(t, rec, &res)
	if res.Selected == nil || !res.Selected.Completed || res.Selected.Kind != models.KindDistance {
		t.Errorf("selected = %+v", res.Selected)
	}
	if !ts.store.Progress().Has(23) {
		t.Error("distance workout not completed")
	}
}

// TestHandleEventsBadSince verifies the since parameter is validated.
func TestHandleEventsBadSince(t *testing.T) {
	ts := newTestServer(t)
	if rec := ts.do(t, http.MethodGet, "/api/v1/session/events?since=-1", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// TestHandleCacheUnconfigured verifies the cache endpoint without a manager.
func TestHandleCacheUnconfigured(t *testing.T) {
	ts := newTestServer(t)
	if rec := ts.do(t, http.MethodGet, "/api/v1/cache", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func testWebFS() fstest.MapFS {
	return fstest.MapFS{
		"index.html": {Data: []byte("<html>run5k</html>")},
		"style.css":  {Data: []byte("body{}")},
		"app.js":     {Data: []byte("console.log(1)")},
	}
}

// TestFrontendThroughCache verifies the SPA is served through an installed
// asset cache and that the cache endpoint reports it.
func TestFrontendThroughCache(t *testing.T) {
	ts := newTestServer(t)
	webFS := testWebFS()
	frontend := FrontendHandler(webFS)
	mgr := assetcache.New(assetcache.NewMemoryStorage(), assetcache.HandlerFetcher{Handler: frontend},
		assetcache.Manifest{Name: "projeto-5km-cache", Version: "v1", Assets: []string{"/", "/index.html", "/style.css"}},
		assetcache.Options{}, discardLogger())
	ctx := context.Background()
	if err := mgr.Install(ctx); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if _, err := mgr.Activate(ctx); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	ts.SetFrontend(webFS, mgr)

	webFS["style.css"] = &fstest.MapFile{Data: []byte("body{color:red}")}
	rec := ts.do(t, http.MethodGet, "/style.css", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "body{}" {
		t.Errorf("style.css = %d %q, want cached copy", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/plan/week/3", "")
	if !strings.Contains(rec.Body.String(), "run5k") {
		t.Errorf("SPA fallback body = %q", rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/nope", "")
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Header().Get("Content-Type"), "json") {
		t.Errorf("unknown API route = %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/cache", "")
	var status cacheStatus
	decode(t, rec, &status)
	if status.Current != "projeto-5km-cache-v1" || !status.Installed || !status.Claimed || len(status.Caches) != 1 {
		t.Errorf("cache status = %+v", status)
	}
}

// installedFrontend serves testWebFS through an installed cache whose
// manifest holds only the index.
func installedFrontend(t *testing.T) (*testServer, assetcache.Cache) {
	t.Helper()
	ts := newTestServer(t)
	webFS := testWebFS()
	st := assetcache.NewMemoryStorage()
	mgr := assetcache.New(st, assetcache.HandlerFetcher{Handler: FrontendHandler(webFS)},
		assetcache.Manifest{Name: "projeto-5km-cache", Version: "v1", Assets: []string{"/", "/index.html"}},
		assetcache.Options{}, discardLogger())
	if err := mgr.Install(context.Background()); err != nil {
		t.Fatalf("Install: %v", err)
	}
	ts.SetFrontend(webFS, mgr)
	cache, err := st.Open(context.Background(), mgr.CacheName())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return ts, cache
}

// TestFrontendFallbackNotCached verifies that SPA routes answered with
// index.html are served but never stored, so arbitrary URLs cannot grow
// the cache.
func TestFrontendFallbackNotCached(t *testing.T) {
	ts, cache := installedFrontend(t)

	for i := 0; i < 100; i++ {
		rec := ts.do(t, http.MethodGet, "/x?n="+strconv.Itoa(i), "")
		if rec.Code != http.StatusOK || rec.Body.String() != "<html>run5k</html>" {
			t.Fatalf("GET /x?n=%d = %d %q", i, rec.Code, rec.Body.String())
		}
		if rec.Header().Get(assetcache.FallbackHeader) != "" {
			t.Fatal("fallback marker leaked to the client")
		}
	}

	if n, _ := cache.Len(context.Background()); n != 2 {
		t.Errorf("cache entries = %d, want 2 (manifest only)", n)
	}

	ts.do(t, http.MethodGet, "/app.js", "")
	if n, _ := cache.Len(context.Background()); n != 3 {
		t.Errorf("cache entries after real asset = %d, want 3", n)
	}
}

// TestFrontendRangedRequest verifies a ranged request for an uncached
// asset does not leave a partial body behind for later plain requests.
func TestFrontendRangedRequest(t *testing.T) {
	ts, cache := installedFrontend(t)

	req := httptest.NewRequest(http.MethodGet, "/app.js", nil)
	req.Header.Set("Range", "bytes=0-2")
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, req)
	if rec.Code == http.StatusPartialContent {
		t.Errorf("ranged miss = %d %q, want the full asset", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/app.js", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "console.log(1)" {
		t.Errorf("plain GET after ranged = %d %q, want 200 full body", rec.Code, rec.Body.String())
	}
	stored, ok, err := cache.Match(context.Background(), "/app.js")
	if err != nil || !ok || stored.Status != http.StatusOK || string(stored.Body) != "console.log(1)" {
		t.Errorf("stored /app.js = %+v, %v, %v", stored, ok, err)
	}
}

// TestFrontendHandlerIndex verifies index.html is served in place.
func TestFrontendHandlerIndex(t *testing.T) {
	h := FrontendHandler(testWebFS())
	for _, p := range []string{"/", "/index.html"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, p, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != "<html>run5k</html>" {
			t.Errorf("%s = %d %q", p, rec.Code, rec.Body.String())
		}
	}
}
