package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/LuckyMachines/hivemind/internal/config"
	"github.com/LuckyMachines/hivemind/internal/events"
	"github.com/LuckyMachines/hivemind/internal/game"
	"github.com/LuckyMachines/hivemind/internal/question"
	"github.com/LuckyMachines/hivemind/internal/randomness"
	"github.com/LuckyMachines/hivemind/internal/round"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	srv   *Server
	ctrl  *game.Controller
	clock *testClock
	bus   *events.Bus
}

func newFixture(t *testing.T, cfg config.Config) fixture {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	bus := events.NewBus()
	ctrl, err := game.NewController(context.Background(), game.Options{
		Admin: cfg.AdminID,
		Policy: round.Policy{
			SubmissionPoints:    cfg.SubmissionPoints,
			FastRevealPoints:    cfg.FastRevealPoints,
			WinningChoicePoints: cfg.WinningChoicePoints,
			CollectWindow:       time.Duration(cfg.CollectDurationSeconds) * time.Second,
			RevealWindow:        time.Duration(cfg.RevealDurationSeconds) * time.Second,
		},
		PrizeCutoff:   cfg.PrizeCutoff,
		PrizeAmounts:  cfg.PrizeAmounts,
		LobbyCapacity: cfg.LobbyCapacity,
		MinPlayers:    cfg.MinPlayers,
		Questions: question.NewPack(
			question.Question{Text: "Best breakfast?", Choices: [4]string{"Eggs", "Pancakes", "Cereal", "Nothing"}},
		),
		Randomness: randomness.Fixed{},
		Notifier:   bus,
		Now:        clock.Now,
	})
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	srv := New(ctrl, bus, nil, cfg, nil)
	t.Cleanup(srv.Close)
	return fixture{srv: srv, ctrl: ctrl, clock: clock, bus: bus}
}

// unlimited disables rate limiting so flows can issue many writes.
func unlimited() config.Config {
	cfg := config.Default()
	cfg.RateLimitPerSecond = 0
	return cfg
}

func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test; listen unavailable: %v", err)
	}
	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	ts.Start()
	return ts
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

func startGame(t *testing.T, handler http.Handler, players ...string) uint64 {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/api/games", map[string]any{"players": players})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start game status %d: %s", rec.Code, rec.Body.String())
	}
	var info game.Info
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode game: %v", err)
	}
	return info.ID
}
