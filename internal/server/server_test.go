package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/LuckyMachines/hivemind/internal/config"
	"github.com/LuckyMachines/hivemind/internal/game"
	"github.com/LuckyMachines/hivemind/internal/hub"
	"github.com/LuckyMachines/hivemind/internal/round"
	"github.com/LuckyMachines/hivemind/internal/score"
	"github.com/LuckyMachines/hivemind/internal/winners"
)

func TestHealthz(t *testing.T) {
	f := newFixture(t, unlimited())
	rec := doJSON(t, f.srv.Handler(), http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHubsListsTopology(t *testing.T) {
	f := newFixture(t, unlimited())
	rec := doJSON(t, f.srv.Handler(), http.MethodGet, "/api/hubs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	hubs, ok := decodeBody(t, rec)["hubs"].([]any)
	if !ok || len(hubs) != 6 {
		t.Fatalf("expected 6 hubs, got %v", rec.Body.String())
	}
	first := hubs[0].(map[string]any)
	if first["name"] != game.LobbyHub {
		t.Fatalf("expected lobby first, got %v", first["name"])
	}
}

func TestStartGameBindsPlayers(t *testing.T) {
	f := newFixture(t, unlimited())
	handler := f.srv.Handler()
	gameID := startGame(t, handler, "ada", "ben")

	rec := doJSON(t, handler, http.MethodGet, "/api/players/ada/game", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("current game status %d", rec.Code)
	}
	if got := decodeBody(t, rec)["gameId"]; got != float64(gameID) {
		t.Fatalf("expected game %d, got %v", gameID, got)
	}

	rec = doJSON(t, handler, http.MethodGet, fmt.Sprintf("/api/games/%d/round", gameID), nil)
	if got := decodeBody(t, rec)["hub"]; got != game.RoundHubs[0] {
		t.Fatalf("expected %s, got %v", game.RoundHubs[0], got)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/games", map[string]any{"players": []string{"ben", "cy"}})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for active player, got %d", rec.Code)
	}
	if _, err := f.ctrl.CurrentGame("cy"); !errors.Is(err, game.ErrNoActiveGame) {
		t.Fatalf("rejected start must not bind cy, got %v", err)
	}
}

func TestStartGameValidation(t *testing.T) {
	f := newFixture(t, unlimited())
	handler := f.srv.Handler()
	cases := []struct {
		name string
		body any
		want string
	}{
		{name: "missing", body: map[string]any{}, want: "players are required"},
		{name: "empty", body: map[string]any{"players": []string{}}, want: "players are required"},
		{name: "bad id", body: map[string]any{"players": []string{"ada", "no spaces"}}, want: "player ids must be 1-64 characters of letters, digits, '.', '_' or '-'"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, handler, http.MethodPost, "/api/games", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if got := decodeBody(t, rec)["error"]; got != tc.want {
				t.Fatalf("expected %q, got %v", tc.want, got)
			}
		})
	}
	rec := doJSON(t, handler, http.MethodPost, "/api/games", map[string]any{"players": []string{"ada", "ada"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate member, got %d", rec.Code)
	}
}

func TestUnknownGame(t *testing.T) {
	f := newFixture(t, unlimited())
	handler := f.srv.Handler()
	for _, path := range []string{"/api/games/99", "/api/games/99/round", "/api/games/0", "/api/games/abc"} {
		rec := doJSON(t, handler, http.MethodGet, path, nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, rec.Code)
		}
	}
}

func TestRoundFlowOverHTTP(t *testing.T) {
	f := newFixture(t, unlimited())
	handler := f.srv.Handler()
	gameID := startGame(t, handler, "ada", "ben")
	base := fmt.Sprintf("/api/games/%d/rounds/%s", gameID, game.RoundHubs[0])

	rec := doJSON(t, handler, http.MethodGet, base+"/question", nil)
	body := decodeBody(t, rec)
	if body["question"] != "Best breakfast?" || body["phase"] != "collecting" {
		t.Fatalf("unexpected question payload %v", body)
	}

	commits := []struct {
		player string
		choice [2]int
	}{
		{"ada", [2]int{0, 1}},
		{"ben", [2]int{1, 1}},
	}
	for i, c := range commits {
		commit := round.CommitHash(c.choice[0], c.choice[1], c.player+"-secret")
		rec := doJSON(t, handler, http.MethodPost, base+"/answers", map[string]any{"player": c.player, "commit": commit.String()})
		if rec.Code != http.StatusAccepted {
			t.Fatalf("submit %s status %d: %s", c.player, rec.Code, rec.Body.String())
		}
		if got := decodeBody(t, rec)["score"]; got != float64(100) {
			t.Fatalf("expected submission points, got %v", got)
		}
		rec = doJSON(t, handler, http.MethodGet, fmt.Sprintf("/api/keeper/games/%d", gameID), nil)
		wantDue := i == len(commits)-1
		if decodeBody(t, rec)["needsUpdate"] != wantDue {
			t.Fatalf("after %s expected needsUpdate=%t, got %s", c.player, wantDue, rec.Body.String())
		}
	}

	commit := round.CommitHash(0, 1, "ada-secret")
	rec = doJSON(t, handler, http.MethodPost, base+"/answers", map[string]any{"player": "ada", "commit": commit.String()})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on resubmit, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPost, base+"/answers", map[string]any{"player": "ada", "commit": "0x1234"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on short commit, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPost, base+"/reveals", map[string]any{
		"player": "ada", "playerChoice": 0, "crowdChoice": 1, "secretPhrase": "ada-secret",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on reveal during collection, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, fmt.Sprintf("/api/keeper/games/%d/update", gameID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status %d: %s", rec.Code, rec.Body.String())
	}
	if to := decodeBody(t, rec)["to"]; to != "revealing" {
		t.Fatalf("expected revealing, got %v", to)
	}

	rec = doJSON(t, handler, http.MethodPost, base+"/reveals", map[string]any{
		"player": "ada", "playerChoice": 0, "crowdChoice": 2, "secretPhrase": "ada-secret",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 on mismatched reveal, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPost, base+"/reveals", map[string]any{
		"player": "ada", "playerChoice": 0, "crowdChoice": 1,
	})
	if rec.Code != http.StatusBadRequest || decodeBody(t, rec)["error"] != "secretPhrase is required" {
		t.Fatalf("expected missing phrase error, got %d %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, handler, http.MethodPost, base+"/reveals", map[string]any{
		"player": "ada", "playerChoice": 0, "crowdChoice": 1, "secretPhrase": "ada-secret",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("reveal status %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody(t, rec)["score"]; got != float64(1100) {
		t.Fatalf("expected submission plus full fast bonus, got %v", got)
	}

	rec = doJSON(t, handler, http.MethodGet, base+"/guesses/ada", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("guess status %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet, base+"/guesses/ben", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unrevealed guess, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet, base+"/response-scores", nil)
	scores, _ := decodeBody(t, rec)["responseScores"].([]any)
	if len(scores) != 4 || scores[1] != float64(1) {
		t.Fatalf("unexpected tally %s", rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, fmt.Sprintf("/api/games/%d/rounds/%s/question", gameID, game.RoundHubs[1]), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unstarted round, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPost, fmt.Sprintf("/api/games/%d/rounds/%s/answers", gameID, game.RoundHubs[1]), map[string]any{"player": "ada", "commit": commit.String()})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for wrong hub, got %d", rec.Code)
	}
}

func TestAbandonReleasesPlayer(t *testing.T) {
	f := newFixture(t, unlimited())
	handler := f.srv.Handler()
	startGame(t, handler, "ada", "ben")

	rec := doJSON(t, handler, http.MethodPost, "/api/players/ada/abandon", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("abandon status %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, handler, http.MethodGet, "/api/players/ada/game", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after abandon, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPost, "/api/players/ada/abandon", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second abandon, got %d", rec.Code)
	}
	startGame(t, handler, "ada")
}

func TestClaimBeforeFinalize(t *testing.T) {
	f := newFixture(t, unlimited())
	handler := f.srv.Handler()
	gameID := startGame(t, handler, "ada")
	rec := doJSON(t, handler, http.MethodPost, fmt.Sprintf("/api/games/%d/claims", gameID), map[string]any{"player": "ada"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 before finalize, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet, fmt.Sprintf("/api/games/%d/ranking", gameID), nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for ranking before finalize, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet, "/api/players/ada/payout", nil)
	if got := decodeBody(t, rec)["payout"]; got != float64(0) {
		t.Fatalf("expected no payout, got %v", got)
	}
}

func TestRateLimitOnWrites(t *testing.T) {
	cfg := config.Default()
	cfg.RateLimitPerSecond = 0.001
	cfg.RateLimitBurst = 1
	f := newFixture(t, cfg)
	handler := f.srv.Handler()
	startGame(t, handler, "ada")
	rec := doJSON(t, handler, http.MethodPost, "/api/games", map[string]any{"players": []string{"ben"}})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet, "/api/hubs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reads are not limited, got %d", rec.Code)
	}
}

func TestLedgerEndpoints(t *testing.T) {
	f := newFixture(t, unlimited())
	handler := f.srv.Handler()
	gameID := startGame(t, handler, "ada", "ben")

	rec := doJSON(t, handler, http.MethodGet, "/api/ledger/verify", nil)
	body := decodeBody(t, rec)
	if rec.Code != http.StatusOK || body["valid"] != true {
		t.Fatalf("expected valid chain, got %d %v", rec.Code, body)
	}
	rec = doJSON(t, handler, http.MethodGet, fmt.Sprintf("/api/ledger/blocks?game_id=%d&per_page=1", gameID), nil)
	body = decodeBody(t, rec)
	blocks, _ := body["blocks"].([]any)
	if len(blocks) != 1 {
		t.Fatalf("expected one block per page, got %v", body)
	}
	page := body["pagination"].(map[string]any)
	if page["hasNext"] != true {
		t.Fatalf("expected more pages, got %v", page)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", round.ErrWrongPhase), http.StatusConflict},
		{winners.ErrAlreadyClaimed, http.StatusConflict},
		{score.ErrUnauthorized, http.StatusForbidden},
		{winners.ErrNotEligible, http.StatusForbidden},
		{round.ErrCommitMismatch, http.StatusUnprocessableEntity},
		{hub.ErrUnknownHub, http.StatusNotFound},
		{game.ErrUnknownGame, http.StatusNotFound},
		{round.ErrInvalidChoice, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestFullGameAndClaimOverHTTP(t *testing.T) {
	f := newFixture(t, unlimited())
	handler := f.srv.Handler()
	gameID := startGame(t, handler, "ada")
	update := fmt.Sprintf("/api/keeper/games/%d/update", gameID)

	for i, hubName := range game.RoundHubs {
		base := fmt.Sprintf("/api/games/%d/rounds/%s", gameID, hubName)
		commit := round.CommitHash(2, 1, "phrase")
		rec := doJSON(t, handler, http.MethodPost, base+"/answers", map[string]any{"player": "ada", "commit": commit.String()})
		if rec.Code != http.StatusAccepted {
			t.Fatalf("%s submit status %d: %s", hubName, rec.Code, rec.Body.String())
		}
		rec = doJSON(t, handler, http.MethodPost, update, nil)
		if rec.Code != http.StatusOK || decodeBody(t, rec)["to"] != "revealing" {
			t.Fatalf("%s expected reveal phase, got %d %s", hubName, rec.Code, rec.Body.String())
		}
		rec = doJSON(t, handler, http.MethodPost, base+"/reveals", map[string]any{
			"player": "ada", "playerChoice": 2, "crowdChoice": 1, "secretPhrase": "phrase",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("%s reveal status %d: %s", hubName, rec.Code, rec.Body.String())
		}
		rec = doJSON(t, handler, http.MethodPost, update, nil)
		body := decodeBody(t, rec)
		if rec.Code != http.StatusOK || body["to"] != "closed" {
			t.Fatalf("%s expected close, got %d %v", hubName, rec.Code, body)
		}
		wantNext := game.WinnersHub
		if i+1 < len(game.RoundHubs) {
			wantNext = game.RoundHubs[i+1]
		}
		if body["movedTo"] != wantNext {
			t.Fatalf("%s expected move to %s, got %v", hubName, wantNext, body["movedTo"])
		}
	}

	rec := doJSON(t, handler, http.MethodGet, fmt.Sprintf("/api/games/%d/scores/ada", gameID), nil)
	if got := decodeBody(t, rec)["score"]; got != float64(4*4100) {
		t.Fatalf("expected 16400 points, got %v", got)
	}
	rec = doJSON(t, handler, http.MethodGet, fmt.Sprintf("/api/games/%d/ranking/ada", gameID), nil)
	if got := decodeBody(t, rec)["rank"]; got != float64(1) {
		t.Fatalf("expected rank 1, got %v", got)
	}
	rec = doJSON(t, handler, http.MethodGet, "/api/players/ada/payout", nil)
	if got := decodeBody(t, rec)["payout"]; got != float64(4000) {
		t.Fatalf("expected payout 4000, got %v", got)
	}

	claim := fmt.Sprintf("/api/games/%d/claims", gameID)
	rec = doJSON(t, handler, http.MethodPost, claim, map[string]any{"player": "ben"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unranked player, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPost, claim, map[string]any{"player": "ada"})
	if rec.Code != http.StatusOK || decodeBody(t, rec)["amount"] != float64(4000) {
		t.Fatalf("claim failed %d %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, handler, http.MethodPost, claim, map[string]any{"player": "ada"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second claim, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet, "/api/players/ada/game", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("claim should release the binding, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPost, update, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected nothing to update after finish, got %d", rec.Code)
	}
}
