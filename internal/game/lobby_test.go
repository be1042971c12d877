package game

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/LuckyMachines/hivemind/internal/events"
)

func TestLobbyJoinAndStart(t *testing.T) {
	h := newHarnessWith(t, &testClock{now: time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)}, nil, 3)
	ctx := context.Background()

	gameID, err := h.ctrl.JoinLobby(ctx, "ada")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if ok, err := h.ctrl.CanStart(gameID); err != nil || ok {
		t.Fatalf("one player must not be enough: %t (%v)", ok, err)
	}
	if err := h.ctrl.StartLobbyGame(ctx, gameID); !errors.Is(err, ErrNotEnoughPlayers) {
		t.Fatalf("expected not enough players, got %v", err)
	}
	if second, err := h.ctrl.JoinLobby(ctx, "ben"); err != nil || second != gameID {
		t.Fatalf("ben should join game %d, got %d (%v)", gameID, second, err)
	}
	if _, err := h.ctrl.JoinLobby(ctx, "ben"); !errors.Is(err, ErrPlayerAlreadyActive) {
		t.Fatalf("expected player already active, got %v", err)
	}
	lobby, ok := h.ctrl.OpenLobby()
	if !ok || lobby.GameID != gameID || !lobby.CanStart || !reflect.DeepEqual(lobby.Members, []string{"ada", "ben"}) {
		t.Fatalf("unexpected lobby %+v (%t)", lobby, ok)
	}

	if third, err := h.ctrl.JoinLobby(ctx, "cam"); err != nil || third != gameID {
		t.Fatalf("cam should fill game %d, got %d (%v)", gameID, third, err)
	}
	if _, ok := h.ctrl.OpenLobby(); ok {
		t.Fatalf("a full cohort must stop accepting joins")
	}
	next, err := h.ctrl.JoinLobby(ctx, "dee")
	if err != nil || next == gameID {
		t.Fatalf("dee should open a new game, got %d (%v)", next, err)
	}

	info, err := h.ctrl.Info(gameID)
	if err != nil || info.Status != StatusOpen || info.Hub != LobbyHub {
		t.Fatalf("expected open lobby game, got %+v (%v)", info, err)
	}
	if err := h.ctrl.SubmitAnswer(ctx, gameID, "hivemind.round1", "ada", [32]byte{}); !errors.Is(err, ErrGameNotStarted) {
		t.Fatalf("expected game not started, got %v", err)
	}

	if err := h.ctrl.StartLobbyGame(ctx, gameID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if hubName, _ := h.ctrl.LatestRound(gameID); hubName != "hivemind.round1" {
		t.Fatalf("expected round1, got %s", hubName)
	}
	snap, err := h.ctrl.RoundSnapshot("hivemind.round1", gameID)
	if err != nil || !reflect.DeepEqual(snap.Expected, []string{"ada", "ben", "cam"}) {
		t.Fatalf("round1 should expect the whole cohort: %+v (%v)", snap, err)
	}
	if err := h.ctrl.StartLobbyGame(ctx, gameID); !errors.Is(err, ErrGameStarted) {
		t.Fatalf("expected game started, got %v", err)
	}
	if _, err := h.ctrl.JoinLobby(ctx, "eve"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if current, _ := h.ctrl.CurrentGame("eve"); current != next {
		t.Fatalf("eve should join the open game %d, got %d", next, current)
	}

	kinds := h.recorder.Kinds(gameID)
	if len(kinds) < 4 || kinds[0] != events.KindLobbyJoined || kinds[3] != events.KindGameStarted {
		t.Fatalf("unexpected notifications %v", kinds)
	}
}

func TestAbandonEmptiesOpenLobby(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	gameID, _ := h.ctrl.JoinLobby(ctx, "ada")
	if err := h.ctrl.Abandon(ctx, "ada"); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if _, ok := h.ctrl.OpenLobby(); ok {
		t.Fatalf("abandoned lobby must not stay open")
	}
	if err := h.ctrl.StartLobbyGame(ctx, gameID); !errors.Is(err, ErrGameOver) {
		t.Fatalf("expected game over, got %v", err)
	}
	next, err := h.ctrl.JoinLobby(ctx, "ada")
	if err != nil || next == gameID {
		t.Fatalf("ada should open a fresh game, got %d (%v)", next, err)
	}
}
