package score

import (
	"errors"
	"testing"
)

func TestAddScoreRequiresRole(t *testing.T) {
	keeper := NewKeeper("admin")
	if _, err := keeper.AddScore("round1", 1, "ada", 100); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if got := keeper.GetScore(1, "ada"); got != 0 {
		t.Fatalf("rejected write changed score to %d", got)
	}
	if err := keeper.GrantScoreSetterRole("admin", "round1"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	total, err := keeper.AddScore("round1", 1, "ada", 100)
	if err != nil || total != 100 {
		t.Fatalf("expected 100, got %d (%v)", total, err)
	}
	total, _ = keeper.AddScore("round1", 1, "ada", 50)
	if total != 150 {
		t.Fatalf("expected 150, got %d", total)
	}
	if err := keeper.RevokeScoreSetterRole("admin", "round1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := keeper.AddScore("round1", 1, "ada", 10); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized after revoke, got %v", err)
	}
}

func TestOnlyAdminManagesRoles(t *testing.T) {
	keeper := NewKeeper("admin")
	if err := keeper.GrantScoreSetterRole("mallory", "mallory"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized grant, got %v", err)
	}
	if keeper.CanSetScores("mallory") {
		t.Fatalf("mallory must not hold score-setter")
	}
	if err := keeper.RevokeScoreSetterRole("mallory", "round1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized revoke, got %v", err)
	}
}

func TestAddScoreRejectsZeroAndEmpty(t *testing.T) {
	keeper := NewKeeper("admin")
	_ = keeper.GrantScoreSetterRole("admin", "round1")
	if _, err := keeper.AddScore("round1", 1, "ada", 0); !errors.Is(err, ErrZeroDelta) {
		t.Fatalf("expected zero delta error, got %v", err)
	}
	if _, err := keeper.AddScore("round1", 1, "", 5); !errors.Is(err, ErrEmptyPlayer) {
		t.Fatalf("expected empty player error, got %v", err)
	}
}

func TestStandingsOrdering(t *testing.T) {
	keeper := NewKeeper("admin")
	_ = keeper.GrantScoreSetterRole("admin", "round1")
	_, _ = keeper.AddScore("round1", 7, "cam", 300)
	_, _ = keeper.AddScore("round1", 7, "ben", 500)
	_, _ = keeper.AddScore("round1", 7, "ada", 300)

	standings := keeper.Standings(7, []string{"cam", "ben", "ada", "dee"})
	want := []string{"ben", "ada", "cam", "dee"}
	for i, player := range want {
		if standings[i].Player != player {
			t.Fatalf("position %d: expected %s, got %s (%v)", i, player, standings[i].Player, standings)
		}
	}
	if keeper.PlayerCount(7) != 3 {
		t.Fatalf("expected 3 scored players, got %d", keeper.PlayerCount(7))
	}
	scored := keeper.Scored(7)
	if len(scored) != 3 || scored[0] != "cam" {
		t.Fatalf("unexpected scored order %v", scored)
	}
}
