package railyard

import (
	"errors"
	"testing"

	"github.com/LuckyMachines/hivemind/internal/hub"
)

func newTestYard(t *testing.T) (*Yard, hub.ID, hub.ID, hub.ID) {
	t.Helper()
	reg := hub.NewRegistry()
	lobby, _ := reg.Register("hivemind.lobby")
	round1, _ := reg.Register("hivemind.round1")
	round2, _ := reg.Register("hivemind.round2")
	_ = reg.SetAllowAllInputs(lobby, true)
	_ = reg.SetInputsAllowed(round1, lobby)
	_ = reg.SetInputsAllowed(round2, round1)
	return New(reg, lobby), lobby, round1, round2
}

func TestFormCohortStartsAtLobby(t *testing.T) {
	yard, lobby, _, _ := newTestYard(t)
	id, err := yard.FormCohort([]string{"ada", "ben"})
	if err != nil {
		t.Fatalf("form cohort: %v", err)
	}
	location, err := yard.LocationOf(id)
	if err != nil || location != lobby {
		t.Fatalf("expected lobby location, got %d (%v)", location, err)
	}
	members, err := yard.MembersOf(id)
	if err != nil || len(members) != 2 || members[0] != "ada" || members[1] != "ben" {
		t.Fatalf("unexpected members %v (%v)", members, err)
	}
}

func TestFormCohortErrors(t *testing.T) {
	yard, _, _, _ := newTestYard(t)
	if _, err := yard.FormCohort(nil); !errors.Is(err, ErrEmptyCohort) {
		t.Fatalf("expected empty cohort, got %v", err)
	}
	if _, err := yard.FormCohort([]string{"ada", "ada"}); !errors.Is(err, ErrDuplicateMember) {
		t.Fatalf("expected duplicate member, got %v", err)
	}
	if _, err := yard.FormCohort([]string{"ada"}); err != nil {
		t.Fatalf("form cohort: %v", err)
	}
	if _, err := yard.FormCohort([]string{"ben", "ada"}); !errors.Is(err, ErrPlayerInRailcar) {
		t.Fatalf("expected player in railcar, got %v", err)
	}
	if _, ok := yard.RailcarOf("ben"); ok {
		t.Fatalf("failed cohort must not board ben")
	}
}

func TestMoveCohort(t *testing.T) {
	yard, lobby, round1, round2 := newTestYard(t)
	id, _ := yard.FormCohort([]string{"ada"})

	if err := yard.MoveCohort(id, round1, round2); !errors.Is(err, ErrNotAtSourceHub) {
		t.Fatalf("expected not at source, got %v", err)
	}
	if err := yard.MoveCohort(id, lobby, round2); !errors.Is(err, hub.ErrTransitionNotAllowed) {
		t.Fatalf("expected transition not allowed, got %v", err)
	}
	if location, _ := yard.LocationOf(id); location != lobby {
		t.Fatalf("failed move changed location to %d", location)
	}
	if err := yard.MoveCohort(id, lobby, round1); err != nil {
		t.Fatalf("move to round1: %v", err)
	}
	if err := yard.MoveCohort(id, round1, lobby); err != nil {
		t.Fatalf("return to lobby: %v", err)
	}
	if err := yard.MoveCohort(99, lobby, round1); !errors.Is(err, ErrUnknownRailcar) {
		t.Fatalf("expected unknown railcar, got %v", err)
	}
}

func TestRemoveMemberAndRetire(t *testing.T) {
	yard, lobby, round1, _ := newTestYard(t)
	id, _ := yard.FormCohort([]string{"ada", "ben"})

	remaining, err := yard.RemoveMember(id, "ada")
	if err != nil || remaining != 1 {
		t.Fatalf("expected 1 remaining, got %d (%v)", remaining, err)
	}
	if _, err := yard.RemoveMember(id, "ada"); !errors.Is(err, ErrPlayerNotAboard) {
		t.Fatalf("expected not aboard, got %v", err)
	}
	if _, ok := yard.RailcarOf("ada"); ok {
		t.Fatalf("ada should be free to join another railcar")
	}
	if err := yard.Retire(id); err != nil {
		t.Fatalf("retire: %v", err)
	}
	if _, ok := yard.RailcarOf("ben"); ok {
		t.Fatalf("retire should release ben")
	}
	if err := yard.MoveCohort(id, lobby, round1); !errors.Is(err, ErrRailcarRetired) {
		t.Fatalf("expected retired railcar, got %v", err)
	}
	car, err := yard.Get(id)
	if err != nil || !car.Retired {
		t.Fatalf("expected retired snapshot, got %+v (%v)", car, err)
	}
}

func TestAddMemberInLobby(t *testing.T) {
	yard, lobby, round1, _ := newTestYard(t)
	id, _ := yard.FormCohort([]string{"ada"})
	other, _ := yard.FormCohort([]string{"cy"})

	count, err := yard.AddMember(id, "ben")
	if err != nil || count != 2 {
		t.Fatalf("add member: count=%d err=%v", count, err)
	}
	if car, ok := yard.RailcarOf("ben"); !ok || car != id {
		t.Fatalf("ben should ride railcar %d", id)
	}
	if _, err := yard.AddMember(id, "ben"); !errors.Is(err, ErrDuplicateMember) {
		t.Fatalf("expected duplicate member, got %v", err)
	}
	if _, err := yard.AddMember(id, "cy"); !errors.Is(err, ErrPlayerInRailcar) {
		t.Fatalf("expected player in railcar, got %v", err)
	}
	if _, err := yard.AddMember(99, "dee"); !errors.Is(err, ErrUnknownRailcar) {
		t.Fatalf("expected unknown railcar, got %v", err)
	}

	if err := yard.MoveCohort(other, lobby, round1); err != nil {
		t.Fatalf("move: %v", err)
	}
	if _, err := yard.AddMember(other, "dee"); !errors.Is(err, ErrNotAtSourceHub) {
		t.Fatalf("expected departed railcar to refuse members, got %v", err)
	}
}

func TestRestoreKeepsIDsAndAdvancesCounter(t *testing.T) {
	yard, _, round1, _ := newTestYard(t)
	if err := yard.Restore(7, []string{"ada", "ben"}, round1); err != nil {
		t.Fatalf("restore: %v", err)
	}
	location, err := yard.LocationOf(7)
	if err != nil || location != round1 {
		t.Fatalf("expected round1, got %d (%v)", location, err)
	}
	if car, ok := yard.RailcarOf("ben"); !ok || car != 7 {
		t.Fatalf("ben should ride railcar 7")
	}
	next, err := yard.FormCohort([]string{"cy"})
	if err != nil || next != 8 {
		t.Fatalf("expected new railcar 8, got %d (%v)", next, err)
	}

	if err := yard.Restore(7, []string{"ada"}, round1); err != nil {
		t.Fatalf("restore again: %v", err)
	}
	if _, ok := yard.RailcarOf("ben"); ok {
		t.Fatalf("ben should have left railcar 7")
	}
	if err := yard.Restore(9, []string{"cy"}, round1); !errors.Is(err, ErrPlayerInRailcar) {
		t.Fatalf("expected player in railcar, got %v", err)
	}
}
