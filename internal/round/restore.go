package round

import (
	"context"
	"fmt"
	"time"

	"github.com/LuckyMachines/hivemind/internal/randomness"
)

// The Restore methods rebuild round state from recorded history. They do
// not credit scores or emit notifications; the caller replays totals.

// Restore reopens a game's round as it stood when collection began. The
// question is asked of the source again and the coin face is taken as
// recorded.
func (r *Round) Restore(ctx context.Context, gameID, railcarID uint64, players []string, minority bool, proof []byte, startedAt time.Time) error {
	q, err := r.questions.Question(ctx, r.name, gameID)
	if err != nil {
		return fmt.Errorf("question for hub=%s game_id=%d: %w", r.name, gameID, err)
	}
	st := &gameState{
		gameID:          gameID,
		railcarID:       railcarID,
		phase:           PhaseCollecting,
		minority:        minority,
		draw:            randomness.Recorded(r.seed(gameID), proof, minority),
		question:        q,
		expected:        append([]string(nil), players...),
		commits:         make(map[string]Commit),
		reveals:         make(map[string]*Reveal),
		startedAt:       startedAt,
		collectDeadline: startedAt.Add(r.policy.CollectWindow),
	}
	r.mu.Lock()
	r.games[gameID] = st
	r.mu.Unlock()
	return nil
}

func (r *Round) RestoreCommit(gameID uint64, player string, commit Commit) error {
	st, err := r.state(gameID)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.commits[player]; ok {
		return ErrAlreadySubmitted
	}
	st.commits[player] = commit
	return nil
}

func (r *Round) RestoreReveal(gameID uint64, player string, playerChoice, crowdChoice int, fastBonus uint64, at time.Time) error {
	if crowdChoice < 0 || crowdChoice >= len(Tally{}) {
		return ErrInvalidChoice
	}
	st, err := r.state(gameID)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.reveals[player]; ok {
		return ErrAlreadyRevealed
	}
	st.reveals[player] = &Reveal{
		PlayerChoice: playerChoice,
		CrowdChoice:  crowdChoice,
		FastBonus:    fastBonus,
		RevealedAt:   at,
	}
	st.tally[crowdChoice]++
	return nil
}

// RestorePhase applies a recorded transition. Closing marks the winning
// bonus on matching reveals.
func (r *Round) RestorePhase(gameID uint64, to Phase, winning []int, at time.Time) error {
	st, err := r.state(gameID)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	switch to {
	case PhaseRevealing:
		st.revealOpenedAt = at
		st.revealDeadline = at.Add(r.policy.RevealWindow)
	case PhaseClosed:
		st.winning = append([]int(nil), winning...)
		for _, reveal := range st.reveals {
			if contains(st.winning, reveal.CrowdChoice) {
				reveal.WinningBonus = r.policy.WinningChoicePoints
			}
		}
	default:
		return fmt.Errorf("%w: cannot restore to %s", ErrWrongPhase, to)
	}
	st.phase = to
	return nil
}

// ParsePhase is the inverse of Phase.String.
func ParsePhase(name string) (Phase, error) {
	for _, p := range []Phase{PhaseIdle, PhaseCollecting, PhaseRevealing, PhaseClosed} {
		if p.String() == name {
			return p, nil
		}
	}
	return PhaseIdle, fmt.Errorf("%w: unknown phase %q", ErrWrongPhase, name)
}
