// Package winners ranks a finished game and gates prize claims.
package winners

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/LuckyMachines/hivemind/internal/score"
)

var (
	ErrNotFinalized   = errors.New("game not finalized")
	ErrRoundsOpen     = errors.New("final round not closed")
	ErrNotRanked      = errors.New("player not ranked in game")
	ErrNotEligible    = errors.New("rank not eligible for a prize")
	ErrAlreadyClaimed = errors.New("prize already claimed")
)

// Standings is the score keeper view used for ranking.
type Standings interface {
	Standings(gameID score.GameID, players []string) []score.Standing
}

// FinalRound reports whether the last round has closed for a game.
type FinalRound interface {
	Closed(gameID uint64) bool
}

type Entry struct {
	Player string `json:"player"`
	Points uint64 `json:"points"`
	Rank   int    `json:"rank"`
	Payout uint64 `json:"payout"`
}

type result struct {
	entries   []Entry
	byPlayer  map[string]int
	claimed   map[string]time.Time
	finalized time.Time
}

type Winners struct {
	scores  Standings
	final   FinalRound
	cutoff  int
	amounts []uint64
	now     func() time.Time

	mu    sync.Mutex
	games map[uint64]*result
}

// New builds a Winners stage. Ranks 1..cutoff are eligible; amounts[i] is
// the prize for rank i+1, and ranks beyond the list fall back to its last
// entry.
func New(scores Standings, final FinalRound, cutoff int, amounts []uint64) *Winners {
	return &Winners{
		scores:  scores,
		final:   final,
		cutoff:  cutoff,
		amounts: append([]uint64(nil), amounts...),
		now:     time.Now,
		games:   make(map[uint64]*result),
	}
}

func (w *Winners) SetClock(now func() time.Time) {
	w.now = now
}

func (w *Winners) Cutoff() int {
	return w.cutoff
}

func (w *Winners) prize(rank int) uint64 {
	if rank < 1 || rank > w.cutoff || len(w.amounts) == 0 {
		return 0
	}
	if rank > len(w.amounts) {
		return w.amounts[len(w.amounts)-1]
	}
	return w.amounts[rank-1]
}

// Finalize ranks players by descending score with ties broken by player id.
// Repeated calls return the stored ranking.
func (w *Winners) Finalize(gameID uint64, players []string) ([]Entry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if res, ok := w.games[gameID]; ok {
		return append([]Entry(nil), res.entries...), nil
	}
	if w.final != nil && !w.final.Closed(gameID) {
		return nil, fmt.Errorf("%w: game_id=%d", ErrRoundsOpen, gameID)
	}
	standings := w.scores.Standings(score.GameID(gameID), players)
	res := &result{
		entries:   make([]Entry, 0, len(standings)),
		byPlayer:  make(map[string]int, len(standings)),
		claimed:   make(map[string]time.Time),
		finalized: w.now(),
	}
	for i, standing := range standings {
		rank := i + 1
		res.entries = append(res.entries, Entry{
			Player: standing.Player,
			Points: standing.Points,
			Rank:   rank,
			Payout: w.prize(rank),
		})
		res.byPlayer[standing.Player] = i
	}
	w.games[gameID] = res
	log.Printf("game finalized game_id=%d players=%d", gameID, len(res.entries))
	return append([]Entry(nil), res.entries...), nil
}

// Restore installs a ranking recorded earlier without consulting scores.
func (w *Winners) Restore(gameID uint64, entries []Entry, finalizedAt time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	res := &result{
		entries:   append([]Entry(nil), entries...),
		byPlayer:  make(map[string]int, len(entries)),
		claimed:   make(map[string]time.Time),
		finalized: finalizedAt,
	}
	for i, e := range res.entries {
		res.byPlayer[e.Player] = i
	}
	w.games[gameID] = res
}

// RestoreClaim marks a recorded claim as paid.
func (w *Winners) RestoreClaim(gameID uint64, player string, at time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, res, err := w.entry(gameID, player)
	if err != nil {
		return err
	}
	res.claimed[player] = at
	return nil
}

func (w *Winners) Finalized(gameID uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.games[gameID]
	return ok
}

func (w *Winners) entry(gameID uint64, player string) (Entry, *result, error) {
	res, ok := w.games[gameID]
	if !ok {
		return Entry{}, nil, fmt.Errorf("%w: game_id=%d", ErrNotFinalized, gameID)
	}
	idx, ok := res.byPlayer[player]
	if !ok {
		return Entry{}, nil, fmt.Errorf("%w: %s", ErrNotRanked, player)
	}
	return res.entries[idx], res, nil
}

func (w *Winners) GetFinalRanking(gameID uint64, player string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, _, err := w.entry(gameID, player)
	if err != nil {
		return 0, err
	}
	return e.Rank, nil
}

func (w *Winners) Ranking(gameID uint64) ([]Entry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	res, ok := w.games[gameID]
	if !ok {
		return nil, fmt.Errorf("%w: game_id=%d", ErrNotFinalized, gameID)
	}
	return append([]Entry(nil), res.entries...), nil
}

// CheckPayout sums a player's unclaimed prizes across finalized games.
func (w *Winners) CheckPayout(player string) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	var total uint64
	for _, res := range w.games {
		idx, ok := res.byPlayer[player]
		if !ok {
			continue
		}
		if _, claimed := res.claimed[player]; claimed {
			continue
		}
		total += res.entries[idx].Payout
	}
	return total
}

// ClaimPrize marks a prize paid and returns its amount.
func (w *Winners) ClaimPrize(gameID uint64, player string) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, res, err := w.entry(gameID, player)
	if err != nil {
		return 0, err
	}
	if e.Rank > w.cutoff {
		return 0, fmt.Errorf("%w: rank %d", ErrNotEligible, e.Rank)
	}
	if _, claimed := res.claimed[player]; claimed {
		return 0, ErrAlreadyClaimed
	}
	res.claimed[player] = w.now()
	log.Printf("prize claimed game_id=%d player=%s rank=%d amount=%d", gameID, player, e.Rank, e.Payout)
	return e.Payout, nil
}

// Claimed reports whether the player already claimed for the game.
func (w *Winners) Claimed(gameID uint64, player string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	res, ok := w.games[gameID]
	if !ok {
		return false
	}
	_, claimed := res.claimed[player]
	return claimed
}
