// Package keeper drives games forward off-protocol: a timer per game checks
// the update predicate and applies the transition when one is due.
package keeper

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/LuckyMachines/hivemind/internal/game"
	"github.com/LuckyMachines/hivemind/internal/round"
)

// Games is the controller surface the keeper polls.
type Games interface {
	NeedsUpdate(gameID uint64) (bool, error)
	UpdatePhase(ctx context.Context, gameID uint64) (game.Step, error)
	Done(gameID uint64) bool
	ActiveGames() []uint64
}

type Driver struct {
	games    Games
	interval time.Duration

	mu      sync.Mutex
	timers  map[uint64]*time.Timer
	stopped bool
}

func New(games Games, interval time.Duration) *Driver {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Driver{
		games:    games,
		interval: interval,
		timers:   make(map[uint64]*time.Timer),
	}
}

// Track arms the timer for a game. Tracking a game twice resets its timer.
func (d *Driver) Track(gameID uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if existing, ok := d.timers[gameID]; ok {
		existing.Stop()
	}
	d.timers[gameID] = time.AfterFunc(d.interval, func() {
		d.tick(gameID)
	})
}

// Resume tracks every game the controller still considers active.
func (d *Driver) Resume() int {
	ids := d.games.ActiveGames()
	for _, id := range ids {
		d.Track(id)
	}
	return len(ids)
}

func (d *Driver) Cancel(gameID uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if timer, ok := d.timers[gameID]; ok {
		timer.Stop()
		delete(d.timers, gameID)
	}
}

// Stop cancels every timer; later Track calls are ignored.
func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for id, timer := range d.timers {
		timer.Stop()
		delete(d.timers, id)
	}
}

func (d *Driver) Tracked() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

func (d *Driver) tick(gameID uint64) {
	if _, err := d.Poll(context.Background(), gameID); err != nil {
		log.Printf("keeper poll failed game_id=%d error=%v", gameID, err)
	}
	if d.games.Done(gameID) {
		d.Cancel(gameID)
		log.Printf("keeper stopped game_id=%d", gameID)
		return
	}
	d.mu.Lock()
	_, tracked := d.timers[gameID]
	d.mu.Unlock()
	if tracked {
		d.Track(gameID)
	}
}

// Poll runs one check-then-act cycle. It reports whether a transition was
// applied.
func (d *Driver) Poll(ctx context.Context, gameID uint64) (bool, error) {
	due, err := d.games.NeedsUpdate(gameID)
	if err != nil || !due {
		return false, err
	}
	step, err := d.games.UpdatePhase(ctx, gameID)
	if errors.Is(err, round.ErrNothingToUpdate) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	log.Printf("keeper advanced game_id=%d hub=%s from=%s to=%s moved_to=%s", gameID, step.Hub, step.From, step.To, step.MovedTo)
	return true, nil
}
