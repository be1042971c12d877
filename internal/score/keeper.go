// Package score keeps cumulative points per player per game. Writes are
// gated by an access-control table of (principal, capability) pairs.
package score

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

type GameID uint64

type Capability string

const (
	CapabilityScoreSetter Capability = "score-setter"
	CapabilityAdmin       Capability = "admin"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrZeroDelta    = errors.New("score delta must be positive")
	ErrEmptyPlayer  = errors.New("player is required")
)

// Standing is one row of a game's scoreboard.
type Standing struct {
	Player string
	Points uint64
}

type grant struct {
	principal  string
	capability Capability
}

// Keeper is safe for concurrent use. Points are never retracted.
type Keeper struct {
	mu     sync.RWMutex
	admin  string
	grants map[grant]struct{}
	points map[GameID]map[string]uint64
	// order keeps first-scored order per game so standings are stable.
	order map[GameID][]string
}

func NewKeeper(admin string) *Keeper {
	k := &Keeper{
		admin:  admin,
		grants: make(map[grant]struct{}),
		points: make(map[GameID]map[string]uint64),
		order:  make(map[GameID][]string),
	}
	k.grants[grant{principal: admin, capability: CapabilityAdmin}] = struct{}{}
	return k
}

func (k *Keeper) Admin() string {
	return k.admin
}

// HasCapability checks the access-control table.
func (k *Keeper) HasCapability(principal string, capability Capability) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	_, ok := k.grants[grant{principal: principal, capability: capability}]
	return ok
}

func (k *Keeper) GrantScoreSetterRole(caller, component string) error {
	return k.setGrant(caller, component, true)
}

func (k *Keeper) RevokeScoreSetterRole(caller, component string) error {
	return k.setGrant(caller, component, false)
}

func (k *Keeper) setGrant(caller, component string, on bool) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.grants[grant{principal: caller, capability: CapabilityAdmin}]; !ok {
		return fmt.Errorf("%w: %s lacks %s", ErrUnauthorized, caller, CapabilityAdmin)
	}
	key := grant{principal: component, capability: CapabilityScoreSetter}
	if on {
		k.grants[key] = struct{}{}
	} else {
		delete(k.grants, key)
	}
	return nil
}

// AddScore credits delta points to player. The caller must hold the
// score-setter capability.
func (k *Keeper) AddScore(caller string, gameID GameID, player string, delta uint64) (uint64, error) {
	if player == "" {
		return 0, ErrEmptyPlayer
	}
	if delta == 0 {
		return 0, ErrZeroDelta
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.grants[grant{principal: caller, capability: CapabilityScoreSetter}]; !ok {
		return 0, fmt.Errorf("%w: %s lacks %s", ErrUnauthorized, caller, CapabilityScoreSetter)
	}
	game := k.points[gameID]
	if game == nil {
		game = make(map[string]uint64)
		k.points[gameID] = game
	}
	if _, seen := game[player]; !seen {
		k.order[gameID] = append(k.order[gameID], player)
	}
	game[player] += delta
	return game[player], nil
}

// CanSetScores reports whether caller may call AddScore.
func (k *Keeper) CanSetScores(caller string) bool {
	return k.HasCapability(caller, CapabilityScoreSetter)
}

func (k *Keeper) GetScore(gameID GameID, player string) uint64 {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.points[gameID][player]
}

// PlayerCount is the number of players that have scored in the game.
func (k *Keeper) PlayerCount(gameID GameID) int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.points[gameID])
}

// Standings returns the given players ordered by descending points, then by
// player id. Players without points appear with zero.
func (k *Keeper) Standings(gameID GameID, players []string) []Standing {
	k.mu.RLock()
	list := make([]Standing, 0, len(players))
	for _, player := range players {
		list = append(list, Standing{Player: player, Points: k.points[gameID][player]})
	}
	k.mu.RUnlock()
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Points != list[j].Points {
			return list[i].Points > list[j].Points
		}
		return list[i].Player < list[j].Player
	})
	return list
}

// Scored lists every player with points in the game, in first-scored order.
func (k *Keeper) Scored(gameID GameID) []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return append([]string(nil), k.order[gameID]...)
}
