package game

import (
	"context"
	"fmt"
	"log"

	"github.com/LuckyMachines/hivemind/internal/events"
	"github.com/LuckyMachines/hivemind/internal/ledger"
)

// Lobby describes the cohort currently waiting to start.
type Lobby struct {
	GameID   uint64   `json:"gameId"`
	Members  []string `json:"members"`
	CanStart bool     `json:"canStart"`
	Capacity int      `json:"capacity,omitempty"`
}

// JoinLobby boards a player onto the open lobby cohort, forming a new one
// and minting its game id when none is accepting players.
func (c *Controller) JoinLobby(ctx context.Context, player string) (uint64, error) {
	c.lobbyMu.Lock()
	defer c.lobbyMu.Unlock()

	c.mu.Lock()
	if gameID, ok := c.active[player]; ok {
		c.mu.Unlock()
		return 0, fmt.Errorf("%w: %s in game %d", ErrPlayerAlreadyActive, player, gameID)
	}
	var rec *gameRecord
	if c.open != 0 {
		rec = c.games[c.open]
	}
	c.mu.Unlock()

	if rec != nil {
		rec.mu.Lock()
		if rec.status == StatusOpen {
			defer rec.mu.Unlock()
			return c.joinLocked(ctx, rec, player)
		}
		rec.mu.Unlock()
	}
	return c.openLobby(ctx, player)
}

func (c *Controller) joinLocked(ctx context.Context, rec *gameRecord, player string) (uint64, error) {
	count, err := c.yard.AddMember(rec.railcar, player)
	if err != nil {
		return 0, err
	}
	if !c.bind(player, rec.id) {
		_, _ = c.yard.RemoveMember(rec.railcar, player)
		return 0, fmt.Errorf("%w: %s", ErrPlayerAlreadyActive, player)
	}
	if c.capacity > 0 && count >= c.capacity {
		c.mu.Lock()
		if c.open == rec.id {
			c.open = 0
		}
		c.mu.Unlock()
	}
	c.recordJoin(ctx, rec, player)
	return rec.id, nil
}

// openLobby forms a one-player cohort and makes it the open lobby game.
func (c *Controller) openLobby(ctx context.Context, player string) (uint64, error) {
	car, err := c.yard.FormCohort([]string{player})
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	if gameID, ok := c.active[player]; ok {
		c.mu.Unlock()
		_ = c.yard.Retire(car)
		return 0, fmt.Errorf("%w: %s in game %d", ErrPlayerAlreadyActive, player, gameID)
	}
	rec := &gameRecord{id: c.nextID, railcar: car, createdAt: c.now(), status: StatusOpen}
	c.nextID++
	c.games[rec.id] = rec
	c.active[player] = rec.id
	if c.capacity != 1 {
		c.open = rec.id
	}
	c.mu.Unlock()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	c.recordJoin(ctx, rec, player)
	log.Printf("lobby opened game_id=%d railcar_id=%d player=%s", rec.id, car, player)
	return rec.id, nil
}

// bind records the player's current game unless they already have one.
func (c *Controller) bind(player string, gameID uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.active[player]; ok {
		return false
	}
	c.active[player] = gameID
	return true
}

func (c *Controller) recordJoin(ctx context.Context, rec *gameRecord, player string) {
	members, _ := c.yard.MembersOf(rec.railcar)
	c.record(ctx, ledger.Entry{
		Kind:    ledger.KindLobbyJoined,
		GameID:  rec.id,
		Hub:     LobbyHub,
		Player:  player,
		Payload: ledger.Payload{RailcarID: uint64(rec.railcar), HubID: uint64(c.topology.Lobby), Members: members},
	})
	c.notifier.Notify(events.New(events.KindLobbyJoined, LobbyHub, rec.id, uint64(rec.railcar), c.now()))
}

// OpenLobby returns the lobby game accepting joins.
func (c *Controller) OpenLobby() (Lobby, bool) {
	c.mu.Lock()
	gameID := c.open
	c.mu.Unlock()
	if gameID == 0 {
		return Lobby{}, false
	}
	members, err := c.RailcarMembers(gameID)
	if err != nil {
		return Lobby{}, false
	}
	ok, _ := c.CanStart(gameID)
	return Lobby{GameID: gameID, Members: members, CanStart: ok, Capacity: c.capacity}, true
}

// CanStart reports whether a lobby game has enough players to start.
func (c *Controller) CanStart(gameID uint64) (bool, error) {
	rec, err := c.game(gameID)
	if err != nil {
		return false, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.status != StatusOpen {
		return false, nil
	}
	members, err := c.yard.MembersOf(rec.railcar)
	if err != nil {
		return false, err
	}
	return len(members) >= c.minimum, nil
}

// StartLobbyGame moves a waiting lobby cohort into round one.
func (c *Controller) StartLobbyGame(ctx context.Context, gameID uint64) error {
	c.lobbyMu.Lock()
	defer c.lobbyMu.Unlock()
	rec, err := c.game(gameID)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	switch rec.status {
	case StatusOpen:
	case StatusActive:
		return fmt.Errorf("%w: %d", ErrGameStarted, gameID)
	default:
		return fmt.Errorf("%w: %d", ErrGameOver, gameID)
	}
	members, err := c.yard.MembersOf(rec.railcar)
	if err != nil {
		return err
	}
	if len(members) < c.minimum {
		return fmt.Errorf("%w: have %d, need %d", ErrNotEnoughPlayers, len(members), c.minimum)
	}
	c.mu.Lock()
	wasOpen := c.open == gameID
	if wasOpen {
		c.open = 0
	}
	c.mu.Unlock()
	if err := c.launch(ctx, rec, members); err != nil {
		if wasOpen && rec.status == StatusOpen {
			c.mu.Lock()
			c.open = gameID
			c.mu.Unlock()
		}
		return err
	}
	return nil
}
