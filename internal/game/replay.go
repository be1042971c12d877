package game

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"

	"github.com/LuckyMachines/hivemind/internal/hub"
	"github.com/LuckyMachines/hivemind/internal/ledger"
	"github.com/LuckyMachines/hivemind/internal/railyard"
	"github.com/LuckyMachines/hivemind/internal/round"
	"github.com/LuckyMachines/hivemind/internal/score"
	"github.com/LuckyMachines/hivemind/internal/winners"
)

// replay rebuilds games, cohorts, rounds, scores and rankings from a
// resumed chain. It runs before the controller is shared, records nothing
// and emits no notifications. It returns the hub names the chain already
// registers.
func (c *Controller) replay(ctx context.Context, blocks []ledger.Block) (map[string]bool, error) {
	registered := make(map[string]bool)
	games := 0
	for _, b := range blocks {
		if b.Kind == ledger.KindHubRegistered {
			registered[b.Hub] = true
			continue
		}
		p, err := b.Decode()
		if err != nil {
			return nil, fmt.Errorf("replay block %d: %w", b.Index, err)
		}
		if b.Kind == ledger.KindLobbyJoined || b.Kind == ledger.KindGameStarted {
			if _, known := c.games[b.GameID]; !known {
				games++
			}
		}
		if err := c.apply(ctx, b, p); err != nil {
			return nil, fmt.Errorf("replay block %d kind=%s game_id=%d: %w", b.Index, b.Kind, b.GameID, err)
		}
	}
	if games > 0 {
		log.Printf("game state restored games=%d active=%d blocks=%d", games, len(c.ActiveGames()), len(blocks))
	}
	return registered, nil
}

func (c *Controller) apply(ctx context.Context, b ledger.Block, p ledger.Payload) error {
	switch b.Kind {
	case ledger.KindLobbyJoined:
		rec := c.games[b.GameID]
		if rec == nil {
			rec = c.restoreGame(b, p, StatusOpen)
			c.open = rec.id
		}
		if err := c.yard.Restore(rec.railcar, p.Members, c.topology.Lobby); err != nil {
			return err
		}
		c.active[b.Player] = rec.id
		if c.capacity > 0 && len(p.Members) >= c.capacity && c.open == rec.id {
			c.open = 0
		}
	case ledger.KindGameStarted:
		rec := c.games[b.GameID]
		if rec == nil {
			rec = c.restoreGame(b, p, StatusActive)
		}
		rec.status = StatusActive
		if err := c.yard.Restore(rec.railcar, p.Members, c.topology.Lobby); err != nil {
			return err
		}
		for _, player := range p.Members {
			c.active[player] = rec.id
		}
		if c.open == rec.id {
			c.open = 0
		}
	case ledger.KindRoundStarted:
		rec, r, err := c.replayRound(b)
		if err != nil {
			return err
		}
		members, err := c.yard.MembersOf(rec.railcar)
		if err != nil {
			return err
		}
		proof, err := hex.DecodeString(p.Proof)
		if err != nil {
			return err
		}
		minority := p.Minority != nil && *p.Minority
		return r.Restore(ctx, rec.id, uint64(rec.railcar), members, minority, proof, b.Timestamp)
	case ledger.KindAnswerSubmitted:
		_, r, err := c.replayRound(b)
		if err != nil {
			return err
		}
		commit, err := round.ParseCommit(p.Commit)
		if err != nil {
			return err
		}
		if err := r.RestoreCommit(b.GameID, b.Player, commit); err != nil {
			return err
		}
		return c.restoreScore(b.Hub, b.GameID, b.Player, p.Total)
	case ledger.KindAnswerRevealed:
		_, r, err := c.replayRound(b)
		if err != nil {
			return err
		}
		if p.PlayerChoice == nil || p.CrowdChoice == nil {
			return round.ErrInvalidChoice
		}
		if err := r.RestoreReveal(b.GameID, b.Player, *p.PlayerChoice, *p.CrowdChoice, p.Delta, b.Timestamp); err != nil {
			return err
		}
		return c.restoreScore(b.Hub, b.GameID, b.Player, p.Total)
	case ledger.KindPhaseAdvanced:
		_, r, err := c.replayRound(b)
		if err != nil {
			return err
		}
		to, err := round.ParsePhase(p.To)
		if err != nil {
			return err
		}
		if err := r.RestorePhase(b.GameID, to, p.WinningIndex, b.Timestamp); err != nil {
			return err
		}
		for player, total := range p.Scores {
			if err := c.restoreScore(b.Hub, b.GameID, player, total); err != nil {
				return err
			}
		}
	case ledger.KindCohortMoved:
		rec, err := c.replayGame(b.GameID)
		if err != nil {
			return err
		}
		from, err := c.registry.IDFromName(p.From)
		if err != nil {
			return err
		}
		return c.yard.MoveCohort(rec.railcar, from, hub.ID(p.HubID))
	case ledger.KindFinalized:
		rec, err := c.replayGame(b.GameID)
		if err != nil {
			return err
		}
		entries := make([]winners.Entry, 0, len(p.Ranking))
		for _, r := range p.Ranking {
			entries = append(entries, winners.Entry{Player: r.Player, Points: r.Points, Rank: r.Rank, Payout: r.Payout})
		}
		c.winners.Restore(rec.id, entries, b.Timestamp)
		rec.status = StatusFinished
	case ledger.KindPrizeClaimed:
		rec, err := c.replayGame(b.GameID)
		if err != nil {
			return err
		}
		if err := c.winners.RestoreClaim(rec.id, b.Player, b.Timestamp); err != nil {
			return err
		}
		if car, aboard := c.yard.RailcarOf(b.Player); aboard && car == rec.railcar {
			_, err := c.leaveLocked(rec, b.Player)
			return err
		}
	case ledger.KindAbandoned:
		rec, err := c.replayGame(b.GameID)
		if err != nil {
			return err
		}
		location, err := c.yard.LocationOf(rec.railcar)
		if err != nil {
			return err
		}
		if _, err := c.leaveLocked(rec, b.Player); err != nil {
			return err
		}
		if r, isRound := c.rounds[location]; isRound {
			r.Drop(rec.id, b.Player)
		}
		if p.Retired && (rec.status == StatusActive || rec.status == StatusOpen) {
			c.retireLocked(rec)
		}
	}
	return nil
}

func (c *Controller) restoreGame(b ledger.Block, p ledger.Payload, status Status) *gameRecord {
	rec := &gameRecord{
		id:        b.GameID,
		railcar:   railyard.ID(p.RailcarID),
		createdAt: b.Timestamp,
		status:    status,
	}
	c.games[rec.id] = rec
	if rec.id >= c.nextID {
		c.nextID = rec.id + 1
	}
	return rec
}

func (c *Controller) replayGame(gameID uint64) (*gameRecord, error) {
	rec, ok := c.games[gameID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownGame, gameID)
	}
	return rec, nil
}

func (c *Controller) replayRound(b ledger.Block) (*gameRecord, *round.Round, error) {
	rec, err := c.replayGame(b.GameID)
	if err != nil {
		return nil, nil, err
	}
	r, _, err := c.roundByName(b.Hub)
	if err != nil {
		return nil, nil, err
	}
	return rec, r, nil
}

// restoreScore raises a player's points to a recorded total through the
// round's own score-setter grant.
func (c *Controller) restoreScore(roundName string, gameID uint64, player string, total uint64) error {
	current := c.scores.GetScore(score.GameID(gameID), player)
	if total <= current {
		return nil
	}
	_, err := c.scores.AddScore(roundName, score.GameID(gameID), player, total-current)
	return err
}
