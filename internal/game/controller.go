// Package game fronts the hub topology, rail yard, rounds and winners stage.
// Every mutating call for a game runs under that game's lock, so operations
// on one game apply one at a time while separate games proceed in parallel.
package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/LuckyMachines/hivemind/internal/events"
	"github.com/LuckyMachines/hivemind/internal/hub"
	"github.com/LuckyMachines/hivemind/internal/ledger"
	"github.com/LuckyMachines/hivemind/internal/question"
	"github.com/LuckyMachines/hivemind/internal/railyard"
	"github.com/LuckyMachines/hivemind/internal/randomness"
	"github.com/LuckyMachines/hivemind/internal/round"
	"github.com/LuckyMachines/hivemind/internal/score"
	"github.com/LuckyMachines/hivemind/internal/winners"
)

var (
	ErrPlayerAlreadyActive = errors.New("player already in an active game")
	ErrNoActiveGame        = errors.New("player has no active game")
	ErrUnknownGame         = errors.New("unknown game")
	ErrNotARound           = errors.New("hub is not a question round")
	ErrNotAtHub            = errors.New("game is not at that hub")
	ErrGameOver            = errors.New("game is no longer active")
	ErrGameNotStarted      = errors.New("game has not started")
	ErrGameStarted         = errors.New("game already started")
	ErrNotEnoughPlayers    = errors.New("not enough players to start")
)

type Status string

const (
	StatusOpen      Status = "open"
	StatusActive    Status = "active"
	StatusFinished  Status = "finished"
	StatusAbandoned Status = "abandoned"
)

type Options struct {
	Admin        string
	Policy       round.Policy
	PrizeCutoff  int
	PrizeAmounts []uint64
	// LobbyCapacity caps an open lobby cohort; zero means no cap.
	LobbyCapacity int
	MinPlayers    int
	Questions    question.Source
	Randomness   randomness.Source
	Notifier     events.Notifier
	Ledger       *ledger.Chain
	Now          func() time.Time
}

type gameRecord struct {
	mu        sync.Mutex
	id        uint64
	railcar   railyard.ID
	createdAt time.Time
	status    Status
}

// Step reports what one UpdatePhase call did.
type Step struct {
	GameID       uint64 `json:"gameId"`
	Hub          string `json:"hub"`
	From         string `json:"from,omitempty"`
	To           string `json:"to,omitempty"`
	WinningIndex []int  `json:"winningIndex,omitempty"`
	MovedTo      string `json:"movedTo,omitempty"`
}

// Info summarizes a game for the API and the stats report.
type Info struct {
	ID        uint64    `json:"id"`
	RailcarID uint64    `json:"railcarId"`
	Hub       string    `json:"hub"`
	Status    Status    `json:"status"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"createdAt"`
}

type Controller struct {
	registry *hub.Registry
	topology Topology
	yard     *railyard.Yard
	scores   *score.Keeper
	rounds   map[hub.ID]*round.Round
	winners  *winners.Winners
	ledger   *ledger.Chain
	notifier events.Notifier
	now      func() time.Time
	capacity int
	minimum  int

	// lobbyMu serializes lobby joins and starts. Lock order is lobbyMu,
	// then a game's mutex, then mu.
	lobbyMu sync.Mutex

	mu     sync.Mutex
	nextID uint64
	games  map[uint64]*gameRecord
	active map[string]uint64
	// open is the lobby game accepting joins, zero when there is none.
	open uint64
}

// finalRound adapts the last round to the winners gate.
type finalRound struct {
	r *round.Round
}

func (f finalRound) Closed(gameID uint64) bool {
	return f.r.Phase(gameID) == round.PhaseClosed
}

func NewController(ctx context.Context, opts Options) (*Controller, error) {
	if opts.Questions == nil || opts.Randomness == nil {
		return nil, errors.New("question and randomness sources are required")
	}
	c := &Controller{
		registry: hub.NewRegistry(),
		scores:   score.NewKeeper(opts.Admin),
		rounds:   make(map[hub.ID]*round.Round),
		ledger:   opts.Ledger,
		notifier: opts.Notifier,
		now:      opts.Now,
		capacity: opts.LobbyCapacity,
		minimum:  opts.MinPlayers,
		nextID:   1,
		games:    make(map[uint64]*gameRecord),
		active:   make(map[string]uint64),
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.notifier == nil {
		c.notifier = events.Discard{}
	}
	if c.ledger == nil {
		c.ledger = ledger.New(nil)
	}
	if c.minimum < 1 {
		c.minimum = 1
	}

	topo, err := Bootstrap(c.registry)
	if err != nil {
		return nil, err
	}
	c.topology = topo
	c.yard = railyard.New(c.registry, topo.Lobby)

	for i, id := range topo.Rounds {
		name := RoundHubs[i]
		if err := c.scores.GrantScoreSetterRole(opts.Admin, name); err != nil {
			return nil, err
		}
		c.rounds[id] = round.New(round.Options{
			Name:       name,
			Policy:     opts.Policy,
			Scores:     c.scores,
			Questions:  opts.Questions,
			Randomness: opts.Randomness,
			Notifier:   c.notifier,
			Now:        c.now,
		})
	}
	last := c.rounds[topo.Rounds[len(topo.Rounds)-1]]
	c.winners = winners.New(c.scores, finalRound{r: last}, opts.PrizeCutoff, opts.PrizeAmounts)
	c.winners.SetClock(c.now)

	registered, err := c.replay(ctx, c.ledger.Blocks(1))
	if err != nil {
		return nil, err
	}
	if lastID := c.ledger.LastGameID(); lastID >= c.nextID {
		c.nextID = lastID + 1
	}
	for id := hub.ID(1); int(id) <= c.registry.Len(); id++ {
		name, _ := c.registry.NameFromID(id)
		if registered[name] {
			continue
		}
		c.record(ctx, ledger.Entry{Kind: ledger.KindHubRegistered, Hub: name, Payload: ledger.Payload{HubID: uint64(id)}})
	}
	return c, nil
}

func (c *Controller) Registry() *hub.Registry {
	return c.registry
}

func (c *Controller) Topology() Topology {
	return c.topology
}

func (c *Controller) Ledger() *ledger.Chain {
	return c.ledger
}

func (c *Controller) Scores() *score.Keeper {
	return c.scores
}

func (c *Controller) record(ctx context.Context, entry ledger.Entry) {
	if _, err := c.ledger.Append(ctx, entry); err != nil {
		log.Printf("ledger append failed kind=%s game_id=%d error=%v", entry.Kind, entry.GameID, err)
	}
}

func (c *Controller) hubName(id hub.ID) string {
	name, err := c.registry.NameFromID(id)
	if err != nil {
		return ""
	}
	return name
}

func (c *Controller) game(gameID uint64) (*gameRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.games[gameID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownGame, gameID)
	}
	return rec, nil
}

func (c *Controller) roundByName(name string) (*round.Round, hub.ID, error) {
	id, err := c.registry.IDFromName(name)
	if err != nil {
		return nil, 0, err
	}
	r, ok := c.rounds[id]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrNotARound, name)
	}
	return r, id, nil
}

// StartGame forms a cohort in the lobby, mints a game id and opens round
// one for it.
func (c *Controller) StartGame(ctx context.Context, players []string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, player := range players {
		if gameID, ok := c.active[player]; ok {
			return 0, fmt.Errorf("%w: %s in game %d", ErrPlayerAlreadyActive, player, gameID)
		}
	}
	car, err := c.yard.FormCohort(players)
	if err != nil {
		return 0, err
	}
	rec := &gameRecord{id: c.nextID, railcar: car, createdAt: c.now(), status: StatusOpen}
	if err := c.launch(ctx, rec, players); err != nil {
		if rec.status == StatusActive {
			c.nextID++
		}
		_ = c.yard.Retire(car)
		return 0, err
	}
	c.nextID++
	c.games[rec.id] = rec
	for _, player := range players {
		c.active[player] = rec.id
	}
	return rec.id, nil
}

// launch opens round one for a lobby cohort and moves it there. It does
// not take c.mu.
func (c *Controller) launch(ctx context.Context, rec *gameRecord, players []string) error {
	first := c.topology.Rounds[0]
	firstRound := c.rounds[first]
	if err := firstRound.Start(ctx, rec.id, uint64(rec.railcar), players); err != nil {
		return err
	}
	rec.status = StatusActive
	c.record(ctx, ledger.Entry{
		Kind:    ledger.KindGameStarted,
		GameID:  rec.id,
		Hub:     LobbyHub,
		Payload: ledger.Payload{RailcarID: uint64(rec.railcar), HubID: uint64(c.topology.Lobby), Members: append([]string(nil), players...)},
	})
	c.notifier.Notify(events.New(events.KindGameStarted, LobbyHub, rec.id, uint64(rec.railcar), c.now()))
	c.recordRoundStart(ctx, firstRound, rec.id)
	if err := c.yard.MoveCohort(rec.railcar, c.topology.Lobby, first); err != nil {
		return err
	}
	c.record(ctx, ledger.Entry{
		Kind:    ledger.KindCohortMoved,
		GameID:  rec.id,
		Hub:     firstRound.Name(),
		Payload: ledger.Payload{RailcarID: uint64(rec.railcar), HubID: uint64(first), From: LobbyHub, To: firstRound.Name()},
	})
	log.Printf("game started game_id=%d railcar_id=%d players=%d", rec.id, rec.railcar, len(players))
	return nil
}

func (c *Controller) recordRoundStart(ctx context.Context, r *round.Round, gameID uint64) {
	minority, _ := r.IsMinority(gameID)
	draw, _ := r.Draw(gameID)
	c.record(ctx, ledger.Entry{
		Kind:    ledger.KindRoundStarted,
		GameID:  gameID,
		Hub:     r.Name(),
		Payload: ledger.Payload{Minority: &minority, Proof: fmt.Sprintf("%x", draw.Proof)},
	})
}

// lockAtRound checks the game sits at hubName and the player is bound to it,
// then locks the game.
// Callers must unlock rec.mu.
func (c *Controller) lockAtRound(gameID uint64, hubName, player string) (*gameRecord, *round.Round, error) {
	rec, err := c.game(gameID)
	if err != nil {
		return nil, nil, err
	}
	r, id, err := c.roundByName(hubName)
	if err != nil {
		return nil, nil, err
	}
	c.mu.Lock()
	bound, ok := c.active[player]
	c.mu.Unlock()
	if !ok || bound != gameID {
		return nil, nil, fmt.Errorf("%w: %s", round.ErrNotParticipant, player)
	}
	rec.mu.Lock()
	if rec.status == StatusOpen {
		rec.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: %d", ErrGameNotStarted, gameID)
	}
	if rec.status != StatusActive {
		rec.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: %d", ErrGameOver, gameID)
	}
	location, err := c.yard.LocationOf(rec.railcar)
	if err != nil {
		rec.mu.Unlock()
		return nil, nil, err
	}
	if location != id {
		rec.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: game %d is at %s", ErrNotAtHub, gameID, c.hubName(location))
	}
	return rec, r, nil
}

func (c *Controller) SubmitAnswer(ctx context.Context, gameID uint64, hubName, player string, commit round.Commit) error {
	rec, r, err := c.lockAtRound(gameID, hubName, player)
	if err != nil {
		return err
	}
	defer rec.mu.Unlock()
	total, err := r.SubmitAnswer(gameID, player, commit)
	if err != nil {
		return err
	}
	c.record(ctx, ledger.Entry{
		Kind:    ledger.KindAnswerSubmitted,
		GameID:  gameID,
		Hub:     hubName,
		Player:  player,
		Payload: ledger.Payload{Commit: commit.String(), Delta: r.Policy().SubmissionPoints, Total: total},
	})
	return nil
}

func (c *Controller) RevealAnswer(ctx context.Context, gameID uint64, hubName, player string, playerChoice, crowdChoice int, phrase string) (round.Reveal, error) {
	rec, r, err := c.lockAtRound(gameID, hubName, player)
	if err != nil {
		return round.Reveal{}, err
	}
	defer rec.mu.Unlock()
	reveal, err := r.RevealAnswer(gameID, player, playerChoice, crowdChoice, phrase)
	if err != nil {
		return round.Reveal{}, err
	}
	c.record(ctx, ledger.Entry{
		Kind:   ledger.KindAnswerRevealed,
		GameID: gameID,
		Hub:    hubName,
		Player: player,
		Payload: ledger.Payload{
			PlayerChoice: &reveal.PlayerChoice,
			CrowdChoice:  &reveal.CrowdChoice,
			Delta:        reveal.FastBonus,
			Total:        c.scores.GetScore(score.GameID(gameID), player),
		},
	})
	return reveal, nil
}

// NeedsUpdate is the keeper predicate: the current round has a phase
// transition due, or it closed and the cohort still has to move on.
func (c *Controller) NeedsUpdate(gameID uint64) (bool, error) {
	rec, err := c.game(gameID)
	if err != nil {
		return false, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.status != StatusActive {
		return false, nil
	}
	location, err := c.yard.LocationOf(rec.railcar)
	if err != nil {
		return false, err
	}
	r, ok := c.rounds[location]
	if !ok {
		return false, nil
	}
	if r.Phase(gameID) == round.PhaseClosed {
		return true, nil
	}
	return r.NeedsUpdate(gameID), nil
}

// UpdatePhase advances the game's current round and, once it closes, moves
// the cohort to the next hub.
func (c *Controller) UpdatePhase(ctx context.Context, gameID uint64) (Step, error) {
	rec, err := c.game(gameID)
	if err != nil {
		return Step{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.status != StatusActive {
		return Step{}, round.ErrNothingToUpdate
	}
	location, err := c.yard.LocationOf(rec.railcar)
	if err != nil {
		return Step{}, err
	}
	r, ok := c.rounds[location]
	if !ok {
		return Step{}, round.ErrNothingToUpdate
	}
	step := Step{GameID: gameID, Hub: r.Name()}
	if r.Phase(gameID) != round.PhaseClosed {
		tr, err := r.UpdatePhase(gameID)
		if err != nil {
			return Step{}, err
		}
		step.From = tr.From.String()
		step.To = tr.To.String()
		step.WinningIndex = tr.WinningIndex
		c.recordTransition(ctx, r, gameID, tr)
		if tr.To != round.PhaseClosed {
			return step, nil
		}
	}
	moved, err := c.advanceCohort(ctx, rec, location)
	if err != nil {
		return step, err
	}
	step.MovedTo = moved
	return step, nil
}

func (c *Controller) recordTransition(ctx context.Context, r *round.Round, gameID uint64, tr round.Transition) {
	minority, _ := r.IsMinority(gameID)
	tally, _ := r.ResponseScores(gameID)
	payload := ledger.Payload{
		From:     tr.From.String(),
		To:       tr.To.String(),
		Minority: &minority,
		Tally:    tally[:],
	}
	if tr.To == round.PhaseClosed {
		payload.WinningIndex = tr.WinningIndex
		payload.Scores = make(map[string]uint64, len(tr.Awards))
		for player := range tr.Awards {
			payload.Scores[player] = c.scores.GetScore(score.GameID(gameID), player)
		}
	}
	c.record(ctx, ledger.Entry{Kind: ledger.KindPhaseAdvanced, GameID: gameID, Hub: r.Name(), Payload: payload})
}

// advanceCohort moves a cohort off a closed round. The next round is
// started before the move so a failed start leaves the cohort in place.
func (c *Controller) advanceCohort(ctx context.Context, rec *gameRecord, from hub.ID) (string, error) {
	next, ok, err := c.registry.Outgoing(from)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: no outgoing connection from %s", hub.ErrTransitionNotAllowed, c.hubName(from))
	}
	members, err := c.yard.MembersOf(rec.railcar)
	if err != nil {
		return "", err
	}
	nextName := c.hubName(next)
	if r, isRound := c.rounds[next]; isRound {
		if err := r.Start(ctx, rec.id, uint64(rec.railcar), members); err != nil {
			return "", err
		}
		c.recordRoundStart(ctx, r, rec.id)
	}
	if err := c.yard.MoveCohort(rec.railcar, from, next); err != nil {
		return "", err
	}
	c.record(ctx, ledger.Entry{
		Kind:    ledger.KindCohortMoved,
		GameID:  rec.id,
		Hub:     nextName,
		Payload: ledger.Payload{RailcarID: uint64(rec.railcar), HubID: uint64(next), From: c.hubName(from), To: nextName},
	})
	log.Printf("cohort moved game_id=%d railcar_id=%d from=%s to=%s", rec.id, rec.railcar, c.hubName(from), nextName)

	if next == c.topology.Winners {
		c.notifier.Notify(events.New(events.KindEnterWinners, WinnersHub, rec.id, uint64(rec.railcar), c.now()))
		if err := c.finalizeLocked(ctx, rec, members); err != nil {
			return nextName, err
		}
	}
	return nextName, nil
}

func (c *Controller) finalizeLocked(ctx context.Context, rec *gameRecord, members []string) error {
	already := c.winners.Finalized(rec.id)
	entries, err := c.winners.Finalize(rec.id, members)
	if err != nil {
		return err
	}
	rec.status = StatusFinished
	if already {
		return nil
	}
	ranking := make([]ledger.Rank, 0, len(entries))
	for _, e := range entries {
		ranking = append(ranking, ledger.Rank{Player: e.Player, Points: e.Points, Rank: e.Rank, Payout: e.Payout})
	}
	c.record(ctx, ledger.Entry{Kind: ledger.KindFinalized, GameID: rec.id, Hub: WinnersHub, Payload: ledger.Payload{Ranking: ranking}})
	return nil
}

// Finalize ranks a game whose cohort has reached winners. Repeated calls
// return the stored ranking.
func (c *Controller) Finalize(ctx context.Context, gameID uint64) ([]winners.Entry, error) {
	rec, err := c.game(gameID)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if c.winners.Finalized(gameID) {
		return c.winners.Ranking(gameID)
	}
	members, err := c.yard.MembersOf(rec.railcar)
	if err != nil {
		return nil, err
	}
	if err := c.finalizeLocked(ctx, rec, members); err != nil {
		return nil, err
	}
	return c.winners.Ranking(gameID)
}

// Abandon releases the player's game binding and takes them off the
// cohort. Scores and tallies already recorded stay. A cohort left empty is
// retired and the game marked abandoned.
func (c *Controller) Abandon(ctx context.Context, player string) error {
	c.mu.Lock()
	gameID, ok := c.active[player]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoActiveGame, player)
	}
	rec, err := c.game(gameID)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	location, err := c.yard.LocationOf(rec.railcar)
	if err != nil {
		return err
	}
	remaining, err := c.leaveLocked(rec, player)
	if err != nil {
		return err
	}
	if r, isRound := c.rounds[location]; isRound {
		r.Drop(gameID, player)
	}
	retired := remaining == 0
	if retired && (rec.status == StatusActive || rec.status == StatusOpen) {
		c.retireLocked(rec)
		c.notifier.Notify(events.New(events.KindGameAbandoned, c.hubName(location), gameID, uint64(rec.railcar), c.now()))
	}
	members, _ := c.yard.MembersOf(rec.railcar)
	c.record(ctx, ledger.Entry{
		Kind:    ledger.KindAbandoned,
		GameID:  gameID,
		Hub:     c.hubName(location),
		Player:  player,
		Payload: ledger.Payload{RailcarID: uint64(rec.railcar), Members: members, Retired: retired},
	})
	log.Printf("player left game game_id=%d player=%s remaining=%d", gameID, player, remaining)
	return nil
}

// retireLocked marks an emptied game abandoned and stops its rounds.
func (c *Controller) retireLocked(rec *gameRecord) {
	rec.status = StatusAbandoned
	for _, r := range c.rounds {
		r.Retire(rec.id)
	}
	c.mu.Lock()
	if c.open == rec.id {
		c.open = 0
	}
	c.mu.Unlock()
}

// leaveLocked drops the player from the cohort and the active index,
// retiring the railcar once it is empty.
func (c *Controller) leaveLocked(rec *gameRecord, player string) (int, error) {
	remaining, err := c.yard.RemoveMember(rec.railcar, player)
	if err != nil {
		return 0, err
	}
	if remaining == 0 {
		if err := c.yard.Retire(rec.railcar); err != nil {
			return 0, err
		}
	}
	c.mu.Lock()
	if c.active[player] == rec.id {
		delete(c.active, player)
	}
	c.mu.Unlock()
	return remaining, nil
}

// ClaimPrize pays an eligible player and releases their binding so they
// can join a new game.
func (c *Controller) ClaimPrize(ctx context.Context, gameID uint64, player string) (uint64, error) {
	rec, err := c.game(gameID)
	if err != nil {
		return 0, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	amount, err := c.winners.ClaimPrize(gameID, player)
	if err != nil {
		return 0, err
	}
	c.record(ctx, ledger.Entry{Kind: ledger.KindPrizeClaimed, GameID: gameID, Hub: WinnersHub, Player: player, Payload: ledger.Payload{Amount: amount}})
	if car, aboard := c.yard.RailcarOf(player); aboard && car == rec.railcar {
		if _, err := c.leaveLocked(rec, player); err != nil {
			log.Printf("release after claim failed game_id=%d player=%s error=%v", gameID, player, err)
		}
	}
	return amount, nil
}

func (c *Controller) CurrentGame(player string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gameID, ok := c.active[player]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoActiveGame, player)
	}
	return gameID, nil
}

func (c *Controller) IsInActiveGame(player string) bool {
	_, err := c.CurrentGame(player)
	return err == nil
}

// LatestRound is the hub the game's cohort currently occupies.
func (c *Controller) LatestRound(gameID uint64) (string, error) {
	rec, err := c.game(gameID)
	if err != nil {
		return "", err
	}
	location, err := c.yard.LocationOf(rec.railcar)
	if err != nil {
		return "", err
	}
	return c.hubName(location), nil
}

func (c *Controller) RailcarID(gameID uint64) (uint64, error) {
	rec, err := c.game(gameID)
	if err != nil {
		return 0, err
	}
	return uint64(rec.railcar), nil
}

func (c *Controller) RailcarMembers(gameID uint64) ([]string, error) {
	rec, err := c.game(gameID)
	if err != nil {
		return nil, err
	}
	return c.yard.MembersOf(rec.railcar)
}

func (c *Controller) PlayerCount(gameID uint64) (int, error) {
	members, err := c.RailcarMembers(gameID)
	if err != nil {
		return 0, err
	}
	return len(members), nil
}

func (c *Controller) Info(gameID uint64) (Info, error) {
	rec, err := c.game(gameID)
	if err != nil {
		return Info{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	car, err := c.yard.Get(rec.railcar)
	if err != nil {
		return Info{}, err
	}
	return Info{
		ID:        rec.id,
		RailcarID: uint64(rec.railcar),
		Hub:       c.hubName(car.Location),
		Status:    rec.status,
		Members:   car.Members,
		CreatedAt: rec.createdAt,
	}, nil
}

// Done reports whether the keeper can stop driving a game.
func (c *Controller) Done(gameID uint64) bool {
	rec, err := c.game(gameID)
	if err != nil {
		return true
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.status != StatusActive
}

// ActiveGames lists games still moving through rounds.
func (c *Controller) ActiveGames() []uint64 {
	c.mu.Lock()
	records := make([]*gameRecord, 0, len(c.games))
	for _, rec := range c.games {
		records = append(records, rec)
	}
	c.mu.Unlock()
	var ids []uint64
	for _, rec := range records {
		rec.mu.Lock()
		if rec.status == StatusActive {
			ids = append(ids, rec.id)
		}
		rec.mu.Unlock()
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (c *Controller) Score(gameID uint64, player string) uint64 {
	return c.scores.GetScore(score.GameID(gameID), player)
}

func (c *Controller) roundFor(hubName string, gameID uint64) (*round.Round, error) {
	if _, err := c.game(gameID); err != nil {
		return nil, err
	}
	r, _, err := c.roundByName(hubName)
	return r, err
}

func (c *Controller) Question(hubName string, gameID uint64) (question.Question, error) {
	r, err := c.roundFor(hubName, gameID)
	if err != nil {
		return question.Question{}, err
	}
	return r.Question(gameID)
}

func (c *Controller) ResponseScores(hubName string, gameID uint64) (round.Tally, error) {
	r, err := c.roundFor(hubName, gameID)
	if err != nil {
		return round.Tally{}, err
	}
	return r.ResponseScores(gameID)
}

func (c *Controller) WinningIndex(hubName string, gameID uint64) ([]int, error) {
	r, err := c.roundFor(hubName, gameID)
	if err != nil {
		return nil, err
	}
	return r.WinningIndex(gameID)
}

func (c *Controller) PlayerGuess(hubName string, gameID uint64, player string) (round.Reveal, error) {
	r, err := c.roundFor(hubName, gameID)
	if err != nil {
		return round.Reveal{}, err
	}
	return r.PlayerGuess(gameID, player)
}

func (c *Controller) IsMinorityRound(hubName string, gameID uint64) (bool, error) {
	r, err := c.roundFor(hubName, gameID)
	if err != nil {
		return false, err
	}
	return r.IsMinority(gameID)
}

func (c *Controller) RoundPhase(hubName string, gameID uint64) (round.Phase, error) {
	r, err := c.roundFor(hubName, gameID)
	if err != nil {
		return round.PhaseIdle, err
	}
	return r.Phase(gameID), nil
}

func (c *Controller) RoundSnapshot(hubName string, gameID uint64) (round.Snapshot, error) {
	r, err := c.roundFor(hubName, gameID)
	if err != nil {
		return round.Snapshot{}, err
	}
	return r.Snapshot(gameID)
}

func (c *Controller) FinalRanking(gameID uint64, player string) (int, error) {
	if _, err := c.game(gameID); err != nil {
		return 0, err
	}
	return c.winners.GetFinalRanking(gameID, player)
}

func (c *Controller) Ranking(gameID uint64) ([]winners.Entry, error) {
	if _, err := c.game(gameID); err != nil {
		return nil, err
	}
	return c.winners.Ranking(gameID)
}

func (c *Controller) CheckPayout(player string) uint64 {
	return c.winners.CheckPayout(player)
}

func (c *Controller) PrizeCutoff() int {
	return c.winners.Cutoff()
}
