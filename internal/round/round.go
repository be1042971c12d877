// Package round implements one question round: the commit-reveal answer
// store, the crowd tally, majority/minority scoring and the phase machine
// Collecting -> Revealing -> Closed, kept independently per game.
package round

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/LuckyMachines/hivemind/internal/events"
	"github.com/LuckyMachines/hivemind/internal/question"
	"github.com/LuckyMachines/hivemind/internal/randomness"
	"github.com/LuckyMachines/hivemind/internal/score"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCollecting
	PhaseRevealing
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseCollecting:
		return "collecting"
	case PhaseRevealing:
		return "revealing"
	case PhaseClosed:
		return "closed"
	default:
		return "idle"
	}
}

var (
	ErrWrongPhase       = errors.New("wrong phase")
	ErrAlreadySubmitted = errors.New("answer already submitted")
	ErrAlreadyRevealed  = errors.New("answer already revealed")
	ErrCommitMismatch   = errors.New("reveal does not match commit")
	ErrNoCommit         = errors.New("no commit to reveal")
	ErrNothingToUpdate  = errors.New("nothing to update")
	ErrNotStarted       = errors.New("round not started for game")
	ErrNotParticipant   = errors.New("player is not in this game")
	ErrInvalidChoice    = errors.New("choice must be between 0 and 3")
	ErrNotClosed        = errors.New("round not closed")
	ErrNoReveal         = errors.New("player has not revealed")
)

// Scorer is the slice of the score keeper a round needs.
type Scorer interface {
	AddScore(caller string, gameID score.GameID, player string, delta uint64) (uint64, error)
	CanSetScores(caller string) bool
}

// Policy holds the point constants and phase windows.
type Policy struct {
	SubmissionPoints    uint64
	FastRevealPoints    uint64
	WinningChoicePoints uint64
	CollectWindow       time.Duration
	RevealWindow        time.Duration
}

type Options struct {
	Name       string
	Policy     Policy
	Scores     Scorer
	Questions  question.Source
	Randomness randomness.Source
	Notifier   events.Notifier
	Now        func() time.Time
}

// Reveal is a player's disclosed answer.
type Reveal struct {
	PlayerChoice int       `json:"playerChoice"`
	CrowdChoice  int       `json:"crowdChoice"`
	FastBonus    uint64    `json:"fastBonus"`
	WinningBonus uint64    `json:"winningBonus"`
	RevealedAt   time.Time `json:"revealedAt"`
}

// Transition describes one UpdatePhase step.
type Transition struct {
	From         Phase
	To           Phase
	WinningIndex []int
	// Awards maps players to the winning-choice bonus credited on close.
	Awards map[string]uint64
}

// Snapshot is a read-only view of one game's round state.
type Snapshot struct {
	Hub             string            `json:"hub"`
	GameID          uint64            `json:"gameId"`
	RailcarID       uint64            `json:"railcarId"`
	Phase           string            `json:"phase"`
	Minority        bool              `json:"minority"`
	Question        question.Question `json:"question"`
	Expected        []string          `json:"expected"`
	Submitted       []string          `json:"submitted"`
	Revealed        []string          `json:"revealed"`
	Tally           Tally             `json:"responseScores"`
	WinningIndex    []int             `json:"winningIndex,omitempty"`
	StartedAt       time.Time         `json:"startedAt"`
	CollectDeadline time.Time         `json:"collectDeadline"`
	RevealOpenedAt  time.Time         `json:"revealOpenedAt,omitempty"`
	RevealDeadline  time.Time         `json:"revealDeadline,omitempty"`
	Retired         bool              `json:"retired,omitempty"`
}

type gameState struct {
	mu              sync.Mutex
	gameID          uint64
	railcarID       uint64
	phase           Phase
	minority        bool
	draw            randomness.Draw
	question        question.Question
	expected        []string
	commits         map[string]Commit
	reveals         map[string]*Reveal
	tally           Tally
	winning         []int
	startedAt       time.Time
	collectDeadline time.Time
	revealOpenedAt  time.Time
	revealDeadline  time.Time
	// retired games keep their history for queries but never advance.
	retired bool
}

// Round is safe for concurrent use. Each game has its own lock, so games
// never contend with each other.
type Round struct {
	name       string
	policy     Policy
	scores     Scorer
	questions  question.Source
	randomness randomness.Source
	notifier   events.Notifier
	now        func() time.Time

	mu    sync.RWMutex
	games map[uint64]*gameState
}

func New(opts Options) *Round {
	r := &Round{
		name:       opts.Name,
		policy:     opts.Policy,
		scores:     opts.Scores,
		questions:  opts.Questions,
		randomness: opts.Randomness,
		notifier:   opts.Notifier,
		now:        opts.Now,
		games:      make(map[uint64]*gameState),
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.notifier == nil {
		r.notifier = events.Discard{}
	}
	return r
}

// Name is the round's hub name and its score-setter principal.
func (r *Round) Name() string {
	return r.name
}

func (r *Round) Policy() Policy {
	return r.policy
}

func (r *Round) state(gameID uint64) (*gameState, error) {
	r.mu.RLock()
	st, ok := r.games[gameID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: hub=%s game_id=%d", ErrNotStarted, r.name, gameID)
	}
	return st, nil
}

// Start opens the round for a game: it draws the scoring mode, binds the
// question and begins collection. Starting a game twice is a no-op.
func (r *Round) Start(ctx context.Context, gameID, railcarID uint64, players []string) error {
	r.mu.RLock()
	_, exists := r.games[gameID]
	r.mu.RUnlock()
	if exists {
		return nil
	}
	q, err := r.questions.Question(ctx, r.name, gameID)
	if err != nil {
		return fmt.Errorf("question for hub=%s game_id=%d: %w", r.name, gameID, err)
	}
	seed := r.seed(gameID)
	draw, err := r.randomness.Draw(ctx, seed)
	if err != nil {
		return fmt.Errorf("randomness for hub=%s game_id=%d: %w", r.name, gameID, err)
	}

	now := r.now()
	st := &gameState{
		gameID:          gameID,
		railcarID:       railcarID,
		phase:           PhaseCollecting,
		minority:        draw.Minority(),
		draw:            draw,
		question:        q,
		expected:        append([]string(nil), players...),
		commits:         make(map[string]Commit),
		reveals:         make(map[string]*Reveal),
		startedAt:       now,
		collectDeadline: now.Add(r.policy.CollectWindow),
	}

	r.mu.Lock()
	if _, exists := r.games[gameID]; exists {
		r.mu.Unlock()
		return nil
	}
	r.games[gameID] = st
	r.mu.Unlock()

	log.Printf("round started hub=%s game_id=%d railcar_id=%d minority=%t players=%d", r.name, gameID, railcarID, st.minority, len(players))
	r.notifier.Notify(events.New(events.KindRoundStart, r.name, gameID, railcarID, now))
	return nil
}

func (r *Round) seed(gameID uint64) []byte {
	return []byte(r.name + "/" + strconv.FormatUint(gameID, 10))
}

func (st *gameState) isExpected(player string) bool {
	for _, p := range st.expected {
		if p == player {
			return true
		}
	}
	return false
}

// SubmitAnswer stores a player's commit and credits submission points.
func (r *Round) SubmitAnswer(gameID uint64, player string, commit Commit) (uint64, error) {
	st, err := r.state(gameID)
	if err != nil {
		return 0, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.isExpected(player) {
		return 0, fmt.Errorf("%w: %s", ErrNotParticipant, player)
	}
	if _, ok := st.commits[player]; ok {
		return 0, ErrAlreadySubmitted
	}
	if st.phase != PhaseCollecting || st.retired {
		return 0, fmt.Errorf("%w: %s", ErrWrongPhase, st.phase)
	}
	var total uint64
	if r.policy.SubmissionPoints > 0 {
		total, err = r.scores.AddScore(r.name, score.GameID(gameID), player, r.policy.SubmissionPoints)
		if err != nil {
			return 0, err
		}
	}
	st.commits[player] = commit
	log.Printf("answer submitted hub=%s game_id=%d player=%s", r.name, gameID, player)
	return total, nil
}

// RevealAnswer checks the disclosed answer against the stored commit,
// advances the tally and credits the fast reveal bonus.
func (r *Round) RevealAnswer(gameID uint64, player string, playerChoice, crowdChoice int, phrase string) (Reveal, error) {
	if playerChoice < 0 || playerChoice >= question.Choices || crowdChoice < 0 || crowdChoice >= question.Choices {
		return Reveal{}, ErrInvalidChoice
	}
	st, err := r.state(gameID)
	if err != nil {
		return Reveal{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.isExpected(player) {
		return Reveal{}, fmt.Errorf("%w: %s", ErrNotParticipant, player)
	}
	if st.phase != PhaseRevealing || st.retired {
		return Reveal{}, fmt.Errorf("%w: %s", ErrWrongPhase, st.phase)
	}
	if _, ok := st.reveals[player]; ok {
		return Reveal{}, ErrAlreadyRevealed
	}
	stored, ok := st.commits[player]
	if !ok {
		return Reveal{}, ErrNoCommit
	}
	if CommitHash(playerChoice, crowdChoice, phrase) != stored {
		return Reveal{}, ErrCommitMismatch
	}

	now := r.now()
	bonus := FastRevealBonus(r.policy.FastRevealPoints, r.policy.RevealWindow, now.Sub(st.revealOpenedAt))
	if bonus > 0 {
		if _, err := r.scores.AddScore(r.name, score.GameID(gameID), player, bonus); err != nil {
			return Reveal{}, err
		}
	}
	reveal := &Reveal{
		PlayerChoice: playerChoice,
		CrowdChoice:  crowdChoice,
		FastBonus:    bonus,
		RevealedAt:   now,
	}
	st.reveals[player] = reveal
	st.tally[crowdChoice]++
	log.Printf("answer revealed hub=%s game_id=%d player=%s bonus=%d", r.name, gameID, player, bonus)
	return *reveal, nil
}

// NeedsUpdate reports whether the keeper should call UpdatePhase.
func (r *Round) NeedsUpdate(gameID uint64) bool {
	st, err := r.state(gameID)
	if err != nil {
		return false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return r.needsUpdateLocked(st, r.now())
}

func (r *Round) needsUpdateLocked(st *gameState, now time.Time) bool {
	if st.retired {
		return false
	}
	switch st.phase {
	case PhaseCollecting:
		if !now.Before(st.collectDeadline) {
			return true
		}
		if len(st.expected) == 0 {
			return true
		}
		for _, player := range st.expected {
			if _, ok := st.commits[player]; !ok {
				return false
			}
		}
		return true
	case PhaseRevealing:
		if !now.Before(st.revealDeadline) {
			return true
		}
		for _, player := range st.expected {
			if _, committed := st.commits[player]; !committed {
				continue
			}
			if _, revealed := st.reveals[player]; !revealed {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// UpdatePhase advances the game's phase when NeedsUpdate holds. Closing the
// round computes the winning index and credits the winning-choice bonus.
func (r *Round) UpdatePhase(gameID uint64) (Transition, error) {
	st, err := r.state(gameID)
	if err != nil {
		return Transition{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	now := r.now()
	if !r.needsUpdateLocked(st, now) {
		return Transition{}, ErrNothingToUpdate
	}

	switch st.phase {
	case PhaseCollecting:
		st.phase = PhaseRevealing
		st.revealOpenedAt = now
		st.revealDeadline = now.Add(r.policy.RevealWindow)
		log.Printf("round advanced hub=%s game_id=%d from=%s to=%s", r.name, gameID, PhaseCollecting, PhaseRevealing)
		r.notifier.Notify(events.New(events.KindRevealStart, r.name, gameID, st.railcarID, now))
		return Transition{From: PhaseCollecting, To: PhaseRevealing}, nil
	case PhaseRevealing:
		return r.closeLocked(st, now)
	}
	return Transition{}, ErrNothingToUpdate
}

func (r *Round) closeLocked(st *gameState, now time.Time) (Transition, error) {
	winning := WinningIndex(st.tally, st.minority)
	awards := make(map[string]uint64)
	if r.policy.WinningChoicePoints > 0 {
		if !r.scores.CanSetScores(r.name) {
			return Transition{}, fmt.Errorf("%w: %s lacks %s", score.ErrUnauthorized, r.name, score.CapabilityScoreSetter)
		}
		players := make([]string, 0, len(st.reveals))
		for player := range st.reveals {
			players = append(players, player)
		}
		sort.Strings(players)
		for _, player := range players {
			reveal := st.reveals[player]
			if !contains(winning, reveal.CrowdChoice) {
				continue
			}
			if _, err := r.scores.AddScore(r.name, score.GameID(st.gameID), player, r.policy.WinningChoicePoints); err != nil {
				log.Printf("winning bonus failed hub=%s game_id=%d player=%s error=%v", r.name, st.gameID, player, err)
				continue
			}
			reveal.WinningBonus = r.policy.WinningChoicePoints
			awards[player] = r.policy.WinningChoicePoints
		}
	}
	st.winning = winning
	st.phase = PhaseClosed
	log.Printf("round advanced hub=%s game_id=%d from=%s to=%s winning=%v", r.name, st.gameID, PhaseRevealing, PhaseClosed, winning)
	r.notifier.Notify(events.New(events.KindRoundEnd, r.name, st.gameID, st.railcarID, now))
	return Transition{
		From:         PhaseRevealing,
		To:           PhaseClosed,
		WinningIndex: append([]int(nil), winning...),
		Awards:       awards,
	}, nil
}

// Drop removes an abandoning player from the expected list. Commits,
// reveals and tallies already recorded are kept.
func (r *Round) Drop(gameID uint64, player string) {
	st, err := r.state(gameID)
	if err != nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	for i, p := range st.expected {
		if p == player {
			st.expected = append(st.expected[:i:i], st.expected[i+1:]...)
			return
		}
	}
}

// Retire stops a game's round from advancing. Recorded answers stay
// readable.
func (r *Round) Retire(gameID uint64) {
	st, err := r.state(gameID)
	if err != nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.retired = true
}

func (r *Round) Started(gameID uint64) bool {
	_, err := r.state(gameID)
	return err == nil
}

func (r *Round) Phase(gameID uint64) Phase {
	st, err := r.state(gameID)
	if err != nil {
		return PhaseIdle
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.phase
}

func (r *Round) Question(gameID uint64) (question.Question, error) {
	st, err := r.state(gameID)
	if err != nil {
		return question.Question{}, err
	}
	return st.question, nil
}

// ResponseScores is the crowd-choice tally so far.
func (r *Round) ResponseScores(gameID uint64) (Tally, error) {
	st, err := r.state(gameID)
	if err != nil {
		return Tally{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.tally, nil
}

func (r *Round) WinningIndex(gameID uint64) ([]int, error) {
	st, err := r.state(gameID)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.phase != PhaseClosed {
		return nil, ErrNotClosed
	}
	return append([]int(nil), st.winning...), nil
}

func (r *Round) PlayerGuess(gameID uint64, player string) (Reveal, error) {
	st, err := r.state(gameID)
	if err != nil {
		return Reveal{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	reveal, ok := st.reveals[player]
	if !ok {
		return Reveal{}, ErrNoReveal
	}
	return *reveal, nil
}

func (r *Round) IsMinority(gameID uint64) (bool, error) {
	st, err := r.state(gameID)
	if err != nil {
		return false, err
	}
	return st.minority, nil
}

// Draw returns the randomness consumed at round start.
func (r *Round) Draw(gameID uint64) (randomness.Draw, error) {
	st, err := r.state(gameID)
	if err != nil {
		return randomness.Draw{}, err
	}
	return st.draw, nil
}

func (r *Round) Snapshot(gameID uint64) (Snapshot, error) {
	st, err := r.state(gameID)
	if err != nil {
		return Snapshot{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	snap := Snapshot{
		Hub:             r.name,
		GameID:          gameID,
		RailcarID:       st.railcarID,
		Phase:           st.phase.String(),
		Minority:        st.minority,
		Question:        st.question,
		Expected:        append([]string(nil), st.expected...),
		Tally:           st.tally,
		StartedAt:       st.startedAt,
		CollectDeadline: st.collectDeadline,
		RevealOpenedAt:  st.revealOpenedAt,
		RevealDeadline:  st.revealDeadline,
		Retired:         st.retired,
	}
	for player := range st.commits {
		snap.Submitted = append(snap.Submitted, player)
	}
	for player := range st.reveals {
		snap.Revealed = append(snap.Revealed, player)
	}
	sort.Strings(snap.Submitted)
	sort.Strings(snap.Revealed)
	if st.phase == PhaseClosed {
		snap.WinningIndex = append([]int{}, st.winning...)
	}
	return snap, nil
}

// Active lists games whose round is neither closed nor retired.
func (r *Round) Active() []uint64 {
	r.mu.RLock()
	states := make([]*gameState, 0, len(r.games))
	for _, st := range r.games {
		states = append(states, st)
	}
	r.mu.RUnlock()
	var ids []uint64
	for _, st := range states {
		st.mu.Lock()
		if st.phase != PhaseClosed && !st.retired {
			ids = append(ids, st.gameID)
		}
		st.mu.Unlock()
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
