// Package events carries round-boundary notifications from the game core to
// subscribers such as the websocket sink and the event table writer.
package events

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindLobbyJoined   Kind = "lobby_joined"
	KindGameStarted   Kind = "game_started"
	KindRoundStart    Kind = "round_start"
	KindRevealStart   Kind = "reveal_start"
	KindRoundEnd      Kind = "round_end"
	KindEnterWinners  Kind = "enter_winners"
	KindGameAbandoned Kind = "game_abandoned"
)

type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Hub       string    `json:"hub"`
	GameID    uint64    `json:"gameId"`
	RailcarID uint64    `json:"railcarId"`
	Timestamp time.Time `json:"timestamp"`
}

func New(kind Kind, hub string, gameID, railcarID uint64, at time.Time) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Hub:       hub,
		GameID:    gameID,
		RailcarID: railcarID,
		Timestamp: at.UTC(),
	}
}

// Notifier receives notifications. Implementations must not block.
type Notifier interface {
	Notify(Notification)
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Notify(Notification) {}

type subscriber struct {
	gameID uint64
	ch     chan Notification
}

// Bus fans notifications out to subscribers. A subscriber with a full
// buffer misses the notification rather than stalling the game.
type Bus struct {
	mu   sync.Mutex
	subs map[string]subscriber
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]subscriber)}
}

// Subscribe registers for one game's notifications, or all games when
// gameID is zero. The returned cancel func closes the channel.
func (b *Bus) Subscribe(gameID uint64, buffer int) (string, <-chan Notification, func()) {
	if buffer < 1 {
		buffer = 1
	}
	id := uuid.NewString()
	ch := make(chan Notification, buffer)
	b.mu.Lock()
	b.subs[id] = subscriber{gameID: gameID, ch: ch}
	b.mu.Unlock()
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub.ch)
		}
	}
	return id, ch, cancel
}

func (b *Bus) Notify(n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subs {
		if sub.gameID != 0 && sub.gameID != n.GameID {
			continue
		}
		select {
		case sub.ch <- n:
		default:
			log.Printf("notification dropped subscriber=%s kind=%s game_id=%d", id, n.Kind, n.GameID)
		}
	}
}

func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Recorder keeps every notification in memory. Useful for tests and the
// stats endpoint.
type Recorder struct {
	mu   sync.Mutex
	list []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	r.list = append(r.list, n)
	r.mu.Unlock()
}

func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.list...)
}

// Kinds lists recorded kinds in order, optionally filtered to one game.
func (r *Recorder) Kinds(gameID uint64) []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kinds []Kind
	for _, n := range r.list {
		if gameID == 0 || n.GameID == gameID {
			kinds = append(kinds, n.Kind)
		}
	}
	return kinds
}

// Fanout forwards to several notifiers in order.
type Fanout []Notifier

func (f Fanout) Notify(n Notification) {
	for _, target := range f {
		if target != nil {
			target.Notify(n)
		}
	}
}
