// Package railyard groups players into railcars and tracks which hub each
// railcar occupies.
package railyard

import (
	"errors"
	"fmt"
	"sync"

	"github.com/LuckyMachines/hivemind/internal/hub"
)

type ID uint64

var (
	ErrEmptyCohort     = errors.New("cohort has no members")
	ErrDuplicateMember = errors.New("player listed twice")
	ErrPlayerInRailcar = errors.New("player already in a railcar")
	ErrUnknownRailcar  = errors.New("unknown railcar")
	ErrNotAtSourceHub  = errors.New("railcar is not at source hub")
	ErrRailcarRetired  = errors.New("railcar retired")
	ErrPlayerNotAboard = errors.New("player not in railcar")
)

// Railcar is a snapshot of one cohort.
type Railcar struct {
	ID       ID
	Members  []string
	Location hub.ID
	Retired  bool
}

type railcar struct {
	members  []string
	location hub.ID
	retired  bool
}

// Hubs is the part of the hub registry the yard depends on.
type Hubs interface {
	CheckTransition(from, to hub.ID) error
}

type Yard struct {
	mu       sync.RWMutex
	hubs     Hubs
	lobby    hub.ID
	nextID   ID
	railcars map[ID]*railcar
	aboard   map[string]ID
}

func New(hubs Hubs, lobby hub.ID) *Yard {
	return &Yard{
		hubs:     hubs,
		lobby:    lobby,
		nextID:   1,
		railcars: make(map[ID]*railcar),
		aboard:   make(map[string]ID),
	}
}

// FormCohort creates a railcar at the lobby hub.
func (y *Yard) FormCohort(players []string) (ID, error) {
	if len(players) == 0 {
		return 0, ErrEmptyCohort
	}
	seen := make(map[string]struct{}, len(players))
	for _, player := range players {
		if _, dup := seen[player]; dup {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateMember, player)
		}
		seen[player] = struct{}{}
	}

	y.mu.Lock()
	defer y.mu.Unlock()
	for _, player := range players {
		if existing, ok := y.aboard[player]; ok {
			return 0, fmt.Errorf("%w: %s is in railcar %d", ErrPlayerInRailcar, player, existing)
		}
	}
	id := y.nextID
	y.nextID++
	y.railcars[id] = &railcar{
		members:  append([]string(nil), players...),
		location: y.lobby,
	}
	for _, player := range players {
		y.aboard[player] = id
	}
	return id, nil
}

// AddMember boards a player onto a railcar still waiting in the lobby.
func (y *Yard) AddMember(id ID, player string) (int, error) {
	if player == "" {
		return 0, ErrEmptyCohort
	}
	y.mu.Lock()
	defer y.mu.Unlock()
	car, ok := y.railcars[id]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownRailcar, id)
	}
	if car.retired {
		return 0, fmt.Errorf("%w: %d", ErrRailcarRetired, id)
	}
	if car.location != y.lobby {
		return 0, fmt.Errorf("%w: railcar %d has left the lobby", ErrNotAtSourceHub, id)
	}
	if existing, ok := y.aboard[player]; ok {
		if existing == id {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateMember, player)
		}
		return 0, fmt.Errorf("%w: %s is in railcar %d", ErrPlayerInRailcar, player, existing)
	}
	car.members = append(car.members, player)
	y.aboard[player] = id
	return len(car.members), nil
}

// Restore installs a railcar recorded earlier, keeping its id. The id
// counter moves past it so new railcars never reuse an id.
func (y *Yard) Restore(id ID, members []string, location hub.ID) error {
	y.mu.Lock()
	defer y.mu.Unlock()
	if car, ok := y.railcars[id]; ok {
		for _, member := range car.members {
			if y.aboard[member] == id {
				delete(y.aboard, member)
			}
		}
	}
	for _, player := range members {
		if existing, ok := y.aboard[player]; ok && existing != id {
			return fmt.Errorf("%w: %s is in railcar %d", ErrPlayerInRailcar, player, existing)
		}
	}
	y.railcars[id] = &railcar{
		members:  append([]string(nil), members...),
		location: location,
	}
	for _, player := range members {
		y.aboard[player] = id
	}
	if id >= y.nextID {
		y.nextID = id + 1
	}
	return nil
}

// MoveCohort relocates a railcar. The location changes under the yard lock so
// no intermediate state is observable.
func (y *Yard) MoveCohort(id ID, from, to hub.ID) error {
	y.mu.Lock()
	defer y.mu.Unlock()
	car, ok := y.railcars[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownRailcar, id)
	}
	if car.retired {
		return fmt.Errorf("%w: %d", ErrRailcarRetired, id)
	}
	if car.location != from {
		return fmt.Errorf("%w: railcar %d is at %d, not %d", ErrNotAtSourceHub, id, car.location, from)
	}
	if err := y.hubs.CheckTransition(from, to); err != nil {
		return err
	}
	car.location = to
	return nil
}

func (y *Yard) MembersOf(id ID) ([]string, error) {
	y.mu.RLock()
	defer y.mu.RUnlock()
	car, ok := y.railcars[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRailcar, id)
	}
	return append([]string(nil), car.members...), nil
}

func (y *Yard) LocationOf(id ID) (hub.ID, error) {
	y.mu.RLock()
	defer y.mu.RUnlock()
	car, ok := y.railcars[id]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownRailcar, id)
	}
	return car.location, nil
}

func (y *Yard) Get(id ID) (Railcar, error) {
	y.mu.RLock()
	defer y.mu.RUnlock()
	car, ok := y.railcars[id]
	if !ok {
		return Railcar{}, fmt.Errorf("%w: %d", ErrUnknownRailcar, id)
	}
	return Railcar{
		ID:       id,
		Members:  append([]string(nil), car.members...),
		Location: car.location,
		Retired:  car.retired,
	}, nil
}

// RailcarOf returns the railcar a player currently rides.
func (y *Yard) RailcarOf(player string) (ID, bool) {
	y.mu.RLock()
	defer y.mu.RUnlock()
	id, ok := y.aboard[player]
	return id, ok
}

// RemoveMember takes player off the railcar and reports how many remain.
func (y *Yard) RemoveMember(id ID, player string) (int, error) {
	y.mu.Lock()
	defer y.mu.Unlock()
	car, ok := y.railcars[id]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownRailcar, id)
	}
	index := -1
	for i, member := range car.members {
		if member == player {
			index = i
			break
		}
	}
	if index < 0 {
		return len(car.members), fmt.Errorf("%w: %s", ErrPlayerNotAboard, player)
	}
	car.members = append(car.members[:index], car.members[index+1:]...)
	delete(y.aboard, player)
	return len(car.members), nil
}

// Retire releases every remaining member and freezes the railcar where it is.
func (y *Yard) Retire(id ID) error {
	y.mu.Lock()
	defer y.mu.Unlock()
	car, ok := y.railcars[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownRailcar, id)
	}
	if car.retired {
		return nil
	}
	for _, member := range car.members {
		if y.aboard[member] == id {
			delete(y.aboard, member)
		}
	}
	car.retired = true
	return nil
}
