// Package hub keeps the named stages of the game graph and the edges that
// connect them. Hubs are stored in an arena indexed by their numeric id.
package hub

import (
	"errors"
	"fmt"
	"sync"
)

type ID uint64

const maxNameLength = 64

var (
	ErrInvalidName          = errors.New("invalid hub name")
	ErrDuplicateName        = errors.New("hub name already registered")
	ErrUnknownHub           = errors.New("unknown hub")
	ErrTransitionNotAllowed = errors.New("transition not allowed")
)

// Hub is a snapshot of one registered stage.
type Hub struct {
	ID             ID
	Name           string
	AllowAllInputs bool
	AllowedInputs  []ID
	Connections    []ID
}

type node struct {
	name           string
	allowAllInputs bool
	inputs         []ID
	inputSet       map[ID]struct{}
	connections    []ID
	connectionSet  map[ID]struct{}
}

// Registry is append-only: hubs are never removed and edges are only added.
type Registry struct {
	mu     sync.RWMutex
	nodes  []node
	byName map[string]ID
}

func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]ID),
	}
}

// Register allocates the next sequential id for name. Ids start at 1.
func (r *Registry) Register(name string) (ID, error) {
	if err := ValidateName(name); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; ok {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}
	r.nodes = append(r.nodes, node{
		name:          name,
		inputSet:      make(map[ID]struct{}),
		connectionSet: make(map[ID]struct{}),
	})
	id := ID(len(r.nodes))
	r.byName[name] = id
	return id, nil
}

func (r *Registry) IDFromName(name string) (ID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownHub, name)
	}
	return id, nil
}

func (r *Registry) NameFromID(id ID) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.node(id)
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownHub, id)
	}
	return n.name, nil
}

func (r *Registry) Get(id ID) (Hub, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.node(id)
	if !ok {
		return Hub{}, fmt.Errorf("%w: %d", ErrUnknownHub, id)
	}
	return Hub{
		ID:             id,
		Name:           n.name,
		AllowAllInputs: n.allowAllInputs,
		AllowedInputs:  append([]ID(nil), n.inputs...),
		Connections:    append([]ID(nil), n.connections...),
	}, nil
}

// SetInputsAllowed adds sources that may send a cohort into hub.
func (r *Registry) SetInputsAllowed(id ID, inputs ...ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.node(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHub, id)
	}
	for _, input := range inputs {
		if _, ok := r.node(input); !ok {
			return fmt.Errorf("%w: %d", ErrUnknownHub, input)
		}
	}
	for _, input := range inputs {
		if _, seen := n.inputSet[input]; seen {
			continue
		}
		n.inputSet[input] = struct{}{}
		n.inputs = append(n.inputs, input)
	}
	return nil
}

func (r *Registry) SetAllowAllInputs(id ID, allow bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.node(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHub, id)
	}
	n.allowAllInputs = allow
	return nil
}

// AddConnections appends outbound hubs in order. The first connection is the
// hub's outgoing route.
func (r *Registry) AddConnections(id ID, targets ...ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.node(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHub, id)
	}
	for _, target := range targets {
		if _, ok := r.node(target); !ok {
			return fmt.Errorf("%w: %d", ErrUnknownHub, target)
		}
	}
	for _, target := range targets {
		if _, seen := n.connectionSet[target]; seen {
			continue
		}
		n.connectionSet[target] = struct{}{}
		n.connections = append(n.connections, target)
	}
	return nil
}

// Outgoing returns the first connection of id, or false for a dead end.
func (r *Registry) Outgoing(id ID) (ID, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.node(id)
	if !ok {
		return 0, false, fmt.Errorf("%w: %d", ErrUnknownHub, id)
	}
	if len(n.connections) == 0 {
		return 0, false, nil
	}
	return n.connections[0], true, nil
}

// CheckTransition reports whether a cohort may enter to from from.
func (r *Registry) CheckTransition(from, to ID) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.node(from); !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHub, from)
	}
	target, ok := r.node(to)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHub, to)
	}
	if target.allowAllInputs {
		return nil
	}
	if _, ok := target.inputSet[from]; !ok {
		return fmt.Errorf("%w: %s does not accept %s", ErrTransitionNotAllowed, target.name, r.nodes[from-1].name)
	}
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

func (r *Registry) node(id ID) (*node, bool) {
	if id == 0 || int(id) > len(r.nodes) {
		return nil, false
	}
	return &r.nodes[id-1], true
}

// ValidateName accepts 1-64 characters of lowercase ascii letters, digits,
// '.', '_' and '-'.
func ValidateName(name string) error {
	if name == "" || len(name) > maxNameLength {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for _, r := range name {
		if r >= 'a' && r <= 'z' {
			continue
		}
		if r >= '0' && r <= '9' {
			continue
		}
		if r == '.' || r == '_' || r == '-' {
			continue
		}
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
