package game

import (
	"fmt"

	"github.com/LuckyMachines/hivemind/internal/hub"
)

const (
	LobbyHub   = "hivemind.lobby"
	WinnersHub = "hivemind.winners"
)

// RoundHubs are the question rounds in play order.
var RoundHubs = []string{
	"hivemind.round1",
	"hivemind.round2",
	"hivemind.round3",
	"hivemind.round4",
}

// Topology holds the ids of the registered game hubs.
type Topology struct {
	Lobby   hub.ID
	Rounds  []hub.ID
	Winners hub.ID
}

// Bootstrap registers the lobby, rounds and winners hubs and wires their
// allowed inputs and connections. Every stage connects back to the lobby.
func Bootstrap(reg *hub.Registry) (Topology, error) {
	var topo Topology
	var err error
	if topo.Lobby, err = reg.Register(LobbyHub); err != nil {
		return Topology{}, fmt.Errorf("register %s: %w", LobbyHub, err)
	}
	for _, name := range RoundHubs {
		id, err := reg.Register(name)
		if err != nil {
			return Topology{}, fmt.Errorf("register %s: %w", name, err)
		}
		topo.Rounds = append(topo.Rounds, id)
	}
	if topo.Winners, err = reg.Register(WinnersHub); err != nil {
		return Topology{}, fmt.Errorf("register %s: %w", WinnersHub, err)
	}

	if err := reg.SetAllowAllInputs(topo.Lobby, true); err != nil {
		return Topology{}, err
	}
	previous := topo.Lobby
	for _, id := range topo.Rounds {
		if err := reg.SetInputsAllowed(id, previous); err != nil {
			return Topology{}, err
		}
		previous = id
	}
	if err := reg.SetInputsAllowed(topo.Winners, previous); err != nil {
		return Topology{}, err
	}

	if err := reg.AddConnections(topo.Lobby, topo.Rounds[0]); err != nil {
		return Topology{}, err
	}
	for i, id := range topo.Rounds {
		next := topo.Winners
		if i+1 < len(topo.Rounds) {
			next = topo.Rounds[i+1]
		}
		if err := reg.AddConnections(id, next, topo.Lobby); err != nil {
			return Topology{}, err
		}
	}
	if err := reg.AddConnections(topo.Winners, topo.Lobby); err != nil {
		return Topology{}, err
	}
	return topo, nil
}
