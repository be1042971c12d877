package server

import (
	"errors"
	"log"
	"net/http"

	"github.com/LuckyMachines/hivemind/internal/game"
	"github.com/LuckyMachines/hivemind/internal/hub"
	"github.com/LuckyMachines/hivemind/internal/railyard"
	"github.com/LuckyMachines/hivemind/internal/round"
	"github.com/LuckyMachines/hivemind/internal/score"
	"github.com/LuckyMachines/hivemind/internal/winners"

	"github.com/gin-gonic/gin"
)

var (
	sequencingErrors = []error{
		round.ErrWrongPhase,
		round.ErrAlreadySubmitted,
		round.ErrAlreadyRevealed,
		round.ErrNoCommit,
		round.ErrNothingToUpdate,
		round.ErrNotClosed,
		winners.ErrNotFinalized,
		winners.ErrRoundsOpen,
		winners.ErrAlreadyClaimed,
		game.ErrPlayerAlreadyActive,
		game.ErrNotAtHub,
		game.ErrGameOver,
		game.ErrGameNotStarted,
		game.ErrGameStarted,
		game.ErrNotEnoughPlayers,
		railyard.ErrPlayerInRailcar,
		railyard.ErrNotAtSourceHub,
		railyard.ErrRailcarRetired,
		hub.ErrTransitionNotAllowed,
	}
	authorizationErrors = []error{
		score.ErrUnauthorized,
		round.ErrNotParticipant,
		winners.ErrNotEligible,
	}
	integrityErrors = []error{
		round.ErrCommitMismatch,
	}
	lookupErrors = []error{
		game.ErrUnknownGame,
		game.ErrNoActiveGame,
		game.ErrNotARound,
		hub.ErrUnknownHub,
		railyard.ErrUnknownRailcar,
		railyard.ErrPlayerNotAboard,
		round.ErrNotStarted,
		round.ErrNoReveal,
		winners.ErrNotRanked,
	}
	inputErrors = []error{
		round.ErrInvalidChoice,
		round.ErrBadCommit,
		railyard.ErrEmptyCohort,
		railyard.ErrDuplicateMember,
		hub.ErrInvalidName,
		score.ErrEmptyPlayer,
	}
)

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// statusFor maps the core error taxonomy onto HTTP.
func statusFor(err error) int {
	switch {
	case matchesAny(err, sequencingErrors):
		return http.StatusConflict
	case matchesAny(err, authorizationErrors):
		return http.StatusForbidden
	case matchesAny(err, integrityErrors):
		return http.StatusUnprocessableEntity
	case matchesAny(err, lookupErrors):
		return http.StatusNotFound
	case matchesAny(err, inputErrors):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("request failed path=%s error=%v", c.FullPath(), err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
