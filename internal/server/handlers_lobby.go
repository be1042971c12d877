package server

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

type joinLobbyRequest struct {
	Player string `json:"player" binding:"required,player"`
}

func (s *Server) handleOpenLobby(c *gin.Context) {
	lobby, ok := s.ctrl.OpenLobby()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no open lobby"})
		return
	}
	c.JSON(http.StatusOK, lobby)
}

// handleJoinLobby boards the player onto the open cohort, or opens one.
func (s *Server) handleJoinLobby(c *gin.Context) {
	var req joinLobbyRequest
	if !bindJSON(c, &req, bindMessages{
		"Player": {
			"required": "player is required",
			"player":   "player ids must be 1-64 characters of letters, digits, '.', '_' or '-'",
		},
	}, "invalid request") {
		return
	}
	gameID, err := s.ctrl.JoinLobby(c.Request.Context(), req.Player)
	if err != nil {
		writeError(c, err)
		return
	}
	info, err := s.ctrl.Info(gameID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleCanStart(c *gin.Context) {
	var uri gameURI
	if !bindURI(c, &uri) {
		return
	}
	ok, err := s.ctrl.CanStart(uri.GameID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gameId": uri.GameID, "canStart": ok})
}

func (s *Server) handleStartLobbyGame(c *gin.Context) {
	var uri gameURI
	if !bindURI(c, &uri) {
		return
	}
	if err := s.ctrl.StartLobbyGame(c.Request.Context(), uri.GameID); err != nil {
		writeError(c, err)
		return
	}
	if s.keeper != nil {
		s.keeper.Track(uri.GameID)
	}
	info, err := s.ctrl.Info(uri.GameID)
	if err != nil {
		writeError(c, err)
		return
	}
	log.Printf("lobby game started via api game_id=%d players=%d", uri.GameID, len(info.Members))
	c.JSON(http.StatusOK, info)
}
