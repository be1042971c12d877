package server

import (
	"log"
	"net/http"

	"github.com/LuckyMachines/hivemind/internal/hub"

	"github.com/gin-gonic/gin"
)

type gameURI struct {
	GameID uint64 `uri:"gameID" binding:"required,min=1"`
}

type playerURI struct {
	Player string `uri:"player" binding:"required,player"`
}

type gamePlayerURI struct {
	GameID uint64 `uri:"gameID" binding:"required,min=1"`
	Player string `uri:"player" binding:"required,player"`
}

type startGameRequest struct {
	Players []string `json:"players" binding:"required,min=1,max=64,dive,player"`
}

type claimRequest struct {
	Player string `json:"player" binding:"required,player"`
}

type hubView struct {
	ID          uint64   `json:"id"`
	Name        string   `json:"name"`
	AllowAll    bool     `json:"allowAllInputs"`
	Inputs      []string `json:"allowedInputs"`
	Connections []string `json:"connections"`
}

func (s *Server) handleHubs(c *gin.Context) {
	reg := s.ctrl.Registry()
	out := make([]hubView, 0, reg.Len())
	for id := hub.ID(1); int(id) <= reg.Len(); id++ {
		h, err := reg.Get(id)
		if err != nil {
			writeError(c, err)
			return
		}
		out = append(out, hubView{
			ID:          uint64(h.ID),
			Name:        h.Name,
			AllowAll:    h.AllowAllInputs,
			Inputs:      s.hubNames(reg, h.AllowedInputs),
			Connections: s.hubNames(reg, h.Connections),
		})
	}
	c.JSON(http.StatusOK, gin.H{"hubs": out})
}

func (s *Server) hubNames(reg *hub.Registry, ids []hub.ID) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, err := reg.NameFromID(id); err == nil {
			names = append(names, name)
		}
	}
	return names
}

func (s *Server) handleStartGame(c *gin.Context) {
	var req startGameRequest
	if !bindJSON(c, &req, bindMessages{
		"Players": {
			"required": "players are required",
			"min":      "players are required",
			"max":      "too many players",
			"player":   "player ids must be 1-64 characters of letters, digits, '.', '_' or '-'",
		},
	}, "invalid request") {
		return
	}
	gameID, err := s.ctrl.StartGame(c.Request.Context(), req.Players)
	if err != nil {
		writeError(c, err)
		return
	}
	if s.keeper != nil {
		s.keeper.Track(gameID)
	}
	info, err := s.ctrl.Info(gameID)
	if err != nil {
		writeError(c, err)
		return
	}
	log.Printf("game started via api game_id=%d players=%d", gameID, len(req.Players))
	c.JSON(http.StatusCreated, info)
}

func (s *Server) handleGetGame(c *gin.Context) {
	var uri gameURI
	if !bindURI(c, &uri) {
		return
	}
	info, err := s.ctrl.Info(uri.GameID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleLatestRound(c *gin.Context) {
	var uri gameURI
	if !bindURI(c, &uri) {
		return
	}
	name, err := s.ctrl.LatestRound(uri.GameID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gameId": uri.GameID, "hub": name})
}

func (s *Server) handleCurrentGame(c *gin.Context) {
	var uri playerURI
	if !bindURI(c, &uri) {
		return
	}
	gameID, err := s.ctrl.CurrentGame(uri.Player)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"player": uri.Player, "gameId": gameID, "active": true})
}

func (s *Server) handleScore(c *gin.Context) {
	var uri gamePlayerURI
	if !bindURI(c, &uri) {
		return
	}
	if _, err := s.ctrl.Info(uri.GameID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"gameId": uri.GameID,
		"player": uri.Player,
		"score":  s.ctrl.Score(uri.GameID, uri.Player),
	})
}

func (s *Server) handleRanking(c *gin.Context) {
	var uri gameURI
	if !bindURI(c, &uri) {
		return
	}
	entries, err := s.ctrl.Ranking(uri.GameID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gameId": uri.GameID, "cutoff": s.ctrl.PrizeCutoff(), "ranking": entries})
}

func (s *Server) handleFinalRanking(c *gin.Context) {
	var uri gamePlayerURI
	if !bindURI(c, &uri) {
		return
	}
	rank, err := s.ctrl.FinalRanking(uri.GameID, uri.Player)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gameId": uri.GameID, "player": uri.Player, "rank": rank})
}

func (s *Server) handleCheckPayout(c *gin.Context) {
	var uri playerURI
	if !bindURI(c, &uri) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"player": uri.Player, "payout": s.ctrl.CheckPayout(uri.Player)})
}

func (s *Server) handleClaimPrize(c *gin.Context) {
	var uri gameURI
	if !bindURI(c, &uri) {
		return
	}
	var req claimRequest
	if !bindJSON(c, &req, bindMessages{
		"Player": {"required": "player is required", "player": "invalid player id"},
	}, "invalid request") {
		return
	}
	amount, err := s.ctrl.ClaimPrize(c.Request.Context(), uri.GameID, req.Player)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gameId": uri.GameID, "player": req.Player, "amount": amount})
}

func (s *Server) handleAbandon(c *gin.Context) {
	var uri playerURI
	if !bindURI(c, &uri) {
		return
	}
	if err := s.ctrl.Abandon(c.Request.Context(), uri.Player); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"player": uri.Player, "active": false})
}

func (s *Server) handleGameEvents(c *gin.Context) {
	var uri gameURI
	if !bindURI(c, &uri) {
		return
	}
	if _, err := s.ctrl.Info(uri.GameID); err != nil {
		writeError(c, err)
		return
	}
	list, err := s.loadEvents(c.Request.Context(), uri.GameID, 500)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gameId": uri.GameID, "events": list})
}
