package server

import (
	"net/http"

	"github.com/LuckyMachines/hivemind/internal/round"

	"github.com/gin-gonic/gin"
)

type roundURI struct {
	GameID uint64 `uri:"gameID" binding:"required,min=1"`
	Hub    string `uri:"hub" binding:"required,hubname"`
}

type guessURI struct {
	GameID uint64 `uri:"gameID" binding:"required,min=1"`
	Hub    string `uri:"hub" binding:"required,hubname"`
	Player string `uri:"player" binding:"required,player"`
}

type submitAnswerRequest struct {
	Player string `json:"player" binding:"required,player"`
	Commit string `json:"commit" binding:"required,commit"`
}

// Choices are pointers so that a zero choice still satisfies required.
type revealAnswerRequest struct {
	Player       string `json:"player" binding:"required,player"`
	PlayerChoice *int   `json:"playerChoice" binding:"required,min=0,max=3"`
	CrowdChoice  *int   `json:"crowdChoice" binding:"required,min=0,max=3"`
	Phrase       string `json:"secretPhrase" binding:"required,phrase"`
}

var revealMessages = bindMessages{
	"Player":       {"required": "player is required", "player": "invalid player id"},
	"PlayerChoice": {"required": "playerChoice is required", "min": "playerChoice must be between 0 and 3", "max": "playerChoice must be between 0 and 3"},
	"CrowdChoice":  {"required": "crowdChoice is required", "min": "crowdChoice must be between 0 and 3", "max": "crowdChoice must be between 0 and 3"},
	"Phrase":       {"required": "secretPhrase is required", "phrase": "secretPhrase must be 1-128 bytes"},
}

func (s *Server) handleRoundSnapshot(c *gin.Context) {
	var uri roundURI
	if !bindURI(c, &uri) {
		return
	}
	snap, err := s.ctrl.RoundSnapshot(uri.Hub, uri.GameID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleQuestion(c *gin.Context) {
	var uri roundURI
	if !bindURI(c, &uri) {
		return
	}
	q, err := s.ctrl.Question(uri.Hub, uri.GameID)
	if err != nil {
		writeError(c, err)
		return
	}
	phase, err := s.ctrl.RoundPhase(uri.Hub, uri.GameID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"gameId":    uri.GameID,
		"hub":       uri.Hub,
		"phase":     phase.String(),
		"question":  q.Text,
		"responses": q.Choices,
	})
}

func (s *Server) handleResponseScores(c *gin.Context) {
	var uri roundURI
	if !bindURI(c, &uri) {
		return
	}
	tally, err := s.ctrl.ResponseScores(uri.Hub, uri.GameID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gameId": uri.GameID, "hub": uri.Hub, "responseScores": tally})
}

func (s *Server) handleWinningIndex(c *gin.Context) {
	var uri roundURI
	if !bindURI(c, &uri) {
		return
	}
	winning, err := s.ctrl.WinningIndex(uri.Hub, uri.GameID)
	if err != nil {
		writeError(c, err)
		return
	}
	minority, err := s.ctrl.IsMinorityRound(uri.Hub, uri.GameID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"gameId":       uri.GameID,
		"hub":          uri.Hub,
		"winningIndex": winning,
		"minority":     minority,
	})
}

func (s *Server) handlePlayerGuess(c *gin.Context) {
	var uri guessURI
	if !bindURI(c, &uri) {
		return
	}
	reveal, err := s.ctrl.PlayerGuess(uri.Hub, uri.GameID, uri.Player)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reveal)
}

func (s *Server) handleSubmitAnswer(c *gin.Context) {
	var uri roundURI
	if !bindURI(c, &uri) {
		return
	}
	var req submitAnswerRequest
	if !bindJSON(c, &req, bindMessages{
		"Player": {"required": "player is required", "player": "invalid player id"},
		"Commit": {"required": "commit is required", "commit": "commit must be 32 hex-encoded bytes"},
	}, "invalid request") {
		return
	}
	commit, err := round.ParseCommit(req.Commit)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := s.ctrl.SubmitAnswer(c.Request.Context(), uri.GameID, uri.Hub, req.Player, commit); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"gameId": uri.GameID,
		"hub":    uri.Hub,
		"player": req.Player,
		"score":  s.ctrl.Score(uri.GameID, req.Player),
	})
}

func (s *Server) handleRevealAnswer(c *gin.Context) {
	var uri roundURI
	if !bindURI(c, &uri) {
		return
	}
	var req revealAnswerRequest
	if !bindJSON(c, &req, revealMessages, "invalid request") {
		return
	}
	reveal, err := s.ctrl.RevealAnswer(c.Request.Context(), uri.GameID, uri.Hub, req.Player, *req.PlayerChoice, *req.CrowdChoice, req.Phrase)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"gameId": uri.GameID,
		"hub":    uri.Hub,
		"player": req.Player,
		"reveal": reveal,
		"score":  s.ctrl.Score(uri.GameID, req.Player),
	})
}
