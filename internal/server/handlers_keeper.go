package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleNeedsUpdate(c *gin.Context) {
	var uri gameURI
	if !bindURI(c, &uri) {
		return
	}
	due, err := s.ctrl.NeedsUpdate(uri.GameID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gameId": uri.GameID, "needsUpdate": due})
}

// handleUpdatePhase lets an external keeper perform one transition.
func (s *Server) handleUpdatePhase(c *gin.Context) {
	var uri gameURI
	if !bindURI(c, &uri) {
		return
	}
	step, err := s.ctrl.UpdatePhase(c.Request.Context(), uri.GameID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, step)
}

func (s *Server) handleLedgerBlocks(c *gin.Context) {
	var query struct {
		GameID uint64 `form:"game_id"`
	}
	if !bindQuery(c, &query) {
		return
	}
	chain := s.ctrl.Ledger()
	blocks := chain.Blocks(0)
	if query.GameID != 0 {
		blocks = chain.ForGame(query.GameID)
	}
	page, perPage := parsePagination(c, 50, 200)
	data, start, end := paginate(page, perPage, len(blocks))
	c.JSON(http.StatusOK, gin.H{"blocks": blocks[start:end], "pagination": data})
}

func (s *Server) handleLedgerVerify(c *gin.Context) {
	chain := s.ctrl.Ledger()
	latest := chain.Latest()
	if err := chain.Verify(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"valid": false, "error": err.Error(), "length": chain.Len()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "length": chain.Len(), "head": latest.Hash})
}
