package server

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/LuckyMachines/hivemind/internal/config"
	"github.com/LuckyMachines/hivemind/internal/events"
	"github.com/LuckyMachines/hivemind/internal/game"
	"github.com/LuckyMachines/hivemind/internal/keeper"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Server struct {
	ctrl    *game.Controller
	bus     *events.Bus
	db      *gorm.DB
	ws      *wsHub
	cfg     config.Config
	limiter *rateLimiter
	keeper  *keeper.Driver

	stopOnce sync.Once
	stop     func()
	done     chan struct{}
}

// New wires the API to a controller. The bus must be the notifier the
// controller was built with; conn and drv may be nil.
func New(ctrl *game.Controller, bus *events.Bus, conn *gorm.DB, cfg config.Config, drv *keeper.Driver) *Server {
	registerValidators()
	s := &Server{
		ctrl:    ctrl,
		bus:     bus,
		db:      conn,
		ws:      newWSHub(),
		cfg:     cfg,
		limiter: newRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		keeper:  drv,
		done:    make(chan struct{}),
	}
	_, ch, cancel := bus.Subscribe(0, 256)
	s.stop = cancel
	go s.pump(ch)
	return s
}

// pump forwards notifications to websocket clients and the event table.
func (s *Server) pump(ch <-chan events.Notification) {
	defer close(s.done)
	for n := range ch {
		s.ws.Broadcast(n.GameID, n)
		if err := s.persistNotification(context.Background(), n); err != nil {
			log.Printf("persist notification failed kind=%s game_id=%d error=%v", n.Kind, n.GameID, err)
		}
	}
}

// Close stops the notification pump.
func (s *Server) Close() {
	s.stopOnce.Do(func() {
		s.stop()
		<-s.done
	})
}

func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	api.GET("/hubs", s.handleHubs)
	api.GET("/lobby", s.handleOpenLobby)
	api.GET("/games/:gameID/can-start", s.handleCanStart)
	api.GET("/games/:gameID", s.handleGetGame)
	api.GET("/games/:gameID/round", s.handleLatestRound)
	api.GET("/games/:gameID/events", s.handleGameEvents)
	api.GET("/games/:gameID/rounds/:hub", s.handleRoundSnapshot)
	api.GET("/games/:gameID/rounds/:hub/question", s.handleQuestion)
	api.GET("/games/:gameID/rounds/:hub/response-scores", s.handleResponseScores)
	api.GET("/games/:gameID/rounds/:hub/winning-index", s.handleWinningIndex)
	api.GET("/games/:gameID/rounds/:hub/guesses/:player", s.handlePlayerGuess)
	api.GET("/games/:gameID/scores/:player", s.handleScore)
	api.GET("/games/:gameID/ranking", s.handleRanking)
	api.GET("/games/:gameID/ranking/:player", s.handleFinalRanking)
	api.GET("/players/:player/game", s.handleCurrentGame)
	api.GET("/players/:player/payout", s.handleCheckPayout)

	writes := api.Group("", s.rateLimit)
	writes.POST("/games", s.handleStartGame)
	writes.POST("/lobby/join", s.handleJoinLobby)
	writes.POST("/games/:gameID/start", s.handleStartLobbyGame)
	writes.POST("/games/:gameID/rounds/:hub/answers", s.handleSubmitAnswer)
	writes.POST("/games/:gameID/rounds/:hub/reveals", s.handleRevealAnswer)
	writes.POST("/games/:gameID/claims", s.handleClaimPrize)
	writes.POST("/players/:player/abandon", s.handleAbandon)

	api.GET("/keeper/games/:gameID", s.handleNeedsUpdate)
	api.POST("/keeper/games/:gameID/update", s.handleUpdatePhase)
	api.GET("/ledger/blocks", s.handleLedgerBlocks)
	api.GET("/ledger/verify", s.handleLedgerVerify)

	router.GET("/ws/games/:gameID", s.handleWebsocket)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}
