package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/LuckyMachines/hivemind/internal/config"
	"github.com/LuckyMachines/hivemind/internal/db"
	"github.com/LuckyMachines/hivemind/internal/events"
	"github.com/LuckyMachines/hivemind/internal/game"
	"github.com/LuckyMachines/hivemind/internal/keeper"
	"github.com/LuckyMachines/hivemind/internal/ledger"
	"github.com/LuckyMachines/hivemind/internal/question"
	"github.com/LuckyMachines/hivemind/internal/randomness"
	"github.com/LuckyMachines/hivemind/internal/round"
	"github.com/LuckyMachines/hivemind/internal/server"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func serve(ctx context.Context, sc *serveConfig) error {
	if err := config.LoadDotEnv(sc.envFile); err != nil {
		log.Printf("failed to load %s: %v", sc.envFile, err)
	}
	cfg := config.Load()
	gin.SetMode(gin.ReleaseMode)

	conn, err := openDatabase(sc, cfg)
	if err != nil {
		return err
	}

	chain, err := openLedger(ctx, conn)
	if err != nil {
		return err
	}

	questions, err := questionSource(sc, cfg, conn)
	if err != nil {
		return err
	}

	signer, err := randomness.NewSigner(cfg.RandomnessSeed)
	if err != nil {
		return err
	}
	if cfg.RandomnessSeed == "" {
		log.Printf("RANDOMNESS_SEED not set; using an ephemeral signing key")
	}
	log.Printf("randomness public key=%s", randomness.PublicHex(signer.Public()))

	bus := events.NewBus()
	ctrl, err := game.NewController(ctx, game.Options{
		Admin:         cfg.AdminID,
		Policy:        policyFrom(cfg),
		PrizeCutoff:   cfg.PrizeCutoff,
		PrizeAmounts:  cfg.PrizeAmounts,
		LobbyCapacity: cfg.LobbyCapacity,
		MinPlayers:    cfg.MinPlayers,
		Questions:     questions,
		Randomness:    signer,
		Notifier:      bus,
		Ledger:        chain,
	})
	if err != nil {
		return fmt.Errorf("build controller: %w", err)
	}

	drv := keeper.New(ctrl, time.Duration(cfg.KeeperIntervalMillis)*time.Millisecond)
	defer drv.Stop()
	if n := drv.Resume(); n > 0 {
		log.Printf("keeper resumed games=%d", n)
	}

	srv := server.New(ctrl, bus, conn, cfg, drv)
	defer srv.Close()

	httpSrv := &http.Server{
		Addr:              sc.addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		log.Printf("hivemind server listening on %s ledger_height=%d", httpSrv.Addr, chain.Len())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), sc.shutdown)
	defer cancel()
	log.Printf("hivemind server shutting down")
	err = httpSrv.Shutdown(shutdownCtx)
	if flushErr := chain.Flush(shutdownCtx); flushErr != nil {
		log.Printf("ledger flush failed pending=%d error=%v", chain.Pending(), flushErr)
	}
	return err
}

func openDatabase(sc *serveConfig, cfg config.Config) (*gorm.DB, error) {
	if sc.noDatabase || os.Getenv("DATABASE_URL") == "" {
		log.Printf("running without database persistence")
		return nil, nil
	}
	conn, err := db.OpenPool(db.Pool{
		MaxOpen:     cfg.DBMaxOpenConns,
		MaxIdle:     cfg.DBMaxIdleConns,
		MaxLifetime: time.Duration(cfg.DBConnMaxLifetimeSeconds) * time.Second,
		MaxIdleTime: time.Duration(cfg.DBConnMaxIdleTimeSeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if sc.autoMigrate {
		if err := db.Migrate(conn); err != nil {
			return nil, fmt.Errorf("database migration failed: %w", err)
		}
	}
	return conn, nil
}

// openLedger resumes the persisted chain so new blocks and game ids
// continue from the stored history.
func openLedger(ctx context.Context, conn *gorm.DB) (*ledger.Chain, error) {
	if conn == nil {
		return ledger.New(nil), nil
	}
	store := ledger.NewGormStore(conn)
	blocks, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	chain, err := ledger.Resume(store, blocks)
	if err != nil {
		return nil, fmt.Errorf("resume ledger: %w", err)
	}
	return chain, nil
}

func questionSource(sc *serveConfig, cfg config.Config, conn *gorm.DB) (question.Source, error) {
	if sc.questionPack != "" {
		if conn == nil {
			return nil, errors.New("--question-pack requires DATABASE_URL")
		}
		return question.NewLibrary(conn, sc.questionPack), nil
	}
	pack, err := question.LoadPack(cfg.QuestionsPath)
	if err != nil {
		return nil, fmt.Errorf("load questions from %s: %w", cfg.QuestionsPath, err)
	}
	log.Printf("loaded question pack path=%s questions=%d", cfg.QuestionsPath, pack.Len())
	return pack, nil
}

func policyFrom(cfg config.Config) round.Policy {
	return round.Policy{
		SubmissionPoints:    cfg.SubmissionPoints,
		FastRevealPoints:    cfg.FastRevealPoints,
		WinningChoicePoints: cfg.WinningChoicePoints,
		CollectWindow:       time.Duration(cfg.CollectDurationSeconds) * time.Second,
		RevealWindow:        time.Duration(cfg.RevealDurationSeconds) * time.Second,
	}
}
