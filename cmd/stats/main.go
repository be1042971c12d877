package main

import (
	"context"
	"flag"
	"log"

	"github.com/LuckyMachines/hivemind/internal/config"
	"github.com/LuckyMachines/hivemind/internal/db"
	"github.com/LuckyMachines/hivemind/internal/ledger"

	"github.com/pterm/pterm"
)

func main() {
	gameID := flag.Uint64("game", 0, "game id to report; 0 lists recent games")
	limit := flag.Int("limit", 20, "number of games to list")
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("failed to load .env: %v", err)
	}
	conn, err := db.Open()
	if err != nil {
		pterm.Error.Printfln("database connection failed: %v", err)
		return
	}
	ctx := context.Background()
	store := ledger.NewGormStore(conn)

	blocks, err := store.Load(ctx)
	if err != nil {
		pterm.Error.Printfln("load ledger: %v", err)
		return
	}
	if err := ledger.VerifyBlocks(blocks); err != nil {
		pterm.Warning.Printfln("ledger verification failed: %v", err)
	} else {
		pterm.Success.Printfln("ledger verified height=%d", len(blocks)-1)
	}

	if *gameID == 0 {
		var games []db.Game
		if err := conn.WithContext(ctx).Order("id desc").Limit(*limit).Find(&games).Error; err != nil {
			pterm.Error.Printfln("list games: %v", err)
			return
		}
		renderGames(games)
		return
	}

	report, err := loadReport(ctx, conn, store, *gameID)
	if err != nil {
		pterm.Error.Printfln("load game %d: %v", *gameID, err)
		return
	}
	renderReport(report)
}
