package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/LuckyMachines/hivemind/internal/db"
	"github.com/LuckyMachines/hivemind/internal/ledger"

	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

type gameReport struct {
	Game     db.Game
	Railcar  db.Railcar
	Members  []string
	Scores   []db.Score
	Rounds   []db.RoundState
	Rankings []db.Ranking
	Blocks   []ledger.Block
}

func loadReport(ctx context.Context, conn *gorm.DB, store *ledger.GormStore, gameID uint64) (gameReport, error) {
	var r gameReport
	if err := conn.WithContext(ctx).First(&r.Game, gameID).Error; err != nil {
		return r, err
	}
	if err := conn.WithContext(ctx).First(&r.Railcar, r.Game.RailcarID).Error; err != nil {
		return r, err
	}
	if len(r.Railcar.Members) > 0 {
		if err := json.Unmarshal(r.Railcar.Members, &r.Members); err != nil {
			return r, fmt.Errorf("decode members: %w", err)
		}
	}
	if err := conn.WithContext(ctx).Where("game_id = ?", gameID).Find(&r.Scores).Error; err != nil {
		return r, err
	}
	if err := conn.WithContext(ctx).Where("game_id = ?", gameID).Order("hub asc").Find(&r.Rounds).Error; err != nil {
		return r, err
	}
	if err := conn.WithContext(ctx).Where("game_id = ?", gameID).Order("rank asc").Find(&r.Rankings).Error; err != nil {
		return r, err
	}
	blocks, err := store.LoadGame(ctx, gameID)
	if err != nil {
		return r, err
	}
	r.Blocks = blocks
	return r, nil
}

func renderGames(games []db.Game) {
	if len(games) == 0 {
		pterm.Info.Println("no games recorded")
		return
	}
	data := pterm.TableData{{"Game", "Railcar", "Hub", "Status", "Started"}}
	for _, g := range games {
		data = append(data, []string{
			strconv.FormatUint(uint64(g.ID), 10),
			strconv.FormatUint(uint64(g.RailcarID), 10),
			g.Hub,
			g.Status,
			g.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func renderReport(r gameReport) {
	pterm.DefaultHeader.WithFullWidth().Printfln("Game %d", r.Game.ID)

	summary := pterm.Sprintfln("Railcar: %d", r.Railcar.ID) +
		pterm.Sprintfln("Hub: %s", pterm.LightCyan(r.Game.Hub)) +
		pterm.Sprintfln("Status: %s", r.Game.Status) +
		pterm.Sprintfln("Players: %d", len(r.Members)) +
		pterm.Sprintf("Members: %s", strings.Join(r.Members, ", "))
	pterm.DefaultBox.WithTitle(pterm.LightYellow("|RAILCAR|")).WithTitleTopCenter().WithHorizontalPadding(4).Println(summary)

	_ = pterm.DefaultTable.WithHasHeader().WithData(standingsTable(r.Scores)).Render()

	if len(r.Rounds) > 0 {
		data := pterm.TableData{{"Round", "Phase", "Minority", "Responses", "Winning"}}
		for _, round := range r.Rounds {
			data = append(data, []string{round.Hub, round.Phase, strconv.FormatBool(round.Minority), string(round.Tally), string(round.WinningIndex)})
		}
		_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	}

	if len(r.Rankings) > 0 {
		data := pterm.TableData{{"Rank", "Player", "Points", "Payout", "Claimed"}}
		for _, rank := range r.Rankings {
			claimed := "no"
			if rank.ClaimedAt != nil {
				claimed = rank.ClaimedAt.Format("2006-01-02 15:04:05")
			}
			data = append(data, []string{
				strconv.Itoa(rank.Rank),
				rank.Player,
				strconv.FormatUint(rank.Points, 10),
				strconv.FormatUint(rank.Payout, 10),
				claimed,
			})
		}
		_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	}

	pterm.Info.Printfln("ledger blocks for game: %d", len(r.Blocks))
	for _, line := range blockSummary(r.Blocks) {
		pterm.Println(line)
	}
}

// standingsTable orders scores by points, then player id.
func standingsTable(scores []db.Score) pterm.TableData {
	sorted := append([]db.Score(nil), scores...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Points != sorted[j].Points {
			return sorted[i].Points > sorted[j].Points
		}
		return sorted[i].Player < sorted[j].Player
	})
	data := pterm.TableData{{"#", "Player", "Points"}}
	for i, s := range sorted {
		data = append(data, []string{strconv.Itoa(i + 1), s.Player, strconv.FormatUint(s.Points, 10)})
	}
	return data
}

func blockSummary(blocks []ledger.Block) []string {
	lines := make([]string, 0, len(blocks))
	for _, b := range blocks {
		line := fmt.Sprintf("#%d %s %s", b.Index, b.Timestamp.Format("15:04:05.000"), b.Kind)
		if b.Hub != "" {
			line += " hub=" + b.Hub
		}
		if b.Player != "" {
			line += " player=" + b.Player
		}
		lines = append(lines, line)
	}
	return lines
}
