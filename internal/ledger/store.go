package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/LuckyMachines/hivemind/internal/db"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore writes blocks and projects them into the game, score, round
// and ranking tables in one transaction per block.
type GormStore struct {
	conn *gorm.DB
}

func NewGormStore(conn *gorm.DB) *GormStore {
	return &GormStore{conn: conn}
}

func (s *GormStore) Save(ctx context.Context, block Block) error {
	if s == nil || s.conn == nil {
		return nil
	}
	payload, err := block.Decode()
	if err != nil {
		return err
	}
	return s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := db.Block{
			Index:     block.Index,
			Hash:      block.Hash,
			PrevHash:  block.PrevHash,
			Kind:      string(block.Kind),
			GameID:    uint(block.GameID),
			Hub:       block.Hub,
			Player:    block.Player,
			Payload:   datatypes.JSON(block.Payload),
			CreatedAt: block.Timestamp,
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
		if result.Error != nil {
			if isUniqueViolation(result.Error) {
				return fmt.Errorf("block %d conflicts with a stored block: %w", block.Index, result.Error)
			}
			return result.Error
		}
		if result.RowsAffected == 0 {
			var stored db.Block
			if err := tx.Where(&db.Block{Index: block.Index}).First(&stored).Error; err != nil {
				return err
			}
			if stored.Hash != block.Hash {
				return fmt.Errorf("%w: block %d differs from the stored block", ErrBrokenChain, block.Index)
			}
			return nil
		}
		return project(tx, block, payload)
	})
}

func project(tx *gorm.DB, block Block, p Payload) error {
	now := block.Timestamp
	gameID := uint(block.GameID)
	switch block.Kind {
	case KindHubRegistered:
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&db.Hub{
			ID:        uint(p.HubID),
			Name:      block.Hub,
			CreatedAt: now,
		}).Error
	case KindLobbyJoined:
		return upsertCohort(tx, block, p, "open")
	case KindGameStarted:
		return upsertCohort(tx, block, p, "active")
	case KindRoundStarted:
		minority := p.Minority != nil && *p.Minority
		return upsertRound(tx, gameID, block.Hub, "collecting", minority, nil, nil, now)
	case KindAnswerSubmitted, KindAnswerRevealed:
		if p.Total == 0 {
			return nil
		}
		return upsertScore(tx, gameID, block.Player, p.Total, now)
	case KindPhaseAdvanced:
		for player, total := range p.Scores {
			if err := upsertScore(tx, gameID, player, total, now); err != nil {
				return err
			}
		}
		minority := p.Minority != nil && *p.Minority
		return upsertRound(tx, gameID, block.Hub, p.To, minority, p.Tally, p.WinningIndex, now)
	case KindCohortMoved:
		if err := tx.Model(&db.Game{}).Where("id = ?", gameID).
			Updates(map[string]any{"hub": p.To, "updated_at": now}).Error; err != nil {
			return err
		}
		return tx.Model(&db.Railcar{}).Where("id = ?", p.RailcarID).
			Updates(map[string]any{"hub_id": p.HubID, "updated_at": now}).Error
	case KindFinalized:
		for _, r := range p.Ranking {
			row := db.Ranking{
				GameID:    gameID,
				Player:    r.Player,
				Rank:      r.Rank,
				Points:    r.Points,
				Payout:    r.Payout,
				CreatedAt: now,
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
				return err
			}
		}
		return tx.Model(&db.Game{}).Where("id = ?", gameID).
			Updates(map[string]any{"status": "finalized", "updated_at": now}).Error
	case KindPrizeClaimed:
		return tx.Model(&db.Ranking{}).
			Where("game_id = ? AND player = ?", gameID, block.Player).
			Update("claimed_at", now).Error
	case KindAbandoned:
		members, err := json.Marshal(p.Members)
		if err != nil {
			return err
		}
		if err := tx.Model(&db.Railcar{}).Where("id = ?", p.RailcarID).
			Updates(map[string]any{"members": datatypes.JSON(members), "retired": p.Retired, "updated_at": now}).Error; err != nil {
			return err
		}
		if !p.Retired {
			return nil
		}
		return tx.Model(&db.Game{}).Where("id = ?", gameID).
			Updates(map[string]any{"status": "abandoned", "updated_at": now}).Error
	}
	return nil
}

// upsertCohort writes the railcar and its game as they stand in the lobby.
func upsertCohort(tx *gorm.DB, block Block, p Payload, status string) error {
	members, err := json.Marshal(p.Members)
	if err != nil {
		return err
	}
	now := block.Timestamp
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"hub_id", "members", "updated_at"}),
	}).Create(&db.Railcar{
		ID:        uint(p.RailcarID),
		HubID:     uint(p.HubID),
		Members:   datatypes.JSON(members),
		CreatedAt: now,
		UpdatedAt: now,
	}).Error; err != nil {
		return err
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"hub", "status", "updated_at"}),
	}).Create(&db.Game{
		ID:        uint(block.GameID),
		RailcarID: uint(p.RailcarID),
		Hub:       block.Hub,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}).Error
}

func upsertScore(tx *gorm.DB, gameID uint, player string, total uint64, now time.Time) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "game_id"}, {Name: "player"}},
		DoUpdates: clause.AssignmentColumns([]string{"points", "updated_at"}),
	}).Create(&db.Score{GameID: gameID, Player: player, Points: total, UpdatedAt: now}).Error
}

func upsertRound(tx *gorm.DB, gameID uint, hub, phase string, minority bool, tally []uint64, winning []int, now time.Time) error {
	row := db.RoundState{
		GameID:    gameID,
		Hub:       hub,
		Phase:     phase,
		Minority:  minority,
		UpdatedAt: now,
	}
	columns := []string{"phase", "updated_at"}
	if tally != nil {
		raw, err := json.Marshal(tally)
		if err != nil {
			return err
		}
		row.Tally = datatypes.JSON(raw)
		columns = append(columns, "tally")
	}
	if winning != nil {
		raw, err := json.Marshal(winning)
		if err != nil {
			return err
		}
		row.WinningIndex = datatypes.JSON(raw)
		columns = append(columns, "winning_index")
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "game_id"}, {Name: "hub"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(&row).Error
}

// Load reads the persisted chain back in index order, genesis first.
func (s *GormStore) Load(ctx context.Context) ([]Block, error) {
	var rows []db.Block
	if err := s.conn.WithContext(ctx).Order(clause.OrderByColumn{Column: clause.Column{Name: "index"}}).Find(&rows).Error; err != nil {
		return nil, err
	}
	blocks := make([]Block, 0, len(rows)+1)
	blocks = append(blocks, Genesis())
	for _, row := range rows {
		blocks = append(blocks, fromRow(row))
	}
	return blocks, nil
}

// LoadGame reads one game's blocks in index order.
func (s *GormStore) LoadGame(ctx context.Context, gameID uint64) ([]Block, error) {
	var rows []db.Block
	if err := s.conn.WithContext(ctx).Where("game_id = ?", gameID).Order(clause.OrderByColumn{Column: clause.Column{Name: "index"}}).Find(&rows).Error; err != nil {
		return nil, err
	}
	blocks := make([]Block, 0, len(rows))
	for _, row := range rows {
		blocks = append(blocks, fromRow(row))
	}
	return blocks, nil
}

func fromRow(row db.Block) Block {
	return Block{
		Index:     row.Index,
		Timestamp: row.CreatedAt.UTC(),
		PrevHash:  row.PrevHash,
		Kind:      Kind(row.Kind),
		GameID:    uint64(row.GameID),
		Hub:       row.Hub,
		Player:    row.Player,
		Payload:   json.RawMessage(row.Payload),
		Hash:      row.Hash,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
