package server

import (
	"context"
	"encoding/json"

	"github.com/LuckyMachines/hivemind/internal/db"
	"github.com/LuckyMachines/hivemind/internal/events"

	"gorm.io/datatypes"
	"gorm.io/gorm/clause"
)

// persistNotification appends a lifecycle notification to the event table.
// Redelivered notifications share a UUID and are ignored.
func (s *Server) persistNotification(ctx context.Context, n events.Notification) error {
	if s.db == nil {
		return nil
	}
	raw, err := json.Marshal(n)
	if err != nil {
		return err
	}
	record := db.Event{
		UUID:      n.ID,
		GameID:    uint(n.GameID),
		Hub:       n.Hub,
		Kind:      string(n.Kind),
		Payload:   datatypes.JSON(raw),
		CreatedAt: n.Timestamp.UTC(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "uuid"}}, DoNothing: true}).
		Create(&record).Error
}

// loadEvents returns persisted notifications for one game, oldest first.
func (s *Server) loadEvents(ctx context.Context, gameID uint64, limit int) ([]events.Notification, error) {
	if s.db == nil {
		return nil, nil
	}
	var rows []db.Event
	if err := s.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("id asc").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]events.Notification, 0, len(rows))
	for _, row := range rows {
		var n events.Notification
		if err := json.Unmarshal(row.Payload, &n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
