package question

import (
	"context"

	"github.com/LuckyMachines/hivemind/internal/db"

	"gorm.io/gorm"
)

// Library serves questions from the question_libraries table.
type Library struct {
	conn *gorm.DB
	pack string
}

// NewLibrary reads one pack. An empty pack name reads every row.
func NewLibrary(conn *gorm.DB, pack string) *Library {
	return &Library{conn: conn, pack: pack}
}

func (l *Library) Question(ctx context.Context, hub string, gameID uint64) (Question, error) {
	var total int64
	if err := l.scope(ctx).Count(&total).Error; err != nil {
		return Question{}, err
	}
	if total == 0 {
		return Question{}, ErrNoQuestions
	}
	var row db.QuestionLibrary
	err := l.scope(ctx).Order("id asc").Offset(Pick(hub, gameID, int(total))).Limit(1).Take(&row).Error
	if err != nil {
		return Question{}, err
	}
	return fromRow(row), nil
}

// scope starts a fresh statement over the library's pack.
func (l *Library) scope(ctx context.Context) *gorm.DB {
	query := l.conn.WithContext(ctx).Model(&db.QuestionLibrary{})
	if l.pack != "" {
		query = query.Where("pack = ?", l.pack)
	}
	return query
}

// Store upserts questions into a pack and returns how many rows were new.
func (l *Library) Store(ctx context.Context, questions []Question) (int, error) {
	inserted := 0
	for _, q := range questions {
		entry := toRow(l.pack, q)
		result := l.conn.WithContext(ctx).
			Where(db.QuestionLibrary{Pack: entry.Pack, Text: entry.Text}).
			Attrs(entry).
			FirstOrCreate(&entry)
		if result.Error != nil {
			return inserted, result.Error
		}
		if result.RowsAffected > 0 {
			inserted++
		}
	}
	return inserted, nil
}

func toRow(pack string, q Question) db.QuestionLibrary {
	return db.QuestionLibrary{
		Pack:      pack,
		Text:      q.Text,
		Response1: q.Choices[0],
		Response2: q.Choices[1],
		Response3: q.Choices[2],
		Response4: q.Choices[3],
	}
}

func fromRow(row db.QuestionLibrary) Question {
	return Question{
		Text:    row.Text,
		Choices: [Choices]string{row.Response1, row.Response2, row.Response3, row.Response4},
	}
}
