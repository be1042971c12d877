package db

import (
	"time"

	"gorm.io/datatypes"
)

type Hub struct {
	ID        uint      `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:64;uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

type Railcar struct {
	ID        uint           `gorm:"primaryKey;autoIncrement:false"`
	HubID     uint           `gorm:"index;not null"`
	Members   datatypes.JSON `gorm:"type:jsonb;not null"`
	Retired   bool           `gorm:"not null;default:false"`
	CreatedAt time.Time      `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

type Game struct {
	ID        uint      `gorm:"primaryKey;autoIncrement:false"`
	RailcarID uint      `gorm:"index;not null"`
	Hub       string    `gorm:"size:64;not null"`
	Status    string    `gorm:"size:32;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type Score struct {
	GameID    uint      `gorm:"primaryKey;autoIncrement:false"`
	Player    string    `gorm:"primaryKey;size:64"`
	Points    uint64    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// RoundState is one row per (round hub, game).
type RoundState struct {
	GameID       uint           `gorm:"primaryKey;autoIncrement:false"`
	Hub          string         `gorm:"primaryKey;size:64"`
	Phase        string         `gorm:"size:16;not null"`
	Minority     bool           `gorm:"not null"`
	Tally        datatypes.JSON `gorm:"type:jsonb"`
	WinningIndex datatypes.JSON `gorm:"type:jsonb"`
	UpdatedAt    time.Time      `gorm:"not null"`
}

type Ranking struct {
	GameID    uint       `gorm:"primaryKey;autoIncrement:false"`
	Player    string     `gorm:"primaryKey;size:64"`
	Rank      int        `gorm:"not null"`
	Points    uint64     `gorm:"not null"`
	Payout    uint64     `gorm:"not null;default:0"`
	ClaimedAt *time.Time
	CreatedAt time.Time `gorm:"not null"`
}

type Event struct {
	ID        uint           `gorm:"primaryKey"`
	UUID      string         `gorm:"size:36;uniqueIndex;not null"`
	GameID    uint           `gorm:"index;not null"`
	Hub       string         `gorm:"size:64;not null"`
	Kind      string         `gorm:"size:32;not null"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null"`
}

// Block is one link of the operation ledger.
type Block struct {
	Index     uint64         `gorm:"primaryKey;autoIncrement:false"`
	Hash      string         `gorm:"size:64;uniqueIndex;not null"`
	PrevHash  string         `gorm:"size:64;not null"`
	Kind      string         `gorm:"size:32;not null"`
	GameID    uint           `gorm:"index;not null"`
	Hub       string         `gorm:"size:64"`
	Player    string         `gorm:"size:64"`
	Payload   datatypes.JSON `gorm:"type:json;not null"`
	CreatedAt time.Time      `gorm:"not null"`
}

type QuestionLibrary struct {
	ID        uint      `gorm:"primaryKey"`
	Pack      string    `gorm:"size:64;not null;uniqueIndex:idx_question_library_pack_text"`
	Text      string    `gorm:"size:280;not null;uniqueIndex:idx_question_library_pack_text"`
	Response1 string    `gorm:"size:120;not null"`
	Response2 string    `gorm:"size:120;not null"`
	Response3 string    `gorm:"size:120;not null"`
	Response4 string    `gorm:"size:120;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
