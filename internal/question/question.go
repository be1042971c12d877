// Package question supplies the immutable question and response set a round
// asks. Sources pick deterministically from (hub, game) so a round that asks
// twice gets the same answer.
package question

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Choices is the fixed number of response slots per question.
const Choices = 4

var ErrNoQuestions = errors.New("no questions available")

type Question struct {
	Text    string          `json:"question"`
	Choices [Choices]string `json:"responses"`
}

type Source interface {
	Question(ctx context.Context, hub string, gameID uint64) (Question, error)
}

// Pick maps (hub, gameID) onto [0, n).
func Pick(hub string, gameID uint64, n int) int {
	if n <= 0 {
		return 0
	}
	h := sha256.New()
	h.Write([]byte(hub))
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], gameID)
	h.Write(buf[:])
	sum := h.Sum(nil)
	return int(binary.BigEndian.Uint64(sum[:8]) % uint64(n))
}

// Pack is an in-memory question list.
type Pack struct {
	questions []Question
}

func NewPack(questions ...Question) *Pack {
	return &Pack{questions: append([]Question(nil), questions...)}
}

func (p *Pack) Len() int {
	return len(p.questions)
}

func (p *Pack) Questions() []Question {
	return append([]Question(nil), p.questions...)
}

func (p *Pack) Question(ctx context.Context, hub string, gameID uint64) (Question, error) {
	if err := ctx.Err(); err != nil {
		return Question{}, err
	}
	if len(p.questions) == 0 {
		return Question{}, ErrNoQuestions
	}
	return p.questions[Pick(hub, gameID, len(p.questions))], nil
}

// LoadPack reads a CSV pack from disk.
func LoadPack(path string) (*Pack, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	questions, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return NewPack(questions...), nil
}

// ReadCSV parses rows of question,r1,r2,r3,r4. A header row whose first
// cell is "question" is skipped. Rows with fewer responses are padded with
// empty strings; rows without a question are ignored.
func ReadCSV(r io.Reader) ([]Question, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	var questions []Question
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		text := strings.TrimSpace(row[0])
		if i == 0 && strings.EqualFold(text, "question") {
			continue
		}
		if text == "" {
			continue
		}
		q := Question{Text: text}
		for slot := 0; slot < Choices && slot+1 < len(row); slot++ {
			q.Choices[slot] = strings.TrimSpace(row[slot+1])
		}
		questions = append(questions, q)
	}
	return questions, nil
}
