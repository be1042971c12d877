// Package ledger is the append-only, hash-chained record of every accepted
// game operation. Appends are serialized, so the chain also fixes the order
// in which operations were applied.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"
)

type Kind string

const (
	KindGenesis         Kind = "genesis"
	KindHubRegistered   Kind = "hub_registered"
	KindLobbyJoined     Kind = "lobby_joined"
	KindGameStarted     Kind = "game_started"
	KindRoundStarted    Kind = "round_started"
	KindAnswerSubmitted Kind = "answer_submitted"
	KindAnswerRevealed  Kind = "answer_revealed"
	KindPhaseAdvanced   Kind = "phase_advanced"
	KindCohortMoved     Kind = "cohort_moved"
	KindFinalized       Kind = "finalized"
	KindPrizeClaimed    Kind = "prize_claimed"
	KindAbandoned       Kind = "abandoned"
)

var ErrBrokenChain = errors.New("ledger chain broken")

// Rank is one finalized ranking row.
type Rank struct {
	Player string `json:"player"`
	Points uint64 `json:"points"`
	Rank   int    `json:"rank"`
	Payout uint64 `json:"payout"`
}

// Payload carries the operation-specific fields of a block.
type Payload struct {
	HubID        uint64            `json:"hubId,omitempty"`
	RailcarID    uint64            `json:"railcarId,omitempty"`
	Members      []string          `json:"members,omitempty"`
	Commit       string            `json:"commit,omitempty"`
	PlayerChoice *int              `json:"playerChoice,omitempty"`
	CrowdChoice  *int              `json:"crowdChoice,omitempty"`
	Delta        uint64            `json:"delta,omitempty"`
	Total        uint64            `json:"total,omitempty"`
	From         string            `json:"from,omitempty"`
	To           string            `json:"to,omitempty"`
	Minority     *bool             `json:"minority,omitempty"`
	Tally        []uint64          `json:"tally,omitempty"`
	WinningIndex []int             `json:"winningIndex,omitempty"`
	Scores       map[string]uint64 `json:"scores,omitempty"`
	Ranking      []Rank            `json:"ranking,omitempty"`
	Amount       uint64            `json:"amount,omitempty"`
	Retired      bool              `json:"retired,omitempty"`
	Proof        string            `json:"proof,omitempty"`
}

// Entry is what callers append.
type Entry struct {
	Kind    Kind
	GameID  uint64
	Hub     string
	Player  string
	Payload Payload
}

type Block struct {
	Index     uint64          `json:"index"`
	Timestamp time.Time       `json:"timestamp"`
	PrevHash  string          `json:"prevHash"`
	Kind      Kind            `json:"kind"`
	GameID    uint64          `json:"gameId"`
	Hub       string          `json:"hub,omitempty"`
	Player    string          `json:"player,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Hash      string          `json:"hash"`
}

// Decode unmarshals the block payload.
func (b Block) Decode() (Payload, error) {
	var p Payload
	if len(b.Payload) == 0 {
		return p, nil
	}
	err := json.Unmarshal(b.Payload, &p)
	return p, err
}

// Store persists blocks as they are appended.
type Store interface {
	Save(ctx context.Context, block Block) error
}

type Chain struct {
	mu     sync.RWMutex
	blocks []Block
	store  Store
	now    func() time.Time

	// saveMu orders writes to the store by block index. pending holds
	// blocks the store has not accepted yet; later blocks queue behind
	// them so the stored chain is always a prefix of this one.
	saveMu  sync.Mutex
	pending []Block
}

// Genesis is the fixed first block every chain starts from.
func Genesis() Block {
	genesis := Block{
		Index:     0,
		Timestamp: time.Unix(0, 0).UTC(),
		PrevHash:  "0",
		Kind:      KindGenesis,
		Payload:   json.RawMessage("{}"),
	}
	genesis.Hash = calculateHash(genesis)
	return genesis
}

// New starts a chain at genesis. store may be nil.
func New(store Store) *Chain {
	return &Chain{
		blocks: []Block{Genesis()},
		store:  store,
		now:    time.Now,
	}
}

// Resume continues a chain previously persisted to store. blocks must start
// at genesis and verify.
func Resume(store Store, blocks []Block) (*Chain, error) {
	if len(blocks) == 0 {
		return New(store), nil
	}
	if err := VerifyBlocks(blocks); err != nil {
		return nil, err
	}
	return &Chain{
		blocks: append([]Block(nil), blocks...),
		store:  store,
		now:    time.Now,
	}, nil
}

// LastGameID returns the highest game id recorded in the chain.
func (c *Chain) LastGameID() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var last uint64
	for _, b := range c.blocks {
		if b.GameID > last {
			last = b.GameID
		}
	}
	return last
}

func (c *Chain) SetClock(now func() time.Time) {
	c.now = now
}

// Append seals an entry into a new block. The in-memory chain stays
// authoritative: a store failure queues the block and everything after it
// for the next Append or Flush.
func (c *Chain) Append(ctx context.Context, entry Entry) (Block, error) {
	raw, err := json.Marshal(entry.Payload)
	if err != nil {
		return Block{}, fmt.Errorf("encode payload: %w", err)
	}
	c.mu.Lock()
	latest := c.blocks[len(c.blocks)-1]
	block := Block{
		Index:     latest.Index + 1,
		Timestamp: c.now().UTC().Truncate(time.Microsecond),
		PrevHash:  latest.Hash,
		Kind:      entry.Kind,
		GameID:    entry.GameID,
		Hub:       entry.Hub,
		Player:    entry.Player,
		Payload:   raw,
	}
	block.Hash = calculateHash(block)
	c.blocks = append(c.blocks, block)
	if c.store == nil {
		c.mu.Unlock()
		return block, nil
	}
	c.saveMu.Lock()
	c.mu.Unlock()
	defer c.saveMu.Unlock()

	c.pending = append(c.pending, block)
	if err := c.flushLocked(ctx); err != nil {
		log.Printf("ledger persist failed index=%d kind=%s game_id=%d pending=%d error=%v", block.Index, block.Kind, block.GameID, len(c.pending), err)
	}
	return block, nil
}

// Flush retries blocks the store has not accepted yet.
func (c *Chain) Flush(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	return c.flushLocked(ctx)
}

// Pending is the number of blocks waiting to be stored.
func (c *Chain) Pending() int {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	return len(c.pending)
}

func (c *Chain) flushLocked(ctx context.Context) error {
	for len(c.pending) > 0 {
		if err := c.store.Save(ctx, c.pending[0]); err != nil {
			return fmt.Errorf("save block %d: %w", c.pending[0].Index, err)
		}
		c.pending = c.pending[1:]
	}
	c.pending = nil
	return nil
}

func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blocks)
}

func (c *Chain) Latest() Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blocks[len(c.blocks)-1]
}

// Blocks returns a copy of the chain starting at index from.
func (c *Chain) Blocks(from uint64) []Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if from >= uint64(len(c.blocks)) {
		return nil
	}
	return append([]Block(nil), c.blocks[from:]...)
}

// ForGame returns the blocks touching one game, in chain order.
func (c *Chain) ForGame(gameID uint64) []Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Block
	for _, b := range c.blocks {
		if b.GameID == gameID && b.Kind != KindGenesis {
			out = append(out, b)
		}
	}
	return out
}

func (c *Chain) Verify() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return VerifyBlocks(c.blocks)
}

// VerifyBlocks checks a full chain starting at genesis.
func VerifyBlocks(blocks []Block) error {
	if len(blocks) == 0 {
		return fmt.Errorf("%w: empty chain", ErrBrokenChain)
	}
	if blocks[0].PrevHash != "0" || blocks[0].Index != 0 {
		return fmt.Errorf("%w: invalid genesis block", ErrBrokenChain)
	}
	for i, b := range blocks {
		if calculateHash(b) != b.Hash {
			return fmt.Errorf("%w: hash mismatch at index %d", ErrBrokenChain, b.Index)
		}
		if i == 0 {
			continue
		}
		prev := blocks[i-1]
		if b.Index != prev.Index+1 {
			return fmt.Errorf("%w: index gap at %d", ErrBrokenChain, b.Index)
		}
		if b.PrevHash != prev.Hash {
			return fmt.Errorf("%w: prev hash mismatch at index %d", ErrBrokenChain, b.Index)
		}
	}
	return nil
}

func calculateHash(b Block) string {
	h := sha256.New()
	for _, field := range []string{
		strconv.FormatUint(b.Index, 10),
		strconv.FormatInt(b.Timestamp.UnixNano(), 10),
		b.PrevHash,
		string(b.Kind),
		strconv.FormatUint(b.GameID, 10),
		b.Hub,
		b.Player,
	} {
		h.Write([]byte(field))
		h.Write([]byte{0})
	}
	h.Write(b.Payload)
	return hex.EncodeToString(h.Sum(nil))
}
