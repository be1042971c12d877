package round

import (
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Commit is the Keccak-256 digest a player submits during collection.
type Commit [32]byte

var ErrBadCommit = errors.New("commit must be 32 hex-encoded bytes")

// CommitHash binds a reveal to its commit: keccak256(playerChoice ||
// crowdChoice || phrase), with each choice encoded as a single byte.
func CommitHash(playerChoice, crowdChoice int, phrase string) Commit {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte{byte(playerChoice), byte(crowdChoice)})
	h.Write([]byte(phrase))
	var out Commit
	copy(out[:], h.Sum(nil))
	return out
}

func (c Commit) String() string {
	return "0x" + hex.EncodeToString(c[:])
}

// ParseCommit accepts the hex form with or without a 0x prefix.
func ParseCommit(raw string) (Commit, error) {
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "0x"), "0X")
	decoded, err := hex.DecodeString(raw)
	if err != nil || len(decoded) != len(Commit{}) {
		return Commit{}, ErrBadCommit
	}
	var out Commit
	copy(out[:], decoded)
	return out, nil
}
