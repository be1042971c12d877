// Package randomness supplies the per-round coin that selects majority or
// minority scoring. Draws carry a proof so anyone holding the public key can
// check the value was not chosen after the fact.
package randomness

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"go.dedis.ch/kyber/v4"
	"go.dedis.ch/kyber/v4/sign/eddsa"
	"go.dedis.ch/kyber/v4/suites"
	"go.dedis.ch/kyber/v4/util/random"
	"golang.org/x/crypto/sha3"
)

var (
	ErrBadProof = errors.New("randomness proof does not verify")
	ErrBadSeed  = errors.New("randomness seed must be 32 hex-encoded bytes")
)

// Draw is one verifiable random value.
type Draw struct {
	Seed  []byte
	Value [32]byte
	Proof []byte
}

// Minority reports the coin face used for round scoring.
func (d Draw) Minority() bool {
	return d.Value[0]&1 == 1
}

// Source is the external provider consulted once at round start.
type Source interface {
	Draw(ctx context.Context, seed []byte) (Draw, error)
}

var suite = suites.MustFind("Ed25519")

// Signer derives values from deterministic Ed25519 signatures over the seed,
// so a given key produces exactly one value per seed.
type Signer struct {
	key *eddsa.EdDSA
}

// NewSigner builds a signer from a hex secret. An empty secret generates a
// fresh key.
func NewSigner(secretHex string) (*Signer, error) {
	if secretHex == "" {
		return &Signer{key: eddsa.NewEdDSA(random.New())}, nil
	}
	secret, err := hex.DecodeString(secretHex)
	if err != nil || len(secret) != 32 {
		return nil, ErrBadSeed
	}
	return &Signer{key: eddsa.NewEdDSA(suite.XOF(secret))}, nil
}

func (s *Signer) Public() kyber.Point {
	return s.key.Public
}

func (s *Signer) Draw(ctx context.Context, seed []byte) (Draw, error) {
	if err := ctx.Err(); err != nil {
		return Draw{}, err
	}
	sig, err := s.key.Sign(seed)
	if err != nil {
		return Draw{}, fmt.Errorf("sign seed: %w", err)
	}
	return Draw{
		Seed:  append([]byte(nil), seed...),
		Value: sha3.Sum256(sig),
		Proof: sig,
	}, nil
}

// Verify checks a draw against the signer's public key.
func Verify(public kyber.Point, draw Draw) error {
	if err := eddsa.Verify(public, draw.Seed, draw.Proof); err != nil {
		return fmt.Errorf("%w: %v", ErrBadProof, err)
	}
	if sha3.Sum256(draw.Proof) != draw.Value {
		return ErrBadProof
	}
	return nil
}

// PublicHex encodes a public key for logs and clients.
func PublicHex(public kyber.Point) string {
	raw, err := public.MarshalBinary()
	if err != nil {
		return ""
	}
	return hex.EncodeToString(raw)
}

// ParsePublic decodes a key produced by PublicHex.
func ParsePublic(encoded string) (kyber.Point, error) {
	raw, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	point := suite.Point()
	if err := point.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	return point, nil
}

// Recorded rebuilds a draw from its seed and proof. Without a proof the
// value only carries the recorded coin face.
func Recorded(seed, proof []byte, minority bool) Draw {
	draw := Draw{Seed: append([]byte(nil), seed...), Proof: append([]byte(nil), proof...)}
	if len(proof) > 0 {
		draw.Value = sha3.Sum256(proof)
		return draw
	}
	draw.Value = sha256.Sum256(seed)
	draw.Value[0] &^= 1
	if minority {
		draw.Value[0] |= 1
	}
	return draw
}

// Fixed always returns the same coin face. Tests use it to pin the scoring
// mode.
type Fixed struct {
	IsMinority bool
}

func (f Fixed) Draw(ctx context.Context, seed []byte) (Draw, error) {
	if err := ctx.Err(); err != nil {
		return Draw{}, err
	}
	value := sha256.Sum256(seed)
	value[0] &^= 1
	if f.IsMinority {
		value[0] |= 1
	}
	return Draw{Seed: append([]byte(nil), seed...), Value: value}, nil
}
