package randomness

import (
	"context"
	"errors"
	"strings"
	"testing"
)

const testSecret = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestSignerDrawIsDeterministicAndVerifiable(t *testing.T) {
	signer, err := NewSigner(testSecret)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	seed := []byte("hivemind.round1/7")
	first, err := signer.Draw(context.Background(), seed)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	second, err := signer.Draw(context.Background(), seed)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if first.Value != second.Value {
		t.Fatalf("expected same value for same seed")
	}
	if err := Verify(signer.Public(), first); err != nil {
		t.Fatalf("verify: %v", err)
	}

	tampered := first
	tampered.Seed = []byte("hivemind.round1/8")
	if err := Verify(signer.Public(), tampered); !errors.Is(err, ErrBadProof) {
		t.Fatalf("expected bad proof for tampered seed, got %v", err)
	}
}

func TestSignerFromSameSecretSharesKey(t *testing.T) {
	a, _ := NewSigner(testSecret)
	b, _ := NewSigner(testSecret)
	if !a.Public().Equal(b.Public()) {
		t.Fatalf("expected same public key")
	}
	decoded, err := ParsePublic(PublicHex(a.Public()))
	if err != nil || !decoded.Equal(a.Public()) {
		t.Fatalf("public key round trip failed: %v", err)
	}
}

func TestNewSignerRejectsBadSecret(t *testing.T) {
	for _, secret := range []string{"zz", strings.Repeat("ab", 16)} {
		if _, err := NewSigner(secret); !errors.Is(err, ErrBadSeed) {
			t.Fatalf("NewSigner(%q) = %v, want ErrBadSeed", secret, err)
		}
	}
}

func TestFixedPinsMode(t *testing.T) {
	ctx := context.Background()
	minority, _ := Fixed{IsMinority: true}.Draw(ctx, []byte("seed"))
	majority, _ := Fixed{}.Draw(ctx, []byte("seed"))
	if !minority.Minority() || majority.Minority() {
		t.Fatalf("fixed source did not pin the mode")
	}
}

func TestDrawHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Fixed{}).Draw(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}
