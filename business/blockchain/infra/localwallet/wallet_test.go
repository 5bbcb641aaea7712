package localwallet

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"testing"

	"github.com/mr-tron/base58"

	"github.com/dexarb/solarb/business/blockchain/domain"
)

func TestSignAttachesVerifiableSignature(t *testing.T) {
	w, err := Generate(nil)
	if err != nil {
		t.Fatal(err)
	}

	tx := domain.Transaction{
		RecentBlockhash: "hash123",
		Instructions: []domain.Instruction{
			{Program: "swap", Data: []byte{1, 2, 3}},
		},
	}

	signed, err := w.Sign(context.Background(), tx)
	if err != nil {
		t.Fatal(err)
	}

	if signed.Payer != w.Address() {
		t.Errorf("payer = %q, want wallet address", signed.Payer)
	}

	// Verify against the serialized unsigned transaction
	message, _ := json.Marshal(signed.Transaction)
	sig, err := base58.Decode(signed.Signature)
	if err != nil {
		t.Fatalf("signature not base58: %v", err)
	}

	pub, err := base58.Decode(w.Address())
	if err != nil {
		t.Fatal(err)
	}

	if !ed25519.Verify(ed25519.PublicKey(pub), message, sig) {
		t.Error("signature does not verify")
	}
}

func TestNewRejectsBadKeys(t *testing.T) {
	if _, err := New("not-base58-!!!", nil); err == nil {
		t.Error("expected error for invalid encoding")
	}
	if _, err := New(base58.Encode([]byte{1, 2, 3}), nil); err == nil {
		t.Error("expected error for short key")
	}
}
