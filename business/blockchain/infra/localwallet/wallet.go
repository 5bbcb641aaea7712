// Package localwallet implements the wallet port with an in-process
// ed25519 keypair. Balances are read through the RPC client so the
// wallet never caches chain state.
package localwallet

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"math/big"

	"github.com/mr-tron/base58"

	"github.com/dexarb/solarb/business/blockchain/app"
	"github.com/dexarb/solarb/business/blockchain/domain"
	"github.com/dexarb/solarb/internal/apperror"
	"github.com/dexarb/solarb/internal/token"
)

// Wallet signs with a locally held ed25519 key.
type Wallet struct {
	key     ed25519.PrivateKey
	address string
	rpc     app.RPCClient
}

var _ app.Wallet = (*Wallet)(nil)

// New creates a wallet from a base58-encoded 64-byte private key.
func New(encodedKey string, rpc app.RPCClient) (*Wallet, error) {
	raw, err := base58.Decode(encodedKey)
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithCause(err),
			apperror.WithContext("wallet key not base58"))
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("wallet key must be 64 bytes"))
	}

	key := ed25519.PrivateKey(raw)
	pub := key.Public().(ed25519.PublicKey)

	return &Wallet{
		key:     key,
		address: base58.Encode(pub),
		rpc:     rpc,
	}, nil
}

// Generate creates a wallet with a fresh random keypair.
func Generate(rpc app.RPCClient) (*Wallet, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	pub := key.Public().(ed25519.PublicKey)
	return &Wallet{
		key:     key,
		address: base58.Encode(pub),
		rpc:     rpc,
	}, nil
}

// Address returns the base58 public key.
func (w *Wallet) Address() string {
	return w.address
}

// Sign signs the serialized transaction and attaches the signature.
func (w *Wallet) Sign(_ context.Context, tx domain.Transaction) (domain.SignedTransaction, error) {
	if tx.Payer == "" {
		tx.Payer = w.address
	}

	message, err := json.Marshal(tx)
	if err != nil {
		return domain.SignedTransaction{}, apperror.New(apperror.CodeSigningFailed,
			apperror.WithCause(err),
			apperror.WithContext("transaction serialize"))
	}

	sig := ed25519.Sign(w.key, message)

	return domain.SignedTransaction{
		Transaction: tx,
		Signature:   base58.Encode(sig),
	}, nil
}

// Balance reads the wallet's balance for a token in base units.
func (w *Wallet) Balance(ctx context.Context, t *token.Token) (*big.Int, error) {
	return w.rpc.Balance(ctx, w.address, t.Mint())
}
