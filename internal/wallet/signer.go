// Package wallet signs composed transactions and submits them to the network.
package wallet

import (
	"context"
	"fmt"

	sgo "github.com/gagliardetto/solana-go"

	"solido-stake/internal/composer"
	"solido-stake/internal/domain"
)

// Signer adds the owner's signature to transactions. It is invoked once per
// user-initiated operation.
type Signer interface {
	PublicKey() sgo.PublicKey
	SignAll(ctx context.Context, txs []*sgo.Transaction) ([]*sgo.Transaction, error)
}

// KeypairSigner signs with an in-process private key.
type KeypairSigner struct {
	key sgo.PrivateKey
}

// NewKeypairSigner wraps key.
func NewKeypairSigner(key sgo.PrivateKey) *KeypairSigner {
	return &KeypairSigner{key: key}
}

// LoadKeypairSigner reads a Solana CLI keypair file (JSON array of 64 bytes).
func LoadKeypairSigner(path string) (*KeypairSigner, error) {
	key, err := sgo.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: load keypair %s: %v", domain.ErrMissingSigner, path, err)
	}
	return NewKeypairSigner(key), nil
}

// PublicKey returns the signer's address.
func (s *KeypairSigner) PublicKey() sgo.PublicKey {
	return s.key.PublicKey()
}

// SignAll signs every transaction in place and returns them. Each must be
// fully signed afterwards.
func (s *KeypairSigner) SignAll(ctx context.Context, txs []*sgo.Transaction) ([]*sgo.Transaction, error) {
	for i, tx := range txs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := composer.PartialSign(tx, s.key); err != nil {
			return nil, fmt.Errorf("sign transaction %d: %w", i, err)
		}
		if missing := composer.MissingSignatures(tx); len(missing) > 0 {
			return nil, fmt.Errorf("%w: transaction %d still needs %v", domain.ErrMissingSigner, i, missing)
		}
	}
	return txs, nil
}

var _ Signer = (*KeypairSigner)(nil)
