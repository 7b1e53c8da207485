// Package address parses public keys and derives program addresses,
// including associated token accounts.
package address

import (
	"crypto/sha256"
	"fmt"

	"filippo.io/edwards25519"
	sgo "github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"solido-stake/internal/domain"
)

const pdaMarker = "ProgramDerivedAddress"

// MaxSeedLength is the longest single seed accepted by the runtime.
const MaxSeedLength = 32

// Parse decodes a base58 public key.
func Parse(s string) (sgo.PublicKey, error) {
	raw, err := base58.Decode(s)
	if err != nil || len(raw) != sgo.PublicKeyLength {
		return sgo.PublicKey{}, fmt.Errorf("%w: %q", domain.ErrInvalidKey, s)
	}
	return sgo.PublicKeyFromBytes(raw), nil
}

// IsOnCurve reports whether key is a valid ed25519 point.
func IsOnCurve(key []byte) bool {
	if len(key) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(key)
	return err == nil
}

// FindProgramAddress searches bump seeds from 255 down for the first
// candidate that lies off the ed25519 curve.
func FindProgramAddress(seeds [][]byte, program sgo.PublicKey) (sgo.PublicKey, uint8, error) {
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return sgo.PublicKey{}, 0, fmt.Errorf("seed length %d exceeds %d", len(seed), MaxSeedLength)
		}
	}

	for bump := 255; bump >= 0; bump-- {
		data := make([]byte, 0, 64+len(pdaMarker))
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, byte(bump))
		data = append(data, program[:]...)
		data = append(data, pdaMarker...)

		hash := sha256.Sum256(data)
		if !IsOnCurve(hash[:]) {
			return sgo.PublicKeyFromBytes(hash[:]), uint8(bump), nil
		}
	}

	return sgo.PublicKey{}, 0, fmt.Errorf("no viable bump seed for program %s", program)
}

// DeriveAssociated returns the canonical token account that holds mint
// for owner. The owner must be a wallet key on the ed25519 curve.
func DeriveAssociated(owner, mint sgo.PublicKey) (sgo.PublicKey, error) {
	if owner.IsZero() || !IsOnCurve(owner[:]) {
		return sgo.PublicKey{}, fmt.Errorf("%w: owner %s is not a wallet key", domain.ErrInvalidKey, owner)
	}
	if mint.IsZero() {
		return sgo.PublicKey{}, fmt.Errorf("%w: empty mint", domain.ErrInvalidKey)
	}

	addr, _, err := FindProgramAddress(
		[][]byte{owner[:], sgo.TokenProgramID[:], mint[:]},
		sgo.SPLAssociatedTokenAccountProgramID,
	)
	if err != nil {
		return sgo.PublicKey{}, fmt.Errorf("%w: %v", domain.ErrInvalidKey, err)
	}
	return addr, nil
}

// DeriveAssociatedString is DeriveAssociated over base58 inputs.
func DeriveAssociatedString(owner, mint string) (string, error) {
	o, err := Parse(owner)
	if err != nil {
		return "", err
	}
	m, err := Parse(mint)
	if err != nil {
		return "", err
	}
	addr, err := DeriveAssociated(o, m)
	if err != nil {
		return "", err
	}
	return addr.String(), nil
}
