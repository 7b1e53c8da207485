// Package amount converts between user-facing decimal amounts and the
// integer smallest units used on chain. SOL and stSOL both carry 9 decimals.
package amount

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"solido-stake/internal/domain"
)

// Decimals is the precision shared by SOL and stSOL.
const Decimals = 9

// LamportsPerSOL is the conversion factor between SOL and lamports.
const LamportsPerSOL = 1_000_000_000

// Lamports is an amount of the native asset in smallest units.
type Lamports uint64

// StLamports is an amount of the receipt asset (stSOL) in smallest units.
type StLamports uint64

var maxUint64 = new(big.Int).SetUint64(math.MaxUint64)

// ToSmallestUnit converts a decimal amount to integer smallest units.
// Digits beyond the ninth decimal place are truncated toward zero.
func ToSmallestUnit(d decimal.Decimal) (uint64, error) {
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: negative amount %s", domain.ErrInvalidAmount, d.String())
	}
	units := d.Shift(Decimals).Truncate(0).BigInt()
	if units.Cmp(maxUint64) > 0 {
		return 0, fmt.Errorf("%w: %s exceeds maximum representable amount", domain.ErrInvalidAmount, d.String())
	}
	return units.Uint64(), nil
}

// ToDecimal converts integer smallest units to a decimal amount.
func ToDecimal(units uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(units), -Decimals)
}

// Parse parses user input such as "1.5" into smallest units.
func Parse(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty amount", domain.ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", domain.ErrInvalidAmount, s)
	}
	return ToSmallestUnit(d)
}

// FromFloat converts a float amount into smallest units.
func FromFloat(f float64) (uint64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: non-finite amount", domain.ErrInvalidAmount)
	}
	return ToSmallestUnit(decimal.NewFromFloat(f))
}

// ParseSOL parses a SOL amount.
func ParseSOL(s string) (Lamports, error) {
	n, err := Parse(s)
	return Lamports(n), err
}

// ParseStSOL parses an stSOL amount.
func ParseStSOL(s string) (StLamports, error) {
	n, err := Parse(s)
	return StLamports(n), err
}

// SOL returns the amount as a decimal number of SOL.
func (l Lamports) SOL() decimal.Decimal { return ToDecimal(uint64(l)) }

func (l Lamports) String() string { return l.SOL().String() }

// StSOL returns the amount as a decimal number of stSOL.
func (s StLamports) StSOL() decimal.Decimal { return ToDecimal(uint64(s)) }

func (s StLamports) String() string { return s.StSOL().String() }
