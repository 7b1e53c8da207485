package solido

import (
	"math/big"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"solido-stake/internal/amount"
)

// ReserveRentExemption is the rent-exempt minimum of the data-less reserve
// account. Those lamports can never be staked.
const ReserveRentExemption = 890_880

// ExchangeRate returns SOL per stSOL as last computed on chain. Before any
// stSOL exists the rate is 1.
func ExchangeRate(s *Snapshot) decimal.Decimal {
	r := s.Lido.ExchangeRate
	if r.StSolSupply == 0 || r.SolBalance == 0 {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromBigInt(new(big.Int).SetUint64(r.SolBalance), 0).
		Div(decimal.NewFromBigInt(new(big.Int).SetUint64(r.StSolSupply), 0))
}

// StSolSupply returns the circulating stSOL read from the mint.
func StSolSupply(s *Snapshot) amount.StLamports {
	return amount.StLamports(s.StSolSupply)
}

// TotalValueLocked sums stakeable reserve lamports and all validator stake.
func TotalValueLocked(s *Snapshot) amount.Lamports {
	var reserve uint64
	if s.ReserveBalance > ReserveRentExemption {
		reserve = s.ReserveBalance - ReserveRentExemption
	}
	staked := lo.SumBy(s.Validators, func(v Validator) uint64 {
		return v.StakeAccountsBalance + v.UnstakeAccountsBalance
	})
	return amount.Lamports(reserve + staked)
}

// QuoteStSol estimates the stSOL minted for a deposit of lamports.
func QuoteStSol(s *Snapshot, lamports amount.Lamports) amount.StLamports {
	r := s.Lido.ExchangeRate
	return amount.StLamports(mulDiv(uint64(lamports), r.StSolSupply, r.SolBalance))
}

// QuoteSol estimates the lamports backing stLamports.
func QuoteSol(s *Snapshot, stLamports amount.StLamports) amount.Lamports {
	r := s.Lido.ExchangeRate
	return amount.Lamports(mulDiv(uint64(stLamports), r.SolBalance, r.StSolSupply))
}

// mulDiv computes floor(x*num/den), or x when the rate is undefined.
func mulDiv(x, num, den uint64) uint64 {
	if num == 0 || den == 0 {
		return x
	}
	v := new(big.Int).SetUint64(x)
	v.Mul(v, new(big.Int).SetUint64(num))
	v.Quo(v, new(big.Int).SetUint64(den))
	if !v.IsUint64() {
		return ^uint64(0)
	}
	return v.Uint64()
}

// Stats summarizes a snapshot for display.
type Stats struct {
	ExchangeRate     decimal.Decimal
	RateEpoch        uint64
	StSolSupply      amount.StLamports
	TotalValueLocked amount.Lamports
	ReserveBalance   amount.Lamports
	Validators       int
	ActiveValidators int
}

// ComputeStats derives display statistics from a snapshot.
func ComputeStats(s *Snapshot) Stats {
	return Stats{
		ExchangeRate:     ExchangeRate(s),
		RateEpoch:        s.Lido.ExchangeRate.ComputedInEpoch,
		StSolSupply:      StSolSupply(s),
		TotalValueLocked: TotalValueLocked(s),
		ReserveBalance:   amount.Lamports(s.ReserveBalance),
		Validators:       len(s.Validators),
		ActiveValidators: len(s.ActiveValidators()),
	}
}
