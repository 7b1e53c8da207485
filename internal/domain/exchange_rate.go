package domain

// ExchangeRatePoint is a recorded protocol snapshot summary.
// Corresponds to exchange_rates table in ClickHouse.
type ExchangeRatePoint struct {
	TimestampMs int64   // Unix timestamp in milliseconds
	Epoch       uint64  // epoch in which the on-chain rate was computed
	SolBalance  uint64  // lamports backing the rate
	StSolSupply uint64  // stLamports backing the rate
	Rate        float64 // SOL per stSOL
	TVL         uint64  // total value locked, lamports
}
