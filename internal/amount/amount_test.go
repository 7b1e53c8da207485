package amount

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solido-stake/internal/domain"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
	}{
		{"1", 1_000_000_000},
		{"1.5", 1_500_000_000},
		{"0", 0},
		{"0.000000001", 1},
		{" 2.25 ", 2_250_000_000},
		{"0.0000000019", 1}, // truncated below one lamport
		{"18446744073.709551615", math.MaxUint64},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"", "abc", "-1", "-0.5", "1.2.3", "18446744073.709551616"} {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			assert.ErrorIs(t, err, domain.ErrInvalidAmount)
		})
	}
}

func TestFromFloat(t *testing.T) {
	got, err := FromFloat(1.5)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000_000), got)

	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -0.1} {
		_, err := FromFloat(f)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	}
}

func TestToDecimal_RoundTrip(t *testing.T) {
	for _, units := range []uint64{0, 1, 999_999_999, 1_000_000_000, 123_456_789_012, math.MaxUint64} {
		back, err := ToSmallestUnit(ToDecimal(units))
		require.NoError(t, err)
		assert.Equal(t, units, back)
	}
}

func TestToSmallestUnit_RoundTrip(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"1", "1"},
		{"0.000000001", "0.000000001"},
		{"2.5", "2.5"},
		{"18446744073.709551615", "18446744073.709551615"},
		// Digits past the ninth decimal place are truncated, never rounded.
		{"1.2345678919", "1.234567891"},
		{"0.0000000019", "0.000000001"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d := decimal.RequireFromString(tt.in)
			units, err := ToSmallestUnit(d)
			require.NoError(t, err)

			back := ToDecimal(units)
			assert.True(t, back.Equal(decimal.RequireFromString(tt.want)), "got %s", back)
			assert.True(t, back.Equal(d.Truncate(Decimals)), "got %s", back)
		})
	}
}

func TestToDecimal(t *testing.T) {
	assert.True(t, ToDecimal(1_500_000_000).Equal(decimal.RequireFromString("1.5")))
	assert.Equal(t, "1.5", Lamports(1_500_000_000).String())
	assert.Equal(t, "0.000000001", StLamports(1).String())
}
