package solido

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	sgo "github.com/gagliardetto/solana-go"
)

// Account type discriminants stored in the first byte of Solido accounts.
const (
	AccountTypeUninitialized uint8 = 0
	AccountTypeLido          uint8 = 1
	AccountTypeValidator     uint8 = 2
	AccountTypeMaintainer    uint8 = 3
)

// ExchangeRateState is the rate last computed on chain.
type ExchangeRateState struct {
	ComputedInEpoch uint64
	StSolSupply     uint64
	SolBalance      uint64
}

// RewardDistribution holds fee shares.
type RewardDistribution struct {
	TreasuryFee       uint32
	DeveloperFee      uint32
	StSolAppreciation uint32
}

// FeeRecipients are stSOL accounts receiving fees.
type FeeRecipients struct {
	TreasuryAccount  sgo.PublicKey
	DeveloperAccount sgo.PublicKey
}

// LamportsHistogram buckets deposit sizes.
type LamportsHistogram struct {
	Counts [12]uint64
	Total  uint64
}

// WithdrawMetric tracks cumulative withdrawals.
type WithdrawMetric struct {
	TotalStSolAmount uint64
	TotalSolAmount   uint64
	Count            uint64
}

// ProtocolMetrics are cumulative counters kept by the program.
type ProtocolMetrics struct {
	FeeTreasurySolTotal       uint64
	FeeValidationSolTotal     uint64
	FeeDeveloperSolTotal      uint64
	StSolAppreciationSolTotal uint64
	FeeTreasuryStSolTotal     uint64
	FeeValidationStSolTotal   uint64
	FeeDeveloperStSolTotal    uint64
	DepositAmount             LamportsHistogram
	WithdrawAmount            WithdrawMetric
}

// Criteria are validator admission thresholds.
type Criteria struct {
	MaxCommission          uint8
	MinBlockProductionRate uint64
	MinVoteSuccessRate     uint64
}

// LidoState is the instance account (borsh).
type LidoState struct {
	AccountType            uint8
	LidoVersion            uint8
	Manager                sgo.PublicKey
	StSolMint              sgo.PublicKey
	ExchangeRate           ExchangeRateState
	SolReserveBumpSeed     uint8
	StakeAuthorityBumpSeed uint8
	MintAuthorityBumpSeed  uint8
	RewardDistribution     RewardDistribution
	FeeRecipients          FeeRecipients
	Metrics                ProtocolMetrics
	Criteria               Criteria
	ValidatorList          sgo.PublicKey
	MaintainerList         sgo.PublicKey
}

// SeedRange is the half-open range [Begin, End) of stake account seeds in use.
type SeedRange struct {
	Begin uint64
	End   uint64
}

// Validator is one entry of the validator list.
type Validator struct {
	VoteAccount            sgo.PublicKey
	StakeSeeds             SeedRange
	UnstakeSeeds           SeedRange
	StakeAccountsBalance   uint64
	UnstakeAccountsBalance uint64
	EffectiveStakeBalance  uint64
	Active                 bool
}

// ListHeader precedes the entries of a Solido account list.
type ListHeader struct {
	AccountType uint8
	LidoVersion uint8
	MaxEntries  uint32
}

// ValidatorList is the validator list account (borsh).
type ValidatorList struct {
	Header     ListHeader
	Validators []Validator
}

// MintLayout is the SPL token mint account.
type MintLayout struct {
	MintAuthorityOption   [4]byte
	MintAuthority         sgo.PublicKey
	Supply                uint64
	Decimals              uint8
	IsInitialized         uint8
	FreezeAuthorityOption [4]byte
	FreezeAuthority       sgo.PublicKey
}

// MintLayoutSize is the serialized size of an SPL mint.
const MintLayoutSize = 82

// DecodeLidoState parses the instance account.
func DecodeLidoState(data []byte) (*LidoState, error) {
	var st LidoState
	if err := bin.NewBorshDecoder(data).Decode(&st); err != nil {
		return nil, fmt.Errorf("decode lido state: %w", err)
	}
	if st.AccountType != AccountTypeLido {
		return nil, fmt.Errorf("decode lido state: unexpected account type %d", st.AccountType)
	}
	return &st, nil
}

// DecodeValidatorList parses the validator list account.
func DecodeValidatorList(data []byte) (*ValidatorList, error) {
	var list ValidatorList
	if err := bin.NewBorshDecoder(data).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode validator list: %w", err)
	}
	if list.Header.AccountType != AccountTypeValidator {
		return nil, fmt.Errorf("decode validator list: unexpected account type %d", list.Header.AccountType)
	}
	return &list, nil
}

// DecodeMint parses an SPL token mint account.
func DecodeMint(data []byte) (*MintLayout, error) {
	if len(data) < MintLayoutSize {
		return nil, fmt.Errorf("decode mint: %d bytes, want %d", len(data), MintLayoutSize)
	}
	var mint MintLayout
	if err := bin.NewBinDecoder(data).Decode(&mint); err != nil {
		return nil, fmt.Errorf("decode mint: %w", err)
	}
	return &mint, nil
}

func encodeBorsh(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := bin.NewBorshEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode serializes the instance account.
func (s *LidoState) Encode() ([]byte, error) { return encodeBorsh(s) }

// Encode serializes the validator list account.
func (l *ValidatorList) Encode() ([]byte, error) { return encodeBorsh(l) }

// Encode serializes the mint account.
func (m *MintLayout) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := bin.NewBinEncoder(&buf).Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
