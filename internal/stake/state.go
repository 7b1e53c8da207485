// Package stake decodes native stake accounts and builds stake program
// instructions.
package stake

import (
	"encoding/binary"
	"fmt"
	"math"

	sgo "github.com/gagliardetto/solana-go"
)

// Stake account layout (StakeStateV2, bincode).
const (
	AccountSize = 200

	offsetTag               = 0
	offsetRentExemptReserve = 4
	offsetStaker            = 12
	WithdrawerOffset        = 44
	offsetLockupTimestamp   = 76
	offsetLockupEpoch       = 84
	offsetCustodian         = 92
	offsetVoter             = 124
	offsetStake             = 156
	offsetActivationEpoch   = 164
	offsetDeactivationEpoch = 172
	offsetWarmupRate        = 180
	offsetCreditsObserved   = 188
	offsetFlags             = 196

	metaEnd       = 124
	delegationEnd = 197
)

// Kind is the StakeStateV2 discriminant.
type Kind uint32

// Stake state kinds.
const (
	KindUninitialized Kind = 0
	KindInitialized   Kind = 1
	KindStake         Kind = 2
	KindRewardsPool   Kind = 3
)

// NotDeactivated is the deactivation epoch of a stake that was never deactivated.
const NotDeactivated = math.MaxUint64

// Meta holds authorities and lockup of an initialized stake account.
type Meta struct {
	RentExemptReserve uint64
	Staker            sgo.PublicKey
	Withdrawer        sgo.PublicKey
	LockupTimestamp   int64
	LockupEpoch       uint64
	Custodian         sgo.PublicKey
}

// Delegation describes stake delegated to a validator vote account.
type Delegation struct {
	Voter             sgo.PublicKey
	Stake             uint64
	ActivationEpoch   uint64
	DeactivationEpoch uint64
	WarmupCooldown    float64
	CreditsObserved   uint64
	Flags             uint8
}

// State is a decoded stake account. Meta is nil for uninitialized and
// rewards pool accounts; Delegation is nil unless Kind is KindStake.
type State struct {
	Kind       Kind
	Meta       *Meta
	Delegation *Delegation
}

// Delegated reports whether the account carries an initialized delegation.
func (s *State) Delegated() bool {
	return s != nil && s.Kind == KindStake && s.Delegation != nil
}

// Decode parses stake account data.
func Decode(data []byte) (*State, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("stake account data too short: %d bytes", len(data))
	}

	st := &State{Kind: Kind(binary.LittleEndian.Uint32(data[offsetTag:]))}

	switch st.Kind {
	case KindUninitialized, KindRewardsPool:
		return st, nil
	case KindInitialized, KindStake:
	default:
		return nil, fmt.Errorf("unknown stake state %d", st.Kind)
	}

	if len(data) < metaEnd {
		return nil, fmt.Errorf("stake meta truncated: %d bytes", len(data))
	}
	st.Meta = &Meta{
		RentExemptReserve: binary.LittleEndian.Uint64(data[offsetRentExemptReserve:]),
		Staker:            sgo.PublicKeyFromBytes(data[offsetStaker:WithdrawerOffset]),
		Withdrawer:        sgo.PublicKeyFromBytes(data[WithdrawerOffset:offsetLockupTimestamp]),
		LockupTimestamp:   int64(binary.LittleEndian.Uint64(data[offsetLockupTimestamp:])),
		LockupEpoch:       binary.LittleEndian.Uint64(data[offsetLockupEpoch:]),
		Custodian:         sgo.PublicKeyFromBytes(data[offsetCustodian:offsetVoter]),
	}

	if st.Kind != KindStake {
		return st, nil
	}

	if len(data) < delegationEnd {
		return nil, fmt.Errorf("stake delegation truncated: %d bytes", len(data))
	}
	st.Delegation = &Delegation{
		Voter:             sgo.PublicKeyFromBytes(data[offsetVoter:offsetStake]),
		Stake:             binary.LittleEndian.Uint64(data[offsetStake:]),
		ActivationEpoch:   binary.LittleEndian.Uint64(data[offsetActivationEpoch:]),
		DeactivationEpoch: binary.LittleEndian.Uint64(data[offsetDeactivationEpoch:]),
		WarmupCooldown:    math.Float64frombits(binary.LittleEndian.Uint64(data[offsetWarmupRate:])),
		CreditsObserved:   binary.LittleEndian.Uint64(data[offsetCreditsObserved:]),
		Flags:             data[offsetFlags],
	}
	return st, nil
}

// Encode serializes st into a full-size stake account payload.
func Encode(st *State) []byte {
	data := make([]byte, AccountSize)
	binary.LittleEndian.PutUint32(data[offsetTag:], uint32(st.Kind))

	if st.Meta != nil {
		binary.LittleEndian.PutUint64(data[offsetRentExemptReserve:], st.Meta.RentExemptReserve)
		copy(data[offsetStaker:], st.Meta.Staker[:])
		copy(data[WithdrawerOffset:], st.Meta.Withdrawer[:])
		binary.LittleEndian.PutUint64(data[offsetLockupTimestamp:], uint64(st.Meta.LockupTimestamp))
		binary.LittleEndian.PutUint64(data[offsetLockupEpoch:], st.Meta.LockupEpoch)
		copy(data[offsetCustodian:], st.Meta.Custodian[:])
	}

	if d := st.Delegation; d != nil {
		copy(data[offsetVoter:], d.Voter[:])
		binary.LittleEndian.PutUint64(data[offsetStake:], d.Stake)
		binary.LittleEndian.PutUint64(data[offsetActivationEpoch:], d.ActivationEpoch)
		binary.LittleEndian.PutUint64(data[offsetDeactivationEpoch:], d.DeactivationEpoch)
		binary.LittleEndian.PutUint64(data[offsetWarmupRate:], math.Float64bits(d.WarmupCooldown))
		binary.LittleEndian.PutUint64(data[offsetCreditsObserved:], d.CreditsObserved)
		data[offsetFlags] = d.Flags
	}
	return data
}
