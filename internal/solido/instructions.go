package solido

import (
	"fmt"

	sgo "github.com/gagliardetto/solana-go"
	"github.com/samber/lo"

	"solido-stake/internal/domain"
)

// Solido instruction tags.
const (
	instructionDeposit    uint8 = 1
	instructionWithdrawV2 uint8 = 23
)

type depositData struct {
	Instruction uint8
	Amount      uint64
}

type withdrawData struct {
	Instruction    uint8
	Amount         uint64
	ValidatorIndex uint32
}

// DepositInstruction deposits lamports from sender and mints stSOL into
// recipient, an stSOL token account.
func DepositInstruction(snap *Snapshot, sender, recipient sgo.PublicKey, lamports uint64) (sgo.Instruction, error) {
	data, err := encodeBorsh(depositData{Instruction: instructionDeposit, Amount: lamports})
	if err != nil {
		return nil, fmt.Errorf("encode deposit: %w", err)
	}

	addrs := snap.Addresses
	return sgo.NewInstruction(addrs.ProgramID, sgo.AccountMetaSlice{
		sgo.NewAccountMeta(addrs.InstanceID, true, false),
		sgo.NewAccountMeta(sender, true, true),
		sgo.NewAccountMeta(recipient, true, false),
		sgo.NewAccountMeta(addrs.StSolMint, true, false),
		sgo.NewAccountMeta(snap.Authorities.Reserve, true, false),
		sgo.NewAccountMeta(snap.Authorities.MintAuthority, false, false),
		sgo.NewAccountMeta(sgo.TokenProgramID, false, false),
		sgo.NewAccountMeta(sgo.SystemProgramID, false, false),
	}, data), nil
}

// HeaviestValidator picks the active validator with the largest effective
// stake. Ties go to the lowest list index.
func HeaviestValidator(snap *Snapshot) (IndexedValidator, error) {
	active := snap.ActiveValidators()
	if len(active) == 0 {
		return IndexedValidator{}, fmt.Errorf("%w: no active validator", domain.ErrSnapshotUnavailable)
	}
	return lo.MaxBy(active, func(a, b IndexedValidator) bool {
		return a.EffectiveStakeBalance > b.EffectiveStakeBalance
	}), nil
}

// WithdrawInstruction burns stLamports from senderStSol and splits the
// equivalent stake from the heaviest validator into newStake, a fresh
// account that must sign the transaction.
func WithdrawInstruction(snap *Snapshot, sender, senderStSol, newStake sgo.PublicKey, stLamports uint64) (sgo.Instruction, error) {
	validator, err := HeaviestValidator(snap)
	if err != nil {
		return nil, err
	}

	addrs := snap.Addresses
	source, err := addrs.ValidatorStakeAccount(validator.VoteAccount, validator.StakeSeeds.Begin)
	if err != nil {
		return nil, err
	}

	data, err := encodeBorsh(withdrawData{
		Instruction:    instructionWithdrawV2,
		Amount:         stLamports,
		ValidatorIndex: validator.Index,
	})
	if err != nil {
		return nil, fmt.Errorf("encode withdraw: %w", err)
	}

	return sgo.NewInstruction(addrs.ProgramID, sgo.AccountMetaSlice{
		sgo.NewAccountMeta(addrs.InstanceID, true, false),
		sgo.NewAccountMeta(sender, false, true),
		sgo.NewAccountMeta(senderStSol, true, false),
		sgo.NewAccountMeta(addrs.StSolMint, true, false),
		sgo.NewAccountMeta(validator.VoteAccount, false, false),
		sgo.NewAccountMeta(source, true, false),
		sgo.NewAccountMeta(newStake, true, true),
		sgo.NewAccountMeta(snap.Authorities.StakeAuthority, false, false),
		sgo.NewAccountMeta(snap.Lido.ValidatorList, true, false),
		sgo.NewAccountMeta(sgo.TokenProgramID, false, false),
		sgo.NewAccountMeta(sgo.SysVarClockPubkey, false, false),
		sgo.NewAccountMeta(sgo.SystemProgramID, false, false),
		sgo.NewAccountMeta(sgo.StakeProgramID, false, false),
	}, data), nil
}
