package stake

import (
	"encoding/binary"

	sgo "github.com/gagliardetto/solana-go"
)

// Stake program instruction discriminants (u32 LE).
const (
	instructionWithdraw   uint32 = 4
	instructionDeactivate uint32 = 5
)

// DeactivateInstruction starts cool-down of stakeAccount.
func DeactivateInstruction(stakeAccount, authority sgo.PublicKey) sgo.Instruction {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, instructionDeactivate)

	return sgo.NewInstruction(sgo.StakeProgramID, sgo.AccountMetaSlice{
		sgo.NewAccountMeta(stakeAccount, true, false),
		sgo.NewAccountMeta(sgo.SysVarClockPubkey, false, false),
		sgo.NewAccountMeta(authority, false, true),
	}, data)
}

// WithdrawInstruction moves lamports from an inactive stakeAccount to recipient.
func WithdrawInstruction(stakeAccount, recipient, authority sgo.PublicKey, lamports uint64) sgo.Instruction {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data, instructionWithdraw)
	binary.LittleEndian.PutUint64(data[4:], lamports)

	return sgo.NewInstruction(sgo.StakeProgramID, sgo.AccountMetaSlice{
		sgo.NewAccountMeta(stakeAccount, true, false),
		sgo.NewAccountMeta(recipient, true, false),
		sgo.NewAccountMeta(sgo.SysVarClockPubkey, false, false),
		sgo.NewAccountMeta(sgo.SysVarStakeHistoryPubkey, false, false),
		sgo.NewAccountMeta(authority, false, true),
	}, data)
}
