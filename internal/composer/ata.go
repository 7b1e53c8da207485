package composer

import (
	sgo "github.com/gagliardetto/solana-go"
)

// Associated token program instruction tags.
const ataCreateIdempotent byte = 1

// createAssociatedIdempotent creates owner's token account for mint, or
// does nothing if it already exists.
func createAssociatedIdempotent(payer, ata, owner, mint sgo.PublicKey) sgo.Instruction {
	return sgo.NewInstruction(sgo.SPLAssociatedTokenAccountProgramID, sgo.AccountMetaSlice{
		sgo.NewAccountMeta(payer, true, true),
		sgo.NewAccountMeta(ata, true, false),
		sgo.NewAccountMeta(owner, false, false),
		sgo.NewAccountMeta(mint, false, false),
		sgo.NewAccountMeta(sgo.SystemProgramID, false, false),
		sgo.NewAccountMeta(sgo.TokenProgramID, false, false),
	}, []byte{ataCreateIdempotent})
}
