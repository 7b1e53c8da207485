package composer

import (
	"fmt"

	sgo "github.com/gagliardetto/solana-go"

	"solido-stake/internal/domain"
)

// ComposedTransaction is an unsigned instruction list ready for signing.
// Signers are auxiliary keys generated during composition; the owner signs
// separately through the wallet.
type ComposedTransaction struct {
	Kind         domain.OperationKind
	FeePayer     sgo.PublicKey
	Instructions []sgo.Instruction
	Signers      []sgo.PrivateKey

	// Amount is lamports for deposits and withdrawals, stLamports for unstakes.
	Amount uint64

	// StakeAccount is the claim account created by an unstake or drained
	// by a withdraw. Zero for deposits.
	StakeAccount sgo.PublicKey
}

// Build assembles the transaction against blockhash and applies the
// auxiliary signatures. The owner's signature slot stays empty.
func (t *ComposedTransaction) Build(blockhash sgo.Hash) (*sgo.Transaction, error) {
	tx, err := sgo.NewTransaction(t.Instructions, blockhash, sgo.TransactionPayer(t.FeePayer))
	if err != nil {
		return nil, fmt.Errorf("build %s transaction: %w", t.Kind, err)
	}
	if err := PartialSign(tx, t.Signers...); err != nil {
		return nil, err
	}
	return tx, nil
}

// PartialSign signs tx with each key, placing every signature at the
// index of that key among the required signers. Other slots are kept.
func PartialSign(tx *sgo.Transaction, keys ...sgo.PrivateKey) error {
	required := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Signatures) < required {
		sigs := make([]sgo.Signature, required)
		copy(sigs, tx.Signatures)
		tx.Signatures = sigs
	}
	if len(keys) == 0 {
		return nil
	}

	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	for _, key := range keys {
		pub := key.PublicKey()
		idx := signerIndex(tx, pub)
		if idx < 0 {
			return fmt.Errorf("%s is not a required signer", pub)
		}
		sig, err := key.Sign(msg)
		if err != nil {
			return fmt.Errorf("sign with %s: %w", pub, err)
		}
		tx.Signatures[idx] = sig
	}
	return nil
}

func signerIndex(tx *sgo.Transaction, pub sgo.PublicKey) int {
	required := int(tx.Message.Header.NumRequiredSignatures)
	for i := 0; i < required && i < len(tx.Message.AccountKeys); i++ {
		if tx.Message.AccountKeys[i].Equals(pub) {
			return i
		}
	}
	return -1
}

// MissingSignatures lists required signers whose slot is still empty.
func MissingSignatures(tx *sgo.Transaction) []sgo.PublicKey {
	var missing []sgo.PublicKey
	required := int(tx.Message.Header.NumRequiredSignatures)
	for i := 0; i < required && i < len(tx.Message.AccountKeys); i++ {
		if i >= len(tx.Signatures) || tx.Signatures[i] == (sgo.Signature{}) {
			missing = append(missing, tx.Message.AccountKeys[i])
		}
	}
	return missing
}
