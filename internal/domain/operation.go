package domain

// OperationKind identifies a composed operation.
type OperationKind string

// Operation kinds.
const (
	OperationDeposit       OperationKind = "deposit"
	OperationUnstakeRedeem OperationKind = "unstake"
	OperationWithdraw      OperationKind = "withdraw"
)

// Valid reports whether k is a known operation kind.
func (k OperationKind) Valid() bool {
	switch k {
	case OperationDeposit, OperationUnstakeRedeem, OperationWithdraw:
		return true
	}
	return false
}

// OperationStatus is the outcome of a submitted operation.
type OperationStatus string

// Operation statuses.
const (
	StatusSubmitted OperationStatus = "submitted"
	StatusConfirmed OperationStatus = "confirmed"
	StatusFailed    OperationStatus = "failed"
)

// OperationRecord is one journal entry for a signed and broadcast transaction.
// Corresponds to the operations table in PostgreSQL.
type OperationRecord struct {
	ID           string          // deterministic hash
	Kind         OperationKind   // deposit | unstake | withdraw
	Owner        string          // base58 fee payer
	Amount       uint64          // lamports (deposit, withdraw) or stLamports (unstake)
	StakeAccount *string         // withdraw source or newly created claim (nullable)
	Signature    string          // first transaction signature (empty if broadcast failed)
	Status       OperationStatus // submitted | confirmed | failed
	Error        *string         // failure reason (nullable)
	CreatedAt    int64           // Unix timestamp in milliseconds
}
