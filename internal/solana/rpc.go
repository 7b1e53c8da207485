package solana

import "context"

// RPCClient defines the Solana RPC HTTP interface used for stake operations.
type RPCClient interface {
	// GetAccountInfo retrieves an account. Returns nil, nil if the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetBalance retrieves the lamport balance of an account.
	GetBalance(ctx context.Context, pubkey string) (uint64, error)

	// GetLatestBlockhash retrieves the most recent blockhash.
	GetLatestBlockhash(ctx context.Context) (*LatestBlockhash, error)

	// GetProgramAccounts scans accounts owned by program that match all filters.
	GetProgramAccounts(ctx context.Context, program string, filters []AccountFilter) ([]ProgramAccount, error)

	// GetStakeActivation retrieves the activation status of a stake account.
	GetStakeActivation(ctx context.Context, pubkey string) (*StakeActivation, error)

	// SendTransaction broadcasts a base64 encoded signed transaction and returns its signature.
	SendTransaction(ctx context.Context, rawBase64 string) (string, error)

	// GetSignatureStatuses retrieves confirmation status for signatures.
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error)
}
