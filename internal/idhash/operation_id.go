package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"solido-stake/internal/domain"
)

// ComputeOperationID computes a deterministic operation_id using SHA256.
// Formula: SHA256(kind|owner|amount|stake_account|blockhash)
// Returns hex-encoded hash (64 characters).
func ComputeOperationID(
	kind domain.OperationKind,
	owner string,
	amount uint64,
	stakeAccount *string,
	blockhash string,
) string {
	stakeStr := ""
	if stakeAccount != nil {
		stakeStr = *stakeAccount
	}

	data := fmt.Sprintf("%s|%s|%d|%s|%s",
		string(kind),
		owner,
		amount,
		stakeStr,
		blockhash,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
