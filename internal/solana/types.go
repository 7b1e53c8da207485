package solana

import (
	"encoding/base64"
	"fmt"
)

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}

// Bytes decodes the account payload.
func (a *AccountInfo) Bytes() ([]byte, error) {
	if a == nil || a.Data == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(a.Data)
	if err != nil {
		return nil, fmt.Errorf("decode account data: %w", err)
	}
	return data, nil
}

// ProgramAccount is one entry of a getProgramAccounts result.
type ProgramAccount struct {
	Pubkey  string
	Account AccountInfo
}

// AccountFilter restricts a program account scan. Exactly one of DataSize
// or Memcmp is set.
type AccountFilter struct {
	DataSize *uint64
	Memcmp   *MemcmpFilter
}

// MemcmpFilter matches Bytes (base58 encoded) at Offset.
type MemcmpFilter struct {
	Offset uint64
	Bytes  string
}

// DataSizeFilter matches accounts whose data length equals size.
func DataSizeFilter(size uint64) AccountFilter {
	return AccountFilter{DataSize: &size}
}

// MemcmpAt matches accounts holding the base58 encoded bytes at offset.
func MemcmpAt(offset uint64, base58Bytes string) AccountFilter {
	return AccountFilter{Memcmp: &MemcmpFilter{Offset: offset, Bytes: base58Bytes}}
}

// LatestBlockhash from getLatestBlockhash.
type LatestBlockhash struct {
	Blockhash            string
	LastValidBlockHeight uint64
}

// StakeActivation from getStakeActivation.
type StakeActivation struct {
	State    string // activating | active | deactivating | inactive
	Active   uint64
	Inactive uint64
}

// SignatureStatus from getSignatureStatuses.
type SignatureStatus struct {
	Slot               int64
	Confirmations      *uint64
	Err                interface{}
	ConfirmationStatus string // processed | confirmed | finalized
}

// Confirmed reports whether the signature reached at least confirmed commitment.
func (s *SignatureStatus) Confirmed() bool {
	return s != nil && (s.ConfirmationStatus == "confirmed" || s.ConfirmationStatus == "finalized")
}
