package idhash

import (
	"testing"

	"solido-stake/internal/domain"
)

func TestComputeOperationID(t *testing.T) {
	tests := []struct {
		name         string
		kind         domain.OperationKind
		owner        string
		amount       uint64
		stakeAccount *string
		blockhash    string
		wantLen      int // hash length should be 64
	}{
		{
			name:      "deposit",
			kind:      domain.OperationDeposit,
			owner:     "OwnerAddr123",
			amount:    2_000_000_000,
			blockhash: "Blockhash456",
			wantLen:   64,
		},
		{
			name:         "unstake with claim account",
			kind:         domain.OperationUnstakeRedeem,
			owner:        "OwnerAddr123",
			amount:       1_000_000_000,
			stakeAccount: strPtr("ClaimAddr789"),
			blockhash:    "Blockhash456",
			wantLen:      64,
		},
		{
			name:         "withdraw",
			kind:         domain.OperationWithdraw,
			owner:        "AnotherOwner",
			amount:       2_282_880,
			stakeAccount: strPtr("ClaimAddr789"),
			blockhash:    "OtherBlockhash",
			wantLen:      64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeOperationID(tt.kind, tt.owner, tt.amount, tt.stakeAccount, tt.blockhash)

			if len(got) != tt.wantLen {
				t.Errorf("ComputeOperationID() length = %d, want %d", len(got), tt.wantLen)
			}

			got2 := ComputeOperationID(tt.kind, tt.owner, tt.amount, tt.stakeAccount, tt.blockhash)
			if got != got2 {
				t.Errorf("ComputeOperationID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeOperationID_DifferentInputs(t *testing.T) {
	claim := strPtr("Claim")
	base := ComputeOperationID(domain.OperationWithdraw, "Owner", 100, claim, "Hash")

	if base == ComputeOperationID(domain.OperationDeposit, "Owner", 100, claim, "Hash") {
		t.Error("Different kind should produce different hash")
	}
	if base == ComputeOperationID(domain.OperationWithdraw, "Other", 100, claim, "Hash") {
		t.Error("Different owner should produce different hash")
	}
	if base == ComputeOperationID(domain.OperationWithdraw, "Owner", 101, claim, "Hash") {
		t.Error("Different amount should produce different hash")
	}
	if base == ComputeOperationID(domain.OperationWithdraw, "Owner", 100, nil, "Hash") {
		t.Error("Missing stake account should produce different hash")
	}
	if base == ComputeOperationID(domain.OperationWithdraw, "Owner", 100, claim, "Hash2") {
		t.Error("Different blockhash should produce different hash")
	}
}

func strPtr(s string) *string {
	return &s
}
