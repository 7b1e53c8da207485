package composer

import (
	"fmt"

	sgo "github.com/gagliardetto/solana-go"

	"solido-stake/internal/amount"
	"solido-stake/internal/domain"
	"solido-stake/internal/positions"
)

// Operation is one of Deposit, UnstakeRedeem or Withdraw.
type Operation interface {
	Kind() domain.OperationKind
	validate() error
}

// Deposit stakes native SOL and mints stSOL to the owner.
type Deposit struct {
	Amount amount.Lamports
}

// UnstakeRedeem burns stSOL and receives a deactivating stake claim account.
type UnstakeRedeem struct {
	Amount amount.StLamports
}

// Withdraw drains an inactive stake claim account back to the owner.
type Withdraw struct {
	StakeAccount sgo.PublicKey
	Balance      amount.Lamports
}

// WithdrawPosition drains the full balance of an aggregated claim account.
func WithdrawPosition(p positions.StakeClaimAccount) Withdraw {
	return Withdraw{StakeAccount: p.Address, Balance: p.Balance}
}

func (Deposit) Kind() domain.OperationKind       { return domain.OperationDeposit }
func (UnstakeRedeem) Kind() domain.OperationKind { return domain.OperationUnstakeRedeem }
func (Withdraw) Kind() domain.OperationKind      { return domain.OperationWithdraw }

func (d Deposit) validate() error {
	if d.Amount == 0 {
		return fmt.Errorf("%w: deposit amount must be positive", domain.ErrInvalidAmount)
	}
	return nil
}

func (u UnstakeRedeem) validate() error {
	if u.Amount == 0 {
		return fmt.Errorf("%w: unstake amount must be positive", domain.ErrInvalidAmount)
	}
	return nil
}

func (w Withdraw) validate() error {
	if w.StakeAccount.IsZero() {
		return fmt.Errorf("%w: missing stake account", domain.ErrInvalidKey)
	}
	if w.Balance == 0 {
		return fmt.Errorf("%w: stake account holds no lamports", domain.ErrInvalidAmount)
	}
	return nil
}

// ProbeResult is the outcome of checking whether an account exists.
type ProbeResult int

// Probe outcomes.
const (
	ProbeExists ProbeResult = iota
	ProbeAbsent
	ProbeFailed
)

func (p ProbeResult) String() string {
	switch p {
	case ProbeExists:
		return "exists"
	case ProbeAbsent:
		return "absent"
	case ProbeFailed:
		return "failed"
	}
	return fmt.Sprintf("ProbeResult(%d)", int(p))
}

// CreateWhenProbeFails treats an unanswered receipt account probe as absent.
// The create instruction is idempotent, so a redundant create is harmless
// while a missing one fails the deposit.
const CreateWhenProbeFails = true

// needsCreate applies the probe policy.
func needsCreate(p ProbeResult) bool {
	switch p {
	case ProbeAbsent:
		return true
	case ProbeFailed:
		return CreateWhenProbeFails
	}
	return false
}
