// Package composer turns staking operations into unsigned transactions.
package composer

import (
	"context"
	"errors"
	"fmt"
	"log"

	sgo "github.com/gagliardetto/solana-go"

	"solido-stake/internal/address"
	"solido-stake/internal/domain"
	"solido-stake/internal/observability"
	"solido-stake/internal/solana"
	"solido-stake/internal/solido"
	"solido-stake/internal/stake"
)

// Connection is the subset of the RPC client used during composition.
type Connection interface {
	GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error)
	GetBalance(ctx context.Context, pubkey string) (uint64, error)
}

// Options configures the composer.
type Options struct {
	Addresses solido.ProgramAddresses
	Logger    *log.Logger

	// NewKeypair generates auxiliary signers. Defaults to a random ed25519 key.
	NewKeypair func() (sgo.PrivateKey, error)
}

// Composer builds transactions for staking operations. It never signs with
// or broadcasts on behalf of the owner.
type Composer struct {
	addrs      solido.ProgramAddresses
	logger     *log.Logger
	newKeypair func() (sgo.PrivateKey, error)
}

// New creates a composer.
func New(opts Options) *Composer {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	newKeypair := opts.NewKeypair
	if newKeypair == nil {
		newKeypair = sgo.NewRandomPrivateKey
	}
	return &Composer{
		addrs:      opts.Addresses,
		logger:     logger,
		newKeypair: newKeypair,
	}
}

// Compose validates op and builds its transaction. Validation happens
// before any network call; any failure returns no transaction.
func (c *Composer) Compose(ctx context.Context, conn Connection, owner sgo.PublicKey, op Operation) (tx *ComposedTransaction, err error) {
	if op == nil {
		return nil, fmt.Errorf("%w: no operation", domain.ErrInvalidAmount)
	}
	defer func() { observability.RecordComposed(string(op.Kind()), err) }()

	if owner.IsZero() {
		return nil, fmt.Errorf("compose %s: %w", op.Kind(), domain.ErrMissingSigner)
	}
	if err := op.validate(); err != nil {
		return nil, fmt.Errorf("compose %s: %w", op.Kind(), err)
	}

	switch o := op.(type) {
	case Deposit:
		tx, err = c.composeDeposit(ctx, conn, owner, o)
	case UnstakeRedeem:
		tx, err = c.composeUnstake(ctx, conn, owner, o)
	case Withdraw:
		tx = c.composeWithdraw(owner, o)
	default:
		err = fmt.Errorf("unsupported operation %T", op)
	}
	if err != nil {
		return nil, fmt.Errorf("compose %s: %w", op.Kind(), err)
	}

	c.logger.Printf("[composer] %s for %s: %d instructions, %d auxiliary signers",
		tx.Kind, owner, len(tx.Instructions), len(tx.Signers))
	return tx, nil
}

func (c *Composer) composeDeposit(ctx context.Context, conn Connection, owner sgo.PublicKey, op Deposit) (*ComposedTransaction, error) {
	ata, err := address.DeriveAssociated(owner, c.addrs.StSolMint)
	if err != nil {
		return nil, err
	}

	snap, err := solido.FetchSnapshot(ctx, conn, c.addrs)
	if err != nil {
		return nil, err
	}

	var instructions []sgo.Instruction

	probe, err := c.probe(ctx, conn, ata)
	if err != nil {
		return nil, err
	}
	observability.RecordProbe(probe.String())
	if needsCreate(probe) {
		instructions = append(instructions, createAssociatedIdempotent(owner, ata, owner, c.addrs.StSolMint))
	}

	deposit, err := solido.DepositInstruction(snap, owner, ata, uint64(op.Amount))
	if err != nil {
		return nil, err
	}
	instructions = append(instructions, deposit)

	return &ComposedTransaction{
		Kind:         domain.OperationDeposit,
		FeePayer:     owner,
		Instructions: instructions,
		Amount:       uint64(op.Amount),
	}, nil
}

// probe checks whether the receipt token account exists. A failed read is
// reported as ProbeFailed; cancellation of ctx aborts the composition.
func (c *Composer) probe(ctx context.Context, conn Connection, ata sgo.PublicKey) (ProbeResult, error) {
	info, err := conn.GetAccountInfo(ctx, ata.String())
	switch {
	case err != nil && (ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ProbeFailed, fmt.Errorf("probe %s: %w", ata, ctxErr)
		}
		return ProbeFailed, fmt.Errorf("probe %s: %w", ata, err)
	case err != nil:
		c.logger.Printf("[composer] probe %s failed: %v", ata, err)
		return ProbeFailed, nil
	case ctx.Err() != nil:
		return ProbeFailed, fmt.Errorf("probe %s: %w", ata, ctx.Err())
	case info == nil:
		return ProbeAbsent, nil
	default:
		return ProbeExists, nil
	}
}

func (c *Composer) composeUnstake(ctx context.Context, conn Connection, owner sgo.PublicKey, op UnstakeRedeem) (*ComposedTransaction, error) {
	ata, err := address.DeriveAssociated(owner, c.addrs.StSolMint)
	if err != nil {
		return nil, err
	}

	snap, err := solido.FetchSnapshot(ctx, conn, c.addrs)
	if err != nil {
		return nil, err
	}

	claim, err := c.newKeypair()
	if err != nil {
		return nil, fmt.Errorf("generate stake account key: %w", err)
	}
	claimKey := claim.PublicKey()

	redeem, err := solido.WithdrawInstruction(snap, owner, ata, claimKey, uint64(op.Amount))
	if err != nil {
		return nil, err
	}

	return &ComposedTransaction{
		Kind:     domain.OperationUnstakeRedeem,
		FeePayer: owner,
		Instructions: []sgo.Instruction{
			redeem,
			stake.DeactivateInstruction(claimKey, owner),
		},
		Signers:      []sgo.PrivateKey{claim},
		Amount:       uint64(op.Amount),
		StakeAccount: claimKey,
	}, nil
}

func (c *Composer) composeWithdraw(owner sgo.PublicKey, op Withdraw) *ComposedTransaction {
	return &ComposedTransaction{
		Kind:     domain.OperationWithdraw,
		FeePayer: owner,
		Instructions: []sgo.Instruction{
			stake.WithdrawInstruction(op.StakeAccount, owner, owner, uint64(op.Balance)),
		},
		Amount:       uint64(op.Balance),
		StakeAccount: op.StakeAccount,
	}
}
