// Package positions lists the stake claim accounts an owner can withdraw from.
package positions

import (
	"context"
	"fmt"
	"log"
	"sort"

	sgo "github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"solido-stake/internal/amount"
	"solido-stake/internal/domain"
	"solido-stake/internal/observability"
	"solido-stake/internal/solana"
	"solido-stake/internal/stake"
)

// Connection is the subset of the RPC client used for listings.
type Connection interface {
	GetProgramAccounts(ctx context.Context, program string, filters []solana.AccountFilter) ([]solana.ProgramAccount, error)
	GetBalance(ctx context.Context, pubkey string) (uint64, error)
	GetStakeActivation(ctx context.Context, pubkey string) (*solana.StakeActivation, error)
}

// StakeClaimAccount is a delegated stake account withdrawable by its owner.
type StakeClaimAccount struct {
	Address    sgo.PublicKey
	Voter      sgo.PublicKey
	Balance    amount.Lamports  // live account balance
	Delegated  amount.Lamports  // stake recorded in the delegation
	Activation stake.Activation // live warm-up/cool-down status
	State      *stake.State
}

// Withdrawable reports whether the whole balance can be withdrawn now.
func (a StakeClaimAccount) Withdrawable() bool {
	return a.Activation.Withdrawable()
}

// Options configures an Aggregator.
type Options struct {
	Logger *log.Logger

	// Concurrency caps in-flight accounts during enrichment. Zero means no limit.
	Concurrency int
}

// Aggregator builds position listings. It keeps no state between calls.
type Aggregator struct {
	logger      *log.Logger
	concurrency int
}

// NewAggregator creates an aggregator.
func NewAggregator(opts Options) *Aggregator {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Aggregator{
		logger:      logger,
		concurrency: opts.Concurrency,
	}
}

// ListPositions returns owner's delegated stake accounts, largest balance
// first. A zero owner has no positions. Any failed balance or activation
// read fails the whole listing with domain.ErrEnrichmentFailure.
func (a *Aggregator) ListPositions(ctx context.Context, conn Connection, owner sgo.PublicKey) ([]StakeClaimAccount, error) {
	if owner.IsZero() {
		return []StakeClaimAccount{}, nil
	}

	candidates, err := conn.GetProgramAccounts(ctx, sgo.StakeProgramID.String(), Filters(owner))
	if err != nil {
		return nil, fmt.Errorf("scan stake accounts: %w", err)
	}

	// Slot i stays nil when candidate i is excluded.
	slots := make([]*StakeClaimAccount, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	if a.concurrency > 0 {
		g.SetLimit(a.concurrency)
	}

	for i, candidate := range candidates {
		g.Go(func() error {
			acct, err := a.enrich(gctx, conn, candidate)
			if err != nil {
				return err
			}
			slots[i] = acct
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		observability.RecordEnrichmentFailure()
		return nil, fmt.Errorf("%w: %w", domain.ErrEnrichmentFailure, err)
	}

	out := lo.Map(lo.Compact(slots), func(p *StakeClaimAccount, _ int) StakeClaimAccount { return *p })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Balance > out[j].Balance })

	observability.RecordPositions(len(out))
	return out, nil
}

// Filters returns the server-side scan filters for stake accounts whose
// withdraw authority is owner.
func Filters(owner sgo.PublicKey) []solana.AccountFilter {
	return []solana.AccountFilter{
		solana.DataSizeFilter(stake.AccountSize),
		solana.MemcmpAt(stake.WithdrawerOffset, base58.Encode(owner[:])),
	}
}

// enrich decodes one candidate and reads its balance and activation.
// It returns nil, nil for accounts without a delegation.
func (a *Aggregator) enrich(ctx context.Context, conn Connection, candidate solana.ProgramAccount) (*StakeClaimAccount, error) {
	addr, err := sgo.PublicKeyFromBase58(candidate.Pubkey)
	if err != nil {
		a.skip(candidate.Pubkey, "malformed", err)
		return nil, nil
	}

	data, err := candidate.Account.Bytes()
	if err != nil {
		a.skip(candidate.Pubkey, "malformed", err)
		return nil, nil
	}
	st, err := stake.Decode(data)
	if err != nil {
		a.skip(candidate.Pubkey, "malformed", err)
		return nil, nil
	}
	if !st.Delegated() {
		a.skip(candidate.Pubkey, "undelegated", nil)
		return nil, nil
	}

	var (
		balance    uint64
		activation stake.Activation
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := conn.GetBalance(gctx, candidate.Pubkey)
		if err != nil {
			return fmt.Errorf("balance of %s: %w", candidate.Pubkey, err)
		}
		balance = b
		return nil
	})
	g.Go(func() error {
		act, err := conn.GetStakeActivation(gctx, candidate.Pubkey)
		if err != nil {
			return fmt.Errorf("activation of %s: %w", candidate.Pubkey, err)
		}
		parsed, err := stake.ParseActivation(act.State)
		if err != nil {
			return fmt.Errorf("activation of %s: %w", candidate.Pubkey, err)
		}
		activation = parsed
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &StakeClaimAccount{
		Address:    addr,
		Voter:      st.Delegation.Voter,
		Balance:    amount.Lamports(balance),
		Delegated:  amount.Lamports(st.Delegation.Stake),
		Activation: activation,
		State:      st,
	}, nil
}

func (a *Aggregator) skip(addr, reason string, err error) {
	observability.RecordSkippedStakeAccount(reason)
	if err != nil {
		a.logger.Printf("[positions] skipping %s (%s): %v", addr, reason, err)
		return
	}
	a.logger.Printf("[positions] skipping %s (%s)", addr, reason)
}
