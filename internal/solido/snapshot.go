package solido

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"solido-stake/internal/domain"
	"solido-stake/internal/observability"
	"solido-stake/internal/solana"
)

// Connection is the subset of the RPC client the snapshot reader needs.
type Connection interface {
	GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error)
	GetBalance(ctx context.Context, pubkey string) (uint64, error)
}

// Snapshot is a point-in-time read of protocol state. It is never cached:
// every composition reads a fresh one.
type Snapshot struct {
	Addresses      ProgramAddresses
	Authorities    Authorities
	Lido           *LidoState
	Validators     []Validator
	ReserveBalance uint64 // lamports held by the reserve account
	StSolSupply    uint64 // stSOL mint supply
	FetchedAt      time.Time
}

// FetchSnapshot reads the instance account, then its validator list, the
// stSOL mint and the reserve balance concurrently.
func FetchSnapshot(ctx context.Context, conn Connection, addrs ProgramAddresses) (snap *Snapshot, err error) {
	defer func() { observability.RecordSnapshot(err) }()

	authorities, err := addrs.DeriveAuthorities()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSnapshotUnavailable, err)
	}

	lido, err := readLido(ctx, conn, addrs)
	if err != nil {
		return nil, err
	}

	snap = &Snapshot{
		Addresses:   addrs,
		Authorities: authorities,
		Lido:        lido,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		info, err := conn.GetAccountInfo(gctx, lido.ValidatorList.String())
		if err != nil {
			return fmt.Errorf("read validator list: %w", err)
		}
		if info == nil {
			return fmt.Errorf("validator list %s not found", lido.ValidatorList)
		}
		data, err := info.Bytes()
		if err != nil {
			return err
		}
		list, err := DecodeValidatorList(data)
		if err != nil {
			return err
		}
		snap.Validators = list.Validators
		return nil
	})

	g.Go(func() error {
		info, err := conn.GetAccountInfo(gctx, addrs.StSolMint.String())
		if err != nil {
			return fmt.Errorf("read stSOL mint: %w", err)
		}
		if info == nil {
			return fmt.Errorf("stSOL mint %s not found", addrs.StSolMint)
		}
		data, err := info.Bytes()
		if err != nil {
			return err
		}
		mint, err := DecodeMint(data)
		if err != nil {
			return err
		}
		snap.StSolSupply = mint.Supply
		return nil
	})

	g.Go(func() error {
		balance, err := conn.GetBalance(gctx, authorities.Reserve.String())
		if err != nil {
			return fmt.Errorf("read reserve balance: %w", err)
		}
		snap.ReserveBalance = balance
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSnapshotUnavailable, err)
	}

	snap.FetchedAt = time.Now()
	return snap, nil
}

func readLido(ctx context.Context, conn Connection, addrs ProgramAddresses) (*LidoState, error) {
	info, err := conn.GetAccountInfo(ctx, addrs.InstanceID.String())
	if err != nil {
		return nil, fmt.Errorf("%w: read instance: %w", domain.ErrSnapshotUnavailable, err)
	}
	if info == nil {
		return nil, fmt.Errorf("%w: instance %s not found", domain.ErrSnapshotUnavailable, addrs.InstanceID)
	}
	if info.Owner != addrs.ProgramID.String() {
		return nil, fmt.Errorf("%w: instance owned by %s, want %s",
			domain.ErrSnapshotUnavailable, info.Owner, addrs.ProgramID)
	}

	data, err := info.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSnapshotUnavailable, err)
	}
	lido, err := DecodeLidoState(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSnapshotUnavailable, err)
	}
	if !lido.StSolMint.Equals(addrs.StSolMint) {
		return nil, fmt.Errorf("%w: instance mint %s, want %s",
			domain.ErrSnapshotUnavailable, lido.StSolMint, addrs.StSolMint)
	}
	return lido, nil
}

// ActiveValidators returns the validators accepting stake, with their list index.
func (s *Snapshot) ActiveValidators() []IndexedValidator {
	var out []IndexedValidator
	for i, v := range s.Validators {
		if v.Active {
			out = append(out, IndexedValidator{Index: uint32(i), Validator: v})
		}
	}
	return out
}

// IndexedValidator pairs a validator with its position in the list.
type IndexedValidator struct {
	Index uint32
	Validator
}
