package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	sgo "github.com/gagliardetto/solana-go"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"solido-stake/internal/address"
	"solido-stake/internal/amount"
	"solido-stake/internal/composer"
	"solido-stake/internal/domain"
	"solido-stake/internal/lidoapi"
	"solido-stake/internal/positions"
	"solido-stake/internal/solana"
	"solido-stake/internal/solido"
	"solido-stake/internal/storage"
	pgstore "solido-stake/internal/storage/postgres"
	"solido-stake/internal/wallet"
)

// session holds the clients shared by one command invocation.
type session struct {
	cli   *cli.Context
	rpc   *solana.HTTPClient
	addrs solido.ProgramAddresses
	out   io.Writer
}

func newSession(c *cli.Context) (*session, error) {
	addrs, err := solido.ParseProgramAddresses(c.String("program-id"), c.String("instance-id"), c.String("stsol-mint"))
	if err != nil {
		return nil, err
	}
	rpc := solana.NewHTTPClient(c.String("rpc"),
		solana.WithTimeout(c.Duration("rpc-timeout")),
		solana.WithMaxRetries(c.Int("max-retries")),
	)
	return &session{cli: c, rpc: rpc, addrs: addrs, out: c.App.Writer}, nil
}

func (s *session) signer() (*wallet.KeypairSigner, error) {
	return wallet.LoadKeypairSigner(s.cli.String("keypair"))
}

// owner resolves --owner, falling back to the keypair's address.
func (s *session) owner() (sgo.PublicKey, error) {
	if v := s.cli.String("owner"); v != "" {
		return address.Parse(v)
	}
	signer, err := s.signer()
	if err != nil {
		return sgo.PublicKey{}, err
	}
	return signer.PublicKey(), nil
}

// journal opens the PostgreSQL journal when configured. It returns nil
// without a DSN.
func (s *session) journal(ctx context.Context) (storage.OperationJournal, func(), error) {
	dsn := s.cli.String("postgres-dsn")
	if dsn == "" {
		return nil, func() {}, nil
	}
	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	return pgstore.NewOperationJournal(pool), pool.Close, nil
}

// submit composes op for the keypair owner, signs it once and broadcasts it.
func (s *session) submit(op composer.Operation) error {
	ctx := s.cli.Context

	signer, err := s.signer()
	if err != nil {
		return err
	}

	comp := composer.New(composer.Options{Addresses: s.addrs, Logger: logger})
	composed, err := comp.Compose(ctx, s.rpc, signer.PublicKey(), op)
	if err != nil {
		return err
	}

	journal, closeJournal, err := s.journal(ctx)
	if err != nil {
		return err
	}
	defer closeJournal()

	var ws solana.WSClient
	if endpoint := s.cli.String("ws"); endpoint != "" {
		wsConfig := solana.DefaultWSConfig()
		wsConfig.Logger = logger
		client, err := solana.NewWSClient(ctx, endpoint, &wsConfig)
		if err != nil {
			logger.Printf("WebSocket unavailable, polling for confirmation: %v", err)
		} else {
			defer client.Close()
			ws = client
		}
	}

	submitter := wallet.NewSubmitter(s.rpc, ws, journal, wallet.Config{
		ConfirmTimeout: s.cli.Duration("confirm-timeout"),
		PollInterval:   wallet.DefaultConfig().PollInterval,
		Logger:         logger,
	})

	record, err := submitter.Submit(ctx, signer, composed)
	if record != nil {
		printRecord(s.out, record)
	}
	return err
}

func printRecord(w io.Writer, r *domain.OperationRecord) {
	fmt.Fprintf(w, "operation:  %s\n", r.ID)
	fmt.Fprintf(w, "kind:       %s\n", r.Kind)
	if r.Signature != "" {
		fmt.Fprintf(w, "signature:  %s\n", r.Signature)
	}
	if r.StakeAccount != nil {
		fmt.Fprintf(w, "stake acct: %s\n", *r.StakeAccount)
	}
	fmt.Fprintf(w, "status:     %s\n", r.Status)
	if r.Error != nil {
		fmt.Fprintf(w, "error:      %s\n", *r.Error)
	}
}

func stakeAction(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	lamports, err := amount.ParseSOL(c.String("amount"))
	if err != nil {
		return err
	}
	if snap, err := solido.FetchSnapshot(c.Context, s.rpc, s.addrs); err == nil {
		fmt.Fprintf(s.out, "depositing %s SOL, you will receive ~%s stSOL\n", lamports, solido.QuoteStSol(snap, lamports))
	}
	return s.submit(composer.Deposit{Amount: lamports})
}

func unstakeAction(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	st, err := amount.ParseStSOL(c.String("amount"))
	if err != nil {
		return err
	}
	return s.submit(composer.UnstakeRedeem{Amount: st})
}

func withdrawAction(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	account, err := address.Parse(c.String("account"))
	if err != nil {
		return err
	}
	owner, err := s.owner()
	if err != nil {
		return err
	}

	list, err := positions.NewAggregator(positions.Options{Logger: logger}).ListPositions(c.Context, s.rpc, owner)
	if err != nil {
		return err
	}
	position, ok := lo.Find(list, func(p positions.StakeClaimAccount) bool {
		return p.Address.Equals(account)
	})
	if !ok {
		return fmt.Errorf("%s is not a stake claim account of %s", account, owner)
	}
	if !position.Withdrawable() {
		return fmt.Errorf("stake account %s is %s; withdraw once it is inactive", account, position.Activation)
	}
	return s.submit(composer.WithdrawPosition(position))
}

func positionsAction(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	owner, err := s.owner()
	if err != nil {
		return err
	}

	list, err := positions.NewAggregator(positions.Options{Logger: logger}).ListPositions(c.Context, s.rpc, owner)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(s.out, "no stake claim accounts")
		return nil
	}

	tw := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ACCOUNT\tBALANCE (SOL)\tSTATUS\tVALIDATOR")
	for _, p := range list {
		status := string(p.Activation)
		if p.Withdrawable() {
			status += " (withdrawable)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Address, p.Balance, status, p.Voter)
	}
	return tw.Flush()
}

func quoteAction(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	lamports, err := amount.ParseSOL(c.String("amount"))
	if err != nil {
		return err
	}
	snap, err := solido.FetchSnapshot(c.Context, s.rpc, s.addrs)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s SOL -> ~%s stSOL (rate %s SOL/stSOL)\n",
		lamports, solido.QuoteStSol(snap, lamports), solido.ExchangeRate(snap).StringFixed(9))
	return nil
}

func statsAction(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	snap, err := solido.FetchSnapshot(c.Context, s.rpc, s.addrs)
	if err != nil {
		return err
	}
	stats := solido.ComputeStats(snap)

	tw := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "exchange rate\t%s SOL/stSOL (epoch %d)\n", stats.ExchangeRate.StringFixed(9), stats.RateEpoch)
	fmt.Fprintf(tw, "stSOL supply\t%s\n", stats.StSolSupply)
	fmt.Fprintf(tw, "total value locked\t%s SOL\n", stats.TotalValueLocked)
	fmt.Fprintf(tw, "reserve\t%s SOL\n", stats.ReserveBalance)
	fmt.Fprintf(tw, "validators\t%d (%d active)\n", stats.Validators, stats.ActiveValidators)

	if url := c.String("stats-url"); url != "" {
		ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
		defer cancel()
		market, err := lidoapi.NewClient(url).Stats(ctx)
		if err != nil {
			logger.Printf("market stats unavailable: %v", err)
		} else {
			fmt.Fprintf(tw, "apr\t%s%%\n", market.APR.StringFixed(2))
			fmt.Fprintf(tw, "stakers\t%d\n", market.Stakers)
			fmt.Fprintf(tw, "SOL price\t$%s\n", market.SolPriceUSD.StringFixed(2))
		}
	}
	return tw.Flush()
}

func historyAction(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	owner, err := s.owner()
	if err != nil {
		return err
	}
	journal, closeJournal, err := s.journal(c.Context)
	if err != nil {
		return err
	}
	defer closeJournal()
	if journal == nil {
		return errors.New("history needs --postgres-dsn")
	}

	records, err := journal.GetByOwner(c.Context, owner.String(), c.Int("limit"))
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tKIND\tAMOUNT\tSTATUS\tSIGNATURE")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			time.UnixMilli(r.CreatedAt).UTC().Format(time.RFC3339), r.Kind, formatAmount(r), r.Status, r.Signature)
	}
	return tw.Flush()
}

func formatAmount(r *domain.OperationRecord) string {
	if r.Kind == domain.OperationUnstakeRedeem {
		return amount.StLamports(r.Amount).String() + " stSOL"
	}
	return amount.Lamports(r.Amount).String() + " SOL"
}
