package wallet

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"time"

	sgo "github.com/gagliardetto/solana-go"

	"solido-stake/internal/composer"
	"solido-stake/internal/domain"
	"solido-stake/internal/idhash"
	"solido-stake/internal/observability"
	"solido-stake/internal/solana"
	"solido-stake/internal/storage"
)

// Connection is the subset of the RPC client used for submission.
type Connection interface {
	GetLatestBlockhash(ctx context.Context) (*solana.LatestBlockhash, error)
	SendTransaction(ctx context.Context, rawBase64 string) (string, error)
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*solana.SignatureStatus, error)
}

// Config holds submitter configuration.
type Config struct {
	// ConfirmTimeout bounds how long Submit waits for confirmation.
	// Zero skips waiting and journals the operation as submitted.
	ConfirmTimeout time.Duration

	// PollInterval is used when no WebSocket client is configured.
	PollInterval time.Duration

	Logger *log.Logger
}

// DefaultConfig returns default submitter configuration.
func DefaultConfig() Config {
	return Config{
		ConfirmTimeout: 60 * time.Second,
		PollInterval:   2 * time.Second,
	}
}

// Submitter stamps, signs, broadcasts and journals composed transactions.
type Submitter struct {
	conn    Connection
	ws      solana.WSClient          // optional
	journal storage.OperationJournal // optional
	config  Config
	logger  *log.Logger
	now     func() time.Time
}

// NewSubmitter creates a submitter. ws and journal may be nil.
func NewSubmitter(conn Connection, ws solana.WSClient, journal storage.OperationJournal, config Config) *Submitter {
	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	return &Submitter{
		conn:    conn,
		ws:      ws,
		journal: journal,
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
}

// Prepared is a transaction stamped with a fresh blockhash and carrying
// every auxiliary signature. Only the owner's signature is missing.
type Prepared struct {
	Transaction *sgo.Transaction
	Blockhash   string
	Composed    *composer.ComposedTransaction
}

// Prepare fetches the latest blockhash and builds the transaction. The
// blockhash is read here, at signing time, not during composition.
func (s *Submitter) Prepare(ctx context.Context, composed *composer.ComposedTransaction) (*Prepared, error) {
	latest, err := s.conn.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("get latest blockhash: %w", err)
	}
	hash, err := sgo.HashFromBase58(latest.Blockhash)
	if err != nil {
		return nil, fmt.Errorf("parse blockhash %q: %w", latest.Blockhash, err)
	}

	tx, err := composed.Build(hash)
	if err != nil {
		return nil, err
	}
	return &Prepared{Transaction: tx, Blockhash: latest.Blockhash, Composed: composed}, nil
}

// Encode serializes a transaction to base64 wire format.
func Encode(tx *sgo.Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("marshal transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Submit prepares composed, has signer sign it once, broadcasts it and waits
// for confirmation. The returned record is also written to the journal.
// A broadcast failure returns the failed record together with the error.
func (s *Submitter) Submit(ctx context.Context, signer Signer, composed *composer.ComposedTransaction) (*domain.OperationRecord, error) {
	if signer == nil || !signer.PublicKey().Equals(composed.FeePayer) {
		return nil, fmt.Errorf("submit %s: %w", composed.Kind, domain.ErrMissingSigner)
	}

	prepared, err := s.Prepare(ctx, composed)
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", composed.Kind, err)
	}

	signed, err := signer.SignAll(ctx, []*sgo.Transaction{prepared.Transaction})
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", composed.Kind, err)
	}
	tx := signed[0]

	raw, err := Encode(tx)
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", composed.Kind, err)
	}

	record := s.newRecord(composed, prepared.Blockhash)
	signature := tx.Signatures[0].String()

	// Subscribe before broadcasting so a fast confirmation is not missed.
	var (
		notifications <-chan solana.SignatureNotification
		waitCtx       context.Context
		cancel        context.CancelFunc = func() {}
	)
	if s.config.ConfirmTimeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, s.config.ConfirmTimeout)
		if s.ws != nil {
			notifications, err = s.ws.SubscribeSignature(waitCtx, signature)
			if err != nil {
				s.logger.Printf("[wallet] subscribe %s failed, polling instead: %v", signature, err)
				notifications = nil
			}
		}
	}
	defer cancel()

	sent := s.now()
	sig, err := s.conn.SendTransaction(ctx, raw)
	if err != nil {
		msg := err.Error()
		record.Status = domain.StatusFailed
		record.Error = &msg
		s.finish(ctx, record)
		return record, fmt.Errorf("submit %s: broadcast: %w", composed.Kind, err)
	}
	record.Signature = sig
	record.Status = domain.StatusSubmitted
	s.logger.Printf("[wallet] %s broadcast: %s", composed.Kind, sig)

	if waitCtx != nil {
		s.confirm(waitCtx, record, notifications)
		if record.Status == domain.StatusConfirmed {
			observability.RecordConfirmation(s.now().Sub(sent).Seconds())
		}
	}

	s.finish(ctx, record)
	if record.Status == domain.StatusFailed {
		return record, fmt.Errorf("submit %s: transaction %s failed: %s", composed.Kind, sig, *record.Error)
	}
	return record, nil
}

// confirm waits for the signature through notifications when available,
// polling signature statuses otherwise. A timeout leaves the record submitted.
func (s *Submitter) confirm(ctx context.Context, record *domain.OperationRecord, notifications <-chan solana.SignatureNotification) {
	if notifications != nil {
		select {
		case n, ok := <-notifications:
			if ok {
				applyResult(record, n.Err)
				return
			}
		case <-ctx.Done():
			s.logger.Printf("[wallet] %s not confirmed before timeout", record.Signature)
			return
		}
	}

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		statuses, err := s.conn.GetSignatureStatuses(ctx, []string{record.Signature})
		switch {
		case err != nil:
			s.logger.Printf("[wallet] status of %s: %v", record.Signature, err)
		case len(statuses) > 0 && statuses[0] != nil && statuses[0].Err != nil:
			applyResult(record, statuses[0].Err)
			return
		case len(statuses) > 0 && statuses[0].Confirmed():
			applyResult(record, nil)
			return
		}

		select {
		case <-ctx.Done():
			s.logger.Printf("[wallet] %s not confirmed before timeout", record.Signature)
			return
		case <-ticker.C:
		}
	}
}

func applyResult(record *domain.OperationRecord, txErr interface{}) {
	if txErr != nil {
		msg := fmt.Sprint(txErr)
		record.Status = domain.StatusFailed
		record.Error = &msg
		return
	}
	record.Status = domain.StatusConfirmed
}

func (s *Submitter) newRecord(composed *composer.ComposedTransaction, blockhash string) *domain.OperationRecord {
	owner := composed.FeePayer.String()

	var stakeAccount *string
	if !composed.StakeAccount.IsZero() {
		v := composed.StakeAccount.String()
		stakeAccount = &v
	}

	return &domain.OperationRecord{
		ID:           idhash.ComputeOperationID(composed.Kind, owner, composed.Amount, stakeAccount, blockhash),
		Kind:         composed.Kind,
		Owner:        owner,
		Amount:       composed.Amount,
		StakeAccount: stakeAccount,
		CreatedAt:    s.now().UnixMilli(),
	}
}

// finish records metrics and journals the outcome. Journal failures are
// logged; the transaction has already left the process.
func (s *Submitter) finish(ctx context.Context, record *domain.OperationRecord) {
	observability.RecordSubmitted(string(record.Kind), string(record.Status))
	if s.journal == nil {
		return
	}
	// Journal even if the caller's context is already done.
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.journal.Insert(jctx, record); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		s.logger.Printf("[wallet] journal %s: %v", record.ID, err)
	}
}
