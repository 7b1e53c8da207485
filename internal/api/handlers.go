package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	sgo "github.com/gagliardetto/solana-go"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"solido-stake/internal/address"
	"solido-stake/internal/amount"
	"solido-stake/internal/composer"
	"solido-stake/internal/domain"
	"solido-stake/internal/lidoapi"
	"solido-stake/internal/positions"
	"solido-stake/internal/solido"
	"solido-stake/internal/storage"
	"solido-stake/internal/wallet"
)

// defaultRateWindow is the history returned by /v1/rates without a range.
const defaultRateWindow = 7 * 24 * time.Hour

// marketTimeout bounds the off-chain statistics read.
const marketTimeout = 5 * time.Second

// StatsResponse is the JSON response for /v1/stats.
type StatsResponse struct {
	ExchangeRate     decimal.Decimal `json:"exchange_rate"`
	RateEpoch        uint64          `json:"rate_epoch"`
	StSolSupply      decimal.Decimal `json:"stsol_supply"`
	TotalValueLocked decimal.Decimal `json:"total_value_locked"`
	ReserveBalance   decimal.Decimal `json:"reserve_balance"`
	Validators       int             `json:"validators"`
	ActiveValidators int             `json:"active_validators"`
	Market           *lidoapi.Stats  `json:"market,omitempty"`
}

// QuoteResponse is the JSON response for /v1/quote.
type QuoteResponse struct {
	Lamports     uint64          `json:"lamports"`
	StLamports   uint64          `json:"stlamports"`
	StSol        decimal.Decimal `json:"stsol"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
}

// RatePoint is one entry of the /v1/rates response.
type RatePoint struct {
	TimestampMs int64   `json:"timestamp_ms"`
	Epoch       uint64  `json:"epoch"`
	Rate        float64 `json:"rate"`
	SolBalance  uint64  `json:"sol_balance"`
	StSolSupply uint64  `json:"stsol_supply"`
	TVL         uint64  `json:"tvl"`
}

// Position is one entry of the /v1/positions response.
type Position struct {
	Address         string          `json:"address"`
	Voter           string          `json:"voter"`
	Balance         decimal.Decimal `json:"balance"`
	BalanceLamports uint64          `json:"balance_lamports"`
	Delegated       decimal.Decimal `json:"delegated"`
	Activation      string          `json:"activation"`
	Withdrawable    bool            `json:"withdrawable"`
}

// Operation is one entry of the /v1/operations response.
type Operation struct {
	ID           string  `json:"id"`
	Kind         string  `json:"kind"`
	Owner        string  `json:"owner"`
	Amount       uint64  `json:"amount"`
	StakeAccount *string `json:"stake_account,omitempty"`
	Signature    string  `json:"signature,omitempty"`
	Status       string  `json:"status"`
	Error        *string `json:"error,omitempty"`
	CreatedAt    int64   `json:"created_at"`
}

// TransactionRequest is the body of POST /v1/transactions. Amounts are
// decimal text: SOL for deposits and withdrawals, stSOL for unstakes.
type TransactionRequest struct {
	Kind         string `json:"kind"`
	Owner        string `json:"owner"`
	Amount       string `json:"amount,omitempty"`
	StakeAccount string `json:"stake_account,omitempty"`
	Balance      string `json:"balance,omitempty"`
}

// TransactionResponse carries a transaction awaiting the owner's signature.
type TransactionResponse struct {
	Kind         string   `json:"kind"`
	Transaction  string   `json:"transaction"`
	Blockhash    string   `json:"blockhash"`
	Instructions int      `json:"instructions"`
	Signers      []string `json:"signers"`
	Amount       uint64   `json:"amount"`
	StakeAccount string   `json:"stake_account,omitempty"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap, err := solido.FetchSnapshot(r.Context(), s.rpc, s.addrs)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	stats := solido.ComputeStats(snap)

	resp := StatsResponse{
		ExchangeRate:     stats.ExchangeRate,
		RateEpoch:        stats.RateEpoch,
		StSolSupply:      stats.StSolSupply.StSOL(),
		TotalValueLocked: stats.TotalValueLocked.SOL(),
		ReserveBalance:   stats.ReserveBalance.SOL(),
		Validators:       stats.Validators,
		ActiveValidators: stats.ActiveValidators,
	}
	if s.market != nil {
		ctx, cancel := context.WithTimeout(r.Context(), marketTimeout)
		market, err := s.market.Stats(ctx)
		cancel()
		if err != nil {
			s.logger.Printf("[api] market stats unavailable: %v", err)
		} else {
			resp.Market = market
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	lamports, err := amount.ParseSOL(r.URL.Query().Get("sol"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	snap, err := solido.FetchSnapshot(r.Context(), s.rpc, s.addrs)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	st := solido.QuoteStSol(snap, lamports)
	writeJSON(w, http.StatusOK, QuoteResponse{
		Lamports:     uint64(lamports),
		StLamports:   uint64(st),
		StSol:        st.StSOL(),
		ExchangeRate: solido.ExchangeRate(snap),
	})
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	if s.rates == nil {
		writeError(w, http.StatusNotImplemented, "rate history is not configured")
		return
	}

	end := s.now().UnixMilli()
	start := end - defaultRateWindow.Milliseconds()
	var err error
	if v := r.URL.Query().Get("to"); v != "" {
		if end, err = strconv.ParseInt(v, 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid to: %q", v))
			return
		}
		start = end - defaultRateWindow.Milliseconds()
	}
	if v := r.URL.Query().Get("from"); v != "" {
		if start, err = strconv.ParseInt(v, 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid from: %q", v))
			return
		}
	}

	points, err := s.rates.GetByTimeRange(r.Context(), start, end)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(points, func(p *domain.ExchangeRatePoint, _ int) RatePoint {
		return RatePoint{
			TimestampMs: p.TimestampMs,
			Epoch:       p.Epoch,
			Rate:        p.Rate,
			SolBalance:  p.SolBalance,
			StSolSupply: p.StSolSupply,
			TVL:         p.TVL,
		}
	}))
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	owner, err := address.Parse(r.PathValue("owner"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	list, err := s.positions.ListPositions(r.Context(), s.rpc, owner)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(list, func(p positions.StakeClaimAccount, _ int) Position {
		return Position{
			Address:         p.Address.String(),
			Voter:           p.Voter.String(),
			Balance:         p.Balance.SOL(),
			BalanceLamports: uint64(p.Balance),
			Delegated:       p.Delegated.SOL(),
			Activation:      string(p.Activation),
			Withdrawable:    p.Withdrawable(),
		}
	}))
}

func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusNotImplemented, "operation journal is not configured")
		return
	}
	owner, err := address.Parse(r.PathValue("owner"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit: %q", v))
			return
		}
	}

	records, err := s.journal.GetByOwner(r.Context(), owner.String(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(records, func(rec *domain.OperationRecord, _ int) Operation {
		return Operation{
			ID:           rec.ID,
			Kind:         string(rec.Kind),
			Owner:        rec.Owner,
			Amount:       rec.Amount,
			StakeAccount: rec.StakeAccount,
			Signature:    rec.Signature,
			Status:       string(rec.Status),
			Error:        rec.Error,
			CreatedAt:    rec.CreatedAt,
		}
	}))
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	var owner sgo.PublicKey
	if strings.TrimSpace(req.Owner) != "" {
		var err error
		if owner, err = address.Parse(req.Owner); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	if owner.IsZero() {
		s.fail(w, r, fmt.Errorf("%s: %w", req.Kind, domain.ErrMissingSigner))
		return
	}

	op, err := s.operation(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	composed, err := s.composer.Compose(r.Context(), s.rpc, owner, op)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	prepared, err := s.submitter.Prepare(r.Context(), composed)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	raw, err := wallet.Encode(prepared.Transaction)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := TransactionResponse{
		Kind:         string(composed.Kind),
		Transaction:  raw,
		Blockhash:    prepared.Blockhash,
		Instructions: len(composed.Instructions),
		Signers: lo.Map(composer.MissingSignatures(prepared.Transaction), func(k sgo.PublicKey, _ int) string {
			return k.String()
		}),
		Amount: composed.Amount,
	}
	if !composed.StakeAccount.IsZero() {
		resp.StakeAccount = composed.StakeAccount.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// operation maps a request onto a composer operation. A withdraw without an
// explicit balance drains the live balance of the stake account.
func (s *Server) operation(ctx context.Context, req TransactionRequest) (composer.Operation, error) {
	switch domain.OperationKind(req.Kind) {
	case domain.OperationDeposit:
		lamports, err := amount.ParseSOL(req.Amount)
		if err != nil {
			return nil, err
		}
		return composer.Deposit{Amount: lamports}, nil

	case domain.OperationUnstakeRedeem:
		st, err := amount.ParseStSOL(req.Amount)
		if err != nil {
			return nil, err
		}
		return composer.UnstakeRedeem{Amount: st}, nil

	case domain.OperationWithdraw:
		acct, err := address.Parse(req.StakeAccount)
		if err != nil {
			return nil, err
		}
		if req.Balance != "" {
			balance, err := amount.ParseSOL(req.Balance)
			if err != nil {
				return nil, err
			}
			return composer.Withdraw{StakeAccount: acct, Balance: balance}, nil
		}
		lamports, err := s.rpc.GetBalance(ctx, acct.String())
		if err != nil {
			return nil, fmt.Errorf("stake account balance: %w", err)
		}
		return composer.Withdraw{StakeAccount: acct, Balance: amount.Lamports(lamports)}, nil
	}
	return nil, fmt.Errorf("%w %q", errUnknownKind, req.Kind)
}

var errUnknownKind = errors.New("unknown operation kind")

// fail maps err onto a status code and writes it.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Printf("[api] %s %s: %v", r.Method, r.URL.Path, err)
	}
	writeError(w, code, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidKey),
		errors.Is(err, domain.ErrMissingSigner),
		errors.Is(err, storage.ErrInvalidInput),
		errors.Is(err, errUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSnapshotUnavailable),
		errors.Is(err, domain.ErrEnrichmentFailure):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
