// Package stub provides an in-memory Solana ledger implementing solana.RPCClient.
package stub

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mr-tron/base58"

	"solido-stake/internal/solana"
)

// ErrNotFound is returned for unknown stake accounts or blockhash.
var ErrNotFound = errors.New("not found")

// Method names used for call counting and failure injection.
const (
	MethodGetAccountInfo       = "getAccountInfo"
	MethodGetBalance           = "getBalance"
	MethodGetLatestBlockhash   = "getLatestBlockhash"
	MethodGetProgramAccounts   = "getProgramAccounts"
	MethodGetStakeActivation   = "getStakeActivation"
	MethodSendTransaction      = "sendTransaction"
	MethodGetSignatureStatuses = "getSignatureStatuses"
)

// RPCClient implements solana.RPCClient over in-memory state.
// It is safe for concurrent use.
type RPCClient struct {
	mu sync.Mutex

	Accounts    map[string]*solana.AccountInfo
	Activations map[string]*solana.StakeActivation
	Statuses    map[string]*solana.SignatureStatus
	Blockhash   string
	Sent        []string

	// Latency delays every call; the delay honours context cancellation.
	Latency time.Duration

	failures map[string]error
	calls    map[string]int
}

var _ solana.RPCClient = (*RPCClient)(nil)

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Accounts:    make(map[string]*solana.AccountInfo),
		Activations: make(map[string]*solana.StakeActivation),
		Statuses:    make(map[string]*solana.SignatureStatus),
		Blockhash:   "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N",
		failures:    make(map[string]error),
		calls:       make(map[string]int),
	}
}

// SetAccount stores an account with raw data.
func (c *RPCClient) SetAccount(pubkey, owner string, lamports uint64, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[pubkey] = &solana.AccountInfo{
		Lamports: lamports,
		Owner:    owner,
		Data:     base64.StdEncoding.EncodeToString(data),
	}
}

// SetBalance stores a data-less system account holding lamports.
func (c *RPCClient) SetBalance(pubkey string, lamports uint64) {
	c.SetAccount(pubkey, "11111111111111111111111111111111", lamports, nil)
}

// SetActivation stores the activation status of a stake account.
func (c *RPCClient) SetActivation(pubkey, state string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Activations[pubkey] = &solana.StakeActivation{State: state}
}

// FailOn makes method fail with err. An empty key fails every call of the
// method, otherwise only calls for that address.
func (c *RPCClient) FailOn(method, key string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[method+"|"+key] = err
}

// Calls returns how many times method was invoked.
func (c *RPCClient) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// TotalCalls returns the number of calls across all methods.
func (c *RPCClient) TotalCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, n := range c.calls {
		total += n
	}
	return total
}

func (c *RPCClient) enter(ctx context.Context, method, key string) error {
	c.mu.Lock()
	c.calls[method]++
	latency := c.Latency
	err := c.failures[method+"|"+key]
	if err == nil {
		err = c.failures[method+"|"]
	}
	c.mu.Unlock()

	if latency > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(latency):
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// GetAccountInfo returns a copy of the stored account, or nil if absent.
func (c *RPCClient) GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error) {
	if err := c.enter(ctx, MethodGetAccountInfo, pubkey); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	acc, ok := c.Accounts[pubkey]
	if !ok {
		return nil, nil
	}
	cp := *acc
	return &cp, nil
}

// GetBalance returns the stored lamports, zero for unknown accounts.
func (c *RPCClient) GetBalance(ctx context.Context, pubkey string) (uint64, error) {
	if err := c.enter(ctx, MethodGetBalance, pubkey); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if acc, ok := c.Accounts[pubkey]; ok {
		return acc.Lamports, nil
	}
	return 0, nil
}

// GetLatestBlockhash returns the configured blockhash.
func (c *RPCClient) GetLatestBlockhash(ctx context.Context) (*solana.LatestBlockhash, error) {
	if err := c.enter(ctx, MethodGetLatestBlockhash, ""); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Blockhash == "" {
		return nil, ErrNotFound
	}
	return &solana.LatestBlockhash{Blockhash: c.Blockhash, LastValidBlockHeight: 1000}, nil
}

// GetProgramAccounts scans stored accounts owned by program, applying filters
// the way a node does. Results are ordered by address.
func (c *RPCClient) GetProgramAccounts(ctx context.Context, program string, filters []solana.AccountFilter) ([]solana.ProgramAccount, error) {
	if err := c.enter(ctx, MethodGetProgramAccounts, program); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var out []solana.ProgramAccount
	for pubkey, acc := range c.Accounts {
		if acc.Owner != program {
			continue
		}
		data, err := acc.Bytes()
		if err != nil {
			return nil, err
		}
		ok, err := matches(data, filters)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, solana.ProgramAccount{Pubkey: pubkey, Account: *acc})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Pubkey < out[j].Pubkey })
	return out, nil
}

func matches(data []byte, filters []solana.AccountFilter) (bool, error) {
	for _, f := range filters {
		switch {
		case f.DataSize != nil:
			if uint64(len(data)) != *f.DataSize {
				return false, nil
			}
		case f.Memcmp != nil:
			want, err := base58.Decode(f.Memcmp.Bytes)
			if err != nil {
				return false, fmt.Errorf("memcmp bytes: %w", err)
			}
			end := f.Memcmp.Offset + uint64(len(want))
			if end > uint64(len(data)) || !bytes.Equal(data[f.Memcmp.Offset:end], want) {
				return false, nil
			}
		}
	}
	return true, nil
}

// GetStakeActivation returns the stored activation status.
func (c *RPCClient) GetStakeActivation(ctx context.Context, pubkey string) (*solana.StakeActivation, error) {
	if err := c.enter(ctx, MethodGetStakeActivation, pubkey); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	act, ok := c.Activations[pubkey]
	if !ok {
		return nil, fmt.Errorf("stake account %s: %w", pubkey, ErrNotFound)
	}
	cp := *act
	return &cp, nil
}

// SendTransaction records the raw transaction and returns its first signature.
func (c *RPCClient) SendTransaction(ctx context.Context, rawBase64 string) (string, error) {
	if err := c.enter(ctx, MethodSendTransaction, ""); err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(rawBase64)
	if err != nil {
		return "", fmt.Errorf("decode transaction: %w", err)
	}
	// Wire format: compact-u16 signature count followed by 64-byte signatures.
	if len(raw) < 65 || raw[0] == 0 {
		return "", fmt.Errorf("transaction carries no signature")
	}
	sig := base58.Encode(raw[1:65])

	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sent = append(c.Sent, rawBase64)
	if _, ok := c.Statuses[sig]; !ok {
		c.Statuses[sig] = &solana.SignatureStatus{ConfirmationStatus: "confirmed"}
	}
	return sig, nil
}

// GetSignatureStatuses returns stored statuses, nil for unknown signatures.
func (c *RPCClient) GetSignatureStatuses(ctx context.Context, signatures []string) ([]*solana.SignatureStatus, error) {
	if err := c.enter(ctx, MethodGetSignatureStatuses, ""); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*solana.SignatureStatus, len(signatures))
	for i, sig := range signatures {
		if st, ok := c.Statuses[sig]; ok {
			cp := *st
			out[i] = &cp
		}
	}
	return out, nil
}
