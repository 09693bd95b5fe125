// Package solrpc reads market accounts over Solana JSON-RPC.
package solrpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"gigadex/domain/account"
)

var ErrAccountMissing = errors.New("account does not exist")

// Client is the subset of *rpc.Client the fetcher calls.
type Client interface {
	GetAccountInfoWithOpts(ctx context.Context, key solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
	GetMultipleAccountsWithOpts(ctx context.Context, keys []solana.PublicKey, opts *rpc.GetMultipleAccountsOpts) (*rpc.GetMultipleAccountsResult, error)
}

type Fetcher struct {
	client     Client
	timeout    time.Duration
	commitment rpc.CommitmentType
}

func New(endpoint string, timeout time.Duration) *Fetcher {
	return NewWithClient(rpc.New(endpoint), timeout)
}

func NewWithClient(c Client, timeout time.Duration) *Fetcher {
	return &Fetcher{client: c, timeout: timeout, commitment: rpc.CommitmentConfirmed}
}

func (f *Fetcher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.timeout)
}

// Account fetches a single account.
func (f *Fetcher) Account(ctx context.Context, key solana.PublicKey) (account.Update, error) {
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	res, err := f.client.GetAccountInfoWithOpts(ctx, key, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: f.commitment,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return account.Update{}, fmt.Errorf("%w: %s", ErrAccountMissing, key)
	}
	if err != nil {
		return account.Update{}, fmt.Errorf("get account %s: %w", key, err)
	}
	if res.Value == nil || res.Value.Data == nil {
		return account.Update{}, fmt.Errorf("%w: %s", ErrAccountMissing, key)
	}
	return account.Update{Key: key, Slot: res.Context.Slot, Data: res.Value.Data.GetBinary()}, nil
}

// Fetch reads keys in one round trip. Every update carries the slot the
// node answered at. Accounts that do not exist are left out.
func (f *Fetcher) Fetch(ctx context.Context, keys []solana.PublicKey) ([]account.Update, error) {
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	res, err := f.client.GetMultipleAccountsWithOpts(ctx, keys, &rpc.GetMultipleAccountsOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: f.commitment,
	})
	if err != nil {
		return nil, fmt.Errorf("get %d accounts: %w", len(keys), err)
	}
	if len(res.Value) != len(keys) {
		return nil, fmt.Errorf("get %d accounts: node returned %d", len(keys), len(res.Value))
	}

	out := make([]account.Update, 0, len(keys))
	for i, acc := range res.Value {
		if acc == nil || acc.Data == nil {
			continue
		}
		out = append(out, account.Update{Key: keys[i], Slot: res.Context.Slot, Data: acc.Data.GetBinary()})
	}
	return out, nil
}
