// Package ledger defines the ICRC-1/2-shaped token ledger the minter
// mints to and burns from, plus an in-memory reference implementation for
// tests and local development.
package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/dogebridge/dogebridge/internal/config"
)

// Account identifies an ICRC-1 owner/subaccount pair.
type Account struct {
	Owner      string
	Subaccount [32]byte
}

// Ledger is the subset of the ICRC-1/2 surface the minter depends on.
// Mint is modeled as a transfer from the distinguished minter account;
// burn is modeled as a transfer_from into it.
type Ledger interface {
	// BalanceOf implements icrc1_balance_of.
	BalanceOf(ctx context.Context, account Account) (uint64, error)

	// Mint credits amount to account from the minter account, recording
	// memo (CBOR-encoded {txid, vout}) on the resulting block, and
	// returns the ledger block index it landed on.
	Mint(ctx context.Context, account Account, amount uint64, memo []byte) (blockIndex uint64, err error)

	// BurnFrom debits amount from account to the minter account,
	// recording memo (CBOR-encoded {receiver}), and returns the ledger
	// block index it landed on.
	BurnFrom(ctx context.Context, account Account, amount uint64, memo []byte) (blockIndex uint64, err error)
}

// MemoryLedger is an in-memory Ledger, its blocks strictly increasing and
// never reused across mints or burns, as a real ledger canister guarantees.
type MemoryLedger struct {
	mu        sync.Mutex
	balances  map[Account]uint64
	nextBlock uint64
}

// NewMemoryLedger returns an empty ledger with block 0 reserved (minter
// account genesis), the first real transfer landing at block 1.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[Account]uint64), nextBlock: 1}
}

func (l *MemoryLedger) BalanceOf(_ context.Context, account Account) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account], nil
}

func (l *MemoryLedger) Mint(_ context.Context, account Account, amount uint64, _ []byte) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] += amount
	block := l.nextBlock
	l.nextBlock++
	return block, nil
}

func (l *MemoryLedger) BurnFrom(_ context.Context, account Account, amount uint64, _ []byte) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[account] < amount {
		return 0, fmt.Errorf("%w: have %d, want %d", config.ErrInsufficientBalance, l.balances[account], amount)
	}
	l.balances[account] -= amount
	block := l.nextBlock
	l.nextBlock++
	return block, nil
}

var _ Ledger = (*MemoryLedger)(nil)
