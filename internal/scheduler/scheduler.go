// Package scheduler drives the fetch/process/confirm cycle that keeps a
// utxoindex.Index caught up with a full node: one explicit state machine,
// one goroutine, at most one timer armed at a time.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/dogebridge/dogebridge/internal/codec"
	"github.com/dogebridge/dogebridge/internal/config"
	"github.com/dogebridge/dogebridge/internal/utxoindex"
)

// Status is the scheduler's current state. Negative values are halted
// states an operator must clear with AdminRestart.
type Status int8

const (
	StatusConfirmFailed Status = -3
	StatusProcessFailed Status = -2
	StatusFetchPaused   Status = -1
	StatusIdle          Status = 0
	StatusFetching      Status = 1
	StatusProcessing    Status = 2
	StatusConfirming    Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusConfirmFailed:
		return "confirm_failed"
	case StatusProcessFailed:
		return "process_failed"
	case StatusFetchPaused:
		return "fetch_paused"
	case StatusIdle:
		return "idle"
	case StatusFetching:
		return "fetching"
	case StatusProcessing:
		return "processing"
	case StatusConfirming:
		return "confirming"
	default:
		return fmt.Sprintf("status(%d)", int8(s))
	}
}

// ChainClient is the subset of rpcclient.Client the scheduler drives.
type ChainClient interface {
	GetBestBlockHash(ctx context.Context, idempotencyKey string) (string, error)
	GetBlockHash(ctx context.Context, idempotencyKey string, height uint32) (string, error)
	GetBlock(ctx context.Context, idempotencyKey, hash string) (*codec.Block, error)
}

// ChainIndex is the subset of utxoindex.Index the scheduler drives.
// Narrowed to an interface so Step can be exercised against a fake without
// standing up a real bbolt store.
type ChainIndex interface {
	AppendBlock(height int64, hash codec.Hash, block *codec.Block) error
	ProcessBlock() (bool, error)
	ConfirmUtxos() (bool, error)
	ClearForRestartProcessBlock() error
	ClearForRestartConfirmUtxos() error
	Snapshot() utxoindex.Snapshot
}

// Scheduler runs the single-threaded fetch → process → confirm cycle
// described for the chain indexer.
type Scheduler struct {
	mu sync.Mutex

	idx       ChainIndex
	primary   ChainClient
	attesters []ChainClient

	status Status
	errs   []string // bounded ring, oldest first, len <= config.LastErrorsRingLen
}

// New builds a Scheduler around idx and primary, optionally attesting every
// fetched block hash against additional endpoints.
func New(idx ChainIndex, primary ChainClient, attesters ...ChainClient) *Scheduler {
	return &Scheduler{
		idx:       idx,
		primary:   primary,
		attesters: attesters,
		status:    StatusIdle,
	}
}

// Status reports the current state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// LastErrors returns the bounded ring of the most recent failure strings,
// oldest first.
func (s *Scheduler) LastErrors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.errs))
	copy(out, s.errs)
	return out
}

// pushError appends msg to the bounded error ring, dropping the oldest
// entry once full. Callers must hold s.mu.
func (s *Scheduler) pushError(msg string) {
	s.errs = append(s.errs, msg)
	if len(s.errs) > config.LastErrorsRingLen {
		s.errs = s.errs[len(s.errs)-config.LastErrorsRingLen:]
	}
}

// AdminRestart drives an operator-requested transition out of a halted
// state (or Idle/Fetching itself). target must be one of StatusFetching,
// StatusIdle, StatusProcessFailed or StatusConfirmFailed; anything else is
// rejected as invalid.
func (s *Scheduler) AdminRestart(target Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch target {
	case StatusFetching, StatusIdle:
		s.status = StatusFetching
		return nil
	case StatusProcessFailed:
		// clear-volatile-blocks: drop the unprocessed queue and rewind tip
		// to processed, same effect as a mid-process_block crash recovery.
		if err := s.idx.ClearForRestartProcessBlock(); err != nil {
			return err
		}
		s.status = StatusFetching
		return nil
	case StatusConfirmFailed:
		if err := s.idx.ClearForRestartConfirmUtxos(); err != nil {
			return err
		}
		s.status = StatusFetching
		return nil
	default:
		return fmt.Errorf("%w: restart target must be fetching, idle, process_failed or confirm_failed, got %s", config.ErrInvalidConfig, target)
	}
}
