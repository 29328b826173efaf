package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/google/uuid"

	"github.com/dogebridge/dogebridge/internal/codec"
	"github.com/dogebridge/dogebridge/internal/config"
)

// Step runs exactly one state transition and reports how long the caller
// should wait before calling Step again. A halted status (FetchPaused,
// ProcessFailed, ConfirmFailed) returns a zero duration and does nothing:
// the caller is expected to wait for an AdminRestart.
func (s *Scheduler) Step(ctx context.Context) time.Duration {
	s.mu.Lock()
	status := s.status
	s.mu.Unlock()

	switch status {
	case StatusIdle:
		s.mu.Lock()
		s.status = StatusFetching
		s.mu.Unlock()
		return 0

	case StatusFetching:
		return s.stepFetching(ctx)

	case StatusProcessing:
		return s.stepProcessing()

	case StatusConfirming:
		return s.stepConfirming()

	default:
		// FetchPaused / ProcessFailed / ConfirmFailed: nothing runs until
		// an operator calls AdminRestart.
		return 0
	}
}

// stepFetching fetches the next block by height and appends it to the
// index. It distinguishes three outcomes: the node not yet having the
// block, or a transient transport failure of the block-hash lookup
// (ShouldWait, retried after FetchDelay), a reorg surfaced by
// AppendBlock (volatile state reset, retried immediately), and any other
// failure (halts into FetchPaused for operator attention).
func (s *Scheduler) stepFetching(ctx context.Context) time.Duration {
	snap := s.idx.Snapshot()
	nextHeight := snap.TipHeight
	if snap.TipHash != codec.ZeroHash {
		nextHeight++
	}

	idemKey := uuid.NewString()
	hashStr, err := s.primary.GetBlockHash(ctx, idemKey, uint32(nextHeight))
	if err != nil {
		if errors.Is(err, config.ErrRPC) || config.IsTransient(err) {
			// ErrRPC is most likely "block height out of range" (nothing new
			// yet); a transient transport failure is retried the same way.
			slog.Debug("ingestion waiting for next block", "height", nextHeight)
			return config.FetchDelay
		}
		s.haltFetching(fmt.Sprintf("fetch block hash at height %d: %s", nextHeight, err))
		return 0
	}

	for i, attester := range s.attesters {
		attestHash, err := attester.GetBlockHash(ctx, idemKey, uint32(nextHeight))
		if err != nil {
			s.haltFetching(fmt.Sprintf("attester %d: fetch block hash at height %d: %s", i, nextHeight, err))
			return 0
		}
		if attestHash != hashStr {
			s.haltFetching(fmt.Sprintf("attester %d disagrees with primary at height %d: %s != %s", i, nextHeight, attestHash, hashStr))
			return 0
		}
	}

	parsed, err := chainhash.NewHashFromStr(hashStr)
	if err != nil {
		s.haltFetching(fmt.Sprintf("decode block hash at height %d: %s", nextHeight, err))
		return 0
	}
	hash := *parsed

	block, err := s.primary.GetBlock(ctx, idemKey, hashStr)
	if err != nil {
		s.haltFetching(fmt.Sprintf("fetch block at height %d: %s", nextHeight, err))
		return 0
	}

	if err := s.idx.AppendBlock(nextHeight, hash, block); err != nil {
		if errors.Is(err, config.ErrReorg) {
			slog.Warn("reorg detected, resetting volatile state", "height", nextHeight)
			if resetErr := s.idx.ClearForRestartConfirmUtxos(); resetErr != nil {
				s.haltFetching(fmt.Sprintf("reset after reorg at height %d: %s", nextHeight, resetErr))
				return 0
			}
			return 0
		}
		s.haltFetching(fmt.Sprintf("append block at height %d: %s", nextHeight, err))
		return 0
	}

	s.mu.Lock()
	s.status = StatusProcessing
	s.mu.Unlock()
	return 0
}

func (s *Scheduler) haltFetching(msg string) {
	slog.Error("ingestion fetch failed", "error", msg)
	s.mu.Lock()
	s.pushError(msg)
	s.status = StatusFetchPaused
	s.mu.Unlock()
}

func (s *Scheduler) stepProcessing() time.Duration {
	hasMore, err := s.idx.ProcessBlock()
	if err != nil {
		slog.Error("process_block failed", "error", err)
		s.mu.Lock()
		s.pushError(fmt.Sprintf("process_block: %s", err))
		s.status = StatusProcessFailed
		s.mu.Unlock()
		return 0
	}

	s.mu.Lock()
	if hasMore {
		s.status = StatusConfirming
	} else {
		s.status = StatusFetching
	}
	s.mu.Unlock()
	return 0
}

func (s *Scheduler) stepConfirming() time.Duration {
	hasMore, err := s.idx.ConfirmUtxos()
	if err != nil {
		slog.Error("confirm_utxos failed", "error", err)
		s.mu.Lock()
		s.pushError(fmt.Sprintf("confirm_utxos: %s", err))
		s.status = StatusConfirmFailed
		s.mu.Unlock()
		return 0
	}

	s.mu.Lock()
	if hasMore {
		s.status = StatusProcessing
	} else {
		s.status = StatusFetching
	}
	s.mu.Unlock()
	return 0
}

// Run drives Step in a loop until ctx is canceled, sleeping for the delay
// Step reports between calls. A halted status parks Run in an idle poll
// so an AdminRestart call (from another goroutine) is picked up promptly.
func (s *Scheduler) Run(ctx context.Context) {
	const haltedPoll = 2 * time.Second
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		delay := s.Step(ctx)
		if delay == 0 && s.halted() {
			delay = haltedPoll
		}
		timer.Reset(delay)
	}
}

func (s *Scheduler) halted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status < StatusIdle
}
