package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dogebridge/dogebridge/internal/codec"
	"github.com/dogebridge/dogebridge/internal/config"
	"github.com/dogebridge/dogebridge/internal/utxoindex"
)

// fakeClient is a scriptable ChainClient double.
type fakeClient struct {
	blockHash func(height uint32) (string, error)
	block     func(hash string) (*codec.Block, error)
}

func (f *fakeClient) GetBestBlockHash(ctx context.Context, idempotencyKey string) (string, error) {
	return "", errors.New("unused")
}

func (f *fakeClient) GetBlockHash(ctx context.Context, idempotencyKey string, height uint32) (string, error) {
	return f.blockHash(height)
}

func (f *fakeClient) GetBlock(ctx context.Context, idempotencyKey, hash string) (*codec.Block, error) {
	return f.block(hash)
}

// fakeIndex is a scriptable ChainIndex double.
type fakeIndex struct {
	snap              utxoindex.Snapshot
	appendErr         error
	appendCalls       int
	processHasMore    bool
	processErr        error
	confirmHasMore    bool
	confirmErr        error
	restartProcessErr error
	restartConfirmErr error
	restartConfirmed  int
}

func (f *fakeIndex) AppendBlock(height int64, hash codec.Hash, block *codec.Block) error {
	f.appendCalls++
	return f.appendErr
}
func (f *fakeIndex) ProcessBlock() (bool, error)               { return f.processHasMore, f.processErr }
func (f *fakeIndex) ConfirmUtxos() (bool, error)                { return f.confirmHasMore, f.confirmErr }
func (f *fakeIndex) ClearForRestartProcessBlock() error         { return f.restartProcessErr }
func (f *fakeIndex) ClearForRestartConfirmUtxos() error {
	f.restartConfirmed++
	return f.restartConfirmErr
}
func (f *fakeIndex) Snapshot() utxoindex.Snapshot { return f.snap }

// testHash is a syntactically valid 32-byte hex hash (exact bytes don't matter).
var testHash = strings.Repeat("ab", 32)

func TestStep_IdleMovesToFetching(t *testing.T) {
	s := New(&fakeIndex{}, &fakeClient{})
	if got := s.Step(context.Background()); got != 0 {
		t.Fatalf("Step() delay = %v, want 0", got)
	}
	if s.Status() != StatusFetching {
		t.Fatalf("Status() = %v, want Fetching", s.Status())
	}
}

func TestStep_FetchingSuccessMovesToProcessing(t *testing.T) {
	idx := &fakeIndex{}
	client := &fakeClient{
		blockHash: func(height uint32) (string, error) { return testHash, nil },
		block:     func(hash string) (*codec.Block, error) { return &codec.Block{}, nil },
	}
	s := New(idx, client)
	s.Step(context.Background()) // idle -> fetching
	s.Step(context.Background()) // fetching -> processing

	if s.Status() != StatusProcessing {
		t.Fatalf("Status() = %v, want Processing", s.Status())
	}
	if idx.appendCalls != 1 {
		t.Fatalf("AppendBlock calls = %d, want 1", idx.appendCalls)
	}
}

func TestStep_FetchingShouldWaitReschedulesFetching(t *testing.T) {
	client := &fakeClient{
		blockHash: func(height uint32) (string, error) { return "", config.ErrRPC },
	}
	s := New(&fakeIndex{}, client)
	s.Step(context.Background()) // idle -> fetching

	delay := s.Step(context.Background())
	if delay != config.FetchDelay {
		t.Fatalf("delay = %v, want %v", delay, config.FetchDelay)
	}
	if s.Status() != StatusFetching {
		t.Fatalf("Status() = %v, want Fetching", s.Status())
	}
}

func TestStep_FetchingTransportErrorHalts(t *testing.T) {
	client := &fakeClient{
		blockHash: func(height uint32) (string, error) { return "", config.ErrTransport },
	}
	s := New(&fakeIndex{}, client)
	s.Step(context.Background()) // idle -> fetching
	s.Step(context.Background()) // fetching -> fetch_paused

	if s.Status() != StatusFetchPaused {
		t.Fatalf("Status() = %v, want FetchPaused", s.Status())
	}
	if len(s.LastErrors()) != 1 {
		t.Fatalf("LastErrors() len = %d, want 1", len(s.LastErrors()))
	}
}

func TestStep_FetchingReorgResetsVolatileAndRetries(t *testing.T) {
	idx := &fakeIndex{appendErr: config.ErrReorg}
	client := &fakeClient{
		blockHash: func(height uint32) (string, error) { return testHash, nil },
		block:     func(hash string) (*codec.Block, error) { return &codec.Block{}, nil },
	}
	s := New(idx, client)
	s.Step(context.Background()) // idle -> fetching
	s.Step(context.Background()) // fetching -> reorg reset -> fetching

	if s.Status() != StatusFetching {
		t.Fatalf("Status() = %v, want Fetching after reorg reset", s.Status())
	}
	if idx.restartConfirmed != 1 {
		t.Fatalf("ClearForRestartConfirmUtxos calls = %d, want 1", idx.restartConfirmed)
	}
}

func TestStep_AttesterMismatchHalts(t *testing.T) {
	client := &fakeClient{
		blockHash: func(height uint32) (string, error) { return testHash, nil },
	}
	attester := &fakeClient{
		blockHash: func(height uint32) (string, error) { return "0000", nil },
	}
	s := New(&fakeIndex{}, client, attester)
	s.Step(context.Background())
	s.Step(context.Background())

	if s.Status() != StatusFetchPaused {
		t.Fatalf("Status() = %v, want FetchPaused on attester mismatch", s.Status())
	}
}

func TestStep_ProcessingHasMoreMovesToConfirming(t *testing.T) {
	idx := &fakeIndex{processHasMore: true}
	s := New(idx, &fakeClient{})
	s.forceStatus(StatusProcessing)
	s.Step(context.Background())

	if s.Status() != StatusConfirming {
		t.Fatalf("Status() = %v, want Confirming", s.Status())
	}
}

func TestStep_ProcessingNoneReturnsToFetching(t *testing.T) {
	idx := &fakeIndex{processHasMore: false}
	s := New(idx, &fakeClient{})
	s.forceStatus(StatusProcessing)
	s.Step(context.Background())

	if s.Status() != StatusFetching {
		t.Fatalf("Status() = %v, want Fetching", s.Status())
	}
}

func TestStep_ProcessingErrorHalts(t *testing.T) {
	idx := &fakeIndex{processErr: errors.New("boom")}
	s := New(idx, &fakeClient{})
	s.forceStatus(StatusProcessing)
	s.Step(context.Background())

	if s.Status() != StatusProcessFailed {
		t.Fatalf("Status() = %v, want ProcessFailed", s.Status())
	}
}

func TestStep_ConfirmingHasMoreMovesToProcessing(t *testing.T) {
	idx := &fakeIndex{confirmHasMore: true}
	s := New(idx, &fakeClient{})
	s.forceStatus(StatusConfirming)
	s.Step(context.Background())

	if s.Status() != StatusProcessing {
		t.Fatalf("Status() = %v, want Processing", s.Status())
	}
}

func TestStep_ConfirmingErrorHalts(t *testing.T) {
	idx := &fakeIndex{confirmErr: errors.New("boom")}
	s := New(idx, &fakeClient{})
	s.forceStatus(StatusConfirming)
	s.Step(context.Background())

	if s.Status() != StatusConfirmFailed {
		t.Fatalf("Status() = %v, want ConfirmFailed", s.Status())
	}
}

func TestAdminRestart_FromProcessFailedClearsBlocksOnly(t *testing.T) {
	idx := &fakeIndex{}
	s := New(idx, &fakeClient{})
	s.forceStatus(StatusProcessFailed)

	if err := s.AdminRestart(StatusProcessFailed); err != nil {
		t.Fatalf("AdminRestart() error = %v", err)
	}
	if s.Status() != StatusFetching {
		t.Fatalf("Status() = %v, want Fetching", s.Status())
	}
	if idx.restartConfirmed != 0 {
		t.Fatalf("ClearForRestartConfirmUtxos should not run for a process_failed restart")
	}
}

func TestAdminRestart_FromConfirmFailedClearsUtxos(t *testing.T) {
	idx := &fakeIndex{}
	s := New(idx, &fakeClient{})
	s.forceStatus(StatusConfirmFailed)

	if err := s.AdminRestart(StatusConfirmFailed); err != nil {
		t.Fatalf("AdminRestart() error = %v", err)
	}
	if s.Status() != StatusFetching {
		t.Fatalf("Status() = %v, want Fetching", s.Status())
	}
	if idx.restartConfirmed != 1 {
		t.Fatalf("ClearForRestartConfirmUtxos calls = %d, want 1", idx.restartConfirmed)
	}
}

func TestAdminRestart_RejectsUnknownTarget(t *testing.T) {
	s := New(&fakeIndex{}, &fakeClient{})
	if err := s.AdminRestart(StatusConfirming); !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLastErrors_RingIsBounded(t *testing.T) {
	s := New(&fakeIndex{}, &fakeClient{})
	for i := 0; i < config.LastErrorsRingLen+3; i++ {
		s.mu.Lock()
		s.pushError("err")
		s.mu.Unlock()
	}
	if got := len(s.LastErrors()); got != config.LastErrorsRingLen {
		t.Fatalf("LastErrors() len = %d, want %d", got, config.LastErrorsRingLen)
	}
}

// forceStatus sets the scheduler's status directly for tests exercising a
// single transition in isolation.
func (s *Scheduler) forceStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}
