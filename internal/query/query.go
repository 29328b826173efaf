// Package query implements the read-only surface exposed over HTTP:
// indexer state (with a privileged branch for operator-only fields) and
// deposit address derivation.
package query

import (
	"github.com/dogebridge/dogebridge/internal/account"
	"github.com/dogebridge/dogebridge/internal/db"
	"github.com/dogebridge/dogebridge/internal/scheduler"
	"github.com/dogebridge/dogebridge/internal/utxoindex"
)

// IndexSnapshotter is the subset of *utxoindex.Index the state query reads.
type IndexSnapshotter interface {
	Snapshot() utxoindex.Snapshot
}

// SchedulerStatuser is the subset of *scheduler.Scheduler the state query
// reads.
type SchedulerStatuser interface {
	Status() scheduler.Status
	LastErrors() []string
}

// AgentLister is the subset of *db.DB the privileged state branch reads.
type AgentLister interface {
	ListAgents() ([]db.RPCAgent, error)
}

// Service answers get_state and get_address queries.
type Service struct {
	idx        IndexSnapshotter
	sched      SchedulerStatuser
	agents     AgentLister
	deriver    *account.Deriver
	kmsKeyName string
}

// New builds a query Service.
func New(idx IndexSnapshotter, sched SchedulerStatuser, agents AgentLister, deriver *account.Deriver, kmsKeyName string) *Service {
	return &Service{idx: idx, sched: sched, agents: agents, deriver: deriver, kmsKeyName: kmsKeyName}
}

// State is the get_state response shape. Agents and KMSKeyName are only
// populated for privileged callers.
type State struct {
	StartHeight     int64  `json:"start_height"`
	StartHash       string `json:"start_hash"`
	ConfirmedHeight int64  `json:"confirmed_height"`
	ConfirmedHash   string `json:"confirmed_hash"`
	ProcessedHeight int64  `json:"processed_height"`
	ProcessedHash   string `json:"processed_hash"`
	TipHeight       int64  `json:"tip_height"`
	TipHash         string `json:"tip_hash"`

	VolatileAddrCount   int `json:"volatile_addr_count"`
	VolatileTxCount     int `json:"volatile_tx_count"`
	UnprocessedQueueLen int `json:"unprocessed_queue_len"`

	SchedulerStatus string   `json:"scheduler_status"`
	LastErrors      []string `json:"last_errors"`

	RPCAgents  []db.RPCAgent `json:"rpc_agents,omitempty"`
	KMSKeyName string        `json:"kms_key_name,omitempty"`
}

// GetState returns the indexer's current state. The RPCAgents and
// KMSKeyName fields are populated only when privileged is true, per the
// state query's privileged/public split.
func (s *Service) GetState(privileged bool) (State, error) {
	snap := s.idx.Snapshot()
	out := State{
		StartHeight:         snap.StartHeight,
		StartHash:           snap.StartHash.String(),
		ConfirmedHeight:     snap.ConfirmedHeight,
		ConfirmedHash:       snap.ConfirmedHash.String(),
		ProcessedHeight:     snap.ProcessedHeight,
		ProcessedHash:       snap.ProcessedHash.String(),
		TipHeight:           snap.TipHeight,
		TipHash:             snap.TipHash.String(),
		VolatileAddrCount:   snap.VolatileAddrCount,
		VolatileTxCount:     snap.VolatileTxCount,
		UnprocessedQueueLen: snap.UnprocessedQueueLen,
		SchedulerStatus:     s.sched.Status().String(),
		LastErrors:          s.sched.LastErrors(),
	}
	if !privileged {
		return out, nil
	}

	agents, err := s.agents.ListAgents()
	if err != nil {
		return State{}, err
	}
	out.RPCAgents = agents
	out.KMSKeyName = s.kmsKeyName
	return out, nil
}

// GetAddress derives the P2PKH deposit address for (owner, subaccount).
func (s *Service) GetAddress(ownerPrincipal []byte, subaccount [32]byte) (string, error) {
	addr, err := s.deriver.Address(ownerPrincipal, subaccount)
	if err != nil {
		return "", err
	}
	return addr.String(), nil
}
