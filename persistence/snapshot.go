// Package persistence implements snapshot/recovery/archival of execution
// state: saveSnapshot/loadSnapshot/listRecoverable/archive over pluggable
// backends, split between a hot store and an archival store the way a
// repository layer typically separates a live store from a cold one.
package persistence

import (
	"encoding/json"
	"time"

	"github.com/lyzr/orchestrator/flow"
	"github.com/lyzr/orchestrator/value"
)

// Snapshot is the wire form of a flow.ExecutionState: a point-in-time,
// JSON-serializable capture taken at a suspension point or on the
// scheduler's periodic snapshot tick.
type Snapshot struct {
	ExecutionID string                     `json:"execution_id"`
	FlowID      string                     `json:"flow_id"`
	TenantID    string                     `json:"tenant_id"`
	Status      flow.Status                `json:"status"`
	Vars        map[string]json.RawMessage `json:"vars"`
	Completed   []string                   `json:"completed"`
	Pending     []string                   `json:"pending"`
	CurrentNodes []string                  `json:"current_nodes"`
	Skipped     []string                   `json:"skipped"`
	History     []HistoryRecord            `json:"history"`
	Error       string                     `json:"error,omitempty"`
	ErrorNode   string                     `json:"error_node,omitempty"`
	StartedAt   time.Time                  `json:"started_at"`
	UpdatedAt   time.Time                  `json:"updated_at"`
	CompletedAt time.Time                  `json:"completed_at,omitempty"`
}

// HistoryRecord is the wire form of flow.NodeExecutionRecord.
type HistoryRecord struct {
	NodeID    string          `json:"node_id"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   time.Time       `json:"ended_at"`
	State     flow.NodeRunState `json:"state"`
	Input     json.RawMessage `json:"input,omitempty"`
	Output    json.RawMessage `json:"output,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// ToSnapshot flattens an ExecutionState into its wire form. The
// execution's Context is flattened via Context.Snapshot — nested lexical
// scoping and UDF registrations are not preserved across a
// save/load round-trip; resume always restores into a single root
// frame holding every variable that was visible at snapshot time. This
// is sufficient for the suspension points a snapshot needs to serve
// (approval, handoff, periodic tick) because those happen between nodes,
// never mid-expression.
func ToSnapshot(es *flow.ExecutionState) (*Snapshot, error) {
	snap := &Snapshot{
		ExecutionID:  es.ExecutionID,
		FlowID:       es.FlowID,
		TenantID:     es.TenantID,
		Status:       es.Status,
		Completed:    keys(es.Completed),
		Pending:      keys(es.Pending),
		CurrentNodes: keys(es.CurrentNodes),
		Skipped:      keys(es.Skipped),
		Error:        es.Error,
		ErrorNode:    es.ErrorNode,
		StartedAt:    es.StartedAt,
		UpdatedAt:    es.UpdatedAt,
		CompletedAt:  es.CompletedAt,
	}

	vars := make(map[string]json.RawMessage)
	if es.Context != nil {
		for k, v := range es.Context.Snapshot() {
			b, err := value.MarshalJSON(v)
			if err != nil {
				return nil, err
			}
			vars[k] = b
		}
	}
	snap.Vars = vars

	for _, rec := range es.History {
		hr := HistoryRecord{
			NodeID:    rec.NodeID,
			StartedAt: rec.StartedAt,
			EndedAt:   rec.EndedAt,
			State:     rec.State,
			Error:     rec.Error,
		}
		if !rec.Input.IsUndefined() {
			b, err := value.MarshalJSON(rec.Input)
			if err != nil {
				return nil, err
			}
			hr.Input = b
		}
		if !rec.Output.IsUndefined() {
			b, err := value.MarshalJSON(rec.Output)
			if err != nil {
				return nil, err
			}
			hr.Output = b
		}
		snap.History = append(snap.History, hr)
	}

	return snap, nil
}

// FromSnapshot rebuilds an ExecutionState from its wire form.
func FromSnapshot(snap *Snapshot) (*flow.ExecutionState, error) {
	ctx := value.NewRootContext()
	for k, raw := range snap.Vars {
		v, err := value.FromJSON(raw)
		if err != nil {
			return nil, err
		}
		ctx.Set(k, v)
	}

	es := &flow.ExecutionState{
		ExecutionID:  snap.ExecutionID,
		FlowID:       snap.FlowID,
		TenantID:     snap.TenantID,
		Status:       snap.Status,
		Context:      ctx,
		Completed:    toSet(snap.Completed),
		Pending:      toSet(snap.Pending),
		CurrentNodes: toSet(snap.CurrentNodes),
		Skipped:      toSet(snap.Skipped),
		Error:        snap.Error,
		ErrorNode:    snap.ErrorNode,
		StartedAt:    snap.StartedAt,
		UpdatedAt:    snap.UpdatedAt,
		CompletedAt:  snap.CompletedAt,
	}

	for _, hr := range snap.History {
		rec := flow.NodeExecutionRecord{
			NodeID:    hr.NodeID,
			StartedAt: hr.StartedAt,
			EndedAt:   hr.EndedAt,
			State:     hr.State,
			Error:     hr.Error,
		}
		if len(hr.Input) > 0 {
			v, err := value.FromJSON(hr.Input)
			if err != nil {
				return nil, err
			}
			rec.Input = v
		}
		if len(hr.Output) > 0 {
			v, err := value.FromJSON(hr.Output)
			if err != nil {
				return nil, err
			}
			rec.Output = v
		}
		es.History = append(es.History, rec)
	}

	return es, nil
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func toSet(keys []string) map[string]bool {
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[k] = true
	}
	return out
}
