// Package scheduler implements the single-owning-task execution engine:
// ready-set dispatch over a dependency graph, suspension/resume for
// approvals and handoffs, cancellation, failure routing, periodic
// snapshotting and crash recovery.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lyzr/orchestrator/common/config"
	"github.com/lyzr/orchestrator/common/logger"
	"github.com/lyzr/orchestrator/common/metrics"
	"github.com/lyzr/orchestrator/executor"
	"github.com/lyzr/orchestrator/flow"
	"github.com/lyzr/orchestrator/gml"
	"github.com/lyzr/orchestrator/persistence"
	"github.com/lyzr/orchestrator/value"
)

// FlowStore resolves a flowId to its compiled flow.Flow, used for
// recovery and for the `flow`/`agent` exec-tool's nested invocation.
type FlowStore interface {
	GetFlow(ctx context.Context, flowID string) (*flow.Flow, error)
}

// Config bundles a Scheduler's collaborators.
type Config struct {
	Dispatch  executor.Dispatch
	Eval      *gml.Evaluator
	Persist   persistence.Manager
	Approvals ApprovalStore
	Flows     FlowStore
	Metrics   *metrics.Registry
	Log       *logger.Logger
	Scheduler config.SchedulerConfig
	Now       func() time.Time
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Scheduler owns every live execution's orchestrating task and the
// process-wide bound on concurrently dispatched node executions.
type Scheduler struct {
	cfg Config
	sem *semaphore.Weighted

	mu         sync.Mutex
	executions map[string]*execution
}

// New constructs a Scheduler. cfg.Dispatch is typically built via
// executor.NewDispatch(executor.Deps{Subflow: <this Scheduler>, ...}) —
// Deps.Subflow must be wired to the very Scheduler being constructed, so
// callers resolve that cycle with a small indirection (an
// executor.SubflowRunner implementation that forwards to a field set
// right after scheduler.New returns); see cmd/fecserver/container for the
// concrete pattern.
func New(cfg Config) *Scheduler {
	bound := cfg.Scheduler.MaxConcurrentNodes
	if bound <= 0 {
		bound = 32
	}
	return &Scheduler{
		cfg:        cfg,
		sem:        semaphore.NewWeighted(int64(bound)),
		executions: make(map[string]*execution),
	}
}

// ExecOptions carries the optional per-call knobs Execute accepts.
type ExecOptions struct {
	Timeout time.Duration // 0 = no wall-clock bound
}

// Execute seeds a fresh ExecutionState for f, registers it, and starts
// its orchestrating task in the background. The returned Handle streams
// events and resolves once the execution reaches a terminal status.
func (s *Scheduler) Execute(ctx context.Context, flowID string, f *flow.Flow, inputs map[string]interface{}, tenantID string, opts *ExecOptions) (*Handle, error) {
	g, err := buildGraph(f)
	if err != nil {
		return nil, &SchedulingError{Message: "building dependency graph", Cause: err}
	}

	root := value.NewRootContext()
	root.Set("$tenantId", value.String(tenantID))
	if err := seedInputs(s.cfg.Eval, f, inputs, root); err != nil {
		return nil, err
	}
	if f.Vars != "" {
		if _, err := evalVars(s.cfg.Eval, f.Vars, root); err != nil {
			return nil, &ValidationError{Field: "vars", Message: err.Error()}
		}
	}

	es := flow.NewExecutionState(flowID, tenantID, root)
	es.Status = flow.StatusRunning

	execCtx, cancel := context.WithCancel(context.Background())
	if opts != nil && opts.Timeout > 0 {
		execCtx, cancel = context.WithTimeout(execCtx, opts.Timeout)
	}

	ex := &execution{
		sched:      s,
		f:          f,
		g:          g,
		es:         es,
		rs:         newRunState(g),
		em:         newEmitter(),
		frames:     make(map[string]*value.Context),
		doneCh:     make(chan nodeOutcome, 16),
		resumeCh:   make(chan resumeRequest, 8),
		cancelFn:   cancel,
		doneCh2:    make(chan struct{}),
		failGuards: failGuardsOf(f, g),
	}

	s.mu.Lock()
	s.executions[es.ExecutionID] = ex
	s.mu.Unlock()

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.ExecutionsLive.Inc()
	}

	go ex.run(execCtx)

	return &Handle{ex: ex}, nil
}

// lookup returns the registered execution for id, or an error if none is
// live (it may have already completed and been swept, or never existed).
func (s *Scheduler) lookup(id string) (*execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ex, ok := s.executions[id]
	if !ok {
		return nil, fmt.Errorf("scheduler: no live execution %s", id)
	}
	return ex, nil
}

// Approvals exposes the configured ApprovalStore, for an HTTP layer that
// wants to list pending approvals without going through a specific
// execution's Handle.
func (s *Scheduler) Approvals() ApprovalStore {
	return s.cfg.Approvals
}

// Lookup returns the caller-facing Handle for a live execution id, the
// entry point an HTTP layer uses to drive an execution it didn't itself
// start (status polling, cancel, resolve, event streaming across
// requests).
func (s *Scheduler) Lookup(id string) (*Handle, error) {
	ex, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return &Handle{ex: ex}, nil
}

// forget removes a terminal execution from the live table; called by the
// execution itself once it settles.
func (s *Scheduler) forget(id string) {
	s.mu.Lock()
	delete(s.executions, id)
	s.mu.Unlock()
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.ExecutionsLive.Dec()
	}
}

// liveExecutionIDs lists every execution id currently registered, used as
// the `list` callback for persistence.RunSnapshotLoop.
func (s *Scheduler) liveExecutionIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.executions))
	for id := range s.executions {
		out = append(out, id)
	}
	return out
}

// SaveSnapshot persists the named execution's current state, the `save`
// callback handed to persistence.RunSnapshotLoop.
func (s *Scheduler) SaveSnapshot(ctx context.Context, executionID string) error {
	ex, err := s.lookup(executionID)
	if err != nil {
		return nil // already settled/unregistered, nothing to snapshot
	}
	return ex.snapshot(ctx)
}

// RunSnapshotLoop blocks, ticking on cfg.Scheduler.SnapshotInterval and
// snapshotting every live execution, until ctx is cancelled. Run it once
// per process alongside the Scheduler.
func (s *Scheduler) RunSnapshotLoop(ctx context.Context) {
	interval := s.cfg.Scheduler.SnapshotInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	persistence.RunSnapshotLoop(ctx, interval, s.liveExecutionIDs, s.SaveSnapshot)
}

// RunSubflow implements executor.SubflowRunner: it runs sf to completion
// against a fresh child of parent, reusing the scheduler's dispatch table
// and concurrency bound. Satisfies the dependency Each/Loop node
// executors declare without those packages importing scheduler.
func (s *Scheduler) RunSubflow(ctx context.Context, sf *flow.Subflow, parent *value.Context) (*value.Context, error) {
	return s.subflowDispatch(ctx, sf, parent)
}

// RunNested implements tools.FlowRunner: it looks flowID up via
// cfg.Flows, runs it to completion under a fresh execution ID, and
// returns its final bound variables as a plain map — the shape the
// `flow`/`agent` tool handlers pass back to the calling node's `with`.
func (s *Scheduler) RunNested(ctx context.Context, flowID string, inputs map[string]interface{}) (map[string]interface{}, error) {
	if s.cfg.Flows == nil {
		return nil, fmt.Errorf("scheduler: no flow store wired for nested invocation of %s", flowID)
	}
	nested, err := s.cfg.Flows.GetFlow(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("scheduler: resolving nested flow %s: %w", flowID, err)
	}
	tenantID := ""
	if v, ok := valueTenantFromCtx(ctx); ok {
		tenantID = v
	}
	h, err := s.Execute(ctx, flowID, nested, inputs, tenantID, nil)
	if err != nil {
		return nil, err
	}
	es, err := h.Wait(ctx)
	if err != nil {
		return nil, err
	}
	if es.Status == flow.StatusFailed {
		return nil, fmt.Errorf("scheduler: nested flow %s failed: %s", flowID, es.Error)
	}
	out := make(map[string]interface{})
	for k, v := range es.Context.Snapshot() {
		out[k] = value.ToAny(v)
	}
	return out, nil
}

type tenantCtxKey struct{}

func valueTenantFromCtx(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(tenantCtxKey{}).(string)
	return v, ok
}

func evalVars(eval *gml.Evaluator, src string, ctx *value.Context) (value.Value, error) {
	block, errs := gml.ParseBlock(src)
	if len(errs) > 0 {
		return value.Undefined(), errs[0]
	}
	return eval.EvalBlock(block, ctx)
}
