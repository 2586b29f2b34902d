package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lyzr/orchestrator/executor"
	"github.com/lyzr/orchestrator/flow"
	"github.com/lyzr/orchestrator/gml"
	"github.com/lyzr/orchestrator/graph"
	"github.com/lyzr/orchestrator/value"
)

type emitterCtxKey struct{}
type execIDCtxKey struct{}
type nodeIDCtxKey struct{}

func withEventCtx(ctx context.Context, em *emitter, executionID, nodeID string) context.Context {
	ctx = context.WithValue(ctx, emitterCtxKey{}, em)
	ctx = context.WithValue(ctx, execIDCtxKey{}, executionID)
	ctx = context.WithValue(ctx, nodeIDCtxKey{}, nodeID)
	return ctx
}

func emitterFromCtx(ctx context.Context) (*emitter, string, string, bool) {
	em, ok := ctx.Value(emitterCtxKey{}).(*emitter)
	if !ok {
		return nil, "", "", false
	}
	execID, _ := ctx.Value(execIDCtxKey{}).(string)
	nodeID, _ := ctx.Value(nodeIDCtxKey{}).(string)
	return em, execID, nodeID, true
}

func buildGraph(f *flow.Flow) (*graph.DepGraph, error) {
	return graph.Build(f)
}

// failGuardsOf counts, for every pure fail-only target in g, how many
// nodes in f name it via `fail`.
func failGuardsOf(f *flow.Flow, g *graph.DepGraph) map[string]int {
	out := make(map[string]int, len(g.FailTargets))
	for _, n := range f.Nodes {
		if n.Fail != "" && g.FailTargets[n.Fail] && g.InDegree[n.Fail] == 0 {
			out[n.Fail]++
		}
	}
	return out
}

// settleFailGuard records that one guarding node of target settled
// without routing to it; once every guard has, target is marked skipped
// since it can no longer ever be reached.
func (ex *execution) settleFailGuard(target string) {
	if _, ok := ex.failGuards[target]; !ok {
		return
	}
	ex.failGuards[target]--
	if ex.failGuards[target] > 0 {
		return
	}
	if ex.es.Completed[target] || ex.es.Pending[target] {
		return
	}
	ex.skip(target, "fail target never reached")
}

// resumeRequest is what Handle.Resolve enqueues to unblock a suspended
// approval or handoff node.
type resumeRequest struct {
	nodeID string
	value  value.Value
	reply  chan error
}

// nodeOutcome is what a dispatched node reports back to the owning
// execution's single-threaded run loop.
type nodeOutcome struct {
	nodeID    string
	ectx      *value.Context
	result    executor.NodeResult
	err       error
	startedAt time.Time
	endedAt   time.Time
	input     value.Value
}

// execution is the orchestrating task for one top-level flow run: it
// owns the ExecutionState, the run-state reachability bookkeeping, and
// every in-flight node's dispatch frame across suspend/resume.
type execution struct {
	sched *Scheduler
	f     *flow.Flow
	g     *graph.DepGraph
	es    *flow.ExecutionState
	rs    *runState
	em    *emitter

	mu     sync.Mutex
	frames map[string]*value.Context // nodeID -> dispatch frame, kept alive across suspension

	doneCh   chan nodeOutcome
	resumeCh chan resumeRequest
	cancelFn context.CancelFunc

	inFlight               int // nodes currently dispatched, incremented by dispatchOne
	completedSinceSnapshot int

	// failGuards counts, per pure fail-only target (no ordinary incoming
	// edge), how many guarding nodes have not yet settled. It starts at
	// the number of nodes naming that target via `fail` and is
	// decremented whenever a guarding node settles WITHOUT routing to it
	// (succeeds or is itself skipped); it reaches zero once every
	// possible source of failure has resolved some other way, at which
	// point the target is settled as permanently unreached.
	failGuards map[string]int

	// doneCh2 closes once the execution reaches a terminal state;
	// finalErr is set before close when the terminal state is failed.
	doneOnce sync.Once
	doneCh2  chan struct{}
	finalErr error
}

// markTerminal finalizes the execution: persists/archives the final
// state, closes the event stream, and wakes every Handle.Wait caller.
func (ex *execution) markTerminal(ctx context.Context, status flow.Status, execErr error) {
	ex.es.Status = status
	ex.es.UpdatedAt = ex.sched.cfg.now()
	ex.es.CompletedAt = ex.es.UpdatedAt
	if execErr != nil {
		ex.es.Error = execErr.Error()
		var ne *NodeError
		if errors.As(execErr, &ne) {
			ex.es.ErrorNode = ne.NodeID
		}
	}

	var ev ExecutionEvent
	switch status {
	case flow.StatusCompleted:
		ev = ExecutionEvent{Type: EventComplete, ExecutionID: ex.es.ExecutionID, Result: rootSnapshotValue(ex.es.Context), At: ex.sched.cfg.now()}
	case flow.StatusFailed:
		ev = ExecutionEvent{Type: EventFailed, ExecutionID: ex.es.ExecutionID, Error: ex.es.Error, ErrorKind: classify(execErr), At: ex.sched.cfg.now()}
	case flow.StatusCancelled:
		ev = ExecutionEvent{Type: EventCancelled, ExecutionID: ex.es.ExecutionID, At: ex.sched.cfg.now()}
	}
	ex.em.publish(ev)

	if ex.sched.cfg.Persist != nil {
		if status == flow.StatusCompleted || status == flow.StatusFailed || status == flow.StatusCancelled {
			_ = ex.sched.cfg.Persist.Archive(ctx, ex.es)
		}
	}
	ex.em.close()
	ex.sched.forget(ex.es.ExecutionID)
	ex.finalErr = execErr
	ex.doneOnce.Do(func() { close(ex.doneCh2) })
}

func rootSnapshotValue(ctx *value.Context) value.Value {
	if ctx == nil {
		return value.Undefined()
	}
	obj := value.NewObject()
	for k, v := range ctx.Snapshot() {
		obj.Set(k, v)
	}
	return value.Object_(obj)
}

// snapshot persists the execution's current state via the Persistence
// Manager, resetting the count-based trigger.
func (ex *execution) snapshot(ctx context.Context) error {
	if ex.sched.cfg.Persist == nil {
		return nil
	}
	if err := ex.sched.cfg.Persist.SaveSnapshot(ctx, ex.es); err != nil {
		if ex.sched.cfg.Log != nil {
			ex.sched.cfg.Log.Error("scheduler: snapshot failed", "execution_id", ex.es.ExecutionID, "err", err)
		}
		return &StateError{Op: "save_snapshot", Cause: err}
	}
	return nil
}

// maybeSnapshot saves state once every SnapshotEveryNNodes completed
// nodes, independent of the scheduler-wide interval ticker.
func (ex *execution) maybeSnapshot(ctx context.Context) {
	n := ex.sched.cfg.Scheduler.SnapshotEveryNNodes
	if n <= 0 {
		n = 5
	}
	ex.completedSinceSnapshot++
	if ex.completedSinceSnapshot >= n {
		ex.completedSinceSnapshot = 0
		go func() { _ = ex.snapshot(context.Background()) }()
	}
}

// run is the orchestrating task: it alternates between settling the
// decidable frontier (skip propagation) and dispatching the ready set,
// until the execution reaches a terminal state.
func (ex *execution) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			ex.markTerminal(context.Background(), flow.StatusFailed, fmt.Errorf("scheduler: panic: %v", r))
		}
	}()

	ex.em.publish(ExecutionEvent{Type: EventStart, ExecutionID: ex.es.ExecutionID, FlowID: ex.es.FlowID, At: ex.sched.cfg.now()})

	failed := false
	var failErr error

	for {
		if failed && ex.inFlight == 0 {
			ex.markTerminal(context.Background(), flow.StatusFailed, failErr)
			return
		}

		select {
		case <-ctx.Done():
			ex.drainAndCancel(ctx)
			return
		default:
		}

		if !failed {
			ex.settleDecidable(ctx)
		}

		ready := ex.readyNodes(failed)
		for _, id := range ready {
			ex.es.MarkPending(id)
			ex.dispatchOne(ctx, ex.f.NodesByID[id])
		}

		if len(ready) == 0 && ex.inFlight == 0 && !failed {
			// nothing ready, nothing in flight: either finished, or
			// stalled waiting on a suspended node (handled via resumeCh
			// below), or genuinely done.
			if allSettled(ex.es, ex.g) {
				ex.markTerminal(context.Background(), flow.StatusCompleted, nil)
				return
			}
		}

		select {
		case <-ctx.Done():
			ex.drainAndCancel(ctx)
			return
		case out := <-ex.doneCh:
			ex.inFlight--
			ex.applyOutcome(ctx, out, &failed, &failErr)
		case req := <-ex.resumeCh:
			ex.applyResume(ctx, req)
		}
	}
}

// drainAndCancel stops dispatching new nodes and waits (bounded by
// CancelDrainTimeout) for in-flight nodes to settle before marking the
// execution cancelled.
func (ex *execution) drainAndCancel(ctx context.Context) {
	timeout := ex.sched.cfg.Scheduler.CancelDrainTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	deadline := time.After(timeout)
	for ex.inFlight > 0 {
		select {
		case out := <-ex.doneCh:
			ex.inFlight--
			ex.mu.Lock()
			delete(ex.frames, out.nodeID)
			ex.mu.Unlock()
		case <-deadline:
			ex.inFlight = 0
		}
	}
	ex.markTerminal(context.Background(), flow.StatusCancelled, nil)
}

// settleDecidable repeatedly resolves nodes whose incoming edges are all
// accounted for but who are neither reachable nor pass their `only`
// guard, marking them skipped and cascading to their own successors,
// until no further progress can be made without a live dispatch.
func (ex *execution) settleDecidable(ctx context.Context) {
	for {
		progressed := false
		for _, id := range ex.rs.decidable(ex.es) {
			if ex.es.Completed[id] || ex.es.Pending[id] {
				continue
			}
			node := ex.f.NodesByID[id]
			if !ex.rs.reachable[id] {
				ex.skip(id, "not reached")
				progressed = true
				continue
			}
			onlyTrue, err := evalOnly(ex.sched.cfg.Eval, node, ex.es.Context)
			if err != nil {
				ex.skip(id, "only: evaluation error, treated as false")
				progressed = true
				continue
			}
			if !onlyTrue {
				ex.skip(id, "only evaluated false")
				progressed = true
			}
		}
		if !progressed {
			return
		}
	}
}

func (ex *execution) skip(nodeID, reason string) {
	now := ex.sched.cfg.now()
	ex.es.MarkCompleted(nodeID, flow.NodeExecutionRecord{NodeID: nodeID, StartedAt: now, EndedAt: now, State: flow.NodeRunSkipped})
	ex.rs.onNodeSettled(nodeID, false, nil)
	ex.em.publish(ExecutionEvent{Type: EventNodeSkipped, ExecutionID: ex.es.ExecutionID, NodeID: nodeID, Reason: reason, At: now})
	node := ex.f.NodesByID[nodeID]
	if ex.sched.cfg.Metrics != nil {
		ex.sched.cfg.Metrics.NodesCompleted.WithLabelValues(string(node.Kind)).Inc()
	}
	if node.Fail != "" {
		ex.settleFailGuard(node.Fail)
	}
}

// readyNodes returns the decidable-and-reachable nodes not yet dispatched.
// When failed is true, dispatching stops entirely: in-flight nodes are
// still awaited but nothing new is scheduled.
func (ex *execution) readyNodes(failed bool) []string {
	if failed {
		return nil
	}
	var out []string
	for _, id := range ex.rs.decidable(ex.es) {
		if ex.es.Completed[id] || ex.es.Pending[id] {
			continue
		}
		if !ex.rs.reachable[id] {
			continue // handled by settleDecidable
		}
		out = append(out, id)
	}
	return out
}

// allSettled reports whether every node in g has reached a terminal
// per-node state (completed or skipped, both recorded in es.Completed).
func allSettled(es *flow.ExecutionState, g *graph.DepGraph) bool {
	for _, id := range g.NodeIDs {
		if !es.Completed[id] {
			return false
		}
	}
	return true
}

// dispatchOne spawns the goroutine that runs node to completion (or
// suspension) and reports its nodeOutcome on ex.doneCh. Every call site
// must account for one unit of ex.inFlight; dispatchOne increments it so
// callers outside the main ready-loop (fail-edge routing, resume) don't
// have to duplicate the bookkeeping.
func (ex *execution) dispatchOne(ctx context.Context, node *flow.Node) {
	ex.inFlight++
	ex.mu.Lock()
	ectx, resuming := ex.frames[node.ID]
	if !resuming {
		ectx = ex.es.Context.NewChild()
		ex.frames[node.ID] = ectx
	}
	ex.mu.Unlock()

	dispatchCtx := withEventCtx(ctx, ex.em, ex.es.ExecutionID, node.ID)
	started := ex.sched.cfg.now()
	input := rootSnapshotValue(ectx)
	ex.em.publish(ExecutionEvent{Type: EventNodeStart, ExecutionID: ex.es.ExecutionID, NodeID: node.ID, Input: input, At: started})
	if ex.sched.cfg.Metrics != nil {
		ex.sched.cfg.Metrics.NodesStarted.WithLabelValues(string(node.Kind)).Inc()
	}

	// The semaphore is acquired inside the goroutine, never on the
	// orchestrating task itself: blocking here would stall doneCh/resumeCh
	// processing for every other in-flight and suspended node.
	go func() {
		if err := ex.sched.sem.Acquire(ctx, 1); err != nil {
			ex.doneCh <- nodeOutcome{nodeID: node.ID, err: err, startedAt: started, endedAt: ex.sched.cfg.now(), input: input}
			return
		}
		defer ex.sched.sem.Release(1)
		exec := ex.sched.cfg.Dispatch[node.Kind]
		if exec == nil {
			ex.doneCh <- nodeOutcome{nodeID: node.ID, err: fmt.Errorf("scheduler: no executor wired for kind %s", node.Kind), startedAt: started, endedAt: ex.sched.cfg.now(), input: input}
			return
		}
		result, err := exec.Run(dispatchCtx, node, ectx, ex.sched.cfg.Eval)
		ex.doneCh <- nodeOutcome{nodeID: node.ID, ectx: ectx, result: result, err: err, startedAt: started, endedAt: ex.sched.cfg.now(), input: input}
	}()
}

// applyOutcome is called on the single orchestrating task after a
// dispatched node's goroutine reports in: it applies the node's context
// writes, records history, advances run-state, and routes failures.
func (ex *execution) applyOutcome(ctx context.Context, out nodeOutcome, failed *bool, failErr *error) {
	node := ex.f.NodesByID[out.nodeID]

	if out.err == nil && out.result.Suspend != nil {
		ex.handleSuspension(ctx, node, out)
		return
	}

	ex.mu.Lock()
	delete(ex.frames, out.nodeID)
	ex.mu.Unlock()

	if out.err != nil {
		ex.handleFailure(ctx, node, out, failed, failErr)
		return
	}

	ex.es.Context.SetAll(out.ectx.Snapshot())
	ex.es.Context.Set(out.nodeID, out.result.Value)

	ex.es.MarkCompleted(out.nodeID, flow.NodeExecutionRecord{
		NodeID: out.nodeID, StartedAt: out.startedAt, EndedAt: out.endedAt,
		State: flow.NodeRunCompleted, Input: out.input, Output: out.result.Value,
	})
	ex.rs.onNodeSettled(out.nodeID, true, out.result.NextHint)
	if node.Fail != "" {
		ex.settleFailGuard(node.Fail)
	}

	ex.em.publish(ExecutionEvent{
		Type: EventNodeComplete, ExecutionID: ex.es.ExecutionID, NodeID: out.nodeID,
		Output: out.result.Value, DurationMS: out.endedAt.Sub(out.startedAt).Milliseconds(), At: out.endedAt,
	})
	if ex.sched.cfg.Metrics != nil {
		ex.sched.cfg.Metrics.NodesCompleted.WithLabelValues(string(node.Kind)).Inc()
		ex.sched.cfg.Metrics.NodeDuration.WithLabelValues(string(node.Kind)).Observe(out.endedAt.Sub(out.startedAt).Seconds())
	}
	ex.maybeSnapshot(ctx)
}

// handleSuspension parks a node at an approval/handoff boundary: its
// frame stays alive under ex.frames, the node remains in Pending/
// CurrentNodes, and the execution is marked paused until Handle.Resolve
// delivers a resumeRequest.
func (ex *execution) handleSuspension(ctx context.Context, node *flow.Node, out nodeOutcome) {
	ex.es.Status = flow.StatusPaused
	ex.em.publish(ExecutionEvent{Type: EventPaused, ExecutionID: ex.es.ExecutionID, NodeID: out.nodeID, Reason: out.result.Suspend.Reason, At: ex.sched.cfg.now()})

	if out.result.Suspend.Reason == "approval" && ex.sched.cfg.Approvals != nil {
		data := out.result.Suspend.Data
		pa := &PendingApproval{ExecutionID: ex.es.ExecutionID, NodeID: out.nodeID}
		if data.Kind() == value.KindObject {
			obj := data.Object()
			if v, ok := obj.Get("title"); ok {
				pa.Title = v.Str()
			}
			if v, ok := obj.Get("description"); ok {
				pa.Description = v.Str()
			}
			if v, ok := obj.Get("timeoutMs"); ok && v.Number() > 0 {
				pa.Deadline = ex.sched.cfg.now().Add(time.Duration(v.Number()) * time.Millisecond)
			}
			if node.Approval != nil {
				pa.Options = node.Approval.Approval.Options
			}
		}
		_ = ex.sched.cfg.Approvals.Put(ctx, pa)
	}
	// dispatchOne already decremented nothing from inFlight bookkeeping in
	// run(); the caller's inFlight-- for this outcome still applies, the
	// node simply isn't marked Completed — it stays Pending until resumed.
	_ = ex.snapshot(context.Background())
}

// applyResume re-dispatches a suspended node with its resolution bound,
// reusing the frame that was kept alive across the suspension.
func (ex *execution) applyResume(ctx context.Context, req resumeRequest) {
	ex.mu.Lock()
	ectx, ok := ex.frames[req.nodeID]
	ex.mu.Unlock()
	if !ok {
		req.reply <- fmt.Errorf("scheduler: node %s is not suspended", req.nodeID)
		return
	}
	node := ex.f.NodesByID[req.nodeID]
	switch node.Kind {
	case flow.KindApproval:
		ectx.Set("$approvalResolution", req.value)
	case flow.KindHandoff:
		ectx.Set("$handoffResolution", req.value)
	}
	if ex.sched.cfg.Approvals != nil {
		_ = ex.sched.cfg.Approvals.Delete(ctx, ex.es.ExecutionID, req.nodeID)
	}
	ex.es.Status = flow.StatusRunning
	ex.em.publish(ExecutionEvent{Type: EventResumed, ExecutionID: ex.es.ExecutionID, NodeID: req.nodeID, At: ex.sched.cfg.now()})
	ex.dispatchOne(ctx, node)
	req.reply <- nil
}

// handleFailure applies the fail-edge recovery policy: route to node.Fail
// if set, else stop the execution.
func (ex *execution) handleFailure(ctx context.Context, node *flow.Node, out nodeOutcome, failed *bool, failErr *error) {
	ne := asNodeError(out.nodeID, out.err)
	ex.em.publish(ExecutionEvent{Type: EventNodeFailed, ExecutionID: ex.es.ExecutionID, NodeID: out.nodeID, Error: ne.Error(), ErrorKind: ne.Kind, At: out.endedAt})
	if ex.sched.cfg.Metrics != nil {
		ex.sched.cfg.Metrics.NodesFailed.WithLabelValues(string(node.Kind), string(ne.Kind)).Inc()
	}

	if node.Fail != "" {
		ex.es.MarkCompleted(out.nodeID, flow.NodeExecutionRecord{
			NodeID: out.nodeID, StartedAt: out.startedAt, EndedAt: out.endedAt,
			State: flow.NodeRunFailedHandled, Input: out.input, Error: ne.Error(),
		})
		// Fail edges are excluded from the dependency graph (they fire
		// only on failure, never contribute to normal ready-set
		// resolution), so this node's ordinary forward edges are marked
		// unreached — settleDecidable will skip that subtree — and the
		// fail target is dispatched directly as a side channel.
		ex.rs.onNodeSettled(out.nodeID, false, nil)
		ex.maybeSnapshot(ctx)
		if target := ex.f.NodesByID[node.Fail]; target != nil && !ex.es.Completed[node.Fail] && !ex.es.Pending[node.Fail] {
			ex.es.MarkPending(node.Fail)
			ex.dispatchOne(ctx, target)
		}
		return
	}

	ex.es.MarkCompleted(out.nodeID, flow.NodeExecutionRecord{
		NodeID: out.nodeID, StartedAt: out.startedAt, EndedAt: out.endedAt,
		State: flow.NodeRunFailed, Input: out.input, Error: ne.Error(),
	})
	ex.es.ErrorNode = out.nodeID
	*failed = true
	*failErr = ne
}

// evalOnly evaluates a node's `only` guard; absence is truthy.
func evalOnly(eval *gml.Evaluator, node *flow.Node, ctx *value.Context) (bool, error) {
	if node.Only == "" {
		return true, nil
	}
	expr, errs := gml.ParseExpr(node.Only)
	if len(errs) > 0 {
		return false, errs[0]
	}
	v, err := eval.Eval(expr, ctx)
	if err != nil {
		return false, err
	}
	return v.Truthy(), nil
}
