package scheduler

import (
	"context"

	"github.com/lyzr/orchestrator/flow"
	"github.com/lyzr/orchestrator/value"
)

// Recover resumes every execution the Persistence Manager reports as
// recoverable: it reloads each snapshot, re-derives the dependency graph
// from the owning flow, and restarts the orchestrating task from the
// restored state. Nodes that were mid-dispatch when the process stopped
// are re-dispatched from scratch — at-least-once, never at-most-once —
// since their own in-flight work was lost along with the process.
func (s *Scheduler) Recover(ctx context.Context) error {
	if s.cfg.Persist == nil {
		return nil
	}
	ids, err := s.cfg.Persist.ListRecoverable(ctx)
	if err != nil {
		return &StateError{Op: "list recoverable", Cause: err}
	}
	for _, id := range ids {
		if err := s.recoverOne(ctx, id); err != nil {
			if s.cfg.Log != nil {
				s.cfg.Log.Error("recover execution", "executionId", id, "error", err)
			}
			continue
		}
	}
	return nil
}

func (s *Scheduler) recoverOne(ctx context.Context, executionID string) error {
	es, err := s.cfg.Persist.LoadSnapshot(ctx, executionID)
	if err != nil {
		return &StateError{Op: "load snapshot", Cause: err}
	}
	if es.Status.IsTerminal() {
		return nil
	}
	if s.cfg.Flows == nil {
		return &SchedulingError{Message: "no flow store wired, cannot recover " + executionID}
	}
	f, err := s.cfg.Flows.GetFlow(ctx, es.FlowID)
	if err != nil {
		return &SchedulingError{Message: "resolving flow " + es.FlowID + " for recovery", Cause: err}
	}
	g, err := buildGraph(f)
	if err != nil {
		return &SchedulingError{Message: "rebuilding dependency graph for recovery", Cause: err}
	}

	// Any node still Pending at crash time lost its in-flight goroutine;
	// clear it back to undecided so the ready-set loop re-dispatches it.
	for id := range es.Pending {
		delete(es.Pending, id)
		delete(es.CurrentNodes, id)
	}

	rs := newRunState(g)
	rs.rebuild(es.Completed)

	// Replay History to settle failGuards for every guard that already
	// resolved before the crash (succeeded or was skipped, rather than
	// actually routing to its fail target).
	guards := failGuardsOf(f, g)
	for _, rec := range es.History {
		n := f.NodesByID[rec.NodeID]
		if n == nil || n.Fail == "" {
			continue
		}
		if rec.State == flow.NodeRunCompleted || rec.State == flow.NodeRunSkipped {
			if _, ok := guards[n.Fail]; ok && guards[n.Fail] > 0 {
				guards[n.Fail]--
			}
		}
	}

	execCtx, cancel := context.WithCancel(context.Background())
	ex := &execution{
		sched:      s,
		f:          f,
		g:          g,
		es:         es,
		rs:         rs,
		em:         newEmitter(),
		frames:     make(map[string]*value.Context),
		doneCh:     make(chan nodeOutcome, 16),
		resumeCh:   make(chan resumeRequest, 8),
		cancelFn:   cancel,
		doneCh2:    make(chan struct{}),
		failGuards: guards,
	}
	es.Status = flow.StatusRunning

	for target, remaining := range guards {
		if remaining <= 0 && !es.Completed[target] && !es.Pending[target] {
			ex.skip(target, "fail target never reached")
		}
	}

	s.mu.Lock()
	s.executions[es.ExecutionID] = ex
	s.mu.Unlock()
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.ExecutionsLive.Inc()
	}

	go ex.run(execCtx)
	return nil
}
