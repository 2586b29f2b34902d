package executor

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/lyzr/orchestrator/flow"
	"github.com/lyzr/orchestrator/gml"
	"github.com/lyzr/orchestrator/graph"
	"github.com/lyzr/orchestrator/value"
)

// EachExecutor implements the `each` node kind: iterate a
// source array/object, run the subflow once per item (parallel by
// default, bounded by global concurrency; sequential on request), and
// collect results in iteration order regardless of completion order.
type EachExecutor struct {
	Deps
}

// defaultEachParallelism bounds concurrent subflow iterations when the
// caller leaves Deps.MaxParallel unset.
const defaultEachParallelism = 8

func (e *EachExecutor) Run(ctx context.Context, node *flow.Node, ectx *value.Context, eval *gml.Evaluator) (NodeResult, error) {
	spec := node.Each
	if e.Subflow == nil {
		return NodeResult{}, fmt.Errorf("executor: each node %s has no subflow runner wired", node.ID)
	}

	source, err := evalExpr(eval, spec.SourceExpr, ectx)
	if err != nil {
		return NodeResult{}, err
	}
	items := iterableItems(source)

	var terminalID string
	if spec.With == "" {
		g, err := graph.BuildSubflow(spec.Subflow)
		if err != nil {
			return NodeResult{}, err
		}
		terminalID = subflowTerminalNode(g)
	}

	var seed map[string]value.Value
	if spec.Vars != "" {
		child := ectx.NewChild()
		if _, err := evalBlock(eval, spec.Vars, child); err != nil {
			return NodeResult{}, err
		}
		seed = child.Snapshot()
	}

	n := len(items)
	results := make([]value.Value, n)
	errs := make([]error, n)

	run := func(i int) {
		iterCtx := ectx.NewChild()
		if seed != nil {
			iterCtx.SetAll(seed)
		}
		iterCtx.Set(spec.ItemAlias, items[i])
		if spec.IndexAlias != "" {
			iterCtx.Set(spec.IndexAlias, value.Number(float64(i)))
		}

		finalCtx, rerr := e.Subflow.RunSubflow(ctx, spec.Subflow, iterCtx)
		if rerr != nil {
			errs[i] = rerr
			return
		}

		if spec.With != "" {
			out, werr := evalExpr(eval, spec.With, finalCtx)
			if werr != nil {
				errs[i] = werr
				return
			}
			results[i] = out
			return
		}
		out, ok := finalCtx.Get(terminalID)
		if !ok {
			errs[i] = fmt.Errorf("executor: each node %s subflow terminal node %q produced no value", node.ID, terminalID)
			return
		}
		results[i] = out
	}

	mode := spec.Mode
	if mode == "" {
		mode = "parallel"
	}

	if mode == "sequential" || n <= 1 {
		for i := 0; i < n; i++ {
			run(i)
			if errs[i] != nil {
				return NodeResult{}, errs[i]
			}
		}
	} else {
		limit := e.MaxParallel
		if limit <= 0 {
			limit = defaultEachParallelism
		}
		sem := semaphore.NewWeighted(int64(limit))
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			i := i
			if err := sem.Acquire(ctx, 1); err != nil {
				return NodeResult{}, err
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer sem.Release(1)
				run(i)
			}()
		}
		wg.Wait()
		for _, err := range errs {
			if err != nil {
				return NodeResult{}, err
			}
		}
	}

	return NodeResult{Value: value.ArrayFrom(results)}, nil
}

// subflowTerminalNode returns the id of the subflow's sink node (the one
// with no outgoing dependency edges), whose bound result becomes each
// iteration's element value when `with` is absent. An each subflow is
// normally a single linear chain ending in one sink; if more than one
// node has no outgoing edges, the first in declaration order wins.
func subflowTerminalNode(g *graph.DepGraph) string {
	for _, id := range g.NodeIDs {
		if len(g.Forward[id]) == 0 {
			return id
		}
	}
	return ""
}

// iterableItems normalizes the each source into a slice of items: array
// elements as-is, or object entries as {key, value} pairs in insertion
// order.
func iterableItems(source value.Value) []value.Value {
	if source.Kind() == value.KindArray {
		return source.Array()
	}
	if source.Kind() == value.KindObject {
		obj := source.Object()
		items := make([]value.Value, 0, obj.Len())
		obj.Range(func(k string, v value.Value) bool {
			pair := value.NewObject().Set("key", value.String(k)).Set("value", v)
			items = append(items, value.Object_(pair))
			return true
		})
		return items
	}
	return nil
}

// snapshotToObject flattens a context's visible variables into an Object
// Value. Used by LoopExecutor as its default `with`-absent result (the
// loop's own final context snapshot); EachExecutor instead resolves the
// subflow's terminal node value (see subflowTerminalNode).
func snapshotToObject(ctx *value.Context) *value.Object {
	obj := value.NewObject()
	for k, v := range ctx.Snapshot() {
		obj.Set(k, v)
	}
	return obj
}
