package scheduler

import (
	"sync"
	"time"

	"github.com/lyzr/orchestrator/value"
)

// EventType tags which variant of ExecutionEvent is populated.
type EventType string

const (
	EventStart         EventType = "start"
	EventNodeStart     EventType = "nodeStart"
	EventNodeComplete  EventType = "nodeComplete"
	EventNodeFailed    EventType = "nodeFailed"
	EventNodeSkipped   EventType = "nodeSkipped"
	EventSubflowStart  EventType = "subflowStart"
	EventSubflowEnd    EventType = "subflowEnd"
	EventPaused        EventType = "paused"
	EventResumed       EventType = "resumed"
	EventComplete      EventType = "complete"
	EventFailed        EventType = "failed"
	EventCancelled     EventType = "cancelled"
)

// ExecutionEvent is one entry of the stream an execution emits, ordered
// per execution: start → (nodeStart | nodeComplete | nodeFailed |
// nodeSkipped | subflowStart/End | paused | resumed)* → (complete |
// failed | cancelled).
type ExecutionEvent struct {
	Type        EventType `json:"type"`
	ExecutionID string    `json:"executionId"`
	FlowID      string    `json:"flowId,omitempty"`
	NodeID      string    `json:"nodeId,omitempty"`
	Input       value.Value `json:"input,omitempty"`
	Output      value.Value `json:"output,omitempty"`
	Result      value.Value `json:"result,omitempty"`
	Error       string    `json:"error,omitempty"`
	ErrorKind   Kind      `json:"errorKind,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	DurationMS  int64     `json:"durationMs,omitempty"`
	At          time.Time `json:"at"`
}

// emitter fans an execution's events out to every subscriber registered
// via subscribe. Events are not buffered for replay: a subscriber joining
// an already-running execution's stream receives only events published
// after it subscribed. Publishing never blocks a producer: a slow
// consumer drops events rather than stalling dispatch.
type emitter struct {
	mu   sync.Mutex
	subs map[int]chan ExecutionEvent
	next int
	done bool
}

func newEmitter() *emitter {
	return &emitter{subs: make(map[int]chan ExecutionEvent)}
}

// subscribe registers a new consumer channel; the returned cancel func
// unregisters it. Buffered so publish never blocks on a slow reader.
func (e *emitter) subscribe() (<-chan ExecutionEvent, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch := make(chan ExecutionEvent, 256)
	id := e.next
	e.next++
	e.subs[id] = ch
	if e.done {
		close(ch)
	}
	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if sub, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(sub)
		}
	}
}

func (e *emitter) publish(ev ExecutionEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return
	}
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
			// slow consumer: drop rather than block the dispatch loop.
		}
	}
}

// close marks the stream terminal and closes every live subscriber
// channel; further publish calls are no-ops.
func (e *emitter) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return
	}
	e.done = true
	for id, ch := range e.subs {
		delete(e.subs, id)
		close(ch)
	}
}
