package engine

import "sync"

// RequestKind distinguishes the two request forms.
type RequestKind int

const (
	// RequestSet proposes a single key/value change.
	RequestSet RequestKind = iota + 1
	// RequestTransition asks for an explicit named transition.
	RequestTransition
)

// Request is one unit of work for the engine: either a single-key change
// proposal or an explicit named transition.
type Request struct {
	Kind   RequestKind
	Key    string // RequestSet
	Value  string // RequestSet; may be the "toggle" sentinel
	Target string // RequestTransition
}

// requestQueue is a thread-safe FIFO queue feeding the service-mode Run
// loop.
//
// The queue is unbounded: asynchronous effects reporting completion must
// never block on the engine. A buffered signal channel of size one
// coalesces wakeups and lets Run wait with context awareness.
//
// Thread-safety exists for external producers (HTTP handlers, async
// effects); the Run loop is the only consumer.
type requestQueue struct {
	mu       sync.Mutex
	requests []Request
	closed   bool
	signal   chan struct{}
}

func newRequestQueue() *requestQueue {
	return &requestQueue{
		requests: make([]Request, 0, 64),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds a request to the back of the queue.
// Returns false if the queue is closed.
func (q *requestQueue) Enqueue(r Request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.requests = append(q.requests, r)

	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
func (q *requestQueue) TryDequeue() (Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.requests) == 0 {
		return Request{}, false
	}

	r := q.requests[0]
	q.requests[0] = Request{}

	if len(q.requests) == 1 {
		// Reset to keep the backing array instead of growing forever.
		q.requests = q.requests[:0]
	} else {
		q.requests = q.requests[1:]
	}

	return r, true
}

// Wait returns a channel that signals when requests may be available.
// The channel closes when the queue closes, waking all waiters.
func (q *requestQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *requestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.requests)
}

// Close signals that no more requests will be enqueued.
func (q *requestQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
