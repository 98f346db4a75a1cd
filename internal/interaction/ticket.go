package interaction

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Ticket is the caller's handle on an enqueued interaction. The result is
// delivered exactly once; Resolve after the first call is a no-op.
type Ticket struct {
	id       string
	kind     Kind
	strict   bool
	issued   time.Time
	resultCh chan Result
	once     sync.Once
}

// NewTicket issues a ticket for a (normalized) request.
func NewTicket(req Request) *Ticket {
	return &Ticket{
		id:       uuid.New().String(),
		kind:     req.Kind,
		strict:   req.Strict,
		issued:   time.Now(),
		resultCh: make(chan Result, 1),
	}
}

// ID returns the ticket's unique identifier.
func (t *Ticket) ID() string {
	return t.id
}

// Kind returns the requested interaction kind.
func (t *Ticket) Kind() Kind {
	return t.kind
}

// Strict reports whether the request was strict.
func (t *Ticket) Strict() bool {
	return t.strict
}

// Resolve delivers the completion result. Returns false if the ticket was
// already resolved; the first result always wins.
func (t *Ticket) Resolve(res Result) bool {
	delivered := false
	t.once.Do(func() {
		t.resultCh <- res
		delivered = true
	})
	return delivered
}

// Done returns a channel that yields the completion result once.
func (t *Ticket) Done() <-chan Result {
	return t.resultCh
}

// Wait blocks until the interaction completes or the context ends.
func (t *Ticket) Wait(ctx context.Context) (Result, error) {
	select {
	case res := <-t.resultCh:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
