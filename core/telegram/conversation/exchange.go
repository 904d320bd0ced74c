// Package conversation implements prompt-response exchanges: a task opens an
// exchange for the sender it expects to hear from, sends its prompt and then
// waits. The dispatch loop offers every inbound text to the table first, so
// a reply completes the pending step instead of reaching generic routing.
package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrTimeout is returned by Wait when no reply arrived before the deadline.
	ErrTimeout = errors.New("conversation: reply timed out")
	// ErrBusy is returned by Open when the sender already has an open exchange.
	ErrBusy = errors.New("conversation: exchange already open")
	// ErrClosed is returned by Wait after the exchange was closed.
	ErrClosed = errors.New("conversation: exchange closed")
)

// Reply is a text delivered to a waiting exchange.
type Reply struct {
	Text      string
	MessageID int
}

// Exchange is one open wait for a single reply from one sender.
type Exchange struct {
	ID       string
	SenderID int64

	table   *Table
	slot    chan Reply
	timeout time.Duration
	once    sync.Once
}

// Table holds open exchanges keyed by the expected sender id.
type Table struct {
	mu        sync.Mutex
	exchanges map[int64]*Exchange
}

// NewTable returns an empty exchange table.
func NewTable() *Table {
	return &Table{exchanges: make(map[int64]*Exchange)}
}

// Open registers an exchange for senderID. Register before sending the
// prompt so a fast reply cannot slip past the table.
func (t *Table) Open(senderID int64, timeout time.Duration) (*Exchange, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.exchanges[senderID]; ok {
		return nil, ErrBusy
	}
	ex := &Exchange{
		ID:       uuid.NewString(),
		SenderID: senderID,
		table:    t,
		slot:     make(chan Reply, 1),
		timeout:  timeout,
	}
	t.exchanges[senderID] = ex
	return ex, nil
}

// Deliver hands reply to the exchange waiting on senderID. It reports
// whether the reply was consumed; a full slot or no exchange means false.
func (t *Table) Deliver(senderID int64, reply Reply) bool {
	t.mu.Lock()
	ex, ok := t.exchanges[senderID]
	t.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ex.slot <- reply:
		return true
	default:
		return false
	}
}

// Pending reports whether senderID has an open exchange.
func (t *Table) Pending(senderID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.exchanges[senderID]
	return ok
}

// Len returns the number of open exchanges.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.exchanges)
}

// Wait blocks until the reply arrives, the timeout elapses (counted from
// this call, i.e. right after the prompt was sent) or ctx is done. The
// exchange stays open so a step can be re-awaited; Close releases it.
func (e *Exchange) Wait(ctx context.Context) (Reply, error) {
	timer := time.NewTimer(e.timeout)
	defer timer.Stop()
	select {
	case r, ok := <-e.slot:
		if !ok {
			return Reply{}, ErrClosed
		}
		return r, nil
	case <-timer.C:
		return Reply{}, ErrTimeout
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
}

// Close removes the exchange from its table. It is safe to call repeatedly.
func (e *Exchange) Close() {
	e.once.Do(func() {
		e.table.mu.Lock()
		if cur, ok := e.table.exchanges[e.SenderID]; ok && cur == e {
			delete(e.table.exchanges, e.SenderID)
		}
		e.table.mu.Unlock()
	})
}

// Ask opens an exchange, runs send (the prompt) and waits for the reply.
// The exchange is always closed on return.
func (t *Table) Ask(ctx context.Context, senderID int64, timeout time.Duration, send func() error) (Reply, error) {
	ex, err := t.Open(senderID, timeout)
	if err != nil {
		return Reply{}, err
	}
	defer ex.Close()
	if err := send(); err != nil {
		return Reply{}, err
	}
	return ex.Wait(ctx)
}
