// Package bridge routes messages between the browser connection and the
// running server logic.
//
// A Bridge holds at most one receiver (the server logic's message handler)
// and at most one sender (the open browser connection). Both are replaced
// atomically: a reader always sees a complete pair of bindings, never a
// half-updated one.
package bridge

import (
	"log/slog"
	"sync/atomic"

	"github.com/langyo/React-frontback-scaffold/internal/errors"
)

// ErrNoConnection is returned by Send while no connection is bound.
var ErrNoConnection = errors.New("E402")

// ReceiveFunc handles a message sent by the browser.
type ReceiveFunc func(msg any)

// SendFunc delivers a message to the browser.
type SendFunc func(msg any) error

type binding[F any] struct {
	owner any
	fn    F
}

type bindings struct {
	receiver *binding[ReceiveFunc]
	sender   *binding[SendFunc]
}

// Bridge is safe for concurrent use.
type Bridge struct {
	state  atomic.Pointer[bindings]
	logger *slog.Logger
}

// New returns a bridge with nothing bound.
func New() *Bridge {
	b := &Bridge{logger: slog.Default().With("component", "bridge")}
	b.state.Store(&bindings{})
	return b
}

// BindReceiver installs fn as the receiver on behalf of owner. A nil fn
// clears the receiver.
func (b *Bridge) BindReceiver(owner any, fn ReceiveFunc) {
	var rb *binding[ReceiveFunc]
	if fn != nil {
		rb = &binding[ReceiveFunc]{owner: owner, fn: fn}
	}
	for {
		cur := b.state.Load()
		next := &bindings{receiver: rb, sender: cur.sender}
		if b.state.CompareAndSwap(cur, next) {
			return
		}
	}
}

// ReleaseReceiver clears the receiver if owner still holds it.
func (b *Bridge) ReleaseReceiver(owner any) bool {
	for {
		cur := b.state.Load()
		if cur.receiver == nil || cur.receiver.owner != owner {
			return false
		}
		next := &bindings{sender: cur.sender}
		if b.state.CompareAndSwap(cur, next) {
			return true
		}
	}
}

// BindSender installs fn as the sender on behalf of owner, replacing any
// previous connection.
func (b *Bridge) BindSender(owner any, fn SendFunc) {
	var sb *binding[SendFunc]
	if fn != nil {
		sb = &binding[SendFunc]{owner: owner, fn: fn}
	}
	for {
		cur := b.state.Load()
		next := &bindings{receiver: cur.receiver, sender: sb}
		if b.state.CompareAndSwap(cur, next) {
			return
		}
	}
}

// ReleaseSender clears the sender if owner still holds it. A connection that
// was already replaced by a newer one leaves the newer binding alone.
func (b *Bridge) ReleaseSender(owner any) bool {
	for {
		cur := b.state.Load()
		if cur.sender == nil || cur.sender.owner != owner {
			return false
		}
		next := &bindings{receiver: cur.receiver}
		if b.state.CompareAndSwap(cur, next) {
			return true
		}
	}
}

// Receive hands msg to the current receiver. Messages arriving while no
// receiver is bound are dropped.
func (b *Bridge) Receive(msg any) bool {
	cur := b.state.Load()
	if cur.receiver == nil {
		b.logger.Debug("message dropped, no receiver bound")
		return false
	}
	cur.receiver.fn(msg)
	return true
}

// Send delivers msg through the current sender.
func (b *Bridge) Send(msg any) error {
	cur := b.state.Load()
	if cur.sender == nil {
		return ErrNoConnection
	}
	return cur.sender.fn(msg)
}

// HasReceiver reports whether a receiver is bound.
func (b *Bridge) HasReceiver() bool {
	return b.state.Load().receiver != nil
}

// HasSender reports whether a connection is bound.
func (b *Bridge) HasSender() bool {
	return b.state.Load().sender != nil
}
