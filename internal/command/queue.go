package command

import "github.com/mediocregopher/mredis/internal/resp"

// Queue is the per-connection CommandQueue of spec.md §4.3: it holds the
// in_tx flag and the raw argument arrays queued between MULTI and EXEC.
// Each connection owns exactly one Queue (spec.md §4.5, §9 "per-connection
// state"); it is never shared.
type Queue struct {
	inTx   bool
	queued [][]resp.Value
}

// InTx reports whether MULTI has been received without a matching EXEC or
// DISCARD.
func (q *Queue) InTx() bool { return q.inTx }

// Begin sets the in_tx flag, as MULTI does.
func (q *Queue) Begin() { q.inTx = true }

// Push appends args to the queue, as any queueable verb does while in_tx is
// set.
func (q *Queue) Push(args []resp.Value) { q.queued = append(q.queued, args) }

// Drain clears the in_tx flag and returns the queued argument arrays, as
// EXEC does before executing them.
func (q *Queue) Drain() [][]resp.Value {
	args := q.queued
	q.inTx = false
	q.queued = nil
	return args
}

// Discard clears the in_tx flag and the queue without returning anything,
// as DISCARD does.
func (q *Queue) Discard() {
	q.inTx = false
	q.queued = nil
}
