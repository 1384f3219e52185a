// Package command implements the CommandRouter of spec.md §4.3: a
// dispatch table keyed on the first element of each decoded request array,
// per-verb argument validation, storage mutation, and reply synthesis,
// plus the MULTI/EXEC/DISCARD transaction queue. It is grounded on the
// command-dispatch shape of
// other_examples/de738e1f_flonle-diy-redis__app-diyredis-commands.go.go
// (itself a prior solution to this same codecrafters exercise), generalized
// to this project's resp/store/replication packages.
package command

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/mediocregopher/mredis/internal/config"
	"github.com/mediocregopher/mredis/internal/replication"
	"github.com/mediocregopher/mredis/internal/resp"
	"github.com/mediocregopher/mredis/internal/store"
)

// verbs that are never captured into a pending transaction, per spec.md
// §4.3: "any queueable verb (everything except MULTI/EXEC/DISCARD and the
// replication-internal verbs)".
var nonQueueable = map[string]bool{
	"multi":    true,
	"exec":     true,
	"discard":  true,
	"replconf": true,
	"psync":    true,
}

// writeVerbs propagate to replicas on a primary (spec.md §4.4: "SET is the
// only one in scope").
var writeVerbs = map[string]bool{
	"set": true,
}

// Router dispatches one connection's decoded request arrays against the
// shared Store and ReplicaRegistry. Each connection gets its own Router so
// its MULTI/EXEC Queue is isolated (spec.md §4.5, §9).
type Router struct {
	Store *store.Store
	Coord *replication.Coordinator
	Cfg   *config.Config

	// Conn is this connection's socket, needed to register it with the
	// ReplicaRegistry on listening-port and to credit its REPLCONF ACKs.
	Conn net.Conn

	// ReplicaLink is true only for the one connection that is this
	// instance's link to its own upstream primary (spec.md §4.5: "a
	// distinct read handler... behaves like a normal read handler but with
	// the replica-flavoured router"). On that connection, write verbs
	// apply silently and REPLCONF GETACK is answered from LinkAckedCmds
	// instead of the shared ReplicaRegistry.
	ReplicaLink   bool
	LinkAckedCmds *int64

	Queue Queue
}

// Dispatch executes or queues one decoded request, returning the
// already-encoded reply bytes, or nil if no reply should be written at all
// (spec.md §4.3: unknown verbs are dropped; replica-link writes besides
// REPLCONF GETACK don't reply). ctx is only consulted by XREAD's blocking
// wait.
func (r *Router) Dispatch(ctx context.Context, args []resp.Value) []byte {
	strs, ok := resp.ArrayValue(args...).Strings()
	if !ok || len(strs) == 0 {
		return nil
	}
	verb := strings.ToLower(strs[0])

	if r.ReplicaLink {
		return r.dispatchReplicaLink(verb, strs, args)
	}

	if r.Queue.InTx() && !nonQueueable[verb] {
		r.Queue.Push(args)
		return resp.Encode(resp.SimpleValue("QUEUED"))
	}

	switch verb {
	case "multi":
		r.Queue.Begin()
		return resp.Encode(resp.SimpleValue("OK"))
	case "exec":
		return r.execTx()
	case "discard":
		if !r.Queue.InTx() {
			return resp.Encode(resp.ErrorValue("ERR DISCARD without MULTI"))
		}
		r.Queue.Discard()
		return resp.Encode(resp.SimpleValue("OK"))
	}

	reply := r.execute(ctx, verb, strs, args)

	if writeVerbs[verb] && reply != nil && !isErrorReply(reply) {
		r.Coord.PropagateWrite(args)
	}

	return reply
}

// execTx runs EXEC: it drains the queue, executes every command in order,
// and wraps each captured reply in a single pass-through array (spec.md
// §4.3). A queued command that is itself a write still fans out to
// replicas.
func (r *Router) execTx() []byte {
	if !r.Queue.InTx() {
		return resp.Encode(resp.ErrorValue("ERR EXEC without MULTI"))
	}
	queued := r.Queue.Drain()

	replies := make([][]byte, len(queued))
	for i, qargs := range queued {
		qstrs, ok := resp.ArrayValue(qargs...).Strings()
		if !ok || len(qstrs) == 0 {
			replies[i] = resp.Encode(resp.ErrorValue("ERR invalid command in transaction"))
			continue
		}
		verb := strings.ToLower(qstrs[0])
		reply := r.execute(context.Background(), verb, qstrs, qargs)
		replies[i] = reply
		if writeVerbs[verb] && !isErrorReply(reply) {
			r.Coord.PropagateWrite(qargs)
		}
	}

	return resp.EncodeArrayPassthrough(replies)
}

func isErrorReply(encoded []byte) bool {
	return len(encoded) > 0 && encoded[0] == '-'
}

// arityError renders the standard "wrong number of arguments" error for
// verb, per spec.md §4.3/§7.
func arityError(verb string) []byte {
	return resp.Encode(resp.ErrorValue(fmt.Sprintf("ERR wrong number of arguments for '%s' command", verb)))
}

// execute runs a single already-unwrapped verb call and returns its
// encoded reply (spec.md §4.3's per-verb table). args is the original
// decoded Value array; no handler here uses it, since Dispatch and execTx
// re-propagate writes themselves.
func (r *Router) execute(ctx context.Context, verb string, strs []string, args []resp.Value) []byte {
	switch verb {
	case "ping":
		return resp.Encode(resp.SimpleValue("PONG"))
	case "echo":
		if len(strs) < 2 {
			return arityError(verb)
		}
		return resp.Encode(resp.BulkString(strs[1]))
	case "set":
		return r.handleSet(strs)
	case "get":
		if len(strs) < 2 {
			return arityError(verb)
		}
		v, ok := r.Store.Get(strs[1])
		if !ok {
			return resp.Encode(resp.NullBulk)
		}
		return resp.Encode(resp.BulkValue(v))
	case "type":
		if len(strs) < 2 {
			return arityError(verb)
		}
		return resp.Encode(resp.SimpleValue(r.Store.Type(strs[1])))
	case "incr":
		if len(strs) < 2 {
			return arityError(verb)
		}
		n, errMsg := r.Store.Incr(strs[1])
		if errMsg != "" {
			return resp.Encode(resp.ErrorValue(errMsg))
		}
		return resp.Encode(resp.IntegerValue(n))
	case "keys":
		if len(strs) < 2 {
			return arityError(verb)
		}
		return resp.Encode(resp.StringArray(r.Store.Keys(strs[1])))
	case "config":
		return r.handleConfigGet(strs)
	case "info":
		return resp.Encode(resp.BulkString(r.Coord.Info()))
	case "replconf":
		return r.handleReplconf(strs)
	case "psync":
		return r.handlePsync(strs)
	case "wait":
		return r.handleWait(strs)
	case "xadd":
		return r.handleXAdd(strs)
	case "xrange":
		return r.handleXRange(strs)
	case "xread":
		return r.handleXRead(ctx, strs)
	default:
		return nil
	}
}
