package command

import (
	"context"
	"strconv"
	"strings"

	"github.com/mediocregopher/mredis/internal/config"
	"github.com/mediocregopher/mredis/internal/replication"
	"github.com/mediocregopher/mredis/internal/resp"
	"github.com/mediocregopher/mredis/internal/store"
)

func (r *Router) handleSet(strs []string) []byte {
	if len(strs) < 3 {
		return arityError("set")
	}
	key, value := strs[1], strs[2]

	opts := store.SetOptions{}
	for i := 3; i+1 < len(strs); i += 2 {
		if strings.EqualFold(strs[i], "px") {
			ms, err := strconv.ParseInt(strs[i+1], 10, 64)
			if err != nil {
				return resp.Encode(resp.ErrorValue("ERR value is not an integer or out of range"))
			}
			opts.PXMillis = &ms
		}
	}

	r.Store.Set(key, []byte(value), opts)
	return resp.Encode(resp.SimpleValue("OK"))
}

// handleConfigGet implements CONFIG GET <key>, per spec.md §4.3 and the
// CONFIG GET semantics confirmed against
// _examples/original_source/app/commands.py's handle_config_get: an
// unrecognised key still replies with a two-element array of
// [key, nil], not an empty array.
func (r *Router) handleConfigGet(strs []string) []byte {
	if len(strs) < 3 || !strings.EqualFold(strs[1], "get") {
		return arityError("config")
	}
	key := strings.ToLower(strs[2])

	var value resp.Value
	switch key {
	case "dir":
		value = resp.BulkString(r.Cfg.Dir)
	case "dbfilename":
		value = resp.BulkString(r.Cfg.DBFilename)
	default:
		value = resp.NullBulk
	}
	return resp.Encode(resp.ArrayValue(resp.BulkString(strs[2]), value))
}

func (r *Router) handleReplconf(strs []string) []byte {
	if len(strs) < 2 {
		return arityError("replconf")
	}
	switch strings.ToLower(strs[1]) {
	case "listening-port":
		if len(strs) < 3 {
			return arityError("replconf")
		}
		r.Coord.Registry().Add(r.Conn, strs[2])
		return resp.Encode(resp.SimpleValue("OK"))
	case "ack":
		if len(strs) < 3 {
			return nil
		}
		n, err := strconv.ParseInt(strs[2], 10, 64)
		if err != nil {
			return nil
		}
		r.Coord.Registry().HandleAck(r.Conn, n)
		return nil
	default:
		return resp.Encode(resp.SimpleValue("OK"))
	}
}

func (r *Router) handlePsync(strs []string) []byte {
	if len(strs) < 2 {
		return arityError("psync")
	}
	var out []byte
	out = append(out, resp.Encode(resp.SimpleValue("FULLRESYNC "+config.ReplicationID+" 0"))...)
	out = append(out, resp.EncodeRawBulk(replication.EmptyDBPayload())...)
	return out
}

func (r *Router) handleWait(strs []string) []byte {
	if len(strs) < 3 {
		return arityError("wait")
	}
	minReplicas, err := strconv.Atoi(strs[1])
	if err != nil {
		return resp.Encode(resp.ErrorValue("ERR value is not an integer or out of range"))
	}
	timeoutMs, err := strconv.ParseInt(strs[2], 10, 64)
	if err != nil {
		return resp.Encode(resp.ErrorValue("ERR value is not an integer or out of range"))
	}
	up := r.Coord.Wait(minReplicas, timeoutMs)
	return resp.Encode(resp.IntegerValue(int64(up)))
}

func (r *Router) handleXAdd(strs []string) []byte {
	if len(strs) < 5 || len(strs)%2 != 1 {
		return arityError("xadd")
	}
	key, idSpec := strs[1], strs[2]

	fields := make([]store.FieldValue, 0, (len(strs)-3)/2)
	for i := 3; i+1 < len(strs); i += 2 {
		fields = append(fields, store.FieldValue{Field: strs[i], Value: strs[i+1]})
	}

	id, err := r.Store.XAdd(key, idSpec, fields)
	if err != nil {
		return resp.Encode(resp.ErrorValue(err.Error()))
	}
	return resp.Encode(resp.BulkString(id.String()))
}

func (r *Router) handleXRange(strs []string) []byte {
	if len(strs) < 4 {
		return arityError("xrange")
	}
	entries, err := r.Store.XRange(strs[1], strs[2], strs[3])
	if err != nil {
		return resp.Encode(resp.ErrorValue(err.Error()))
	}
	return resp.Encode(entriesToValue(entries))
}

func entriesToValue(entries []store.Entry) resp.Value {
	out := make([]resp.Value, len(entries))
	for i, e := range entries {
		fv := make([]resp.Value, 0, len(e.Fields)*2)
		for _, f := range e.Fields {
			fv = append(fv, resp.BulkString(f.Field), resp.BulkString(f.Value))
		}
		out[i] = resp.ArrayValue(resp.BulkString(e.ID.String()), resp.ArrayValue(fv...))
	}
	return resp.ArrayValue(out...)
}

// handleXRead implements XREAD's "[BLOCK <ms>] STREAMS <keys...> <ids...>"
// argument grammar (spec.md §4.3).
func (r *Router) handleXRead(ctx context.Context, strs []string) []byte {
	if len(strs) < 4 {
		return arityError("xread")
	}

	var block *int64
	streamsIdx := -1
	for i := 1; i < len(strs); i++ {
		switch strings.ToLower(strs[i]) {
		case "block":
			if i+1 >= len(strs) {
				return arityError("xread")
			}
			ms, err := strconv.ParseInt(strs[i+1], 10, 64)
			if err != nil {
				return resp.Encode(resp.ErrorValue("ERR timeout is not an integer or out of range"))
			}
			block = &ms
		case "streams":
			streamsIdx = i
		}
		if streamsIdx >= 0 {
			break
		}
	}
	if streamsIdx < 0 {
		return arityError("xread")
	}

	rest := strs[streamsIdx+1:]
	if len(rest) == 0 || len(rest)%2 != 0 {
		return resp.Encode(resp.ErrorValue("ERR Unbalanced XREAD list of streams: for each stream key an ID or '$' must be specified."))
	}
	n := len(rest) / 2
	streams, ids := rest[:n], rest[n:]

	reads, ok := r.Store.XRead(ctx, streams, ids, block)
	if !ok {
		return resp.Encode(resp.NullBulk)
	}

	out := make([]resp.Value, len(reads))
	for i, read := range reads {
		out[i] = resp.ArrayValue(resp.BulkString(read.Stream), entriesToValue(read.Entries))
	}
	return resp.Encode(resp.ArrayValue(out...))
}

// dispatchReplicaLink applies one command arriving over this instance's
// link to its own upstream primary, per spec.md §4.4's replica-side
// post-handshake rules: writes apply silently, REPLCONF GETACK replies
// with the pre-command counter, everything else bumps the local
// acked-bytes counter without a reply.
func (r *Router) dispatchReplicaLink(verb string, strs []string, args []resp.Value) []byte {
	encodedLen := int64(len(resp.Encode(resp.ArrayValue(args...))))

	if verb == "replconf" && len(strs) >= 2 && strings.EqualFold(strs[1], "getack") {
		preCount := *r.LinkAckedCmds
		reply := resp.Encode(resp.StringArray([]string{"REPLCONF", "ACK", strconv.FormatInt(preCount, 10)}))
		*r.LinkAckedCmds += encodedLen
		return reply
	}

	switch verb {
	case "set":
		r.handleSet(strs)
	case "ping":
		// counted, not answered (spec.md §4.4).
	default:
		// every other write command bumps the counter but produces no
		// reply (spec.md §4.4); unrecognised verbs are simply ignored.
	}

	*r.LinkAckedCmds += encodedLen
	return nil
}
