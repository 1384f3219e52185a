package replication

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/mediocregopher/mredis/internal/mctx"
	"github.com/mediocregopher/mredis/internal/merr"
	"github.com/mediocregopher/mredis/internal/mlog"
	"github.com/mediocregopher/mredis/internal/resp"
)

// HandshakeState is one step of the replica-side handshake client state
// machine in spec.md §4.4.
type HandshakeState int

const (
	StateInit HandshakeState = iota
	StateAwaitPong
	StateSendReplconf
	StateSendPsync
	StateFullresync
	StateEnd
)

func (s HandshakeState) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateAwaitPong:
		return "await-pong"
	case StateSendReplconf:
		return "send-replconf"
	case StateSendPsync:
		return "send-psync"
	case StateFullresync:
		return "fullresync"
	case StateEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Handshake drives the replica-side client state machine against an
// upstream primary connection, per the table in spec.md §4.4. It is
// grounded on the replica-handshake dial sequence in
// other_examples/90f3f3be_faizanhussain2310-GoRedis__internal-handler-replication_handlers.go.go,
// rewritten against this project's resp.Decoder/Encoder instead of that
// file's ad hoc byte scanning.
type Handshake struct {
	conn     net.Conn
	selfPort int
	dec      *resp.Decoder
	pending  []resp.Value

	state HandshakeState
	log   *mlog.Logger

	// AckedCommands counts bytes of every command this replica has applied
	// from the primary since FULLRESYNC, per spec.md §4.4.
	AckedCommands int64
}

// NewHandshake returns a Handshake ready to Run against conn, logging its
// state transitions to mlog.Stderr by default; SetLogger overrides that.
func NewHandshake(conn net.Conn, selfPort int) *Handshake {
	return &Handshake{conn: conn, selfPort: selfPort, dec: resp.NewDecoder(), log: mlog.Stderr}
}

// SetLogger overrides the Logger handshake state transitions are reported
// through.
func (h *Handshake) SetLogger(log *mlog.Logger) {
	h.log = log
}

// setState records the handshake's new state and logs the transition.
func (h *Handshake) setState(s HandshakeState) {
	h.state = s
	h.log.Debug(mctx.Annotate(context.Background(), "remoteAddr", h.conn.RemoteAddr().String(), "state", s.String()),
		"handshake state transition")
}

// fail wraps err with merr (capturing a stacktrace and the current state as
// an annotation) and logs it before returning it to the caller, per
// SPEC_FULL.md's ambient-stack logging contract for transport errors.
func (h *Handshake) fail(descr string, err error) error {
	ctx := mctx.Annotate(context.Background(), "remoteAddr", h.conn.RemoteAddr().String(), "state", h.state.String())
	wrapped := merr.Wrap(ctx, fmt.Errorf("replication: %s: %w", descr, err))
	h.log.Warn(ctx, wrapped.Error())
	return wrapped
}

// Run drives INIT through FULLRESYNC, consuming the rdb bulk, and returns
// once the link has transitioned to END (spec.md §4.4). Subsequent bytes on
// conn are regular propagated commands, left for the caller's read loop.
func (h *Handshake) Run() error {
	if _, err := h.conn.Write(resp.Encode(resp.ArrayValue(resp.BulkString("PING")))); err != nil {
		return h.fail("sending PING", err)
	}
	h.setState(StateAwaitPong)

	if err := h.expectSimple("PONG"); err != nil {
		return err
	}

	if _, err := h.conn.Write(replconfListeningPort(h.selfPort)); err != nil {
		return h.fail("sending REPLCONF listening-port", err)
	}
	h.setState(StateSendReplconf)

	if err := h.expectSimple("OK"); err != nil {
		return err
	}

	if _, err := h.conn.Write(resp.Encode(resp.StringArray([]string{"REPLCONF", "capa", "psync2"}))); err != nil {
		return h.fail("sending REPLCONF capa", err)
	}
	h.setState(StateSendPsync)

	if err := h.expectSimple("OK"); err != nil {
		return err
	}

	if _, err := h.conn.Write(resp.Encode(resp.StringArray([]string{"PSYNC", "?", "-1"}))); err != nil {
		return h.fail("sending PSYNC", err)
	}
	h.setState(StateFullresync)

	if err := h.consumeFullresync(); err != nil {
		return err
	}
	h.setState(StateEnd)
	return nil
}

func replconfListeningPort(port int) []byte {
	return resp.Encode(resp.StringArray([]string{"REPLCONF", "listening-port", strconv.Itoa(port)}))
}

// expectSimple reads one frame and requires it to be a Simple value, any
// text (the handshake table treats "+PONG" and "+OK" as wildcards keyed
// only on their simple-string type).
func (h *Handshake) expectSimple(want string) error {
	v, err := h.readOne()
	if err != nil {
		return err
	}
	if v.Kind != resp.Simple {
		return h.fail("reading reply", fmt.Errorf("expected +%s, got %s", want, v.String()))
	}
	return nil
}

// readOne blocks on conn until one complete frame has been decoded.
func (h *Handshake) readOne() (resp.Value, error) {
	buf := make([]byte, 4096)
	for {
		if vs := h.pending; len(vs) > 0 {
			v := vs[0]
			h.pending = vs[1:]
			return v, nil
		}
		n, err := h.conn.Read(buf)
		if err != nil {
			return resp.Value{}, h.fail("reading from primary", err)
		}
		vs, err := h.dec.Feed(buf[:n])
		if err != nil {
			return resp.Value{}, h.fail("decoding reply", err)
		}
		h.pending = vs
	}
}

// consumeFullresync reads "+FULLRESYNC <replid> <offset>\r\n" followed by
// the rdb bulk, which per spec.md §4.1 carries no trailing boundary.
func (h *Handshake) consumeFullresync() error {
	v, err := h.readOne()
	if err != nil {
		return err
	}
	if v.Kind != resp.Simple {
		return h.fail("reading FULLRESYNC", fmt.Errorf("expected +FULLRESYNC, got %s", v.String()))
	}
	// The rdb bulk was already fully decoded by Decoder.Feed as part of the
	// same byte range, since Decoder special-cases the file-transfer bulk's
	// missing boundary (spec.md §4.1). readOne's next call returns it.
	rdb, err := h.readOne()
	if err != nil {
		return err
	}
	if rdb.Kind != resp.Bulk {
		return h.fail("reading FULLRESYNC", fmt.Errorf("expected rdb bulk, got %s", rdb.String()))
	}
	return nil
}

// Decoder returns the Decoder the handshake used, so the caller's
// post-handshake read loop can continue feeding it the same connection's
// bytes without losing anything already buffered mid-frame.
func (h *Handshake) Decoder() *resp.Decoder { return h.dec }

// DrainPending returns and clears any fully-decoded frames that arrived
// during the handshake but were not part of it (e.g. a command pipelined
// immediately after FULLRESYNC), so the caller's read loop dispatches them
// instead of discarding them.
func (h *Handshake) DrainPending() []resp.Value {
	vs := h.pending
	h.pending = nil
	return vs
}

// Conn returns the upstream connection.
func (h *Handshake) Conn() net.Conn { return h.conn }
