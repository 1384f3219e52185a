package command

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediocregopher/mredis/internal/config"
	"github.com/mediocregopher/mredis/internal/mlog"
	"github.com/mediocregopher/mredis/internal/replication"
	"github.com/mediocregopher/mredis/internal/resp"
	"github.com/mediocregopher/mredis/internal/store"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	cfg := &config.Config{Role: config.RolePrimary, Dir: "/tmp", DBFilename: "dump.rdb"}
	reg := replication.NewRegistry()
	reg.SetLogger(mlog.New(io.Discard))
	c1, c2 := net.Pipe()
	t.Cleanup(func() { c1.Close(); c2.Close() })
	return &Router{
		Store: store.New(nil),
		Coord: replication.NewCoordinator(cfg, reg),
		Cfg:   cfg,
		Conn:  c1,
	}
}

func req(strs ...string) []resp.Value {
	vs := make([]resp.Value, len(strs))
	for i, s := range strs {
		vs[i] = resp.BulkString(s)
	}
	return vs
}

func TestPingEcho(t *testing.T) {
	r := newTestRouter(t)
	assert.Equal(t, "+PONG\r\n", string(r.Dispatch(context.Background(), req("PING"))))
	assert.Equal(t, "$3\r\nhey\r\n", string(r.Dispatch(context.Background(), req("ECHO", "hey"))))
}

func TestSetGetAndExpiry(t *testing.T) {
	r := newTestRouter(t)
	assert.Equal(t, "+OK\r\n", string(r.Dispatch(context.Background(), req("SET", "k", "v"))))
	assert.Equal(t, "$1\r\nv\r\n", string(r.Dispatch(context.Background(), req("GET", "k"))))

	now := time.UnixMilli(0)
	r.Store.SetClock(func() time.Time { return now })
	r.Dispatch(context.Background(), req("SET", "k2", "v2", "px", "100"))
	now = time.UnixMilli(50)
	assert.Equal(t, "$2\r\nv2\r\n", string(r.Dispatch(context.Background(), req("GET", "k2"))))
	now = time.UnixMilli(200)
	assert.Equal(t, "$-1\r\n", string(r.Dispatch(context.Background(), req("GET", "k2"))))
}

func TestIncrAndType(t *testing.T) {
	r := newTestRouter(t)
	assert.Equal(t, ":1\r\n", string(r.Dispatch(context.Background(), req("INCR", "c"))))
	assert.Equal(t, ":2\r\n", string(r.Dispatch(context.Background(), req("INCR", "c"))))

	r.Dispatch(context.Background(), req("SET", "k", "abc"))
	assert.Equal(t, "-ERR value is not an integer or out of range\r\n", string(r.Dispatch(context.Background(), req("INCR", "k"))))

	assert.Equal(t, "+string\r\n", string(r.Dispatch(context.Background(), req("TYPE", "k"))))
	assert.Equal(t, "+none\r\n", string(r.Dispatch(context.Background(), req("TYPE", "missing"))))
}

func TestConfigGetUnknownKey(t *testing.T) {
	r := newTestRouter(t)
	got := string(r.Dispatch(context.Background(), req("CONFIG", "GET", "dir")))
	assert.Equal(t, "*2\r\n$3\r\ndir\r\n$4\r\n/tmp\r\n", got)

	got = string(r.Dispatch(context.Background(), req("CONFIG", "GET", "maxmemory")))
	assert.Equal(t, "*2\r\n$9\r\nmaxmemory\r\n$-1\r\n", got)
}

func TestXAddXRangeScenario(t *testing.T) {
	r := newTestRouter(t)
	assert.Equal(t, "$3\r\n1-1\r\n", string(r.Dispatch(context.Background(), req("XADD", "s", "1-1", "a", "1"))))
	assert.Equal(t,
		"-ERR The ID specified in XADD is equal or smaller than the target stream top item\r\n",
		string(r.Dispatch(context.Background(), req("XADD", "s", "1-1", "a", "2"))))
	assert.Equal(t,
		"-ERR The ID specified in XADD must be greater than 0-0\r\n",
		string(r.Dispatch(context.Background(), req("XADD", "s", "0-0", "a", "3"))))
	assert.Equal(t, "$3\r\n2-0\r\n", string(r.Dispatch(context.Background(), req("XADD", "s", "2-*", "a", "4"))))

	got := string(r.Dispatch(context.Background(), req("XRANGE", "s", "-", "+")))
	assert.Equal(t, "*2\r\n*2\r\n$3\r\n1-1\r\n*2\r\n$1\r\na\r\n$1\r\n1\r\n*2\r\n$3\r\n2-0\r\n*2\r\n$1\r\na\r\n$1\r\n4\r\n", got)
}

func TestTransactionScenario(t *testing.T) {
	r := newTestRouter(t)
	assert.Equal(t, "+OK\r\n", string(r.Dispatch(context.Background(), req("MULTI"))))
	assert.Equal(t, "+QUEUED\r\n", string(r.Dispatch(context.Background(), req("SET", "k", "1"))))
	assert.Equal(t, "+QUEUED\r\n", string(r.Dispatch(context.Background(), req("INCR", "k"))))

	got := string(r.Dispatch(context.Background(), req("EXEC")))
	assert.Equal(t, "*2\r\n+OK\r\n:2\r\n", got)

	_, ok := r.Store.Get("k")
	require.True(t, ok)
}

func TestExecDiscardWithoutMultiError(t *testing.T) {
	r := newTestRouter(t)
	assert.Equal(t, "-ERR EXEC without MULTI\r\n", string(r.Dispatch(context.Background(), req("EXEC"))))
	assert.Equal(t, "-ERR DISCARD without MULTI\r\n", string(r.Dispatch(context.Background(), req("DISCARD"))))
}

func TestMultiQueueNotAppliedUntilExec(t *testing.T) {
	r := newTestRouter(t)
	r.Dispatch(context.Background(), req("MULTI"))
	r.Dispatch(context.Background(), req("SET", "k", "v"))

	_, ok := r.Store.Get("k")
	assert.False(t, ok)

	r.Dispatch(context.Background(), req("EXEC"))
	v, ok := r.Store.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", string(v))
}

func TestDiscardClearsQueue(t *testing.T) {
	r := newTestRouter(t)
	r.Dispatch(context.Background(), req("MULTI"))
	r.Dispatch(context.Background(), req("SET", "k", "v"))
	assert.Equal(t, "+OK\r\n", string(r.Dispatch(context.Background(), req("DISCARD"))))

	_, ok := r.Store.Get("k")
	assert.False(t, ok)
	assert.False(t, r.Queue.InTx())
}

func TestArityErrors(t *testing.T) {
	r := newTestRouter(t)
	assert.Equal(t, "-ERR wrong number of arguments for 'get' command\r\n", string(r.Dispatch(context.Background(), req("GET"))))
	assert.Equal(t, "-ERR wrong number of arguments for 'set' command\r\n", string(r.Dispatch(context.Background(), req("SET", "k"))))
}

func TestUnknownVerbDropped(t *testing.T) {
	r := newTestRouter(t)
	assert.Nil(t, r.Dispatch(context.Background(), req("FROBNICATE")))
}

func TestReplconfListeningPortRegistersReplica(t *testing.T) {
	r := newTestRouter(t)
	assert.Equal(t, "+OK\r\n", string(r.Dispatch(context.Background(), req("REPLCONF", "listening-port", "6380"))))
	assert.Equal(t, 1, r.Coord.Registry().Count())
}

func TestWaitWithNoWritesReturnsReplicaCount(t *testing.T) {
	r := newTestRouter(t)
	r.Dispatch(context.Background(), req("REPLCONF", "listening-port", "6380"))
	got := string(r.Dispatch(context.Background(), req("WAIT", "0", "100")))
	assert.Equal(t, ":1\r\n", got)
}
