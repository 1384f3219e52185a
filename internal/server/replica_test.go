package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mediocregopher/mredis/internal/config"
	"github.com/mediocregopher/mredis/internal/mlog"
	"github.com/mediocregopher/mredis/internal/replication"
	"github.com/mediocregopher/mredis/internal/resp"
	"github.com/mediocregopher/mredis/internal/store"
)

// acceptHandshake plays the primary side of one handshake (spec.md §4.4)
// over a real accepted TCP connection, then writes extra bytes (the
// propagated write stream) and returns the connection for further
// reading/writing.
func acceptHandshake(t *testing.T, l net.Listener) net.Conn {
	t.Helper()
	conn, err := l.Accept()
	require.NoError(t, err)

	dec := resp.NewDecoder()
	buf := make([]byte, 4096)
	readCmd := func() []string {
		for {
			n, err := conn.Read(buf)
			require.NoError(t, err)
			vs, err := dec.Feed(buf[:n])
			require.NoError(t, err)
			if len(vs) > 0 {
				ss, _ := vs[0].Strings()
				return ss
			}
		}
	}

	require.Equal(t, "PING", readCmd()[0])
	_, err = conn.Write(resp.Encode(resp.SimpleValue("PONG")))
	require.NoError(t, err)

	require.Equal(t, "REPLCONF", readCmd()[0])
	_, err = conn.Write(resp.Encode(resp.SimpleValue("OK")))
	require.NoError(t, err)

	require.Equal(t, "REPLCONF", readCmd()[0])
	_, err = conn.Write(resp.Encode(resp.SimpleValue("OK")))
	require.NoError(t, err)

	require.Equal(t, "PSYNC", readCmd()[0])
	payload := append(resp.Encode(resp.SimpleValue("FULLRESYNC abc123 0")), resp.EncodeRawBulk(replication.EmptyDBPayload())...)
	_, err = conn.Write(payload)
	require.NoError(t, err)

	return conn
}

func TestRunReplicaAppliesPropagatedSetSilently(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	connCh := make(chan net.Conn, 1)
	go func() { connCh <- acceptHandshake(t, l) }()

	cfg := &config.Config{Role: config.RoleReplica}
	st := store.New(nil)
	coord := replication.NewCoordinator(cfg, replication.NewRegistry())
	srv := New(cfg, st, coord, mlog.New(nopWriter{}))

	go srv.RunReplica(context.Background(), l.Addr().String())

	primaryConn := <-connCh
	defer primaryConn.Close()

	_, err = primaryConn.Write(resp.Encode(resp.StringArray([]string{"SET", "foo", "bar"})))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		v, ok := st.Get("foo")
		return ok && string(v) == "bar"
	}, time.Second, 10*time.Millisecond)
}

func TestRunReplicaAnswersReplconfGetAck(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	connCh := make(chan net.Conn, 1)
	go func() { connCh <- acceptHandshake(t, l) }()

	cfg := &config.Config{Role: config.RoleReplica}
	st := store.New(nil)
	coord := replication.NewCoordinator(cfg, replication.NewRegistry())
	srv := New(cfg, st, coord, mlog.New(nopWriter{}))

	go srv.RunReplica(context.Background(), l.Addr().String())

	primaryConn := <-connCh
	defer primaryConn.Close()

	getack := resp.Encode(resp.StringArray([]string{"REPLCONF", "GETACK", "*"}))
	_, err = primaryConn.Write(getack)
	require.NoError(t, err)

	dec := resp.NewDecoder()
	buf := make([]byte, 4096)
	primaryConn.SetReadDeadline(time.Now().Add(time.Second))
	n, err := primaryConn.Read(buf)
	require.NoError(t, err)
	vs, err := dec.Feed(buf[:n])
	require.NoError(t, err)
	require.Len(t, vs, 1)
	ss, ok := vs[0].Strings()
	require.True(t, ok)
	require.Equal(t, "REPLCONF", ss[0])
	require.Equal(t, "ACK", ss[1])
}
