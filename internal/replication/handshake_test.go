package replication

import (
	"net"
	"testing"

	"github.com/mediocregopher/mredis/internal/resp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePrimary plays the primary side of the handshake (spec.md §4.4) over
// a net.Pipe, asserting the exact command sequence a replica must send.
func fakePrimary(t *testing.T, conn net.Conn, extraAfterFullresync []byte) {
	t.Helper()
	dec := resp.NewDecoder()
	buf := make([]byte, 4096)

	readCmd := func() []string {
		for {
			n, err := conn.Read(buf)
			require.NoError(t, err)
			vs, err := dec.Feed(buf[:n])
			require.NoError(t, err)
			if len(vs) > 0 {
				ss, ok := vs[0].Strings()
				require.True(t, ok)
				return ss
			}
		}
	}

	require.Equal(t, []string{"PING"}, readCmd())
	_, err := conn.Write(resp.Encode(resp.SimpleValue("PONG")))
	require.NoError(t, err)

	cmd := readCmd()
	require.Equal(t, "REPLCONF", cmd[0])
	require.Equal(t, "listening-port", cmd[1])
	_, err = conn.Write(resp.Encode(resp.SimpleValue("OK")))
	require.NoError(t, err)

	require.Equal(t, []string{"REPLCONF", "capa", "psync2"}, readCmd())
	_, err = conn.Write(resp.Encode(resp.SimpleValue("OK")))
	require.NoError(t, err)

	require.Equal(t, []string{"PSYNC", "?", "-1"}, readCmd())

	// Combined into a single Write call: net.Pipe rendezvous ties each
	// Write to the Read call(s) that drain it, and a Write doesn't return
	// until fully drained. Writing the FULLRESYNC line, rdb bulk, and any
	// pipelined bytes as one call lets the replica's single (large-buffer)
	// Read pull all of it in one shot, so this goroutine doesn't block
	// forever on a trailing Write the replica never reads.
	payload := append(resp.Encode(resp.SimpleValue("FULLRESYNC abc123 0")), resp.EncodeRawBulk(EmptyDBPayload())...)
	payload = append(payload, extraAfterFullresync...)
	_, err = conn.Write(payload)
	require.NoError(t, err)
}

func TestHandshakeRunsFullSequence(t *testing.T) {
	primary, replica := net.Pipe()
	defer primary.Close()
	defer replica.Close()

	go fakePrimary(t, primary, nil)

	hs := NewHandshake(replica, 6380)
	require.NoError(t, hs.Run())
	assert.Equal(t, StateEnd, hs.state)
	assert.Empty(t, hs.DrainPending())
}

func TestHandshakeDrainsPipelinedCommandAfterFullresync(t *testing.T) {
	primary, replica := net.Pipe()
	defer primary.Close()
	defer replica.Close()

	pipelined := resp.Encode(resp.StringArray([]string{"SET", "foo", "bar"}))

	done := make(chan struct{})
	go func() {
		fakePrimary(t, primary, pipelined)
		close(done)
	}()

	hs := NewHandshake(replica, 6380)
	require.NoError(t, hs.Run())
	<-done

	pending := hs.DrainPending()
	require.Len(t, pending, 1)
	ss, ok := pending[0].Strings()
	require.True(t, ok)
	assert.Equal(t, []string{"SET", "foo", "bar"}, ss)
}
