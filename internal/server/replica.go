package server

import (
	"context"
	"fmt"
	"net"

	"github.com/mediocregopher/mredis/internal/command"
	"github.com/mediocregopher/mredis/internal/mctx"
	"github.com/mediocregopher/mredis/internal/merr"
	"github.com/mediocregopher/mredis/internal/replication"
	"github.com/mediocregopher/mredis/internal/resp"
)

// RunReplica dials the upstream primary at addr, drives the handshake
// client state machine to completion, then applies every subsequent
// command it receives with replica semantics (spec.md §4.4, §4.5). It
// blocks until the upstream link closes.
func (s *Server) RunReplica(ctx context.Context, addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return merr.Wrap(mctx.Annotate(ctx, "primary", addr), fmt.Errorf("replica: dialing primary: %w", err))
	}
	defer conn.Close()

	hs := replication.NewHandshake(conn, s.Cfg.Port)
	hs.SetLogger(s.Log)
	if err := hs.Run(); err != nil {
		return fmt.Errorf("replica: handshake: %w", err)
	}
	s.Log.Info(mctx.Annotate(ctx, "primary", addr), "replica handshake complete")

	router := &command.Router{
		Store:         s.Store,
		Coord:         s.Coord,
		Cfg:           s.Cfg,
		Conn:          conn,
		ReplicaLink:   true,
		LinkAckedCmds: &hs.AckedCommands,
	}

	for _, v := range hs.DrainPending() {
		if v.Kind != resp.Array {
			continue
		}
		if reply := router.Dispatch(ctx, v.Array); reply != nil {
			if _, err := conn.Write(reply); err != nil {
				return fmt.Errorf("replica: writing to primary: %w", err)
			}
		}
	}

	dec := hs.Decoder()
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return merr.Wrap(mctx.Annotate(ctx, "primary", addr), fmt.Errorf("replica: reading from primary: %w", err))
		}
		vs, err := dec.Feed(buf[:n])
		if err != nil {
			return merr.Wrap(mctx.Annotate(ctx, "primary", addr), fmt.Errorf("replica: decoding from primary: %w", err))
		}
		for _, v := range vs {
			if v.Kind != resp.Array {
				continue
			}
			if reply := router.Dispatch(ctx, v.Array); reply != nil {
				if _, err := conn.Write(reply); err != nil {
					return fmt.Errorf("replica: writing to primary: %w", err)
				}
			}
		}
	}
}
