// Package server wires the Codec, CommandRouter, Store, and
// ReplicationCoordinator together into running connections, per spec.md
// §4.5's ConnectionLoop. It is grounded on mediocre-go-lib's mnet accept-loop
// shape (internal/mnet) and on the per-connection goroutine pattern shown
// in other_examples/de738e1f_flonle-diy-redis__app-diyredis-commands.go.go
// and other_examples/90f3f3be_faizanhussain2310-GoRedis__internal-handler-replication_handlers.go.go.
package server

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/mediocregopher/mredis/internal/command"
	"github.com/mediocregopher/mredis/internal/config"
	"github.com/mediocregopher/mredis/internal/mctx"
	"github.com/mediocregopher/mredis/internal/merr"
	"github.com/mediocregopher/mredis/internal/mlog"
	"github.com/mediocregopher/mredis/internal/replication"
	"github.com/mediocregopher/mredis/internal/resp"
	"github.com/mediocregopher/mredis/internal/store"
)

// Server holds the shared collaborators every accepted connection's Router
// is built against (spec.md §4.5: "sharing the global Store and
// ReplicaRegistry").
type Server struct {
	Cfg   *config.Config
	Store *store.Store
	Coord *replication.Coordinator
	Log   *mlog.Logger
}

// New returns a Server ready to drive accepted connections.
func New(cfg *config.Config, st *store.Store, coord *replication.Coordinator, log *mlog.Logger) *Server {
	return &Server{Cfg: cfg, Store: st, Coord: coord, Log: log}
}

// Serve runs the accept loop: one goroutine per connection, each with its
// own Decoder and Router (spec.md §4.5). It returns only when l.Accept
// fails, e.g. on listener close.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			return err
		}
		go s.handleConnection(ctx, conn)
	}
}

// handleConnection runs one client connection's read loop, per spec.md
// §4.5: a Decoder fed from the socket, dispatching each completed frame
// through a dedicated Router, writing the reply synchronously.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	defer s.Coord.Registry().Remove(conn)

	router := &command.Router{
		Store: s.Store,
		Coord: s.Coord,
		Cfg:   s.Cfg,
		Conn:  conn,
	}

	dec := resp.NewDecoder()
	buf := make([]byte, 4096)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			s.logConnClosed(ctx, conn, err)
			return
		}

		vs, err := dec.Feed(buf[:n])
		if err != nil {
			annotated := mctx.Annotate(ctx, "remoteAddr", conn.RemoteAddr().String())
			s.Log.Debug(annotated, merr.Wrap(annotated, err).Error())
			return
		}

		for _, v := range vs {
			if v.Kind != resp.Array {
				continue
			}
			reply := router.Dispatch(ctx, v.Array)
			if reply == nil {
				continue
			}
			if _, err := conn.Write(reply); err != nil {
				s.logConnClosed(ctx, conn, err)
				return
			}
		}
	}
}

// logConnClosed reports why a connection's read/write loop ended: a plain
// EOF is the ordinary client-disconnect path and logs at Debug with no
// wrapped error; anything else is an actual transport failure, logged
// through merr.Wrap so the line carries a stacktrace and this connection's
// annotations alongside the underlying error.
func (s *Server) logConnClosed(ctx context.Context, conn net.Conn, err error) {
	annotated := mctx.Annotate(ctx, "remoteAddr", conn.RemoteAddr().String())
	if errors.Is(err, io.EOF) {
		s.Log.Debug(annotated, "connection closed")
		return
	}
	s.Log.Debug(annotated, merr.Wrap(annotated, err).Error())
}
