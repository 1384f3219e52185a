// Package mnet wraps net.Listener with the debug logging mediocre-go-lib's mnet
// package provides, minus its mcfg/mrun component wiring: this process has
// one listener constructed directly in main, not a graph of components each
// declaring their own configurable listen address.
package mnet

import (
	"context"
	"net"

	"github.com/mediocregopher/mredis/internal/mctx"
	"github.com/mediocregopher/mredis/internal/mlog"
)

// Listener wraps a net.Listener, logging accepts and closes through the
// given Logger.
type Listener struct {
	net.Listener
	log *mlog.Logger
}

// Listen opens a TCP listener on addr and wraps it.
func Listen(ctx context.Context, addr string, log *mlog.Logger) (*Listener, error) {
	nl, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	log.Info(mctx.Annotate(ctx, "addr", nl.Addr().String()), "listening")
	return &Listener{Listener: nl, log: log}, nil
}

// Accept wraps net.Listener.Accept, logging each accepted connection.
func (l *Listener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return conn, err
	}
	l.log.Debug(
		mctx.Annotate(context.Background(), "remoteAddr", conn.RemoteAddr().String()),
		"connection accepted",
	)
	return conn, nil
}

// Close wraps net.Listener.Close, logging the shutdown.
func (l *Listener) Close() error {
	l.log.Info(context.Background(), "listener closing")
	return l.Listener.Close()
}
