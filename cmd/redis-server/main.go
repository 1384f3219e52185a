// Command redis-server is the process entry point: it parses CLI flags,
// loads the initial snapshot, and starts the listener, wiring together the
// Store, ReplicationCoordinator, and ConnectionLoop described in spec.md
// §2. Flag parsing, snapshot loading, and logging are the external
// collaborators spec.md §1 excludes from the core; this file is where they
// are glued to it, in the style of a thin main doing
// construction and deferring all logic to internal packages.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mediocregopher/mredis/internal/config"
	"github.com/mediocregopher/mredis/internal/mcfg"
	"github.com/mediocregopher/mredis/internal/mctx"
	"github.com/mediocregopher/mredis/internal/mlog"
	"github.com/mediocregopher/mredis/internal/mnet"
	"github.com/mediocregopher/mredis/internal/replication"
	"github.com/mediocregopher/mredis/internal/server"
	"github.com/mediocregopher/mredis/internal/snapshot"
	"github.com/mediocregopher/mredis/internal/store"
)

func main() {
	if err := run(); err != nil {
		mlog.Stderr.Fatal(context.Background(), err.Error())
	}
}

func run() error {
	flags, err := mcfg.Parse(os.Args[1:])
	if err != nil {
		return err
	}

	cfg := &config.Config{Port: flags.Port, Dir: flags.Dir, DBFilename: flags.DBFilename}
	if flags.ReplicaOf != "" {
		host, port, err := parseReplicaOf(flags.ReplicaOf)
		if err != nil {
			return err
		}
		cfg.Role = config.RoleReplica
		cfg.ReplicaOfHost = host
		cfg.ReplicaOfPort = port
	}

	ctx := mctx.Annotate(context.Background(), "role", cfg.Role.String(), "port", cfg.Port)

	initial, err := loadSnapshot(ctx, cfg)
	if err != nil {
		return err
	}

	st := store.New(initial)
	registry := replication.NewRegistry()
	coord := replication.NewCoordinator(cfg, registry)
	srv := server.New(cfg, st, coord, mlog.Stderr)

	if cfg.IsReplica() {
		upstream := fmt.Sprintf("%s:%d", cfg.ReplicaOfHost, cfg.ReplicaOfPort)
		go func() {
			if err := srv.RunReplica(ctx, upstream); err != nil {
				mlog.Stderr.Error(mctx.Annotate(ctx, "err", err.Error()), "replica link closed")
			}
		}()
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	l, err := mnet.Listen(ctx, addr, mlog.Stderr)
	if err != nil {
		return err
	}
	defer l.Close()

	return srv.Serve(ctx, l)
}

// loadSnapshot implements spec.md §6's persisted-state contract: when both
// flags are set, load the file at <dir>/<dbfilename> if it exists,
// otherwise create an empty one. With either flag unset it loads nothing
// and creates no file.
func loadSnapshot(ctx context.Context, cfg *config.Config) (map[string]store.InitialValue, error) {
	if cfg.Dir == "" || cfg.DBFilename == "" {
		return nil, nil
	}
	path := filepath.Join(cfg.Dir, cfg.DBFilename)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		mlog.Stderr.Info(mctx.Annotate(ctx, "path", path), "no snapshot found, creating empty one")
		return nil, snapshot.EnsureExists(path)
	}

	mlog.Stderr.Info(mctx.Annotate(ctx, "path", path), "loading snapshot")
	return snapshot.Load(path)
}

func parseReplicaOf(s string) (host string, port int, err error) {
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("--replicaof must be \"<host> <port>\", got %q", s)
	}
	p, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, fmt.Errorf("--replicaof port %q: %w", parts[1], err)
	}
	return parts[0], p, nil
}
