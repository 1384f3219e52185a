package replication

import (
	"fmt"
	"time"

	"github.com/mediocregopher/mredis/internal/config"
	"github.com/mediocregopher/mredis/internal/resp"
)

// Coordinator is the primary-side ReplicationCoordinator of spec.md §4.4:
// it owns write fan-out, acked-bytes accounting, and WAIT. The replica-side
// handshake client lives in handshake.go.
type Coordinator struct {
	cfg      *config.Config
	registry *Registry
}

// NewCoordinator returns a Coordinator fanning out to reg.
func NewCoordinator(cfg *config.Config, reg *Registry) *Coordinator {
	return &Coordinator{cfg: cfg, registry: reg}
}

// Registry exposes the underlying ReplicaRegistry, e.g. so a REPLCONF
// listening-port handler can register the connection.
func (c *Coordinator) Registry() *Registry { return c.registry }

// PropagateWrite re-encodes a write command's original argument array and
// fans it out to every replica, bumping acked_commands by its encoded
// length (spec.md §4.4: "when a write verb completes successfully on a
// primary... this happens unconditionally").
func (c *Coordinator) PropagateWrite(args []resp.Value) {
	encoded := resp.Encode(resp.ArrayValue(args...))
	c.registry.FanOut(encoded)
	c.registry.AddAckedCommands(int64(len(encoded)))
}

// replconfGetAck is the fixed "REPLCONF GETACK *" command WAIT broadcasts
// to replicas (spec.md §4.4 step 3).
var replconfGetAck = resp.Encode(resp.StringArray([]string{"REPLCONF", "GETACK", "*"}))

// Wait implements WAIT(min_replicas, timeout_ms) exactly as spec.md §4.4
// and §9's "Open question — WAIT after zero writes" specify.
func (c *Coordinator) Wait(minReplicas int, timeoutMs int64) int {
	c.registry.mu.Lock()
	defer c.registry.mu.Unlock()

	// spec.md §9: preserved verbatim even though no replica may have
	// finished its handshake yet.
	if c.registry.ackedCommands == 0 {
		return len(c.registry.replicas)
	}

	threshold := c.registry.ackedCommands
	if up := c.registry.upToDateCountLocked(threshold); up >= minReplicas {
		return up
	}

	c.registry.broadcastGetAckLocked(replconfGetAck)
	c.registry.ackedCommands += int64(len(replconfGetAck))

	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	for {
		if up := c.registry.upToDateCountLocked(threshold); up >= minReplicas {
			return up
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return c.registry.upToDateCountLocked(threshold)
		}

		// sync.Cond has no timed wait, so a timer broadcasts once more
		// when remaining elapses; same pattern as store.Store.waitLocked.
		timer := time.AfterFunc(remaining, func() {
			c.registry.mu.Lock()
			c.registry.ackCond.Broadcast()
			c.registry.mu.Unlock()
		})
		c.registry.ackCond.Wait()
		timer.Stop()
	}
}

// Info renders the INFO reply body required by spec.md §4.3: role, a fixed
// replication ID, and a static offset.
func (c *Coordinator) Info() string {
	return fmt.Sprintf("role:%s\r\nmaster_replid:%s\r\nmaster_repl_offset:0\r\n", c.cfg.Role, config.ReplicationID)
}
