package engine

import (
	"context"
	"encoding/json"

	"github.com/icsd/icsd/internal/xerrors"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Ping answers a cluster liveness probe, enriched with a point-in-time
// host resource snapshot piggybacked onto the probe that already exists
// for this purpose rather than adding a new one.
type PingReply struct {
	CPUPercent float64
	MemPercent float64
}

// Ping satisfies the ping RPC.
func (e *Engine) Ping(ctx context.Context) PingReply {
	var reply PingReply
	if pcts, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pcts) > 0 {
		reply.CPUPercent = pcts[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		reply.MemPercent = vm.UsedPercent
	}
	return reply
}

// Dump returns a full snapshot of engine state for the dump RPC.
func (e *Engine) Dump() ([]byte, error) {
	snap := e.Snapshot()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, xerrors.Wrap(err, "marshal dump snapshot")
	}
	return data, nil
}

// LogCommand records a command invocation in the audit trail.
// remoteOrigin is empty for a command issued locally.
func (e *Engine) LogCommand(ctx context.Context, remoteOrigin, command, args, result string) error {
	if e.commandLog == nil {
		return nil
	}
	return e.commandLog.Append(ctx, e.NodeName(), remoteOrigin, command, args, result)
}

// ClusLogCommand records a cluster-form command invocation. Each node
// keeps its own audit trail of commands it actually executed locally;
// clus_log_command writes the entry exactly as log_command does.
func (e *Engine) ClusLogCommand(ctx context.Context, remoteOrigin, command, args, result string) error {
	return e.LogCommand(ctx, remoteOrigin, command, args, result)
}
