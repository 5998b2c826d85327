// Package procs takes process snapshots and hands out signalable process handles
package procs

import (
	"context"
	"fmt"
	"sort"

	"memguard/internal/constants"
	"memguard/pkg/models"

	"github.com/shirou/gopsutil/v4/process"
	"github.com/sirupsen/logrus"
)

// Handle is a live process addressed by PID. Every call goes to the OS, so a
// process that exited after the snapshot makes the calls fail rather than panic.
type Handle interface {
	PID() int32
	RSS(ctx context.Context) (uint64, error)
	Terminate(ctx context.Context) error
	Kill(ctx context.Context) error
}

// System is the snapshot provider backed by gopsutil
type System struct {
	logger *logrus.Logger
}

// New creates a new snapshot provider
func New(logger *logrus.Logger) *System {
	return &System{logger: logger}
}

// Refresh enumerates all running processes. Processes that vanish or whose memory
// cannot be read are skipped; an unresolvable owner leaves OwnerUID empty.
func (s *System) Refresh(ctx context.Context) ([]models.ProcessRecord, error) {
	ps, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing processes: %w", err)
	}

	records := make([]models.ProcessRecord, 0, len(ps))
	for _, p := range ps {
		mem, err := p.MemoryInfoWithContext(ctx)
		if err != nil || mem == nil {
			s.logger.WithError(err).WithField("pid", p.Pid).Debug("Skipping process, memory unavailable")
			continue
		}

		name, err := p.NameWithContext(ctx)
		if err != nil {
			name = constants.ErrUnknownValue
		}

		var owner string
		if uids, err := p.UidsWithContext(ctx); err == nil && len(uids) > 0 {
			owner = fmt.Sprintf("%d", uids[0])
		}

		records = append(records, models.ProcessRecord{
			PID:         p.Pid,
			OwnerUID:    owner,
			Name:        name,
			MemoryBytes: mem.RSS,
		})
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].PID < records[j].PID
	})

	s.logger.WithField("processes", len(records)).Debug("Process snapshot refreshed")
	return records, nil
}

// Process returns a handle for pid without checking that it exists
func (s *System) Process(pid int32) Handle {
	return &gopsProcess{p: &process.Process{Pid: pid}}
}

type gopsProcess struct {
	p *process.Process
}

func (g *gopsProcess) PID() int32 {
	return g.p.Pid
}

func (g *gopsProcess) RSS(ctx context.Context) (uint64, error) {
	mem, err := g.p.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, err
	}
	if mem == nil {
		return 0, fmt.Errorf("no memory info for pid %d", g.p.Pid)
	}
	return mem.RSS, nil
}

// Terminate sends SIGTERM (unsupported on Windows)
func (g *gopsProcess) Terminate(ctx context.Context) error {
	return g.p.TerminateWithContext(ctx)
}

// Kill sends SIGKILL
func (g *gopsProcess) Kill(ctx context.Context) error {
	return g.p.KillWithContext(ctx)
}
