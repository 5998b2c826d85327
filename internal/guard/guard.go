// Package guard runs the scan-and-enforce loop
package guard

import (
	"context"
	"fmt"
	"time"

	"memguard/internal/constants"
	"memguard/internal/terminate"
	"memguard/internal/units"
	"memguard/pkg/models"

	"github.com/sirupsen/logrus"
)

// Snapshotter produces a fresh process snapshot
type Snapshotter interface {
	Refresh(ctx context.Context) ([]models.ProcessRecord, error)
}

// Terminator runs the termination protocol for one pid
type Terminator interface {
	Terminate(ctx context.Context, pid int32, reason string) terminate.Result
}

// Coupler finds the coupled process of a user
type Coupler interface {
	FindCoupled(ctx context.Context, ownerUID string) (int32, bool)
	Port() int
}

// Options holds the immutable loop settings
type Options struct {
	Ceiling  uint64
	Interval time.Duration
	SelfPID  int32
}

// State is owned by the caller and carried from one cycle to the next.
// Everything but Cycle is reset at the start of each cycle.
type State struct {
	Cycle      uint64
	Scanned    int
	Violations int
	// Handled holds the pids terminate was invoked on during the current cycle
	Handled map[int32]terminate.Result
}

// NewState creates an empty loop state
func NewState() *State {
	return &State{Handled: make(map[int32]terminate.Result)}
}

func (s *State) begin() {
	s.Cycle++
	s.Scanned = 0
	s.Violations = 0
	s.Handled = make(map[int32]terminate.Result)
}

// Guard enforces the memory ceiling over all processes
type Guard struct {
	snapshots     Snapshotter
	terminator    Terminator
	coupler       Coupler
	logger        *logrus.Logger
	opts          Options
	coupledReason string
}

// New creates a new guard
func New(snapshots Snapshotter, terminator Terminator, coupler Coupler, opts Options, logger *logrus.Logger) *Guard {
	return &Guard{
		snapshots:     snapshots,
		terminator:    terminator,
		coupler:       coupler,
		logger:        logger,
		opts:          opts,
		coupledReason: fmt.Sprintf(constants.ReasonCoupled, coupler.Port()),
	}
}

// Run scans and enforces every interval until ctx is cancelled
func (g *Guard) Run(ctx context.Context) error {
	st := NewState()
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
		if ctx.Err() != nil {
			g.logger.WithField("cycles", st.Cycle).Info("Stopping memguard")
			return nil
		}

		g.RunCycle(ctx, st)
		timer.Reset(g.opts.Interval)
	}
}

// RunCycle refreshes the snapshot once and escalates every violator in it
func (g *Guard) RunCycle(ctx context.Context, st *State) {
	st.begin()

	records, err := g.snapshots.Refresh(ctx)
	if err != nil {
		g.logger.WithError(err).Warn("Process snapshot incomplete")
	}
	st.Scanned = len(records)

	for _, rec := range records {
		if rec.MemoryBytes <= g.opts.Ceiling {
			continue
		}
		if rec.PID == g.opts.SelfPID {
			continue
		}
		st.Violations++
		g.enforce(ctx, st, rec)
	}

	if st.Violations > 0 {
		g.logger.WithFields(logrus.Fields{
			"cycle":      st.Cycle,
			"scanned":    st.Scanned,
			"violations": st.Violations,
			"terminated": len(st.Handled),
		}).Info("Enforcement cycle completed")
	}
}

func (g *Guard) enforce(ctx context.Context, st *State, rec models.ProcessRecord) {
	if !rec.HasOwner() {
		g.logger.WithFields(logrus.Fields{
			"pid":    rec.PID,
			"name":   rec.Name,
			"memory": units.FormatBytes(rec.MemoryBytes),
		}).Debug("Skipping violator with unknown owner")
		return
	}

	g.logger.WithFields(logrus.Fields{
		"pid":    rec.PID,
		"uid":    rec.OwnerUID,
		"name":   rec.Name,
		"memory": rec.MemoryBytes,
		"limit":  g.opts.Ceiling,
	}).Warnf("Process '%s' (PID: %d, UID: %s) killed by memguard: Memory usage %s exceeds limit %s",
		rec.Name, rec.PID, rec.OwnerUID, units.FormatBytes(rec.MemoryBytes), units.FormatBytes(g.opts.Ceiling))

	g.terminate(ctx, st, rec.PID, constants.ReasonMemoryExceeded)

	coupled, found := g.coupler.FindCoupled(ctx, rec.OwnerUID)
	if !found || coupled == rec.PID || coupled == g.opts.SelfPID {
		return
	}
	g.terminate(ctx, st, coupled, g.coupledReason)
}

// terminate runs the protocol at most once per pid per cycle
func (g *Guard) terminate(ctx context.Context, st *State, pid int32, reason string) {
	if _, done := st.Handled[pid]; done {
		g.logger.WithFields(logrus.Fields{"pid": pid, "reason": reason}).Debug("Process already handled this cycle")
		return
	}
	res := g.terminator.Terminate(ctx, pid, reason)
	st.Handled[pid] = res
	g.logResult(res)
}

func (g *Guard) logResult(res terminate.Result) {
	entry := g.logger.WithFields(logrus.Fields{
		"pid":     res.PID,
		"reason":  res.Reason,
		"outcome": res.Outcome.String(),
	})

	if res.MemoryErr != nil {
		entry.WithError(res.MemoryErr).Debug("Memory lookup failed, process may have exited")
	}
	if res.NotifyErr != nil {
		entry.WithError(res.NotifyErr).Debug("Could not write message to process stderr")
	}

	switch res.Outcome {
	case terminate.OutcomeTerminated:
		entry.Infof("%s - Sent SIGTERM to process %d", res.Reason, res.PID)
	case terminate.OutcomeKilled:
		entry.WithField("sigterm_error", res.TermErr).Infof("%s - Sent SIGKILL to process %d", res.Reason, res.PID)
	case terminate.OutcomeKillFailed:
		entry.WithError(res.KillErr).WithField("sigterm_error", res.TermErr).Errorf("%s - Failed to kill process %d", res.Reason, res.PID)
	}
}
