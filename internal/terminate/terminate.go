// Package terminate implements the escalating kill procedure: diagnostic message,
// SIGTERM, grace period, SIGKILL.
package terminate

import (
	"context"
	"time"

	"memguard/internal/procs"
)

// Outcome is the final state of a termination attempt
type Outcome int

const (
	// OutcomeTerminated means SIGTERM was delivered and the grace period elapsed
	OutcomeTerminated Outcome = iota
	// OutcomeKilled means SIGTERM failed and SIGKILL was delivered
	OutcomeKilled
	// OutcomeKillFailed means neither signal could be delivered
	OutcomeKillFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeTerminated:
		return "terminated"
	case OutcomeKilled:
		return "killed"
	case OutcomeKillFailed:
		return "kill_failed"
	default:
		return "unknown"
	}
}

// ProcessLookup hands out process handles by PID
type ProcessLookup interface {
	Process(pid int32) procs.Handle
}

// Result records what happened at every step of a termination. Failures are
// carried as values, Terminate itself never fails.
type Result struct {
	PID         int32
	Reason      string
	Memory      uint64
	MemoryKnown bool
	Notified    bool
	Outcome     Outcome

	MemoryErr error
	NotifyErr error
	TermErr   error
	KillErr   error
}

// Terminator runs the termination protocol
type Terminator struct {
	procs       ProcessLookup
	notifier    Notifier
	ceiling     uint64
	gracePeriod time.Duration
	sleep       func(time.Duration)
}

// New creates a new terminator. ceiling is only used in the diagnostic message.
func New(lookup ProcessLookup, notifier Notifier, ceiling uint64, gracePeriod time.Duration) *Terminator {
	return &Terminator{
		procs:       lookup,
		notifier:    notifier,
		ceiling:     ceiling,
		gracePeriod: gracePeriod,
		sleep:       time.Sleep,
	}
}

// Terminate asks pid to exit with SIGTERM and falls back to SIGKILL when the
// signal cannot be delivered. Whether the process actually exited after the
// grace period is not verified.
func (t *Terminator) Terminate(ctx context.Context, pid int32, reason string) Result {
	res := Result{PID: pid, Reason: reason}
	h := t.procs.Process(pid)

	if mem, err := h.RSS(ctx); err != nil {
		res.MemoryErr = err
	} else {
		res.Memory = mem
		res.MemoryKnown = true
	}

	// A process whose memory can no longer be read has no stderr to write to.
	if res.MemoryKnown {
		if err := t.notifier.Notify(pid, Message(res.Memory, t.ceiling)); err != nil {
			res.NotifyErr = err
		} else {
			res.Notified = true
		}
	}

	termErr := h.Terminate(ctx)
	if termErr == nil {
		t.sleep(t.gracePeriod)
		res.Outcome = OutcomeTerminated
		return res
	}
	res.TermErr = termErr

	if err := h.Kill(ctx); err != nil {
		res.KillErr = err
		res.Outcome = OutcomeKillFailed
		return res
	}
	res.Outcome = OutcomeKilled
	return res
}
