package guard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"memguard/internal/terminate"
	"memguard/pkg/models"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mb = 1024 * 1024

type fakeSnapshot struct {
	mu      sync.Mutex
	records []models.ProcessRecord
	err     error
	calls   int
	onCall  func(n int)
}

func (f *fakeSnapshot) Refresh(context.Context) ([]models.ProcessRecord, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	if f.onCall != nil {
		f.onCall(n)
	}
	return f.records, f.err
}

type terminateCall struct {
	pid    int32
	reason string
}

type fakeTerminator struct {
	calls   []terminateCall
	outcome map[int32]terminate.Outcome
}

func (f *fakeTerminator) Terminate(_ context.Context, pid int32, reason string) terminate.Result {
	f.calls = append(f.calls, terminateCall{pid: pid, reason: reason})
	res := terminate.Result{PID: pid, Reason: reason, Outcome: f.outcome[pid]}
	if res.Outcome == terminate.OutcomeKillFailed {
		res.TermErr = errors.New("no such process")
		res.KillErr = errors.New("no such process")
	}
	return res
}

func (f *fakeTerminator) pids() []int32 {
	var pids []int32
	for _, c := range f.calls {
		pids = append(pids, c.pid)
	}
	return pids
}

type fakeCoupler struct {
	byUID map[string]int32
	calls []string
}

func (f *fakeCoupler) FindCoupled(_ context.Context, uid string) (int32, bool) {
	f.calls = append(f.calls, uid)
	pid, ok := f.byUID[uid]
	return pid, ok
}

func (f *fakeCoupler) Port() int { return 8000 }

func newTestGuard(snap Snapshotter, term *fakeTerminator, coupler *fakeCoupler) (*Guard, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	g := New(snap, term, coupler, Options{Ceiling: 100 * mb, Interval: time.Millisecond, SelfPID: 1}, logger)
	return g, hook
}

func TestRunCycleCoupledProcess(t *testing.T) {
	snap := &fakeSnapshot{records: []models.ProcessRecord{
		{PID: 10, OwnerUID: "u1", Name: "hog", MemoryBytes: 200 * mb},
		{PID: 11, OwnerUID: "u1", Name: "server", MemoryBytes: 50 * mb},
	}}
	term := &fakeTerminator{}
	coupler := &fakeCoupler{byUID: map[string]int32{"u1": 11}}
	g, hook := newTestGuard(snap, term, coupler)

	st := NewState()
	g.RunCycle(context.Background(), st)

	require.Equal(t, []terminateCall{
		{pid: 10, reason: "Memory limit exceeded"},
		{pid: 11, reason: "Coupled process (port 8000)"},
	}, term.calls)
	assert.Equal(t, []string{"u1"}, coupler.calls)
	assert.Equal(t, uint64(1), st.Cycle)
	assert.Equal(t, 2, st.Scanned)
	assert.Equal(t, 1, st.Violations)
	assert.Len(t, st.Handled, 2)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warned = true
			assert.Contains(t, e.Message, "Process 'hog' (PID: 10, UID: u1) killed by memguard")
			assert.Contains(t, e.Message, "Memory usage 200.00 MB exceeds limit 100.00 MB")
		}
	}
	assert.True(t, warned)
}

func TestRunCycleUnderCeiling(t *testing.T) {
	snap := &fakeSnapshot{records: []models.ProcessRecord{
		{PID: 10, OwnerUID: "u1", MemoryBytes: 50 * mb},
		{PID: 11, OwnerUID: "u1", MemoryBytes: 100 * mb},
	}}
	term := &fakeTerminator{}
	coupler := &fakeCoupler{byUID: map[string]int32{"u1": 11}}
	g, _ := newTestGuard(snap, term, coupler)

	st := NewState()
	g.RunCycle(context.Background(), st)

	assert.Empty(t, term.calls)
	assert.Empty(t, coupler.calls)
	assert.Zero(t, st.Violations)
}

func TestRunCycleEachViolatorOnce(t *testing.T) {
	snap := &fakeSnapshot{records: []models.ProcessRecord{
		{PID: 20, OwnerUID: "u1", MemoryBytes: 300 * mb},
		{PID: 21, OwnerUID: "u2", MemoryBytes: 400 * mb},
		{PID: 22, OwnerUID: "u1", MemoryBytes: 500 * mb},
	}}
	term := &fakeTerminator{}
	g, _ := newTestGuard(snap, term, &fakeCoupler{})

	st := NewState()
	g.RunCycle(context.Background(), st)

	assert.Equal(t, []int32{20, 21, 22}, term.pids())
	assert.Equal(t, 3, st.Violations)
}

func TestRunCycleCoupledIsAlsoViolator(t *testing.T) {
	snap := &fakeSnapshot{records: []models.ProcessRecord{
		{PID: 10, OwnerUID: "u1", MemoryBytes: 200 * mb},
		{PID: 11, OwnerUID: "u1", MemoryBytes: 300 * mb},
	}}
	term := &fakeTerminator{}
	coupler := &fakeCoupler{byUID: map[string]int32{"u1": 11}}
	g, _ := newTestGuard(snap, term, coupler)

	g.RunCycle(context.Background(), NewState())

	assert.Equal(t, []int32{10, 11}, term.pids())
}

func TestRunCycleCoupledIsViolatorItself(t *testing.T) {
	snap := &fakeSnapshot{records: []models.ProcessRecord{
		{PID: 10, OwnerUID: "u1", MemoryBytes: 200 * mb},
	}}
	term := &fakeTerminator{}
	coupler := &fakeCoupler{byUID: map[string]int32{"u1": 10}}
	g, _ := newTestGuard(snap, term, coupler)

	g.RunCycle(context.Background(), NewState())

	assert.Equal(t, []int32{10}, term.pids())
}

func TestRunCycleSkipsUnknownOwner(t *testing.T) {
	snap := &fakeSnapshot{records: []models.ProcessRecord{
		{PID: 10, Name: "ghost", MemoryBytes: 200 * mb},
	}}
	term := &fakeTerminator{}
	coupler := &fakeCoupler{}
	g, _ := newTestGuard(snap, term, coupler)

	st := NewState()
	g.RunCycle(context.Background(), st)

	assert.Empty(t, term.calls)
	assert.Empty(t, coupler.calls)
	assert.Equal(t, 1, st.Violations)
}

func TestRunCycleNeverTargetsSelf(t *testing.T) {
	snap := &fakeSnapshot{records: []models.ProcessRecord{
		{PID: 1, OwnerUID: "0", MemoryBytes: 200 * mb},
		{PID: 10, OwnerUID: "0", MemoryBytes: 200 * mb},
	}}
	term := &fakeTerminator{}
	coupler := &fakeCoupler{byUID: map[string]int32{"0": 1}}
	g, _ := newTestGuard(snap, term, coupler)

	g.RunCycle(context.Background(), NewState())

	assert.Equal(t, []int32{10}, term.pids())
}

func TestRunCycleContinuesAfterKillFailure(t *testing.T) {
	snap := &fakeSnapshot{records: []models.ProcessRecord{
		{PID: 10, OwnerUID: "u1", MemoryBytes: 200 * mb},
		{PID: 12, OwnerUID: "u1", MemoryBytes: 200 * mb},
	}}
	term := &fakeTerminator{outcome: map[int32]terminate.Outcome{10: terminate.OutcomeKillFailed}}
	g, hook := newTestGuard(snap, term, &fakeCoupler{})

	g.RunCycle(context.Background(), NewState())

	assert.Equal(t, []int32{10, 12}, term.pids())
	var errorLogged bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			errorLogged = true
			assert.Equal(t, "Memory limit exceeded - Failed to kill process 10", e.Message)
		}
	}
	assert.True(t, errorLogged)
}

func TestRunCycleSnapshotError(t *testing.T) {
	snap := &fakeSnapshot{
		records: []models.ProcessRecord{{PID: 10, OwnerUID: "u1", MemoryBytes: 200 * mb}},
		err:     errors.New("permission denied"),
	}
	term := &fakeTerminator{}
	g, _ := newTestGuard(snap, term, &fakeCoupler{})

	g.RunCycle(context.Background(), NewState())

	assert.Equal(t, []int32{10}, term.pids())
}

func TestRunCycleResetsState(t *testing.T) {
	snap := &fakeSnapshot{records: []models.ProcessRecord{
		{PID: 10, OwnerUID: "u1", MemoryBytes: 200 * mb},
	}}
	term := &fakeTerminator{}
	g, _ := newTestGuard(snap, term, &fakeCoupler{})

	st := NewState()
	g.RunCycle(context.Background(), st)
	g.RunCycle(context.Background(), st)

	assert.Equal(t, uint64(2), st.Cycle)
	assert.Equal(t, 1, st.Violations)
	assert.Len(t, st.Handled, 1)
	assert.Equal(t, []int32{10, 10}, term.pids())
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snap := &fakeSnapshot{onCall: func(n int) {
		if n == 3 {
			cancel()
		}
	}}
	g, _ := newTestGuard(snap, &fakeTerminator{}, &fakeCoupler{})

	done := make(chan error, 1)
	go func() {
		done <- g.Run(ctx)
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit after context cancellation")
	}

	snap.mu.Lock()
	defer snap.mu.Unlock()
	assert.Equal(t, 3, snap.calls)
}
