package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"MarketBrain/pkg/cycle"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingLoop(name string, n *atomic.Int32) *cycle.Loop {
	return cycle.NewLoop(name, func(context.Context, *cycle.Loop) error {
		n.Add(1)
		return nil
	}, cycle.WithSchedule(cycle.Every(time.Hour)))
}

func TestSupervisor_StatusReportsUnboundLoopsStopped(t *testing.T) {
	ledger, _, _, _ := newTestLedger(t)
	s := NewSupervisor(ledger, nil, nil)

	st := s.Status()
	require.Len(t, st.Loops, 3)
	for _, name := range []string{LoopBrain, LoopScanner, LoopAgent} {
		assert.Equal(t, cycle.StateStopped, st.Loops[name].State)
	}
	assert.Equal(t, "Stopped", st.Agent.Status)
	assert.Equal(t, "Active", st.Ledger.Status)
}

func TestSupervisor_UnknownLoop(t *testing.T) {
	s := NewSupervisor(nil, nil, nil)
	assert.ErrorIs(t, s.Start("trader"), ErrUnknownLoop)
	assert.ErrorIs(t, s.Stop("trader"), ErrUnknownLoop)
	assert.ErrorIs(t, s.RunOnce(context.Background(), "trader"), ErrUnknownLoop)
}

func TestSupervisor_StartStopLifecycle(t *testing.T) {
	var n atomic.Int32
	s := NewSupervisor(nil, nil, nil)
	s.Bind(countingLoop(LoopScanner, &n))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.StartAll(ctx, LoopScanner))
	assert.ErrorIs(t, s.Start(LoopScanner), ErrLoopRunning)

	assert.Eventually(t, func() bool { return n.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, s.Status().Loops[LoopScanner].Running)

	require.NoError(t, s.Stop(LoopScanner))
	s.StopAll()
	assert.Equal(t, cycle.StateStopped, s.Status().Loops[LoopScanner].State)
	require.NoError(t, s.Stop(LoopScanner))
}

func TestSupervisor_RunOnceReturnsCycleError(t *testing.T) {
	s := NewSupervisor(nil, nil, nil)
	boom := errors.New("boom")
	s.Bind(cycle.NewLoop(LoopBrain, func(context.Context, *cycle.Loop) error { return boom }))

	err := s.RunOnce(context.Background(), LoopBrain)
	assert.ErrorIs(t, err, boom)
	st := s.Status().Loops[LoopBrain]
	assert.Equal(t, cycle.HealthCritical, st.Health)
	assert.Equal(t, 1, st.ConsecutiveFailures)
	assert.Equal(t, cycle.StateStopped, st.State)
	assert.Equal(t, []string{LoopBrain}, s.Names())
}
