package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"MarketBrain/pkg/cycle"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResearcher struct {
	insight string
	calls   int
}

func (r *fakeResearcher) Research(context.Context, string) (string, error) {
	r.calls++
	return r.insight, nil
}

func TestCountSourceFiles(t *testing.T) {
	root := t.TempDir()
	write := func(rel string) {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("package x\n"), 0o644))
	}
	write("main.go")
	write("internal/a/a.go")
	write("internal/a/a_test.go")
	write("internal/a/README.md")
	write(".git/hooks/x.go")
	write("vendor/dep/dep.go")

	n, err := CountSourceFiles(root)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestAgent_RunMaintenance(t *testing.T) {
	var got []string
	runner := func(_ context.Context, name string, args ...string) ([]byte, error) {
		got = append([]string{name}, args...)
		return []byte("  " + strings.Repeat("x", 80) + "\n"), nil
	}
	a := NewAgent(AgentConfig{Command: "df -h", Whitelist: []string{"go version", "df -h"}}, nil, WithAgentRunner(runner))

	out, err := a.RunMaintenance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"df", "-h"}, got)
	assert.Len(t, out, 50)
}

func TestAgent_RejectsUnlistedCommand(t *testing.T) {
	called := false
	runner := func(context.Context, string, ...string) ([]byte, error) {
		called = true
		return nil, nil
	}
	a := NewAgent(AgentConfig{Command: "rm -rf /", Whitelist: []string{"uptime"}}, nil, WithAgentRunner(runner))

	_, err := a.RunMaintenance(context.Background())
	assert.ErrorIs(t, err, ErrCommandNotAllowed)
	assert.False(t, called)
}

func TestAgent_CycleMarksHealingOnFailedCheck(t *testing.T) {
	researcher := &fakeResearcher{insight: strings.Repeat("insight ", 40)}
	checks := []HealthCheck{
		{Name: "ledger", Ping: func(context.Context) error { return nil }},
		{Name: "cache", Ping: func(context.Context) error { return errors.New("connection refused") }},
	}
	runner := func(context.Context, string, ...string) ([]byte, error) { return []byte("go1.24"), nil }
	a := NewAgent(AgentConfig{ScanRoot: t.TempDir(), Command: "go version", Whitelist: []string{"go version"}},
		checks, WithAgentResearcher(researcher), WithAgentRunner(runner))

	loop := cycle.NewLoop("agent", a.Cycle)
	require.NoError(t, loop.RunOnce(context.Background()))
	assert.Equal(t, cycle.HealthHealing, loop.Health())
	assert.Equal(t, 1, researcher.calls)
	assert.True(t, a.AIEnabled())
}

func TestAgent_Status(t *testing.T) {
	a := NewAgent(AgentConfig{}, nil)
	now := time.Now()

	st := a.Status(cycle.StoppedSnapshot("agent"))
	assert.Equal(t, "Stopped", st.Status)
	assert.False(t, st.IsRunning)
	assert.False(t, st.AIEnabled)

	st = a.Status(cycle.Snapshot{Name: "agent", Running: true, LastCycle: &now, CurrentAction: "Idle"})
	assert.Equal(t, "Idle", st.Status)
	assert.Equal(t, &now, st.LastRun)

	st = a.Status(cycle.Snapshot{Name: "agent", Running: true, InCycle: true, CurrentAction: "Scanning codebase"})
	assert.Equal(t, "Active", st.Status)
	assert.Equal(t, "Scanning codebase", st.CurrentAction)
}
