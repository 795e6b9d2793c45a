package server

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketBrain/internal/usecase"
	"MarketBrain/pkg/config"
	"MarketBrain/pkg/cycle"
	xhttp "MarketBrain/pkg/http"
)

func TestApp_EnabledLoops(t *testing.T) {
	cfg := config.Default()
	cfg.Agent.Enabled = false
	app := New(cfg, usecase.NewSupervisor(nil, nil, nil), nil, nil, nil, nil)
	assert.Equal(t, []string{usecase.LoopBrain, usecase.LoopScanner}, app.EnabledLoops())
}

func TestApp_RunContextStartsAndStopsLoops(t *testing.T) {
	cfg := config.Default()
	cfg.Server.ShutdownTimeout = 2 * time.Second

	var cycles atomic.Int32
	sup := usecase.NewSupervisor(nil, nil, nil)
	for _, name := range []string{usecase.LoopBrain, usecase.LoopScanner, usecase.LoopAgent} {
		sup.Bind(cycle.NewLoop(name, func(context.Context, *cycle.Loop) error {
			cycles.Add(1)
			return nil
		}, cycle.WithSchedule(cycle.Every(time.Hour))))
	}
	srv := xhttp.NewServer(nil, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(0))
	app := New(cfg, sup, srv, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.RunContext(ctx) }()

	require.Eventually(t, func() bool { return cycles.Load() == 3 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("RunContext did not return")
	}
	for _, s := range sup.Status().Loops {
		assert.Equal(t, cycle.StateStopped, s.State, s.Name)
	}
}
