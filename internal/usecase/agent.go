package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"MarketBrain/internal/domain/models"
	drepo "MarketBrain/internal/domain/repository"
	"MarketBrain/internal/domain/service"
	"MarketBrain/pkg/cycle"
	"MarketBrain/pkg/logger"
	"MarketBrain/pkg/util"
)

const (
	insightPreview = 100
	outputPreview  = 50
	researchTopic  = "Go service reliability and market data pipeline best practices"
)

var ErrCommandNotAllowed = errors.New("command not whitelisted")

// HealthCheck is one dependency probed by the agent.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// CommandRunner executes a maintenance command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

type AgentConfig struct {
	ScanRoot  string
	Command   string
	Whitelist []string
	Timeout   time.Duration
}

type AgentOption func(*Agent)

func WithAgentResearcher(r service.Researcher) AgentOption {
	return func(a *Agent) { a.researcher = r }
}

func WithAgentMetrics(m drepo.Metrics) AgentOption {
	return func(a *Agent) { a.metrics = m }
}

func WithAgentRunner(r CommandRunner) AgentOption {
	return func(a *Agent) { a.run = r }
}

func WithAgentLogger(log *logger.Logger) AgentOption {
	return func(a *Agent) { a.log = log }
}

// Agent is the maintenance loop body: health check, code scan, research and
// a whitelisted housekeeping command.
type Agent struct {
	cfg        AgentConfig
	checks     []HealthCheck
	researcher service.Researcher
	metrics    drepo.Metrics
	run        CommandRunner
	log        *logger.Logger
}

func NewAgent(cfg AgentConfig, checks []HealthCheck, opts ...AgentOption) *Agent {
	if cfg.ScanRoot == "" {
		cfg.ScanRoot = "."
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	a := &Agent{cfg: cfg, checks: checks, run: execRunner, log: logger.Nop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Agent) AIEnabled() bool { return a.researcher != nil }

func (a *Agent) Cycle(ctx context.Context, l *cycle.Loop) error {
	a.log.Info("Starting maintenance cycle", logger.Bool("ai_enabled", a.AIEnabled()))

	l.SetAction("Checking system health")
	if failed := a.checkHealth(ctx); failed > 0 {
		l.SetHealth(cycle.HealthHealing)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	l.SetAction("Scanning codebase")
	n, err := CountSourceFiles(a.cfg.ScanRoot)
	if err != nil {
		a.log.Warn("code scan failed", logger.String("root", a.cfg.ScanRoot), logger.Error(err))
	} else {
		a.log.Info("Code scan complete", logger.Int("go_files", n))
	}

	if a.researcher != nil {
		l.SetAction("Researching improvements")
		a.research(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	l.SetAction("Running maintenance")
	if out, err := a.RunMaintenance(ctx); err != nil {
		a.log.Warn("maintenance command skipped", logger.String("command", a.cfg.Command), logger.Error(err))
	} else {
		a.log.Info("Maintenance command finished", logger.String("output", out))
	}

	a.log.Info("Maintenance cycle complete")
	return nil
}

func (a *Agent) checkHealth(ctx context.Context) int {
	var failed int
	latencies := make(map[string]int64, len(a.checks))
	defer func() {
		if len(latencies) > 0 {
			a.log.Info("Health check complete", logger.Int("failed", failed), logger.Any("latency_ms", latencies))
		}
	}()
	for _, c := range a.checks {
		cctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
		start := time.Now()
		err := c.Ping(cctx)
		cancel()
		took := time.Since(start)
		latencies[c.Name] = took.Milliseconds()
		if a.metrics != nil {
			a.metrics.RecordLatency("health_"+c.Name, took.Seconds())
		}
		if err != nil {
			failed++
			a.log.Warn("health check failed", logger.String("check", c.Name), logger.Error(err))
			continue
		}
		a.log.Debug("health check ok", logger.String("check", c.Name), logger.Duration("latency_ms", took))
	}
	return failed
}

func (a *Agent) research(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()
	insight, err := a.researcher.Research(cctx, researchTopic)
	if err != nil {
		a.log.Warn("research failed", logger.Error(err))
		return
	}
	a.log.Info("AI insight", logger.String("insight", util.Truncate(insight, insightPreview)))
}

// RunMaintenance runs the configured command if it is whitelisted and returns
// the first characters of its output.
func (a *Agent) RunMaintenance(ctx context.Context) (string, error) {
	if !a.allowed(a.cfg.Command) {
		return "", fmt.Errorf("%w: %q", ErrCommandNotAllowed, a.cfg.Command)
	}
	parts := strings.Fields(a.cfg.Command)
	cctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()
	out, err := a.run(cctx, parts[0], parts[1:]...)
	if err != nil {
		return "", fmt.Errorf("run %q: %w", a.cfg.Command, err)
	}
	return util.Truncate(strings.TrimSpace(string(out)), outputPreview), nil
}

func (a *Agent) allowed(cmd string) bool {
	if strings.TrimSpace(cmd) == "" {
		return false
	}
	for _, w := range a.cfg.Whitelist {
		if w == cmd {
			return true
		}
	}
	return false
}

// Status maps the loop snapshot onto the agent status view.
func (a *Agent) Status(s cycle.Snapshot) models.AgentStatus {
	status := "Stopped"
	switch {
	case s.InCycle:
		status = "Active"
	case s.Running:
		status = "Idle"
	}
	return models.AgentStatus{
		IsRunning:     s.Running,
		Status:        status,
		LastRun:       s.LastCycle,
		CurrentAction: s.CurrentAction,
		AIEnabled:     a.AIEnabled(),
	}
}

// CountSourceFiles counts .go files under root, skipping hidden and vendor
// directories.
func CountSourceFiles(root string) (int, error) {
	var n int
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".go") {
			n++
		}
		return nil
	})
	return n, err
}
