package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"MarketBrain/internal/domain/models"
	"MarketBrain/pkg/cycle"
	"MarketBrain/pkg/logger"
)

const (
	LoopBrain   = "brain"
	LoopScanner = "scanner"
	LoopAgent   = "agent"
)

var (
	ErrUnknownLoop = errors.New("unknown loop")
	ErrLoopRunning = errors.New("loop already running")
)

// SystemStatus merges every loop's state with the ledger summary.
type SystemStatus struct {
	Loops       map[string]cycle.Snapshot `json:"loops"`
	Agent       models.AgentStatus        `json:"agent"`
	Ledger      models.LedgerStatus       `json:"ledger"`
	GeneratedAt time.Time                 `json:"generated_at"`
}

// Supervisor owns the named loops and answers control and status queries.
type Supervisor struct {
	mu     sync.RWMutex
	loops  map[string]*cycle.Loop
	base   context.Context
	ledger *Ledger
	agent  *Agent
	log    *logger.Logger
}

func NewSupervisor(ledger *Ledger, agent *Agent, log *logger.Logger) *Supervisor {
	if log == nil {
		log = logger.Nop()
	}
	return &Supervisor{
		loops:  make(map[string]*cycle.Loop),
		base:   context.Background(),
		ledger: ledger,
		agent:  agent,
		log:    log,
	}
}

// Bind registers a loop under its name, replacing any previous one.
func (s *Supervisor) Bind(l *cycle.Loop) {
	s.mu.Lock()
	s.loops[l.Name()] = l
	s.mu.Unlock()
}

func (s *Supervisor) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.loops))
	for n := range s.loops {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s *Supervisor) loop(name string) (*cycle.Loop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.loops[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLoop, name)
	}
	return l, nil
}

// StartAll starts the given loops under ctx. Later Start calls reuse ctx.
func (s *Supervisor) StartAll(ctx context.Context, names ...string) error {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()
	for _, n := range names {
		if err := s.Start(n); err != nil && !errors.Is(err, ErrLoopRunning) {
			return err
		}
	}
	return nil
}

func (s *Supervisor) Start(name string) error {
	l, err := s.loop(name)
	if err != nil {
		return err
	}
	s.mu.RLock()
	base := s.base
	s.mu.RUnlock()
	if err := l.Start(base); err != nil {
		if errors.Is(err, cycle.ErrAlreadyRunning) {
			return fmt.Errorf("%w: %s", ErrLoopRunning, name)
		}
		return err
	}
	return nil
}

// Stop requests a cooperative stop. Stopping a stopped loop is a no-op.
func (s *Supervisor) Stop(name string) error {
	l, err := s.loop(name)
	if err != nil {
		return err
	}
	l.Stop()
	return nil
}

// StopAll stops every loop and waits for their goroutines to exit.
func (s *Supervisor) StopAll() {
	s.mu.RLock()
	loops := make([]*cycle.Loop, 0, len(s.loops))
	for _, l := range s.loops {
		loops = append(loops, l)
	}
	s.mu.RUnlock()
	for _, l := range loops {
		l.Stop()
	}
	for _, l := range loops {
		l.Wait()
	}
}

// RunOnce executes a single cycle synchronously and returns its error.
func (s *Supervisor) RunOnce(ctx context.Context, name string) error {
	l, err := s.loop(name)
	if err != nil {
		return err
	}
	return l.RunOnce(ctx)
}

// Status never fails; loops that are not bound report as stopped.
func (s *Supervisor) Status() SystemStatus {
	st := SystemStatus{
		Loops:       make(map[string]cycle.Snapshot, 3),
		GeneratedAt: time.Now().UTC(),
	}
	for _, n := range []string{LoopBrain, LoopScanner, LoopAgent} {
		st.Loops[n] = cycle.StoppedSnapshot(n)
	}
	s.mu.RLock()
	for n, l := range s.loops {
		st.Loops[n] = l.Snapshot()
	}
	s.mu.RUnlock()

	if s.agent != nil {
		st.Agent = s.agent.Status(st.Loops[LoopAgent])
	} else {
		st.Agent = models.AgentStatus{Status: "Stopped", CurrentAction: st.Loops[LoopAgent].CurrentAction}
	}
	if s.ledger != nil {
		st.Ledger = s.ledger.Status()
	}
	return st
}
