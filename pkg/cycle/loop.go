package cycle

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"MarketBrain/pkg/logger"

	"github.com/robfig/cron/v3"
)

type State string

const (
	StateStopped State = "STOPPED"
	StateRunning State = "RUNNING"
	StateBackoff State = "BACKOFF"
)

type Health string

const (
	HealthHealthy  Health = "HEALTHY"
	HealthHealing  Health = "HEALING"
	HealthCritical Health = "CRITICAL"
)

const idleAction = "Idle"

var ErrAlreadyRunning = errors.New("cycle: loop already running")

// CycleFunc is one iteration of a loop. The loop handle lets the body
// publish its current action and health.
type CycleFunc func(ctx context.Context, l *Loop) error

// Observer receives cycle outcomes, typically a metrics recorder.
type Observer interface {
	ObserveCycle(loop string, d time.Duration, err error)
	ObserveHealth(loop string, h Health)
}

// Snapshot is a point-in-time copy of a loop's state.
type Snapshot struct {
	Name                string     `json:"name"`
	State               State      `json:"state"`
	Running             bool       `json:"running"`
	InCycle             bool       `json:"in_cycle"`
	Health              Health     `json:"health"`
	Schedule            string     `json:"schedule"`
	LastCycle           *time.Time `json:"last_cycle,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	CurrentAction       string     `json:"current_action"`
	LastError           string     `json:"last_error,omitempty"`
}

// StoppedSnapshot describes a loop that does not exist or never ran.
func StoppedSnapshot(name string) Snapshot {
	return Snapshot{Name: name, State: StateStopped, Health: HealthHealthy, CurrentAction: idleAction}
}

type Option func(*Loop)

func WithSchedule(s cron.Schedule) Option {
	return func(l *Loop) { l.schedule = s }
}

// WithBackoff sets the sleep after a failed cycle.
func WithBackoff(d time.Duration) Option {
	return func(l *Loop) { l.backoff = d }
}

// WithMinSleep sets the lower bound between two cycles.
func WithMinSleep(d time.Duration) Option {
	return func(l *Loop) { l.minSleep = d }
}

func WithObserver(o Observer) Option {
	return func(l *Loop) { l.observer = o }
}

// WithCriticalHook is called once when a loop enters a failure streak.
func WithCriticalHook(fn func(loop string, err error)) Option {
	return func(l *Loop) { l.onCritical = fn }
}

func WithLogger(log *logger.Logger) Option {
	return func(l *Loop) { l.log = log }
}

// Loop runs a CycleFunc repeatedly on its own goroutine.
type Loop struct {
	name       string
	fn         CycleFunc
	schedule   cron.Schedule
	backoff    time.Duration
	minSleep   time.Duration
	observer   Observer
	onCritical func(string, error)
	log        *logger.Logger

	mu        sync.RWMutex
	state     State
	health    Health
	inCycle   bool
	lastCycle time.Time
	failures  int
	action    string
	lastErr   string
	stopCh    chan struct{}
	done      chan struct{}

	cycleMu sync.Mutex
}

func NewLoop(name string, fn CycleFunc, opts ...Option) *Loop {
	l := &Loop{
		name:     name,
		fn:       fn,
		schedule: Every(5 * time.Minute),
		backoff:  60 * time.Second,
		minSleep: time.Second,
		log:      logger.Nop(),
		state:    StateStopped,
		health:   HealthHealthy,
		action:   idleAction,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loop) Name() string { return l.name }

// Start launches the loop goroutine. ctx bounds the loop's lifetime.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateStopped {
		return ErrAlreadyRunning
	}
	l.state = StateRunning
	l.stopCh = make(chan struct{})
	l.done = make(chan struct{})
	go l.run(ctx, l.stopCh, l.done)
	l.log.Info("loop started", logger.String("loop", l.name))
	return nil
}

// Stop asks the loop to exit. A cycle in progress completes first.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateStopped || l.stopCh == nil {
		return
	}
	select {
	case <-l.stopCh:
	default:
		close(l.stopCh)
		l.log.Info("loop stop requested", logger.String("loop", l.name))
	}
}

// Wait blocks until the loop goroutine has exited.
func (l *Loop) Wait() {
	l.mu.RLock()
	done := l.done
	l.mu.RUnlock()
	if done != nil {
		<-done
	}
}

// RunOnce executes a single cycle on the caller's goroutine.
// It never overlaps with a cycle of the running loop.
func (l *Loop) RunOnce(ctx context.Context) error {
	return l.runCycle(ctx)
}

func (l *Loop) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer func() {
		l.mu.Lock()
		l.state = StateStopped
		l.action = idleAction
		l.mu.Unlock()
		l.log.Info("loop stopped", logger.String("loop", l.name))
	}()

	for {
		start := time.Now()
		err := l.runCycle(ctx)

		var wait time.Duration
		if err != nil {
			l.setState(StateBackoff)
			wait = l.backoff
		} else {
			wait = l.schedule.Next(start).Sub(time.Now())
		}
		if wait < l.minSleep {
			wait = l.minSleep
		}

		timer := time.NewTimer(wait)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		l.setState(StateRunning)
	}
}

func (l *Loop) runCycle(ctx context.Context) error {
	l.cycleMu.Lock()
	defer l.cycleMu.Unlock()

	l.mu.Lock()
	l.inCycle = true
	l.health = HealthHealthy
	l.mu.Unlock()

	started := time.Now()
	err := l.call(ctx)
	elapsed := time.Since(started)

	l.mu.Lock()
	l.inCycle = false
	l.lastCycle = time.Now()
	l.action = idleAction
	firstFailure := false
	if err != nil {
		l.failures++
		firstFailure = l.failures == 1
		l.health = HealthCritical
		l.lastErr = err.Error()
	} else {
		l.failures = 0
		l.lastErr = ""
	}
	health := l.health
	failures := l.failures
	l.mu.Unlock()

	if l.observer != nil {
		l.observer.ObserveCycle(l.name, elapsed, err)
		l.observer.ObserveHealth(l.name, health)
	}

	if err != nil {
		l.log.Error("cycle failed",
			logger.String("loop", l.name),
			logger.Int("consecutive_failures", failures),
			logger.Duration("elapsed_ms", elapsed),
			logger.Error(err))
		if firstFailure && l.onCritical != nil {
			l.onCritical(l.name, err)
		}
		return err
	}
	l.log.Debug("cycle complete", logger.String("loop", l.name), logger.Duration("elapsed_ms", elapsed))
	return nil
}

func (l *Loop) call(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s cycle: %v", l.name, r)
			l.log.Error("cycle panic", logger.String("loop", l.name), logger.String("stack", string(debug.Stack())))
		}
	}()
	return l.fn(ctx, l)
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	if l.state != StateStopped {
		l.state = s
	}
	l.mu.Unlock()
}

// SetAction records what the cycle is doing right now.
func (l *Loop) SetAction(action string) {
	l.mu.Lock()
	l.action = action
	l.mu.Unlock()
}

// SetHealth overrides the loop health, e.g. HEALING after a repair.
func (l *Loop) SetHealth(h Health) {
	l.mu.Lock()
	l.health = h
	l.mu.Unlock()
	if l.observer != nil {
		l.observer.ObserveHealth(l.name, h)
	}
}

func (l *Loop) Health() Health {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.health
}

func (l *Loop) Running() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state != StateStopped
}

func (l *Loop) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s := Snapshot{
		Name:                l.name,
		State:               l.state,
		Running:             l.state != StateStopped,
		InCycle:             l.inCycle,
		Health:              l.health,
		Schedule:            Describe(l.schedule),
		ConsecutiveFailures: l.failures,
		CurrentAction:       l.action,
		LastError:           l.lastErr,
	}
	if !l.lastCycle.IsZero() {
		t := l.lastCycle
		s.LastCycle = &t
	}
	return s
}
