package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"MarketBrain/internal/domain/models"
	drepo "MarketBrain/internal/domain/repository"
	"MarketBrain/pkg/logger"
	"MarketBrain/pkg/util"

	"github.com/google/uuid"
)

const (
	NoHistoryText    = "No past performance data available for this asset."
	neutralBand      = 0.01
	maxStatusLessons = 5
	contextLessons   = 3
	storeTimeout     = 10 * time.Second
)

// ValidationRecorder receives one call per validated row.
type ValidationRecorder interface {
	RecordValidation(kind, outcome string)
}

type LedgerOption func(*Ledger)

// WithValidationDelay sets how old a prediction must be before it is checked.
func WithValidationDelay(d time.Duration) LedgerOption {
	return func(l *Ledger) { l.delay = d }
}

func WithEventPublisher(p drepo.EventPublisher) LedgerOption {
	return func(l *Ledger) { l.publisher = p }
}

func WithValidationRecorder(r ValidationRecorder) LedgerOption {
	return func(l *Ledger) { l.recorder = r }
}

func WithLedgerLogger(log *logger.Logger) LedgerOption {
	return func(l *Ledger) { l.log = log }
}

func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

// Ledger is the in-memory authority over predictions and patterns.
// Every mutation is flushed to the store; a failed flush is logged and the
// in-memory state is kept. Mutators hold writeMu across mutate-and-flush so
// rows reach the store in order; mu is released before the flush, so readers
// never wait on the store.
type Ledger struct {
	mu          sync.RWMutex
	writeMu     sync.Mutex
	predictions []models.Prediction
	patterns    []models.PatternEvent

	store     drepo.LedgerStore
	tunables  *Tunables
	publisher drepo.EventPublisher
	recorder  ValidationRecorder
	delay     time.Duration
	log       *logger.Logger
	now       func() time.Time
}

// NewLedger loads the store. A failed load starts from an empty ledger.
func NewLedger(ctx context.Context, store drepo.LedgerStore, tunables *Tunables, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		store:    store,
		tunables: tunables,
		delay:    24 * time.Hour,
		log:      logger.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.tunables == nil {
		l.tunables = NewTunables(ConfidenceLoose)
	}

	preds, pats, err := store.Load(ctx)
	if err != nil {
		l.log.Warn("ledger load failed, starting empty", logger.Error(err))
		return l
	}
	l.predictions = preds
	l.patterns = pats
	l.log.Info("ledger loaded",
		logger.Int("predictions", len(preds)),
		logger.Int("patterns", len(pats)))
	return l
}

func (l *Ledger) Tunables() *Tunables { return l.tunables }

// RecordPrediction appends a prediction. Calls with an empty symbol or a
// non-positive issue price are ignored and return false.
func (l *Ledger) RecordPrediction(ctx context.Context, symbol string, signal models.Signal, predictedPrice, currentPrice float64, horizonDays int, rationale string) (models.Prediction, bool) {
	if symbol == "" || currentPrice <= 0 || !finite(predictedPrice) {
		l.log.Warn("prediction rejected", logger.String("symbol", symbol), logger.Float("current_price", currentPrice))
		return models.Prediction{}, false
	}
	p := models.Prediction{
		ID:             uuid.NewString(),
		Symbol:         symbol,
		IssuedAt:       l.now().UTC(),
		Signal:         signal,
		PredictedPrice: predictedPrice,
		PriceAtIssue:   currentPrice,
		HorizonDays:    horizonDays,
		Rationale:      rationale,
	}

	l.writeMu.Lock()
	l.mu.Lock()
	l.predictions = append(l.predictions, p)
	l.mu.Unlock()
	l.flushPredictions(ctx, []models.Prediction{p})

	l.log.Info("prediction recorded",
		logger.String("symbol", symbol),
		logger.String("signal", string(signal)),
		logger.Float("price", currentPrice))
	l.publish(ctx, []models.LedgerEvent{{Kind: models.EventPredictionRecorded, Symbol: symbol, At: p.IssuedAt, Payload: p}})
	return p, true
}

// ValidatePredictions settles every outstanding prediction for symbol that is
// older than the validation delay. Repeated calls are no-ops.
func (l *Ledger) ValidatePredictions(ctx context.Context, symbol string, observed float64) int {
	if observed <= 0 || !finite(observed) {
		return 0
	}
	now := l.now().UTC()

	l.writeMu.Lock()
	l.mu.Lock()
	var changed []models.Prediction
	for i := range l.predictions {
		p := &l.predictions[i]
		if p.Symbol != symbol || p.Validated || now.Sub(p.IssuedAt) < l.delay {
			continue
		}
		price := observed
		at := now
		p.Validated = true
		p.Outcome = judgePrediction(p.Signal, p.PriceAtIssue, observed)
		p.ActualPrice = &price
		p.ValidatedAt = &at
		changed = append(changed, *p)
	}
	if len(changed) == 0 {
		l.mu.Unlock()
		l.writeMu.Unlock()
		return 0
	}
	l.mu.Unlock()
	l.flushPredictions(ctx, changed)

	events := make([]models.LedgerEvent, 0, len(changed))
	for _, p := range changed {
		l.record("prediction", string(p.Outcome))
		events = append(events, models.LedgerEvent{Kind: models.EventPredictionValidated, Symbol: symbol, At: now, Payload: p})
	}
	l.log.Info("predictions validated", logger.String("symbol", symbol), logger.Int("count", len(changed)), logger.Float("price", observed))
	l.publish(ctx, events)
	return len(changed)
}

func judgePrediction(signal models.Signal, issue, observed float64) models.Outcome {
	correct := false
	switch signal {
	case models.SignalBuy:
		correct = observed > issue
	case models.SignalSell:
		correct = observed < issue
	case models.SignalNeutral:
		correct = issue > 0 && math.Abs(observed-issue)/issue < neutralBand
	}
	if correct {
		return models.OutcomeCorrect
	}
	return models.OutcomeIncorrect
}

// RecordPattern stores a detected pattern unless the same symbol and name was
// already recorded on the current UTC calendar day.
func (l *Ledger) RecordPattern(ctx context.Context, symbol string, c models.PatternCandidate, entryPrice float64) (models.PatternEvent, bool) {
	if symbol == "" || c.Name == "" {
		return models.PatternEvent{}, false
	}
	now := l.now().UTC()

	l.writeMu.Lock()
	l.mu.Lock()
	for _, existing := range l.patterns {
		if existing.Symbol == symbol && existing.Name == c.Name && util.SameDay(existing.DetectedAt, now) {
			l.mu.Unlock()
			l.writeMu.Unlock()
			return models.PatternEvent{}, false
		}
	}
	ev := models.PatternEvent{
		ID:          uuid.NewString(),
		Symbol:      symbol,
		Name:        c.Name,
		Type:        c.Type,
		DetectedAt:  now,
		EntryPrice:  entryPrice,
		Target:      c.Target,
		StopLoss:    c.StopLoss,
		Confidence:  c.Confidence,
		Description: c.Description,
		Source:      c.Source,
	}
	l.patterns = append(l.patterns, ev)
	l.mu.Unlock()
	l.flushPatterns(ctx, []models.PatternEvent{ev})

	l.log.Info("pattern recorded", logger.String("symbol", symbol), logger.String("pattern", c.Name))
	l.publish(ctx, []models.LedgerEvent{{Kind: models.EventPatternRecorded, Symbol: symbol, At: now, Payload: ev}})
	return ev, true
}

// ValidatePatterns settles outstanding patterns that have crossed their target
// or stop. The target is checked first.
func (l *Ledger) ValidatePatterns(ctx context.Context, symbol string, observed float64) int {
	if observed <= 0 || !finite(observed) {
		return 0
	}
	now := l.now().UTC()

	l.writeMu.Lock()
	l.mu.Lock()
	var changed []models.PatternEvent
	for i := range l.patterns {
		p := &l.patterns[i]
		if p.Symbol != symbol || p.Validated || !p.Validatable() {
			continue
		}
		outcome := judgePattern(p.Type, *p.Target, *p.StopLoss, observed)
		if outcome == models.OutcomeUnset {
			continue
		}
		price := observed
		at := now
		p.Validated = true
		p.Outcome = outcome
		p.ExitPrice = &price
		p.ValidatedAt = &at
		changed = append(changed, *p)
	}
	if len(changed) == 0 {
		l.mu.Unlock()
		l.writeMu.Unlock()
		return 0
	}
	l.mu.Unlock()
	l.flushPatterns(ctx, changed)

	events := make([]models.LedgerEvent, 0, len(changed))
	for _, p := range changed {
		l.record("pattern", string(p.Outcome))
		events = append(events, models.LedgerEvent{Kind: models.EventPatternValidated, Symbol: symbol, At: now, Payload: p})
	}
	l.log.Info("patterns validated", logger.String("symbol", symbol), logger.Int("count", len(changed)))
	l.publish(ctx, events)
	return len(changed)
}

func judgePattern(t models.PatternType, target, stop, observed float64) models.Outcome {
	switch t {
	case models.PatternBullish:
		if observed >= target {
			return models.OutcomeSuccess
		}
		if observed <= stop {
			return models.OutcomeFailure
		}
	case models.PatternBearish:
		if observed <= target {
			return models.OutcomeSuccess
		}
		if observed >= stop {
			return models.OutcomeFailure
		}
	}
	return models.OutcomeUnset
}

// Validate runs both validations for one observation.
func (l *Ledger) Validate(ctx context.Context, symbol string, observed float64) models.ValidationResult {
	return models.ValidationResult{
		Predictions: l.ValidatePredictions(ctx, symbol, observed),
		Patterns:    l.ValidatePatterns(ctx, symbol, observed),
	}
}

// Accuracy is the percentage of correct validated predictions, rounded to
// one decimal. An empty symbol covers all symbols.
func (l *Ledger) Accuracy(symbol string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	correct, total := l.tally(symbol)
	return util.Round1(util.Percent(correct, total))
}

// ValidatedCount returns the number of validated predictions for symbol, or all when empty.
func (l *Ledger) ValidatedCount(symbol string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, total := l.tally(symbol)
	return total
}

func (l *Ledger) tally(symbol string) (correct, total int) {
	for _, p := range l.predictions {
		if !p.Validated || (symbol != "" && p.Symbol != symbol) {
			continue
		}
		total++
		if p.Outcome == models.OutcomeCorrect {
			correct++
		}
	}
	return correct, total
}

// PatternSuccessRate summarises validated patterns, optionally filtered by name.
func (l *Ledger) PatternSuccessRate(name string) models.PatternPerformance {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var success, total int
	for _, p := range l.patterns {
		if !p.Validated || (name != "" && p.Name != name) {
			continue
		}
		total++
		if p.Outcome == models.OutcomeSuccess {
			success++
		}
	}
	return models.PatternPerformance{Name: name, Total: total, SuccessRate: util.Round1(util.Percent(success, total))}
}

// LearningContext digests validated history for prompt construction.
func (l *Ledger) LearningContext(symbol string) models.LearningContext {
	l.mu.RLock()
	defer l.mu.RUnlock()

	correct, total := l.tally(symbol)
	lc := models.LearningContext{Symbol: symbol}
	if total == 0 {
		lc.Summary = NoHistoryText
		return lc
	}
	lc.HasData = true
	lc.Total = total
	lc.Correct = correct
	lc.Accuracy = util.Round1(util.Percent(correct, total))

	summary := fmt.Sprintf("Past performance for %s: %d of %d validated predictions were correct (%.1f%% accuracy).",
		symbol, correct, total, lc.Accuracy)
	for _, lesson := range l.lessons(symbol, contextLessons) {
		summary += " " + lesson
	}
	lc.Summary = summary
	return lc
}

// RecentPatterns returns up to limit patterns, newest first, as copies.
func (l *Ledger) RecentPatterns(limit int) []models.PatternEvent {
	l.mu.RLock()
	out := make([]models.PatternEvent, len(l.patterns))
	copy(out, l.patterns)
	l.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].DetectedAt.After(out[j].DetectedAt) })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Status summarises the ledger for the health reporter.
func (l *Ledger) Status() models.LedgerStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()
	correct, total := l.tally("")
	lessons := l.lessons("", maxStatusLessons)
	if lessons == nil {
		lessons = []string{}
	}
	return models.LedgerStatus{
		Status:               "Active",
		Accuracy:             util.Round1(util.Percent(correct, total)),
		TotalPredictions:     len(l.predictions),
		ValidatedPredictions: total,
		TotalPatterns:        len(l.patterns),
		Lessons:              lessons,
		Parameters:           l.tunables.Snapshot(),
	}
}

// lessons lists validated predictions newest first. Caller holds mu.
func (l *Ledger) lessons(symbol string, n int) []string {
	validated := make([]models.Prediction, 0)
	for _, p := range l.predictions {
		if p.Validated && (symbol == "" || p.Symbol == symbol) {
			validated = append(validated, p)
		}
	}
	sort.SliceStable(validated, func(i, j int) bool { return validated[i].IssuedAt.After(validated[j].IssuedAt) })
	var out []string
	for _, p := range validated {
		if len(out) >= n {
			break
		}
		out = append(out, fmt.Sprintf("I predicted %s would %s, and it was %s.", p.Symbol, p.Signal, p.Outcome))
	}
	return out
}

// OutstandingSymbols lists symbols with rows that a price observation could settle.
func (l *Ledger) OutstandingSymbols() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, p := range l.predictions {
		if !p.Validated {
			seen[p.Symbol] = struct{}{}
		}
	}
	for _, p := range l.patterns {
		if !p.Validated && p.Validatable() {
			seen[p.Symbol] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Ping checks the backing store.
func (l *Ledger) Ping(ctx context.Context) error { return l.store.Ping(ctx) }

// flushPredictions writes rows to the store and releases writeMu.
func (l *Ledger) flushPredictions(ctx context.Context, rows []models.Prediction) {
	defer l.writeMu.Unlock()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	if err := l.store.SavePredictions(ctx, rows); err != nil {
		l.log.Error("ledger flush failed", logger.String("kind", "prediction"), logger.Int("rows", len(rows)), logger.Error(err))
	}
}

// flushPatterns writes rows to the store and releases writeMu.
func (l *Ledger) flushPatterns(ctx context.Context, rows []models.PatternEvent) {
	defer l.writeMu.Unlock()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	if err := l.store.SavePatterns(ctx, rows); err != nil {
		l.log.Error("ledger flush failed", logger.String("kind", "pattern"), logger.Int("rows", len(rows)), logger.Error(err))
	}
}

func (l *Ledger) publish(ctx context.Context, events []models.LedgerEvent) {
	if l.publisher == nil {
		return
	}
	for _, ev := range events {
		if err := l.publisher.PublishEvent(ctx, ev); err != nil {
			l.log.Warn("ledger event publish failed", logger.String("kind", ev.Kind), logger.Error(err))
		}
	}
}

func (l *Ledger) record(kind, outcome string) {
	if l.recorder != nil {
		l.recorder.RecordValidation(kind, outcome)
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
