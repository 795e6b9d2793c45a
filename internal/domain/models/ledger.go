package models

import "time"

type Signal string

const (
	SignalBuy     Signal = "Buy"
	SignalSell    Signal = "Sell"
	SignalNeutral Signal = "Neutral"
)

// ParseSignal maps free-form labels onto the three signals; unknown input is Neutral.
func ParseSignal(s string) Signal {
	switch s {
	case "Buy", "BUY", "buy", "STRONG_BUY", "Strong Buy":
		return SignalBuy
	case "Sell", "SELL", "sell", "STRONG_SELL", "Strong Sell":
		return SignalSell
	default:
		return SignalNeutral
	}
}

type Outcome string

const (
	OutcomeUnset     Outcome = ""
	OutcomeCorrect   Outcome = "Correct"
	OutcomeIncorrect Outcome = "Incorrect"
	OutcomeSuccess   Outcome = "Success"
	OutcomeFailure   Outcome = "Failure"
)

type PatternType string

const (
	PatternBullish PatternType = "Bullish"
	PatternBearish PatternType = "Bearish"
)

// Prediction is a directional call whose outcome is checked once the
// validation delay has elapsed. Outcome and ActualPrice never change after validation.
type Prediction struct {
	ID             string     `json:"id" gorm:"primaryKey;size:36"`
	Symbol         string     `json:"symbol" gorm:"index;size:32;not null"`
	IssuedAt       time.Time  `json:"timestamp" gorm:"index;not null"`
	Signal         Signal     `json:"predicted_signal" gorm:"size:16"`
	PredictedPrice float64    `json:"predicted_price"`
	PriceAtIssue   float64    `json:"current_price"`
	HorizonDays    int        `json:"horizon_days"`
	Rationale      string     `json:"reasoning" gorm:"type:text"`
	Validated      bool       `json:"validated" gorm:"index"`
	Outcome        Outcome    `json:"outcome,omitempty" gorm:"size:16"`
	ActualPrice    *float64   `json:"actual_price,omitempty"`
	ValidatedAt    *time.Time `json:"validated_at,omitempty"`
}

// PatternEvent is a detected chart pattern. Only events carrying both
// Target and StopLoss can ever be validated.
type PatternEvent struct {
	ID          string      `json:"id" gorm:"primaryKey;size:36"`
	Symbol      string      `json:"symbol" gorm:"index;size:32;not null"`
	Name        string      `json:"name" gorm:"index;size:64;not null"`
	Type        PatternType `json:"type" gorm:"size:16"`
	DetectedAt  time.Time   `json:"timestamp" gorm:"index;not null"`
	EntryPrice  float64     `json:"entry_price"`
	Target      *float64    `json:"target_price,omitempty"`
	StopLoss    *float64    `json:"stop_loss,omitempty"`
	Confidence  float64     `json:"confidence"`
	Description string      `json:"description" gorm:"type:text"`
	Source      string      `json:"source" gorm:"size:32"`
	Validated   bool        `json:"validated" gorm:"index"`
	Outcome     Outcome     `json:"outcome,omitempty" gorm:"size:16"`
	ExitPrice   *float64    `json:"exit_price,omitempty"`
	ValidatedAt *time.Time  `json:"validated_at,omitempty"`
}

// Validatable reports whether the event has both exit levels.
func (p PatternEvent) Validatable() bool {
	return p.Target != nil && p.StopLoss != nil
}

// PatternCandidate is detector output before it enters the ledger.
type PatternCandidate struct {
	Name        string      `json:"name"`
	Type        PatternType `json:"type"`
	Confidence  float64     `json:"confidence"`
	Description string      `json:"description"`
	Target      *float64    `json:"target_price,omitempty"`
	StopLoss    *float64    `json:"stop_loss,omitempty"`
	Source      string      `json:"source,omitempty"`
}

// Tunables are the parameters the brain loop adjusts at runtime.
type Tunables struct {
	RSIThreshold  int     `json:"RSI_THRESHOLD"`
	ConfidenceMin float64 `json:"CONFIDENCE_MIN"`
	LearningRate  string  `json:"LEARNING_RATE"`
}

type LedgerStatus struct {
	Status               string   `json:"status"`
	Accuracy             float64  `json:"accuracy"`
	TotalPredictions     int      `json:"total_predictions"`
	ValidatedPredictions int      `json:"validated_predictions"`
	TotalPatterns        int      `json:"total_patterns"`
	Lessons              []string `json:"lessons"`
	Parameters           Tunables `json:"parameters"`
}

type PatternPerformance struct {
	Name        string  `json:"name,omitempty"`
	Total       int     `json:"total"`
	SuccessRate float64 `json:"success_rate"`
}

type LearningContext struct {
	Symbol   string  `json:"symbol"`
	HasData  bool    `json:"has_data"`
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
	Summary  string  `json:"summary"`
}

// ValidationResult counts rows that changed state in one validation pass.
type ValidationResult struct {
	Predictions int `json:"predictions"`
	Patterns    int `json:"patterns"`
}

const (
	EventPredictionRecorded  = "prediction.recorded"
	EventPredictionValidated = "prediction.validated"
	EventPatternRecorded     = "pattern.recorded"
	EventPatternValidated    = "pattern.validated"
)

// LedgerEvent is emitted after every ledger mutation.
type LedgerEvent struct {
	Kind    string      `json:"kind"`
	Symbol  string      `json:"symbol"`
	At      time.Time   `json:"at"`
	Payload interface{} `json:"payload"`
}
