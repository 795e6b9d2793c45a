package models

import "time"

// SignalRequest carries everything the signal generator may use.
type SignalRequest struct {
	Symbol          string            `json:"symbol"`
	History         []PriceBar        `json:"history"`
	Technicals      *TechnicalSummary `json:"technicals,omitempty"`
	News            []Headline        `json:"news,omitempty"`
	LearningContext string            `json:"learning_context"`
	ConfidenceMin   float64           `json:"confidence_min"`
}

type SignalResult struct {
	Signal     Signal  `json:"signal"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"reasoning"`
}

type Forecast struct {
	Symbol         string            `json:"symbol"`
	Signal         Signal            `json:"signal"`
	Confidence     float64           `json:"confidence"`
	CurrentPrice   float64           `json:"current_price"`
	PredictedPrice float64           `json:"predicted_price"`
	HorizonDays    int               `json:"horizon_days"`
	Rationale      string            `json:"reasoning"`
	Technicals     *TechnicalSummary `json:"technicals,omitempty"`
	Headlines      int               `json:"headlines"`
	Learning       LearningContext   `json:"learning"`
	IssuedAt       time.Time         `json:"issued_at"`
}
