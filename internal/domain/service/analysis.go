package service

import (
	"context"

	"MarketBrain/internal/domain/models"
)

// SignalGenerator turns market context into a directional call.
type SignalGenerator interface {
	GenerateSignal(ctx context.Context, req models.SignalRequest) (models.SignalResult, error)
}

// PatternDetector finds chart patterns in a price history.
type PatternDetector interface {
	DetectPatterns(ctx context.Context, symbol string, history []models.PriceBar) ([]models.PatternCandidate, error)
}

// Researcher produces free-form maintenance insight.
type Researcher interface {
	Research(ctx context.Context, topic string) (string, error)
}

// Notifier delivers operator alerts.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}
