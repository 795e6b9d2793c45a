package analysis

import (
	"context"
	"fmt"

	"MarketBrain/internal/domain/models"
	domsvc "MarketBrain/internal/domain/service"
)

const (
	rsiPeriod        = 14
	minBars          = 20
	fastWindow       = 20
	slowWindow       = 50
	overbought       = 70.0
	oversold         = 30.0
	localSource      = "technical"
	mediumConfidence = 0.6
	highConfidence   = 0.8
)

// TechnicalDetector is the local baseline: RSI extremes and SMA20/SMA50
// crosses. Its candidates carry no exit levels.
type TechnicalDetector struct{}

func NewTechnicalDetector() *TechnicalDetector { return &TechnicalDetector{} }

func (TechnicalDetector) DetectPatterns(_ context.Context, _ string, history []models.PriceBar) ([]models.PatternCandidate, error) {
	if len(history) < minBars {
		return nil, nil
	}
	closes := models.Closes(history)

	var out []models.PatternCandidate
	switch rsi := RSI(closes, rsiPeriod); {
	case rsi > overbought:
		out = append(out, models.PatternCandidate{
			Name:        "RSI Overbought",
			Type:        models.PatternBearish,
			Confidence:  mediumConfidence,
			Description: fmt.Sprintf("RSI is %.1f, indicating potential reversal.", rsi),
			Source:      localSource,
		})
	case rsi < oversold:
		out = append(out, models.PatternCandidate{
			Name:        "RSI Oversold",
			Type:        models.PatternBullish,
			Confidence:  mediumConfidence,
			Description: fmt.Sprintf("RSI is %.1f, indicating potential bounce.", rsi),
			Source:      localSource,
		})
	}

	if len(closes) > slowWindow {
		last := len(closes) - 1
		fast, slow := SMA(closes, fastWindow, last), SMA(closes, slowWindow, last)
		prevFast, prevSlow := SMA(closes, fastWindow, last-1), SMA(closes, slowWindow, last-1)
		switch {
		case prevFast < prevSlow && fast > slow:
			out = append(out, models.PatternCandidate{
				Name:        "Golden Cross",
				Type:        models.PatternBullish,
				Confidence:  highConfidence,
				Description: "SMA 20 crossed above SMA 50.",
				Source:      localSource,
			})
		case prevFast > prevSlow && fast < slow:
			out = append(out, models.PatternCandidate{
				Name:        "Death Cross",
				Type:        models.PatternBearish,
				Confidence:  highConfidence,
				Description: "SMA 20 crossed below SMA 50.",
				Source:      localSource,
			})
		}
	}
	return out, nil
}

var _ domsvc.PatternDetector = TechnicalDetector{}
