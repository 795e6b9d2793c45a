package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"MarketBrain/internal/domain/models"
	domsvc "MarketBrain/internal/domain/service"
)

// remoteWindow is how many trailing bars the remote detector receives.
const remoteWindow = 30

type HTTPPatternDetector struct{ base *HTTPServiceBase }

func NewHTTPPatternDetector(base *HTTPServiceBase) *HTTPPatternDetector {
	return &HTTPPatternDetector{base: base}
}

type patternRequest struct {
	Symbol  string            `json:"symbol"`
	History []models.PriceBar `json:"history"`
}

type remotePattern struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Reliability string   `json:"reliability"`
	Confidence  *float64 `json:"confidence"`
	StopLoss    *float64 `json:"stop_loss"`
	Target      *float64 `json:"target_price"`
}

// patternList accepts either a bare list or {"patterns": [...]}.
type patternList []remotePattern

func (p *patternList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var wrapped struct {
			Patterns []remotePattern `json:"patterns"`
		}
		if err := json.Unmarshal(b, &wrapped); err != nil {
			return err
		}
		*p = wrapped.Patterns
		return nil
	}
	var list []remotePattern
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	*p = list
	return nil
}

func (d *HTTPPatternDetector) DetectPatterns(ctx context.Context, symbol string, history []models.PriceBar) ([]models.PatternCandidate, error) {
	if len(history) > remoteWindow {
		history = history[len(history)-remoteWindow:]
	}
	var resp patternList
	if err := d.base.PostJSON(ctx, "/patterns", patternRequest{Symbol: symbol, History: history}, &resp); err != nil {
		return nil, fmt.Errorf("post patterns: %w", err)
	}

	out := make([]models.PatternCandidate, 0, len(resp))
	for _, p := range resp {
		if p.Name == "" {
			continue
		}
		t := models.PatternBullish
		if p.Type == string(models.PatternBearish) {
			t = models.PatternBearish
		}
		conf := reliabilityScore(p.Reliability)
		if p.Confidence != nil {
			conf = *p.Confidence
		}
		out = append(out, models.PatternCandidate{
			Name:        p.Name,
			Type:        t,
			Confidence:  conf,
			Description: p.Description,
			Target:      p.Target,
			StopLoss:    p.StopLoss,
			Source:      "remote",
		})
	}
	return out, nil
}

func reliabilityScore(r string) float64 {
	switch r {
	case "High":
		return 0.8
	case "Low":
		return 0.4
	default:
		return 0.6
	}
}

var _ domsvc.PatternDetector = (*HTTPPatternDetector)(nil)
