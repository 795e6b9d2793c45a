package analysis

import (
	"context"
	"fmt"
	"strings"

	"MarketBrain/internal/domain/models"
	domsvc "MarketBrain/internal/domain/service"
)

type HTTPSignalGenerator struct{ base *HTTPServiceBase }

func NewHTTPSignalGenerator(base *HTTPServiceBase) *HTTPSignalGenerator {
	return &HTTPSignalGenerator{base: base}
}

type signalResponse struct {
	Signal     string  `json:"signal"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

func (g *HTTPSignalGenerator) GenerateSignal(ctx context.Context, req models.SignalRequest) (models.SignalResult, error) {
	var sr signalResponse
	if err := g.base.PostJSON(ctx, "/signal", req, &sr); err != nil {
		return models.SignalResult{}, fmt.Errorf("post signal: %w", err)
	}
	conf := sr.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return models.SignalResult{
		Signal:     models.ParseSignal(strings.TrimSpace(sr.Signal)),
		Confidence: conf,
		Rationale:  sr.Reasoning,
	}, nil
}

var _ domsvc.SignalGenerator = (*HTTPSignalGenerator)(nil)
