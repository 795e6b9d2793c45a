package analysis

import (
	"context"
	"errors"
	"fmt"

	"MarketBrain/internal/domain/models"
	domsvc "MarketBrain/internal/domain/service"
)

// CompositeDetector runs detectors in order and concatenates their output.
// A failing detector does not hide the others' candidates; its error is
// returned alongside them.
type CompositeDetector struct {
	detectors []domsvc.PatternDetector
}

func NewCompositeDetector(detectors ...domsvc.PatternDetector) *CompositeDetector {
	return &CompositeDetector{detectors: detectors}
}

func (c *CompositeDetector) DetectPatterns(ctx context.Context, symbol string, history []models.PriceBar) ([]models.PatternCandidate, error) {
	var (
		out  []models.PatternCandidate
		errs []error
	)
	for i, d := range c.detectors {
		got, err := d.DetectPatterns(ctx, symbol, history)
		if err != nil {
			errs = append(errs, fmt.Errorf("detector %d: %w", i, err))
		}
		out = append(out, got...)
	}
	return out, errors.Join(errs...)
}
