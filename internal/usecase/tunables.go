package usecase

import (
	"sync"

	"MarketBrain/internal/domain/models"
)

const (
	ConfidenceLoose = 0.65
	ConfidenceTight = 0.80
)

// Tunables holds parameters the brain adjusts and signal generation reads.
type Tunables struct {
	mu            sync.RWMutex
	rsiThreshold  int
	confidenceMin float64
	learningRate  string
}

func NewTunables(confidenceMin float64) *Tunables {
	return &Tunables{rsiThreshold: 30, confidenceMin: confidenceMin, learningRate: "Adaptive"}
}

func (t *Tunables) ConfidenceMin() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.confidenceMin
}

// SetConfidenceMin updates the threshold and reports whether it changed.
func (t *Tunables) SetConfidenceMin(v float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.confidenceMin == v {
		return false
	}
	t.confidenceMin = v
	return true
}

func (t *Tunables) Snapshot() models.Tunables {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return models.Tunables{
		RSIThreshold:  t.rsiThreshold,
		ConfidenceMin: t.confidenceMin,
		LearningRate:  t.learningRate,
	}
}
