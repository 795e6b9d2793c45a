package usecase

import "sync/atomic"

// ErrorBudget counts upstream failures between self-heal passes.
type ErrorBudget struct {
	n atomic.Int64
}

func NewErrorBudget() *ErrorBudget { return &ErrorBudget{} }

func (b *ErrorBudget) Add() { b.n.Add(1) }

func (b *ErrorBudget) Count() int64 { return b.n.Load() }

// Reset zeroes the counter and returns the previous value.
func (b *ErrorBudget) Reset() int64 { return b.n.Swap(0) }
