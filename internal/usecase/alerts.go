package usecase

import (
	"context"
	"fmt"
	"time"

	dsvc "MarketBrain/internal/domain/service"
	"MarketBrain/pkg/logger"
)

// CriticalAlert returns a cycle critical hook that forwards the failure to n.
// Delivery errors are logged only. A nil notifier yields a hook that logs.
func CriticalAlert(n dsvc.Notifier, timeout time.Duration, log *logger.Logger) func(loop string, err error) {
	if log == nil {
		log = logger.Nop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return func(loop string, err error) {
		text := fmt.Sprintf("⚠️ %s loop CRITICAL: %v", loop, err)
		log.Error("loop entered CRITICAL", logger.String("loop", loop), logger.Error(err))
		if n == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if nerr := n.Notify(ctx, text); nerr != nil {
			log.Warn("alert delivery failed", logger.String("loop", loop), logger.Error(nerr))
		}
	}
}
