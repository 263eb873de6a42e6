package engine

import (
	"context"
	"time"
)

// RunTypingReaper deletes stale typing rows every interval until ctx is done.
// Readers already ignore stale rows, so the reaper only bounds table growth.
func (e *Engine) RunTypingReaper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := e.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			removed, err := e.ReapTyping()
			if err != nil {
				e.logger.Warn("Typing reaper failed", "error", err)
				continue
			}
			if removed > 0 {
				e.logger.Debug("Typing reaper removed stale rows", "removed", removed)
			}
		}
	}
}
