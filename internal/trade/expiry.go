package trade

import (
	"context"
	"log/slog"
	"time"

	"github.com/erazemk/menjava/internal/store"
)

// ExpireRequests deletes requests that finished more than the request TTL
// ago and returns how many were removed.
func (s *Service) ExpireRequests(ctx context.Context) (int64, error) {
	return store.PurgeFinishedRequests(ctx, s.db, s.now().Add(-s.ttl))
}

// RunExpiry calls ExpireRequests every interval until ctx is done.
func (s *Service) RunExpiry(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := s.ExpireRequests(ctx)
			if err != nil {
				slog.Error("failed to expire trade requests", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("expired trade requests", "count", n)
			}
		}
	}
}
