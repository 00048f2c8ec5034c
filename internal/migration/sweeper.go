package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KaramelBytes/dataglimpse/internal/store"
	"go.uber.org/zap"
)

// SweepResult counts what one sweep removed.
type SweepResult struct {
	Sessions int `json:"sessions"`
	Datasets int `json:"datasets"`
}

// Sweeper expires guest sessions older than a TTL together with the datasets
// they still own.
type Sweeper struct {
	store Store
	ttl   time.Duration
	log   *zap.Logger
}

// NewSweeper builds a Sweeper. A nil logger discards output.
func NewSweeper(s Store, ttl time.Duration, log *zap.Logger) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{store: s, ttl: ttl, log: log}
}

// Sweep deletes sessions created before now-ttl. Each session's datasets go
// first and the session record last, so a failed sweep leaves the session in
// place for the next run. Only datasets the guest still owns are deleted.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var res SweepResult
	if s.ttl <= 0 {
		return res, nil
	}
	expired, err := s.store.ListExpiredSessions(ctx, now.Add(-s.ttl))
	if err != nil {
		return res, err
	}
	for _, sess := range expired {
		n, err := s.store.DeleteGuestDatasets(ctx, sess.SessionID, sess.DatasetIDs)
		if err != nil {
			return res, fmt.Errorf("sweep %s: %w", sess.SessionID, err)
		}
		res.Datasets += n
		// A concurrent migration may have removed the session already.
		if err := s.store.DeleteSession(ctx, sess.SessionID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return res, fmt.Errorf("sweep %s: %w", sess.SessionID, err)
		}
		res.Sessions++
	}
	if res.Sessions > 0 || res.Datasets > 0 {
		s.log.Info("expired guest sessions removed", zap.Int("sessions", res.Sessions), zap.Int("datasets", res.Datasets))
	}
	return res, nil
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			if _, err := s.Sweep(ctx, now); err != nil {
				s.log.Warn("guest session sweep failed", zap.Error(err))
			}
		}
	}
}
