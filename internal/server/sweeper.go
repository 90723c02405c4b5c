package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/lwhela12/the-hive-sub001/internal/store"
)

// Sweeper deletes expired cached summaries on a cron cadence. The redis lock
// keeps replicas from sweeping at the same moment; the delete is idempotent
// either way.
type Sweeper struct {
	Store  *store.Store
	Rdb    *redis.Client
	Cron   string
	Stop   chan struct{}
	Logger *log.Logger
}

func (s *Sweeper) Start() error {
	expr, err := cronexpr.Parse(s.Cron)
	if err != nil {
		return err
	}
	if s.Logger == nil {
		s.Logger = log.New(log.Writer(), "[SWEEP] ", log.LstdFlags)
	}
	next := expr.Next(time.Now())
	ticker := time.NewTicker(30 * time.Second)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case now := <-ticker.C:
				if now.Before(next) {
					continue
				}
				next = expr.Next(now)
				s.sweep()
			}
		}
	}()
	return nil
}

func (s *Sweeper) sweep() {
	ctx := context.Background()
	if s.Rdb != nil {
		ok, err := s.Rdb.SetNX(ctx, "sweep:summaries:lock", "1", 2*time.Minute).Result()
		if err != nil {
			s.Logger.Printf("sweep lock failed: %v", err)
			return
		}
		if !ok {
			return
		}
		defer s.Rdb.Del(ctx, "sweep:summaries:lock")
	}
	deleted, err := s.Store.DeleteExpiredSummaries(ctx, time.Now())
	if err != nil {
		s.Logger.Printf("sweep failed: %v", err)
		return
	}
	if deleted > 0 {
		s.Logger.Printf("deleted %d expired summaries", deleted)
	}
}
