package store

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"impactflow/api/internal/config"
)

// Connect dials the networked document store. Callers treat failure as
// non-fatal: the gateway falls back to the file store when no client exists.
func Connect(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// Selector tracks whether the networked store is currently reachable. A
// background goroutine pings on an interval and publishes the result, so the
// per-call check the gateway makes is a cheap flag read rather than a network
// round trip. A nil client means the file store is used unconditionally.
type Selector struct {
	client *mongo.Client
	live   atomic.Bool
	log    zerolog.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSelector(client *mongo.Client, interval time.Duration, logger zerolog.Logger) *Selector {
	s := &Selector{client: client, log: logger}
	if client == nil {
		return s
	}
	if interval <= 0 {
		interval = 3 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	s.probe(ctx)
	go s.loop(ctx, interval)
	return s
}

// Live reports whether the networked store answered the most recent probe.
func (s *Selector) Live() bool {
	return s.client != nil && s.live.Load()
}

// Stop halts the probe loop.
func (s *Selector) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Selector) loop(ctx context.Context, interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.probe(ctx)
		}
	}
}

func (s *Selector) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	err := s.client.Ping(ctx, nil)
	was := s.live.Load()
	now := err == nil
	s.live.Store(now)

	if was == now {
		return
	}
	if now {
		s.log.Info().Msg("document store reachable, routing to mongo")
	} else {
		s.log.Warn().Err(err).Msg("document store unreachable, routing to file store")
	}
}
