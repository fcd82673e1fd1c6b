package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"impactflow/api/internal/store"
)

// staleCodeAge is how long past expiry a verification code lingers before the
// sweep clears it from the account record.
const staleCodeAge = 24 * time.Hour

type Scheduler struct {
	cron *cron.Cron
	gw   *store.Gateway
	log  zerolog.Logger
}

func NewScheduler(gw *store.Gateway, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron: c,
		gw:   gw,
		log:  log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 0 */1 * * *", s.sweepStaleCodes); err != nil { // hourly
		return err
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

// sweepStaleCodes drops verification codes that expired long ago so abandoned
// registrations do not keep dead codes on file.
func (s *Scheduler) sweepStaleCodes() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users, err := s.gw.Users.Find(ctx, store.Predicate{"isVerified": false})
	if err != nil {
		s.log.Error().Err(err).Msg("stale code sweep failed")
		return
	}

	cutoff := time.Now().Add(-staleCodeAge)
	cleared := 0
	for _, u := range users {
		if u.PendingCode == "" || u.PendingCodeExpiry == nil || u.PendingCodeExpiry.After(cutoff) {
			continue
		}
		if _, err := s.gw.Users.Update(ctx, u.ID, store.Predicate{
			"pendingCode":       "",
			"pendingCodeExpiry": nil,
		}); err != nil {
			s.log.Warn().Err(err).Str("user_id", u.ID).Msg("stale code clear failed")
			continue
		}
		cleared++
	}

	if cleared > 0 {
		s.log.Info().Int("cleared", cleared).Msg("stale verification codes swept")
	}
}
