package store

import (
	"time"

	"github.com/robfig/cron/v3"

	"course-copilot/internal/logging"
)

// Janitor periodically evicts idle feed entries so abandoned
// conversations do not pin memory. Optional; the store is correct
// without it.
type Janitor struct {
	cron  *cron.Cron
	store *Store
	ttl   time.Duration
}

func NewJanitor(s *Store, ttl time.Duration) *Janitor {
	return &Janitor{
		cron:  cron.New(cron.WithLocation(time.UTC)),
		store: s,
		ttl:   ttl,
	}
}

func (j *Janitor) Start() error {
	_, err := j.cron.AddFunc("@every 5m", func() {
		j.store.evictIdle(j.ttl)
	})
	if err != nil {
		return err
	}
	j.cron.Start()
	logging.Debugf("store: janitor started, ttl=%s", j.ttl)
	return nil
}

func (j *Janitor) Stop() {
	if j.cron != nil {
		ctx := j.cron.Stop()
		<-ctx.Done()
	}
}
