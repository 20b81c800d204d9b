package media

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultPurgeSchedule sweeps once a minute.
const DefaultPurgeSchedule = "* * * * *"

const purgeBudget = time.Minute

// Cleaner runs the expiry sweep on a cron schedule.
type Cleaner struct {
	cron *cron.Cron
	svc  *Service
	log  *zap.Logger
}

// NewCleaner registers the sweep; call Start to begin scheduling.
func NewCleaner(svc *Service, schedule string, log *zap.Logger) (*Cleaner, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Cleaner{cron: cron.New(), svc: svc, log: log}

	_, err := c.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), purgeBudget)
		defer cancel()
		if _, err := svc.PurgeExpired(ctx, time.Now().UTC()); err != nil {
			log.Error("expiry sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cleaner) Start() {
	c.cron.Start()
}

// Stop halts scheduling and waits for a running sweep to finish.
func (c *Cleaner) Stop() {
	<-c.cron.Stop().Done()
}
