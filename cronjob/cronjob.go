package cronjob

import (
	"time"

	"github.com/mahdipatriot/PacketTunnel/service"

	"github.com/robfig/cron/v3"
)

type CronJob struct {
	cron *cron.Cron
}

func NewCronJob() *CronJob {
	return &CronJob{}
}

func (c *CronJob) Start(loc *time.Location, bundle *service.ServicesBundle, trafficDays int) error {
	c.cron = cron.New(cron.WithLocation(loc))

	_, err := c.cron.AddJob("@every 30s", NewStatsJob(&bundle.ServerService))
	if err != nil {
		return err
	}
	_, err = c.cron.AddJob("@every 1m", NewWatchdogJob(bundle.EngineService))
	if err != nil {
		return err
	}
	if trafficDays > 0 {
		_, err = c.cron.AddJob("@daily", NewDelStatsJob(&bundle.ServerService, trafficDays))
		if err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

func (c *CronJob) Stop() {
	if c.cron != nil {
		c.cron.Stop()
	}
}
