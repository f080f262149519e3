package daemon

import (
	"context"

	"github.com/robfig/cron/v3"

	"mp4forge/internal/config"
	"mp4forge/internal/logging"
)

// newScheduler returns a started cron runner that clears finished jobs on
// queue.clear_completed_schedule, or nil when no schedule is configured.
func (d *Daemon) newScheduler(ctx context.Context) (*cron.Cron, error) {
	spec := d.cfg.Queue.ClearCompletedSchedule
	if spec == "" {
		return nil, nil
	}
	schedule, err := config.ParseSchedule(spec)
	if err != nil {
		return nil, err
	}
	c := cron.New()
	c.Schedule(schedule, cron.FuncJob(func() { d.clearCompleted(ctx) }))
	c.Start()
	d.logger.Info("clear completed schedule enabled", logging.String("schedule", spec))
	return c, nil
}

func (d *Daemon) clearCompleted(ctx context.Context) int {
	removed := d.queue.ClearCompleted(ctx)
	if removed > 0 {
		d.logger.Info("scheduled cleanup removed finished jobs",
			logging.String(logging.FieldEventType, "scheduled_clear"),
			logging.Int("removed", removed),
		)
	}
	return removed
}
