package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/crucial707/inspect-ops/internal/generator"
	"github.com/crucial707/inspect-ops/internal/metrics"
	"github.com/crucial707/inspect-ops/internal/repo"
)

// Run starts a background loop that generates work orders for every active
// schedule whose due moment has passed. spec is a standard cron expression
// (e.g. "*/5 * * * *"). Conflicts are expected when more than one instance
// runs the loop; the losing instance just skips the schedule.
func Run(spec string, schedules *repo.ScheduleRepo, engine *generator.Engine) error {
	c := cron.New()

	tick := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		due, err := schedules.ListOverdue(ctx, time.Now())
		if err != nil {
			log.Printf("scheduler: list due schedules: %v", err)
			return
		}
		metrics.SetSchedulesOverdue(len(due))

		for _, s := range due {
			_, err := engine.Generate(ctx, s.ID, generator.Overrides{})
			switch {
			case err == nil:
				log.Printf("scheduler: generated work order for schedule id=%s name=%q", s.ID, s.Name)
			case errors.Is(err, generator.ErrGenerationConflict):
				// Another instance advanced this schedule first.
			case errors.Is(err, generator.ErrInactiveSchedule):
				// Deactivated between listing and generation.
			case errors.Is(err, generator.ErrScheduleEnded):
				log.Printf("scheduler: retired ended schedule id=%s name=%q", s.ID, s.Name)
			default:
				log.Printf("scheduler: generate for schedule id=%s: %v", s.ID, err)
			}
		}
	}

	if _, err := c.AddFunc(spec, tick); err != nil {
		return err
	}

	// Catch up immediately on start, then follow the cron spec.
	tick()
	c.Start()
	return nil
}
