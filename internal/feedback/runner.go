package feedback

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Runner schedules the feedback loop on a cron spec with a seconds field.
type Runner struct {
	log  zerolog.Logger
	cron *cron.Cron
	loop *Loop
}

func NewRunner(log zerolog.Logger, loop *Loop) *Runner {
	return &Runner{
		log:  log.With().Str("component", "feedback_runner").Logger(),
		cron: cron.New(cron.WithSeconds()),
		loop: loop,
	}
}

// Start registers the schedule and begins firing. The given context bounds
// each pass, not the scheduler itself; call Stop to halt it.
func (r *Runner) Start(ctx context.Context, schedule string) error {
	_, err := r.cron.AddFunc(schedule, func() {
		if err := r.loop.Run(ctx); err != nil {
			r.log.Error().Err(err).Msg("feedback pass failed")
		}
	})
	if err != nil {
		return fmt.Errorf("bad feedback schedule %q: %w", schedule, err)
	}
	r.cron.Start()
	r.log.Info().Str("schedule", schedule).Msg("feedback loop scheduled")
	return nil
}

// Stop halts the scheduler and waits for a running pass to finish.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
}
