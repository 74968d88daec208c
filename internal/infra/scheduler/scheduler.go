package scheduler

import (
	"context"
	"fmt"
	"time"

	"banquet_crm/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job binds a sweep to its cron spec.
type Job struct {
	Sweep   string
	Spec    string
	Timeout time.Duration
}

// DefaultJobs builds the three sweeps from their configured specs.
func DefaultJobs(staleSpec, siteVisitSpec, quoteSpec string) []Job {
	return []Job{
		{Sweep: app.SweepStale, Spec: staleSpec, Timeout: 5 * time.Minute},
		{Sweep: app.SweepSiteVisits, Spec: siteVisitSpec, Timeout: 5 * time.Minute},
		{Sweep: app.SweepQuotes, Spec: quoteSpec, Timeout: 5 * time.Minute},
	}
}

type SweepScheduler struct {
	cronEngine *cron.Cron
	sweeps     app.SweepRunner
	jobs       []Job
	logger     logrus.FieldLogger
}

// NewSweepScheduler evaluates cron specs in loc, the business time zone.
func NewSweepScheduler(sweeps app.SweepRunner, jobs []Job, loc *time.Location, logger logrus.FieldLogger) *SweepScheduler {
	if loc == nil {
		loc = time.Local
	}
	cronLog := cron.PrintfLogger(logger)
	return &SweepScheduler{
		cronEngine: cron.New(
			cron.WithLocation(loc),
			// A slow sweep must not overlap with its next tick.
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		sweeps: sweeps,
		jobs:   jobs,
		logger: logger,
	}
}

// Start registers every job and starts the cron engine.
func (s *SweepScheduler) Start() error {
	s.logger.Info("Starting sweep scheduler...")
	for _, job := range s.jobs {
		job := job
		if _, err := s.cronEngine.AddFunc(job.Spec, func() { s.runJob(job) }); err != nil {
			return fmt.Errorf("could not add %s sweep with spec %q: %w", job.Sweep, job.Spec, err)
		}
		s.logger.WithFields(logrus.Fields{"sweep": job.Sweep, "spec": job.Spec}).Info("Sweep scheduled")
	}
	s.cronEngine.Start()
	s.logger.Info("Sweep scheduler started")
	return nil
}

func (s *SweepScheduler) runJob(job Job) {
	logCtx := s.logger.WithField("sweep", job.Sweep)
	logCtx.Debug("Cron job triggered")

	timeout := job.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	report, err := s.sweeps.Run(ctx, job.Sweep)
	if err != nil {
		logCtx.WithError(err).Error("Scheduled sweep failed")
		return
	}
	logCtx.WithFields(logrus.Fields{
		"notified": report.Notified,
		"failed":   report.Failed,
		"took":     report.FinishedAt.Sub(report.StartedAt).String(),
	}).Info("Scheduled sweep completed")
}

func (s *SweepScheduler) Stop() {
	s.logger.Info("Stopping sweep scheduler...")
	ctx := s.cronEngine.Stop() // waits for running jobs
	<-ctx.Done()
	s.logger.Info("Sweep scheduler gracefully stopped")
}
