package workers

import (
	"context"
	"time"

	"gamification-engine/logger"
	"gamification-engine/services"

	"github.com/go-co-op/gocron/v2"
)

type SchedulerConfig struct {
	StreakSweepInterval time.Duration
	ReconcileInterval   time.Duration
	ArchiveHour         int
}

// Scheduler runs the engine's maintenance jobs. Jobs never overlap with
// themselves.
type Scheduler struct {
	sched gocron.Scheduler
	log   *logger.Logger
}

type scheduledJob struct {
	name string
	def  gocron.JobDefinition
	run  func(ctx context.Context) error
}

// NewScheduler registers the jobs without starting them. A nil archiver
// disables the archive job.
func NewScheduler(
	cfg SchedulerConfig,
	streaks *services.StreakTracker,
	reconciler *ReconcileWorker,
	archiver *LedgerArchiveWorker,
	baseLog *logger.Logger,
) (*Scheduler, error) {
	log := baseLog.With("component", "Scheduler")
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}

	jobs := []scheduledJob{
		{
			name: "streak-sweep",
			def:  gocron.DurationJob(cfg.StreakSweepInterval),
			run: func(ctx context.Context) error {
				_, err := streaks.DeactivateLapsed(ctx)
				return err
			},
		},
		{
			name: "ledger-reconcile",
			def:  gocron.DurationJob(cfg.ReconcileInterval),
			run: func(ctx context.Context) error {
				_, err := reconciler.RunOnce(ctx)
				return err
			},
		},
	}
	if archiver != nil {
		jobs = append(jobs, scheduledJob{
			name: "ledger-archive",
			def:  gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(uint(cfg.ArchiveHour), 0, 0))),
			run:  archiver.RunOnce,
		})
	}

	for _, j := range jobs {
		name, run := j.name, j.run
		_, err := sched.NewJob(
			j.def,
			gocron.NewTask(func(ctx context.Context) {
				if err := run(ctx); err != nil {
					log.Warn("Job failed", "job", name, "error", err)
				}
			}),
			gocron.WithName(name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = sched.Shutdown()
			return nil, err
		}
		log.Info("Job scheduled", "job", name)
	}

	return &Scheduler{sched: sched, log: log}, nil
}

func (s *Scheduler) Start() {
	s.sched.Start()
}

func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}
