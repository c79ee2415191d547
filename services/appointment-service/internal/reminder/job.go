// Package reminder runs the pre-appointment SMS reminder on a cron schedule.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type Sender interface {
	SendDueReminders(ctx context.Context, lead time.Duration) (int, error)
}

type Config struct {
	// Spec is a standard five-field cron expression or a descriptor such as "@every 5m".
	Spec    string
	Lead    time.Duration
	Timeout time.Duration
}

type Job struct {
	sender Sender
	logger *slog.Logger
	cfg    Config
	engine *cron.Cron
}

func NewJob(sender Sender, logger *slog.Logger, cfg Config) (*Job, error) {
	if cfg.Spec == "" {
		cfg.Spec = "*/15 * * * *"
	}
	if cfg.Lead <= 0 {
		cfg.Lead = 24 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if _, err := cron.ParseStandard(cfg.Spec); err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", cfg.Spec, err)
	}

	l := cronLogger{logger: logger}
	return &Job{
		sender: sender,
		logger: logger,
		cfg:    cfg,
		engine: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
	}, nil
}

// Run blocks until ctx is cancelled and waits for an in-flight run to finish.
func (j *Job) Run(ctx context.Context) error {
	if _, err := j.engine.AddFunc(j.cfg.Spec, func() { j.RunOnce(ctx) }); err != nil {
		return err
	}
	j.engine.Start()
	j.logger.Info("reminder job started", "schedule", j.cfg.Spec, "lead", j.cfg.Lead.String())

	<-ctx.Done()
	<-j.engine.Stop().Done()
	j.logger.Info("reminder job stopped")
	return nil
}

func (j *Job) RunOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	runCtx, cancel := context.WithTimeout(ctx, j.cfg.Timeout)
	defer cancel()

	start := time.Now()
	sent, err := j.sender.SendDueReminders(runCtx, j.cfg.Lead)
	if err != nil {
		j.logger.Error("reminder run failed", "err", err, "sent", sent)
		return
	}
	if sent > 0 {
		j.logger.Info("reminders sent", "count", sent, "duration_ms", time.Since(start).Milliseconds())
	}
}

// cronLogger routes cron's own logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
