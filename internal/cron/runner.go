package cronrunner

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner schedules jobs against one base context. Jobs see that context
// and stop starting once it is cancelled. A run that is still going when
// its next slot arrives makes that slot skip, and a panicking job is
// logged and recovered.
type Runner struct {
	cron    *cron.Cron
	logger  *zap.Logger
	baseCtx context.Context
}

func New(logger *zap.Logger, baseCtx context.Context) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := zapCronLogger{log: logger.Sugar()}
	return &Runner{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		baseCtx: baseCtx,
	}
}

// Add registers job under a six-field cron spec.
func (r *Runner) Add(spec string, job func(context.Context)) (cron.EntryID, error) {
	return r.cron.AddFunc(spec, r.wrap("", job))
}

// Every registers job at a fixed interval measured from Start.
func (r *Runner) Every(interval time.Duration, name string, job func(context.Context)) cron.EntryID {
	return r.cron.Schedule(cron.Every(interval), cron.FuncJob(r.wrap(name, job)))
}

func (r *Runner) wrap(name string, job func(context.Context)) func() {
	return func() {
		if r.baseCtx.Err() != nil {
			r.logger.Debug("cron job skipped, shutting down", zap.String("job", name))
			return
		}
		job(r.baseCtx)
	}
}

func (r *Runner) Start() {
	r.logger.Info("cron started", zap.Int("entries", len(r.cron.Entries())))
	r.cron.Start()
}

// Stop halts scheduling and waits for running jobs to return.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("cron stopped")
}

// zapCronLogger routes the scheduler's own messages to zap. Its per-run
// chatter goes to debug.
type zapCronLogger struct {
	log *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw("cron: "+msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
