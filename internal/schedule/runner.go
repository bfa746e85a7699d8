package schedule

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner invokes registered jobs on cron specs. Specs accept an optional seconds field.
type Runner struct {
	cron    *cron.Cron
	logger  *zap.Logger
	baseCtx context.Context
}

func NewRunner(logger *zap.Logger, baseCtx context.Context) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	cronLog := cronLogger{logger.Sugar()}
	return &Runner{
		cron: cron.New(
			cron.WithParser(cron.NewParser(cron.SecondOptional|cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		logger:  logger,
		baseCtx: baseCtx,
	}
}

// Add registers job under spec. A run is skipped while the previous run of the same job is still going.
func (r *Runner) Add(spec string, job func(context.Context)) (cron.EntryID, error) {
	return r.cron.AddFunc(spec, func() {
		job(r.baseCtx)
	})
}

// AddBatch registers a scheduler run that logs its outcome.
func (r *Runner) AddBatch(name, spec string, run func(context.Context) (int, error)) (cron.EntryID, error) {
	return r.Add(spec, func(ctx context.Context) {
		n, err := run(ctx)
		if err != nil {
			r.logger.Error("scheduler run failed", zap.String("scheduler", name), zap.Int("scheduled", n), zap.Error(err))
			return
		}
		if n > 0 {
			r.logger.Debug("scheduler run", zap.String("scheduler", name), zap.Int("scheduled", n))
		}
	})
}

func (r *Runner) Start() {
	r.logger.Info("cron started")
	r.cron.Start()
}

// Stop waits for running jobs to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("cron stopped")
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
