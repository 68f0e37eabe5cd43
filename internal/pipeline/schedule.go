package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"tcgpricing/internal/gather"
	"tcgpricing/internal/util"
)

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}

// Window returns the trailing range [now-lookback, now] in calendar days.
func Window(now time.Time, lookbackDays int) gather.DateRange {
	end := util.Truncate(now)
	return gather.DateRange{Start: end.AddDate(0, 0, -max(lookbackDays, 0)), End: end}
}

// NewScheduler returns a cron scheduler (seconds field first) that calls run
// with the trailing lookback window on every tick. A tick arriving while the
// previous run is still going is skipped, and panics are recovered.
func NewScheduler(ctx context.Context, spec string, lookbackDays int, run func(context.Context, gather.DateRange) error, log *slog.Logger) (*cron.Cron, error) {
	cl := cronLogger{log: log.With("component", "scheduler")}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	_, err := c.AddFunc(spec, func() {
		if ctx.Err() != nil {
			return
		}
		r := Window(time.Now(), lookbackDays)
		if err := run(ctx, r); err != nil && !Canceled(err) {
			cl.log.Error("scheduled run failed", "error", err)
		}
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
