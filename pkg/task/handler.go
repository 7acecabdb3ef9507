package task

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// FixedRetryDelay waits the same delay before every redelivery, regardless of
// how many attempts have already been made.
func FixedRetryDelay(d time.Duration) asynq.RetryDelayFunc {
	return func(n int, err error, t *asynq.Task) time.Duration {
		return d
	}
}

// ReportError is the asynq ErrorHandler. It is called after every failed
// attempt; only the last attempt is reported as permanent.
func ReportError(ctx context.Context, t *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	taskID, _ := asynq.GetTaskID(ctx)

	fields := []zap.Field{
		zap.String("task_type", t.Type()),
		zap.String("message_id", taskID),
		zap.Int("retried", retried),
		zap.Int("max_retry", maxRetry),
		zap.Error(err),
	}

	if retried >= maxRetry || IsSkipRetry(err) {
		zap.L().Error("asynq task permanently failed", fields...)
		return
	}

	zap.L().Warn("asynq task failed, will retry", fields...)
}

func LoggingMiddleware(h asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()
		retried, _ := asynq.GetRetryCount(ctx)
		zapLog := zap.L().With(
			zap.String("task_type", t.Type()),
			zap.Int("retried", retried),
		)

		zapLog.Debug("start processing task")
		err := h.ProcessTask(ctx, t)
		if err != nil {
			zapLog.Warn("task attempt failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
			return err
		}

		zapLog.Debug("finished processing task", zap.Duration("elapsed", time.Since(start)))
		return nil
	})
}

// IsSkipRetry reports whether the handler asked asynq not to redeliver.
func IsSkipRetry(err error) bool {
	return errors.Is(err, asynq.SkipRetry)
}
