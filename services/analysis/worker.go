package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"textanalysis/pkg/config"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Worker drives a task from PENDING to a terminal state. It is the only
// writer of a task after creation.
type Worker struct {
	repo     Repository
	analyze  func(text string) (Result, error)
	delay    time.Duration
	maxRetry int
}

type WorkerParams struct {
	fx.In
	Repo   Repository
	Config *config.Config
}

func NewWorker(p WorkerParams) *Worker {
	return &Worker{
		repo:     p.Repo,
		analyze:  Analyze,
		delay:    p.Config.Worker.ProcessingDelay,
		maxRetry: p.Config.Worker.MaxRetry,
	}
}

// HandleProcessText is the asynq handler for analysis:process_text.
// A nil return acknowledges the message; a non-nil one asks asynq to
// redeliver it after the fixed retry delay unless it wraps asynq.SkipRetry.
func (w *Worker) HandleProcessText(ctx context.Context, t *asynq.Task) error {
	payload, err := ParseProcessTextPayload(t)
	if err != nil {
		zap.L().Error("dropping undecodable message", zap.String("task_type", t.Type()), zap.Error(err))
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	err = w.Process(ctx, payload.TaskID)
	if err == nil {
		return nil
	}

	return w.retryDecision(ctx, payload.TaskID, err)
}

// Process runs one attempt for taskID. Redelivered ids are processed again
// from scratch, overwriting any earlier terminal result; Analyze being pure
// makes the outcome identical.
func (w *Worker) Process(ctx context.Context, taskID string) error {
	zapLog := zap.L().With(zap.String("task_id", taskID))

	t, err := w.repo.Get(ctx, taskID)
	if err != nil {
		zapLog.Error("failed to load task", zap.Error(err))
		return err
	}
	if t == nil {
		// The row may have been removed by an external cleanup.
		zapLog.Warn("task not found, discarding message")
		return nil
	}

	if !t.Status.CanTransition(StatusInProgress) {
		zapLog.Info("reprocessing redelivered task", zap.Stringer("status", t.Status))
	}

	if err := w.repo.Update(ctx, taskID, StatusInProgress, nil); err != nil {
		// No FAILED write here: the task keeps its last state (normally
		// PENDING) because PENDING -> FAILED is not a lifecycle edge.
		zapLog.Error("failed to mark task in progress", zap.Error(err))
		return err
	}

	result, err := w.run(ctx, t.Text)
	if err != nil {
		return w.fail(ctx, zapLog, taskID, err)
	}

	if err := w.repo.Update(ctx, taskID, StatusCompleted, &result); err != nil {
		return w.fail(ctx, zapLog, taskID, err)
	}

	zapLog.Info("task completed",
		zap.Int("word_count", result.WordCount),
		zap.Int("char_count", result.CharCount),
	)
	return nil
}

func (w *Worker) run(ctx context.Context, text string) (Result, error) {
	if w.delay > 0 {
		timer := time.NewTimer(w.delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return Result{}, fmt.Errorf("%w: %w", ErrProcessing, ctx.Err())
		}
	}

	result, err := w.analyze(text)
	if err != nil {
		if !errors.Is(err, ErrProcessing) {
			err = fmt.Errorf("%w: %w", ErrProcessing, err)
		}
		return Result{}, err
	}

	return result, nil
}

// fail records FAILED for a task that already reached IN_PROGRESS. The write
// is best-effort and survives cancellation of the attempt's context; if it
// fails too, both errors are returned.
func (w *Worker) fail(ctx context.Context, zapLog *zap.Logger, taskID string, cause error) error {
	zapLog.Error("task processing failed", zap.Error(cause))

	if err := w.repo.Update(context.WithoutCancel(ctx), taskID, StatusFailed, nil); err != nil {
		zapLog.Error("failed to mark task failed", zap.Error(err))
		return errors.Join(cause, fmt.Errorf("mark task failed: %w", err))
	}

	return cause
}

// retryDecision chooses between redelivery and giving up based on the error
// kind and the attempt counter carried by the asynq context.
func (w *Worker) retryDecision(ctx context.Context, taskID string, err error) error {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		maxRetry = w.maxRetry
	}

	zapLog := zap.L().With(
		zap.String("task_id", taskID),
		zap.String("kind", classify(err)),
		zap.Int("retried", retried),
		zap.Int("max_retry", maxRetry),
	)

	if retried >= maxRetry {
		zapLog.Error("retry budget exhausted, task stays failed", zap.Error(err))
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	zapLog.Warn("scheduling retry", zap.Error(err))
	return err
}

func classify(err error) string {
	switch {
	case errors.Is(err, asynq.SkipRetry):
		return "permanent"
	case errors.Is(err, ErrStore):
		return "store"
	case errors.Is(err, ErrProcessing):
		return "processing"
	default:
		return "unknown"
	}
}
