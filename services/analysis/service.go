package analysis

import (
	"context"
	"strings"
	"unicode/utf8"

	"textanalysis/pkg/config"
	"textanalysis/pkg/errutil"
	"textanalysis/pkg/task"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	msgEmptyText     = "Text cannot be empty"
	msgTaskNotFound  = "Task not found"
	msgInvalidTaskID = "Invalid task id"
	msgInternal      = "Internal server error"
)

// Service is the synchronous side of the pipeline: it records tasks and hands
// their ids to the queue. It never processes or retries.
type Service struct {
	repo  Repository
	queue task.Enqueuer
	opts  []asynq.Option
}

type ServiceParams struct {
	fx.In
	Repo   Repository
	Queue  task.Enqueuer
	Config *config.Config
}

func NewService(p ServiceParams) *Service {
	return &Service{
		repo:  p.Repo,
		queue: p.Queue,
		opts:  TaskOptions(p.Config),
	}
}

func (s *Service) CreateTask(ctx context.Context, text string) (*Task, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errutil.BadRequest(msgEmptyText, ErrEmptyText)
	}

	t, err := s.repo.Insert(ctx, text)
	if err != nil {
		zap.L().Error("failed to insert task", zap.Error(err))
		return nil, errutil.Internal(msgInternal, err)
	}

	zapLog := zap.L().With(zap.String("task_id", t.ID))

	job, err := NewProcessTextTask(t.ID, s.opts...)
	if err != nil {
		zapLog.Error("failed to build queue message", zap.Error(err))
		return nil, errutil.Internal(msgInternal, err)
	}

	info, err := s.queue.Enqueue(ctx, job)
	if err != nil {
		// The row stays PENDING; the API does not retry.
		zapLog.Error("failed to enqueue task", zap.Error(err))
		return nil, errutil.Internal(msgInternal, err)
	}

	fields := []zap.Field{zap.Int("char_count", utf8.RuneCountInString(text))}
	if info != nil {
		fields = append(fields, zap.String("message_id", info.ID), zap.String("queue", info.Queue))
	}
	zapLog.Info("task created", fields...)

	return t, nil
}

func (s *Service) GetTask(ctx context.Context, id string) (*Task, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, errutil.ValidationFailed(msgInvalidTaskID, ErrInvalidTaskID)
	}

	t, err := s.repo.Get(ctx, parsed.String())
	if err != nil {
		zap.L().Error("failed to get task", zap.String("task_id", id), zap.Error(err))
		return nil, errutil.Internal(msgInternal, err)
	}
	if t == nil {
		return nil, errutil.NotFound(msgTaskNotFound, ErrTaskNotFound)
	}

	return t, nil
}
