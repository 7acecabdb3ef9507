package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"textanalysis/pkg/errutil"
	"textanalysis/pkg/task"
	"textanalysis/services/testutil"
)

func newTestService(t *testing.T) (*Service, Repository, *fakeQueue) {
	t.Helper()

	repo := NewRepository(testutil.NewTestDB(t, &Task{}))
	queue := &fakeQueue{}
	svc := NewService(ServiceParams{Repo: repo, Queue: queue, Config: testConfig()})
	return svc, repo, queue
}

func TestServiceCreateTask(t *testing.T) {
	svc, repo, queue := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateTask(ctx, "hello world")
	require.NoError(t, err)
	require.Equal(t, StatusPending, created.Status)

	// Exactly one message, carrying exactly the new id.
	require.Equal(t, []string{created.ID}, queue.taskIDs(t))

	stored, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "hello world", stored.Text)
	require.Equal(t, StatusPending, stored.Status)
}

func TestServiceCreateTaskLogsCharacterCount(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	svc, _, _ := newTestService(t)
	_, err := svc.CreateTask(context.Background(), "héllo wörld")
	require.NoError(t, err)

	entries := logs.FilterMessage("task created").All()
	require.Len(t, entries, 1)
	require.EqualValues(t, 11, entries[0].ContextMap()["char_count"])
}

func TestServiceCreateTaskRejectsBlankText(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	queue := task.NewMockEnqueuer(ctrl)
	svc := NewService(ServiceParams{Repo: repo, Queue: queue, Config: testConfig()})

	for _, text := range []string{"", "   ", "\t\n"} {
		_, err := svc.CreateTask(context.Background(), text)
		require.ErrorIs(t, err, ErrEmptyText)
		require.Equal(t, errutil.StatusBadRequest, errutil.StatusOf(err))
	}
}

func TestServiceCreateTaskInsertFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	queue := task.NewMockEnqueuer(ctrl)
	svc := NewService(ServiceParams{Repo: repo, Queue: queue, Config: testConfig()})

	repo.EXPECT().Insert(gomock.Any(), "hello").Return(nil, errStoreDown)

	_, err := svc.CreateTask(context.Background(), "hello")
	require.ErrorIs(t, err, ErrStore)
	require.Equal(t, errutil.StatusInternal, errutil.StatusOf(err))
}

func TestServiceCreateTaskEnqueueFailureLeavesPending(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	queue := task.NewMockEnqueuer(ctrl)
	svc := NewService(ServiceParams{Repo: repo, Queue: queue, Config: testConfig()})

	id := uuid.NewString()
	repo.EXPECT().Insert(gomock.Any(), "hello").Return(&Task{ID: id, Text: "hello", Status: StatusPending}, nil)
	queue.EXPECT().
		Enqueue(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, job *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
			p, err := ParseProcessTextPayload(job)
			require.NoError(t, err)
			require.Equal(t, id, p.TaskID)
			return nil, errors.New("redis: connection refused")
		})

	_, err := svc.CreateTask(context.Background(), "hello")
	require.Error(t, err)
	require.Equal(t, errutil.StatusInternal, errutil.StatusOf(err))
}

func TestServiceGetTask(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateTask(ctx, "hello world")
	require.NoError(t, err)

	got, err := svc.GetTask(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
	require.Equal(t, StatusPending, got.Status)
}

func TestServiceGetTaskErrors(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.GetTask(context.Background(), uuid.NewString())
	require.ErrorIs(t, err, ErrTaskNotFound)
	require.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))

	_, err = svc.GetTask(context.Background(), "not-a-uuid")
	require.ErrorIs(t, err, ErrInvalidTaskID)
	require.Equal(t, errutil.StatusValidationFailed, errutil.StatusOf(err))
}

func TestServiceGetTaskStoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	svc := NewService(ServiceParams{Repo: repo, Queue: task.NewMockEnqueuer(ctrl), Config: testConfig()})

	repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, errStoreDown)

	_, err := svc.GetTask(context.Background(), uuid.NewString())
	require.Equal(t, errutil.StatusInternal, errutil.StatusOf(err))
}
