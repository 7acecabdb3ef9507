package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"textanalysis/pkg/taskname"
	"textanalysis/services/testutil"
)

func newTestWorker(repo Repository) *Worker {
	w := NewWorker(WorkerParams{Repo: repo, Config: testConfig()})
	w.delay = 0
	return w
}

func insertTask(t *testing.T, repo Repository, text string) *Task {
	t.Helper()
	created, err := repo.Insert(context.Background(), text)
	require.NoError(t, err)
	return created
}

func loadTask(t *testing.T, repo Repository, id string) (*Task, *Result) {
	t.Helper()
	got, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, got)
	result, err := got.DecodeResult()
	require.NoError(t, err)
	return got, result
}

func TestWorkerProcessCompletes(t *testing.T) {
	repo := NewRepository(testutil.NewTestDB(t, &Task{}))
	w := newTestWorker(repo)
	created := insertTask(t, repo, "hello world")

	require.NoError(t, w.Process(context.Background(), created.ID))

	got, result := loadTask(t, repo, created.ID)
	require.Equal(t, StatusCompleted, got.Status)
	require.Equal(t, &Result{WordCount: 2, CharCount: 11}, result)
}

func TestWorkerProcessPassesThroughInProgress(t *testing.T) {
	repo := NewRepository(testutil.NewTestDB(t, &Task{}))
	w := newTestWorker(repo)
	created := insertTask(t, repo, "hello world")

	var seen Status
	w.analyze = func(text string) (Result, error) {
		got, err := repo.Get(context.Background(), created.ID)
		require.NoError(t, err)
		seen = got.Status
		return Analyze(text)
	}

	require.NoError(t, w.Process(context.Background(), created.ID))
	require.Equal(t, StatusInProgress, seen)
}

func TestWorkerProcessMissingTaskIsNoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	w := newTestWorker(repo)

	id := uuid.NewString()
	repo.EXPECT().Get(gomock.Any(), id).Return(nil, nil)

	require.NoError(t, w.Process(context.Background(), id))
}

func TestWorkerProcessFailureMarksFailed(t *testing.T) {
	repo := NewRepository(testutil.NewTestDB(t, &Task{}))
	w := newTestWorker(repo)
	w.analyze = func(string) (Result, error) { return Result{}, errors.New("boom") }
	created := insertTask(t, repo, "hello world")

	err := w.Process(context.Background(), created.ID)
	require.ErrorIs(t, err, ErrProcessing)

	got, result := loadTask(t, repo, created.ID)
	require.Equal(t, StatusFailed, got.Status)
	require.Nil(t, result)
}

func TestWorkerProcessCancelledDuringDelay(t *testing.T) {
	base := NewRepository(testutil.NewTestDB(t, &Task{}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := &flakyRepo{Repository: base, afterUpdate: func(s Status) {
		if s == StatusInProgress {
			cancel()
		}
	}}
	w := newTestWorker(repo)
	w.delay = time.Hour
	w.analyze = func(string) (Result, error) {
		t.Fatal("analyze must not run after cancellation")
		return Result{}, nil
	}
	created := insertTask(t, base, "hello world")

	err := w.Process(ctx, created.ID)
	require.ErrorIs(t, err, ErrProcessing)
	require.ErrorIs(t, err, context.Canceled)

	// The FAILED write is not tied to the cancelled attempt.
	got, _ := loadTask(t, base, created.ID)
	require.Equal(t, StatusFailed, got.Status)
}

func TestWorkerProcessRedeliveryIsIdempotent(t *testing.T) {
	repo := NewRepository(testutil.NewTestDB(t, &Task{}))
	w := newTestWorker(repo)
	created := insertTask(t, repo, "the quick brown fox")

	require.NoError(t, w.Process(context.Background(), created.ID))
	_, first := loadTask(t, repo, created.ID)

	require.NoError(t, w.Process(context.Background(), created.ID))
	got, second := loadTask(t, repo, created.ID)

	require.Equal(t, StatusCompleted, got.Status)
	require.Equal(t, first, second)
}

func TestWorkerProcessRetryAfterFailureCompletes(t *testing.T) {
	repo := NewRepository(testutil.NewTestDB(t, &Task{}))
	w := newTestWorker(repo)
	created := insertTask(t, repo, "hello world")

	attempts := 0
	w.analyze = func(text string) (Result, error) {
		attempts++
		if attempts == 1 {
			return Result{}, errors.New("transient")
		}
		return Analyze(text)
	}

	require.Error(t, w.Process(context.Background(), created.ID))
	got, _ := loadTask(t, repo, created.ID)
	require.Equal(t, StatusFailed, got.Status)

	require.NoError(t, w.Process(context.Background(), created.ID))
	got, result := loadTask(t, repo, created.ID)
	require.Equal(t, StatusCompleted, got.Status)
	require.Equal(t, &Result{WordCount: 2, CharCount: 11}, result)
}

func TestWorkerProcessInProgressWriteFailureKeepsPending(t *testing.T) {
	base := NewRepository(testutil.NewTestDB(t, &Task{}))
	repo := &flakyRepo{Repository: base, failOn: map[Status]error{StatusInProgress: errStoreDown}}
	w := newTestWorker(repo)
	created := insertTask(t, base, "hello world")

	err := w.Process(context.Background(), created.ID)
	require.ErrorIs(t, err, ErrStore)

	got, _ := loadTask(t, base, created.ID)
	require.Equal(t, StatusPending, got.Status)
}

func TestWorkerProcessCompletedWriteFailureMarksFailed(t *testing.T) {
	base := NewRepository(testutil.NewTestDB(t, &Task{}))
	repo := &flakyRepo{Repository: base, failOn: map[Status]error{StatusCompleted: errStoreDown}}
	w := newTestWorker(repo)
	created := insertTask(t, base, "hello world")

	err := w.Process(context.Background(), created.ID)
	require.ErrorIs(t, err, ErrStore)

	got, result := loadTask(t, base, created.ID)
	require.Equal(t, StatusFailed, got.Status)
	require.Nil(t, result)
}

func TestWorkerProcessFailedWriteFailureJoinsErrors(t *testing.T) {
	base := NewRepository(testutil.NewTestDB(t, &Task{}))
	markErr := errors.New("disk full")
	repo := &flakyRepo{Repository: base, failOn: map[Status]error{StatusFailed: markErr}}
	w := newTestWorker(repo)
	w.analyze = func(string) (Result, error) { return Result{}, errors.New("boom") }
	created := insertTask(t, base, "hello world")

	err := w.Process(context.Background(), created.ID)
	require.ErrorIs(t, err, ErrProcessing)
	require.ErrorIs(t, err, markErr)

	got, _ := loadTask(t, base, created.ID)
	require.Equal(t, StatusInProgress, got.Status)
}

func TestWorkerProcessLoadFailure(t *testing.T) {
	db := testutil.NewTestDB(t, &Task{})
	w := newTestWorker(NewRepository(db))
	testutil.CloseDB(t, db)

	err := w.Process(context.Background(), uuid.NewString())
	require.ErrorIs(t, err, ErrStore)
}

func TestHandleProcessTextSkipsUndecodablePayload(t *testing.T) {
	ctrl := gomock.NewController(t)
	w := newTestWorker(NewMockRepository(ctrl))

	err := w.HandleProcessText(context.Background(), asynq.NewTask(taskname.AnalysisProcessText, []byte(`{"task_id":"x"}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.ErrorIs(t, err, ErrInvalidTaskID)
}

func TestHandleProcessText(t *testing.T) {
	repo := NewRepository(testutil.NewTestDB(t, &Task{}))
	w := newTestWorker(repo)
	created := insertTask(t, repo, "hello world")

	job, err := NewProcessTextTask(created.ID)
	require.NoError(t, err)

	require.NoError(t, w.HandleProcessText(context.Background(), job))
	got, _ := loadTask(t, repo, created.ID)
	require.Equal(t, StatusCompleted, got.Status)
}

func TestRetryDecision(t *testing.T) {
	w := &Worker{maxRetry: 3}
	cause := errors.Join(ErrProcessing, errors.New("boom"))

	// Outside an asynq handler the attempt counter reads as zero, so the
	// configured budget keeps the message retryable.
	err := w.retryDecision(context.Background(), uuid.NewString(), cause)
	require.ErrorIs(t, err, ErrProcessing)
	require.NotErrorIs(t, err, asynq.SkipRetry)

	w.maxRetry = 0
	err = w.retryDecision(context.Background(), uuid.NewString(), cause)
	require.ErrorIs(t, err, ErrProcessing)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestClassify(t *testing.T) {
	require.Equal(t, "store", classify(errStoreDown))
	require.Equal(t, "processing", classify(errors.Join(ErrProcessing, errors.New("x"))))
	require.Equal(t, "permanent", classify(asynq.SkipRetry))
	require.Equal(t, "unknown", classify(errors.New("x")))
}
