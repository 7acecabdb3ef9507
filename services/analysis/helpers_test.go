package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"textanalysis/pkg/config"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	zap.ReplaceGlobals(zap.NewNop())
	m.Run()
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Worker.Queue = "analysis"
	cfg.Worker.MaxRetry = 3
	return cfg
}

// fakeQueue records every enqueued message instead of talking to Redis.
type fakeQueue struct {
	mu   sync.Mutex
	jobs []*asynq.Task
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, job *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.err != nil {
		return nil, q.err
	}
	q.jobs = append(q.jobs, job)
	return &asynq.TaskInfo{ID: fmt.Sprintf("msg-%d", len(q.jobs)), Queue: "analysis", Type: job.Type()}, nil
}

func (q *fakeQueue) taskIDs(t *testing.T) []string {
	t.Helper()
	q.mu.Lock()
	defer q.mu.Unlock()

	ids := make([]string, 0, len(q.jobs))
	for _, job := range q.jobs {
		p, err := ParseProcessTextPayload(job)
		if err != nil {
			t.Fatalf("queued message is not decodable: %v", err)
		}
		ids = append(ids, p.TaskID)
	}
	return ids
}

// flakyRepo fails Update calls for the listed statuses and runs afterUpdate
// once a write went through.
type flakyRepo struct {
	Repository
	failOn      map[Status]error
	afterUpdate func(Status)
}

func (r *flakyRepo) Update(ctx context.Context, id string, status Status, result *Result) error {
	if err, ok := r.failOn[status]; ok {
		return err
	}
	if err := r.Repository.Update(ctx, id, status, result); err != nil {
		return err
	}
	if r.afterUpdate != nil {
		r.afterUpdate(status)
	}
	return nil
}

var errStoreDown = errors.Join(ErrStore, errors.New("connection refused"))
