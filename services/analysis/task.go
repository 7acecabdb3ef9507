package analysis

import (
	"encoding/json"
	"fmt"

	"textanalysis/pkg/config"
	"textanalysis/pkg/taskname"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// ProcessTextPayload is the queue message body. It carries only the task id;
// the text is always read back from the store.
type ProcessTextPayload struct {
	TaskID string `json:"task_id"`
}

func NewProcessTextTask(taskID string, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(ProcessTextPayload{TaskID: taskID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskname.AnalysisProcessText, payload, opts...), nil
}

// ParseProcessTextPayload decodes and validates a queue message. The id is
// returned in canonical form.
func ParseProcessTextPayload(t *asynq.Task) (ProcessTextPayload, error) {
	var p ProcessTextPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("invalid %s payload: %w", t.Type(), err)
	}

	id, err := uuid.Parse(p.TaskID)
	if err != nil {
		return p, fmt.Errorf("%w %q: %w", ErrInvalidTaskID, p.TaskID, err)
	}
	p.TaskID = id.String()

	return p, nil
}

// TaskOptions are the delivery options every process-text message is
// enqueued with: bounded retries on the worker queue.
func TaskOptions(cfg *config.Config) []asynq.Option {
	return []asynq.Option{
		asynq.Queue(cfg.Worker.Queue),
		asynq.MaxRetry(cfg.Worker.MaxRetry),
		asynq.Timeout(cfg.Worker.Timeout),
	}
}
