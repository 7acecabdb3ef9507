package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=analysis

// Repository is the task record store shared by the API and the worker.
// Every call commits before returning, so writes from one process are visible
// to the next read from the other.
type Repository interface {
	Insert(ctx context.Context, text string) (*Task, error)
	// Get returns (nil, nil) when no task has the given id.
	Get(ctx context.Context, id string) (*Task, error)
	// Update sets status and result in one statement. A nil result clears
	// the column.
	Update(ctx context.Context, id string, status Status, result *Result) error
}

type gormRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db, now: time.Now}
}

func (r *gormRepository) Insert(ctx context.Context, text string) (*Task, error) {
	now := r.now().UTC()
	task := &Task{
		ID:        uuid.NewString(),
		Text:      text,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return nil, fmt.Errorf("%w: insert task: %w", ErrStore, err)
	}

	return task, nil
}

func (r *gormRepository) Get(ctx context.Context, id string) (*Task, error) {
	var task Task
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get task %s: %w", ErrStore, id, err)
	}

	return &task, nil
}

func (r *gormRepository) Update(ctx context.Context, id string, status Status, result *Result) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, string(status))
	}
	if result != nil && status != StatusCompleted {
		return fmt.Errorf("%w: result is only kept for %s tasks", ErrInvalidStatus, StatusCompleted)
	}

	encoded, err := encodeResult(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	values := map[string]any{
		"status":     status,
		"result":     nil,
		"updated_at": r.now().UTC(),
	}
	if encoded != nil {
		values["result"] = encoded
	}

	res := r.db.WithContext(ctx).Model(&Task{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return fmt.Errorf("%w: update task %s: %w", ErrStore, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update task %s: %w", id, ErrTaskNotFound)
	}

	return nil
}
