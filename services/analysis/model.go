package analysis

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type Task struct {
	ID        string         `gorm:"column:id;primaryKey;type:varchar(36)"`
	Text      string         `gorm:"column:text;type:text;not null"`
	Status    Status         `gorm:"column:status;type:varchar(20);not null;default:'PENDING';index"`
	Result    datatypes.JSON `gorm:"column:result"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (Task) TableName() string {
	return "tasks"
}

// Result is the outcome of a completed analysis.
type Result struct {
	WordCount int `json:"word_count"`
	CharCount int `json:"char_count"`
}

// DecodeResult returns nil while the task has no result.
func (t *Task) DecodeResult() (*Result, error) {
	if len(t.Result) == 0 || string(t.Result) == "null" {
		return nil, nil
	}

	var r Result
	if err := json.Unmarshal(t.Result, &r); err != nil {
		return nil, fmt.Errorf("decode result of task %s: %w", t.ID, err)
	}
	return &r, nil
}

func encodeResult(r *Result) (datatypes.JSON, error) {
	if r == nil {
		return nil, nil
	}

	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
