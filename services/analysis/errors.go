package analysis

import "errors"

var (
	ErrEmptyText     = errors.New("text cannot be empty")
	ErrInvalidTaskID = errors.New("invalid task id")
	ErrInvalidStatus = errors.New("invalid task status")
	ErrTaskNotFound  = errors.New("task not found")

	// ErrStore marks connectivity or query failures of the task store.
	ErrStore = errors.New("task store failure")
	// ErrProcessing marks failures of the analysis step itself.
	ErrProcessing = errors.New("task processing failure")
)
