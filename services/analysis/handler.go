package analysis

import (
	"net/http"

	"textanalysis/pkg/errutil"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CreateTaskRequest struct {
	Text *string `json:"text" binding:"required"`
}

type CreateTaskResponse struct {
	TaskID string `json:"task_id"`
}

type TaskStatusResponse struct {
	ID     string  `json:"id"`
	Status Status  `json:"status"`
	Result *Result `json:"result"`
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	tasks := r.Group("/api/v1/tasks")
	tasks.POST("", h.CreateTask)
	tasks.GET("/:id", h.GetTask)
}

// CreateTask answers 202: the task is recorded and queued, not processed.
func (h *Handler) CreateTask(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.ValidationFailed("Field 'text' is required and must be a string", err))
		return
	}

	t, err := h.svc.CreateTask(c.Request.Context(), *req.Text)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusAccepted, CreateTaskResponse{TaskID: t.ID})
}

func (h *Handler) GetTask(c *gin.Context) {
	t, err := h.svc.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	result, err := t.DecodeResult()
	if err != nil {
		zap.L().Error("stored result is unreadable", zap.String("task_id", t.ID), zap.Error(err))
		_ = c.Error(errutil.Internal(msgInternal, err))
		return
	}

	c.JSON(http.StatusOK, TaskStatusResponse{
		ID:     t.ID,
		Status: t.Status,
		Result: result,
	})
}
