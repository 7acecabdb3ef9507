package analysis

import (
	"textanalysis/pkg/config"
	"textanalysis/pkg/taskname"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("analysis.module",
	fx.Provide(
		NewRepository,
	),
	fx.Invoke(Migrate),
)

var APIModule = fx.Module("analysis.api",
	Module,
	fx.Provide(
		NewService,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)

var WorkerModule = fx.Module("analysis.worker",
	Module,
	fx.Provide(
		NewWorker,
	),
	fx.Invoke(RegisterHandlers),
)

// Migrate creates or updates the tasks table when DATABASE_AUTO_MIGRATE is set.
func Migrate(db *gorm.DB, cfg *config.Config) error {
	if !cfg.Database.AutoMigrate {
		return nil
	}

	if err := db.AutoMigrate(&Task{}); err != nil {
		zap.L().Error("[DB] Failed to migrate tasks table", zap.Error(err))
		return err
	}

	zap.L().Info("[DB] Migrated tasks table")
	return nil
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	h.RegisterRoutes(r)
}

func RegisterHandlers(mux *asynq.ServeMux, w *Worker) {
	mux.HandleFunc(taskname.AnalysisProcessText, w.HandleProcessText)
}
