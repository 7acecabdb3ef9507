package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"textanalysis/pkg/config"
	"textanalysis/pkg/db"
	"textanalysis/pkg/health"
	"textanalysis/pkg/logger"
	"textanalysis/pkg/otelcol"
	"textanalysis/pkg/profiling"
	"textanalysis/pkg/redis"
	"textanalysis/pkg/server"
	"textanalysis/pkg/task"
	"textanalysis/services/analysis"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		otelcol.Module,
		profiling.Module,
		db.Module,
		redis.Module,
		health.Module,
		task.Server,
		server.ProvideGRPCServer,
		analysis.WorkerModule,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	if cfg.AppEnv == "production" {
		return fxevent.NopLogger
	}
	return &fxevent.ZapLogger{Logger: logger.Named("fx")}
})
