package task

import (
	"context"
	"fmt"

	"textanalysis/pkg/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Client = fx.Module("asynq:client",
	fx.Provide(registerClient, NewEnqueuer),
)

func registerClient(lc fx.Lifecycle, rdb *redis.Client) (*asynq.Client, error) {
	client := asynq.NewClientFromRedisClient(rdb)

	if err := client.Ping(); err != nil {
		zap.L().Error("[Asynq] Failed to connect to Asynq", zap.Error(err))
		return nil, fmt.Errorf("connect asynq: %w", err)
	}

	zap.L().Info("[Asynq] Connected to Asynq")

	// The underlying redis client is owned by the redis module, so only the
	// asynq handle is released here.
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return client, nil
}

var Server = fx.Module("asynq:server",
	fx.Provide(registerServerMux, NewServer),
	fx.Invoke(runServer),
)

func registerServerMux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Use(LoggingMiddleware)
	return mux
}

func NewServer(cfg *config.Config, log *zap.Logger) *asynq.Server {
	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		},
		ServerConfig(cfg, log),
	)
}

func ServerConfig(cfg *config.Config, log *zap.Logger) asynq.Config {
	return asynq.Config{
		Concurrency:    cfg.Worker.Concurrency,
		RetryDelayFunc: FixedRetryDelay(cfg.Worker.RetryDelay),
		Queues: map[string]int{
			cfg.Worker.Queue: 1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(ReportError),
		Logger:       log.Named("asynq").Sugar(),
	}
}

func runServer(lc fx.Lifecycle, cfg *config.Config, server *asynq.Server, mux *asynq.ServeMux) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := server.Start(mux); err != nil {
				zap.L().Error("[Asynq] Failed to start Asynq server", zap.Error(err))
				return err
			}
			zap.L().Info("[Asynq] Asynq server started",
				zap.String("addr", cfg.Redis.Addr),
				zap.String("queue", cfg.Worker.Queue),
				zap.Int("concurrency", cfg.Worker.Concurrency),
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			zap.L().Info("[Asynq] Shutting down Asynq server...")
			server.Shutdown()
			return nil
		},
	})
}
