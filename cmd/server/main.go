package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"github.com/improvdb/improvdb-api/internal/bootstrap"
	"github.com/improvdb/improvdb-api/internal/config"
	"github.com/improvdb/improvdb-api/internal/entity"
	"github.com/improvdb/improvdb-api/internal/server"
	"github.com/improvdb/improvdb-api/pkg/database"
	"github.com/improvdb/improvdb-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.Init(cfg.AppEnv)
	defer logger.L().Sync()

	db, err := database.Connect(cfg)
	if err != nil {
		logger.L().Fatal("failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&entity.User{},
		&entity.Category{},
		&entity.Resource{},
		&entity.LessonPlan{},
		&entity.LessonPlanSection{},
		&entity.LessonPlanItem{},
		&entity.Favourite{},
	); err != nil {
		logger.L().Fatal("migration failed", zap.Error(err))
	}

	if err := bootstrap.Seed(context.Background(), db, cfg); err != nil {
		logger.L().Fatal("seed failed", zap.Error(err))
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		logger.L().Fatal("failed to connect to redis", zap.Error(err))
	}
	if redisClient == nil {
		logger.L().Warn("redis not configured, using in-process rate limiting")
	}

	srv := server.NewServer(db, redisClient, cfg)

	logger.L().Info("starting server", zap.String("port", cfg.Port))
	if err := srv.Run(":" + cfg.Port); err != nil {
		logger.L().Fatal("server exited", zap.Error(err))
	}
}
