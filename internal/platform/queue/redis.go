package queue

import (
	"context"
	"fmt"

	"proconnect/internal/platform/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var RDB *redis.Client

func ConnectRedis(log *zap.Logger) error {
	RDB = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisDB,
	})

	if _, err := RDB.Ping(context.Background()).Result(); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	log.Info("connected to Redis", zap.String("addr", config.AppConfig.RedisAddr))
	return nil
}

func CloseRedis(log *zap.Logger) {
	if RDB != nil {
		RDB.Close()
		log.Info("redis connection closed")
	}
}
