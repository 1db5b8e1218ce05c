package redis

import (
	"context"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dwarvesf/escrow-backend/internal/utils/config"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
)

// New connects to redis when REDIS_URL is set. It returns nil otherwise.
func New(ctx context.Context, appConfig *config.AppConfig, logger *logger.Logger) (*goredis.Client, error) {
	if appConfig.Redis.URL == "" {
		return nil, nil
	}

	opts, err := goredis.ParseURL(appConfig.Redis.URL)
	if err != nil {
		return nil, err
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	logger.Info("redis connected", map[string]string{
		"addr": opts.Addr,
	})
	return client, nil
}
