package cache

import "github.com/delivery/backend/internal/infrastructure/config"

func configForTest() config.RedisConfig {
	return config.RedisConfig{Host: "127.0.0.1", Port: 6379}
}
