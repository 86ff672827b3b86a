package cache

import (
	"fmt"

	"github.com/consulta/backend/internal/domain/shared"
	"github.com/consulta/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// InflightGuardFactory creates in-flight guards based on configuration
type InflightGuardFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// InflightGuardFactoryOption is a functional option for configuring the factory
type InflightGuardFactoryOption func(*InflightGuardFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) InflightGuardFactoryOption {
	return func(f *InflightGuardFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to an in-memory guard
// when Redis is unavailable. Default is true (allow fallback).
func WithInMemoryFallback(allow bool) InflightGuardFactoryOption {
	return func(f *InflightGuardFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewInflightGuardFactory creates a new factory
func NewInflightGuardFactory(cfg config.RedisConfig, opts ...InflightGuardFactoryOption) *InflightGuardFactory {
	f := &InflightGuardFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateRedisGuard creates a Redis-based in-flight guard
func (f *InflightGuardFactory) CreateRedisGuard() (shared.InflightGuard, error) {
	redisCfg := RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	}

	guard, err := NewRedisInflightGuard(redisCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis in-flight guard: %w", err)
	}

	return guard, nil
}

// CreateInMemoryGuard creates an in-memory in-flight guard.
// WARNING: in-memory guards do not share state across process instances,
// so two instances could run the same renewal concurrently.
func (f *InflightGuardFactory) CreateInMemoryGuard() shared.InflightGuard {
	return NewInMemoryInflightGuard()
}

// CreateGuard creates a guard based on whether Redis is available. It tries
// Redis first and falls back to in-memory when allowed.
func (f *InflightGuardFactory) CreateGuard() (shared.InflightGuard, error) {
	guard, err := f.CreateRedisGuard()
	if err == nil {
		f.logger.Info("using Redis in-flight guard")
		return guard, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for renewal serialization but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory in-flight guard. "+
		"Concurrent renewals are only serialized within this instance.",
		zap.Error(err),
	)
	return f.CreateInMemoryGuard(), nil
}
