// Package lock provides named, non-owning mutual exclusion around a single
// task execution. Acquisition is always non-blocking: a loser is told "no"
// immediately and is never queued.
package lock

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"reportplane/pkg/config"
)

// Locker is the narrow exclusive-lock interface the coordinator depends on.
// Backends are swappable: database advisory locks, redis keys with TTL, or
// an in-process set for single-node deployments.
type Locker interface {
	TryAcquire(ctx context.Context, name string) (bool, error)
	Release(ctx context.Context, name string) error
}

var Module = fx.Module("lock",
	fx.Provide(NewLocker),
)

type Params struct {
	fx.In
	Cfg   *config.Config
	DB    *gorm.DB      `optional:"true"`
	Redis *redis.Client `optional:"true"`
}

// NewLocker selects the backend from configuration, falling back to the
// in-process locker when the configured backend has no usable client.
func NewLocker(p Params) Locker {
	switch p.Cfg.Engine.LockBackend {
	case "advisory":
		if p.DB != nil {
			name := p.DB.Dialector.Name()
			if name == "mysql" || name == "postgres" {
				return NewAdvisoryLocker(p.DB)
			}
			zap.L().Warn("[Lock] advisory backend unsupported for dialect, using memory", zap.String("dialect", name))
		}
	case "redis":
		if p.Redis != nil {
			return NewRedisLocker(p.Redis)
		}
		zap.L().Warn("[Lock] redis backend configured without redis client, using memory")
	}
	return NewMemoryLocker()
}
