package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/tmsbilling/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyDocumentRender = "ratelimit:documents:%s"

// DocumentLimiter throttles invoice PDF generation per caller.
// A nil limiter allows everything.
type DocumentLimiter struct {
	bucket *TokenBucket
	prefix string
	rate   float64
	burst  int
}

func NewDocumentLimiter(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*DocumentLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, ErrNotConfigured
	}
	if limitCfg.DocumentRate <= 0 || limitCfg.DocumentBurst <= 0 {
		return nil, ErrInvalidRate
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	log.Info("document rate limit enabled",
		zap.Float64("rate", limitCfg.DocumentRate),
		zap.Int("burst", limitCfg.DocumentBurst),
	)

	return newDocumentLimiter(NewTokenBucket(client), cfg.AppName, limitCfg.DocumentRate, limitCfg.DocumentBurst), nil
}

func newDocumentLimiter(bucket *TokenBucket, app string, rate float64, burst int) *DocumentLimiter {
	prefix := ""
	if app = strings.TrimSpace(app); app != "" {
		prefix = app + ":"
	}
	return &DocumentLimiter{bucket: bucket, prefix: prefix, rate: rate, burst: burst}
}

func (l *DocumentLimiter) Allow(ctx context.Context, actorID string) (Result, error) {
	if l == nil {
		return Result{Allowed: true}, nil
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return Result{}, ErrEmptyKey
	}
	return l.bucket.Allow(ctx, l.prefix+fmt.Sprintf(keyDocumentRender, actorID), l.rate, l.burst)
}
