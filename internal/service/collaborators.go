package service

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/listing-admin/internal/config"
)

// logMailer is the development mailer: it logs instead of delivering.
type logMailer struct {
	logger *zap.Logger
	from   string
}

// NewLogMailer builds a mailer that reports every message to the log.
func NewLogMailer(logger *zap.Logger, cfg config.NotificationConfig) Mailer {
	return &logMailer{logger: logger, from: cfg.EmailFrom}
}

func (m *logMailer) Send(_ context.Context, recipientEmail, subject, body string) bool {
	if strings.TrimSpace(m.from) == "" {
		return false
	}
	m.logger.Info("mail",
		zap.String("from", m.from),
		zap.String("to", recipientEmail),
		zap.String("subject", subject),
		zap.String("body", body))
	return true
}

// logMediaCleaner stands in for the external asset store in development.
type logMediaCleaner struct {
	logger *zap.Logger
}

// NewLogMediaCleaner builds a media cleaner that only logs deletions.
func NewLogMediaCleaner(logger *zap.Logger) MediaCleaner {
	return &logMediaCleaner{logger: logger}
}

func (m *logMediaCleaner) DeletePublicAsset(_ context.Context, assetKey string) error {
	m.logger.Info("delete public asset", zap.String("asset_key", assetKey))
	return nil
}

// redisViewCache invalidates cached admin views by deleting their keys.
type redisViewCache struct {
	client *redis.Client
	prefix string
}

// NewRedisViewCache builds a redis-backed view invalidator.
func NewRedisViewCache(client *redis.Client, cfg config.NotificationConfig) ViewInvalidator {
	return &redisViewCache{client: client, prefix: cfg.CacheKeyPrefix}
}

func (c *redisViewCache) Invalidate(ctx context.Context, path string) error {
	if c.client == nil {
		return nil
	}
	key := c.prefix + ":" + path
	return c.client.Del(ctx, key).Err()
}
