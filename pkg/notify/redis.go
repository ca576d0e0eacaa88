package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/rmax-ai/alertgraph/pkg/store"
)

const (
	channelAll    = "alertgraph:alerts"
	recentKey     = "alertgraph:recent"
	defaultRecent = 100
)

// RegionChannel returns the pub/sub channel carrying alerts of one region.
func RegionChannel(region string) string {
	return fmt.Sprintf("%s:%s", channelAll, strings.ToLower(region))
}

// RedisNotifier publishes alerts on Redis pub/sub channels and keeps a capped
// list of recent alert ids.
type RedisNotifier struct {
	client    *redis.Client
	logger    *slog.Logger
	maxRecent int64
}

// NewRedisNotifier wraps an existing client.
func NewRedisNotifier(client *redis.Client, logger *slog.Logger) *RedisNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisNotifier{client: client, logger: logger, maxRecent: defaultRecent}
}

// Publish sends the alert JSON to the global and the region channel and
// records its id in the recent list.
func (n *RedisNotifier) Publish(ctx context.Context, alert store.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert %s: %w", alert.ID, err)
	}

	pipe := n.client.TxPipeline()
	pipe.Publish(ctx, channelAll, data)
	pipe.Publish(ctx, RegionChannel(alert.Region), data)
	pipe.LPush(ctx, recentKey, alert.ID)
	pipe.LTrim(ctx, recentKey, 0, n.maxRecent-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish alert %s: %w", alert.ID, err)
	}

	n.logger.Debug("alert_published", "alert_id", alert.ID, "region", alert.Region)
	return nil
}

// Recent returns up to limit recently published alert ids, newest first.
func (n *RedisNotifier) Recent(ctx context.Context, limit int64) ([]string, error) {
	if limit <= 0 || limit > n.maxRecent {
		limit = n.maxRecent
	}
	ids, err := n.client.LRange(ctx, recentKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read recent alerts: %w", err)
	}
	return ids, nil
}

// Watch subscribes to alerts, optionally restricted to one region, and calls
// fn for each one until ctx is cancelled. Malformed messages are logged and
// skipped.
func (n *RedisNotifier) Watch(ctx context.Context, region string, fn func(store.Alert)) error {
	channel := channelAll
	if region != "" {
		channel = RegionChannel(region)
	}

	sub := n.client.Subscribe(ctx, channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before reading messages.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var alert store.Alert
			if err := json.Unmarshal([]byte(msg.Payload), &alert); err != nil {
				n.logger.Warn("alert_message_invalid", "channel", msg.Channel, "error", err)
				continue
			}
			fn(alert)
		}
	}
}
