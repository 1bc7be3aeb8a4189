package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/warp/procurement-engine/procurement"
)

// BroadcastChannel receives every notification.
const BroadcastChannel = "notifications:broadcast"

// WarehouseChannel is the channel for notifications about one warehouse.
func WarehouseChannel(id procurement.WarehouseID) string {
	return "notifications:warehouse:" + string(id)
}

// RedisPublisher publishes notifications as JSON to Redis channels.
// A nil client makes it a no-op.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Notify(ctx context.Context, n procurement.Notification) error {
	if p.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if n.WarehouseID != "" {
		if err := p.rdb.Publish(ctx, WarehouseChannel(n.WarehouseID), payload).Err(); err != nil {
			return err
		}
	}
	return p.rdb.Publish(ctx, BroadcastChannel, payload).Err()
}

// Close releases the client.
func (p *RedisPublisher) Close() error {
	if p.rdb == nil {
		return nil
	}
	return p.rdb.Close()
}
