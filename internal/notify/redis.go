package notify

import (
	"alcyxob/gym-sessions/internal/domain"
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher fans notifications out on a per-member Pub/Sub channel
// so connected clients can be pushed new inbox items.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// NewRedisPublisher connects to redisURL and verifies the connection.
func NewRedisPublisher(redisURL, channelPrefix string) (*RedisPublisher, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	log.Println("Redis connection established")
	return NewRedisPublisherFromClient(client, channelPrefix), nil
}

func NewRedisPublisherFromClient(client *redis.Client, channelPrefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: channelPrefix}
}

// Channel returns the Pub/Sub channel carrying a member's notifications.
func (p *RedisPublisher) Channel(n domain.Notification) string {
	return p.prefix + n.MemberID.Hex()
}

func (p *RedisPublisher) Publish(ctx context.Context, n domain.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.Channel(n), data).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
