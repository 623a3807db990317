package output

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/tsinghua-fib-lab/junction-sim/utils/config"
)

// Publisher 快照发布接口，供外部渲染层订阅
type Publisher interface {
	Publish(ctx context.Context, snapshot any) error
	Close() error
}

// redisPublishClient 发布器对Redis客户端的最小依赖
type redisPublishClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// RedisPublisher 将快照以JSON发布到Redis频道
type RedisPublisher struct {
	client  redisPublishClient
	channel string
}

// NewRedisPublisher 创建Redis发布器
// 参数：c-输出配置，job-任务名（频道缺省为{job}.snapshot）
func NewRedisPublisher(c config.RedisOutput, job string) *RedisPublisher {
	channel := c.Channel
	if channel == "" {
		channel = job + ".snapshot"
	}
	log.Infof("publish snapshots to redis %s channel %s", c.Addr, channel)
	return newRedisPublisher(redis.NewClient(&redis.Options{Addr: c.Addr}), channel)
}

func newRedisPublisher(client redisPublishClient, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// Publish 序列化并发布快照
func (p *RedisPublisher) Publish(ctx context.Context, snapshot any) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish snapshot to %s: %w", p.channel, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
