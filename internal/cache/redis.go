package cache

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/asterdex-mlm/internal/config"
	"github.com/asterdex-mlm/internal/constants"

	"github.com/redis/go-redis/v9"
)

// Store Redis 读写封装；nil 或未启用时所有操作为空操作
type Store struct {
	client *redis.Client
	prefix string
}

var shared *Store

// NewStore 基于已有客户端创建 Store
func NewStore(client *redis.Client, prefix string) *Store {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = constants.RedisPrefixDefault
	}
	return &Store{client: client, prefix: prefix}
}

// InitRedis 按配置初始化全局 Store
func InitRedis(cfg *config.RedisConfig) error {
	if cfg == nil || !cfg.Enabled {
		shared = nil
		return nil
	}
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port <= 0 {
		port = 6379
	}
	client := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	shared = NewStore(client, cfg.Prefix)
	return nil
}

// Default 全局 Store（未初始化时为 nil，仍可安全调用）
func Default() *Store {
	return shared
}

// Enabled 全局 Store 是否可用
func Enabled() bool {
	return shared.Enabled()
}

// Client 全局 Redis 客户端
func Client() *redis.Client {
	return shared.Client()
}

// Ping 检查全局连接
func Ping(ctx context.Context) error {
	return shared.Ping(ctx)
}

// Close 关闭全局连接
func Close() error {
	s := shared
	shared = nil
	return s.Close()
}

func (s *Store) Enabled() bool {
	return s != nil && s.client != nil
}

func (s *Store) Client() *redis.Client {
	if !s.Enabled() {
		return nil
	}
	return s.client
}

func (s *Store) Ping(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	if !s.Enabled() {
		return nil
	}
	return s.client.Close()
}

// Key 拼接带前缀的键，空段会被忽略
func (s *Store) Key(parts ...string) string {
	prefix := constants.RedisPrefixDefault
	if s != nil {
		prefix = s.prefix
	}
	segments := []string{prefix}
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			segments = append(segments, part)
		}
	}
	return strings.Join(segments, ":")
}

// GetJSON 读取并反序列化，未命中返回 false
func (s *Store) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	raw, err := s.client.Get(ctx, s.Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON 序列化写入
func (s *Store) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.Key(key), payload, ttl).Err()
}

func (s *Store) Del(ctx context.Context, key string) error {
	if !s.Enabled() {
		return nil
	}
	return s.client.Del(ctx, s.Key(key)).Err()
}
