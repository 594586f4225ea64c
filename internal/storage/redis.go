package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"resume-screener-go/internal/config"
	"resume-screener-go/internal/constants"
	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/tracker"
	"resume-screener-go/internal/types"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound Redis中键不存在，包装底层的 redis.Nil
var ErrNotFound = redis.Nil

// Redis 提供键值存储
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter 创建Redis客户端连接
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis配置不能为空")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis地址不能为空")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoffMS) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoffMS) * time.Millisecond,
	}

	client := redis.NewClient(opt)

	// 添加OpenTelemetry钩子，记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("为Redis注册OpenTelemetry钩子失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("连接Redis失败 (%s): %w", cfg.Address, err)
	}

	logger.Info().Str("address", cfg.Address).Msg("成功连接到Redis")
	return &Redis{Client: client, config: cfg}, nil
}

// Close 关闭Redis连接
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping 检查Redis连接
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	return r.Client.Ping(ctx).Err()
}

// recordExpireDuration 处理记录的过期时间，0表示永不过期
func (r *Redis) recordExpireDuration() time.Duration {
	if r.config != nil && r.config.RecordExpireDays > 0 {
		return time.Duration(r.config.RecordExpireDays) * 24 * time.Hour
	}
	return 0
}

// CacheRequirementText 缓存工单的需求源文本
func (r *Redis) CacheRequirementText(ctx context.Context, ticketID string, text string) error {
	key := fmt.Sprintf(constants.KeyRequirementText, ticketID)
	if err := r.Client.Set(ctx, key, text, r.recordExpireDuration()).Err(); err != nil {
		return fmt.Errorf("缓存需求文本失败: %w", err)
	}
	return nil
}

// GetRequirementText 读取缓存的需求源文本，未命中时返回 ErrNotFound
func (r *Redis) GetRequirementText(ctx context.Context, ticketID string) (string, error) {
	key := fmt.Sprintf(constants.KeyRequirementText, ticketID)
	return r.Client.Get(ctx, key).Result()
}

// SetLatestBatchSummary 写入最近一次批处理运行汇总
func (r *Redis) SetLatestBatchSummary(ctx context.Context, summary *types.BatchRunSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("序列化批处理汇总失败: %w", err)
	}
	if err := r.Client.Set(ctx, constants.KeyLatestBatchSummary, data, 0).Err(); err != nil {
		return fmt.Errorf("写入批处理汇总失败: %w", err)
	}
	return nil
}

// GetLatestBatchSummary 读取最近一次批处理运行汇总，不存在时返回nil
func (r *Redis) GetLatestBatchSummary(ctx context.Context) (*types.BatchRunSummary, error) {
	data, err := r.Client.Get(ctx, constants.KeyLatestBatchSummary).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("读取批处理汇总失败: %w", err)
	}
	var summary types.BatchRunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("解析批处理汇总失败: %w", err)
	}
	return &summary, nil
}

// RedisRecordStore 基于Redis的工单处理记录存储。
// 每条记录是一个JSON字符串，另维护一个SET作为全量索引以支持List/DeleteAll。
type RedisRecordStore struct {
	client *redis.Client
	expire time.Duration
}

var _ tracker.ProcessingRecordStore = (*RedisRecordStore)(nil)

// NewRedisRecordStore 创建Redis处理记录存储
func NewRedisRecordStore(r *Redis) *RedisRecordStore {
	return &RedisRecordStore{
		client: r.Client,
		expire: r.recordExpireDuration(),
	}
}

func recordKey(ticketID string) string {
	return fmt.Sprintf(constants.KeyProcessingRecord, ticketID)
}

// Get 读取工单处理记录
func (s *RedisRecordStore) Get(ctx context.Context, ticketID string) (*types.ProcessingRecord, error) {
	data, err := s.client.Get(ctx, recordKey(ticketID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, tracker.ErrRecordNotFound
		}
		return nil, fmt.Errorf("读取工单处理记录失败: %w", err)
	}
	var record types.ProcessingRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("解析工单处理记录失败: %w", err)
	}
	return &record, nil
}

// Put 写入（覆盖）工单处理记录
func (s *RedisRecordStore) Put(ctx context.Context, record *types.ProcessingRecord) error {
	if record == nil || record.TicketID == "" {
		return fmt.Errorf("处理记录或工单ID不能为空")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化工单处理记录失败: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, recordKey(record.TicketID), data, s.expire)
	pipe.SAdd(ctx, constants.KeyProcessingRecordIndex, record.TicketID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("写入工单处理记录失败: %w", err)
	}
	return nil
}

// Delete 删除单个工单的处理记录
func (s *RedisRecordStore) Delete(ctx context.Context, ticketID string) (bool, error) {
	pipe := s.client.TxPipeline()
	delCmd := pipe.Del(ctx, recordKey(ticketID))
	pipe.SRem(ctx, constants.KeyProcessingRecordIndex, ticketID)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("删除工单处理记录失败: %w", err)
	}
	return delCmd.Val() > 0, nil
}

// DeleteAll 清空全部处理记录
func (s *RedisRecordStore) DeleteAll(ctx context.Context) error {
	ids, err := s.client.SMembers(ctx, constants.KeyProcessingRecordIndex).Result()
	if err != nil {
		return fmt.Errorf("读取处理记录索引失败: %w", err)
	}
	pipe := s.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, recordKey(id))
	}
	pipe.Del(ctx, constants.KeyProcessingRecordIndex)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("清空处理记录失败: %w", err)
	}
	return nil
}

// List 按工单ID升序列出全部处理记录
func (s *RedisRecordStore) List(ctx context.Context) ([]types.ProcessingRecord, error) {
	ids, err := s.client.SMembers(ctx, constants.KeyProcessingRecordIndex).Result()
	if err != nil {
		return nil, fmt.Errorf("读取处理记录索引失败: %w", err)
	}
	sort.Strings(ids)

	records := make([]types.ProcessingRecord, 0, len(ids))
	for _, id := range ids {
		record, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, tracker.ErrRecordNotFound) {
				// 过期后索引中残留的ID，顺手清理
				s.client.SRem(ctx, constants.KeyProcessingRecordIndex, id)
				continue
			}
			return nil, err
		}
		records = append(records, *record)
	}
	return records, nil
}
