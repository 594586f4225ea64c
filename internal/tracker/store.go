package tracker

import (
	"context"
	"errors"

	"resume-screener-go/internal/types"
)

// ErrRecordNotFound 指定工单没有处理记录
var ErrRecordNotFound = errors.New("工单处理记录不存在")

// ProcessingRecordStore 处理记录的持久化接口。
// 语义为按工单ID取/存/删的键值存储，写入覆盖旧值（last-write-wins）。
// 核心假设单写者：同一批次内一个工单最多被写一次，不在存储层加锁。
type ProcessingRecordStore interface {
	// Get 读取工单处理记录，不存在时返回 ErrRecordNotFound
	Get(ctx context.Context, ticketID string) (*types.ProcessingRecord, error)

	// Put 写入（覆盖）工单处理记录
	Put(ctx context.Context, record *types.ProcessingRecord) error

	// Delete 删除单个工单的处理记录，返回记录是否存在
	Delete(ctx context.Context, ticketID string) (bool, error)

	// DeleteAll 清空全部处理记录
	DeleteAll(ctx context.Context) error

	// List 列出全部处理记录
	List(ctx context.Context) ([]types.ProcessingRecord, error)
}
