package tracker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"resume-screener-go/internal/types"
)

// TicketTracker 基于内容摘要判定工单是否需要重新处理。
// 判定与标记共享同一摘要算法，保证重复批次的幂等跳过。
type TicketTracker struct {
	store ProcessingRecordStore
	now   func() time.Time
}

// NewTicketTracker 创建变更检测器
func NewTicketTracker(store ProcessingRecordStore) *TicketTracker {
	return &TicketTracker{store: store, now: time.Now}
}

// IsTicketProcessed 判断工单自上次处理以来内容是否未变。
// 返回 (是否可跳过, 说明)：无记录 → (false, "")；摘要一致 → (true, 上次处理时间)；
// 摘要不一致 → (false, "content_changed")。
func (t *TicketTracker) IsTicketProcessed(ctx context.Context, ticketFolder string) (bool, string, error) {
	currentHash, err := ComputeDigest(ticketFolder)
	if err != nil {
		return false, "", fmt.Errorf("计算内容摘要失败: %w", err)
	}

	ticketID := filepath.Base(ticketFolder)
	record, err := t.store.Get(ctx, ticketID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return false, "", nil
		}
		return false, "", fmt.Errorf("读取处理记录失败: %w", err)
	}

	if record.ContentHash == currentHash {
		return true, record.LastProcessed, nil
	}
	return false, types.ReasonContentChanged, nil
}

// MarkTicketProcessed 在工单处理成功后覆盖其处理记录。
// 这是处理记录唯一的写入路径。
func (t *TicketTracker) MarkTicketProcessed(ctx context.Context, ticketFolder string, resultsFile string) error {
	currentHash, err := ComputeDigest(ticketFolder)
	if err != nil {
		return fmt.Errorf("计算内容摘要失败: %w", err)
	}

	record := &types.ProcessingRecord{
		TicketID:      filepath.Base(ticketFolder),
		ContentHash:   currentHash,
		LastProcessed: t.now().Format(time.RFC3339),
		ResultsFile:   resultsFile,
		Status:        "completed",
	}
	if err := t.store.Put(ctx, record); err != nil {
		return fmt.Errorf("写入处理记录失败: %w", err)
	}
	return nil
}

// ResetTicket 删除单个工单的处理记录，允许其被重新处理
func (t *TicketTracker) ResetTicket(ctx context.Context, ticketID string) (bool, error) {
	return t.store.Delete(ctx, ticketID)
}

// ResetAll 清空全部处理记录
func (t *TicketTracker) ResetAll(ctx context.Context) error {
	return t.store.DeleteAll(ctx)
}

// Records 列出全部处理记录
func (t *TicketTracker) Records(ctx context.Context) ([]types.ProcessingRecord, error) {
	return t.store.List(ctx)
}

// Record 读取单个工单的处理记录，不存在时返回 ErrRecordNotFound
func (t *TicketTracker) Record(ctx context.Context, ticketID string) (*types.ProcessingRecord, error) {
	return t.store.Get(ctx, ticketID)
}
