package processor

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"resume-screener-go/internal/constants"
	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/storage"
	"resume-screener-go/internal/types"
)

// BatchOption 批处理编排器的配置选项
type BatchOption func(*BatchProcessor)

// WithPacing 覆盖工单间节流间隔
func WithPacing(pacing time.Duration) BatchOption {
	return func(b *BatchProcessor) {
		b.pacing = pacing
	}
}

// WithResultSink 追加结果下游，按注册顺序通知
func WithResultSink(sink ResultSink) BatchOption {
	return func(b *BatchProcessor) {
		if sink != nil {
			b.sinks = append(b.sinks, sink)
		}
	}
}

// WithClock 覆盖时间源，便于测试
func WithClock(now func() time.Time) BatchOption {
	return func(b *BatchProcessor) {
		if now != nil {
			b.now = now
			b.pipeline.now = now
		}
	}
}

// ResultSink 批处理结果的下游通知接口。
// 实现方不得因失败影响批处理主流程，所有错误自行消化。
type ResultSink interface {
	// OnTicketOutcome 单个工单处理结束时回调
	OnTicketOutcome(ctx context.Context, outcome *types.TicketOutcome)

	// OnBatchCompleted 整个批次结束时回调
	OnBatchCompleted(ctx context.Context, summary *types.BatchRunSummary)
}

// StorageSink 把批处理结果同步到已初始化的存储后端：
// MySQL落库、Redis缓存最新汇总、RabbitMQ发布事件、MinIO上传产物副本。
type StorageSink struct {
	store         *storage.Storage
	uploadResults bool
	publishEvents bool
}

var _ ResultSink = (*StorageSink)(nil)

// NewStorageSink 创建存储下游，store为nil时所有回调都是空操作
func NewStorageSink(store *storage.Storage, uploadResults, publishEvents bool) *StorageSink {
	return &StorageSink{
		store:         store,
		uploadResults: uploadResults,
		publishEvents: publishEvents,
	}
}

// OnTicketOutcome 发布单工单事件并上传其结果产物
func (s *StorageSink) OnTicketOutcome(ctx context.Context, outcome *types.TicketOutcome) {
	if s.store == nil || outcome == nil {
		return
	}

	if s.publishEvents && s.store.RabbitMQ != nil {
		if err := s.store.RabbitMQ.PublishTicketOutcome(ctx, outcome); err != nil {
			logger.Warn().Err(err).Str("ticket_id", outcome.TicketID).Msg("发布工单结果事件失败")
		}
	}

	if s.uploadResults && s.store.MinIO != nil && outcome.Status == types.OutcomeCompleted {
		s.uploadTicketArtifacts(ctx, outcome)
	}
}

// uploadTicketArtifacts 上传工单目录下的全部结果产物
func (s *StorageSink) uploadTicketArtifacts(ctx context.Context, outcome *types.TicketOutcome) {
	resultsDir := filepath.Join(outcome.TicketPath, constants.ResultsDirName)
	entries, err := os.ReadDir(resultsDir)
	if err != nil {
		logger.Warn().Err(err).Str("ticket_id", outcome.TicketID).Msg("读取结果目录失败，跳过上传")
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(resultsDir, entry.Name()))
		if err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("读取结果文件失败，跳过上传")
			continue
		}
		contentType := "text/plain"
		if filepath.Ext(entry.Name()) == ".json" {
			contentType = "application/json"
		}
		if _, err := s.store.MinIO.UploadResultArtifact(ctx, outcome.TicketID, entry.Name(), data, contentType); err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("上传结果产物失败")
		}
	}
}

// OnBatchCompleted 落库批处理运行、缓存最新汇总并发布完成事件
func (s *StorageSink) OnBatchCompleted(ctx context.Context, summary *types.BatchRunSummary) {
	if s.store == nil || summary == nil {
		return
	}

	if s.store.MySQL != nil {
		if err := s.store.MySQL.SaveBatchRun(ctx, summary); err != nil {
			logger.Warn().Err(err).Str("run_id", summary.RunID).Msg("批处理运行落库失败")
		}
	}

	if s.store.Redis != nil {
		if err := s.store.Redis.SetLatestBatchSummary(ctx, summary); err != nil {
			logger.Warn().Err(err).Str("run_id", summary.RunID).Msg("缓存批处理汇总失败")
		}
	}

	if s.publishEvents && s.store.RabbitMQ != nil {
		if err := s.store.RabbitMQ.PublishBatchCompleted(ctx, summary); err != nil {
			logger.Warn().Err(err).Str("run_id", summary.RunID).Msg("发布批处理完成事件失败")
		}
	}

	if s.uploadResults && s.store.MinIO != nil && summary.SummaryFile != "" {
		for _, file := range []string{summary.SummaryFile, summary.ReportFile} {
			data, err := os.ReadFile(file)
			if err != nil {
				continue
			}
			contentType := "text/plain"
			if filepath.Ext(file) == ".json" {
				contentType = "application/json"
			}
			if _, err := s.store.MinIO.UploadResultArtifact(ctx, "batch_results", filepath.Base(file), data, contentType); err != nil {
				logger.Warn().Err(err).Str("file", filepath.Base(file)).Msg("上传批处理产物失败")
			}
		}
	}
}
