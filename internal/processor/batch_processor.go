package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"resume-screener-go/internal/config"
	"resume-screener-go/internal/constants"
	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/ticket"
	"resume-screener-go/internal/tracker"
	"resume-screener-go/internal/types"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ProcessOptions 单次批处理运行的选项
type ProcessOptions struct {
	// Force 忽略已处理记录，强制重新评分
	Force bool
	// Tickets 只处理指定的工单ID，为空时处理全部
	Tickets []string
}

// BatchProcessor 批处理编排器。
// 串行遍历工单目录，对每个工单做缓存判定与评分，错误隔离到单工单。
type BatchProcessor struct {
	jobsFolder string
	pacing     time.Duration
	pipeline   *TicketPipeline
	tracker    *tracker.TicketTracker
	sinks      []ResultSink
	logger     zerolog.Logger
	now        func() time.Time
}

// NewBatchProcessor 创建批处理编排器
func NewBatchProcessor(cfg *config.ScreenerConfig, trk *tracker.TicketTracker, pipeline *TicketPipeline, opts ...BatchOption) (*BatchProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("筛选引擎配置不能为空")
	}
	if trk == nil {
		return nil, fmt.Errorf("处理记录跟踪器不能为空")
	}
	if pipeline == nil {
		pipeline = NewTicketPipeline(nil, nil)
	}

	bp := &BatchProcessor{
		jobsFolder: cfg.JobsFolder,
		pacing:     config.GetDuration(cfg.TicketPacing, constants.DefaultTicketPacing),
		pipeline:   pipeline,
		tracker:    trk,
		logger:     logger.Logger.With().Str("component", "batch_processor").Logger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(bp)
	}
	return bp, nil
}

// DiscoverTickets 列出工单根目录下所有包含需求文件的工单目录，按名称排序
func (b *BatchProcessor) DiscoverTickets() ([]string, error) {
	entries, err := os.ReadDir(b.jobsFolder)
	if err != nil {
		return nil, fmt.Errorf("读取工单根目录 %s 失败: %w", b.jobsFolder, err)
	}

	var folders []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || name == constants.BatchResultsDirName {
			continue
		}
		folder := filepath.Join(b.jobsFolder, name)
		if _, ok := ticket.RequirementSourceFile(folder); !ok {
			b.logger.Debug().Str("folder", name).Msg("目录中没有可识别的需求文件，跳过")
			continue
		}
		folders = append(folders, folder)
	}
	sort.Strings(folders)
	return folders, nil
}

// ProcessAllTickets 执行一次批处理运行，返回整体汇总。
// 单工单失败记为 error 条目后继续，绝不中断整个批次。
func (b *BatchProcessor) ProcessAllTickets(ctx context.Context, opts ProcessOptions) (*types.BatchRunSummary, error) {
	folders, err := b.DiscoverTickets()
	if err != nil {
		return nil, err
	}
	folders = filterTickets(folders, opts.Tickets)

	runID := uuid.NewString()
	b.logger.Info().
		Str("run_id", runID).
		Int("ticket_count", len(folders)).
		Bool("force", opts.Force).
		Msg("开始批处理运行")

	summary := &types.BatchRunSummary{
		RunID:     runID,
		Timestamp: b.now().Format(time.RFC3339),
		Tickets:   make([]types.TicketOutcome, 0, len(folders)),
	}

	for i, folder := range folders {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		outcome := b.processOne(ctx, folder, opts.Force)
		summary.Tickets = append(summary.Tickets, outcome)
		switch outcome.Status {
		case types.OutcomeCompleted:
			summary.Statistics.Processed++
		case types.OutcomeSkipped:
			summary.Statistics.Skipped++
		default:
			summary.Statistics.Errors++
		}

		for _, sink := range b.sinks {
			sink.OnTicketOutcome(ctx, &outcome)
		}

		// 工单之间的节流等待，最后一个工单之后不等
		if b.pacing > 0 && i < len(folders)-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(b.pacing):
			}
		}
	}
	summary.Statistics.TotalTickets = len(summary.Tickets)

	if err := b.writeBatchArtifacts(summary); err != nil {
		b.logger.Warn().Err(err).Msg("写出批处理汇总产物失败")
	}

	for _, sink := range b.sinks {
		sink.OnBatchCompleted(ctx, summary)
	}

	b.logger.Info().
		Str("run_id", runID).
		Int("processed", summary.Statistics.Processed).
		Int("skipped", summary.Statistics.Skipped).
		Int("errors", summary.Statistics.Errors).
		Msg("批处理运行完成")
	return summary, nil
}

// processOne 处理单个工单目录，任何失败都收敛为 error 条目
func (b *BatchProcessor) processOne(ctx context.Context, folder string, force bool) types.TicketOutcome {
	ticketID := filepath.Base(folder)
	outcome := types.TicketOutcome{
		TicketID:   ticketID,
		TicketPath: folder,
		Timestamp:  b.now().Format(time.RFC3339),
	}

	if !force {
		unchanged, lastProcessed, err := b.tracker.IsTicketProcessed(ctx, folder)
		if err != nil {
			b.logger.Warn().Err(err).Str("ticket_id", ticketID).Msg("缓存判定失败，按需要处理对待")
		} else if unchanged {
			b.logger.Info().Str("ticket_id", ticketID).Str("last_processed", lastProcessed).Msg("工单内容未变化，跳过")
			outcome.Status = types.OutcomeSkipped
			outcome.LastProcessed = lastProcessed
			return outcome
		}
	}

	result, resultsFile, err := b.pipeline.RunTicket(ctx, folder)
	if err != nil {
		b.logger.Error().Err(err).Str("ticket_id", ticketID).Msg("工单处理失败")
		outcome.Status = types.OutcomeError
		outcome.ErrorMessage = err.Error()
		return outcome
	}

	if err := b.tracker.MarkTicketProcessed(ctx, folder, resultsFile); err != nil {
		// 评分产物已落盘，但记录写入失败，下次会重新处理
		b.logger.Error().Err(err).Str("ticket_id", ticketID).Msg("写入处理记录失败")
		outcome.Status = types.OutcomeError
		outcome.ErrorMessage = fmt.Sprintf("写入处理记录失败: %v", err)
		return outcome
	}

	outcome.Status = types.OutcomeCompleted
	outcome.Position = result.Position
	outcome.TotalResumes = result.Summary.TotalResumes
	outcome.TopCandidates = topCandidates(result.FinalSelection, 3)
	return outcome
}

// topCandidates 取终选名单头部的候选人，分数渲染为百分比字符串
func topCandidates(finalSelection []types.ScoreResult, n int) []types.TopCandidate {
	if len(finalSelection) < n {
		n = len(finalSelection)
	}
	top := make([]types.TopCandidate, 0, n)
	for _, c := range finalSelection[:n] {
		top = append(top, types.TopCandidate{
			Name:  c.Filename,
			Score: fmt.Sprintf("%.1f%%", c.FinalScore*100),
		})
	}
	return top
}

// filterTickets 按工单ID过滤目录列表，keep为空时返回原列表
func filterTickets(folders []string, keep []string) []string {
	if len(keep) == 0 {
		return folders
	}
	wanted := make(map[string]bool, len(keep))
	for _, id := range keep {
		wanted[id] = true
	}
	var filtered []string
	for _, folder := range folders {
		if wanted[filepath.Base(folder)] {
			filtered = append(filtered, folder)
		}
	}
	return filtered
}

// writeBatchArtifacts 在 batch_results 目录写出汇总JSON与文本报告
func (b *BatchProcessor) writeBatchArtifacts(summary *types.BatchRunSummary) error {
	outputDir := filepath.Join(b.jobsFolder, constants.BatchResultsDirName)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("创建批处理结果目录失败: %w", err)
	}

	stamp := b.now().Format("20060102_150405")
	summaryFile := filepath.Join(outputDir, fmt.Sprintf("batch_summary_%s.json", stamp))
	reportFile := filepath.Join(outputDir, fmt.Sprintf("batch_report_%s.txt", stamp))

	summary.SummaryFile = summaryFile
	summary.ReportFile = reportFile

	if err := writeJSON(summaryFile, summary); err != nil {
		return err
	}
	if err := os.WriteFile(reportFile, []byte(renderBatchReport(summary)), 0o644); err != nil {
		return fmt.Errorf("写入批处理报告失败: %w", err)
	}
	return nil
}

// renderBatchReport 渲染批处理的文本报告
func renderBatchReport(summary *types.BatchRunSummary) string {
	var sb strings.Builder
	divider := strings.Repeat("=", 80)

	sb.WriteString("BATCH PROCESSING SUMMARY REPORT\n")
	sb.WriteString(divider + "\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n", summary.Timestamp))
	sb.WriteString("\nSTATISTICS:\n")
	sb.WriteString(fmt.Sprintf("  Total Tickets: %d\n", summary.Statistics.TotalTickets))
	sb.WriteString(fmt.Sprintf("  Processed: %d\n", summary.Statistics.Processed))
	sb.WriteString(fmt.Sprintf("  Skipped (Already Processed): %d\n", summary.Statistics.Skipped))
	sb.WriteString(fmt.Sprintf("  Errors: %d\n", summary.Statistics.Errors))

	sb.WriteString("\n" + divider + "\n")
	sb.WriteString("TICKET DETAILS:\n")
	sb.WriteString(divider + "\n\n")

	for _, t := range summary.Tickets {
		sb.WriteString(fmt.Sprintf("Ticket ID: %s\n", t.TicketID))
		sb.WriteString(fmt.Sprintf("Status: %s\n", strings.ToUpper(t.Status)))
		switch t.Status {
		case types.OutcomeCompleted:
			sb.WriteString(fmt.Sprintf("Position: %s\n", t.Position))
			sb.WriteString(fmt.Sprintf("Resumes Processed: %d\n", t.TotalResumes))
			sb.WriteString("Top Candidates:\n")
			for j, candidate := range t.TopCandidates {
				sb.WriteString(fmt.Sprintf("  %d. %s - %s\n", j+1, candidate.Name, candidate.Score))
			}
		case types.OutcomeSkipped:
			sb.WriteString(fmt.Sprintf("Last Processed: %s\n", t.LastProcessed))
		case types.OutcomeError:
			sb.WriteString(fmt.Sprintf("Error: %s\n", t.ErrorMessage))
		}
		sb.WriteString("\n" + strings.Repeat("-", 50) + "\n\n")
	}
	return sb.String()
}

// ShowStatus 列出所有已发现工单的处理状态
func (b *BatchProcessor) ShowStatus(ctx context.Context) (*types.StatusListing, error) {
	folders, err := b.DiscoverTickets()
	if err != nil {
		return nil, err
	}
	records, err := b.tracker.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取处理记录失败: %w", err)
	}
	byID := make(map[string]types.ProcessingRecord, len(records))
	for _, r := range records {
		byID[r.TicketID] = r
	}

	listing := &types.StatusListing{
		TotalTickets: len(folders),
		Tickets:      make([]types.TicketStatus, 0, len(folders)),
	}
	for _, folder := range folders {
		ticketID := filepath.Base(folder)
		status := types.TicketStatus{TicketID: ticketID}
		if record, ok := byID[ticketID]; ok {
			status.Processed = true
			status.LastProcessed = record.LastProcessed
			status.ResultsFile = record.ResultsFile
			listing.TotalProcessed++
		}
		listing.Tickets = append(listing.Tickets, status)
	}
	return listing, nil
}

// ResetTicket 删除单个工单的处理记录
func (b *BatchProcessor) ResetTicket(ctx context.Context, ticketID string) (bool, error) {
	return b.tracker.ResetTicket(ctx, ticketID)
}

// ResetAll 清空全部处理记录
func (b *BatchProcessor) ResetAll(ctx context.Context) error {
	return b.tracker.ResetAll(ctx)
}
