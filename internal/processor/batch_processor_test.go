package processor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"resume-screener-go/internal/config"
	"resume-screener-go/internal/tracker"
	"resume-screener-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectingSink 记录全部回调，用于验证下游通知顺序
type collectingSink struct {
	outcomes  []types.TicketOutcome
	summaries []types.BatchRunSummary
}

func (c *collectingSink) OnTicketOutcome(_ context.Context, outcome *types.TicketOutcome) {
	c.outcomes = append(c.outcomes, *outcome)
}

func (c *collectingSink) OnBatchCompleted(_ context.Context, summary *types.BatchRunSummary) {
	c.summaries = append(c.summaries, *summary)
}

func writeTicket(t *testing.T, jobsFolder, ticketID, requirement string, resumes map[string]string) string {
	t.Helper()
	dir := filepath.Join(jobsFolder, ticketID)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "job-data.json"), []byte(requirement), 0o644))
	for name, content := range resumes {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func newTestProcessor(t *testing.T, jobsFolder string, opts ...BatchOption) *BatchProcessor {
	t.Helper()
	store, err := tracker.NewFileRecordStore(filepath.Join(jobsFolder, ".processing_tracker.json"))
	require.NoError(t, err)

	cfg := &config.ScreenerConfig{JobsFolder: jobsFolder, TicketPacing: "1ms"}
	opts = append([]BatchOption{WithPacing(0)}, opts...)
	bp, err := NewBatchProcessor(cfg, tracker.NewTicketTracker(store), nil, opts...)
	require.NoError(t, err)
	return bp
}

func readTicketResult(t *testing.T, path string) types.TicketResult {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var result types.TicketResult
	require.NoError(t, json.Unmarshal(data, &result))
	return result
}

const activeTicketJSON = `{
	"job_title": "Backend Engineer",
	"status": "active",
	"last_updated": "2025-08-01T10:00:00Z",
	"experience_required": "2-5 years",
	"location": "Remote",
	"required_skills": "Python, SQL"
}`

// TestDiscoverTickets 验证工单目录发现的过滤规则
func TestDiscoverTickets(t *testing.T) {
	jobsFolder := t.TempDir()
	writeTicket(t, jobsFolder, "TICKET-002", activeTicketJSON, nil)
	writeTicket(t, jobsFolder, "TICKET-001", activeTicketJSON, nil)
	// 没有需求文件的目录
	require.NoError(t, os.MkdirAll(filepath.Join(jobsFolder, "no-requirement"), 0o755))
	// 隐藏目录与批处理结果目录
	require.NoError(t, os.MkdirAll(filepath.Join(jobsFolder, ".hidden"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(jobsFolder, "batch_results"), 0o755))

	bp := newTestProcessor(t, jobsFolder)
	folders, err := bp.DiscoverTickets()
	require.NoError(t, err)

	require.Len(t, folders, 2, "只有包含需求文件的普通目录才算工单")
	assert.Equal(t, "TICKET-001", filepath.Base(folders[0]), "应按名称排序")
	assert.Equal(t, "TICKET-002", filepath.Base(folders[1]))
}

// TestProcessAllTicketsEndToEnd 验证完整批处理：评分、跳过、强制、产物落盘
func TestProcessAllTicketsEndToEnd(t *testing.T) {
	jobsFolder := t.TempDir()
	ticketDir := writeTicket(t, jobsFolder, "TICKET-001", activeTicketJSON, map[string]string{
		"zhang_wei.txt": "python and sql expert, 3 years of experience, remote",
		"li_na.txt":     "1 years of experience with python",
		"broken.pdf":    "%PDF binary content",
	})

	fixed := time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC)
	sink := &collectingSink{}
	bp := newTestProcessor(t, jobsFolder, WithClock(func() time.Time { return fixed }), WithResultSink(sink))
	ctx := context.Background()

	// 1. 首次运行：完成评分
	summary, err := bp.ProcessAllTickets(ctx, ProcessOptions{})
	require.NoError(t, err)
	require.Len(t, summary.Tickets, 1)
	assert.Equal(t, types.BatchStatistics{TotalTickets: 1, Processed: 1}, summary.Statistics)

	outcome := summary.Tickets[0]
	assert.Equal(t, types.OutcomeCompleted, outcome.Status)
	assert.Equal(t, "Backend Engineer", outcome.Position)
	assert.Equal(t, 3, outcome.TotalResumes, "不可解码的文档也计入总数")
	require.NotEmpty(t, outcome.TopCandidates)
	assert.Equal(t, "zhang_wei.txt", outcome.TopCandidates[0].Name)
	assert.True(t, strings.HasSuffix(outcome.TopCandidates[0].Score, "%"), "分数应渲染为百分比")

	// 工单目录下的评分产物
	resultsDir := filepath.Join(ticketDir, "filtering_results")
	assert.FileExists(t, filepath.Join(resultsDir, "stage1_results.json"))
	assert.FileExists(t, filepath.Join(resultsDir, "final_results_TICKET-001_20250815_120000.json"))
	assert.FileExists(t, filepath.Join(resultsDir, "summary_report_TICKET-001_20250815_120000.txt"))

	// 批处理汇总产物
	assert.FileExists(t, filepath.Join(jobsFolder, "batch_results", "batch_summary_20250815_120000.json"))
	assert.FileExists(t, filepath.Join(jobsFolder, "batch_results", "batch_report_20250815_120000.txt"))

	// 下游回调
	require.Len(t, sink.outcomes, 1)
	require.Len(t, sink.summaries, 1)
	assert.Equal(t, summary.RunID, sink.summaries[0].RunID)
	assert.NotEmpty(t, sink.summaries[0].SummaryFile, "汇总文件路径应在下游通知前写回")

	finalResultsFile := filepath.Join(resultsDir, "final_results_TICKET-001_20250815_120000.json")
	firstRun := readTicketResult(t, finalResultsFile)

	// 2. 原样重跑：内容未变化，跳过
	summary, err = bp.ProcessAllTickets(ctx, ProcessOptions{})
	require.NoError(t, err)
	require.Len(t, summary.Tickets, 1)
	assert.Equal(t, types.OutcomeSkipped, summary.Tickets[0].Status)
	assert.NotEmpty(t, summary.Tickets[0].LastProcessed, "跳过条目应带上次处理时间")

	// 3. 强制重跑：忽略处理记录，输入未变时评分结果必须与首次运行一致
	summary, err = bp.ProcessAllTickets(ctx, ProcessOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeCompleted, summary.Tickets[0].Status)
	forcedRun := readTicketResult(t, finalResultsFile)
	assert.Equal(t, firstRun.AllScores, forcedRun.AllScores, "强制重跑不应改变任何候选人的得分与排序")

	// 4. 需求变化后自动重新处理
	require.NoError(t, os.WriteFile(filepath.Join(ticketDir, "job-data.json"),
		[]byte(`{"job_title": "Senior Backend Engineer", "status": "active", "required_skills": "Go"}`), 0o644))
	summary, err = bp.ProcessAllTickets(ctx, ProcessOptions{})
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeCompleted, summary.Tickets[0].Status)
	assert.Equal(t, "Senior Backend Engineer", summary.Tickets[0].Position)
}

// TestProcessAllTicketsErrorIsolation 验证单工单失败不影响其他工单
func TestProcessAllTicketsErrorIsolation(t *testing.T) {
	jobsFolder := t.TempDir()
	// 定稿工单：视为拒绝处理
	writeTicket(t, jobsFolder, "TICKET-CLOSED", `{"job_title": "X", "status": "closed"}`,
		map[string]string{"a.txt": "resume"})
	// 没有任何候选文档的工单
	writeTicket(t, jobsFolder, "TICKET-EMPTY", activeTicketJSON, nil)
	// 正常工单
	writeTicket(t, jobsFolder, "TICKET-OK", activeTicketJSON,
		map[string]string{"a.txt": "python, 3 years of experience"})

	bp := newTestProcessor(t, jobsFolder)
	summary, err := bp.ProcessAllTickets(context.Background(), ProcessOptions{})
	require.NoError(t, err, "单工单失败不应中断批次")

	require.Len(t, summary.Tickets, 3)
	assert.Equal(t, types.BatchStatistics{TotalTickets: 3, Processed: 1, Errors: 2}, summary.Statistics)

	byID := make(map[string]types.TicketOutcome)
	for _, o := range summary.Tickets {
		byID[o.TicketID] = o
	}
	assert.Equal(t, types.OutcomeError, byID["TICKET-CLOSED"].Status)
	assert.NotEmpty(t, byID["TICKET-CLOSED"].ErrorMessage)
	assert.Equal(t, types.OutcomeError, byID["TICKET-EMPTY"].Status)
	assert.Equal(t, types.OutcomeCompleted, byID["TICKET-OK"].Status)
}

// TestProcessAllTicketsFilter 验证只处理指定工单
func TestProcessAllTicketsFilter(t *testing.T) {
	jobsFolder := t.TempDir()
	writeTicket(t, jobsFolder, "TICKET-001", activeTicketJSON, map[string]string{"a.txt": "python"})
	writeTicket(t, jobsFolder, "TICKET-002", activeTicketJSON, map[string]string{"a.txt": "python"})

	bp := newTestProcessor(t, jobsFolder)
	summary, err := bp.ProcessAllTickets(context.Background(), ProcessOptions{Tickets: []string{"TICKET-002"}})
	require.NoError(t, err)

	require.Len(t, summary.Tickets, 1)
	assert.Equal(t, "TICKET-002", summary.Tickets[0].TicketID)
}

// TestProcessAllTicketsContextCancel 验证取消上下文时批次及时终止
func TestProcessAllTicketsContextCancel(t *testing.T) {
	jobsFolder := t.TempDir()
	writeTicket(t, jobsFolder, "TICKET-001", activeTicketJSON, map[string]string{"a.txt": "python"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bp := newTestProcessor(t, jobsFolder)
	_, err := bp.ProcessAllTickets(ctx, ProcessOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

// TestBatchSummaryArtifact 验证汇总JSON可以原样读回
func TestBatchSummaryArtifact(t *testing.T) {
	jobsFolder := t.TempDir()
	writeTicket(t, jobsFolder, "TICKET-001", activeTicketJSON,
		map[string]string{"a.txt": "python and sql, 3 years of experience, remote"})

	fixed := time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC)
	bp := newTestProcessor(t, jobsFolder, WithClock(func() time.Time { return fixed }))
	summary, err := bp.ProcessAllTickets(context.Background(), ProcessOptions{})
	require.NoError(t, err)

	data, err := os.ReadFile(summary.SummaryFile)
	require.NoError(t, err)
	var loaded types.BatchRunSummary
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, summary.RunID, loaded.RunID)
	assert.Equal(t, summary.Statistics, loaded.Statistics)

	report, err := os.ReadFile(summary.ReportFile)
	require.NoError(t, err)
	assert.Contains(t, string(report), "BATCH PROCESSING SUMMARY REPORT")
	assert.Contains(t, string(report), "Ticket ID: TICKET-001")
	assert.Contains(t, string(report), "Status: COMPLETED")
}

// TestShowStatus 验证状态视图聚合已发现工单与处理记录
func TestShowStatus(t *testing.T) {
	jobsFolder := t.TempDir()
	writeTicket(t, jobsFolder, "TICKET-001", activeTicketJSON, map[string]string{"a.txt": "python"})
	writeTicket(t, jobsFolder, "TICKET-002", activeTicketJSON, map[string]string{"a.txt": "python"})

	bp := newTestProcessor(t, jobsFolder)
	ctx := context.Background()

	_, err := bp.ProcessAllTickets(ctx, ProcessOptions{Tickets: []string{"TICKET-001"}})
	require.NoError(t, err)

	listing, err := bp.ShowStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, listing.TotalTickets)
	assert.Equal(t, 1, listing.TotalProcessed)

	require.Len(t, listing.Tickets, 2)
	assert.True(t, listing.Tickets[0].Processed)
	assert.NotEmpty(t, listing.Tickets[0].ResultsFile)
	assert.False(t, listing.Tickets[1].Processed)

	// 重置后状态回到未处理
	existed, err := bp.ResetTicket(ctx, "TICKET-001")
	require.NoError(t, err)
	assert.True(t, existed)
	listing, err = bp.ShowStatus(ctx)
	require.NoError(t, err)
	assert.Zero(t, listing.TotalProcessed)
}

// TestTopCandidates 验证头部候选人的截取与分数格式
func TestTopCandidates(t *testing.T) {
	selection := []types.ScoreResult{
		{Filename: "a.txt", FinalScore: 0.875},
		{Filename: "b.txt", FinalScore: 0.5},
	}

	top := topCandidates(selection, 3)
	require.Len(t, top, 2, "不足n时全部返回")
	assert.Equal(t, types.TopCandidate{Name: "a.txt", Score: "87.5%"}, top[0])
	assert.Equal(t, types.TopCandidate{Name: "b.txt", Score: "50.0%"}, top[1])
}

// TestStorageSinkNilStore 验证空存储下游的回调是安全的空操作
func TestStorageSinkNilStore(t *testing.T) {
	sink := NewStorageSink(nil, true, true)
	assert.NotPanics(t, func() {
		sink.OnTicketOutcome(context.Background(), &types.TicketOutcome{TicketID: "T"})
		sink.OnBatchCompleted(context.Background(), &types.BatchRunSummary{RunID: "r"})
	})
}
