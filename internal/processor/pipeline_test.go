package processor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"resume-screener-go/internal/ticket"
	"resume-screener-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubReviewer 固定返回评语或错误的复核器
type stubReviewer struct {
	annotation string
	err        error
	calls      int
}

func (s *stubReviewer) ReviewFinalSelection(_ context.Context, _ *types.RequirementSnapshot, _ []types.ScoreResult) (string, error) {
	s.calls++
	return s.annotation, s.err
}

// TestRunTicketLockedIsRejected 验证定稿工单被拒绝处理
func TestRunTicketLockedIsRejected(t *testing.T) {
	jobsFolder := t.TempDir()
	dir := writeTicket(t, jobsFolder, "TICKET-LOCKED", `{"job_title": "X", "status": "finalized"}`,
		map[string]string{"a.txt": "resume"})

	p := NewTicketPipeline(nil, nil)
	_, _, err := p.RunTicket(context.Background(), dir)
	assert.ErrorIs(t, err, ticket.ErrTicketLocked)

	// 拒绝时不产生任何评分产物
	assert.NoDirExists(t, filepath.Join(dir, "filtering_results"))
}

// TestRunTicketNoResumes 验证没有候选文档时返回终态错误
func TestRunTicketNoResumes(t *testing.T) {
	jobsFolder := t.TempDir()
	dir := writeTicket(t, jobsFolder, "TICKET-EMPTY", activeTicketJSON, nil)

	p := NewTicketPipeline(nil, nil)
	_, _, err := p.RunTicket(context.Background(), dir)
	assert.ErrorIs(t, err, ticket.ErrNoResumes)
}

// TestRunTicketSkipsUnreadable 验证不可解码文档被跳过但计入总数
func TestRunTicketSkipsUnreadable(t *testing.T) {
	jobsFolder := t.TempDir()
	dir := writeTicket(t, jobsFolder, "TICKET-001", activeTicketJSON, map[string]string{
		"readable.txt": "python and sql, 3 years of experience",
		"scan.pdf":     "%PDF",
		"legacy.docx":  "PK",
	})

	p := NewTicketPipeline(nil, nil)
	result, resultsFile, err := p.RunTicket(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Summary.TotalResumes, "总数按发现的文档计")
	assert.Len(t, result.AllScores, 1, "只有可解码的文档参与评分")
	assert.Equal(t, 1, result.Summary.FinalSelected)
	assert.FileExists(t, resultsFile)
}

// TestRunTicketReportContent 验证文本报告的关键段落
func TestRunTicketReportContent(t *testing.T) {
	jobsFolder := t.TempDir()
	dir := writeTicket(t, jobsFolder, "TICKET-001", activeTicketJSON, map[string]string{
		"zhang_wei.txt": "python and sql, 3 years of experience, remote",
	})

	fixed := time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC)
	reviewer := &stubReviewer{annotation: "整体评语: 候选人与岗位高度匹配"}
	p := NewTicketPipeline(nil, reviewer)
	p.now = func() time.Time { return fixed }

	result, _, err := p.RunTicket(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, reviewer.calls)
	assert.Equal(t, reviewer.annotation, result.ReviewAnnotation)

	report, err := os.ReadFile(filepath.Join(dir, "filtering_results", "summary_report_TICKET-001_20250815_120000.txt"))
	require.NoError(t, err)
	text := string(report)

	assert.Contains(t, text, "RESUME FILTERING SUMMARY REPORT")
	assert.Contains(t, text, "Job Ticket ID: TICKET-001")
	assert.Contains(t, text, "LATEST JOB REQUIREMENTS USED:")
	assert.Contains(t, text, "Skills: Python, SQL")
	assert.Contains(t, text, "FILTERING SUMMARY:")
	assert.Contains(t, text, "TOP CANDIDATES (RANKED):")
	assert.Contains(t, text, "1. zhang_wei.txt")
	assert.Contains(t, text, "Location Match: Yes")
	assert.Contains(t, text, "REVIEW COMMENTARY:")
	assert.Contains(t, text, reviewer.annotation)
}

// TestRunTicketReviewerFailureDegrades 验证复核失败时结果不带附注但处理成功
func TestRunTicketReviewerFailureDegrades(t *testing.T) {
	jobsFolder := t.TempDir()
	dir := writeTicket(t, jobsFolder, "TICKET-001", activeTicketJSON, map[string]string{
		"a.txt": "python, 3 years of experience",
	})

	reviewer := &stubReviewer{err: errors.New("模型不可用")}
	p := NewTicketPipeline(nil, reviewer)

	result, _, err := p.RunTicket(context.Background(), dir)
	require.NoError(t, err, "复核失败不应影响评分流程")
	assert.Empty(t, result.ReviewAnnotation)
	assert.Equal(t, 1, reviewer.calls)
}

// TestRunTicketStageOneArtifact 验证初筛中间产物落盘
func TestRunTicketStageOneArtifact(t *testing.T) {
	jobsFolder := t.TempDir()
	dir := writeTicket(t, jobsFolder, "TICKET-001", activeTicketJSON, map[string]string{
		"a.txt": "python and sql, 3 years of experience",
		"b.txt": "sql only here",
	})

	p := NewTicketPipeline(nil, nil)
	result, _, err := p.RunTicket(context.Background(), dir)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "filtering_results", "stage1_results.json"))
	assert.Len(t, result.Shortlist, 2)
	assert.Equal(t, "a.txt", result.AllScores[0].Filename, "全量结果应按分数降序")
}
