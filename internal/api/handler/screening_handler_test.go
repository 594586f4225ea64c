package handler_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"resume-screener-go/internal/api/handler"
	"resume-screener-go/internal/api/router"
	"resume-screener-go/internal/config"
	"resume-screener-go/internal/processor"
	"resume-screener-go/internal/tracker"
	"resume-screener-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestEngine 搭建带临时工单目录的完整HTTP测试环境
func newTestEngine(t *testing.T, apiKey string) (*server.Hertz, string) {
	t.Helper()
	jobsFolder := t.TempDir()

	store, err := tracker.NewFileRecordStore(filepath.Join(jobsFolder, ".processing_tracker.json"))
	require.NoError(t, err, "无法创建处理记录存储")

	cfg := &config.Config{}
	cfg.Screener.JobsFolder = jobsFolder
	cfg.Screener.TicketPacing = "1ms"
	cfg.Server.APIKey = apiKey

	batch, err := processor.NewBatchProcessor(&cfg.Screener, tracker.NewTicketTracker(store), nil, processor.WithPacing(0))
	require.NoError(t, err, "无法创建批处理编排器")

	h := server.New()
	router.RegisterRoutes(h, handler.NewScreeningHandler(cfg, batch, nil), apiKey)
	return h, jobsFolder
}

func addTicket(t *testing.T, jobsFolder, ticketID string) {
	t.Helper()
	dir := filepath.Join(jobsFolder, ticketID)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "job-data.json"), []byte(`{
		"job_title": "Backend Engineer",
		"status": "active",
		"experience_required": "2-5 years",
		"location": "Remote",
		"required_skills": "Python, SQL"
	}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "zhang_wei.txt"),
		[]byte("python and sql, 3 years of experience, remote"), 0o644))
}

func jsonBody(t *testing.T, v any) *ut.Body {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return &ut.Body{Body: bytes.NewBuffer(data), Len: len(data)}
}

// TestHealthEndpoint 测试健康检查不需要鉴权
func TestHealthEndpoint(t *testing.T) {
	h, _ := newTestEngine(t, "secret")

	w := ut.PerformRequest(h.Engine, "GET", "/api/v1/health", nil)
	resp := w.Result()

	assert.Equal(t, 200, resp.StatusCode())
	assert.Contains(t, string(resp.Body()), `"status":"ok"`)
}

// TestRunBatchAndStatus 测试批处理触发与状态查询的完整流程
func TestRunBatchAndStatus(t *testing.T) {
	h, jobsFolder := newTestEngine(t, "")
	addTicket(t, jobsFolder, "TICKET-001")

	// 1. 触发批处理
	w := ut.PerformRequest(h.Engine, "POST", "/api/v1/batch/run",
		jsonBody(t, handler.BatchRunRequest{}),
		ut.Header{Key: "Content-Type", Value: "application/json"})
	resp := w.Result()
	require.Equal(t, 200, resp.StatusCode(), "批处理触发应成功: %s", resp.Body())

	var summary types.BatchRunSummary
	require.NoError(t, json.Unmarshal(resp.Body(), &summary))
	assert.Equal(t, 1, summary.Statistics.Processed)
	require.Len(t, summary.Tickets, 1)
	assert.Equal(t, types.OutcomeCompleted, summary.Tickets[0].Status)

	// 2. 状态查询
	w = ut.PerformRequest(h.Engine, "GET", "/api/v1/batch/status", nil)
	resp = w.Result()
	require.Equal(t, 200, resp.StatusCode())
	var listing types.StatusListing
	require.NoError(t, json.Unmarshal(resp.Body(), &listing))
	assert.Equal(t, 1, listing.TotalProcessed)

	// 3. 最近一次汇总
	w = ut.PerformRequest(h.Engine, "GET", "/api/v1/batch/summary/latest", nil)
	resp = w.Result()
	require.Equal(t, 200, resp.StatusCode())
	var latest types.BatchRunSummary
	require.NoError(t, json.Unmarshal(resp.Body(), &latest))
	assert.Equal(t, summary.RunID, latest.RunID)
}

// TestRunBatchForce 测试强制重跑参数
func TestRunBatchForce(t *testing.T) {
	h, jobsFolder := newTestEngine(t, "")
	addTicket(t, jobsFolder, "TICKET-001")

	for _, force := range []bool{false, true} {
		w := ut.PerformRequest(h.Engine, "POST", "/api/v1/batch/run",
			jsonBody(t, handler.BatchRunRequest{Force: force}),
			ut.Header{Key: "Content-Type", Value: "application/json"})
		resp := w.Result()
		require.Equal(t, 200, resp.StatusCode())

		var summary types.BatchRunSummary
		require.NoError(t, json.Unmarshal(resp.Body(), &summary))
		assert.Equal(t, types.OutcomeCompleted, summary.Tickets[0].Status, "force=%v 时应完成评分", force)
	}
}

// TestLatestSummaryBeforeAnyRun 测试没有运行记录时返回404
func TestLatestSummaryBeforeAnyRun(t *testing.T) {
	h, _ := newTestEngine(t, "")

	w := ut.PerformRequest(h.Engine, "GET", "/api/v1/batch/summary/latest", nil)
	assert.Equal(t, 404, w.Result().StatusCode())
}

// TestResetTicketEndpoint 测试处理记录的删除接口
func TestResetTicketEndpoint(t *testing.T) {
	h, jobsFolder := newTestEngine(t, "")
	addTicket(t, jobsFolder, "TICKET-001")

	// 1. 没有记录时返回404
	w := ut.PerformRequest(h.Engine, "DELETE", "/api/v1/tracker/TICKET-001", nil)
	assert.Equal(t, 404, w.Result().StatusCode())

	// 2. 运行一次后删除成功
	w = ut.PerformRequest(h.Engine, "POST", "/api/v1/batch/run", nil)
	require.Equal(t, 200, w.Result().StatusCode())

	w = ut.PerformRequest(h.Engine, "DELETE", "/api/v1/tracker/TICKET-001", nil)
	assert.Equal(t, 200, w.Result().StatusCode())

	// 3. 清空全部记录
	w = ut.PerformRequest(h.Engine, "DELETE", "/api/v1/tracker", nil)
	assert.Equal(t, 200, w.Result().StatusCode())
}

// TestAPIKeyAuth 测试Bearer鉴权
func TestAPIKeyAuth(t *testing.T) {
	h, _ := newTestEngine(t, "top-secret")

	// 1. 缺少鉴权头
	w := ut.PerformRequest(h.Engine, "GET", "/api/v1/batch/status", nil)
	assert.Equal(t, 401, w.Result().StatusCode())

	// 2. 错误的Key
	w = ut.PerformRequest(h.Engine, "GET", "/api/v1/batch/status", nil,
		ut.Header{Key: "Authorization", Value: "Bearer wrong"})
	assert.Equal(t, 401, w.Result().StatusCode())

	// 3. 正确的Key
	w = ut.PerformRequest(h.Engine, "GET", "/api/v1/batch/status", nil,
		ut.Header{Key: "Authorization", Value: "Bearer top-secret"})
	assert.Equal(t, 200, w.Result().StatusCode())
}
