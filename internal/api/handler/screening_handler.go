package handler

import (
	"context"
	"sync"
	"sync/atomic"

	"resume-screener-go/internal/config"
	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/processor"
	"resume-screener-go/internal/storage"
	"resume-screener-go/internal/tracing"
	"resume-screener-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"go.opentelemetry.io/otel/trace"
)

// BatchRunRequest 触发批处理运行的请求体
type BatchRunRequest struct {
	Force   bool     `json:"force"`
	Tickets []string `json:"tickets"`
}

// ScreeningHandler 筛选服务的HTTP处理器
type ScreeningHandler struct {
	cfg   *config.Config
	batch *processor.BatchProcessor
	store *storage.Storage

	// 批处理串行约束：同一时刻只允许一次运行
	running atomic.Bool

	mu          sync.RWMutex
	lastSummary *types.BatchRunSummary
}

// NewScreeningHandler 创建筛选处理器
func NewScreeningHandler(cfg *config.Config, batch *processor.BatchProcessor, store *storage.Storage) *ScreeningHandler {
	return &ScreeningHandler{
		cfg:   cfg,
		batch: batch,
		store: store,
	}
}

// RunBatch 同步执行一次批处理运行并返回汇总。
// 处理记录存储假定单写者，并发触发时返回409。
func (h *ScreeningHandler) RunBatch(c context.Context, ctx *app.RequestContext) {
	if !h.running.CompareAndSwap(false, true) {
		ctx.JSON(consts.StatusConflict, utils.H{"error": "已有批处理运行在进行中"})
		return
	}
	defer h.running.Store(false)

	var req BatchRunRequest
	if len(ctx.Request.Body()) > 0 {
		if err := ctx.BindJSON(&req); err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体解析失败: " + err.Error()})
			return
		}
	}

	summary, err := h.batch.ProcessAllTickets(c, processor.ProcessOptions{
		Force:   req.Force,
		Tickets: req.Tickets,
	})
	if err != nil {
		tracing.RecordError(trace.SpanFromContext(c), err, tracing.ErrorTypeInternal)
		logger.Error().Err(err).Msg("批处理运行失败")
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}

	h.mu.Lock()
	h.lastSummary = summary
	h.mu.Unlock()

	ctx.JSON(consts.StatusOK, summary)
}

// Status 返回所有工单的处理状态视图
func (h *ScreeningHandler) Status(c context.Context, ctx *app.RequestContext) {
	listing, err := h.batch.ShowStatus(c)
	if err != nil {
		tracing.RecordError(trace.SpanFromContext(c), err, tracing.ErrorTypeInternal)
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}
	ctx.JSON(consts.StatusOK, listing)
}

// LatestSummary 返回最近一次批处理运行的汇总。
// 优先读Redis缓存，其次回退到进程内缓存。
func (h *ScreeningHandler) LatestSummary(c context.Context, ctx *app.RequestContext) {
	if h.store != nil && h.store.Redis != nil {
		summary, err := h.store.Redis.GetLatestBatchSummary(c)
		if err != nil {
			tracing.RecordError(trace.SpanFromContext(c), err, tracing.ErrorTypeRedis)
			logger.Warn().Err(err).Msg("读取Redis中的批处理汇总失败，回退到进程内缓存")
		} else if summary != nil {
			ctx.JSON(consts.StatusOK, summary)
			return
		}
	}

	h.mu.RLock()
	summary := h.lastSummary
	h.mu.RUnlock()
	if summary == nil {
		ctx.JSON(consts.StatusNotFound, utils.H{"error": "尚无批处理运行记录"})
		return
	}
	ctx.JSON(consts.StatusOK, summary)
}

// ResetTicket 删除单个工单的处理记录
func (h *ScreeningHandler) ResetTicket(c context.Context, ctx *app.RequestContext) {
	ticketID := ctx.Param("ticket_id")
	if ticketID == "" {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "缺少工单ID"})
		return
	}
	existed, err := h.batch.ResetTicket(c, ticketID)
	if err != nil {
		tracing.RecordError(trace.SpanFromContext(c), err, tracing.ErrorTypeInternal)
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}
	if !existed {
		ctx.JSON(consts.StatusNotFound, utils.H{"error": "工单没有处理记录", "ticket_id": ticketID})
		return
	}
	ctx.JSON(consts.StatusOK, utils.H{"reset": ticketID})
}

// ResetAll 清空全部处理记录
func (h *ScreeningHandler) ResetAll(c context.Context, ctx *app.RequestContext) {
	if err := h.batch.ResetAll(c); err != nil {
		tracing.RecordError(trace.SpanFromContext(c), err, tracing.ErrorTypeInternal)
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}
	ctx.JSON(consts.StatusOK, utils.H{"reset": "all"})
}

// Health 健康检查
func (h *ScreeningHandler) Health(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
}
