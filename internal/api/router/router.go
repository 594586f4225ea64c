package router

import (
	"context"

	"resume-screener-go/internal/api/handler"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"
)

// RegisterRoutes 注册API路由。
// apiKey 非空时，除健康检查外的接口启用Bearer鉴权。
func RegisterRoutes(h *server.Hertz, screeningHandler *handler.ScreeningHandler, apiKey string) {
	api := h.Group("/api/v1")

	// 健康检查不鉴权
	api.GET("/health", screeningHandler.Health)

	if apiKey != "" {
		api.Use(keyauth.New(
			keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
			keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, key string) (bool, error) {
				return key == apiKey, nil
			}),
			keyauth.WithErrorHandler(func(ctx context.Context, c *app.RequestContext, err error) {
				c.JSON(consts.StatusUnauthorized, utils.H{"error": "鉴权失败"})
				c.Abort()
			}),
		))
	}

	api.POST("/batch/run", screeningHandler.RunBatch)
	api.GET("/batch/status", screeningHandler.Status)
	api.GET("/batch/summary/latest", screeningHandler.LatestSummary)
	api.DELETE("/tracker/:ticket_id", screeningHandler.ResetTicket)
	api.DELETE("/tracker", screeningHandler.ResetAll)
}
