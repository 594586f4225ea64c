package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"resume-screener-go/internal/api/handler"
	"resume-screener-go/internal/api/router"
	"resume-screener-go/internal/config"
	"resume-screener-go/internal/constants"
	applogger "resume-screener-go/internal/logger"
	"resume-screener-go/internal/matcher"
	"resume-screener-go/internal/processor"
	"resume-screener-go/internal/review"
	"resume-screener-go/internal/storage"
	"resume-screener-go/internal/tracing"
	"resume-screener-go/internal/tracker"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	"github.com/spf13/pflag"
)

var (
	version     = "1.0.0"
	serviceName = "resume-screener"
)

func main() {
	var (
		configPath string
		runBatch   bool
		force      bool
		tickets    []string
		showStatus bool
		resetID    string
		resetAll   bool
		serve      bool
	)
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径")
	pflag.BoolVar(&runBatch, "batch", false, "执行一次批处理运行")
	pflag.BoolVar(&force, "force", false, "忽略处理记录，强制重新评分")
	pflag.StringSliceVar(&tickets, "tickets", nil, "只处理指定的工单ID，逗号分隔")
	pflag.BoolVar(&showStatus, "status", false, "显示所有工单的处理状态")
	pflag.StringVar(&resetID, "reset", "", "删除指定工单的处理记录")
	pflag.BoolVar(&resetAll, "reset-all", false, "清空全部处理记录")
	pflag.BoolVar(&serve, "serve", false, "以HTTP服务方式运行")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	applogger.Init(applogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})
	glog.SetLogger(hertzadapter.From(applogger.Logger))
	applogger.Info().Str("version", version).Msg("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Tracing.Enabled {
		shutdown, err := tracing.InitProvider(ctx, cfg.Tracing.Endpoint, cfg.Tracing.ServiceName)
		if err != nil {
			applogger.Warn().Err(err).Msg("初始化链路追踪失败，继续运行")
		} else {
			defer func() {
				shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancelShutdown()
				if err := shutdown(shutdownCtx); err != nil {
					applogger.Warn().Err(err).Msg("关闭链路追踪失败")
				}
			}()
		}
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		applogger.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer storageManager.Close()

	recordStore, err := buildRecordStore(cfg, storageManager)
	if err != nil {
		applogger.Fatal().Err(err).Msg("初始化处理记录存储失败")
	}
	ticketTracker := tracker.NewTicketTracker(recordStore)

	var reviewer processor.FinalSelectionReviewer
	if cfg.Reviewer.Enabled {
		// 未接入真实LLM服务时回退到模拟模型
		var chatModel model.ToolCallingChatModel = &review.MockChatModel{}
		applogger.Warn().Str("model", cfg.Reviewer.ModelName).Msg("LLM复核使用模拟模型回退")
		reviewer = review.NewReviewer(chatModel, &cfg.Reviewer)
	}

	scorer := matcher.NewResumeScorer(matcher.NewSkillMatcher(nil))
	pipeline := processor.NewTicketPipeline(scorer, reviewer)

	batchProcessor, err := processor.NewBatchProcessor(
		&cfg.Screener,
		ticketTracker,
		pipeline,
		processor.WithResultSink(processor.NewStorageSink(storageManager, cfg.Screener.UploadResults, cfg.Screener.PublishEvents)),
	)
	if err != nil {
		applogger.Fatal().Err(err).Msg("初始化批处理编排器失败")
	}

	switch {
	case showStatus:
		listing, err := batchProcessor.ShowStatus(ctx)
		if err != nil {
			applogger.Fatal().Err(err).Msg("读取工单状态失败")
		}
		printJSON(listing)

	case resetID != "":
		existed, err := batchProcessor.ResetTicket(ctx, resetID)
		if err != nil {
			applogger.Fatal().Err(err).Str("ticket_id", resetID).Msg("删除处理记录失败")
		}
		if existed {
			applogger.Info().Str("ticket_id", resetID).Msg("处理记录已删除")
		} else {
			applogger.Warn().Str("ticket_id", resetID).Msg("工单没有处理记录")
		}

	case resetAll:
		if err := batchProcessor.ResetAll(ctx); err != nil {
			applogger.Fatal().Err(err).Msg("清空处理记录失败")
		}
		applogger.Info().Msg("全部处理记录已清空")

	case serve:
		runServer(ctx, cfg, batchProcessor, storageManager)

	default:
		// --batch 或无模式参数时都执行一次批处理运行
		summary, err := batchProcessor.ProcessAllTickets(ctx, processor.ProcessOptions{
			Force:   force,
			Tickets: tickets,
		})
		if err != nil {
			applogger.Fatal().Err(err).Msg("批处理运行失败")
		}
		printJSON(summary)
	}
}

// buildRecordStore 按配置选择处理记录后端，不可用时回退到文件存储
func buildRecordStore(cfg *config.Config, storageManager *storage.Storage) (tracker.ProcessingRecordStore, error) {
	switch cfg.Screener.TrackerStore {
	case "redis":
		if storageManager.Redis != nil {
			return storage.NewRedisRecordStore(storageManager.Redis), nil
		}
		applogger.Warn().Msg("Redis不可用，处理记录回退到文件存储")
	case "mysql":
		if storageManager.MySQL != nil {
			return storage.NewMySQLRecordStore(storageManager.MySQL), nil
		}
		applogger.Warn().Msg("MySQL不可用，处理记录回退到文件存储")
	}

	trackerFile := cfg.Screener.TrackerFile
	if trackerFile == "" {
		trackerFile = filepath.Join(cfg.Screener.JobsFolder, constants.TrackerFileName)
	}
	return tracker.NewFileRecordStore(trackerFile)
}

// runServer 以HTTP服务方式运行，支持优雅退出
func runServer(ctx context.Context, cfg *config.Config, batchProcessor *processor.BatchProcessor, storageManager *storage.Storage) {
	screeningHandler := handler.NewScreeningHandler(cfg, batchProcessor, storageManager)

	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
	)
	router.RegisterRoutes(h, screeningHandler, cfg.Server.APIKey)
	applogger.Info().Str("address", cfg.Server.Address).Msg("HTTP服务器启动中")

	go func() {
		if err := h.Run(); err != nil {
			applogger.Fatal().Err(err).Msg("启动HTTP服务器失败")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	applogger.Info().Msg("接收到终止信号，正在优雅退出")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		applogger.Error().Err(err).Msg("服务器关闭失败")
	}
	applogger.Info().Msg("优雅退出完成")
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		applogger.Error().Err(err).Msg("序列化输出失败")
		return
	}
	fmt.Println(string(data))
}
