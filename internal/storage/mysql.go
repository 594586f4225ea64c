package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"resume-screener-go/internal/config"
	"resume-screener-go/internal/constants"
	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/storage/models"
	"resume-screener-go/internal/tracker"
	"resume-screener-go/internal/types"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// GormTracingPlugin GORM插件，为数据库操作创建OpenTelemetry追踪点
type GormTracingPlugin struct {
	tracer trace.Tracer
	dbName string
}

// NewGormTracingPlugin 创建追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer: otel.Tracer("resume-screener-go/storage/mysql"),
		dbName: dbName,
	}
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

type gormSpanKey struct{}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}
	return nil
}

func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}
		spanCtx, span := p.tracer.Start(ctx, fmt.Sprintf("%s %s", operation, tableName),
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		)
		db.Statement.Context = context.WithValue(spanCtx, gormSpanKey{}, span)
	}
}

func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value(gormSpanKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()
		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
			span.RecordError(db.Error)
			span.SetStatus(codes.Error, db.Error.Error())
		}
		span.SetAttributes(attribute.Int64("db.rows_affected", db.RowsAffected))
	}
}

// MySQL 提供关系型数据库存储
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端并自动迁移表结构
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	// 构建DSN，带超时设置
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	var logLevel gormlogger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = gormlogger.Silent
	case 2:
		logLevel = gormlogger.Error
	case 3:
		logLevel = gormlogger.Warn
	case 4:
		logLevel = gormlogger.Info
	default:
		logLevel = gormlogger.Warn
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormlogger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	m := &MySQL{db: db, cfg: cfg}
	if err := m.autoMigrateSchema(); err != nil {
		if sqlDB, derr := db.DB(); derr == nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	logger.Info().Str("host", cfg.Host).Str("database", cfg.Database).Msg("成功连接到MySQL并迁移表结构")
	return m, nil
}

func (m *MySQL) autoMigrateSchema() error {
	return m.db.AutoMigrate(
		&models.ProcessingRecordModel{},
		&models.BatchRun{},
		&models.BatchTicketOutcome{},
	)
}

// DB 返回底层GORM实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveBatchRun 持久化一次批处理运行的汇总与逐工单结果
func (m *MySQL) SaveBatchRun(ctx context.Context, summary *types.BatchRunSummary) error {
	if summary == nil {
		return fmt.Errorf("批处理汇总不能为空")
	}

	runID := summary.RunID
	if runID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("生成批处理运行ID失败: %w", err)
		}
		runID = id.String()
	}

	statsJSON, err := json.Marshal(summary.Statistics)
	if err != nil {
		return fmt.Errorf("序列化批处理统计失败: %w", err)
	}

	runTime := time.Now()
	if ts, perr := time.Parse(time.RFC3339, summary.Timestamp); perr == nil {
		runTime = ts
	}

	run := models.BatchRun{
		RunID:          runID,
		RunTimestamp:   runTime,
		TotalTickets:   summary.Statistics.TotalTickets,
		Processed:      summary.Statistics.Processed,
		Skipped:        summary.Statistics.Skipped,
		Errors:         summary.Statistics.Errors,
		SummaryFile:    summary.SummaryFile,
		ReportFile:     summary.ReportFile,
		StatisticsJSON: statsJSON,
		EngineVersion:  constants.DefaultEngineVersion,
	}

	outcomes := make([]models.BatchTicketOutcome, 0, len(summary.Tickets))
	for _, t := range summary.Tickets {
		detail, merr := json.Marshal(t)
		if merr != nil {
			return fmt.Errorf("序列化工单结果 %s 失败: %w", t.TicketID, merr)
		}
		outcomeTime := runTime
		if ts, perr := time.Parse(time.RFC3339, t.Timestamp); perr == nil {
			outcomeTime = ts
		}
		outcomes = append(outcomes, models.BatchTicketOutcome{
			RunID:        runID,
			TicketID:     t.TicketID,
			Status:       t.Status,
			Position:     t.Position,
			TotalResumes: t.TotalResumes,
			DetailJSON:   detail,
			OutcomeTime:  outcomeTime,
		})
	}

	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return fmt.Errorf("写入批处理运行记录失败: %w", err)
		}
		if len(outcomes) > 0 {
			if err := tx.CreateInBatches(outcomes, 100).Error; err != nil {
				return fmt.Errorf("写入工单结果条目失败: %w", err)
			}
		}
		return nil
	})
}

// LatestBatchRun 查询最近一次批处理运行
func (m *MySQL) LatestBatchRun(ctx context.Context) (*models.BatchRun, error) {
	var run models.BatchRun
	err := m.db.WithContext(ctx).Order("run_timestamp DESC").First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询最近批处理运行失败: %w", err)
	}
	return &run, nil
}

// MySQLRecordStore 基于MySQL的工单处理记录存储
type MySQLRecordStore struct {
	db *gorm.DB
}

var _ tracker.ProcessingRecordStore = (*MySQLRecordStore)(nil)

// NewMySQLRecordStore 创建MySQL处理记录存储
func NewMySQLRecordStore(m *MySQL) *MySQLRecordStore {
	return &MySQLRecordStore{db: m.db}
}

// Get 读取工单处理记录
func (s *MySQLRecordStore) Get(ctx context.Context, ticketID string) (*types.ProcessingRecord, error) {
	var row models.ProcessingRecordModel
	err := s.db.WithContext(ctx).Where("ticket_id = ?", ticketID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tracker.ErrRecordNotFound
		}
		return nil, fmt.Errorf("查询工单处理记录失败: %w", err)
	}
	return &types.ProcessingRecord{
		TicketID:      row.TicketID,
		ContentHash:   row.ContentHash,
		LastProcessed: row.LastProcessed,
		ResultsFile:   row.ResultsFile,
		Status:        row.Status,
	}, nil
}

// Put 写入（覆盖）工单处理记录
func (s *MySQLRecordStore) Put(ctx context.Context, record *types.ProcessingRecord) error {
	if record == nil || record.TicketID == "" {
		return fmt.Errorf("处理记录或工单ID不能为空")
	}
	row := models.ProcessingRecordModel{
		TicketID:      record.TicketID,
		ContentHash:   record.ContentHash,
		LastProcessed: record.LastProcessed,
		ResultsFile:   record.ResultsFile,
		Status:        record.Status,
	}
	// 同一工单重复处理时覆盖旧指纹
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ticket_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"content_hash", "last_processed", "results_file", "status"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("写入工单处理记录失败: %w", err)
	}
	return nil
}

// Delete 删除单个工单的处理记录
func (s *MySQLRecordStore) Delete(ctx context.Context, ticketID string) (bool, error) {
	res := s.db.WithContext(ctx).Where("ticket_id = ?", ticketID).Delete(&models.ProcessingRecordModel{})
	if res.Error != nil {
		return false, fmt.Errorf("删除工单处理记录失败: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// DeleteAll 清空全部处理记录
func (s *MySQLRecordStore) DeleteAll(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Where("1 = 1").Delete(&models.ProcessingRecordModel{}).Error; err != nil {
		return fmt.Errorf("清空处理记录失败: %w", err)
	}
	return nil
}

// List 按工单ID升序列出全部处理记录
func (s *MySQLRecordStore) List(ctx context.Context) ([]types.ProcessingRecord, error) {
	var rows []models.ProcessingRecordModel
	if err := s.db.WithContext(ctx).Order("ticket_id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("列出处理记录失败: %w", err)
	}
	records := make([]types.ProcessingRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, types.ProcessingRecord{
			TicketID:      row.TicketID,
			ContentHash:   row.ContentHash,
			LastProcessed: row.LastProcessed,
			ResultsFile:   row.ResultsFile,
			Status:        row.Status,
		})
	}
	return records, nil
}
