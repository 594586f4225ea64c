package models

import (
	"time"

	"gorm.io/datatypes"
)

// ProcessingRecordModel 工单处理记录表。
// 每个工单一行，记录最近一次成功评分时的内容指纹，用于增量跳过判定。
type ProcessingRecordModel struct {
	TicketID      string    `gorm:"type:varchar(255);primaryKey"`
	ContentHash   string    `gorm:"type:char(32);not null"` // 需求文件与简历清单的MD5指纹
	LastProcessed string    `gorm:"type:varchar(64)"`       // RFC3339时间戳
	ResultsFile   string    `gorm:"type:varchar(1024)"`
	Status        string    `gorm:"type:varchar(50);default:'completed'"`
	CreatedAt     time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt     time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (ProcessingRecordModel) TableName() string {
	return "processing_records"
}

// BatchRun 批处理运行表，一次 ProcessAllTickets 调用对应一行
type BatchRun struct {
	RunID          string         `gorm:"type:char(36);primaryKey"`
	RunTimestamp   time.Time      `gorm:"type:datetime(6);index:idx_batch_runs_timestamp"`
	TotalTickets   int            `gorm:"not null;default:0"`
	Processed      int            `gorm:"not null;default:0"`
	Skipped        int            `gorm:"not null;default:0"`
	Errors         int            `gorm:"not null;default:0"`
	SummaryFile    string         `gorm:"type:varchar(1024)"`
	ReportFile     string         `gorm:"type:varchar(1024)"`
	StatisticsJSON datatypes.JSON `gorm:"type:json"`
	EngineVersion  string         `gorm:"type:varchar(50)"`
	CreatedAt      time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (BatchRun) TableName() string {
	return "batch_runs"
}

// BatchTicketOutcome 批处理运行中单个工单的结果条目表
type BatchTicketOutcome struct {
	OutcomeID     uint64         `gorm:"primaryKey;autoIncrement"`
	RunID         string         `gorm:"type:char(36);not null;index:idx_bto_run_id"`
	TicketID      string         `gorm:"type:varchar(255);not null;index:idx_bto_ticket_id"`
	Status        string         `gorm:"type:varchar(50);not null"` // completed / skipped / error
	Position      string         `gorm:"type:varchar(255)"`
	TotalResumes  int            `gorm:"not null;default:0"`
	DetailJSON    datatypes.JSON `gorm:"type:json"` // 完整的TicketOutcome快照
	OutcomeTime   time.Time      `gorm:"type:datetime(6)"`
	CreatedAt     time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`

	Run *BatchRun `gorm:"foreignKey:RunID;references:RunID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (BatchTicketOutcome) TableName() string {
	return "batch_ticket_outcomes"
}
