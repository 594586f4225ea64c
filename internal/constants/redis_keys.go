package constants

// Redis Key 前缀和格式常量
// 统一命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// ScreenModulePrefix 筛选模块
	ScreenModulePrefix = "screen"
	// TicketModulePrefix 工单模块
	TicketModulePrefix = "ticket"

	// EntityRecord 处理记录实体
	EntityRecord = "record"
	// EntityText 文本实体
	EntityText = "text"
	// EntityBatch 批处理实体
	EntityBatch = "batch"

	// KeyProcessingRecord 工单处理记录 (STRING, JSON)
	// 格式: app:ticket:record:{ticketID}
	KeyProcessingRecord = AppPrefix + ":" + TicketModulePrefix + ":" + EntityRecord + ":%s"

	// KeyProcessingRecordIndex 所有已处理工单ID的索引 (SET)
	// 格式: app:ticket:record
	KeyProcessingRecordIndex = AppPrefix + ":" + TicketModulePrefix + ":" + EntityRecord

	// KeyRequirementText 需求源文本缓存 (STRING)
	// 格式: app:ticket:text:{ticketID}
	KeyRequirementText = AppPrefix + ":" + TicketModulePrefix + ":" + EntityText + ":%s"

	// KeyLatestBatchSummary 最近一次批处理汇总 (STRING, JSON)
	// 格式: app:screen:batch:latest
	KeyLatestBatchSummary = AppPrefix + ":" + ScreenModulePrefix + ":" + EntityBatch + ":latest"
)
