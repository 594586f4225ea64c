package constants

import "time"

const (
	// 应用级常量
	DefaultEngineVersion = "1.0"

	// 工单目录中的权威需求文件，按优先级排列
	JobDataFile    = "job-data.json"
	JobDetailsFile = "job_details.json"
	JobFile        = "job.json"
	// ApplicationsFile 投递列表文件，非权威需求来源，仅作兜底
	ApplicationsFile = "applications.json"
	// JobDescriptionFile 独立的岗位描述文本
	JobDescriptionFile = "job-description.txt"

	// TrackerFileName 处理记录的默认持久化文件
	TrackerFileName = ".processing_tracker.json"
	// ResultsDirName 每个工单下的评分结果目录
	ResultsDirName = "filtering_results"
	// BatchResultsDirName 批处理汇总结果目录
	BatchResultsDirName = "batch_results"

	// 评分权重，固定策略常量，权重之和必须为1.0
	WeightSkills     = 0.50
	WeightExperience = 0.35
	WeightLocation   = 0.15

	// ShortlistSize 初选入围人数
	ShortlistSize = 10
	// FinalSelectionSize 最终入选人数
	FinalSelectionSize = 5

	// DefaultTicketPacing 工单之间的节流间隔，避免触发外部限流配额
	DefaultTicketPacing = 2 * time.Second
)

// RequirementFilePriority 权威需求文件的查找顺序
var RequirementFilePriority = []string{JobDataFile, JobDetailsFile, JobFile}

// ExcludedResumeKeywords 文件名中出现这些关键词时不视为候选人文档
var ExcludedResumeKeywords = []string{
	"job_description", "job-description", "requirements", "jd", "job_posting", "job-posting",
}

// ResumeExtensions 候选人文档的可识别扩展名（.txt 为已抽取文本，其余仅参与摘要指纹）
var ResumeExtensions = []string{".txt", ".pdf", ".docx", ".doc"}
