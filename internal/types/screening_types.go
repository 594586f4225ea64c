package types

// 工单在一次批处理运行中的终态
const (
	// OutcomeCompleted 本次运行完成了重新评分
	OutcomeCompleted = "completed"
	// OutcomeSkipped 内容未变化，本次运行跳过
	OutcomeSkipped = "skipped"
	// OutcomeError 本次运行处理失败
	OutcomeError = "error"
)

// 缓存判定原因
const (
	// ReasonContentChanged 内容摘要与上次不一致，需要重新处理
	ReasonContentChanged = "content_changed"
)

// RequirementSnapshot 合并更新后的岗位需求快照，单次解析内不可变
type RequirementSnapshot struct {
	TicketID           string   `json:"ticket_id"`
	Position           string   `json:"position"`
	ExperienceRequired string   `json:"experience_required"`
	Location           string   `json:"location"`
	SalaryRange        string   `json:"salary_range"`
	Deadline           string   `json:"deadline"`
	TechStack          []string `json:"tech_stack"`
	Description        string   `json:"description"`
	EmploymentType     string   `json:"employment_type"`
	NiceToHave         []string `json:"nice_to_have"`
	Status             string   `json:"status"`
	CreatedAt          string   `json:"created_at"`
	LastUpdated        string   `json:"last_updated"`
}

// ScoringWeights 综合评分的固定权重向量
type ScoringWeights struct {
	Skills     float64 `json:"skills"`
	Experience float64 `json:"experience"`
	Location   float64 `json:"location"`
}

// ScoreResult 单份候选人文档针对一个需求快照的评分结果，构造后不再修改
type ScoreResult struct {
	FilePath                string              `json:"file_path"`
	Filename                string              `json:"filename"`
	FinalScore              float64             `json:"final_score"`
	SkillScore              float64             `json:"skill_score"`
	ExperienceScore         float64             `json:"experience_score"`
	LocationScore           float64             `json:"location_score"`
	MatchedSkills           []string            `json:"matched_skills"`
	DetailedSkillMatches    map[string][]string `json:"detailed_skill_matches"`
	DetectedExperienceYears int                 `json:"detected_experience_years"`
	ScoringWeights          ScoringWeights      `json:"scoring_weights"`
}

// ProcessingRecord 单个工单的持久化处理记录，每次成功运行后整体覆盖
type ProcessingRecord struct {
	TicketID      string `json:"ticket_id"`
	ContentHash   string `json:"content_hash"`
	LastProcessed string `json:"last_processed"`
	ResultsFile   string `json:"results_file"`
	Status        string `json:"status"`
}

// TopCandidate 汇总中展示的头部候选人条目
type TopCandidate struct {
	Name  string `json:"name"`
	Score string `json:"score"`
}

// TicketOutcome 一次批处理运行中单个工单的结果条目
type TicketOutcome struct {
	TicketID      string         `json:"ticket_id"`
	TicketPath    string         `json:"ticket_path"`
	Status        string         `json:"status"`
	Timestamp     string         `json:"timestamp"`
	Position      string         `json:"position,omitempty"`
	TotalResumes  int            `json:"total_resumes,omitempty"`
	TopCandidates []TopCandidate `json:"top_candidates,omitempty"`
	LastProcessed string         `json:"last_processed,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
}

// BatchStatistics 批处理运行的统计计数
type BatchStatistics struct {
	TotalTickets int `json:"total_tickets"`
	Processed    int `json:"processed"`
	Skipped      int `json:"skipped"`
	Errors       int `json:"errors"`
}

// BatchRunSummary 一次批处理运行的完整汇总，运行结束时一次性写出
type BatchRunSummary struct {
	RunID        string          `json:"run_id"`
	Timestamp    string          `json:"batch_run_timestamp"`
	Statistics   BatchStatistics `json:"statistics"`
	Tickets      []TicketOutcome `json:"tickets"`
	SummaryFile  string          `json:"summary_file,omitempty"`
	ReportFile   string          `json:"report_file,omitempty"`
}

// TicketResultSummary 单工单评分结果中的数量统计
type TicketResultSummary struct {
	TotalResumes      int `json:"total_resumes"`
	ShortlistSelected int `json:"shortlist_selected"`
	FinalSelected     int `json:"final_selected"`
}

// TicketResult 单个工单的完整评分产物
type TicketResult struct {
	TicketID                string              `json:"ticket_id"`
	Position                string              `json:"position"`
	Timestamp               string              `json:"timestamp"`
	JobStatus               string              `json:"job_status"`
	RequirementsLastUpdated string              `json:"requirements_last_updated"`
	LatestRequirements      RequirementSnapshot `json:"latest_requirements"`
	Summary                 TicketResultSummary `json:"summary"`
	AllScores               []ScoreResult       `json:"all_scores"`
	Shortlist               []ScoreResult       `json:"shortlist"`
	FinalSelection          []ScoreResult       `json:"final_selection"`
	// ReviewAnnotation LLM复核给出的自由文本评语，仅作为附注，绝不参与排序
	ReviewAnnotation string `json:"review_annotation,omitempty"`
}

// TicketStatus 状态查询视图中单个工单的条目
type TicketStatus struct {
	TicketID      string `json:"ticket_id"`
	Processed     bool   `json:"processed"`
	LastProcessed string `json:"last_processed,omitempty"`
	ResultsFile   string `json:"results_file,omitempty"`
}

// StatusListing 全量工单状态视图
type StatusListing struct {
	TotalTickets   int            `json:"total_tickets"`
	TotalProcessed int            `json:"total_processed"`
	Tickets        []TicketStatus `json:"tickets"`
}
