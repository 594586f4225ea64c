package ticket

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"resume-screener-go/internal/constants"
	"resume-screener-go/internal/types"

	"github.com/rs/zerolog"
)

// skillSeparator 技能串的顶层分隔符: 逗号、分号、竖线
var skillSeparator = regexp.MustCompile(`[,;|]\s*`)

// lockedStatuses 视为已定稿的工单状态
var lockedStatuses = map[string]struct{}{
	"closed":    {},
	"locked":    {},
	"archived":  {},
	"finalized": {},
}

// JobTicket 从工单目录解析出的岗位需求视图。
// 加载时将基础记录与更新日志合并为规范化快照：只应用时间戳最大的那一条更新，
// 更早的更新被整体取代而非逐字段累积（按当前产品口径这是有意的简化）。
type JobTicket struct {
	TicketFolder string
	TicketID     string

	rawData    any            // 原始JSON，map或投递列表
	jobDetails map[string]any // 合并更新后的需求字段
	logger     zerolog.Logger
}

// LoadJobTicket 从工单目录加载并解析岗位需求。
// 需求文件按优先级查找；找不到任何JSON时返回 ErrNoRequirement。
func LoadJobTicket(ticketFolder string, logger zerolog.Logger) (*JobTicket, error) {
	t := &JobTicket{
		TicketFolder: ticketFolder,
		TicketID:     filepath.Base(ticketFolder),
		logger:       logger,
	}

	if err := t.loadRawData(); err != nil {
		return nil, err
	}
	t.jobDetails = t.mergeWithUpdates()
	return t, nil
}

// AuthoritativeRequirementFile 返回本工单的权威需求文件路径。
// 按固定优先级查找，始终排除非权威的 applications.json；
// 变更检测的内容摘要依赖同一份来源。
func AuthoritativeRequirementFile(ticketFolder string) (string, bool) {
	for _, name := range constants.RequirementFilePriority {
		path := filepath.Join(ticketFolder, name)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}

	// 没有优先文件时，取除 applications.json 之外的任意JSON（按名称排序保证确定性）
	entries, err := os.ReadDir(ticketFolder)
	if err != nil {
		return "", false
	}
	var others []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") || e.Name() == constants.ApplicationsFile {
			continue
		}
		others = append(others, e.Name())
	}
	if len(others) > 0 {
		sort.Strings(others)
		return filepath.Join(ticketFolder, others[0]), true
	}
	return "", false
}

// RequirementSourceFile 返回加载需求时实际使用的JSON路径。
// 优先权威需求文件；全都缺失时退化使用 applications.json。
func RequirementSourceFile(ticketFolder string) (string, bool) {
	if path, ok := AuthoritativeRequirementFile(ticketFolder); ok {
		return path, true
	}
	appFile := filepath.Join(ticketFolder, constants.ApplicationsFile)
	if _, err := os.Stat(appFile); err == nil {
		return appFile, true
	}
	return "", false
}

// loadRawData 按优先级读取需求JSON，并在存在独立岗位描述文本时并入
func (t *JobTicket) loadRawData() error {
	jsonFile, ok := RequirementSourceFile(t.TicketFolder)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoRequirement, t.TicketFolder)
	}
	t.logger.Debug().Str("file", filepath.Base(jsonFile)).Msg("加载岗位需求文件")

	data, err := os.ReadFile(jsonFile)
	if err != nil {
		return fmt.Errorf("读取需求文件失败: %w", err)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("解析需求JSON失败: %w", err)
	}

	// 独立的岗位描述文本文件
	jdPath := filepath.Join(t.TicketFolder, constants.JobDescriptionFile)
	if jdBytes, err := os.ReadFile(jdPath); err == nil {
		jdText := string(jdBytes)
		if m, ok := raw.(map[string]any); ok && jdText != "" {
			if _, exists := m["job_description"]; !exists {
				m["job_description"] = jdText
			}
			if initial, ok := m["initial_details"].(map[string]any); ok {
				if _, exists := initial["job_description"]; !exists {
					initial["job_description"] = jdText
				}
			}
		}
	}

	t.rawData = raw
	return nil
}

// mergeWithUpdates 将基础记录与更新日志合并为最终需求字段。
// 只应用时间戳字典序最大的一条更新，其 details 中的非空字段覆盖快照。
func (t *JobTicket) mergeWithUpdates() map[string]any {
	// 投递列表格式：退化为带默认值的岗位结构
	if list, ok := t.rawData.([]any); ok {
		t.logger.Info().Str("ticket_id", t.TicketID).Msg("检测到投递列表格式，构造默认岗位结构")
		now := time.Now().Format(time.RFC3339)
		return map[string]any{
			"ticket_id":           t.TicketID,
			"applications":        list,
			"status":              "active",
			"created_at":          now,
			"last_updated":        now,
			"job_title":           "Software Developer",
			"position":            "Software Developer",
			"experience_required": "2+ years",
			"location":            "Remote",
			"salary_range":        "Competitive",
			"required_skills":     "Python, JavaScript, SQL",
			"job_description":     "We are looking for a talented developer",
			"deadline":            "Open until filled",
		}
	}

	rawMap, ok := t.rawData.(map[string]any)
	if !ok {
		return map[string]any{"ticket_id": t.TicketID}
	}

	var merged map[string]any
	if initial, ok := rawMap["initial_details"].(map[string]any); ok {
		merged = copyMap(initial)
	} else {
		merged = copyMap(rawMap)
	}

	merged["ticket_id"] = stringOr(rawMap["ticket_id"], t.TicketID)
	merged["status"] = stringOr(rawMap["status"], "unknown")
	merged["created_at"] = stringOr(rawMap["created_at"], "")
	merged["last_updated"] = stringOr(rawMap["last_updated"], "")

	updates, ok := rawMap["updates"].([]any)
	if !ok || len(updates) == 0 {
		return merged
	}
	t.logger.Debug().Int("count", len(updates)).Msg("发现需求更新记录")

	// 按时间戳降序取最新一条
	sorted := make([]any, len(updates))
	copy(sorted, updates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return updateTimestamp(sorted[i]) > updateTimestamp(sorted[j])
	})

	latest, ok := sorted[0].(map[string]any)
	if !ok {
		return merged
	}
	t.logger.Info().Str("timestamp", updateTimestamp(latest)).Msg("应用最新一条需求更新")

	if details, ok := latest["details"].(map[string]any); ok {
		for key, value := range details {
			if isNonEmpty(value) {
				merged[key] = value
			}
		}
	}
	return merged
}

// updateTimestamp 提取更新条目的时间戳，缺失时返回空串
func updateTimestamp(entry any) string {
	if m, ok := entry.(map[string]any); ok {
		if ts, ok := m["timestamp"].(string); ok {
			return ts
		}
	}
	return ""
}

// Position 岗位名称，按 job_title → position → title 回退
func (t *JobTicket) Position() string {
	return t.stringField([]string{"job_title", "position", "title"}, "Unknown Position")
}

// ExperienceRequired 经验要求，按 experience_required → experience → years_of_experience 回退
func (t *JobTicket) ExperienceRequired() string {
	return t.stringField([]string{"experience_required", "experience", "years_of_experience"}, "0+ years")
}

// Location 工作地点
func (t *JobTicket) Location() string {
	return t.stringField([]string{"location"}, "Not specified")
}

// SalaryRange 薪资范围，兼容 {min,max,currency} 对象形式
func (t *JobTicket) SalaryRange() string {
	raw, ok := t.jobDetails["salary_range"]
	if !ok {
		return "Not specified"
	}
	if m, ok := raw.(map[string]any); ok {
		currency := stringOr(m["currency"], "INR")
		return fmt.Sprintf("%s %v-%v", currency, orEmpty(m["min"]), orEmpty(m["max"]))
	}
	if s, ok := raw.(string); ok && s != "" {
		return s
	}
	return "Not specified"
}

// Deadline 截止时间
func (t *JobTicket) Deadline() string {
	return t.stringField([]string{"deadline"}, "Not specified")
}

// TechStack 解析并展开后的必备技能列表
func (t *JobTicket) TechStack() []string {
	raw := t.jobDetails["required_skills"]
	if !isNonEmpty(raw) {
		raw = t.jobDetails["tech_stack"]
	}
	return ParseSkills(raw)
}

// Description 岗位描述，按 job_description → description → summary 回退
func (t *JobTicket) Description() string {
	return t.stringField([]string{"job_description", "description", "summary"}, "")
}

// EmploymentType 雇佣类型
func (t *JobTicket) EmploymentType() string {
	return t.stringField([]string{"employment_type"}, "Full-time")
}

// NiceToHave 加分技能，按 nice_to_have → preferred_skills → bonus_skills 回退
func (t *JobTicket) NiceToHave() []string {
	for _, key := range []string{"nice_to_have", "preferred_skills", "bonus_skills"} {
		raw, ok := t.jobDetails[key]
		if !ok || !isNonEmpty(raw) {
			continue
		}
		switch v := raw.(type) {
		case string:
			var out []string
			for _, line := range strings.Split(v, "\n") {
				if s := strings.TrimSpace(line); s != "" {
					out = append(out, s)
				}
			}
			return out
		case []any:
			return toStringSlice(v)
		}
	}
	return nil
}

// Status 工单状态
func (t *JobTicket) Status() string {
	return t.stringField([]string{"status"}, "unknown")
}

// LastUpdated 需求最后更新时间
func (t *JobTicket) LastUpdated() string {
	return t.stringField([]string{"last_updated"}, "")
}

// CreatedAt 工单创建时间
func (t *JobTicket) CreatedAt() string {
	return t.stringField([]string{"created_at"}, "")
}

// Locked 工单是否已定稿（不可再评分）
func (t *JobTicket) Locked() bool {
	_, locked := lockedStatuses[strings.ToLower(t.Status())]
	return locked
}

// Snapshot 构造本次解析的规范化需求快照
func (t *JobTicket) Snapshot() types.RequirementSnapshot {
	return types.RequirementSnapshot{
		TicketID:           t.TicketID,
		Position:           t.Position(),
		ExperienceRequired: t.ExperienceRequired(),
		Location:           t.Location(),
		SalaryRange:        t.SalaryRange(),
		Deadline:           t.Deadline(),
		TechStack:          t.TechStack(),
		Description:        t.Description(),
		EmploymentType:     t.EmploymentType(),
		NiceToHave:         t.NiceToHave(),
		Status:             t.Status(),
		CreatedAt:          t.CreatedAt(),
		LastUpdated:        t.LastUpdated(),
	}
}

// Resumes 列出工单目录下的候选人文档路径（名称排除已知的非简历文件）
func (t *JobTicket) Resumes() ([]string, error) {
	names, err := ListResumeFiles(t.TicketFolder)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(names))
	for _, name := range names {
		paths = append(paths, filepath.Join(t.TicketFolder, name))
	}
	return paths, nil
}

// ListResumeFiles 列出目录下候选人文档的文件名，按名称排序。
// 文件名包含岗位描述类关键词的不计入。
func ListResumeFiles(ticketFolder string) ([]string, error) {
	entries, err := os.ReadDir(ticketFolder)
	if err != nil {
		return nil, fmt.Errorf("读取工单目录失败: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		recognized := false
		for _, allowed := range constants.ResumeExtensions {
			if ext == allowed {
				recognized = true
				break
			}
		}
		if !recognized || isExcludedResumeName(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// isExcludedResumeName 判断文件名是否属于岗位描述类非简历文件
func isExcludedResumeName(name string) bool {
	normalized := strings.ReplaceAll(strings.ToLower(name), "_", "-")
	for _, keyword := range constants.ExcludedResumeKeywords {
		k := strings.ReplaceAll(keyword, "_", "-")
		if strings.Contains(normalized, k) {
			return true
		}
	}
	return false
}

// ExtractResumeText 读取候选人文档的纯文本内容。
// 仅支持已抽取的 .txt 文档；其他格式视为不可解码，由调用方跳过该候选人。
func ExtractResumeText(path string) (string, error) {
	if strings.ToLower(filepath.Ext(path)) != ".txt" {
		return "", fmt.Errorf("%w: %s", ErrUnreadableResume, filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnreadableResume, filepath.Base(path), err)
	}
	return string(data), nil
}

// ParseSkills 将技能字段解析为展开后的技能列表。
// 字符串形式按顶层分隔符拆分；"Main (V1/V2)" 展开为 Main、V1、V2；
// 按原样大小写去重，保持首次出现顺序，小写归一化推迟到匹配阶段。
func ParseSkills(raw any) []string {
	switch v := raw.(type) {
	case []any:
		return dedupe(toStringSlice(v))
	case []string:
		return dedupe(v)
	case string:
		if v == "" {
			return nil
		}
		var expanded []string
		for _, part := range skillSeparator.Split(v, -1) {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			open := strings.Index(part, "(")
			closing := strings.Index(part, ")")
			if open >= 0 && closing > open {
				main := strings.TrimSpace(part[:open])
				if main != "" {
					expanded = append(expanded, main)
				}
				variations := strings.TrimSpace(part[open+1 : closing])
				if strings.Contains(variations, "/") {
					for _, variant := range strings.Split(variations, "/") {
						if s := strings.TrimSpace(variant); s != "" {
							expanded = append(expanded, s)
						}
					}
				} else if variations != "" {
					expanded = append(expanded, variations)
				}
			} else {
				expanded = append(expanded, part)
			}
		}
		return dedupe(expanded)
	default:
		return nil
	}
}

// dedupe 按原样大小写去重并保持首次出现顺序
func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// stringField 按给定键顺序取第一个非空字符串，否则返回默认值
func (t *JobTicket) stringField(keys []string, fallback string) string {
	for _, key := range keys {
		if raw, ok := t.jobDetails[key]; ok {
			if s, ok := raw.(string); ok && s != "" {
				return s
			}
		}
	}
	return fallback
}

// isNonEmpty 判断JSON值是否有实际内容（模拟宽松的真值语义）
func isNonEmpty(v any) bool {
	switch value := v.(type) {
	case nil:
		return false
	case string:
		return value != ""
	case []any:
		return len(value) > 0
	case map[string]any:
		return len(value) > 0
	case bool:
		return value
	case float64:
		return value != 0
	default:
		return true
	}
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}

func orEmpty(v any) any {
	if v == nil {
		return ""
	}
	return v
}

func toStringSlice(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func copyMap(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
