// Package review 提供基于LLM的终选复核能力。
// 复核只产出附注性评语，绝不改变确定性评分给出的排序与选择。
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"resume-screener-go/internal/config"
	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/types"
	"resume-screener-go/pkg/ratelimit"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
)

// CandidateNote 单个候选人的复核评语
type CandidateNote struct {
	Name string `json:"name"`
	Note string `json:"note"`
}

// ReviewAssessment LLM复核输出的结构
type ReviewAssessment struct {
	OverallComment string          `json:"overall_comment"`
	CandidateNotes []CandidateNote `json:"candidate_notes"`
}

// Reviewer 终选名单复核器，封装LLM客户端、Prompt与限流逻辑
type Reviewer struct {
	llmModel       model.ToolCallingChatModel
	promptTemplate string
	limiter        *ratelimit.TokenBucket
	timeout        time.Duration
}

// ReviewerOption 复核器的配置选项
type ReviewerOption func(*Reviewer)

// WithPromptTemplate 设置自定义提示词模板
func WithPromptTemplate(template string) ReviewerOption {
	return func(r *Reviewer) {
		r.promptTemplate = template
	}
}

// WithTimeout 设置单次复核超时
func WithTimeout(timeout time.Duration) ReviewerOption {
	return func(r *Reviewer) {
		r.timeout = timeout
	}
}

// NewReviewer 创建复核器实例
func NewReviewer(llmModel model.ToolCallingChatModel, cfg *config.ReviewerConfig, options ...ReviewerOption) *Reviewer {
	r := &Reviewer{
		llmModel: llmModel,
		timeout:  60 * time.Second,
	}
	r.promptTemplate = defaultPromptTemplate

	if cfg != nil {
		qpm := cfg.QPM
		if qpm <= 0 {
			qpm = 10
		}
		r.limiter = ratelimit.NewTokenBucket(qpm, qpm).
			WithRetryPolicy(time.Duration(cfg.RetryWaitSeconds)*time.Second, cfg.MaxRetries)
		if d, err := time.ParseDuration(cfg.ReviewTimeout); err == nil && d > 0 {
			r.timeout = d
		}
	}

	for _, opt := range options {
		opt(r)
	}
	return r
}

const defaultPromptTemplate = `你是一位资深的招聘复核专家。下面给出一个岗位的需求信息和系统经过确定性评分选出的终选候选人名单（含各维度得分与命中的技能）。你的任务是对这份名单做一次复核点评，指出评分可能没有体现出的亮点或风险。

**严格遵循以下要求：**
1. 只输出一个合法的JSON对象，不要输出任何额外文本或Markdown标记。
2. JSON结构: {"overall_comment": "...", "candidate_notes": [{"name": "...", "note": "..."}]}
3. "overall_comment" 是对整份名单的总体评价，控制在120字以内。
4. "candidate_notes" 针对每位候选人给出一条简短评语（60字以内），name必须与输入中的文件名一致。
5. 你的评语只是附注，不要建议调整名单顺序或替换候选人。

【岗位需求】:
"""
%s
"""

【终选名单及评分明细】:
"""
%s
"""

请输出JSON复核结果。`

// ReviewFinalSelection 对终选名单做LLM复核，返回渲染好的评语文本。
// 任何失败只返回错误，调用方应降级为无附注继续，不得影响评分产物。
func (r *Reviewer) ReviewFinalSelection(ctx context.Context, requirement *types.RequirementSnapshot, finalSelection []types.ScoreResult) (string, error) {
	if r.llmModel == nil {
		return "", fmt.Errorf("复核器未配置LLM模型")
	}
	if len(finalSelection) == 0 {
		return "", fmt.Errorf("终选名单为空，无需复核")
	}

	reqJSON, err := json.MarshalIndent(requirement, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化需求信息失败: %w", err)
	}
	selJSON, err := json.MarshalIndent(finalSelection, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化终选名单失败: %w", err)
	}

	userMsg := einoschema.UserMessage(fmt.Sprintf(r.promptTemplate, string(reqJSON), string(selJSON)))
	systemMsg := einoschema.SystemMessage("你是一位专注于招聘质量把关的复核助手，输出精炼、客观的JSON评语。")
	messages := []*einoschema.Message{systemMsg, userMsg}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var response *einoschema.Message
	call := func() error {
		var genErr error
		response, genErr = r.llmModel.Generate(callCtx, messages)
		return genErr
	}

	// RetryWithBackoff 内部已按令牌桶节流，无限流器时直接调用
	if r.limiter != nil {
		err = r.limiter.RetryWithBackoff(callCtx, call)
	} else {
		err = call()
	}
	if err != nil {
		return "", fmt.Errorf("LLM复核调用失败: %w", err)
	}
	if response == nil || response.Content == "" {
		return "", fmt.Errorf("LLM复核返回空响应")
	}

	assessment, err := parseAssessment(response.Content)
	if err != nil {
		return "", err
	}
	return renderAnnotation(assessment), nil
}

// parseAssessment 从LLM响应中提取并解析JSON评语
func parseAssessment(content string) (*ReviewAssessment, error) {
	processed := strings.TrimPrefix(content, "\uFEFF")
	jsonStr := extractJSON(processed)
	if jsonStr == "" {
		return nil, fmt.Errorf("无法从LLM响应中提取JSON: %.200s", processed)
	}
	if !utf8.ValidString(jsonStr) {
		jsonStr = strings.ToValidUTF8(jsonStr, "")
	}

	var assessment ReviewAssessment
	if err := json.Unmarshal([]byte(jsonStr), &assessment); err != nil {
		return nil, fmt.Errorf("解析LLM复核JSON失败: %w, 原始内容: %.200s", err, jsonStr)
	}
	if assessment.OverallComment == "" && len(assessment.CandidateNotes) == 0 {
		return nil, fmt.Errorf("LLM复核结果为空")
	}
	return &assessment, nil
}

// extractJSON 截取响应中第一个配平的大括号片段，容忍Markdown代码块包裹
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, "```json"); idx >= 0 {
		text = text[idx+len("```json"):]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	} else if idx := strings.Index(text, "```"); idx >= 0 {
		text = text[idx+3:]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	}

	start := strings.Index(text, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// renderAnnotation 将结构化评语渲染为单段文本，作为ReviewAnnotation存入结果
func renderAnnotation(assessment *ReviewAssessment) string {
	var sb strings.Builder
	if assessment.OverallComment != "" {
		sb.WriteString(assessment.OverallComment)
	}
	for _, note := range assessment.CandidateNotes {
		if note.Name == "" || note.Note == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("%s: %s", note.Name, note.Note))
	}
	result := sb.String()
	if result == "" {
		logger.Warn().Msg("LLM复核评语渲染结果为空")
	}
	return result
}
