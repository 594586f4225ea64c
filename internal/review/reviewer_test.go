package review

import (
	"context"
	"errors"
	"testing"

	"resume-screener-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSelection = []types.ScoreResult{
	{Filename: "zhang_wei.txt", FinalScore: 0.92, MatchedSkills: []string{"Python", "SQL"}},
	{Filename: "li_na.txt", FinalScore: 0.75, MatchedSkills: []string{"Python"}},
}

var testRequirement = &types.RequirementSnapshot{
	TicketID:  "TICKET-001",
	Position:  "Backend Engineer",
	TechStack: []string{"Python", "SQL"},
}

// TestReviewFinalSelection 验证正常复核输出渲染为单段评语
func TestReviewFinalSelection(t *testing.T) {
	mock := &MockChatModel{Response: `{
		"overall_comment": "名单整体与岗位匹配良好。",
		"candidate_notes": [
			{"name": "zhang_wei.txt", "note": "技能覆盖完整。"},
			{"name": "li_na.txt", "note": "缺少SQL经验。"}
		]
	}`}
	r := NewReviewer(mock, nil)

	annotation, err := r.ReviewFinalSelection(context.Background(), testRequirement, testSelection)
	require.NoError(t, err)

	assert.Contains(t, annotation, "名单整体与岗位匹配良好。")
	assert.Contains(t, annotation, "zhang_wei.txt: 技能覆盖完整。")
	assert.Contains(t, annotation, "li_na.txt: 缺少SQL经验。")
	assert.EqualValues(t, 1, mock.CallCount)
}

// TestReviewFencedJSON 验证Markdown代码块包裹的JSON也能解析
func TestReviewFencedJSON(t *testing.T) {
	mock := &MockChatModel{Response: "复核结果如下：\n```json\n{\"overall_comment\": \"可以进入面试环节。\", \"candidate_notes\": []}\n```"}
	r := NewReviewer(mock, nil)

	annotation, err := r.ReviewFinalSelection(context.Background(), testRequirement, testSelection)
	require.NoError(t, err)
	assert.Equal(t, "可以进入面试环节。", annotation)
}

// TestReviewModelError 验证模型调用失败时返回错误供调用方降级
func TestReviewModelError(t *testing.T) {
	mock := &MockChatModel{Err: errors.New("服务不可用")}
	r := NewReviewer(mock, nil)

	_, err := r.ReviewFinalSelection(context.Background(), testRequirement, testSelection)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM复核调用失败")
}

// TestReviewMalformedResponse 验证无法提取JSON时报错
func TestReviewMalformedResponse(t *testing.T) {
	mock := &MockChatModel{Response: "这不是一个JSON响应"}
	r := NewReviewer(mock, nil)

	_, err := r.ReviewFinalSelection(context.Background(), testRequirement, testSelection)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "无法从LLM响应中提取JSON")
}

// TestReviewEmptySelection 验证空名单直接报错
func TestReviewEmptySelection(t *testing.T) {
	r := NewReviewer(&MockChatModel{}, nil)

	_, err := r.ReviewFinalSelection(context.Background(), testRequirement, nil)
	assert.Error(t, err)
}

// TestReviewNilModel 验证未配置模型时报错
func TestReviewNilModel(t *testing.T) {
	r := NewReviewer(nil, nil)

	_, err := r.ReviewFinalSelection(context.Background(), testRequirement, testSelection)
	assert.Error(t, err)
}

// TestMockModelDefaultResponse 验证模拟模型的默认响应是合法复核JSON
func TestMockModelDefaultResponse(t *testing.T) {
	r := NewReviewer(&MockChatModel{}, nil)

	annotation, err := r.ReviewFinalSelection(context.Background(), testRequirement, testSelection)
	require.NoError(t, err)
	assert.NotEmpty(t, annotation)
}

// TestExtractJSON 验证JSON片段截取的边界行为
func TestExtractJSON(t *testing.T) {
	t.Run("嵌套对象配平", func(t *testing.T) {
		out := extractJSON(`前缀 {"a": {"b": 1}, "c": "x"} 后缀`)
		assert.Equal(t, `{"a": {"b": 1}, "c": "x"}`, out)
	})

	t.Run("字符串内的大括号不参与配平", func(t *testing.T) {
		out := extractJSON(`{"note": "包含 } 和 { 的文本"}`)
		assert.Equal(t, `{"note": "包含 } 和 { 的文本"}`, out)
	})

	t.Run("转义引号", func(t *testing.T) {
		out := extractJSON(`{"note": "他说\"你好\""}`)
		assert.Equal(t, `{"note": "他说\"你好\""}`, out)
	})

	t.Run("不配平时返回空", func(t *testing.T) {
		assert.Empty(t, extractJSON(`{"a": 1`))
		assert.Empty(t, extractJSON("没有大括号"))
	})
}

// TestParseAssessmentEmpty 验证全空的评语被拒绝
func TestParseAssessmentEmpty(t *testing.T) {
	_, err := parseAssessment(`{"overall_comment": "", "candidate_notes": []}`)
	assert.Error(t, err)
}

// TestRenderAnnotation 验证评语渲染跳过不完整条目
func TestRenderAnnotation(t *testing.T) {
	out := renderAnnotation(&ReviewAssessment{
		OverallComment: "总体良好",
		CandidateNotes: []CandidateNote{
			{Name: "a.txt", Note: "不错"},
			{Name: "", Note: "缺名字"},
			{Name: "b.txt", Note: ""},
		},
	})
	assert.Equal(t, "总体良好\na.txt: 不错", out)
}
