package matcher

import (
	"testing"

	"resume-screener-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLocationScore 验证地点子分的三档规则
func TestLocationScore(t *testing.T) {
	assert.InDelta(t, 1.0, LocationScore("Currently based in Bangalore, India", "Bangalore"), 1e-9)
	assert.InDelta(t, 0.8, LocationScore("Open to remote work", "Mumbai"), 1e-9, "简历提到remote应得0.8")
	assert.InDelta(t, 0.8, LocationScore("Based in Pune", "Remote"), 1e-9, "需求为remote应得0.8")
	assert.Zero(t, LocationScore("Based in Pune", "Chennai"))
	assert.Zero(t, LocationScore("Based in Pune", ""), "空需求地点不应白拿满分")
	assert.InDelta(t, 0.8, LocationScore("remote friendly", ""), 1e-9)
}

// TestScoreResumeWeightConservation 验证最终分严格等于加权和且权重之和为1.0
func TestScoreResumeWeightConservation(t *testing.T) {
	scorer := NewResumeScorer(nil)
	weights := scorer.Weights()
	assert.InDelta(t, 1.0, weights.Skills+weights.Experience+weights.Location, 1e-9, "权重之和必须为1.0")

	snapshot := types.RequirementSnapshot{
		TicketID:           "TICKET-001",
		Position:           "Backend Engineer",
		ExperienceRequired: "5-8 years",
		Location:           "Bangalore",
		TechStack:          []string{"Python", "Redis", "Scala", "Rust"},
	}
	text := "6 years of experience with python and redis, based in Bangalore."

	result := scorer.ScoreResume(text, "/tickets/TICKET-001/zhang_wei.txt", snapshot)

	assert.Equal(t, "zhang_wei.txt", result.Filename)
	assert.InDelta(t, 0.5, result.SkillScore, 1e-9)
	assert.InDelta(t, 1.0, result.ExperienceScore, 1e-9)
	assert.InDelta(t, 1.0, result.LocationScore, 1e-9)
	assert.Equal(t, 6, result.DetectedExperienceYears)

	expected := weights.Skills*result.SkillScore +
		weights.Experience*result.ExperienceScore +
		weights.Location*result.LocationScore
	assert.InDelta(t, expected, result.FinalScore, 1e-9, "最终分必须严格等于加权和")
	assert.Equal(t, weights, result.ScoringWeights, "结果应携带评分时使用的权重向量")
}

// TestRankStableOrder 验证降序排序且同分保持输入顺序
func TestRankStableOrder(t *testing.T) {
	input := []types.ScoreResult{
		{Filename: "low.txt", FinalScore: 0.2},
		{Filename: "tie_first.txt", FinalScore: 0.5},
		{Filename: "high.txt", FinalScore: 0.9},
		{Filename: "tie_second.txt", FinalScore: 0.5},
	}

	ranked := Rank(input)

	require.Len(t, ranked, 4)
	assert.Equal(t, "high.txt", ranked[0].Filename)
	assert.Equal(t, "tie_first.txt", ranked[1].Filename, "同分时应保持输入顺序")
	assert.Equal(t, "tie_second.txt", ranked[2].Filename)
	assert.Equal(t, "low.txt", ranked[3].Filename)

	// 原切片不被修改
	assert.Equal(t, "low.txt", input[0].Filename)
}

// TestSelectTop 验证截取前n名及不足n时的行为
func TestSelectTop(t *testing.T) {
	ranked := []types.ScoreResult{
		{Filename: "a.txt", FinalScore: 0.9},
		{Filename: "b.txt", FinalScore: 0.7},
		{Filename: "c.txt", FinalScore: 0.5},
	}

	top2 := SelectTop(ranked, 2)
	require.Len(t, top2, 2)
	assert.Equal(t, "a.txt", top2[0].Filename)

	all := SelectTop(ranked, 10)
	assert.Len(t, all, 3, "不足n时应全部返回")
}

// TestRankThenSelectPipeline 验证12人评分后先取前10再取前5的全链路
func TestRankThenSelectPipeline(t *testing.T) {
	scorer := NewResumeScorer(nil)
	snapshot := types.RequirementSnapshot{
		ExperienceRequired: "2-5 years",
		Location:           "Remote",
		TechStack:          []string{"Python"},
	}

	texts := []string{
		"python expert, 3 years of experience, remote",
		"python, 1 years of experience",
		"no relevant skills at all",
		"python and 10 years of experience, remote",
		"2 years of experience with python",
		"remote worker without listed skills",
		"python remote 4 years of experience",
		"completely unrelated resume",
		"python only",
		"5 years of experience, no skills",
		"python, remote, 2 years of experience",
		"blank",
	}

	results := make([]types.ScoreResult, 0, len(texts))
	for i, text := range texts {
		results = append(results, scorer.ScoreResume(text, "/t/r"+string(rune('a'+i))+".txt", snapshot))
	}

	ranked := Rank(results)
	shortlist := SelectTop(ranked, 10)
	final := SelectTop(shortlist, 5)

	require.Len(t, final, 5)
	for i := 1; i < len(final); i++ {
		assert.GreaterOrEqual(t, final[i-1].FinalScore, final[i].FinalScore, "最终名单必须按分数降序")
	}
	// 每个入选者都来自前10
	shortNames := make(map[string]struct{}, len(shortlist))
	for _, r := range shortlist {
		shortNames[r.Filename] = struct{}{}
	}
	for _, r := range final {
		assert.Contains(t, shortNames, r.Filename)
	}
}
