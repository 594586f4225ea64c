package matcher

import (
	"path/filepath"
	"sort"
	"strings"

	"resume-screener-go/internal/constants"
	"resume-screener-go/internal/types"
)

// ResumeScorer 将技能、经验、地点三个子分按固定权重合成最终分。
// 权重是策略常量而非学习参数，权重之和恒为1.0。
type ResumeScorer struct {
	matcher *SkillMatcher
	weights types.ScoringWeights
}

// NewResumeScorer 创建综合评分器
func NewResumeScorer(matcher *SkillMatcher) *ResumeScorer {
	if matcher == nil {
		matcher = NewSkillMatcher(nil)
	}
	return &ResumeScorer{
		matcher: matcher,
		weights: types.ScoringWeights{
			Skills:     constants.WeightSkills,
			Experience: constants.WeightExperience,
			Location:   constants.WeightLocation,
		},
	}
}

// Weights 返回当前权重向量
func (s *ResumeScorer) Weights() types.ScoringWeights {
	return s.weights
}

// LocationScore 计算地点子分：
// 需求地点（小写）逐字出现在简历中为1.0；任一方提到 remote 为0.8；否则为0。
func LocationScore(resumeText string, requiredLocation string) float64 {
	resumeLower := strings.ToLower(resumeText)
	locationLower := strings.ToLower(requiredLocation)

	if locationLower != "" && strings.Contains(resumeLower, locationLower) {
		return 1.0
	}
	if strings.Contains(locationLower, "remote") || strings.Contains(resumeLower, "remote") {
		return 0.8
	}
	return 0.0
}

// ScoreResume 对单份简历文本针对需求快照评分，结果构造后不再修改
func (s *ResumeScorer) ScoreResume(resumeText string, resumePath string, snapshot types.RequirementSnapshot) types.ScoreResult {
	skillScore, matchedSkills, detailedMatches := s.matcher.Match(resumeText, snapshot.TechStack)
	expScore, detectedYears := EstimateExperience(resumeText, snapshot.ExperienceRequired)
	locationScore := LocationScore(resumeText, snapshot.Location)

	finalScore := s.weights.Skills*skillScore +
		s.weights.Experience*expScore +
		s.weights.Location*locationScore

	return types.ScoreResult{
		FilePath:                resumePath,
		Filename:                filepath.Base(resumePath),
		FinalScore:              finalScore,
		SkillScore:              skillScore,
		ExperienceScore:         expScore,
		LocationScore:           locationScore,
		MatchedSkills:           matchedSkills,
		DetailedSkillMatches:    detailedMatches,
		DetectedExperienceYears: detectedYears,
		ScoringWeights:          s.weights,
	}
}

// Rank 按最终分降序排序。稳定排序，同分保持输入顺序，不定义次级排序键。
func Rank(results []types.ScoreResult) []types.ScoreResult {
	ranked := make([]types.ScoreResult, len(results))
	copy(ranked, results)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].FinalScore > ranked[j].FinalScore
	})
	return ranked
}

// SelectTop 从已排序结果中截取前n名，不足n时全部返回
func SelectTop(ranked []types.ScoreResult, n int) []types.ScoreResult {
	if len(ranked) < n {
		n = len(ranked)
	}
	return ranked[:n]
}
