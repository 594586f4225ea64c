package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"resume-screener-go/internal/constants"
	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/matcher"
	"resume-screener-go/internal/ticket"
	"resume-screener-go/internal/types"

	"github.com/rs/zerolog"
)

// FinalSelectionReviewer 终选名单复核器。
// 实现方只产出附注评语，不得影响排序与选择。
type FinalSelectionReviewer interface {
	ReviewFinalSelection(ctx context.Context, requirement *types.RequirementSnapshot, finalSelection []types.ScoreResult) (string, error)
}

// TicketPipeline 单工单评分流水线：解析需求、逐份评分、排序选优、落盘产物
type TicketPipeline struct {
	scorer   *matcher.ResumeScorer
	reviewer FinalSelectionReviewer
	logger   zerolog.Logger
	now      func() time.Time
}

// NewTicketPipeline 创建单工单流水线，reviewer 可以为 nil
func NewTicketPipeline(scorer *matcher.ResumeScorer, reviewer FinalSelectionReviewer) *TicketPipeline {
	if scorer == nil {
		scorer = matcher.NewResumeScorer(matcher.NewSkillMatcher(nil))
	}
	return &TicketPipeline{
		scorer:   scorer,
		reviewer: reviewer,
		logger:   logger.Logger.With().Str("component", "ticket_pipeline").Logger(),
		now:      time.Now,
	}
}

// stageOneResult 初筛阶段的中间产物，与最终排序同源
type stageOneResult struct {
	TotalResumes int                 `json:"total_resumes"`
	AllScores    []types.ScoreResult `json:"all_scores"`
	Shortlist    []types.ScoreResult `json:"top_10"`
}

// RunTicket 处理单个工单目录，返回评分产物与最终结果文件路径。
// 不可解码的候选文档按最差情况跳过；无候选文档或需求缺失返回终态错误。
func (p *TicketPipeline) RunTicket(ctx context.Context, ticketFolder string) (*types.TicketResult, string, error) {
	log := p.logger.With().Str("ticket_folder", ticketFolder).Logger()

	jt, err := ticket.LoadJobTicket(ticketFolder, log)
	if err != nil {
		return nil, "", err
	}
	if jt.Locked() {
		return nil, "", fmt.Errorf("%w: 状态为 %s", ticket.ErrTicketLocked, jt.Status())
	}

	snapshot := jt.Snapshot()
	log.Info().
		Str("ticket_id", jt.TicketID).
		Str("position", snapshot.Position).
		Strs("tech_stack", snapshot.TechStack).
		Msg("开始处理工单")

	resumes, err := jt.Resumes()
	if err != nil {
		return nil, "", fmt.Errorf("列出候选文档失败: %w", err)
	}
	if len(resumes) == 0 {
		return nil, "", ticket.ErrNoResumes
	}

	// 逐份评分，不可解码的文档跳过
	allScores := make([]types.ScoreResult, 0, len(resumes))
	for _, resumePath := range resumes {
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		default:
		}

		text, extractErr := ticket.ExtractResumeText(resumePath)
		if extractErr != nil {
			if errors.Is(extractErr, ticket.ErrUnreadableResume) {
				log.Warn().Str("resume", filepath.Base(resumePath)).Msg("候选文档无法解码为文本，跳过")
				continue
			}
			return nil, "", extractErr
		}
		allScores = append(allScores, p.scorer.ScoreResume(text, resumePath, snapshot))
	}

	ranked := matcher.Rank(allScores)
	shortlist := matcher.SelectTop(ranked, constants.ShortlistSize)
	finalSelection := matcher.SelectTop(shortlist, constants.FinalSelectionSize)

	result := &types.TicketResult{
		TicketID:                jt.TicketID,
		Position:                snapshot.Position,
		Timestamp:               p.now().Format(time.RFC3339),
		JobStatus:               snapshot.Status,
		RequirementsLastUpdated: snapshot.LastUpdated,
		LatestRequirements:      snapshot,
		Summary: types.TicketResultSummary{
			TotalResumes:      len(resumes),
			ShortlistSelected: len(shortlist),
			FinalSelected:     len(finalSelection),
		},
		AllScores:      ranked,
		Shortlist:      shortlist,
		FinalSelection: finalSelection,
	}

	// LLM复核只产出附注，失败时降级继续
	if p.reviewer != nil && len(finalSelection) > 0 {
		annotation, reviewErr := p.reviewer.ReviewFinalSelection(ctx, &snapshot, finalSelection)
		if reviewErr != nil {
			log.Warn().Err(reviewErr).Msg("LLM复核失败，结果不带附注")
		} else {
			result.ReviewAnnotation = annotation
		}
	}

	resultsFile, err := p.writeArtifacts(ticketFolder, result)
	if err != nil {
		return nil, "", err
	}

	log.Info().
		Str("ticket_id", jt.TicketID).
		Int("total_resumes", result.Summary.TotalResumes).
		Int("final_selected", result.Summary.FinalSelected).
		Str("results_file", resultsFile).
		Msg("工单处理完成")
	return result, resultsFile, nil
}

// writeArtifacts 在工单目录下写出评分产物：初筛结果、最终结果JSON、文本报告。
// 返回最终结果JSON的路径。
func (p *TicketPipeline) writeArtifacts(ticketFolder string, result *types.TicketResult) (string, error) {
	outputDir := filepath.Join(ticketFolder, constants.ResultsDirName)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("创建结果目录失败: %w", err)
	}

	stage1 := stageOneResult{
		TotalResumes: result.Summary.TotalResumes,
		AllScores:    result.AllScores,
		Shortlist:    result.Shortlist,
	}
	if err := writeJSON(filepath.Join(outputDir, "stage1_results.json"), stage1); err != nil {
		return "", err
	}

	stamp := p.now().Format("20060102_150405")
	resultsFile := filepath.Join(outputDir, fmt.Sprintf("final_results_%s_%s.json", result.TicketID, stamp))
	if err := writeJSON(resultsFile, result); err != nil {
		return "", err
	}

	reportFile := filepath.Join(outputDir, fmt.Sprintf("summary_report_%s_%s.txt", result.TicketID, stamp))
	if err := os.WriteFile(reportFile, []byte(renderTicketReport(result)), 0o644); err != nil {
		return "", fmt.Errorf("写入工单报告失败: %w", err)
	}

	return resultsFile, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化 %s 失败: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", filepath.Base(path), err)
	}
	return nil
}

// renderTicketReport 渲染单工单的文本摘要报告
func renderTicketReport(result *types.TicketResult) string {
	var sb strings.Builder
	divider := strings.Repeat("=", 70)

	sb.WriteString("RESUME FILTERING SUMMARY REPORT\n")
	sb.WriteString(divider + "\n\n")
	sb.WriteString(fmt.Sprintf("Job Ticket ID: %s\n", result.TicketID))
	sb.WriteString(fmt.Sprintf("Position: %s\n", result.Position))
	sb.WriteString(fmt.Sprintf("Report Generated: %s\n", result.Timestamp))
	sb.WriteString(fmt.Sprintf("Job Status: %s\n", result.JobStatus))
	sb.WriteString(fmt.Sprintf("Requirements Last Updated: %s\n", result.RequirementsLastUpdated))

	sb.WriteString("\n" + divider + "\n")
	sb.WriteString("LATEST JOB REQUIREMENTS USED:\n")
	sb.WriteString(divider + "\n")
	sb.WriteString(fmt.Sprintf("Experience: %s\n", result.LatestRequirements.ExperienceRequired))
	sb.WriteString(fmt.Sprintf("Skills: %s\n", strings.Join(result.LatestRequirements.TechStack, ", ")))
	sb.WriteString(fmt.Sprintf("Location: %s\n", result.LatestRequirements.Location))
	sb.WriteString(fmt.Sprintf("Salary: %s\n", result.LatestRequirements.SalaryRange))
	sb.WriteString(fmt.Sprintf("Deadline: %s\n", result.LatestRequirements.Deadline))

	sb.WriteString("\n" + divider + "\n")
	sb.WriteString("FILTERING SUMMARY:\n")
	sb.WriteString(divider + "\n")
	sb.WriteString(fmt.Sprintf("Total Resumes Processed: %d\n", result.Summary.TotalResumes))
	sb.WriteString(fmt.Sprintf("Shortlist Selected: %d\n", result.Summary.ShortlistSelected))
	sb.WriteString(fmt.Sprintf("Final Selected: %d\n", result.Summary.FinalSelected))

	sb.WriteString("\n" + divider + "\n")
	sb.WriteString("TOP CANDIDATES (RANKED):\n")
	sb.WriteString(divider + "\n\n")
	for i, candidate := range result.FinalSelection {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, candidate.Filename))
		sb.WriteString(fmt.Sprintf("   Overall Score: %.1f%%\n", candidate.FinalScore*100))
		sb.WriteString(fmt.Sprintf("   Skill Match: %.1f%% (%d/%d skills)\n",
			candidate.SkillScore*100, len(candidate.MatchedSkills), len(result.LatestRequirements.TechStack)))
		sb.WriteString(fmt.Sprintf("   Matched Skills: %s\n", strings.Join(candidate.MatchedSkills, ", ")))
		sb.WriteString(fmt.Sprintf("   Experience: %d years (Score: %.1f%%)\n",
			candidate.DetectedExperienceYears, candidate.ExperienceScore*100))
		locationMatch := "No"
		if candidate.LocationScore > 0 {
			locationMatch = "Yes"
		}
		sb.WriteString(fmt.Sprintf("   Location Match: %s\n\n", locationMatch))
	}

	if result.ReviewAnnotation != "" {
		sb.WriteString("\n" + divider + "\n")
		sb.WriteString("REVIEW COMMENTARY:\n")
		sb.WriteString(divider + "\n")
		sb.WriteString(result.ReviewAnnotation + "\n")
	}

	return sb.String()
}
