package matcher

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// 从简历文本推断工作年限的固定正则组。
// 年份区间形式要求起始年大于1990，避免把无关的四位数字当作入职年份。
var experiencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+)\+?\s*years?\s*(?:of\s*)?(?:professional\s*)?experience`),
	regexp.MustCompile(`experience\s*[:–-]\s*(\d+)\+?\s*years?`),
	regexp.MustCompile(`(\d+)\+?\s*years?\s*in\s*(?:software|data|engineering|development)`),
	regexp.MustCompile(`total\s*experience\s*[:–-]\s*(\d+)\+?\s*years?`),
	regexp.MustCompile(`(\d+)\+?\s*yrs?\s*exp`),
	regexp.MustCompile(`(\d{4})\s*[-–]\s*(?:present|current|now|(\d{4}))`),
}

var digitsPattern = regexp.MustCompile(`\d+`)

// minAcceptableStartYear 年份区间匹配的起始年下限
const minAcceptableStartYear = 1990

// ParseExperienceRange 解析需求中的经验范围文本。
// "5-8 years" → (5,8)；"5+ years" → (5,10)；"5 years" → (5,5)；
// 无数字时回退为 (0,100)，即不设限制而非报错。
func ParseExperienceRange(experienceStr string) (int, int) {
	numbers := digitsPattern.FindAllString(experienceStr, -1)

	switch {
	case len(numbers) >= 2:
		minReq, _ := strconv.Atoi(numbers[0])
		maxReq, _ := strconv.Atoi(numbers[1])
		return minReq, maxReq
	case len(numbers) == 1:
		n, _ := strconv.Atoi(numbers[0])
		if strings.Contains(experienceStr, "+") {
			return n, n + 5
		}
		return n, n
	default:
		return 0, 100
	}
}

// EstimateExperience 从简历文本推断候选人年限并对需求范围打分。
// 所有模式产出的候选数字汇入同一池子后取最大值——有意偏向候选人陈述的
// 最长资历而非平均值。
// 打分规则：落在[min,max]内为1.0；超出上限0.9（轻微过高惩罚）；
// 距下限不足一年0.8；否则按 years/min 比例给分（min为0时记0）；
// 完全未检出年限时返回(0.0, 0)。
func EstimateExperience(resumeText string, requiredExperience string) (float64, int) {
	minReq, maxReq := ParseExperienceRange(requiredExperience)
	textLower := strings.ToLower(resumeText)

	var yearsFound []int
	for _, pattern := range experiencePatterns {
		for _, match := range pattern.FindAllStringSubmatch(textLower, -1) {
			if len(match) > 2 {
				// 年份区间形式: <YYYY>-present 或 <YYYY>-<YYYY>
				startYear, err := strconv.Atoi(match[1])
				if err != nil || len(match[1]) != 4 {
					continue
				}
				endYear := time.Now().Year()
				if match[2] != "" {
					if y, err := strconv.Atoi(match[2]); err == nil {
						endYear = y
					}
				}
				if startYear > minAcceptableStartYear {
					yearsFound = append(yearsFound, endYear-startYear)
				}
				continue
			}
			if n, err := strconv.Atoi(match[1]); err == nil {
				yearsFound = append(yearsFound, n)
			}
		}
	}

	if len(yearsFound) == 0 {
		return 0.0, 0
	}

	candidateYears := yearsFound[0]
	for _, y := range yearsFound[1:] {
		if y > candidateYears {
			candidateYears = y
		}
	}

	switch {
	case candidateYears >= minReq && candidateYears <= maxReq:
		return 1.0, candidateYears
	case candidateYears > maxReq:
		return 0.9, candidateYears
	case candidateYears >= minReq-1:
		return 0.8, candidateYears
	case minReq > 0:
		return float64(candidateYears) / float64(minReq), candidateYears
	default:
		return 0, candidateYears
	}
}
