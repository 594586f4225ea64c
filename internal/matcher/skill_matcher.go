package matcher

import (
	"sort"
	"strings"
)

// SkillMatcher 在简历文本中检测必备技能，依赖注入的别名表提供模糊度。
// 别名表是唯一的模糊来源，不做拼写近似匹配。
type SkillMatcher struct {
	variations VariationTable
}

// NewSkillMatcher 创建技能匹配器。table 为 nil 时使用内置别名表。
func NewSkillMatcher(table VariationTable) *SkillMatcher {
	if table == nil {
		table = DefaultVariationTable()
	}
	return &SkillMatcher{variations: table}
}

// Match 逐个技能按三级规则匹配，首个命中的规则生效：
//  1. 技能小写后是简历文本的子串；
//  2. 技能命中别名表（等于某规范词的别名，或包含某规范词），则测试该规范词的
//     全部别名，记录所有出现过的别名，至少一个出现即视为命中；
//  3. 含空格的技能在前两级都未命中时，若每个单词都出现在文本中也视为命中。
//
// 返回匹配得分（命中数/需求数，需求为空时为0）、命中的技能列表、
// 以及每个技能实际触发匹配的别名明细。
func (m *SkillMatcher) Match(resumeText string, requiredSkills []string) (float64, []string, map[string][]string) {
	resumeLower := strings.ToLower(resumeText)
	matchedSkills := make([]string, 0, len(requiredSkills))
	detailedMatches := make(map[string][]string)

	for _, skill := range requiredSkills {
		skillLower := strings.ToLower(strings.TrimSpace(skill))
		matched := false

		// 规则1: 精确子串
		if strings.Contains(resumeLower, skillLower) {
			matchedSkills = append(matchedSkills, skill)
			detailedMatches[skill] = []string{skillLower}
			continue
		}

		// 规则2: 别名表展开。别名要求词边界出现，
		// 否则 "py" 会在 "pyspark" 里误报 Python
		if key, ok := m.lookupKey(skillLower); ok {
			var found []string
			for _, alias := range m.variations[key] {
				if containsToken(resumeLower, alias) {
					found = append(found, alias)
					matched = true
				}
			}
			if len(found) > 0 {
				matchedSkills = append(matchedSkills, skill)
				detailedMatches[skill] = found
			}
		}

		// 规则3: 多词分解，要求每个单词都出现（不要求相邻）
		if !matched && strings.Contains(skill, " ") {
			allPresent := true
			for _, word := range strings.Fields(skill) {
				if !strings.Contains(resumeLower, strings.ToLower(word)) {
					allPresent = false
					break
				}
			}
			if allPresent {
				matchedSkills = append(matchedSkills, skill)
				detailedMatches[skill] = []string{skillLower}
			}
		}
	}

	// 需求为空时得分为0（口径见产品确认记录，用例中固定验证）
	score := 0.0
	if len(requiredSkills) > 0 {
		score = float64(len(matchedSkills)) / float64(len(requiredSkills))
	}
	return score, matchedSkills, detailedMatches
}

// containsToken 判断别名是否以完整词的形式出现在文本中：
// 出现位置的前后字符都不能是字母或数字
func containsToken(text, alias string) bool {
	if alias == "" {
		return false
	}
	for start := 0; ; {
		idx := strings.Index(text[start:], alias)
		if idx < 0 {
			return false
		}
		pos := start + idx
		end := pos + len(alias)
		leftOK := pos == 0 || !isWordByte(text[pos-1])
		rightOK := end == len(text) || !isWordByte(text[end])
		if leftOK && rightOK {
			return true
		}
		start = pos + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// lookupKey 在别名表中定位技能对应的规范词，分两轮：
// 先找技能恰好等于某规范词别名的情况，全部落空后再退回
// 技能串包含规范词的情况。等值判定必须先于包含判定，
// 否则 "javascript" 会因包含 "java" 绑到错误的规范词。
// 每轮规范词按字典序遍历，保证多个规范词都满足条件时结果稳定。
func (m *SkillMatcher) lookupKey(skillLower string) (string, bool) {
	keys := make([]string, 0, len(m.variations))
	for key := range m.variations {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		for _, alias := range m.variations[key] {
			if skillLower == alias {
				return key, true
			}
		}
	}
	for _, key := range keys {
		if strings.Contains(skillLower, key) {
			return key, true
		}
	}
	return "", false
}
