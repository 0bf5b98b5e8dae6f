package processor

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/seekworks/autoapply/internal/interfaces"
	"github.com/seekworks/autoapply/internal/models"
)

// Section headers recognized by the heuristic splitter. Zhipin postings
// overwhelmingly use one of these per section.
var (
	responsibilityHeaders = []string{"岗位职责", "工作职责", "职责描述", "工作内容", "岗位描述", "职位描述", "responsibilities"}
	requirementHeaders    = []string{"任职要求", "岗位要求", "任职资格", "职位要求", "任职条件", "我们希望你", "requirements"}

	bulletPrefixRe = regexp.MustCompile(`^\s*(?:\d+[、.．:：)]|[-•·*]|[（(]\d+[)）])\s*`)
	experienceRe   = regexp.MustCompile(`(\d+(?:\s*[-~至]\s*\d+)?\s*年(?:以上)?)`)
	educationRe    = regexp.MustCompile(`(博士|硕士|研究生|本科|大专|专科|高中|学历不限)`)
	latinSkillRe   = regexp.MustCompile(`[A-Za-z][A-Za-z0-9+#.]{1,30}`)
)

// cjkSkillTerms are common Chinese-language technology terms looked for
// verbatim, since the latin-token scan cannot see them
var cjkSkillTerms = []string{
	"机器学习", "深度学习", "数据分析", "数据挖掘", "自然语言处理",
	"微服务", "分布式", "高并发", "消息队列", "容器化", "云原生",
	"前端", "后端", "全栈", "爬虫", "算法", "运维", "测试",
}

// skillStopwords filters latin tokens that appear in postings but are not
// technologies
var skillStopwords = map[string]struct{}{
	"and": {}, "or": {}, "the": {}, "with": {}, "for": {}, "to": {}, "in": {},
	"of": {}, "a": {}, "on": {}, "is": {}, "are": {}, "we": {}, "you": {},
	"app": {}, "web": {}, "it": {}, "ok": {}, "base": {}, "plus": {},
}

// FallbackExtractor is the deterministic splitter used when the model is
// unavailable or returns an unusable response. Output is marked with
// Fallback=true so downstream consumers can weigh it accordingly.
type FallbackExtractor struct {
	logger arbor.ILogger
}

// NewFallbackExtractor creates the heuristic extractor
func NewFallbackExtractor(logger arbor.ILogger) interfaces.StructuredExtractor {
	return &FallbackExtractor{logger: logger}
}

// Extract splits the description on section headers and harvests skills,
// education and experience by pattern. Never calls the network.
func (e *FallbackExtractor) Extract(ctx context.Context, rawText string) (*models.StructuredFields, error) {
	text := strings.TrimSpace(rawText)
	if text == "" {
		return nil, fmt.Errorf("description is empty")
	}

	fields := &models.StructuredFields{Fallback: true}

	respBlock, reqBlock := splitSections(text)
	fields.Responsibilities = splitBullets(respBlock)
	fields.Requirements = splitBullets(reqBlock)

	// Headerless postings: treat every line as a requirement so matching
	// still has material to work with
	if len(fields.Responsibilities) == 0 && len(fields.Requirements) == 0 {
		fields.Requirements = splitBullets(text)
	}

	fields.Skills = harvestSkills(text)
	if m := educationRe.FindString(text); m != "" {
		fields.Education = m
	}
	if m := experienceRe.FindString(text); m != "" {
		fields.Experience = m
	}

	e.logger.Debug().
		Int("responsibilities", len(fields.Responsibilities)).
		Int("requirements", len(fields.Requirements)).
		Int("skills", len(fields.Skills)).
		Msg("Fallback extraction completed")

	return fields, nil
}

// splitSections returns the text between the responsibility header and the
// requirement header, and the text after the requirement header
func splitSections(text string) (responsibilities, requirements string) {
	respIdx, respHdr := findHeader(text, responsibilityHeaders)
	reqIdx, reqHdr := findHeader(text, requirementHeaders)

	switch {
	case respIdx >= 0 && reqIdx >= 0:
		if respIdx < reqIdx {
			responsibilities = text[respIdx+len(respHdr) : reqIdx]
			requirements = text[reqIdx+len(reqHdr):]
		} else {
			requirements = text[reqIdx+len(reqHdr) : respIdx]
			responsibilities = text[respIdx+len(respHdr):]
		}
	case respIdx >= 0:
		responsibilities = text[respIdx+len(respHdr):]
	case reqIdx >= 0:
		requirements = text[reqIdx+len(reqHdr):]
	}
	return responsibilities, requirements
}

func findHeader(text string, headers []string) (int, string) {
	lower := strings.ToLower(text)
	best, bestHdr := -1, ""
	for _, hdr := range headers {
		if idx := strings.Index(lower, strings.ToLower(hdr)); idx >= 0 && (best < 0 || idx < best) {
			best, bestHdr = idx, text[idx:idx+len(hdr)]
		}
	}
	return best, bestHdr
}

// splitBullets breaks a section into list items on newlines and numbered
// or bulleted prefixes
func splitBullets(block string) []string {
	var items []string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, ":：")
		line = bulletPrefixRe.ReplaceAllString(line, "")
		line = strings.TrimSpace(line)
		if len([]rune(line)) >= 4 {
			items = append(items, line)
		}
	}
	return items
}

// harvestSkills collects latin technology tokens plus known Chinese terms,
// deduplicated case-insensitively in first-seen order
func harvestSkills(text string) []string {
	seen := make(map[string]struct{})
	var skills []string

	for _, token := range latinSkillRe.FindAllString(text, -1) {
		key := strings.ToLower(token)
		if _, stop := skillStopwords[key]; stop {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		skills = append(skills, token)
	}

	for _, term := range cjkSkillTerms {
		if strings.Contains(text, term) {
			if _, dup := seen[term]; !dup {
				seen[term] = struct{}{}
				skills = append(skills, term)
			}
		}
	}

	return skills
}
