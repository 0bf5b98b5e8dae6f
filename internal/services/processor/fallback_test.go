package processor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

const sampleDescription = `岗位职责：
1、负责后端服务的设计与开发；
2、参与系统架构设计，优化服务性能；
3、编写技术文档。
任职要求：
1、本科及以上学历，计算机相关专业；
2、3-5年后端开发经验；
3、精通Golang，熟悉MySQL、Redis、Kafka；
4、了解Docker和Kubernetes，有微服务经验优先。`

func TestFallbackExtractSplitsSections(t *testing.T) {
	extractor := NewFallbackExtractor(arbor.NewLogger())

	fields, err := extractor.Extract(context.Background(), sampleDescription)
	require.NoError(t, err)

	assert.True(t, fields.Fallback)
	require.Len(t, fields.Responsibilities, 3)
	assert.Contains(t, fields.Responsibilities[0], "后端服务的设计与开发")
	require.Len(t, fields.Requirements, 4)
	assert.Contains(t, fields.Requirements[1], "3-5年")
}

func TestFallbackExtractHarvestsSkills(t *testing.T) {
	extractor := NewFallbackExtractor(arbor.NewLogger())

	fields, err := extractor.Extract(context.Background(), sampleDescription)
	require.NoError(t, err)

	assert.Contains(t, fields.Skills, "Golang")
	assert.Contains(t, fields.Skills, "MySQL")
	assert.Contains(t, fields.Skills, "Kafka")
	assert.Contains(t, fields.Skills, "微服务")
}

func TestFallbackExtractEducationAndExperience(t *testing.T) {
	extractor := NewFallbackExtractor(arbor.NewLogger())

	fields, err := extractor.Extract(context.Background(), sampleDescription)
	require.NoError(t, err)

	assert.Equal(t, "本科", fields.Education)
	assert.Contains(t, fields.Experience, "3-5年")
}

func TestFallbackExtractHeaderlessText(t *testing.T) {
	extractor := NewFallbackExtractor(arbor.NewLogger())

	fields, err := extractor.Extract(context.Background(), "熟悉Python开发\n有数据分析经验者优先")
	require.NoError(t, err)

	assert.True(t, fields.Fallback)
	assert.Empty(t, fields.Responsibilities)
	require.Len(t, fields.Requirements, 2)
	assert.Contains(t, fields.Skills, "Python")
	assert.Contains(t, fields.Skills, "数据分析")
}

func TestFallbackExtractEmptyInput(t *testing.T) {
	extractor := NewFallbackExtractor(arbor.NewLogger())
	_, err := extractor.Extract(context.Background(), "   ")
	assert.Error(t, err)
}

func TestParseExtractionResponse(t *testing.T) {
	fenced := "```json\n{\"responsibilities\":[\"开发\"],\"requirements\":[\"本科\"],\"skills\":[\"Go\"],\"education\":\"本科\",\"experience\":\"3年\"}\n```"
	fields, err := parseExtractionResponse(fenced)
	require.NoError(t, err)
	assert.Equal(t, []string{"开发"}, fields.Responsibilities)
	assert.Equal(t, "3年", fields.Experience)
	assert.False(t, fields.Fallback)
}

func TestParseExtractionResponseRejectsGarbage(t *testing.T) {
	_, err := parseExtractionResponse("I could not process this posting.")
	assert.Error(t, err)

	_, err = parseExtractionResponse(`{"responsibilities":[],"requirements":[],"skills":[]}`)
	assert.Error(t, err)
}
