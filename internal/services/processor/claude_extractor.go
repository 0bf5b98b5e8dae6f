package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/seekworks/autoapply/internal/common"
	"github.com/seekworks/autoapply/internal/interfaces"
	"github.com/seekworks/autoapply/internal/models"
)

const extractionSystemPrompt = `You are a job posting analyzer. Extract structured fields from the job description the user provides.

Respond with ONLY a JSON object, no markdown fences, no commentary:
{
  "responsibilities": ["..."],
  "requirements": ["..."],
  "skills": ["..."],
  "education": "...",
  "experience": "..."
}

Rules:
- responsibilities: the duties of the role, one list item per duty
- requirements: the qualification requirements, one list item per requirement
- skills: concrete technologies, tools and languages mentioned anywhere
- education: the education requirement verbatim, or "" when not stated
- experience: the experience requirement verbatim (e.g. "3-5年"), or "" when not stated
- Keep the original language of the posting
- Use empty arrays or strings for missing sections, never invent content`

// ClaudeExtractor performs structured extraction over free-text job
// descriptions through the Anthropic API.
type ClaudeExtractor struct {
	config  *common.ClaudeConfig
	logger  arbor.ILogger
	client  anthropic.Client
	timeout time.Duration
}

// NewClaudeExtractor creates the model-backed extractor. The API key must
// already be resolved into the config.
func NewClaudeExtractor(config *common.ClaudeConfig, logger arbor.ILogger) (interfaces.StructuredExtractor, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required for structured extraction (set ANTHROPIC_API_KEY or claude.api_key)")
	}

	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid claude timeout '%s': %w", config.Timeout, err)
	}

	client := anthropic.NewClient(
		option.WithAPIKey(config.APIKey),
	)

	logger.Debug().
		Str("model", config.Model).
		Dur("timeout", timeout).
		Msg("Claude extractor initialized")

	return &ClaudeExtractor{
		config:  config,
		logger:  logger,
		client:  client,
		timeout: timeout,
	}, nil
}

// Extract sends the description to the model and parses the typed JSON
// contract. A response that is not valid JSON is an error; the caller
// decides whether to fall back.
func (e *ClaudeExtractor) Extract(ctx context.Context, rawText string) (*models.StructuredFields, error) {
	if strings.TrimSpace(rawText) == "" {
		return nil, fmt.Errorf("description is empty")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(e.config.Model),
		MaxTokens: int64(e.config.MaxTokens),
		System: []anthropic.TextBlockParam{
			{Text: extractionSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(rawText)),
		},
	}
	if e.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(e.config.Temperature))
	}

	started := time.Now()
	resp, err := e.client.Messages.New(timeoutCtx, params)
	if err != nil {
		return nil, fmt.Errorf("Claude API call failed: %w", err)
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			response.WriteString(block.Text)
		}
	}
	if response.Len() == 0 {
		return nil, fmt.Errorf("no response generated from Claude API")
	}

	fields, err := parseExtractionResponse(response.String())
	if err != nil {
		return nil, err
	}

	e.logger.Debug().
		Int("responsibilities", len(fields.Responsibilities)).
		Int("requirements", len(fields.Requirements)).
		Int("skills", len(fields.Skills)).
		Dur("duration", time.Since(started)).
		Msg("Structured extraction completed")

	return fields, nil
}

// parseExtractionResponse decodes the model's JSON contract, tolerating
// markdown fences around the object
func parseExtractionResponse(response string) (*models.StructuredFields, error) {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	// Tolerate prose before/after the object
	if start := strings.Index(cleaned, "{"); start > 0 {
		cleaned = cleaned[start:]
	}
	if end := strings.LastIndex(cleaned, "}"); end >= 0 && end < len(cleaned)-1 {
		cleaned = cleaned[:end+1]
	}

	var fields models.StructuredFields
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return nil, fmt.Errorf("model response is not valid extraction JSON: %w", err)
	}

	if len(fields.Responsibilities) == 0 && len(fields.Requirements) == 0 && len(fields.Skills) == 0 {
		return nil, fmt.Errorf("model response contains no extracted content")
	}

	return &fields, nil
}
