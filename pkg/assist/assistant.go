package assist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"

	"imgharvest/pkg/config"
	errs "imgharvest/pkg/errors"
	"imgharvest/pkg/logger"
)

const systemPrompt = `You extract structured data from web pages.
Return only a JSON value matching the requested shape. Do not wrap it in
markdown fences and do not add commentary.`

// ErrEmptyResponse is returned when the model answers with no content
var ErrEmptyResponse = errors.New("empty response from assistant")

// Assistant turns raw markup plus a schema description into structured JSON
type Assistant interface {
	Extract(ctx context.Context, rawHTML, schema string) (json.RawMessage, error)
}

// PromptFunc sends one prompt and returns the text of the first content block.
// jsonSchema is empty unless the caller passed a JSON schema document.
type PromptFunc func(system, user, jsonSchema, apiKey string, settings types.RequestSettings) (string, error)

// LLMAssistant implements Assistant on top of the Anthropic messages API
type LLMAssistant struct {
	apiKey    string
	cfg       config.AssistConfig
	prompt    PromptFunc
	converter *md.Converter
	logger    logger.Logger
}

// Option configures an LLMAssistant
type Option func(*LLMAssistant)

// WithPromptFunc replaces the API call, mostly for tests
func WithPromptFunc(fn PromptFunc) Option {
	return func(a *LLMAssistant) {
		a.prompt = fn
	}
}

// WithLogger sets the logger
func WithLogger(log logger.Logger) Option {
	return func(a *LLMAssistant) {
		a.logger = log
	}
}

// NewLLMAssistant creates an assistant. The API key must not be empty.
func NewLLMAssistant(apiKey string, cfg config.AssistConfig, opts ...Option) (*LLMAssistant, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("assist: API key is required")
	}

	a := &LLMAssistant{
		apiKey:    apiKey,
		cfg:       cfg,
		prompt:    anthropicPrompt,
		converter: md.NewConverter("", true, nil),
		logger:    logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Extract asks the model for data described by schema. The schema may be a
// plain-language description or a JSON schema document.
func (a *LLMAssistant) Extract(ctx context.Context, rawHTML, schema string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Canceled(err)
	}

	content, err := a.prepare(rawHTML)
	if err != nil {
		return nil, err
	}

	jsonSchema := ""
	if looksLikeJSON(schema) {
		jsonSchema = schema
	}
	user := fmt.Sprintf("Extract the following:\n%s\n\nPage content:\n%s", schema, content)

	settings := types.RequestSettings{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	}

	a.logger.DebugWithFields("Sending assist request", map[string]interface{}{
		"model":         settings.Model,
		"content_chars": len(content),
		"json_schema":   jsonSchema != "",
	})

	text, err := a.prompt(systemPrompt, user, jsonSchema, a.apiKey, settings)
	if err != nil {
		return nil, fmt.Errorf("assist request failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Canceled(err)
	}

	return parseResponse(text)
}

// prepare optionally converts markup to Markdown and trims it to the
// configured token budget
func (a *LLMAssistant) prepare(rawHTML string) (string, error) {
	content := rawHTML
	if a.cfg.Markdown {
		converted, err := a.converter.ConvertString(rawHTML)
		if err != nil {
			return "", errs.Parse("convert markup", err)
		}
		content = converted
	}
	return LimitTokens(content, a.cfg.ContentMaxTokens), nil
}

// LimitTokens cuts content to roughly maxTokens tokens at 4 characters per
// token. Zero or less means no limit.
func LimitTokens(content string, maxTokens int) string {
	if maxTokens <= 0 {
		return content
	}
	maxChars := maxTokens * 4
	if len(content) <= maxChars {
		return content
	}
	return content[:maxChars] + "..."
}

func parseResponse(text string) (json.RawMessage, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if text == "" {
		return nil, errs.Parse("decode assist response", ErrEmptyResponse)
	}
	if !json.Valid([]byte(text)) {
		return nil, errs.Parse("decode assist response", fmt.Errorf("response is not valid JSON"))
	}
	return json.RawMessage(text), nil
}

func looksLikeJSON(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{") && json.Valid([]byte(s))
}

func anthropicPrompt(system, user, jsonSchema, apiKey string, settings types.RequestSettings) (string, error) {
	response, err := anthropic.PromptWithSettings(system, user, jsonSchema, apiKey, settings)
	if err != nil {
		return "", err
	}
	if len(response.Content) == 0 {
		return "", ErrEmptyResponse
	}
	return response.Content[0].Text, nil
}
