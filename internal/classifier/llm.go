package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"agent-bridge/internal/models"
)

const llmSystemPrompt = "日本語指示を calendar/memo/unknown に分類し、suggested_payload をJSONで簡潔に返して。" +
	"時間あいまいは+09:00で30分。" +
	`出力は {"intent": "...", "suggested_payload": {...}} のJSONのみ。`

// LLMClassifier is the best-effort secondary path consulted when the
// rule pipeline returns unknown. Any failure is reported to the caller
// and never substitutes for the rule result.
type LLMClassifier struct {
	client      *openai.Client
	model       string
	temperature float32
	logger      *zap.Logger
}

func NewLLMClassifier(apiKey string, model string, logger *zap.Logger) *LLMClassifier {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &LLMClassifier{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: 0.1,
		logger:      logger,
	}
}

func (c *LLMClassifier) Classify(ctx context.Context, text string) (models.IntentResult, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: llmSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return models.IntentResult{}, fmt.Errorf("llm classification: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.IntentResult{}, fmt.Errorf("llm classification: empty response")
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	result, err := parseLLMResult(raw)
	if err != nil {
		c.logger.Warn("unparseable llm classification",
			zap.Error(err),
			zap.String("response", raw))
		return models.IntentResult{}, err
	}
	return result, nil
}

func parseLLMResult(raw string) (models.IntentResult, error) {
	var parsed struct {
		Intent  models.Intent   `json:"intent"`
		Payload json.RawMessage `json:"suggested_payload"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return models.IntentResult{}, fmt.Errorf("parse llm response: %w", err)
	}

	switch parsed.Intent {
	case models.IntentMemo:
		var p models.MemoPayload
		if err := json.Unmarshal(parsed.Payload, &p); err != nil {
			return models.IntentResult{}, fmt.Errorf("parse memo payload: %w", err)
		}
		return models.IntentResult{Intent: models.IntentMemo, SuggestedPayload: &p}, nil
	case models.IntentCalendar:
		var p models.CalendarPayload
		if err := json.Unmarshal(parsed.Payload, &p); err != nil {
			return models.IntentResult{}, fmt.Errorf("parse calendar payload: %w", err)
		}
		if p.Start.IsZero() || p.End.IsZero() {
			return models.IntentResult{}, fmt.Errorf("calendar payload is missing start or end")
		}
		return models.IntentResult{Intent: models.IntentCalendar, SuggestedPayload: &p}, nil
	default:
		return models.IntentResult{Intent: models.IntentUnknown}, nil
	}
}
