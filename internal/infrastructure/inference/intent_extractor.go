package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"resty.dev/v3"

	"dispatch-server/services/dispatch-api/internal/domain/dispatch"
	"dispatch-server/services/dispatch-api/internal/domain/prompt"
	"dispatch-server/services/dispatch-api/internal/infrastructure/invoker"
)

// IntentExtractor interprets commands by calling a chat-completion backend
// through the invocation layer. It never talks to a fixed endpoint: the
// failover manager for the inference scope picks one per call.
type IntentExtractor struct {
	factory      *invoker.Factory
	scope        string
	model        string
	knownDevices []string
	log          zerolog.Logger
}

func NewIntentExtractor(factory *invoker.Factory, scope, model string, knownDevices []string, log zerolog.Logger) *IntentExtractor {
	return &IntentExtractor{
		factory:      factory,
		scope:        scope,
		model:        model,
		knownDevices: knownDevices,
		log:          log.With().Str("component", "intent-extractor").Logger(),
	}
}

// ExtractIntent runs one chat completion and parses the structured intent
// from the first choice.
func (e *IntentExtractor) ExtractIntent(ctx context.Context, text string) (*dispatch.IntentResult, error) {
	manager, err := e.factory.Manager(e.scope)
	if err != nil {
		return nil, err
	}

	request := openai.ChatCompletionRequest{
		Model:       e.model,
		Messages:    prompt.IntentMessages(text, e.knownDevices),
		Temperature: 0,
	}

	value, err := manager.Call(ctx, "chat.completion", func(ctx context.Context, client *resty.Client, endpoint invoker.EndpointConfig) (any, error) {
		var completion openai.ChatCompletionResponse
		resp, err := client.R().
			SetContext(ctx).
			SetBody(request).
			SetResult(&completion).
			Post("/chat/completions")
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("chat completion returned status %d", resp.StatusCode())
		}
		return &completion, nil
	})
	if err != nil {
		return nil, err
	}

	completion, ok := value.(*openai.ChatCompletionResponse)
	if !ok || len(completion.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	result, err := parseIntentPayload(completion.Choices[0].Message.Content)
	if err != nil {
		e.log.Warn().Err(err).Str("content", completion.Choices[0].Message.Content).Msg("unparseable intent payload")
		return &dispatch.IntentResult{Intent: dispatch.IntentUnknown}, nil
	}
	return result, nil
}

// parseIntentPayload decodes the model's JSON answer, tolerating markdown
// code fences around it.
func parseIntentPayload(content string) (*dispatch.IntentResult, error) {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var result dispatch.IntentResult
	if err := json.Unmarshal([]byte(trimmed), &result); err != nil {
		return nil, fmt.Errorf("decode intent payload: %w", err)
	}
	switch result.Intent {
	case dispatch.IntentGeocode, dispatch.IntentDeviceControl, dispatch.IntentAnswer:
	default:
		result.Intent = dispatch.IntentUnknown
	}
	return &result, nil
}
