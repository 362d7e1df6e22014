package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Vovarama1992/wa-ai-bridge/internal/logutil"
)

// ErrMalformedReply is returned when the model answers with something other
// than the agreed JSON object.
var ErrMalformedReply = errors.New("ai: malformed reply")

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string        // empty = api.openai.com
	Timeout time.Duration // whole request, 0 = defaultTimeout
}

const defaultTimeout = 30 * time.Second

type OpenAIClient struct {
	client *openai.Client
	model  string
	log    *slog.Logger
}

func NewOpenAIClient(cfg OpenAIConfig, logger *slog.Logger) *OpenAIClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		log:    logger.With("component", "ai"),
	}
}

// ЖЁСТКИЙ форматный guard, ПОСЛЕДНИМ system
const jsonGuard = `
Отвечай ТОЛЬКО валидным JSON.
Никакого текста вне JSON.
Формат строго:
{"reply":"строка","next_stage":"строка","lead_type":"candidate|agency|unknown","need_link":false,"memory_update":"строка"}
reply — текст сообщения собеседнику.
next_stage — следующий этап диалога (можно опустить, если этап не меняется).
lead_type — кто собеседник: candidate, agency или unknown.
need_link — true, если к ответу нужно приложить ссылку на анкету/регистрацию.
memory_update — короткий факт о собеседнике для долгой памяти (можно опустить).
Если нарушишь формат — ответ будет отброшен.
`

type userInput struct {
	UserText string `json:"user_text"`
	Stage    string `json:"stage"`
	Memory   Memory `json:"memory"`
}

func (c *OpenAIClient) Generate(ctx context.Context, req Request) (Reply, error) {
	if req.Memory.Recent == nil {
		req.Memory.Recent = []Turn{}
	}
	input, err := json.Marshal(userInput{
		UserText: req.UserText,
		Stage:    req.Stage,
		Memory:   req.Memory,
	})
	if err != nil {
		return Reply{}, err
	}

	msgs := make([]openai.ChatCompletionMessage, 0, 3)
	if strings.TrimSpace(req.SystemPrompt) != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	msgs = append(msgs,
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: string(input)},
		// форматный guard, последним system
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: jsonGuard},
	)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		c.log.Error("completion failed", "err", err)
		return Reply{}, fmt.Errorf("ai: completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		c.log.Warn("empty choices")
		return Reply{}, nil
	}

	raw := resp.Choices[0].Message.Content
	c.log.Debug("raw completion", "content", logutil.Truncate(raw, 500))

	return parseReply(raw)
}

func parseReply(raw string) (Reply, error) {
	raw = strings.TrimSpace(raw)
	// some models still wrap JSON in a markdown fence
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	if raw == "" {
		return Reply{}, nil
	}

	var out Reply
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	out.NextStage = strings.TrimSpace(out.NextStage)
	out.LeadType = strings.TrimSpace(out.LeadType)
	out.MemoryUpdate = strings.TrimSpace(out.MemoryUpdate)
	return out, nil
}
