package provider

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"dubcore/internal/capability"
	"dubcore/internal/pipeerr"
)

// openAIChatClient mirrors alnah-go-transcript/internal/restructure's
// chatCompleter interface: *openai.Client implements this implicitly,
// allowing a mock in tests.
type openAIChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIChatLLM implements capability.LLM over OpenAI chat completions.
// Used as one backend for the Scrubber (C4), Translator (C6), and Review
// Pass (C7) — they all speak capability.LLM, so this one provider serves
// all three roles.
type OpenAIChatLLM struct {
	client openAIChatClient
	model  string
}

func NewOpenAIChatLLM(client *openai.Client, model string) *OpenAIChatLLM {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIChatLLM{client: client, model: model}
}

func (p *OpenAIChatLLM) Complete(ctx context.Context, req capability.LLMRequest) (string, error) {
	var messages []openai.ChatCompletionMessage
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: 0.3,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", pipeerr.New(pipeerr.Cancelled, "", "llm-openai", ctx.Err())
		}
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat completion: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}
