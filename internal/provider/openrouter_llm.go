package provider

import (
	"context"
	"fmt"

	"github.com/revrost/go-openrouter"

	"dubcore/internal/capability"
	"dubcore/internal/pipeerr"
)

// OpenRouterLLM implements capability.LLM over
// github.com/revrost/go-openrouter, grounded on
// tassa-yoniso-manasi-karoto/langkit's pkg/llms/openrouter.go
// OpenRouterProvider. A second, independent LLM backend so the Translator
// and Review Pass can run against either provider behind the same
// interface, mirroring the teacher's own multi-provider-per-role pattern.
type OpenRouterLLM struct {
	client *openrouter.Client
	model  string
}

func NewOpenRouterLLM(apiKey, model string) *OpenRouterLLM {
	if model == "" {
		model = "openrouter/auto"
	}
	return &OpenRouterLLM{client: openrouter.NewClient(apiKey), model: model}
}

func (p *OpenRouterLLM) Complete(ctx context.Context, req capability.LLMRequest) (string, error) {
	var messages []openrouter.ChatCompletionMessage
	for _, m := range req.Messages {
		role := openrouter.ChatMessageRoleUser
		switch m.Role {
		case "system":
			role = openrouter.ChatMessageRoleSystem
		case "assistant":
			role = openrouter.ChatMessageRoleAssistant
		}
		messages = append(messages, openrouter.ChatCompletionMessage{
			Role:    role,
			Content: openrouter.Content{Text: m.Content},
		})
	}

	chatReq := openrouter.ChatCompletionRequest{
		Model:    p.model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", pipeerr.New(pipeerr.Cancelled, "", "llm-openrouter", ctx.Err())
		}
		return "", fmt.Errorf("openrouter chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openrouter chat completion: empty choices")
	}
	return resp.Choices[0].Message.Content.Text, nil
}
