package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"learnwithavi-server/config"
)

// CompletionClient is the narrow boundary to the language model. It returns
// the raw JSON arguments of the forced submit_questions tool call; parsing
// and validation live with the caller so this layer stays transport-only.
type CompletionClient interface {
	CreateQuestionBatch(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// OpenAIClient generates question batches with a chat-completion tool call.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAIClient(cfg config.OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing OpenAI API key")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIClient{
		client:  openai.NewClient(cfg.APIKey),
		model:   cfg.Model,
		timeout: timeout,
	}, nil
}

// questionBatchSchema is the parameter schema of the submit_questions tool.
// Forcing a tool call makes the model return typed JSON instead of prose.
var questionBatchSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"questions": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"text": map[string]interface{}{
						"type":        "string",
						"description": "The question text",
					},
					"options": map[string]interface{}{
						"type": "array",
						"items": map[string]interface{}{
							"type": "string",
						},
						"description": "Array of exactly 4 multiple choice options",
					},
					"correct_answer": map[string]interface{}{
						"type":        "integer",
						"description": "0-based index of the correct option",
					},
					"explanation": map[string]interface{}{
						"type":        "string",
						"description": "Why the correct answer is correct",
					},
					"topic": map[string]interface{}{
						"type":        "string",
						"description": "Short topic label the question belongs to",
					},
					"bloom_level": map[string]interface{}{
						"type":        "integer",
						"description": "Bloom taxonomy level 1-4",
					},
					"start_time": map[string]interface{}{
						"type":        "integer",
						"description": "Transcript start second the question is grounded in",
					},
					"end_time": map[string]interface{}{
						"type":        "integer",
						"description": "Transcript end second the question is grounded in",
					},
				},
				"required": []string{"text", "options", "correct_answer", "explanation", "topic", "bloom_level"},
			},
		},
	},
	"required": []string{"questions"},
}

// CreateQuestionBatch invokes the model once and returns the tool-call
// argument JSON. The error text may contain upstream detail; callers must
// sanitize before exposing anything to a client.
func (c *OpenAIClient) CreateQuestionBatch(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: userPrompt,
				},
			},
			Tools: []openai.Tool{
				{
					Type: openai.ToolTypeFunction,
					Function: &openai.FunctionDefinition{
						Name:        "submit_questions",
						Description: "Submit generated quiz questions",
						Parameters:  questionBatchSchema,
					},
				},
			},
			ToolChoice: openai.ToolChoice{
				Type: openai.ToolTypeFunction,
				Function: openai.ToolFunction{
					Name: "submit_questions",
				},
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in model response")
	}
	choice := resp.Choices[0]
	if len(choice.Message.ToolCalls) == 0 {
		return "", fmt.Errorf("no tool calls in model response")
	}
	toolCall := choice.Message.ToolCalls[0]
	if toolCall.Function.Name != "submit_questions" {
		return "", fmt.Errorf("unexpected tool call: %s", toolCall.Function.Name)
	}
	return toolCall.Function.Arguments, nil
}
