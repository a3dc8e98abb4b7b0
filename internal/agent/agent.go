// Package agent routes transcribed queries to the chat completion endpoint.
// The model may call the camera tool when a query needs visual grounding;
// the tool result is fed back for the final answer in a single round.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const visionToolName = "analyze_camera_image"

const systemPrompt = `You are Dora, a friendly personal voice assistant.
Your replies are spoken aloud, so keep them short, conversational and free of
markdown or lists. When the user asks about something they are showing you or
something in the room ("what do you see", "what am I holding"), call the
analyze_camera_image tool instead of guessing.`

// VisionTool answers a question about the current webcam view.
type VisionTool interface {
	AnswerAboutImage(ctx context.Context, query string) (string, error)
}

type Agent struct {
	client openai.Client
	model  string
	vision VisionTool
}

func New(apiKey, model string, vision VisionTool, opts ...option.RequestOption) *Agent {
	opts = append(opts, option.WithAPIKey(apiKey))
	return &Agent{
		client: openai.NewClient(opts...),
		model:  model,
		vision: vision,
	}
}

// Ask returns the assistant's reply for one user query.
func (a *Agent) Ask(ctx context.Context, query string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(query),
		},
		Tools: []openai.ChatCompletionToolUnionParam{
			openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
				Name:        visionToolName,
				Description: openai.String("Capture a webcam frame and answer a question about what is visible."),
				Parameters: openai.FunctionParameters{
					"type": "object",
					"properties": map[string]any{
						"query": map[string]any{
							"type":        "string",
							"description": "The visual question to answer about the camera image.",
						},
					},
					"required": []string{"query"},
				},
			}),
		},
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("agent: no choices in response")
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) == 0 {
		return msg.Content, nil
	}

	params.Messages = append(params.Messages, msg.ToParam())
	for _, call := range msg.ToolCalls {
		params.Messages = append(params.Messages, a.runTool(ctx, query, call))
	}

	final, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion after tool call: %w", err)
	}
	if len(final.Choices) == 0 {
		return "", errors.New("agent: no choices in final response")
	}
	return final.Choices[0].Message.Content, nil
}

func (a *Agent) runTool(ctx context.Context, query string, call openai.ChatCompletionMessageToolCallUnion) openai.ChatCompletionMessageParamUnion {
	if call.Function.Name != visionToolName {
		log.Warn("model requested unknown tool", "tool", call.Function.Name)
		return openai.ToolMessage("unknown tool", call.ID)
	}

	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil || args.Query == "" {
		args.Query = query
	}

	log.Info("capturing camera image for query", "query", args.Query)
	answer, err := a.vision.AnswerAboutImage(ctx, args.Query)
	if err != nil {
		log.Error("vision tool failed", "err", err)
		answer = "The camera is not available right now."
	}
	return openai.ToolMessage(answer, call.ID)
}
