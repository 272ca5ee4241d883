package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"slices"

	"github.com/nfarrell/chat-stream-ui/internal/models"
	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAI provides an implementation of the Streamer interface for interacting
// with OpenAI's language models, or any OpenAI-compatible endpoint via a
// custom base URL.
type OpenAI struct {
	model        string
	systemPrompt string
	titlePrompt  string

	client *goopenai.Client

	logger *slog.Logger
}

// titleMaxTokens caps the non-streaming title completion; a 3-5 word title
// never needs more.
const titleMaxTokens = 20

// NewOpenAI creates a new OpenAI instance with the specified API key, base
// URL (empty for the default endpoint), model name, and prompts.
func NewOpenAI(apiKey, baseURL, model, systemPrompt, titlePrompt string, logger *slog.Logger) OpenAI {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return OpenAI{
		model:        model,
		systemPrompt: systemPrompt,
		titlePrompt:  titlePrompt,
		client:       goopenai.NewClientWithConfig(cfg),
		logger:       logger.With(slog.String("module", "openai")),
	}
}

func openAIMessages(messages []models.Message) []goopenai.ChatCompletionMessage {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return msgs
}

// Chat streams a completion for the given history, yielding incremental text
// deltas. The stream ends by exhaustion; failures are yielded as errors. A
// chunk without a content delta yields an empty string.
func (o OpenAI) Chat(ctx context.Context, messages []models.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		msgs := slices.Insert(openAIMessages(messages), 0, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: o.systemPrompt,
		})

		req := goopenai.ChatCompletionRequest{
			Model:    o.model,
			Messages: msgs,
			Stream:   true,
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		stream, err := o.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			yield("", fmt.Errorf("error sending request: %w", err))
			return
		}
		defer stream.Close()

		for {
			response, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				if errors.Is(err, context.Canceled) {
					return
				}
				yield("", fmt.Errorf("error receiving response: %w", err))
				return
			}

			if len(response.Choices) == 0 {
				continue
			}

			if !yield(response.Choices[0].Delta.Content, nil) {
				return
			}
		}
	}
}

// GenerateTitle asks the model for a short conversation title based on the
// user's first message, without streaming.
func (o OpenAI) GenerateTitle(ctx context.Context, message string) (string, error) {
	req := goopenai.ChatCompletionRequest{
		Model: o.model,
		Messages: []goopenai.ChatCompletionMessage{
			{
				Role:    goopenai.ChatMessageRoleSystem,
				Content: o.titlePrompt,
			},
			{
				Role:    goopenai.ChatMessageRoleUser,
				Content: message,
			},
		},
		MaxTokens: titleMaxTokens,
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no choices found")
	}

	return resp.Choices[0].Message.Content, nil
}
