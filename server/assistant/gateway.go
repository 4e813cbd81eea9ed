// Package assistant calls the conversational model on behalf of a trip chat.
// The gateway is stateless per call: it receives a transcript and the
// declared tool set, and returns content and/or proposed actions.
package assistant

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/yonder-travel/yonder/plugin/textextract"
	cerr "github.com/yonder-travel/yonder/server/internal/errors"
	"github.com/yonder-travel/yonder/store"
)

// TranscriptMessage is one turn handed to the model.
type TranscriptMessage struct {
	Role        string // user, assistant
	Content     string
	Attachments []store.Attachment
}

// ProposedCall is a tool invocation suggested by the model.
type ProposedCall struct {
	Name string
	Args json.RawMessage
}

// GenerateRequest carries everything for one gateway call.
type GenerateRequest struct {
	UserID      string
	TripContext string // JSON trip context block, may be empty
	Transcript  []TranscriptMessage
	Tools       []ToolSchema
}

// GenerateResponse is the model's reply: natural-language content, proposed
// actions, or both.
type GenerateResponse struct {
	Content       string
	ProposedCalls []ProposedCall
}

// Gateway generates assistant replies.
type Gateway interface {
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
}

// Config holds the gateway configuration.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	MaxTurns   int
	MaxRetries int
	Timeout    time.Duration
	UserRPS    float64
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://api.openai.com/v1",
		Model:      "gpt-4o-mini",
		MaxTurns:   20,
		MaxRetries: 3,
		Timeout:    45 * time.Second,
		UserRPS:    0.5,
	}
}

const systemPrompt = "You are Yonder's trip-planning assistant. Use the trip context to answer " +
	"questions, reference actual plans, and extract bookings from documents the user shares. " +
	"When the user asks to add something to the trip, propose the matching tool call instead of " +
	"describing it. Keep answers concise and grounded in the provided data."

// OpenAIGateway implements Gateway over the chat completions API.
type OpenAIGateway struct {
	client    *openai.Client
	config    *Config
	extractor *textextract.Extractor

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewOpenAIGateway creates a gateway from config.
func NewOpenAIGateway(cfg *Config) *OpenAIGateway {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.MaxTurns == 0 {
		cfg.MaxTurns = 20
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &OpenAIGateway{
		client:   openai.NewClientWithConfig(clientConfig),
		config:   cfg,
		limiters: make(map[string]*rate.Limiter),
	}
}

// SetExtractor enables text extraction for document attachments. Without it,
// only image attachments reach the model.
func (g *OpenAIGateway) SetExtractor(extractor *textextract.Extractor) {
	g.extractor = extractor
}

// Generate performs one model call with retry and per-user rate limiting.
func (g *OpenAIGateway) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	if !g.allow(req.UserID) {
		return nil, cerr.RateLimitExceeded("assistant rate limit exceeded")
	}

	messages := g.buildMessages(ctx, req)
	tools := buildTools(req.Tools)

	var resp openai.ChatCompletionResponse
	err := g.doWithRetry(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()

		var err error
		resp, err = g.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model:    g.config.Model,
			Messages: messages,
			Tools:    tools,
		})
		return err
	})
	if err != nil {
		return nil, cerr.GatewayFailed("assistant call failed", err)
	}
	if len(resp.Choices) == 0 {
		return nil, cerr.GatewayFailed("assistant returned no choices", nil)
	}

	choice := resp.Choices[0].Message
	result := &GenerateResponse{Content: choice.Content}
	for _, call := range choice.ToolCalls {
		result.ProposedCalls = append(result.ProposedCalls, ProposedCall{
			Name: call.Function.Name,
			Args: json.RawMessage(call.Function.Arguments),
		})
	}

	if result.Content == "" && len(result.ProposedCalls) == 0 {
		return nil, cerr.GatewayFailed("assistant returned an empty message", nil)
	}
	return result, nil
}

func (g *OpenAIGateway) buildMessages(ctx context.Context, req *GenerateRequest) []openai.ChatCompletionMessage {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if req.TripContext != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: "Latest trip context:\n" + req.TripContext,
		})
	}

	for _, turn := range truncateTranscript(req.Transcript, g.config.MaxTurns) {
		if turn.Content == "" && len(turn.Attachments) == 0 {
			continue
		}
		role := turn.Role
		if role != openai.ChatMessageRoleUser && role != openai.ChatMessageRoleAssistant {
			continue
		}

		if len(turn.Attachments) == 0 {
			messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
			continue
		}

		// Attachments ride along as inlined multimodal parts.
		parts := []openai.ChatMessagePart{}
		if turn.Content != "" {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: turn.Content,
			})
		}
		for _, att := range turn.Attachments {
			if part, ok := g.attachmentPart(ctx, att); ok {
				parts = append(parts, part)
			}
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, MultiContent: parts})
	}

	return messages
}

// attachmentPart converts one attachment into a message part. Images inline
// as data URLs; documents go through the text extractor when one is wired.
func (g *OpenAIGateway) attachmentPart(ctx context.Context, att store.Attachment) (openai.ChatMessagePart, bool) {
	if strings.HasPrefix(att.MimeType, "image/") {
		return openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    fmt.Sprintf("data:%s;base64,%s", att.MimeType, base64.StdEncoding.EncodeToString(att.Data)),
				Detail: openai.ImageURLDetailAuto,
			},
		}, true
	}

	if g.extractor != nil && textextract.IsSupported(att.MimeType) {
		text, err := g.extractor.Extract(ctx, att.MimeType, att.Data)
		if err != nil {
			slog.Warn("failed to extract attachment text",
				slog.String("name", att.Name),
				slog.String("mime_type", att.MimeType),
				slog.String("error", err.Error()))
			return openai.ChatMessagePart{}, false
		}
		return openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: fmt.Sprintf("Attached document %q:\n%s", att.Name, text),
		}, true
	}

	slog.Debug("skipping unsupported attachment",
		slog.String("name", att.Name),
		slog.String("mime_type", att.MimeType))
	return openai.ChatMessagePart{}, false
}

// truncateTranscript keeps the most recent turns within the limit.
func truncateTranscript(transcript []TranscriptMessage, limit int) []TranscriptMessage {
	if len(transcript) <= limit {
		return transcript
	}
	return transcript[len(transcript)-limit:]
}

func buildTools(schemas []ToolSchema) []openai.Tool {
	tools := make([]openai.Tool, 0, len(schemas))
	for _, schema := range schemas {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        string(schema.Name),
				Description: schema.Description,
				Parameters:  schema.Parameters,
			},
		})
	}
	return tools
}

func (g *OpenAIGateway) allow(userID string) bool {
	if g.config.UserRPS <= 0 {
		return true
	}
	g.mu.Lock()
	limiter, ok := g.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(g.config.UserRPS), 3)
		g.limiters[userID] = limiter
	}
	g.mu.Unlock()
	return limiter.Allow()
}

// doWithRetry executes a function with exponential backoff retry.
func (g *OpenAIGateway) doWithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < g.config.MaxRetries; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			if attempt < g.config.MaxRetries-1 {
				waitTime := time.Duration(math.Pow(2, float64(attempt))) * time.Second
				slog.Debug("assistant request failed, retrying",
					"attempt", attempt+1,
					"wait_time", waitTime,
					"error", err)
				select {
				case <-time.After(waitTime):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	return lastErr
}
