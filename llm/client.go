// Package llm provides a client for an OpenAI-compatible chat-completions
// endpoint, with incremental decoding of streamed responses.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/xiaot623/shopchat/domain"
)

// ErrCompletion wraps transport and provider failures during a completion call.
var ErrCompletion = errors.New("completion error")

// ErrPromptConfig indicates the default system prompt key is unresolvable.
// This is a configuration error, not a per-request one.
var ErrPromptConfig = errors.New("default system prompt not configured")

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	baseURL          string
	apiKey           string
	model            string
	maxTokens        int
	prompts          map[string]string
	defaultPromptKey string
	httpClient       *http.Client
	logger           *slog.Logger
}

// NewClient creates a completion client. prompts maps system-prompt keys to
// prompt text; defaultPromptKey must resolve or every call fails with
// ErrPromptConfig.
func NewClient(baseURL, apiKey, model string, maxTokens int, prompts map[string]string, defaultPromptKey string, timeout time.Duration, logger *slog.Logger) *Client {
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	return &Client{
		baseURL:          strings.TrimSuffix(baseURL, "/"),
		apiKey:           apiKey,
		model:            model,
		maxTokens:        maxTokens,
		prompts:          prompts,
		defaultPromptKey: defaultPromptKey,
		httpClient:       &http.Client{Timeout: timeout},
		logger:           logger,
	}
}

// ChatMessage represents a chat message on the wire.
type ChatMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ChatCompletionRequest represents the outbound chat completion request.
type ChatCompletionRequest struct {
	Model     string        `json:"model"`
	Messages  []ChatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	Stream    bool          `json:"stream,omitempty"`
	Tools     []Tool        `json:"tools,omitempty"`
}

// Tool represents a function-calling tool definition.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction represents a function definition.
type ToolFunction struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

// ToolCall represents an assembled tool call from the assistant. Arguments is
// the raw JSON argument string as streamed by the provider.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction represents the function in a tool call.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// toolCallDelta is one streamed fragment of a tool call. Index identifies the
// logical call; ID may only be present on the first fragment.
type toolCallDelta struct {
	Index    int    `json:"index"`
	ID       string `json:"id,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function"`
}

// streamDelta is the delta object of a streamed choice.
type streamDelta struct {
	Role      string          `json:"role,omitempty"`
	Content   string          `json:"content,omitempty"`
	ToolCalls []toolCallDelta `json:"tool_calls,omitempty"`
}

// streamChunk is one SSE chunk from the provider.
type streamChunk struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int          `json:"index"`
		Delta        *streamDelta `json:"delta,omitempty"`
		FinishReason string       `json:"finish_reason,omitempty"`
	} `json:"choices"`
}

// errorResponse represents a provider error body.
type errorResponse struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Handlers receives decoded pieces of a streamed conversation. All fields are
// optional.
type Handlers struct {
	// OnText is invoked synchronously for each text fragment, in arrival order.
	OnText func(text string)
	// OnToolUse is invoked once per assembled tool call, after the stream has
	// completed, sequentially in index order. It must finish before the next
	// call is dispatched.
	OnToolUse func(call domain.ToolCall)
	// OnMessage is invoked exactly once with the final assistant message,
	// after all tool calls have been processed and before StreamConversation
	// returns.
	OnMessage func(msg *ChatMessage)
}

// StreamRequest carries one turn's context to the provider.
type StreamRequest struct {
	History   []domain.Message
	PromptKey string
	Tools     []domain.ToolDeclaration
}

// StreamConversation sends the full history plus system prompt and tool
// catalog, decoding the incremental response. Text deltas are forwarded as
// they arrive; tool-call deltas are accumulated by index and only finalized
// once the stream completes, because the argument JSON is unparseable until
// then. Tool calls with malformed argument JSON are logged and skipped.
func (c *Client) StreamConversation(ctx context.Context, req StreamRequest, handlers Handlers) (*ChatMessage, error) {
	system, err := c.systemPrompt(req.PromptKey)
	if err != nil {
		return nil, err
	}

	messages := make([]ChatMessage, 0, len(req.History)+1)
	messages = append(messages, ChatMessage{Role: string(domain.RoleSystem), Content: system})
	for _, m := range req.History {
		messages = append(messages, ChatMessage{Role: string(m.Role), Content: m.Content})
	}

	apiReq := &ChatCompletionRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: c.maxTokens,
		Stream:    true,
	}
	if len(req.Tools) > 0 {
		apiReq.Tools = convertTools(req.Tools)
	}

	var fullContent strings.Builder
	var calls []*ToolCall // index-keyed, lazily grown

	err = c.stream(ctx, apiReq, func(chunk *streamChunk) {
		if len(chunk.Choices) == 0 {
			return
		}
		delta := chunk.Choices[0].Delta
		if delta == nil {
			return
		}

		if delta.Content != "" {
			fullContent.WriteString(delta.Content)
			if handlers.OnText != nil {
				handlers.OnText(delta.Content)
			}
		}

		for _, d := range delta.ToolCalls {
			idx := d.Index
			if idx < 0 {
				continue
			}
			for len(calls) <= idx {
				calls = append(calls, nil)
			}
			if calls[idx] == nil {
				calls[idx] = &ToolCall{Type: "function"}
			}
			if d.ID != "" {
				calls[idx].ID = d.ID
			}
			calls[idx].Function.Name += d.Function.Name
			calls[idx].Function.Arguments += d.Function.Arguments
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompletion, err)
	}

	// Finalize buffered tool calls in index order, one at a time.
	var completed []ToolCall
	for _, call := range calls {
		if call == nil {
			continue
		}
		completed = append(completed, *call)
		if handlers.OnToolUse == nil {
			continue
		}
		var args map[string]any
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			c.logger.Warn("dropping tool call with malformed arguments",
				"tool", call.Function.Name, "error", err)
			continue
		}
		handlers.OnToolUse(domain.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: args,
		})
	}

	final := &ChatMessage{
		Role:      string(domain.RoleAssistant),
		Content:   fullContent.String(),
		ToolCalls: completed,
	}
	if handlers.OnMessage != nil {
		handlers.OnMessage(final)
	}
	return final, nil
}

// stream performs the HTTP request and decodes the SSE stream chunk by chunk.
func (c *Client) stream(ctx context.Context, req *ChatCompletionRequest, onChunk func(*streamChunk)) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		var errResp errorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != nil {
			return fmt.Errorf("provider error [%d]: %s (type: %s)", resp.StatusCode, errResp.Error.Message, errResp.Error.Type)
		}
		return fmt.Errorf("provider error [%d]: %s", resp.StatusCode, string(respBody))
	}

	reader := bufio.NewReader(resp.Body)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("failed to read stream: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return nil
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Skip malformed chunks
			continue
		}
		onChunk(&chunk)
	}
}

// systemPrompt resolves a prompt key, falling back to the default key.
func (c *Client) systemPrompt(key string) (string, error) {
	if prompt, ok := c.prompts[key]; ok && prompt != "" {
		return prompt, nil
	}
	if prompt, ok := c.prompts[c.defaultPromptKey]; ok && prompt != "" {
		return prompt, nil
	}
	return "", fmt.Errorf("%w: key %q", ErrPromptConfig, c.defaultPromptKey)
}

// convertTools maps catalog declarations to the provider's function schema.
func convertTools(tools []domain.ToolDeclaration) []Tool {
	out := make([]Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, Tool{
			Type: "function",
			Function: ToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}
	return out
}
