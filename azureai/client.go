// Package azureai is a thin chat-completions client for an Azure OpenAI
// deployment. Authentication is either an api-key header or an Azure AD
// bearer token acquired through an azcore.TokenCredential chain, which
// handles caching and refresh.
package azureai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
)

const (
	defaultAPIVersion = "2025-01-01-preview"
	tokenScope        = "https://cognitiveservices.azure.com/.default"
)

// Client calls the chat-completions API of a single deployment.
type Client struct {
	httpClient *http.Client
	endpoint   string
	deployment string
	apiVersion string
	apiKey     string
	credential azcore.TokenCredential
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey selects api-key authentication.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithCredential selects Azure AD token authentication.
func WithCredential(cred azcore.TokenCredential) Option {
	return func(c *Client) { c.credential = cred }
}

// WithAPIVersion overrides the default api-version query parameter.
func WithAPIVersion(v string) Option {
	return func(c *Client) { c.apiVersion = v }
}

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a Client for the given endpoint and deployment.
func New(endpoint, deployment string, opts ...Option) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		endpoint:   endpoint,
		deployment: deployment,
		apiVersion: defaultAPIVersion,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Message is a single chat message.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// NewSystemMessage creates a system-role message.
func NewSystemMessage(text string) Message { return Message{Role: "system", Content: text} }

// NewUserMessage creates a user-role message.
func NewUserMessage(text string) Message { return Message{Role: "user", Content: text} }

// ToolDef declares a callable function to the model.
type ToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatRequest struct {
	Messages   []Message  `json:"messages"`
	Tools      []toolWire `json:"tools,omitempty"`
	ToolChoice string     `json:"tool_choice,omitempty"`
}

type toolWire struct {
	Type     string  `json:"type"`
	Function ToolDef `json:"function"`
}

// ChatResponse is the parsed completions response.
type ChatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		FinishReason string  `json:"finish_reason"`
		Message      Message `json:"message"`
	} `json:"choices"`
}

// Reply returns the assistant text of the first choice.
func (r *ChatResponse) Reply() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// RequestedToolCalls returns the tool calls of the first choice, if any.
func (r *ChatResponse) RequestedToolCalls() []ToolCall {
	if len(r.Choices) == 0 {
		return nil
	}
	return r.Choices[0].Message.ToolCalls
}

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("azure openai: status %d: %s", e.StatusCode, e.Message)
}

// Complete sends a single chat-completions round trip. The orchestration loop
// around it (feeding tool results back to the model) is the caller's concern.
func (c *Client) Complete(ctx context.Context, messages []Message, tools []ToolDef) (*ChatResponse, error) {
	req := chatRequest{Messages: messages}
	if len(tools) > 0 {
		req.Tools = make([]toolWire, 0, len(tools))
		for _, t := range tools {
			req.Tools = append(req.Tools, toolWire{Type: "function", Function: t})
		}
		req.ToolChoice = "auto"
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.endpoint, c.deployment, c.apiVersion)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	if c.credential != nil {
		token, err := c.credential.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{tokenScope}})
		if err != nil {
			return nil, fmt.Errorf("get azure token: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token.Token)
	} else {
		httpReq.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, parseErrorResponse(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	var parsed ChatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &parsed, nil
}

func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var apiErr struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &apiErr)

	msg := apiErr.Error.Message
	if msg == "" {
		msg = string(body)
	}
	return &APIError{StatusCode: resp.StatusCode, Code: apiErr.Error.Code, Message: msg}
}
