package azureai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
)

type staticCredential struct {
	token  string
	scopes []string
}

func (s *staticCredential) GetToken(_ context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	s.scopes = opts.Scopes
	return azcore.AccessToken{Token: s.token, ExpiresOn: time.Now().Add(time.Hour)}, nil
}

func completionsBody(reply string) string {
	return `{"id":"chatcmpl-1","choices":[{"finish_reason":"stop","message":{"role":"assistant","content":"` + reply + `"}}]}`
}

func TestCompleteRequestShape(t *testing.T) {
	var captured *http.Request
	var capturedBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r
		capturedBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionsBody("hi there")))
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "gpt-test", WithAPIKey("secret-key"))
	schema := json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`)
	resp, err := c.Complete(context.Background(),
		[]Message{NewSystemMessage("be brief"), NewUserMessage("hello")},
		[]ToolDef{{Name: "add_task", Description: "Add a todo", Parameters: schema}})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Reply() != "hi there" {
		t.Fatalf("unexpected reply %q", resp.Reply())
	}

	if captured.Method != http.MethodPost {
		t.Fatalf("unexpected method %s", captured.Method)
	}
	if captured.URL.Path != "/openai/deployments/gpt-test/chat/completions" {
		t.Fatalf("unexpected path %q", captured.URL.Path)
	}
	if got := captured.URL.Query().Get("api-version"); got != defaultAPIVersion {
		t.Fatalf("unexpected api-version %q", got)
	}
	if got := captured.Header.Get("api-key"); got != "secret-key" {
		t.Fatalf("unexpected api-key header %q", got)
	}

	var sent chatRequest
	if err := json.Unmarshal(capturedBody, &sent); err != nil {
		t.Fatalf("decode sent body: %v", err)
	}
	if len(sent.Messages) != 2 || sent.Messages[0].Role != "system" || sent.Messages[1].Role != "user" {
		t.Fatalf("unexpected messages: %#v", sent.Messages)
	}
	if len(sent.Tools) != 1 || sent.Tools[0].Type != "function" || sent.Tools[0].Function.Name != "add_task" {
		t.Fatalf("unexpected tools: %#v", sent.Tools)
	}
	if sent.ToolChoice != "auto" {
		t.Fatalf("unexpected tool_choice %q", sent.ToolChoice)
	}
}

func TestCompleteWithoutToolsOmitsToolChoice(t *testing.T) {
	var capturedBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(completionsBody("ok")))
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "gpt-test", WithAPIKey("k"))
	if _, err := c.Complete(context.Background(), []Message{NewUserMessage("hi")}, nil); err != nil {
		t.Fatalf("complete: %v", err)
	}

	var sent map[string]json.RawMessage
	if err := json.Unmarshal(capturedBody, &sent); err != nil {
		t.Fatalf("decode sent body: %v", err)
	}
	for _, key := range []string{"tools", "tool_choice"} {
		if _, present := sent[key]; present {
			t.Fatalf("expected %q omitted when no tools are passed", key)
		}
	}
}

func TestCompleteAPIVersionOverride(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query().Get("api-version")
		_, _ = w.Write([]byte(completionsBody("ok")))
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "gpt-test", WithAPIKey("k"), WithAPIVersion("2024-06-01"))
	if _, err := c.Complete(context.Background(), []Message{NewUserMessage("hi")}, nil); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != "2024-06-01" {
		t.Fatalf("unexpected api-version %q", got)
	}
}

func TestCompleteBearerFromCredential(t *testing.T) {
	var authHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(completionsBody("ok")))
	}))
	t.Cleanup(srv.Close)

	cred := &staticCredential{token: "aad-token"}
	c := New(srv.URL, "gpt-test", WithCredential(cred))
	if _, err := c.Complete(context.Background(), []Message{NewUserMessage("hi")}, nil); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if authHeader != "Bearer aad-token" {
		t.Fatalf("unexpected authorization header %q", authHeader)
	}
	if len(cred.scopes) != 1 || cred.scopes[0] != tokenScope {
		t.Fatalf("unexpected token scopes %#v", cred.scopes)
	}
}

func TestCompleteParsesToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-2",
			"choices": [{
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "delete_task", "arguments": "{\"task\":\"old one\"}"}
					}]
				}
			}]
		}`))
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "gpt-test", WithAPIKey("k"))
	resp, err := c.Complete(context.Background(), []Message{NewUserMessage("remove the old one")}, nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	calls := resp.RequestedToolCalls()
	if len(calls) != 1 {
		t.Fatalf("expected one tool call, got %#v", calls)
	}
	if calls[0].Function.Name != "delete_task" || calls[0].Function.Arguments != `{"task":"old one"}` {
		t.Fatalf("unexpected tool call: %#v", calls[0])
	}
}

func TestCompleteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","code":"429"}}`))
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "gpt-test", WithAPIKey("k"))
	_, err := c.Complete(context.Background(), []Message{NewUserMessage("hi")}, nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests || apiErr.Message != "rate limited" {
		t.Fatalf("unexpected error detail: %#v", apiErr)
	}
}
