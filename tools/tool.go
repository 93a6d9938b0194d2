// Package tools exposes the todo operations an external language-model
// orchestrator may invoke by name.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Result is the tagged outcome of a tool invocation. ShowWidget tells the
// caller to emit the rebuilt todo widget after its turn completes; the reply
// text travels back to the model.
type Result struct {
	Reply      string `json:"reply"`
	ShowWidget bool   `json:"showWidget,omitempty"`
}

// Tool is a named operation invokable with JSON arguments.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON Schema describing the tool's input.
	Parameters() json.RawMessage
	Invoke(ctx context.Context, args json.RawMessage) (Result, error)
}

// FuncTool is a Tool backed by a plain function.
type FuncTool struct {
	name        string
	description string
	parameters  json.RawMessage
	fn          func(ctx context.Context, args json.RawMessage) (Result, error)
}

// NewFuncTool creates a FuncTool from a schema and handler.
func NewFuncTool(name, description string, parameters json.RawMessage, fn func(ctx context.Context, args json.RawMessage) (Result, error)) *FuncTool {
	return &FuncTool{name: name, description: description, parameters: parameters, fn: fn}
}

func (t *FuncTool) Name() string                { return t.name }
func (t *FuncTool) Description() string         { return t.description }
func (t *FuncTool) Parameters() json.RawMessage { return t.parameters }

// Invoke calls the tool's backing function.
func (t *FuncTool) Invoke(ctx context.Context, args json.RawMessage) (Result, error) {
	return t.fn(ctx, args)
}

// Spec describes a tool for manifest listings and chat-completions requests.
type Spec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Registry holds the registered tools in registration order.
type Registry struct {
	order []string
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Registering a duplicate name panics: the tool set is
// fixed at startup and a collision is a programming error.
func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Name()]; exists {
		panic(fmt.Sprintf("tools: duplicate tool %q", t.Name()))
	}
	r.order = append(r.order, t.Name())
	r.tools[t.Name()] = t
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Specs returns the manifest of registered tools in registration order.
func (r *Registry) Specs() []Spec {
	specs := make([]Spec, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		specs = append(specs, Spec{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()})
	}
	return specs
}
