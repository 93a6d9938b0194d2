package api

import (
	"context"

	log "github.com/sirupsen/logrus"

	"todokit/azureai"
	"todokit/domain"
	"todokit/tools"
	"todokit/widget"
)

// Store abstracts persistence for handlers.
type Store interface {
	Add(ctx context.Context, text string) (domain.Todo, error)
	List(ctx context.Context) ([]domain.Todo, error)
	Complete(ctx context.Context, id string) (domain.Todo, error)
	Delete(ctx context.Context, id string) error
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Deduper prevents reprocessing of duplicate interaction events.
type Deduper interface {
	// Add records the event id and returns true if it was newly added.
	Add(ctx context.Context, userID, eventID string) (bool, error)
	// Remove deletes a previously added id, used when processing fails.
	Remove(ctx context.Context, userID, eventID string) error
}

// Deps carries the collaborators the handlers need. AI and Deduper may be
// nil; the corresponding features degrade gracefully.
type Deps struct {
	Store    Store
	Tools    *tools.Registry
	AI       *azureai.Client
	Auth     Authenticator
	Deduper  Deduper
	Branding Branding
	Logger   *log.Logger
}

// actionEvent is a structured user interaction routed directly to the
// interaction handler, independent of the language model.
type actionEvent struct {
	ActionType  string         `json:"action_type"`
	Payload     map[string]any `json:"payload"`
	ComponentID string         `json:"component_id,omitempty"`
	ThreadID    string         `json:"thread_id,omitempty"`
	EventID     string         `json:"event_id,omitempty"`
}

// actionResponse always carries the rebuilt widget so stale clients self-heal
// to the current state.
type actionResponse struct {
	Widget  widget.Node `json:"widget"`
	Message string      `json:"message,omitempty"`
}

type todosResponse struct {
	Todos []domain.Todo `json:"todos"`
}

const actionMaxSize = 64 * 1024 // 64 KiB
