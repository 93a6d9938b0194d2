// Package widget models the presentational tree consumed by the external
// chat-widget renderer and rebuilds it from the current todo list.
package widget

// Node kinds understood by the renderer. These values are part of the wire
// contract and must stay stable.
const (
	KindContainer = "container"
	KindRow       = "row"
	KindLabel     = "label"
	KindCheckbox  = "checkbox"
	KindButton    = "button"
	KindInput     = "input"
	KindForm      = "form"
	KindDivider   = "divider"
	KindSpacer    = "spacer"
)

// Action types emitted by interactive nodes and interpreted by the
// interaction handler.
const (
	ActionSubmitNewTodo = "submit_new_todo"
	ActionToggleTodo    = "toggle_todo"
	ActionCompleteTodo  = "complete_todo"
	ActionDeleteTodo    = "delete_todo"
)

// Action correlates a future interaction event back to a handler branch.
// The payload is opaque to the builder.
type Action struct {
	Type    string         `json:"action_type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Node is a single tagged node of the widget tree. The id doubles as DOM
// identity and as the correlation key on interaction events.
type Node struct {
	Kind        string  `json:"kind"`
	ID          string  `json:"id"`
	Text        string  `json:"text,omitempty"`
	Checked     bool    `json:"checked,omitempty"`
	Style       string  `json:"style,omitempty"`
	Name        string  `json:"name,omitempty"`
	Placeholder string  `json:"placeholder,omitempty"`
	Action      *Action `json:"action,omitempty"`
	Children    []Node  `json:"children,omitempty"`
}
