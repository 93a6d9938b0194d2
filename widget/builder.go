package widget

import (
	"fmt"

	"todokit/domain"
)

// Build maps the given todos into a fresh widget tree. It is pure: the same
// list in the same order always produces a structurally identical tree.
// An empty list yields a valid container with an empty-state label.
func Build(todos []domain.Todo, contextID string) Node {
	children := make([]Node, 0, len(todos)+6)

	children = append(children,
		Node{Kind: KindLabel, ID: "title", Text: "My Todo List", Style: "title"},
		buildAddForm(),
		Node{Kind: KindDivider, ID: "divider_header"},
	)

	if len(todos) == 0 {
		children = append(children, Node{
			Kind: KindLabel,
			ID:   "empty_state",
			Text: "No todos yet. Add one above or ask the assistant.",
		})
	} else {
		for _, t := range todos {
			children = append(children, buildTodoRow(t))
		}
	}

	completed := domain.CountCompleted(todos)
	children = append(children,
		Node{Kind: KindDivider, ID: "divider_summary"},
		Node{
			Kind: KindLabel,
			ID:   "summary",
			Text: fmt.Sprintf("Total: %d items (%d completed, %d pending)",
				len(todos), completed, len(todos)-completed),
			Style: "muted",
		},
	)

	return Node{
		Kind:     KindContainer,
		ID:       "todo_widget_" + contextID,
		Children: children,
	}
}

func buildAddForm() Node {
	return Node{
		Kind: KindForm,
		ID:   "add_todo_form",
		Children: []Node{
			{
				Kind: KindRow,
				ID:   "add_todo_row",
				Children: []Node{
					{
						Kind:        KindInput,
						ID:          "new_todo_text",
						Name:        "text",
						Placeholder: "What needs to be done?",
					},
					{
						Kind:   KindButton,
						ID:     "add_button",
						Text:   "Add",
						Style:  "primary",
						Action: &Action{Type: ActionSubmitNewTodo},
					},
				},
			},
		},
	}
}

func buildTodoRow(t domain.Todo) Node {
	textStyle := ""
	if t.Completed {
		textStyle = "strikethrough"
	}
	return Node{
		Kind: KindRow,
		ID:   "todo_" + t.ID,
		Children: []Node{
			{
				Kind:    KindCheckbox,
				ID:      "check_" + t.ID,
				Name:    "check_" + t.ID,
				Checked: t.Completed,
				Action:  &Action{Type: ActionToggleTodo, Payload: map[string]any{"id": t.ID}},
			},
			{
				Kind:  KindLabel,
				ID:    "text_" + t.ID,
				Text:  t.Text,
				Style: textStyle,
			},
			{Kind: KindSpacer, ID: "spacer_" + t.ID},
			{
				Kind:   KindButton,
				ID:     "delete_" + t.ID,
				Text:   "Delete",
				Style:  "danger",
				Action: &Action{Type: ActionDeleteTodo, Payload: map[string]any{"id": t.ID}},
			},
		},
	}
}
