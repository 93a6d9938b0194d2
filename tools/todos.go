package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"

	"todokit/domain"
)

// Store abstracts the todo list for the tool layer.
type Store interface {
	Add(ctx context.Context, text string) (domain.Todo, error)
	List(ctx context.Context) ([]domain.Todo, error)
	Complete(ctx context.Context, id string) (domain.Todo, error)
	Delete(ctx context.Context, id string) error
}

// Toolset implements the conversational todo operations over a shared store.
type Toolset struct {
	store Store
}

// NewToolset creates a Toolset backed by the given store.
func NewToolset(store Store) *Toolset {
	return &Toolset{store: store}
}

// AddTask appends a new todo.
func (ts *Toolset) AddTask(ctx context.Context, text string) (Result, error) {
	t, err := ts.store.Add(ctx, text)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Reply:      fmt.Sprintf("Added %q to your todo list.", t.Text),
		ShowWidget: true,
	}, nil
}

// AddTasksBulk appends each item independently; invalid items are reported in
// the reply without failing the rest. Duplicate texts create independent
// todos.
func (ts *Toolset) AddTasksBulk(ctx context.Context, items []string) (Result, error) {
	added := 0
	var rejected []string
	for _, item := range items {
		if _, err := ts.store.Add(ctx, item); err != nil {
			var verr domain.ValidationError
			if errors.As(err, &verr) {
				rejected = append(rejected, verr.Msg)
				continue
			}
			return Result{}, err
		}
		added++
	}
	reply := fmt.Sprintf("Added %d items to your todo list.", added)
	if len(rejected) > 0 {
		reply = fmt.Sprintf("Added %d of %d items; rejected %d (%s).",
			added, len(items), len(rejected), strings.Join(rejected, "; "))
	}
	return Result{Reply: reply, ShowWidget: added > 0}, nil
}

// CompleteTask marks the referenced todo as done. The reference may be an
// exact id or a case-insensitive substring of the todo text.
func (ts *Toolset) CompleteTask(ctx context.Context, ref string) (Result, error) {
	t, err := ts.resolve(ctx, ref)
	if err != nil {
		return Result{}, err
	}
	if _, err := ts.store.Complete(ctx, t.ID); err != nil {
		return Result{}, err
	}
	return Result{
		Reply:      fmt.Sprintf("Completed %q.", t.Text),
		ShowWidget: true,
	}, nil
}

// DeleteTask removes the referenced todo, with the same resolution policy as
// CompleteTask.
func (ts *Toolset) DeleteTask(ctx context.Context, ref string) (Result, error) {
	t, err := ts.resolve(ctx, ref)
	if err != nil {
		return Result{}, err
	}
	if err := ts.store.Delete(ctx, t.ID); err != nil {
		return Result{}, err
	}
	return Result{
		Reply:      fmt.Sprintf("Deleted %q.", t.Text),
		ShowWidget: true,
	}, nil
}

// ListTasks reports the current list and triggers the widget display. It does
// not mutate.
func (ts *Toolset) ListTasks(ctx context.Context) (Result, error) {
	todos, err := ts.store.List(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(todos) == 0 {
		return Result{Reply: "Your todo list is empty.", ShowWidget: true}, nil
	}
	completed := domain.CountCompleted(todos)
	return Result{
		Reply: fmt.Sprintf("You have %d todos (%d completed, %d pending).",
			len(todos), completed, len(todos)-completed),
		ShowWidget: true,
	}, nil
}

// resolve maps an id-or-text reference to a single todo. An exact id match
// wins; otherwise a case-insensitive substring match against the todo text is
// tried. Multiple substring matches are never silently tie-broken.
func (ts *Toolset) resolve(ctx context.Context, ref string) (domain.Todo, error) {
	todos, err := ts.store.List(ctx)
	if err != nil {
		return domain.Todo{}, err
	}
	for _, t := range todos {
		if t.ID == ref {
			return t, nil
		}
	}
	needle := strings.ToLower(strings.TrimSpace(ref))
	if needle == "" {
		return domain.Todo{}, domain.NotFoundError{ID: ref}
	}
	var matches []domain.Todo
	for _, t := range todos {
		if strings.Contains(strings.ToLower(t.Text), needle) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return domain.Todo{}, domain.NotFoundError{ID: ref}
	case 1:
		return matches[0], nil
	default:
		return domain.Todo{}, domain.AmbiguousMatchError{Query: ref, Candidates: matches}
	}
}

// Registry returns the named tools an external orchestrator binds against.
func (ts *Toolset) Registry() *Registry {
	r := NewRegistry()

	r.Register(NewFuncTool("add_task",
		"Add a new item to the user's todo list and show the updated widget.",
		json.RawMessage(`{"type":"object","properties":{"text":{"type":"string","description":"The todo text"}},"required":["text"]}`),
		func(ctx context.Context, args json.RawMessage) (Result, error) {
			var a struct {
				Text string `json:"text"`
			}
			if err := decodeArgs(args, &a); err != nil {
				return Result{}, err
			}
			return ts.AddTask(ctx, a.Text)
		}))

	r.Register(NewFuncTool("add_tasks_bulk",
		"Add several items to the todo list at once. Invalid items are skipped and reported.",
		json.RawMessage(`{"type":"object","properties":{"items":{"type":"array","items":{"type":"string"},"description":"The todo texts"}},"required":["items"]}`),
		func(ctx context.Context, args json.RawMessage) (Result, error) {
			var a struct {
				Items []string `json:"items"`
			}
			if err := decodeArgs(args, &a); err != nil {
				return Result{}, err
			}
			return ts.AddTasksBulk(ctx, a.Items)
		}))

	r.Register(NewFuncTool("complete_task",
		"Mark a todo as completed. Accepts the todo id or a fragment of its text.",
		json.RawMessage(`{"type":"object","properties":{"task":{"type":"string","description":"Todo id or text fragment"}},"required":["task"]}`),
		func(ctx context.Context, args json.RawMessage) (Result, error) {
			var a struct {
				Task string `json:"task"`
			}
			if err := decodeArgs(args, &a); err != nil {
				return Result{}, err
			}
			return ts.CompleteTask(ctx, a.Task)
		}))

	r.Register(NewFuncTool("delete_task",
		"Delete a todo. Accepts the todo id or a fragment of its text.",
		json.RawMessage(`{"type":"object","properties":{"task":{"type":"string","description":"Todo id or text fragment"}},"required":["task"]}`),
		func(ctx context.Context, args json.RawMessage) (Result, error) {
			var a struct {
				Task string `json:"task"`
			}
			if err := decodeArgs(args, &a); err != nil {
				return Result{}, err
			}
			return ts.DeleteTask(ctx, a.Task)
		}))

	r.Register(NewFuncTool("list_tasks",
		"List all todo items and show the interactive widget.",
		json.RawMessage(`{"type":"object","properties":{}}`),
		func(ctx context.Context, args json.RawMessage) (Result, error) {
			return ts.ListTasks(ctx)
		}))

	return r
}

func decodeArgs(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	if err := sonic.Unmarshal(raw, dst); err != nil {
		return domain.ValidationError{Msg: "invalid tool arguments: " + err.Error()}
	}
	return nil
}
