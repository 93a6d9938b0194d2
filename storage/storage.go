// Package storage persists the shared todo list. The durable implementation
// targets Azure Table Storage; Memory offers the same contract in-process.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"todokit/domain"
)

// The todo list spans every conversation thread, so all records live in a
// single well-known partition.
const todosPartition = "todos"

// Storage provides access to the todos table.
type Storage struct {
	table *aztables.Client
}

// New creates a Storage instance from the given connection string.
func New(connStr, tableName string) (*Storage, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &Storage{table: svc.NewClient(tableName)}, nil
}

type todoEntity struct {
	aztables.Entity
	Text      string `json:"Text"`
	Completed bool   `json:"Completed"`
	CreatedAt int64  `json:"CreatedAt"`
}

func (e todoEntity) toTodo() domain.Todo {
	return domain.Todo{
		ID:        e.RowKey,
		Text:      e.Text,
		Completed: e.Completed,
		CreatedAt: time.Unix(0, e.CreatedAt).UTC(),
	}
}

// Add validates the text, generates a fresh id and inserts the record.
func (s *Storage) Add(ctx context.Context, text string) (domain.Todo, error) {
	trimmed, err := normalizeText(text)
	if err != nil {
		return domain.Todo{}, err
	}
	t := domain.Todo{
		ID:        NewTodoID(),
		Text:      trimmed,
		CreatedAt: time.Now().UTC(),
	}
	ent := todoEntity{
		Entity:    aztables.Entity{PartitionKey: todosPartition, RowKey: t.ID},
		Text:      t.Text,
		CreatedAt: t.CreatedAt.UnixNano(),
	}
	data, err := json.Marshal(ent)
	if err != nil {
		return domain.Todo{}, err
	}
	if _, err := s.table.AddEntity(ctx, data, nil); err != nil {
		return domain.Todo{}, err
	}
	return t, nil
}

// List returns every todo in creation order.
func (s *Storage) List(ctx context.Context) ([]domain.Todo, error) {
	filter := "PartitionKey eq '" + todosPartition + "'"
	pager := s.table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	todos := []domain.Todo{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent todoEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			todos = append(todos, ent.toTodo())
		}
	}
	sort.Slice(todos, func(i, j int) bool { return todos[i].CreatedAt.Before(todos[j].CreatedAt) })
	return todos, nil
}

// Complete marks the todo as done. Completing an already-completed todo is a
// no-op that returns the record unchanged. The ETag precondition serializes
// racing writers on the same record; a lost race is retried against the
// refetched entity.
func (s *Storage) Complete(ctx context.Context, id string) (domain.Todo, error) {
	for {
		resp, err := s.table.GetEntity(ctx, todosPartition, id, nil)
		if err != nil {
			if isStatus(err, 404) {
				return domain.Todo{}, domain.NotFoundError{ID: id}
			}
			return domain.Todo{}, err
		}
		var ent todoEntity
		if err := json.Unmarshal(resp.Value, &ent); err != nil {
			return domain.Todo{}, err
		}
		if ent.Completed {
			return ent.toTodo(), nil
		}
		ent.Completed = true
		data, err := json.Marshal(ent)
		if err != nil {
			return domain.Todo{}, err
		}
		etag := resp.ETag
		_, err = s.table.UpdateEntity(ctx, data, &aztables.UpdateEntityOptions{
			IfMatch:    &etag,
			UpdateMode: aztables.UpdateModeMerge,
		})
		if err == nil {
			return ent.toTodo(), nil
		}
		if isStatus(err, 412) {
			continue
		}
		if isStatus(err, 404) {
			return domain.Todo{}, domain.NotFoundError{ID: id}
		}
		return domain.Todo{}, err
	}
}

// Delete removes the record. When two deletes race, the storage layer lets
// exactly one succeed; the loser observes NotFoundError.
func (s *Storage) Delete(ctx context.Context, id string) error {
	_, err := s.table.DeleteEntity(ctx, todosPartition, id, &aztables.DeleteEntityOptions{
		IfMatch: to.Ptr(azcore.ETag("*")),
	})
	if err != nil {
		if isStatus(err, 404) {
			return domain.NotFoundError{ID: id}
		}
		return err
	}
	return nil
}

func isStatus(err error, code int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == code
}
