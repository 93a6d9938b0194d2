package domain

import "time"

// Todo represents a single item on the shared todo list.
type Todo struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// CountCompleted returns how many of the given todos are marked completed.
func CountCompleted(todos []Todo) int {
	n := 0
	for _, t := range todos {
		if t.Completed {
			n++
		}
	}
	return n
}
