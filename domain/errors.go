package domain

import (
	"fmt"
	"strings"
)

// ValidationError indicates that user-supplied input was rejected before any
// mutation took place.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

// NotFoundError indicates that the referenced todo no longer exists.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("todo %s not found", e.ID)
}

// AmbiguousMatchError indicates that a text reference matched more than one
// todo. Candidates carries every match so the caller can ask the user to
// disambiguate.
type AmbiguousMatchError struct {
	Query      string
	Candidates []Todo
}

func (e AmbiguousMatchError) Error() string {
	titles := make([]string, len(e.Candidates))
	for i, t := range e.Candidates {
		titles[i] = fmt.Sprintf("%q (%s)", t.Text, t.ID)
	}
	return fmt.Sprintf("%q matches multiple todos: %s", e.Query, strings.Join(titles, ", "))
}
