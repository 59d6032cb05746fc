package core

import (
	"fmt"

	"github.com/git-pkgs/pypi/client"
)

// NotFoundError marks a resource the registry confirmed absent.
// It unwraps to client.ErrNotFound so callers can branch with errors.Is.
type NotFoundError struct {
	Name    string
	Version string
}

func (e *NotFoundError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("package %s version %s not found", e.Name, e.Version)
	}
	return fmt.Sprintf("package %s not found", e.Name)
}

func (e *NotFoundError) Unwrap() error {
	return client.ErrNotFound
}

// ParseError marks a 2xx response whose body lacked the expected structure.
// Distinct from absence: the registry answered, the answer was unusable.
type ParseError struct {
	Name string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing response for %s: %v", e.Name, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
