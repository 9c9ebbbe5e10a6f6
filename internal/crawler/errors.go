package crawler

import (
	"context"
	"errors"
	"fmt"
)

// ErrBudgetExhausted reports that the run-wide keyword budget has been spent.
// It is an expected terminal condition for a task, not a crash.
var ErrBudgetExhausted = errors.New("processing budget exhausted")

// FetchError wraps a failed page fetch. It only ever stops pagination for its
// own category.
type FetchError struct {
	Keyword  string
	Category string
	Offset   int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %q [%s] offset %d: %v", e.Keyword, e.Category, e.Offset, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the fetch failed because its deadline expired.
func (e *FetchError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}
