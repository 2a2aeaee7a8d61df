package lifecycle

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownPage     = errors.New("unknown page")
	ErrDestroying      = errors.New("view is being destroyed")
	ErrNotActive       = errors.New("view is not active")
	ErrCreationTimeout = errors.New("view creation timed out")
)

// TeardownError reports a native view that did not confirm its destruction.
// The registry entry is removed regardless.
type TeardownError struct {
	ID  string
	Err error
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("teardown of view %s: %v", e.ID, e.Err)
}

func (e *TeardownError) Unwrap() error {
	return e.Err
}
