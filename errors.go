package postflop

import (
	"fmt"
)

// ConfigurationError reports invalid caller input: ranges, cards, bet
// sizes or tree parameters. The cause is available through errors.Cause.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Err.Error()
}

func (e *ConfigurationError) Cause() error  { return e.Err }
func (e *ConfigurationError) Unwrap() error { return e.Err }

// OrderingError reports an operation invoked before the game reached the
// state it requires. The game is left unchanged.
type OrderingError struct {
	Op       string
	Required State
	Actual   State
	// Reason replaces the state comparison in the message when the
	// precondition is not a lifecycle state, e.g. a stale weight cache.
	Reason string
}

func (e *OrderingError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s requires state %v, game is %v", e.Op, e.Required, e.Actual)
}

// NavigationError reports an action index that does not exist at the
// current node, or a query that needs a different kind of node.
type NavigationError struct {
	Op         string
	Index      int
	NumActions int
	Reason     string
}

func (e *NavigationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s: action index %d out of range [0, %d)", e.Op, e.Index, e.NumActions)
}

// CodecError reports a persisted payload that could not be written or
// decoded. A failed load leaves the game untouched.
type CodecError struct {
	Op  string
	Err error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("codec error during %s: %v", e.Op, e.Err)
}

func (e *CodecError) Cause() error  { return e.Err }
func (e *CodecError) Unwrap() error { return e.Err }
