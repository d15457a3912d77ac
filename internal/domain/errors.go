package domain

import "fmt"

// ExecError is returned when a subprocess exits non-zero or cannot be
// started. Stderr carries the captured diagnostic text.
type ExecError struct {
	Command string
	Stderr  string
	Err     error
}

// Error implements the error interface
func (e *ExecError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s failed: %v: %s", e.Command, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s failed: %v", e.Command, e.Err)
}

// Unwrap returns the underlying process error
func (e *ExecError) Unwrap() error { return e.Err }
