package field

import "fmt"

// ShapeError reports a buffer whose length does not match what a component
// expects.
type ShapeError struct {
	Scope string // component, e.g. "plates/motion"
	Field string
	Want  int
	Got   int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s has length %d, want %d", e.Scope, e.Field, e.Got, e.Want)
}

// MissingError reports a required input bundle that was nil.
type MissingError struct {
	Scope string
	Field string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%s: missing required input %s", e.Scope, e.Field)
}

// CheckLen returns a *ShapeError when got != want.
func CheckLen(scope, name string, got, want int) error {
	if got != want {
		return &ShapeError{Scope: scope, Field: name, Want: want, Got: got}
	}
	return nil
}

// Checker accumulates the first shape failure across several checks.
type Checker struct {
	Scope string
	err   error
}

// Len records a length mismatch unless an earlier check already failed.
func (c *Checker) Len(name string, got, want int) {
	if c.err != nil {
		return
	}
	c.err = CheckLen(c.Scope, name, got, want)
}

// Present records a missing input when ok is false.
func (c *Checker) Present(name string, ok bool) {
	if c.err != nil || ok {
		return
	}
	c.err = &MissingError{Scope: c.Scope, Field: name}
}

// Err returns the first recorded failure.
func (c *Checker) Err() error { return c.err }
