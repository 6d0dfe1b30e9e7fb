package health

import (
	"fmt"
	"time"
)

// ExecError reports that a predicate could not be executed at all, as
// opposed to executing and returning a negative result.
type ExecError struct {
	Check PredicateSpec
	Err   error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("health check %q could not run: %v", e.Check.String(), e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// TimedOutError is recorded as the last error of a service whose predicate
// never passed within its timeout.
type TimedOutError struct {
	Service  string
	Timeout  time.Duration
	Attempts int
	// LastExecErr is the most recent execution failure, if any attempt could
	// not run at all.
	LastExecErr error
}

func (e *TimedOutError) Error() string {
	msg := fmt.Sprintf("%s did not become healthy within %s (%d checks)", e.Service, e.Timeout, e.Attempts)
	if e.LastExecErr != nil {
		msg += fmt.Sprintf("; last check error: %v", e.LastExecErr)
	}
	return msg
}

func (e *TimedOutError) Unwrap() error {
	return e.LastExecErr
}
