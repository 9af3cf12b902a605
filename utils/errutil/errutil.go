// Package errutil provides small helpers for aggregating multiple errors,
// used where a single step (e.g. a reconciliation pass) may accumulate
// several independent failures before returning.
package errutil

import "strings"

// MultiError joins a slice of errors into a single error whose message is a
// comma-separated list of the underlying messages. An empty slice yields an
// error whose message is the empty string.
type MultiError []error

func (e MultiError) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, ", ")
}

// Join returns nil if errs is empty, else a MultiError wrapping errs.
func Join(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return MultiError(errs)
}
