package agent

import "errors"

// ErrUnavailable indicates the model provider could not be reached or
// returned an error. Callers map it to an upstream-unavailable failure.
var ErrUnavailable = errors.New("agent unavailable")
