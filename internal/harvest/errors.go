package harvest

import "errors"

// ErrBlocked wraps a content-capture failure that exhausted its retry
// budget. Repeated transient failures at one position are treated as
// suspected blocking, which pauses the session rather than terminating it.
var ErrBlocked = errors.New("blocking suspected")
