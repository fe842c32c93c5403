package conversation

import "errors"

// ErrTurnClosed is returned by Update and Commit on a turn that has
// already been committed.
var ErrTurnClosed = errors.New("turn already committed")
