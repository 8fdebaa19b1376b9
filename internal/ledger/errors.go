package ledger

import "fmt"

// PersistenceError represents a failure to read or write the ledger file.
// Callers are expected to log it and keep working with their in-memory view;
// the next successful save recovers the loss.
type PersistenceError struct {
	Op   string // "mkdir", "marshal" or "write"
	Path string // the ledger file or its parent directory
	Err  error  // underlying error, if any
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("ledger %s failed for %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
