package copyengine

import "fmt"

// SourceMissingError means the daemon-reported source path is not visible on
// this filesystem. The entry is skipped for the cycle rather than failed,
// since the source may simply not be mounted yet.
type SourceMissingError struct {
	Path string
}

func (e *SourceMissingError) Error() string {
	return fmt.Sprintf("source path %s does not exist", e.Path)
}

// CopyIOError represents an I/O failure during the recursive copy: directory
// creation, directory listing, or a file copy.
type CopyIOError struct {
	Op   string // "stat", "mkdir", "readdir", "open", "create" or "copy"
	Path string
	Err  error
}

func (e *CopyIOError) Error() string {
	return fmt.Sprintf("copy %s failed for %s: %v", e.Op, e.Path, e.Err)
}

func (e *CopyIOError) Unwrap() error {
	return e.Err
}
