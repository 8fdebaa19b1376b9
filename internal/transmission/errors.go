package transmission

import "fmt"

// ConnectionError represents a malformed or unreachable daemon address. It
// covers both address validation at client construction and transport
// failures during a request.
type ConnectionError struct {
	Addr string // host:port the client was built for
	Err  error  // underlying error, if any
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot reach transmission at %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// RPCError means the daemon was reachable but answered with a logical
// failure: a non-2xx HTTP status or a result field other than "success".
type RPCError struct {
	Method string // the RPC method that failed, e.g. "torrent-get"
	Result string // the daemon's own message
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("transmission %s failed: %s", e.Method, e.Result)
}
