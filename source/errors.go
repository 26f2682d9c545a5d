package source

import "fmt"

// ListError reports a directory listing that did not succeed. StatusCode is
// zero when the request never got a response.
type ListError struct {
	Path       string
	StatusCode int
	Err        error
}

func (e *ListError) Error() string {
	return describe("list contents", e.Path, e.StatusCode, e.Err)
}

func (e *ListError) Unwrap() error { return e.Err }

// FetchError reports a raw content request that did not succeed.
type FetchError struct {
	Path       string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	return describe("fetch raw content", e.Path, e.StatusCode, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func describe(op, path string, status int, err error) string {
	if path == "" {
		path = "/"
	}
	switch {
	case err != nil && status != 0:
		return fmt.Sprintf("source: %s %q: status %d: %v", op, path, status, err)
	case err != nil:
		return fmt.Sprintf("source: %s %q: %v", op, path, err)
	default:
		return fmt.Sprintf("source: %s %q: status %d", op, path, status)
	}
}
