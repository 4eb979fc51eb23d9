package metadata

import "fmt"

// FetchError reports a failed fetch. StatusCode is set for HTTP-level
// failures (4xx/5xx); Err carries the underlying cause for transport-level
// failures (DNS, refused connection, timeout, too many redirects).
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("error fetching URL %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
