package metadata

import (
	"context"
	"time"
)

// Record is the persisted metadata document for one canonical URL. Every
// successful collection fully overwrites the previous record; there is no
// partial update or history.
type Record struct {
	URL         string            `json:"url"`
	Headers     map[string]string `json:"headers"`
	Cookies     map[string]string `json:"cookies"`
	PageSource  string            `json:"page_source"`
	CollectedAt time.Time         `json:"collected_at"`
}

// Snapshot carries the transient result of a single fetch. It is consumed
// once by the write path and discarded.
type Snapshot struct {
	Headers map[string]string
	Cookies map[string]string
	Body    string
}

// Fetcher performs one outbound GET and extracts headers, cookies, and the
// size-bounded body text. Implementations do not retry.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Snapshot, error)
}

// Clock abstracts wall-clock time so collection timestamps are testable.
type Clock interface {
	Now() time.Time
}
