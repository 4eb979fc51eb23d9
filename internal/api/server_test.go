package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/urlmeta/inventory/internal/config"
	"github.com/urlmeta/inventory/internal/metadata"
	"github.com/urlmeta/inventory/internal/queue"
	"github.com/urlmeta/inventory/internal/service"
	"github.com/urlmeta/inventory/internal/store"
)

type fakeCollector struct {
	mu     sync.Mutex
	calls  []string
	result service.CollectResult
	err    error
}

func (c *fakeCollector) Collect(_ context.Context, rawURL string) (service.CollectResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, rawURL)
	if c.err != nil {
		return service.CollectResult{}, c.err
	}
	return c.result, nil
}

type fakeRepo struct {
	records map[string]metadata.Record
	getErr  error
	pingErr error
}

func (r *fakeRepo) GetByURL(_ context.Context, url string) (metadata.Record, error) {
	if r.getErr != nil {
		return metadata.Record{}, r.getErr
	}
	rec, ok := r.records[url]
	if !ok {
		return metadata.Record{}, store.ErrNotFound
	}
	return rec, nil
}

func (r *fakeRepo) Upsert(context.Context, metadata.Record) error { return nil }

func (r *fakeRepo) Ping(context.Context) error { return r.pingErr }

func (r *fakeRepo) Close() {}

type fakeQueue struct {
	mu    sync.Mutex
	items []queue.Item
	err   error
}

func (q *fakeQueue) TryEnqueue(item queue.Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.items = append(q.items, item)
	return nil
}

func newTestServer(collector *fakeCollector, repo *fakeRepo, jobs *fakeQueue) *Server {
	if collector == nil {
		collector = &fakeCollector{}
	}
	if repo == nil {
		repo = &fakeRepo{records: map[string]metadata.Record{}}
	}
	if jobs == nil {
		jobs = &fakeQueue{}
	}
	return NewServer(collector, repo, jobs, config.Config{}, nil)
}

func doRequest(t *testing.T, s *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func TestRootListsEndpoints(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, newTestServer(nil, nil, nil), http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	payload := decodeBody(t, rec)
	require.Equal(t, "HTTP Metadata Inventory API", payload["message"])
	endpoints, ok := payload["endpoints"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, endpoints, "POST /metadata")
	require.Contains(t, endpoints, "GET /metadata")
}

func TestCreateMetadataFirstCollection(t *testing.T) {
	t.Parallel()

	collected := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	collector := &fakeCollector{result: service.CollectResult{
		URL:              "https://example.com/page",
		CollectedAt:      collected,
		Refreshed:        false,
		HeadersCount:     3,
		CookiesCount:     1,
		PageSourceLength: 512,
	}}
	s := newTestServer(collector, nil, nil)

	rec := doRequest(t, s, http.MethodPost, "/metadata",
		[]byte(`{"url":"https://Example.com/page/"}`))
	require.Equal(t, http.StatusCreated, rec.Code)

	payload := decodeBody(t, rec)
	require.Equal(t, "Metadata collected and stored successfully", payload["message"])
	require.Equal(t, "https://example.com/page", payload["url"])
	require.Equal(t, "2025-03-01T12:00:00Z", payload["collected_at"])

	stats, ok := payload["stats"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, float64(3), stats["headers_count"])
	require.Equal(t, float64(1), stats["cookies_count"])
	require.Equal(t, float64(512), stats["page_source_length"])

	require.Equal(t, []string{"https://Example.com/page/"}, collector.calls)
}

func TestCreateMetadataRefresh(t *testing.T) {
	t.Parallel()

	collector := &fakeCollector{result: service.CollectResult{
		URL:         "https://example.com",
		CollectedAt: time.Now().UTC(),
		Refreshed:   true,
	}}
	s := newTestServer(collector, nil, nil)

	rec := doRequest(t, s, http.MethodPost, "/metadata",
		[]byte(`{"url":"https://example.com"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Metadata refreshed successfully", decodeBody(t, rec)["message"])
}

func TestCreateMetadataRejectsBadInput(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{"url":`},
		{"missing url", `{}`},
		{"blank url", `{"url":"   "}`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			collector := &fakeCollector{}
			s := newTestServer(collector, nil, nil)

			rec := doRequest(t, s, http.MethodPost, "/metadata", []byte(tc.body))
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			require.Empty(t, collector.calls)
		})
	}
}

func TestCreateMetadataErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{
			name:       "invalid url",
			err:        service.ErrInvalidURL,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "fetch failure",
			err:        &metadata.FetchError{URL: "https://example.com", StatusCode: 500},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "duplicate key race",
			err:        store.ErrDuplicateKey,
			wantStatus: http.StatusConflict,
			wantDetail: "Metadata already exists",
		},
		{
			name:       "store down",
			err:        store.ErrUnavailable,
			wantStatus: http.StatusServiceUnavailable,
			wantDetail: "Database unavailable",
		},
		{
			name:       "unexpected error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantDetail: "Internal server error",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := newTestServer(&fakeCollector{err: tc.err}, nil, nil)

			rec := doRequest(t, s, http.MethodPost, "/metadata",
				[]byte(`{"url":"https://example.com"}`))
			require.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantDetail != "" {
				require.Equal(t, tc.wantDetail, decodeBody(t, rec)["detail"])
			}
		})
	}
}

func TestGetMetadataFound(t *testing.T) {
	t.Parallel()

	record := metadata.Record{
		URL:         "https://example.com",
		Headers:     map[string]string{"Content-Type": "text/html"},
		Cookies:     map[string]string{"session": "abc"},
		PageSource:  "<html></html>",
		CollectedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	repo := &fakeRepo{records: map[string]metadata.Record{"https://example.com": record}}
	jobs := &fakeQueue{}
	s := newTestServer(nil, repo, jobs)

	rec := doRequest(t, s, http.MethodGet, "/metadata?url=https%3A%2F%2Fexample.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	payload := decodeBody(t, rec)
	require.Equal(t, "https://example.com", payload["url"])
	require.Equal(t, "<html></html>", payload["page_source"])
	require.Empty(t, jobs.items)
}

func TestGetMetadataMissQueuesBackgroundCollection(t *testing.T) {
	t.Parallel()

	jobs := &fakeQueue{}
	s := newTestServer(nil, &fakeRepo{records: map[string]metadata.Record{}}, jobs)

	rec := doRequest(t, s, http.MethodGet, "/metadata?url=https%3A%2F%2Fmissing.example.com", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	payload := decodeBody(t, rec)
	require.Equal(t,
		"Record doesn't exist & request has been logged to collect the metadata, please check later",
		payload["message"])
	require.Equal(t, "https://missing.example.com", payload["url"])
	require.Equal(t, "pending_collection", payload["status"])

	require.Len(t, jobs.items, 1)
	require.Equal(t, "https://missing.example.com", jobs.items[0].URL)
}

func TestGetMetadataMissingParam(t *testing.T) {
	t.Parallel()

	jobs := &fakeQueue{}
	rec := doRequest(t, newTestServer(nil, nil, jobs), http.MethodGet, "/metadata", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Empty(t, jobs.items)
}

func TestGetMetadataQueueFull(t *testing.T) {
	t.Parallel()

	jobs := &fakeQueue{err: queue.ErrFull}
	s := newTestServer(nil, &fakeRepo{records: map[string]metadata.Record{}}, jobs)

	rec := doRequest(t, s, http.MethodGet, "/metadata?url=https%3A%2F%2Fexample.com", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "Error retrieving metadata", decodeBody(t, rec)["detail"])
}

func TestGetMetadataStoreUnavailable(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{getErr: store.ErrUnavailable}
	rec := doRequest(t, newTestServer(nil, repo, nil), http.MethodGet,
		"/metadata?url=https%3A%2F%2Fexample.com", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "Database unavailable", decodeBody(t, rec)["detail"])
}

func TestHealthHealthy(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, newTestServer(nil, nil, nil), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	payload := decodeBody(t, rec)
	require.Equal(t, "healthy", payload["status"])
	require.Equal(t, "connected", payload["database"])
}

func TestHealthUnhealthy(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{pingErr: errors.New("connection refused")}
	rec := doRequest(t, newTestServer(nil, repo, nil), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	payload := decodeBody(t, rec)
	require.Equal(t, "unhealthy", payload["status"])
	require.Equal(t, "disconnected", payload["database"])
	require.Contains(t, payload["error"], "connection refused")
}

func TestRequestIDHeaderSet(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, newTestServer(nil, nil, nil), http.MethodGet, "/health", nil)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestMetricsEndpointServesExposition(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, newTestServer(nil, nil, nil), http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Body.String())
}
