// Package service implements the collection orchestrator: validate,
// normalize, look up, fetch fresh, and upsert. It is shared by the
// synchronous write path and the fire-and-forget background path.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/urlmeta/inventory/internal/metadata"
	"github.com/urlmeta/inventory/internal/metrics"
	"github.com/urlmeta/inventory/internal/store"
)

// ErrInvalidURL rejects input that is not an absolute http(s) URL. It is
// returned before any I/O happens.
var ErrInvalidURL = errors.New("invalid url: absolute http or https URL required")

// CollectResult summarizes one successful collection.
type CollectResult struct {
	URL              string
	CollectedAt      time.Time
	Refreshed        bool
	HeadersCount     int
	CookiesCount     int
	PageSourceLength int
}

// Service wires the fetcher and repository behind the collection operations.
type Service struct {
	repo    store.Repository
	fetcher metadata.Fetcher
	clock   metadata.Clock
	logger  *zap.Logger
}

// New constructs a Service.
func New(repo store.Repository, fetcher metadata.Fetcher, clock metadata.Clock, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:    repo,
		fetcher: fetcher,
		clock:   clock,
		logger:  logger,
	}
}

// Collect fetches fresh metadata for rawURL and upserts it under the
// canonical URL. A pre-existing record only flips the result to
// "refreshed"; the fetch always happens. Errors keep their taxonomy:
// ErrInvalidURL, *metadata.FetchError, store.ErrDuplicateKey,
// store.ErrUnavailable, or a wrapped unexpected failure.
func (s *Service) Collect(ctx context.Context, rawURL string) (CollectResult, error) {
	if err := validateURL(rawURL); err != nil {
		return CollectResult{}, err
	}
	canonical := metadata.Normalize(rawURL)

	refreshed := true
	if _, err := s.repo.GetByURL(ctx, canonical); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return CollectResult{}, err
		}
		refreshed = false
	}

	if refreshed {
		s.logger.Info("refreshing metadata", zap.String("url", canonical))
	} else {
		s.logger.Info("collecting metadata", zap.String("url", canonical))
	}

	snap, err := s.fetcher.Fetch(ctx, canonical)
	if err != nil {
		metrics.ObserveFetch("error")
		return CollectResult{}, err
	}
	metrics.ObserveFetch("success")

	record := metadata.Record{
		URL:         canonical,
		Headers:     snap.Headers,
		Cookies:     snap.Cookies,
		PageSource:  snap.Body,
		CollectedAt: s.clock.Now().UTC(),
	}
	if err := s.repo.Upsert(ctx, record); err != nil {
		return CollectResult{}, err
	}

	s.logger.Info("metadata stored",
		zap.String("url", canonical),
		zap.Bool("refreshed", refreshed),
		zap.Int("headers", len(snap.Headers)),
		zap.Int("cookies", len(snap.Cookies)),
		zap.Int("page_source_bytes", len(snap.Body)),
	)

	return CollectResult{
		URL:              canonical,
		CollectedAt:      record.CollectedAt,
		Refreshed:        refreshed,
		HeadersCount:     len(snap.Headers),
		CookiesCount:     len(snap.Cookies),
		PageSourceLength: len(snap.Body),
	}, nil
}

// validateURL rejects anything that is not an absolute http(s) URL with a
// host. Normalization handles the rest.
func validateURL(rawURL string) error {
	trimmed := strings.TrimSpace(rawURL)
	u, err := url.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return nil
}
