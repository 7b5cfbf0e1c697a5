package syncer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/cloudprefix/ipranges/pkg/metrics"
	"github.com/cloudprefix/ipranges/pkg/snapshot"
)

// DefaultFetchTimeout bounds a single upstream fetch.
const DefaultFetchTimeout = 30 * time.Second

// maxDocumentBytes caps the upstream response body. The published document is
// a few MB; anything near this limit is garbage.
const maxDocumentBytes = 64 << 20

// Fetcher retrieves a fresh snapshot from the upstream publisher.
type Fetcher interface {
	Fetch(ctx context.Context) (snapshot.Snapshot, error)
}

// HTTPFetcher fetches the IP-ranges document with a single GET against a
// fixed URL, validating the payload before handing it back.
type HTTPFetcher struct {
	url    string
	client *http.Client
	now    func() time.Time
}

// NewHTTPFetcher creates a fetcher for the given URL. timeout <= 0 falls back
// to DefaultFetchTimeout.
func NewHTTPFetcher(url string, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &HTTPFetcher{
		url:    url,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context) (snapshot.Snapshot, error) {
	tracer := otel.Tracer("ipranges/syncer")
	ctx, span := tracer.Start(ctx, "upstream.fetch")
	span.SetAttributes(attribute.String("upstream.url", f.url))
	defer span.End()

	start := f.now()
	snap, err := f.fetch(ctx)
	metrics.UpstreamFetchDuration.Observe(f.now().Sub(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return snapshot.Snapshot{}, err
	}
	span.SetAttributes(attribute.String("upstream.sync_token", snap.SyncToken))
	return snap, nil
}

func (f *HTTPFetcher) fetch(ctx context.Context) (snapshot.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("building upstream request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("fetching %s: %w", f.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return snapshot.Snapshot{}, fmt.Errorf("fetching %s: unexpected status %d", f.url, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("reading upstream body: %w", err)
	}

	doc, err := snapshot.ParseDocument(raw)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	return snapshot.New(doc, f.now()), nil
}
