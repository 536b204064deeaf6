package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"

	"epifeed/internal/archive"
	"epifeed/internal/ingest"
	"epifeed/internal/logger"
)

const (
	defaultTimeoutSeconds  = 30
	defaultRateLimitPerSec = 2
	defaultRateLimitBurst  = 2
	defaultUserAgent       = "epifeed/0.1"
)

type Config struct {
	Timeout         time.Duration
	RateLimitPerSec float64
	RateLimitBurst  int
	UserAgent       string
}

// Payload is the raw bytes a descriptor resolved to.
type Payload struct {
	Data      []byte
	Location  string
	FetchedAt time.Time
	Archived  bool
}

type Fetcher struct {
	config    Config
	client    *http.Client
	limiter   *rate.Limiter
	archive   archive.Archive
	refresher Refresher
	now       func() time.Time
}

type Option func(*Fetcher)

func WithArchive(a archive.Archive) Option {
	return func(f *Fetcher) {
		if a != nil {
			f.archive = a
		}
	}
}

func WithRefresher(r Refresher) Option {
	return func(f *Fetcher) {
		f.refresher = r
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

func New(cfg Config, opts ...Option) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeoutSeconds * time.Second
	}
	if cfg.RateLimitPerSec <= 0 {
		cfg.RateLimitPerSec = defaultRateLimitPerSec
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = defaultRateLimitBurst
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = defaultUserAgent
	}

	f := &Fetcher{
		config:    cfg,
		client:    &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst),
		archive:   &archive.NopArchive{},
		refresher: GitRefresher{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch resolves d to raw bytes. Failures are *ingest.Error values of kind
// Unreachable or NotFound.
func (f *Fetcher) Fetch(ctx context.Context, d Descriptor) (Payload, error) {
	switch d.Kind {
	case KindURL:
		return f.fetchLocation(ctx, d.Location)
	case KindDirectory:
		return f.fetchDirectory(ctx, d)
	case KindArchive:
		return f.fetchArchive(ctx, d.ArchiveKey)
	default:
		return Payload{}, ingest.NotFound(d.String(), nil, "unsupported descriptor kind %s", d.Kind)
	}
}

// Archive stores payload under key. It is best effort: failures are logged
// and never returned. Payloads that were themselves read from the archive
// are not written back.
func (f *Fetcher) Archive(ctx context.Context, key string, payload Payload) {
	if key == "" || payload.Archived {
		return
	}
	err := f.archive.Put(ctx, archive.Entry{
		Key:       key,
		Location:  payload.Location,
		FetchedAt: payload.FetchedAt,
		Payload:   payload.Data,
	})
	if err != nil {
		logger.Warn("archive write failed", "key", key, "error", err)
		return
	}
	logger.Debug("archived payload", "key", key, "size", humanize.Bytes(uint64(len(payload.Data))))
}

func (f *Fetcher) fetchLocation(ctx context.Context, location string) (Payload, error) {
	location = strings.TrimSpace(location)
	switch {
	case location == "":
		return Payload{}, ingest.NotFound("", nil, "location is required")
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return f.fetchHTTP(ctx, location)
	default:
		return f.readFile(strings.TrimPrefix(location, "file://"))
	}
}

func (f *Fetcher) fetchHTTP(ctx context.Context, endpoint string) (Payload, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return Payload{}, ingest.Unreachable(endpoint, err, "rate limiter")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Payload{}, ingest.Unreachable(endpoint, err, "invalid request")
	}
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.5")
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return Payload{}, ingest.Unreachable(endpoint, err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Payload{}, ingest.Unreachable(endpoint, err, "reading body")
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Payload{}, ingest.Unreachable(endpoint, nil, "request failed (%s): %s", resp.Status, snippet(body))
	}

	logger.Debug("fetched", "url", endpoint, "status", resp.StatusCode, "size", humanize.Bytes(uint64(len(body))))
	return Payload{Data: body, Location: endpoint, FetchedAt: f.now().UTC()}, nil
}

func (f *Fetcher) readFile(path string) (Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Payload{}, ingest.NotFound(path, err, "file does not exist")
		}
		return Payload{}, ingest.Unreachable(path, err, "reading file")
	}
	logger.Debug("read file", "path", path, "size", humanize.Bytes(uint64(len(data))))
	return Payload{Data: data, Location: path, FetchedAt: f.now().UTC()}, nil
}

func (f *Fetcher) fetchArchive(ctx context.Context, key string) (Payload, error) {
	source := "archive:" + key
	if key == "" {
		return Payload{}, ingest.NotFound(source, nil, "archive key is required")
	}
	entry, err := f.archive.Latest(ctx, key)
	if err != nil {
		if errors.Is(err, archive.ErrNoEntry) {
			return Payload{}, ingest.NotFound(source, err, "nothing archived")
		}
		return Payload{}, ingest.Unreachable(source, err, "archive read failed")
	}
	logger.Debug("loaded archived payload", "key", key, "location", entry.Location, "fetched_at", entry.FetchedAt.Format(time.RFC3339))
	return Payload{
		Data:      entry.Payload,
		Location:  entry.Location,
		FetchedAt: entry.FetchedAt,
		Archived:  true,
	}, nil
}

func snippet(body []byte) string {
	const limit = 200
	text := strings.TrimSpace(string(body))
	if len(text) > limit {
		return fmt.Sprintf("%s... (%d bytes)", text[:limit], len(text))
	}
	return text
}
