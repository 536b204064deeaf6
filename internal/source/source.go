// Package source builds ready-to-query data sources: it fetches a provider's
// raw payload, parses it, applies the provider's reformatting and unifies
// the date column. A DataSource either comes back fully built or not at all.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"epifeed/internal/csvtable"
	"epifeed/internal/dates"
	"epifeed/internal/fetch"
	"epifeed/internal/ingest"
	"epifeed/internal/logger"
	"epifeed/internal/model"
	"epifeed/internal/providers"
)

type DataSource struct {
	variant    providers.Variant
	descriptor fetch.Descriptor
	origin     fetch.Descriptor
	location   string
	fetchedAt  time.Time
	size       int
	table      *model.Table
}

type options struct {
	descriptor fetch.Descriptor
	fallback   fetch.Descriptor
	fetcher    *fetch.Fetcher
	settings   providers.Settings
	archiveKey *string
}

type Option func(*options)

// WithDescriptor overrides the provider's default descriptor.
func WithDescriptor(d fetch.Descriptor) Option {
	return func(o *options) {
		o.descriptor = d
	}
}

// WithFallback is tried once when fetching the primary descriptor fails.
func WithFallback(d fetch.Descriptor) Option {
	return func(o *options) {
		o.fallback = d
	}
}

func WithFetcher(f *fetch.Fetcher) Option {
	return func(o *options) {
		if f != nil {
			o.fetcher = f
		}
	}
}

func WithSettings(s providers.Settings) Option {
	return func(o *options) {
		o.settings = s
	}
}

// WithArchiveKey sets the key a freshly fetched payload is archived under.
// An empty key disables archiving.
func WithArchiveKey(key string) Option {
	return func(o *options) {
		o.archiveKey = &key
	}
}

// New runs the whole pipeline for variant. On any failure it returns nil
// and an error carrying the *ingest.Error of the stage that failed.
func New(ctx context.Context, variant providers.Variant, opts ...Option) (*DataSource, error) {
	if !variant.Valid() {
		return nil, fmt.Errorf("source: %w: %s", providers.ErrUnknownVariant, variant)
	}

	o := options{settings: providers.DefaultSettings()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fetcher == nil {
		o.fetcher = fetch.New(fetch.Config{})
	}

	descriptor := o.descriptor
	if descriptor.IsZero() {
		d, err := o.settings.Descriptor(variant)
		if err != nil {
			return nil, fmt.Errorf("source: %w", err)
		}
		descriptor = d
	}
	archiveKey := descriptor.ArchiveKey
	if o.archiveKey != nil {
		archiveKey = *o.archiveKey
	}

	payload, origin, err := fetchWithFallback(ctx, o.fetcher, descriptor, o.fallback)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", variant, err)
	}

	table, err := build(variant, payload)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", variant, err)
	}

	o.fetcher.Archive(ctx, archiveKey, payload)

	logger.Info("source ready", "provider", variant, "origin", origin, "rows", table.Len())
	return &DataSource{
		variant:    variant,
		descriptor: descriptor,
		origin:     origin,
		location:   payload.Location,
		fetchedAt:  payload.FetchedAt,
		size:       len(payload.Data),
		table:      table,
	}, nil
}

func fetchWithFallback(ctx context.Context, f *fetch.Fetcher, primary, fallback fetch.Descriptor) (fetch.Payload, fetch.Descriptor, error) {
	payload, err := f.Fetch(ctx, primary)
	if err == nil {
		return payload, primary, nil
	}
	if fallback.IsZero() {
		return fetch.Payload{}, fetch.Descriptor{}, err
	}

	logger.Warn("fetch failed, using fallback", "source", primary, "fallback", fallback, "error", err)
	payload, fallbackErr := f.Fetch(ctx, fallback)
	if fallbackErr != nil {
		return fetch.Payload{}, fetch.Descriptor{}, errors.Join(err, fallbackErr)
	}
	return payload, fallback, nil
}

func build(variant providers.Variant, payload fetch.Payload) (*model.Table, error) {
	raw, err := csvtable.Parse(payload.Data)
	if err != nil {
		return nil, withSource(err, payload.Location)
	}
	reformatted, err := providers.Reformat(variant, raw)
	if err != nil {
		return nil, withSource(err, payload.Location)
	}
	unified, err := dates.Unify(reformatted, providers.DateColumn(variant))
	if err != nil {
		return nil, withSource(err, payload.Location)
	}
	return unified, nil
}

// withSource fills in the location on stage errors raised without one.
func withSource(err error, location string) error {
	var ingestErr *ingest.Error
	if errors.As(err, &ingestErr) && ingestErr.Source == "" {
		ingestErr.Source = location
	}
	return err
}

func (s *DataSource) Variant() providers.Variant {
	return s.variant
}

// Descriptor is what the source was asked to read.
func (s *DataSource) Descriptor() fetch.Descriptor {
	return s.descriptor
}

// Origin is the descriptor that actually served the data. It differs from
// Descriptor when the fallback was used.
func (s *DataSource) Origin() fetch.Descriptor {
	return s.origin
}

func (s *DataSource) FromFallback() bool {
	return s.origin != s.descriptor
}

// Location is the resolved URL or file path the payload was read from.
func (s *DataSource) Location() string {
	return s.location
}

func (s *DataSource) FetchedAt() time.Time {
	return s.fetchedAt
}

// PayloadSize is the size in bytes of the raw payload.
func (s *DataSource) PayloadSize() int {
	return s.size
}

// FullData returns the normalized table. Tables are immutable, so the
// result is safe to share.
func (s *DataSource) FullData() *model.Table {
	return s.table
}

// RegionData applies the provider's region rule. A key with no matching
// rows yields an empty table.
func (s *DataSource) RegionData(key string) *model.Table {
	region, err := providers.RegionFilter(s.variant, s.table, key)
	if err != nil {
		return s.table.Empty()
	}
	return region
}

// DateSpan returns the earliest and latest dates in the date column. ok is
// false when the table has no dated rows.
func (s *DataSource) DateSpan() (first, last time.Time, ok bool) {
	column := s.table.DateColumn()
	if column == "" {
		return time.Time{}, time.Time{}, false
	}
	values, err := s.table.ColumnValues(column)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	for _, v := range values {
		if !v.IsTime() {
			continue
		}
		if !ok || v.Time.Before(first) {
			first = v.Time
		}
		if !ok || v.Time.After(last) {
			last = v.Time
		}
		ok = true
	}
	return first, last, ok
}
