package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/khoahotran/openforge/internal/application/service"
	"github.com/khoahotran/openforge/internal/domain/document"
	"github.com/khoahotran/openforge/internal/domain/wallet"
	"github.com/khoahotran/openforge/pkg/apperror"
	"github.com/khoahotran/openforge/pkg/logger"
	"github.com/khoahotran/openforge/pkg/metrics"
)

var tracer = otel.Tracer("resolve_usecase")

func ProfileKey(address string) string { return "profile:" + wallet.Normalize(address) }

func ProjectKey(id uint64) string { return "project:" + strconv.FormatUint(id, 10) }

func DocumentKey(cid string) string { return "cid:" + cid }

// Resolver is the read-through path from registry records to pinned
// documents. Concurrent misses on the same key each fetch independently.
type Resolver struct {
	profiles service.ProfileRegistry
	projects service.ProjectRegistry
	fetcher  service.DocumentFetcher
	cache    service.Cache
	images   service.ImageURLBuilder
	logger   logger.Logger
	now      func() time.Time
}

type Option func(*Resolver)

// WithImageURLs attaches gateway and thumbnail URL building to resolved views.
func WithImageURLs(b service.ImageURLBuilder) Option {
	return func(r *Resolver) { r.images = b }
}

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func NewResolver(
	profiles service.ProfileRegistry,
	projects service.ProjectRegistry,
	fetcher service.DocumentFetcher,
	cache service.Cache,
	log logger.Logger,
	opts ...Option,
) *Resolver {
	r := &Resolver{
		profiles: profiles,
		projects: projects,
		fetcher:  fetcher,
		cache:    cache,
		logger:   log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveDocument returns the raw JSON pinned at cid.
func (r *Resolver) ResolveDocument(ctx context.Context, cid string) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "ResolveDocument")
	defer span.End()

	cid = document.NormalizeCID(cid)
	if err := document.ValidateCID(cid); err != nil {
		return nil, apperror.NewValidation("cid", err.Error())
	}
	raw, err := r.fetchDocument(ctx, cid)
	if err != nil {
		span.RecordError(err)
		return nil, &apperror.ResolutionError{Key: cid, Err: err}
	}
	return raw, nil
}

// Prime replaces the entry for key with a freshly published document so the
// next read does not go back to the registry or a gateway.
func (r *Resolver) Prime(ctx context.Context, key, cid string, doc any, record any) {
	raw, err := json.Marshal(doc)
	if err != nil {
		r.logger.Warn("Failed to encode document for cache prime", zap.String("key", key), zap.Error(err))
		return
	}
	entry := &service.CacheEntry{CID: cid, Document: raw, FetchedAt: r.now()}
	if record != nil {
		if entry.Record, err = json.Marshal(record); err != nil {
			r.logger.Warn("Failed to encode record for cache prime", zap.String("key", key), zap.Error(err))
			return
		}
	}
	r.store(ctx, key, entry)
	r.store(ctx, DocumentKey(cid), &service.CacheEntry{CID: cid, Document: raw, FetchedAt: entry.FetchedAt})
}

// Invalidate drops the given keys.
func (r *Resolver) Invalidate(ctx context.Context, keys ...string) {
	if err := r.cache.Delete(ctx, keys...); err != nil {
		r.logger.Warn("Failed to invalidate cache keys", zap.Strings("keys", keys), zap.Error(err))
	}
}

// fetchDocument reads a CID through the cid: cache. Content at a CID never
// changes, so only the TTL bounds these entries.
func (r *Resolver) fetchDocument(ctx context.Context, cid string) (json.RawMessage, error) {
	key := DocumentKey(cid)
	if entry := r.lookup(ctx, "document", key); entry != nil && !entry.Negative {
		return entry.Document, nil
	}
	raw, err := r.fetcher.Fetch(ctx, cid)
	if err != nil {
		return nil, err
	}
	r.store(ctx, key, &service.CacheEntry{CID: cid, Document: raw, FetchedAt: r.now()})
	return raw, nil
}

// lookup treats cache failures as misses.
func (r *Resolver) lookup(ctx context.Context, kind, key string) *service.CacheEntry {
	entry, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.Warn("Cache read failed, falling through", zap.String("key", key), zap.Error(err))
		metrics.CacheLookups.WithLabelValues(kind, "error").Inc()
		return nil
	}
	switch {
	case entry == nil:
		metrics.CacheLookups.WithLabelValues(kind, "miss").Inc()
	case entry.Negative:
		metrics.CacheLookups.WithLabelValues(kind, "negative_hit").Inc()
	default:
		metrics.CacheLookups.WithLabelValues(kind, "hit").Inc()
	}
	return entry
}

func (r *Resolver) store(ctx context.Context, key string, entry *service.CacheEntry) {
	if err := r.cache.Set(ctx, key, entry); err != nil {
		r.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (r *Resolver) storeNegative(ctx context.Context, key string) {
	r.store(ctx, key, &service.CacheEntry{Negative: true, FetchedAt: r.now()})
}

func (r *Resolver) gatewayURL(cid string) string {
	if r.images == nil || cid == "" {
		return ""
	}
	return r.images.GatewayURL(cid)
}

func (r *Resolver) thumbnailURL(cid string) string {
	if r.images == nil || cid == "" {
		return ""
	}
	url, err := r.images.ThumbnailURL(cid)
	if err != nil {
		r.logger.Debug("Thumbnail URL unavailable", zap.String("cid", cid), zap.Error(err))
		return ""
	}
	return url
}

// registryError wraps a failed registry read for key. Not-found passes
// through unchanged so callers can treat it as a negative result.
func registryError(key string, err error) error {
	if errors.Is(err, apperror.ErrNotFound) {
		return err
	}
	return &apperror.ResolutionError{Key: key, Err: fmt.Errorf("registry lookup: %w", err)}
}
