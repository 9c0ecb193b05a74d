package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/khoahotran/openforge/internal/application/service"
	"github.com/khoahotran/openforge/internal/domain/document"
	"github.com/khoahotran/openforge/internal/domain/profile"
	"github.com/khoahotran/openforge/internal/domain/project"
	"github.com/khoahotran/openforge/pkg/apperror"
)

type ResolvedProject struct {
	ID                uint64                    `json:"id"`
	Builder           string                    `json:"builder"`
	BuilderShort      string                    `json:"builder_short"`
	Status            project.Status            `json:"status"`
	StatusName        string                    `json:"status_name"`
	CID               string                    `json:"cid"`
	Document          *document.ProjectDocument `json:"document"`
	CoverURL          string                    `json:"cover_url,omitempty"`
	CoverThumbnailURL string                    `json:"cover_thumbnail_url,omitempty"`
	GalleryURLs       []string                  `json:"gallery_urls,omitempty"`
	FetchedAt         time.Time                 `json:"fetched_at"`
}

// ResolveProject returns the project with its current metadata, or nil when
// the id has no record or the record carries no CID.
func (r *Resolver) ResolveProject(ctx context.Context, id uint64) (*ResolvedProject, error) {
	ctx, span := tracer.Start(ctx, "ResolveProject")
	defer span.End()
	span.SetAttributes(attribute.Int64("project_id", int64(id)))

	key := ProjectKey(id)
	if entry := r.lookup(ctx, "project", key); entry != nil {
		if entry.Negative {
			return nil, nil
		}
		view, err := r.projectFromEntry(entry)
		if err == nil {
			return view, nil
		}
		r.logger.Warn("Dropping undecodable cached project", zap.String("key", key), zap.Error(err))
	}

	rec, err := r.projects.Project(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			r.storeNegative(ctx, key)
			return nil, nil
		}
		span.RecordError(err)
		return nil, registryError(key, err)
	}
	if rec.CID == "" {
		r.storeNegative(ctx, key)
		return nil, nil
	}

	raw, err := r.fetchDocument(ctx, rec.CID)
	if err != nil {
		span.RecordError(err)
		return nil, &apperror.ResolutionError{Key: strconv.FormatUint(id, 10), Err: err}
	}
	doc, err := document.DecodeProject(rec.CID, raw)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	recRaw, err := json.Marshal(rec)
	if err != nil {
		return nil, apperror.NewInternal("failed to encode project record", err)
	}
	fetchedAt := r.now()
	r.store(ctx, key, &service.CacheEntry{CID: rec.CID, Document: raw, Record: recRaw, FetchedAt: fetchedAt})
	return r.projectView(rec, doc, fetchedAt), nil
}

func (r *Resolver) projectFromEntry(entry *service.CacheEntry) (*ResolvedProject, error) {
	var rec project.Record
	if err := json.Unmarshal(entry.Record, &rec); err != nil {
		return nil, err
	}
	doc, err := document.DecodeProject(entry.CID, entry.Document)
	if err != nil {
		return nil, err
	}
	return r.projectView(&rec, doc, entry.FetchedAt), nil
}

func (r *Resolver) projectView(rec *project.Record, doc *document.ProjectDocument, fetchedAt time.Time) *ResolvedProject {
	v := &ResolvedProject{
		ID:           rec.ID,
		Builder:      rec.Builder,
		BuilderShort: profile.FormatAddress(rec.Builder),
		Status:       rec.Status,
		StatusName:   rec.Status.String(),
		CID:          rec.CID,
		Document:     doc,
		FetchedAt:    fetchedAt,
	}
	if cover := doc.Cover(); cover != nil {
		v.CoverURL = r.gatewayURL(cover.CID)
		v.CoverThumbnailURL = r.thumbnailURL(cover.CID)
	}
	for _, img := range doc.Gallery() {
		if url := r.gatewayURL(img.CID); url != "" {
			v.GalleryURLs = append(v.GalleryURLs, url)
		}
	}
	return v
}
