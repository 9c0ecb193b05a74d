package resolve

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/khoahotran/openforge/internal/application/service"
	"github.com/khoahotran/openforge/internal/domain/document"
	"github.com/khoahotran/openforge/internal/domain/profile"
	"github.com/khoahotran/openforge/internal/domain/wallet"
	"github.com/khoahotran/openforge/pkg/apperror"
)

const DefaultBatchConcurrency = 8

type ResolvedProfile struct {
	Address            string                    `json:"address"`
	ShortAddress       string                    `json:"short_address"`
	DisplayName        string                    `json:"display_name"`
	CID                string                    `json:"cid"`
	Document           *document.ProfileDocument `json:"document"`
	AvatarURL          string                    `json:"avatar_url,omitempty"`
	AvatarThumbnailURL string                    `json:"avatar_thumbnail_url,omitempty"`
	FetchedAt          time.Time                 `json:"fetched_at"`
}

// ResolveProfile returns the current profile document for address, or nil
// when the address has no profile.
func (r *Resolver) ResolveProfile(ctx context.Context, address string) (*ResolvedProfile, error) {
	ctx, span := tracer.Start(ctx, "ResolveProfile")
	defer span.End()
	span.SetAttributes(attribute.String("address", address))

	if !wallet.IsAddress(address) {
		return nil, apperror.NewValidation("address", "invalid wallet address")
	}
	key := ProfileKey(address)

	if entry := r.lookup(ctx, "profile", key); entry != nil {
		if entry.Negative {
			return nil, nil
		}
		doc, err := document.DecodeProfile(entry.CID, entry.Document)
		if err == nil {
			return r.profileView(address, entry.CID, doc, entry.FetchedAt), nil
		}
		r.logger.Warn("Dropping undecodable cached profile", zap.String("key", key), zap.Error(err))
	}

	// getProfile reverts with ProfileNotFound for unknown wallets, so the
	// existence check runs first and a not-found read is still negative.
	exists, err := r.profiles.HasProfile(ctx, address)
	if err != nil {
		span.RecordError(err)
		return nil, registryError(address, err)
	}
	if !exists {
		r.storeNegative(ctx, key)
		return nil, nil
	}
	cid, err := r.profiles.ProfileCID(ctx, address)
	if errors.Is(err, apperror.ErrNotFound) {
		r.storeNegative(ctx, key)
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, registryError(address, err)
	}
	if cid == "" {
		r.storeNegative(ctx, key)
		return nil, nil
	}

	raw, err := r.fetchDocument(ctx, cid)
	if err != nil {
		span.RecordError(err)
		return nil, &apperror.ResolutionError{Key: address, Err: err}
	}
	doc, err := document.DecodeProfile(cid, raw)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	fetchedAt := r.now()
	r.store(ctx, key, &service.CacheEntry{CID: cid, Document: raw, FetchedAt: fetchedAt})
	return r.profileView(address, cid, doc, fetchedAt), nil
}

func (r *Resolver) profileView(address, cid string, doc *document.ProfileDocument, fetchedAt time.Time) *ResolvedProfile {
	v := &ResolvedProfile{
		Address:      address,
		ShortAddress: profile.FormatAddress(address),
		DisplayName:  profile.DisplayName(doc.Name, address),
		CID:          cid,
		Document:     doc,
		FetchedAt:    fetchedAt,
	}
	if doc.Avatar != nil {
		v.AvatarURL = r.gatewayURL(doc.Avatar.CID)
		v.AvatarThumbnailURL = r.thumbnailURL(doc.Avatar.CID)
	}
	return v
}

// ResolveProfiles resolves many addresses at once. Invalid addresses are
// dropped, duplicates are collapsed case-insensitively, and a failure for
// one address only leaves that address nil. The call itself fails only
// when ctx is done.
func (r *Resolver) ResolveProfiles(ctx context.Context, addresses []string, concurrency int) (map[string]*ResolvedProfile, error) {
	ctx, span := tracer.Start(ctx, "ResolveProfiles")
	defer span.End()

	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}

	unique := make([]string, 0, len(addresses))
	seen := make(map[string]struct{}, len(addresses))
	for _, a := range addresses {
		if !wallet.IsAddress(a) {
			continue
		}
		norm := wallet.Normalize(a)
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		unique = append(unique, norm)
	}
	span.SetAttributes(attribute.Int("addresses", len(unique)))

	var mu sync.Mutex
	results := make(map[string]*ResolvedProfile, len(unique))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, address := range unique {
		g.Go(func() error {
			p, err := r.ResolveProfile(gctx, address)
			if err != nil {
				r.logger.Warn("Batch resolve failed for address", zap.String("address", address), zap.Error(err))
				p = nil
			}
			mu.Lock()
			results[address] = p
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

type ProfileLinks struct {
	Address  string         `json:"address"`
	Links    []profile.Link `json:"links"`
	CleanBio string         `json:"clean_bio"`
}

// ResolveProfileLinks extracts social links from the profile bio.
func (r *Resolver) ResolveProfileLinks(ctx context.Context, address string) (*ProfileLinks, error) {
	p, err := r.ResolveProfile(ctx, address)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperror.NewNotFound("profile", address)
	}
	links, clean := profile.ExtractLinks(p.Document.Bio)
	if links == nil {
		links = []profile.Link{}
	}
	return &ProfileLinks{Address: p.Address, Links: links, CleanBio: clean}, nil
}
