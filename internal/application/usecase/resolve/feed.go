package resolve

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/khoahotran/openforge/internal/domain/project"
	"github.com/khoahotran/openforge/pkg/logger"
)

type FeedConfig struct {
	FirstPage   int
	NextPage    int
	Concurrency int
	// FrontURL is the web app origin used for RSS item links.
	FrontURL string
	// RSSItems bounds the RSS feed to the newest projects.
	RSSItems int
}

// FeedUseCase pages over the project registry in id order.
type FeedUseCase struct {
	resolver *Resolver
	projects projectCounter
	cfg      FeedConfig
	logger   logger.Logger
}

type projectCounter interface {
	NextProjectID(ctx context.Context) (uint64, error)
}

func NewFeedUseCase(resolver *Resolver, cfg FeedConfig, log logger.Logger) *FeedUseCase {
	if cfg.FirstPage <= 0 {
		cfg.FirstPage = 8
	}
	if cfg.NextPage <= 0 {
		cfg.NextPage = 4
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultBatchConcurrency
	}
	if cfg.RSSItems <= 0 {
		cfg.RSSItems = 20
	}
	return &FeedUseCase{resolver: resolver, projects: resolver.projects, cfg: cfg, logger: log}
}

type ListProjectsInput struct {
	Page   int
	Status *project.Status
}

type FeedItem struct {
	ID          uint64           `json:"id"`
	HasMetadata bool             `json:"has_metadata"`
	Project     *ResolvedProject `json:"project,omitempty"`
}

type ListProjectsOutput struct {
	Items   []FeedItem `json:"items"`
	Page    int        `json:"page"`
	Total   uint64     `json:"total"`
	HasMore bool       `json:"has_more"`
}

// window returns the [start, end) id range of a page: the first page is
// larger so the initial view fills the screen.
func (uc *FeedUseCase) window(page int, total uint64) (uint64, uint64) {
	var start uint64
	if page > 0 {
		start = uint64(uc.cfg.FirstPage) + uint64(page-1)*uint64(uc.cfg.NextPage)
	}
	size := uint64(uc.cfg.FirstPage)
	if page > 0 {
		size = uint64(uc.cfg.NextPage)
	}
	end := min(start+size, total)
	if start > total {
		start = total
	}
	return start, end
}

// Execute resolves one page of projects. Items whose metadata cannot be
// resolved are kept with HasMetadata=false; the status filter applies to
// the page window, so a filtered page may hold fewer items.
func (uc *FeedUseCase) Execute(ctx context.Context, input ListProjectsInput) (*ListProjectsOutput, error) {
	ctx, span := tracer.Start(ctx, "ListProjects")
	defer span.End()

	if input.Page < 0 {
		input.Page = 0
	}
	total, err := uc.projects.NextProjectID(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, registryError("nextProjectId", err)
	}

	start, end := uc.window(input.Page, total)
	items := uc.resolveRange(ctx, start, end)

	out := &ListProjectsOutput{Items: make([]FeedItem, 0, len(items)), Page: input.Page, Total: total, HasMore: end < total}
	for _, it := range items {
		if input.Status != nil && (it.Project == nil || it.Project.Status != *input.Status) {
			continue
		}
		out.Items = append(out.Items, it)
	}
	return out, nil
}

func (uc *FeedUseCase) resolveRange(ctx context.Context, start, end uint64) []FeedItem {
	if end <= start {
		return nil
	}
	items := make([]FeedItem, end-start)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.cfg.Concurrency)
	for id := start; id < end; id++ {
		g.Go(func() error {
			item := FeedItem{ID: id}
			p, err := uc.resolver.ResolveProject(gctx, id)
			if err != nil {
				uc.logger.Warn("Failed to resolve project for feed", zap.Uint64("project_id", id), zap.Error(err))
			} else if p != nil {
				item.Project = p
				item.HasMetadata = true
			}
			// Each goroutine writes only its own slot.
			items[id-start] = item
			return nil
		})
	}
	_ = g.Wait()
	return items
}

// RSS builds a feed of the newest projects that have metadata.
func (uc *FeedUseCase) RSS(ctx context.Context) (*feeds.Feed, error) {
	uc.logger.Info("Generating project RSS feed...")

	total, err := uc.projects.NextProjectID(ctx)
	if err != nil {
		uc.logger.Error("Failed to read project count for RSS", err)
		return nil, registryError("nextProjectId", err)
	}

	var start uint64
	if total > uint64(uc.cfg.RSSItems) {
		start = total - uint64(uc.cfg.RSSItems)
	}
	items := uc.resolveRange(ctx, start, total)

	front := strings.TrimSuffix(uc.cfg.FrontURL, "/")
	feed := &feeds.Feed{
		Title:       "OpenForge - Projects",
		Link:        &feeds.Link{Href: front + "/projects"},
		Description: "Newest projects published on OpenForge.",
		Created:     time.Now(),
	}

	for i := len(items) - 1; i >= 0; i-- {
		it := items[i]
		if !it.HasMetadata {
			continue
		}
		doc := it.Project.Document
		item := &feeds.Item{
			Id:          it.Project.CID,
			Title:       doc.Title,
			Link:        &feeds.Link{Href: fmt.Sprintf("%s/projects/%d", front, it.ID)},
			Description: doc.Description,
			Author:      &feeds.Author{Name: it.Project.BuilderShort},
			Created:     time.UnixMilli(doc.CreatedAt),
		}
		if doc.UpdatedAt != nil {
			item.Updated = time.UnixMilli(*doc.UpdatedAt)
		}
		feed.Items = append(feed.Items, item)
	}

	uc.logger.Info("Project RSS feed generated", zap.Int("item_count", len(feed.Items)))
	return feed, nil
}
