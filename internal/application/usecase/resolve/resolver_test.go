package resolve_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/khoahotran/openforge/adapters/cache"
	"github.com/khoahotran/openforge/internal/application/service/servicetest"
	"github.com/khoahotran/openforge/internal/application/usecase/resolve"
	"github.com/khoahotran/openforge/internal/domain/document"
	"github.com/khoahotran/openforge/internal/domain/project"
	"github.com/khoahotran/openforge/pkg/apperror"
	"github.com/khoahotran/openforge/pkg/logger"
)

const (
	ada     = "0xAbC0000000000000000000000000000000000001"
	grace   = "0x0000000000000000000000000000000000000002"
	nobody  = "0x0000000000000000000000000000000000000003"
	cacheTT = 5 * time.Minute
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func profileDoc(name string) *document.ProfileDocument {
	return &document.ProfileDocument{
		Type:      document.KindProfile,
		Version:   document.Version,
		Name:      name,
		Bio:       "Builder",
		Skills:    []string{"rust"},
		CreatedAt: 1700000000000,
	}
}

func projectDoc(title string) *document.ProjectDocument {
	return &document.ProjectDocument{
		Type:        document.KindProject,
		Version:     document.Version,
		Title:       title,
		Description: "A project description",
		Tags:        []string{"defi"},
		CreatedAt:   1700000000000,
	}
}

type ResolverTestSuite struct {
	suite.Suite
	clock    *fakeClock
	registry *servicetest.Registry
	store    *servicetest.Store
	resolver *resolve.Resolver
}

func (s *ResolverTestSuite) SetupTest() {
	s.clock = &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s.registry = servicetest.NewRegistry()
	s.store = servicetest.NewStore()
	c := cache.NewMemoryCacheWithClock(cacheTT, s.clock.Now)
	s.resolver = resolve.NewResolver(s.registry, s.registry, s.store, c, logger.NewNopLogger(), resolve.WithClock(s.clock.Now))
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverTestSuite))
}

func (s *ResolverTestSuite) TestResolveProfile_CachedWithinTTL() {
	ctx := context.Background()
	s.registry.SeedProfile(ada, s.store.Put(profileDoc("Ada")), time.Time{})

	first, err := s.resolver.ResolveProfile(ctx, ada)
	s.Require().NoError(err)
	second, err := s.resolver.ResolveProfile(ctx, ada)
	s.Require().NoError(err)

	s.Equal("Ada", first.Document.Name)
	s.Equal(first.Document, second.Document)
	// hasProfile then getProfile, once.
	s.EqualValues(2, s.registry.ProfileReads.Load())
	s.EqualValues(1, s.store.Fetches.Load())
}

func (s *ResolverTestSuite) TestResolveProfile_RefetchAfterTTL() {
	ctx := context.Background()
	s.registry.SeedProfile(ada, s.store.Put(profileDoc("Ada")), time.Time{})

	_, err := s.resolver.ResolveProfile(ctx, ada)
	s.Require().NoError(err)
	s.clock.Advance(cacheTT + time.Second)
	_, err = s.resolver.ResolveProfile(ctx, ada)
	s.Require().NoError(err)

	s.EqualValues(4, s.registry.ProfileReads.Load())
	s.EqualValues(2, s.store.Fetches.Load())
}

func (s *ResolverTestSuite) TestResolveProfile_NegativeCached() {
	ctx := context.Background()

	for range 2 {
		p, err := s.resolver.ResolveProfile(ctx, nobody)
		s.Require().NoError(err)
		s.Nil(p)
	}
	s.EqualValues(1, s.registry.ProfileReads.Load())
	s.Zero(s.store.Fetches.Load())
}

func (s *ResolverTestSuite) TestResolveProfile_RevertingRegistryIsNegative() {
	ctx := context.Background()
	s.registry.MissingProfileReverts = true

	for range 2 {
		p, err := s.resolver.ResolveProfile(ctx, nobody)
		s.Require().NoError(err)
		s.Nil(p)
	}
	s.EqualValues(1, s.registry.ProfileReads.Load())
	s.Zero(s.store.Fetches.Load())
}

// staleExistence reports every wallet as registered, so getProfile is the
// read that discovers the profile is gone.
type staleExistence struct {
	*servicetest.Registry
}

func (staleExistence) HasProfile(context.Context, string) (bool, error) {
	return true, nil
}

func (s *ResolverTestSuite) TestResolveProfile_NotFoundRevertIsNegative() {
	ctx := context.Background()
	s.registry.MissingProfileReverts = true
	c := cache.NewMemoryCacheWithClock(cacheTT, s.clock.Now)
	r := resolve.NewResolver(staleExistence{s.registry}, s.registry, s.store, c, logger.NewNopLogger(), resolve.WithClock(s.clock.Now))

	for range 2 {
		p, err := r.ResolveProfile(ctx, nobody)
		s.Require().NoError(err)
		s.Nil(p)
	}
	s.EqualValues(1, s.registry.ProfileReads.Load())

	entry, err := c.Get(ctx, resolve.ProfileKey(nobody))
	s.Require().NoError(err)
	s.Require().NotNil(entry)
	s.True(entry.Negative)
}

func (s *ResolverTestSuite) TestResolveProfile_CaseInsensitiveKey() {
	ctx := context.Background()
	s.registry.SeedProfile(ada, s.store.Put(profileDoc("Ada")), time.Time{})

	_, err := s.resolver.ResolveProfile(ctx, ada)
	s.Require().NoError(err)
	_, err = s.resolver.ResolveProfile(ctx, strings.ToLower(ada))
	s.Require().NoError(err)

	s.EqualValues(2, s.registry.ProfileReads.Load())
}

func (s *ResolverTestSuite) TestResolveProfile_InvalidAddress() {
	_, err := s.resolver.ResolveProfile(context.Background(), "0x123")
	s.ErrorIs(err, apperror.ErrInvalidInput)
	s.Zero(s.registry.ProfileReads.Load())
}

func (s *ResolverTestSuite) TestResolveProfile_SchemaMismatchNotCached() {
	ctx := context.Background()
	s.registry.SeedProfile(ada, s.store.Put(projectDoc("Not a profile")), time.Time{})

	_, err := s.resolver.ResolveProfile(ctx, ada)
	s.ErrorIs(err, apperror.ErrSchemaMismatch)
	_, err = s.resolver.ResolveProfile(ctx, ada)
	s.ErrorIs(err, apperror.ErrSchemaMismatch)

	s.EqualValues(4, s.registry.ProfileReads.Load())
}

func (s *ResolverTestSuite) TestResolveProfile_FetchFailureNotCached() {
	ctx := context.Background()
	cid := s.store.Put(profileDoc("Gone"))
	s.Require().NoError(s.store.Unpin(ctx, cid))
	s.registry.SeedProfile(ada, cid, time.Time{})

	_, err := s.resolver.ResolveProfile(ctx, ada)
	s.ErrorIs(err, apperror.ErrFetch)

	var resErr *apperror.ResolutionError
	s.Require().ErrorAs(err, &resErr)
	s.Equal(ada, resErr.Key)

	_, err = s.resolver.ResolveProfile(ctx, ada)
	s.ErrorIs(err, apperror.ErrFetch)
	s.EqualValues(4, s.registry.ProfileReads.Load())
}

func (s *ResolverTestSuite) TestPrime_SkipsRegistry() {
	ctx := context.Background()
	doc := profileDoc("Primed")
	cid := s.store.Put(doc)

	s.resolver.Prime(ctx, resolve.ProfileKey(ada), cid, doc, nil)
	p, err := s.resolver.ResolveProfile(ctx, ada)

	s.Require().NoError(err)
	s.Equal("Primed", p.Document.Name)
	s.Equal(cid, p.CID)
	s.Zero(s.registry.ProfileReads.Load())
	s.Zero(s.store.Fetches.Load())
}

func (s *ResolverTestSuite) TestResolveProfiles_Batch() {
	ctx := context.Background()
	s.registry.SeedProfile(ada, s.store.Put(profileDoc("Ada")), time.Time{})
	s.registry.SeedProfile(grace, s.store.Put(profileDoc("Grace")), time.Time{})

	got, err := s.resolver.ResolveProfiles(ctx, []string{ada, strings.ToLower(ada), grace, nobody, "not-an-address"}, 2)
	s.Require().NoError(err)

	s.Len(got, 3)
	s.Equal("Ada", got[strings.ToLower(ada)].Document.Name)
	s.Equal("Grace", got[grace].Document.Name)
	s.Contains(got, nobody)
	s.Nil(got[nobody])
}

func (s *ResolverTestSuite) TestResolveProfiles_OneFailureLeavesOthers() {
	ctx := context.Background()
	s.registry.SeedProfile(ada, s.store.Put(profileDoc("Ada")), time.Time{})
	gone := s.store.Put(profileDoc("Gone"))
	s.Require().NoError(s.store.Unpin(ctx, gone))
	s.registry.SeedProfile(grace, gone, time.Time{})

	got, err := s.resolver.ResolveProfiles(ctx, []string{ada, grace, nobody}, 3)
	s.Require().NoError(err)

	s.Len(got, 3)
	s.Require().NotNil(got[strings.ToLower(ada)])
	s.Equal("Ada", got[strings.ToLower(ada)].Document.Name)
	s.Contains(got, grace)
	s.Nil(got[grace])
	s.Nil(got[nobody])

	// The failed fetch was not cached, the successful one was.
	fetches := s.store.Fetches.Load()
	_, err = s.resolver.ResolveProfile(ctx, grace)
	s.ErrorIs(err, apperror.ErrFetch)
	_, err = s.resolver.ResolveProfile(ctx, ada)
	s.Require().NoError(err)
	s.Equal(fetches+1, s.store.Fetches.Load())
}

func (s *ResolverTestSuite) TestResolveProfiles_CancelledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.resolver.ResolveProfiles(ctx, []string{ada, grace}, 2)
	s.ErrorIs(err, context.Canceled)
}

func (s *ResolverTestSuite) TestResolveProject() {
	ctx := context.Background()
	id := s.registry.SeedProject(ada, s.store.Put(projectDoc("Forge")), project.StatusFunding)

	p, err := s.resolver.ResolveProject(ctx, id)
	s.Require().NoError(err)
	s.Equal("Forge", p.Document.Title)
	s.Equal(strings.ToLower(ada), p.Builder)
	s.Equal(project.StatusFunding, p.Status)
	s.Equal("funding", p.StatusName)

	again, err := s.resolver.ResolveProject(ctx, id)
	s.Require().NoError(err)
	s.Equal(p.Status, again.Status)
	s.Equal(p.Builder, again.Builder)
	s.EqualValues(1, s.registry.ProjectReads.Load())
}

func (s *ResolverTestSuite) TestResolveProject_MissingIsNegative() {
	ctx := context.Background()

	for range 2 {
		p, err := s.resolver.ResolveProject(ctx, 99)
		s.Require().NoError(err)
		s.Nil(p)
	}
	s.EqualValues(1, s.registry.ProjectReads.Load())
}

func (s *ResolverTestSuite) TestResolveProject_EmptyCID() {
	id := s.registry.SeedProject(ada, "", project.StatusDraft)

	p, err := s.resolver.ResolveProject(context.Background(), id)
	s.Require().NoError(err)
	s.Nil(p)
}

func (s *ResolverTestSuite) TestResolveDocument() {
	ctx := context.Background()
	cid := s.store.Put(profileDoc("Raw"))

	raw, err := s.resolver.ResolveDocument(ctx, "ipfs://"+cid)
	s.Require().NoError(err)
	s.Contains(string(raw), `"name":"Raw"`)

	_, err = s.resolver.ResolveDocument(ctx, cid)
	s.Require().NoError(err)
	s.EqualValues(1, s.store.Fetches.Load())

	_, err = s.resolver.ResolveDocument(ctx, "not-a-cid")
	s.ErrorIs(err, apperror.ErrInvalidInput)
}

func (s *ResolverTestSuite) TestInvalidate() {
	ctx := context.Background()
	s.registry.SeedProfile(ada, s.store.Put(profileDoc("Ada")), time.Time{})

	_, err := s.resolver.ResolveProfile(ctx, ada)
	s.Require().NoError(err)
	s.resolver.Invalidate(ctx, resolve.ProfileKey(ada))
	_, err = s.resolver.ResolveProfile(ctx, ada)
	s.Require().NoError(err)

	s.EqualValues(4, s.registry.ProfileReads.Load())
}

func (s *ResolverTestSuite) TestResolveProfileLinks() {
	ctx := context.Background()
	doc := profileDoc("Ada")
	doc.Bio = "Building things. github.com/ada and mail me at ada@example.com"
	s.registry.SeedProfile(ada, s.store.Put(doc), time.Time{})

	links, err := s.resolver.ResolveProfileLinks(ctx, ada)
	s.Require().NoError(err)
	s.Require().NotEmpty(links.Links)
	s.NotContains(links.CleanBio, "ada@example.com")

	_, err = s.resolver.ResolveProfileLinks(ctx, nobody)
	s.ErrorIs(err, apperror.ErrNotFound)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "profile:"+strings.ToLower(ada), resolve.ProfileKey(ada))
	assert.Equal(t, "project:42", resolve.ProjectKey(42))
	assert.Equal(t, "cid:bafy", resolve.DocumentKey("bafy"))
}

func TestFeed(t *testing.T) {
	ctx := context.Background()
	registry := servicetest.NewRegistry()
	store := servicetest.NewStore()
	r := resolve.NewResolver(registry, registry, store, cache.NewMemoryCache(cacheTT), logger.NewNopLogger())

	for i := range 13 {
		status := project.StatusDraft
		if i%2 == 1 {
			status = project.StatusFunding
		}
		registry.SeedProject(ada, store.Put(projectDoc(fmt.Sprintf("Project %02d", i))), status)
	}
	feed := resolve.NewFeedUseCase(r, resolve.FeedConfig{FrontURL: "https://openforge.example/"}, logger.NewNopLogger())

	page0, err := feed.Execute(ctx, resolve.ListProjectsInput{Page: 0})
	require.NoError(t, err)
	assert.Len(t, page0.Items, 8)
	assert.EqualValues(t, 13, page0.Total)
	assert.True(t, page0.HasMore)
	assert.EqualValues(t, 0, page0.Items[0].ID)
	assert.Equal(t, "Project 07", page0.Items[7].Project.Document.Title)

	page1, err := feed.Execute(ctx, resolve.ListProjectsInput{Page: 1})
	require.NoError(t, err)
	require.Len(t, page1.Items, 4)
	assert.EqualValues(t, 8, page1.Items[0].ID)
	assert.True(t, page1.HasMore)

	page2, err := feed.Execute(ctx, resolve.ListProjectsInput{Page: 2})
	require.NoError(t, err)
	require.Len(t, page2.Items, 1)
	assert.EqualValues(t, 12, page2.Items[0].ID)
	assert.False(t, page2.HasMore)

	funding := project.StatusFunding
	filtered, err := feed.Execute(ctx, resolve.ListProjectsInput{Page: 0, Status: &funding})
	require.NoError(t, err)
	assert.Len(t, filtered.Items, 4)
	for _, it := range filtered.Items {
		assert.Equal(t, project.StatusFunding, it.Project.Status)
	}

	beyond, err := feed.Execute(ctx, resolve.ListProjectsInput{Page: 9})
	require.NoError(t, err)
	assert.Empty(t, beyond.Items)
	assert.False(t, beyond.HasMore)
}

func TestFeed_RSS(t *testing.T) {
	ctx := context.Background()
	registry := servicetest.NewRegistry()
	store := servicetest.NewStore()
	r := resolve.NewResolver(registry, registry, store, cache.NewMemoryCache(cacheTT), logger.NewNopLogger())

	registry.SeedProject(ada, store.Put(projectDoc("Oldest")), project.StatusDraft)
	registry.SeedProject(ada, "", project.StatusDraft)
	registry.SeedProject(ada, store.Put(projectDoc("Newest")), project.StatusFunding)

	feed := resolve.NewFeedUseCase(r, resolve.FeedConfig{FrontURL: "https://openforge.example/"}, logger.NewNopLogger())
	rss, err := feed.RSS(ctx)
	require.NoError(t, err)

	require.Len(t, rss.Items, 2)
	assert.Equal(t, "Newest", rss.Items[0].Title)
	assert.Equal(t, "https://openforge.example/projects/2", rss.Items[0].Link.Href)
	assert.Equal(t, "Oldest", rss.Items[1].Title)
}
