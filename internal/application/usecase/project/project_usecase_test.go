package project

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/khoahotran/openforge/adapters/cache"
	"github.com/khoahotran/openforge/internal/application/service/servicetest"
	"github.com/khoahotran/openforge/internal/application/usecase/publish"
	"github.com/khoahotran/openforge/internal/application/usecase/resolve"
	"github.com/khoahotran/openforge/internal/domain/document"
	"github.com/khoahotran/openforge/internal/domain/media"
	"github.com/khoahotran/openforge/internal/domain/pin"
	"github.com/khoahotran/openforge/internal/domain/project"
	"github.com/khoahotran/openforge/internal/domain/wallet"
	"github.com/khoahotran/openforge/pkg/apperror"
	"github.com/khoahotran/openforge/pkg/logger"
)

const (
	builder  = "0x00000000000000000000000000000000000000b1"
	stranger = "0x00000000000000000000000000000000000000c2"
)

// pngImage encodes a w x h image; the shade makes each call's bytes unique.
func pngImage(t *testing.T, w, h int, shade uint8) media.ImageFile {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{G: shade, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return media.ImageFile{Filename: "image.png", ContentType: "image/png", Data: buf.Bytes()}
}

type ProjectUseCaseTestSuite struct {
	suite.Suite
	now       time.Time
	registry  *servicetest.Registry
	store     *servicetest.Store
	ledger    *servicetest.Ledger
	scheduler *servicetest.Scheduler
	resolver  *resolve.Resolver
	create    *CreateProjectUseCase
	update    *UpdateProjectUseCase
	setStatus *SetStatusUseCase
}

func (s *ProjectUseCaseTestSuite) SetupTest() {
	s.now = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return s.now }
	log := logger.NewNopLogger()

	s.registry = servicetest.NewRegistry()
	s.registry.Now = clock
	s.store = servicetest.NewStore()
	s.ledger = servicetest.NewLedger()
	s.scheduler = &servicetest.Scheduler{}
	s.resolver = resolve.NewResolver(s.registry, s.registry, s.store, cache.NewMemoryCacheWithClock(5*time.Minute, clock), log, resolve.WithClock(clock))

	publisher := publish.NewPublisher(s.store, s.ledger, s.scheduler, log)
	validator := media.NewValidator(media.DefaultPolicy())

	s.create = NewCreateProjectUseCase(s.registry, s.resolver, publisher, validator, log)
	s.create.now = clock
	s.update = NewUpdateProjectUseCase(s.registry, s.resolver, publisher, validator, log)
	s.update.now = clock
	s.setStatus = NewSetStatusUseCase(s.registry, s.resolver, log)
}

func TestProjectUseCaseSuite(t *testing.T) {
	suite.Run(t, new(ProjectUseCaseTestSuite))
}

func (s *ProjectUseCaseTestSuite) metadata(as, title string) MetadataInput {
	return MetadataInput{
		Session:     wallet.Connected(as, 1),
		Title:       title,
		Description: "A decentralized crowdfunding tool",
		Tags:        []string{"defi", "tooling"},
	}
}

func (s *ProjectUseCaseTestSuite) seedDraft() uint64 {
	doc, err := document.BuildProjectDocument(document.ProjectFields{
		Title:       "Seeded",
		Description: "Seeded project document",
		Tags:        []string{"seed"},
	}, nil, false, s.now.Add(-time.Hour))
	s.Require().NoError(err)
	return s.registry.SeedProject(builder, s.store.Put(doc), project.StatusDraft)
}

func (s *ProjectUseCaseTestSuite) TestCreate_PrimesResolvedRecord() {
	ctx := context.Background()
	in := s.metadata(builder, "Forge")
	cover := pngImage(s.T(), 200, 100, 1)
	in.Cover = &cover

	result, err := s.create.Execute(ctx, in)
	s.Require().NoError(err)
	s.Require().NotNil(result.ProjectID)
	s.EqualValues(0, *result.ProjectID)
	s.Len(result.ImageCIDs, 1)
	s.Contains(result.Stages, publish.StageUploadingImage)

	resolved, err := s.resolver.ResolveProject(ctx, *result.ProjectID)
	s.Require().NoError(err)
	s.Equal(result.CID, resolved.CID)
	s.Equal("Forge", resolved.Document.Title)
	s.Equal(project.StatusDraft, resolved.Status)
	s.Zero(s.registry.ProjectReads.Load())

	s.Require().NotNil(resolved.Document.Cover())
	s.Equal(result.ImageCIDs[0], resolved.Document.Cover().CID)
	s.Equal(pin.StatusReferenced, s.ledger.Status(result.ImageCIDs[0]))
}

func (s *ProjectUseCaseTestSuite) TestCreate_RejectsBadCoverBeforeUpload() {
	in := s.metadata(builder, "Forge")
	cover := pngImage(s.T(), 500, 100, 1)
	in.Cover = &cover

	_, err := s.create.Execute(context.Background(), in)

	s.ErrorIs(err, apperror.ErrInvalidInput)
	s.Zero(s.store.FileUploads.Load())
	s.Zero(s.registry.Submitted.Load())
}

func (s *ProjectUseCaseTestSuite) TestCreate_TooManyImages() {
	in := s.metadata(builder, "Forge")
	cover := pngImage(s.T(), 100, 100, 1)
	in.Cover = &cover
	for i := 0; i < 5; i++ {
		in.Gallery = append(in.Gallery, pngImage(s.T(), 100, 100, uint8(10+i)))
	}

	_, err := s.create.Execute(context.Background(), in)

	var verr *apperror.ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Equal("images", verr.Field)
	s.Zero(s.store.FileUploads.Load())
}

func (s *ProjectUseCaseTestSuite) TestUpdate_KeepsCoverAndCreatedAt() {
	ctx := context.Background()
	in := s.metadata(builder, "Forge")
	cover := pngImage(s.T(), 100, 100, 1)
	in.Cover = &cover
	created, err := s.create.Execute(ctx, in)
	s.Require().NoError(err)
	createdAt := s.now.UnixMilli()

	s.now = s.now.Add(time.Hour)
	upd := s.metadata(builder, "Forge v2")
	upd.Gallery = []media.ImageFile{pngImage(s.T(), 120, 100, 2), pngImage(s.T(), 120, 100, 3)}
	result, err := s.update.Execute(ctx, UpdateProjectInput{ProjectID: *created.ProjectID, MetadataInput: upd})
	s.Require().NoError(err)

	raw, err := s.store.Fetch(ctx, result.CID)
	s.Require().NoError(err)
	doc, err := document.DecodeProject(result.CID, raw)
	s.Require().NoError(err)
	s.Equal("Forge v2", doc.Title)
	s.Equal(createdAt, doc.CreatedAt)
	s.Require().NotNil(doc.UpdatedAt)
	s.Equal(s.now.UnixMilli(), *doc.UpdatedAt)
	s.Equal(created.ImageCIDs[0], doc.Cover().CID)
	s.Len(doc.Gallery(), 2)

	s.Equal([]string{created.CID}, s.scheduler.CIDs())
	s.Equal(pin.StatusSuperseded, s.ledger.Status(created.CID))

	resolved, err := s.resolver.ResolveProject(ctx, *created.ProjectID)
	s.Require().NoError(err)
	s.Equal(result.CID, resolved.CID)
}

func (s *ProjectUseCaseTestSuite) TestUpdate_CarriedImagesCountTowardLimit() {
	ctx := context.Background()
	in := s.metadata(builder, "Forge")
	for i := 0; i < 4; i++ {
		in.Gallery = append(in.Gallery, pngImage(s.T(), 100, 100, uint8(20+i)))
	}
	created, err := s.create.Execute(ctx, in)
	s.Require().NoError(err)
	uploads := s.store.FileUploads.Load()

	upd := s.metadata(builder, "Forge")
	cover := pngImage(s.T(), 100, 100, 30)
	upd.Cover = &cover
	upd.Gallery = nil
	_, err = s.update.Execute(ctx, UpdateProjectInput{ProjectID: *created.ProjectID, MetadataInput: upd})
	s.Require().NoError(err, "4 kept gallery images plus a cover is 5")

	cover2 := pngImage(s.T(), 100, 100, 31)
	upd.Cover = &cover2
	upd.Gallery = []media.ImageFile{
		pngImage(s.T(), 100, 100, 40), pngImage(s.T(), 100, 100, 41), pngImage(s.T(), 100, 100, 42),
		pngImage(s.T(), 100, 100, 43), pngImage(s.T(), 100, 100, 44),
	}
	_, err = s.update.Execute(ctx, UpdateProjectInput{ProjectID: *created.ProjectID, MetadataInput: upd})
	s.ErrorIs(err, apperror.ErrInvalidInput)
	s.Equal(uploads+1, s.store.FileUploads.Load())
}

func (s *ProjectUseCaseTestSuite) TestUpdate_OnlyInDraft() {
	id := s.seedDraft()
	s.Require().NoError(s.advance(id, project.StatusFunding))

	in := s.metadata(builder, "Forge")
	cover := pngImage(s.T(), 100, 100, 1)
	in.Cover = &cover
	_, err := s.update.Execute(context.Background(), UpdateProjectInput{ProjectID: id, MetadataInput: in})

	var stateErr *apperror.InvalidStateError
	s.Require().ErrorAs(err, &stateErr)
	s.Equal("funding", stateErr.From)
	s.Zero(s.store.FileUploads.Load())
	s.Zero(s.store.JSONUploads.Load())
}

func (s *ProjectUseCaseTestSuite) TestUpdate_NotBuilder() {
	id := s.seedDraft()

	_, err := s.update.Execute(context.Background(), UpdateProjectInput{ProjectID: id, MetadataInput: s.metadata(stranger, "Hijack")})

	s.ErrorIs(err, apperror.ErrPermission)
	s.Zero(s.store.JSONUploads.Load())
	s.Zero(s.registry.Submitted.Load())
}

func (s *ProjectUseCaseTestSuite) TestUpdate_UnknownProject() {
	_, err := s.update.Execute(context.Background(), UpdateProjectInput{ProjectID: 42, MetadataInput: s.metadata(builder, "Forge")})
	s.ErrorIs(err, apperror.ErrNotFound)
}

func (s *ProjectUseCaseTestSuite) advance(id uint64, to project.Status) error {
	_, err := s.setStatus.Execute(context.Background(), SetStatusInput{
		Session:   wallet.Connected(builder, 1),
		ProjectID: id,
		Status:    to,
	})
	return err
}

func (s *ProjectUseCaseTestSuite) TestSetStatus_Transitions() {
	id := s.seedDraft()

	out, err := s.setStatus.Execute(context.Background(), SetStatusInput{
		Session:   wallet.Connected(builder, 1),
		ProjectID: id,
		Status:    project.StatusFunding,
	})
	s.Require().NoError(err)
	s.Equal(project.StatusDraft, out.From)
	s.Equal(project.StatusFunding, out.To)
	s.NotEmpty(out.TxHash)

	s.Require().NoError(s.advance(id, project.StatusCompleted))

	submitted := s.registry.Submitted.Load()
	err = s.advance(id, project.StatusFunding)
	var stateErr *apperror.InvalidStateError
	s.Require().ErrorAs(err, &stateErr)
	s.Equal("completed", stateErr.From)
	s.Equal("funding", stateErr.To)
	s.Equal(submitted, s.registry.Submitted.Load())
}

func (s *ProjectUseCaseTestSuite) TestSetStatus_SkipIsRejected() {
	id := s.seedDraft()
	err := s.advance(id, project.StatusCompleted)
	s.ErrorIs(err, apperror.ErrInvalidState)
	s.Zero(s.registry.Submitted.Load())
}

func (s *ProjectUseCaseTestSuite) TestSetStatus_InvalidatesCache() {
	ctx := context.Background()
	id := s.seedDraft()

	before, err := s.resolver.ResolveProject(ctx, id)
	s.Require().NoError(err)
	s.Equal(project.StatusDraft, before.Status)

	s.Require().NoError(s.advance(id, project.StatusFunding))

	after, err := s.resolver.ResolveProject(ctx, id)
	s.Require().NoError(err)
	s.Equal(project.StatusFunding, after.Status)
}

func (s *ProjectUseCaseTestSuite) TestSetStatus_NotBuilder() {
	id := s.seedDraft()
	_, err := s.setStatus.Execute(context.Background(), SetStatusInput{
		Session:   wallet.Connected(stranger, 1),
		ProjectID: id,
		Status:    project.StatusFunding,
	})
	s.ErrorIs(err, apperror.ErrPermission)
}
