package project

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/khoahotran/openforge/internal/application/service"
	"github.com/khoahotran/openforge/internal/application/usecase/publish"
	"github.com/khoahotran/openforge/internal/application/usecase/resolve"
	"github.com/khoahotran/openforge/internal/domain/document"
	"github.com/khoahotran/openforge/internal/domain/media"
	"github.com/khoahotran/openforge/internal/domain/project"
	"github.com/khoahotran/openforge/pkg/apperror"
	"github.com/khoahotran/openforge/pkg/logger"
)

type UpdateProjectUseCase struct {
	registry  service.ProjectRegistry
	resolver  DocumentResolver
	publisher *publish.Publisher
	validator *media.Validator
	logger    logger.Logger
	now       func() time.Time
}

func NewUpdateProjectUseCase(
	registry service.ProjectRegistry,
	resolver DocumentResolver,
	publisher *publish.Publisher,
	validator *media.Validator,
	log logger.Logger,
) *UpdateProjectUseCase {
	return &UpdateProjectUseCase{
		registry:  registry,
		resolver:  resolver,
		publisher: publisher,
		validator: validator,
		logger:    log,
		now:       time.Now,
	}
}

type UpdateProjectInput struct {
	ProjectID uint64
	MetadataInput
}

// Execute publishes a new metadata version. Only the builder may update,
// and only while the project is in draft; both are checked before any
// upload.
func (uc *UpdateProjectUseCase) Execute(ctx context.Context, input UpdateProjectInput) (*publish.Result, error) {
	ctx, span := tracer.Start(ctx, "UpdateProject")
	defer span.End()
	span.SetAttributes(attribute.Int64("project_id", int64(input.ProjectID)))

	t := publish.NewTracker(ctx, "project.update", uc.logger)

	address, err := validateMetadata(uc.validator, input.MetadataInput)
	if err != nil {
		return nil, t.Fail(err)
	}

	rec, err := uc.registry.Project(ctx, input.ProjectID)
	if err != nil {
		return nil, t.Fail(err)
	}
	if !rec.IsBuilder(address) {
		return nil, t.Fail(apperror.NewPermissionDenied("only the project builder can update its metadata"))
	}
	if err := project.CheckMetadataEditable(rec.Status); err != nil {
		return nil, t.Fail(err)
	}
	if rec.CID == "" {
		return nil, t.Fail(apperror.NewInvalidInput("project has no metadata to update", document.ErrMissingPrevious))
	}

	raw, err := uc.resolver.ResolveDocument(ctx, rec.CID)
	if err != nil {
		return nil, t.Fail(err)
	}
	previous, err := document.DecodeProject(rec.CID, raw)
	if err != nil {
		return nil, t.Fail(err)
	}
	if err := checkImageCount(input.MetadataInput, previous); err != nil {
		return nil, t.Fail(err)
	}

	fields := input.fields()
	imageCIDs, err := uploadImages(ctx, t, uc.publisher, address, input.MetadataInput, &fields)
	if err != nil {
		return nil, err
	}

	doc, err := buildDocument(t, fields, previous, uc.now())
	if err != nil {
		return nil, err
	}

	t.Enter(publish.StageUploadingDocument)
	docCID, err := uc.publisher.PinDocument(ctx, address, "project-"+strconv.FormatUint(rec.ID, 10), doc)
	if err != nil {
		return nil, t.Fail(err)
	}

	t.Enter(publish.StageSubmittingTransaction)
	tx, err := uc.registry.UpdateProject(ctx, input.Session, rec.ID, docCID)
	if err != nil {
		return nil, t.Fail(err)
	}
	uc.logger.Info("Project update transaction submitted", zap.String("tx_hash", tx.Hash()), zap.Uint64("project_id", rec.ID))

	receipt, err := publish.Confirm(ctx, t, tx)
	if err != nil {
		return nil, err
	}

	uc.publisher.Commit(ctx, address, "project updated",
		append([]string{docCID}, doc.ImageCIDs()...),
		append([]string{rec.CID}, previous.ImageCIDs()...),
	)
	next := *rec
	next.CID = docCID
	uc.resolver.Prime(ctx, resolve.ProjectKey(rec.ID), docCID, doc, &next)

	t.Done(zap.String("cid", docCID), zap.String("tx_hash", receipt.TxHash))
	id := rec.ID
	return &publish.Result{
		CID:         docCID,
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber,
		ProjectID:   &id,
		ImageCIDs:   imageCIDs,
		Stages:      t.Stages(),
	}, nil
}
