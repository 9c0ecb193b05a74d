package project

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/khoahotran/openforge/internal/application/service"
	"github.com/khoahotran/openforge/internal/application/usecase/publish"
	"github.com/khoahotran/openforge/internal/application/usecase/resolve"
	"github.com/khoahotran/openforge/internal/domain/media"
	"github.com/khoahotran/openforge/internal/domain/project"
	"github.com/khoahotran/openforge/pkg/logger"
)

type CreateProjectUseCase struct {
	registry  service.ProjectRegistry
	resolver  DocumentResolver
	publisher *publish.Publisher
	validator *media.Validator
	logger    logger.Logger
	now       func() time.Time
}

func NewCreateProjectUseCase(
	registry service.ProjectRegistry,
	resolver DocumentResolver,
	publisher *publish.Publisher,
	validator *media.Validator,
	log logger.Logger,
) *CreateProjectUseCase {
	return &CreateProjectUseCase{
		registry:  registry,
		resolver:  resolver,
		publisher: publisher,
		validator: validator,
		logger:    log,
		now:       time.Now,
	}
}

func (uc *CreateProjectUseCase) Execute(ctx context.Context, input MetadataInput) (*publish.Result, error) {
	ctx, span := tracer.Start(ctx, "CreateProject")
	defer span.End()

	t := publish.NewTracker(ctx, "project.create", uc.logger)

	address, err := validateMetadata(uc.validator, input)
	if err != nil {
		return nil, t.Fail(err)
	}
	if err := checkImageCount(input, nil); err != nil {
		return nil, t.Fail(err)
	}
	span.SetAttributes(attribute.String("builder", address))

	fields := input.fields()
	imageCIDs, err := uploadImages(ctx, t, uc.publisher, address, input, &fields)
	if err != nil {
		return nil, err
	}

	doc, err := buildDocument(t, fields, nil, uc.now())
	if err != nil {
		return nil, err
	}

	t.Enter(publish.StageUploadingDocument)
	docCID, err := uc.publisher.PinDocument(ctx, address, "project-"+doc.Title, doc)
	if err != nil {
		return nil, t.Fail(err)
	}

	t.Enter(publish.StageSubmittingTransaction)
	tx, err := uc.registry.CreateProject(ctx, input.Session, docCID)
	if err != nil {
		return nil, t.Fail(err)
	}
	uc.logger.Info("Project create transaction submitted", zap.String("tx_hash", tx.Hash()), zap.String("cid", docCID))

	receipt, err := publish.Confirm(ctx, t, tx)
	if err != nil {
		return nil, err
	}

	uc.publisher.Commit(ctx, address, "project created", append([]string{docCID}, doc.ImageCIDs()...), nil)
	if receipt.ProjectID != nil {
		rec := &project.Record{ID: *receipt.ProjectID, Builder: address, CID: docCID, Status: project.StatusDraft}
		uc.resolver.Prime(ctx, resolve.ProjectKey(rec.ID), docCID, doc, rec)
	}

	t.Done(zap.String("cid", docCID), zap.String("tx_hash", receipt.TxHash))
	return &publish.Result{
		CID:         docCID,
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber,
		ProjectID:   receipt.ProjectID,
		ImageCIDs:   imageCIDs,
		Stages:      t.Stages(),
	}, nil
}
