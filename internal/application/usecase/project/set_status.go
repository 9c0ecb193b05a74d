package project

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/khoahotran/openforge/internal/application/service"
	"github.com/khoahotran/openforge/internal/application/usecase/publish"
	"github.com/khoahotran/openforge/internal/application/usecase/resolve"
	"github.com/khoahotran/openforge/internal/domain/project"
	"github.com/khoahotran/openforge/internal/domain/wallet"
	"github.com/khoahotran/openforge/pkg/apperror"
	"github.com/khoahotran/openforge/pkg/logger"
)

// CacheInvalidator drops stale resolve entries.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, keys ...string)
}

type SetStatusUseCase struct {
	registry service.ProjectRegistry
	cache    CacheInvalidator
	logger   logger.Logger
}

func NewSetStatusUseCase(registry service.ProjectRegistry, cache CacheInvalidator, log logger.Logger) *SetStatusUseCase {
	return &SetStatusUseCase{registry: registry, cache: cache, logger: log}
}

type SetStatusInput struct {
	Session   wallet.Session
	ProjectID uint64
	Status    project.Status
}

type SetStatusOutput struct {
	ProjectID uint64         `json:"project_id"`
	From      project.Status `json:"from"`
	To        project.Status `json:"to"`
	TxHash    string         `json:"tx_hash"`
}

// Execute moves a project forward through draft -> funding ->
// completed|failed. Illegal transitions fail before a transaction is sent.
func (uc *SetStatusUseCase) Execute(ctx context.Context, input SetStatusInput) (*SetStatusOutput, error) {
	ctx, span := tracer.Start(ctx, "SetStatus")
	defer span.End()
	span.SetAttributes(attribute.Int64("project_id", int64(input.ProjectID)), attribute.String("to", input.Status.String()))

	t := publish.NewTracker(ctx, "project.status", uc.logger)

	address, err := input.Session.Address()
	if err != nil {
		return nil, t.Fail(err)
	}

	rec, err := uc.registry.Project(ctx, input.ProjectID)
	if err != nil {
		return nil, t.Fail(err)
	}
	if !rec.IsBuilder(address) {
		return nil, t.Fail(apperror.NewPermissionDenied("only the project builder can change its status"))
	}
	if err := project.CheckTransition(rec.Status, input.Status); err != nil {
		return nil, t.Fail(err)
	}

	t.Enter(publish.StageSubmittingTransaction)
	tx, err := uc.registry.SetProjectStatus(ctx, input.Session, rec.ID, input.Status)
	if err != nil {
		return nil, t.Fail(err)
	}

	receipt, err := publish.Confirm(ctx, t, tx)
	if err != nil {
		return nil, err
	}

	uc.cache.Invalidate(ctx, resolve.ProjectKey(rec.ID))
	t.Done(zap.Uint64("project_id", rec.ID), zap.String("from", rec.Status.String()), zap.String("to", input.Status.String()))

	return &SetStatusOutput{ProjectID: rec.ID, From: rec.Status, To: input.Status, TxHash: receipt.TxHash}, nil
}
