package publish

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/khoahotran/openforge/pkg/logger"
	"github.com/khoahotran/openforge/pkg/metrics"
)

type Stage string

const (
	StageValidating            Stage = "validating"
	StageUploadingImage        Stage = "uploading_image"
	StageBuildingDocument      Stage = "building_document"
	StageUploadingDocument     Stage = "uploading_document"
	StageSubmittingTransaction Stage = "submitting_transaction"
	StageConfirming            Stage = "confirming"
	StageDone                  Stage = "done"
)

// PublishError records the stage a publish failed in. It unwraps to the
// cause so status mapping sees the underlying error.
type PublishError struct {
	Flow  string
	Stage Stage
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("%s failed while %s: %v", e.Flow, e.Stage, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Tracker follows one publish attempt through its stages.
type Tracker struct {
	flow    string
	stage   Stage
	visited []Stage
	started time.Time
	span    trace.Span
	logger  logger.Logger
}

// NewTracker records stage transitions as events on the span in ctx.
func NewTracker(ctx context.Context, flow string, log logger.Logger) *Tracker {
	t := &Tracker{
		flow:    flow,
		started: time.Now(),
		span:    trace.SpanFromContext(ctx),
		logger:  log.With(zap.String("flow", flow)),
	}
	t.Enter(StageValidating)
	return t
}

func (t *Tracker) Stage() Stage { return t.stage }

// Stages lists every stage entered so far, in order.
func (t *Tracker) Stages() []Stage {
	out := make([]Stage, len(t.visited))
	copy(out, t.visited)
	return out
}

func (t *Tracker) Enter(stage Stage) {
	if t.stage != "" {
		metrics.PublishStages.WithLabelValues(t.flow, string(t.stage), "ok").Inc()
	}
	t.stage = stage
	t.visited = append(t.visited, stage)
	t.span.AddEvent("publish.stage", trace.WithAttributes(attribute.String("stage", string(stage))))
	t.logger.Debug("Publish stage", zap.String("stage", string(stage)))
}

// Fail wraps err with the current stage. A nil err returns nil.
func (t *Tracker) Fail(err error) error {
	if err == nil {
		return nil
	}
	metrics.PublishStages.WithLabelValues(t.flow, string(t.stage), "failed").Inc()
	t.span.RecordError(err, trace.WithAttributes(attribute.String("stage", string(t.stage))))
	t.logger.Warn("Publish failed", zap.String("stage", string(t.stage)), zap.Error(err))
	return &PublishError{Flow: t.flow, Stage: t.stage, Err: err}
}

func (t *Tracker) Done(fields ...zap.Field) {
	t.Enter(StageDone)
	metrics.PublishStages.WithLabelValues(t.flow, string(StageDone), "ok").Inc()
	fields = append(fields, zap.Duration("elapsed", time.Since(t.started)))
	t.logger.Info("Publish confirmed", fields...)
}
