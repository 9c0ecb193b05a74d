package profile

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/khoahotran/openforge/internal/application/service"
	"github.com/khoahotran/openforge/internal/application/usecase/publish"
	"github.com/khoahotran/openforge/internal/application/usecase/resolve"
	"github.com/khoahotran/openforge/internal/domain/document"
	"github.com/khoahotran/openforge/internal/domain/media"
	"github.com/khoahotran/openforge/internal/domain/profile"
	"github.com/khoahotran/openforge/internal/domain/wallet"
	"github.com/khoahotran/openforge/pkg/apperror"
	"github.com/khoahotran/openforge/pkg/logger"
)

var tracer = otel.Tracer("profile_usecase")

// DocumentResolver is the slice of the resolve layer the publish flows need.
type DocumentResolver interface {
	ResolveDocument(ctx context.Context, cid string) (json.RawMessage, error)
	Prime(ctx context.Context, key, cid string, doc any, record any)
}

type ProfileUseCase struct {
	registry  service.ProfileRegistry
	resolver  DocumentResolver
	publisher *publish.Publisher
	validator *media.Validator
	logger    logger.Logger
	now       func() time.Time
}

func NewProfileUseCase(
	registry service.ProfileRegistry,
	resolver DocumentResolver,
	publisher *publish.Publisher,
	validator *media.Validator,
	log logger.Logger,
) *ProfileUseCase {
	return &ProfileUseCase{
		registry:  registry,
		resolver:  resolver,
		publisher: publisher,
		validator: validator,
		logger:    log,
		now:       time.Now,
	}
}

type ProfileInput struct {
	Session wallet.Session
	Name    string
	Bio     string
	Skills  []string
	// Avatar is optional. On update a nil avatar keeps the current one.
	Avatar *media.ImageFile
}

func (in ProfileInput) fields() document.ProfileFields {
	return document.ProfileFields{Name: in.Name, Bio: in.Bio, Skills: in.Skills}
}

// validate runs the checks shared by create and update. It does no I/O.
func (uc *ProfileUseCase) validate(in ProfileInput) (string, error) {
	address, err := in.Session.Address()
	if err != nil {
		return "", err
	}
	if err := document.ValidateProfileFields(in.fields()); err != nil {
		return "", err
	}
	if in.Avatar != nil {
		if err := uc.validator.Validate(*in.Avatar, media.ContextAvatar); err != nil {
			return "", err
		}
	}
	return address, nil
}

// ExecuteCreate publishes the first profile document for the session's
// address.
func (uc *ProfileUseCase) ExecuteCreate(ctx context.Context, in ProfileInput) (*publish.Result, error) {
	ctx, span := tracer.Start(ctx, "ExecuteCreate")
	defer span.End()

	t := publish.NewTracker(ctx, "profile.create", uc.logger)

	address, err := uc.validate(in)
	if err != nil {
		return nil, t.Fail(err)
	}
	span.SetAttributes(attribute.String("address", address))

	exists, err := uc.registry.HasProfile(ctx, address)
	if err != nil {
		return nil, t.Fail(err)
	}
	if exists {
		return nil, t.Fail(&apperror.AlreadyExistsError{Resource: "profile", Key: address})
	}

	return uc.publish(ctx, t, in, address, nil, "")
}

// ExecuteUpdate publishes a new profile version. The cooldown is checked
// before anything is uploaded.
func (uc *ProfileUseCase) ExecuteUpdate(ctx context.Context, in ProfileInput) (*publish.Result, error) {
	ctx, span := tracer.Start(ctx, "ExecuteUpdate")
	defer span.End()

	t := publish.NewTracker(ctx, "profile.update", uc.logger)

	address, err := uc.validate(in)
	if err != nil {
		return nil, t.Fail(err)
	}
	span.SetAttributes(attribute.String("address", address))

	cd, err := uc.cooldown(ctx, address)
	if err != nil {
		return nil, t.Fail(err)
	}
	if cd.Active() {
		return nil, t.Fail(&apperror.CooldownActiveError{Remaining: cd.Remaining})
	}

	prevCID, err := uc.registry.ProfileCID(ctx, address)
	if err != nil {
		return nil, t.Fail(err)
	}
	if prevCID == "" {
		return nil, t.Fail(apperror.NewNotFound("profile", address))
	}
	raw, err := uc.resolver.ResolveDocument(ctx, prevCID)
	if err != nil {
		return nil, t.Fail(err)
	}
	previous, err := document.DecodeProfile(prevCID, raw)
	if err != nil {
		return nil, t.Fail(err)
	}

	return uc.publish(ctx, t, in, address, previous, prevCID)
}

func (uc *ProfileUseCase) publish(ctx context.Context, t *publish.Tracker, in ProfileInput, address string, previous *document.ProfileDocument, prevCID string) (*publish.Result, error) {
	isUpdate := previous != nil
	fields := in.fields()
	fields.WalletAddress = address

	var imageCIDs []string
	if in.Avatar != nil {
		t.Enter(publish.StageUploadingImage)
		cid, err := uc.publisher.PinImage(ctx, address, *in.Avatar)
		if err != nil {
			return nil, t.Fail(err)
		}
		fields.AvatarCID = cid
		imageCIDs = append(imageCIDs, cid)
	}

	t.Enter(publish.StageBuildingDocument)
	doc, err := document.BuildProfileDocument(fields, previous, isUpdate, uc.now())
	if err != nil {
		return nil, t.Fail(err)
	}

	t.Enter(publish.StageUploadingDocument)
	docCID, err := uc.publisher.PinDocument(ctx, address, "profile-"+wallet.Normalize(address), doc)
	if err != nil {
		return nil, t.Fail(err)
	}

	t.Enter(publish.StageSubmittingTransaction)
	var tx service.PendingTx
	if isUpdate {
		tx, err = uc.registry.UpdateProfile(ctx, in.Session, docCID)
	} else {
		tx, err = uc.registry.CreateProfile(ctx, in.Session, docCID)
	}
	if err != nil {
		return nil, t.Fail(err)
	}
	uc.logger.Info("Profile transaction submitted", zap.String("tx_hash", tx.Hash()), zap.String("cid", docCID))

	receipt, err := publish.Confirm(ctx, t, tx)
	if err != nil {
		return nil, err
	}

	current := append([]string{docCID}, doc.ImageCIDs()...)
	var prev []string
	if isUpdate {
		prev = append([]string{prevCID}, previous.ImageCIDs()...)
	}
	uc.publisher.Commit(ctx, address, "profile updated", current, prev)
	uc.resolver.Prime(ctx, resolve.ProfileKey(address), docCID, doc, nil)

	t.Done(zap.String("cid", docCID), zap.String("tx_hash", receipt.TxHash))
	return &publish.Result{
		CID:         docCID,
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber,
		ImageCIDs:   imageCIDs,
		Stages:      t.Stages(),
	}, nil
}

// ExecuteCooldown reports how long the session's address must wait before
// its next profile update.
func (uc *ProfileUseCase) ExecuteCooldown(ctx context.Context, sess wallet.Session) (*profile.Cooldown, error) {
	address, err := sess.Address()
	if err != nil {
		return nil, err
	}
	cd, err := uc.cooldown(ctx, address)
	if err != nil {
		return nil, err
	}
	return &cd, nil
}

func (uc *ProfileUseCase) cooldown(ctx context.Context, address string) (profile.Cooldown, error) {
	period, err := uc.registry.UpdateCooldown(ctx)
	if err != nil {
		return profile.Cooldown{}, err
	}
	last, err := uc.registry.LastUpdated(ctx, address)
	if err != nil {
		return profile.Cooldown{}, err
	}
	return profile.NewCooldown(period, last, uc.now()), nil
}
