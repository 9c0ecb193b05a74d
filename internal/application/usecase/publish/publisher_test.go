package publish_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khoahotran/openforge/internal/application/service"
	"github.com/khoahotran/openforge/internal/application/service/servicetest"
	"github.com/khoahotran/openforge/internal/application/usecase/publish"
	"github.com/khoahotran/openforge/internal/domain/media"
	"github.com/khoahotran/openforge/internal/domain/pin"
	"github.com/khoahotran/openforge/pkg/apperror"
	"github.com/khoahotran/openforge/pkg/logger"
)

const owner = "0x00000000000000000000000000000000000000aa"

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestPinImage_ReusesLiveContent(t *testing.T) {
	ctx := context.Background()
	store := servicetest.NewStore()
	ledger := servicetest.NewLedger()
	p := publish.NewPublisher(store, ledger, nil, logger.NewNopLogger())

	file := media.ImageFile{Filename: "a.png", ContentType: "image/png", Data: pngHeader}
	first, err := p.PinImage(ctx, owner, file)
	require.NoError(t, err)
	second, err := p.PinImage(ctx, owner, file)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, store.FileUploads.Load())
	assert.Equal(t, pin.StatusPinned, ledger.Status(first))
}

func TestPinImage_ReuseRestartsGracePeriod(t *testing.T) {
	ctx := context.Background()
	store := servicetest.NewStore()
	ledger := servicetest.NewLedger()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger.Now = func() time.Time { return now }
	p := publish.NewPublisher(store, ledger, nil, logger.NewNopLogger())

	file := media.ImageFile{Filename: "a.png", ContentType: "image/png", Data: pngHeader}
	stale := pin.NewEntry("bafy-old", pin.Digest(pngHeader), pin.KindImage, owner, now.Add(-48*time.Hour))
	require.NoError(t, ledger.Save(ctx, stale))

	cid, err := p.PinImage(ctx, owner, file)
	require.NoError(t, err)
	assert.Equal(t, "bafy-old", cid)
	assert.Zero(t, store.FileUploads.Load())

	entry, err := ledger.FindByCID(ctx, cid)
	require.NoError(t, err)
	assert.Equal(t, pin.StatusPinned, entry.Status)
	assert.Equal(t, now, entry.UpdatedAt)

	// A sweep with a one day grace period no longer sees the row.
	stalePins, err := ledger.ListStale(ctx, pin.StatusPinned, now.Add(-24*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, stalePins)
}

func TestPinImage_ReuseKeepsReferencedStatus(t *testing.T) {
	ctx := context.Background()
	store := servicetest.NewStore()
	ledger := servicetest.NewLedger()
	p := publish.NewPublisher(store, ledger, nil, logger.NewNopLogger())

	file := media.ImageFile{Filename: "a.png", ContentType: "image/png", Data: pngHeader}
	cid, err := p.PinImage(ctx, owner, file)
	require.NoError(t, err)
	require.NoError(t, ledger.MarkStatus(ctx, []string{cid}, pin.StatusReferenced))

	again, err := p.PinImage(ctx, owner, file)
	require.NoError(t, err)

	assert.Equal(t, cid, again)
	assert.Equal(t, pin.StatusReferenced, ledger.Status(cid))
}

func TestPinImage_UnpinnedContentIsUploadedAgain(t *testing.T) {
	ctx := context.Background()
	store := servicetest.NewStore()
	ledger := servicetest.NewLedger()
	p := publish.NewPublisher(store, ledger, nil, logger.NewNopLogger())

	file := media.ImageFile{Filename: "a.png", ContentType: "image/png", Data: pngHeader}
	cid, err := p.PinImage(ctx, owner, file)
	require.NoError(t, err)
	require.NoError(t, ledger.MarkStatus(ctx, []string{cid}, pin.StatusUnpinned))

	again, err := p.PinImage(ctx, owner, file)
	require.NoError(t, err)

	assert.Equal(t, cid, again)
	assert.EqualValues(t, 2, store.FileUploads.Load())
	assert.Equal(t, pin.StatusPinned, ledger.Status(cid))
}

func TestPinDocument_WithoutLedger(t *testing.T) {
	store := servicetest.NewStore()
	p := publish.NewPublisher(store, nil, nil, logger.NewNopLogger())

	cid, err := p.PinDocument(context.Background(), owner, "doc", map[string]string{"type": "profile"})
	require.NoError(t, err)
	assert.True(t, store.Has(cid))

	raw, err := store.Fetch(context.Background(), cid)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"profile"}`, string(raw))
}

func TestPinDocument_UploadFailure(t *testing.T) {
	store := servicetest.NewStore()
	store.PinErr = errors.New("pinning service down")
	p := publish.NewPublisher(store, servicetest.NewLedger(), nil, logger.NewNopLogger())

	_, err := p.PinDocument(context.Background(), owner, "doc", map[string]string{"type": "profile"})

	var upload *apperror.UploadError
	require.ErrorAs(t, err, &upload)
	assert.Equal(t, 500, upload.StatusCode)
	assert.ErrorIs(t, err, apperror.ErrUpload)
}

func TestCommit(t *testing.T) {
	ctx := context.Background()
	store := servicetest.NewStore()
	ledger := servicetest.NewLedger()
	sched := &servicetest.Scheduler{}
	p := publish.NewPublisher(store, ledger, sched, logger.NewNopLogger())

	oldDoc, err := p.PinDocument(ctx, owner, "doc", map[string]int{"v": 1})
	require.NoError(t, err)
	image, err := p.PinImage(ctx, owner, media.ImageFile{Filename: "a.png", ContentType: "image/png", Data: pngHeader})
	require.NoError(t, err)
	p.Commit(ctx, owner, "created", []string{oldDoc, image}, nil)
	assert.Empty(t, sched.Events)

	newDoc, err := p.PinDocument(ctx, owner, "doc", map[string]int{"v": 2})
	require.NoError(t, err)
	p.Commit(ctx, owner, "updated", []string{newDoc, image}, []string{oldDoc, image, ""})

	assert.Equal(t, pin.StatusReferenced, ledger.Status(newDoc))
	assert.Equal(t, pin.StatusReferenced, ledger.Status(image))
	assert.Equal(t, pin.StatusSuperseded, ledger.Status(oldDoc))

	require.Len(t, sched.Events, 1)
	ev := sched.Events[0]
	assert.Equal(t, service.EventCIDSuperseded, ev.EventType)
	assert.Equal(t, oldDoc, ev.CID)
	assert.Equal(t, owner, ev.Owner)
	assert.Equal(t, "updated", ev.Reason)
	assert.False(t, ev.EmittedAt.IsZero())
}

func TestTracker(t *testing.T) {
	tr := publish.NewTracker(context.Background(), "profile.create", logger.NewNopLogger())
	assert.Equal(t, publish.StageValidating, tr.Stage())

	tr.Enter(publish.StageUploadingDocument)
	assert.NoError(t, tr.Fail(nil))

	cause := apperror.NewValidation("name", "is required")
	err := tr.Fail(cause)

	var pubErr *publish.PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, "profile.create", pubErr.Flow)
	assert.Equal(t, publish.StageUploadingDocument, pubErr.Stage)
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
	assert.Equal(t, []publish.Stage{publish.StageValidating, publish.StageUploadingDocument}, tr.Stages())
}
