package project

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/khoahotran/openforge/internal/application/usecase/publish"
	"github.com/khoahotran/openforge/internal/domain/document"
	"github.com/khoahotran/openforge/internal/domain/media"
	"github.com/khoahotran/openforge/internal/domain/wallet"
	"github.com/khoahotran/openforge/pkg/apperror"
)

var tracer = otel.Tracer("project_usecase")

// DocumentResolver is the slice of the resolve layer the publish flows need.
type DocumentResolver interface {
	ResolveDocument(ctx context.Context, cid string) (json.RawMessage, error)
	Prime(ctx context.Context, key, cid string, doc any, record any)
}

// MetadataInput is the form data shared by create and update.
type MetadataInput struct {
	Session     wallet.Session
	Title       string
	Description string
	Tags        []string
	// Cover is optional. On update nil keeps the current cover.
	Cover *media.ImageFile
	// Gallery replaces the whole gallery when non-empty. On update an empty
	// gallery keeps the current one.
	Gallery []media.ImageFile
}

func (in MetadataInput) fields() document.ProjectFields {
	return document.ProjectFields{Title: in.Title, Description: in.Description, Tags: in.Tags}
}

// validateMetadata runs the I/O-free checks and returns the caller address.
func validateMetadata(v *media.Validator, in MetadataInput) (string, error) {
	address, err := in.Session.Address()
	if err != nil {
		return "", err
	}
	if err := document.ValidateProjectFields(in.fields()); err != nil {
		return "", err
	}
	if in.Cover != nil {
		if err := v.Validate(*in.Cover, media.ContextProjectCover); err != nil {
			return "", err
		}
	}
	for i, img := range in.Gallery {
		if err := v.Validate(img, media.ContextGallery); err != nil {
			return "", fmt.Errorf("gallery image %d: %w", i, err)
		}
	}
	return address, nil
}

// checkImageCount applies the image limit to the document the update will
// produce, counting images carried over from previous.
func checkImageCount(in MetadataInput, previous *document.ProjectDocument) error {
	count := len(in.Gallery)
	if in.Cover != nil || previous != nil && previous.Cover() != nil {
		count++
	}
	if len(in.Gallery) == 0 && previous != nil {
		count += len(previous.Gallery())
	}
	if count > document.ImagesMax {
		return apperror.NewValidation("images", fmt.Sprintf("at most %d images are allowed", document.ImagesMax))
	}
	return nil
}

// uploadImages pins the cover and gallery and fills the CIDs into fields.
func uploadImages(ctx context.Context, t *publish.Tracker, p *publish.Publisher, owner string, in MetadataInput, fields *document.ProjectFields) ([]string, error) {
	if in.Cover == nil && len(in.Gallery) == 0 {
		return nil, nil
	}
	t.Enter(publish.StageUploadingImage)

	var uploaded []string
	if in.Cover != nil {
		cid, err := p.PinImage(ctx, owner, *in.Cover)
		if err != nil {
			return nil, t.Fail(err)
		}
		fields.CoverCID = cid
		uploaded = append(uploaded, cid)
	}
	if len(in.Gallery) > 0 {
		fields.GalleryCIDs = make([]string, 0, len(in.Gallery))
		for _, img := range in.Gallery {
			cid, err := p.PinImage(ctx, owner, img)
			if err != nil {
				return nil, t.Fail(err)
			}
			fields.GalleryCIDs = append(fields.GalleryCIDs, cid)
			uploaded = append(uploaded, cid)
		}
	}
	return uploaded, nil
}

// buildDocument assembles and checks the final document, including the
// image rules that need CIDs.
func buildDocument(t *publish.Tracker, fields document.ProjectFields, previous *document.ProjectDocument, now time.Time) (*document.ProjectDocument, error) {
	t.Enter(publish.StageBuildingDocument)
	doc, err := document.BuildProjectDocument(fields, previous, previous != nil, now)
	if err != nil {
		return nil, t.Fail(err)
	}
	if err := document.ValidateImages(doc.Images); err != nil {
		return nil, t.Fail(err)
	}
	return doc, nil
}
