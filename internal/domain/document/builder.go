package document

import (
	"errors"
	"strings"
	"time"
)

// ErrMissingPrevious is returned when an update has no prior document to
// carry createdAt (and unchanged images) from.
var ErrMissingPrevious = errors.New("update requires the previously published document")

type ProfileFields struct {
	Name          string
	Bio           string
	Skills        []string
	AvatarCID     string
	WalletAddress string
}

type ProjectFields struct {
	Title       string
	Description string
	Tags        []string
	// CoverCID replaces the cover when set. On update an empty value keeps
	// the previous cover.
	CoverCID string
	// GalleryCIDs replaces the gallery when non-nil. On update nil keeps the
	// previous gallery.
	GalleryCIDs []string
}

// BuildProfileDocument assembles a profile document. A create stamps
// createdAt; an update carries createdAt from previous and stamps updatedAt.
func BuildProfileDocument(f ProfileFields, previous *ProfileDocument, isUpdate bool, now time.Time) (*ProfileDocument, error) {
	if isUpdate && previous == nil {
		return nil, ErrMissingPrevious
	}

	doc := &ProfileDocument{
		Type:          KindProfile,
		Version:       Version,
		Name:          strings.TrimSpace(f.Name),
		Bio:           strings.TrimSpace(f.Bio),
		Skills:        cleanList(f.Skills),
		WalletAddress: f.WalletAddress,
	}

	switch {
	case f.AvatarCID != "":
		doc.Avatar = &ImageRef{CID: f.AvatarCID, Type: ImageAvatar}
	case isUpdate && previous.Avatar != nil:
		avatar := *previous.Avatar
		doc.Avatar = &avatar
	}

	stamp(&doc.CreatedAt, &doc.UpdatedAt, previousCreatedAt(previous), isUpdate, now)
	if isUpdate && doc.WalletAddress == "" {
		doc.WalletAddress = previous.WalletAddress
	}
	return doc, nil
}

func BuildProjectDocument(f ProjectFields, previous *ProjectDocument, isUpdate bool, now time.Time) (*ProjectDocument, error) {
	if isUpdate && previous == nil {
		return nil, ErrMissingPrevious
	}

	doc := &ProjectDocument{
		Type:        KindProject,
		Version:     Version,
		Title:       strings.TrimSpace(f.Title),
		Description: strings.TrimSpace(f.Description),
		Tags:        cleanList(f.Tags),
	}

	var cover *ImageRef
	if f.CoverCID != "" {
		cover = &ImageRef{CID: f.CoverCID, Type: ImageCover}
	} else if isUpdate {
		cover = previous.Cover()
	}
	if cover != nil {
		doc.Images = append(doc.Images, ImageRef{CID: cover.CID, Type: ImageCover})
	}

	if f.GalleryCIDs != nil {
		for _, cid := range f.GalleryCIDs {
			doc.Images = append(doc.Images, ImageRef{CID: cid, Type: ImageGallery})
		}
	} else if isUpdate {
		doc.Images = append(doc.Images, previous.Gallery()...)
	}

	var prevCreated int64
	if previous != nil {
		prevCreated = previous.CreatedAt
	}
	stamp(&doc.CreatedAt, &doc.UpdatedAt, prevCreated, isUpdate, now)
	return doc, nil
}

func previousCreatedAt(p *ProfileDocument) int64 {
	if p == nil {
		return 0
	}
	return p.CreatedAt
}

// stamp applies the timestamp rule shared by both variants. Documents
// published by the old web client on update have no createdAt; those fall
// back to now so the field is never zero again.
func stamp(createdAt *int64, updatedAt **int64, prevCreated int64, isUpdate bool, now time.Time) {
	ms := now.UnixMilli()
	if !isUpdate {
		*createdAt = ms
		*updatedAt = nil
		return
	}
	*createdAt = prevCreated
	if *createdAt == 0 || *createdAt > ms {
		*createdAt = ms
	}
	*updatedAt = &ms
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
