package document

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ipfs/go-cid"

	"github.com/khoahotran/openforge/pkg/apperror"
)

const (
	TitleMin       = 3
	TitleMax       = 100
	DescriptionMin = 10
	DescriptionMax = 1000
	TagsMax        = 10
	TagLenMax      = 30
	ImagesMax      = 5
)

const forbiddenTagChars = "<>{}[]\\"

func ValidateProfileFields(f ProfileFields) error {
	if strings.TrimSpace(f.Name) == "" {
		return apperror.NewValidation("name", "is required")
	}
	if strings.TrimSpace(f.Bio) == "" {
		return apperror.NewValidation("bio", "is required")
	}
	if len(cleanList(f.Skills)) == 0 {
		return apperror.NewValidation("skills", "at least one skill is required")
	}
	if f.AvatarCID != "" {
		if err := ValidateCID(f.AvatarCID); err != nil {
			return apperror.NewValidation("avatar", err.Error())
		}
	}
	return nil
}

// ValidateProjectFields checks title, description and tags. Images are
// checked separately once their CIDs are known.
func ValidateProjectFields(f ProjectFields) error {
	title := utf8.RuneCountInString(strings.TrimSpace(f.Title))
	if title < TitleMin || title > TitleMax {
		return apperror.NewValidation("title", fmt.Sprintf("must be between %d and %d characters", TitleMin, TitleMax))
	}

	desc := utf8.RuneCountInString(strings.TrimSpace(f.Description))
	if desc < DescriptionMin || desc > DescriptionMax {
		return apperror.NewValidation("description", fmt.Sprintf("must be between %d and %d characters", DescriptionMin, DescriptionMax))
	}

	return ValidateTags(f.Tags)
}

func ValidateTags(tags []string) error {
	if len(tags) == 0 {
		return apperror.NewValidation("tags", "at least one tag is required")
	}
	if len(tags) > TagsMax {
		return apperror.NewValidation("tags", fmt.Sprintf("at most %d tags are allowed", TagsMax))
	}
	for _, tag := range tags {
		t := strings.TrimSpace(tag)
		if t == "" {
			return apperror.NewValidation("tags", "tags cannot be empty")
		}
		if utf8.RuneCountInString(t) > TagLenMax {
			return apperror.NewValidation("tags", fmt.Sprintf("tag %q exceeds %d characters", t, TagLenMax))
		}
		if strings.ContainsAny(t, forbiddenTagChars) {
			return apperror.NewValidation("tags", fmt.Sprintf("tag %q contains invalid characters", t))
		}
	}
	return nil
}

// ValidateImages enforces the project image rules: at most five, only cover
// or gallery, a single cover, and parseable CIDs.
func ValidateImages(images []ImageRef) error {
	if len(images) > ImagesMax {
		return apperror.NewValidation("images", fmt.Sprintf("at most %d images are allowed", ImagesMax))
	}
	covers := 0
	for i, img := range images {
		switch img.Type {
		case ImageCover:
			covers++
		case ImageGallery:
		default:
			return apperror.NewValidation(fmt.Sprintf("images[%d].type", i), fmt.Sprintf("invalid image type %q", img.Type))
		}
		if err := ValidateCID(img.CID); err != nil {
			return apperror.NewValidation(fmt.Sprintf("images[%d].cid", i), err.Error())
		}
	}
	if covers > 1 {
		return apperror.NewValidation("images", "only one cover image is allowed")
	}
	return nil
}

// ValidateCID reports whether s is a parseable CIDv0 or CIDv1.
func ValidateCID(s string) error {
	if s == "" {
		return fmt.Errorf("cid is empty")
	}
	if _, err := cid.Decode(s); err != nil {
		return fmt.Errorf("invalid cid %q: %w", s, err)
	}
	return nil
}

// NormalizeCID strips ipfs:// and /ipfs/ prefixes.
func NormalizeCID(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "ipfs://")
	s = strings.TrimPrefix(s, "/ipfs/")
	return strings.TrimSuffix(s, "/")
}
