package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"

	"github.com/khoahotran/openforge/pkg/apperror"
)

// Context selects which rules apply on top of the shared type/size policy.
type Context string

const (
	ContextAvatar       Context = "avatar"
	ContextProjectCover Context = "project-cover"
	ContextGallery      Context = "gallery"
)

func (c Context) checksDimensions() bool {
	return c == ContextProjectCover || c == ContextGallery
}

const (
	TypePNG  = "image/png"
	TypeJPEG = "image/jpeg"
	TypeGIF  = "image/gif"
	TypeWebP = "image/webp"
	TypeSVG  = "image/svg+xml"
)

type ImageFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

func (f ImageFile) Size() int64 { return int64(len(f.Data)) }

type Policy struct {
	AllowedTypes []string
	MaxBytes     int64
	MaxDimension int
	MinAspect    float64
	MaxAspect    float64
}

// DefaultPolicy is the single image policy used by every upload path.
func DefaultPolicy() Policy {
	return Policy{
		AllowedTypes: []string{TypePNG, TypeJPEG, TypeGIF, TypeWebP, TypeSVG},
		MaxBytes:     5 * 1024 * 1024,
		MaxDimension: 4000,
		MinAspect:    0.5,
		MaxAspect:    2.0,
	}
}

type Validator struct {
	policy Policy
}

func NewValidator(policy Policy) *Validator {
	if policy.MaxBytes <= 0 {
		policy.MaxBytes = DefaultPolicy().MaxBytes
	}
	if len(policy.AllowedTypes) == 0 {
		policy.AllowedTypes = DefaultPolicy().AllowedTypes
	}
	return &Validator{policy: policy}
}

func (v *Validator) Policy() Policy { return v.policy }

// NormalizeType lower-cases a declared content type, drops parameters and
// maps the image/jpg alias.
func NormalizeType(contentType string) string {
	t, _, _ := strings.Cut(contentType, ";")
	t = strings.ToLower(strings.TrimSpace(t))
	if t == "image/jpg" {
		return TypeJPEG
	}
	return t
}

// Validate runs the type, size, content and (for project contexts)
// dimension checks. It performs no I/O.
func (v *Validator) Validate(file ImageFile, ctx Context) error {
	declared := NormalizeType(file.ContentType)
	if !v.allowed(declared) {
		return apperror.NewValidation("file", fmt.Sprintf("invalid file type %q. Allowed types: %s", file.ContentType, strings.Join(v.policy.AllowedTypes, ", ")))
	}
	if file.Size() == 0 {
		return apperror.NewValidation("file", "file is empty")
	}
	if file.Size() > v.policy.MaxBytes {
		return apperror.NewValidation("file", fmt.Sprintf("file size exceeds %dMB limit", v.policy.MaxBytes/(1024*1024)))
	}

	detected := mimetype.Detect(file.Data)
	if !v.detectedAllowed(detected) {
		return apperror.NewValidation("file", fmt.Sprintf("file content is %s, not an allowed image", detected.String()))
	}

	if !ctx.checksDimensions() || declared == TypeSVG || detected.Is(TypeSVG) {
		return nil
	}
	return v.checkDimensions(file.Data)
}

func (v *Validator) checkDimensions(data []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return &apperror.DecodeError{Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return &apperror.DecodeError{Err: fmt.Errorf("image has zero dimension %dx%d", cfg.Width, cfg.Height)}
	}
	if v.policy.MaxDimension > 0 && (cfg.Width > v.policy.MaxDimension || cfg.Height > v.policy.MaxDimension) {
		return apperror.NewValidation("file", fmt.Sprintf("image dimensions too large. Maximum %dx%d pixels", v.policy.MaxDimension, v.policy.MaxDimension))
	}
	aspect := float64(cfg.Width) / float64(cfg.Height)
	if v.policy.MinAspect > 0 && aspect < v.policy.MinAspect || v.policy.MaxAspect > 0 && aspect > v.policy.MaxAspect {
		return apperror.NewValidation("file", fmt.Sprintf("invalid aspect ratio %.2f. Must be between %.1f and %.1f", aspect, v.policy.MinAspect, v.policy.MaxAspect))
	}
	return nil
}

func (v *Validator) allowed(t string) bool {
	for _, a := range v.policy.AllowedTypes {
		if a == t {
			return true
		}
	}
	return false
}

func (v *Validator) detectedAllowed(m *mimetype.MIME) bool {
	for _, a := range v.policy.AllowedTypes {
		if m.Is(a) {
			return true
		}
	}
	return false
}
