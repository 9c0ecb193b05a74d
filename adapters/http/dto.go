package http

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/gin-gonic/gin"

	"github.com/khoahotran/openforge/internal/domain/media"
	"github.com/khoahotran/openforge/pkg/apperror"
)

const maxFormMemory = 32 << 20

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ProfileRequest is the JSON in the "data" form field of a profile publish.
type ProfileRequest struct {
	Name   string   `json:"name"`
	Bio    string   `json:"bio"`
	Skills []string `json:"skills"`
}

// ProjectRequest is the JSON in the "data" form field of a project publish.
type ProjectRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

type SetStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type BatchProfilesRequest struct {
	Addresses []string `json:"addresses" binding:"required"`
}

// SessionDTO describes who the admin API is acting as.
type SessionDTO struct {
	OwnerID   string `json:"owner_id"`
	Connected bool   `json:"connected"`
	Address   string `json:"address,omitempty"`
	ChainID   int64  `json:"chain_id,omitempty"`
}

type CooldownDTO struct {
	Active           bool   `json:"active"`
	PeriodSeconds    int64  `json:"period_seconds"`
	RemainingSeconds int64  `json:"remaining_seconds"`
	NextAllowed      string `json:"next_allowed,omitempty"`
}

// bindData decodes the "data" form field, falling back to a JSON body.
func bindData(c *gin.Context, dst any) error {
	if raw := c.PostForm("data"); raw != "" {
		if err := json.Unmarshal([]byte(raw), dst); err != nil {
			return apperror.NewInvalidInput("'data' field is not valid JSON", err)
		}
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		return apperror.NewInvalidInput("request must carry a 'data' field or a JSON body", err)
	}
	return nil
}

// formImage reads an optional single file field.
func formImage(c *gin.Context, field string) (*media.ImageFile, error) {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil, nil
	}
	headers := form.File[field]
	if len(headers) == 0 {
		return nil, nil
	}
	return readImage(headers[0], field, maxImageBytes(c))
}

func formImages(c *gin.Context, field string) ([]media.ImageFile, error) {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil, nil
	}
	headers := form.File[field]
	limit := maxImageBytes(c)
	images := make([]media.ImageFile, 0, len(headers))
	for _, fh := range headers {
		img, err := readImage(fh, field, limit)
		if err != nil {
			return nil, err
		}
		images = append(images, *img)
	}
	return images, nil
}

// readImage rejects parts larger than limit without buffering them.
func readImage(fh *multipart.FileHeader, field string, limit int64) (*media.ImageFile, error) {
	if fh.Size > limit {
		return nil, oversized(field, limit)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, apperror.NewInvalidInput(fmt.Sprintf("cannot read '%s'", field), err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, apperror.NewInvalidInput(fmt.Sprintf("cannot read '%s'", field), err)
	}
	if int64(len(data)) > limit {
		return nil, oversized(field, limit)
	}
	return &media.ImageFile{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func oversized(field string, limit int64) error {
	return apperror.NewValidation(field, fmt.Sprintf("file size exceeds %d bytes", limit))
}
