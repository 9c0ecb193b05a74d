package media_storage

import (
	"errors"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"

	"github.com/khoahotran/openforge/internal/application/service"
	"github.com/khoahotran/openforge/internal/config"
	"github.com/khoahotran/openforge/pkg/logger"
)

const thumbnailTransformation = "c_fill,g_auto,w_200,h_200"

var ErrThumbnailsDisabled = errors.New("cloudinary is not configured")

// imageLinks builds browser URLs for pinned images: the gateway URL
// always, and a Cloudinary fetch-delivery thumbnail when configured.
type imageLinks struct {
	gatewayURL func(cid string) string
	cld        *cloudinary.Cloudinary
}

// NewImageLinks never fails on a missing Cloudinary config; thumbnails are
// simply unavailable.
func NewImageLinks(cfg config.Config, gatewayURL func(cid string) string, log logger.Logger) (service.ImageURLBuilder, error) {
	links := &imageLinks{gatewayURL: gatewayURL}
	if cfg.Cloudinary.CloudName == "" {
		log.Info("Cloudinary not configured, thumbnails disabled")
		return links, nil
	}

	cld, err := cloudinary.NewFromParams(
		cfg.Cloudinary.CloudName,
		cfg.Cloudinary.ApiKey,
		cfg.Cloudinary.ApiSecret,
	)
	if err != nil {
		return nil, fmt.Errorf("cannot init cloudinary: %w", err)
	}
	links.cld = cld
	log.Info("Cloudinary thumbnails enabled")
	return links, nil
}

func (l *imageLinks) GatewayURL(cid string) string {
	return l.gatewayURL(cid)
}

// ThumbnailURL asks Cloudinary to fetch the gateway URL and serve a
// 200x200 crop of it.
func (l *imageLinks) ThumbnailURL(cid string) (string, error) {
	if l.cld == nil {
		return "", ErrThumbnailsDisabled
	}
	img, err := l.cld.Image(l.gatewayURL(cid))
	if err != nil {
		return "", fmt.Errorf("failed to build cloudinary asset: %w", err)
	}
	img.DeliveryType = "fetch"
	img.Transformation = thumbnailTransformation
	url, err := img.String()
	if err != nil {
		return "", fmt.Errorf("failed to build thumbnail url: %w", err)
	}
	return url, nil
}
