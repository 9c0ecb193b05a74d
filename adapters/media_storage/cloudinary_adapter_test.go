package media_storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khoahotran/openforge/internal/config"
	"github.com/khoahotran/openforge/pkg/logger"
)

const testCID = "bafkreigh2akiscaildcqabsyg3dfr6chu3fgpregiymsck7e7aqa4s52zy"

func gateway(cid string) string { return "https://ipfs.io/ipfs/" + cid }

func TestImageLinks_WithoutCloudinary(t *testing.T) {
	links, err := NewImageLinks(config.Config{}, gateway, logger.NewNopLogger())
	require.NoError(t, err)

	assert.Equal(t, gateway(testCID), links.GatewayURL(testCID))
	_, err = links.ThumbnailURL(testCID)
	assert.ErrorIs(t, err, ErrThumbnailsDisabled)
}

func TestImageLinks_Thumbnail(t *testing.T) {
	var cfg config.Config
	cfg.Cloudinary.CloudName = "openforge"
	cfg.Cloudinary.ApiKey = "key"
	cfg.Cloudinary.ApiSecret = "secret"

	links, err := NewImageLinks(cfg, gateway, logger.NewNopLogger())
	require.NoError(t, err)

	url, err := links.ThumbnailURL(testCID)
	require.NoError(t, err)
	assert.Contains(t, url, "res.cloudinary.com/openforge/image/fetch/")
	assert.Contains(t, url, thumbnailTransformation)
	assert.Contains(t, url, testCID)
}
