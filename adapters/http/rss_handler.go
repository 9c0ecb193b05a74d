package http

import (
	"github.com/gin-gonic/gin"

	"github.com/khoahotran/openforge/internal/application/usecase/resolve"
	"github.com/khoahotran/openforge/pkg/apperror"
	"github.com/khoahotran/openforge/pkg/logger"
)

type RSSHandler struct {
	feedUseCase *resolve.FeedUseCase
	logger      logger.Logger
}

func NewRSSHandler(uc *resolve.FeedUseCase, log logger.Logger) *RSSHandler {
	return &RSSHandler{
		feedUseCase: uc,
		logger:      log,
	}
}

func (h *RSSHandler) GenerateRSS(c *gin.Context) {
	feed, err := h.feedUseCase.RSS(c.Request.Context())
	if err != nil {
		c.Error(apperror.NewInternal("failed to generate RSS feed", err))
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	if err := feed.WriteRss(c.Writer); err != nil {
		h.logger.Error("Failed to write RSS feed to response", err)
	}
}
