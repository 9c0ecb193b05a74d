package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/khoahotran/openforge/internal/application/usecase/resolve"
)

type DocumentHandler struct {
	resolver *resolve.Resolver
}

func NewDocumentHandler(resolver *resolve.Resolver) *DocumentHandler {
	return &DocumentHandler{resolver: resolver}
}

// GetDocument serves the raw JSON pinned at a CID.
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	raw, err := h.resolver.ResolveDocument(c.Request.Context(), c.Param("cid"))
	if err != nil {
		c.Error(err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}
