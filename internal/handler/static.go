package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"drone-dashboard-proxy/internal/assets"
)

// StaticHandler serves the bundled frontend.
type StaticHandler struct {
	store *assets.Store
}

// NewStaticHandler creates a StaticHandler.
func NewStaticHandler(store *assets.Store) *StaticHandler {
	return &StaticHandler{store: store}
}

// Serve writes the asset matching the request path, or an empty 404.
func (h *StaticHandler) Serve(c echo.Context) error {
	asset, ok := h.store.Lookup(c.Request().URL.Path)
	if !ok {
		return c.NoContent(http.StatusNotFound)
	}
	return c.Blob(http.StatusOK, asset.ContentType, asset.Data)
}
