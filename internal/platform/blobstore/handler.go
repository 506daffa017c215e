package blobstore

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler serves objects held by the in-memory store so that development
// record URLs resolve.
type Handler struct {
	store *InMemoryBlobStore
}

func NewHandler(store *InMemoryBlobStore) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/blobs/*", h.handleDownload)
}

func (h *Handler) handleDownload(c echo.Context) error {
	key := c.Param("*")

	rc, blob, err := h.store.Download(c.Request().Context(), key)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "File not found")
		}
		return err
	}
	defer rc.Close()

	c.Response().Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, blob.FileName))
	return c.Stream(http.StatusOK, blob.ContentType, rc)
}
