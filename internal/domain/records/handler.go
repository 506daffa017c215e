package records

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/healthvault/vault/internal/platform/apperr"
	"github.com/healthvault/vault/internal/platform/auth"
	"github.com/healthvault/vault/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, authMW ...echo.MiddlewareFunc) {
	g := api.Group("/records", authMW...)
	g.POST("/upload", h.Upload)
	g.GET("", h.List)
	g.PUT("/:recordId", h.Update)
	g.DELETE("/:recordId", h.Delete)
}

func uid(c echo.Context) string {
	return auth.UserIDFromContext(c.Request().Context())
}

func recordID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("recordId"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid record id")
	}
	return id, nil
}

func (h *Handler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return apperr.HTTP(ErrNoFile)
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid file").SetInternal(err)
	}
	defer f.Close()

	rec, err := h.svc.Upload(c.Request().Context(), uid(c), UploadInput{
		Title:        c.FormValue("title"),
		Description:  c.FormValue("description"),
		Category:     c.FormValue("category"),
		DateOfRecord: c.FormValue("dateOfRecord"),
		Tags:         c.FormValue("tags"),
	}, FileInfo{
		Name:        fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
	}, f)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "Medical record uploaded successfully",
		"record":  rec,
	})
}

func (h *Handler) List(c echo.Context) error {
	out, info, err := h.svc.List(c.Request().Context(), uid(c), ListQuery{
		Category:  c.QueryParam("category"),
		StartDate: c.QueryParam("startDate"),
		EndDate:   c.QueryParam("endDate"),
		Tag:       c.QueryParam("tag"),
	}, pagination.FromContext(c))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"records":    out,
		"pagination": info,
	})
}

func (h *Handler) Update(c echo.Context) error {
	id, err := recordID(c)
	if err != nil {
		return err
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	rec, err := h.svc.Update(c.Request().Context(), uid(c), id, in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Record updated successfully",
		"record":  rec,
	})
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := recordID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), uid(c), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"message": "Medical record deleted successfully"})
}
