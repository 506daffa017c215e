package emergency

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/healthvault/vault/internal/platform/apperr"
	"github.com/healthvault/vault/internal/platform/auth"
	"github.com/healthvault/vault/internal/platform/middleware"
)

const maxVisibilityBody = 4 << 10

type Handler struct {
	svc         *Service
	frontendURL string
}

func NewHandler(svc *Service, frontendURL string) *Handler {
	return &Handler{svc: svc, frontendURL: strings.TrimRight(frontendURL, "/")}
}

// RegisterRoutes mounts /emergency and /visibility under api. The public
// profile route is mounted without authMW.
func (h *Handler) RegisterRoutes(api *echo.Group, authMW ...echo.MiddlewareFunc) {
	em := api.Group("/emergency")
	em.GET("/public/emergency/:hash", h.GetPublicProfile)

	priv := em.Group("", authMW...)
	priv.POST("/profile", h.SaveProfile)
	priv.GET("/profile", h.GetPrivateProfile)
	priv.GET("/qr/generate", h.GenerateQR)
	priv.PUT("/visibility", h.UpdateVisibility)

	vis := api.Group("/visibility", authMW...)
	vis.GET("/settings", h.GetVisibilitySettings)
	vis.PUT("/settings", h.PutVisibilitySettings)
	vis.GET("/audit", h.GetVisibilityAudit)
	vis.POST("/reset", h.ResetVisibility)
}

// RegisterPublicRoutes mounts the short link that forwards scanners hitting
// the API host to the frontend page.
func (h *Handler) RegisterPublicRoutes(e *echo.Echo) {
	e.GET("/emergency/:hash", h.RedirectToFrontend)
}

func uid(c echo.Context) string {
	return auth.UserIDFromContext(c.Request().Context())
}

func (h *Handler) GenerateQR(c echo.Context) error {
	tok, err := h.svc.IssueToken(c.Request().Context(), uid(c))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.HTTP(err)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Error generating QR code").SetInternal(err)
	}
	return c.JSON(http.StatusOK, tok)
}

func (h *Handler) GetPublicProfile(c echo.Context) error {
	view, err := h.svc.ReadPublicProfile(c.Request().Context(), c.Param("hash"), AccessMeta{
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) GetPrivateProfile(c echo.Context) error {
	view, err := h.svc.ReadPrivateProfile(c.Request().Context(), uid(c))
	if err != nil {
		return apperr.HTTP(err)
	}
	middleware.NoCache(c)
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) SaveProfile(c echo.Context) error {
	var in ProfileInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	p, err := h.svc.SaveProfile(c.Request().Context(), uid(c), in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Emergency profile saved successfully",
		"profile": p,
	})
}

func (h *Handler) UpdateVisibility(c echo.Context) error {
	return h.updateVisibility(c, false, "Visibility settings updated")
}

func (h *Handler) PutVisibilitySettings(c echo.Context) error {
	return h.updateVisibility(c, true, "Visibility settings updated successfully")
}

func (h *Handler) updateVisibility(c echo.Context, create bool, message string) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxVisibilityBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	vis, err := h.svc.UpdateVisibility(c.Request().Context(), uid(c), body, create)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":            message,
		"visibilitySettings": vis,
	})
}

func (h *Handler) GetVisibilitySettings(c echo.Context) error {
	vis, err := h.svc.GetVisibility(c.Request().Context(), uid(c))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"visibilitySettings": vis})
}

func (h *Handler) GetVisibilityAudit(c echo.Context) error {
	audit, err := h.svc.VisibilityAudit(c.Request().Context(), uid(c))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, audit)
}

func (h *Handler) ResetVisibility(c echo.Context) error {
	vis, err := h.svc.ResetVisibility(c.Request().Context(), uid(c))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":            "Visibility settings reset to default",
		"visibilitySettings": vis,
	})
}

func (h *Handler) RedirectToFrontend(c echo.Context) error {
	return c.Redirect(http.StatusFound, h.frontendURL+"/emergency/"+url.PathEscape(c.Param("hash")))
}
