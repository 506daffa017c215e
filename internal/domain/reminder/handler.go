package reminder

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/healthvault/vault/internal/platform/apperr"
	"github.com/healthvault/vault/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, authMW ...echo.MiddlewareFunc) {
	g := api.Group("/reminders", authMW...)
	g.POST("", h.Create)
	g.GET("", h.List)
	g.PUT("/:reminderId", h.Update)
	g.DELETE("/:reminderId", h.Delete)
}

func uid(c echo.Context) string {
	return auth.UserIDFromContext(c.Request().Context())
}

func reminderID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("reminderId"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid reminder id")
	}
	return id, nil
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	rem, err := h.svc.Create(c.Request().Context(), uid(c), in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":  "Reminder created successfully",
		"reminder": rem,
	})
}

func (h *Handler) List(c echo.Context) error {
	out, err := h.svc.List(c.Request().Context(), uid(c), ListQuery{
		Status:    c.QueryParam("status"),
		Type:      c.QueryParam("type"),
		StartDate: c.QueryParam("startDate"),
		EndDate:   c.QueryParam("endDate"),
	})
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"reminders": out})
}

func (h *Handler) Update(c echo.Context) error {
	id, err := reminderID(c)
	if err != nil {
		return err
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	rem, err := h.svc.Update(c.Request().Context(), uid(c), id, in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":  "Reminder updated successfully",
		"reminder": rem,
	})
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := reminderID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), uid(c), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"message": "Reminder deleted successfully"})
}
