package wellness

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	responder *Responder
}

func NewHandler(responder *Responder) *Handler {
	return &Handler{responder: responder}
}

func (h *Handler) RegisterRoutes(api *echo.Group, authMW ...echo.MiddlewareFunc) {
	g := api.Group("/chat", authMW...)
	g.GET("/intro", h.Intro)
	g.POST("/message", h.Message)
}

func (h *Handler) Intro(c echo.Context) error {
	return c.JSON(http.StatusOK, h.responder.Intro())
}

func (h *Handler) Message(c echo.Context) error {
	var body struct {
		Message json.RawMessage `json:"message"`
	}
	var msg string
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil ||
		json.Unmarshal(body.Message, &msg) != nil || msg == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Valid message required")
	}
	return c.JSON(http.StatusOK, h.responder.Respond(msg))
}
