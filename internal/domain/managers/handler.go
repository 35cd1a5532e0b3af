package managers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/medvault/medvault/internal/domain/actor"
	"github.com/medvault/medvault/internal/platform/auth"
	"github.com/medvault/medvault/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts self-service registration on the authenticated group
// and the verification lifecycle on the admin group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/managers", h.Register)
	api.GET("/managers/me", h.Me)

	admin := api.Group("/admin", auth.RequireActorType(actor.TypeAdmin))
	admin.GET("/managers", h.List)
	admin.GET("/managers/:id", h.Get)
	admin.POST("/managers/:id/verify", h.Verify)
	admin.POST("/managers/:id/suspend", h.Suspend)
}

type registerRequest struct {
	OrganizationName string `json:"organization_name"`
}

func (h *Handler) Register(c echo.Context) error {
	a, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	if a.IsAdmin() {
		return echo.NewHTTPError(http.StatusForbidden, "admins cannot register manager records")
	}
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m, err := h.svc.Register(c.Request().Context(), a.ID, req.OrganizationName)
	if err != nil {
		if errors.Is(err, ErrAlreadyRegistered) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) Me(c echo.Context) error {
	a, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	m, err := h.svc.GetByUserID(c.Request().Context(), a.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid manager id")
	}
	m, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) List(c echo.Context) error {
	page := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), page.Limit, page.Offset)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Manager{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, page.Limit, page.Offset))
}

func (h *Handler) Verify(c echo.Context) error {
	return h.setStatus(c, h.svc.Verify)
}

func (h *Handler) Suspend(c echo.Context) error {
	return h.setStatus(c, h.svc.Suspend)
}

func (h *Handler) setStatus(c echo.Context, apply func(ctx context.Context, id int64) error) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid manager id")
	}
	if err := apply(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
