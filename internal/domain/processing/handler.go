package processing

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medvault/medvault/internal/domain/access"
	"github.com/medvault/medvault/internal/domain/actor"
	"github.com/medvault/medvault/internal/domain/documents"
	"github.com/medvault/medvault/internal/platform/auth"
	"github.com/medvault/medvault/internal/platform/blobstore"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/documents", h.Upload)
	api.GET("/documents/:id/download", h.Download)
	api.POST("/documents/:id/ocr", h.TriggerOCR)
	api.POST("/documents/:id/retry", h.Retry)
	api.DELETE("/documents/:id", h.Delete)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, access.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, access.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotProcessable),
		errors.Is(err, documents.ErrInvalidTransition),
		errors.Is(err, blobstore.ErrFileTooLarge),
		errors.Is(err, blobstore.ErrInvalidContentType),
		errors.Is(err, blobstore.ErrMissingFileName):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}

func (h *Handler) Upload(c echo.Context) error {
	a, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field 'file' is required")
	}
	src, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read uploaded file")
	}
	defer src.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	doc, err := h.svc.Upload(c.Request().Context(), a, fileHeader.Filename, contentType, src)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, doc)
}

func (h *Handler) Download(c echo.Context) error {
	a, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid document id")
	}
	content, doc, err := h.svc.Download(c.Request().Context(), id, a)
	if err != nil {
		return httpError(err)
	}
	defer content.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+doc.FileName+`"`)
	return c.Stream(http.StatusOK, doc.ContentType, content)
}

func (h *Handler) TriggerOCR(c echo.Context) error {
	return h.runPipeline(c, h.svc.TriggerOCR)
}

func (h *Handler) Retry(c echo.Context) error {
	return h.runPipeline(c, h.svc.Retry)
}

func (h *Handler) runPipeline(c echo.Context, run func(ctx context.Context, id uuid.UUID, a actor.Actor) (*documents.Document, error)) error {
	a, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid document id")
	}
	doc, err := run(c.Request().Context(), id, a)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *Handler) Delete(c echo.Context) error {
	a, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid document id")
	}
	doc, err := h.svc.Delete(c.Request().Context(), id, a)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, doc)
}
