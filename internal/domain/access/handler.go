package access

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medvault/medvault/internal/domain/actor"
	"github.com/medvault/medvault/internal/domain/documents"
	"github.com/medvault/medvault/internal/platform/auth"
)

type Handler struct {
	svc       *Service
	authority *AuthorityService
}

func NewHandler(svc *Service, authority *AuthorityService) *Handler {
	return &Handler{svc: svc, authority: authority}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/documents", h.ListDocuments)
	api.GET("/documents/:id", h.GetDocument)
	api.GET("/documents/:id/permissions", h.CheckPermission)
	api.GET("/documents/:id/grants", h.ListDocumentGrants)
	api.POST("/documents/:id/grants", h.CreateGrant)

	api.POST("/grants", h.CreateGrant)
	api.GET("/grants", h.ListMyGrants)
	api.GET("/grants/:id", h.GetGrant)
	api.DELETE("/grants/:id", h.RevokeGrant)
}

// httpError maps domain errors onto transport status codes. Not-found and
// unauthorized-read share a single 404 mapping.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrGrantNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrAlreadyGranted), errors.Is(err, ErrAlreadyRevoked), errors.Is(err, ErrImplicitGrantee):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}

func (h *Handler) GetDocument(c echo.Context) error {
	a, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid document id")
	}
	doc, err := h.svc.GetDocument(c.Request().Context(), id, a)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *Handler) ListDocuments(c echo.Context) error {
	a, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	opts := ListOptions{Limit: 20}
	if v := c.QueryParam("skip"); v != "" {
		opts.Skip, _ = strconv.Atoi(v)
	}
	if v := c.QueryParam("limit"); v != "" {
		opts.Limit, _ = strconv.Atoi(v)
	}
	if v := c.QueryParam("status"); v != "" {
		st := documents.Status(v)
		if !st.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid status filter")
		}
		opts.Status = &st
	}
	page, err := h.svc.ListDocuments(c.Request().Context(), a, opts)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, page)
}

func (h *Handler) CheckPermission(c echo.Context) error {
	a, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid document id")
	}
	op, err := ParseOperation(c.QueryParam("operation"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	allowed, err := h.svc.CanPerformOperation(c.Request().Context(), id, op, a)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"document_id": id,
		"operation":   op,
		"allowed":     allowed,
	})
}

func (h *Handler) ListDocumentGrants(c echo.Context) error {
	a, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid document id")
	}
	// Grant listings are visible to anyone who can read the document itself.
	if _, err := h.svc.GetDocument(c.Request().Context(), id, a); err != nil {
		return httpError(err)
	}
	grants, err := h.authority.ActiveGrants(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": grants})
}

type createGrantRequest struct {
	DocumentID  uuid.UUID `json:"document_id"`
	SubjectType string    `json:"subject_type"`
	SubjectID   int64     `json:"subject_id"`
	GrantType   string    `json:"grant_type"`
}

func (h *Handler) CreateGrant(c echo.Context) error {
	a, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	var req createGrantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	// Document-scoped route carries the id in the path.
	if raw := c.Param("id"); raw != "" {
		docID, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid document id")
		}
		req.DocumentID = docID
	}
	if req.DocumentID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "document_id is required")
	}
	subjectType, err := actor.ParseSubjectType(req.SubjectType)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	grant, err := h.authority.CreateGrant(c.Request().Context(), CreateGrantInput{
		DocumentID:  req.DocumentID,
		SubjectType: subjectType,
		SubjectID:   req.SubjectID,
		GrantType:   GrantType(req.GrantType),
	}, a)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, grant)
}

func (h *Handler) GetGrant(c echo.Context) error {
	a, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid grant id")
	}
	grant, err := h.authority.GrantByID(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	// Visible to anyone who can read the underlying document.
	if _, err := h.svc.GetDocument(c.Request().Context(), grant.DocumentID, a); err != nil {
		return httpError(ErrGrantNotFound)
	}
	return c.JSON(http.StatusOK, grant)
}

func (h *Handler) ListMyGrants(c echo.Context) error {
	a, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	subjectType := a.Type
	subjectID := a.ID
	if a.IsManager() {
		managerID, ok, err := h.authority.resolveManagerAuthority(c.Request().Context(), a)
		if err != nil {
			return err
		}
		if !ok {
			return c.JSON(http.StatusOK, map[string]interface{}{"data": []*AccessGrant{}})
		}
		subjectID = managerID
	}
	grants, err := h.authority.ActiveGrantsForSubject(c.Request().Context(), subjectType, subjectID)
	if err != nil {
		return httpError(err)
	}
	if grants == nil {
		grants = []*AccessGrant{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": grants})
}

func (h *Handler) RevokeGrant(c echo.Context) error {
	a, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid grant id")
	}
	if err := h.authority.RevokeGrant(c.Request().Context(), id, a); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
