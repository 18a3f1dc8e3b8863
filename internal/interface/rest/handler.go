// Package rest exposes the association store over HTTP.
package rest

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ersonp/pivot/internal/application/handlers"
	"github.com/ersonp/pivot/internal/domain/entities"
	"github.com/ersonp/pivot/internal/domain/services"
	"github.com/ersonp/pivot/internal/infrastructure/events"
	"github.com/ersonp/pivot/internal/interface/rest/presenter"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// Conditional request headers. echo has no constants for these.
const (
	headerETag        = "ETag"
	headerIfMatch     = "If-Match"
	headerIfNoneMatch = "If-None-Match"
)

type Handler struct {
	pivots       *handlers.PivotHandler
	entities     *handlers.EntityHandler
	associations *handlers.AssociationHandler
	imports      *handlers.ImportHandler
	exports      *handlers.ExportHandler
	hub          *events.Hub
}

func NewHandler(
	pivots *handlers.PivotHandler,
	entityHandler *handlers.EntityHandler,
	associations *handlers.AssociationHandler,
	imports *handlers.ImportHandler,
	exports *handlers.ExportHandler,
	hub *events.Hub,
) *Handler {
	return &Handler{
		pivots:       pivots,
		entities:     entityHandler,
		associations: associations,
		imports:      imports,
		exports:      exports,
		hub:          hub,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.handleHealth)

	e.GET("/pivots", h.handleListPivots)
	e.POST("/pivots", h.handleCreatePivot)
	e.GET("/pivots/:pivot", h.handleGetPivot)
	e.DELETE("/pivots/:pivot", h.handleDeletePivot)

	e.GET("/pivots/:pivot/links", h.handleListLinks)
	e.POST("/pivots/:pivot/links", h.handleLink)
	e.DELETE("/pivots/:pivot/links/:left/:right", h.handleUnlink)
	e.GET("/pivots/:pivot/left/:left", h.handleRightIDs)
	e.PUT("/pivots/:pivot/left/:left", h.handleSync)
	e.GET("/pivots/:pivot/left/:left/history", h.handleHistory)
	e.GET("/pivots/:pivot/export", h.handleExport)

	e.GET("/entities/:collection", h.handleListEntities)
	e.GET("/entities/:collection/:id", h.handleGetEntity)
	e.PUT("/entities/:collection/:id", h.handleSaveEntity)
	e.POST("/entities/:collection", h.handleSaveEntity)
	e.DELETE("/entities/:collection/:id", h.handleDeleteEntity)

	e.GET("/history", h.handleHistoryByAction)
	e.POST("/import", h.handleImport)
	e.GET("/events", h.handleEvents)
}

// respondError maps domain errors onto HTTP statuses.
func respondError(c echo.Context, err error) error {
	var stale entities.StaleFingerprintError
	switch {
	case errors.As(err, &stale):
		return presenter.PreconditionFailed(c, err)
	case errors.Is(err, handlers.ErrInvalidInput), errors.Is(err, entities.ErrValidation):
		return presenter.BadRequest(c, err)
	case errors.Is(err, entities.ErrNotFound):
		return presenter.NotFound(c, err.Error())
	case errors.Is(err, entities.ErrIntegrity):
		return presenter.Conflict(c, "integrity", err)
	case errors.Is(err, entities.ErrConflict):
		return presenter.Conflict(c, "conflict", err)
	default:
		return presenter.InternalError(c, err)
	}
}

func queryInt(c echo.Context, name string, def int) (int, error) {
	s := c.QueryParam(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("invalid " + name + " parameter")
	}
	return n, nil
}

func queryBool(c echo.Context, name string) bool {
	b, _ := strconv.ParseBool(c.QueryParam(name))
	return b
}

func pageParams(c echo.Context) (int, int, error) {
	limit, err := queryInt(c, "limit", defaultListLimit)
	if err != nil {
		return 0, 0, err
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

// etag quotes a fingerprint for the ETag header.
func etag(fingerprint string) string {
	return `"` + fingerprint + `"`
}

// parseETag strips quotes and a weak prefix from an If-Match value.
func parseETag(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "W/")
	return strings.Trim(v, `"`)
}

func (h *Handler) handleHealth(c echo.Context) error {
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleListPivots(c echo.Context) error {
	pivots, err := h.pivots.HandleList(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, pivots)
}

func (h *Handler) handleCreatePivot(c echo.Context) error {
	var in handlers.PivotInput
	if err := c.Bind(&in); err != nil {
		return presenter.BadRequest(c, err)
	}
	p, err := h.pivots.HandleCreate(c.Request().Context(), in)
	if err != nil {
		return respondError(c, err)
	}
	return presenter.Created(c, p)
}

func (h *Handler) handleGetPivot(c echo.Context) error {
	p, err := h.pivots.HandleGet(c.Request().Context(), c.Param("pivot"))
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, p)
}

func (h *Handler) handleDeletePivot(c echo.Context) error {
	removed, err := h.pivots.HandleDelete(c.Request().Context(), c.Param("pivot"))
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, echo.Map{"pivot": c.Param("pivot"), "associations_removed": removed})
}

func (h *Handler) handleListLinks(c echo.Context) error {
	limit, offset, err := pageParams(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	res, err := h.associations.HandleList(c.Request().Context(), handlers.ListOptions{
		Pivot:   c.Param("pivot"),
		LeftID:  c.QueryParam("left"),
		RightID: c.QueryParam("right"),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return respondError(c, err)
	}
	if res.Fingerprint != "" {
		c.Response().Header().Set(headerETag, etag(res.Fingerprint))
	}
	return presenter.OK(c, res)
}

type linkRequest struct {
	LeftID   string         `json:"left_id"`
	RightID  string         `json:"right_id"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (h *Handler) handleLink(c echo.Context) error {
	var req linkRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	res, err := h.associations.HandleLink(c.Request().Context(), handlers.LinkInput{
		Pivot:    c.Param("pivot"),
		LeftID:   req.LeftID,
		RightID:  req.RightID,
		Metadata: req.Metadata,
	})
	if err != nil {
		return respondError(c, err)
	}
	if res.Created {
		return presenter.Created(c, res)
	}
	return presenter.OK(c, res)
}

func (h *Handler) handleUnlink(c echo.Context) error {
	removed, err := h.associations.HandleUnlink(c.Request().Context(), c.Param("pivot"), c.Param("left"), c.Param("right"))
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, echo.Map{"removed": removed})
}

type rightIDsResponse struct {
	Pivot       string   `json:"pivot"`
	LeftID      string   `json:"left_id"`
	RightIDs    []string `json:"right_ids"`
	Fingerprint string   `json:"fingerprint"`
}

func (h *Handler) handleRightIDs(c echo.Context) error {
	pivot, left := c.Param("pivot"), c.Param("left")
	ids, fp, err := h.associations.HandleRightIDs(c.Request().Context(), pivot, left)
	if err != nil {
		return respondError(c, err)
	}
	c.Response().Header().Set(headerETag, etag(fp))
	if match := c.Request().Header.Get(headerIfNoneMatch); match != "" && parseETag(match) == fp {
		return c.NoContent(http.StatusNotModified)
	}
	return presenter.OK(c, rightIDsResponse{Pivot: pivot, LeftID: left, RightIDs: ids, Fingerprint: fp})
}

type syncRequest struct {
	RightIDs []string       `json:"right_ids"`
	Metadata map[string]any `json:"metadata,omitempty"`
	IfMatch  string         `json:"if_match,omitempty"`
}

func (h *Handler) handleSync(c echo.Context) error {
	var req syncRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	ifMatch := req.IfMatch
	if header := c.Request().Header.Get(headerIfMatch); header != "" && header != "*" {
		ifMatch = parseETag(header)
	}
	res, err := h.associations.HandleSync(c.Request().Context(), handlers.SyncInput{
		Pivot:    c.Param("pivot"),
		LeftID:   c.Param("left"),
		RightIDs: req.RightIDs,
		Metadata: req.Metadata,
		IfMatch:  ifMatch,
	})
	if err != nil {
		return respondError(c, err)
	}
	c.Response().Header().Set(headerETag, etag(res.Fingerprint))
	return presenter.OK(c, res)
}

func (h *Handler) handleHistory(c echo.Context) error {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	entries, err := h.associations.HandleHistory(c.Request().Context(), handlers.HistoryOptions{
		Pivot:  c.Param("pivot"),
		LeftID: c.Param("left"),
		Limit:  limit,
	})
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, entries)
}

func (h *Handler) handleHistoryByAction(c echo.Context) error {
	action := c.QueryParam("action")
	if action == "" {
		return presenter.BadRequestMessage(c, "action parameter is required")
	}
	limit, err := queryInt(c, "limit", defaultListLimit)
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	entries, err := h.associations.HandleHistory(c.Request().Context(), handlers.HistoryOptions{Action: action, Limit: limit})
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, entries)
}

var exportContentTypes = map[string]string{
	"json":     echo.MIMEApplicationJSONCharsetUTF8,
	"csv":      "text/csv; charset=utf-8",
	"markdown": "text/markdown; charset=utf-8",
}

func (h *Handler) handleExport(c echo.Context) error {
	format := c.QueryParam("format")
	if format == "" {
		format = "json"
	}
	contentType, ok := exportContentTypes[format]
	if !ok {
		return presenter.BadRequestMessage(c, "invalid format parameter (valid: "+strings.Join(handlers.ExportFormats, ", ")+")")
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	// Render into memory first so failures still produce a JSON error.
	var buf strings.Builder
	if _, err := h.exports.Handle(c.Request().Context(), &buf, c.Param("pivot"), format, limit); err != nil {
		return respondError(c, err)
	}
	return c.Blob(http.StatusOK, contentType, []byte(buf.String()))
}

func (h *Handler) handleListEntities(c echo.Context) error {
	ctx := c.Request().Context()
	limit, offset, err := pageParams(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	var res *handlers.EntityListResult
	if q := c.QueryParam("q"); q != "" {
		res, err = h.entities.HandleSearch(ctx, c.Param("collection"), q, limit)
	} else {
		res, err = h.entities.HandleList(ctx, c.Param("collection"), limit, offset)
	}
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, res)
}

func (h *Handler) handleGetEntity(c echo.Context) error {
	e, err := h.entities.HandleGet(c.Request().Context(), c.Param("collection"), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, e)
}

type entityRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

func (h *Handler) handleSaveEntity(c echo.Context) error {
	var req entityRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	id := c.Param("id")
	if id == "" {
		id = req.ID
	}
	e, err := h.entities.HandleSave(c.Request().Context(), c.Param("collection"), id, req.Name)
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, e)
}

func (h *Handler) handleDeleteEntity(c echo.Context) error {
	res, err := h.entities.HandleDelete(c.Request().Context(), c.Param("collection"), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, res)
}

func (h *Handler) handleImport(c echo.Context) error {
	strategy, err := services.ParseConflictStrategy(c.QueryParam("on_conflict"))
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	format := c.QueryParam("format")
	if format == "" {
		format = "json"
		if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), "text/csv") {
			format = "csv"
		}
	}
	res, err := h.imports.HandleReader(c.Request().Context(), c.Request().Body, handlers.ImportOptions{
		Format:        format,
		Pivot:         c.QueryParam("pivot"),
		DryRun:        queryBool(c, "dry_run"),
		OnConflict:    strategy,
		CreateMissing: queryBool(c, "create_missing"),
	})
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, res)
}
