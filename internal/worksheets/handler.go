package worksheets

import (
	"net/http"
	"net/url"

	"worksheet-sync/pkg/models"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// unsupportedMethods are answered with 405 instead of echo's default
var unsupportedMethods = []string{
	http.MethodConnect,
	http.MethodHead,
	http.MethodPatch,
	http.MethodPut,
	http.MethodTrace,
}

// Handler handles HTTP requests for worksheet operations
type Handler struct {
	service *Service
	logger  zerolog.Logger
}

// NewHandler creates a new worksheet handler
func NewHandler(service *Service, logger zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.With().Str("component", "worksheets").Logger(),
	}
}

// RegisterRoutes registers worksheet routes with the Echo router
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/worksheets")
	g.OPTIONS("", h.Preflight)
	g.GET("", h.List, h.requireConnection)
	g.POST("", h.Create, h.requireConnection)
	g.DELETE("", h.Delete, h.requireConnection)
	g.Match(unsupportedMethods, "", h.MethodNotAllowed, h.requireConnection)

	g.OPTIONS("/:id", h.Preflight)
	g.DELETE("/:id", h.Delete, h.requireConnection)
	g.Match(append([]string{http.MethodGet, http.MethodPost}, unsupportedMethods...), "/:id", h.MethodNotAllowed, h.requireConnection)

	e.GET("/health", h.Health)
}

// requireConnection fails every non-preflight request while the table is unconfigured
func (h *Handler) requireConnection(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := h.service.Available(); err != nil {
			return h.handleServiceError(c, err)
		}
		return next(c)
	}
}

// Preflight handles OPTIONS; the CORS middleware has already set the headers
func (h *Handler) Preflight(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// List handles GET /worksheets
func (h *Handler) List(c echo.Context) error {
	response, err := h.service.List(c.Request().Context())
	if err != nil {
		return h.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, response)
}

// Create handles POST /worksheets for both sheets and folders
func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return h.handleServiceError(c, ErrInvalidRequest)
	}

	ctx := c.Request().Context()
	if req.IsFolder() {
		name := req.Name
		if name == "" {
			name = req.Folder
		}
		folder, err := h.service.CreateFolder(ctx, name)
		if err != nil {
			return h.handleServiceError(c, err)
		}
		return c.JSON(http.StatusOK, CreateFolderResponse{Folder: folder})
	}

	sheet, err := h.service.CreateSheet(ctx, req.SheetInput())
	if err != nil {
		return h.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, CreateSheetResponse{Sheet: sheet})
}

// Delete handles DELETE /worksheets/:id?type=sheet|folder (id may also come from the query)
func (h *Handler) Delete(c echo.Context) error {
	// echo leaves params escaped when the path carries %2F
	id, err := url.PathUnescape(c.Param("id"))
	if err != nil {
		return h.handleServiceError(c, ErrInvalidRequest)
	}
	if id == "" {
		id = c.QueryParam("id")
	}
	kind := models.PartitionKindFromType(c.QueryParam("type"))

	if err := h.service.Delete(c.Request().Context(), kind, id); err != nil {
		return h.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, DeleteResponse{OK: true})
}

// MethodNotAllowed answers every method the worksheet API does not serve
func (h *Handler) MethodNotAllowed(c echo.Context) error {
	return c.JSON(http.StatusMethodNotAllowed, map[string]string{
		"error": "Method not allowed",
	})
}

// Health handles GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) handleServiceError(c echo.Context, err error) error {
	response := GetErrorResponse(err)
	if response.StatusCode >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("method", c.Request().Method).Msg("worksheets error")
	}

	body := map[string]string{"error": response.Message}
	if response.Detail != "" {
		body["detail"] = response.Detail
	}
	return c.JSON(response.StatusCode, body)
}
