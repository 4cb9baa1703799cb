package works

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/anivault/anivault/pkg/apperror"
)

// Handler handles HTTP requests for the catalog read API
type Handler struct {
	svc *Service
}

// NewHandler creates a new works handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Search handles GET /works/search
// @Summary Search works
// @Description Fuzzy title search over the mirrored catalog
// @Tags works
// @Produce json
// @Param q query string true "Search query"
// @Param limit query int false "Maximum results (default 20, max 100)"
// @Success 200 {array} Work
// @Failure 400 {object} apperror.Error
// @Router /api/works/search [get]
func (h *Handler) Search(c echo.Context) error {
	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return apperror.ErrBadRequest.WithMessage("invalid limit")
		}
		limit = parsed
	}

	results, err := h.svc.Search(c.Request().Context(), c.QueryParam("q"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, results)
}

// GetByID handles GET /works/:id
// @Summary Get a work
// @Description Get one work with its available translations
// @Tags works
// @Produce json
// @Param id path string true "Work ID"
// @Success 200 {object} Work
// @Failure 404 {object} apperror.Error
// @Router /api/works/{id} [get]
func (h *Handler) GetByID(c echo.Context) error {
	work, err := h.svc.GetWork(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, work)
}

// ListEpisodes handles GET /works/:id/episodes
// @Summary List episodes
// @Description List a work's episodes with their publication state
// @Tags works
// @Produce json
// @Param id path string true "Work ID"
// @Param translation_id query int false "Filter by translation"
// @Success 200 {array} EpisodeListItem
// @Failure 400 {object} apperror.Error
// @Failure 404 {object} apperror.Error
// @Router /api/works/{id}/episodes [get]
func (h *Handler) ListEpisodes(c echo.Context) error {
	var translationID *int
	if raw := c.QueryParam("translation_id"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return apperror.ErrBadRequest.WithMessage("invalid translation_id")
		}
		translationID = &parsed
	}

	items, err := h.svc.ListEpisodes(c.Request().Context(), c.Param("id"), translationID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}
