package users

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/anivault/anivault/pkg/apperror"
)

// TouchRequest is the body for registering or refreshing a user.
type TouchRequest struct {
	TelegramID int64   `json:"telegramId"`
	Username   *string `json:"username,omitempty"`
	FirstName  *string `json:"firstName,omitempty"`
}

// RateRequest is the body for scoring a work.
type RateRequest struct {
	Score int `json:"score"`
}

// WatchRequest is the body for recording a watched episode.
type WatchRequest struct {
	EpisodeID string `json:"episodeId"`
}

// Handler handles HTTP requests for the user domain
type Handler struct {
	svc *Service
}

// NewHandler creates a new users handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Touch handles POST /users
// @Summary Register or refresh a user
// @Description Get-or-create by telegram id; updates profile and last seen
// @Tags users
// @Accept json
// @Produce json
// @Param request body TouchRequest true "User identity"
// @Success 200 {object} User
// @Failure 400 {object} apperror.Error
// @Router /api/users [post]
func (h *Handler) Touch(c echo.Context) error {
	var req TouchRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	user, err := h.svc.Touch(c.Request().Context(), req.TelegramID, req.Username, req.FirstName)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Get handles GET /users/:telegram_id
// @Summary Get a user
// @Tags users
// @Produce json
// @Param telegram_id path int true "Telegram user ID"
// @Success 200 {object} User
// @Failure 404 {object} apperror.Error
// @Router /api/users/{telegram_id} [get]
func (h *Handler) Get(c echo.Context) error {
	telegramID, err := telegramIDParam(c)
	if err != nil {
		return err
	}

	user, err := h.svc.Get(c.Request().Context(), telegramID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// ListFavorites handles GET /users/:telegram_id/favorites
// @Summary List favorite works
// @Tags users
// @Produce json
// @Param telegram_id path int true "Telegram user ID"
// @Param limit query int false "Maximum results (default 50, max 100)"
// @Param offset query int false "Offset into the list"
// @Success 200 {array} works.Work
// @Failure 404 {object} apperror.Error
// @Router /api/users/{telegram_id}/favorites [get]
func (h *Handler) ListFavorites(c echo.Context) error {
	telegramID, err := telegramIDParam(c)
	if err != nil {
		return err
	}
	limit, offset, err := pageParams(c)
	if err != nil {
		return err
	}

	favorites, err := h.svc.ListFavorites(c.Request().Context(), telegramID, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, favorites)
}

// AddFavorite handles PUT /users/:telegram_id/favorites/:work_id
// @Summary Pin a work to favorites
// @Tags users
// @Param telegram_id path int true "Telegram user ID"
// @Param work_id path string true "Work ID"
// @Success 204
// @Failure 404 {object} apperror.Error
// @Router /api/users/{telegram_id}/favorites/{work_id} [put]
func (h *Handler) AddFavorite(c echo.Context) error {
	telegramID, err := telegramIDParam(c)
	if err != nil {
		return err
	}

	if err := h.svc.AddFavorite(c.Request().Context(), telegramID, c.Param("work_id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// RemoveFavorite handles DELETE /users/:telegram_id/favorites/:work_id
// @Summary Unpin a work
// @Tags users
// @Param telegram_id path int true "Telegram user ID"
// @Param work_id path string true "Work ID"
// @Success 204
// @Failure 404 {object} apperror.Error
// @Router /api/users/{telegram_id}/favorites/{work_id} [delete]
func (h *Handler) RemoveFavorite(c echo.Context) error {
	telegramID, err := telegramIDParam(c)
	if err != nil {
		return err
	}

	if err := h.svc.RemoveFavorite(c.Request().Context(), telegramID, c.Param("work_id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// SetRating handles PUT /users/:telegram_id/ratings/:work_id
// @Summary Rate a work
// @Tags users
// @Accept json
// @Param telegram_id path int true "Telegram user ID"
// @Param work_id path string true "Work ID"
// @Param request body RateRequest true "Score 1..10"
// @Success 204
// @Failure 422 {object} apperror.Error
// @Router /api/users/{telegram_id}/ratings/{work_id} [put]
func (h *Handler) SetRating(c echo.Context) error {
	telegramID, err := telegramIDParam(c)
	if err != nil {
		return err
	}
	var req RateRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	if err := h.svc.SetRating(c.Request().Context(), telegramID, c.Param("work_id"), req.Score); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// RecordWatch handles POST /users/:telegram_id/history
// @Summary Record a watched episode
// @Tags users
// @Accept json
// @Param telegram_id path int true "Telegram user ID"
// @Param request body WatchRequest true "Episode"
// @Success 204
// @Failure 404 {object} apperror.Error
// @Router /api/users/{telegram_id}/history [post]
func (h *Handler) RecordWatch(c echo.Context) error {
	telegramID, err := telegramIDParam(c)
	if err != nil {
		return err
	}
	var req WatchRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	if err := h.svc.RecordWatch(c.Request().Context(), telegramID, req.EpisodeID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// WatchHistory handles GET /users/:telegram_id/history
// @Summary List watched episodes
// @Tags users
// @Produce json
// @Param telegram_id path int true "Telegram user ID"
// @Param limit query int false "Maximum results (default 50, max 100)"
// @Param offset query int false "Offset into the list"
// @Success 200 {array} WatchEntry
// @Failure 404 {object} apperror.Error
// @Router /api/users/{telegram_id}/history [get]
func (h *Handler) WatchHistory(c echo.Context) error {
	telegramID, err := telegramIDParam(c)
	if err != nil {
		return err
	}
	limit, offset, err := pageParams(c)
	if err != nil {
		return err
	}

	history, err := h.svc.WatchHistory(c.Request().Context(), telegramID, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, history)
}

// WorkStatus handles GET /users/:telegram_id/works/:work_id
// @Summary Per-user view of a work
// @Description Favorite flag, own and average score, watched episode count
// @Tags users
// @Produce json
// @Param telegram_id path int true "Telegram user ID"
// @Param work_id path string true "Work ID"
// @Success 200 {object} WorkStatus
// @Failure 404 {object} apperror.Error
// @Router /api/users/{telegram_id}/works/{work_id} [get]
func (h *Handler) WorkStatus(c echo.Context) error {
	telegramID, err := telegramIDParam(c)
	if err != nil {
		return err
	}

	status, err := h.svc.WorkStatus(c.Request().Context(), telegramID, c.Param("work_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, status)
}

func telegramIDParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("telegram_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ErrBadRequest.WithMessage("invalid telegram id")
	}
	return id, nil
}

func pageParams(c echo.Context) (limit, offset int, err error) {
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			return 0, 0, apperror.ErrBadRequest.WithMessage("invalid limit")
		}
	}
	if raw := c.QueryParam("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, apperror.ErrBadRequest.WithMessage("invalid offset")
		}
	}
	return limit, offset, nil
}
