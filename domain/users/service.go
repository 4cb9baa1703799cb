package users

import (
	"context"
	"log/slog"

	"github.com/anivault/anivault/domain/works"
	"github.com/anivault/anivault/pkg/apperror"
	"github.com/anivault/anivault/pkg/logger"
)

// Service handles business logic for users
type Service struct {
	repo *Repository
	log  *slog.Logger
}

// NewService creates a new users service
func NewService(repo *Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With(logger.Scope("users.svc")),
	}
}

// Touch gets or creates the user behind a telegram id and refreshes
// their profile. The bot calls this on every update.
func (s *Service) Touch(ctx context.Context, telegramID int64, username, firstName *string) (*User, error) {
	if telegramID <= 0 {
		return nil, apperror.ErrBadRequest.WithMessage("telegramId must be positive")
	}
	return s.repo.Touch(ctx, telegramID, username, firstName)
}

// Get loads a user by telegram id.
func (s *Service) Get(ctx context.Context, telegramID int64) (*User, error) {
	return s.repo.ByTelegramID(ctx, telegramID)
}

// AddFavorite pins a work to the user's list.
func (s *Service) AddFavorite(ctx context.Context, telegramID int64, workID string) error {
	user, err := s.repo.ByTelegramID(ctx, telegramID)
	if err != nil {
		return err
	}
	return s.repo.AddFavorite(ctx, user.ID, workID)
}

// RemoveFavorite unpins a work; removing something never pinned is a 404.
func (s *Service) RemoveFavorite(ctx context.Context, telegramID int64, workID string) error {
	user, err := s.repo.ByTelegramID(ctx, telegramID)
	if err != nil {
		return err
	}
	removed, err := s.repo.RemoveFavorite(ctx, user.ID, workID)
	if err != nil {
		return err
	}
	if !removed {
		return apperror.ErrNotFound.WithMessage("work is not in favorites")
	}
	return nil
}

// ListFavorites returns the user's pinned works, newest pin first.
func (s *Service) ListFavorites(ctx context.Context, telegramID int64, limit, offset int) ([]*works.Work, error) {
	user, err := s.repo.ByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListFavorites(ctx, user.ID, limit, offset)
}

// SetRating stores the user's 1..10 score for a work.
func (s *Service) SetRating(ctx context.Context, telegramID int64, workID string, score int) error {
	if score < 1 || score > 10 {
		return apperror.NewValidation("score must be between 1 and 10")
	}
	user, err := s.repo.ByTelegramID(ctx, telegramID)
	if err != nil {
		return err
	}
	return s.repo.SetRating(ctx, user.ID, workID, score)
}

// RecordWatch marks an episode as watched.
func (s *Service) RecordWatch(ctx context.Context, telegramID int64, episodeID string) error {
	if episodeID == "" {
		return apperror.ErrBadRequest.WithMessage("episodeId is required")
	}
	user, err := s.repo.ByTelegramID(ctx, telegramID)
	if err != nil {
		return err
	}
	return s.repo.RecordWatch(ctx, user.ID, episodeID)
}

// WatchHistory lists the user's watched episodes, newest first.
func (s *Service) WatchHistory(ctx context.Context, telegramID int64, limit, offset int) ([]*WatchEntry, error) {
	user, err := s.repo.ByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	return s.repo.WatchHistory(ctx, user.ID, limit, offset)
}

// WorkStatus assembles the per-user view of one work: favorite flag,
// own and average score, watched episode count.
func (s *Service) WorkStatus(ctx context.Context, telegramID int64, workID string) (*WorkStatus, error) {
	user, err := s.repo.ByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}

	favorite, err := s.repo.IsFavorite(ctx, user.ID, workID)
	if err != nil {
		return nil, err
	}
	summary, err := s.repo.RatingFor(ctx, user.ID, workID)
	if err != nil {
		return nil, err
	}
	watched, err := s.repo.WatchedCount(ctx, user.ID, workID)
	if err != nil {
		return nil, err
	}

	return &WorkStatus{
		Favorite: favorite,
		Score:    summary.Score,
		Average:  summary.Average,
		Watched:  watched,
	}, nil
}
