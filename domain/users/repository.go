package users

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/anivault/anivault/domain/works"
	"github.com/anivault/anivault/pkg/apperror"
	"github.com/anivault/anivault/pkg/logger"
	"github.com/anivault/anivault/pkg/pgutils"
)

// Repository handles database operations for users and their lists.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a users repository
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("users.repo")),
	}
}

// Touch gets or creates the user for a telegram id, refreshing the
// profile fields and last_seen_at on every call. Returns the stored row.
func (r *Repository) Touch(ctx context.Context, telegramID int64, username, firstName *string) (*User, error) {
	user := &User{
		TelegramID: telegramID,
		Username:   username,
		FirstName:  firstName,
	}
	_, err := r.db.NewInsert().
		Model(user).
		On("CONFLICT (telegram_id) DO UPDATE").
		Set("username = EXCLUDED.username").
		Set("first_name = EXCLUDED.first_name").
		Set("last_seen_at = now()").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, r.writeError(err, "touch user")
	}
	return user, nil
}

// ByTelegramID loads a user by their telegram id.
func (r *Repository) ByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	user := &User{}
	err := r.db.NewSelect().
		Model(user).
		Where("u.telegram_id = ?", telegramID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrUserNotFound
	}
	if err != nil {
		r.log.Error("failed to load user", slog.Int64("telegram_id", telegramID), logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return user, nil
}

// AddFavorite pins a work; adding twice is a no-op.
func (r *Repository) AddFavorite(ctx context.Context, userID uuid.UUID, workID string) error {
	fav := &Favorite{UserID: userID, WorkID: workID}
	_, err := r.db.NewInsert().
		Model(fav).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return r.writeError(err, "add favorite")
	}
	return nil
}

// RemoveFavorite unpins a work. Reports whether a row was removed.
func (r *Repository) RemoveFavorite(ctx context.Context, userID uuid.UUID, workID string) (bool, error) {
	res, err := r.db.NewDelete().
		Model((*Favorite)(nil)).
		Where("user_id = ?", userID).
		Where("work_id = ?", workID).
		Exec(ctx)
	if err != nil {
		return false, r.writeError(err, "remove favorite")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperror.ErrDatabase.WithInternal(err)
	}
	return n > 0, nil
}

// ListFavorites returns the user's pinned works, most recently added first.
func (r *Repository) ListFavorites(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*works.Work, error) {
	limit = clampLimit(limit)

	rows := []*works.Work{}
	err := r.db.NewSelect().
		Model(&rows).
		Join("INNER JOIN core.favorites AS f ON f.work_id = w.id").
		Where("f.user_id = ?", userID).
		OrderExpr("f.created_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		r.log.Error("failed to list favorites", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return rows, nil
}

// IsFavorite reports whether the work is on the user's list.
func (r *Repository) IsFavorite(ctx context.Context, userID uuid.UUID, workID string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*Favorite)(nil)).
		Where("user_id = ?", userID).
		Where("work_id = ?", workID).
		Exists(ctx)
	if err != nil {
		return false, apperror.ErrDatabase.WithInternal(err)
	}
	return exists, nil
}

// SetRating writes the user's score for a work, replacing any earlier one.
func (r *Repository) SetRating(ctx context.Context, userID uuid.UUID, workID string, score int) error {
	rating := &Rating{UserID: userID, WorkID: workID, Score: score}
	_, err := r.db.NewInsert().
		Model(rating).
		On("CONFLICT (user_id, work_id) DO UPDATE").
		Set("score = EXCLUDED.score").
		Set("updated_at = now()").
		Exec(ctx)
	if err != nil {
		return r.writeError(err, "set rating")
	}
	return nil
}

// RatingFor returns the user's own score plus the work's average, either
// of which may be absent.
func (r *Repository) RatingFor(ctx context.Context, userID uuid.UUID, workID string) (*RatingSummary, error) {
	summary := &RatingSummary{}

	var score int
	err := r.db.NewSelect().
		Model((*Rating)(nil)).
		Column("rt.score").
		Where("rt.user_id = ?", userID).
		Where("rt.work_id = ?", workID).
		Scan(ctx, &score)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// No personal score; the average may still exist.
	case err != nil:
		return nil, apperror.ErrDatabase.WithInternal(err)
	default:
		summary.Score = &score
	}

	err = r.db.NewSelect().
		Model((*Rating)(nil)).
		ColumnExpr("avg(rt.score)").
		Where("rt.work_id = ?", workID).
		Scan(ctx, &summary.Average)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return summary, nil
}

// RecordWatch marks an episode as watched; re-watching bumps watched_at.
func (r *Repository) RecordWatch(ctx context.Context, userID uuid.UUID, episodeID string) error {
	entry := &WatchEntry{UserID: userID, EpisodeID: episodeID}
	_, err := r.db.NewInsert().
		Model(entry).
		On("CONFLICT (user_id, episode_id) DO UPDATE").
		Set("watched_at = now()").
		Exec(ctx)
	if err != nil {
		return r.writeError(err, "record watch")
	}
	return nil
}

// WatchHistory lists what the user watched, newest first, episodes loaded.
func (r *Repository) WatchHistory(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*WatchEntry, error) {
	limit = clampLimit(limit)

	entries := []*WatchEntry{}
	err := r.db.NewSelect().
		Model(&entries).
		Relation("Episode").
		Where("wh.user_id = ?", userID).
		OrderExpr("wh.watched_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		r.log.Error("failed to load watch history", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return entries, nil
}

// WatchedCount counts the episodes of one work the user has watched.
func (r *Repository) WatchedCount(ctx context.Context, userID uuid.UUID, workID string) (int, error) {
	count, err := r.db.NewSelect().
		Model((*WatchEntry)(nil)).
		Join("INNER JOIN catalog.episode AS e ON e.id = wh.episode_id").
		Where("wh.user_id = ?", userID).
		Where("e.work_id = ?", workID).
		Count(ctx)
	if err != nil {
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	return count, nil
}

// writeError maps referential failures onto the missing resource and
// CHECK violations onto validation errors.
func (r *Repository) writeError(err error, op string) error {
	if pgutils.IsForeignKeyViolation(err) {
		name := pgutils.ConstraintName(err)
		r.log.Warn("unknown reference during "+op,
			slog.String("constraint", name),
			logger.Error(err))
		switch {
		case strings.Contains(name, "work"):
			return apperror.ErrWorkNotFound.WithInternal(err)
		case strings.Contains(name, "episode"):
			return apperror.ErrEpisodeNotFound.WithInternal(err)
		case strings.Contains(name, "user"):
			return apperror.ErrUserNotFound.WithInternal(err)
		}
		return apperror.ErrNotFound.WithInternal(err)
	}
	if pgutils.IsCheckViolation(err) || pgutils.IsNotNullViolation(err) {
		return apperror.NewValidation("value rejected by a user data constraint").WithInternal(err)
	}
	r.log.Error("failed to "+op, logger.Error(err))
	return apperror.ErrDatabase.WithInternal(err)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 100 {
		return 100
	}
	return limit
}
