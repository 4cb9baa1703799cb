package works

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/anivault/anivault/internal/database"
	"github.com/anivault/anivault/pkg/apperror"
	"github.com/anivault/anivault/pkg/logger"
	"github.com/anivault/anivault/pkg/pgutils"
)

// searchThreshold is the minimum trigram similarity for a search hit.
// Lower than pg_trgm's default so short and transliterated queries still
// rank.
const searchThreshold = 0.1

// Repository handles database operations for the catalog mirror.
//
// The upsert methods take an explicit bun.IDB so the ingest service can run
// them inside one transaction; pass r.DB() outside a transaction.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a works repository
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("works.repo")),
	}
}

// DB exposes the underlying handle for callers composing their own queries.
func (r *Repository) DB() bun.IDB {
	return r.db
}

// BeginTx starts a transaction wrapped so Rollback after Commit is a no-op.
func (r *Repository) BeginTx(ctx context.Context) (*database.SafeTx, error) {
	return database.BeginSafeTx(ctx, r.db)
}

// UpsertWorks inserts or refreshes a batch of works keyed by catalog id.
// Rows without an id or title are dropped with a warning. Returns the number
// of rows written.
func (r *Repository) UpsertWorks(ctx context.Context, db bun.IDB, rows []*Work) (int, error) {
	valid := make([]*Work, 0, len(rows))
	for _, w := range rows {
		if w == nil || w.ID == "" || w.Title == "" {
			r.log.Warn("dropping work without identity",
				slog.String("id", safeID(w)))
			continue
		}
		valid = append(valid, w)
	}
	if len(valid) == 0 {
		return 0, nil
	}

	_, err := db.NewInsert().
		Model(&valid).
		On("CONFLICT (id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("title_orig = EXCLUDED.title_orig").
		Set("alt_titles = EXCLUDED.alt_titles").
		Set("genres = EXCLUDED.genres").
		Set("external_ids = EXCLUDED.external_ids").
		Set("blocked_countries = EXCLUDED.blocked_countries").
		Set("year = EXCLUDED.year").
		Set("poster_url = EXCLUDED.poster_url").
		Set("description = EXCLUDED.description").
		Set("rating_shiki = EXCLUDED.rating_shiki").
		Set("rating_kinopoisk = EXCLUDED.rating_kinopoisk").
		Set("rating_imdb = EXCLUDED.rating_imdb").
		Set("episodes_total = EXCLUDED.episodes_total").
		Set("status = EXCLUDED.status").
		Set("updated_at = now()").
		Exec(ctx)
	if err != nil {
		return 0, r.writeError(err, "upsert works")
	}
	return len(valid), nil
}

// UpsertTranslations inserts or refreshes translation studios by id.
func (r *Repository) UpsertTranslations(ctx context.Context, db bun.IDB, rows []*Translation) (int, error) {
	valid := make([]*Translation, 0, len(rows))
	for _, t := range rows {
		if t == nil || t.ID < 0 {
			r.log.Warn("dropping translation without identity")
			continue
		}
		valid = append(valid, t)
	}
	if len(valid) == 0 {
		return 0, nil
	}

	_, err := db.NewInsert().
		Model(&valid).
		On("CONFLICT (id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("type = EXCLUDED.type").
		Exec(ctx)
	if err != nil {
		return 0, r.writeError(err, "upsert translations")
	}
	return len(valid), nil
}

// UpsertWorkTranslations records which translations a work is available in.
func (r *Repository) UpsertWorkTranslations(ctx context.Context, db bun.IDB, rows []*WorkTranslation) (int, error) {
	valid := make([]*WorkTranslation, 0, len(rows))
	for _, wt := range rows {
		if wt == nil || wt.WorkID == "" {
			r.log.Warn("dropping work translation without work id")
			continue
		}
		valid = append(valid, wt)
	}
	if len(valid) == 0 {
		return 0, nil
	}

	_, err := db.NewInsert().
		Model(&valid).
		On("CONFLICT (work_id, translation_id) DO UPDATE").
		Set("episodes_available = EXCLUDED.episodes_available").
		Set("last_episode = EXCLUDED.last_episode").
		Set("updated_at = now()").
		Exec(ctx)
	if err != nil {
		return 0, r.writeError(err, "upsert work translations")
	}
	return len(valid), nil
}

// UpsertEpisodes inserts or refreshes episodes keyed by composite id.
// Rows missing an id, work id, or a positive number are dropped with a
// warning.
func (r *Repository) UpsertEpisodes(ctx context.Context, db bun.IDB, rows []*Episode) (int, error) {
	valid := make([]*Episode, 0, len(rows))
	for _, e := range rows {
		if e == nil || e.ID == "" || e.WorkID == "" || e.Number < 1 {
			r.log.Warn("dropping episode without identity",
				slog.String("id", safeEpisodeID(e)))
			continue
		}
		valid = append(valid, e)
	}
	if len(valid) == 0 {
		return 0, nil
	}

	_, err := db.NewInsert().
		Model(&valid).
		On("CONFLICT (work_id, translation_id, number) DO UPDATE").
		Set("season = EXCLUDED.season").
		Set("title = EXCLUDED.title").
		Set("duration = EXCLUDED.duration").
		Set("preview_image = EXCLUDED.preview_image").
		Set("updated_at = now()").
		Exec(ctx)
	if err != nil {
		return 0, r.writeError(err, "upsert episodes")
	}
	return len(valid), nil
}

// MarkMedia records where an episode was published. Re-publishing the same
// episode overwrites the previous location.
func (r *Repository) MarkMedia(ctx context.Context, in MediaInput) error {
	if in.EpisodeID == "" || in.ChatID == "" || in.MessageID == 0 {
		return apperror.NewValidation("episode id, chat id and message id are required")
	}

	media := &EpisodeMedia{
		EpisodeID:         in.EpisodeID,
		TelegramChatID:    in.ChatID,
		TelegramMessageID: in.MessageID,
		FileUniqueID:      in.FileUniqueID,
		Quality:           in.Quality,
		SourceURL:         in.SourceURL,
		Checksum:          in.Checksum,
		SizeBytes:         in.SizeBytes,
	}

	_, err := r.db.NewInsert().
		Model(media).
		On("CONFLICT (episode_id) DO UPDATE").
		Set("telegram_chat_id = EXCLUDED.telegram_chat_id").
		Set("telegram_message_id = EXCLUDED.telegram_message_id").
		Set("file_unique_id = EXCLUDED.file_unique_id").
		Set("quality = EXCLUDED.quality").
		Set("source_url = EXCLUDED.source_url").
		Set("checksum = EXCLUDED.checksum").
		Set("size_bytes = EXCLUDED.size_bytes").
		Exec(ctx)
	if err != nil {
		return r.writeError(err, "mark media")
	}
	return nil
}

// EpisodesWithoutMedia returns episodes nothing has been published for yet,
// oldest pair first so uploads stay grouped by (work, translation). The Work
// relation is loaded because the publisher needs external ids and titles.
func (r *Repository) EpisodesWithoutMedia(ctx context.Context, limit int) ([]*Episode, error) {
	if limit <= 0 {
		limit = 10
	}

	episodes := []*Episode{}
	err := r.db.NewSelect().
		Model(&episodes).
		Relation("Work").
		Join("LEFT JOIN catalog.episode_media AS em ON em.episode_id = e.id").
		Where("em.episode_id IS NULL").
		OrderExpr("e.work_id, e.translation_id, e.number").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		r.log.Error("failed to load unpublished episodes", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return episodes, nil
}

// WorkByID loads one work with its translations.
func (r *Repository) WorkByID(ctx context.Context, id string) (*Work, error) {
	work := &Work{}
	err := r.db.NewSelect().
		Model(work).
		Relation("Translations").
		Relation("Translations.Translation").
		Where("w.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrWorkNotFound
	}
	if err != nil {
		r.log.Error("failed to load work", slog.String("work_id", id), logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return work, nil
}

// EpisodesByWork lists a work's episodes with their publication state,
// optionally narrowed to one translation.
func (r *Repository) EpisodesByWork(ctx context.Context, workID string, translationID *int) ([]Episode, error) {
	episodes := []Episode{}
	q := r.db.NewSelect().
		Model(&episodes).
		Relation("Media").
		Where("e.work_id = ?", workID)
	if translationID != nil {
		q = q.Where("e.translation_id = ?", *translationID)
	}
	err := q.OrderExpr("e.season, e.number").Scan(ctx)
	if err != nil {
		r.log.Error("failed to load episodes", slog.String("work_id", workID), logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return episodes, nil
}

// SearchWorks runs a trigram search over title and original title, ranked
// by best similarity.
func (r *Repository) SearchWorks(ctx context.Context, query string, limit int) ([]Work, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	results := []Work{}
	err := r.db.NewSelect().
		Model(&results).
		ColumnExpr("w.*").
		ColumnExpr("GREATEST(similarity(w.title, ?), similarity(coalesce(w.title_orig, ''), ?)) AS similarity", query, query).
		Where("GREATEST(similarity(w.title, ?), similarity(coalesce(w.title_orig, ''), ?)) > ?", query, query, searchThreshold).
		OrderExpr("similarity DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		r.log.Error("search query failed", slog.String("query", query), logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return results, nil
}

// Stats counts the mirrored catalog for the ops endpoints.
func (r *Repository) Stats(ctx context.Context) (*WorkStats, error) {
	stats := &WorkStats{}

	var err error
	if stats.Works, err = r.db.NewSelect().Model((*Work)(nil)).Count(ctx); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	if stats.Translations, err = r.db.NewSelect().Model((*Translation)(nil)).Count(ctx); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	if stats.Episodes, err = r.db.NewSelect().Model((*Episode)(nil)).Count(ctx); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	if stats.PublishedEpisodes, err = r.db.NewSelect().Model((*EpisodeMedia)(nil)).Count(ctx); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return stats, nil
}

// PendingMediaCount counts episodes still waiting for publication.
func (r *Repository) PendingMediaCount(ctx context.Context) (int, error) {
	count, err := r.db.NewSelect().
		Model((*Episode)(nil)).
		Join("LEFT JOIN catalog.episode_media AS em ON em.episode_id = e.id").
		Where("em.episode_id IS NULL").
		Count(ctx)
	if err != nil {
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	return count, nil
}

// writeError maps constraint violations to validation errors so bad feed
// data surfaces as such instead of a generic database failure.
func (r *Repository) writeError(err error, op string) error {
	if pgutils.IsCheckViolation(err) || pgutils.IsNotNullViolation(err) {
		name := pgutils.ConstraintName(err)
		r.log.Warn("constraint violation during "+op,
			slog.String("constraint", name),
			logger.Error(err))
		if name != "" {
			return apperror.NewValidation("constraint " + name + " violated").WithInternal(err)
		}
		return apperror.NewValidation("row violates a catalog constraint").WithInternal(err)
	}
	r.log.Error("failed to "+op, logger.Error(err))
	return apperror.ErrDatabase.WithInternal(err)
}

func safeID(w *Work) string {
	if w == nil {
		return ""
	}
	return w.ID
}

func safeEpisodeID(e *Episode) string {
	if e == nil {
		return ""
	}
	return e.ID
}
