package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"

	"github.com/anivault/anivault/domain/catalog"
	"github.com/anivault/anivault/domain/works"
	"github.com/anivault/anivault/internal/metrics"
	"github.com/anivault/anivault/pkg/apperror"
	"github.com/anivault/anivault/pkg/logger"
	"github.com/anivault/anivault/pkg/tracing"
)

// ItemError records which feed item failed and why.
type ItemError struct {
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

// IngestStats summarizes one ingest call.
type IngestStats struct {
	TotalProcessed int         `json:"totalProcessed"`
	Successful     int         `json:"successful"`
	Failed         int         `json:"failed"`
	Errors         []ItemError `json:"errors,omitempty"`
}

// Service normalizes raw feed items and persists them in batches
type Service struct {
	repo *works.Repository
	log  *slog.Logger
}

// NewService creates a new ingest service
func NewService(repo *works.Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With(logger.Scope("ingest")),
	}
}

// IngestItems normalizes and stores a batch of raw feed items. The whole
// batch shares one transaction; each bundle is guarded by a savepoint so one
// bad bundle doesn't poison the rest. With continueOnError false the first
// normalization failure aborts before anything is written.
func (s *Service) IngestItems(ctx context.Context, items []catalog.Item, continueOnError bool) (*IngestStats, error) {
	ctx, span := tracing.Start(ctx, "ingest.batch",
		attribute.Int("anivault.batch.items", len(items)),
	)
	defer span.End()

	start := time.Now()
	stats := &IngestStats{}

	bundles := make([]*Bundle, 0, len(items))
	for _, raw := range items {
		stats.TotalProcessed++

		bundle, err := Normalize(raw)
		if err != nil {
			id := rawID(raw)
			stats.Errors = append(stats.Errors, ItemError{ID: id, Message: err.Error()})
			stats.Failed++
			metrics.IngestBundles.WithLabelValues("normalize_error").Inc()

			if !continueOnError {
				return stats, fmt.Errorf("normalize item %q: %w", id, err)
			}
			s.log.Warn("failed to normalize item",
				slog.String("item_id", id),
				logger.Error(err))
			continue
		}
		bundles = append(bundles, bundle)
	}

	if len(bundles) == 0 {
		return stats, nil
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return stats, apperror.ErrDatabase.WithInternal(err)
	}
	defer tx.Rollback()

	for i, bundle := range bundles {
		if err := s.persistBundle(ctx, tx, i, bundle); err != nil {
			stats.Errors = append(stats.Errors, ItemError{ID: bundle.Work.ID, Message: err.Error()})
			stats.Failed++
			metrics.IngestBundles.WithLabelValues("persist_error").Inc()
			s.log.Warn("failed to persist bundle",
				slog.String("work_id", bundle.Work.ID),
				logger.Error(err))
			continue
		}
		stats.Successful++
		metrics.IngestBundles.WithLabelValues("success").Inc()
		metrics.IngestEpisodes.Add(float64(len(bundle.Episodes)))
	}

	if err := tx.Commit(); err != nil {
		return stats, apperror.ErrDatabase.WithInternal(err)
	}

	metrics.IngestBatchDuration.Observe(time.Since(start).Seconds())
	s.log.Info("ingest complete",
		slog.Int("successful", stats.Successful),
		slog.Int("total", stats.TotalProcessed),
		slog.Int("failed", stats.Failed))
	return stats, nil
}

// IngestSingle normalizes and stores one raw item, surfacing any failure.
func (s *Service) IngestSingle(ctx context.Context, raw catalog.Item) (*Bundle, error) {
	bundle, err := Normalize(raw)
	if err != nil {
		return nil, err
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	defer tx.Rollback()

	if err := s.persistBundle(ctx, tx, 0, bundle); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return bundle, nil
}

// persistBundle writes one bundle inside its own savepoint. Rollback to the
// savepoint keeps a failed bundle from aborting the enclosing transaction.
// Insert order follows the foreign keys: translation, work, link, episodes.
func (s *Service) persistBundle(ctx context.Context, tx bun.IDB, i int, bundle *Bundle) error {
	name := fmt.Sprintf("sp_%d", i)
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}

	err := s.writeBundle(ctx, tx, bundle)
	if err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			s.log.Error("savepoint rollback failed", logger.Error(rbErr))
		}
		return err
	}

	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

func (s *Service) writeBundle(ctx context.Context, tx bun.IDB, bundle *Bundle) error {
	if _, err := s.repo.UpsertTranslations(ctx, tx, []*works.Translation{bundle.Translation}); err != nil {
		return err
	}
	if _, err := s.repo.UpsertWorks(ctx, tx, []*works.Work{bundle.Work}); err != nil {
		return err
	}
	if _, err := s.repo.UpsertWorkTranslations(ctx, tx, []*works.WorkTranslation{bundle.Link}); err != nil {
		return err
	}
	if len(bundle.Episodes) > 0 {
		if _, err := s.repo.UpsertEpisodes(ctx, tx, bundle.Episodes); err != nil {
			return err
		}
	}

	s.log.Debug("persisted bundle",
		slog.String("work_id", bundle.Work.ID),
		slog.Int("translation_id", bundle.Translation.ID),
		slog.Int("episodes", len(bundle.Episodes)))
	return nil
}

// rawID digs an identifier out of a raw item for error reporting.
func rawID(raw catalog.Item) string {
	for _, key := range []string{"id", "kodik_id"} {
		if v, ok := raw[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
