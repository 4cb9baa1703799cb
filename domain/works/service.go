package works

import (
	"context"
	"log/slog"
	"strings"

	"github.com/anivault/anivault/pkg/apperror"
	"github.com/anivault/anivault/pkg/logger"
)

// Service handles business logic for the catalog read surface
type Service struct {
	repo  *Repository
	cache *SearchCache
	log   *slog.Logger
}

// NewService creates a new works service
func NewService(repo *Repository, cache *SearchCache, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		log:   log.With(logger.Scope("works.svc")),
	}
}

// GetWork returns one work with its translations.
func (s *Service) GetWork(ctx context.Context, id string) (*Work, error) {
	if id == "" {
		return nil, apperror.ErrBadRequest.WithMessage("work id is required")
	}
	return s.repo.WorkByID(ctx, id)
}

// ListEpisodes returns a work's episodes with their publication state.
// The work must exist; an empty episode list is a valid answer.
func (s *Service) ListEpisodes(ctx context.Context, workID string, translationID *int) ([]EpisodeListItem, error) {
	if _, err := s.repo.WorkByID(ctx, workID); err != nil {
		return nil, err
	}

	episodes, err := s.repo.EpisodesByWork(ctx, workID, translationID)
	if err != nil {
		return nil, err
	}

	items := make([]EpisodeListItem, 0, len(episodes))
	for _, ep := range episodes {
		items = append(items, EpisodeListItem{
			Episode:   ep,
			Published: ep.Media != nil,
		})
	}
	return items, nil
}

// Search runs a trigram title search, serving from the Redis cache when a
// fresh entry exists. Cache failures fall through to the database.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]Work, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperror.ErrBadRequest.WithMessage("search query is required")
	}

	if results, ok := s.cache.Get(ctx, query, limit); ok {
		s.log.Debug("search cache hit", slog.String("query", query))
		return results, nil
	}

	results, err := s.repo.SearchWorks(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	s.cache.Put(ctx, query, limit, results)
	return results, nil
}

// Stats returns mirror-wide counters for the ops surface.
func (s *Service) Stats(ctx context.Context) (*WorkStats, error) {
	return s.repo.Stats(ctx)
}
