package service

import (
	"context"

	"github.com/iliyamo/movie-catalog/internal/model"
	"github.com/iliyamo/movie-catalog/internal/repository"
)

// CatalogService wraps admin catalog writes so every one of them drops the
// cached catalog pages.
type CatalogService struct {
	movies *repository.MovieRepo
	cache  Invalidator
}

func NewCatalogService(movies *repository.MovieRepo, cache Invalidator) *CatalogService {
	return &CatalogService{movies: movies, cache: orNopInvalidator(cache)}
}

func (s *CatalogService) Create(ctx context.Context, in model.MovieInput) (model.Movie, error) {
	m, err := s.movies.Create(ctx, in)
	if err == nil {
		invalidate(ctx, s.cache)
	}
	return m, err
}

func (s *CatalogService) Update(ctx context.Context, id uint64, p repository.MoviePatch) (model.Movie, error) {
	m, err := s.movies.Update(ctx, id, p)
	if err == nil {
		invalidate(ctx, s.cache)
	}
	return m, err
}

func (s *CatalogService) Delete(ctx context.Context, id uint64) error {
	err := s.movies.Delete(ctx, id)
	if err == nil {
		invalidate(ctx, s.cache)
	}
	return err
}

// ReplaceGenres swaps the movie's tag set; the primary genre always stays.
func (s *CatalogService) ReplaceGenres(ctx context.Context, id uint64, tags []string) ([]string, error) {
	out, err := s.movies.ReplaceGenres(ctx, id, tags)
	if err == nil {
		invalidate(ctx, s.cache)
	}
	return out, err
}
