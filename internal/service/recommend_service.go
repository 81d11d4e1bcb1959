package service

import (
	"context"

	"github.com/iliyamo/movie-catalog/internal/metrics"
	"github.com/iliyamo/movie-catalog/internal/model"
	"github.com/iliyamo/movie-catalog/internal/repository"
)

// Recommendation tiers, in the order they are tried.
const (
	TierCollaborative = "collaborative"
	TierGenre         = "genre"
	TierGlobal        = "global"
)

const (
	recommendLimit = 20
	topTagCount    = 3
)

// Recommendations is an ordered list plus the tier that produced it.
type Recommendations struct {
	Tier  string        `json:"tier"`
	Items []model.Movie `json:"items"`
}

// RecommendService is a pure read; it never writes.
type RecommendService struct {
	repo *repository.RecommendationRepo
}

func NewRecommendService(repo *repository.RecommendationRepo) *RecommendService {
	return &RecommendService{repo: repo}
}

// Recommend tries collaborative filtering, then the caller's favourite tags,
// then the global ranking, stopping at the first tier with results.
func (s *RecommendService) Recommend(ctx context.Context, userID uint64) (Recommendations, error) {
	items, err := s.repo.Collaborative(ctx, userID, recommendLimit)
	if err != nil {
		return Recommendations{}, err
	}
	if len(items) > 0 {
		return served(TierCollaborative, items), nil
	}

	tags, err := s.repo.TopLikedTags(ctx, userID, topTagCount)
	if err != nil {
		return Recommendations{}, err
	}
	if len(tags) > 0 {
		items, err = s.repo.ByTags(ctx, userID, tags, recommendLimit)
		if err != nil {
			return Recommendations{}, err
		}
		if len(items) > 0 {
			return served(TierGenre, items), nil
		}
	}

	items, err = s.repo.Global(ctx, userID, recommendLimit)
	if err != nil {
		return Recommendations{}, err
	}
	return served(TierGlobal, items), nil
}

func served(tier string, items []model.Movie) Recommendations {
	metrics.RecommendationsServed.WithLabelValues(tier).Inc()
	if items == nil {
		items = []model.Movie{}
	}
	return Recommendations{Tier: tier, Items: items}
}
