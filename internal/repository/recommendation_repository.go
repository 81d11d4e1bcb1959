package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/movie-catalog/internal/model"
)

// RecommendationRepo holds the read-only queries behind recommendations.
// All of them skip movies the user has already rated.
type RecommendationRepo struct {
	db *sql.DB
}

func NewRecommendationRepo(db *sql.DB) *RecommendationRepo { return &RecommendationRepo{db: db} }

// Collaborative scores unrated movies by what like-minded users loved.
//
// A neighbor is any other user who rated >= 4 at least one movie the caller
// rated >= 4; their weight is the number of such shared likes. A candidate's
// score is the sum over neighbors of weight * the neighbor's rating, counting
// only neighbor ratings >= 4.
func (r *RecommendationRepo) Collaborative(ctx context.Context, userID uint64, limit int) ([]model.Movie, error) {
	rows, err := r.db.QueryContext(ctx, `WITH my_likes AS (
			SELECT movie_id FROM ratings WHERE user_id = ? AND rating >= 4
		), neighbors AS (
			SELECT r.user_id, COUNT(*) AS overlap
			FROM ratings r JOIN my_likes ml ON r.movie_id = ml.movie_id
			WHERE r.user_id <> ? AND r.rating >= 4
			GROUP BY r.user_id
		), neighbor_recs AS (
			SELECT r.movie_id, SUM(n.overlap * r.rating) AS score
			FROM ratings r JOIN neighbors n ON r.user_id = n.user_id
			WHERE r.rating >= 4
			  AND r.movie_id NOT IN (SELECT movie_id FROM ratings WHERE user_id = ?)
			GROUP BY r.movie_id
		)
		SELECT `+movieColumns+`
		FROM movies m JOIN neighbor_recs nr ON nr.movie_id = m.id
		ORDER BY nr.score DESC, m.avg_rating DESC, m.id DESC
		LIMIT ?`, userID, userID, userID, limit)
	if err != nil {
		return nil, err
	}
	return scanMovies(rows)
}

// TopLikedTags returns the caller's n most frequent tags among movies they
// rated >= 4, most frequent first.
func (r *RecommendationRepo) TopLikedTags(ctx context.Context, userID uint64, n int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT mg.tag
		FROM ratings r JOIN movie_genres mg ON mg.movie_id = r.movie_id
		WHERE r.user_id = ? AND r.rating >= 4
		GROUP BY mg.tag
		ORDER BY COUNT(*) DESC, mg.tag ASC
		LIMIT ?`, userID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tags := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// ByTags returns unrated movies carrying any of tags, best rated first.
func (r *RecommendationRepo) ByTags(ctx context.Context, userID uint64, tags []string, limit int) ([]model.Movie, error) {
	if len(tags) == 0 {
		return []model.Movie{}, nil
	}
	args := make([]any, 0, len(tags)+2)
	args = append(args, userID)
	for _, t := range tags {
		args = append(args, t)
	}
	args = append(args, limit)
	rows, err := r.db.QueryContext(ctx, `SELECT `+movieColumns+`
		FROM movies m
		WHERE m.id NOT IN (SELECT movie_id FROM ratings WHERE user_id = ?)
		  AND EXISTS (SELECT 1 FROM movie_genres mg WHERE mg.movie_id = m.id AND mg.tag IN (`+placeholders(len(tags))+`))
		ORDER BY m.avg_rating DESC, m.id DESC
		LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	return scanMovies(rows)
}

// Global returns the best rated movies the user has not rated.
func (r *RecommendationRepo) Global(ctx context.Context, userID uint64, limit int) ([]model.Movie, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+movieColumns+`
		FROM movies m
		WHERE m.id NOT IN (SELECT movie_id FROM ratings WHERE user_id = ?)
		ORDER BY m.avg_rating DESC, m.id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	return scanMovies(rows)
}
