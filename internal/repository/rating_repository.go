package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/movie-catalog/internal/model"
)

// RatingRepo persists ratings. Write methods take the caller's transaction;
// the aggregate on movies is the caller's job (see MovieRepo.RecalcAvgTx).
type RatingRepo struct {
	db *sql.DB
}

func NewRatingRepo(db *sql.DB) *RatingRepo { return &RatingRepo{db: db} }

// UpsertTx inserts or overwrites the (user, movie) rating in one statement.
// The unique key on (user_id, movie_id) makes concurrent submits converge on
// a single row; re-rating refreshes created_at.
func (r *RatingRepo) UpsertTx(ctx context.Context, tx *sql.Tx, userID, movieID uint64, rating int, review *string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO ratings (user_id, movie_id, rating, review, created_at)
		VALUES (?, ?, ?, ?, UTC_TIMESTAMP())
		ON DUPLICATE KEY UPDATE rating = VALUES(rating), review = VALUES(review), created_at = VALUES(created_at)`,
		userID, movieID, rating, review)
	if isMissingParent(err) {
		return ErrMovieNotFound
	}
	return err
}

// DeleteTx hard-deletes the caller's rating. ErrRatingNotFound when absent.
func (r *RatingRepo) DeleteTx(ctx context.Context, tx *sql.Tx, userID, movieID uint64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM ratings WHERE user_id = ? AND movie_id = ?`, userID, movieID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRatingNotFound
	}
	return nil
}

// MovieIDsByUserTx lists the movies a user has rated, ascending, locking
// nothing. Used before removing a user so the affected aggregates can be
// recomputed.
func (r *RatingRepo) MovieIDsByUserTx(ctx context.Context, tx *sql.Tx, userID uint64) ([]uint64, error) {
	rows, err := tx.QueryContext(ctx, `SELECT movie_id FROM ratings WHERE user_id = ? ORDER BY movie_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListForMovie returns the newest reviews of a movie, at most limit.
func (r *RatingRepo) ListForMovie(ctx context.Context, movieID uint64, limit int) ([]model.Review, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT r.id, r.rating, r.review, r.created_at, u.name
		FROM ratings r JOIN users u ON u.id = r.user_id
		WHERE r.movie_id = ?
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT ?`, movieID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Review{}
	for rows.Next() {
		var (
			v      model.Review
			review sql.NullString
		)
		if err := rows.Scan(&v.ID, &v.Rating, &review, &v.CreatedAt, &v.UserName); err != nil {
			return nil, err
		}
		v.Review = nullableString(review)
		out = append(out, v)
	}
	return out, rows.Err()
}

// Histogram counts ratings per star value; every value 1..5 is present.
func (r *RatingRepo) Histogram(ctx context.Context, movieID uint64) (model.Histogram, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT rating, COUNT(*) FROM ratings WHERE movie_id = ? GROUP BY rating`, movieID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	h := model.Histogram{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}
	for rows.Next() {
		var star, n int
		if err := rows.Scan(&star, &n); err != nil {
			return nil, err
		}
		h[star] = n
	}
	return h, rows.Err()
}

// History lists the movies a user rated, most recent rating first.
func (r *RatingRepo) History(ctx context.Context, userID uint64, limit int) ([]model.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+movieColumns+`, r.rating, r.review, r.created_at
		FROM ratings r JOIN movies m ON m.id = r.movie_id
		WHERE r.user_id = ?
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.HistoryEntry{}
	for rows.Next() {
		var (
			e      model.HistoryEntry
			mine   int
			review sql.NullString
		)
		m, err := scanMovie(rows, &mine, &review, &e.RatedAt)
		if err != nil {
			return nil, err
		}
		e.Movie = m
		e.MyRating = &mine
		e.MyReview = nullableString(review)
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
