package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/movie-catalog/internal/model"
)

// WatchlistRepo stores per-user saved movies keyed by (user_id, movie_id).
type WatchlistRepo struct {
	db *sql.DB
}

func NewWatchlistRepo(db *sql.DB) *WatchlistRepo { return &WatchlistRepo{db: db} }

// Add saves a movie; adding twice is a no-op.
func (r *WatchlistRepo) Add(ctx context.Context, userID, movieID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT IGNORE INTO watchlist_items (user_id, movie_id, added_at) VALUES (?, ?, UTC_TIMESTAMP())`,
		userID, movieID)
	if isMissingParent(err) {
		return ErrMovieNotFound
	}
	return err
}

// Remove drops a movie from the list; removing an absent entry is a no-op.
func (r *WatchlistRepo) Remove(ctx context.Context, userID, movieID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM watchlist_items WHERE user_id = ? AND movie_id = ?`, userID, movieID)
	return err
}

// List returns the user's saved movies, most recently added first.
func (r *WatchlistRepo) List(ctx context.Context, userID uint64) ([]model.WatchlistItem, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+movieColumns+`, w.added_at
		FROM watchlist_items w JOIN movies m ON m.id = w.movie_id
		WHERE w.user_id = ?
		ORDER BY w.added_at DESC, m.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.WatchlistItem{}
	for rows.Next() {
		var it model.WatchlistItem
		m, err := scanMovie(rows, &it.AddedAt)
		if err != nil {
			return nil, err
		}
		it.Movie = m
		out = append(out, it)
	}
	return out, rows.Err()
}
