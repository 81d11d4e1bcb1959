package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/movie-catalog/internal/model"
)

// MovieRepo manages persistence for movies and their genre tags.
type MovieRepo struct {
	db *sql.DB
}

func NewMovieRepo(db *sql.DB) *MovieRepo { return &MovieRepo{db: db} }

// DB exposes the underlying sql.DB so services can begin transactions that
// span several repositories.
func (r *MovieRepo) DB() *sql.DB { return r.db }

// MovieFilter narrows the plain catalog listing.
type MovieFilter struct {
	Q         string  // substring of title or description
	Genre     string  // primary genre, exact
	MinRating float64 // avg_rating >= MinRating when > 0
	Year      int     // release_year, exact when > 0
}

// GetByID loads one movie projection.
func (r *MovieRepo) GetByID(ctx context.Context, id uint64) (model.Movie, error) {
	return getMovie(ctx, r.db, id)
}

// GetByIDTx is GetByID inside the caller's transaction, so it observes the
// transaction's own writes (e.g. a freshly recomputed avg_rating).
func (r *MovieRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Movie, error) {
	return getMovie(ctx, tx, id)
}

func getMovie(ctx context.Context, q queryer, id uint64) (model.Movie, error) {
	m, err := scanMovie(q.QueryRowContext(ctx, `SELECT `+movieColumns+` FROM movies m WHERE m.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Movie{}, ErrMovieNotFound
	}
	return m, err
}

// LockTx takes the row lock on a movie for the rest of tx. Every write to a
// movie's ratings, rentals or tags goes through this lock first, which
// serializes concurrent writers of the same movie.
func (r *MovieRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	var got uint64
	err := tx.QueryRowContext(ctx, `SELECT id FROM movies WHERE id = ? FOR UPDATE`, id).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrMovieNotFound
	}
	return err
}

// RecalcAvgTx recomputes avg_rating from the ratings table (0 when the movie
// has no ratings) and stores it. Callers must hold the movie lock.
func (r *MovieRepo) RecalcAvgTx(ctx context.Context, tx *sql.Tx, id uint64) (float64, error) {
	var avg float64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(AVG(rating), 0) FROM ratings WHERE movie_id = ?`, id).Scan(&avg); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE movies SET avg_rating = ? WHERE id = ?`, avg, id); err != nil {
		return 0, err
	}
	return avg, nil
}

// List returns up to 100 movies ordered by avg_rating then id, newest first on ties.
func (r *MovieRepo) List(ctx context.Context, f MovieFilter) ([]model.Movie, error) {
	where := []string{}
	args := []any{}
	if q := strings.TrimSpace(f.Q); q != "" {
		where = append(where, "(m.title LIKE ? OR m.description LIKE ?)")
		args = append(args, "%"+escapeLike(q)+"%", "%"+escapeLike(q)+"%")
	}
	if g := strings.TrimSpace(f.Genre); g != "" {
		where = append(where, "m.genre = ?")
		args = append(args, g)
	}
	if f.MinRating > 0 {
		where = append(where, "m.avg_rating >= ?")
		args = append(args, f.MinRating)
	}
	if f.Year > 0 {
		where = append(where, "m.release_year = ?")
		args = append(args, f.Year)
	}
	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+movieColumns+` FROM movies m WHERE `+cond+` ORDER BY m.avg_rating DESC, m.id DESC LIMIT 100`, args...)
	if err != nil {
		return nil, err
	}
	return scanMovies(rows)
}

// Suggest returns up to 10 title matches, prefix matches first.
func (r *MovieRepo) Suggest(ctx context.Context, q string) ([]model.Movie, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []model.Movie{}, nil
	}
	prefix, contains := escapeLike(q)+"%", "%"+escapeLike(q)+"%"
	rows, err := r.db.QueryContext(ctx, `SELECT `+movieColumns+`
		FROM movies m
		WHERE m.title LIKE ? OR m.title LIKE ?
		ORDER BY CASE WHEN m.title LIKE ? THEN 0 ELSE 1 END, m.avg_rating DESC, m.id DESC
		LIMIT 10`, prefix, contains, prefix)
	if err != nil {
		return nil, err
	}
	return scanMovies(rows)
}

// Create inserts a movie and its tags (the primary genre included) in one
// transaction and returns the stored projection.
func (r *MovieRepo) Create(ctx context.Context, in model.MovieInput) (model.Movie, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Movie{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO movies (title, description, genre, release_year, poster_url) VALUES (?, ?, ?, ?, ?)`,
		in.Title, in.Description, in.Genre, in.ReleaseYear, in.PosterURL)
	if err != nil {
		return model.Movie{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Movie{}, err
	}
	if err := insertTagsTx(ctx, tx, uint64(id), NormalizeTags(append([]string{in.Genre}, in.Genres...))); err != nil {
		return model.Movie{}, err
	}
	m, err := getMovie(ctx, tx, uint64(id))
	if err != nil {
		return model.Movie{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Movie{}, err
	}
	committed = true
	return m, nil
}

// MoviePatch holds optional updates; nil fields keep their current value.
type MoviePatch struct {
	Title       *string
	Description *string
	Genre       *string
	ReleaseYear *int
	PosterURL   *string
}

// Update applies a partial update. A new primary genre is also added as a tag.
func (r *MovieRepo) Update(ctx context.Context, id uint64, p MoviePatch) (model.Movie, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Movie{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := r.LockTx(ctx, tx, id); err != nil {
		return model.Movie{}, err
	}
	cur, err := getMovie(ctx, tx, id)
	if err != nil {
		return model.Movie{}, err
	}
	if p.Title != nil {
		cur.Title = *p.Title
	}
	if p.Description != nil {
		cur.Description = *p.Description
	}
	if p.Genre != nil {
		cur.Genre = *p.Genre
	}
	if p.ReleaseYear != nil {
		cur.ReleaseYear = *p.ReleaseYear
	}
	if p.PosterURL != nil {
		cur.PosterURL = p.PosterURL
		if *p.PosterURL == "" {
			cur.PosterURL = nil
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE movies SET title = ?, description = ?, genre = ?, release_year = ?, poster_url = ? WHERE id = ?`,
		cur.Title, cur.Description, cur.Genre, cur.ReleaseYear, cur.PosterURL, id); err != nil {
		return model.Movie{}, err
	}
	if err := insertTagsTx(ctx, tx, id, NormalizeTags([]string{cur.Genre})); err != nil {
		return model.Movie{}, err
	}
	m, err := getMovie(ctx, tx, id)
	if err != nil {
		return model.Movie{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Movie{}, err
	}
	committed = true
	return m, nil
}

// Delete removes a movie. Rentals are removed explicitly because their FK
// cannot cascade; ratings, tags and watchlist rows cascade.
func (r *MovieRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := r.LockTx(ctx, tx, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM rentals WHERE movie_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM movies WHERE id = ?`, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Genres lists a movie's tags alphabetically.
func (r *MovieRepo) Genres(ctx context.Context, id uint64) ([]string, error) {
	return listTags(ctx, r.db, id)
}

// ReplaceGenres swaps the full tag set of a movie. The primary genre is
// always kept. Returns the stored tags.
func (r *MovieRepo) ReplaceGenres(ctx context.Context, id uint64, tags []string) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var primary string
	err = tx.QueryRowContext(ctx, `SELECT genre FROM movies WHERE id = ? FOR UPDATE`, id).Scan(&primary)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMovieNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM movie_genres WHERE movie_id = ?`, id); err != nil {
		return nil, err
	}
	if err := insertTagsTx(ctx, tx, id, NormalizeTags(append([]string{primary}, tags...))); err != nil {
		return nil, err
	}
	out, err := listTags(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return out, nil
}

func insertTagsTx(ctx context.Context, tx *sql.Tx, movieID uint64, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	args := make([]any, 0, len(tags)*2)
	values := make([]string, 0, len(tags))
	for _, t := range tags {
		values = append(values, "(?, ?)")
		args = append(args, movieID, t)
	}
	_, err := tx.ExecContext(ctx,
		`INSERT IGNORE INTO movie_genres (movie_id, tag) VALUES `+strings.Join(values, ", "), args...)
	return err
}

func listTags(ctx context.Context, q queryer, movieID uint64) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT tag FROM movie_genres WHERE movie_id = ? ORDER BY tag`, movieID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes user input literal inside a LIKE pattern.
func escapeLike(s string) string { return likeEscaper.Replace(s) }
