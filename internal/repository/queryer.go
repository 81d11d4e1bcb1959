package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/movie-catalog/internal/model"
)

// queryer is satisfied by both *sql.DB and *sql.Tx so read helpers can run
// inside or outside a caller's transaction.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// movieColumns is the canonical Movie projection. It expects the movies
// table aliased as m.
const movieColumns = `m.id, m.title, m.description, m.genre, m.release_year, m.poster_url, m.avg_rating,
	COALESCE((SELECT GROUP_CONCAT(g.tag ORDER BY g.tag SEPARATOR ',') FROM movie_genres g WHERE g.movie_id = m.id), '') AS genres`

// scanMovie reads movieColumns followed by any extra destinations.
func scanMovie(s scanner, extra ...any) (model.Movie, error) {
	var (
		m      model.Movie
		poster sql.NullString
		genres string
	)
	dest := append([]any{&m.ID, &m.Title, &m.Description, &m.Genre, &m.ReleaseYear, &poster, &m.AvgRating, &genres}, extra...)
	if err := s.Scan(dest...); err != nil {
		return model.Movie{}, err
	}
	if poster.Valid {
		p := poster.String
		m.PosterURL = &p
	}
	m.Genres = splitTags(genres)
	return m, nil
}

func scanMovies(rows *sql.Rows) ([]model.Movie, error) {
	defer rows.Close()
	out := []model.Movie{}
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func splitTags(s string) []string {
	out := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// NormalizeTags trims, drops empties and commas, and de-duplicates while
// keeping first-seen order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(strings.ReplaceAll(t, ",", " "))
		if t == "" {
			continue
		}
		if r := []rune(t); len(r) > 64 {
			t = strings.TrimSpace(string(r[:64]))
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
