package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/movie-catalog/internal/model"
)

// MovieSearchQuery defines filters, sort and pagination for catalog search.
type MovieSearchQuery struct {
	Q          string  // free text; a "quoted phrase" is matched as one token
	Genre      string  // any tag, not only the primary genre
	MinRating  float64 // avg_rating lower bound when > 0
	Year       int     // exact release year when > 0
	TitleOnly  bool    // match each word of Q against the title only
	StartsWith bool    // with TitleOnly, words must prefix the title
	Sort       string  // key of searchSorts; unknown keys fall back to rating_desc
	Page       int
	PageSize   int
	UserID     uint64 // when non-zero each item carries the caller's rating
}

var searchSorts = map[string]string{
	"rating_desc": "m.avg_rating DESC, m.id DESC",
	"rating_asc":  "m.avg_rating ASC, m.id DESC",
	"year_desc":   "m.release_year DESC, m.id DESC",
	"year_asc":    "m.release_year ASC, m.id DESC",
	"title_asc":   "m.title ASC, m.id DESC",
	"title_desc":  "m.title DESC, m.id DESC",
}

// Normalize clamps pagination: page >= 1, 1 <= page_size <= 50 (default 12).
func (q MovieSearchQuery) Normalize() MovieSearchQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = 12
	}
	if q.PageSize < 1 {
		q.PageSize = 1
	}
	if q.PageSize > 50 {
		q.PageSize = 50
	}
	if _, ok := searchSorts[q.Sort]; !ok {
		q.Sort = "rating_desc"
	}
	return q
}

func (q MovieSearchQuery) where() (string, []any) {
	where := []string{}
	args := []any{}

	if term := strings.TrimSpace(q.Q); term != "" {
		phrase := ""
		if len(term) > 2 && strings.HasPrefix(term, `"`) && strings.HasSuffix(term, `"`) {
			phrase = term[1 : len(term)-1]
		}
		if q.TitleOnly {
			tokens := strings.Fields(term)
			if phrase != "" {
				tokens = []string{phrase}
			}
			for _, t := range tokens {
				where = append(where, "m.title LIKE ?")
				if q.StartsWith {
					args = append(args, escapeLike(t)+"%")
				} else {
					args = append(args, "%"+escapeLike(t)+"%")
				}
			}
		} else {
			if phrase != "" {
				term = phrase
			}
			where = append(where, "(m.title LIKE ? OR m.description LIKE ?)")
			args = append(args, "%"+escapeLike(term)+"%", "%"+escapeLike(term)+"%")
		}
	}
	if g := strings.TrimSpace(q.Genre); g != "" {
		where = append(where, "EXISTS (SELECT 1 FROM movie_genres mg WHERE mg.movie_id = m.id AND mg.tag = ?)")
		args = append(args, g)
	}
	if q.MinRating > 0 {
		where = append(where, "m.avg_rating >= ?")
		args = append(args, q.MinRating)
	}
	if q.Year > 0 {
		where = append(where, "m.release_year = ?")
		args = append(args, q.Year)
	}
	if len(where) == 0 {
		return "1=1", args
	}
	return strings.Join(where, " AND "), args
}

// Search returns one page of movies and the total number of matches.
func (r *MovieRepo) Search(ctx context.Context, q MovieSearchQuery) ([]model.Movie, int64, error) {
	q = q.Normalize()
	cond, args := q.where()

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM movies m WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := `SELECT ` + movieColumns + `,
			(SELECT r.rating FROM ratings r WHERE r.user_id = ? AND r.movie_id = m.id) AS my_rating
		FROM movies m
		WHERE ` + cond + `
		ORDER BY ` + searchSorts[q.Sort] + `
		LIMIT ? OFFSET ?`
	argsData := append(append([]any{q.UserID}, args...), q.PageSize, (q.Page-1)*q.PageSize)

	rows, err := r.db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.Movie, 0, q.PageSize)
	for rows.Next() {
		var mine sql.NullInt64
		m, err := scanMovie(rows, &mine)
		if err != nil {
			return nil, 0, err
		}
		if mine.Valid {
			v := int(mine.Int64)
			m.MyRating = &v
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
