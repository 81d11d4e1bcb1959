package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
)

func TestNormalizeTags(t *testing.T) {
	long := strings.Repeat("ü", 70)
	got := NormalizeTags([]string{" Drama ", "", "Sci,Fi", "Drama", "  ", long})
	want := []string{"Drama", "Sci Fi", strings.Repeat("ü", 64)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeTags() = %q, want %q", got, want)
	}
}

func TestSplitTags(t *testing.T) {
	if got := splitTags(""); len(got) != 0 || got == nil {
		t.Errorf("splitTags(\"\") = %#v, want empty non-nil", got)
	}
	if got := splitTags("Crime, Drama"); !reflect.DeepEqual(got, []string{"Crime", "Drama"}) {
		t.Errorf("splitTags() = %q", got)
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Fatalf("escapeLike() = %q", got)
	}
}

func TestPlaceholders(t *testing.T) {
	for n, want := range map[int]string{0: "", 1: "?", 3: "?,?,?"} {
		if got := placeholders(n); got != want {
			t.Errorf("placeholders(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestMovieSearchQuery_Normalize(t *testing.T) {
	tests := []struct {
		in       MovieSearchQuery
		page     int
		pageSize int
		sort     string
	}{
		{MovieSearchQuery{}, 1, 12, "rating_desc"},
		{MovieSearchQuery{Page: -3, PageSize: -1, Sort: "bogus"}, 1, 1, "rating_desc"},
		{MovieSearchQuery{Page: 4, PageSize: 500, Sort: "title_asc"}, 4, 50, "title_asc"},
	}
	for _, tt := range tests {
		got := tt.in.Normalize()
		if got.Page != tt.page || got.PageSize != tt.pageSize || got.Sort != tt.sort {
			t.Errorf("Normalize(%+v) = page %d size %d sort %q", tt.in, got.Page, got.PageSize, got.Sort)
		}
	}
}

func TestMovieSearchQuery_Where(t *testing.T) {
	tests := []struct {
		name string
		q    MovieSearchQuery
		cond string
		args []any
	}{
		{"empty", MovieSearchQuery{}, "1=1", []any{}},
		{
			"phrase over title and description",
			MovieSearchQuery{Q: `"dark knight"`},
			"(m.title LIKE ? OR m.description LIKE ?)",
			[]any{"%dark knight%", "%dark knight%"},
		},
		{
			"title words with prefix",
			MovieSearchQuery{Q: "the dark", TitleOnly: true, StartsWith: true},
			"m.title LIKE ? AND m.title LIKE ?",
			[]any{"the%", "dark%"},
		},
		{
			"filters",
			MovieSearchQuery{Genre: "Noir", MinRating: 3.5, Year: 1995},
			"EXISTS (SELECT 1 FROM movie_genres mg WHERE mg.movie_id = m.id AND mg.tag = ?) AND m.avg_rating >= ? AND m.release_year = ?",
			[]any{"Noir", 3.5, 1995},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond, args := tt.q.where()
			if cond != tt.cond {
				t.Errorf("cond = %q, want %q", cond, tt.cond)
			}
			if !reflect.DeepEqual(args, tt.args) {
				t.Errorf("args = %#v, want %#v", args, tt.args)
			}
		})
	}
}

func TestErrorClassification(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062}
	fk := &mysql.MySQLError{Number: 1452}
	if !isDuplicateKey(dup) || isDuplicateKey(fk) || isDuplicateKey(errors.New("1062")) {
		t.Error("isDuplicateKey misclassifies")
	}
	if !isMissingParent(fk) || isMissingParent(nil) {
		t.Error("isMissingParent misclassifies")
	}
	wrapped := fmt.Errorf("insert user: %w", &mysql.MySQLError{Number: 1213})
	if !IsLockConflict(wrapped) || !IsLockConflict(&mysql.MySQLError{Number: 1205}) || IsLockConflict(dup) || IsLockConflict(nil) {
		t.Error("IsLockConflict misclassifies")
	}
}

func TestRatingRepo_Histogram(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT rating, COUNT(*) FROM ratings WHERE movie_id = ? GROUP BY rating")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"rating", "n"}).AddRow(5, 2).AddRow(1, 1))

	h, err := NewRatingRepo(db).Histogram(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	want := map[int]int{1: 1, 2: 0, 3: 0, 4: 0, 5: 2}
	if !reflect.DeepEqual(map[int]int(h), want) {
		t.Fatalf("Histogram() = %v, want %v", h, want)
	}
}

func TestRatingRepo_UpsertUnknownMovie(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ratings").WillReturnError(&mysql.MySQLError{Number: 1452})
	mock.ExpectRollback()

	tx, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	err = NewRatingRepo(db).UpsertTx(context.Background(), tx, 1, 99, 4, nil)
	if !errors.Is(err, ErrMovieNotFound) {
		t.Fatalf("err = %v, want ErrMovieNotFound", err)
	}
	_ = tx.Rollback()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMovieRepo_SearchPaginates(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM movies m WHERE m.avg_rating >= ?")).
		WithArgs(4.0).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(13))
	cols := []string{"id", "title", "description", "genre", "release_year", "poster_url", "avg_rating", "genres", "my_rating"}
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY m.release_year DESC, m.id DESC LIMIT ? OFFSET ?")).
		WithArgs(7, 4.0, 5, 10).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, "Heat", "", "Crime", 1995, nil, 4.5, "Crime", 5).
			AddRow(2, "Ronin", "", "Action", 1998, "http://x/p.jpg", 4.1, "", nil))

	items, total, err := NewMovieRepo(db).Search(context.Background(),
		MovieSearchQuery{MinRating: 4, Sort: "year_desc", Page: 3, PageSize: 5, UserID: 7})
	if err != nil {
		t.Fatal(err)
	}
	if total != 13 || len(items) != 2 {
		t.Fatalf("total=%d items=%d", total, len(items))
	}
	if items[0].MyRating == nil || *items[0].MyRating != 5 || items[1].MyRating != nil {
		t.Errorf("my_rating not mapped: %+v", items)
	}
	if items[1].PosterURL == nil || len(items[1].Genres) != 0 {
		t.Errorf("second item = %+v", items[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestWatchlistRepo_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	added := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	cols := []string{"id", "title", "description", "genre", "release_year", "poster_url", "avg_rating", "genres", "added_at"}
	mock.ExpectQuery("FROM watchlist_items w JOIN movies m").WithArgs(7).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(1, "Heat", "", "Crime", 1995, nil, 4.5, "Crime", added))

	items, err := NewWatchlistRepo(db).List(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ID != 1 || !items[0].AddedAt.Equal(added) {
		t.Fatalf("items = %+v", items)
	}
}
