package service

import (
	"context"
	"database/sql"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/iliyamo/movie-catalog/internal/queue"
)

var q = regexp.QuoteMeta

const (
	lockUserSQL   = "SELECT id FROM users WHERE id=? FOR UPDATE"
	lockMovieSQL  = "SELECT id FROM movies WHERE id = ? FOR UPDATE"
	avgSQL        = "SELECT COALESCE(AVG(rating), 0) FROM ratings WHERE movie_id = ?"
	storeAvgSQL   = "UPDATE movies SET avg_rating = ? WHERE id = ?"
	getMovieSQL   = "FROM movies m WHERE m.id = ?"
	countRentSQL  = "SELECT COUNT(*) FROM rentals WHERE user_id = ? AND returned_at IS NULL"
	activeRentSQL = "FROM rentals WHERE movie_id = ? AND returned_at IS NULL LIMIT 1 FOR UPDATE"
)

var movieCols = []string{"id", "title", "description", "genre", "release_year", "poster_url", "avg_rating", "genres"}

func movieRow(id uint64, title string, avg float64) *sqlmock.Rows {
	return sqlmock.NewRows(movieCols).AddRow(id, title, "desc", "Drama", 1999, nil, avg, "Drama,Thriller")
}

func idRow(id uint64) *sqlmock.Rows { return sqlmock.NewRows([]string{"id"}).AddRow(id) }

func noRows(cols ...string) *sqlmock.Rows { return sqlmock.NewRows(cols) }

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func expectMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

// recorder captures published events; Publish runs on a goroutine.
type recorder struct {
	mu     sync.Mutex
	events []queue.ActivityEvent
	got    chan struct{}
}

func newRecorder() *recorder { return &recorder{got: make(chan struct{}, 16)} }

func (r *recorder) Publish(_ context.Context, ev queue.ActivityEvent) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	r.got <- struct{}{}
	return nil
}

func (r *recorder) wait(t *testing.T) queue.ActivityEvent {
	t.Helper()
	select {
	case <-r.got:
	case <-time.After(2 * time.Second):
		t.Fatal("no event published")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type countingInvalidator struct{ n atomic.Int32 }

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.n.Add(1)
	return nil
}
