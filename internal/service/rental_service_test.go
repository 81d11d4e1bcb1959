package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/movie-catalog/internal/queue"
	"github.com/iliyamo/movie-catalog/internal/repository"
)

var rentalCols = []string{"id", "user_id", "movie_id", "rented_at", "returned_at"}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newRentalService(t *testing.T) (*RentalService, sqlmock.Sqlmock, *recorder) {
	db, mock := newMock(t)
	rec := newRecorder()
	svc := NewRentalService(db, repository.NewUserRepo(db), repository.NewMovieRepo(db), repository.NewRentalRepo(db), rec, 0)
	svc.now = func() time.Time { return fixedNow }
	return svc, mock, rec
}

// expectRentPrelude queues the lock and cap reads every rent starts with.
func expectRentPrelude(mock sqlmock.Sqlmock, userID, movieID uint64, open int) {
	mock.ExpectBegin()
	mock.ExpectQuery(q(lockUserSQL)).WithArgs(userID).WillReturnRows(idRow(userID))
	mock.ExpectQuery(q(lockMovieSQL)).WithArgs(movieID).WillReturnRows(idRow(movieID))
	mock.ExpectQuery(q(countRentSQL)).WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(open))
}

func TestNewRentalService_DefaultsLimit(t *testing.T) {
	svc, _, _ := newRentalService(t)
	if svc.Limit() != DefaultRentalLimit {
		t.Fatalf("Limit() = %d, want %d", svc.Limit(), DefaultRentalLimit)
	}
}

func TestRent_Succeeds(t *testing.T) {
	svc, mock, rec := newRentalService(t)

	expectRentPrelude(mock, 7, 3, 2)
	mock.ExpectQuery(q(activeRentSQL)).WithArgs(3).WillReturnRows(noRows(rentalCols...))
	mock.ExpectExec(q("INSERT INTO rentals (user_id, movie_id, rented_at) VALUES (?, ?, ?)")).
		WithArgs(7, 3, fixedNow).WillReturnResult(sqlmock.NewResult(15, 1))
	mock.ExpectCommit()

	r, err := svc.Rent(context.Background(), 3, 7)
	if err != nil {
		t.Fatalf("Rent() error = %v", err)
	}
	if r.ID != 15 || r.UserID != 7 || r.MovieID != 3 || !r.Active() {
		t.Errorf("rental = %+v", r)
	}
	if ev := rec.wait(t); ev.Type != queue.EventRentalRent || ev.RentalID != 15 {
		t.Errorf("event = %+v", ev)
	}
	expectMet(t, mock)
}

func TestRent_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		open  int
		owner any // nil when the movie is available
		want  error
	}{
		{"cap reached", 3, nil, ErrRentalLimit},
		{"already yours", 1, int64(7), ErrAlreadyRented},
		{"rented by other", 0, int64(8), ErrRentedByOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock, rec := newRentalService(t)
			expectRentPrelude(mock, 7, 3, tt.open)
			if tt.open < DefaultRentalLimit {
				mock.ExpectQuery(q(activeRentSQL)).WithArgs(3).
					WillReturnRows(sqlmock.NewRows(rentalCols).AddRow(40, tt.owner, 3, fixedNow, nil))
			}
			mock.ExpectRollback()

			if _, err := svc.Rent(context.Background(), 3, 7); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			expectMet(t, mock)
			time.Sleep(10 * time.Millisecond)
			if rec.count() != 0 {
				t.Error("rejected rent must not publish")
			}
		})
	}
}

func TestRent_DuplicateActiveKeyIsRentedByOther(t *testing.T) {
	svc, mock, _ := newRentalService(t)

	expectRentPrelude(mock, 7, 3, 0)
	mock.ExpectQuery(q(activeRentSQL)).WillReturnRows(noRows(rentalCols...))
	mock.ExpectExec(q("INSERT INTO rentals")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '3' for key 'uq_rentals_active'"})
	mock.ExpectRollback()

	if _, err := svc.Rent(context.Background(), 3, 7); !errors.Is(err, ErrRentedByOther) {
		t.Fatalf("err = %v, want ErrRentedByOther", err)
	}
	expectMet(t, mock)
}

func TestRent_UnknownMovie(t *testing.T) {
	svc, mock, _ := newRentalService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q(lockUserSQL)).WillReturnRows(idRow(7))
	mock.ExpectQuery(q(lockMovieSQL)).WillReturnRows(noRows("id"))
	mock.ExpectRollback()

	if _, err := svc.Rent(context.Background(), 404, 7); !errors.Is(err, repository.ErrMovieNotFound) {
		t.Fatalf("err = %v, want ErrMovieNotFound", err)
	}
	expectMet(t, mock)
}

func TestReturn(t *testing.T) {
	t.Run("own rental closes", func(t *testing.T) {
		svc, mock, rec := newRentalService(t)
		mock.ExpectBegin()
		mock.ExpectQuery(q(lockUserSQL)).WillReturnRows(idRow(7))
		mock.ExpectQuery(q(lockMovieSQL)).WillReturnRows(idRow(3))
		mock.ExpectQuery(q(activeRentSQL)).WithArgs(3).
			WillReturnRows(sqlmock.NewRows(rentalCols).AddRow(40, 7, 3, fixedNow.Add(-time.Hour), nil))
		mock.ExpectExec(q("UPDATE rentals SET returned_at = ? WHERE id = ? AND returned_at IS NULL")).
			WithArgs(fixedNow, 40).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		r, err := svc.Return(context.Background(), 3, 7)
		if err != nil {
			t.Fatalf("Return() error = %v", err)
		}
		if r.ID != 40 || r.Active() {
			t.Errorf("rental = %+v", r)
		}
		if ev := rec.wait(t); ev.Type != queue.EventRentalReturn {
			t.Errorf("event = %+v", ev)
		}
		expectMet(t, mock)
	})

	t.Run("someone else's rental is untouched", func(t *testing.T) {
		svc, mock, _ := newRentalService(t)
		mock.ExpectBegin()
		mock.ExpectQuery(q(lockUserSQL)).WillReturnRows(idRow(7))
		mock.ExpectQuery(q(lockMovieSQL)).WillReturnRows(idRow(3))
		mock.ExpectQuery(q(activeRentSQL)).
			WillReturnRows(sqlmock.NewRows(rentalCols).AddRow(40, 8, 3, fixedNow, nil))
		mock.ExpectRollback()

		if _, err := svc.Return(context.Background(), 3, 7); !errors.Is(err, ErrNotRentedByYou) {
			t.Fatalf("err = %v, want ErrNotRentedByYou", err)
		}
		expectMet(t, mock)
	})

	t.Run("available movie", func(t *testing.T) {
		svc, mock, _ := newRentalService(t)
		mock.ExpectBegin()
		mock.ExpectQuery(q(lockUserSQL)).WillReturnRows(idRow(7))
		mock.ExpectQuery(q(lockMovieSQL)).WillReturnRows(idRow(3))
		mock.ExpectQuery(q(activeRentSQL)).WillReturnRows(noRows(rentalCols...))
		mock.ExpectRollback()

		if _, err := svc.Return(context.Background(), 3, 7); !errors.Is(err, ErrNotRentedByYou) {
			t.Fatalf("err = %v, want ErrNotRentedByYou", err)
		}
		expectMet(t, mock)
	})
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name  string
		owner any
		want  string
	}{
		{"available", nil, "available"},
		{"mine", int64(7), "rented_by_you"},
		{"other", int64(8), "rented"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock, _ := newRentalService(t)
			mock.ExpectQuery(q(getMovieSQL)).WithArgs(3).WillReturnRows(movieRow(3, "Heat", 0))
			rows := noRows(rentalCols...)
			if tt.owner != nil {
				rows.AddRow(40, tt.owner, 3, fixedNow, nil)
			}
			mock.ExpectQuery(q("FROM rentals WHERE movie_id = ? AND returned_at IS NULL LIMIT 1")).
				WithArgs(3).WillReturnRows(rows)

			got, err := svc.Status(context.Background(), 3, 7)
			if err != nil {
				t.Fatalf("Status() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Status() = %q, want %q", got, tt.want)
			}
			expectMet(t, mock)
		})
	}
}
