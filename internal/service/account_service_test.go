package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/movie-catalog/internal/config"
	"github.com/iliyamo/movie-catalog/internal/repository"
)

var userCols = []string{"id", "email", "name", "password_hash", "role", "is_active", "created_at", "updated_at"}

func newAccountService(t *testing.T, policy string) (*AccountService, sqlmock.Sqlmock, *countingInvalidator) {
	db, mock := newMock(t)
	inv := &countingInvalidator{}
	svc := NewAccountService(db, repository.NewUserRepo(db), repository.NewMovieRepo(db), repository.NewRatingRepo(db),
		repository.NewTokenRepo(db), inv, policy, bcrypt.MinCost)
	return svc, mock, inv
}

func userRow(id uint64, email, role string) *sqlmock.Rows {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(userCols).AddRow(id, email, "Ann", "hash", role, true, now, now)
}

func TestRegister_FirstUserBecomesAdmin(t *testing.T) {
	tests := []struct {
		name     string
		policy   string
		existing bool
		role     string
	}{
		{"first account", config.AdminFirstUser, false, "admin"},
		{"later account", config.AdminFirstUser, true, "user"},
		{"policy none", config.AdminNone, false, "user"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock, _ := newAccountService(t, tt.policy)
			mock.ExpectBegin()
			if tt.policy == config.AdminFirstUser {
				rows := noRows("id")
				if tt.existing {
					rows.AddRow(1)
				}
				mock.ExpectQuery(q("SELECT id FROM users ORDER BY id LIMIT 1 FOR SHARE")).WillReturnRows(rows)
			}
			mock.ExpectExec(q("INSERT INTO users (email, name, password_hash, role)")).
				WithArgs("ann@example.com", "Ann", sqlmock.AnyArg(), tt.role).
				WillReturnResult(sqlmock.NewResult(2, 1))
			mock.ExpectCommit()
			mock.ExpectQuery(q("FROM users WHERE id=?")).WithArgs(2).
				WillReturnRows(userRow(2, "ann@example.com", tt.role))

			u, err := svc.Register(context.Background(), " Ann@Example.com ", " Ann ", "secret123")
			if err != nil {
				t.Fatalf("Register() error = %v", err)
			}
			if u.Role != tt.role {
				t.Errorf("role = %q, want %q", u.Role, tt.role)
			}
			expectMet(t, mock)
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, mock, _ := newAccountService(t, config.AdminNone)
	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO users")).WillReturnError(&mysql.MySQLError{Number: 1062})
	mock.ExpectRollback()

	if _, err := svc.Register(context.Background(), "a@b.co", "A", "secret123"); !errors.Is(err, repository.ErrEmailExists) {
		t.Fatalf("err = %v, want ErrEmailExists", err)
	}
	expectMet(t, mock)
}

func TestRegister_ConcurrentFirstAccountIsConflict(t *testing.T) {
	tests := []struct {
		name  string
		errno uint16
	}{
		{"deadlock", 1213},
		{"lock wait timeout", 1205},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock, _ := newAccountService(t, config.AdminFirstUser)
			mock.ExpectBegin()
			mock.ExpectQuery(q("SELECT id FROM users ORDER BY id LIMIT 1 FOR SHARE")).WillReturnRows(noRows("id"))
			mock.ExpectExec(q("INSERT INTO users")).WillReturnError(&mysql.MySQLError{Number: tt.errno})
			mock.ExpectRollback()

			_, err := svc.Register(context.Background(), "a@b.co", "A", "secret123")
			if !errors.Is(err, repository.ErrConflict) {
				t.Fatalf("err = %v, want ErrConflict", err)
			}
			expectMet(t, mock)
		})
	}
}

func TestUpdateUser_RejectsUnknownRole(t *testing.T) {
	svc, mock, _ := newAccountService(t, config.AdminNone)
	role := "owner"
	if _, err := svc.UpdateUser(context.Background(), 1, &role, nil); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("err = %v, want ErrInvalidRole", err)
	}
	expectMet(t, mock)
}

func TestDeleteUser_RecomputesRatedMovies(t *testing.T) {
	svc, mock, inv := newAccountService(t, config.AdminNone)

	mock.ExpectBegin()
	mock.ExpectQuery(q(lockUserSQL)).WithArgs(9).WillReturnRows(idRow(9))
	mock.ExpectQuery(q("SELECT movie_id FROM ratings WHERE user_id = ? ORDER BY movie_id")).WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{"movie_id"}).AddRow(3).AddRow(5))
	mock.ExpectQuery(q(lockMovieSQL)).WithArgs(3).WillReturnRows(idRow(3))
	mock.ExpectQuery(q(lockMovieSQL)).WithArgs(5).WillReturnRows(idRow(5))
	mock.ExpectExec(q("DELETE FROM users WHERE id=?")).WithArgs(9).WillReturnResult(sqlmock.NewResult(0, 1))
	for _, id := range []int{3, 5} {
		mock.ExpectQuery(q(avgSQL)).WithArgs(id).WillReturnRows(sqlmock.NewRows([]string{"avg"}).AddRow(2.5))
		mock.ExpectExec(q(storeAvgSQL)).WithArgs(2.5, id).WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	if err := svc.DeleteUser(context.Background(), 9); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}
	if inv.n.Load() != 1 {
		t.Errorf("invalidations = %d, want 1", inv.n.Load())
	}
	expectMet(t, mock)
}

func TestDeleteUser_Unknown(t *testing.T) {
	svc, mock, _ := newAccountService(t, config.AdminNone)
	mock.ExpectBegin()
	mock.ExpectQuery(q(lockUserSQL)).WillReturnRows(noRows("id"))
	mock.ExpectRollback()

	if err := svc.DeleteUser(context.Background(), 9); !errors.Is(err, repository.ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
	expectMet(t, mock)
}
