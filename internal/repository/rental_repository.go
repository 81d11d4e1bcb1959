package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/movie-catalog/internal/model"
)

// RentalRepo persists rentals. The *Tx methods are the building blocks of the
// rent/return transactions; callers hold the user and movie row locks.
type RentalRepo struct {
	db *sql.DB
}

func NewRentalRepo(db *sql.DB) *RentalRepo { return &RentalRepo{db: db} }

// CountActiveByUserTx counts the user's open rentals.
func (r *RentalRepo) CountActiveByUserTx(ctx context.Context, tx *sql.Tx, userID uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rentals WHERE user_id = ? AND returned_at IS NULL`, userID).Scan(&n)
	return n, err
}

// ActiveForMovieTx returns the open rental of a movie, locking it.
// ErrRentalNotFound when the movie is available.
func (r *RentalRepo) ActiveForMovieTx(ctx context.Context, tx *sql.Tx, movieID uint64) (model.Rental, error) {
	return scanRental(tx.QueryRowContext(ctx, `SELECT id, user_id, movie_id, rented_at, returned_at
		FROM rentals WHERE movie_id = ? AND returned_at IS NULL LIMIT 1 FOR UPDATE`, movieID))
}

// InsertTx opens a rental. A duplicate on the active-movie key means another
// open rental slipped in and is reported as ErrConflict.
func (r *RentalRepo) InsertTx(ctx context.Context, tx *sql.Tx, userID, movieID uint64, at time.Time) (uint64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO rentals (user_id, movie_id, rented_at) VALUES (?, ?, ?)`, userID, movieID, at)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrConflict
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// MarkReturnedTx closes an open rental.
func (r *RentalRepo) MarkReturnedTx(ctx context.Context, tx *sql.Tx, rentalID uint64, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE rentals SET returned_at = ? WHERE id = ? AND returned_at IS NULL`, at, rentalID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRentalNotFound
	}
	return nil
}

// ActiveForMovie is the unlocked read used for status display.
func (r *RentalRepo) ActiveForMovie(ctx context.Context, movieID uint64) (model.Rental, error) {
	return scanRental(r.db.QueryRowContext(ctx, `SELECT id, user_id, movie_id, rented_at, returned_at
		FROM rentals WHERE movie_id = ? AND returned_at IS NULL LIMIT 1`, movieID))
}

// ActiveByUser lists the user's open rentals, newest first.
func (r *RentalRepo) ActiveByUser(ctx context.Context, userID uint64) ([]model.Rental, error) {
	return r.listActive(ctx, `WHERE r.user_id = ? AND r.returned_at IS NULL`, userID)
}

// ListActive lists every open rental, newest first.
func (r *RentalRepo) ListActive(ctx context.Context) ([]model.Rental, error) {
	return r.listActive(ctx, `WHERE r.returned_at IS NULL`)
}

func (r *RentalRepo) listActive(ctx context.Context, where string, args ...any) ([]model.Rental, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT r.id, r.user_id, r.movie_id, r.rented_at, r.returned_at, m.title
		FROM rentals r JOIN movies m ON m.id = r.movie_id
		`+where+`
		ORDER BY r.rented_at DESC, r.id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Rental{}
	for rows.Next() {
		var (
			v        model.Rental
			returned sql.NullTime
		)
		if err := rows.Scan(&v.ID, &v.UserID, &v.MovieID, &v.RentedAt, &returned, &v.MovieTitle); err != nil {
			return nil, err
		}
		if returned.Valid {
			t := returned.Time
			v.ReturnedAt = &t
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanRental(s scanner) (model.Rental, error) {
	var (
		v        model.Rental
		returned sql.NullTime
	)
	err := s.Scan(&v.ID, &v.UserID, &v.MovieID, &v.RentedAt, &returned)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Rental{}, ErrRentalNotFound
	}
	if err != nil {
		return model.Rental{}, err
	}
	if returned.Valid {
		t := returned.Time
		v.ReturnedAt = &t
	}
	return v, nil
}
