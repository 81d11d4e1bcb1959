package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/movie-catalog/internal/metrics"
	"github.com/iliyamo/movie-catalog/internal/model"
	"github.com/iliyamo/movie-catalog/internal/queue"
	"github.com/iliyamo/movie-catalog/internal/repository"
)

var (
	ErrRentalLimit    = errors.New("rental limit reached")
	ErrAlreadyRented  = errors.New("you already rented this movie")
	ErrRentedByOther  = errors.New("movie is already rented by someone else")
	ErrNotRentedByYou = errors.New("you have not rented this movie")
)

// DefaultRentalLimit is the per-user cap on open rentals.
const DefaultRentalLimit = 3

// RentalService runs the per-movie state machine Available <-> Rented(by).
//
// Both transitions lock the user row and then the movie row before reading
// any rental state, so two renters of the same movie serialize and the
// second one observes the first one's committed rental. Locking the user row
// also serializes one user's concurrent rents of different movies, which
// keeps the cap exact.
type RentalService struct {
	db      *sql.DB
	users   *repository.UserRepo
	movies  *repository.MovieRepo
	rentals *repository.RentalRepo
	events  EventPublisher
	limit   int
	now     func() time.Time
}

func NewRentalService(db *sql.DB, users *repository.UserRepo, movies *repository.MovieRepo, rentals *repository.RentalRepo, events EventPublisher, limit int) *RentalService {
	if limit < 1 {
		limit = DefaultRentalLimit
	}
	return &RentalService{
		db:      db,
		users:   users,
		movies:  movies,
		rentals: rentals,
		events:  orNopPublisher(events),
		limit:   limit,
		now:     time.Now,
	}
}

// Limit is the configured per-user cap.
func (s *RentalService) Limit() int { return s.limit }

// Rent opens a rental of movieID for userID.
//
// Checks, in order: the user's cap, then any open rental of the movie
// (ErrAlreadyRented when it is the caller's, ErrRentedByOther otherwise).
// Any rejection rolls the transaction back.
func (s *RentalService) Rent(ctx context.Context, movieID, userID uint64) (model.Rental, error) {
	now := s.now().UTC().Truncate(time.Second)
	rental := model.Rental{UserID: userID, MovieID: movieID, RentedAt: now}

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.users.LockTx(ctx, tx, userID); err != nil {
			return err
		}
		if err := s.movies.LockTx(ctx, tx, movieID); err != nil {
			return err
		}
		n, err := s.rentals.CountActiveByUserTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		if n >= s.limit {
			return ErrRentalLimit
		}
		active, err := s.rentals.ActiveForMovieTx(ctx, tx, movieID)
		switch {
		case err == nil && active.UserID == userID:
			return ErrAlreadyRented
		case err == nil:
			return ErrRentedByOther
		case !errors.Is(err, repository.ErrRentalNotFound):
			return err
		}
		id, err := s.rentals.InsertTx(ctx, tx, userID, movieID, now)
		if errors.Is(err, repository.ErrConflict) {
			return ErrRentedByOther
		}
		rental.ID = id
		return err
	})
	if err != nil {
		metrics.RentalAttempts.WithLabelValues("rent", outcome(err)).Inc()
		return model.Rental{}, err
	}
	metrics.RentalAttempts.WithLabelValues("rent", "ok").Inc()
	emit(s.events, queue.ActivityEvent{
		Type:       queue.EventRentalRent,
		UserID:     userID,
		MovieID:    movieID,
		RentalID:   rental.ID,
		OccurredAt: stamp(now),
	})
	return rental, nil
}

// Return closes the caller's open rental of movieID. ErrNotRentedByYou when
// the movie is available or rented by someone else; nothing changes then.
func (s *RentalService) Return(ctx context.Context, movieID, userID uint64) (model.Rental, error) {
	now := s.now().UTC().Truncate(time.Second)
	var rental model.Rental

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.users.LockTx(ctx, tx, userID); err != nil {
			return err
		}
		if err := s.movies.LockTx(ctx, tx, movieID); err != nil {
			return err
		}
		active, err := s.rentals.ActiveForMovieTx(ctx, tx, movieID)
		if errors.Is(err, repository.ErrRentalNotFound) {
			return ErrNotRentedByYou
		}
		if err != nil {
			return err
		}
		if active.UserID != userID {
			return ErrNotRentedByYou
		}
		if err := s.rentals.MarkReturnedTx(ctx, tx, active.ID, now); err != nil {
			return err
		}
		rental = active
		rental.ReturnedAt = &now
		return nil
	})
	if err != nil {
		metrics.RentalAttempts.WithLabelValues("return", outcome(err)).Inc()
		return model.Rental{}, err
	}
	metrics.RentalAttempts.WithLabelValues("return", "ok").Inc()
	emit(s.events, queue.ActivityEvent{
		Type:       queue.EventRentalReturn,
		UserID:     userID,
		MovieID:    movieID,
		RentalID:   rental.ID,
		OccurredAt: stamp(now),
	})
	return rental, nil
}

// Status describes the movie's rental state from userID's point of view.
func (s *RentalService) Status(ctx context.Context, movieID, userID uint64) (string, error) {
	if _, err := s.movies.GetByID(ctx, movieID); err != nil {
		return "", err
	}
	active, err := s.rentals.ActiveForMovie(ctx, movieID)
	switch {
	case errors.Is(err, repository.ErrRentalNotFound):
		return model.RentalAvailable, nil
	case err != nil:
		return "", err
	case active.UserID == userID:
		return model.RentalRentedByYou, nil
	default:
		return model.RentalRented, nil
	}
}

// Mine lists the caller's open rentals.
func (s *RentalService) Mine(ctx context.Context, userID uint64) ([]model.Rental, error) {
	return s.rentals.ActiveByUser(ctx, userID)
}

// Active lists every open rental.
func (s *RentalService) Active(ctx context.Context) ([]model.Rental, error) {
	return s.rentals.ListActive(ctx)
}
