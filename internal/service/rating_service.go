package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/movie-catalog/internal/metrics"
	"github.com/iliyamo/movie-catalog/internal/model"
	"github.com/iliyamo/movie-catalog/internal/queue"
	"github.com/iliyamo/movie-catalog/internal/repository"
)

// MaxReviewLen is the review limit in characters.
const MaxReviewLen = 500

var (
	ErrInvalidRating = errors.New("rating must be an integer between 1 and 5")
	ErrReviewTooLong = errors.New("review must be at most 500 characters")
)

// RatingService writes ratings and keeps movies.avg_rating equal to the mean
// of the movie's ratings. The write and the recompute commit together.
type RatingService struct {
	db      *sql.DB
	users   *repository.UserRepo
	movies  *repository.MovieRepo
	ratings *repository.RatingRepo
	events  EventPublisher
	cache   Invalidator
	now     func() time.Time
}

func NewRatingService(db *sql.DB, users *repository.UserRepo, movies *repository.MovieRepo, ratings *repository.RatingRepo, events EventPublisher, cache Invalidator) *RatingService {
	return &RatingService{
		db:      db,
		users:   users,
		movies:  movies,
		ratings: ratings,
		events:  orNopPublisher(events),
		cache:   orNopInvalidator(cache),
		now:     time.Now,
	}
}

// NormalizeReview trims review and maps blank to nil.
func NormalizeReview(review *string) *string {
	if review == nil {
		return nil
	}
	r := strings.TrimSpace(*review)
	if r == "" {
		return nil
	}
	return &r
}

// Submit creates or overwrites the caller's rating for movieID and returns
// the movie with its recomputed average.
func (s *RatingService) Submit(ctx context.Context, userID, movieID uint64, rating int, review *string) (model.Movie, error) {
	if rating < 1 || rating > 5 {
		return model.Movie{}, ErrInvalidRating
	}
	review = NormalizeReview(review)
	if review != nil && utf8.RuneCountInString(*review) > MaxReviewLen {
		return model.Movie{}, ErrReviewTooLong
	}

	var m model.Movie
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.users.LockTx(ctx, tx, userID); err != nil {
			return err
		}
		if err := s.movies.LockTx(ctx, tx, movieID); err != nil {
			return err
		}
		if err := s.ratings.UpsertTx(ctx, tx, userID, movieID, rating, review); err != nil {
			return err
		}
		if _, err := s.movies.RecalcAvgTx(ctx, tx, movieID); err != nil {
			return err
		}
		var err error
		m, err = s.movies.GetByIDTx(ctx, tx, movieID)
		return err
	})
	if err != nil {
		metrics.RatingMutations.WithLabelValues("put", outcome(err)).Inc()
		return model.Movie{}, err
	}
	metrics.RatingMutations.WithLabelValues("put", "ok").Inc()
	invalidate(ctx, s.cache)
	emit(s.events, queue.ActivityEvent{
		Type:       queue.EventRatingPut,
		UserID:     userID,
		MovieID:    movieID,
		MovieTitle: m.Title,
		Rating:     rating,
		AvgRating:  m.AvgRating,
		OccurredAt: stamp(s.now()),
	})
	return m, nil
}

// Delete removes the caller's rating and returns the movie with its
// recomputed average. repository.ErrRatingNotFound when there was none.
func (s *RatingService) Delete(ctx context.Context, userID, movieID uint64) (model.Movie, error) {
	var m model.Movie
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.users.LockTx(ctx, tx, userID); err != nil {
			return err
		}
		if err := s.movies.LockTx(ctx, tx, movieID); err != nil {
			return err
		}
		if err := s.ratings.DeleteTx(ctx, tx, userID, movieID); err != nil {
			return err
		}
		if _, err := s.movies.RecalcAvgTx(ctx, tx, movieID); err != nil {
			return err
		}
		var err error
		m, err = s.movies.GetByIDTx(ctx, tx, movieID)
		return err
	})
	if err != nil {
		metrics.RatingMutations.WithLabelValues("delete", outcome(err)).Inc()
		return model.Movie{}, err
	}
	metrics.RatingMutations.WithLabelValues("delete", "ok").Inc()
	invalidate(ctx, s.cache)
	emit(s.events, queue.ActivityEvent{
		Type:       queue.EventRatingDelete,
		UserID:     userID,
		MovieID:    movieID,
		MovieTitle: m.Title,
		AvgRating:  m.AvgRating,
		OccurredAt: stamp(s.now()),
	})
	return m, nil
}
