// Package service holds the transactional use cases: rating upserts with the
// aggregate recompute, the rental state machine, recommendations and the
// account/catalog operations that must keep derived data consistent.
//
// Lock order is always user row, then movie rows in ascending id. Rating
// inserts take a shared FK lock on the user row, so any other order could
// deadlock against a concurrent rent by the same user.
package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/movie-catalog/internal/logger"
	"github.com/iliyamo/movie-catalog/internal/queue"
	"github.com/iliyamo/movie-catalog/internal/repository"
)

// EventPublisher delivers activity events. *queue.Publisher satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ActivityEvent) error
}

// Invalidator drops cached catalog responses after a write.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, queue.ActivityEvent) error { return nil }

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(context.Context) error { return nil }

func orNopPublisher(p EventPublisher) EventPublisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

func orNopInvalidator(i Invalidator) Invalidator {
	if i == nil {
		return nopInvalidator{}
	}
	return i
}

const publishTimeout = 5 * time.Second

// emit publishes ev in the background. Events are only emitted after commit;
// a broker failure never affects the request.
func emit(p EventPublisher, ev queue.ActivityEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := p.Publish(ctx, ev); err != nil {
			logger.Get().WithFields(logrus.Fields{"type": ev.Type, "movie_id": ev.MovieID}).
				WithError(err).Warn("publish activity event failed")
		}
	}()
}

// invalidate bumps the catalog cache; failures only shorten cache usefulness.
func invalidate(ctx context.Context, i Invalidator) {
	if err := i.Invalidate(ctx); err != nil {
		logger.Get().WithError(err).Warn("catalog cache invalidation failed")
	}
}

// withTx runs fn in a transaction and commits when fn returns nil.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// outcome is the metrics label for a failed rating or rental attempt.
func outcome(err error) string {
	switch {
	case errors.Is(err, repository.ErrMovieNotFound), errors.Is(err, repository.ErrRatingNotFound),
		errors.Is(err, repository.ErrUserNotFound), errors.Is(err, repository.ErrRentalNotFound):
		return "not_found"
	case errors.Is(err, ErrRentalLimit):
		return "limit"
	case errors.Is(err, ErrAlreadyRented):
		return "already_yours"
	case errors.Is(err, ErrRentedByOther):
		return "rented"
	case errors.Is(err, ErrNotRentedByYou):
		return "not_yours"
	default:
		return "error"
	}
}

func stamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }
