package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/movie-catalog/internal/config"
	"github.com/iliyamo/movie-catalog/internal/logger"
	"github.com/iliyamo/movie-catalog/internal/model"
	"github.com/iliyamo/movie-catalog/internal/repository"
	"github.com/iliyamo/movie-catalog/internal/utils"
)

var (
	ErrWrongPassword = errors.New("current password is incorrect")
	ErrInvalidRole   = errors.New("role must be user or admin")
)

// AccountService owns user lifecycle operations that touch more than one table.
type AccountService struct {
	db      *sql.DB
	users   *repository.UserRepo
	movies  *repository.MovieRepo
	ratings *repository.RatingRepo
	tokens  *repository.TokenRepo
	cache   Invalidator
	policy  string
	cost    int
}

func NewAccountService(db *sql.DB, users *repository.UserRepo, movies *repository.MovieRepo, ratings *repository.RatingRepo, tokens *repository.TokenRepo, cache Invalidator, adminPolicy string, bcryptCost int) *AccountService {
	return &AccountService{
		db:      db,
		users:   users,
		movies:  movies,
		ratings: ratings,
		tokens:  tokens,
		cache:   orNopInvalidator(cache),
		policy:  adminPolicy,
		cost:    bcryptCost,
	}
}

// Register creates an account. Under the first_user policy the very first
// account becomes admin; everyone else starts as user.
func (s *AccountService) Register(ctx context.Context, email, name, password string) (model.User, error) {
	var id uint64
	role := model.RoleUser
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if s.policy == config.AdminFirstUser {
			exists, err := s.users.HasAnyTx(ctx, tx)
			if err != nil {
				return err
			}
			if !exists {
				role = model.RoleAdmin
			}
		}
		var err error
		id, err = s.users.CreateTx(ctx, tx, email, name, password, role, s.cost)
		return err
	})
	if repository.IsLockConflict(err) {
		// Concurrent registrations on an empty table deadlock on the gap
		// lock taken by HasAnyTx; the loser is asked to retry.
		return model.User{}, fmt.Errorf("%w: concurrent registration, retry", repository.ErrConflict)
	}
	if err != nil {
		return model.User{}, err
	}
	return s.users.GetByID(ctx, id)
}

// Authenticate returns the user for valid credentials.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (model.User, bool, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return model.User{}, false, nil
	}
	if err != nil {
		return model.User{}, false, err
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, password) {
		return model.User{}, false, nil
	}
	if utils.NeedsRehash(u.PasswordHash, s.cost) {
		// BCRYPT_COST changed since the hash was written.
		if err := s.users.UpdatePassword(ctx, u.ID, password, s.cost); err != nil {
			logger.Get().WithError(err).WithField("user_id", u.ID).Warn("password rehash failed")
		}
	}
	return u, true, nil
}

// ChangePassword verifies the current password, stores the new one and
// revokes every refresh token of the user.
func (s *AccountService) ChangePassword(ctx context.Context, userID uint64, current, next string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !utils.VerifyPassword(u.PasswordHash, current) {
		return ErrWrongPassword
	}
	if err := s.users.UpdatePassword(ctx, userID, next, s.cost); err != nil {
		return err
	}
	return s.tokens.RevokeAllForUser(ctx, userID)
}

// UpdateUser changes role and/or name.
func (s *AccountService) UpdateUser(ctx context.Context, id uint64, role, name *string) (model.User, error) {
	if role != nil {
		r := strings.ToLower(strings.TrimSpace(*role))
		if r != model.RoleUser && r != model.RoleAdmin {
			return model.User{}, ErrInvalidRole
		}
		role = &r
	}
	if name != nil {
		n := strings.TrimSpace(*name)
		name = &n
	}
	return s.users.UpdateProfile(ctx, id, role, name)
}

// DeleteUser removes a user. Their ratings cascade away, so every affected
// movie's average is recomputed in the same transaction.
func (s *AccountService) DeleteUser(ctx context.Context, id uint64) error {
	var touched []uint64
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.users.LockTx(ctx, tx, id); err != nil {
			return err
		}
		var err error
		touched, err = s.ratings.MovieIDsByUserTx(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, mid := range touched {
			if err := s.movies.LockTx(ctx, tx, mid); err != nil {
				return err
			}
		}
		if err := s.users.DeleteTx(ctx, tx, id); err != nil {
			return err
		}
		for _, mid := range touched {
			if _, err := s.movies.RecalcAvgTx(ctx, tx, mid); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(touched) > 0 {
		invalidate(ctx, s.cache)
	}
	return nil
}

// List returns every account.
func (s *AccountService) List(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx)
}
