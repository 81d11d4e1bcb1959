package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/iliyamo/movie-catalog/internal/repository"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{repository.ErrMovieNotFound, "not_found"},
		{fmt.Errorf("lock: %w", repository.ErrUserNotFound), "not_found"},
		{repository.ErrRatingNotFound, "not_found"},
		{ErrRentalLimit, "limit"},
		{ErrAlreadyRented, "already_yours"},
		{ErrRentedByOther, "rented"},
		{ErrNotRentedByYou, "not_yours"},
		{errors.New("driver: bad connection"), "error"},
	}
	for _, tt := range tests {
		if got := outcome(tt.err); got != tt.want {
			t.Errorf("outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
