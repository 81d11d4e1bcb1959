package model

import "time"

// Rental statuses of a movie as seen by one caller.
const (
    RentalAvailable   = "available"
    RentalRentedByYou = "rented_by_you"
    RentalRented      = "rented"
)

// Rental is a row of the `rentals` table.  It is active while ReturnedAt is nil.
type Rental struct {
    ID         uint64     `json:"id"`
    UserID     uint64     `json:"user_id"`
    MovieID    uint64     `json:"movie_id"`
    RentedAt   time.Time  `json:"rented_at"`
    ReturnedAt *time.Time `json:"returned_at"`
    MovieTitle string     `json:"movie_title,omitempty"`
}

// Active reports whether the rental has not been returned.
func (r Rental) Active() bool { return r.ReturnedAt == nil }
