// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the consumer for them.
package queue

// Activity event types.
const (
    EventRatingPut    = "rating.put"
    EventRatingDelete = "rating.delete"
    EventRentalRent   = "rental.rent"
    EventRentalReturn = "rental.return"
)

// ActivityEvent is published after a rating or rental transaction commits.
// It carries enough for downstream consumers to log or feed analytics
// without querying the primary database.
type ActivityEvent struct {
    Type       string  `json:"type"`
    UserID     uint64  `json:"user_id"`
    MovieID    uint64  `json:"movie_id"`
    MovieTitle string  `json:"movie_title,omitempty"`
    Rating     int     `json:"rating,omitempty"`     // rating.put only
    AvgRating  float64 `json:"avg_rating"`           // movie aggregate after the write
    RentalID   uint64  `json:"rental_id,omitempty"`  // rental events only
    OccurredAt string  `json:"occurred_at"`          // RFC3339, UTC
}
