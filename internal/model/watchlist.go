package model

import "time"

// WatchlistItem is a movie a user saved for later.
type WatchlistItem struct {
    Movie
    AddedAt time.Time `json:"added_at"`
}
