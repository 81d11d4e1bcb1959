package model

import "time"

// Rating is one user's 1..5 score for a movie.  (UserID, MovieID) is unique;
// re-rating overwrites Rating, Review and CreatedAt in place.
type Rating struct {
    ID        uint64    `json:"id"`
    UserID    uint64    `json:"user_id"`
    MovieID   uint64    `json:"movie_id"`
    Rating    int       `json:"rating"`
    Review    *string   `json:"review"`
    CreatedAt time.Time `json:"created_at"`
}

// Review is a rating as listed under a movie, with the reviewer's name.
type Review struct {
    ID        uint64    `json:"id"`
    Rating    int       `json:"rating"`
    Review    *string   `json:"review"`
    CreatedAt time.Time `json:"created_at"`
    UserName  string    `json:"user_name"`
}

// HistoryEntry is a movie the user rated, newest first.
type HistoryEntry struct {
    Movie
    MyReview *string   `json:"my_review"`
    RatedAt  time.Time `json:"rated_at"`
}

// Histogram maps star value (1..5) to the number of ratings with that value.
type Histogram map[int]int
