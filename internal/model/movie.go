package model

// Movie is the catalog projection returned by every movie endpoint.
//
// AvgRating is derived: it always equals the mean of the movie's ratings,
// or 0 when there are none.  Genres lists every tag attached to the movie
// and always contains the primary Genre.
type Movie struct {
    ID          uint64   `json:"id"`
    Title       string   `json:"title"`
    Description string   `json:"description"`
    Genre       string   `json:"genre"`
    ReleaseYear int      `json:"release_year"`
    PosterURL   *string  `json:"poster_url"`
    AvgRating   float64  `json:"avg_rating"`
    Genres      []string `json:"genres"`
    MyRating    *int     `json:"my_rating,omitempty"` // caller's own rating, search only
}

// MovieInput carries the admin-editable fields of a movie.
type MovieInput struct {
    Title       string
    Description string
    Genre       string
    ReleaseYear int
    PosterURL   *string
    Genres      []string // extra tags; the primary genre is always added
}
