package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied statement by statement; the driver does not allow
// multi-statement Exec without multiStatements=true in the DSN.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		email         VARCHAR(255)    NOT NULL,
		name          VARCHAR(120)    NOT NULL DEFAULT '',
		password_hash VARCHAR(255)    NOT NULL,
		role          VARCHAR(16)     NOT NULL DEFAULT 'user',
		is_active     TINYINT(1)      NOT NULL DEFAULT 1,
		created_at    DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		user_id    BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64)        NOT NULL,
		expires_at DATETIME        NOT NULL,
		revoked_at DATETIME        NULL,
		created_at DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		UNIQUE KEY uq_refresh_tokens_hash (token_hash),
		KEY idx_refresh_tokens_user (user_id),
		CONSTRAINT fk_refresh_tokens_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS movies (
		id           BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		title        VARCHAR(255)    NOT NULL,
		description  TEXT            NOT NULL,
		genre        VARCHAR(64)     NOT NULL,
		release_year SMALLINT        NOT NULL,
		poster_url   VARCHAR(1024)   NULL,
		avg_rating   DOUBLE          NOT NULL DEFAULT 0,
		created_at   DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		KEY idx_movies_rating (avg_rating, id),
		KEY idx_movies_genre (genre),
		KEY idx_movies_year (release_year),
		KEY idx_movies_title (title)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS movie_genres (
		movie_id BIGINT UNSIGNED NOT NULL,
		tag      VARCHAR(64)     NOT NULL,
		PRIMARY KEY (movie_id, tag),
		KEY idx_movie_genres_tag (tag),
		CONSTRAINT fk_movie_genres_movie FOREIGN KEY (movie_id) REFERENCES movies (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS ratings (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		user_id    BIGINT UNSIGNED NOT NULL,
		movie_id   BIGINT UNSIGNED NOT NULL,
		rating     TINYINT         NOT NULL,
		review     VARCHAR(500)    NULL,
		created_at DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		UNIQUE KEY uq_ratings_user_movie (user_id, movie_id),
		KEY idx_ratings_movie (movie_id, rating),
		KEY idx_ratings_user_created (user_id, created_at),
		CONSTRAINT chk_ratings_range CHECK (rating BETWEEN 1 AND 5),
		CONSTRAINT fk_ratings_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE,
		CONSTRAINT fk_ratings_movie FOREIGN KEY (movie_id) REFERENCES movies (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	// active_movie_id is non-NULL only while the rental is open, so the unique
	// key allows any number of returned rentals but one open rental per movie.
	// MySQL forbids cascading FKs on base columns of stored generated columns,
	// hence the plain FK on movie_id; movie deletion removes rentals itself.
	`CREATE TABLE IF NOT EXISTS rentals (
		id              BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		user_id         BIGINT UNSIGNED NOT NULL,
		movie_id        BIGINT UNSIGNED NOT NULL,
		rented_at       DATETIME        NOT NULL,
		returned_at     DATETIME        NULL,
		active_movie_id BIGINT UNSIGNED AS (IF(returned_at IS NULL, movie_id, NULL)) STORED,
		PRIMARY KEY (id),
		UNIQUE KEY uq_rentals_active_movie (active_movie_id),
		KEY idx_rentals_user_active (user_id, returned_at),
		KEY idx_rentals_movie (movie_id),
		CONSTRAINT fk_rentals_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE,
		CONSTRAINT fk_rentals_movie FOREIGN KEY (movie_id) REFERENCES movies (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS watchlist_items (
		user_id  BIGINT UNSIGNED NOT NULL,
		movie_id BIGINT UNSIGNED NOT NULL,
		added_at DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, movie_id),
		KEY idx_watchlist_movie (movie_id),
		CONSTRAINT fk_watchlist_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE,
		CONSTRAINT fk_watchlist_movie FOREIGN KEY (movie_id) REFERENCES movies (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	// Primary genre is always also a tag.
	`INSERT IGNORE INTO movie_genres (movie_id, tag)
		SELECT id, genre FROM movies WHERE genre <> ''`,
}

// Migrate applies the schema. Every statement is idempotent so it is safe to
// run on each startup.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
