package model

import "time"

// Roles carried in the access token's "role" claim.
const (
    RoleUser  = "user"
    RoleAdmin = "admin"
)

// User represents a row of the `users` table.  PasswordHash never leaves
// the server; handlers respond with PublicUser.
type User struct {
    ID           uint64    // users.id
    Email        string    // users.email (lower-cased)
    Name         string    // users.name
    PasswordHash string    // users.password_hash
    Role         string    // users.role (user | admin)
    IsActive     bool      // users.is_active
    CreatedAt    time.Time // users.created_at
    UpdatedAt    time.Time // users.updated_at
}

// PublicUser is the client-facing projection of a User.
type PublicUser struct {
    ID        uint64    `json:"id"`
    Email     string    `json:"email"`
    Name      string    `json:"name"`
    Role      string    `json:"role"`
    CreatedAt time.Time `json:"created_at"`
}

// Public strips credentials from u.
func (u User) Public() PublicUser {
    return PublicUser{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, CreatedAt: u.CreatedAt}
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA‑256 hash of the token value is stored.
type RefreshToken struct {
    ID        uint64     // refresh_tokens.id
    UserID    uint64     // refresh_tokens.user_id
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
    CreatedAt time.Time  // refresh_tokens.created_at
}
