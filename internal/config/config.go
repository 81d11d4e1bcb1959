package config // package config loads application configuration from environment variables

import (
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "strings"

    "github.com/joho/godotenv" // .env support for local development

    "github.com/iliyamo/movie-catalog/internal/logger"
)

// Admin bootstrap policies. They decide which role a newly registered
// account receives.
const (
    AdminFirstUser = "first_user" // the very first account becomes admin
    AdminNone      = "none"       // every account starts as user; admins are promoted manually
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
    Env            string // application environment (e.g. "dev", "prod")
    Port           string // HTTP port to listen on
    DBUser         string // database username
    DBPass         string // database password (optional)
    DBHost         string // database host address
    DBPort         string // database port number
    DBName         string // database name
    JWTSecret      string // secret used to sign JWTs
    AccessTTLMin   int    // access token time‑to‑live in minutes
    RefreshTTLDays int    // refresh token time‑to‑live in days
    BcryptCost     int    // bcrypt cost for password hashing
    AdminBootstrap string // first_user | none
    RentalLimit    int    // max concurrently active rentals per user
    AutoMigrate    bool   // run schema migrations on startup
}

// Load reads configuration values from environment variables and returns a
// Config.  A .env file in the working directory is honoured when present;
// real environment variables always win.  Required variables are enforced by
// must() and missing values cause the program to exit with a fatal log message.
func Load() Config {
    _ = godotenv.Load() // absent .env is fine

    return Config{
        Env:            must("APP_ENV"),                    // environment (dev/test/prod)
        Port:           must("APP_PORT"),                   // port to bind the HTTP server
        DBUser:         must("DB_USER"),                    // database user
        DBPass:         os.Getenv("DB_PASS"),               // database password (empty allowed)
        DBHost:         must("DB_HOST"),                    // database host
        DBPort:         must("DB_PORT"),                    // database port
        DBName:         must("DB_NAME"),                    // database name
        JWTSecret:      must("JWT_SECRET"),                 // secret used for signing JWTs
        AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),    // TTL for access tokens in minutes
        RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),  // TTL for refresh tokens in days
        BcryptCost:     mustInt("BCRYPT_COST"),             // bcrypt cost factor
        AdminBootstrap: adminPolicy(envStr("ADMIN_BOOTSTRAP", AdminFirstUser)),
        RentalLimit:    positive(envInt("RENTAL_LIMIT", 3), 3),
        AutoMigrate:    envBool("DB_AUTO_MIGRATE", true),
    }
}

func adminPolicy(s string) string {
    switch strings.ToLower(strings.TrimSpace(s)) {
    case AdminNone, "no_admin":
        return AdminNone
    default:
        return AdminFirstUser
    }
}

func positive(n, def int) int {
    if n < 1 {
        return def
    }
    return n
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        logger.Get().Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        logger.Get().Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}
