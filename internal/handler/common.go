package handler

import (
    "errors"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/movie-catalog/internal/logger"
    "github.com/iliyamo/movie-catalog/internal/middleware"
    "github.com/iliyamo/movie-catalog/internal/repository"
    "github.com/iliyamo/movie-catalog/internal/service"
    "github.com/iliyamo/movie-catalog/internal/utils"
    "github.com/iliyamo/movie-catalog/internal/validate"
)

var errNoUser = errors.New("no authenticated user in context")

// getUserID returns the caller set by the JWT middleware.
func getUserID(c echo.Context) (uint64, error) {
    if id, ok := middleware.UserID(c); ok {
        return id, nil
    }
    return 0, errNoUser
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    return id, err == nil && id > 0
}

func badRequest(c echo.Context, msg string) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

func unauthorized(c echo.Context) error {
    return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

// bindValid binds the JSON body into dst and runs its validate tags.
// It writes the 400 response itself and reports false on failure.
func bindValid(c echo.Context, dst any) (bool, error) {
    if err := c.Bind(dst); err != nil {
        return false, badRequest(c, "invalid request body")
    }
    return validOnly(c, dst)
}

// validOnly runs the validate tags of an already bound dst.
func validOnly(c echo.Context, dst any) (bool, error) {
    if errs := validate.Map(dst); errs != nil {
        return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": errs})
    }
    return true, nil
}

// writeError maps domain errors to statuses. Anything unrecognised is
// logged and reported as an opaque 500.
func writeError(c echo.Context, err error) error {
    status, msg := http.StatusInternalServerError, "internal server error"
    switch {
    case errors.Is(err, repository.ErrMovieNotFound):
        status, msg = http.StatusNotFound, "movie not found"
    case errors.Is(err, repository.ErrRatingNotFound):
        status, msg = http.StatusNotFound, "rating not found"
    case errors.Is(err, repository.ErrUserNotFound):
        status, msg = http.StatusNotFound, "user not found"
    case errors.Is(err, service.ErrInvalidRating), errors.Is(err, service.ErrReviewTooLong),
        errors.Is(err, service.ErrInvalidRole), errors.Is(err, service.ErrWrongPassword),
        errors.Is(err, utils.ErrPasswordTooLong):
        status, msg = http.StatusBadRequest, err.Error()
    case errors.Is(err, service.ErrAlreadyRented):
        status, msg = http.StatusConflict, "You already rented this movie"
    case errors.Is(err, service.ErrRentedByOther):
        status, msg = http.StatusConflict, "Movie is already rented by someone else"
    case errors.Is(err, service.ErrNotRentedByYou):
        status, msg = http.StatusNotFound, "You have not rented this movie"
    case errors.Is(err, repository.ErrEmailExists):
        status, msg = http.StatusConflict, "email already exists"
    case errors.Is(err, repository.ErrConflict):
        status, msg = http.StatusConflict, "conflict"
    case errors.Is(err, repository.ErrForbidden):
        status, msg = http.StatusForbidden, "forbidden"
    default:
        logger.Get().WithFields(logrus.Fields{
            "method": c.Request().Method,
            "route":  c.Path(),
        }).WithError(err).Error("request failed")
    }
    return c.JSON(status, echo.Map{"error": msg})
}
