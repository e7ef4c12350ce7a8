package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/anonto42/apollo/backend/internal/middleware"
	"github.com/anonto42/apollo/backend/internal/models"
	"github.com/anonto42/apollo/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// sessionUser returns the authenticated caller or a 401
func sessionUser(c echo.Context) (*models.JwtCustomClaims, error) {
	claims := middleware.CurrentUser(c)
	if claims == nil || claims.FirebaseUID == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	return claims, nil
}

// bindAndValidate decodes the request body into req and runs the echo validator
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	return c.Validate(req)
}

// storeError maps repository sentinels onto HTTP errors
func storeError(err error, notFound string) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, notFound)
	case errors.Is(err, repositories.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "Forbidden")
	case errors.Is(err, repositories.ErrAlreadyExists):
		return echo.NewHTTPError(http.StatusConflict, "Already exists")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func success(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, echo.Map{"success": true, "data": data})
}

// pagination reads page and limit, clamping them to sane values
func pagination(c echo.Context, defaultLimit int) (page, limit int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = defaultLimit
	}
	return page, limit
}
