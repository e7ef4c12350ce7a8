package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/anonto42/apollo/backend/internal/models"
	"github.com/anonto42/apollo/backend/internal/repositories"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const userKey = "user"

// SessionVersions looks up the session version a user's tokens must carry
type SessionVersions interface {
	SessionVersion(firebaseUID string) (uint, error)
}

// JWTAuthMiddleware checks for a valid JWT and extracts user claims. Browsers
// cannot set headers on a websocket handshake, so the token may also come in
// the "token" query parameter. When sessions is set, tokens issued before the
// user's last sign-out are rejected.
func JWTAuthMiddleware(secret string, sessions SessionVersions) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, err := bearerToken(c)
			if err != nil {
				return err
			}

			claims := &models.JwtCustomClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.NewHTTPError(http.StatusUnauthorized, "Unexpected signing method")
				}
				return []byte(secret), nil
			})

			if err != nil {
				if errors.Is(err, jwt.ErrSignatureInvalid) {
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token signature")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			if !token.Valid || claims.FirebaseUID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			if sessions != nil {
				current, err := sessions.SessionVersion(claims.FirebaseUID)
				switch {
				case errors.Is(err, repositories.ErrNotFound):
					return echo.NewHTTPError(http.StatusUnauthorized, "Unknown user")
				case err != nil:
					return echo.NewHTTPError(http.StatusInternalServerError, "Session lookup failed")
				case claims.SessionVersion != current:
					return echo.NewHTTPError(http.StatusUnauthorized, "Session has ended")
				}
			}

			// Store user claims in context
			c.Set(userKey, claims)

			return next(c)
		}
	}
}

func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		if t := c.QueryParam("token"); t != "" {
			return t, nil
		}
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
	}

	// Expecting "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
	}
	return parts[1], nil
}

// CurrentUser returns the claims stored by JWTAuthMiddleware, or nil
func CurrentUser(c echo.Context) *models.JwtCustomClaims {
	claims, _ := c.Get(userKey).(*models.JwtCustomClaims)
	return claims
}

// SetCurrentUser stores claims the way JWTAuthMiddleware does
func SetCurrentUser(c echo.Context, claims *models.JwtCustomClaims) {
	c.Set(userKey, claims)
}
