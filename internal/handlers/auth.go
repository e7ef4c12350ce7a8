package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/apollo/backend/internal/models"
	"github.com/anonto42/apollo/backend/internal/notifications"
	"github.com/anonto42/apollo/backend/internal/repositories"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuthClient is the part of the Firebase admin auth client the handlers use
type AuthClient interface {
	CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
	UpdateUser(ctx context.Context, uid string, user *auth.UserToUpdate) (*auth.UserRecord, error)
	DeleteUser(ctx context.Context, uid string) error
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	userRepository repositories.UserRepository
	firebaseAuth   AuthClient
	notifications  *notifications.Manager
	jwtSecret      string
	jwtTTL         time.Duration
	log            *zap.SugaredLogger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(userRepo repositories.UserRepository, firebaseAuthClient AuthClient, manager *notifications.Manager, jwtSecret string, jwtTTL time.Duration, log *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{
		userRepository: userRepo,
		firebaseAuth:   firebaseAuthClient,
		notifications:  manager,
		jwtSecret:      jwtSecret,
		jwtTTL:         jwtTTL,
		log:            log,
	}
}

// RegisterAuthRoutes registers the public authentication routes
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/signup", h.Signup)
	g.POST("/firebase-login", h.FirebaseLogin)
}

// RegisterSessionRoutes registers routes that need a session
func (h *AuthHandler) RegisterSessionRoutes(g *echo.Group) {
	g.POST("/auth/signout", h.SignOut)
}

// Signup creates the Firebase account, stores the profile and returns a session token
func (h *AuthHandler) Signup(c echo.Context) error {
	var req models.SignupRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	record, err := h.firebaseAuth.CreateUser(ctx, (&auth.UserToCreate{}).
		Email(req.Email).
		Password(req.Password).
		DisplayName(req.Name))
	if err != nil {
		if auth.IsEmailAlreadyExists(err) {
			return echo.NewHTTPError(http.StatusConflict, "User with this email already registered")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user := &models.User{
		FirebaseUID: record.UID,
		Name:        req.Name,
		Email:       req.Email,
	}
	if err := h.userRepository.CreateUser(user); err != nil {
		// keep Firebase and the profile table in step
		if delErr := h.firebaseAuth.DeleteUser(ctx, record.UID); delErr != nil {
			h.log.Errorw("rolling back firebase user", "firebase_uid", record.UID, "error", delErr)
		}
		return storeError(err, "User not found")
	}

	token, err := h.generateJWT(user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token after signup")
	}

	h.log.Infow("user signed up", "firebase_uid", user.FirebaseUID)
	return c.JSON(http.StatusCreated, echo.Map{"token": token, "user": user})
}

// FirebaseLogin verifies a Firebase ID token and issues a local JWT
func (h *AuthHandler) FirebaseLogin(c echo.Context) error {
	var req models.FirebaseLoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	token, err := h.firebaseAuth.VerifyIDToken(c.Request().Context(), req.IDToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Firebase ID token")
	}

	email, _ := token.Claims["email"].(string)
	name, _ := token.Claims["name"].(string)

	user, err := h.userRepository.GetUserByFirebaseUID(token.UID)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		user = &models.User{FirebaseUID: token.UID, Name: name, Email: email}
		if err := h.userRepository.CreateUser(user); err != nil {
			return storeError(err, "User not found")
		}
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "Database error")
	default:
		changed := false
		if email != "" && email != user.Email {
			user.Email = email
			changed = true
		}
		if user.Name == "" && name != "" {
			user.Name = name
			changed = true
		}
		if changed {
			if err := h.userRepository.UpdateUser(user); err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update user details")
			}
		}
	}

	localJWT, err := h.generateJWT(user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate local JWT")
	}

	return c.JSON(http.StatusOK, echo.Map{"token": localJWT, "user": user})
}

// SignOut ends every session token of the caller, closes their live
// notification streams and revokes their Firebase refresh tokens
func (h *AuthHandler) SignOut(c echo.Context) error {
	claims, err := sessionUser(c)
	if err != nil {
		return err
	}

	// revoke first so the old token cannot open a new stream after the close
	if err := h.userRepository.RevokeSessions(claims.FirebaseUID); err != nil {
		return storeError(err, "User profile not found")
	}

	closed := h.notifications.SignOut(claims.FirebaseUID)
	if err := h.firebaseAuth.RevokeRefreshTokens(c.Request().Context(), claims.FirebaseUID); err != nil {
		h.log.Warnw("revoking refresh tokens", "firebase_uid", claims.FirebaseUID, "error", err)
	}

	return success(c, http.StatusOK, echo.Map{"signed_out": true, "closed_streams": closed})
}

// generateJWT generates a JWT token for a given user
func (h *AuthHandler) generateJWT(user *models.User) (string, error) {
	now := time.Now()
	claims := &models.JwtCustomClaims{
		UserID:         user.ID,
		FirebaseUID:    user.FirebaseUID,
		Name:           user.Name,
		Email:          user.Email,
		SessionVersion: user.SessionVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.FirebaseUID,
			ExpiresAt: jwt.NewNumericDate(now.Add(h.jwtTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.jwtSecret))
}
