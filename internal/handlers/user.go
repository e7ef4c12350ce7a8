package handlers

import (
	"net/http"
	"strconv"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/apollo/backend/internal/models"
	"github.com/anonto42/apollo/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// UserHandler handles HTTP requests related to users
type UserHandler struct {
	userRepository repositories.UserRepository
	postRepository repositories.PostRepository
	firebaseAuth   AuthClient
	log            *zap.SugaredLogger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userRepo repositories.UserRepository, postRepo repositories.PostRepository, firebaseAuth AuthClient, log *zap.SugaredLogger) *UserHandler {
	return &UserHandler{
		userRepository: userRepo,
		postRepository: postRepo,
		firebaseAuth:   firebaseAuth,
		log:            log,
	}
}

// RegisterProfileRoutes registers user profile-related routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/profile", h.GetProfile)
	g.PUT("/profile", h.UpdateProfile)
	g.GET("/users", h.ListUsers)
	g.GET("/users/:id", h.GetUser)
}

// GetUser returns a profile by numeric id or Firebase UID
func (h *UserHandler) GetUser(c echo.Context) error {
	param := c.Param("id")

	var (
		user *models.User
		err  error
	)
	if id, parseErr := strconv.ParseUint(param, 10, 32); parseErr == nil {
		user, err = h.userRepository.GetUserByID(uint(id))
	} else {
		user, err = h.userRepository.GetUserByFirebaseUID(param)
	}
	if err != nil {
		return storeError(err, "User profile not found")
	}
	return success(c, http.StatusOK, user.ToCompact())
}

// ListUsers lists the other users, filtered by ?q= on name or email
func (h *UserHandler) ListUsers(c echo.Context) error {
	claims, err := sessionUser(c)
	if err != nil {
		return err
	}

	var users []models.User
	if q := c.QueryParam("q"); q != "" {
		users, err = h.userRepository.SearchUsers(q, claims.FirebaseUID)
	} else {
		users, err = h.userRepository.GetUsers(claims.FirebaseUID)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	compact := make([]models.UserCompact, len(users))
	for i := range users {
		compact[i] = users[i].ToCompact()
	}
	return success(c, http.StatusOK, compact)
}

// GetProfile retrieves the authenticated user's profile
func (h *UserHandler) GetProfile(c echo.Context) error {
	claims, err := sessionUser(c)
	if err != nil {
		return err
	}

	user, err := h.userRepository.GetUserByFirebaseUID(claims.FirebaseUID)
	if err != nil {
		return storeError(err, "User profile not found")
	}
	return success(c, http.StatusOK, user)
}

// UpdateProfile updates the authenticated user's profile. A new name is
// copied onto every post of the user; a new password goes to Firebase.
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	claims, err := sessionUser(c)
	if err != nil {
		return err
	}

	var req models.UpdateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	user, err := h.userRepository.GetUserByFirebaseUID(claims.FirebaseUID)
	if err != nil {
		return storeError(err, "User profile not found")
	}

	update := &auth.UserToUpdate{}
	firebaseChanged := false
	if req.NewPassword != "" {
		update = update.Password(req.NewPassword)
		firebaseChanged = true
	}

	renamed := req.Name != "" && req.Name != user.Name
	if renamed {
		user.Name = req.Name
		update = update.DisplayName(req.Name)
		firebaseChanged = true
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}
	if req.PhotoURL != nil {
		user.PhotoURL = *req.PhotoURL
	}

	if firebaseChanged {
		if _, err := h.firebaseAuth.UpdateUser(ctx, user.FirebaseUID, update); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}

	if err := h.userRepository.UpdateUser(user); err != nil {
		return storeError(err, "User profile not found")
	}

	postsUpdated := 0
	if renamed {
		postsUpdated, err = h.postRepository.RenameAuthor(ctx, user.FirebaseUID, user.Name)
		if err != nil {
			h.log.Errorw("renaming author on posts", "firebase_uid", user.FirebaseUID, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "Profile saved but posts could not be updated")
		}
	}

	return success(c, http.StatusOK, echo.Map{
		"user":             user,
		"posts_updated":    postsUpdated,
		"password_changed": req.NewPassword != "",
	})
}
