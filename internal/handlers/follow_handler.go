package handlers

import (
	"net/http"

	"github.com/anonto42/apollo/backend/internal/models"
	"github.com/anonto42/apollo/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// FollowHandler handles follow/unfollow HTTP requests
type FollowHandler struct {
	followRepository repositories.FollowRepository
	userRepository   repositories.UserRepository
}

// NewFollowHandler creates a new FollowHandler
func NewFollowHandler(followRepo repositories.FollowRepository, userRepo repositories.UserRepository) *FollowHandler {
	return &FollowHandler{
		followRepository: followRepo,
		userRepository:   userRepo,
	}
}

// RegisterFollowRoutes registers follow-related routes
func (h *FollowHandler) RegisterFollowRoutes(g *echo.Group) {
	g.POST("/users/:uid/follow", h.FollowUser)
	g.DELETE("/users/:uid/follow", h.UnfollowUser)
	g.GET("/following", h.GetFollowing)
}

// FollowUser follows a user
func (h *FollowHandler) FollowUser(c echo.Context) error {
	claims, err := sessionUser(c)
	if err != nil {
		return err
	}

	targetUID := c.Param("uid")
	if targetUID == claims.FirebaseUID {
		return echo.NewHTTPError(http.StatusBadRequest, "Cannot follow yourself")
	}

	target, err := h.userRepository.GetUserByFirebaseUID(targetUID)
	if err != nil {
		return storeError(err, "User not found")
	}

	// Check if already following
	isFollowing, err := h.followRepository.IsFollowing(claims.FirebaseUID, targetUID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if isFollowing {
		return echo.NewHTTPError(http.StatusConflict, "Already following this user")
	}

	follow := &models.Follow{
		FollowerUID:   claims.FirebaseUID,
		FollowingUID:  targetUID,
		FollowingName: target.Name,
	}
	if err := h.followRepository.CreateFollow(follow); err != nil {
		return storeError(err, "User not found")
	}

	return success(c, http.StatusOK, echo.Map{"following": true})
}

// UnfollowUser unfollows a user
func (h *FollowHandler) UnfollowUser(c echo.Context) error {
	claims, err := sessionUser(c)
	if err != nil {
		return err
	}

	if err := h.followRepository.DeleteFollow(claims.FirebaseUID, c.Param("uid")); err != nil {
		return storeError(err, "Not following this user")
	}

	return success(c, http.StatusOK, echo.Map{"following": false})
}

// GetFollowing lists who the caller follows
func (h *FollowHandler) GetFollowing(c echo.Context) error {
	claims, err := sessionUser(c)
	if err != nil {
		return err
	}

	follows, err := h.followRepository.GetFollowing(claims.FirebaseUID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	followers, err := h.followRepository.GetFollowersCount(claims.FirebaseUID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return success(c, http.StatusOK, echo.Map{
		"following":       follows,
		"following_count": len(follows),
		"followers_count": followers,
	})
}
