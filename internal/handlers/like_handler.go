package handlers

import (
	"net/http"
	"time"

	"github.com/anonto42/apollo/backend/internal/models"
	"github.com/anonto42/apollo/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// LikeHandler handles HTTP requests related to likes
type LikeHandler struct {
	postRepository repositories.PostRepository
	userRepository repositories.UserRepository
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(postRepo repositories.PostRepository, userRepo repositories.UserRepository) *LikeHandler {
	return &LikeHandler{
		postRepository: postRepo,
		userRepository: userRepo,
	}
}

// RegisterLikeRoutes registers like-related routes
func (h *LikeHandler) RegisterLikeRoutes(g *echo.Group) {
	g.POST("/posts/:post_id/likes", h.ToggleLike)
}

// ToggleLike likes the post, or removes the caller's like when there is one
func (h *LikeHandler) ToggleLike(c echo.Context) error {
	claims, err := sessionUser(c)
	if err != nil {
		return err
	}

	like := models.Like{
		UserID:    claims.FirebaseUID,
		UserName:  displayName(h.userRepository, claims),
		CreatedAt: time.Now(),
	}
	liked, post, err := h.postRepository.ToggleLike(c.Request().Context(), c.Param("post_id"), like)
	if err != nil {
		return storeError(err, "Post not found")
	}

	return success(c, http.StatusOK, echo.Map{
		"liked":       liked,
		"likes_count": len(post.Likes),
	})
}
