package handlers

import (
	"net/http"

	"github.com/anonto42/apollo/backend/internal/models"
	"github.com/anonto42/apollo/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// FeedHandler handles feed-related HTTP requests
type FeedHandler struct {
	postRepository   repositories.PostRepository
	followRepository repositories.FollowRepository
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(postRepo repositories.PostRepository, followRepo repositories.FollowRepository) *FeedHandler {
	return &FeedHandler{
		postRepository:   postRepo,
		followRepository: followRepo,
	}
}

// RegisterFeedRoutes registers feed-related routes
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/feed", h.GetFeed)
}

// GetFeed returns the newest posts with flags relative to the caller
func (h *FeedHandler) GetFeed(c echo.Context) error {
	claims, err := sessionUser(c)
	if err != nil {
		return err
	}

	page, limit := pagination(c, 10)
	skip := (page - 1) * limit

	// one extra post tells whether another page exists
	posts, err := h.postRepository.GetAllPosts(c.Request().Context(), skip, limit+1)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	hasNext := len(posts) > limit
	if hasNext {
		posts = posts[:limit]
	}

	followingUIDs, err := h.followRepository.GetFollowingUIDs(claims.FirebaseUID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	following := make(map[string]bool, len(followingUIDs))
	for _, uid := range followingUIDs {
		following[uid] = true
	}

	feed := make([]models.FeedPost, len(posts))
	for i := range posts {
		p := &posts[i]
		feed[i] = models.FeedPost{
			Post:            *p,
			LikesCount:      len(p.Likes),
			LikedByMe:       p.LikedBy(claims.FirebaseUID),
			FollowingAuthor: following[p.UserID],
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"posts": feed,
		},
		"meta": echo.Map{
			"currentPage":     page,
			"itemsPerPage":    limit,
			"hasNextPage":     hasNext,
			"hasPreviousPage": page > 1,
		},
	})
}
