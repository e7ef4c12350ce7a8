package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/anonto42/apollo/backend/internal/models"
	"github.com/anonto42/apollo/backend/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeComments struct {
	mu       sync.Mutex
	comments []models.Comment
}

func (f *fakeComments) CreateComment(_ context.Context, comment *models.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	comment.ID = fmt.Sprintf("comment-%d", len(f.comments)+1)
	f.comments = append(f.comments, *comment)
	return nil
}

func (f *fakeComments) GetCommentsByPostID(_ context.Context, postID string) ([]models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Comment{}
	for _, c := range f.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	return out, nil
}

var _ repositories.CommentRepository = (*fakeComments)(nil)

func seededPosts(t *testing.T, n int, author string) *fakePosts {
	t.Helper()
	posts := &fakePosts{}
	for i := 0; i < n; i++ {
		require.NoError(t, posts.CreatePost(context.Background(), &models.Post{UserID: author, Content: fmt.Sprintf("post %d", i+1)}))
	}
	return posts
}

func TestCreatePostUsesProfileName(t *testing.T) {
	users := newFakeUsers(&models.User{FirebaseUID: "alice", Name: "Alice Renamed"})
	posts := &fakePosts{}
	h := NewPostHandler(posts, users)

	rec, err := call(t, h.CreatePost, http.MethodPost, "/api/v1/posts",
		models.CreatePostRequest{Content: "hello"}, claimsFor("alice", "Alice"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, rec.Code)

	var post models.Post
	decodeData(t, rec, &post)
	assert.Equal(t, "Alice Renamed", post.UserName)
	assert.Equal(t, "alice", post.UserID)
	assert.NotEmpty(t, post.ID)
}

func TestCreatePostValidation(t *testing.T) {
	h := NewPostHandler(&fakePosts{}, newFakeUsers())

	_, err := call(t, h.CreatePost, http.MethodPost, "/api/v1/posts",
		models.CreatePostRequest{Content: ""}, claimsFor("alice", "Alice"))
	assert.Equal(t, http.StatusBadRequest, httpCode(t, err))

	_, err = call(t, h.CreatePost, http.MethodPost, "/api/v1/posts",
		models.CreatePostRequest{Content: "hi"}, nil)
	assert.Equal(t, http.StatusUnauthorized, httpCode(t, err))
}

func TestGetPostNotFound(t *testing.T) {
	h := NewPostHandler(&fakePosts{}, newFakeUsers())

	_, err := call(t, h.GetPost, http.MethodGet, "/api/v1/posts/nope", nil, claimsFor("alice", "Alice"), "id", "nope")
	assert.Equal(t, http.StatusNotFound, httpCode(t, err))
}

func TestGetFeedFlagsAndPaging(t *testing.T) {
	posts := seededPosts(t, 3, "bob")
	_, _, err := posts.ToggleLike(context.Background(), "post-3", models.Like{UserID: "alice"})
	require.NoError(t, err)
	follows := &fakeFollows{}
	require.NoError(t, follows.CreateFollow(&models.Follow{FollowerUID: "alice", FollowingUID: "bob"}))
	h := NewFeedHandler(posts, follows)

	rec, err := call(t, h.GetFeed, http.MethodGet, "/api/v1/feed?page=1&limit=2", nil, claimsFor("alice", "Alice"))
	require.NoError(t, err)

	var body struct {
		Data struct {
			Posts []models.FeedPost `json:"posts"`
		} `json:"data"`
		Meta struct {
			CurrentPage     int  `json:"currentPage"`
			HasNextPage     bool `json:"hasNextPage"`
			HasPreviousPage bool `json:"hasPreviousPage"`
		} `json:"meta"`
	}
	require.NoError(t, jsonDecode(rec, &body))

	require.Len(t, body.Data.Posts, 2)
	assert.Equal(t, "post-3", body.Data.Posts[0].ID)
	assert.True(t, body.Data.Posts[0].LikedByMe)
	assert.Equal(t, 1, body.Data.Posts[0].LikesCount)
	assert.False(t, body.Data.Posts[1].LikedByMe)
	assert.True(t, body.Data.Posts[0].FollowingAuthor)
	assert.True(t, body.Meta.HasNextPage)
	assert.False(t, body.Meta.HasPreviousPage)

	rec, err = call(t, h.GetFeed, http.MethodGet, "/api/v1/feed?page=2&limit=2", nil, claimsFor("carol", "Carol"))
	require.NoError(t, err)
	require.NoError(t, jsonDecode(rec, &body))
	require.Len(t, body.Data.Posts, 1)
	assert.False(t, body.Data.Posts[0].FollowingAuthor)
	assert.False(t, body.Meta.HasNextPage)
	assert.True(t, body.Meta.HasPreviousPage)
}

func TestToggleLike(t *testing.T) {
	posts := seededPosts(t, 1, "bob")
	h := NewLikeHandler(posts, newFakeUsers(&models.User{FirebaseUID: "alice", Name: "Alice"}))

	var out struct {
		Liked      bool `json:"liked"`
		LikesCount int  `json:"likes_count"`
	}

	rec, err := call(t, h.ToggleLike, http.MethodPost, "/api/v1/posts/post-1/likes", nil, claimsFor("alice", "Alice"), "post_id", "post-1")
	require.NoError(t, err)
	decodeData(t, rec, &out)
	assert.True(t, out.Liked)
	assert.Equal(t, 1, out.LikesCount)

	stored, err := posts.GetPostByID(context.Background(), "post-1")
	require.NoError(t, err)
	require.Len(t, stored.Likes, 1)
	assert.Equal(t, "Alice", stored.Likes[0].UserName)
	assert.False(t, stored.Likes[0].CreatedAt.IsZero())

	rec, err = call(t, h.ToggleLike, http.MethodPost, "/api/v1/posts/post-1/likes", nil, claimsFor("alice", "Alice"), "post_id", "post-1")
	require.NoError(t, err)
	decodeData(t, rec, &out)
	assert.False(t, out.Liked)
	assert.Zero(t, out.LikesCount)

	_, err = call(t, h.ToggleLike, http.MethodPost, "/api/v1/posts/nope/likes", nil, claimsFor("alice", "Alice"), "post_id", "nope")
	assert.Equal(t, http.StatusNotFound, httpCode(t, err))
}

func TestComments(t *testing.T) {
	posts := seededPosts(t, 1, "alice")
	comments := &fakeComments{}
	h := NewCommentHandler(comments, posts, newFakeUsers())

	rec, err := call(t, h.CreateComment, http.MethodPost, "/api/v1/posts/post-1/comments",
		models.CreateCommentRequest{Content: "nice"}, claimsFor("bob", "Bob"), "post_id", "post-1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, rec.Code)

	var created models.Comment
	decodeData(t, rec, &created)
	assert.Equal(t, "post-1", created.PostID)
	assert.Equal(t, "Bob", created.UserName)

	_, err = call(t, h.CreateComment, http.MethodPost, "/api/v1/posts/nope/comments",
		models.CreateCommentRequest{Content: "nice"}, claimsFor("bob", "Bob"), "post_id", "nope")
	assert.Equal(t, http.StatusNotFound, httpCode(t, err))

	rec, err = call(t, h.GetCommentsByPostID, http.MethodGet, "/api/v1/posts/post-1/comments", nil, claimsFor("bob", "Bob"), "post_id", "post-1")
	require.NoError(t, err)
	var listed []models.Comment
	decodeData(t, rec, &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)
}

func TestFollowFlow(t *testing.T) {
	users := newFakeUsers(
		&models.User{FirebaseUID: "alice", Name: "Alice", Email: "alice@example.com"},
		&models.User{FirebaseUID: "bob", Name: "Bob", Email: "bob@example.com"},
	)
	follows := &fakeFollows{}
	h := NewFollowHandler(follows, users)
	alice := claimsFor("alice", "Alice")

	_, err := call(t, h.FollowUser, http.MethodPost, "/api/v1/users/alice/follow", nil, alice, "uid", "alice")
	assert.Equal(t, http.StatusBadRequest, httpCode(t, err))

	_, err = call(t, h.FollowUser, http.MethodPost, "/api/v1/users/ghost/follow", nil, alice, "uid", "ghost")
	assert.Equal(t, http.StatusNotFound, httpCode(t, err))

	_, err = call(t, h.FollowUser, http.MethodPost, "/api/v1/users/bob/follow", nil, alice, "uid", "bob")
	require.NoError(t, err)

	_, err = call(t, h.FollowUser, http.MethodPost, "/api/v1/users/bob/follow", nil, alice, "uid", "bob")
	assert.Equal(t, http.StatusConflict, httpCode(t, err))

	rec, err := call(t, h.GetFollowing, http.MethodGet, "/api/v1/following", nil, alice)
	require.NoError(t, err)
	var out struct {
		Following      []models.Follow `json:"following"`
		FollowingCount int             `json:"following_count"`
		FollowersCount int64           `json:"followers_count"`
	}
	decodeData(t, rec, &out)
	require.Len(t, out.Following, 1)
	assert.Equal(t, "Bob", out.Following[0].FollowingName)
	assert.Equal(t, 1, out.FollowingCount)
	assert.Zero(t, out.FollowersCount)

	_, err = call(t, h.UnfollowUser, http.MethodDelete, "/api/v1/users/bob/follow", nil, alice, "uid", "bob")
	require.NoError(t, err)

	_, err = call(t, h.UnfollowUser, http.MethodDelete, "/api/v1/users/bob/follow", nil, alice, "uid", "bob")
	assert.Equal(t, http.StatusNotFound, httpCode(t, err))
}
