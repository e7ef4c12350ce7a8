package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/apollo/backend/internal/livequery"
	"github.com/anonto42/apollo/backend/internal/middleware"
	"github.com/anonto42/apollo/backend/internal/models"
	"github.com/anonto42/apollo/backend/internal/repositories"
	"github.com/anonto42/apollo/backend/validators"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = validators.NewValidator()
	return e
}

func claimsFor(uid, name string) *models.JwtCustomClaims {
	return &models.JwtCustomClaims{FirebaseUID: uid, Name: name}
}

// call runs handler on a request built from method, target and body. A nil
// claims value leaves the request unauthenticated.
func call(t *testing.T, handler echo.HandlerFunc, method, target string, body interface{}, claims *models.JwtCustomClaims, params ...string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := newEcho().NewContext(req, rec)
	if len(params)%2 == 0 && len(params) > 0 {
		var names, values []string
		for i := 0; i < len(params); i += 2 {
			names = append(names, params[i])
			values = append(values, params[i+1])
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	if claims != nil {
		middleware.SetCurrentUser(c, claims)
	}
	return rec, handler(c)
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected *echo.HTTPError, got %v", err)
	return he.Code
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.True(t, env.Success)
	require.NoError(t, json.Unmarshal(env.Data, v))
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
	next  uint
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{users: make(map[string]*models.User)}
	for _, u := range users {
		f.CreateUser(u)
	}
	return f
}

func (f *fakeUsers) CreateUser(user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email != "" && u.Email == user.Email {
			return repositories.ErrAlreadyExists
		}
	}
	f.next++
	user.ID = f.next
	f.users[user.FirebaseUID] = user
	return nil
}

func (f *fakeUsers) GetUserByID(id uint) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeUsers) GetUserByFirebaseUID(uid string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[uid]; ok {
		return u, nil
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeUsers) GetUsers(excludeUID string) ([]models.User, error) {
	return f.SearchUsers("", excludeUID)
}

func (f *fakeUsers) UpdateUser(user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if old, ok := f.users[user.FirebaseUID]; ok {
		user.SessionVersion = old.SessionVersion
	}
	f.users[user.FirebaseUID] = user
	return nil
}

func (f *fakeUsers) SessionVersion(uid string) (uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[uid]; ok {
		return u.SessionVersion, nil
	}
	return 0, repositories.ErrNotFound
}

func (f *fakeUsers) RevokeSessions(uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[uid]
	if !ok {
		return repositories.ErrNotFound
	}
	u.SessionVersion++
	return nil
}

func (f *fakeUsers) SearchUsers(query, excludeUID string) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for uid, u := range f.users {
		if uid == excludeUID || !strings.Contains(strings.ToLower(u.Name), strings.ToLower(query)) {
			continue
		}
		out = append(out, *u)
	}
	return out, nil
}

type fakePosts struct {
	mu      sync.Mutex
	posts     []*models.Post
	renamed   map[string]string
	renameErr error
}

func (f *fakePosts) CreatePost(_ context.Context, post *models.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	post.ID = fmt.Sprintf("post-%d", len(f.posts)+1)
	post.CreatedAt = time.Now()
	f.posts = append(f.posts, post)
	return nil
}

func (f *fakePosts) GetPostByID(_ context.Context, id string) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.posts {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakePosts) GetPostsByUserID(_ context.Context, userID string) ([]models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Post
	for _, p := range f.posts {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

// GetAllPosts returns posts in insertion order reversed, newest first
func (f *fakePosts) GetAllPosts(_ context.Context, skip, limit int) ([]models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Post
	for i := len(f.posts) - 1 - skip; i >= 0 && len(out) < limit; i-- {
		out = append(out, *f.posts[i])
	}
	return out, nil
}

func (f *fakePosts) ToggleLike(_ context.Context, postID string, like models.Like) (bool, *models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.posts {
		if p.ID == postID {
			liked := p.ToggleLike(like)
			cp := *p
			return liked, &cp, nil
		}
	}
	return false, nil, repositories.ErrNotFound
}

func (f *fakePosts) RenameAuthor(_ context.Context, userID, name string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.renamed == nil {
		f.renamed = make(map[string]string)
	}
	f.renamed[userID] = name
	if f.renameErr != nil {
		return 0, f.renameErr
	}
	n := 0
	for _, p := range f.posts {
		if p.UserID == userID {
			p.UserName = name
			n++
		}
	}
	return n, nil
}

type fakeFollows struct {
	mu      sync.Mutex
	follows []models.Follow
}

func (f *fakeFollows) CreateFollow(follow *models.Follow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.follows = append(f.follows, *follow)
	return nil
}

func (f *fakeFollows) DeleteFollow(followerUID, followingUID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, fl := range f.follows {
		if fl.FollowerUID == followerUID && fl.FollowingUID == followingUID {
			f.follows = append(f.follows[:i], f.follows[i+1:]...)
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (f *fakeFollows) IsFollowing(followerUID, followingUID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fl := range f.follows {
		if fl.FollowerUID == followerUID && fl.FollowingUID == followingUID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeFollows) GetFollowing(userUID string) ([]models.Follow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Follow
	for _, fl := range f.follows {
		if fl.FollowerUID == userUID {
			out = append(out, fl)
		}
	}
	return out, nil
}

func (f *fakeFollows) GetFollowersCount(userUID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, fl := range f.follows {
		if fl.FollowingUID == userUID {
			n++
		}
	}
	return n, nil
}

func (f *fakeFollows) GetFollowingUIDs(userUID string) ([]string, error) {
	follows, _ := f.GetFollowing(userUID)
	uids := make([]string, len(follows))
	for i, fl := range follows {
		uids[i] = fl.FollowingUID
	}
	return uids, nil
}

type fakeConversations struct {
	mu            sync.Mutex
	conversations map[string]*models.Conversation
	messages      map[string][]models.Message
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string][]models.Message),
	}
}

func (f *fakeConversations) GetConversationsByUser(_ context.Context, uid string) ([]models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Conversation
	for _, c := range f.conversations {
		if c.HasUser(uid) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeConversations) GetConversation(_ context.Context, id string) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.conversations[id]; ok {
		return c, nil
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeConversations) FindOrCreate(_ context.Context, a, b string) (*models.Conversation, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conversations {
		if c.HasUser(a) && c.HasUser(b) {
			return c, false, nil
		}
	}
	c := &models.Conversation{ID: fmt.Sprintf("conv-%d", len(f.conversations)+1), Users: []string{a, b}}
	f.conversations[c.ID] = c
	return c, true, nil
}

func (f *fakeConversations) AddMessage(_ context.Context, msg *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg.ID = fmt.Sprintf("msg-%d", len(f.messages[msg.ConversationID])+1)
	f.messages[msg.ConversationID] = append([]models.Message{*msg}, f.messages[msg.ConversationID]...)
	return nil
}

func (f *fakeConversations) GetMessages(_ context.Context, conversationID string, limit int) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.messages[conversationID]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return append([]models.Message{}, msgs...), nil
}

// fakeLive answers every watch once with a fixed result and then idles
type fakeLive struct {
	mu       sync.Mutex
	posts    map[string][]models.Post
	comments []models.Comment
	messages map[string][]models.Message
	postsErr error
}

func (f *fakeLive) PostsByOwner(_ context.Context, ownerID string) ([]models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postsErr != nil {
		return nil, f.postsErr
	}
	return f.posts[ownerID], nil
}

func (f *fakeLive) WatchOwnedPosts(ctx context.Context, ownerID string, onSnapshot func([]models.Post), onError func(error)) *livequery.Subscription {
	posts, _ := f.PostsByOwner(ctx, ownerID)
	return answerOnce(ctx, func() { onSnapshot(posts) }, onError)
}

func (f *fakeLive) WatchComments(ctx context.Context, postIDs []string, onSnapshot func([]models.Comment), onError func(error)) *livequery.Subscription {
	f.mu.Lock()
	var out []models.Comment
	for _, c := range f.comments {
		for _, id := range postIDs {
			if c.PostID == id {
				out = append(out, c)
			}
		}
	}
	f.mu.Unlock()
	return answerOnce(ctx, func() { onSnapshot(out) }, onError)
}

func (f *fakeLive) WatchMessages(ctx context.Context, conversationID string, limit int, onSnapshot func([]models.Message), onError func(error)) *livequery.Subscription {
	f.mu.Lock()
	msgs := f.messages[conversationID]
	f.mu.Unlock()
	return answerOnce(ctx, func() { onSnapshot(msgs) }, onError)
}

func answerOnce(ctx context.Context, deliver func(), onError func(error)) *livequery.Subscription {
	return livequery.Run(ctx, func(ctx context.Context) error {
		deliver()
		<-ctx.Done()
		return nil
	}, onError)
}

type fakeAuth struct {
	mu       sync.Mutex
	created  []*auth.UserToCreate
	updated  map[string]*auth.UserToUpdate
	deleted  []string
	revoked  []string
	tokens   map[string]*auth.Token
	nextUID  string
	createEr error
}

func (f *fakeAuth) CreateUser(_ context.Context, user *auth.UserToCreate) (*auth.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createEr != nil {
		return nil, f.createEr
	}
	f.created = append(f.created, user)
	return &auth.UserRecord{UserInfo: &auth.UserInfo{UID: f.nextUID}}, nil
}

func (f *fakeAuth) UpdateUser(_ context.Context, uid string, user *auth.UserToUpdate) (*auth.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updated == nil {
		f.updated = make(map[string]*auth.UserToUpdate)
	}
	f.updated[uid] = user
	return &auth.UserRecord{UserInfo: &auth.UserInfo{UID: uid}}, nil
}

func (f *fakeAuth) DeleteUser(_ context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, uid)
	return nil
}

func (f *fakeAuth) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tok, ok := f.tokens[idToken]; ok {
		return tok, nil
	}
	return nil, fmt.Errorf("invalid id token")
}

func (f *fakeAuth) RevokeRefreshTokens(_ context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, uid)
	return nil
}

var (
	_ repositories.UserRepository         = (*fakeUsers)(nil)
	_ repositories.PostRepository         = (*fakePosts)(nil)
	_ repositories.FollowRepository       = (*fakeFollows)(nil)
	_ repositories.ConversationRepository = (*fakeConversations)(nil)
	_ repositories.LiveSource             = (*fakeLive)(nil)
	_ AuthClient                          = (*fakeAuth)(nil)
	_ AuthClient                          = (*auth.Client)(nil)
)

// jsonDecode decodes the whole response body, for handlers that answer
// outside the success envelope
func jsonDecode(rec *httptest.ResponseRecorder, v interface{}) error {
	return json.Unmarshal(rec.Body.Bytes(), v)
}
