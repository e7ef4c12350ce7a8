package models

import "time"

// Post is a feed entry. Likes live inside the post document so a single
// document read shows who liked it.
type Post struct {
	ID        string    `json:"id" firestore:"-" bson:"_id,omitempty"`
	UserID    string    `json:"user_id" firestore:"userId" bson:"user_id"`       // Firebase UID of the author
	UserName  string    `json:"user_name" firestore:"userName" bson:"user_name"` // denormalized author name
	Content   string    `json:"content" firestore:"content" bson:"content"`
	Likes     []Like    `json:"likes" firestore:"likes" bson:"likes"`
	CreatedAt time.Time `json:"created_at" firestore:"createdAt" bson:"created_at"`
}

// Like is one user's like embedded in a Post
type Like struct {
	UserID    string    `json:"user_id" firestore:"userId" bson:"user_id"`
	UserName  string    `json:"user_name" firestore:"userName" bson:"user_name"`
	CreatedAt time.Time `json:"created_at" firestore:"createdAt" bson:"created_at"`
}

// LikedBy reports whether uid has a like on the post
func (p *Post) LikedBy(uid string) bool {
	return p.likeIndex(uid) >= 0
}

// ToggleLike adds like when its user has not liked the post yet and removes
// that user's like otherwise. It returns the new liked state.
func (p *Post) ToggleLike(like Like) bool {
	if i := p.likeIndex(like.UserID); i >= 0 {
		p.Likes = append(p.Likes[:i], p.Likes[i+1:]...)
		return false
	}
	p.Likes = append(p.Likes, like)
	return true
}

func (p *Post) likeIndex(uid string) int {
	for i, l := range p.Likes {
		if l.UserID == uid {
			return i
		}
	}
	return -1
}

// CreatePostRequest defines the request body for creating a new post
type CreatePostRequest struct {
	Content string `json:"content" validate:"required,min=1,max=280"`
}

// FeedPost is a post with flags relative to the viewer
type FeedPost struct {
	Post
	LikesCount      int  `json:"likes_count"`
	LikedByMe       bool `json:"liked_by_me"`
	FollowingAuthor bool `json:"following_author"`
}
