package models

import "time"

// Comment is a reply to a post. Comments live in their own collection and
// point back to the post through PostID.
type Comment struct {
	ID        string    `json:"id" firestore:"-" bson:"_id,omitempty"`
	PostID    string    `json:"post_id" firestore:"postId" bson:"post_id"`
	UserID    string    `json:"user_id" firestore:"userId" bson:"user_id"`
	UserName  string    `json:"user_name" firestore:"userName" bson:"user_name"`
	Content   string    `json:"content" firestore:"content" bson:"content"`
	CreatedAt time.Time `json:"created_at" firestore:"createdAt" bson:"created_at"`
}

// CreateCommentRequest defines the request body for creating a new comment
type CreateCommentRequest struct {
	Content string `json:"content" validate:"required,min=1,max=500"`
}
