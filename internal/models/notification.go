package models

import "time"

// NotificationKind tells what kind of activity produced a notification
type NotificationKind string

const (
	NotificationComment NotificationKind = "comment"
	NotificationLike    NotificationKind = "like"
)

// NotificationEvent is derived on the fly from a comment or a like on one of
// the viewer's posts. It is never stored.
type NotificationEvent struct {
	ID          string           `json:"id"` // stable per source comment or like
	Kind        NotificationKind `json:"type"`
	PostID      string           `json:"post_id"`
	ActorID     string           `json:"from_user_id"`
	ActorName   string           `json:"from_user_name"`
	RecipientID string           `json:"recipient_id"`
	Message     string           `json:"message"`
	CreatedAt   time.Time        `json:"created_at"`
}
