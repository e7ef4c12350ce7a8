package notifications

import (
	"fmt"
	"time"

	"github.com/anonto42/apollo/backend/internal/models"
)

// DefaultFallbackName replaces a missing actor display name
const DefaultFallbackName = "Someone"

// CommentEventID is the stable notification id of a comment
func CommentEventID(commentID string) string {
	return "comment-" + commentID
}

// LikeEventID is the stable notification id of a like. A user can like a
// post at most once, so post and liker identify it.
func LikeEventID(postID, likerID string) string {
	return fmt.Sprintf("like-%s-%s", postID, likerID)
}

// deriver turns backend documents into notification events for one viewer
type deriver struct {
	viewerID string
	fallback string
	now      func() time.Time
}

func (d deriver) name(n string) string {
	if n == "" {
		return d.fallback
	}
	return n
}

func (d deriver) at(t time.Time) time.Time {
	if t.IsZero() {
		return d.now()
	}
	return t
}

// comments builds one event per comment the viewer did not write
func (d deriver) comments(comments []models.Comment) []models.NotificationEvent {
	events := make([]models.NotificationEvent, 0, len(comments))
	for _, c := range comments {
		if c.UserID == d.viewerID {
			continue
		}
		actor := d.name(c.UserName)
		events = append(events, models.NotificationEvent{
			ID:          CommentEventID(c.ID),
			Kind:        models.NotificationComment,
			PostID:      c.PostID,
			ActorID:     c.UserID,
			ActorName:   actor,
			RecipientID: d.viewerID,
			Message:     actor + " commented on your post.",
			CreatedAt:   d.at(c.CreatedAt),
		})
	}
	return events
}

// likes builds one event per like on the viewer's posts, skipping likes the
// post owner left on their own post
func (d deriver) likes(posts []models.Post) []models.NotificationEvent {
	var events []models.NotificationEvent
	for _, p := range posts {
		if p.UserID != d.viewerID {
			continue
		}
		for _, l := range p.Likes {
			if l.UserID == "" || l.UserID == p.UserID {
				continue
			}
			actor := d.name(l.UserName)
			events = append(events, models.NotificationEvent{
				ID:          LikeEventID(p.ID, l.UserID),
				Kind:        models.NotificationLike,
				PostID:      p.ID,
				ActorID:     l.UserID,
				ActorName:   actor,
				RecipientID: d.viewerID,
				Message:     actor + " liked your post.",
				CreatedAt:   d.at(l.CreatedAt),
			})
		}
	}
	return events
}
