package repositories

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/anonto42/apollo/backend/internal/livequery"
	"github.com/anonto42/apollo/backend/internal/models"
	"google.golang.org/api/iterator"
)

// FirestoreLiveSource serves live queries from Firestore snapshot listeners
type FirestoreLiveSource struct {
	db    *firestore.Client
	posts *FirestorePostRepository
}

// NewFirestoreLiveSource creates a new FirestoreLiveSource
func NewFirestoreLiveSource(db *firestore.Client) *FirestoreLiveSource {
	return &FirestoreLiveSource{db: db, posts: NewFirestorePostRepository(db)}
}

func (s *FirestoreLiveSource) PostsByOwner(ctx context.Context, ownerID string) ([]models.Post, error) {
	return s.posts.GetPostsByUserID(ctx, ownerID)
}

func (s *FirestoreLiveSource) WatchOwnedPosts(ctx context.Context, ownerID string, onSnapshot func([]models.Post), onError func(error)) *livequery.Subscription {
	q := s.db.Collection("posts").Where("userId", "==", ownerID)
	return watchQuery(ctx, q, func(docs []*firestore.DocumentSnapshot) error {
		posts, err := postsFromDocs(docs)
		if err != nil {
			return err
		}
		onSnapshot(posts)
		return nil
	}, onError)
}

func (s *FirestoreLiveSource) WatchComments(ctx context.Context, postIDs []string, onSnapshot func([]models.Comment), onError func(error)) *livequery.Subscription {
	if len(postIDs) == 0 {
		return livequery.Run(ctx, func(ctx context.Context) error {
			onSnapshot(nil)
			<-ctx.Done()
			return nil
		}, onError)
	}

	q := s.db.Collection("comments").Where("postId", "in", postIDs)
	return watchQuery(ctx, q, func(docs []*firestore.DocumentSnapshot) error {
		comments := make([]models.Comment, 0, len(docs))
		for _, doc := range docs {
			c, err := commentFromDoc(doc)
			if err != nil {
				return err
			}
			comments = append(comments, c)
		}
		onSnapshot(comments)
		return nil
	}, onError)
}

func (s *FirestoreLiveSource) WatchMessages(ctx context.Context, conversationID string, limit int, onSnapshot func([]models.Message), onError func(error)) *livequery.Subscription {
	q := s.db.Collection("conversations").Doc(conversationID).Collection("messages").
		OrderBy("createdAt", firestore.Desc).
		Limit(limit)
	return watchQuery(ctx, q, func(docs []*firestore.DocumentSnapshot) error {
		messages, err := messagesFromDocs(conversationID, docs)
		if err != nil {
			return err
		}
		onSnapshot(messages)
		return nil
	}, onError)
}

// watchQuery hands every snapshot of q to deliver until the context ends
func watchQuery(ctx context.Context, q firestore.Query, deliver func([]*firestore.DocumentSnapshot) error, onError func(error)) *livequery.Subscription {
	return livequery.Run(ctx, func(ctx context.Context) error {
		it := q.Snapshots(ctx)
		defer it.Stop()

		for {
			qs, err := it.Next()
			if err == iterator.Done {
				return nil
			}
			if err != nil {
				return fmt.Errorf("snapshot listener: %w", err)
			}
			docs, err := qs.Documents.GetAll()
			if err != nil {
				return fmt.Errorf("read snapshot: %w", err)
			}
			if err := deliver(docs); err != nil {
				return err
			}
		}
	}, onError)
}
