package repositories

import (
	"context"
	"fmt"

	"github.com/anonto42/apollo/backend/internal/livequery"
	"github.com/anonto42/apollo/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoLiveSource serves live queries from MongoDB change streams. A change
// stream only reports what changed, so every matching event triggers a fresh
// read of the whole result. Change streams need a replica set.
type MongoLiveSource struct {
	posts    *mongo.Collection
	comments *mongo.Collection
	messages *mongo.Collection
}

// NewMongoLiveSource creates a new MongoLiveSource
func NewMongoLiveSource(db *mongo.Database) *MongoLiveSource {
	return &MongoLiveSource{
		posts:    db.Collection("posts"),
		comments: db.Collection("comments"),
		messages: db.Collection("messages"),
	}
}

func (s *MongoLiveSource) PostsByOwner(ctx context.Context, ownerID string) ([]models.Post, error) {
	return findPosts(ctx, s.posts, bson.M{"user_id": ownerID}, options.Find())
}

func (s *MongoLiveSource) WatchOwnedPosts(ctx context.Context, ownerID string, onSnapshot func([]models.Post), onError func(error)) *livequery.Subscription {
	match := bson.M{"$or": bson.A{
		bson.M{"fullDocument.user_id": ownerID},
		bson.M{"operationType": "delete"},
	}}
	return watchCollection(ctx, s.posts, match, func(ctx context.Context) error {
		posts, err := s.PostsByOwner(ctx, ownerID)
		if err != nil {
			return err
		}
		onSnapshot(posts)
		return nil
	}, onError)
}

func (s *MongoLiveSource) WatchComments(ctx context.Context, postIDs []string, onSnapshot func([]models.Comment), onError func(error)) *livequery.Subscription {
	match := bson.M{"$or": bson.A{
		bson.M{"fullDocument.post_id": bson.M{"$in": postIDs}},
		bson.M{"operationType": "delete"},
	}}
	return watchCollection(ctx, s.comments, match, func(ctx context.Context) error {
		comments, err := findComments(ctx, s.comments, bson.M{"post_id": bson.M{"$in": postIDs}}, options.Find())
		if err != nil {
			return err
		}
		onSnapshot(comments)
		return nil
	}, onError)
}

func (s *MongoLiveSource) WatchMessages(ctx context.Context, conversationID string, limit int, onSnapshot func([]models.Message), onError func(error)) *livequery.Subscription {
	match := bson.M{"fullDocument.conversation_id": conversationID}
	return watchCollection(ctx, s.messages, match, func(ctx context.Context) error {
		messages, err := findMessages(ctx, s.messages, conversationID, limit)
		if err != nil {
			return err
		}
		onSnapshot(messages)
		return nil
	}, onError)
}

// watchCollection opens the change stream first so nothing written between
// the initial read and the stream start is lost, then calls load once and
// again after every matching change
func watchCollection(ctx context.Context, coll *mongo.Collection, match bson.M, load func(ctx context.Context) error, onError func(error)) *livequery.Subscription {
	return livequery.Run(ctx, func(ctx context.Context) error {
		pipeline := mongo.Pipeline{{{Key: "$match", Value: match}}}
		stream, err := coll.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
		if err != nil {
			return fmt.Errorf("open change stream on %s: %w", coll.Name(), err)
		}
		defer stream.Close(context.Background())

		if err := load(ctx); err != nil {
			return err
		}
		for stream.Next(ctx) {
			if err := load(ctx); err != nil {
				return err
			}
		}
		return stream.Err()
	}, onError)
}
