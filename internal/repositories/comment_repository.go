package repositories

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/anonto42/apollo/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"google.golang.org/api/iterator"
)

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	CreateComment(ctx context.Context, comment *models.Comment) error
	// GetCommentsByPostID lists the comments of a post, oldest first
	GetCommentsByPostID(ctx context.Context, postID string) ([]models.Comment, error)
}

// MongoCommentRepository implements CommentRepository for MongoDB
type MongoCommentRepository struct {
	collection *mongo.Collection
}

// NewMongoCommentRepository creates a new MongoCommentRepository
func NewMongoCommentRepository(db *mongo.Database) *MongoCommentRepository {
	return &MongoCommentRepository{collection: db.Collection("comments")}
}

func (r *MongoCommentRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	comment.ID = primitive.NewObjectID().Hex()
	comment.CreatedAt = time.Now()
	_, err := r.collection.InsertOne(ctx, comment)
	return err
}

func (r *MongoCommentRepository) GetCommentsByPostID(ctx context.Context, postID string) ([]models.Comment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	return findComments(ctx, r.collection, bson.M{"post_id": postID}, opts)
}

func findComments(ctx context.Context, coll *mongo.Collection, filter interface{}, opts *options.FindOptions) ([]models.Comment, error) {
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	comments := []models.Comment{}
	if err = cursor.All(ctx, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// FirestoreCommentRepository implements CommentRepository on the "comments" collection
type FirestoreCommentRepository struct {
	db *firestore.Client
}

// NewFirestoreCommentRepository creates a new FirestoreCommentRepository
func NewFirestoreCommentRepository(db *firestore.Client) *FirestoreCommentRepository {
	return &FirestoreCommentRepository{db: db}
}

func (r *FirestoreCommentRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	ref := r.db.Collection("comments").NewDoc()
	comment.ID = ref.ID
	comment.CreatedAt = time.Now()
	if _, err := ref.Create(ctx, comment); err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

func (r *FirestoreCommentRepository) GetCommentsByPostID(ctx context.Context, postID string) ([]models.Comment, error) {
	iter := r.db.Collection("comments").
		Where("postId", "==", postID).
		OrderBy("createdAt", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	comments := []models.Comment{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get comments: %w", err)
		}
		c, err := commentFromDoc(doc)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, nil
}

func commentFromDoc(doc *firestore.DocumentSnapshot) (models.Comment, error) {
	var c models.Comment
	if err := doc.DataTo(&c); err != nil {
		return c, fmt.Errorf("failed to parse comment %s: %w", doc.Ref.ID, err)
	}
	c.ID = doc.Ref.ID
	return c, nil
}
