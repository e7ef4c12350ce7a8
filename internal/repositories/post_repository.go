package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anonto42/apollo/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	GetPostsByUserID(ctx context.Context, userID string) ([]models.Post, error)
	GetAllPosts(ctx context.Context, skip, limit int) ([]models.Post, error)
	// ToggleLike atomically adds or removes like.UserID's like and returns the new state
	ToggleLike(ctx context.Context, postID string, like models.Like) (bool, *models.Post, error)
	// RenameAuthor rewrites the denormalized author name on every post of userID
	RenameAuthor(ctx context.Context, userID, name string) (int, error)
}

// MongoPostRepository implements PostRepository for MongoDB
type MongoPostRepository struct {
	collection *mongo.Collection
}

// NewMongoPostRepository creates a new MongoPostRepository
func NewMongoPostRepository(db *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{collection: db.Collection("posts")}
}

// CreatePost creates a new post in MongoDB
func (r *MongoPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	post.ID = primitive.NewObjectID().Hex()
	post.CreatedAt = time.Now()
	if post.Likes == nil {
		post.Likes = []models.Like{}
	}
	_, err := r.collection.InsertOne(ctx, post)
	return err
}

// GetPostByID retrieves a post by ID from MongoDB
func (r *MongoPostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &post, nil
}

// GetPostsByUserID retrieves every post of a specific user from MongoDB
func (r *MongoPostRepository) GetPostsByUserID(ctx context.Context, userID string) ([]models.Post, error) {
	return findPosts(ctx, r.collection, bson.M{"user_id": userID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

// GetAllPosts retrieves all posts from MongoDB with pagination
func (r *MongoPostRepository) GetAllPosts(ctx context.Context, skip, limit int) ([]models.Post, error) {
	findOptions := options.Find().
		SetSkip(int64(skip)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "created_at", Value: -1}})
	return findPosts(ctx, r.collection, bson.D{}, findOptions)
}

// ToggleLike flips the like inside a transaction so concurrent toggles by
// different users do not overwrite each other
func (r *MongoPostRepository) ToggleLike(ctx context.Context, postID string, like models.Like) (bool, *models.Post, error) {
	session, err := r.collection.Database().Client().StartSession()
	if err != nil {
		return false, nil, fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	var (
		liked bool
		post  models.Post
	)
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if err := r.collection.FindOne(sc, bson.M{"_id": postID}).Decode(&post); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		liked = post.ToggleLike(like)
		_, err := r.collection.UpdateOne(sc, bson.M{"_id": postID}, bson.M{"$set": bson.M{"likes": post.Likes}})
		return nil, err
	})
	if err != nil {
		return false, nil, err
	}
	return liked, &post, nil
}

// RenameAuthor updates user_name on every post of userID
func (r *MongoPostRepository) RenameAuthor(ctx context.Context, userID, name string) (int, error) {
	res, err := r.collection.UpdateMany(ctx, bson.M{"user_id": userID}, bson.M{"$set": bson.M{"user_name": name}})
	if err != nil {
		return 0, err
	}
	return int(res.ModifiedCount), nil
}

func findPosts(ctx context.Context, coll *mongo.Collection, filter interface{}, opts *options.FindOptions) ([]models.Post, error) {
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err = cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}
