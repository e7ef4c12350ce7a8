package repositories

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/anonto42/apollo/backend/internal/models"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestorePostRepository implements PostRepository on the "posts" collection
type FirestorePostRepository struct {
	db *firestore.Client
}

// NewFirestorePostRepository creates a new FirestorePostRepository
func NewFirestorePostRepository(db *firestore.Client) *FirestorePostRepository {
	return &FirestorePostRepository{db: db}
}

func (r *FirestorePostRepository) posts() *firestore.CollectionRef {
	return r.db.Collection("posts")
}

func (r *FirestorePostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	ref := r.posts().NewDoc()
	post.ID = ref.ID
	post.CreatedAt = time.Now()
	if post.Likes == nil {
		post.Likes = []models.Like{}
	}
	if _, err := ref.Create(ctx, post); err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

func (r *FirestorePostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	doc, err := r.posts().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return postFromDoc(doc)
}

func (r *FirestorePostRepository) GetPostsByUserID(ctx context.Context, userID string) ([]models.Post, error) {
	return collectPosts(r.posts().Where("userId", "==", userID).Documents(ctx))
}

func (r *FirestorePostRepository) GetAllPosts(ctx context.Context, skip, limit int) ([]models.Post, error) {
	q := r.posts().OrderBy("createdAt", firestore.Desc).Offset(skip).Limit(limit)
	return collectPosts(q.Documents(ctx))
}

func (r *FirestorePostRepository) ToggleLike(ctx context.Context, postID string, like models.Like) (bool, *models.Post, error) {
	ref := r.posts().Doc(postID)
	var (
		liked bool
		post  *models.Post
	)
	err := r.db.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrNotFound
			}
			return err
		}
		if post, err = postFromDoc(doc); err != nil {
			return err
		}
		liked = post.ToggleLike(like)
		return tx.Update(ref, []firestore.Update{{Path: "likes", Value: post.Likes}})
	})
	if err != nil {
		return false, nil, err
	}
	return liked, post, nil
}

// RenameAuthor rewrites userName on every post of userID through a BulkWriter.
// It reports how many posts were updated and the first failed write.
func (r *FirestorePostRepository) RenameAuthor(ctx context.Context, userID, name string) (int, error) {
	docs, err := r.posts().Where("userId", "==", userID).Documents(ctx).GetAll()
	if err != nil {
		return 0, fmt.Errorf("failed to list posts: %w", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	bulkWriter := r.db.BulkWriter(ctx)
	jobs := make([]writeJob, 0, len(docs))
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		job, err := bulkWriter.Update(doc.Ref, []firestore.Update{{Path: "userName", Value: name}})
		if err != nil {
			bulkWriter.End()
			return 0, fmt.Errorf("failed to add update to bulk writer: %w", err)
		}
		jobs = append(jobs, job)
		ids = append(ids, doc.Ref.ID)
	}
	bulkWriter.End()
	return countWritten(ids, jobs)
}

// writeJob is the result side of a *firestore.BulkWriterJob
type writeJob interface {
	Results() (*firestore.WriteResult, error)
}

// countWritten counts the jobs that succeeded and returns the first failure.
// The jobs must have been flushed.
func countWritten(ids []string, jobs []writeJob) (int, error) {
	n := 0
	var firstErr error
	for i, job := range jobs {
		if _, err := job.Results(); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to rename author on post %s: %w", ids[i], err)
			}
			continue
		}
		n++
	}
	return n, firstErr
}

func postFromDoc(doc *firestore.DocumentSnapshot) (*models.Post, error) {
	var post models.Post
	if err := doc.DataTo(&post); err != nil {
		return nil, fmt.Errorf("failed to parse post %s: %w", doc.Ref.ID, err)
	}
	post.ID = doc.Ref.ID
	return &post, nil
}

func collectPosts(iter *firestore.DocumentIterator) ([]models.Post, error) {
	defer iter.Stop()

	posts := []models.Post{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get posts: %w", err)
		}
		post, err := postFromDoc(doc)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *post)
	}
	return posts, nil
}

func postsFromDocs(docs []*firestore.DocumentSnapshot) ([]models.Post, error) {
	posts := make([]models.Post, 0, len(docs))
	for _, doc := range docs {
		post, err := postFromDoc(doc)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *post)
	}
	return posts, nil
}
