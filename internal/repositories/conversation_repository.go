package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/anonto42/apollo/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ConversationRepository stores direct-message threads and their messages
type ConversationRepository interface {
	GetConversationsByUser(ctx context.Context, uid string) ([]models.Conversation, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	// FindOrCreate returns the 1:1 conversation between a and b, creating it when missing
	FindOrCreate(ctx context.Context, a, b string) (*models.Conversation, bool, error)
	AddMessage(ctx context.Context, msg *models.Message) error
	// GetMessages lists the newest messages of a conversation first
	GetMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error)
}

// MongoConversationRepository implements ConversationRepository for MongoDB
type MongoConversationRepository struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
}

// NewMongoConversationRepository creates a new MongoConversationRepository
func NewMongoConversationRepository(db *mongo.Database) *MongoConversationRepository {
	return &MongoConversationRepository{
		conversations: db.Collection("conversations"),
		messages:      db.Collection("messages"),
	}
}

func (r *MongoConversationRepository) GetConversationsByUser(ctx context.Context, uid string) ([]models.Conversation, error) {
	cursor, err := r.conversations.Find(ctx, bson.M{"users": uid}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	conversations := []models.Conversation{}
	if err = cursor.All(ctx, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

func (r *MongoConversationRepository) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var c models.Conversation
	if err := r.conversations.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *MongoConversationRepository) FindOrCreate(ctx context.Context, a, b string) (*models.Conversation, bool, error) {
	var c models.Conversation
	filter := bson.M{"users": bson.M{"$all": bson.A{a, b}, "$size": 2}}
	err := r.conversations.FindOne(ctx, filter).Decode(&c)
	if err == nil {
		return &c, false, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, err
	}

	c = models.Conversation{
		ID:        primitive.NewObjectID().Hex(),
		Users:     []string{a, b},
		CreatedAt: time.Now(),
	}
	if _, err := r.conversations.InsertOne(ctx, c); err != nil {
		return nil, false, err
	}
	return &c, true, nil
}

func (r *MongoConversationRepository) AddMessage(ctx context.Context, msg *models.Message) error {
	msg.ID = primitive.NewObjectID().Hex()
	msg.CreatedAt = time.Now()
	_, err := r.messages.InsertOne(ctx, msg)
	return err
}

func (r *MongoConversationRepository) GetMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	return findMessages(ctx, r.messages, conversationID, limit)
}

func findMessages(ctx context.Context, coll *mongo.Collection, conversationID string, limit int) ([]models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(int64(limit))
	cursor, err := coll.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	messages := []models.Message{}
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// FirestoreConversationRepository keeps conversations in "conversations" and
// their messages in a "messages" subcollection of each conversation
type FirestoreConversationRepository struct {
	db *firestore.Client
}

// NewFirestoreConversationRepository creates a new FirestoreConversationRepository
func NewFirestoreConversationRepository(db *firestore.Client) *FirestoreConversationRepository {
	return &FirestoreConversationRepository{db: db}
}

func (r *FirestoreConversationRepository) GetConversationsByUser(ctx context.Context, uid string) ([]models.Conversation, error) {
	iter := r.db.Collection("conversations").Where("users", "array-contains", uid).Documents(ctx)
	defer iter.Stop()

	conversations := []models.Conversation{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get conversations: %w", err)
		}
		c, err := conversationFromDoc(doc)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, *c)
	}
	return conversations, nil
}

func (r *FirestoreConversationRepository) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	doc, err := r.db.Collection("conversations").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conversationFromDoc(doc)
}

// FindOrCreate looks among a's conversations for one with b, since a query
// cannot hold two array-contains filters
func (r *FirestoreConversationRepository) FindOrCreate(ctx context.Context, a, b string) (*models.Conversation, bool, error) {
	existing, err := r.GetConversationsByUser(ctx, a)
	if err != nil {
		return nil, false, err
	}
	for i := range existing {
		c := &existing[i]
		if len(c.Users) == 2 && c.HasUser(b) {
			return c, false, nil
		}
	}

	ref := r.db.Collection("conversations").NewDoc()
	c := &models.Conversation{ID: ref.ID, Users: []string{a, b}, CreatedAt: time.Now()}
	if _, err := ref.Create(ctx, c); err != nil {
		return nil, false, fmt.Errorf("failed to create conversation: %w", err)
	}
	return c, true, nil
}

func (r *FirestoreConversationRepository) AddMessage(ctx context.Context, msg *models.Message) error {
	ref := r.messages(msg.ConversationID).NewDoc()
	msg.ID = ref.ID
	msg.CreatedAt = time.Now()
	if _, err := ref.Create(ctx, msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (r *FirestoreConversationRepository) GetMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	q := r.messages(conversationID).OrderBy("createdAt", firestore.Desc).Limit(limit)
	docs, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	return messagesFromDocs(conversationID, docs)
}

func (r *FirestoreConversationRepository) messages(conversationID string) *firestore.CollectionRef {
	return r.db.Collection("conversations").Doc(conversationID).Collection("messages")
}

func conversationFromDoc(doc *firestore.DocumentSnapshot) (*models.Conversation, error) {
	var c models.Conversation
	if err := doc.DataTo(&c); err != nil {
		return nil, fmt.Errorf("failed to parse conversation %s: %w", doc.Ref.ID, err)
	}
	c.ID = doc.Ref.ID
	return &c, nil
}

func messagesFromDocs(conversationID string, docs []*firestore.DocumentSnapshot) ([]models.Message, error) {
	messages := make([]models.Message, 0, len(docs))
	for _, doc := range docs {
		var m models.Message
		if err := doc.DataTo(&m); err != nil {
			return nil, fmt.Errorf("failed to parse message %s: %w", doc.Ref.ID, err)
		}
		m.ID = doc.Ref.ID
		m.ConversationID = conversationID
		messages = append(messages, m)
	}
	return messages, nil
}
