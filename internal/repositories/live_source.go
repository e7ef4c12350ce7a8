package repositories

import (
	"context"

	"github.com/anonto42/apollo/backend/internal/livequery"
	"github.com/anonto42/apollo/backend/internal/models"
	"github.com/anonto42/apollo/backend/internal/notifications"
)

// LiveSource is a document backend able to push query results as they change
type LiveSource interface {
	notifications.Source
	// WatchMessages delivers the newest limit messages of a conversation on every change
	WatchMessages(ctx context.Context, conversationID string, limit int, onSnapshot func([]models.Message), onError func(error)) *livequery.Subscription
}

var (
	_ LiveSource = (*FirestoreLiveSource)(nil)
	_ LiveSource = (*MongoLiveSource)(nil)
)
