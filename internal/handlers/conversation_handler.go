package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/anonto42/apollo/backend/internal/livequery"
	"github.com/anonto42/apollo/backend/internal/models"
	"github.com/anonto42/apollo/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const messagesPageSize = 50

// MessageWatcher pushes the newest messages of a conversation as they change
type MessageWatcher interface {
	WatchMessages(ctx context.Context, conversationID string, limit int, onSnapshot func([]models.Message), onError func(error)) *livequery.Subscription
}

// ConversationHandler handles direct messages
type ConversationHandler struct {
	conversationRepository repositories.ConversationRepository
	userRepository         repositories.UserRepository
	live                   MessageWatcher
	log                    *zap.SugaredLogger
}

// NewConversationHandler creates a new ConversationHandler
func NewConversationHandler(conversationRepo repositories.ConversationRepository, userRepo repositories.UserRepository, live MessageWatcher, log *zap.SugaredLogger) *ConversationHandler {
	return &ConversationHandler{
		conversationRepository: conversationRepo,
		userRepository:         userRepo,
		live:                   live,
		log:                    log,
	}
}

// RegisterConversationRoutes registers direct-message routes
func (h *ConversationHandler) RegisterConversationRoutes(g *echo.Group) {
	g.GET("/conversations", h.ListConversations)
	g.POST("/conversations", h.StartConversation)
	g.GET("/conversations/:id/messages", h.GetMessages)
	g.POST("/conversations/:id/messages", h.SendMessage)
	g.GET("/conversations/:id/live", h.LiveMessages)
}

// ListConversations lists the conversations the caller takes part in
func (h *ConversationHandler) ListConversations(c echo.Context) error {
	claims, err := sessionUser(c)
	if err != nil {
		return err
	}

	conversations, err := h.conversationRepository.GetConversationsByUser(c.Request().Context(), claims.FirebaseUID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return success(c, http.StatusOK, conversations)
}

// StartConversation returns the conversation with another user, creating it when needed
func (h *ConversationHandler) StartConversation(c echo.Context) error {
	claims, err := sessionUser(c)
	if err != nil {
		return err
	}

	var req models.StartConversationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if req.UserID == claims.FirebaseUID {
		return echo.NewHTTPError(http.StatusBadRequest, "Cannot start a conversation with yourself")
	}
	if _, err := h.userRepository.GetUserByFirebaseUID(req.UserID); err != nil {
		return storeError(err, "User not found")
	}

	conversation, created, err := h.conversationRepository.FindOrCreate(c.Request().Context(), claims.FirebaseUID, req.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return success(c, status, conversation)
}

// GetMessages lists the newest messages of a conversation first
func (h *ConversationHandler) GetMessages(c echo.Context) error {
	claims, err := sessionUser(c)
	if err != nil {
		return err
	}

	conversation, err := h.participant(c, claims.FirebaseUID)
	if err != nil {
		return err
	}

	messages, err := h.conversationRepository.GetMessages(c.Request().Context(), conversation.ID, messagesPageSize)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return success(c, http.StatusOK, messages)
}

// SendMessage appends a message to a conversation
func (h *ConversationHandler) SendMessage(c echo.Context) error {
	claims, err := sessionUser(c)
	if err != nil {
		return err
	}

	var req models.SendMessageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	conversation, err := h.participant(c, claims.FirebaseUID)
	if err != nil {
		return err
	}

	msg := &models.Message{
		ConversationID: conversation.ID,
		Text:           req.Text,
		Sender:         claims.FirebaseUID,
	}
	if err := h.conversationRepository.AddMessage(c.Request().Context(), msg); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return success(c, http.StatusCreated, msg)
}

// LiveMessages streams the newest messages of a conversation over a websocket
func (h *ConversationHandler) LiveMessages(c echo.Context) error {
	claims, err := sessionUser(c)
	if err != nil {
		return err
	}
	conversation, err := h.participant(c, claims.FirebaseUID)
	if err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil
	}
	live := newLiveConn(conn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	failed := make(chan error, 1)
	sub := h.live.WatchMessages(ctx, conversation.ID, messagesPageSize,
		func(messages []models.Message) {
			if err := live.send(liveFrame{Type: frameMessages, Data: messages}); err != nil {
				cancel()
			}
		},
		func(err error) {
			h.log.Warnw("message subscription failed", "conversation_id", conversation.ID, "error", err)
			failed <- err
		},
	)
	defer sub.Cancel()

	done := make(chan struct{})
	defer close(done)
	frames := live.readFrames(done)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case _, ok := <-frames:
			if !ok {
				live.close("")
				return nil
			}
		case <-failed:
			live.send(liveFrame{Type: frameError, Error: "conversation stream failed"})
			live.close("subscription failed")
			return nil
		case <-ctx.Done():
			live.close("write failed")
			return nil
		case <-ticker.C:
			if err := live.ping(); err != nil {
				live.close("")
				return nil
			}
		}
	}
}

// participant loads the :id conversation and checks the caller belongs to it
func (h *ConversationHandler) participant(c echo.Context, uid string) (*models.Conversation, error) {
	conversation, err := h.conversationRepository.GetConversation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return nil, storeError(err, "Conversation not found")
	}
	if !conversation.HasUser(uid) {
		return nil, echo.NewHTTPError(http.StatusForbidden, "You are not part of this conversation")
	}
	return conversation, nil
}
