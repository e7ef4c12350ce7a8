package models

import "time"

// Conversation is a direct-message thread between users
type Conversation struct {
	ID        string    `json:"id" firestore:"-" bson:"_id,omitempty"`
	Users     []string  `json:"users" firestore:"users" bson:"users"`
	CreatedAt time.Time `json:"created_at" firestore:"createdAt" bson:"created_at"`
}

// HasUser reports whether uid takes part in the conversation
func (c *Conversation) HasUser(uid string) bool {
	for _, u := range c.Users {
		if u == uid {
			return true
		}
	}
	return false
}

// Other returns the participant that is not uid
func (c *Conversation) Other(uid string) string {
	for _, u := range c.Users {
		if u != uid {
			return u
		}
	}
	return ""
}

// Message is one entry of a conversation
type Message struct {
	ID             string    `json:"id" firestore:"-" bson:"_id,omitempty"`
	ConversationID string    `json:"conversation_id" firestore:"-" bson:"conversation_id"`
	Text           string    `json:"text" firestore:"text" bson:"text"`
	Sender         string    `json:"sender" firestore:"sender" bson:"sender"`
	CreatedAt      time.Time `json:"created_at" firestore:"createdAt" bson:"created_at"`
}

// StartConversationRequest opens (or reopens) a conversation with another user
type StartConversationRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// SendMessageRequest defines the request body for a new message
type SendMessageRequest struct {
	Text string `json:"text" validate:"required,min=1,max=2000"`
}
