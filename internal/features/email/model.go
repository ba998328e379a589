package email

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type EmailStatus string

const (
	EmailQueued EmailStatus = "queued"
	EmailSent   EmailStatus = "sent"
	EmailFailed EmailStatus = "failed"
)

// Email is one outbox entry in the emails collection.
type Email struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         string             `bson:"userId" json:"userId"`
	NotificationID string             `bson:"notificationId,omitempty" json:"notificationId,omitempty"`
	Category       string             `bson:"category,omitempty" json:"category,omitempty"`
	From           string             `bson:"from" json:"from"`
	To             []string           `bson:"to" json:"to"`
	Subject        string             `bson:"subject" json:"subject"`
	HtmlBody       string             `bson:"htmlBody,omitempty" json:"htmlBody,omitempty"`
	Status         EmailStatus        `bson:"status" json:"status"`
	ErrorMsg       string             `bson:"errorMessage,omitempty" json:"errorMessage,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	SentAt         *time.Time         `bson:"sentAt,omitempty" json:"sentAt,omitempty"`
}
