package notification

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationType string

const (
	NotificationTypeInfo    NotificationType = "info"
	NotificationTypeSuccess NotificationType = "success"
	NotificationTypeWarning NotificationType = "warning"
	NotificationTypeError   NotificationType = "error"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationTypeInfo, NotificationTypeSuccess, NotificationTypeWarning, NotificationTypeError:
		return true
	}
	return false
}

// Common categories used by HR callers. Category is free-form; these are not exhaustive.
const (
	CategoryAttendance = "attendance"
	CategoryLeave      = "leave"
	CategoryPayroll    = "payroll"
	CategorySystem     = "system"
	CategoryAccount    = "account"
	CategoryBank       = "bank"
)

var (
	ErrInvalidPayload   = errors.New("invalid notification payload")
	ErrInvalidRecipient = errors.New("recipient is required")
)

// Notification is the durable record of one notification for one recipient.
type Notification struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RecipientID string             `bson:"recipient_id" json:"recipientId"`
	Title       string             `bson:"title" json:"title"`
	Message     string             `bson:"message" json:"message"`
	Type        NotificationType   `bson:"type" json:"type"`
	Category    string             `bson:"category" json:"category"`
	Metadata    map[string]any     `bson:"metadata,omitempty" json:"metadata"`
	IsRead      bool               `bson:"is_read" json:"isRead"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
	ReadAt      *time.Time         `bson:"read_at,omitempty" json:"readAt,omitempty"`
}

// Payload is what callers hand to the notify operations.
type Payload struct {
	Title    string           `json:"title"`
	Message  string           `json:"message"`
	Type     NotificationType `json:"type"`
	Category string           `json:"category"`
	Metadata map[string]any   `json:"metadata,omitempty"`
}

// Validate trims the text fields, defaults the type to info and rejects
// empty text or unknown types.
func (p *Payload) Validate() error {
	p.Title = strings.TrimSpace(p.Title)
	p.Message = strings.TrimSpace(p.Message)
	p.Category = strings.TrimSpace(p.Category)

	if p.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidPayload)
	}
	if p.Message == "" {
		return fmt.Errorf("%w: message is required", ErrInvalidPayload)
	}
	if p.Type == "" {
		p.Type = NotificationTypeInfo
	}
	if !p.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidPayload, p.Type)
	}
	return nil
}

// Action returns metadata["action"] when it is a string.
func (p Payload) Action() string {
	action, _ := p.Metadata["action"].(string)
	return action
}

func (p Payload) record(recipientID string) *Notification {
	return &Notification{
		RecipientID: recipientID,
		Title:       p.Title,
		Message:     p.Message,
		Type:        p.Type,
		Category:    p.Category,
		Metadata:    p.Metadata,
	}
}

// Frame is the JSON pushed to clients for one notification event.
type Frame struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	Category  string           `json:"category"`
	Metadata  map[string]any   `json:"metadata"`
	CreatedAt time.Time        `json:"createdAt"`
	IsRead    bool             `json:"isRead"`
	Role      string           `json:"role,omitempty"`
}

// NewFrame renders a persisted record as a push frame.
func NewFrame(n *Notification) Frame {
	return Frame{
		ID:        n.ID.Hex(),
		Title:     n.Title,
		Message:   n.Message,
		Type:      n.Type,
		Category:  n.Category,
		Metadata:  n.Metadata,
		CreatedAt: n.CreatedAt.UTC(),
	}
}

// sharedFrame is the frame for pushes that are not tied to a single record.
func sharedFrame(id, role string, p Payload, at time.Time) Frame {
	return Frame{
		ID:        id,
		Title:     p.Title,
		Message:   p.Message,
		Type:      p.Type,
		Category:  p.Category,
		Metadata:  p.Metadata,
		CreatedAt: at.UTC(),
		Role:      role,
	}
}

// ListFilter narrows ListForUser. Nil/empty fields do not filter.
type ListFilter struct {
	Page     int64
	PageSize int64
	IsRead   *bool
	Category string
	Type     NotificationType
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

func (f *ListFilter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
}

type Pagination struct {
	Page       int64 `json:"page"`
	PageSize   int64 `json:"pageSize"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

type Page struct {
	Items      []Notification `json:"items"`
	Pagination Pagination     `json:"pagination"`
}

// Delivery is the outcome of a role-targeted notify.
type Delivery struct {
	Records []Notification `json:"records"`
	Pushed  int            `json:"pushed"`
	// CompletedRoles counts the leading roles of a NotifyRoles call that were
	// fully persisted. On error the caller resumes from this index.
	CompletedRoles int `json:"-"`
}

type CleanupResult struct {
	DeletedCount int64 `json:"deletedCount"`
}
