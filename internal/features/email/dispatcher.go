package email

import (
	"context"
	"errors"
	"time"

	"go-hrms/internal/features/employee"
	"go-hrms/internal/features/notification"

	"go.uber.org/zap"
)

const sendTimeout = 30 * time.Second

// ContactResolver maps a user id to an email address.
type ContactResolver interface {
	ContactAddress(ctx context.Context, userID string) (string, error)
}

// Dispatcher is the email secondary channel. Dispatch never fails the
// caller: every problem is logged and dropped.
type Dispatcher struct {
	contacts  ContactResolver
	templates *TemplateSet
	sender    Sender
	outbox    Outbox
	from      string
	logger    *zap.Logger
}

func NewDispatcher(
	contacts ContactResolver,
	templates *TemplateSet,
	sender Sender,
	outbox Outbox,
	from string,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		contacts:  contacts,
		templates: templates,
		sender:    sender,
		outbox:    outbox,
		from:      from,
		logger:    logger.With(zap.String("component", "email")),
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, userID string, payload notification.Payload, extra map[string]any) {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	log := d.logger.With(zap.String("user_id", userID), zap.String("category", payload.Category))

	addr, err := d.contacts.ContactAddress(ctx, userID)
	if err != nil {
		if errors.Is(err, employee.ErrNoContact) {
			log.Debug("No email address on file")
		} else {
			log.Warn("Email skipped: contact lookup failed", zap.Error(err))
		}
		return
	}

	data := TemplateData{
		Title:    payload.Title,
		Message:  payload.Message,
		Type:     string(payload.Type),
		Category: payload.Category,
		Metadata: payload.Metadata,
	}
	if id, ok := extra["notificationId"].(string); ok {
		data.NotificationID = id
	}
	if at, ok := extra["createdAt"].(time.Time); ok {
		data.CreatedAt = at
	}

	subject, body, err := d.templates.Render(payload.Category, payload.Action(), data)
	if err != nil {
		log.Warn("Email skipped: template failed", zap.Error(err))
		return
	}

	record := &Email{
		UserID:         userID,
		NotificationID: data.NotificationID,
		Category:       payload.Category,
		From:           d.from,
		To:             []string{addr},
		Subject:        subject,
		HtmlBody:       body,
		Status:         EmailQueued,
	}
	logged := true
	if err := d.outbox.Create(ctx, record); err != nil {
		logged = false
		log.Warn("Failed to record outbox entry", zap.Error(err))
	}

	sendErr := d.sender.Send(ctx, Message{From: d.from, To: addr, Subject: subject, HTML: body})

	status, errMsg := EmailSent, ""
	if sendErr != nil {
		status, errMsg = EmailFailed, sendErr.Error()
		log.Warn("Email delivery failed", zap.Error(sendErr))
	}
	if logged {
		if err := d.outbox.UpdateStatus(ctx, record.ID, status, errMsg); err != nil {
			log.Warn("Failed to update outbox entry", zap.Error(err))
		}
	}
}
