package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go-hrms/internal/worker"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// DefaultRetentionDays applies when Cleanup is called without a positive threshold.
const DefaultRetentionDays = 30

// Pusher is the best-effort push side, implemented by the realtime registry.
type Pusher interface {
	PushToUser(userID string, payload any) bool
	PushToRole(role string, payload any) int
	Broadcast(payload any) int
}

// Directory resolves the current members of a role.
type Directory interface {
	MembersOfRole(ctx context.Context, role string) ([]string, error)
}

// SecondaryChannel delivers an out-of-band copy. Implementations absorb their own failures.
type SecondaryChannel interface {
	Dispatch(ctx context.Context, userID string, payload Payload, extra map[string]any)
}

// Submitter runs work detached from the caller.
type Submitter interface {
	SubmitDetached(task worker.Task) error
}

type NotificationService interface {
	NotifyUser(ctx context.Context, userID string, payload Payload) (*Notification, error)
	NotifyRole(ctx context.Context, role string, payload Payload) (*Delivery, error)
	NotifyRoles(ctx context.Context, roles []string, payload Payload, opts ...NotifyOption) (*Delivery, error)
	Broadcast(ctx context.Context, payload Payload) (int, error)
	ListForUser(ctx context.Context, userID string, filter ListFilter) (*Page, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, id string, userID string) (bool, error)
	MarkManyRead(ctx context.Context, ids []string, userID string) (int64, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, id string, userID string) (bool, error)
	Cleanup(ctx context.Context, olderThanDays int) (*CleanupResult, error)
}

type notifyOptions struct {
	dedup   bool
	exclude map[string]struct{}
}

type NotifyOption func(*notifyOptions)

// WithDedup makes NotifyRoles persist at most one record per member even
// when the member holds several of the targeted roles.
func WithDedup() NotifyOption {
	return func(o *notifyOptions) { o.dedup = true }
}

// WithExclude skips the given members in every targeted role. A caller
// resuming a partially failed deduplicated NotifyRoles passes the members
// that already got their record.
func WithExclude(userIDs ...string) NotifyOption {
	return func(o *notifyOptions) {
		if o.exclude == nil {
			o.exclude = make(map[string]struct{}, len(userIDs))
		}
		for _, id := range userIDs {
			o.exclude[id] = struct{}{}
		}
	}
}

type NotificationServiceImpl struct {
	store     Store
	pusher    Pusher
	directory Directory
	secondary SecondaryChannel
	submitter Submitter
	logger    *zap.Logger
	now       func() time.Time
}

// NewNotificationService wires the orchestrator. secondary may be nil, which disables escalation.
func NewNotificationService(
	store Store,
	pusher Pusher,
	directory Directory,
	secondary SecondaryChannel,
	submitter Submitter,
	logger *zap.Logger,
) NotificationService {
	return &NotificationServiceImpl{
		store:     store,
		pusher:    pusher,
		directory: directory,
		secondary: secondary,
		submitter: submitter,
		logger:    logger.With(zap.String("component", "notification")),
		now:       time.Now,
	}
}

// NotifyUser persists one record for userID, then attempts a push and, when
// the payload warrants it, an asynchronous secondary delivery. Only a
// persistence failure is returned.
func (s *NotificationServiceImpl) NotifyUser(ctx context.Context, userID string, payload Payload) (*Notification, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidRecipient
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	n := payload.record(userID)
	if err := s.store.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("persist notification: %w", err)
	}

	pushed := s.pusher.PushToUser(userID, NewFrame(n))
	s.logger.Debug("Notification delivered",
		zap.String("user_id", userID),
		zap.String("notification_id", n.ID.Hex()),
		zap.Bool("pushed", pushed),
	)

	s.escalate(userID, payload, n)
	return n, nil
}

// NotifyRole persists one record per current member of role and pushes a
// single role-scoped frame to the role's live connections.
func (s *NotificationServiceImpl) NotifyRole(ctx context.Context, role string, payload Payload) (*Delivery, error) {
	if strings.TrimSpace(role) == "" {
		return nil, ErrInvalidRecipient
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	return s.notifyRole(ctx, role, payload, nil, nil)
}

// NotifyRoles is NotifyRole over each role in order. Without WithDedup a
// member holding two of the roles gets two records. On error the returned
// Delivery holds what was persisted before the failing role, and its
// CompletedRoles tells where a retry should resume.
func (s *NotificationServiceImpl) NotifyRoles(ctx context.Context, roles []string, payload Payload, opts ...NotifyOption) (*Delivery, error) {
	if len(roles) == 0 {
		return nil, ErrInvalidRecipient
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	var o notifyOptions
	for _, opt := range opts {
		opt(&o)
	}

	var seen map[string]struct{}
	if o.dedup {
		seen = make(map[string]struct{})
	}

	total := &Delivery{Records: []Notification{}}
	for i, role := range roles {
		if strings.TrimSpace(role) != "" {
			d, err := s.notifyRole(ctx, role, payload, seen, o.exclude)
			if err != nil {
				return total, err
			}
			total.Records = append(total.Records, d.Records...)
			total.Pushed += d.Pushed
		}
		total.CompletedRoles = i + 1
	}
	return total, nil
}

func (s *NotificationServiceImpl) notifyRole(ctx context.Context, role string, payload Payload, seen, exclude map[string]struct{}) (*Delivery, error) {
	members, err := s.directory.MembersOfRole(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("resolve members of role %s: %w", role, err)
	}

	inRole := make(map[string]struct{}, len(members))
	batch := make([]*Notification, 0, len(members))
	for _, member := range members {
		if member == "" {
			continue
		}
		if _, dup := inRole[member]; dup {
			continue
		}
		inRole[member] = struct{}{}
		if _, skip := exclude[member]; skip {
			continue
		}
		if seen != nil {
			if _, dup := seen[member]; dup {
				continue
			}
			seen[member] = struct{}{}
		}
		batch = append(batch, payload.record(member))
	}

	if err := s.store.CreateMany(ctx, batch); err != nil {
		return nil, fmt.Errorf("persist notifications for role %s: %w", role, err)
	}

	pushed := s.pusher.PushToRole(role, sharedFrame(uuid.NewString(), role, payload, s.now()))

	records := make([]Notification, 0, len(batch))
	for _, n := range batch {
		records = append(records, *n)
		s.escalate(n.RecipientID, payload, n)
	}

	s.logger.Debug("Role notification delivered",
		zap.String("role", role),
		zap.Int("records", len(records)),
		zap.Int("pushed", pushed),
	)
	return &Delivery{Records: records, Pushed: pushed}, nil
}

// Broadcast pushes to every live connection. Nothing is persisted.
func (s *NotificationServiceImpl) Broadcast(ctx context.Context, payload Payload) (int, error) {
	if err := payload.Validate(); err != nil {
		return 0, err
	}
	return s.pusher.Broadcast(sharedFrame(uuid.NewString(), "", payload, s.now())), nil
}

func (s *NotificationServiceImpl) ListForUser(ctx context.Context, userID string, filter ListFilter) (*Page, error) {
	filter.normalize()

	items, total, err := s.store.FindPaged(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Notification{}
	}

	return &Page{
		Items: items,
		Pagination: Pagination{
			Page:       filter.Page,
			PageSize:   filter.PageSize,
			Total:      total,
			TotalPages: (total + filter.PageSize - 1) / filter.PageSize,
		},
	}, nil
}

func (s *NotificationServiceImpl) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.store.CountUnread(ctx, userID)
}

// MarkRead marks one unread record of userID as read. It returns false when
// the id is malformed, belongs to someone else, or is already read.
func (s *NotificationServiceImpl) MarkRead(ctx context.Context, id string, userID string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}
	n, err := s.store.UpdateReadFlag(ctx, userID, []primitive.ObjectID{oid})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkManyRead ignores malformed ids and returns how many records changed.
func (s *NotificationServiceImpl) MarkManyRead(ctx context.Context, ids []string, userID string) (int64, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return 0, nil
	}
	return s.store.UpdateReadFlag(ctx, userID, oids)
}

func (s *NotificationServiceImpl) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.store.UpdateReadFlag(ctx, userID, nil)
}

func (s *NotificationServiceImpl) Delete(ctx context.Context, id string, userID string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}
	return s.store.Delete(ctx, oid, userID)
}

// Cleanup removes read records created more than olderThanDays ago.
func (s *NotificationServiceImpl) Cleanup(ctx context.Context, olderThanDays int) (*CleanupResult, error) {
	deleted, err := s.store.DeleteOlderThanRead(ctx, RetentionCutoff(s.now(), olderThanDays))
	if err != nil {
		return nil, err
	}
	s.logger.Info("Notification cleanup finished",
		zap.Int("older_than_days", olderThanDays),
		zap.Int64("deleted", deleted),
	)
	return &CleanupResult{DeletedCount: deleted}, nil
}

// RetentionCutoff is the creation time before which read records are removed.
func RetentionCutoff(now time.Time, olderThanDays int) time.Time {
	if olderThanDays <= 0 {
		olderThanDays = DefaultRetentionDays
	}
	return now.AddDate(0, 0, -olderThanDays)
}

func (s *NotificationServiceImpl) escalate(userID string, payload Payload, n *Notification) {
	if s.secondary == nil || !ShouldEscalate(payload) {
		return
	}

	extra := map[string]any{
		"notificationId": n.ID.Hex(),
		"createdAt":      n.CreatedAt,
	}
	task := func(ctx context.Context) {
		s.secondary.Dispatch(ctx, userID, payload, extra)
	}

	if s.submitter == nil {
		go task(context.Background())
		return
	}
	if err := s.submitter.SubmitDetached(task); err != nil {
		s.logger.Warn("Secondary delivery not scheduled",
			zap.String("user_id", userID),
			zap.String("notification_id", n.ID.Hex()),
			zap.Error(err),
		)
	}
}
