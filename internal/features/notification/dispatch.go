package notification

import (
	"context"
	"errors"
)

var ErrNoTarget = errors.New("one of userId, role, roles or broadcast is required")

// Event is a notification request from the HTTP dispatch endpoint or the
// intake topic. Exactly one target applies, checked in the order
// Broadcast, UserID, Role, Roles.
type Event struct {
	UserID    string   `json:"userId,omitempty"`
	Role      string   `json:"role,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	Broadcast bool     `json:"broadcast,omitempty"`
	Dedup     bool     `json:"dedup,omitempty"`
	// Exclude lists members already notified by an earlier partial attempt.
	Exclude []string `json:"-"`
	Payload
}

// Route hands ev to the matching NotificationService operation and returns its result.
func Route(ctx context.Context, svc NotificationService, ev Event) (any, error) {
	switch {
	case ev.Broadcast:
		pushed, err := svc.Broadcast(ctx, ev.Payload)
		if err != nil {
			return nil, err
		}
		return map[string]int{"pushed": pushed}, nil
	case ev.UserID != "":
		return svc.NotifyUser(ctx, ev.UserID, ev.Payload)
	case ev.Role != "":
		return svc.NotifyRole(ctx, ev.Role, ev.Payload)
	case len(ev.Roles) > 0:
		var opts []NotifyOption
		if ev.Dedup {
			opts = append(opts, WithDedup())
		}
		if len(ev.Exclude) > 0 {
			opts = append(opts, WithExclude(ev.Exclude...))
		}
		return svc.NotifyRoles(ctx, ev.Roles, ev.Payload, opts...)
	}
	return nil, ErrNoTarget
}

// Remaining returns the part of ev a retry still has to deliver after a
// failed Route call produced result. Only multi-role events can partially
// succeed; every other event is returned unchanged.
func (ev Event) Remaining(result any) Event {
	d, ok := result.(*Delivery)
	if !ok || d == nil || ev.Broadcast || ev.UserID != "" || ev.Role != "" {
		return ev
	}

	next := ev
	next.Roles = ev.Roles[min(d.CompletedRoles, len(ev.Roles)):]
	if ev.Dedup {
		next.Exclude = append([]string(nil), ev.Exclude...)
		for _, n := range d.Records {
			next.Exclude = append(next.Exclude, n.RecipientID)
		}
	}
	return next
}

// IsRejected reports whether err is the caller's fault rather than a storage failure.
func IsRejected(err error) bool {
	return errors.Is(err, ErrInvalidPayload) || errors.Is(err, ErrInvalidRecipient) || errors.Is(err, ErrNoTarget)
}
