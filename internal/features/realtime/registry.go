package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultAckTimeout   = 5 * time.Second
	DefaultWriteTimeout = 2 * time.Second
)

// Eviction reasons, also used as metric labels.
const (
	reasonReplaced     = "replaced"
	reasonWriteFailed  = "write_failed"
	reasonDeregistered = "deregistered"
	reasonIdle         = "idle"
	reasonClosed       = "closed"
)

type entry struct {
	id        string
	userID    string
	role      string
	transport Transport

	lastActiveAt atomic.Int64 // unix nanos
}

func (e *entry) touch(now time.Time) {
	e.lastActiveAt.Store(now.UnixNano())
}

func (e *entry) lastActive() time.Time {
	return time.Unix(0, e.lastActiveAt.Load())
}

// Stats is a point-in-time view of the registry.
type Stats struct {
	Total   int            `json:"total"`
	PerRole map[string]int `json:"perRole"`
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithAckTimeout bounds the connection-acknowledgment write done by Register.
func WithAckTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.ackTimeout = d
		}
	}
}

// WithWriteTimeout bounds every push write.
func WithWriteTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.writeTimeout = d
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// Registry owns the live push connections, indexed by user and by role.
// Both indices are only mutated together under mu. Transport writes happen
// outside the lock on a snapshot of the entries.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]*entry
	byRole map[string]map[string]*entry

	logger       *zap.Logger
	metrics      *Metrics
	now          func() time.Time
	ackTimeout   time.Duration
	writeTimeout time.Duration
}

func NewRegistry(logger *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		byUser:       make(map[string]*entry),
		byRole:       make(map[string]map[string]*entry),
		logger:       logger.With(zap.String("component", "realtime")),
		now:          time.Now,
		ackTimeout:   DefaultAckTimeout,
		writeTimeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register installs t as the only connection of userID, tearing down any
// previous one, and acknowledges it. It returns false, with the new entry
// already removed, when the acknowledgment cannot be written.
func (r *Registry) Register(userID, role string, t Transport) bool {
	_, ok := r.register(userID, role, t)
	return ok
}

// Connect is Register for connection handlers: release removes the entry when
// the handler's stream ends, unless a newer connection has replaced it.
func (r *Registry) Connect(userID, role string, t Transport) (release func(), ok bool) {
	e, ok := r.register(userID, role, t)
	if !ok {
		return func() {}, false
	}
	return func() { r.teardown(e, reasonDeregistered) }, true
}

func (r *Registry) register(userID, role string, t Transport) (*entry, bool) {
	if t == nil {
		return nil, false
	}
	if userID == "" {
		_ = t.Close()
		return nil, false
	}

	e := &entry{
		id:        uuid.NewString(),
		userID:    userID,
		role:      roleKey(role),
		transport: t,
	}
	e.touch(r.now())

	r.mu.Lock()
	old := r.byUser[userID]
	if old != nil {
		r.removeLocked(old)
	}
	r.insertLocked(e)
	total := len(r.byUser)
	r.mu.Unlock()

	if old != nil {
		_ = old.transport.Close()
		r.metrics.evicted(reasonReplaced)
		r.logger.Info("Replaced existing connection",
			zap.String("user_id", userID),
			zap.String("connection_id", old.id),
		)
	}
	r.metrics.setConnections(total)

	frame, err := json.Marshal(connectionFrame(r.now()))
	if err != nil {
		r.teardown(e, reasonWriteFailed)
		return nil, false
	}
	if !r.safeWrite(e, frame, r.ackTimeout) {
		r.logger.Warn("Connection acknowledgment failed",
			zap.String("user_id", userID),
			zap.String("role", role),
		)
		return nil, false
	}

	r.logger.Info("Connection registered",
		zap.String("user_id", userID),
		zap.String("role", role),
		zap.String("connection_id", e.id),
	)
	return e, true
}

// Deregister closes and removes the connection of userID, if any.
func (r *Registry) Deregister(userID string) {
	r.mu.RLock()
	e := r.byUser[userID]
	r.mu.RUnlock()

	if e != nil {
		r.teardown(e, reasonDeregistered)
	}
}

// Touch records client activity for userID. It reports whether the user is connected.
func (r *Registry) Touch(userID string) bool {
	r.mu.RLock()
	e := r.byUser[userID]
	r.mu.RUnlock()

	if e == nil {
		return false
	}
	e.touch(r.now())
	return true
}

// PushToUser writes payload to userID's connection. It reports whether a live
// connection accepted the write; a failed write removes the connection.
func (r *Registry) PushToUser(userID string, payload any) bool {
	frame, ok := r.encode(payload)
	if !ok {
		return false
	}

	r.mu.RLock()
	e := r.byUser[userID]
	r.mu.RUnlock()

	if e == nil {
		return false
	}
	return r.safeWrite(e, frame, r.writeTimeout)
}

// PushToRole writes payload to every connection filed under role and returns
// the number of successful writes.
func (r *Registry) PushToRole(role string, payload any) int {
	frame, ok := r.encode(payload)
	if !ok {
		return 0
	}
	return r.fanOut(r.roleSnapshot(role), frame)
}

// roleKey is the bucket key for role. Role names match case-insensitively.
func roleKey(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

// PushToRoles is PushToRole summed over the distinct roles.
func (r *Registry) PushToRoles(roles []string, payload any) int {
	frame, ok := r.encode(payload)
	if !ok {
		return 0
	}

	seen := make(map[string]struct{}, len(roles))
	delivered := 0
	for _, role := range roles {
		role = roleKey(role)
		if _, dup := seen[role]; dup {
			continue
		}
		seen[role] = struct{}{}
		delivered += r.fanOut(r.roleSnapshot(role), frame)
	}
	return delivered
}

// Broadcast writes payload to every connection regardless of role.
func (r *Registry) Broadcast(payload any) int {
	frame, ok := r.encode(payload)
	if !ok {
		return 0
	}
	return r.fanOut(r.snapshot(), frame)
}

// Heartbeat sends a keep-alive frame to every connection. A delivered
// heartbeat counts as activity like any other push.
func (r *Registry) Heartbeat() int {
	frame, err := json.Marshal(heartbeatFrame(r.now()))
	if err != nil {
		return 0
	}
	return r.fanOut(r.snapshot(), frame)
}

// Stats returns connection counts, overall and per lowercased role.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	perRole := make(map[string]int, len(r.byRole))
	for role, bucket := range r.byRole {
		perRole[role] = len(bucket)
	}
	return Stats{Total: len(r.byUser), PerRole: perRole}
}

// Sweep evicts connections that are known closed or have been inactive for
// longer than idleTimeout. A non-positive idleTimeout only evicts closed ones.
func (r *Registry) Sweep(idleTimeout time.Duration) int {
	cutoff := r.now().Add(-idleTimeout)

	evicted := 0
	for _, e := range r.snapshot() {
		reason := ""
		switch {
		case e.transport.Closed():
			reason = reasonClosed
		case idleTimeout > 0 && e.lastActive().Before(cutoff):
			reason = reasonIdle
		default:
			continue
		}
		if r.teardown(e, reason) {
			evicted++
		}
	}

	if evicted > 0 {
		r.logger.Info("Swept stale connections", zap.Int("evicted", evicted))
	}
	return evicted
}

// safeWrite is the single write path. Success refreshes activity, any
// failure tears the entry down.
func (r *Registry) safeWrite(e *entry, frame []byte, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := e.transport.Write(ctx, frame); err != nil {
		r.metrics.push(false)
		r.logger.Debug("Push failed",
			zap.String("user_id", e.userID),
			zap.String("connection_id", e.id),
			zap.Error(err),
		)
		r.teardown(e, reasonWriteFailed)
		return false
	}

	r.metrics.push(true)
	e.touch(r.now())
	return true
}

func (r *Registry) fanOut(entries []*entry, frame []byte) int {
	delivered := 0
	for _, e := range entries {
		if r.safeWrite(e, frame, r.writeTimeout) {
			delivered++
		}
	}
	return delivered
}

// teardown closes e's transport and removes e from both indices if it is
// still the current entry of its user. It reports whether e was removed.
func (r *Registry) teardown(e *entry, reason string) bool {
	r.mu.Lock()
	removed := r.removeLocked(e)
	total := len(r.byUser)
	r.mu.Unlock()

	_ = e.transport.Close()

	if removed {
		r.metrics.evicted(reason)
		r.metrics.setConnections(total)
		r.logger.Debug("Connection removed",
			zap.String("user_id", e.userID),
			zap.String("connection_id", e.id),
			zap.String("reason", reason),
		)
	}
	return removed
}

func (r *Registry) insertLocked(e *entry) {
	r.byUser[e.userID] = e
	bucket := r.byRole[e.role]
	if bucket == nil {
		bucket = make(map[string]*entry)
		r.byRole[e.role] = bucket
	}
	bucket[e.userID] = e
}

func (r *Registry) removeLocked(e *entry) bool {
	if r.byUser[e.userID] != e {
		return false
	}
	delete(r.byUser, e.userID)
	if bucket := r.byRole[e.role]; bucket != nil {
		delete(bucket, e.userID)
		if len(bucket) == 0 {
			delete(r.byRole, e.role)
		}
	}
	return true
}

func (r *Registry) snapshot() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entry, 0, len(r.byUser))
	for _, e := range r.byUser {
		out = append(out, e)
	}
	return out
}

func (r *Registry) roleSnapshot(role string) []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket := r.byRole[roleKey(role)]
	out := make([]*entry, 0, len(bucket))
	for _, e := range bucket {
		out = append(out, e)
	}
	return out
}

func (r *Registry) encode(payload any) ([]byte, bool) {
	if raw, ok := payload.([]byte); ok {
		return raw, true
	}
	frame, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error("Unable to encode push payload", zap.Error(err))
		return nil, false
	}
	return frame, true
}
