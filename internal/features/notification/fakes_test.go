package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"go-hrms/internal/worker"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var errStoreDown = errors.New("store unavailable")

// memoryStore is an in-memory Store with the same ownership rules as MongoRepository.
type memoryStore struct {
	mu      sync.Mutex
	records map[primitive.ObjectID]*Notification
	seq     int
	base    time.Time
	failing bool

	// failBatch makes the n-th CreateMany call fail once. Zero disables.
	failBatch int
	batches   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		records: make(map[primitive.ObjectID]*Notification),
		base:    time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
}

func (s *memoryStore) insertLocked(n *Notification) {
	s.seq++
	n.ID = primitive.NewObjectID()
	n.CreatedAt = s.base.Add(time.Duration(s.seq) * time.Millisecond)
	n.IsRead = false
	cp := *n
	s.records[n.ID] = &cp
}

func (s *memoryStore) Create(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errStoreDown
	}
	s.insertLocked(n)
	return nil
}

func (s *memoryStore) CreateMany(_ context.Context, ns []*Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches++
	if s.failing || s.batches == s.failBatch {
		return errStoreDown
	}
	for _, n := range ns {
		s.insertLocked(n)
	}
	return nil
}

func (s *memoryStore) FindPaged(_ context.Context, recipientID string, f ListFilter) ([]Notification, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, 0, errStoreDown
	}
	f.normalize()

	var matched []Notification
	for _, n := range s.records {
		if n.RecipientID != recipientID {
			continue
		}
		if f.IsRead != nil && n.IsRead != *f.IsRead {
			continue
		}
		if f.Category != "" && n.Category != f.Category {
			continue
		}
		if f.Type != "" && n.Type != f.Type {
			continue
		}
		matched = append(matched, *n)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	start := (f.Page - 1) * f.PageSize
	if start >= total {
		return []Notification{}, total, nil
	}
	end := min(start+f.PageSize, total)
	return matched[start:end], total, nil
}

func (s *memoryStore) CountUnread(_ context.Context, recipientID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.records {
		if r.RecipientID == recipientID && !r.IsRead {
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) UpdateReadFlag(_ context.Context, recipientID string, ids []primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return 0, errStoreDown
	}

	want := map[primitive.ObjectID]bool{}
	for _, id := range ids {
		want[id] = true
	}

	var changed int64
	for id, r := range s.records {
		if r.RecipientID != recipientID || r.IsRead {
			continue
		}
		if ids != nil && !want[id] {
			continue
		}
		r.IsRead = true
		changed++
	}
	return changed, nil
}

func (s *memoryStore) Delete(_ context.Context, id primitive.ObjectID, recipientID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok || r.RecipientID != recipientID {
		return false, nil
	}
	delete(s.records, id)
	return true, nil
}

func (s *memoryStore) DeleteOlderThanRead(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for id, r := range s.records {
		if r.IsRead && r.CreatedAt.Before(cutoff) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *memoryStore) get(t *testing.T, id primitive.ObjectID) Notification {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	require.True(t, ok, "record %s not stored", id.Hex())
	return *r
}

func (s *memoryStore) countFor(recipientID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.records {
		if r.RecipientID == recipientID {
			n++
		}
	}
	return n
}

func (s *memoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type fakeDirectory struct {
	members map[string][]string
	err     error
}

func (d *fakeDirectory) MembersOfRole(_ context.Context, role string) ([]string, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.members[role], nil
}

type dispatchCall struct {
	UserID  string
	Payload Payload
	Extra   map[string]any
}

// recordingChannel captures secondary dispatches.
type recordingChannel struct {
	mu    sync.Mutex
	calls []dispatchCall
}

func (c *recordingChannel) Dispatch(_ context.Context, userID string, payload Payload, extra map[string]any) {
	c.mu.Lock()
	c.calls = append(c.calls, dispatchCall{UserID: userID, Payload: payload, Extra: extra})
	c.mu.Unlock()
}

func (c *recordingChannel) dispatched() []dispatchCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]dispatchCall(nil), c.calls...)
}

// inlineSubmitter runs tasks on the caller's goroutine so tests can assert right away.
type inlineSubmitter struct {
	err error
}

func (s inlineSubmitter) SubmitDetached(task worker.Task) error {
	if s.err != nil {
		return s.err
	}
	task(context.Background())
	return nil
}

// recordingTransport implements realtime.Transport.
type recordingTransport struct {
	mu     sync.Mutex
	frames []map[string]any
	closed bool
}

func (t *recordingTransport) Write(_ context.Context, frame []byte) error {
	var m map[string]any
	if err := json.Unmarshal(frame, &m); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errors.New("closed")
	}
	t.frames = append(t.frames, m)
	return nil
}

func (t *recordingTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *recordingTransport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// eventFrames drops the registry's own connection and heartbeat frames.
func (t *recordingTransport) eventFrames() []map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []map[string]any
	for _, f := range t.frames {
		if f["type"] == "connection" || f["type"] == "heartbeat" {
			continue
		}
		out = append(out, f)
	}
	return out
}
