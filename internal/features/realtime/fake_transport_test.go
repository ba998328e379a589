package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errBrokenPipe = errors.New("broken pipe")

// fakeTransport records frames and can be told to fail or stall.
type fakeTransport struct {
	mu     sync.Mutex
	frames [][]byte
	fail   bool
	stall  bool
	closed bool
}

func (f *fakeTransport) Write(ctx context.Context, frame []byte) error {
	f.mu.Lock()
	stall, fail, closed := f.stall, f.fail, f.closed
	f.mu.Unlock()

	if closed {
		return ErrTransportClosed
	}
	if stall {
		<-ctx.Done()
		return ctx.Err()
	}
	if fail {
		return errBrokenPipe
	}

	f.mu.Lock()
	f.frames = append(f.frames, frame)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTransport) setFail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = v
}

// framesOfType decodes recorded frames and keeps those whose "type" matches.
func (f *fakeTransport) framesOfType(t *testing.T, typ string) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []map[string]any
	for _, raw := range f.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(raw, &m))
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeTransport) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

// fakeClock is a settable clock for idle-eviction tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
