package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

// frameWriter is the write side of a websocket connection.
type frameWriter interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// SocketTransport adapts a websocket connection to Transport. Frames are queued
// on a bounded buffer and written by a single pump goroutine, so Write never
// blocks on the network; a failed or timed-out socket write closes the transport.
type SocketTransport struct {
	conn         frameWriter
	out          chan []byte
	writeTimeout time.Duration

	done      chan struct{}
	pumpDone  chan struct{}
	closeOnce sync.Once
}

func NewSocketTransport(conn frameWriter, buffer int, writeTimeout time.Duration) *SocketTransport {
	if buffer <= 0 {
		buffer = 32
	}
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}

	t := &SocketTransport{
		conn:         conn,
		out:          make(chan []byte, buffer),
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
		pumpDone:     make(chan struct{}),
	}
	go t.pump()
	return t
}

func (t *SocketTransport) Write(ctx context.Context, frame []byte) error {
	select {
	case <-t.done:
		return ErrTransportClosed
	default:
	}

	select {
	case t.out <- frame:
		return nil
	case <-t.done:
		return ErrTransportClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *SocketTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		err = t.conn.Close()
	})
	return err
}

func (t *SocketTransport) Closed() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the pump has stopped writing to the connection.
func (t *SocketTransport) Wait() {
	<-t.pumpDone
}

func (t *SocketTransport) pump() {
	defer close(t.pumpDone)

	for {
		select {
		case <-t.done:
			return
		case frame := <-t.out:
			_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
			if err := t.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				_ = t.Close()
				return
			}
		}
	}
}
