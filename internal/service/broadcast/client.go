package broadcast

import (
	"sync"

	"github.com/gorilla/websocket"
)

// client is one websocket observer.
type client struct {
	conn *websocket.Conn
	// send is the outbound queue drained by the write pump.
	send chan string
	// done is closed once the client is dropped.
	done chan struct{}
	once sync.Once
}

func newClient(conn *websocket.Conn, queueSize int) *client {
	return &client{
		conn: conn,
		send: make(chan string, queueSize),
		done: make(chan struct{}),
	}
}

// enqueue queues message without blocking. It returns false when the queue is
// full or the client is already closed.
func (c *client) enqueue(message string) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)

		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}
