package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Connection wraps a gorilla socket. gorilla allows one concurrent writer,
// so Send and Close serialize on mu.
type Connection struct {
	conn        *websocket.Conn
	id          string
	recipientID string
	mu          sync.Mutex
}

func NewConnection(conn *websocket.Conn, recipientID string) *Connection {
	return &Connection{
		conn:        conn,
		id:          uuid.NewString(),
		recipientID: recipientID,
	}
}

func (c *Connection) Send(message interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(message)
}

func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	return c.conn.Close()
}

func (c *Connection) RecipientID() string {
	return c.recipientID
}

func (c *Connection) ID() string {
	return c.id
}
