// Package wstransport carries control frames over a WebSocket
// connection, one binary message per frame.
package wstransport

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ebonn/mumlink/internal/core"
)

const writeWait = 5 * time.Second

// Conn adapts a websocket connection into a core.Transport. The
// WebSocket's own message boundaries replace stream framing, so frames
// travel as-is.
type Conn struct {
	ws *websocket.Conn

	writeMu sync.Mutex
}

var _ core.Transport = (*Conn)(nil)

func New(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// Dial connects to a WebSocket endpoint and wraps the connection.
func Dial(url string) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return New(ws), nil
}

func (c *Conn) ReadPacket() (core.Frame, error) {
	for {
		typ, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		return data, nil
	}
}

func (c *Conn) WritePacket(frame core.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.BinaryMessage, frame)
}

func (c *Conn) Close() error {
	return c.ws.Close()
}
