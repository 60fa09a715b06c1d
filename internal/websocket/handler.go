package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs attaches a connection to the hub and blocks until it closes.
// initial, when set, is the first frame the tab receives.
func ServeWs(hub *Hub, c *websocket.Conn, visitorID string, initial []byte) {
	client := &Client{Hub: hub, Conn: c, VisitorID: visitorID, Send: make(chan []byte, 32)}
	if initial != nil {
		client.Send <- initial
	}
	client.Hub.register <- client

	go client.writePump()
	client.readPump()
}
