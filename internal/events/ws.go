// README: WebSocket transport for hub subscriptions.
package events

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origin checks belong to the fronting gateway
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeRide streams one ride's events over a WebSocket until the client
// disconnects.
func (h *Hub) ServeRide(w http.ResponseWriter, r *http.Request, rideID string) {
	h.serve(w, r, func() *Subscription { return h.SubscribeRide(rideID) })
}

// ServeDriver streams ride_requested notifications for one driver session.
func (h *Hub) ServeDriver(w http.ResponseWriter, r *http.Request, driverID string) {
	h.serve(w, r, func() *Subscription { return h.SubscribeDriver(driverID) })
}

// ServeFleet streams every ride's events to a monitoring console.
func (h *Hub) ServeFleet(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.SubscribeFleet)
}

func (h *Hub) serve(w http.ResponseWriter, r *http.Request, subscribe func() *Subscription) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	sub := subscribe()

	// read pump: we expect no client messages, but reading is what surfaces
	// close frames and keeps pong handling alive
	go func() {
		defer sub.Close()
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer func() {
			ticker.Stop()
			_ = conn.Close()
		}()
		for {
			select {
			case ev, ok := <-sub.C():
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if !ok {
					_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := conn.WriteJSON(ev); err != nil {
					sub.Close()
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					sub.Close()
					return
				}
			}
		}
	}()
}
