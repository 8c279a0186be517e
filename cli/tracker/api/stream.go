package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// relayPollTimeout bounds how long the relay blocks before re-checking the
// client connection.
const relayPollTimeout = 100 * time.Millisecond

// StreamLocation upgrades to a websocket and relays every published position
// for one vehicle until the client disconnects. Delivery is best-effort: a
// slow client misses records rather than stalling the publisher.
func (h *Handler) StreamLocation(c *gin.Context) {
	id := c.Param("id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithField("err", err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub, err := h.Cache.Subscribe(c.Request.Context(), id)
	if err != nil {
		log.WithField("err", err).Errorf("Failed to subscribe to %s", id)
		return
	}
	defer sub.Close()

	// Surface client disconnects; inbound frames are otherwise ignored.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Seed the client with the current position if one is live.
	if p, ok, err := h.Cache.Get(c.Request.Context(), id); err == nil && ok {
		if err := conn.WriteJSON(p); err != nil {
			return
		}
	}

	for {
		select {
		case p, open := <-sub.C():
			if !open {
				return
			}
			if err := conn.WriteJSON(p); err != nil {
				return
			}
		case <-closed:
			return
		case <-time.After(relayPollTimeout):
			// Idle; loop to notice a closed subscription or client.
		}
	}
}
