package api

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchd/fleettrack/cli/tracker/track"
)

func dialStream(t *testing.T, srv *httptest.Server, vehicleID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream/" + vehicleID
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	return conn
}

func TestStreamLocation_RelaysPublishedPositions(t *testing.T) {
	c, m := newTestController(t)
	srv := httptest.NewServer(c.Router())
	defer srv.Close()

	seed(t, m, "PC-001", 33.7490, -84.3880)

	conn := dialStream(t, srv, "PC-001")
	defer conn.Close()

	// The current position is sent as soon as the stream opens.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var p track.Position
	require.NoError(t, conn.ReadJSON(&p))
	assert.Equal(t, "PC-001", p.VehicleID)
	assert.Equal(t, 33.7490, p.Lat)

	// A later write reaches the connected client.
	require.NoError(t, m.Update(context.Background(), track.Position{
		VehicleID: "PC-001",
		Lat:       33.7600,
		Lng:       -84.3900,
		Timestamp: time.Now().UTC(),
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&p))
	assert.Equal(t, 33.7600, p.Lat)
	assert.Equal(t, -84.3900, p.Lng)
}

func TestStreamLocation_ClientDisconnectReleasesSubscription(t *testing.T) {
	c, m := newTestController(t)
	srv := httptest.NewServer(c.Router())
	defer srv.Close()

	conn := dialStream(t, srv, "PC-001")

	require.Eventually(t, func() bool {
		return m.Subscribers("PC-001") == 1
	}, 2*time.Second, 10*time.Millisecond, "the handler must register a subscription")

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return m.Subscribers("PC-001") == 0
	}, 2*time.Second, 10*time.Millisecond, "disconnect must end the handler and release the subscription")
}
