package gateway

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/evn/shiftbot/internal/services/events"
)

func TestHubBroadcastsEvents(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(zap.NewNop())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var hello map[string]interface{}
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "hello", hello["type"])

	hub.Publish(context.Background(), events.Event{
		ID:              "e1",
		Type:            events.ShiftEnded,
		ExternalID:      "42",
		Department:      "Police",
		DurationMinutes: 42,
		At:              time.Date(2024, 5, 1, 10, 42, 0, 0, time.UTC),
	})

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var got events.Event
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, events.ShiftEnded, got.Type)
	assert.Equal(t, 42, got.DurationMinutes)

	cancel()
	<-stopped

	// the hub closes the socket on shutdown
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestHubPublishWithoutClients(t *testing.T) {
	hub := NewHub(zap.NewNop())
	for i := 0; i < 300; i++ {
		hub.Publish(context.Background(), events.Event{Type: events.ShiftStarted})
	}
	assert.Len(t, hub.broadcast, cap(hub.broadcast))
}
