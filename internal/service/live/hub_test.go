package live

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busoptimizer/backend/internal/pkg/logger"
	"busoptimizer/backend/internal/service/attendance"
)

func TestHubPublish(t *testing.T) {
	hub := NewHub(logger.Discard())

	events, cancel := hub.Subscribe()
	assert.Equal(t, 1, hub.Subscribers())

	hub.Publish(attendance.ScanEvent{BatchID: 1001, Shift: attendance.ShiftMorning})
	got := <-events
	assert.Equal(t, int64(1001), got.BatchID)

	cancel()
	cancel()
	assert.Equal(t, 0, hub.Subscribers())
	_, open := <-events
	assert.False(t, open)

	hub.Publish(attendance.ScanEvent{BatchID: 1002})
}

func TestHubDropsForSlowSubscribers(t *testing.T) {
	hub := NewHub(logger.Discard())
	events, cancel := hub.Subscribe()
	defer cancel()

	for i := 0; i < subscriberBuffer+10; i++ {
		hub.Publish(attendance.ScanEvent{BatchID: int64(i)})
	}
	assert.Len(t, events, subscriberBuffer)
}

func TestServeWS(t *testing.T) {
	hub := NewHub(logger.Discard())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.ServeWS(w, r)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "connected", msg.Type)

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 10*time.Millisecond)
	hub.Publish(attendance.ScanEvent{BatchID: 1001, EmployeeName: "Ali", Shift: attendance.ShiftNight})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "scan", msg.Type)
	require.NotNil(t, msg.Event)
	assert.Equal(t, "Ali", msg.Event.EmployeeName)
}
