package realtime

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestMemoryBusPublishSubscribe(t *testing.T) {
	bus := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, unsubscribe, err := bus.Subscribe(ctx, "realtime:employee:e1")
	require.NoError(t, err)
	defer unsubscribe()

	ev, err := NewEvent(EventInsert, "approved_recommendations", map[string]string{"id": "r1"})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, "realtime:employee:e1", ev))
	require.NoError(t, bus.Publish(ctx, "realtime:employee:e2", ev))

	select {
	case got := <-events:
		require.Equal(t, EventInsert, got.Type)
		require.JSONEq(t, `{"id":"r1"}`, string(got.Record))
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	select {
	case <-events:
		t.Fatal("unexpected second event")
	default:
	}
}

func TestStreamWritesEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	bus := NewMemoryBus()

	r := gin.New()
	r.GET("/stream", func(c *gin.Context) {
		_ = Stream(c, bus, "ch")
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/stream", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream"), resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readUntil := func(prefix string) string {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, prefix) {
				return line
			}
		}
	}

	readUntil("event:ready")

	ev, _ := NewEvent(EventUpdate, "approved_recommendations", map[string]string{"status": "accepted"})
	require.NoError(t, bus.Publish(context.Background(), "ch", ev))

	readUntil("event:UPDATE")
	data := readUntil("data:")
	require.Contains(t, data, `"approved_recommendations"`)
}
