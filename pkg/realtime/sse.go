package realtime

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
)

const heartbeatInterval = 25 * time.Second

// Stream subscribes to channel and writes each event as a server-sent event
// until the client disconnects.
func Stream(c *gin.Context, bus Bus, channel string) error {
	ctx := c.Request.Context()
	events, cancel, err := bus.Subscribe(ctx, channel)
	if err != nil {
		return err
	}
	defer cancel()

	// Content-Type comes from the first SSEvent render.
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	c.SSEvent("ready", gin.H{"channel": channel})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-heartbeat.C:
			c.SSEvent("heartbeat", gin.H{"at": time.Now().UTC()})
			return true
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(ev.Type, ev)
			return true
		}
	})
	return nil
}
