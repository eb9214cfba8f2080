package service

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/hmallik/taskally/internal/monitoring"
)

// streamSSE forwards snapshots from a live view onto the response as
// server-sent events until the client disconnects or the view closes.
// Each event carries the full snapshot; the client replaces its state
// rather than applying deltas.
func streamSSE[T any](c *gin.Context, updates <-chan T) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeaderNow()

	monitoring.ActiveStreams.Inc()
	defer monitoring.ActiveStreams.Dec()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-updates:
			if !ok {
				return
			}
			payload, err := json.Marshal(v)
			if err != nil {
				return
			}
			c.SSEvent("update", string(payload))
			c.Writer.Flush()
		}
	}
}
