package progress

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const DefaultHeartbeat = 15 * time.Second

type ProgressController struct {
	Broker    Subscriber
	Heartbeat time.Duration
}

// GET /api/progress/:topic/stream
func (pc *ProgressController) Stream(c *gin.Context) {
	topic := strings.TrimSpace(c.Param("topic"))
	if topic == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "topic is required"})
		return
	}

	events, cancel := pc.Broker.Subscribe(topic)
	defer cancel()

	interval := pc.Heartbeat
	if interval <= 0 {
		interval = DefaultHeartbeat
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.SSEvent("connected", gin.H{"topic": topic})
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case e, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("progress", e)
			return !e.Terminal()
		case <-ticker.C:
			c.SSEvent("heartbeat", gin.H{"at": time.Now().UTC()})
			return true
		}
	})
}
