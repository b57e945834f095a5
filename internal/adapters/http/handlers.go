package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pairbooth/signaling/internal/app"
)

const serviceName = "pairbooth-signaling"

func handleHealth(dir *app.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"service":   serviceName,
			"rooms":     dir.Count(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func handleInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "Pairbooth Signaling Server",
		"version": "1.0.0",
		"endpoints": gin.H{
			"websocket": "/ws?room=ROOMCODE",
			"health":    "/health",
		},
		"usage": "Connect via WebSocket to /ws?room=YOUR_ROOM_CODE",
	})
}
