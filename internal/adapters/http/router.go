// Package http wires the gin routes: the WebSocket endpoint plus the trivial
// liveness and service-info responders.
package http

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/pairbooth/signaling/internal/adapters/signal"
	"github.com/pairbooth/signaling/internal/app"
	"github.com/pairbooth/signaling/internal/config"
	"github.com/pairbooth/signaling/internal/domain"
)

func SetupRouter(ctx context.Context, cfg *config.Config, dir *app.Directory) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	corsCfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Upgrade", "Connection"},
		MaxAge:       24 * time.Hour,
	}
	if slices.Contains(cfg.AllowOrigins, "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowOrigins
	}
	r.Use(cors.New(corsCfg))

	ctl := signal.NewController(dir, cfg)

	// Room codes are validated before any upgrade happens: an invalid code
	// must never reach a room unit.
	r.GET("/ws", func(c *gin.Context) {
		raw := c.Query("room")
		if raw == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing room parameter"})
			return
		}
		code, err := domain.ParseRoomCode(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid room code"})
			return
		}
		ctl.Handle(ctx, c, code)
	})

	r.GET("/health", handleHealth(dir))
	r.GET("/", handleInfo)
	r.GET("/api", handleInfo)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not Found"})
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
