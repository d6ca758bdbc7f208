package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/openmic/karaoke/internal/adapters/signal"
	"github.com/openmic/karaoke/internal/app"
	"github.com/openmic/karaoke/internal/config"
	"github.com/openmic/karaoke/internal/domain"
)

// ClientTokenMiddleware gives every browser a stable session id; the token
// survives websocket reconnects so a refresh keeps the same seat in a room.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, orch *app.Orchestrator) (*gin.Engine, error) {
	ctl, err := signal.NewWSController(orch, cfg.ReadLimit, cfg.PingPeriod)
	if err != nil {
		return nil, err
	}

	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("KaraokeSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": orch.Rooms.List()})
	})

	api.GET("/rooms/:id", func(c *gin.Context) {
		id := domain.RoomID(c.Param("id"))
		room, ok := orch.Rooms.Get(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"id":           room.ID(),
			"member_count": room.MemberCount(),
			"snapshot":     room.Snapshot(),
		})
	})

	// Force-skip the current song, advancing the queue.
	api.POST("/rooms/:id/skip", func(c *gin.Context) {
		id := domain.RoomID(c.Param("id"))
		room, ok := orch.Rooms.Get(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		room.StopVideo()
		room.CycleSongs()
		c.Status(http.StatusNoContent)
	})

	api.DELETE("/rooms/:id", func(c *gin.Context) {
		orch.EvictRoom(domain.RoomID(c.Param("id")))
		c.Status(http.StatusNoContent)
	})

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctl.HandleSignal(ctx, c)
	})

	return r, nil
}
