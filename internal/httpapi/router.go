package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/JoseManaure/portfolio-server/internal/config"
	"github.com/JoseManaure/portfolio-server/internal/geo"
	"github.com/JoseManaure/portfolio-server/internal/httpapi/handlers"
	"github.com/JoseManaure/portfolio-server/internal/httpapi/middleware"
	"github.com/JoseManaure/portfolio-server/internal/relay"
	"github.com/JoseManaure/portfolio-server/internal/store"
)

func NewRouter(engine *relay.Engine, st store.Store, geoClient *geo.Client, cfg config.Config, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery(log))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
	})

	h := handlers.NewHandler(engine, st, geoClient, cfg, log)

	r.GET("/", h.Root)

	api := r.Group("/api")
	api.POST("/chat", h.PostChat)
	api.GET("/chat-sse", h.ChatSSE)
	api.POST("/visitor", h.CreateVisitor)
	api.GET("/history", h.History)

	return r
}
