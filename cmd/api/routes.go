package main

import (
	"net/http"
	"slices"
	"time"

	"callbridge/internal/httpapi"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, gatherer prometheus.Gatherer) {
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	{
		api.GET("/health", h.Health)

		api.POST("/register", h.Register)
		api.POST("/login", h.Login)

		api.POST("/make-call", h.MakeCall)
		api.GET("/call-status/:callId", h.CallStatus)
		api.POST("/end-call/:callId", h.EndCall)
		api.GET("/call-details/:callId", h.CallDetails)
	}
}

// corsConfig allows the browser frontend. "*" in the list allows any origin.
func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	cfg.AllowHeaders = []string{"Content-Type", "Accept", "X-Request-Id"}
	cfg.ExposeHeaders = []string{"X-Request-Id"}
	cfg.MaxAge = 12 * time.Hour
	return cfg
}
