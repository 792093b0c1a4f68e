package main

import (
	"banking-portal/internal/httpapi"

	"github.com/gin-gonic/gin"
)

// apiPrefix is where the backend REST API is mounted on the gateway.
const apiPrefix = "/v1/api"

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, opts httpapi.RouteOptions) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	h.Register(r, opts)
}
