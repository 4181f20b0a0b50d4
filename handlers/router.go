// backend/handlers/router.go
package handlers

import (
	"github.com/gewnthar/feargreed/backend/config"
	"github.com/gin-gonic/gin"
)

// Querier is satisfied by *services.QueryService.
type Querier interface {
	IndexQuerier
	RunLister
}

// Dependencies groups what the router needs to serve every route.
type Dependencies struct {
	DB        Pinger
	Query     Querier
	Ingest    Ingester
	Retention Purger
}

func SetupRouter(cfg config.ServerConfig, deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(RecoveryMiddleware, ZerologMiddleware(), CORS(cfg))

	api := r.Group("/api")
	{
		NewHealthHandler(deps.DB).RegisterRoutes(api)

		NewIndexHandler(deps.Query).RegisterRoutes(api.Group("/fear-greed"))

		admin := api.Group("/admin")
		admin.Use(RateLimiter(cfg.AdminRateLimit, cfg.AdminBurst))
		NewAdminHandler(deps.Ingest, deps.Retention, deps.Query).RegisterRoutes(admin)
	}

	return r
}
