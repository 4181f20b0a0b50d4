// backend/handlers/health_handler.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Pinger reports database reachability; satisfied by *database.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.Health)
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		log.Error().Err(err).Msg("Health check failed: DB ping error")
		respondWithJSON(c, http.StatusServiceUnavailable, gin.H{"status": "error", "message": "database connection error"})
		return
	}
	respondWithJSON(c, http.StatusOK, gin.H{"status": "ok", "message": "Fear & Greed backend is healthy"})
}
