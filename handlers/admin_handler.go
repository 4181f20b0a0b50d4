// backend/handlers/admin_handler.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gewnthar/feargreed/backend/models"
	"github.com/gewnthar/feargreed/backend/services"
	"github.com/gewnthar/feargreed/backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Helper to respond with JSON
func respondWithJSON(c *gin.Context, code int, payload interface{}) {
	c.JSON(code, payload)
}

// Helper to respond with an error
func respondWithError(c *gin.Context, code int, message string) {
	log.Warn().Int("status", code).Str("path", c.Request.URL.Path).Msg("API Error: " + message)
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

// Ingester triggers ingestion; satisfied by *services.IngestionService.
type Ingester interface {
	IngestToday(ctx context.Context) services.IngestResult
	IngestHistory(ctx context.Context) services.BackfillResult
}

// Purger runs the retention sweep; satisfied by *services.RetentionService.
type Purger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	PurgeExpired(ctx context.Context) (time.Time, int64, error)
}

// RunLister lists recorded job runs.
type RunLister interface {
	ListRuns(ctx context.Context) ([]models.IngestRun, error)
}

type AdminHandler struct {
	ingest    Ingester
	retention Purger
	runs      RunLister
}

func NewAdminHandler(ingest Ingester, retention Purger, runs RunLister) *AdminHandler {
	return &AdminHandler{ingest: ingest, retention: retention, runs: runs}
}

func (h *AdminHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/fetch-now", h.FetchNow)
	router.POST("/fetch-history-now", h.FetchHistoryNow)
	router.POST("/cleanup-old-data", h.CleanupOldData)
	router.GET("/runs", h.ListRuns)
}

// FetchNow ingests today's value. Source failures are reported in the body
// with 200; only a store failure yields 500.
func (h *AdminHandler) FetchNow(c *gin.Context) {
	res := h.ingest.IngestToday(c.Request.Context())
	body := models.IngestResponse{
		Outcome: string(res.Outcome),
		Date:    utils.FormatDate(res.Date),
		Record:  res.Record,
	}
	if res.Err != nil {
		body.Error = res.Err.Error()
	}
	respondWithJSON(c, statusFor(res.Outcome), body)
}

// FetchHistoryNow backfills the provider's historical series.
func (h *AdminHandler) FetchHistoryNow(c *gin.Context) {
	res := h.ingest.IngestHistory(c.Request.Context())
	body := models.BackfillResponse{
		Outcome:  string(res.Outcome),
		Inserted: res.Inserted,
		Skipped:  res.Skipped,
		Invalid:  res.Invalid,
	}
	if res.Err != nil {
		body.Error = res.Err.Error()
	}
	respondWithJSON(c, statusFor(res.Outcome), body)
}

// CleanupOldData purges rows older than the retention window, or older than
// ?before=YYYY-MM-DD when given.
func (h *AdminHandler) CleanupOldData(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		cutoff  time.Time
		deleted int64
		err     error
	)
	if before := c.Query("before"); before != "" {
		cutoff, err = utils.ParseDate(before)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, "Invalid 'before' date, expected YYYY-MM-DD")
			return
		}
		deleted, err = h.retention.PurgeOlderThan(ctx, cutoff)
	} else {
		cutoff, deleted, err = h.retention.PurgeExpired(ctx)
	}
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, "Failed to clean up old data: "+err.Error())
		return
	}
	respondWithJSON(c, http.StatusOK, models.CleanupResponse{Cutoff: utils.FormatDate(cutoff), Deleted: deleted})
}

func (h *AdminHandler) ListRuns(c *gin.Context) {
	runs, err := h.runs.ListRuns(c.Request.Context())
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, "Failed to load ingest runs")
		return
	}
	respondWithJSON(c, http.StatusOK, runs)
}

func statusFor(outcome services.Outcome) int {
	if outcome == services.OutcomeStoreError {
		return http.StatusInternalServerError
	}
	return http.StatusOK
}
