// backend/handlers/index_handler.go
package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gewnthar/feargreed/backend/models"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	defaultHistoryDays = 7
	defaultExportDays  = 30
)

// IndexQuerier serves read requests; satisfied by *services.QueryService.
type IndexQuerier interface {
	GetOrCreateToday(ctx context.Context) (*models.IndexRecord, error)
	GetLastNDays(ctx context.Context, n int) ([]models.IndexRecord, error)
	GetByMonth(ctx context.Context, year, month int) ([]models.IndexRecord, error)
	ExportCSV(ctx context.Context, w io.Writer, n int) error
}

type IndexHandler struct {
	query IndexQuerier
}

func NewIndexHandler(query IndexQuerier) *IndexHandler {
	return &IndexHandler{query: query}
}

func (h *IndexHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/today", h.GetToday)
	router.GET("/history", h.GetHistory)
	router.GET("/history-by-month", h.GetHistoryByMonth)
	router.GET("/export.csv", h.ExportCSV)
}

// GetToday returns today's record, fetching it on demand. 404 means not available yet.
func (h *IndexHandler) GetToday(c *gin.Context) {
	rec, err := h.query.GetOrCreateToday(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Handler: failed to load today's index")
		respondWithError(c, http.StatusInternalServerError, "Failed to load today's index")
		return
	}
	if rec == nil {
		respondWithError(c, http.StatusNotFound, "Today's index is not available yet")
		return
	}
	respondWithJSON(c, http.StatusOK, rec)
}

// GetHistory handles GET /history?days=N (default 7).
func (h *IndexHandler) GetHistory(c *gin.Context) {
	days, ok := intQuery(c, "days", defaultHistoryDays)
	if !ok {
		return
	}
	records, err := h.query.GetLastNDays(c.Request.Context(), days)
	if err != nil {
		log.Error().Err(err).Int("days", days).Msg("Handler: failed to load history")
		respondWithError(c, http.StatusInternalServerError, "Failed to load history")
		return
	}
	respondWithJSON(c, http.StatusOK, records)
}

// GetHistoryByMonth handles GET /history-by-month?year=YYYY&month=M. Both parameters are required.
func (h *IndexHandler) GetHistoryByMonth(c *gin.Context) {
	if c.Query("year") == "" || c.Query("month") == "" {
		respondWithError(c, http.StatusBadRequest, "Query parameters 'year' and 'month' are required")
		return
	}
	year, ok := intQuery(c, "year", 0)
	if !ok {
		return
	}
	month, ok := intQuery(c, "month", 0)
	if !ok {
		return
	}
	records, err := h.query.GetByMonth(c.Request.Context(), year, month)
	if err != nil {
		log.Error().Err(err).Int("year", year).Int("month", month).Msg("Handler: failed to load month")
		respondWithError(c, http.StatusInternalServerError, "Failed to load history for month")
		return
	}
	respondWithJSON(c, http.StatusOK, records)
}

// ExportCSV streams the last N days (default 30) as text/csv.
func (h *IndexHandler) ExportCSV(c *gin.Context) {
	days, ok := intQuery(c, "days", defaultExportDays)
	if !ok {
		return
	}
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="fear-greed.csv"`)
	if err := h.query.ExportCSV(c.Request.Context(), c.Writer, days); err != nil {
		log.Error().Err(err).Int("days", days).Msg("Handler: CSV export failed")
		if !c.Writer.Written() {
			c.Writer.Header().Del("Content-Disposition")
			c.Writer.Header().Del("Content-Type")
			respondWithError(c, http.StatusInternalServerError, "Failed to export CSV")
		}
		return
	}
	c.Status(http.StatusOK)
}

// intQuery reads an integer query parameter, writing a 400 and returning false if it is malformed.
func intQuery(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, "Query parameter '"+name+"' must be an integer")
		return 0, false
	}
	return v, true
}
