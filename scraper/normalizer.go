// backend/scraper/normalizer.go
package scraper

import (
	"fmt"
	"math"
	"strings"

	"github.com/gewnthar/feargreed/backend/customerrors"
	"github.com/gewnthar/feargreed/backend/models"
	"github.com/rs/zerolog/log"
)

// currentStrategy locates one candidate summary object inside a payload.
type currentStrategy struct {
	name   string
	locate func(*models.RawSourceResponse) *models.SourceData
}

// currentStrategies is tried in order; the first complete candidate wins.
var currentStrategies = []currentStrategy{
	{name: "data", locate: func(r *models.RawSourceResponse) *models.SourceData { return r.Data }},
	{name: "fear_greed", locate: func(r *models.RawSourceResponse) *models.SourceData { return r.FearGreed }},
	{name: "market_momentum_sp500", locate: func(r *models.RawSourceResponse) *models.SourceData { return r.MarketMomentumSP500 }},
}

// HistorySeries is the result of extracting the bulk series.
type HistorySeries struct {
	Tuples  []models.IndexTuple // in payload order
	Skipped int                 // points missing x, y or rating
}

// TruncateScore converts a provider score to the stored integer by truncating toward zero.
// 37.9 becomes 37, not 38.
func TruncateScore(score float64) int {
	return int(math.Trunc(score))
}

// ExtractCurrent returns the current value and the name of the location it came from.
// It returns customerrors.ErrIncompleteSourceData if no location has score, rating and timestamp.
func ExtractCurrent(resp *models.RawSourceResponse) (models.IndexTuple, string, error) {
	if resp == nil {
		return models.IndexTuple{}, "", fmt.Errorf("%w: empty response", customerrors.ErrIncompleteSourceData)
	}
	for _, strategy := range currentStrategies {
		candidate := strategy.locate(resp)
		if candidate == nil {
			continue
		}
		if candidate.Score == nil || candidate.Timestamp == nil || candidate.Rating == nil || strings.TrimSpace(*candidate.Rating) == "" {
			log.Debug().Str("location", strategy.name).Msg("Scraper: candidate present but incomplete, trying next")
			continue
		}
		return models.IndexTuple{
			RecordDate:      candidate.Timestamp.Date(),
			Value:           TruncateScore(*candidate.Score),
			Label:           strings.TrimSpace(*candidate.Rating),
			SourceTimestamp: candidate.Timestamp.Time(),
		}, strategy.name, nil
	}
	return models.IndexTuple{}, "", fmt.Errorf("%w: no complete score/rating/timestamp in data, fear_greed or market_momentum_sp500", customerrors.ErrIncompleteSourceData)
}

// ExtractHistory converts fear_and_greed_historical.data into tuples, skipping incomplete points.
func ExtractHistory(resp *models.RawSourceResponse) (HistorySeries, error) {
	if resp == nil || resp.FearAndGreedHistorical == nil || len(resp.FearAndGreedHistorical.Data) == 0 {
		return HistorySeries{}, fmt.Errorf("%w: no fear_and_greed_historical.data in response", customerrors.ErrIncompleteSourceData)
	}

	points := resp.FearAndGreedHistorical.Data
	series := HistorySeries{Tuples: make([]models.IndexTuple, 0, len(points))}
	for i, point := range points {
		if point.X == nil || point.Y == nil || point.Rating == nil || strings.TrimSpace(*point.Rating) == "" {
			log.Warn().Int("index", i).Stringer("point", point).Msg("Scraper: skipping incomplete historical data point")
			series.Skipped++
			continue
		}
		series.Tuples = append(series.Tuples, models.IndexTuple{
			RecordDate:      point.X.Date(),
			Value:           TruncateScore(*point.Y),
			Label:           strings.TrimSpace(*point.Rating),
			SourceTimestamp: point.X.Time(),
		})
	}

	log.Info().Int("points", len(points)).Int("usable", len(series.Tuples)).Int("skipped", series.Skipped).
		Msg("Scraper: extracted historical series")
	return series, nil
}
