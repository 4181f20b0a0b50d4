// backend/models/source.go
package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gewnthar/feargreed/backend/utils"
)

// RawSourceResponse is the provider payload for both /graphdata and /graphdata/{date}.
// The same logical "current" value may appear under any of the first three keys.
type RawSourceResponse struct {
	Data                   *SourceData        `json:"data"`
	FearGreed              *SourceData        `json:"fear_greed"`
	MarketMomentumSP500    *SourceData        `json:"market_momentum_sp500"`
	FearAndGreedHistorical *HistoricalWrapper `json:"fear_and_greed_historical"`
}

// SourceData is a summary object: current score plus previous closes.
type SourceData struct {
	Score         *float64     `json:"score"`
	Rating        *string      `json:"rating"`
	Timestamp     *EpochMillis `json:"timestamp"`
	PreviousClose *float64     `json:"previous_close"`
	PreviousWeek  *float64     `json:"previous_week"`
	PreviousMonth *float64     `json:"previous_month"`
	PreviousYear  *float64     `json:"previous_year"`
}

// HistoricalWrapper holds the bulk series under fear_and_greed_historical.
type HistoricalWrapper struct {
	Timestamp *EpochMillis      `json:"timestamp"`
	Score     *float64          `json:"score"`
	Rating    *string           `json:"rating"`
	Data      []HistoricalPoint `json:"data"`
}

// HistoricalPoint is one series entry: x is epoch millis, y the fractional score.
type HistoricalPoint struct {
	X      *EpochMillis `json:"x"`
	Y      *float64     `json:"y"`
	Rating *string      `json:"rating"`
}

// UnmarshalJSON decodes each field on its own. A field that is missing or has
// the wrong type is left nil, so one bad point does not reject the whole series.
func (p *HistoricalPoint) UnmarshalJSON(b []byte) error {
	*p = HistoricalPoint{}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil || fields == nil {
		return nil
	}
	if raw, ok := fields["x"]; ok {
		var x EpochMillis
		if err := json.Unmarshal(raw, &x); err == nil && string(raw) != "null" {
			p.X = &x
		}
	}
	if raw, ok := fields["y"]; ok {
		var y *float64
		if err := json.Unmarshal(raw, &y); err == nil {
			p.Y = y
		}
	}
	if raw, ok := fields["rating"]; ok {
		var r *string
		if err := json.Unmarshal(raw, &r); err == nil {
			p.Rating = r
		}
	}
	return nil
}

func (p HistoricalPoint) String() string {
	var x, y, r string = "<nil>", "<nil>", "<nil>"
	if p.X != nil {
		x = strconv.FormatInt(int64(*p.X), 10)
	}
	if p.Y != nil {
		y = strconv.FormatFloat(*p.Y, 'f', -1, 64)
	}
	if p.Rating != nil {
		r = strconv.Quote(*p.Rating)
	}
	return fmt.Sprintf("{x:%s y:%s rating:%s}", x, y, r)
}

// EpochMillis is a provider timestamp in milliseconds since the epoch.
// The provider is inconsistent: integers, floats (1.7e12), numeric strings
// and RFC 3339 strings all occur.
type EpochMillis int64

// Time returns the timestamp in UTC.
func (m EpochMillis) Time() time.Time {
	return time.UnixMilli(int64(m)).UTC()
}

// Date returns the UTC calendar date the timestamp falls on.
func (m EpochMillis) Date() time.Time {
	return utils.DateFromMillis(int64(m))
}

func (m *EpochMillis) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			*m = EpochMillis(int64(f))
			return nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("unsupported timestamp %q: %w", s, err)
		}
		*m = EpochMillis(t.UnixMilli())
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("unsupported timestamp %s: %w", raw, err)
	}
	*m = EpochMillis(int64(f))
	return nil
}
