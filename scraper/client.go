// backend/scraper/client.go
package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gewnthar/feargreed/backend/config"
	"github.com/gewnthar/feargreed/backend/customerrors"
	"github.com/gewnthar/feargreed/backend/models"
	"github.com/gewnthar/feargreed/backend/utils"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// Client fetches the CNN Fear & Greed graph data.
type Client struct {
	client *resty.Client
}

// NewClient builds a client with the browser-like headers the provider insists on.
func NewClient(cfg config.SourceConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r != nil && (r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500)
		}).
		SetHeaders(map[string]string{
			"User-Agent":      cfg.UserAgent,
			"Accept":          "application/json",
			"Accept-Language": "en-US,en;q=0.9",
			"Accept-Encoding": "gzip, br",
			"Referer":         cfg.Referer,
		}).
		OnAfterResponse(DecompressMiddleware)

	return &Client{client: client}
}

// FetchDaily calls GET {base}/graphdata/{YYYY-MM-DD}.
func (c *Client) FetchDaily(ctx context.Context, date time.Time) (*models.RawSourceResponse, error) {
	return c.get(ctx, "/graphdata/"+utils.FormatDate(date))
}

// FetchHistory calls GET {base}/graphdata, which carries the full historical series.
func (c *Client) FetchHistory(ctx context.Context) (*models.RawSourceResponse, error) {
	return c.get(ctx, "/graphdata")
}

func (c *Client) get(ctx context.Context, path string) (*models.RawSourceResponse, error) {
	log.Debug().Str("path", path).Msg("Scraper: requesting index data")

	resp, err := c.client.R().SetContext(ctx).Get(path)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", customerrors.ErrTransportFailure, path, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: GET %s returned status %d", customerrors.ErrTransportFailure, path, resp.StatusCode())
	}

	body := resp.Body()
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, fmt.Errorf("%w: GET %s returned an empty body", customerrors.ErrIncompleteSourceData, path)
	}

	var payload models.RawSourceResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: GET %s returned malformed JSON: %w", customerrors.ErrIncompleteSourceData, path, err)
	}

	log.Debug().Str("path", path).Int("bytes", len(body)).Dur("latency", resp.Time()).Msg("Scraper: received index data")
	return &payload, nil
}
