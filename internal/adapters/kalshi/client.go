// Package kalshi lee mercados de Kalshi (contratos "above" y escaleras de
// brackets) y los traduce a ticks canónicos.
package kalshi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBase = "https://api.elections.kalshi.com/trade-api/v2"

	// 20 req/s documentados para lectura; usamos el 60%.
	readRatePerSec = 12
	pageLimit      = 1000

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client es el HTTP client de Kalshi con rate limiting y retries.
type Client struct {
	http    *http.Client
	base    string
	limiter *rate.Limiter
}

// NewClient crea un Client. Si base está vacío usa el URL de producción.
func NewClient(base string) *Client {
	if base == "" {
		base = defaultBase
	}
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		base:    base,
		limiter: rate.NewLimiter(readRatePerSec, 5),
	}
}

// GetEventMarkets devuelve todos los mercados de un evento, paginando.
func (c *Client) GetEventMarkets(ctx context.Context, eventTicker string) ([]Market, error) {
	var all []Market
	cursor := ""
	for {
		q := url.Values{}
		q.Set("event_ticker", eventTicker)
		q.Set("limit", strconv.Itoa(pageLimit))
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var resp marketsResponse
		if err := c.get(ctx, c.base+"/markets?"+q.Encode(), &resp); err != nil {
			return nil, fmt.Errorf("kalshi.GetEventMarkets: %s: %w", eventTicker, err)
		}
		all = append(all, resp.Markets...)
		if resp.Cursor == "" || len(resp.Markets) == 0 {
			return all, nil
		}
		cursor = resp.Cursor
	}
}

// GetSeriesEvents devuelve los tickers de los eventos abiertos de una serie.
func (c *Client) GetSeriesEvents(ctx context.Context, seriesTicker string) ([]string, error) {
	q := url.Values{}
	q.Set("series_ticker", seriesTicker)
	q.Set("status", "open")

	var resp eventsResponse
	if err := c.get(ctx, c.base+"/events?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("kalshi.GetSeriesEvents: %s: %w", seriesTicker, err)
	}
	out := make([]string, 0, len(resp.Events))
	for _, e := range resp.Events {
		out = append(out, e.EventTicker)
	}
	return out, nil
}

// get hace un GET con rate limiting y retries.
func (c *Client) get(ctx context.Context, url string, out any) error {
	return c.doWithRetry(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	}, out)
}

// doWithRetry ejecuta la función con backoff exponencial.
func (c *Client) doWithRetry(ctx context.Context, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("kalshi: rate limited by API", "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
