// Package coinbase lee el precio spot de referencia de los subyacentes.
package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

const (
	defaultBase = "https://api.coinbase.com/v2"

	// 10.000 req/h por IP → ~2.7/s; usamos 2/s.
	spotRatePerSec = 2

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client implementa ports.SpotProvider.
type Client struct {
	http    *http.Client
	base    string
	limiter *rate.Limiter
	now     func() time.Time
}

// NewClient crea un Client. Si base está vacío usa el URL de producción.
func NewClient(base string) *Client {
	if base == "" {
		base = defaultBase
	}
	return &Client{
		http:    &http.Client{Timeout: 5 * time.Second},
		base:    base,
		limiter: rate.NewLimiter(spotRatePerSec, 2),
		now:     time.Now,
	}
}

type spotResponse struct {
	Data struct {
		Amount   string `json:"amount"`
		Base     string `json:"base"`
		Currency string `json:"currency"`
	} `json:"data"`
}

// FetchSpot devuelve el precio spot de asset en USD.
func (c *Client) FetchSpot(ctx context.Context, asset string) (domain.SpotSample, error) {
	var resp spotResponse
	url := fmt.Sprintf("%s/prices/%s-USD/spot", c.base, strings.ToUpper(asset))
	if err := c.doWithRetry(ctx, url, &resp); err != nil {
		return domain.SpotSample{}, fmt.Errorf("coinbase.FetchSpot: %s: %w", asset, err)
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(resp.Data.Amount), 64)
	if err != nil || !(price > 0) {
		return domain.SpotSample{}, fmt.Errorf("coinbase.FetchSpot: %s: %w: amount %q",
			asset, domain.ErrInvalidInput, resp.Data.Amount)
	}
	return domain.SpotSample{Asset: asset, Price: price, Timestamp: c.now().UTC()}, nil
}

// doWithRetry hace un GET con rate limiting y backoff exponencial.
func (c *Client) doWithRetry(ctx context.Context, url string, out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if resp.StatusCode == http.StatusTooManyRequests {
				slog.Warn("coinbase: rate limited by API", "attempt", attempt+1)
			}
			if attempt == maxRetries {
				return fmt.Errorf("status %d after %d retries", resp.StatusCode, maxRetries)
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
