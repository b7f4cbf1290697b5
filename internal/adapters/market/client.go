package market

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/alejandrodnm/pariwager/internal/domain"
	"golang.org/x/time/rate"
)

const (
	defaultBase    = "https://api.pariwager.app/v1"
	defaultTimeout = 10 * time.Second

	// Lecturas: polling de odds de varios eventos + gossip.
	readRatePerSec = 20
	// Escrituras: apuestas y mensajes, nunca en ráfaga.
	writeRatePerSec = 5

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client es el HTTP client de la Market API y la Social API, con rate limiting y retries.
type Client struct {
	http         *http.Client
	base         string
	token        string
	readLimiter  *rate.Limiter
	writeLimiter *rate.Limiter
}

// NewClient crea un Client. base vacío usa el URL de producción, timeout <= 0 usa 10s.
func NewClient(base, token string, timeout time.Duration) *Client {
	if base == "" {
		base = defaultBase
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		http:         &http.Client{Timeout: timeout},
		base:         strings.TrimRight(base, "/"),
		token:        token,
		readLimiter:  rate.NewLimiter(readRatePerSec, 10),
		writeLimiter: rate.NewLimiter(writeRatePerSec, 2),
	}
}

// get hace un GET con rate limiting y retries.
func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.doWithRetry(ctx, c.readLimiter, maxRetries, func() (*http.Response, error) {
		req, err := c.newRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}
		return c.http.Do(req)
	}, out)
}

// post hace un POST JSON. retries = 0 para operaciones no idempotentes (apuestas).
func (c *Client) post(ctx context.Context, path string, retries int, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	return c.doWithRetry(ctx, c.writeLimiter, retries, func() (*http.Response, error) {
		req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return c.http.Do(req)
	}, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// doWithRetry ejecuta la función con backoff exponencial.
// Fallos de transporte, 429 y 5xx se reintentan y terminan en domain.ErrNetwork;
// los 4xx son rechazos de negocio y nunca se reintentan.
func (c *Client) doWithRetry(ctx context.Context, limiter *rate.Limiter, retries int, fn func() (*http.Response, error), out any) error {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			c.sleep(ctx, attempt, retries)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("http %d", resp.StatusCode)
			if resp.StatusCode == http.StatusTooManyRequests {
				slog.Warn("rate limited by API", "attempt", attempt+1)
			}
			c.sleep(ctx, attempt, retries)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return rejection(resp.StatusCode, body)
		}

		defer resp.Body.Close()
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("%w: after %d retries: %w", domain.ErrNetwork, retries, lastErr)
}

// sleep espera con backoff exponencial, respetando el contexto. No duerme tras el último intento.
func (c *Client) sleep(ctx context.Context, attempt, retries int) {
	if attempt >= retries {
		return
	}
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

// rejection convierte un 4xx en un error de dominio con el mensaje del servidor.
func rejection(status int, body []byte) error {
	var e errorResponse
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Message != "" {
			msg = e.Message
		} else if e.Error != "" {
			msg = e.Error
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	rejected := &domain.RemoteRejectedError{Message: msg}
	if e.Code == "insufficient_balance" {
		return errors.Join(domain.ErrInsufficientBalance, rejected)
	}
	return rejected
}
