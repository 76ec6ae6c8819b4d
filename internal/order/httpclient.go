package order

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/quickbites/challenge-engine/internal/domain"
)

// HTTPGateway reaches the order service over its internal REST surface.
type HTTPGateway struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type HTTPOption func(*HTTPGateway)

func WithTimeout(d time.Duration) HTTPOption {
	return func(g *HTTPGateway) { g.defaultTimeout = d }
}

func WithRetry(max int) HTTPOption {
	return func(g *HTTPGateway) { g.retryMax = max }
}

func NewHTTPGateway(baseURL string, opts ...HTTPOption) *HTTPGateway {
	g := &HTTPGateway{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		defaultTimeout: 5 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type orderStatusResponse struct {
	Status string `json:"status"`
}

type orderCountResponse struct {
	Count int `json:"count"`
}

type challengeStatusRequest struct {
	ChallengeStatus string `json:"challenge_status"`
}

func (g *HTTPGateway) Status(ctx context.Context, orderID string) (domain.OrderStatus, error) {
	var resp orderStatusResponse
	path := "/internal/orders/" + orderID
	if err := g.doJSON(ctx, fasthttp.MethodGet, path, nil, &resp, true); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Status) == "" {
		return "", ErrOrderNotFound
	}
	return domain.OrderStatus(resp.Status), nil
}

func (g *HTTPGateway) CountByUser(ctx context.Context, userID string) (int, error) {
	var resp orderCountResponse
	path := "/internal/users/" + userID + "/orders/count"
	if err := g.doJSON(ctx, fasthttp.MethodGet, path, nil, &resp, true); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (g *HTTPGateway) SetChallengeStatus(ctx context.Context, orderID string, outcome domain.ChallengeOutcome) error {
	path := "/internal/orders/" + orderID + "/challenge-status"
	req := challengeStatusRequest{ChallengeStatus: string(outcome)}
	return g.doJSON(ctx, fasthttp.MethodPut, path, req, nil, false)
}

func (g *HTTPGateway) doJSON(ctx context.Context, method, path string, in, out any, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(g.baseURL + path)
	req.Header.SetContentType("application/json")

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry && g.retryMax > 1 {
		attempts = g.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := g.http.DoDeadline(req, resp, g.deadline(ctx)); err != nil {
			lastErr = fmt.Errorf("order service request: %w", err)
			if attempt == attempts {
				return lastErr
			}
			if err := sleepWithContext(ctx, backoff(attempt)); err != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status == fasthttp.StatusNotFound {
			return ErrOrderNotFound
		}
		if status < 200 || status >= 300 {
			lastErr = fmt.Errorf("order service error: status=%d", status)
			if attempt == attempts || !retryableStatus(status) {
				return lastErr
			}
			if err := sleepWithContext(ctx, backoff(attempt)); err != nil {
				return lastErr
			}
			continue
		}

		if out != nil {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode order service response: %w", err)
			}
		}
		return nil
	}
	return lastErr
}

func (g *HTTPGateway) deadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(g.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func retryableStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
