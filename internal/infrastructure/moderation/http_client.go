package moderation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/honeynil/ReWearExchange/internal/models"
	"github.com/sony/gobreaker"
)

type HTTPGateway struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

type moderateRequest struct {
	ImageBase64 string `json:"image_base64"`
	Category    string `json:"category"`
	Brand       string `json:"brand"`
	Title       string `json:"title"`
}

type moderateResponse struct {
	Verdict    string  `json:"verdict"`
	ReasonCode string  `json:"reason_code"`
	Confidence float64 `json:"confidence"`
}

func NewHTTPGateway(url string, timeout time.Duration) *HTTPGateway {
	settings := gobreaker.Settings{
		Name:        "moderation",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &HTTPGateway{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (g *HTTPGateway) Moderate(ctx context.Context, req Request) (models.ModerationResult, error) {
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.call(ctx, req)
	})
	if err != nil {
		return models.ModerationResult{}, fmt.Errorf("moderation call failed: %w", err)
	}
	return out.(models.ModerationResult), nil
}

func (g *HTTPGateway) call(ctx context.Context, req Request) (models.ModerationResult, error) {
	body, err := json.Marshal(moderateRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(req.Image),
		Category:    req.Category,
		Brand:       req.Brand,
		Title:       req.Title,
	})
	if err != nil {
		return models.ModerationResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return models.ModerationResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return models.ModerationResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.ModerationResult{}, fmt.Errorf("classifier returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var decoded moderateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return models.ModerationResult{}, fmt.Errorf("failed to decode classifier response: %w", err)
	}

	result := models.ModerationResult{
		Verdict:    models.Verdict(decoded.Verdict),
		ReasonCode: decoded.ReasonCode,
		Confidence: decoded.Confidence,
	}
	switch result.Verdict {
	case models.VerdictApproved, models.VerdictRejected, models.VerdictNeedsReview:
	case "pending":
		result.Verdict = models.VerdictNeedsReview
	default:
		slog.Warn("unknown moderation verdict", "verdict", decoded.Verdict)
		result.Verdict = models.VerdictNeedsReview
	}
	return result, nil
}
