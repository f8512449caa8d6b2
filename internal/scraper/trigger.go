// Package scraper asks the topic-discovery service to gather fresh material
// for a topic before the post is generated.
package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"postgen/internal/domain"
)

const (
	DefaultTimeout = 30 * time.Second
	topicPath      = "/scrape/topic"
)

// ErrNoJobID is returned when the service accepts the request without an id.
var ErrNoJobID = errors.New("scraper: response carried no job_id")

type topicRequest struct {
	UserID string `json:"user_id"`
	Topic  string `json:"topic"`
}

type topicResponse struct {
	JobID string `json:"job_id"`
}

type HTTPOptions struct {
	BaseURL    string
	HTTPClient *http.Client
}

// HTTPTrigger calls POST {base}/scrape/topic.
type HTTPTrigger struct {
	baseURL string
	client  *http.Client
}

func NewHTTPTrigger(opts HTTPOptions) (*HTTPTrigger, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("scraper: base url is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &HTTPTrigger{baseURL: base, client: client}, nil
}

func (t *HTTPTrigger) StartTopicScrape(ctx context.Context, userID, topic string) (string, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(topicRequest{UserID: userID, Topic: topic}); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+topicPath, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("scraper: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("scraper: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out topicResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("scraper: decode response: %w", err)
	}
	if out.JobID == "" {
		return "", ErrNoJobID
	}
	return out.JobID, nil
}

// Requester is the request-reply half of the bus client.
type Requester interface {
	RequestJSON(ctx context.Context, subject string, v, out any) error
}

// BusTrigger sends the same payload as HTTPTrigger as a NATS request.
type BusTrigger struct {
	bus     Requester
	subject string
}

func NewBusTrigger(bus Requester, subject string) *BusTrigger {
	return &BusTrigger{bus: bus, subject: subject}
}

func (t *BusTrigger) StartTopicScrape(ctx context.Context, userID, topic string) (string, error) {
	var out topicResponse
	if err := t.bus.RequestJSON(ctx, t.subject, topicRequest{UserID: userID, Topic: topic}, &out); err != nil {
		return "", fmt.Errorf("scraper: %w", err)
	}
	if out.JobID == "" {
		return "", ErrNoJobID
	}
	return out.JobID, nil
}

var (
	_ domain.ScrapeTrigger = (*HTTPTrigger)(nil)
	_ domain.ScrapeTrigger = (*BusTrigger)(nil)
)
