package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// HTTPOrderService submits orders to the bearer-authenticated order
// endpoint. A non-2xx answer becomes a *RejectionError carrying the
// backend's detail verbatim; transport failures propagate wrapped.
type HTTPOrderService struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

type ClientOption func(*HTTPOrderService)

func WithHTTPClient(client *http.Client) ClientOption {
	return func(s *HTTPOrderService) {
		s.client = client
	}
}

func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(s *HTTPOrderService) {
		s.logger = logger
	}
}

func NewHTTPOrderService(url string, opts ...ClientOption) *HTTPOrderService {
	s := &HTTPOrderService{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPOrderService) Submit(ctx context.Context, token string, payload OrderPayload) (*Confirmation, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode order payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit order: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RejectionError{Reason: rejectionReason(resp)}
	}

	var confirmation Confirmation
	if err := json.NewDecoder(resp.Body).Decode(&confirmation); err != nil {
		return nil, fmt.Errorf("decode order confirmation: %w", err)
	}
	return &confirmation, nil
}

// rejectionReason extracts the backend's {detail} message, falling back to
// the HTTP status when the body carries none.
func rejectionReason(resp *http.Response) string {
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Detail != "" {
		return body.Detail
	}
	return http.StatusText(resp.StatusCode)
}
