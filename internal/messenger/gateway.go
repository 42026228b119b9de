package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

// GatewayConfig holds the settings for the HTTP messaging gateway.
type GatewayConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Gateway sends messages through an HTTP messaging API. It retries
// transient failures and classifies the gateway's terminal answers into
// the dispatcher's three outcomes.
type Gateway struct {
	cfg   GatewayConfig
	http  *http.Client
	retry resilience.RetryConfig
	log   *zap.Logger
}

func NewGateway(cfg GatewayConfig) *Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("messenger")
	return &Gateway{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.Timeout},
		retry: retry,
		log:   zap.L().With(zap.String("component", "messenger")),
	}
}

type sendRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type sendResponse struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// Send posts one message to the gateway. HTTP 422 means the number is
// invalid; 401 and 403 mean the session is gone and come back as fatal
// errors. Transient statuses are retried before giving up.
func (g *Gateway) Send(ctx context.Context, phone, message string) (Result, error) {
	payload, err := json.Marshal(sendRequest{Phone: phone, Message: message})
	if err != nil {
		return Result{}, eris.Wrap(err, "messenger: encode request")
	}

	return resilience.DoVal(ctx, g.retry, func() (Result, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/messages", bytes.NewReader(payload))
		if err != nil {
			return Result{}, err
		}
		req.Header.Set("Content-Type", "application/json")
		if g.cfg.Token != "" {
			req.Header.Set("Authorization", "Bearer "+g.cfg.Token)
		}
		resp, err := g.http.Do(req)
		if err != nil {
			return Result{}, resilience.Transient(err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return Result{}, resilience.Transient(err)
		}

		switch {
		case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
			var sr sendResponse
			if err := json.Unmarshal(body, &sr); err != nil {
				return Result{}, eris.Wrap(err, "messenger: decode response")
			}
			return Result{Delivered: true, ProviderID: sr.ID}, nil
		case resp.StatusCode == http.StatusUnprocessableEntity:
			g.log.Debug("gateway rejected recipient", zap.String("phone", phone))
			return Result{InvalidRecipient: true}, nil
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return Result{}, Fatal(fmt.Errorf("gateway session rejected with status %d", resp.StatusCode))
		case resilience.IsTransientHTTPStatus(resp.StatusCode):
			return Result{}, resilience.Transient(fmt.Errorf("gateway status %d", resp.StatusCode))
		default:
			return Result{}, fmt.Errorf("gateway status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
		}
	})
}
