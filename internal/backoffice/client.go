// Package backoffice forwards operator actions to the back-office command
// endpoint, the system of record for agreements and reservations.
package backoffice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/config"
	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/logger"
	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/schedule"
)

// ErrRejected is returned when the back-office answers with a non-zero
// application code.
var ErrRejected = errors.New("back office rejected command")

// Command is the JSON body posted for every action.
type Command struct {
	Action    schedule.Action `json:"action"`
	EventID   string          `json:"event_id"`
	Kind      schedule.Kind   `json:"kind"`
	Status    string          `json:"status"`
	VehicleID string          `json:"vehicle_id,omitempty"`
	Start     time.Time       `json:"start"`
	End       time.Time       `json:"end"`
	ShortNo   string          `json:"short_no,omitempty"`
	Operator  string          `json:"operator,omitempty"`
}

// Response models the back-office reply.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type operatorKey struct{}

// WithOperator attaches the acting operator to ctx.
func WithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, operatorKey{}, operator)
}

// OperatorFrom returns the operator attached by WithOperator.
func OperatorFrom(ctx context.Context) string {
	op, _ := ctx.Value(operatorKey{}).(string)
	return op
}

// Client posts commands to the back-office. It implements
// schedule.CommandHandler.
type Client struct {
	url     string
	headers map[string]string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient builds a client from cfg. An invalid proxy URL is logged and
// ignored.
func NewClient(cfg config.BackOfficeConfig, log zerolog.Logger) *Client {
	log = logger.Component(log, "backoffice")

	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Warn().Err(err).Str("proxy", cfg.HTTPProxy).Msg("invalid proxy URL, not using a proxy")
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{Transport: transport, Timeout: timeout},
		log:     log,
	}
}

// Handle implements schedule.CommandHandler.
func (c *Client) Handle(ctx context.Context, action schedule.Action, e schedule.Event) error {
	cmd := Command{
		Action:    action,
		EventID:   e.ID,
		Kind:      e.Kind,
		Status:    e.Status,
		VehicleID: e.VehicleID,
		Start:     e.Interval.Start,
		End:       e.Interval.End,
		ShortNo:   e.ShortNo,
		Operator:  OperatorFrom(ctx),
	}
	resp, err := c.post(ctx, cmd)
	if err != nil {
		c.log.Error().Err(err).Str("action", string(action)).Str("event_id", e.ID).Msg("command failed")
		return err
	}
	if resp.Code != 0 {
		c.log.Warn().Str("action", string(action)).Str("event_id", e.ID).Int("code", resp.Code).Msg("command rejected")
		return fmt.Errorf("%w: code %d: %s", ErrRejected, resp.Code, resp.Message)
	}
	c.log.Info().Str("action", string(action)).Str("event_id", e.ID).Msg("command accepted")
	return nil
}

func (c *Client) post(ctx context.Context, cmd Command) (*Response, error) {
	jsonBody, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	if cmd.Operator != "" {
		req.Header.Set("X-Operator-ID", cmd.Operator)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("received non-2xx status code: %d", resp.StatusCode)
	}

	var out Response
	if len(bytes.TrimSpace(body)) == 0 {
		return &out, nil
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal back office response: %w", err)
	}
	return &out, nil
}
