package webhook

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
)

const (
	requestTimeout = 10 * time.Second
	retryCount     = 2
)

// Client pings uptime monitors after scheduled jobs succeed.
type Client struct {
	http   *resty.Client
	logger *logger.Logger
}

func New(logger *logger.Logger) *Client {
	client := resty.New().
		SetTimeout(requestTimeout).
		SetRetryCount(retryCount).
		SetRetryWaitTime(50 * time.Millisecond).
		SetRetryMaxWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || resp.StatusCode() >= http.StatusInternalServerError
		})
	return &Client{http: client, logger: logger}
}

// CallUptimeWebhook sends a GET to webhookURL and reports whether the monitor
// accepted it. Failures are only logged. An empty URL is a no-op.
func (c *Client) CallUptimeWebhook(ctx context.Context, webhookURL string) bool {
	if webhookURL == "" {
		return false
	}

	resp, err := c.http.R().SetContext(ctx).Get(webhookURL)
	if err != nil {
		c.logger.Error("[CallUptimeWebhook][Get]", map[string]string{
			"url":   webhookURL,
			"error": err.Error(),
		})
		return false
	}
	if resp.IsError() {
		c.logger.Error("[CallUptimeWebhook] unexpected status", map[string]string{
			"url":         webhookURL,
			"status_code": strconv.Itoa(resp.StatusCode()),
			"attempts":    strconv.Itoa(resp.Request.Attempt),
		})
		return false
	}

	c.logger.Debug("[CallUptimeWebhook] ok", map[string]string{
		"url":      webhookURL,
		"duration": resp.Time().String(),
	})
	return true
}
