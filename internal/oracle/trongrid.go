package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/dwarvesf/escrow-backend/internal/utils/config"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
)

const (
	transferEventName = "Transfer"
	apiKeyHeader      = "TRON-PRO-API-KEY"
)

type tronGrid struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	logger     *logger.Logger
	maxRetries int
	retryDelay time.Duration
}

func NewTronGrid(cfg *config.AppConfig, logger *logger.Logger) ITronGrid {
	return &tronGrid{
		baseURL:    cfg.Tron.APIURL,
		apiKey:     cfg.Tron.APIKey,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// GetTransferEvents returns the TRC20 transfers emitted by a transaction. An
// unknown or unconfirmed transaction yields an empty slice.
func (c *tronGrid) GetTransferEvents(ctx context.Context, txHash string) ([]TransferEvent, error) {
	url := fmt.Sprintf("%s/v1/transactions/%s/events", c.baseURL, txHash)

	body, err := c.get(ctx, "GetTransferEvents", url)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return []TransferEvent{}, nil
	}

	var resp tronGridEventsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.logger.Error("[GetTransferEvents][json.Unmarshal]", map[string]string{
			"error": err.Error(),
			"body":  string(body),
		})
		return nil, errors.Wrap(err, "parse trongrid events")
	}
	if !resp.Success {
		return nil, errors.Errorf("trongrid events request failed: %s", resp.Error)
	}

	transfers := make([]TransferEvent, 0, len(resp.Data))
	for _, ev := range resp.Data {
		if ev.EventName != transferEventName {
			continue
		}

		transfer, err := parseTransfer(ev)
		if err != nil {
			c.logger.Error("[GetTransferEvents][parseTransfer]", map[string]string{
				"tx_hash": txHash,
				"error":   err.Error(),
			})
			continue
		}
		transfers = append(transfers, transfer)
	}

	return transfers, nil
}

func (c *tronGrid) Ping(ctx context.Context) error {
	_, err := c.get(ctx, "Ping", fmt.Sprintf("%s/wallet/getnowblock", c.baseURL))
	return err
}

// get retries transport errors, 429 and 5xx responses. A 404 returns a nil body.
func (c *tronGrid) get(ctx context.Context, fn, url string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt-1) * c.retryDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, errors.Wrap(err, "create request")
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set(apiKeyHeader, c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("failed to request trongrid: %v", err)
			c.logger.Error(fmt.Sprintf("[%s][client.Do]", fn), map[string]string{
				"error":   err.Error(),
				"attempt": strconv.Itoa(attempt),
			})
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %v", err)
			c.logger.Error(fmt.Sprintf("[%s][io.ReadAll]", fn), map[string]string{
				"error":   err.Error(),
				"attempt": strconv.Itoa(attempt),
			})
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusNotFound:
			return nil, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("status code: %d, body: %s", resp.StatusCode, string(body))
			c.logger.Error(fmt.Sprintf("[%s] retryable status", fn), map[string]string{
				"statusCode": strconv.Itoa(resp.StatusCode),
				"attempt":    strconv.Itoa(attempt),
			})
			continue
		default:
			return nil, fmt.Errorf("status code: %d, body: %s", resp.StatusCode, string(body))
		}
	}

	return nil, lastErr
}

func parseTransfer(ev tronGridEvent) (TransferEvent, error) {
	from, err := toBase58Address(ev.Result["from"])
	if err != nil {
		return TransferEvent{}, err
	}
	to, err := toBase58Address(ev.Result["to"])
	if err != nil {
		return TransferEvent{}, err
	}
	value, err := decimal.NewFromString(ev.Result["value"])
	if err != nil {
		return TransferEvent{}, errors.Wrap(err, "parse transfer value")
	}

	return TransferEvent{
		TxHash:          ev.TransactionID,
		ContractAddress: ev.ContractAddress,
		From:            from,
		To:              to,
		Value:           value,
		BlockNumber:     ev.BlockNumber,
	}, nil
}
