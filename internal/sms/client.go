// Package sms implements the SMS-Activate vendor protocol the factory
// rents numbers through. The API is a single form-encoded endpoint with
// colon-delimited text responses.
package sms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/wintera/fleet/pkg/logger"
)

// Rental is one rented number with its vendor activation id.
type Rental struct {
	Number       string
	ActivationID string
	Country      string
	Service      string
}

var (
	ErrNoNumbers     = errors.New("sms: no numbers available")
	ErrLowBalance    = errors.New("sms: balance too low")
	ErrCodeTimeout   = errors.New("sms: timed out waiting for code")
	ErrCancelled     = errors.New("sms: activation cancelled")
	ErrBadResponse   = errors.New("sms: unexpected vendor response")
	ErrNotConfigured = errors.New("sms: vendor is not configured")
)

const (
	statusOK     = "8" // confirm consumption
	statusCancel = "-1"
)

type Client struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	log          logger.Logger
	pollInterval time.Duration
}

func NewClient(apiKey, baseURL string, log logger.Logger) *Client {
	return &Client{
		apiKey:       apiKey,
		baseURL:      baseURL,
		client:       &http.Client{Timeout: 30 * time.Second},
		log:          log,
		pollInterval: 5 * time.Second,
	}
}

// Configured reports whether a vendor key is present. The factory
// worker skips its tick entirely when it is not.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

func (c *Client) makeRequest(ctx context.Context, params url.Values) (string, error) {
	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("vendor request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return strings.TrimSpace(string(body)), nil
}

// Balance returns the vendor account balance.
func (c *Client) Balance(ctx context.Context) (float64, error) {
	if !c.Configured() {
		return 0, ErrNotConfigured
	}

	params := url.Values{}
	params.Set("action", "getBalance")

	resp, err := c.makeRequest(ctx, params)
	if err != nil {
		return 0, err
	}

	// Response: ACCESS_BALANCE:123.45
	if !strings.HasPrefix(resp, "ACCESS_BALANCE:") {
		return 0, fmt.Errorf("%w: %s", ErrBadResponse, resp)
	}
	balance, err := strconv.ParseFloat(strings.TrimPrefix(resp, "ACCESS_BALANCE:"), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrBadResponse, resp)
	}
	return balance, nil
}

// RentNumber buys a number for the service in the given country.
func (c *Client) RentNumber(ctx context.Context, service, country string) (*Rental, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	params := url.Values{}
	params.Set("action", "getNumber")
	params.Set("service", service)
	params.Set("country", country)

	resp, err := c.makeRequest(ctx, params)
	if err != nil {
		return nil, err
	}

	switch resp {
	case "NO_NUMBERS":
		return nil, ErrNoNumbers
	case "NO_BALANCE":
		return nil, ErrLowBalance
	}

	// Response: ACCESS_NUMBER:<activation id>:<number>
	parts := strings.Split(resp, ":")
	if len(parts) < 3 || parts[0] != "ACCESS_NUMBER" {
		return nil, fmt.Errorf("%w: %s", ErrBadResponse, resp)
	}

	rental := &Rental{
		Number:       parts[2],
		ActivationID: parts[1],
		Country:      country,
		Service:      service,
	}
	c.log.Info("Rented number",
		logger.Field{Key: "phone", Value: logger.MaskPhone(rental.Number)},
		logger.Field{Key: "activation_id", Value: rental.ActivationID})
	return rental, nil
}

// PollCode polls the activation until the SMS code arrives or the
// timeout elapses. Polling uses constant backoff with the vendor's
// recommended interval.
func (c *Client) PollCode(ctx context.Context, activationID string, timeout time.Duration) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var code string
	operation := func() error {
		params := url.Values{}
		params.Set("action", "getStatus")
		params.Set("id", activationID)

		resp, err := c.makeRequest(pollCtx, params)
		if err != nil {
			return err
		}

		switch {
		case resp == "STATUS_WAIT_CODE", resp == "STATUS_WAIT_RESEND":
			return fmt.Errorf("waiting for code")
		case strings.HasPrefix(resp, "STATUS_OK:"):
			code = strings.TrimPrefix(resp, "STATUS_OK:")
			return nil
		case strings.HasPrefix(resp, "STATUS_CANCEL"):
			return backoff.Permanent(ErrCancelled)
		default:
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrBadResponse, resp))
		}
	}

	policy := backoff.WithContext(backoff.NewConstantBackOff(c.pollInterval), pollCtx)
	if err := backoff.Retry(operation, policy); err != nil {
		if pollCtx.Err() != nil {
			return "", ErrCodeTimeout
		}
		return "", err
	}
	return code, nil
}

// Confirm tells the vendor the code was consumed successfully.
func (c *Client) Confirm(ctx context.Context, activationID string) error {
	return c.setStatus(ctx, activationID, statusOK)
}

// Cancel releases the number back to the vendor.
func (c *Client) Cancel(ctx context.Context, activationID string) error {
	return c.setStatus(ctx, activationID, statusCancel)
}

func (c *Client) setStatus(ctx context.Context, activationID, status string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	params := url.Values{}
	params.Set("action", "setStatus")
	params.Set("id", activationID)
	params.Set("status", status)

	resp, err := c.makeRequest(ctx, params)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(resp, "ACCESS_") && !strings.HasPrefix(resp, "STATUS_") {
		return fmt.Errorf("%w: %s", ErrBadResponse, resp)
	}
	return nil
}
