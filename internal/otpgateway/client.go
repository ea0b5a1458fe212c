// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexiduel Contributors

// Package otpgateway is a client for the external OTP delivery and
// verification service. The gateway speaks form-encoded POST requests and
// answers with a JSON body whose "status" field signals the outcome.
package otpgateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"
)

// RequestTimeout bounds every gateway round-trip. The handling worker
// blocks for at most this long; no database locks may be held meanwhile.
const RequestTimeout = 15 * time.Second

// Channel is an OTP delivery channel.
type Channel string

// Supported delivery channels.
const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelEmail    Channel = "email"
)

// Valid reports whether the channel is one of the supported set.
func (c Channel) Valid() bool {
	return c == ChannelWhatsApp || c == ChannelEmail
}

// Client is a stateless HTTP client for the OTP gateway. It performs no
// retries; retry policy, if any, belongs to the caller.
type Client struct {
	endpoint   string
	authHeader string
	httpClient *http.Client
}

// NewClient creates a gateway client. A missing endpoint URL is a
// configuration error, not a per-request failure.
func NewClient(endpoint, authHeader string) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, oops.Code("CONFIG_INVALID").Errorf("OTP gateway endpoint URL is required")
	}
	return &Client{
		endpoint:   endpoint,
		authHeader: strings.TrimSpace(authHeader),
		httpClient: &http.Client{Timeout: RequestTimeout},
	}, nil
}

// Dispatch asks the gateway to generate and deliver an OTP code to the
// identifier over the given channel. Any transport error, non-2xx status,
// malformed body, or non-success status field is a gateway error.
func (c *Client) Dispatch(ctx context.Context, channel Channel, identifier string) error {
	if !channel.Valid() {
		return oops.Code("OTP_INVALID_CHANNEL").
			With("channel", string(channel)).
			Errorf("invalid OTP channel")
	}
	if identifier == "" {
		return oops.Code("OTP_INVALID_IDENTIFIER").Errorf("identifier cannot be empty")
	}

	form := url.Values{
		"GenerateOTP":  {"yes"},
		"type":         {string(channel)},
		"email_mobile": {identifier},
	}

	ok, err := c.post(ctx, form)
	if err != nil {
		return err
	}
	if !ok {
		return oops.Code("OTP_GATEWAY_FAILED").Errorf("OTP gateway did not return success")
	}
	return nil
}

// VerifyCode asks the gateway whether the code matches the one it delivered
// to the identifier. A definitive gateway "no" returns (false, nil);
// anything that prevents a definitive answer is an error.
func (c *Client) VerifyCode(ctx context.Context, identifier, otp string) (bool, error) {
	if identifier == "" {
		return false, oops.Code("OTP_INVALID_IDENTIFIER").Errorf("identifier cannot be empty")
	}
	if otp == "" {
		return false, oops.Code("OTP_INVALID_CODE").Errorf("OTP value cannot be empty")
	}

	// Field name spelling is the gateway's contract, typo included.
	form := url.Values{
		"login_verfication": {"yes"},
		"email_mobile":      {identifier},
		"otp":               {otp},
		"password":          {""},
	}

	return c.post(ctx, form)
}

// statusBody is the JSON envelope every gateway response carries.
type statusBody struct {
	Status string `json:"status"`
}

// post sends the form and reports whether the response status field equals
// "success" (case-insensitive).
func (c *Client) post(ctx context.Context, form url.Values) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, oops.Code("OTP_GATEWAY_FAILED").
			With("operation", "build request").
			Wrap(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if c.authHeader != "" {
		req.Header.Set("Authorization", c.authHeader)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, oops.Code("OTP_GATEWAY_FAILED").
			With("operation", "reach gateway").
			Wrap(err)
	}
	defer resp.Body.Close() //nolint:errcheck // response body close failure is not actionable

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, oops.Code("OTP_GATEWAY_FAILED").
			With("status_code", resp.StatusCode).
			Errorf("OTP gateway returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, oops.Code("OTP_GATEWAY_FAILED").
			With("operation", "read response").
			Wrap(err)
	}

	var parsed statusBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return false, oops.Code("OTP_GATEWAY_FAILED").
			With("operation", "decode response").
			Wrap(err)
	}

	return strings.EqualFold(strings.TrimSpace(parsed.Status), "success"), nil
}

// GatewayError wraps a failure at the gateway boundary so IsGatewayError
// recognizes it.
func GatewayError(operation string, err error) error {
	return oops.Code("OTP_GATEWAY_FAILED").
		With("operation", operation).
		Wrap(err)
}

// IsGatewayError reports whether an error came from the gateway boundary,
// as opposed to a local validation failure.
func IsGatewayError(err error) bool {
	oopsErr, ok := oops.AsOops(err)
	return ok && oopsErr.Code() == "OTP_GATEWAY_FAILED"
}
