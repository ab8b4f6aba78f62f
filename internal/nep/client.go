package nep

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultAccountURL = "https://nep-api.cloud-thehth.com/v2/account"
	DefaultUsageURL   = "https://nep-api.cloud-thehth.com/v2/usage"
	DefaultTimeout    = 10 * time.Second

	// error bodies are truncated to this many bytes in HTTPError
	maxErrorBody = 512
)

// AccountResponse is the part of the account endpoint response we use
type AccountResponse struct {
	MyAccount *Account `json:"myAccount"`
}

// Account lists the service addresses attached to the login
type Account struct {
	ServiceAddresses []ServiceAddress `json:"serviceAddresses"`
}

// ServiceAddress is a physical location; PremiseID may be absent
type ServiceAddress struct {
	PremiseID string `json:"premiseId,omitempty"`
}

// Client calls the NEP account and usage endpoints with a bearer token
type Client struct {
	accountURL string
	usageURL   string
	client     *http.Client
}

// NewClient creates a client with a fixed per-request timeout
func NewClient(accountURL, usageURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		accountURL: accountURL,
		usageURL:   usageURL,
		client:     &http.Client{Timeout: timeout},
	}
}

// FetchAccount returns the account of the token's owner
func (c *Client) FetchAccount(ctx context.Context, token string) (*AccountResponse, error) {
	body, err := c.post(ctx, "account", c.accountURL, token, nil)
	if err != nil {
		return nil, err
	}

	var acc AccountResponse
	if err := json.Unmarshal(body, &acc); err != nil {
		return nil, &HTTPError{Endpoint: "account", Err: fmt.Errorf("parsing response: %w", err)}
	}
	if acc.MyAccount == nil {
		return nil, &HTTPError{Endpoint: "account", Err: errors.New("response has no myAccount")}
	}
	return &acc, nil
}

// FetchUsage runs a usage query and returns the decoded JSON document.
// Numbers are kept as json.Number.
func (c *Client) FetchUsage(ctx context.Context, token string, q UsageQuery) (interface{}, error) {
	payload, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encoding usage query: %w", err)
	}

	body, err := c.post(ctx, "usage", c.usageURL, token, payload)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, &HTTPError{Endpoint: "usage", Err: fmt.Errorf("parsing response: %w", err)}
	}
	return doc, nil
}

func (c *Client) post(ctx context.Context, endpoint, url, token string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reqBody)
	if err != nil {
		return nil, &HTTPError{Endpoint: endpoint, Err: fmt.Errorf("creating request: %w", err)}
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &HTTPError{Endpoint: endpoint, Timeout: isTimeout(err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &HTTPError{Endpoint: endpoint, Timeout: isTimeout(err), Err: fmt.Errorf("reading response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, &HTTPError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: msg}
	}

	return body, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
