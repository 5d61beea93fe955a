// Package vaultclient is a typed client for the vault HTTP API
package vaultclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"cosmossdk.io/math"

	apitypes "github.com/openalpha/epoch-vault/api/types"
	strategytypes "github.com/openalpha/epoch-vault/x/strategy/types"
	vaulttypes "github.com/openalpha/epoch-vault/x/vault/types"
)

// Config holds client configuration
type Config struct {
	BaseURL       string
	Timeout       time.Duration // Per request
	RetryAttempts int           // Extra attempts for reads on transport errors and 5xx
	RetryBackoff  time.Duration // Doubled after every failed attempt

	// APIKey is sent as X-API-Key; allocation calls need an operator key
	APIKey string
}

// DefaultConfig returns the configuration for a local vault-api
func DefaultConfig() *Config {
	return &Config{
		BaseURL:       "http://localhost:8080",
		Timeout:       10 * time.Second,
		RetryAttempts: 2,
		RetryBackoff:  200 * time.Millisecond,
	}
}

const apiKeyHeader = "X-API-Key"

// ErrUnreachable wraps transport failures
var ErrUnreachable = errors.New("vault api unreachable")

// APIError is a non-2xx reply from the server
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("vault api: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("vault api: %d %s: %s", e.Status, e.Code, e.Message)
}

// IsCode reports whether err is an APIError carrying code, such as "vault/9"
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// Client talks to one vault API server
type Client struct {
	config *Config
	http   *http.Client

	requests uint64
	failures uint64
	retries  uint64
}

// NewClient creates a client. A nil httpClient gets one with the configured
// timeout.
func NewClient(config *Config, httpClient *http.Client) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	return &Client{config: config, http: httpClient}
}

// Stats returns request, failure and retry counts since creation
func (c *Client) Stats() (requests, failures, retries uint64) {
	return atomic.LoadUint64(&c.requests), atomic.LoadUint64(&c.failures), atomic.LoadUint64(&c.retries)
}

// ============ Pool queries ============

// Pools lists pools; limit 0 returns all
func (c *Client) Pools(ctx context.Context, offset, limit uint64) (*apitypes.PoolsResponse, error) {
	q := url.Values{}
	if offset > 0 {
		q.Set("offset", strconv.FormatUint(offset, 10))
	}
	if limit > 0 {
		q.Set("limit", strconv.FormatUint(limit, 10))
	}
	path := "/v1/pools"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out apitypes.PoolsResponse
	return &out, c.get(ctx, path, &out)
}

func (c *Client) Pool(ctx context.Context, poolID string) (*vaulttypes.Pool, error) {
	var out vaulttypes.Pool
	return &out, c.get(ctx, PoolPath(poolID), &out)
}

func (c *Client) PoolStatus(ctx context.Context, poolID string) (*vaulttypes.PoolStatus, error) {
	var out vaulttypes.PoolStatus
	return &out, c.get(ctx, PoolPath(poolID, "status"), &out)
}

func (c *Client) Allowance(ctx context.Context, poolID string) (*apitypes.AllowanceInfo, error) {
	var out apitypes.AllowanceInfo
	return &out, c.get(ctx, PoolPath(poolID, "allowance"), &out)
}

func (c *Client) Epochs(ctx context.Context, poolID string) ([]vaulttypes.EpochRecord, error) {
	var out apitypes.EpochsResponse
	if err := c.get(ctx, PoolPath(poolID, "epochs"), &out); err != nil {
		return nil, err
	}
	return out.Epochs, nil
}

func (c *Client) Allocations(ctx context.Context, poolID string) ([]strategytypes.Allocation, error) {
	var out apitypes.AllocationsResponse
	if err := c.get(ctx, PoolPath(poolID, "allocations"), &out); err != nil {
		return nil, err
	}
	return out.Allocations, nil
}

// ============ Depositor queries ============

func (c *Client) Account(ctx context.Context, poolID, address string) (*apitypes.AccountInfo, error) {
	var out apitypes.AccountInfo
	return &out, c.get(ctx, PoolPath(poolID, "accounts", address), &out)
}

// PreviewWithdraw quotes a full withdrawal at the server's current time
func (c *Client) PreviewWithdraw(ctx context.Context, poolID, address string) (*vaulttypes.WithdrawPreview, error) {
	var out vaulttypes.WithdrawPreview
	return &out, c.get(ctx, PoolPath(poolID, "accounts", address, "preview"), &out)
}

// ============ Transactions ============
// Writes are never retried.

func (c *Client) Deposit(ctx context.Context, poolID, depositor string, amount math.Int) (*vaulttypes.DepositReceipt, error) {
	var out vaulttypes.DepositReceipt
	req := apitypes.DepositRequest{Depositor: depositor, Amount: amount.String()}
	return &out, c.post(ctx, PoolPath(poolID, "deposit"), req, &out)
}

func (c *Client) Withdraw(ctx context.Context, poolID, withdrawer string, shares math.Int) (*vaulttypes.WithdrawReceipt, error) {
	var out vaulttypes.WithdrawReceipt
	req := apitypes.WithdrawRequest{Withdrawer: withdrawer, Shares: shares.String()}
	return &out, c.post(ctx, PoolPath(poolID, "withdraw"), req, &out)
}

func (c *Client) WithdrawAll(ctx context.Context, poolID, withdrawer string) (*vaulttypes.WithdrawReceipt, error) {
	var out vaulttypes.WithdrawReceipt
	req := apitypes.WithdrawRequest{Withdrawer: withdrawer, All: true}
	return &out, c.post(ctx, PoolPath(poolID, "withdraw"), req, &out)
}

// Deploy returns the deployed asset snapshot
func (c *Client) Deploy(ctx context.Context, poolID string) (math.Int, error) {
	var out apitypes.DeployResponse
	if err := c.post(ctx, PoolPath(poolID, "deploy"), nil, &out); err != nil {
		return math.Int{}, err
	}
	return out.DeployedAssets, nil
}

// Allocate moves idle pool assets to a strategy and returns its new allocation.
// The server acts as the agent bound to Config.APIKey; a non-empty agent must
// match it.
func (c *Client) Allocate(ctx context.Context, poolID, agent, strategyID string, amount math.Int) (math.Int, error) {
	return c.allocation(ctx, PoolPath(poolID, "allocate"), agent, strategyID, amount)
}

// Deallocate returns assets from a strategy and returns its remaining allocation
func (c *Client) Deallocate(ctx context.Context, poolID, agent, strategyID string, amount math.Int) (math.Int, error) {
	return c.allocation(ctx, PoolPath(poolID, "deallocate"), agent, strategyID, amount)
}

func (c *Client) allocation(ctx context.Context, path, agent, strategyID string, amount math.Int) (math.Int, error) {
	var out apitypes.AllocationResponse
	req := apitypes.AllocationRequest{Agent: agent, StrategyID: strategyID, Amount: amount.String()}
	if err := c.post(ctx, path, req, &out); err != nil {
		return math.Int{}, err
	}
	return out.Allocated, nil
}

// Faucet mints test funds on servers started with the faucet enabled
func (c *Client) Faucet(ctx context.Context, address, denom string, amount math.Int) (math.Int, error) {
	var out apitypes.FaucetResponse
	req := apitypes.FaucetRequest{Address: address, Denom: denom, Amount: amount.String()}
	if err := c.post(ctx, "/v1/faucet", req, &out); err != nil {
		return math.Int{}, err
	}
	return out.Balance, nil
}

// Raw fetches path and returns the undecoded body
func (c *Client) Raw(ctx context.Context, path string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PoolPath joins escaped path segments under /v1/pools/{poolID}
func PoolPath(poolID string, rest ...string) string {
	parts := make([]string, 0, len(rest)+2)
	parts = append(parts, "/v1/pools", url.PathEscape(poolID))
	for _, seg := range rest {
		parts = append(parts, url.PathEscape(seg))
	}
	return strings.Join(parts, "/")
}

// ============ Transport ============

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	backoff := c.config.RetryBackoff
	var err error
	for attempt := 0; ; attempt++ {
		err = c.do(ctx, http.MethodGet, path, nil, out)
		if err == nil || attempt >= c.config.RetryAttempts || !retryable(err) {
			return err
		}
		atomic.AddUint64(&c.retries, 1)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}
	return c.do(ctx, http.MethodPost, path, payload, out)
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, out interface{}) error {
	atomic.AddUint64(&c.requests, 1)

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.config.BaseURL, "/")+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.APIKey != "" {
		req.Header.Set(apiKeyHeader, c.config.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		atomic.AddUint64(&c.failures, 1)
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		atomic.AddUint64(&c.failures, 1)
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var body apitypes.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err == nil {
		apiErr.Code = body.Code
		apiErr.RequestID = body.RequestID
		if body.Error != "" {
			apiErr.Message = body.Error
		}
	}
	return apiErr
}

func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= http.StatusInternalServerError
	}
	return errors.Is(err, ErrUnreachable)
}
