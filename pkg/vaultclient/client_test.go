package vaultclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/openalpha/epoch-vault/api"
	"github.com/openalpha/epoch-vault/pkg/vaultclient"
	"github.com/openalpha/epoch-vault/testutil"
	vaulttypes "github.com/openalpha/epoch-vault/x/vault/types"
)

const (
	poolID      = "usdc-guaranteed"
	operatorKey = "lending-desk-key-0001"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClient(t *testing.T, clk *clock) *vaultclient.Client {
	return newClientWithKey(t, clk, "")
}

func newClientWithKey(t *testing.T, clk *clock, apiKey string) *vaultclient.Client {
	cfg := api.DefaultConfig()
	cfg.DisableRateLimit = true
	cfg.EnableFaucet = true
	cfg.Pools = []api.PoolSpec{{
		ID:              poolID,
		Denom:           "uusdc",
		RiskTier:        string(vaulttypes.RiskTierGuaranteed),
		Cap:             "10000000",
		YieldRateBps:    30,
		AccrualUnit:     time.Hour,
		WithdrawDelay:   time.Hour,
		WithdrawWindow:  24 * time.Hour,
		TreasuryFunding: "1000000",
	}}
	agent := testutil.AccAddress("agent").String()
	cfg.Strategies = []api.StrategySpec{{ID: "lending", Agents: []string{agent}}}
	cfg.Operators = []api.OperatorSpec{{Agent: agent, APIKey: operatorKey}}

	srv, err := api.NewServer(cfg, log.NewNopLogger(), api.WithClock(clk.Now))
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	config := vaultclient.DefaultConfig()
	config.BaseURL = ts.URL
	config.APIKey = apiKey
	return vaultclient.NewClient(config, ts.Client())
}

func TestTwoDepositorEpoch(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := newClient(t, clk)

	alice := testutil.AccAddress("alice").String()
	bob := testutil.AccAddress("bob").String()

	for addr, amt := range map[string]int64{alice: 4_000_000, bob: 6_000_000} {
		_, err := c.Faucet(ctx, addr, "uusdc", math.NewInt(amt))
		require.NoError(t, err)
	}

	_, err := c.Deposit(ctx, poolID, alice, math.NewInt(4_000_000))
	require.NoError(t, err)
	receipt, err := c.Deposit(ctx, poolID, bob, math.NewInt(6_000_000))
	require.NoError(t, err)
	require.True(t, receipt.Deployed)

	_, err = c.WithdrawAll(ctx, poolID, bob)
	require.True(t, vaultclient.IsCode(err, "vault/9"), "withdraw before the window: %v", err)

	clk.Advance(time.Hour)

	preview, err := c.PreviewWithdraw(ctx, poolID, bob)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(6_018_000).String(), preview.PaidOut.String())

	w, err := c.WithdrawAll(ctx, poolID, bob)
	require.NoError(t, err)
	require.Equal(t, "6018000", w.PaidOut.String())
	require.True(t, w.Subsidy.IsZero())
	require.False(t, w.PoolReset)

	// the last exit drains the escrow and pulls the whole yield from the treasury
	w, err = c.WithdrawAll(ctx, poolID, alice)
	require.NoError(t, err)
	require.Equal(t, "4012000", w.PaidOut.String())
	require.Equal(t, "30000", w.Subsidy.String())
	require.True(t, w.PoolReset)

	allowance, err := c.Allowance(ctx, poolID)
	require.NoError(t, err)
	require.Equal(t, "970000", allowance.Amount.String())

	epochs, err := c.Epochs(ctx, poolID)
	require.NoError(t, err)
	require.Len(t, epochs, 1)

	pools, err := c.Pools(ctx, 0, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(1), pools.Total)

	status, err := c.PoolStatus(ctx, poolID)
	require.NoError(t, err)
	require.Equal(t, vaulttypes.PhaseCollecting, status.Phase)

	requests, failures, retries := c.Stats()
	require.Equal(t, uint64(1), failures)
	require.Zero(t, retries)
	require.Greater(t, requests, uint64(10))
}

func TestAllocationNeedsOperatorKey(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	agent := testutil.AccAddress("agent").String()
	alice := testutil.AccAddress("alice").String()

	anon := newClient(t, clk)
	_, err := anon.Faucet(ctx, alice, "uusdc", math.NewInt(5_000_000))
	require.NoError(t, err)
	_, err = anon.Deposit(ctx, poolID, alice, math.NewInt(5_000_000))
	require.NoError(t, err)

	_, err = anon.Allocate(ctx, poolID, agent, "lending", math.NewInt(1_000_000))
	require.True(t, vaultclient.IsCode(err, "unauthorized"), "allocate without key: %v", err)
}

func TestOperatorAllocates(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	alice := testutil.AccAddress("alice").String()

	c := newClientWithKey(t, clk, operatorKey)
	_, err := c.Faucet(ctx, alice, "uusdc", math.NewInt(5_000_000))
	require.NoError(t, err)
	_, err = c.Deposit(ctx, poolID, alice, math.NewInt(5_000_000))
	require.NoError(t, err)

	_, err = c.Allocate(ctx, poolID, alice, "lending", math.NewInt(1_000_000))
	require.True(t, vaultclient.IsCode(err, "agent_mismatch"), "key bound to another agent: %v", err)

	allocated, err := c.Allocate(ctx, poolID, "", "lending", math.NewInt(1_000_000))
	require.NoError(t, err)
	require.Equal(t, "1000000", allocated.String())

	allocs, err := c.Allocations(ctx, poolID)
	require.NoError(t, err)
	require.Len(t, allocs, 1)

	allocated, err = c.Deallocate(ctx, poolID, "", "lending", math.NewInt(1_000_000))
	require.NoError(t, err)
	require.True(t, allocated.IsZero())
}

func TestReadRetries(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"epochs":[]}`))
	}))
	defer ts.Close()

	config := &vaultclient.Config{BaseURL: ts.URL, RetryAttempts: 2, RetryBackoff: time.Millisecond}
	c := vaultclient.NewClient(config, ts.Client())

	epochs, err := c.Epochs(context.Background(), "p1")
	require.NoError(t, err)
	require.Empty(t, epochs)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))

	_, _, retries := c.Stats()
	require.Equal(t, uint64(2), retries)
}

func TestWritesAreNotRetried(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal","request_id":"abc"}`))
	}))
	defer ts.Close()

	config := &vaultclient.Config{BaseURL: ts.URL, RetryAttempts: 3, RetryBackoff: time.Millisecond}
	c := vaultclient.NewClient(config, ts.Client())

	_, err := c.Deploy(context.Background(), "p1")
	require.Error(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))

	var apiErr *vaultclient.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusInternalServerError, apiErr.Status)
	require.Equal(t, "abc", apiErr.RequestID)
	require.True(t, vaultclient.IsCode(err, "internal"))
}

func TestPoolPath(t *testing.T) {
	require.Equal(t, "/v1/pools/p1", vaultclient.PoolPath("p1"))
	require.Equal(t, "/v1/pools/a%2Fb/accounts/x/preview", vaultclient.PoolPath("a/b", "accounts", "x", "preview"))
}
