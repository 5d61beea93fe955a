package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/openalpha/epoch-vault/api"
	"github.com/openalpha/epoch-vault/api/middleware"
	apitypes "github.com/openalpha/epoch-vault/api/types"
	"github.com/openalpha/epoch-vault/testutil"
	strategytypes "github.com/openalpha/epoch-vault/x/strategy/types"
	vaulttypes "github.com/openalpha/epoch-vault/x/vault/types"
)

const (
	poolID   = "usdc-guaranteed"
	agentKey = "agent-operator-key-0001"
	aliceKey = "alice-operator-key-0001"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testServer struct {
	*httptest.Server
	clock *fakeClock
	agent string
}

func testConfig(agent string) *api.Config {
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
	cfg.Strategies = []api.StrategySpec{{
		ID:     "lending",
		Agents: []string{agent},
	}}
	cfg.Operators = []api.OperatorSpec{
		{Agent: agent, APIKey: agentKey},
		{Agent: testutil.AccAddress("alice").String(), APIKey: aliceKey},
	}
	return cfg
}

func newTestServer(t *testing.T) *testServer {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	agent := testutil.AccAddress("agent").String()

	srv, err := api.NewServer(testConfig(agent), log.NewNopLogger(), api.WithClock(clock.Now))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, clock: clock, agent: agent}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}, out interface{}) int {
	t.Helper()
	return ts.doAs(t, "", method, path, body, out)
}

// doAs sends the request with apiKey in the operator header when set
func (ts *testServer) doAs(t *testing.T, apiKey, method, path string, body interface{}, out interface{}) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set(middleware.APIKeyHeader, apiKey)
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func requireIntEq(t *testing.T, want int64, got math.Int) {
	t.Helper()
	require.True(t, math.NewInt(want).Equal(got), "want %d, got %s", want, got)
}

// A sole depositor fills the pool, an agent lends and returns part of the
// escrow, and the exit after one accrual unit is topped up by the treasury.
func TestEpochOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	alice := testutil.AccAddress("alice").String()

	var faucet map[string]interface{}
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/v1/faucet",
		apitypes.FaucetRequest{Address: alice, Denom: "uusdc", Amount: "10000000"}, &faucet))

	var receipt vaulttypes.DepositReceipt
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/v1/pools/"+poolID+"/deposit",
		apitypes.DepositRequest{Depositor: alice, Amount: "10000000"}, &receipt))
	requireIntEq(t, 10_000_000, receipt.SharesMinted)
	require.True(t, receipt.Deployed)

	var status vaulttypes.PoolStatus
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/v1/pools/"+poolID+"/status", nil, &status))
	require.Equal(t, vaulttypes.PhaseDeployed, status.Phase)
	require.True(t, status.IsCapReached)

	var alloc apitypes.AllocationResponse
	require.Equal(t, http.StatusOK, ts.doAs(t, agentKey, http.MethodPost, "/v1/pools/"+poolID+"/allocate",
		apitypes.AllocationRequest{Agent: ts.agent, StrategyID: "lending", Amount: "2000000"}, &alloc))
	requireIntEq(t, 2_000_000, alloc.Allocated)

	var allocations struct {
		Allocations []strategytypes.Allocation `json:"allocations"`
	}
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/v1/pools/"+poolID+"/allocations", nil, &allocations))
	require.Len(t, allocations.Allocations, 1)
	requireIntEq(t, 2_000_000, allocations.Allocations[0].Amount)

	require.Equal(t, http.StatusOK, ts.doAs(t, agentKey, http.MethodPost, "/v1/pools/"+poolID+"/deallocate",
		apitypes.AllocationRequest{StrategyID: "lending", Amount: "2000000"}, &alloc))
	require.True(t, alloc.Allocated.IsZero())

	var apiErr apitypes.ErrorResponse
	require.Equal(t, http.StatusConflict, ts.do(t, http.MethodPost, "/v1/pools/"+poolID+"/withdraw",
		apitypes.WithdrawRequest{Withdrawer: alice, All: true}, &apiErr))
	require.Equal(t, "vault/9", apiErr.Code)

	ts.clock.Advance(time.Hour)

	var preview vaulttypes.WithdrawPreview
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/v1/pools/"+poolID+"/accounts/"+alice+"/preview", nil, &preview))
	requireIntEq(t, 10_030_000, preview.PaidOut)
	requireIntEq(t, 30_000, preview.SubsidyNeeded)

	var w vaulttypes.WithdrawReceipt
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/v1/pools/"+poolID+"/withdraw",
		apitypes.WithdrawRequest{Withdrawer: alice, All: true}, &w))
	requireIntEq(t, 10_030_000, w.PaidOut)
	requireIntEq(t, 30_000, w.Subsidy)
	require.True(t, w.PoolReset)

	var account apitypes.AccountInfo
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/v1/pools/"+poolID+"/accounts/"+alice, nil, &account))
	require.True(t, account.Shares.IsZero())
	require.Equal(t, "10030000", account.Balance)
	require.False(t, account.CanWithdraw)

	var allowance apitypes.AllowanceInfo
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/v1/pools/"+poolID+"/allowance", nil, &allowance))
	requireIntEq(t, 970_000, allowance.Amount)
	requireIntEq(t, 970_000, allowance.Balance)

	var epochs struct {
		Epochs []vaulttypes.EpochRecord `json:"epochs"`
	}
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/v1/pools/"+poolID+"/epochs", nil, &epochs))
	require.Len(t, epochs.Epochs, 1)
	requireIntEq(t, 30_000, epochs.Epochs[0].SubsidyPulled)
}

func TestRequestErrors(t *testing.T) {
	ts := newTestServer(t)
	alice := testutil.AccAddress("alice").String()

	testCases := []struct {
		name   string
		method string
		path   string
		apiKey string
		body   interface{}
		status int
		code   string
	}{
		{
			name:   "unknown pool",
			method: http.MethodGet,
			path:   "/v1/pools/missing",
			status: http.StatusNotFound,
			code:   "vault/1",
		},
		{
			name:   "non numeric amount",
			method: http.MethodPost,
			path:   "/v1/pools/" + poolID + "/deposit",
			body:   apitypes.DepositRequest{Depositor: alice, Amount: "ten"},
			status: http.StatusBadRequest,
			code:   "invalid_amount",
		},
		{
			name:   "zero deposit",
			method: http.MethodPost,
			path:   "/v1/pools/" + poolID + "/deposit",
			body:   apitypes.DepositRequest{Depositor: alice, Amount: "0"},
			status: http.StatusBadRequest,
			code:   "vault/3",
		},
		{
			name:   "deposit without funds",
			method: http.MethodPost,
			path:   "/v1/pools/" + poolID + "/deposit",
			body:   apitypes.DepositRequest{Depositor: alice, Amount: "5"},
			status: http.StatusUnprocessableEntity,
			code:   "vault/4",
		},
		{
			name:   "deploy below cap",
			method: http.MethodPost,
			path:   "/v1/pools/" + poolID + "/deploy",
			status: http.StatusConflict,
			code:   "vault/7",
		},
		{
			name:   "agent without capability",
			method: http.MethodPost,
			path:   "/v1/pools/" + poolID + "/allocate",
			apiKey: aliceKey,
			body:   apitypes.AllocationRequest{StrategyID: "lending", Amount: "1"},
			status: http.StatusForbidden,
			code:   "strategy/1",
		},
		{
			name:   "allocate without api key",
			method: http.MethodPost,
			path:   "/v1/pools/" + poolID + "/allocate",
			body:   apitypes.AllocationRequest{Agent: ts.agent, StrategyID: "lending", Amount: "1"},
			status: http.StatusUnauthorized,
			code:   "unauthorized",
		},
		{
			name:   "deallocate with unknown api key",
			method: http.MethodPost,
			path:   "/v1/pools/" + poolID + "/deallocate",
			apiKey: "not-a-configured-key",
			body:   apitypes.AllocationRequest{Agent: ts.agent, StrategyID: "lending", Amount: "1"},
			status: http.StatusUnauthorized,
			code:   "unauthorized",
		},
		{
			name:   "key used for another agent",
			method: http.MethodPost,
			path:   "/v1/pools/" + poolID + "/allocate",
			apiKey: aliceKey,
			body:   apitypes.AllocationRequest{Agent: ts.agent, StrategyID: "lending", Amount: "1"},
			status: http.StatusForbidden,
			code:   "agent_mismatch",
		},
		{
			name:   "unknown body field",
			method: http.MethodPost,
			path:   "/v1/pools/" + poolID + "/withdraw",
			body:   map[string]string{"who": alice},
			status: http.StatusBadRequest,
			code:   "invalid_body",
		},
		{
			name:   "missing depositor",
			method: http.MethodPost,
			path:   "/v1/pools/" + poolID + "/deposit",
			body:   apitypes.DepositRequest{Amount: "5"},
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
		{
			name:   "withdraw without shares or all",
			method: http.MethodPost,
			path:   "/v1/pools/" + poolID + "/withdraw",
			body:   apitypes.WithdrawRequest{Withdrawer: alice},
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
		{
			name:   "bad account address",
			method: http.MethodGet,
			path:   "/v1/pools/" + poolID + "/accounts/nope",
			status: http.StatusBadRequest,
			code:   "sdk/7",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var apiErr apitypes.ErrorResponse
			require.Equal(t, tc.status, ts.doAs(t, tc.apiKey, tc.method, tc.path, tc.body, &apiErr))
			require.Equal(t, tc.code, apiErr.Code)
			require.NotEmpty(t, apiErr.Error)
			require.NotEmpty(t, apiErr.RequestID)
		})
	}
}

func TestHealthAndPools(t *testing.T) {
	ts := newTestServer(t)

	var health map[string]interface{}
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/health", nil, &health))
	require.Equal(t, "ok", health["status"])

	var pools apitypes.PoolsResponse
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/v1/pools?limit=10", nil, &pools))
	require.Equal(t, uint64(1), pools.Total)
	require.Equal(t, poolID, pools.Pools[0].PoolID)
	require.Equal(t, api.BootstrapTreasury(poolID).String(), pools.Pools[0].Treasury)

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault-api.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9090
enable_faucet: true
rate_limit:
  requests_per_second: 5
  burst: 10
pools:
  - id: usdc-medium
    denom: uusdc
    risk_tier: medium
    cap: "5000000"
    yield_rate_bps: 10
    accrual_unit: 30m
    withdraw_delay: 2h
`), 0o600))

	cfg, err := api.LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Port)
	require.True(t, cfg.EnableFaucet)
	require.Equal(t, float64(5), cfg.RateLimit.RequestsPerSecond)
	require.Len(t, cfg.Pools, 1)
	require.Equal(t, 30*time.Minute, cfg.Pools[0].AccrualUnit)
	require.Equal(t, 2*time.Hour, cfg.Pools[0].WithdrawDelay)

	t.Setenv(api.EnvPort, "7070")
	cfg, err = api.LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Port)

	require.NoError(t, os.WriteFile(path, []byte("pools:\n  - id: a\n    cap: lots\n"), 0o600))
	_, err = api.LoadConfig(path)
	require.ErrorContains(t, err, "invalid cap")

	agent := testutil.AccAddress("agent").String()
	require.NoError(t, os.WriteFile(path, []byte("operators:\n  - agent: "+agent+"\n    api_key: short\n"), 0o600))
	_, err = api.LoadConfig(path)
	require.ErrorContains(t, err, "api key shorter")

	require.NoError(t, os.WriteFile(path, []byte("operators:\n  - agent: "+agent+"\n    api_key: "+agentKey+"\n"), 0o600))
	cfg, err = api.LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, map[string]string{agentKey: agent}, cfg.OperatorKeys())
}
