package metrics

import (
	"math/big"
	"net/http"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every exported metric
const Namespace = "epochvault"

var (
	// Singleton collector
	collector     *Collector
	collectorOnce sync.Once
)

// Collector holds all vault metrics. A nil *Collector is valid and records nothing.
type Collector struct {
	// Deposit metrics
	DepositsTotal *prometheus.CounterVec
	DepositVolume *prometheus.CounterVec

	// Withdrawal metrics
	WithdrawalsTotal *prometheus.CounterVec
	PayoutVolume     *prometheus.CounterVec
	YieldPaid        *prometheus.CounterVec
	LossRealized     *prometheus.CounterVec

	// Treasury metrics
	TreasurySubsidy *prometheus.CounterVec

	// Lifecycle metrics
	PoolDeployments    *prometheus.CounterVec
	PoolResets         *prometheus.CounterVec
	PoolState          *prometheus.GaugeVec
	PoolTotalShares    *prometheus.GaugeVec
	PoolDeployedAssets *prometheus.GaugeVec

	// Strategy metrics
	StrategyAllocated  *prometheus.GaugeVec
	StrategyCallsTotal *prometheus.CounterVec
	CapabilityDenials  *prometheus.CounterVec

	// WebSocket metrics
	WSConnectionsActive prometheus.Gauge
	WSMessagesTotal     *prometheus.CounterVec

	// API metrics
	APIRequestsTotal  *prometheus.CounterVec
	APIRequestLatency *prometheus.HistogramVec
	APIErrorsTotal    *prometheus.CounterVec
	RateLimitHits     *prometheus.CounterVec
}

// GetCollector returns the singleton metrics collector
func GetCollector() *Collector {
	collectorOnce.Do(func() {
		collector = newCollector()
	})
	return collector
}

func counter(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func gauge(subsystem, name, help string, labels ...string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// newCollector creates a new metrics collector
func newCollector() *Collector {
	c := &Collector{}

	c.DepositsTotal = counter("deposits", "total", "Total number of successful deposits", "pool_id")
	c.DepositVolume = counter("deposits", "volume", "Base asset deposited", "pool_id")

	c.WithdrawalsTotal = counter("withdrawals", "total", "Total number of successful withdrawals", "pool_id")
	c.PayoutVolume = counter("withdrawals", "payout", "Base asset paid out to depositors", "pool_id")
	c.YieldPaid = counter("withdrawals", "yield_paid", "Yield portion of payouts", "pool_id")
	c.LossRealized = counter("withdrawals", "loss_realized", "Principal lost by risk-tier depositors", "pool_id")

	c.TreasurySubsidy = counter("treasury", "subsidy", "Base asset pulled from treasuries to cover shortfalls", "pool_id")

	c.PoolDeployments = counter("pool", "deployments_total", "Collecting to deployed transitions", "pool_id")
	c.PoolResets = counter("pool", "resets_total", "Epoch resets", "pool_id", "trigger")
	c.PoolState = gauge("pool", "state", "Pool state (0=collecting, 1=deployed)", "pool_id")
	c.PoolTotalShares = gauge("pool", "total_shares", "Outstanding share supply", "pool_id")
	c.PoolDeployedAssets = gauge("pool", "deployed_assets", "Deployed principal base", "pool_id")

	c.StrategyAllocated = gauge("strategy", "allocated", "Assets allocated to a strategy", "pool_id", "strategy_id")
	c.StrategyCallsTotal = counter("strategy", "calls_total", "Gated strategy operations", "strategy_id", "selector", "status")
	c.CapabilityDenials = counter("strategy", "capability_denials_total", "Rejected capability checks", "strategy_id", "reason")

	c.WSConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "websocket",
			Name:      "connections_active",
			Help:      "Number of active WebSocket connections",
		},
	)
	c.WSMessagesTotal = counter("websocket", "messages_total", "WebSocket messages broadcast", "channel")

	c.APIRequestsTotal = counter("api", "requests_total", "Total API requests", "method", "path", "status")
	c.APIRequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "api",
			Name:      "request_latency_ms",
			Help:      "API request latency in milliseconds",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"method", "path"},
	)
	c.APIErrorsTotal = counter("api", "errors_total", "Total API errors", "method", "path", "code")
	c.RateLimitHits = counter("api", "rate_limit_hits_total", "Requests rejected by the rate limiter", "ip_class")

	// Register all metrics
	c.registerAll()

	return c
}

// registerAll registers all metrics with Prometheus
func (c *Collector) registerAll() {
	prometheus.MustRegister(
		c.DepositsTotal,
		c.DepositVolume,
		c.WithdrawalsTotal,
		c.PayoutVolume,
		c.YieldPaid,
		c.LossRealized,
		c.TreasurySubsidy,
		c.PoolDeployments,
		c.PoolResets,
		c.PoolState,
		c.PoolTotalShares,
		c.PoolDeployedAssets,
		c.StrategyAllocated,
		c.StrategyCallsTotal,
		c.CapabilityDenials,
		c.WSConnectionsActive,
		c.WSMessagesTotal,
		c.APIRequestsTotal,
		c.APIRequestLatency,
		c.APIErrorsTotal,
		c.RateLimitHits,
	)
}

// ============ Recording Helpers ============

// RecordDeposit records a deposit
func (c *Collector) RecordDeposit(poolID string, amount sdkmath.Int) {
	if c == nil {
		return
	}
	c.DepositsTotal.WithLabelValues(poolID).Inc()
	c.DepositVolume.WithLabelValues(poolID).Add(IntToFloat(amount))
}

// RecordWithdrawal records a settled withdrawal
func (c *Collector) RecordWithdrawal(poolID string, paidOut, yieldPaid, loss sdkmath.Int) {
	if c == nil {
		return
	}
	c.WithdrawalsTotal.WithLabelValues(poolID).Inc()
	c.PayoutVolume.WithLabelValues(poolID).Add(IntToFloat(paidOut))
	c.YieldPaid.WithLabelValues(poolID).Add(IntToFloat(yieldPaid))
	if loss.IsPositive() {
		c.LossRealized.WithLabelValues(poolID).Add(IntToFloat(loss))
	}
}

// RecordSubsidy records a treasury pull
func (c *Collector) RecordSubsidy(poolID string, amount sdkmath.Int) {
	if c == nil || !amount.IsPositive() {
		return
	}
	c.TreasurySubsidy.WithLabelValues(poolID).Add(IntToFloat(amount))
}

// RecordDeploy records a collecting to deployed transition
func (c *Collector) RecordDeploy(poolID string) {
	if c == nil {
		return
	}
	c.PoolDeployments.WithLabelValues(poolID).Inc()
}

// RecordReset records an epoch reset
func (c *Collector) RecordReset(poolID string, manual bool) {
	if c == nil {
		return
	}
	trigger := "drain"
	if manual {
		trigger = "manual"
	}
	c.PoolResets.WithLabelValues(poolID, trigger).Inc()
}

// RecordPoolState updates the per-pool gauges
func (c *Collector) RecordPoolState(poolID string, deployed bool, totalShares, deployedAssets sdkmath.Int) {
	if c == nil {
		return
	}
	state := 0.0
	if deployed {
		state = 1
	}
	c.PoolState.WithLabelValues(poolID).Set(state)
	c.PoolTotalShares.WithLabelValues(poolID).Set(IntToFloat(totalShares))
	c.PoolDeployedAssets.WithLabelValues(poolID).Set(IntToFloat(deployedAssets))
}

// RecordAllocation updates the allocated gauge of a (pool, strategy) pair
func (c *Collector) RecordAllocation(poolID, strategyID string, allocated sdkmath.Int) {
	if c == nil {
		return
	}
	c.StrategyAllocated.WithLabelValues(poolID, strategyID).Set(IntToFloat(allocated))
}

// RecordStrategyCall records a gated strategy operation
func (c *Collector) RecordStrategyCall(strategyID, selector, status string) {
	if c == nil {
		return
	}
	c.StrategyCallsTotal.WithLabelValues(strategyID, selector, status).Inc()
}

// RecordCapabilityDenial records a rejected capability check
func (c *Collector) RecordCapabilityDenial(strategyID, reason string) {
	if c == nil {
		return
	}
	c.CapabilityDenials.WithLabelValues(strategyID, reason).Inc()
}

// RecordAPIRequest records an API request
func (c *Collector) RecordAPIRequest(method, path, status string, latencyMs float64) {
	if c == nil {
		return
	}
	c.APIRequestsTotal.WithLabelValues(method, path, status).Inc()
	c.APIRequestLatency.WithLabelValues(method, path).Observe(latencyMs)
}

// RecordAPIError records an API error response
func (c *Collector) RecordAPIError(method, path, code string) {
	if c == nil {
		return
	}
	c.APIErrorsTotal.WithLabelValues(method, path, code).Inc()
}

// RecordRateLimitHit records a rate limited request
func (c *Collector) RecordRateLimitHit(ipClass string) {
	if c == nil {
		return
	}
	c.RateLimitHits.WithLabelValues(ipClass).Inc()
}

// RecordWSConnection records WebSocket connection changes
func (c *Collector) RecordWSConnection(delta int) {
	if c == nil {
		return
	}
	c.WSConnectionsActive.Add(float64(delta))
}

// RecordWSMessage records a broadcast WebSocket message
func (c *Collector) RecordWSMessage(channel string) {
	if c == nil {
		return
	}
	c.WSMessagesTotal.WithLabelValues(channel).Inc()
}

// IntToFloat converts an amount for export. Precision loss above 2^53 is accepted.
func IntToFloat(v sdkmath.Int) float64 {
	if v.IsNil() {
		return 0
	}
	f, _ := new(big.Float).SetInt(v.BigInt()).Float64()
	return f
}

// ============ HTTP Handler ============

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for measuring latency
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ElapsedMs returns the elapsed time in milliseconds
func (t *Timer) ElapsedMs() float64 {
	return float64(time.Since(t.start).Microseconds()) / 1000.0
}
