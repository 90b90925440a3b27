package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tradegate/signal-gateway/internal/auth"
	"github.com/tradegate/signal-gateway/internal/types"
)

const (
	numSignals    = 25
	numWorkers    = 5
	serverAddress = "http://localhost:8080"

	apiPublicKey = "dev_pub_key"
	apiSecretKey = "dev_sec_key"
)

var (
	symbols    = []string{"EURUSD", "GBPUSD", "USDJPY", "AUDUSD", "USDCAD"}
	sides      = []types.Side{types.SideBuy, types.SideSell}
	strategies = []string{"trend_follow", "mean_revert", "breakout"}
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	mu         sync.Mutex
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration, failed bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
	if failed {
		rs.failures++
	}
}

// calculate computes min, max, mean, median, 95th and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))
	median = rs.durations[len(rs.durations)/2]

	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient signs and sends requests the way the calling automation
// tool does: HMAC over method, path, body, timestamp, and a fresh nonce.
type simulationClient struct {
	baseURL string
	keyID   string
	secret  string
	client  *http.Client
	stats   map[string]*routeStats
}

func newSimulationClient() *simulationClient {
	return &simulationClient{
		baseURL: serverAddress,
		keyID:   apiPublicKey,
		secret:  apiSecretKey,
		client:  &http.Client{Timeout: 30 * time.Second},
		stats: map[string]*routeStats{
			"signal":    {name: "Submit Signal"},
			"replay":    {name: "Replayed Signal"},
			"positions": {name: "Get Positions"},
			"account":   {name: "Get Account"},
			"health":    {name: "Health Check"},
		},
	}
}

// signedRequest performs one authenticated call and decodes the envelope.
func (sc *simulationClient) signedRequest(method, path string, body []byte, nonce string) (int, map[string]interface{}, error) {
	if nonce == "" {
		nonce = uuid.New().String()
	}
	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	signature := auth.Sign(sc.secret, method, path, body, timestamp, nonce)

	req, err := http.NewRequest(method, sc.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.HeaderAPIKey, sc.keyID)
	req.Header.Set(auth.HeaderTimestamp, timestamp)
	req.Header.Set(auth.HeaderNonce, nonce)
	req.Header.Set(auth.HeaderSignature, signature)

	resp, err := sc.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	var decoded map[string]interface{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return resp.StatusCode, nil, err
		}
	}
	return resp.StatusCode, decoded, nil
}

func randomSignal() types.Signal {
	slPips := float64(10 + rand.Intn(40))
	tpPips := slPips * 2
	return types.Signal{
		Strategy:       strategies[rand.Intn(len(strategies))],
		Symbol:         symbols[rand.Intn(len(symbols))],
		Side:           sides[rand.Intn(len(sides))],
		Type:           types.OrderTypeMarket,
		Risk:           types.RiskSpec{Percent: 0.5 + rand.Float64()},
		SL:             types.StopLossSpec{Pips: &slPips},
		TP:             types.TakeProfitSpec{Pips: &tpPips},
		Comment:        "simulation",
		IdempotencyKey: uuid.New().String(),
	}
}

// submitSignal sends one signal and, by immediately resubmitting it with the
// same idempotency key, demonstrates that the retry observes the stored
// outcome instead of a second execution.
func (sc *simulationClient) submitSignal(workerID int) {
	sig := randomSignal()
	body, err := json.Marshal(sig)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal signal")
		return
	}

	start := time.Now()
	status, first, err := sc.signedRequest(http.MethodPost, "/api/v1/signal", body, "")
	sc.stats["signal"].addDuration(time.Since(start), err != nil || status >= 400)
	if err != nil {
		log.Error().Err(err).Int("worker", workerID).Msg("signal submission failed")
		return
	}
	log.Info().
		Int("worker", workerID).
		Int("status", status).
		Str("symbol", sig.Symbol).
		Str("idempotency_key", sig.IdempotencyKey).
		Msg("signal submitted")

	// Retry with the same key; the gateway must not execute twice.
	start = time.Now()
	status, second, err := sc.signedRequest(http.MethodPost, "/api/v1/signal", body, "")
	sc.stats["replay"].addDuration(time.Since(start), err != nil || status >= 400)
	if err != nil {
		log.Error().Err(err).Int("worker", workerID).Msg("signal retry failed")
		return
	}

	firstData, _ := json.Marshal(first["data"])
	secondData, _ := json.Marshal(second["data"])
	if !bytes.Equal(firstData, secondData) {
		log.Error().
			Int("worker", workerID).
			RawJSON("first", firstData).
			RawJSON("second", secondData).
			Msg("MISMATCH: retry returned a different outcome")
		return
	}
	log.Info().Int("worker", workerID).Msg("retry returned the stored outcome")
}

// demonstrateReplayRejection sends the same nonce twice; the second request
// must be rejected with REPLAYED_NONCE.
func (sc *simulationClient) demonstrateReplayRejection() {
	nonce := uuid.New().String()

	status, _, err := sc.signedRequest(http.MethodGet, "/api/v1/health", nil, nonce)
	if err != nil || status != http.StatusOK {
		log.Error().Err(err).Int("status", status).Msg("first nonce use unexpectedly failed")
		return
	}

	status, decoded, err := sc.signedRequest(http.MethodGet, "/api/v1/health", nil, nonce)
	if err != nil {
		log.Error().Err(err).Msg("nonce replay request failed")
		return
	}
	if status == http.StatusUnauthorized {
		log.Info().Interface("response", decoded).Msg("nonce replay correctly rejected")
	} else {
		log.Error().Int("status", status).Msg("UNEXPECTED: nonce replay was not rejected")
	}
}

func (sc *simulationClient) checkEndpoints() {
	for path, key := range map[string]string{
		"/api/v1/positions": "positions",
		"/api/v1/account":   "account",
		"/api/v1/health":    "health",
	} {
		start := time.Now()
		status, _, err := sc.signedRequest(http.MethodGet, path, nil, "")
		sc.stats[key].addDuration(time.Since(start), err != nil || status >= 400)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("endpoint check failed")
			continue
		}
		log.Info().Str("path", path).Int("status", status).Msg("endpoint checked")
	}
}

// printPerformanceStats reports per-route latency percentiles and failures.
func (sc *simulationClient) printPerformanceStats() {
	log.Info().Msg("=== Performance Statistics ===")
	for _, rs := range sc.stats {
		if rs.totalCalls == 0 {
			continue
		}
		min, max, mean, median, p95, p99 := rs.calculate()
		log.Info().
			Str("route", rs.name).
			Int("calls", rs.totalCalls).
			Int("failures", rs.failures).
			Dur("min", min).
			Dur("max", max).
			Dur("mean", mean).
			Dur("median", median).
			Dur("p95", p95).
			Dur("p99", p99).
			Msg("route statistics")
	}
}

func main() {
	log.Info().
		Int("signals", numSignals).
		Int("workers", numWorkers).
		Str("server", serverAddress).
		Msg("starting gateway simulation")

	sc := newSimulationClient()

	sc.demonstrateReplayRejection()

	jobs := make(chan int, numSignals)
	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for range jobs {
				sc.submitSignal(workerID)
			}
		}(w)
	}
	for i := 0; i < numSignals; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	sc.checkEndpoints()
	sc.printPerformanceStats()

	log.Info().Msg("simulation complete")
}
