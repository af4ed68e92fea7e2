package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/hackgods/dental-booking/internal/api"
	"github.com/hackgods/dental-booking/pkg/logging"
)

// Outcomes a simulated booking can end in.
const (
	outcomeBooked   = "booked"
	outcomeConflict = "conflict"
	outcomeRejected = "rejected"
	outcomeNoSlots  = "no_slots"
	outcomeError    = "error"
)

var outcomes = []string{outcomeBooked, outcomeConflict, outcomeRejected, outcomeNoSlots, outcomeError}

var noteChoices = []string{
	"",
	"First visit.",
	"Sensitive tooth on the upper left.",
	"Prefers a morning appointment.",
	"Bringing previous x-rays.",
}

type SimConfig struct {
	BFFBaseURL string
	Duration   time.Duration
	Workers    int
	RPS        float64
	DaysAhead  int
	LogLevel   string
}

// OperationMetrics aggregates outcomes and latencies of one operation.
type OperationMetrics struct {
	counts    sync.Map // outcome -> *int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, outcome string) {
	v, _ := om.counts.LoadOrStore(outcome, new(int64))
	atomic.AddInt64(v.(*int64), 1)

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Count(outcome string) int64 {
	v, ok := om.counts.Load(outcome)
	if !ok {
		return 0
	}
	return atomic.LoadInt64(v.(*int64))
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Flow   OperationMetrics
	Submit OperationMetrics
}

// Simulator walks guest booking wizards through the BFF concurrently. Every
// HTTP call waits on a shared limiter.
type Simulator struct {
	config  SimConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *logging.Logger
	metrics Metrics
}

func main() {
	cfg := loadConfig()
	logger := logging.New(cfg.LogLevel)

	if err := validateConfig(cfg); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger.Info("simulator starting",
		"bff", cfg.BFFBaseURL, "duration", cfg.Duration, "workers", cfg.Workers, "rps", cfg.RPS)

	sim := &Simulator{
		config:  cfg,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Workers),
		logger:  logger,
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	_ = godotenv.Load()

	return SimConfig{
		BFFBaseURL: strings.TrimRight(getEnv("SIM_BFF_URL", "http://localhost:8080"), "/"),
		Duration:   getDuration("SIM_DURATION", 30*time.Second),
		Workers:    getInt("SIM_WORKERS", 10),
		RPS:        getFloat("SIM_RPS", 50),
		DaysAhead:  getInt("SIM_DAYS_AHEAD", 14),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
	}
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return errors.New("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return errors.New("SIM_DURATION must be > 0")
	}
	if cfg.RPS <= 0 {
		return errors.New("SIM_RPS must be > 0")
	}
	if cfg.DaysAhead <= 0 {
		return errors.New("SIM_DAYS_AHEAD must be > 0")
	}
	return nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		start := time.Now()
		outcome, err := s.book(ctx, rng)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.logger.Debug("booking flow failed", "worker", workerID, "error", err)
		}
		s.metrics.Flow.Record(time.Since(start), outcome)
	}
}

// book walks one guest wizard from creation to submission.
func (s *Simulator) book(ctx context.Context, rng *rand.Rand) (string, error) {
	created, err := s.call(ctx, http.MethodPost, "/wizard/sessions", nil)
	if err != nil {
		return outcomeError, err
	}
	id := created.SessionID
	defer s.discard(id)

	state := created.State
	if len(state.Specialties) == 0 {
		return outcomeError, errors.New("no specialties offered")
	}
	specialty := state.Specialties[rng.Intn(len(state.Specialties))]

	if state, err = s.event(ctx, id, map[string]any{"type": api.EventSelectSpecialty, "id": specialty.ID}); err != nil {
		return outcomeError, err
	}
	if len(state.ServiceTypes) == 0 {
		return outcomeNoSlots, nil
	}
	service := state.ServiceTypes[rng.Intn(len(state.ServiceTypes))]

	date := time.Now().AddDate(0, 0, 1+rng.Intn(s.config.DaysAhead)).Format("2006-01-02")
	steps := []map[string]any{
		{"type": api.EventSelectService, "id": service.ID},
		{"type": api.EventNext},
		{"type": api.EventSelectDate, "date": date},
	}
	for _, ev := range steps {
		if state, err = s.event(ctx, id, ev); err != nil {
			return outcomeError, err
		}
	}
	if len(state.Availabilities) == 0 {
		return outcomeNoSlots, nil
	}
	slot := state.Availabilities[rng.Intn(len(state.Availabilities))]

	steps = []map[string]any{
		{"type": api.EventSelectAvailability, "id": slot.ID},
		{"type": api.EventNext},
		{"type": api.EventUpdateContact, "contact": map[string]string{
			"name":  gofakeit.Name(),
			"email": gofakeit.Email(),
			"phone": gofakeit.Phone(),
		}},
		{"type": api.EventNext},
		{"type": api.EventUpdateNotes, "notes": gofakeit.RandomString(noteChoices)},
		{"type": api.EventNext},
	}
	for _, ev := range steps {
		if state, err = s.event(ctx, id, ev); err != nil {
			return outcomeError, err
		}
	}
	if state.StepKind != "confirm" {
		return outcomeError, fmt.Errorf("stuck on %s: %v", state.StepKind, state.FieldErrors)
	}

	start := time.Now()
	state, err = s.event(ctx, id, map[string]any{"type": api.EventSubmit})
	outcome := classify(state, err)
	s.metrics.Submit.Record(time.Since(start), outcome)
	return outcome, err
}

func classify(state api.StateView, err error) string {
	switch {
	case err != nil:
		return outcomeError
	case state.Done:
		return outcomeBooked
	case state.StepKind == "schedule":
		return outcomeConflict
	default:
		return outcomeRejected
	}
}

func (s *Simulator) event(ctx context.Context, id string, ev map[string]any) (api.StateView, error) {
	resp, err := s.call(ctx, http.MethodPost, "/wizard/sessions/"+id+"/events", ev)
	if err != nil {
		return api.StateView{}, err
	}
	return resp.State, nil
}

func (s *Simulator) call(ctx context.Context, method, path string, body any) (api.SessionResponse, error) {
	var out api.SessionResponse

	if err := s.limiter.Wait(ctx); err != nil {
		return out, err
	}

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return out, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, s.config.BFFBaseURL+path, &buf)
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, err
	}
	if resp.StatusCode >= 300 {
		return out, fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s response: %w", path, err)
	}
	return out, nil
}

func (s *Simulator) discard(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.config.BFFBaseURL+"/wizard/sessions/"+id, nil)
	if err != nil {
		return
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Rate limit: %.1f req/s\n", s.config.RPS)
	fmt.Println()

	printOperationReport("Booking flow", &s.metrics.Flow)
	printOperationReport("Submit", &s.metrics.Submit)
}

func printOperationReport(name string, om *OperationMetrics) {
	var total int64
	for _, o := range outcomes {
		total += om.Count(o)
	}
	if total == 0 {
		return
	}

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	for _, o := range outcomes {
		if n := om.Count(o); n > 0 {
			fmt.Printf("  %s: %d (%.1f%%)\n", o, n, float64(n)/float64(total)*100)
		}
	}

	avg, min, max, p50, p95 := om.Stats()
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
