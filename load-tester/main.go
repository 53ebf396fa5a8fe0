package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Config struct {
	BaseURL            string
	Total              int
	Rate               int
	Concurrency        int
	BatchSize          int
	DuplicationPercent int
	InvalidPercent     int
}

func parseFlags() *Config {
	c := &Config{}
	flag.StringVar(&c.BaseURL, "base-url", "", "Gateway base URL, e.g. http://localhost:8000 (required)")
	flag.IntVar(&c.Total, "total", 10000, "Total requests")
	flag.IntVar(&c.Rate, "rate", 2000, "Requests per second")
	flag.IntVar(&c.Concurrency, "concurrency", 0, "Worker count (0=auto)")
	flag.IntVar(&c.BatchSize, "batch-size", 0, "Events per request via /events/batch (0 = single-event endpoint)")
	flag.IntVar(&c.DuplicationPercent, "duplication-percent", 0, "Percent of events resent with the same event_id")
	flag.IntVar(&c.InvalidPercent, "invalid-percent", 0, "Percent of events sent with a required field missing")
	flag.Parse()

	if c.BaseURL == "" {
		fmt.Fprintln(os.Stderr, "Error: -base-url is required")
		flag.Usage()
		os.Exit(1)
	}

	if c.Concurrency == 0 {
		c.Concurrency = c.Rate / 20 // Auto-scale workers
		if c.Concurrency < 50 {
			c.Concurrency = 50
		}
	}

	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	c.DuplicationPercent = clampPercent(c.DuplicationPercent)
	c.InvalidPercent = clampPercent(c.InvalidPercent)

	return c
}

func clampPercent(p int) int {
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}

type Stats struct {
	ok      uint64
	errors  uint64
	latency int64 // microseconds
}

type EventPool struct {
	mu  sync.RWMutex
	buf []map[string]any
	max int
}

func NewEventPool(max int) *EventPool {
	return &EventPool{buf: make([]map[string]any, 0, max), max: max}
}

func (p *EventPool) Add(evt map[string]any) {
	clone := cloneEvent(evt)
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buf) >= p.max {
		p.buf = p.buf[1:]
	}
	p.buf = append(p.buf, clone)
}

func (p *EventPool) GetRandom(rng *rand.Rand) (map[string]any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.buf) == 0 {
		return nil, false
	}
	idx := rng.Intn(len(p.buf))
	return cloneEvent(p.buf[idx]), true
}

func (s *Stats) AddOK(duration time.Duration) {
	atomic.AddUint64(&s.ok, 1)
	atomic.AddInt64(&s.latency, duration.Microseconds())
}

func (s *Stats) AddError() {
	atomic.AddUint64(&s.errors, 1)
}

func (s *Stats) StartLogger(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	var lastOK, lastErr uint64

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok := atomic.LoadUint64(&s.ok)
			errs := atomic.LoadUint64(&s.errors)
			latTotal := atomic.LoadInt64(&s.latency)

			curOK := ok - lastOK
			curErr := errs - lastErr
			lastOK, lastErr = ok, errs

			avgLat := 0.0
			if ok > 0 {
				avgLat = float64(latTotal) / float64(ok) / 1000.0
			}

			log.Printf("[STATS] 1s -> OK: %d | ERR: %d | AvgLat: %.2fms | Total OK: %d", curOK, curErr, avgLat, ok)
		}
	}
}

func main() {
	cfg := parseFlags()
	stats := &Stats{}
	pool := NewEventPool(10000)

	// High-performance HTTP Client
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency,
			MaxIdleConnsPerHost: cfg.Concurrency, // Critical: Keep as many connections open as there are workers.
			IdleConnTimeout:     90 * time.Second,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}

	log.Printf("Starting Load Test: Target=%s Rate=%d/s Total=%d Workers=%d Batch=%d", cfg.BaseURL, cfg.Rate, cfg.Total, cfg.Concurrency, cfg.BatchSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stats Logger
	go stats.StartLogger(ctx)

	// Job Queue
	jobs := make(chan struct{}, cfg.Rate*2)
	var wg sync.WaitGroup
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	rngs := make([]*rand.Rand, cfg.Concurrency)
	for i := 0; i < cfg.Concurrency; i++ {
		rngs[i] = rand.New(rand.NewSource(rng.Int63()))
	}

	// Workers
	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go startWorker(client, cfg, jobs, stats, pool, rngs[i], &wg)
	}

	// Rate Limiter (Main Loop)
	remaining := cfg.Total
	for remaining > 0 {
		start := time.Now()
		batch := cfg.Rate
		if remaining < batch {
			batch = remaining
		}

		for i := 0; i < batch; i++ {
			jobs <- struct{}{}
		}
		remaining -= batch

		elapsed := time.Since(start)
		if elapsed < time.Second {
			time.Sleep(time.Second - elapsed)
		}
	}

	close(jobs)
	wg.Wait()

	log.Printf("DONE. Total OK: %d | Total Errors: %d", atomic.LoadUint64(&stats.ok), atomic.LoadUint64(&stats.errors))
}

func startWorker(client *http.Client, cfg *Config, jobs <-chan struct{}, stats *Stats, pool *EventPool, rng *rand.Rand, wg *sync.WaitGroup) {
	defer wg.Done()

	headers := http.Header{"Content-Type": []string{"application/json"}}

	for range jobs {
		url, body := nextRequest(cfg, rng, pool)
		start := time.Now()

		err := sendEvent(client, url, body, headers)
		if err != nil {
			stats.AddError()
		} else {
			stats.AddOK(time.Since(start))
		}
	}
}

// nextRequest builds either a single-event request on /events/{kind} or a
// mixed-kind batch on /events/batch.
func nextRequest(cfg *Config, rng *rand.Rand, pool *EventPool) (string, any) {
	if cfg.BatchSize <= 0 {
		evt := pickEvent(rng, pool, cfg.DuplicationPercent, cfg.InvalidPercent)
		kind := evt["event_type"].(string)
		return cfg.BaseURL + "/events/" + kind, evt
	}

	events := make([]map[string]any, 0, cfg.BatchSize)
	for i := 0; i < cfg.BatchSize; i++ {
		events = append(events, pickEvent(rng, pool, cfg.DuplicationPercent, cfg.InvalidPercent))
	}
	return cfg.BaseURL + "/events/batch", map[string]any{"events": events}
}

func sendEvent(client *http.Client, url string, data any, headers http.Header) error {
	body, _ := json.Marshal(data)
	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	req.Header = headers

	resp, err := client.Do(req)
	if err != nil {
		return err
	}

	// Performance Hack: Read and discard the Body so the connection can be reused (Keep-Alive)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("http status: %d", resp.StatusCode)
	}
	return nil
}

var (
	eventKinds = []string{"video_watch", "video_like", "video_comment", "video_skip"}
	skipTypes  = []string{"manual", "auto", "recommendation"}
	qualities  = []string{"360p", "720p", "1080p", "4k"}
	devices    = []string{"ios", "android", "web", "tv"}
	countries  = []string{"TR", "US", "DE", "BR"}

	requiredByKind = map[string]string{
		"video_watch":   "video_duration_ms",
		"video_like":    "is_liked",
		"video_comment": "comment_id",
		"video_skip":    "skip_time_ms",
	}
)

func pickEvent(rng *rand.Rand, pool *EventPool, dupPercent, invalidPercent int) map[string]any {
	if dupPercent > 0 && rng.Intn(100) < dupPercent {
		if evt, ok := pool.GetRandom(rng); ok {
			return evt
		}
	}
	evt := generateRandomEvent(rng)
	if invalidPercent > 0 && rng.Intn(100) < invalidPercent {
		delete(evt, requiredByKind[evt["event_type"].(string)])
		return evt
	}
	pool.Add(evt)
	return evt
}

func generateRandomEvent(rng *rand.Rand) map[string]any {
	kind := eventKinds[rng.Intn(len(eventKinds))]
	evt := map[string]any{
		"event_id":   fmt.Sprintf("%016x%016x", rng.Uint64(), rng.Uint64()),
		"event_type": kind,
		"user_id":    fmt.Sprintf("user_%d", rng.Intn(100000)),
		"video_id":   fmt.Sprintf("video_%d", rng.Intn(5000)),
		"timestamp":  time.Now().UnixMilli() - int64(rng.Intn(60000)), // Last 60 seconds
		"session_id": fmt.Sprintf("sess_%d", rng.Intn(1000000)),
		"device_info": map[string]any{
			"type": devices[rng.Intn(len(devices))],
		},
		"geo_location": map[string]any{
			"country": countries[rng.Intn(len(countries))],
		},
	}

	switch kind {
	case "video_watch":
		total := 10000 + rng.Intn(600000)
		evt["video_duration_ms"] = total
		evt["watch_duration_ms"] = rng.Intn(total + 1)
		evt["playback_quality"] = qualities[rng.Intn(len(qualities))]
		evt["is_autoplay"] = rng.Intn(2) == 0
		evt["is_fullscreen"] = rng.Intn(4) == 0
	case "video_like":
		evt["is_liked"] = rng.Intn(10) > 0
	case "video_comment":
		evt["comment_id"] = fmt.Sprintf("cmt_%d", rng.Int63())
		evt["comment_text"] = "great video"
		if rng.Intn(3) == 0 {
			evt["parent_comment_id"] = fmt.Sprintf("cmt_%d", rng.Int63())
		}
	case "video_skip":
		evt["skip_time_ms"] = rng.Intn(30000)
		evt["skip_type"] = skipTypes[rng.Intn(len(skipTypes))]
	}
	return evt
}

func cloneEvent(evt map[string]any) map[string]any {
	if evt == nil {
		return nil
	}
	clone := make(map[string]any, len(evt))
	for k, v := range evt {
		switch val := v.(type) {
		case map[string]any:
			nested := make(map[string]any, len(val))
			for nk, nv := range val {
				nested[nk] = nv
			}
			clone[k] = nested
		default:
			clone[k] = v
		}
	}
	return clone
}
