package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the benchmark settings
var (
	targetURL   string
	token       string
	concurrency int
	duration    time.Duration
	workload    string
	clients     int
	productID   int64
)

// Metrics
var (
	totalRequests uint64
	success200    uint64 // Payments
	success201    uint64 // Sales
	fail4xx       uint64
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.StringVar(&token, "token", os.Getenv("API_TOKEN"), "API token")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
	flag.IntVar(&clients, "clients", 1000, "Number of seeded clients (ids 1..n)")
	flag.Int64Var(&productID, "product", 1, "Product id used for sales")
}

func main() {
	flag.Parse()
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start)
	}

	wg.Wait()
	printResults(time.Since(start))
}

// worker mixes sales (60%), amount payments (30%) and debt clearing (10%)
// so payment transactions contend with sales on the same client rows.
func worker(wg *sync.WaitGroup, start time.Time) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		id := pickClient()

		var path string
		var payload interface{}
		switch r := rand.Float32(); {
		case r < 0.6:
			value := float64(rand.Intn(2000)+100) / 100
			path = "/api/sales"
			payload = map[string]interface{}{
				"client_id": id,
				"value":     value,
				"products":  []map[string]interface{}{{"product_id": productID, "quantity": 1, "price": value}},
			}
		case r < 0.9:
			path = fmt.Sprintf("/api/clients/%d/partial-payment", id)
			payload = map[string]interface{}{"amount": rand.Intn(30) + 1}
		default:
			path = fmt.Sprintf("/api/clients/%d/clear-debt", id)
		}

		var body []byte
		if payload != nil {
			body, _ = json.Marshal(payload)
		}
		req, _ := http.NewRequest(http.MethodPost, targetURL+path, bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch {
		case resp.StatusCode == http.StatusCreated:
			atomic.AddUint64(&success201, 1)
		case resp.StatusCode == http.StatusOK:
			atomic.AddUint64(&success200, 1)
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			atomic.AddUint64(&fail4xx, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func pickClient() int64 {
	if workload == "hotspot" {
		// Hotspot: 90% of traffic goes to clients 1 & 2
		if rand.Float32() < 0.90 {
			return int64(rand.Intn(2) + 1)
		}
	}
	return int64(rand.Intn(clients) + 1)
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	s201 := atomic.LoadUint64(&success201)
	s200 := atomic.LoadUint64(&success200)
	f4xx := atomic.LoadUint64(&fail4xx)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()
	errorRate := 0.0
	if total > 0 {
		errorRate = float64(f4xx+fErr) / float64(total) * 100
	}

	results := map[string]interface{}{
		"workload":         workload,
		"duration_sec":     d.Seconds(),
		"total_requests":   total,
		"throughput_tps":   tps,
		"sales_created":    s201,
		"payments_applied": s200,
		"client_errors":    f4xx,
		"error_rate_pct":   errorRate,
		"errors":           fErr,
	}

	// Print JSON for the python plotter to consume
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	// Also save to file
	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		log.Printf("could not write %s: %v", filename, err)
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
