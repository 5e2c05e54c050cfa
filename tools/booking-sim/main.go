package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// Fires concurrent booking requests for the same doctor and slot and reports
// the outcome counts. Useful for checking that exactly one request wins a
// contested slot against a running booking-service.
func main() {
	var (
		baseURL  = flag.String("base-url", getenv("BASE_URL", "http://localhost:8083"), "booking service base url")
		doctorID = flag.String("doctor-id", getenv("DOCTOR_ID", ""), "doctor to book against")
		start    = flag.String("start", getenv("START_TIME", ""), "slot start time (RFC 3339, defaults to tomorrow 10:00 UTC)")
		workers  = flag.Int("workers", 8, "concurrent booking attempts")
	)
	flag.Parse()

	if strings.TrimSpace(*doctorID) == "" {
		fatal("DOCTOR_ID is required")
	}

	startTime := *start
	if startTime == "" {
		tomorrow := time.Now().UTC().AddDate(0, 0, 1)
		startTime = time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 10, 0, 0, 0, time.UTC).Format(time.RFC3339)
	} else if _, err := time.Parse(time.RFC3339, startTime); err != nil {
		fatal("invalid start time: " + err.Error())
	}

	url := strings.TrimRight(*baseURL, "/") + "/api/v1/appointments"

	var mu sync.Mutex
	counts := map[int]int{}

	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			body, err := json.Marshal(map[string]any{
				"patient_id": fmt.Sprintf("sim-patient-%d", n),
				"doctor_id":  *doctorID,
				"start_time": startTime,
				"reason":     "load simulation",
			})
			if err != nil {
				fatal(err.Error())
			}

			req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				fatal(err.Error())
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Requested-By", "booking-sim")

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				fatal(err.Error())
			}
			resp.Body.Close()

			mu.Lock()
			counts[resp.StatusCode]++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	for status, n := range counts {
		fmt.Printf("status=%d count=%d\n", status, n)
	}
	if counts[http.StatusCreated] != 1 {
		fmt.Fprintf(os.Stderr, "expected exactly one 201, got %d\n", counts[http.StatusCreated])
		os.Exit(1)
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
