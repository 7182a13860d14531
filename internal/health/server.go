package health

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves /health, /health/detailed and /metrics.
func Handler(monitor *Monitor) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		handleHealth(monitor, w, r)
	})
	mux.HandleFunc("/health/detailed", func(w http.ResponseWriter, r *http.Request) {
		handleDetailed(monitor, w, r)
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func handleHealth(monitor *Monitor, w http.ResponseWriter, r *http.Request) {
	report := monitor.CheckHealth(r.Context())

	response := map[string]string{"status": string(report.SystemStatus)}
	w.Header().Set("Content-Type", "application/json")

	if report.SystemStatus == StatusCritical {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	_ = json.NewEncoder(w).Encode(response)
}

func handleDetailed(monitor *Monitor, w http.ResponseWriter, r *http.Request) {
	report := monitor.CheckHealth(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if report.SystemStatus == StatusCritical {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(report)
}
