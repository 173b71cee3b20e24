// Package admin implements the read-only HTTP surface from spec §6:
// /health, /metrics and /dashboard. None of these mutate store.Manager;
// they only ever read a Stats snapshot. Auth, rate-limiting, ACLs and
// config-file loading remain external-collaborator contracts (contracts.go)
// per spec §1/§6 — nothing here enforces them.
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RogerFelipeNsk/crabcache/metrics/prom"
	"github.com/RogerFelipeNsk/crabcache/store"
)

const dashboardPage = `<!DOCTYPE html>
<html>
<head><title>crabcache</title></head>
<body>
<h1>crabcache</h1>
<p>See <a href="/health">/health</a> and <a href="/metrics">/metrics</a>.</p>
</body>
</html>
`

// NewMux builds the admin HTTP surface for mgr. The returned registry
// already has the prom.Collector registered under ns/sub; callers only
// need to serve the mux.
func NewMux(mgr *store.Manager, ns, sub string) *http.ServeMux {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prom.New(mgr, ns, sub, nil))

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler(mgr))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/dashboard", dashboardHandler)
	return mux
}

func healthHandler(mgr *store.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if _, err := mgr.Stats(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}
}

func dashboardHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(dashboardPage))
}
