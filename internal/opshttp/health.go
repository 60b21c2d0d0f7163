package opshttp

import (
	"net/http"

	"github.com/keithlinneman/contentd/internal/health"
)

// probeHandler answers 200 with okBody while p passes and 503 with the
// failure reason once it does not. A nil probe always passes, which keeps
// wiring optional checks simple.
func probeHandler(p health.Probe, okBody string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			if err := p.Check(r.Context()); err != nil {
				http.Error(w, err.Error()+"\n", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(okBody))
	}
}

// HealthzHandler is the liveness endpoint.
func HealthzHandler(p health.Probe) http.HandlerFunc {
	return probeHandler(p, "ok\n")
}

// ReadyzHandler is the readiness endpoint; it goes 503 while the shutdown
// gate is draining so the load balancer stops routing here.
func ReadyzHandler(p health.Probe) http.HandlerFunc {
	return probeHandler(p, "ready\n")
}
