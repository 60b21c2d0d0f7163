package opshttp

import (
	"net/http"

	"github.com/keithlinneman/contentd/internal/content"
	"github.com/keithlinneman/contentd/internal/health"
)

type Options struct {
	Port        int
	Metrics     http.Handler
	EnablePprof bool
	Health      health.Probe
	Readiness   health.Probe

	// Index, when set, is served as JSON at /content/index.
	Index *content.Snapshot

	OnPanic func() // Optional callback for when panics are recovered, e.g. to trigger alerts or increment prometheus counters, etc.
}
