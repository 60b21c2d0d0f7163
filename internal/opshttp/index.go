package opshttp

import (
	"encoding/json"
	"net/http"

	"github.com/keithlinneman/contentd/internal/content"
)

// IndexHandler serves the registered route tree as JSON. The snapshot is
// built once at engine load, so no locking is needed here.
func IndexHandler(snap *content.Snapshot) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodHead {
			return
		}

		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(snap)
	}
}
