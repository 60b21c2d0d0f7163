// Package webassets embeds the fallback error pages served when
// negotiation fails and no content-provided error page exists.
package webassets

import (
	"embed"
	"fmt"
	"net/http"
)

//go:embed fallback
var embedded embed.FS

// ErrorPage returns the embedded HTML page for a status code, or false
// when no page is bundled for it.
func ErrorPage(status int) ([]byte, bool) {
	data, err := embedded.ReadFile(fmt.Sprintf("fallback/%d.html", status))
	if err != nil {
		return nil, false
	}
	return data, true
}

// ServeError writes the fallback page for status, falling back to the
// plain status text when no page is embedded.
func ServeError(w http.ResponseWriter, status int) {
	page, ok := ErrorPage(status)
	if !ok {
		http.Error(w, http.StatusText(status), status)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(page)
}
