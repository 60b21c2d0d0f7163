package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/keithlinneman/contentd/internal/body"
	"github.com/keithlinneman/contentd/internal/content"
	"github.com/keithlinneman/contentd/internal/media"
	"github.com/keithlinneman/contentd/internal/xerrors"
)

// Request is the per-request context reaching templates and executables.
type Request struct {
	// Route is the originating request route; empty when the render was
	// not triggered by a request (warmup, tests).
	Route   string
	Query   map[string]string
	Headers map[string]string
}

// renderer is the closed set of representation kinds. Each renders itself
// into a body for its one registered media type.
type renderer interface {
	render(ctx context.Context, e *Engine, req Request, extra map[string]any) (media.Type, body.Body, error)
	kind() string
}

// staticItem serves a file's bytes as-is.
type staticItem struct {
	file      *content.File
	mediaType media.Type
}

func (s *staticItem) kind() string { return "static" }

func (s *staticItem) render(ctx context.Context, e *Engine, req Request, extra map[string]any) (media.Type, body.Body, error) {
	return s.mediaType, body.NewFile(s.file.Handle, s.file.Size, e.pool), nil
}

// templateItem renders a parsed template to an in-memory body.
type templateItem struct {
	name      string
	mediaType media.Type
}

func (t *templateItem) kind() string { return "template" }

func (t *templateItem) render(ctx context.Context, e *Engine, req Request, extra map[string]any) (media.Type, body.Body, error) {
	// Clone under the read lock: renders share the parsed set but never
	// execute it directly, so recursive gets cannot corrupt it.
	e.mu.RLock()
	set, err := e.templates.Clone()
	e.mu.RUnlock()
	if err != nil {
		return media.Type{}, nil, xerrors.Wrapf(err, "clone template set for %s", t.name)
	}

	set.Funcs(template.FuncMap{"get": e.getHelper(ctx, t.mediaType, req)})

	var buf bytes.Buffer
	if err := set.ExecuteTemplate(&buf, t.name, e.contextData(t.mediaType, req, extra)); err != nil {
		return media.Type{}, nil, xerrors.Wrapf(err, "render template %s", t.name)
	}
	return t.mediaType, body.NewMemory(buf.Bytes()), nil
}

// executableItem runs the file and streams its stdout.
type executableItem struct {
	file      *content.File
	mediaType media.Type
}

func (x *executableItem) kind() string { return "executable" }

func (x *executableItem) render(ctx context.Context, e *Engine, req Request, extra map[string]any) (media.Type, body.Body, error) {
	b, err := body.StartProcess(x.file.AbsPath, processEnv(x.mediaType, req, extra), e.pool)
	if err != nil {
		return media.Type{}, nil, xerrors.Wrapf(err, "exec %s", x.file.RelPath)
	}
	return x.mediaType, b, nil
}

// contextData builds the template data map. Stable key contract: see the
// package doc. Extra pairs overwrite request-derived keys.
func (e *Engine) contextData(target media.Type, req Request, extra map[string]any) map[string]any {
	query := req.Query
	if query == nil {
		query = map[string]string{}
	}
	headers := req.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	data := map[string]any{
		"MediaType": target.String(),
		"Query":     query,
		"Headers":   headers,
		"Index":     e.indexSnap,
	}
	if req.Route != "" {
		data["Route"] = req.Route
	}
	for k, v := range extra {
		data[k] = v
	}
	return data
}

// processEnv carries the same contract to a child process as CONTENT_*
// variables, layered over the server's own environment.
func processEnv(target media.Type, req Request, extra map[string]any) []string {
	env := os.Environ()
	env = append(env, "CONTENT_MEDIA_TYPE="+target.String())
	if req.Route != "" {
		env = append(env, "CONTENT_ROUTE="+req.Route)
	}
	for k, v := range req.Query {
		env = append(env, "CONTENT_QUERY_"+envKey(k)+"="+v)
	}
	for k, v := range req.Headers {
		env = append(env, "CONTENT_HEADER_"+envKey(k)+"="+v)
	}
	for k, v := range extra {
		env = append(env, "CONTENT_EXTRA_"+envKey(k)+"="+fmt.Sprint(v))
	}
	return env
}

func envKey(k string) string {
	k = strings.ToUpper(k)
	return strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, k)
}
