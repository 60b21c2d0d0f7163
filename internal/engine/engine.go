package engine

import (
	"io"
	"sync"
	"text/template"

	"github.com/keithlinneman/contentd/internal/body"
	"github.com/keithlinneman/contentd/internal/content"
	"github.com/keithlinneman/contentd/internal/log"
	"github.com/keithlinneman/contentd/internal/media"
	"github.com/keithlinneman/contentd/internal/route"
	"github.com/keithlinneman/contentd/internal/xerrors"
)

// DefaultTemplateExt is the extension marking a file as a template.
const DefaultTemplateExt = "tmpl"

type Options struct {
	Logger log.Logger

	// Files is the scanned content set; the engine takes ownership of the
	// open handles and closes them on Close.
	Files []*content.File

	// Pool runs the blocking reads behind file and process bodies.
	Pool *body.Pool

	// TemplateExt overrides the template-marker extension (default "tmpl").
	TemplateExt string

	// OnRenderFailure is called once per failed render attempt with the
	// representation kind (static, template, executable). Used for metrics.
	OnRenderFailure func(kind string)
}

// Engine holds the registry, index, and template set built once at load.
// Registry and index are immutable afterwards; the template set is guarded
// by a reader/writer lock so render-time clones and helper registration
// cannot interleave.
type Engine struct {
	logger          log.Logger
	pool            *body.Pool
	files           []*content.File
	onRenderFailure func(kind string)

	registry  map[route.Route]map[media.Type]renderer
	index     *content.Index
	indexSnap *content.Snapshot

	mu        sync.RWMutex
	templates *template.Template
}

// New builds an engine from scanned files. Any classification, template
// parse, or duplicate registration aborts construction; there is no
// partially loaded engine.
func New(opts Options) (*Engine, error) {
	if opts.Pool == nil {
		return nil, xerrors.New("engine: Pool is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	tmplExt := opts.TemplateExt
	if tmplExt == "" {
		tmplExt = DefaultTemplateExt
	}

	e := &Engine{
		logger:          opts.Logger,
		pool:            opts.Pool,
		files:           opts.Files,
		onRenderFailure: opts.OnRenderFailure,
		registry:        map[route.Route]map[media.Type]renderer{},
		index:           content.NewIndex(),
		// the placeholder func is replaced by a bound closure on every
		// render; it exists so templates referencing get parse at load
		templates: template.New("contentd").Funcs(template.FuncMap{
			"get": func(args ...any) (string, error) {
				return "", xerrors.New("get invoked outside a render")
			},
		}),
	}

	for _, f := range opts.Files {
		if err := e.register(f, tmplExt); err != nil {
			e.Close()
			return nil, err
		}
	}
	e.indexSnap = e.index.Snapshot()
	return e, nil
}

// register classifies one file and installs its representation.
func (e *Engine) register(f *content.File, tmplExt string) error {
	var (
		mt   media.Type
		rend renderer
	)

	switch {
	case len(f.Extensions) == 1:
		t, ok := media.TypeForExtension(f.Extensions[0])
		if !ok {
			return &FileNameError{Path: f.RelPath, Extensions: f.Extensions}
		}
		mt = t
		if f.Executable {
			rend = &executableItem{file: f, mediaType: mt}
		} else {
			rend = &staticItem{file: f, mediaType: mt}
		}

	case len(f.Extensions) == 2 && f.Extensions[1] == tmplExt:
		t, ok := media.TypeForExtension(f.Extensions[0])
		if !ok {
			return &FileNameError{Path: f.RelPath, Extensions: f.Extensions}
		}
		mt = t
		if f.Executable {
			// the executable bit wins over the template suffix
			rend = &executableItem{file: f, mediaType: mt}
			break
		}
		src, err := readAll(f)
		if err != nil {
			return xerrors.Wrapf(err, "read template %s", f.RelPath)
		}
		name := templateName(f.Route, mt)
		if _, err := e.templates.New(name).Parse(string(src)); err != nil {
			return xerrors.Wrapf(err, "parse template %s", f.RelPath)
		}
		rend = &templateItem{name: name, mediaType: mt}

	default:
		return &FileNameError{Path: f.RelPath, Extensions: f.Extensions}
	}

	reps := e.registry[f.Route]
	if reps == nil {
		reps = map[media.Type]renderer{}
		e.registry[f.Route] = reps
	}
	if _, dup := reps[mt]; dup {
		// two files claiming one (route, media type) pair should never
		// survive the filename scheme
		return xerrors.Newf("internal consistency: duplicate registration of %s as %s (file %s)", f.Route, mt, f.RelPath)
	}
	reps[mt] = rend

	e.index.Add(f.Route)
	return nil
}

func templateName(r route.Route, mt media.Type) string {
	return r.String() + "|" + mt.String()
}

// readAll reads a file through its shared handle without moving its offset.
func readAll(f *content.File) ([]byte, error) {
	return io.ReadAll(io.NewSectionReader(f.Handle, 0, f.Size))
}

// Index returns the immutable index snapshot.
func (e *Engine) Index() *content.Snapshot { return e.indexSnap }

// Routes returns how many routes are registered, for startup logging.
func (e *Engine) Routes() int { return len(e.registry) }

// RegisterHelper installs an additional template helper. It takes the
// writer side of the template lock: no renders may be cloning the set
// while the function table changes.
func (e *Engine) RegisterHelper(name string, fn any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates.Funcs(template.FuncMap{name: fn})
}

// Close releases every content file handle.
func (e *Engine) Close() error {
	var first error
	for _, f := range e.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
