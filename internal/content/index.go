package content

import (
	"sort"

	"github.com/keithlinneman/contentd/internal/route"
)

// Index is the hierarchical view of registered routes, built once during
// load by repeated Add and frozen afterwards. Leaves and directories live
// in separate namespaces: a resource named bar and a directory holding
// bar's children coexist, and directory names carry a trailing '/' in
// snapshots to keep the two apart.
type Index struct {
	root *dirNode
}

type dirNode struct {
	leaves map[string]route.Route
	dirs   map[string]*dirNode
}

func newDirNode() *dirNode {
	return &dirNode{leaves: map[string]route.Route{}, dirs: map[string]*dirNode{}}
}

func NewIndex() *Index {
	return &Index{root: newDirNode()}
}

// Add inserts r as a resource leaf, creating intermediate directories
// (mkdir-p semantics). Re-adding an existing resource is a no-op so that
// multiple media type representations can share one route. Because leaves
// and directories never collide, insertion is total and order-independent
// in effect.
func (ix *Index) Add(r route.Route) {
	segs := r.Segments()
	if len(segs) == 0 {
		// the root route is a resource hosted above the tree; nothing to index
		return
	}

	cur := ix.root
	for _, seg := range segs[:len(segs)-1] {
		child, ok := cur.dirs[seg]
		if !ok {
			child = newDirNode()
			cur.dirs[seg] = child
		}
		cur = child
	}

	last := segs[len(segs)-1]
	if _, ok := cur.leaves[last]; ok {
		// another representation of the same resource
		return
	}
	cur.leaves[last] = r
}

// Snapshot flattens the index into a sorted, JSON-friendly tree. It is
// what templates and the admin API consume.
type Snapshot struct {
	Entries []SnapshotEntry `json:"entries"`
}

// SnapshotEntry is a resource leaf or a directory of further entries.
// Directory names are suffixed with '/' to keep them distinct from a
// resource of the same name.
type SnapshotEntry struct {
	Name    string          `json:"name"`
	Route   string          `json:"route,omitempty"`
	Entries []SnapshotEntry `json:"entries,omitempty"`
}

// Snapshot renders the current tree. The index is immutable after engine
// construction, so the snapshot can be taken once and shared.
func (ix *Index) Snapshot() *Snapshot {
	return &Snapshot{Entries: snapshotDir(ix.root)}
}

func snapshotDir(d *dirNode) []SnapshotEntry {
	names := make([]string, 0, len(d.leaves)+len(d.dirs))
	for name := range d.leaves {
		names = append(names, name)
	}
	for name := range d.dirs {
		names = append(names, name+"/")
	}
	sort.Strings(names)

	out := make([]SnapshotEntry, 0, len(names))
	for _, name := range names {
		if r, ok := d.leaves[name]; ok {
			out = append(out, SnapshotEntry{Name: name, Route: r.String()})
			continue
		}
		dirName := name[:len(name)-1]
		out = append(out, SnapshotEntry{Name: name, Entries: snapshotDir(d.dirs[dirName])})
	}
	return out
}
