package rotar

import (
	"io/ioutil"
	"os"
	"sort"

	log "github.com/sirupsen/logrus"
	. "github.com/stevegt/goadapt"
)

// Tree is the rotation tree reconstructed from one directory listing:
// the set of paths whose archives exist on disk.  It is rebuilt from
// scratch on every run; the filesystem is the only persistent state.
type Tree struct {
	Name  string
	paths map[string]Path
}

func NewTree(name string) *Tree {
	return &Tree{Name: name, paths: make(map[string]Path)}
}

func (tree *Tree) Add(p Path) {
	tree.paths[p.String()] = p
}

func (tree *Tree) Remove(p Path) {
	delete(tree.paths, p.String())
}

func (tree *Tree) Has(p Path) bool {
	_, ok := tree.paths[p.String()]
	return ok
}

func (tree *Tree) Empty() bool {
	return len(tree.paths) == 0
}

func (tree *Tree) Len() int {
	return len(tree.paths)
}

// All returns every path in the tree, shallowest first, siblings in
// index order.
func (tree *Tree) All() (out []Path) {
	for _, p := range tree.paths {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Depth() != out[j].Depth() {
			return out[i].Depth() < out[j].Depth()
		}
		return out[i].Less(out[j])
	})
	return
}

// DeeperThan returns every path of depth greater than d, in All()
// order.
func (tree *Tree) DeeperThan(d int) (out []Path) {
	for _, p := range tree.All() {
		if p.Depth() > d {
			out = append(out, p)
		}
	}
	return
}

// ActiveChain returns the deepest path all of whose prefixes are also
// present; depth ties break toward the lexicographically greatest
// index sequence.  The empty path means either "tree is empty" or
// "only the root exists" -- callers distinguish via Empty().
func (tree *Tree) ActiveChain() (chain Path) {
	chain = Path{}
	for _, p := range tree.All() {
		if !tree.rooted(p) {
			continue
		}
		if p.Depth() > chain.Depth() || (p.Depth() == chain.Depth() && chain.Less(p)) {
			chain = p
		}
	}
	return
}

// rooted reports whether every prefix of p exists in the tree.
func (tree *Tree) rooted(p Path) bool {
	for d := 0; d < p.Depth(); d++ {
		if !tree.Has(p[:d]) {
			return false
		}
	}
	return true
}

// orphan returns the shallowest path whose parent is missing.
func (tree *Tree) orphan() (Path, bool) {
	for _, p := range tree.All() {
		if p.Depth() > 0 && !tree.Has(p.Parent()) {
			return p, true
		}
	}
	return nil, false
}

// Scan lists dir, decodes every archive file name belonging to name,
// and builds the rotation tree.  Files that do not decode (tokens,
// lock files, other backups) are ignored.  A missing directory is an
// empty tree.  A decoded path whose parent archive is absent fails
// the scan with InconsistentTreeError.
func Scan(dir, name string) (tree *Tree, err error) {
	defer Return(&err)
	tree = NewTree(name)
	entries, err := ioutil.ReadDir(dir)
	if os.IsNotExist(err) {
		return tree, nil
	}
	Ck(err)
	for _, fi := range entries {
		if fi.IsDir() {
			continue
		}
		p, ok := ParseFileName(name, fi.Name())
		if !ok {
			continue
		}
		tree.Add(p)
	}
	if orphan, found := tree.orphan(); found {
		return nil, &InconsistentTreeError{Dir: dir, Name: name, Orphan: orphan}
	}
	log.Debugf("scanned %d archives for %q in %s", tree.Len(), name, dir)
	return tree, nil
}
