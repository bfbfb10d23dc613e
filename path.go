package rotar

import (
	"fmt"
	"strings"

	. "github.com/stevegt/goadapt"
)

// file name suffixes
const (
	Ext      = ".tar.gz" // archive
	TokenExt = ".snar"   // incremental-state token
)

// MaxCount is the largest usable sibling index; the index field in an
// archive name is two digits wide.
const MaxCount = 99

// Path locates one archive in the rotation tree: a sequence of
// 1-based sibling indices.  The empty Path is the root (full)
// archive.
type Path []int

func (p Path) Depth() int {
	return len(p)
}

// Parent returns the path one level up.  The root has no parent.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1]
}

// Child returns a copy of p extended with sibling index i.
func (p Path) Child(i int) Path {
	child := make(Path, len(p)+1)
	copy(child, p)
	child[len(p)] = i
	return child
}

// Last returns the deepest sibling index.
func (p Path) Last() int {
	Assert(len(p) > 0, "root path has no sibling index")
	return p[len(p)-1]
}

func (p Path) Equal(q Path) bool {
	if len(p) != len(q) {
		return false
	}
	for i := range p {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// Less orders paths lexicographically by index sequence; a path sorts
// before its own descendants.
func (p Path) Less(q Path) bool {
	for i := 0; i < len(p) && i < len(q); i++ {
		if p[i] != q[i] {
			return p[i] < q[i]
		}
	}
	return len(p) < len(q)
}

func (p Path) String() string {
	if len(p) == 0 {
		return "()"
	}
	parts := make([]string, len(p))
	for i, n := range p {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// stem is the file name without suffix: name for the root,
// name_01_02... for deeper paths, each index zero-padded to two
// digits.
func stem(name string, p Path) string {
	var b strings.Builder
	b.WriteString(name)
	for _, i := range p {
		Assert(i >= 1 && i <= MaxCount, "sibling index out of range: %d", i)
		fmt.Fprintf(&b, "_%02d", i)
	}
	return b.String()
}

// FileName encodes a path as an archive file name.
func FileName(name string, p Path) string {
	return stem(name, p) + Ext
}

// TokenName encodes a path as the file name of the archive's
// incremental-state token.
func TokenName(name string, p Path) string {
	return stem(name, p) + TokenExt
}

// ParseFileName decodes an archive file name back into a path.  The
// second return value is false if fn does not belong to the given
// backup name or does not match the name grammar.
func ParseFileName(name, fn string) (p Path, ok bool) {
	return parse(name, fn, Ext)
}

// ParseTokenName decodes a token file name back into a path.
func ParseTokenName(name, fn string) (p Path, ok bool) {
	return parse(name, fn, TokenExt)
}

func parse(name, fn, suffix string) (p Path, ok bool) {
	if !strings.HasSuffix(fn, suffix) {
		return nil, false
	}
	st := strings.TrimSuffix(fn, suffix)
	if st == name {
		return Path{}, true
	}
	if !strings.HasPrefix(st, name+"_") {
		return nil, false
	}
	p = Path{}
	for _, part := range strings.Split(st[len(name)+1:], "_") {
		// exactly two digits per index
		if len(part) != 2 || part[0] < '0' || part[0] > '9' || part[1] < '0' || part[1] > '9' {
			return nil, false
		}
		n := int(part[0]-'0')*10 + int(part[1]-'0')
		if n < 1 {
			return nil, false
		}
		p = append(p, n)
	}
	return p, true
}

// Owns reports whether fn is the archive or token of some valid path
// for the given backup name.
func Owns(name, fn string) bool {
	if _, ok := ParseFileName(name, fn); ok {
		return true
	}
	_, ok := ParseTokenName(name, fn)
	return ok
}
