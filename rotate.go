package rotar

// Next is the rotation state machine: given the tree reconstructed
// from disk, it returns the path of the archive to create next and
// the paths superseded by that creation.  Pure function, no I/O;
// callers must only retire the returned paths after the new archive
// is durably in place.
//
// The rules, with cur = active chain and maxDepth = levels-1:
//
//   - empty tree: create the root, retire nothing
//   - depth(cur) < maxDepth: descend, first sibling index is 1
//   - last index at cur's depth below count: create the next sibling
//   - otherwise carry: ascend past exhausted levels and create the
//     next sibling at the first level with room; ascending past depth
//     1 recreates the root
//
// Whenever the new path is shallower than the old tip, everything
// strictly deeper than the new path is retired: those incrementals
// only continue the branch being abandoned.  A recreated root retires
// its own slot too; the caller replaces that file in place.
func Next(tree *Tree, levels, count int) (next Path, retired []Path) {
	if tree.Empty() {
		return Path{}, nil
	}
	cur := tree.ActiveChain()
	maxDepth := levels - 1
	switch {
	case cur.Depth() == 0:
		// only the root exists
		if maxDepth >= 1 {
			return cur.Child(1), nil
		}
		// no incremental levels configured: rotate the full archive
		next = Path{}
	case cur.Depth() < maxDepth:
		return cur.Child(1), nil
	default:
		p := cur
		for p.Depth() > 0 && p.Last() >= count {
			p = p.Parent()
		}
		if p.Depth() == 0 {
			next = Path{}
		} else {
			next = p.Parent().Child(p.Last() + 1)
		}
	}
	retired = tree.DeeperThan(next.Depth())
	if tree.Has(next) {
		retired = append(retired, next)
	}
	return
}
