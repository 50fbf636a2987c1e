package dag

import "fmt"

// key is the hash-consing key: two nodes with an equal key are the same
// node (invariant 1, spec §3.2).
type key struct {
	kind             Kind
	width, idxWidth  uint32
	lower, upper     uint32
	bits             string
	c0, c1, c2       Ref
	nkids            int
}

// Store owns all node storage for one rewriting session. It is not
// goroutine-safe; the rewriter is single-threaded (spec §5).
type Store struct {
	table  map[key]*Node
	nextID int64
}

// NewStore creates an empty, hash-consed node store.
func NewStore() *Store {
	return &Store{table: make(map[key]*Node)}
}

func (s *Store) alloc(k key) *Node {
	if n, ok := s.table[k]; ok {
		return n
	}
	s.nextID++
	n := &Node{
		id:         s.nextID,
		kind:       k.kind,
		width:      k.width,
		indexWidth: k.idxWidth,
		lower:      k.lower,
		upper:      k.upper,
		bits:       k.bits,
		numKids:    k.nkids,
	}
	n.children[0], n.children[1], n.children[2] = k.c0, k.c1, k.c2
	s.table[k] = n
	return n
}

// canon orders a, b by id-of-real-address so that commutative kinds
// always hash-cons identically regardless of call order (invariant 2 and
// testable property 5).
func canon(a, b Ref) (Ref, Ref) {
	if RealAddress(a).ID() > RealAddress(b).ID() {
		return b, a
	}
	return a, b
}

// NewConst creates (or reuses) a BVConst node for the given bit string.
func (s *Store) NewConst(bits string) Ref {
	k := key{kind: BVConst, width: uint32(len(bits)), bits: bits}
	n := s.alloc(k)
	return s.Acquire(wrap(n))
}

// NewBVVar creates a fresh, uninterned bit-vector variable of the given
// width. Variables are never hash-consed: two calls always yield distinct
// symbols.
func (s *Store) NewBVVar(width uint32) Ref {
	s.nextID++
	n := &Node{id: s.nextID, kind: BVVar, width: width}
	return s.Acquire(wrap(n))
}

// NewArrayVar creates a fresh array variable with the given index and
// element width.
func (s *Store) NewArrayVar(indexWidth, elemWidth uint32) Ref {
	s.nextID++
	n := &Node{id: s.nextID, kind: ArrayVar, width: elemWidth, indexWidth: indexWidth}
	return s.Acquire(wrap(n))
}

// BuildSlice creates (or reuses) a primitive Slice node. Per invariant 3,
// callers must not pass a Slice-kinded e; fuse first.
func (s *Store) BuildSlice(e Ref, upper, lower uint32) Ref {
	if RealAddress(e).kind == Slice {
		panic("dag: BuildSlice called on a Slice child; fuse before building")
	}
	k := key{kind: Slice, width: upper - lower + 1, lower: lower, upper: upper, c0: e, nkids: 1}
	return s.Acquire(wrap(s.alloc(k)))
}

// BuildBinary creates (or reuses) a primitive binary bit-vector/array node
// of the given kind. For commutative kinds the children are canonically
// ordered before hash-consing.
func (s *Store) BuildBinary(kind Kind, e0, e1 Ref) Ref {
	width := resultWidth(kind, e0, e1)
	if kind.IsCommutative() {
		e0, e1 = canon(e0, e1)
	}
	k := key{kind: kind, width: width, c0: e0, c1: e1, nkids: 2}
	return s.Acquire(wrap(s.alloc(k)))
}

// BuildRead creates (or reuses) a primitive Read node.
func (s *Store) BuildRead(array, index Ref) Ref {
	k := key{kind: Read, width: RealAddress(array).width, c0: array, c1: index, nkids: 2}
	return s.Acquire(wrap(s.alloc(k)))
}

// BuildWrite creates (or reuses) a primitive Write node.
func (s *Store) BuildWrite(array, index, value Ref) Ref {
	an := RealAddress(array)
	k := key{kind: Write, width: an.width, idxWidth: an.indexWidth, c0: array, c1: index, c2: value, nkids: 3}
	return s.Acquire(wrap(s.alloc(k)))
}

// BuildCond creates (or reuses) a primitive Bcond/Acond node.
func (s *Store) BuildCond(cond, x, y Ref) Ref {
	kind := Bcond
	if RealAddress(x).kind.IsArrayKind() {
		kind = Acond
	}
	xn := RealAddress(x)
	k := key{kind: kind, width: xn.width, idxWidth: xn.indexWidth, c0: cond, c1: x, c2: y, nkids: 3}
	return s.Acquire(wrap(s.alloc(k)))
}

func resultWidth(kind Kind, e0, e1 Ref) uint32 {
	e0n, e1n := RealAddress(e0), RealAddress(e1)
	switch kind {
	case Beq, Aeq, Ult:
		return 1
	case Concat:
		return e0n.width + e1n.width
	default:
		return e0n.width
	}
}

// Chase follows the simplification-forwarding pointer, idempotently, and
// composes inversion tags along the way (invariant 5).
func (s *Store) Chase(r Ref) Ref {
	for {
		n := RealAddress(r)
		if n.simplified.IsNil() {
			return r
		}
		fwd := n.simplified
		r = Ref{node: fwd.node, inverted: r.inverted != fwd.inverted}
	}
}

// Simplify installs a forwarding pointer from n to target. Owned by the
// top-level solver driver, not the rewriter itself; exposed here because
// it is part of the DAG store's contract (spec §6.2).
func (s *Store) Simplify(n *Node, target Ref) {
	if n.kind.IsArrayKind() != RealAddress(target).kind.IsArrayKind() {
		panic("dag: cannot forward between array and bit-vector node")
	}
	n.simplified = target
}

// IsBVConst, IsArray and IsWrite classify a node's kind.
func IsBVConst(n *Node) bool { return n.kind == BVConst }
func IsArray(n *Node) bool   { return n.kind.IsArrayKind() }
func IsWrite(n *Node) bool   { return n.kind == Write }

// Acquire increments n's reference count and returns r unchanged. Every
// rewriter entry returns an acquired reference (spec §3.3).
func (s *Store) Acquire(r Ref) Ref {
	RealAddress(r).refs++
	return r
}

// Release decrements n's reference count. The store does not currently
// reclaim freed nodes from the hash-cons table (sessions are short-lived
// and bounded by the budgets in spec §4.1); it only maintains the count
// so double-release bugs are detectable in tests.
func (s *Store) Release(r Ref) {
	n := RealAddress(r)
	if n.refs <= 0 {
		panic(fmt.Sprintf("dag: release of node #%d with non-positive refcount", n.id))
	}
	n.refs--
}

// RefCount returns n's current reference count, for tests.
func (s *Store) RefCount(n *Node) int32 { return n.refs }

// NodeCount returns how many distinct node identities have been
// allocated in this store's lifetime (hash-consed nodes are counted
// once), a cheap proxy for DAG size used by the CLI's bench report.
func (s *Store) NodeCount() int64 { return s.nextID }
