package rewrite

import "bvrewrite/internal/dag"

// flattenAssoc flattens e into a multiset of leaves for the
// commutative-associative operator kind, stopping at any inverted node
// or any child whose kind differs from kind (spec §4.4 step 1).
func flattenAssoc(e dag.Ref, kind dag.Kind, out *[]dag.Ref) {
	n := dag.RealAddress(e)
	if !dag.IsInverted(e) && n.Kind() == kind {
		flattenAssoc(n.Child(0), kind, out)
		flattenAssoc(n.Child(1), kind, out)
		return
	}
	*out = append(*out, e)
}

type multiset struct {
	counts map[dag.Ref]int
	order  []dag.Ref // first-seen order, for deterministic folding
}

func newMultiset(leaves []dag.Ref) *multiset {
	m := &multiset{counts: make(map[dag.Ref]int)}
	for _, l := range leaves {
		if m.counts[l] == 0 {
			m.order = append(m.order, l)
		}
		m.counts[l]++
	}
	return m
}

func (m *multiset) total() int {
	n := 0
	for _, v := range m.counts {
		n += v
	}
	return n
}

func (m *multiset) add(r dag.Ref) {
	if m.counts[r] == 0 {
		m.order = append(m.order, r)
	}
	m.counts[r]++
}

// items returns the multiset's elements in first-seen order, each
// repeated by its multiplicity.
func (m *multiset) items() []dag.Ref {
	var out []dag.Ref
	for _, r := range m.order {
		for i := 0; i < m.counts[r]; i++ {
			out = append(out, r)
		}
	}
	return out
}

// normalizeAssoc implements the commutative-associative normalizer of
// spec §4.4: given two trees of the same operator kind (Add or Mul), it
// exposes shared leaves by rewriting them as common (+) residueLeft and
// common (+) residueRight. It returns changed=false (with e0, e1
// untouched) when fewer than two leaf occurrences are shared, per the
// threshold in step 4.
func (c *Context) normalizeAssoc(kind dag.Kind, e0, e1 dag.Ref) (newE0, newE1 dag.Ref, changed bool) {
	var leaves0, leaves1 []dag.Ref
	flattenAssoc(e0, kind, &leaves0)
	flattenAssoc(e1, kind, &leaves1)

	left := newMultiset(leaves0)
	common := &multiset{counts: make(map[dag.Ref]int)}
	right := &multiset{counts: make(map[dag.Ref]int)}

	for _, probe := range leaves1 {
		if left.counts[probe] > 0 {
			left.counts[probe]--
			common.add(probe)
		} else {
			right.add(probe)
		}
	}

	if common.total() < 2 {
		return e0, e1, false
	}

	commonExpr, ok := c.foldAssocBudgeted(kind, common.items())
	if !ok {
		return e0, e1, false
	}
	result0, ok := c.combineWithResidue(kind, commonExpr, left.items())
	if !ok {
		return e0, e1, false
	}
	result1, ok := c.combineWithResidue(kind, commonExpr, right.items())
	if !ok {
		return e0, e1, false
	}

	if kind == dag.Add {
		c.stats.AddsNormalized++
	} else {
		c.stats.MulsNormalized++
	}
	return result0, result1, true
}

// foldAssocBudgeted left-folds items under kind's own rewriter, honoring
// the recursion budget on every nested call.
func (c *Context) foldAssocBudgeted(kind dag.Kind, items []dag.Ref) (dag.Ref, bool) {
	if len(items) == 0 {
		return dag.Ref{}, false
	}
	acc := items[0]
	owned := false
	for _, item := range items[1:] {
		next, ok := c.recurseBinary(kind, acc, item)
		if !ok {
			if owned {
				c.Store.Release(acc)
			}
			return dag.Ref{}, false
		}
		if owned {
			c.Store.Release(acc)
		}
		acc, owned = next, true
	}
	return acc, true
}

// combineWithResidue folds common with the residue leaves (if any); an
// empty residue leaves common untouched.
func (c *Context) combineWithResidue(kind dag.Kind, common dag.Ref, residue []dag.Ref) (dag.Ref, bool) {
	if len(residue) == 0 {
		return common, true
	}
	items := append([]dag.Ref{common}, residue...)
	return c.foldAssocBudgeted(kind, items)
}

// caRetry implements the "CA-normalization is applied to pairs of like
// kind where both are uninverted ADD or both MUL" hook shared by And,
// Add, Mul, Ult, Udiv, Urem and Beq (spec §4.3, §4.9, §4.10): when both operands
// are uninverted nodes of the same associative kind, normalize them and
// retry self on the normalized pair.
func (c *Context) caRetry(self func(a, b dag.Ref) dag.Ref, e0, e1 dag.Ref) (dag.Ref, bool) {
	n0, n1 := dag.RealAddress(e0), dag.RealAddress(e1)
	if dag.IsInverted(e0) || dag.IsInverted(e1) {
		return dag.Ref{}, false
	}
	var kind dag.Kind
	switch {
	case n0.Kind() == dag.Add && n1.Kind() == dag.Add:
		kind = dag.Add
	case n0.Kind() == dag.Mul && n1.Kind() == dag.Mul:
		kind = dag.Mul
	default:
		return dag.Ref{}, false
	}
	ne0, ne1, changed := c.normalizeAssoc(kind, e0, e1)
	if !changed {
		return dag.Ref{}, false
	}
	ok, leave := c.enterRecursive()
	if !ok {
		c.Store.Release(ne0)
		c.Store.Release(ne1)
		return dag.Ref{}, false
	}
	defer leave()
	result := self(ne0, ne1)
	c.Store.Release(ne0)
	c.Store.Release(ne1)
	return result, true
}

// recurseBinary invokes the Add/Mul entry recursively under the
// recursion budget (spec §4.1): every recursive rewrite call increments
// the shared counter around the call.
func (c *Context) recurseBinary(kind dag.Kind, e0, e1 dag.Ref) (dag.Ref, bool) {
	ok, leave := c.enterRecursive()
	if !ok {
		return dag.Ref{}, false
	}
	defer leave()
	switch kind {
	case dag.Add:
		return c.Add(e0, e1), true
	case dag.Mul:
		return c.Mul(e0, e1), true
	default:
		panic("rewrite: normalizeAssoc only supports Add/Mul")
	}
}
