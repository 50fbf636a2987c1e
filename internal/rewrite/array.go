package rewrite

import "bvrewrite/internal/dag"

// Read is the array-read operator entry (spec §4.12): it walks the
// write chain rooted at array, propagating the read down past any
// write provably always-unequal to index, bounded by
// ReadOverWriteDownPropagationLimit.
func (c *Context) Read(array, index dag.Ref) dag.Ref {
	array = c.chase(array)
	index = c.chase(index)

	if r, ok := c.readOverWrite(array, index); ok {
		return r
	}
	return c.Store.Acquire(c.Store.BuildRead(array, index))
}

func (c *Context) readOverWrite(array, index dag.Ref) (dag.Ref, bool) {
	cur := array
	moved := false
	for i := 0; i < c.Config.ReadOverWriteDownPropagationLimit; i++ {
		n := dag.RealAddress(cur)
		if n.Kind() != dag.Write {
			break
		}
		wArray, wIndex, wValue := n.Child(0), n.Child(1), n.Child(2)
		if sameReal(wIndex, index) && dag.SameTag(wIndex, index) {
			return c.acquireSame(wValue), true
		}
		if !c.isAlwaysUnequal(wIndex, index) {
			break
		}
		c.stats.ReadPropsConstruct++
		cur = wArray
		moved = true
	}
	if !moved {
		return dag.Ref{}, false
	}
	return c.Store.Acquire(c.Store.BuildRead(cur, index)), true
}

// Write is the array-write operator entry (spec §4.13). At
// rewrite_level > 2 it collapses a redundant prior write to the same
// index anywhere in the write chain, bounded by WriteChainNodeRwBound.
func (c *Context) Write(array, index, value dag.Ref) dag.Ref {
	array = c.chase(array)
	index = c.chase(index)
	value = c.chase(value)

	if c.level() > 2 {
		if spliced, ok := c.spliceRedundantWrite(array, index); ok {
			result := c.Store.Acquire(c.Store.BuildWrite(spliced, index, value))
			c.Store.Release(spliced)
			return result
		}
	}
	return c.Store.Acquire(c.Store.BuildWrite(array, index, value))
}

// spliceRedundantWrite walks up to WriteChainNodeRwBound writes below
// array looking for one writing the same index. Any write to that
// index found anywhere in the chain is dead (the caller's new write at
// the same index supersedes it for every future read), so it is
// spliced out while every intervening write to a different index is
// rebuilt in its original relative order.
func (c *Context) spliceRedundantWrite(array, index dag.Ref) (dag.Ref, bool) {
	var chain []*dag.Node
	cur := array
	for i := 0; i < c.Config.WriteChainNodeRwBound; i++ {
		n := dag.RealAddress(cur)
		if n.Kind() != dag.Write {
			return dag.Ref{}, false
		}
		wArray, wIndex, _ := n.Child(0), n.Child(1), n.Child(2)
		if sameReal(wIndex, index) && dag.SameTag(wIndex, index) {
			rebuilt := c.acquireSame(wArray)
			for j := len(chain) - 1; j >= 0; j-- {
				cn := chain[j]
				next := c.Store.Acquire(c.Store.BuildWrite(rebuilt, cn.Child(1), cn.Child(2)))
				c.Store.Release(rebuilt)
				rebuilt = next
			}
			return rebuilt, true
		}
		chain = append(chain, n)
		cur = wArray
	}
	return dag.Ref{}, false
}
