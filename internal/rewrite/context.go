// Package rewrite is the rewriting / simplification core: one dispatcher
// entry per operator (slice, and, eq, add, mul, ult, sll, srl, udiv,
// urem, concat, read, write, cond), a generic binary rewriter most of
// them funnel through, a commutative-associative normalizer, and the
// read-over-write / write-chain collapsing rules for arrays.
//
// The engine is single-threaded and non-suspending (spec §5): every
// function here runs to completion against the dag.Store it was given,
// with no locks and no I/O.
package rewrite

import "bvrewrite/internal/dag"

// Budget constants from spec §4.1.
const (
	RecRwBound                        = 4096
	FindAndNodeContradictionLimit     = 8
	WriteChainNodeRwBound             = 20
	ReadOverWriteDownPropagationLimit = 1024
)

// Level tunes rewriter aggressiveness. Level 0 is disallowed at the
// public entries; level >= 1 enables constant folding and local
// simplification; level >= 3 enables CA-normalization, multi-level
// slice-through-concat, write-chain collapse, concat reassociation,
// distribution over + and *, and pushing equality below concats.
type Level int

const (
	Level1 Level = 1
	Level2 Level = 2
	Level3 Level = 3
)

// Config bundles the engine's tunables.
type Config struct {
	RewriteLevel                      Level
	RecRwBound                        int
	FindAndNodeContradictionLimit     int
	WriteChainNodeRwBound             int
	ReadOverWriteDownPropagationLimit int
}

// DefaultConfig returns the tunables from spec §4.1/§6.4.
func DefaultConfig() Config {
	return Config{
		RewriteLevel:                      Level3,
		RecRwBound:                        RecRwBound,
		FindAndNodeContradictionLimit:     FindAndNodeContradictionLimit,
		WriteChainNodeRwBound:             WriteChainNodeRwBound,
		ReadOverWriteDownPropagationLimit: ReadOverWriteDownPropagationLimit,
	}
}

// Stats tracks the rewriter's per-session counters (spec §4.1, §4.4,
// §4.12).
type Stats struct {
	MaxRecRwCalls      int
	AddsNormalized     int
	MulsNormalized     int
	ReadPropsConstruct int
}

// Context is the solver-context handle every rewriter entry takes: the
// DAG store, the rewrite level, the shared recursion counter, and
// statistics (spec §6.1).
type Context struct {
	Store      *dag.Store
	Config     Config
	recRwCalls int
	stats      Stats
}

// NewContext creates a rewriting context over store with cfg's tunables.
// cfg.RewriteLevel must be >= 1 (level 0 is disallowed at the public
// API, spec §4.1).
func NewContext(store *dag.Store, cfg Config) *Context {
	if cfg.RewriteLevel < Level1 {
		panic("rewrite: level 0 is disallowed at the public entry points")
	}
	return &Context{Store: store, Config: cfg}
}

// Stats returns a snapshot of the context's statistics.
func (c *Context) Stats() Stats { return c.stats }

// level returns the active rewrite level as a plain int for comparisons.
func (c *Context) level() int { return int(c.Config.RewriteLevel) }

// enterRecursive tests the recursion budget and, if available, accounts
// for one nested rewriter call. The returned leave func must be called
// on every exit path of the caller, including early returns.
func (c *Context) enterRecursive() (ok bool, leave func()) {
	if c.recRwCalls >= c.Config.RecRwBound {
		return false, func() {}
	}
	c.recRwCalls++
	if c.recRwCalls > c.stats.MaxRecRwCalls {
		c.stats.MaxRecRwCalls = c.recRwCalls
	}
	return true, func() { c.recRwCalls-- }
}

// chase follows e's forwarding pointer (invariant 5).
func (c *Context) chase(e dag.Ref) dag.Ref { return c.Store.Chase(e) }
