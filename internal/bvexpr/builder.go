package bvexpr

import (
	"fmt"
	"strconv"
	"strings"

	"bvrewrite/internal/bvconst"
	"bvrewrite/internal/dag"
	"bvrewrite/internal/rewrite"
)

// Builder evaluates a parsed Script against a rewrite.Context,
// threading a symbol table of declared variables. Every term it
// returns has already passed through the rewriter, so the results of
// Run and Eval are already simplified.
type Builder struct {
	Ctx *rewrite.Context
	env map[string]dag.Ref
}

// NewBuilder creates a Builder over ctx with an empty environment.
func NewBuilder(ctx *rewrite.Context) *Builder {
	return &Builder{Ctx: ctx, env: make(map[string]dag.Ref)}
}

// Run evaluates every top-level form in script in order. Declarations
// populate the environment; any other form is evaluated as a term and
// its result (owned reference) is appended to the returned slice.
func (b *Builder) Run(script *Script) ([]dag.Ref, error) {
	var results []dag.Ref
	for _, form := range script.Forms {
		r, decl, err := b.evalTop(form)
		if err != nil {
			return nil, err
		}
		if !decl {
			results = append(results, r)
		}
	}
	return results, nil
}

func (b *Builder) evalTop(form *Sexpr) (dag.Ref, bool, error) {
	if form.List != nil && len(form.List) > 0 && form.List[0].Atom == "declare-bv" {
		if len(form.List) != 3 {
			return dag.Ref{}, false, fmt.Errorf("bvexpr: declare-bv wants (declare-bv name width)")
		}
		name := form.List[1].Atom
		width, err := strconv.Atoi(form.List[2].Atom)
		if err != nil {
			return dag.Ref{}, false, fmt.Errorf("bvexpr: bad width in declare-bv: %w", err)
		}
		b.env[name] = b.Ctx.Store.NewBVVar(uint32(width))
		return dag.Ref{}, true, nil
	}
	if form.List != nil && len(form.List) > 0 && form.List[0].Atom == "declare-array" {
		if len(form.List) != 4 {
			return dag.Ref{}, false, fmt.Errorf("bvexpr: declare-array wants (declare-array name index-width elem-width)")
		}
		name := form.List[1].Atom
		idxWidth, err1 := strconv.Atoi(form.List[2].Atom)
		elemWidth, err2 := strconv.Atoi(form.List[3].Atom)
		if err1 != nil || err2 != nil {
			return dag.Ref{}, false, fmt.Errorf("bvexpr: bad width in declare-array")
		}
		b.env[name] = b.Ctx.Store.NewArrayVar(uint32(idxWidth), uint32(elemWidth))
		return dag.Ref{}, true, nil
	}
	r, err := b.Eval(form)
	return r, false, err
}

// Eval evaluates one S-expression term into an owned dag.Ref.
func (b *Builder) Eval(s *Sexpr) (dag.Ref, error) {
	if s.List == nil {
		return b.evalAtom(s.Atom)
	}
	if len(s.List) == 0 {
		return dag.Ref{}, fmt.Errorf("bvexpr: empty form")
	}
	head := s.List[0]
	if head.List != nil {
		if len(head.List) >= 2 && head.List[0].Atom == "_" && head.List[1].Atom == "extract" {
			return b.evalExtract(s.List)
		}
		return dag.Ref{}, fmt.Errorf("bvexpr: unsupported indexed operator form")
	}
	op := head.Atom
	args := s.List[1:]

	switch op {
	case "bv":
		return b.evalBvLiteral(args)
	case "bvand":
		return b.binary(args, b.Ctx.And)
	case "bvadd":
		return b.binary(args, b.Ctx.Add)
	case "bvmul":
		return b.binary(args, b.Ctx.Mul)
	case "bvult":
		return b.binary(args, b.Ctx.Ult)
	case "bvudiv":
		return b.binary(args, b.Ctx.Udiv)
	case "bvurem":
		return b.binary(args, b.Ctx.Urem)
	case "bvshl":
		return b.binary(args, b.Ctx.Sll)
	case "bvlshr":
		return b.binary(args, b.Ctx.Srl)
	case "concat":
		return b.binary(args, b.Ctx.Concat)
	case "=":
		return b.binary(args, b.Ctx.Eq)
	case "bvnot", "not":
		return b.evalNot(args)
	case "select":
		return b.binary(args, b.Ctx.Read)
	case "store":
		return b.evalStore(args)
	case "ite":
		return b.evalIte(args)
	default:
		return dag.Ref{}, fmt.Errorf("bvexpr: unknown operator %q", op)
	}
}

func (b *Builder) evalAtom(atom string) (dag.Ref, error) {
	if r, ok := b.env[atom]; ok {
		return b.Ctx.Store.Acquire(r), nil
	}
	if strings.HasPrefix(atom, "#b") {
		return b.Ctx.Store.NewConst(atom[2:]), nil
	}
	if strings.HasPrefix(atom, "#x") {
		bits, ok := bvconst.FromHex(atom[2:], 4*len(atom[2:]))
		if !ok {
			return dag.Ref{}, fmt.Errorf("bvexpr: bad hex literal %q", atom)
		}
		return b.Ctx.Store.NewConst(bits), nil
	}
	return dag.Ref{}, fmt.Errorf("bvexpr: undeclared identifier %q", atom)
}

func (b *Builder) evalBvLiteral(args []*Sexpr) (dag.Ref, error) {
	if len(args) != 2 {
		return dag.Ref{}, fmt.Errorf("bvexpr: (bv value width) takes exactly two arguments")
	}
	width, err := strconv.Atoi(args[1].Atom)
	if err != nil {
		return dag.Ref{}, fmt.Errorf("bvexpr: bad width in bv literal: %w", err)
	}
	bits, ok := bvconst.FromDecimal(args[0].Atom, width)
	if !ok {
		return dag.Ref{}, fmt.Errorf("bvexpr: bad decimal value in bv literal %q", args[0].Atom)
	}
	return b.Ctx.Store.NewConst(bits), nil
}

func (b *Builder) binary(args []*Sexpr, op func(a, b dag.Ref) dag.Ref) (dag.Ref, error) {
	if len(args) != 2 {
		return dag.Ref{}, fmt.Errorf("bvexpr: operator wants exactly two arguments, got %d", len(args))
	}
	a, err := b.Eval(args[0])
	if err != nil {
		return dag.Ref{}, err
	}
	c, err := b.Eval(args[1])
	if err != nil {
		b.Ctx.Store.Release(a)
		return dag.Ref{}, err
	}
	result := op(a, c)
	b.Ctx.Store.Release(a)
	b.Ctx.Store.Release(c)
	return result, nil
}

func (b *Builder) evalNot(args []*Sexpr) (dag.Ref, error) {
	if len(args) != 1 {
		return dag.Ref{}, fmt.Errorf("bvexpr: not/bvnot takes exactly one argument")
	}
	a, err := b.Eval(args[0])
	if err != nil {
		return dag.Ref{}, err
	}
	result := b.Ctx.Store.Acquire(dag.Invert(a))
	b.Ctx.Store.Release(a)
	return result, nil
}

func (b *Builder) evalStore(args []*Sexpr) (dag.Ref, error) {
	if len(args) != 3 {
		return dag.Ref{}, fmt.Errorf("bvexpr: store wants (store array index value)")
	}
	arr, err := b.Eval(args[0])
	if err != nil {
		return dag.Ref{}, err
	}
	idx, err := b.Eval(args[1])
	if err != nil {
		b.Ctx.Store.Release(arr)
		return dag.Ref{}, err
	}
	val, err := b.Eval(args[2])
	if err != nil {
		b.Ctx.Store.Release(arr)
		b.Ctx.Store.Release(idx)
		return dag.Ref{}, err
	}
	result := b.Ctx.Write(arr, idx, val)
	b.Ctx.Store.Release(arr)
	b.Ctx.Store.Release(idx)
	b.Ctx.Store.Release(val)
	return result, nil
}

func (b *Builder) evalIte(args []*Sexpr) (dag.Ref, error) {
	if len(args) != 3 {
		return dag.Ref{}, fmt.Errorf("bvexpr: ite wants (ite cond then else)")
	}
	cond, err := b.Eval(args[0])
	if err != nil {
		return dag.Ref{}, err
	}
	then, err := b.Eval(args[1])
	if err != nil {
		b.Ctx.Store.Release(cond)
		return dag.Ref{}, err
	}
	els, err := b.Eval(args[2])
	if err != nil {
		b.Ctx.Store.Release(cond)
		b.Ctx.Store.Release(then)
		return dag.Ref{}, err
	}
	result := b.Ctx.Cond(cond, then, els)
	b.Ctx.Store.Release(cond)
	b.Ctx.Store.Release(then)
	b.Ctx.Store.Release(els)
	return result, nil
}

// evalExtract handles `((_ extract hi lo) term)`, SMT-LIB's indexed
// extract operator.
func (b *Builder) evalExtract(list []*Sexpr) (dag.Ref, error) {
	if len(list) != 2 {
		return dag.Ref{}, fmt.Errorf("bvexpr: extract wants ((_ extract hi lo) term)")
	}
	spec := list[0].List
	if len(spec) != 4 || spec[0].Atom != "_" || spec[1].Atom != "extract" {
		return dag.Ref{}, fmt.Errorf("bvexpr: malformed extract specifier")
	}
	hi, err := strconv.Atoi(spec[2].Atom)
	if err != nil {
		return dag.Ref{}, fmt.Errorf("bvexpr: bad extract high index: %w", err)
	}
	lo, err := strconv.Atoi(spec[3].Atom)
	if err != nil {
		return dag.Ref{}, fmt.Errorf("bvexpr: bad extract low index: %w", err)
	}
	term, err := b.Eval(list[1])
	if err != nil {
		return dag.Ref{}, err
	}
	result := b.Ctx.Slice(term, uint32(hi), uint32(lo))
	b.Ctx.Store.Release(term)
	return result, nil
}
