package bvexpr

import (
	"fmt"
	"strings"

	"bvrewrite/internal/dag"
)

// Sprint renders e back into the surface syntax Eval accepts,
// naming variables by their node id (v<id> / a<id>) since the builder
// does not keep a reverse name table.
func Sprint(e dag.Ref) string {
	var sb strings.Builder
	sprintNode(&sb, e)
	return sb.String()
}

func sprintNode(sb *strings.Builder, e dag.Ref) {
	n := dag.RealAddress(e)
	if dag.IsInverted(e) {
		sb.WriteString("(bvnot ")
		sprintPlain(sb, n)
		sb.WriteString(")")
		return
	}
	sprintPlain(sb, n)
}

func sprintPlain(sb *strings.Builder, n *dag.Node) {
	switch n.Kind() {
	case dag.BVConst:
		fmt.Fprintf(sb, "(bv %s %d)", bitsToDecimal(n.Bits()), n.Width())
	case dag.BVVar:
		fmt.Fprintf(sb, "v%d", n.ID())
	case dag.ArrayVar:
		fmt.Fprintf(sb, "a%d", n.ID())
	case dag.Slice:
		lower, upper := n.SliceBounds()
		sb.WriteString("((_ extract ")
		fmt.Fprintf(sb, "%d %d) ", upper, lower)
		sprintNode(sb, n.Child(0))
		sb.WriteString(")")
	case dag.And:
		sprintBinary(sb, "bvand", n)
	case dag.Beq, dag.Aeq:
		sprintBinary(sb, "=", n)
	case dag.Add:
		sprintBinary(sb, "bvadd", n)
	case dag.Mul:
		sprintBinary(sb, "bvmul", n)
	case dag.Ult:
		sprintBinary(sb, "bvult", n)
	case dag.Sll:
		sprintBinary(sb, "bvshl", n)
	case dag.Srl:
		sprintBinary(sb, "bvlshr", n)
	case dag.Udiv:
		sprintBinary(sb, "bvudiv", n)
	case dag.Urem:
		sprintBinary(sb, "bvurem", n)
	case dag.Concat:
		sprintBinary(sb, "concat", n)
	case dag.Read:
		sprintBinary(sb, "select", n)
	case dag.Write:
		sb.WriteString("(store ")
		sprintNode(sb, n.Child(0))
		sb.WriteString(" ")
		sprintNode(sb, n.Child(1))
		sb.WriteString(" ")
		sprintNode(sb, n.Child(2))
		sb.WriteString(")")
	case dag.Bcond, dag.Acond:
		sb.WriteString("(ite ")
		sprintNode(sb, n.Child(0))
		sb.WriteString(" ")
		sprintNode(sb, n.Child(1))
		sb.WriteString(" ")
		sprintNode(sb, n.Child(2))
		sb.WriteString(")")
	default:
		sb.WriteString("<?>")
	}
}

func sprintBinary(sb *strings.Builder, op string, n *dag.Node) {
	fmt.Fprintf(sb, "(%s ", op)
	sprintNode(sb, n.Child(0))
	sb.WriteString(" ")
	sprintNode(sb, n.Child(1))
	sb.WriteString(")")
}

// bitsToDecimal renders a bit string as an unsigned decimal literal.
func bitsToDecimal(bits string) string {
	digits := []int{0}
	for _, ch := range bits {
		carry := 0
		if ch == '1' {
			carry = 1
		}
		for i := range digits {
			digits[i] *= 2
		}
		digits[0] += carry
		for i := 0; i < len(digits); i++ {
			if digits[i] >= 10 {
				digits[i] -= 10
				if i+1 == len(digits) {
					digits = append(digits, 0)
				}
				digits[i+1]++
			}
		}
	}
	out := make([]byte, len(digits))
	for i, d := range digits {
		out[len(digits)-1-i] = byte('0' + d)
	}
	return string(out)
}
