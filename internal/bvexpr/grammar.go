// Package bvexpr parses a small SMT-LIB-flavored surface syntax for
// bit-vector and array terms and builds the corresponding dag.Ref
// expressions through a rewrite.Context, so every parsed term comes out
// already simplified.
package bvexpr

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `;[^\n]*`},
	{Name: "LParen", Pattern: `\(`},
	{Name: "RParen", Pattern: `\)`},
	{Name: "Underscore", Pattern: `_`},
	{Name: "Number", Pattern: `#b[01]+|#x[0-9a-fA-F]+|[0-9]+`},
	{Name: "Ident", Pattern: `[a-zA-Z][a-zA-Z0-9_\.\-]*`},
	{Name: "Symbol", Pattern: `=`},
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
})

// Sexpr is one S-expression: either an atom or a parenthesized list of
// sub-expressions.
type Sexpr struct {
	Atom string   `  @(Ident|Number|Underscore|Symbol)`
	List []*Sexpr `| "(" @@* ")"`
}

// Script is a sequence of top-level S-expressions, the unit a caller
// feeds to the Parser.
type Script struct {
	Forms []*Sexpr `@@*`
}

// Parser is the shared, reusable participle parser for Script.
var Parser = participle.MustBuild[Script](
	participle.Lexer(exprLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(2),
)

// ParseString parses src into a Script.
func ParseString(name, src string) (*Script, error) {
	return Parser.ParseString(name, src)
}
