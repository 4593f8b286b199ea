package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/menmos/menmos/pkg/types"
)

// The parse-tree structs below mirror spec.md's grammar one rule per
// struct (expr/or/and/not/atom/value). participle builds the recursive
// descent parser directly from these struct tags; toExpr then flattens
// the tree into the clean Expr variants callers and the evaluator
// actually work with.

type orGrammar struct {
	Left *andGrammar   `@@`
	Rest []*andGrammar `("||" @@)*`
}

type andGrammar struct {
	Left *notGrammar   `@@`
	Rest []*notGrammar `("&&" @@)*`
}

type notGrammar struct {
	Bang *string      `(  @"!"`
	Sub  *notGrammar  `   @@ )`
	Atom *atomGrammar `|  @@`
}

// identAtom is its own rule so the optional "= value" / "?" suffix is
// scoped to the leading ident alone, not to the whole atom alternation.
type identAtom struct {
	Name     string    `@Ident`
	Value    *valueLit `( "=" @@`
	Presence bool      `| @"?" )?`
}

type atomGrammar struct {
	Group     *orGrammar `  "(" @@ ")"`
	Empty     bool       `| @"empty"`
	ParentOf  *string    `| "parent" "(" @String ")"`
	OwnerName *string    `| "@" @Ident`
	Ident     *identAtom `| @@`
}

type valueLit struct {
	Str  *string `  @String`
	Num  *string `| @Number`
	Bool *string `| @("true" | "false")`
}

var queryLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "whitespace", Pattern: `\s+`},
	{Name: "String", Pattern: `"(\\.|[^"])*"`},
	{Name: "Number", Pattern: `[-+]?\d+`},
	{Name: "Ident", Pattern: `[_A-Za-z][._A-Za-z0-9-]*`},
	{Name: "OrOp", Pattern: `\|\|`},
	{Name: "AndOp", Pattern: `&&`},
	{Name: "Punct", Pattern: `[!()=?@]`},
})

var parser = participle.MustBuild[orGrammar](
	participle.Lexer(queryLexer),
	participle.Elide("whitespace"),
	participle.UseLookahead(2),
)

// Parse parses a surface-syntax query expression per spec.md's §4.G
// grammar into the clean Expr AST.
func Parse(input string) (Expr, error) {
	if strings.TrimSpace(input) == "" {
		return Empty, nil
	}
	tree, err := parser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("query: parse %q: %w", input, err)
	}
	return orToExpr(tree)
}

func orToExpr(g *orGrammar) (Expr, error) {
	left, err := andToExpr(g.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range g.Rest {
		right, err := andToExpr(r)
		if err != nil {
			return nil, err
		}
		left = Or(left, right)
	}
	return left, nil
}

func andToExpr(g *andGrammar) (Expr, error) {
	left, err := notToExpr(g.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range g.Rest {
		right, err := notToExpr(r)
		if err != nil {
			return nil, err
		}
		left = And(left, right)
	}
	return left, nil
}

func notToExpr(g *notGrammar) (Expr, error) {
	if g.Bang != nil {
		sub, err := notToExpr(g.Sub)
		if err != nil {
			return nil, err
		}
		return Not(sub), nil
	}
	return atomToExpr(g.Atom)
}

func atomToExpr(g *atomGrammar) (Expr, error) {
	switch {
	case g.Group != nil:
		return orToExpr(g.Group)
	case g.Empty:
		return Empty, nil
	case g.ParentOf != nil:
		return Parent(unquote(*g.ParentOf)), nil
	case g.OwnerName != nil:
		return Owner(*g.OwnerName), nil
	case g.Ident != nil:
		switch {
		case g.Ident.Value != nil:
			v, err := valueLitToField(g.Ident.Value)
			if err != nil {
				return nil, err
			}
			return KeyValue(g.Ident.Name, v), nil
		case g.Ident.Presence:
			return Key(g.Ident.Name), nil
		default:
			return Tag(g.Ident.Name), nil
		}
	default:
		return nil, fmt.Errorf("query: empty atom")
	}
}

func valueLitToField(v *valueLit) (types.FieldValue, error) {
	switch {
	case v.Str != nil:
		return types.StringField(unquote(*v.Str)), nil
	case v.Num != nil:
		n, err := strconv.ParseInt(*v.Num, 10, 64)
		if err != nil {
			return types.FieldValue{}, fmt.Errorf("query: parse integer %q: %w", *v.Num, err)
		}
		return types.IntField(n), nil
	case v.Bool != nil:
		return types.BoolField(*v.Bool == "true"), nil
	default:
		return types.FieldValue{}, fmt.Errorf("query: empty value literal")
	}
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
