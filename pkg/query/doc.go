// Package query implements the directory's search surface: a small
// boolean expression grammar over tags, key-value fields, key
// presence, parent relationships, and ownership, parsed with
// alecthomas/participle/v2, evaluated against a metadata.Store's
// inverted index, and projected into a windowed, optionally faceted
// result set.
//
// Expressions can also be built directly from the AST constructors
// (Tag, And, Or, ...) without going through the text grammar, which is
// how callers compose queries programmatically and how this package's
// own tests exercise the evaluator independently of the parser.
package query
