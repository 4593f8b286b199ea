package query

import "github.com/menmos/menmos/pkg/types"

// Expr is a node of the query AST. The concrete variants are Tag,
// KeyValue, Key, Parent, Owner, And, Or, Not, and Empty.
type Expr interface {
	isExpr()
}

// TagNode matches documents carrying the tag Name.
type TagNode struct{ Name string }

// KeyValueNode matches documents whose field Key equals Value.
type KeyValueNode struct {
	Key   string
	Value types.FieldValue
}

// KeyNode matches documents that have field Key set, regardless of
// its value.
type KeyNode struct{ Key string }

// ParentNode matches documents whose Parents include ID.
type ParentNode struct{ ID string }

// OwnerNode matches documents owned by User.
type OwnerNode struct{ User string }

// AndNode matches documents matching both Left and Right.
type AndNode struct{ Left, Right Expr }

// OrNode matches documents matching either Left or Right.
type OrNode struct{ Left, Right Expr }

// NotNode matches documents not matching X, bounded by the set of
// documents that currently exist.
type NotNode struct{ X Expr }

// EmptyNode matches every document (subject to the caller's own
// owner/existence scoping).
type EmptyNode struct{}

func (TagNode) isExpr()      {}
func (KeyValueNode) isExpr() {}
func (KeyNode) isExpr()      {}
func (ParentNode) isExpr()   {}
func (OwnerNode) isExpr()    {}
func (AndNode) isExpr()      {}
func (OrNode) isExpr()       {}
func (NotNode) isExpr()      {}
func (EmptyNode) isExpr()    {}

// Tag builds a tag-match expression.
func Tag(name string) Expr { return TagNode{Name: name} }

// KeyValue builds a key-value-match expression.
func KeyValue(key string, value types.FieldValue) Expr {
	return KeyValueNode{Key: key, Value: value}
}

// Key builds a key-presence expression.
func Key(key string) Expr { return KeyNode{Key: key} }

// Parent builds a "children of" expression.
func Parent(id string) Expr { return ParentNode{ID: id} }

// Owner builds an owner-match expression.
func Owner(user string) Expr { return OwnerNode{User: user} }

// And builds a conjunction of two expressions.
func And(left, right Expr) Expr { return AndNode{Left: left, Right: right} }

// Or builds a disjunction of two expressions.
func Or(left, right Expr) Expr { return OrNode{Left: left, Right: right} }

// Not builds a negation of x.
func Not(x Expr) Expr { return NotNode{X: x} }

// Empty is the expression matching every document.
var Empty Expr = EmptyNode{}
