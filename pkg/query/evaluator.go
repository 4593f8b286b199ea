package query

import (
	"fmt"

	"github.com/menmos/menmos/pkg/bitvec"
	"github.com/menmos/menmos/pkg/log"
	"github.com/menmos/menmos/pkg/metadata"
)

// Evaluator resolves an Expr against a metadata.Store's six primitive
// lookups (tag, kv, key, parent, owner, empty/load-all) and combines
// them per spec.md §4.G: AND/OR compute both sides then operate on the
// larger bitvector, NOT is bounded by load_all so negation never
// returns a doc index the universe doesn't know about.
type Evaluator struct {
	meta *metadata.Store
}

// NewEvaluator returns an Evaluator reading from meta.
func NewEvaluator(meta *metadata.Store) *Evaluator {
	return &Evaluator{meta: meta}
}

// Resolve evaluates expr in isolation, with no owner or existence
// scoping applied. Callers serving a directory query should use
// EvaluateForUser instead.
func (e *Evaluator) Resolve(expr Expr) (*bitvec.Bitvector, error) {
	switch n := expr.(type) {
	case TagNode:
		return e.meta.LoadTag(n.Name)
	case KeyValueNode:
		return e.meta.LoadKV(n.Key, n.Value)
	case KeyNode:
		return e.meta.LoadKey(n.Key)
	case ParentNode:
		return e.meta.LoadChildren(n.ID)
	case OwnerNode:
		return e.meta.LoadOwner(n.User)
	case EmptyNode:
		return e.meta.LoadAll()
	case AndNode:
		return e.combine(n.Left, n.Right, (*bitvec.Bitvector).And)
	case OrNode:
		return e.combine(n.Left, n.Right, (*bitvec.Bitvector).Or)
	case NotNode:
		x, err := e.Resolve(n.X)
		if err != nil {
			return nil, err
		}
		all, err := e.meta.LoadAll()
		if err != nil {
			return nil, err
		}
		return all.AndNot(x), nil
	default:
		return nil, fmt.Errorf("query: unhandled expression node %T", expr)
	}
}

// combine resolves both sides of a binary node and applies op on the
// larger operand, per the evaluator's stated efficiency contract.
func (e *Evaluator) combine(left, right Expr, op func(*bitvec.Bitvector, *bitvec.Bitvector) *bitvec.Bitvector) (*bitvec.Bitvector, error) {
	l, err := e.Resolve(left)
	if err != nil {
		return nil, err
	}
	r, err := e.Resolve(right)
	if err != nil {
		return nil, err
	}
	if l.Len() >= r.Len() {
		return op(l, r), nil
	}
	return op(r, l), nil
}

// EvaluateForUser resolves expr and conjoins it with load_owner(user)
// and load_all(), so only documents that currently exist and belong to
// user can ever be returned. An empty expression resolves to
// load_owner(user) alone.
func (e *Evaluator) EvaluateForUser(expr Expr, user string) (*bitvec.Bitvector, error) {
	owner, err := e.meta.LoadOwner(user)
	if err != nil {
		return nil, err
	}
	if _, isEmpty := expr.(EmptyNode); isEmpty {
		return owner, nil
	}

	raw, err := e.Resolve(expr)
	if err != nil {
		return nil, err
	}
	all, err := e.meta.LoadAll()
	if err != nil {
		return nil, err
	}

	scoped := e.combine2(raw, owner)
	return e.combine2(scoped, all), nil
}

func (e *Evaluator) combine2(a, b *bitvec.Bitvector) *bitvec.Bitvector {
	if a.Len() >= b.Len() {
		return a.And(b)
	}
	return b.And(a)
}

var queryLog = log.WithComponent("query")
