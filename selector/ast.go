// Copyright (C) 2024 rotasched authors
// Licensed under the GNU Affero General Public License v3.0 or later.
// See the LICENSE file for details.

package selector

import (
	"fmt"
	"strconv"

	"github.com/rotasched/rotasched/groups"
)

// Resolver is the subset of groups.Store a selector expression needs
// to evaluate its leaves: name lookup plus an ordinal block reference
// (the "Block" NUM atom form of spec.md §4.2's grammar).
type Resolver interface {
	Mask(name string) (groups.Mask, error)
	BlockMaskByOrdinal(n int) (groups.Mask, error)
}

// Node is one node of a parsed selector's expression tree.
type Node interface {
	// eval evaluates the subtree against r.
	eval(r Resolver) (groups.Mask, error)
	// text renders the node back to selector syntax, used for
	// round-tripping (spec.md §8 property P10) and diagnostics.
	text() string
	walk(v Visitor)
}

// Visitor is invoked for each node encountered by Walk, following
// expr.Visitor's shape (package expr, node.go) adapted to this
// package's smaller fixed set of node kinds.
type Visitor interface {
	Visit(Node) Visitor
}

// Walk traverses the expression tree in depth-first order.
func Walk(v Visitor, n Node) {
	if n == nil {
		return
	}
	w := v.Visit(n)
	if w != nil {
		n.walk(w)
		w.Visit(nil)
	}
}

type andNode struct{ left, right Node }

func (n *andNode) eval(r Resolver) (groups.Mask, error) {
	l, err := n.left.eval(r)
	if err != nil {
		return nil, err
	}
	rr, err := n.right.eval(r)
	if err != nil {
		return nil, err
	}
	return groups.And(l, rr), nil
}
func (n *andNode) text() string { return "(" + n.left.text() + " and " + n.right.text() + ")" }
func (n *andNode) walk(v Visitor) {
	Walk(v, n.left)
	Walk(v, n.right)
}

type orNode struct{ left, right Node }

func (n *orNode) eval(r Resolver) (groups.Mask, error) {
	l, err := n.left.eval(r)
	if err != nil {
		return nil, err
	}
	rr, err := n.right.eval(r)
	if err != nil {
		return nil, err
	}
	return groups.Or(l, rr), nil
}
func (n *orNode) text() string { return "(" + n.left.text() + " or " + n.right.text() + ")" }
func (n *orNode) walk(v Visitor) {
	Walk(v, n.left)
	Walk(v, n.right)
}

type notNode struct{ operand Node }

func (n *notNode) eval(r Resolver) (groups.Mask, error) {
	m, err := n.operand.eval(r)
	if err != nil {
		return nil, err
	}
	return groups.Not(m), nil
}
func (n *notNode) text() string { return "not " + n.operand.text() }
func (n *notNode) walk(v Visitor) {
	Walk(v, n.operand)
}

type identNode struct{ name string }

func (n *identNode) eval(r Resolver) (groups.Mask, error) { return r.Mask(n.name) }
func (n *identNode) text() string                         { return strconv.Quote(n.name) }
func (n *identNode) walk(Visitor)                         {}

// blockOrdinalNode implements the "Block" NUM atom: a direct,
// 1-based positional reference to a block independent of its
// declared name, e.g. `Block 3` selects the third declared block.
type blockOrdinalNode struct{ n int }

func (n *blockOrdinalNode) eval(r Resolver) (groups.Mask, error) { return r.BlockMaskByOrdinal(n.n) }
func (n *blockOrdinalNode) text() string                         { return fmt.Sprintf("Block %d", n.n) }
func (n *blockOrdinalNode) walk(Visitor)                         {}

// Expr is a parsed selector expression.
type Expr struct {
	root Node
	src  string
}

// Eval evaluates the expression against r, applying and/or/not as
// pure elementwise boolean algebra over the operand masks (spec.md §4.2).
func (e *Expr) Eval(r Resolver) (groups.Mask, error) { return e.root.eval(r) }

// String renders the expression back to selector syntax.
func (e *Expr) String() string { return e.root.text() }

// Source returns the original, unparsed selector text.
func (e *Expr) Source() string { return e.src }
