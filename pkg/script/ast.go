package script

import "github.com/bissakov/qazcode-rpa-sub000/pkg/types"

// Node is the interface for all expression AST nodes. Trees are immutable
// once parsed and safe to evaluate repeatedly.
type Node interface {
	nodeType() string
}

// ConstNode represents a literal value.
type ConstNode struct {
	Value types.Value
}

func (n *ConstNode) nodeType() string { return "Const" }

// ConstText returns a node that evaluates to the given literal text.
func ConstText(s string) Node {
	return &ConstNode{Value: types.NewString(s)}
}

// LoadNode represents a variable reference.
type LoadNode struct {
	Name string
}

func (n *LoadNode) nodeType() string { return "Load" }

// BinaryNode represents a binary operation.
type BinaryNode struct {
	Op    TokenType
	Left  Node
	Right Node
}

func (n *BinaryNode) nodeType() string { return "Binary" }

// UnaryNode represents a unary operation (-x, +x, !x).
type UnaryNode struct {
	Op      TokenType
	Operand Node
}

func (n *UnaryNode) nodeType() string { return "Unary" }

// InterpolatedNode represents a string with embedded {expr} segments.
// Parts alternate between string ConstNodes and expression subtrees.
type InterpolatedNode struct {
	Parts []Node
}

func (n *InterpolatedNode) nodeType() string { return "Interpolated" }
