package script

import (
	"math"
	"strings"

	"github.com/bissakov/qazcode-rpa-sub000/pkg/types"
)

// Resolver supplies variable values during evaluation. The evaluator has no
// knowledge of scoping; the policy of local-over-global lookup lives with
// the caller.
type Resolver interface {
	Resolve(name string) (types.Value, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(name string) (types.Value, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(name string) (types.Value, error) {
	return f(name)
}

// MapResolver resolves variables from a plain map. Missing names fail with
// an UndefinedVariable error.
type MapResolver map[string]types.Value

// Resolve looks up name in the map.
func (m MapResolver) Resolve(name string) (types.Value, error) {
	if v, ok := m[name]; ok {
		return v, nil
	}
	return types.Undefined, types.NewUndefinedVariableError(name)
}

// Evaluate evaluates an expression node against the given resolver. The
// evaluator is a pure function over the AST: re-evaluating the same tree
// against an unchanged resolver yields identical results.
func Evaluate(node Node, r Resolver) (types.Value, error) {
	switch n := node.(type) {
	case *ConstNode:
		return n.Value, nil
	case *LoadNode:
		return r.Resolve(n.Name)
	case *BinaryNode:
		return evalBinary(n, r)
	case *UnaryNode:
		return evalUnary(n, r)
	case *InterpolatedNode:
		return evalInterpolated(n, r)
	default:
		return types.Undefined, types.NewRuntimeError("Unsupported expression node")
	}
}

// EvaluateString parses and evaluates an expression in one step.
func EvaluateString(input string, r Resolver) (types.Value, error) {
	node, err := ParseExpression(input)
	if err != nil {
		return types.Undefined, err
	}
	return Evaluate(node, r)
}

func evalBinary(n *BinaryNode, r Resolver) (types.Value, error) {
	switch n.Op {
	case TokenPlus:
		return evalAdd(n, r)
	case TokenMinus:
		return evalArith(n, r, func(a, b float64) float64 { return a - b })
	case TokenStar:
		return evalArith(n, r, func(a, b float64) float64 { return a * b })
	case TokenSlash:
		return evalDivMod(n, r, false)
	case TokenPercent:
		return evalDivMod(n, r, true)
	case TokenEq, TokenNeq:
		return evalEquality(n, r)
	case TokenGt, TokenGte, TokenLt, TokenLte:
		return evalRelational(n, r)
	case TokenAnd, TokenOr:
		return evalLogical(n, r)
	default:
		return types.Undefined, types.NewRuntimeError("Unsupported binary operator: " + n.Op.String())
	}
}

// evalAdd implements the asymmetric + rules: a String on the left always
// concatenates the display form of the right; a Number on the left coerces
// the right to a number; Boolean and Undefined on the left are errors.
func evalAdd(n *BinaryNode, r Resolver) (types.Value, error) {
	left, err := Evaluate(n.Left, r)
	if err != nil {
		return types.Undefined, err
	}

	switch left.Kind() {
	case types.KindString:
		right, err := Evaluate(n.Right, r)
		if err != nil {
			return types.Undefined, err
		}
		return types.NewString(left.Str() + right.String()), nil
	case types.KindNumber:
		right, err := Evaluate(n.Right, r)
		if err != nil {
			return types.Undefined, err
		}
		rn, err := right.ToNumber()
		if err != nil {
			return types.Undefined, err
		}
		return types.NewNumber(left.Number() + rn), nil
	case types.KindBoolean:
		return types.Undefined, types.NewTypeError("Cannot use + with boolean on left side")
	default:
		return types.Undefined, types.NewTypeError("Cannot use + with undefined")
	}
}

func evalArith(n *BinaryNode, r Resolver, op func(a, b float64) float64) (types.Value, error) {
	a, err := evalToNumber(n.Left, r)
	if err != nil {
		return types.Undefined, err
	}
	b, err := evalToNumber(n.Right, r)
	if err != nil {
		return types.Undefined, err
	}
	return types.NewNumber(op(a, b)), nil
}

func evalDivMod(n *BinaryNode, r Resolver, mod bool) (types.Value, error) {
	a, err := evalToNumber(n.Left, r)
	if err != nil {
		return types.Undefined, err
	}
	b, err := evalToNumber(n.Right, r)
	if err != nil {
		return types.Undefined, err
	}
	if math.Abs(b) < types.Epsilon {
		return types.Undefined, types.NewDivisionByZeroError("Division by zero")
	}
	if mod {
		return types.NewNumber(math.Mod(a, b)), nil
	}
	return types.NewNumber(a / b), nil
}

// evalEquality is kind-strict: comparing values of different kinds is a
// type error rather than a coercion.
func evalEquality(n *BinaryNode, r Resolver) (types.Value, error) {
	left, err := Evaluate(n.Left, r)
	if err != nil {
		return types.Undefined, err
	}
	right, err := Evaluate(n.Right, r)
	if err != nil {
		return types.Undefined, err
	}
	if left.Kind() != right.Kind() {
		op := "=="
		if n.Op == TokenNeq {
			op = "!="
		}
		return types.Undefined, types.NewTypeError("Type mismatch in '" + op + "'")
	}

	eq := left.EqualSameKind(right)
	if n.Op == TokenNeq {
		eq = !eq
	}
	return types.NewBool(eq), nil
}

func evalRelational(n *BinaryNode, r Resolver) (types.Value, error) {
	a, err := evalToNumber(n.Left, r)
	if err != nil {
		return types.Undefined, err
	}
	b, err := evalToNumber(n.Right, r)
	if err != nil {
		return types.Undefined, err
	}

	var result bool
	switch n.Op {
	case TokenGt:
		result = a > b
	case TokenGte:
		result = a >= b
	case TokenLt:
		result = a < b
	case TokenLte:
		result = a <= b
	}
	return types.NewBool(result), nil
}

// evalLogical requires boolean operands on both sides; numbers and strings
// are a hard error here, deliberately stricter than arithmetic coercion.
func evalLogical(n *BinaryNode, r Resolver) (types.Value, error) {
	a, err := evalToBool(n.Left, r)
	if err != nil {
		return types.Undefined, err
	}
	b, err := evalToBool(n.Right, r)
	if err != nil {
		return types.Undefined, err
	}
	if n.Op == TokenAnd {
		return types.NewBool(a && b), nil
	}
	return types.NewBool(a || b), nil
}

func evalUnary(n *UnaryNode, r Resolver) (types.Value, error) {
	switch n.Op {
	case TokenMinus:
		v, err := evalToNumber(n.Operand, r)
		if err != nil {
			return types.Undefined, err
		}
		return types.NewNumber(-v), nil
	case TokenNot:
		v, err := evalToBool(n.Operand, r)
		if err != nil {
			return types.Undefined, err
		}
		return types.NewBool(!v), nil
	default:
		return types.Undefined, types.NewRuntimeError("Unsupported unary operator: " + n.Op.String())
	}
}

func evalInterpolated(n *InterpolatedNode, r Resolver) (types.Value, error) {
	var sb strings.Builder
	for _, part := range n.Parts {
		v, err := Evaluate(part, r)
		if err != nil {
			return types.Undefined, err
		}
		sb.WriteString(v.String())
	}
	return types.NewString(sb.String()), nil
}

func evalToNumber(node Node, r Resolver) (float64, error) {
	v, err := Evaluate(node, r)
	if err != nil {
		return 0, err
	}
	return v.ToNumber()
}

func evalToBool(node Node, r Resolver) (bool, error) {
	v, err := Evaluate(node, r)
	if err != nil {
		return false, err
	}
	return v.ToBool()
}
