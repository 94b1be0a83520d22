// Package script implements the expression and condition language used by
// scenario activities: a lexer, a recursive-descent parser, and a typed
// evaluator with string interpolation.
package script

// TokenType represents the type of a lexical token.
type TokenType int

const (
	// Literals
	TokenNumber TokenType = iota // numeric literal
	TokenString                  // double-quoted string literal
	TokenTrue                    // true
	TokenFalse                   // false

	// Variables
	TokenVariable // @name or {name}

	// Arithmetic
	TokenPlus    // +
	TokenMinus   // -
	TokenStar    // *
	TokenSlash   // /
	TokenPercent // %

	// Comparison
	TokenEq  // ==
	TokenNeq // !=
	TokenGt  // >
	TokenGte // >=
	TokenLt  // <
	TokenLte // <=

	// Logical
	TokenAnd // && or AND
	TokenOr  // || or OR
	TokenNot // ! or NOT

	// Grouping
	TokenLParen // (
	TokenRParen // )

	// Special
	TokenEOF // end of expression
)

// Token represents a single lexical token.
type Token struct {
	Type   TokenType
	Value  string  // raw text
	NumVal float64 // parsed number (for TokenNumber)
	StrVal string  // string content (for TokenString), name (for TokenVariable)
	Pos    int     // byte offset in source
}

// String returns a debug-friendly representation of the token type.
func (t TokenType) String() string {
	switch t {
	case TokenNumber:
		return "NUMBER"
	case TokenString:
		return "STRING"
	case TokenTrue:
		return "TRUE"
	case TokenFalse:
		return "FALSE"
	case TokenVariable:
		return "VARIABLE"
	case TokenPlus:
		return "PLUS"
	case TokenMinus:
		return "MINUS"
	case TokenStar:
		return "STAR"
	case TokenSlash:
		return "SLASH"
	case TokenPercent:
		return "PERCENT"
	case TokenEq:
		return "EQ"
	case TokenNeq:
		return "NEQ"
	case TokenGt:
		return "GT"
	case TokenGte:
		return "GTE"
	case TokenLt:
		return "LT"
	case TokenLte:
		return "LTE"
	case TokenAnd:
		return "AND"
	case TokenOr:
		return "OR"
	case TokenNot:
		return "NOT"
	case TokenLParen:
		return "LPAREN"
	case TokenRParen:
		return "RPAREN"
	case TokenEOF:
		return "EOF"
	default:
		return "UNKNOWN"
	}
}
