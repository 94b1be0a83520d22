package script

import (
	"strings"

	"github.com/bissakov/qazcode-rpa-sub000/pkg/types"
)

// Parser is a recursive descent parser over a token stream.
type Parser struct {
	tokens []Token
	pos    int
}

// ParseExpression parses a complete expression string.
func ParseExpression(input string) (Node, error) {
	if strings.TrimSpace(input) == "" {
		return nil, types.NewParseError("Empty expression")
	}

	lexer := NewLexer(input)
	tokens, err := lexer.Tokenize()
	if err != nil {
		return nil, err
	}

	p := &Parser{tokens: tokens}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	if p.current().Type != TokenEOF {
		return nil, types.NewParseError("Unexpected token: " + p.current().Type.String())
	}
	return node, nil
}

// ParseTemplate parses free-form text as an interpolated template: literal
// runs are kept verbatim, {expr} segments are parsed as expressions, and
// {{/}} escape to literal braces. A template with no expressions parses to
// a plain string constant.
func ParseTemplate(text string) (Node, error) {
	// An activity field already wrapped in quotes is the literal content.
	if len(text) >= 2 && strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`) {
		text = text[1 : len(text)-1]
	}

	if !strings.ContainsAny(text, "{}") {
		return &ConstNode{Value: types.NewString(text)}, nil
	}

	parts, err := parseStringContent(text)
	if err != nil {
		return nil, err
	}
	if len(parts) == 1 {
		if c, ok := parts[0].(*ConstNode); ok {
			return c, nil
		}
	}
	return &InterpolatedNode{Parts: parts}, nil
}

// parseStringContent splits raw string content into literal and expression
// segments. {{ and }} escape to literal braces; an empty {} or an unclosed
// { is a parse error.
func parseStringContent(raw string) ([]Node, error) {
	var parts []Node
	var literal strings.Builder

	runes := []rune(raw)
	i := 0
	for i < len(runes) {
		switch runes[i] {
		case '{':
			if i+1 < len(runes) && runes[i+1] == '{' {
				literal.WriteRune('{')
				i += 2
				continue
			}

			if literal.Len() > 0 {
				parts = append(parts, &ConstNode{Value: types.NewString(literal.String())})
				literal.Reset()
			}

			i++
			exprStart := i
			depth := 1
			for i < len(runes) && depth > 0 {
				switch runes[i] {
				case '{':
					depth++
				case '}':
					depth--
				}
				if depth > 0 {
					i++
				}
			}
			if depth != 0 {
				return nil, types.NewParseError("Unclosed brace in interpolated string")
			}

			exprStr := string(runes[exprStart:i])
			if strings.TrimSpace(exprStr) == "" {
				return nil, types.NewParseError("Empty expression in interpolated string")
			}

			expr, err := ParseExpression(exprStr)
			if err != nil {
				return nil, err
			}
			parts = append(parts, expr)
			i++
		case '}':
			if i+1 < len(runes) && runes[i+1] == '}' {
				literal.WriteRune('}')
				i += 2
				continue
			}
			return nil, types.NewParseError("Unmatched closing brace in interpolated string")
		default:
			literal.WriteRune(runes[i])
			i++
		}
	}

	if literal.Len() > 0 {
		parts = append(parts, &ConstNode{Value: types.NewString(literal.String())})
	}
	if len(parts) == 0 {
		parts = append(parts, &ConstNode{Value: types.NewString("")})
	}
	return parts, nil
}

func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) advance() Token {
	tok := p.current()
	p.pos++
	return tok
}

func (p *Parser) expect(tt TokenType) error {
	if p.current().Type != tt {
		return types.NewParseError("Expected " + tt.String() + ", found " + p.current().Type.String())
	}
	p.advance()
	return nil
}

func (p *Parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.current().Type == TokenOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Op: TokenOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.current().Type == TokenAnd {
		p.advance()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Op: TokenAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseComparison() (Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	switch p.current().Type {
	case TokenEq, TokenNeq, TokenGt, TokenGte, TokenLt, TokenLte:
		op := p.advance().Type
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &BinaryNode{Op: op, Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *Parser) parseAdditive() (Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		switch p.current().Type {
		case TokenPlus, TokenMinus:
			op := p.advance().Type
			right, err := p.parseMultiplicative()
			if err != nil {
				return nil, err
			}
			left = &BinaryNode{Op: op, Left: left, Right: right}
		default:
			return left, nil
		}
	}
}

func (p *Parser) parseMultiplicative() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.current().Type {
		case TokenStar, TokenSlash, TokenPercent:
			op := p.advance().Type
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = &BinaryNode{Op: op, Left: left, Right: right}
		default:
			return left, nil
		}
	}
}

func (p *Parser) parseUnary() (Node, error) {
	switch p.current().Type {
	case TokenNot:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryNode{Op: TokenNot, Operand: operand}, nil
	case TokenMinus:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryNode{Op: TokenMinus, Operand: operand}, nil
	case TokenPlus:
		p.advance()
		return p.parseUnary()
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Node, error) {
	tok := p.current()
	switch tok.Type {
	case TokenNumber:
		p.advance()
		return &ConstNode{Value: types.NewNumber(tok.NumVal)}, nil
	case TokenTrue:
		p.advance()
		return &ConstNode{Value: types.NewBool(true)}, nil
	case TokenFalse:
		p.advance()
		return &ConstNode{Value: types.NewBool(false)}, nil
	case TokenString:
		p.advance()
		if strings.ContainsAny(tok.StrVal, "{}") {
			parts, err := parseStringContent(tok.StrVal)
			if err != nil {
				return nil, err
			}
			if len(parts) == 1 {
				if c, ok := parts[0].(*ConstNode); ok {
					return c, nil
				}
			}
			return &InterpolatedNode{Parts: parts}, nil
		}
		return &ConstNode{Value: types.NewString(tok.StrVal)}, nil
	case TokenVariable:
		p.advance()
		return &LoadNode{Name: tok.StrVal}, nil
	case TokenLParen:
		p.advance()
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return node, nil
	case TokenEOF:
		return nil, types.NewParseError("Unexpected end of expression")
	default:
		return nil, types.NewParseError("Unexpected token: " + tok.Type.String())
	}
}
