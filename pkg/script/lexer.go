package script

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/bissakov/qazcode-rpa-sub000/pkg/types"
)

// Lexer tokenizes an expression string. Variable references are written
// either as @name or as {name}; both produce the same TokenVariable.
type Lexer struct {
	input string
	pos   int
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Tokenize scans the entire input and returns all tokens, terminated by EOF.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
	}
	return tokens, nil
}

func (l *Lexer) next() (Token, error) {
	l.skipWhitespace()

	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.pos}, nil
	}

	ch := l.input[l.pos]

	switch ch {
	case '@':
		return l.readVariable()
	case '{':
		return l.readBracedVariable()
	case '"':
		return l.readString()
	case '\'':
		return Token{}, types.NewParseError("Single-quoted strings are not allowed. Use double quotes.")
	case '+':
		l.pos++
		return Token{Type: TokenPlus, Value: "+", Pos: l.pos - 1}, nil
	case '-':
		l.pos++
		return Token{Type: TokenMinus, Value: "-", Pos: l.pos - 1}, nil
	case '*':
		l.pos++
		return Token{Type: TokenStar, Value: "*", Pos: l.pos - 1}, nil
	case '/':
		l.pos++
		return Token{Type: TokenSlash, Value: "/", Pos: l.pos - 1}, nil
	case '%':
		l.pos++
		return Token{Type: TokenPercent, Value: "%", Pos: l.pos - 1}, nil
	case '(':
		l.pos++
		return Token{Type: TokenLParen, Value: "(", Pos: l.pos - 1}, nil
	case ')':
		l.pos++
		return Token{Type: TokenRParen, Value: ")", Pos: l.pos - 1}, nil
	case '=':
		if l.peekIs('=') {
			start := l.pos
			l.pos += 2
			return Token{Type: TokenEq, Value: "==", Pos: start}, nil
		}
		return Token{}, types.NewParseError("Invalid operator '=', use '==' for equality")
	case '!':
		if l.peekIs('=') {
			start := l.pos
			l.pos += 2
			return Token{Type: TokenNeq, Value: "!=", Pos: start}, nil
		}
		l.pos++
		return Token{Type: TokenNot, Value: "!", Pos: l.pos - 1}, nil
	case '>':
		if l.peekIs('=') {
			start := l.pos
			l.pos += 2
			return Token{Type: TokenGte, Value: ">=", Pos: start}, nil
		}
		l.pos++
		return Token{Type: TokenGt, Value: ">", Pos: l.pos - 1}, nil
	case '<':
		if l.peekIs('=') {
			start := l.pos
			l.pos += 2
			return Token{Type: TokenLte, Value: "<=", Pos: start}, nil
		}
		l.pos++
		return Token{Type: TokenLt, Value: "<", Pos: l.pos - 1}, nil
	case '&':
		if l.peekIs('&') {
			start := l.pos
			l.pos += 2
			return Token{Type: TokenAnd, Value: "&&", Pos: start}, nil
		}
		return Token{}, types.NewParseError("Invalid operator '&', use '&&' for logical AND")
	case '|':
		if l.peekIs('|') {
			start := l.pos
			l.pos += 2
			return Token{Type: TokenOr, Value: "||", Pos: start}, nil
		}
		return Token{}, types.NewParseError("Invalid operator '|', use '||' for logical OR")
	}

	if ch >= '0' && ch <= '9' {
		return l.readNumber()
	}

	if isAlpha(rune(ch)) {
		return l.readKeyword()
	}

	return Token{}, types.NewParseError("Unexpected character: " + string(ch))
}

func (l *Lexer) peekIs(ch byte) bool {
	return l.pos+1 < len(l.input) && l.input[l.pos+1] == ch
}

// readVariable reads a @name reference.
func (l *Lexer) readVariable() (Token, error) {
	start := l.pos
	l.pos++ // skip sigil

	if l.pos >= len(l.input) || !isAlpha(rune(l.input[l.pos])) {
		return Token{}, types.NewParseError("Invalid variable name after '@'")
	}

	nameStart := l.pos
	for l.pos < len(l.input) && isIdentPart(rune(l.input[l.pos])) {
		l.pos++
	}
	return Token{
		Type:   TokenVariable,
		Value:  l.input[start:l.pos],
		StrVal: l.input[nameStart:l.pos],
		Pos:    start,
	}, nil
}

// readBracedVariable reads a {name} reference.
func (l *Lexer) readBracedVariable() (Token, error) {
	start := l.pos
	l.pos++ // skip {

	nameStart := l.pos
	for l.pos < len(l.input) && l.input[l.pos] != '}' {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return Token{}, types.NewParseError("Unclosed '{' in variable reference")
	}

	name := strings.TrimSpace(l.input[nameStart:l.pos])
	l.pos++ // skip }

	if name == "" {
		return Token{}, types.NewParseError("Empty variable name in '{}'")
	}
	for _, r := range name {
		if !isIdentPart(r) {
			return Token{}, types.NewParseError("Invalid variable name in '{" + name + "}'")
		}
	}
	if !isAlpha(rune(name[0])) {
		return Token{}, types.NewParseError("Invalid variable name in '{" + name + "}'")
	}

	return Token{
		Type:   TokenVariable,
		Value:  l.input[start:l.pos],
		StrVal: name,
		Pos:    start,
	}, nil
}

// readString reads a double-quoted string literal. The raw content is kept
// as-is; interpolation segments are split out later by the parser.
func (l *Lexer) readString() (Token, error) {
	start := l.pos
	l.pos++ // skip opening quote

	contentStart := l.pos
	for l.pos < len(l.input) {
		if l.input[l.pos] == '"' {
			content := l.input[contentStart:l.pos]
			l.pos++ // skip closing quote
			return Token{
				Type:   TokenString,
				Value:  l.input[start:l.pos],
				StrVal: content,
				Pos:    start,
			}, nil
		}
		l.pos++
	}
	return Token{}, types.NewParseError("Unterminated string")
}

func (l *Lexer) readNumber() (Token, error) {
	start := l.pos
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if (ch >= '0' && ch <= '9') || ch == '.' {
			l.pos++
		} else {
			break
		}
	}

	raw := l.input[start:l.pos]
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Token{}, types.NewParseError("Invalid number: " + raw)
	}
	return Token{Type: TokenNumber, Value: raw, NumVal: n, Pos: start}, nil
}

func (l *Lexer) readKeyword() (Token, error) {
	start := l.pos
	for l.pos < len(l.input) && isIdentPart(rune(l.input[l.pos])) {
		l.pos++
	}

	word := l.input[start:l.pos]
	switch word {
	case "true":
		return Token{Type: TokenTrue, Value: word, Pos: start}, nil
	case "false":
		return Token{Type: TokenFalse, Value: word, Pos: start}, nil
	case "and", "AND":
		return Token{Type: TokenAnd, Value: word, Pos: start}, nil
	case "or", "OR":
		return Token{Type: TokenOr, Value: word, Pos: start}, nil
	case "not", "NOT":
		return Token{Type: TokenNot, Value: word, Pos: start}, nil
	default:
		return Token{}, types.NewParseError("Unknown identifier: " + word)
	}
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
}

func isAlpha(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
