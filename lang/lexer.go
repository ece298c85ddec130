package lang

import (
	"unicode"
	"unicode/utf8"

	"github.com/gogpu/nzsl/ast"
)

// Lexer tokenizes nzsl source code.
type Lexer struct {
	source string
	file   string
	pos    int
	line   int
	column int
	start  int

	startLine   int
	startColumn int

	tokens []Token
}

// NewLexer creates a new lexer for the given source.
func NewLexer(source string) *Lexer {
	// Estimate ~1 token per 6 characters of source.
	estTokens := len(source) / 6
	if estTokens < 16 {
		estTokens = 16
	}
	return &Lexer{
		source: source,
		line:   1,
		column: 1,
		tokens: make([]Token, 0, estTokens),
	}
}

// WithFile sets the file name recorded in token spans.
func (l *Lexer) WithFile(name string) *Lexer {
	l.file = name
	return l
}

// Tokenize returns all tokens from the source, terminated by TokenEOF.
func Tokenize(source string) ([]Token, error) {
	return NewLexer(source).Tokenize()
}

// Tokenize returns all tokens from the source.
func (l *Lexer) Tokenize() ([]Token, error) {
	for !l.isAtEnd() {
		l.start = l.pos
		l.startLine = l.line
		l.startColumn = l.column
		if err := l.scanToken(); err != nil {
			return nil, err
		}
	}

	l.start = l.pos
	l.startLine = l.line
	l.startColumn = l.column
	l.addToken(TokenEOF)

	return l.tokens, nil
}

func (l *Lexer) scanToken() error {
	r := l.advance()

	switch r {
	// Single-character tokens
	case '(':
		l.addToken(TokenLeftParen)
	case ')':
		l.addToken(TokenRightParen)
	case '{':
		l.addToken(TokenLeftBrace)
	case '}':
		l.addToken(TokenRightBrace)
	case '[':
		l.addToken(TokenLeftBracket)
	case ']':
		l.addToken(TokenRightBracket)
	case ',':
		l.addToken(TokenComma)
	case ':':
		l.addToken(TokenColon)
	case ';':
		l.addToken(TokenSemicolon)
	case '?':
		l.addToken(TokenQuestion)
	case '~':
		l.addToken(TokenTilde)
	case '^':
		l.addToken(TokenCaret)
	case '.':
		if isDigit(l.peek()) {
			return l.number()
		}
		l.addToken(TokenDot)
	case '%':
		if l.match('=') {
			l.addToken(TokenPercentEqual)
		} else {
			l.addToken(TokenPercent)
		}

	// Operators that could be one or more characters
	case '+':
		if l.match('=') {
			l.addToken(TokenPlusEqual)
		} else {
			l.addToken(TokenPlus)
		}
	case '-':
		if l.match('=') {
			l.addToken(TokenMinusEqual)
		} else if l.match('>') {
			l.addToken(TokenArrow)
		} else {
			l.addToken(TokenMinus)
		}
	case '*':
		if l.match('=') {
			l.addToken(TokenStarEqual)
		} else {
			l.addToken(TokenStar)
		}
	case '/':
		if l.match('/') {
			// Line comment
			for l.peek() != '\n' && !l.isAtEnd() {
				l.advance()
			}
		} else if l.match('*') {
			return l.blockComment()
		} else if l.match('=') {
			l.addToken(TokenSlashEqual)
		} else {
			l.addToken(TokenSlash)
		}
	case '=':
		if l.match('=') {
			l.addToken(TokenEqualEqual)
		} else {
			l.addToken(TokenEqual)
		}
	case '!':
		if l.match('=') {
			l.addToken(TokenBangEqual)
		} else {
			l.addToken(TokenBang)
		}
	case '<':
		if l.match('<') {
			l.addToken(TokenLessLess)
		} else if l.match('=') {
			l.addToken(TokenLessEqual)
		} else {
			l.addToken(TokenLess)
		}
	case '>':
		if l.match('>') {
			l.addToken(TokenGreaterGreater)
		} else if l.match('=') {
			l.addToken(TokenGreaterEqual)
		} else {
			l.addToken(TokenGreater)
		}
	case '&':
		if l.match('&') {
			if l.match('=') {
				l.addToken(TokenAmpAmpEqual)
			} else {
				l.addToken(TokenAmpAmp)
			}
		} else {
			l.addToken(TokenAmpersand)
		}
	case '|':
		if l.match('|') {
			if l.match('=') {
				l.addToken(TokenPipePipeEqual)
			} else {
				l.addToken(TokenPipePipe)
			}
		} else {
			l.addToken(TokenPipe)
		}
	case '"':
		return l.stringLiteral()

	// Whitespace
	case ' ', '\r', '\t':
	case '\n':
		l.line++
		l.column = 1

	default:
		if isDigit(r) {
			return l.number()
		}
		if isAlpha(r) || r == '_' {
			l.identifier()
			return nil
		}
		return ast.Errorf(ast.ErrLex, l.startSpan(), "unexpected character %q", r)
	}

	return nil
}

func (l *Lexer) blockComment() error {
	depth := 1
	for depth > 0 {
		if l.isAtEnd() {
			return ast.Errorf(ast.ErrLex, l.startSpan(), "unterminated block comment")
		}
		if l.peek() == '/' && l.peekNext() == '*' {
			l.advance()
			l.advance()
			depth++
		} else if l.peek() == '*' && l.peekNext() == '/' {
			l.advance()
			l.advance()
			depth--
		} else {
			if l.advance() == '\n' {
				l.line++
				l.column = 1
			}
		}
	}
	return nil
}

func (l *Lexer) stringLiteral() error {
	for l.peek() != '"' {
		if l.isAtEnd() || l.peek() == '\n' {
			return ast.Errorf(ast.ErrLex, l.startSpan(), "unterminated string")
		}
		if l.advance() == '\\' && !l.isAtEnd() {
			l.advance()
		}
	}
	l.advance() // closing quote
	l.addToken(TokenStringLiteral)
	return nil
}

func (l *Lexer) number() error {
	// Hexadecimal integer
	if l.source[l.start] == '0' && (l.peek() == 'x' || l.peek() == 'X') {
		l.advance()
		if !isHexDigit(l.peek()) {
			return ast.Errorf(ast.ErrLex, l.startSpan(), "malformed hexadecimal literal")
		}
		for isHexDigit(l.peek()) || l.peek() == '_' {
			l.advance()
		}
		if l.peek() == 'u' {
			l.advance()
		}
		l.addToken(TokenIntLiteral)
		return nil
	}

	isFloat := l.source[l.start] == '.'
	for isDigit(l.peek()) || l.peek() == '_' {
		l.advance()
	}

	// "1.x" is a swizzle on an integer literal, "1." and "1.5" are floats.
	if !isFloat && l.peek() == '.' && !isAlpha(l.peekNext()) && l.peekNext() != '_' {
		isFloat = true
		l.advance()
		for isDigit(l.peek()) {
			l.advance()
		}
	}

	if l.peek() == 'e' || l.peek() == 'E' {
		isFloat = true
		l.advance()
		if l.peek() == '+' || l.peek() == '-' {
			l.advance()
		}
		if !isDigit(l.peek()) {
			return ast.Errorf(ast.ErrLex, l.startSpan(), "malformed exponent")
		}
		for isDigit(l.peek()) {
			l.advance()
		}
	}

	switch {
	case l.peek() == 'f':
		l.advance()
		l.addToken(TokenFloatLiteral)
	case isFloat:
		l.addToken(TokenFloatLiteral)
	default:
		if l.peek() == 'u' {
			l.advance()
		}
		l.addToken(TokenIntLiteral)
	}

	if isAlphaNumeric(l.peek()) {
		return ast.Errorf(ast.ErrLex, l.startSpan(), "invalid suffix on number literal")
	}
	return nil
}

func (l *Lexer) identifier() {
	for isAlphaNumeric(l.peek()) || l.peek() == '_' {
		l.advance()
	}

	text := l.source[l.start:l.pos]
	if kind, ok := keywords[text]; ok {
		l.addToken(kind)
		return
	}
	l.addToken(TokenIdentifier)
}

func (l *Lexer) startSpan() ast.Span {
	return ast.Span{
		Start: ast.Position{Line: l.startLine, Column: l.startColumn, Offset: l.start},
		End:   ast.Position{Line: l.line, Column: l.column, Offset: l.pos},
		File:  l.file,
	}
}

func (l *Lexer) addToken(kind TokenKind) {
	l.tokens = append(l.tokens, Token{
		Kind:   kind,
		Lexeme: l.source[l.start:l.pos],
		Span:   l.startSpan(),
	})
}

func (l *Lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(l.source[l.pos:])
	l.pos += size
	l.column++
	return r
}

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.source[l.pos:])
	return r
}

func (l *Lexer) peekNext() rune {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	_, size := utf8.DecodeRuneInString(l.source[l.pos:])
	r, _ := utf8.DecodeRuneInString(l.source[l.pos+size:])
	return r
}

func (l *Lexer) match(expected rune) bool {
	if l.isAtEnd() {
		return false
	}
	r, size := utf8.DecodeRuneInString(l.source[l.pos:])
	if r != expected {
		return false
	}
	l.pos += size
	l.column++
	return true
}

func (l *Lexer) isAtEnd() bool {
	return l.pos >= len(l.source)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func isAlpha(r rune) bool {
	return unicode.IsLetter(r)
}

func isAlphaNumeric(r rune) bool {
	return isAlpha(r) || isDigit(r)
}
