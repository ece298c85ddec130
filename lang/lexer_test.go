package lang

import (
	"testing"

	"github.com/gogpu/nzsl/ast"
)

func TestLexerBasicTokens(t *testing.T) {
	tests := []struct {
		input    string
		expected []TokenKind
	}{
		{"+ - * / %", []TokenKind{TokenPlus, TokenMinus, TokenStar, TokenSlash, TokenPercent, TokenEOF}},
		{"( ) { } [ ]", []TokenKind{TokenLeftParen, TokenRightParen, TokenLeftBrace, TokenRightBrace, TokenLeftBracket, TokenRightBracket, TokenEOF}},
		{", . : ; ?", []TokenKind{TokenComma, TokenDot, TokenColon, TokenSemicolon, TokenQuestion, TokenEOF}},
		{"== != <= >= && || << >> ->", []TokenKind{
			TokenEqualEqual, TokenBangEqual, TokenLessEqual, TokenGreaterEqual,
			TokenAmpAmp, TokenPipePipe, TokenLessLess, TokenGreaterGreater, TokenArrow, TokenEOF,
		}},
		{"+= -= *= /= %= &&= ||=", []TokenKind{
			TokenPlusEqual, TokenMinusEqual, TokenStarEqual, TokenSlashEqual,
			TokenPercentEqual, TokenAmpAmpEqual, TokenPipePipeEqual, TokenEOF,
		}},
	}

	for _, tt := range tests {
		tokens, err := Tokenize(tt.input)
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tt.input, err)
			continue
		}
		if len(tokens) != len(tt.expected) {
			t.Errorf("%q: expected %d tokens, got %d", tt.input, len(tt.expected), len(tokens))
			continue
		}
		for i, tok := range tokens {
			if tok.Kind != tt.expected[i] {
				t.Errorf("%q token %d: expected %v, got %v", tt.input, i, tt.expected[i], tok.Kind)
			}
		}
	}
}

func TestLexerKeywordsAndIdentifiers(t *testing.T) {
	tokens, err := Tokenize("module external fn let vec3 foo_bar true")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []TokenKind{TokenModule, TokenExternal, TokenFn, TokenLet, TokenIdentifier, TokenIdentifier, TokenTrue, TokenEOF}
	for i, tok := range tokens {
		if tok.Kind != want[i] {
			t.Errorf("token %d (%q): expected %v, got %v", i, tok.Lexeme, want[i], tok.Kind)
		}
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input string
		kind  TokenKind
	}{
		{"42", TokenIntLiteral},
		{"42u", TokenIntLiteral},
		{"0x1F", TokenIntLiteral},
		{"1.0", TokenFloatLiteral},
		{"1.", TokenFloatLiteral},
		{".5", TokenFloatLiteral},
		{"1e3", TokenFloatLiteral},
		{"2.5e-2", TokenFloatLiteral},
		{"1.5f", TokenFloatLiteral},
		{"3f", TokenFloatLiteral},
	}

	for _, tt := range tests {
		tokens, err := Tokenize(tt.input)
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tt.input, err)
			continue
		}
		if tokens[0].Kind != tt.kind || tokens[0].Lexeme != tt.input {
			t.Errorf("%q: got %v %q", tt.input, tokens[0].Kind, tokens[0].Lexeme)
		}
	}
}

func TestLexerIntegerSwizzle(t *testing.T) {
	tokens, err := Tokenize("1.xxx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []TokenKind{TokenIntLiteral, TokenDot, TokenIdentifier, TokenEOF}
	for i, tok := range tokens {
		if tok.Kind != want[i] {
			t.Errorf("token %d: expected %v, got %v", i, want[i], tok.Kind)
		}
	}
}

func TestLexerComments(t *testing.T) {
	src := "a // line comment\n/* block /* nested */ comment */ b"
	tokens, err := Tokenize(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tokens) != 3 || tokens[0].Lexeme != "a" || tokens[1].Lexeme != "b" {
		t.Fatalf("unexpected tokens: %+v", tokens)
	}
	if tokens[1].Span.Start.Line != 2 {
		t.Errorf("expected b on line 2, got %d", tokens[1].Span.Start.Line)
	}
}

func TestLexerPositions(t *testing.T) {
	tokens, err := Tokenize("let x\n  = 5;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	eq := tokens[2]
	if eq.Kind != TokenEqual || eq.Span.Start.Line != 2 || eq.Span.Start.Column != 3 {
		t.Errorf("'=' at %d:%d, want 2:3", eq.Span.Start.Line, eq.Span.Start.Column)
	}
	if tokens[1].Span.Start.Column != 5 {
		t.Errorf("x at column %d, want 5", tokens[1].Span.Start.Column)
	}
}

func TestLexerErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unknown character", "let a = 1 $ 2;"},
		{"unterminated block comment", "/* never closed"},
		{"unterminated string", "[desc(\"oops)]"},
		{"bad suffix", "12abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(tt.input)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !ast.IsKind(err, ast.ErrLex) {
				t.Errorf("expected a lex error, got %v", err)
			}
		})
	}
}

func TestLexerErrorLine(t *testing.T) {
	_, err := Tokenize("let a = 1;\nlet b = #;")
	e, ok := err.(*ast.Error)
	if !ok {
		t.Fatalf("expected *ast.Error, got %T", err)
	}
	if e.Span.Start.Line != 2 || e.Span.Start.Column != 9 {
		t.Errorf("error at %d:%d, want 2:9", e.Span.Start.Line, e.Span.Start.Column)
	}
}
